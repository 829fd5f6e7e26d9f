package logging

import (
	"bytes"
	"context"
	"io"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestContextRoundTrip(t *testing.T) {
	carried := New(io.Discard, "info")
	ctx := IntoContext(context.Background(), carried)

	require.Same(t, carried, FromContext(ctx, nil))
	require.Same(t, carried, FromContext(ctx, New(io.Discard, "info")),
		"a carried logger wins over the fallback")
}

func TestFromContextFallback(t *testing.T) {
	fallback := New(io.Discard, "info")
	require.Same(t, fallback, FromContext(context.Background(), fallback))
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	log := New(&buf, "warn")

	log.Info("quiet")
	log.Warn("loud")

	require.NotContains(t, buf.String(), "quiet")
	require.Contains(t, buf.String(), "loud")
}
