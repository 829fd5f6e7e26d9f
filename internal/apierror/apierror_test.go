package apierror

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFromStatus(t *testing.T) {
	require.NoError(t, FromStatus(http.StatusOK, nil))
	require.NoError(t, FromStatus(http.StatusCreated, nil))

	err := FromStatus(http.StatusUnauthorized, []byte(`{"detail":"token expired"}`))
	require.ErrorIs(t, err, ErrAuthRejected)
	require.Contains(t, err.Error(), "token expired")

	err = FromStatus(http.StatusForbidden, nil)
	require.ErrorIs(t, err, ErrAuthRejected)

	err = FromStatus(http.StatusBadRequest, []byte(`{"quantity":["must be positive"]}`))
	require.ErrorIs(t, err, ErrValidation)
	require.Contains(t, err.Error(), "quantity")

	err = FromStatus(http.StatusNotFound, []byte(`{"error":"Item not in cart"}`))
	require.ErrorIs(t, err, ErrValidation)
	require.Contains(t, err.Error(), "Item not in cart")

	err = FromStatus(http.StatusInternalServerError, nil)
	require.ErrorIs(t, err, ErrServer)
}

func TestNetworkWrap(t *testing.T) {
	err := Network(http.ErrHandlerTimeout)
	require.ErrorIs(t, err, ErrNetwork)
}
