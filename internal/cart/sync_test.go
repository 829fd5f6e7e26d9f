package cart

import (
	"context"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/Skotchmaster/shopfront/internal/apierror"
	"github.com/Skotchmaster/shopfront/internal/auth"
	"github.com/Skotchmaster/shopfront/internal/credstore"
	"github.com/Skotchmaster/shopfront/internal/gateway"
	"github.com/Skotchmaster/shopfront/internal/logging"
	"github.com/Skotchmaster/shopfront/internal/shoptest"
)

type testEnv struct {
	T     *testing.T
	Srv   *shoptest.Server
	Creds *credstore.Store
	GW    *gateway.Client
	Sync  *Synchronizer
	Auth  *auth.Client
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	srv := shoptest.New(t)
	creds, err := credstore.Open(":memory:")
	require.NoError(t, err)

	log := logging.New(io.Discard, "error")
	gw := gateway.NewClient(srv.URL(), creds, 2*time.Second, log)
	s := NewSynchronizer(gw, creds, log)
	t.Cleanup(s.Close)

	return &testEnv{
		T:     t,
		Srv:   srv,
		Creds: creds,
		GW:    gw,
		Sync:  s,
		Auth:  &auth.Client{GW: gw, Creds: creds, Log: log},
	}
}

func (env *testEnv) login() {
	env.T.Helper()
	env.Srv.SeedUser("alice", "password123")
	require.NoError(env.T, env.Auth.Login(context.Background(), "alice", "password123"))
}

func TestUnauthenticatedAddShortCircuits(t *testing.T) {
	env := newTestEnv(t)

	err := env.Sync.Add(context.Background(), 1, 1)
	require.ErrorIs(t, err, apierror.ErrAuthRequired)
	require.Zero(t, env.Srv.Hits(), "no network call may be issued without a token")
}

func TestUnauthenticatedCountIsZeroWithoutNetwork(t *testing.T) {
	env := newTestEnv(t)

	require.Zero(t, env.Sync.Count())
	require.Zero(t, env.Srv.Hits())

	v, st := env.Sync.Snapshot()
	require.Equal(t, StateUnauthenticated, st)
	require.Empty(t, v.Lines)
	require.True(t, v.GrandTotal.IsZero())
	require.Zero(t, env.Srv.Hits())
}

func TestAddReloadsViewFromServer(t *testing.T) {
	env := newTestEnv(t)
	env.login()
	item := env.Srv.SeedItem("Dune", "books", "19.90")

	require.NoError(t, env.Sync.Add(context.Background(), item.ID, 2))

	v, st := env.Sync.Snapshot()
	require.Equal(t, StateLoaded, st)
	require.Equal(t, 1, v.Count)
	require.Equal(t, "Dune", v.Lines[0].Item.Name)
	require.Equal(t, uint(2), v.Lines[0].Quantity)
	require.True(t, v.GrandTotal.Equal(decimal.RequireFromString("39.80")))
	require.Equal(t, 1, env.Sync.Count())
}

func TestSetQuantityRecomputesTotals(t *testing.T) {
	env := newTestEnv(t)
	env.login()
	item := env.Srv.SeedItem("Lamp", "home", "100.00")

	require.NoError(t, env.Sync.Add(context.Background(), item.ID, 2))
	require.NoError(t, env.Sync.SetQuantity(context.Background(), item.ID, 3))

	v, st := env.Sync.Snapshot()
	require.Equal(t, StateLoaded, st)
	require.Equal(t, 1, v.Count)
	require.Equal(t, uint(3), v.Lines[0].Quantity)
	require.True(t, v.GrandTotal.Equal(decimal.NewFromInt(300)))
}

func TestRemoveOnlyLineEmptiesView(t *testing.T) {
	env := newTestEnv(t)
	env.login()
	item := env.Srv.SeedItem("Mug", "kitchen", "7.00")

	require.NoError(t, env.Sync.Add(context.Background(), item.ID, 1))
	require.NoError(t, env.Sync.Remove(context.Background(), item.ID))

	v, st := env.Sync.Snapshot()
	require.Equal(t, StateLoaded, st)
	require.Equal(t, 0, v.Count)
	require.Empty(t, v.Lines)
	require.True(t, v.GrandTotal.IsZero())
}

func TestFailedAddLeavesViewUntouched(t *testing.T) {
	env := newTestEnv(t)
	env.login()
	item := env.Srv.SeedItem("Dune", "books", "19.90")
	require.NoError(t, env.Sync.Add(context.Background(), item.ID, 1))

	before, stBefore := env.Sync.Snapshot()

	err := env.Sync.Add(context.Background(), 9999, 1)
	require.ErrorIs(t, err, apierror.ErrValidation)

	after, stAfter := env.Sync.Snapshot()
	require.Equal(t, before, after)
	require.Equal(t, stBefore, stAfter)
}

func TestFailedSetQuantityForMissingLine(t *testing.T) {
	env := newTestEnv(t)
	env.login()
	item := env.Srv.SeedItem("Dune", "books", "19.90")
	require.NoError(t, env.Sync.Add(context.Background(), item.ID, 2))

	before, _ := env.Sync.Snapshot()

	err := env.Sync.SetQuantity(context.Background(), 9999, 3)
	require.ErrorIs(t, err, apierror.ErrValidation)

	after, _ := env.Sync.Snapshot()
	require.Equal(t, before, after)
}

func TestQuantityValidatedBeforeNetwork(t *testing.T) {
	env := newTestEnv(t)
	env.login()
	hits := env.Srv.Hits()

	require.ErrorIs(t, env.Sync.Add(context.Background(), 1, 0), apierror.ErrValidation)
	require.ErrorIs(t, env.Sync.SetQuantity(context.Background(), 1, 0), apierror.ErrValidation)
	require.Equal(t, hits, env.Srv.Hits())
}

func TestReloadIsIdempotent(t *testing.T) {
	env := newTestEnv(t)
	env.login()
	item := env.Srv.SeedItem("Dune", "books", "19.90")
	require.NoError(t, env.Sync.Add(context.Background(), item.ID, 2))

	require.NoError(t, env.Sync.Reload(context.Background()))
	first, _ := env.Sync.Snapshot()

	require.NoError(t, env.Sync.Reload(context.Background()))
	second, _ := env.Sync.Snapshot()

	require.Equal(t, first, second)
}

func TestFailedReloadMarksStaleAndKeepsView(t *testing.T) {
	env := newTestEnv(t)
	env.login()
	item := env.Srv.SeedItem("Dune", "books", "19.90")
	require.NoError(t, env.Sync.Add(context.Background(), item.ID, 2))
	before, _ := env.Sync.Snapshot()

	env.Srv.FailNextCartReads(1)
	err := env.Sync.Reload(context.Background())
	require.ErrorIs(t, err, apierror.ErrServer)

	v, st := env.Sync.Snapshot()
	require.Equal(t, StateStale, st, "a failed reload must be flagged, not passed off as fresh")
	require.Equal(t, before.Lines, v.Lines, "last known view is preserved")

	// The next successful reload recovers.
	require.NoError(t, env.Sync.Reload(context.Background()))
	_, st = env.Sync.Snapshot()
	require.Equal(t, StateLoaded, st)
}

func TestRejectedTokenSurfacesAuthRejected(t *testing.T) {
	env := newTestEnv(t)
	require.NoError(t, env.Creds.SetTokens("not-a-real-token", ""))

	err := env.Sync.Reload(context.Background())
	require.ErrorIs(t, err, apierror.ErrAuthRejected)
}

func TestRapidMutationsSerialize(t *testing.T) {
	env := newTestEnv(t)
	env.login()
	item := env.Srv.SeedItem("Dune", "books", "10.00")

	// Each add increments the server-side quantity. Fired concurrently,
	// the run loop must still apply them one mutation+reload at a time.
	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			require.NoError(t, env.Sync.Add(context.Background(), item.ID, 1))
		}()
	}
	wg.Wait()

	v, st := env.Sync.Snapshot()
	require.Equal(t, StateLoaded, st)
	require.Equal(t, 1, v.Count)
	require.Equal(t, uint(5), v.Lines[0].Quantity)
	require.True(t, v.GrandTotal.Equal(decimal.NewFromInt(50)))
}

func TestReloadPicksUpPreexistingServerCart(t *testing.T) {
	env := newTestEnv(t)
	user := env.Srv.SeedUser("alice", "password123")
	item := env.Srv.SeedItem("Dune", "books", "19.90")
	env.Srv.SeedCartLine(user, item, 2)

	require.NoError(t, env.Auth.Login(context.Background(), "alice", "password123"))
	require.Zero(t, env.Sync.Count(), "mirror starts empty until a reload runs")

	require.NoError(t, env.Sync.Reload(context.Background()))
	require.Equal(t, 1, env.Sync.Count())

	v, st := env.Sync.Snapshot()
	require.Equal(t, StateLoaded, st)
	require.Equal(t, uint(2), v.Lines[0].Quantity)
	require.True(t, v.GrandTotal.Equal(decimal.RequireFromString("39.80")))
}

func TestCloseDuringSubmitNeverHangs(t *testing.T) {
	env := newTestEnv(t)
	env.login()
	log := logging.New(io.Discard, "error")

	// Close racing an in-flight submit: the run loop can drain and exit
	// before the op lands in the buffer, so the caller must not be left
	// waiting on a reply that will never come.
	for i := 0; i < 200; i++ {
		s := NewSynchronizer(env.GW, env.Creds, log)

		done := make(chan error, 1)
		go func() {
			done <- s.Reload(context.Background())
		}()
		s.Close()

		select {
		case <-done:
		case <-time.After(5 * time.Second):
			t.Fatalf("iteration %d: reload hung after Close", i)
		}
	}
}

func TestClosedSynchronizerRefusesWork(t *testing.T) {
	env := newTestEnv(t)
	env.login()

	env.Sync.Close()
	err := env.Sync.Reload(context.Background())
	require.ErrorIs(t, err, ErrClosed)
}
