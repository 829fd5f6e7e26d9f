// Package cart keeps a client-side mirror of the server-held cart.
//
// The server is the only source of truth: every successful mutation is
// followed by a full reload, and the derived view is rebuilt from that
// payload instead of being patched locally. One extra round trip per
// mutation buys the guarantee that displayed totals never diverge from
// what the server confirmed.
package cart

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"

	"github.com/Skotchmaster/shopfront/internal/apierror"
	"github.com/Skotchmaster/shopfront/internal/credstore"
	"github.com/Skotchmaster/shopfront/internal/gateway"
	"github.com/Skotchmaster/shopfront/internal/logging"
	"github.com/Skotchmaster/shopfront/internal/models"
)

var ErrClosed = errors.New("cart synchronizer closed")

type opKind int

const (
	opAdd opKind = iota + 1
	opSetQuantity
	opRemove
	opReload
)

func (k opKind) String() string {
	switch k {
	case opAdd:
		return "add"
	case opSetQuantity:
		return "set-quantity"
	case opRemove:
		return "remove"
	default:
		return "reload"
	}
}

type op struct {
	kind   opKind
	itemID uint
	qty    uint
	ctx    context.Context
	reply  chan error
}

// Synchronizer serializes all cart operations through a single run loop.
// A mutation and the reload it triggers execute as one unit, so two rapid
// UI actions can never interleave their reloads out of order.
type Synchronizer struct {
	gw    *gateway.Client
	creds *credstore.Store
	log   *slog.Logger

	ops       chan op
	quit      chan struct{}
	closeOnce sync.Once

	mu    sync.RWMutex
	view  View
	state State
}

func NewSynchronizer(gw *gateway.Client, creds *credstore.Store, log *slog.Logger) *Synchronizer {
	s := &Synchronizer{
		gw:    gw,
		creds: creds,
		log:   log,
		ops:   make(chan op, 16),
		quit:  make(chan struct{}),
		view:  emptyView(),
		state: StateEmpty,
	}
	go s.run()
	return s
}

// Close stops the run loop. In-flight operations finish; queued ones fail
// with ErrClosed.
func (s *Synchronizer) Close() {
	s.closeOnce.Do(func() { close(s.quit) })
}

// Add puts quantity of an item into the cart. The view is refreshed from
// the server on success and untouched on failure.
func (s *Synchronizer) Add(ctx context.Context, itemID, quantity uint) error {
	if quantity < 1 {
		return fmt.Errorf("add: quantity must be at least 1: %w", apierror.ErrValidation)
	}
	return s.submit(ctx, op{kind: opAdd, itemID: itemID, qty: quantity})
}

// SetQuantity replaces the quantity on an existing line.
func (s *Synchronizer) SetQuantity(ctx context.Context, itemID, quantity uint) error {
	if quantity < 1 {
		return fmt.Errorf("set-quantity: quantity must be at least 1: %w", apierror.ErrValidation)
	}
	return s.submit(ctx, op{kind: opSetQuantity, itemID: itemID, qty: quantity})
}

// Remove deletes a line by item id.
func (s *Synchronizer) Remove(ctx context.Context, itemID uint) error {
	return s.submit(ctx, op{kind: opRemove, itemID: itemID})
}

// Reload fetches the full cart and replaces the view wholesale.
func (s *Synchronizer) Reload(ctx context.Context) error {
	return s.submit(ctx, op{kind: opReload})
}

// Count returns the number of cart lines. Signed out it answers 0
// immediately, with no network call; anonymous browsing must never issue
// authenticated requests that can only fail.
func (s *Synchronizer) Count() int {
	if s.creds.Access() == "" {
		return 0
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.view.Count
}

// Snapshot returns a copy of the current view together with its state, so
// callers can tell fresh data from stale. Signed out it reports an empty
// view and StateUnauthenticated.
func (s *Synchronizer) Snapshot() (View, State) {
	if s.creds.Access() == "" {
		return emptyView(), StateUnauthenticated
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	v := s.view
	v.Lines = append([]Line(nil), s.view.Lines...)
	return v, s.state
}

func (s *Synchronizer) submit(ctx context.Context, o op) error {
	// Cheap pre-flight guard: without a token the server can only answer
	// 401, so do not go to the network at all.
	if s.creds.Access() == "" {
		return fmt.Errorf("cart %s: %w", o.kind, apierror.ErrAuthRequired)
	}

	select {
	case <-s.quit:
		return ErrClosed
	default:
	}

	o.ctx = ctx
	o.reply = make(chan error, 1)

	select {
	case s.ops <- o:
	case <-s.quit:
		return ErrClosed
	case <-ctx.Done():
		return apierror.Network(ctx.Err())
	}

	select {
	case err := <-o.reply:
		return err
	case <-ctx.Done():
		// The run loop still finishes the operation; only the caller
		// stops waiting.
		return apierror.Network(ctx.Err())
	case <-s.quit:
		// Close raced the enqueue: the run loop may have drained and
		// exited before our op landed, so nobody will ever reply.
		// Take a result that is already in, otherwise give up.
		select {
		case err := <-o.reply:
			return err
		default:
			return ErrClosed
		}
	}
}

func (s *Synchronizer) run() {
	for {
		select {
		case <-s.quit:
			s.drain()
			return
		case o := <-s.ops:
			o.reply <- s.process(o)
		}
	}
}

func (s *Synchronizer) drain() {
	for {
		select {
		case o := <-s.ops:
			o.reply <- ErrClosed
		default:
			return
		}
	}
}

func (s *Synchronizer) process(o op) error {
	if o.kind == opReload {
		return s.reload(o.ctx)
	}

	var (
		resp *gateway.Response
		err  error
	)
	switch o.kind {
	case opAdd:
		body := map[string]uint{"item_id": o.itemID, "quantity": o.qty}
		resp, err = s.gw.Do(o.ctx, http.MethodPost, "/api/cart/", body, true)
	case opSetQuantity:
		body := map[string]uint{"quantity": o.qty}
		resp, err = s.gw.Do(o.ctx, http.MethodPut, fmt.Sprintf("/api/cart/%d/", o.itemID), body, true)
	case opRemove:
		resp, err = s.gw.Do(o.ctx, http.MethodDelete, fmt.Sprintf("/api/cart/%d/", o.itemID), nil, true)
	}
	if err != nil {
		return fmt.Errorf("cart %s: %w", o.kind, err)
	}
	if err := resp.Err(); err != nil {
		return fmt.Errorf("cart %s: %w", o.kind, err)
	}

	// The server accepted the write; only a fresh fetch may change the view.
	return s.reload(o.ctx)
}

func (s *Synchronizer) reload(ctx context.Context) error {
	resp, err := s.gw.Do(ctx, http.MethodGet, "/api/cart/", nil, true)
	if err != nil {
		return s.markStale(ctx, fmt.Errorf("cart reload: %w", err))
	}
	if err := resp.Err(); err != nil {
		return s.markStale(ctx, fmt.Errorf("cart reload: %w", err))
	}

	var lines []models.CartLine
	if err := resp.DecodeJSON(&lines); err != nil {
		return s.markStale(ctx, fmt.Errorf("cart reload: %w", err))
	}

	v := buildView(lines)
	s.mu.Lock()
	s.view = v
	s.state = StateLoaded
	s.mu.Unlock()
	return nil
}

// markStale keeps the last-known view but flags it, so callers never pass
// old totals off as current.
func (s *Synchronizer) markStale(ctx context.Context, err error) error {
	s.mu.Lock()
	s.state = StateStale
	s.mu.Unlock()
	logging.FromContext(ctx, s.log).Warn("cart view is stale", "error", err)
	return err
}
