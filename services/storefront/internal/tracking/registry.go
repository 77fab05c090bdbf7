package tracking

import (
	"context"
	"fmt"
	"sync"

	"github.com/aquamarinepk/aqm"

	"github.com/appetiteclub/storefront/services/storefront/internal/api"
)

type OrderFetcher interface {
	Get(ctx context.Context, orderID string) (*api.Order, error)
}

// entry is one shared tracker. ready closes once the first viewer has
// started and seeded it; err is set before that when it could not.
type entry struct {
	tracker *Tracker
	refs    int
	ready   chan struct{}
	err     error
}

// Registry shares one Tracker per order among concurrent viewers.
type Registry struct {
	ch     Channel
	orders OrderFetcher
	logger aqm.Logger

	mu      sync.Mutex
	entries map[string]*entry
}

func NewRegistry(ch Channel, orders OrderFetcher, logger aqm.Logger) *Registry {
	if logger == nil {
		logger = aqm.NewNoopLogger()
	}
	return &Registry{
		ch:      ch,
		orders:  orders,
		logger:  logger,
		entries: make(map[string]*entry),
	}
}

// Acquire returns the running tracker for orderID, starting and seeding one
// if needed. Viewers joining a tracker that is still being seeded wait for
// it and share its failure. The caller must call release when done.
func (r *Registry) Acquire(ctx context.Context, orderID string) (*Tracker, func(), error) {
	r.mu.Lock()
	if e, ok := r.entries[orderID]; ok {
		e.refs++
		r.mu.Unlock()
		return r.join(ctx, orderID, e)
	}

	e := &entry{tracker: NewTracker(orderID, r.ch, r.logger), refs: 1, ready: make(chan struct{})}
	r.entries[orderID] = e
	r.mu.Unlock()

	if err := r.seed(ctx, orderID, e.tracker); err != nil {
		r.fail(orderID, e, err)
		return nil, nil, err
	}
	close(e.ready)

	return e.tracker, r.releaser(orderID, e), nil
}

func (r *Registry) seed(ctx context.Context, orderID string, t *Tracker) error {
	if err := t.Start(ctx); err != nil {
		return err
	}
	order, err := r.orders.Get(ctx, orderID)
	if err != nil {
		return fmt.Errorf("fetch order %s: %w", orderID, err)
	}
	t.Seed(order)
	return nil
}

func (r *Registry) join(ctx context.Context, orderID string, e *entry) (*Tracker, func(), error) {
	release := r.releaser(orderID, e)
	select {
	case <-e.ready:
	case <-ctx.Done():
		release()
		return nil, nil, ctx.Err()
	}
	if e.err != nil {
		return nil, nil, e.err
	}
	return e.tracker, release, nil
}

// fail drops a tracker that could not be seeded so the next viewer starts
// a fresh one, and wakes every viewer waiting on it.
func (r *Registry) fail(orderID string, e *entry, err error) {
	r.mu.Lock()
	if r.entries[orderID] == e {
		delete(r.entries, orderID)
	}
	e.err = err
	r.mu.Unlock()

	e.tracker.Stop()
	close(e.ready)
}

func (r *Registry) releaser(orderID string, e *entry) func() {
	var once sync.Once
	return func() {
		once.Do(func() {
			r.mu.Lock()
			e.refs--
			if e.refs > 0 {
				r.mu.Unlock()
				return
			}
			if r.entries[orderID] == e {
				delete(r.entries, orderID)
			}
			r.mu.Unlock()

			e.tracker.Stop()
		})
	}
}

func (r *Registry) Tracking(orderID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.entries[orderID]
	return ok
}

// Stop ends every tracker.
func (r *Registry) Stop(ctx context.Context) error {
	r.mu.Lock()
	entries := r.entries
	r.entries = make(map[string]*entry)
	r.mu.Unlock()

	for _, e := range entries {
		e.tracker.Stop()
	}
	return nil
}
