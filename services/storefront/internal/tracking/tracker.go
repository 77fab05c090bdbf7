package tracking

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/aquamarinepk/aqm"

	"github.com/appetiteclub/storefront/pkg/event"
	"github.com/appetiteclub/storefront/services/storefront/internal/api"
	"github.com/appetiteclub/storefront/services/storefront/internal/realtime"
	"github.com/appetiteclub/storefront/services/storefront/internal/stream"
)

// Channel is the part of the realtime channel a tracker needs.
type Channel interface {
	Connect(ctx context.Context) error
	Emit(evt string, payload interface{})
	On(evt string, h realtime.Handler) realtime.HandlerID
	Off(evt string, ids ...realtime.HandlerID)
}

// Tracker keeps one order's snapshot current with pushed status events.
type Tracker struct {
	orderID string
	ch      Channel
	logger  aqm.Logger
	updates *stream.Hub[*api.Order]

	mu       sync.Mutex
	snapshot *api.Order
	active   bool
	stopped  bool
	handler  realtime.HandlerID
}

func NewTracker(orderID string, ch Channel, logger aqm.Logger) *Tracker {
	if logger == nil {
		logger = aqm.NewNoopLogger()
	}
	logger = logger.With("order_id", orderID)
	return &Tracker{
		orderID: orderID,
		ch:      ch,
		logger:  logger,
		updates: stream.NewHub[*api.Order]("order-tracking", logger),
	}
}

func (t *Tracker) OrderID() string {
	return t.orderID
}

// Start joins the order's tracking room and listens for status changes.
// The room join is only sent once the channel is connected.
func (t *Tracker) Start(ctx context.Context) error {
	if err := t.ch.Connect(ctx); err != nil {
		return fmt.Errorf("start tracking: %w", err)
	}

	t.mu.Lock()
	if t.active || t.stopped {
		t.mu.Unlock()
		return nil
	}
	t.active = true
	t.mu.Unlock()

	t.ch.Emit(event.OrderTrack, t.orderID)
	id := t.ch.On(event.OrderStatus, t.handle)

	t.mu.Lock()
	t.handler = id
	t.mu.Unlock()

	t.logger.Debug("tracking started")
	return nil
}

// Stop leaves the room. It is safe to call more than once or before Start.
func (t *Tracker) Stop() {
	t.mu.Lock()
	wasActive := t.active
	t.active = false
	t.stopped = true
	id := t.handler
	t.mu.Unlock()

	if !wasActive {
		return
	}

	t.ch.Off(event.OrderStatus, id)
	t.ch.Emit(event.OrderUntrack, t.orderID)
	t.updates.Close()
	t.logger.Debug("tracking stopped")
}

func (t *Tracker) Active() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.active
}

// Seed installs the snapshot fetched from the API.
func (t *Tracker) Seed(order *api.Order) {
	t.mu.Lock()
	if t.stopped {
		t.mu.Unlock()
		return
	}
	t.snapshot = order.Clone()
	cp := t.snapshot.Clone()
	t.mu.Unlock()

	t.updates.Broadcast(cp)
}

// Snapshot returns a copy of the current order, or nil before Seed.
func (t *Tracker) Snapshot() *api.Order {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.snapshot.Clone()
}

// Updates streams a copy of the snapshot after every change. The channel
// closes when the tracker stops.
func (t *Tracker) Updates() (string, <-chan *api.Order) {
	return t.updates.Subscribe()
}

func (t *Tracker) Unsubscribe(id string) {
	t.updates.Unsubscribe(id)
}

func (t *Tracker) handle(data json.RawMessage) {
	var evt event.OrderStatusEvent
	if err := json.Unmarshal(data, &evt); err != nil {
		t.logger.Error("cannot decode order status event", "error", err)
		return
	}
	t.Apply(evt)
}

// Apply merges one status event into the snapshot. Without a snapshot, or
// once stopped, the event is dropped.
func (t *Tracker) Apply(evt event.OrderStatusEvent) {
	t.mu.Lock()
	if !t.active || t.snapshot == nil {
		t.mu.Unlock()
		return
	}
	if evt.OrderID != "" && evt.OrderID != t.orderID {
		t.mu.Unlock()
		return
	}

	t.snapshot.Status = evt.Status
	t.snapshot.EstimatedTime = evt.EstimatedTime
	t.snapshot.TrackingHistory = append(t.snapshot.TrackingHistory, api.TrackingEntry{
		Status:    evt.Status,
		Timestamp: evt.Timestamp,
		Notes:     evt.Notes,
	})
	cp := t.snapshot.Clone()
	t.mu.Unlock()

	t.logger.Info("order status updated", "status", evt.Status)
	t.updates.Broadcast(cp)
}
