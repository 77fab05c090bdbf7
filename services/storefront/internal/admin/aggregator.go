package admin

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

type Channel interface {
	Connect(ctx context.Context) error
	Emit(evt string, payload interface{})
	On(evt string, h realtime.Handler) realtime.HandlerID
	Off(evt string, ids ...realtime.HandlerID)
}

// Notifier shows a desktop notification.
type Notifier interface {
	Notify(title, body string)
}

// LogNotifier writes notifications to the log.
type LogNotifier struct {
	Logger aqm.Logger
}

func (n LogNotifier) Notify(title, body string) {
	if n.Logger == nil {
		return
	}
	n.Logger.Info(title, "body", body)
}

// Aggregator collects orders pushed to the admin room, newest first.
type Aggregator struct {
	ch       Channel
	notifier Notifier
	granted  bool
	logger   aqm.Logger
	feed     *stream.Hub[api.Order]

	// lifeMu serializes Start and Stop so a join is registered once.
	lifeMu sync.Mutex

	mu       sync.Mutex
	orders   []api.Order
	handlers map[string]realtime.HandlerID
	refresh  []func()
}

func NewAggregator(ch Channel, notifier Notifier, granted bool, logger aqm.Logger) *Aggregator {
	if logger == nil {
		logger = aqm.NewNoopLogger()
	}
	if notifier == nil {
		notifier = LogNotifier{Logger: logger}
	}
	return &Aggregator{
		ch:       ch,
		notifier: notifier,
		granted:  granted,
		logger:   logger,
		feed:     stream.NewHub[api.Order]("admin-orders", logger),
		handlers: make(map[string]realtime.HandlerID),
	}
}

// OnRefresh registers fn to run whenever orders change server side.
func (a *Aggregator) OnRefresh(fn func()) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.refresh = append(a.refresh, fn)
}

// Start joins the admin room. Calling it again while running is a no-op.
func (a *Aggregator) Start(ctx context.Context) error {
	a.lifeMu.Lock()
	defer a.lifeMu.Unlock()

	a.mu.Lock()
	running := len(a.handlers) > 0
	a.mu.Unlock()
	if running {
		return nil
	}

	if err := a.ch.Connect(ctx); err != nil {
		return fmt.Errorf("join admin room: %w", err)
	}

	a.ch.Emit(event.AdminJoin, nil)
	newID := a.ch.On(event.OrderNew, a.handleNew)
	updatedID := a.ch.On(event.OrderUpdated, func(json.RawMessage) { a.runRefresh() })

	a.mu.Lock()
	a.handlers[event.OrderNew] = newID
	a.handlers[event.OrderUpdated] = updatedID
	a.mu.Unlock()

	a.logger.Info("joined admin room")
	return nil
}

func (a *Aggregator) Stop(ctx context.Context) error {
	a.lifeMu.Lock()
	defer a.lifeMu.Unlock()

	a.mu.Lock()
	handlers := a.handlers
	a.handlers = make(map[string]realtime.HandlerID)
	a.mu.Unlock()

	for evt, id := range handlers {
		a.ch.Off(evt, id)
	}
	return nil
}

func (a *Aggregator) handleNew(data json.RawMessage) {
	var order api.Order
	if err := json.Unmarshal(data, &order); err != nil {
		a.logger.Error("cannot decode new order", "error", err)
		return
	}

	a.mu.Lock()
	a.orders = append([]api.Order{order}, a.orders...)
	a.mu.Unlock()

	if a.granted {
		a.notifier.Notify("New Order!", fmt.Sprintf("Order %s received", order.OrderID))
	}

	a.feed.Broadcast(order)
	a.runRefresh()
}

func (a *Aggregator) runRefresh() {
	a.mu.Lock()
	hooks := append([]func(){}, a.refresh...)
	a.mu.Unlock()

	for _, fn := range hooks {
		fn()
	}
}

// NewOrders returns the collected orders, most recent first.
func (a *Aggregator) NewOrders() []api.Order {
	a.mu.Lock()
	defer a.mu.Unlock()

	out := make([]api.Order, 0, len(a.orders))
	for _, o := range a.orders {
		out = append(out, *o.Clone())
	}
	return out
}

// ClearNewOrders empties the local list. Nothing is sent to the server.
func (a *Aggregator) ClearNewOrders() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.orders = nil
}

// Subscribe streams every new order as it arrives.
func (a *Aggregator) Subscribe() (string, <-chan api.Order) {
	return a.feed.Subscribe()
}

func (a *Aggregator) Unsubscribe(id string) {
	a.feed.Unsubscribe(id)
}
