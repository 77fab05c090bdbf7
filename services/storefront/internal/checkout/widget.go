package checkout

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/shopspring/decimal"
)

var (
	ErrNoPendingPayment = errors.New("no payment awaiting a result")
	ErrWidgetBusy       = errors.New("payment widget already open")
)

type Prefill struct {
	Name    string `json:"name"`
	Email   string `json:"email,omitempty"`
	Contact string `json:"contact"`
}

// WidgetOptions is everything the hosted payment widget needs to open.
type WidgetOptions struct {
	Key            string          `json:"key"`
	Amount         decimal.Decimal `json:"amount"`
	Currency       string          `json:"currency"`
	GatewayOrderID string          `json:"orderId"`
	OrderID        string          `json:"storeOrderId"`
	Name           string          `json:"name"`
	Description    string          `json:"description"`
	Prefill        Prefill         `json:"prefill"`
}

// GatewayResult is what the widget hands back after a successful payment.
type GatewayResult struct {
	GatewayOrderID   string `json:"razorpayOrderId"`
	GatewayPaymentID string `json:"razorpayPaymentId"`
	GatewaySignature string `json:"razorpaySignature"`
}

// Widget opens the hosted payment UI and waits for its outcome. It returns
// ErrPaymentCancelled when the shopper dismisses it and an ErrPaymentFailed
// error when the gateway rejects the payment.
type Widget interface {
	Open(ctx context.Context, opts WidgetOptions) (GatewayResult, error)
}

type widgetOutcome struct {
	result GatewayResult
	err    error
}

type pendingPayment struct {
	opts    WidgetOptions
	outcome chan widgetOutcome
}

// HostedWidget parks the widget options for a remote UI and blocks Open until
// that UI reports back through Complete, Cancel or Fail.
type HostedWidget struct {
	mu      sync.Mutex
	pending *pendingPayment
	opened  chan WidgetOptions
}

func NewHostedWidget() *HostedWidget {
	return &HostedWidget{opened: make(chan WidgetOptions, 1)}
}

func (w *HostedWidget) Open(ctx context.Context, opts WidgetOptions) (GatewayResult, error) {
	p := &pendingPayment{opts: opts, outcome: make(chan widgetOutcome, 1)}

	w.mu.Lock()
	if w.pending != nil {
		w.mu.Unlock()
		return GatewayResult{}, ErrWidgetBusy
	}
	w.pending = p
	w.mu.Unlock()

	select {
	case w.opened <- opts:
	default:
	}

	select {
	case out := <-p.outcome:
		return out.result, out.err
	case <-ctx.Done():
		w.mu.Lock()
		if w.pending == p {
			w.pending = nil
		}
		w.mu.Unlock()
		return GatewayResult{}, ctx.Err()
	}
}

// Opened delivers the options each time a payment starts waiting.
func (w *HostedWidget) Opened() <-chan WidgetOptions {
	return w.opened
}

// Drain discards an Opened signal nobody picked up.
func (w *HostedWidget) Drain() {
	select {
	case <-w.opened:
	default:
	}
}

func (w *HostedWidget) Pending() (WidgetOptions, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.pending == nil {
		return WidgetOptions{}, false
	}
	return w.pending.opts, true
}

func (w *HostedWidget) Complete(result GatewayResult) error {
	return w.resolve(widgetOutcome{result: result})
}

func (w *HostedWidget) Cancel() error {
	return w.resolve(widgetOutcome{err: ErrPaymentCancelled})
}

func (w *HostedWidget) Fail(reason string) error {
	if reason == "" {
		reason = "Payment failed"
	}
	return w.resolve(widgetOutcome{err: fmt.Errorf("%w: %s", ErrPaymentFailed, reason)})
}

func (w *HostedWidget) resolve(out widgetOutcome) error {
	w.mu.Lock()
	p := w.pending
	w.pending = nil
	w.mu.Unlock()

	if p == nil {
		return ErrNoPendingPayment
	}
	p.outcome <- out
	return nil
}
