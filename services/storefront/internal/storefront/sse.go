package storefront

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/aquamarinepk/aqm"

	"github.com/appetiteclub/storefront/pkg/enums/orderstatus"
	"github.com/appetiteclub/storefront/pkg/enums/paymentstatus"
	"github.com/appetiteclub/storefront/services/storefront/internal/api"
)

const keepaliveInterval = 30 * time.Second

// OrderSnapshot is the tracked order plus the labels the tracking page shows.
type OrderSnapshot struct {
	*api.Order
	StatusLabel        string `json:"statusLabel"`
	PaymentStatusLabel string `json:"paymentStatusLabel"`
	Terminal           bool   `json:"terminal"`
}

func newOrderSnapshot(order *api.Order) OrderSnapshot {
	snap := OrderSnapshot{Order: order, StatusLabel: order.Status}
	if s := orderstatus.ByName(order.Status); s != nil {
		snap.StatusLabel = s.Label()
		snap.Terminal = s.IsTerminal()
	}
	if s := paymentstatus.ByName(order.PaymentStatus); s != nil {
		snap.PaymentStatusLabel = s.Label()
	}
	return snap
}

// TrackOrder streams the tracked order as order-snapshot events, starting
// with the snapshot fetched when tracking began.
func (h *Handler) TrackOrder(w http.ResponseWriter, r *http.Request) {
	log := h.log(r)
	ctx := r.Context()
	orderID := pathParam(r, "orderID")

	tracker, release, err := h.tracking.Acquire(ctx, orderID)
	if err != nil {
		h.respondErr(w, log, err, "Could not track order")
		return
	}
	defer release()

	subscriberID, updates := tracker.Updates()
	defer tracker.Unsubscribe(subscriberID)

	log.Info("order tracking stream opened", "order_id", orderID, "subscriber_id", subscriberID)
	startSSE(w)

	if snap := tracker.Snapshot(); snap != nil {
		sendSSEJSON(w, log, "order-snapshot", newOrderSnapshot(snap))
	}

	ticker := time.NewTicker(keepaliveInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info("order tracking stream closed", "order_id", orderID, "subscriber_id", subscriberID)
			return

		case <-ticker.C:
			keepalive(w)

		case order, ok := <-updates:
			if !ok {
				log.Info("order tracking stopped", "order_id", orderID)
				return
			}
			sendSSEJSON(w, log, "order-snapshot", newOrderSnapshot(order))
		}
	}
}

// StreamNewOrders pushes every order the admin room announces as order-new.
func (h *Handler) StreamNewOrders(w http.ResponseWriter, r *http.Request) {
	log := h.log(r)
	ctx := r.Context()

	subscriberID, orders := h.admin.Aggregator.Subscribe()
	defer h.admin.Aggregator.Unsubscribe(subscriberID)

	log.Info("admin order stream opened", "subscriber_id", subscriberID)
	startSSE(w)

	ticker := time.NewTicker(keepaliveInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info("admin order stream closed", "subscriber_id", subscriberID)
			return

		case <-ticker.C:
			keepalive(w)

		case order, ok := <-orders:
			if !ok {
				return
			}
			sendSSEJSON(w, log, "order-new", order)
		}
	}
}

func startSSE(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	fmt.Fprintf(w, ": connected\n\n")
	// Reconnect delay for the browser, in milliseconds.
	fmt.Fprintf(w, "retry: 2000\n\n")
	flush(w)
}

func keepalive(w http.ResponseWriter) {
	fmt.Fprintf(w, ": keepalive\n\n")
	flush(w)
}

func sendSSEJSON(w http.ResponseWriter, log aqm.Logger, eventType string, v interface{}) {
	data, err := json.Marshal(v)
	if err != nil {
		log.Error("cannot encode stream event", "event", eventType, "error", err)
		return
	}
	sendSSEEvent(w, eventType, string(data))
}

// sendSSEEvent writes one event, prefixing every data line.
func sendSSEEvent(w http.ResponseWriter, eventType string, data string) {
	data = strings.TrimSpace(data)

	fmt.Fprintf(w, "event: %s\n", eventType)
	for _, line := range strings.Split(data, "\n") {
		fmt.Fprintf(w, "data: %s\n", line)
	}
	fmt.Fprintf(w, "\n")

	flush(w)
}

func flush(w http.ResponseWriter) {
	if f, ok := w.(http.Flusher); ok {
		f.Flush()
	}
}
