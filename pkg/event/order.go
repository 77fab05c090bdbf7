package event

import "time"

const (
	OrderNew     = "order:new"
	OrderUpdated = "order:updated"
	OrderStatus  = "order:status"

	AdminJoin    = "join:admin"
	OrderTrack   = "order:track"
	OrderUntrack = "order:untrack"
)

// OrderStatusEvent is pushed to the tracking room of a single order whenever
// the server moves it to a new status. OrderID is only set by servers that
// share one connection across several tracked orders.
type OrderStatusEvent struct {
	OrderID       string    `json:"orderId,omitempty"`
	Status        string    `json:"status"`
	EstimatedTime *int      `json:"estimatedTime,omitempty"`
	Notes         string    `json:"notes,omitempty"`
	Timestamp     time.Time `json:"timestamp"`
}
