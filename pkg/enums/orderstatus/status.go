package orderstatus

import (
	"strings"
)

type Status struct {
	Name string
}

func (s Status) Code() string {
	return s.Name
}

func (s Status) Label() string {
	if label, ok := labelOverrides[s.Name]; ok {
		return label
	}
	parts := strings.Split(s.Name, "_")
	for i := range parts {
		if len(parts[i]) > 0 {
			parts[i] = strings.ToUpper(parts[i][:1]) + parts[i][1:]
		}
	}
	return strings.Join(parts, " ")
}

// Next returns the forward-only successor along the fulfilment flow.
// Delivered, cancelled and unknown statuses have none.
func (s Status) Next() (Status, bool) {
	for i, step := range Flow {
		if step.Name == s.Name && i < len(Flow)-1 {
			return Flow[i+1], true
		}
	}
	return Status{}, false
}

func (s Status) IsTerminal() bool {
	return s.Name == Statuses.Delivered.Name || s.Name == Statuses.Cancelled.Name
}

type Enum struct {
	Pending        Status
	Confirmed      Status
	Preparing      Status
	Ready          Status
	OutForDelivery Status
	Delivered      Status
	Cancelled      Status
}

var Statuses = Enum{
	Pending:        Status{Name: "pending"},
	Confirmed:      Status{Name: "confirmed"},
	Preparing:      Status{Name: "preparing"},
	Ready:          Status{Name: "ready"},
	OutForDelivery: Status{Name: "out_for_delivery"},
	Delivered:      Status{Name: "delivered"},
	Cancelled:      Status{Name: "cancelled"},
}

var All = []Status{
	Statuses.Pending,
	Statuses.Confirmed,
	Statuses.Preparing,
	Statuses.Ready,
	Statuses.OutForDelivery,
	Statuses.Delivered,
	Statuses.Cancelled,
}

// Flow is the order in which the admin "advance" affordance moves an order.
var Flow = []Status{
	Statuses.Pending,
	Statuses.Confirmed,
	Statuses.Preparing,
	Statuses.Ready,
	Statuses.OutForDelivery,
	Statuses.Delivered,
}

var labelOverrides = map[string]string{
	"pending":          "Pending Payment",
	"out_for_delivery": "Out for Delivery",
}

// ByName returns the status for a given name, or nil if not found
func ByName(name string) *Status {
	for _, s := range All {
		if s.Name == name {
			return &s
		}
	}
	return nil
}
