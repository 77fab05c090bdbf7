package admin

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/aquamarinepk/aqm"

	"github.com/appetiteclub/storefront/pkg/enums/orderstatus"
	"github.com/appetiteclub/storefront/services/storefront/internal/api"
	"github.com/appetiteclub/storefront/services/storefront/internal/notice"
)

const (
	recentOrdersLimit    = 3
	defaultEstimatedTime = 30
)

var (
	ErrNoNextStatus  = errors.New("order has no next status")
	ErrUnknownStatus = errors.New("unknown order status")
)

type OrderService interface {
	Get(ctx context.Context, orderID string) (*api.Order, error)
	List(ctx context.Context, filter api.OrderFilter) ([]api.Order, error)
	UpdateStatus(ctx context.Context, orderID string, in api.UpdateOrderStatusInput) (*api.Order, error)
	Stats(ctx context.Context) (*api.OrderStats, error)
}

type View struct {
	Stats        api.OrderStats `json:"stats"`
	RecentOrders []api.Order    `json:"recentOrders"`
}

// Dashboard caches the admin overview until orders change.
type Dashboard struct {
	orders  OrderService
	notices notice.Notifier
	logger  aqm.Logger

	mu     sync.Mutex
	cached *View
}

func NewDashboard(orders OrderService, notices notice.Notifier, logger aqm.Logger) *Dashboard {
	if logger == nil {
		logger = aqm.NewNoopLogger()
	}
	if notices == nil {
		notices = notice.Discard{}
	}
	return &Dashboard{
		orders:  orders,
		notices: notices,
		logger:  logger,
	}
}

func (d *Dashboard) View(ctx context.Context) (View, error) {
	d.mu.Lock()
	if d.cached != nil {
		v := copyView(*d.cached)
		d.mu.Unlock()
		return v, nil
	}
	d.mu.Unlock()

	stats, err := d.orders.Stats(ctx)
	if err != nil {
		return View{}, fmt.Errorf("dashboard stats: %w", err)
	}
	list, err := d.orders.List(ctx, api.OrderFilter{})
	if err != nil {
		return View{}, fmt.Errorf("dashboard orders: %w", err)
	}
	if len(list) > recentOrdersLimit {
		list = list[:recentOrdersLimit]
	}

	v := View{Stats: *stats, RecentOrders: list}

	d.mu.Lock()
	d.cached = &v
	d.mu.Unlock()

	return copyView(v), nil
}

// Invalidate drops the cached view.
func (d *Dashboard) Invalidate() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.cached = nil
}

// Advance moves an order one step forward along the status flow.
func (d *Dashboard) Advance(ctx context.Context, orderID string, estimatedTime *int) (*api.Order, error) {
	order, err := d.orders.Get(ctx, orderID)
	if err != nil {
		return nil, err
	}

	current := orderstatus.ByName(order.Status)
	if current == nil {
		return nil, fmt.Errorf("%w: %s", ErrUnknownStatus, order.Status)
	}
	next, ok := current.Next()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNoNextStatus, current.Label())
	}

	eta := estimatedTime
	if eta == nil {
		fallback := defaultEstimatedTime
		if order.EstimatedTime != nil {
			fallback = *order.EstimatedTime
		}
		eta = &fallback
	}

	updated, err := d.orders.UpdateStatus(ctx, orderID, api.UpdateOrderStatusInput{
		Status:        next.Code(),
		EstimatedTime: eta,
	})
	if err != nil {
		return nil, err
	}

	d.notices.Success("Order status updated")
	d.logger.Info("order advanced", "order_id", orderID, "from", current.Code(), "to", next.Code())
	d.Invalidate()
	return updated, nil
}

func copyView(v View) View {
	out := View{Stats: v.Stats, RecentOrders: make([]api.Order, 0, len(v.RecentOrders))}
	for _, o := range v.RecentOrders {
		out.RecentOrders = append(out.RecentOrders, *o.Clone())
	}
	return out
}
