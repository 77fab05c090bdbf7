package checkout

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/aquamarinepk/aqm"
	"github.com/shopspring/decimal"

	"github.com/appetiteclub/storefront/services/storefront/internal/api"
	"github.com/appetiteclub/storefront/services/storefront/internal/cart"
	"github.com/appetiteclub/storefront/services/storefront/internal/notice"
)

var (
	ErrEmptyCart          = errors.New("cart is empty")
	ErrCheckoutInProgress = errors.New("checkout already in progress")
	ErrCouponInvalid      = errors.New("coupon invalid")
	ErrPaymentCancelled   = errors.New("payment cancelled")
	ErrPaymentFailed      = errors.New("payment failed")
	ErrVerificationFailed = errors.New("payment verification failed")
)

type Cart interface {
	Lines() []cart.Line
	Total() decimal.Decimal
	IsEmpty() bool
	Clear(ctx context.Context) error
}

type Overlays interface {
	CloseCheckout()
}

type CouponApplier interface {
	Apply(ctx context.Context, code string, orderAmount decimal.Decimal) (*api.CouponApplication, error)
}

type OrderCreator interface {
	Create(ctx context.Context, in api.CreateOrderInput) (*api.Order, error)
}

type PaymentGateway interface {
	CreateOrder(ctx context.Context, orderID string) (*api.PaymentIntent, error)
	Verify(ctx context.Context, in api.VerifyPaymentInput) error
}

type Deps struct {
	Cart     Cart
	UI       Overlays
	Coupons  CouponApplier
	Orders   OrderCreator
	Payments PaymentGateway
	Notices  notice.Notifier
}

// Merchant is shown inside the payment widget.
type Merchant struct {
	Key         string
	Name        string
	Description string
}

type AppliedCoupon struct {
	Code     string          `json:"code"`
	Discount decimal.Decimal `json:"discount"`
}

type Summary struct {
	Subtotal decimal.Decimal `json:"subtotal"`
	Discount decimal.Decimal `json:"discount"`
	Total    decimal.Decimal `json:"total"`
	Coupon   *AppliedCoupon  `json:"coupon,omitempty"`
	InFlight bool            `json:"inFlight"`
}

type Result struct {
	OrderID      string `json:"orderId"`
	RedirectPath string `json:"redirectPath"`
}

// Orchestrator runs the coupon, order, payment and verification steps.
type Orchestrator struct {
	deps     Deps
	merchant Merchant
	logger   aqm.Logger

	mu       sync.Mutex
	coupon   *AppliedCoupon
	inFlight bool
}

func New(deps Deps, merchant Merchant, logger aqm.Logger) *Orchestrator {
	if logger == nil {
		logger = aqm.NewNoopLogger()
	}
	if deps.Notices == nil {
		deps.Notices = notice.Discard{}
	}
	if merchant.Name == "" {
		merchant.Name = "Dessy69 Cafe"
	}
	if merchant.Description == "" {
		merchant.Description = "Fruit-based Ice Creams & Desserts"
	}
	return &Orchestrator{
		deps:     deps,
		merchant: merchant,
		logger:   logger,
	}
}

// ApplyCoupon validates code against the current cart subtotal.
func (o *Orchestrator) ApplyCoupon(ctx context.Context, code string) (*AppliedCoupon, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	if code == "" {
		return nil, fmt.Errorf("%w: code is required", ErrCouponInvalid)
	}

	res, err := o.deps.Coupons.Apply(ctx, code, o.deps.Cart.Total())
	if err != nil {
		o.deps.Notices.Error("Failed to apply coupon")
		return nil, fmt.Errorf("apply coupon: %w", err)
	}

	if !res.Valid {
		msg := res.Message
		if msg == "" {
			msg = "Invalid coupon"
		}
		o.deps.Notices.Error("%s", msg)
		return nil, fmt.Errorf("%w: %s", ErrCouponInvalid, msg)
	}

	applied := &AppliedCoupon{Code: code, Discount: res.Discount}
	o.mu.Lock()
	o.coupon = applied
	o.mu.Unlock()

	if res.Message != "" {
		o.deps.Notices.Success("%s", res.Message)
	}
	cp := *applied
	return &cp, nil
}

func (o *Orchestrator) RemoveCoupon() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.coupon = nil
}

func (o *Orchestrator) Summary() Summary {
	subtotal := o.deps.Cart.Total()

	o.mu.Lock()
	defer o.mu.Unlock()

	s := Summary{Subtotal: subtotal, Discount: decimal.Zero, InFlight: o.inFlight}
	if o.coupon != nil {
		cp := *o.coupon
		s.Coupon = &cp
		s.Discount = cp.Discount
	}
	s.Total = subtotal.Sub(s.Discount)
	if s.Total.IsNegative() {
		s.Total = decimal.Zero
	}
	return s
}

func (o *Orchestrator) InFlight() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.inFlight
}

// Submit places the order and takes the shopper through payment. The order
// and verification calls are not cancelled with ctx so a dropped UI does not
// leave a paid order unverified.
func (o *Orchestrator) Submit(ctx context.Context, form CustomerForm, widget Widget) (*Result, error) {
	o.mu.Lock()
	if o.inFlight {
		o.mu.Unlock()
		return nil, ErrCheckoutInProgress
	}
	o.inFlight = true
	var couponCode string
	if o.coupon != nil {
		couponCode = o.coupon.Code
	}
	o.mu.Unlock()

	defer func() {
		o.mu.Lock()
		o.inFlight = false
		o.mu.Unlock()
	}()

	if errs := form.Validate(); len(errs) > 0 {
		return nil, errs
	}
	if o.deps.Cart.IsEmpty() {
		return nil, ErrEmptyCart
	}

	detached := context.WithoutCancel(ctx)
	details := form.details()

	order, err := o.deps.Orders.Create(detached, api.CreateOrderInput{
		CustomerDetails: details,
		Items:           orderLines(o.deps.Cart.Lines()),
		CouponCode:      couponCode,
		Notes:           strings.TrimSpace(form.Notes),
	})
	if err != nil {
		o.deps.Notices.Error("Failed to create order. Please try again.")
		return nil, fmt.Errorf("create order: %w", err)
	}

	log := o.logger.With("order_id", order.OrderID)
	log.Info("order created")

	intent, err := o.deps.Payments.CreateOrder(detached, order.OrderID)
	if err != nil {
		o.deps.Notices.Error("Payment failed. Please try again.")
		return nil, fmt.Errorf("%w: %w", ErrPaymentFailed, err)
	}

	key := intent.KeyID
	if key == "" {
		key = o.merchant.Key
	}

	result, err := widget.Open(ctx, WidgetOptions{
		Key:            key,
		Amount:         intent.Amount,
		Currency:       intent.Currency,
		GatewayOrderID: intent.ID,
		OrderID:        order.OrderID,
		Name:           o.merchant.Name,
		Description:    o.merchant.Description,
		Prefill: Prefill{
			Name:    details.Name,
			Email:   details.Email,
			Contact: details.Phone,
		},
	})
	if err != nil {
		if errors.Is(err, ErrPaymentCancelled) {
			o.deps.Notices.Info("Payment cancelled")
			log.Info("payment cancelled")
			return nil, err
		}
		o.deps.Notices.Error("Payment failed. Please try again.")
		log.Error("payment failed", "error", err)
		if errors.Is(err, ErrPaymentFailed) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %w", ErrPaymentFailed, err)
	}

	err = o.deps.Payments.Verify(detached, api.VerifyPaymentInput{
		OrderID:          order.OrderID,
		GatewayOrderID:   result.GatewayOrderID,
		GatewayPaymentID: result.GatewayPaymentID,
		GatewaySignature: result.GatewaySignature,
	})
	if err != nil {
		o.deps.Notices.Error("Payment verification failed")
		log.Error("payment verification failed", "error", err)
		return nil, fmt.Errorf("%w: %w", ErrVerificationFailed, err)
	}

	o.deps.Notices.Success("Payment successful!")
	log.Info("payment verified")

	if err := o.deps.Cart.Clear(detached); err != nil {
		log.Error("cannot clear cart after payment", "error", err)
	}
	if o.deps.UI != nil {
		o.deps.UI.CloseCheckout()
	}
	o.RemoveCoupon()

	return &Result{
		OrderID:      order.OrderID,
		RedirectPath: "/success?orderId=" + order.OrderID,
	}, nil
}

func orderLines(lines []cart.Line) []api.OrderLine {
	out := make([]api.OrderLine, 0, len(lines))
	for _, l := range lines {
		out = append(out, api.OrderLine{
			MenuItemID:  l.MenuItem.ID,
			Name:        l.MenuItem.Name,
			VariantName: l.Variant.Name,
			Price:       l.Variant.Price,
			Quantity:    l.Quantity,
		})
	}
	return out
}
