package checkout

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/aquamarinepk/aqm"
	"github.com/shopspring/decimal"

	"github.com/appetiteclub/storefront/services/storefront/internal/api"
	"github.com/appetiteclub/storefront/services/storefront/internal/cart"
	"github.com/appetiteclub/storefront/services/storefront/internal/clientstate"
	"github.com/appetiteclub/storefront/services/storefront/internal/notice"
)

type MockCouponApplier struct {
	ApplyFunc func(ctx context.Context, code string, amount decimal.Decimal) (*api.CouponApplication, error)
}

func (m *MockCouponApplier) Apply(ctx context.Context, code string, amount decimal.Decimal) (*api.CouponApplication, error) {
	return m.ApplyFunc(ctx, code, amount)
}

type MockOrderCreator struct {
	CreateFunc func(ctx context.Context, in api.CreateOrderInput) (*api.Order, error)
}

func (m *MockOrderCreator) Create(ctx context.Context, in api.CreateOrderInput) (*api.Order, error) {
	return m.CreateFunc(ctx, in)
}

type MockPaymentGateway struct {
	CreateOrderFunc func(ctx context.Context, orderID string) (*api.PaymentIntent, error)
	VerifyFunc      func(ctx context.Context, in api.VerifyPaymentInput) error
}

func (m *MockPaymentGateway) CreateOrder(ctx context.Context, orderID string) (*api.PaymentIntent, error) {
	return m.CreateOrderFunc(ctx, orderID)
}

func (m *MockPaymentGateway) Verify(ctx context.Context, in api.VerifyPaymentInput) error {
	return m.VerifyFunc(ctx, in)
}

type MockWidget struct {
	OpenFunc func(ctx context.Context, opts WidgetOptions) (GatewayResult, error)
}

func (m *MockWidget) Open(ctx context.Context, opts WidgetOptions) (GatewayResult, error) {
	return m.OpenFunc(ctx, opts)
}

type MockOverlays struct {
	closed int
}

func (m *MockOverlays) CloseCheckout() {
	m.closed++
}

type fixture struct {
	cart     *cart.Cart
	ui       *MockOverlays
	coupons  *MockCouponApplier
	orders   *MockOrderCreator
	payments *MockPaymentGateway
	feed     *notice.Feed
	created  []api.CreateOrderInput
	verified []api.VerifyPaymentInput
	o        *Orchestrator
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		cart: cart.New(clientstate.NewMemoryStore(), nil, nil),
		ui:   &MockOverlays{},
		feed: notice.NewFeed(),
	}
	f.coupons = &MockCouponApplier{ApplyFunc: func(ctx context.Context, code string, amount decimal.Decimal) (*api.CouponApplication, error) {
		return &api.CouponApplication{Valid: true, Discount: decimal.NewFromInt(50), Message: "Coupon applied successfully"}, nil
	}}
	f.orders = &MockOrderCreator{CreateFunc: func(ctx context.Context, in api.CreateOrderInput) (*api.Order, error) {
		f.created = append(f.created, in)
		return &api.Order{OrderID: "ORD42", Status: "pending"}, nil
	}}
	f.payments = &MockPaymentGateway{
		CreateOrderFunc: func(ctx context.Context, orderID string) (*api.PaymentIntent, error) {
			return &api.PaymentIntent{ID: "gw_1", Amount: decimal.NewFromInt(35000), Currency: "INR", OrderID: orderID}, nil
		},
		VerifyFunc: func(ctx context.Context, in api.VerifyPaymentInput) error {
			f.verified = append(f.verified, in)
			return nil
		},
	}
	f.o = New(Deps{
		Cart:     f.cart,
		UI:       f.ui,
		Coupons:  f.coupons,
		Orders:   f.orders,
		Payments: f.payments,
		Notices:  f.feed,
	}, Merchant{Key: "rzp_test"}, aqm.NewNoopLogger())

	item := api.MenuItem{ID: "m1", Name: "Mango Sundae", IsAvailable: true}
	variant := api.Variant{Name: "Large", Price: decimal.NewFromInt(200), IsAvailable: true}
	if err := f.cart.AddItem(context.Background(), item, variant, 2); err != nil {
		t.Fatalf("AddItem() error = %v", err)
	}
	f.feed.Drain()
	return f
}

func validForm() CustomerForm {
	return CustomerForm{Name: "Asha", Phone: "9876543210", Email: "asha@example.com"}
}

func paidWidget() *MockWidget {
	return &MockWidget{OpenFunc: func(ctx context.Context, opts WidgetOptions) (GatewayResult, error) {
		return GatewayResult{GatewayOrderID: opts.GatewayOrderID, GatewayPaymentID: "pay_1", GatewaySignature: "sig"}, nil
	}}
}

func TestSubmitSuccess(t *testing.T) {
	f := newFixture(t)
	if _, err := f.o.ApplyCoupon(context.Background(), "save50"); err != nil {
		t.Fatalf("ApplyCoupon() error = %v", err)
	}

	var opened WidgetOptions
	widget := &MockWidget{OpenFunc: func(ctx context.Context, opts WidgetOptions) (GatewayResult, error) {
		opened = opts
		return GatewayResult{GatewayOrderID: opts.GatewayOrderID, GatewayPaymentID: "pay_1", GatewaySignature: "sig"}, nil
	}}

	res, err := f.o.Submit(context.Background(), validForm(), widget)
	if err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	if res.OrderID != "ORD42" || res.RedirectPath != "/success?orderId=ORD42" {
		t.Errorf("Submit() = %+v", res)
	}

	if len(f.created) != 1 {
		t.Fatalf("orders created = %d, want 1", len(f.created))
	}
	in := f.created[0]
	if in.CouponCode != "SAVE50" {
		t.Errorf("CouponCode = %q, want SAVE50", in.CouponCode)
	}
	if len(in.Items) != 1 || in.Items[0].MenuItemID != "m1" || in.Items[0].Quantity != 2 || in.Items[0].VariantName != "Large" {
		t.Errorf("Items = %+v", in.Items)
	}

	if opened.Key != "rzp_test" || opened.GatewayOrderID != "gw_1" || opened.Prefill.Contact != "9876543210" {
		t.Errorf("widget options = %+v", opened)
	}
	if opened.Name != "Dessy69 Cafe" {
		t.Errorf("merchant name = %q", opened.Name)
	}

	if len(f.verified) != 1 || f.verified[0].GatewayPaymentID != "pay_1" || f.verified[0].OrderID != "ORD42" {
		t.Errorf("verified = %+v", f.verified)
	}
	if !f.cart.IsEmpty() {
		t.Error("cart not cleared after success")
	}
	if f.ui.closed != 1 {
		t.Errorf("checkout closed %d times, want 1", f.ui.closed)
	}
	if f.o.Summary().Coupon != nil {
		t.Error("coupon kept after success")
	}
	if f.o.InFlight() {
		t.Error("InFlight() = true after Submit returned")
	}
}

func TestSubmitValidationFailsBeforeNetwork(t *testing.T) {
	f := newFixture(t)

	_, err := f.o.Submit(context.Background(), CustomerForm{Name: "A", Phone: "12345"}, paidWidget())
	var verrs ValidationErrors
	if !errors.As(err, &verrs) {
		t.Fatalf("Submit() error = %v, want ValidationErrors", err)
	}
	if len(verrs) != 2 {
		t.Errorf("validation errors = %v, want name and phone", verrs)
	}
	if len(f.created) != 0 {
		t.Error("order created despite invalid form")
	}
}

func TestSubmitEmptyCart(t *testing.T) {
	f := newFixture(t)
	f.cart.Clear(context.Background())

	if _, err := f.o.Submit(context.Background(), validForm(), paidWidget()); !errors.Is(err, ErrEmptyCart) {
		t.Errorf("Submit() error = %v, want ErrEmptyCart", err)
	}
}

func TestSubmitOrderCreationFails(t *testing.T) {
	f := newFixture(t)
	f.orders.CreateFunc = func(ctx context.Context, in api.CreateOrderInput) (*api.Order, error) {
		return nil, &api.Error{Kind: api.KindServer, Status: 500}
	}

	_, err := f.o.Submit(context.Background(), validForm(), paidWidget())
	if !api.IsKind(err, api.KindServer) {
		t.Errorf("Submit() error = %v, want server error", err)
	}
	if f.cart.IsEmpty() {
		t.Error("cart cleared after failed order creation")
	}
	notices := f.feed.Drain()
	if len(notices) != 1 || notices[0].Message != "Failed to create order. Please try again." {
		t.Errorf("notices = %+v", notices)
	}
}

func TestSubmitPaymentOutcomes(t *testing.T) {
	tests := []struct {
		name        string
		widgetErr   error
		verifyErr   error
		want        error
		noticeLevel notice.Level
		noticeText  string
	}{
		{
			name:        "dismissed",
			widgetErr:   ErrPaymentCancelled,
			want:        ErrPaymentCancelled,
			noticeLevel: notice.LevelInfo,
			noticeText:  "Payment cancelled",
		},
		{
			name:        "gateway failure",
			widgetErr:   errors.New("card declined"),
			want:        ErrPaymentFailed,
			noticeLevel: notice.LevelError,
			noticeText:  "Payment failed. Please try again.",
		},
		{
			name:        "verification rejected",
			verifyErr:   &api.Error{Kind: api.KindRequest, Status: 400, Message: "Invalid signature"},
			want:        ErrVerificationFailed,
			noticeLevel: notice.LevelError,
			noticeText:  "Payment verification failed",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			f.payments.VerifyFunc = func(ctx context.Context, in api.VerifyPaymentInput) error {
				return tt.verifyErr
			}
			widget := &MockWidget{OpenFunc: func(ctx context.Context, opts WidgetOptions) (GatewayResult, error) {
				if tt.widgetErr != nil {
					return GatewayResult{}, tt.widgetErr
				}
				return GatewayResult{GatewayPaymentID: "pay_1"}, nil
			}}

			_, err := f.o.Submit(context.Background(), validForm(), widget)
			if !errors.Is(err, tt.want) {
				t.Fatalf("Submit() error = %v, want %v", err, tt.want)
			}
			if f.cart.IsEmpty() {
				t.Error("cart cleared on failed payment")
			}
			if f.ui.closed != 0 {
				t.Error("checkout closed on failed payment")
			}

			notices := f.feed.Drain()
			if len(notices) != 1 {
				t.Fatalf("notices = %+v, want 1", notices)
			}
			if notices[0].Level != tt.noticeLevel || notices[0].Message != tt.noticeText {
				t.Errorf("notice = %+v", notices[0])
			}
		})
	}
}

func TestSubmitRejectsConcurrentAttempt(t *testing.T) {
	f := newFixture(t)

	entered := make(chan struct{})
	release := make(chan struct{})
	widget := &MockWidget{OpenFunc: func(ctx context.Context, opts WidgetOptions) (GatewayResult, error) {
		close(entered)
		<-release
		return GatewayResult{GatewayPaymentID: "pay_1"}, nil
	}}

	var wg sync.WaitGroup
	wg.Add(1)
	var firstErr error
	go func() {
		defer wg.Done()
		_, firstErr = f.o.Submit(context.Background(), validForm(), widget)
	}()

	select {
	case <-entered:
	case <-time.After(2 * time.Second):
		t.Fatal("first submit never reached the widget")
	}

	if !f.o.InFlight() {
		t.Error("InFlight() = false during payment")
	}
	if _, err := f.o.Submit(context.Background(), validForm(), paidWidget()); !errors.Is(err, ErrCheckoutInProgress) {
		t.Errorf("second Submit() error = %v, want ErrCheckoutInProgress", err)
	}

	close(release)
	wg.Wait()
	if firstErr != nil {
		t.Errorf("first Submit() error = %v", firstErr)
	}
	if len(f.created) != 1 {
		t.Errorf("orders created = %d, want 1", len(f.created))
	}
}

func TestApplyCoupon(t *testing.T) {
	f := newFixture(t)

	var gotCode string
	var gotAmount decimal.Decimal
	f.coupons.ApplyFunc = func(ctx context.Context, code string, amount decimal.Decimal) (*api.CouponApplication, error) {
		gotCode, gotAmount = code, amount
		return &api.CouponApplication{Valid: true, Discount: decimal.NewFromInt(500), Message: "Coupon applied"}, nil
	}

	applied, err := f.o.ApplyCoupon(context.Background(), " bigsave ")
	if err != nil {
		t.Fatalf("ApplyCoupon() error = %v", err)
	}
	if gotCode != "BIGSAVE" || !gotAmount.Equal(decimal.NewFromInt(400)) {
		t.Errorf("Apply(%q, %s)", gotCode, gotAmount)
	}
	if applied.Code != "BIGSAVE" {
		t.Errorf("applied code = %q", applied.Code)
	}

	s := f.o.Summary()
	if !s.Subtotal.Equal(decimal.NewFromInt(400)) || !s.Discount.Equal(decimal.NewFromInt(500)) {
		t.Errorf("Summary() = %+v", s)
	}
	if !s.Total.IsZero() {
		t.Errorf("Total = %s, want 0 when discount exceeds subtotal", s.Total)
	}

	f.o.RemoveCoupon()
	if s := f.o.Summary(); s.Coupon != nil || !s.Total.Equal(decimal.NewFromInt(400)) {
		t.Errorf("Summary() after RemoveCoupon = %+v", s)
	}
}

func TestApplyCouponInvalidKeepsPrevious(t *testing.T) {
	f := newFixture(t)
	if _, err := f.o.ApplyCoupon(context.Background(), "SAVE50"); err != nil {
		t.Fatalf("ApplyCoupon() error = %v", err)
	}

	f.coupons.ApplyFunc = func(ctx context.Context, code string, amount decimal.Decimal) (*api.CouponApplication, error) {
		return &api.CouponApplication{Valid: false, Message: "Coupon has expired"}, nil
	}

	_, err := f.o.ApplyCoupon(context.Background(), "OLD10")
	if !errors.Is(err, ErrCouponInvalid) {
		t.Fatalf("ApplyCoupon() error = %v, want ErrCouponInvalid", err)
	}
	if c := f.o.Summary().Coupon; c == nil || c.Code != "SAVE50" {
		t.Errorf("coupon = %+v, want SAVE50 kept", c)
	}
}

func TestCustomerFormValidate(t *testing.T) {
	tests := []struct {
		name  string
		form  CustomerForm
		field string
	}{
		{"valid minimal", CustomerForm{Name: "Al", Phone: "6000000000"}, ""},
		{"name too short", CustomerForm{Name: " A ", Phone: "9876543210"}, "name"},
		{"phone starts with 5", CustomerForm{Name: "Asha", Phone: "5876543210"}, "phone"},
		{"phone too short", CustomerForm{Name: "Asha", Phone: "987654321"}, "phone"},
		{"bad email", CustomerForm{Name: "Asha", Phone: "9876543210", Email: "asha@"}, "email"},
		{"short address", CustomerForm{Name: "Asha", Phone: "9876543210", Address: "MG Rd"}, "address"},
		{"long notes", CustomerForm{Name: "Asha", Phone: "9876543210", Notes: string(make([]byte, 501))}, "notes"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			errs := tt.form.Validate()
			if tt.field == "" {
				if len(errs) != 0 {
					t.Errorf("Validate() = %v, want none", errs)
				}
				return
			}
			if len(errs) != 1 || errs[0].Field != tt.field {
				t.Errorf("Validate() = %v, want single error on %s", errs, tt.field)
			}
		})
	}
}
