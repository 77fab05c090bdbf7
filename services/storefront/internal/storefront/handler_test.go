package storefront

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/aquamarinepk/aqm"
	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/appetiteclub/storefront/pkg/event"
	"github.com/appetiteclub/storefront/services/storefront/internal/admin"
	"github.com/appetiteclub/storefront/services/storefront/internal/api"
	"github.com/appetiteclub/storefront/services/storefront/internal/cart"
	"github.com/appetiteclub/storefront/services/storefront/internal/checkout"
	"github.com/appetiteclub/storefront/services/storefront/internal/clientstate"
	"github.com/appetiteclub/storefront/services/storefront/internal/notice"
	"github.com/appetiteclub/storefront/services/storefront/internal/realtime"
	"github.com/appetiteclub/storefront/services/storefront/internal/session"
	"github.com/appetiteclub/storefront/services/storefront/internal/tracking"
	"github.com/appetiteclub/storefront/services/storefront/internal/ui"
)

type MockCatalog struct {
	MenuItemFunc    func(ctx context.Context, id string) (*api.MenuItem, error)
	invalidateCalls int
}

func (m *MockCatalog) Categories(ctx context.Context, includeInactive bool) ([]api.Category, error) {
	return []api.Category{{ID: "c1", Name: "Sundaes", IsActive: true}}, nil
}

func (m *MockCatalog) MenuItems(ctx context.Context, filter api.MenuFilter) ([]api.MenuItem, error) {
	item, err := m.MenuItem(ctx, "m1")
	if err != nil {
		return nil, err
	}
	return []api.MenuItem{*item}, nil
}

func (m *MockCatalog) MenuItem(ctx context.Context, id string) (*api.MenuItem, error) {
	return m.MenuItemFunc(ctx, id)
}

func (m *MockCatalog) Invalidate() {
	m.invalidateCalls++
}

type MockAuthenticator struct {
	LoginFunc func(ctx context.Context, email, password string) (*api.AuthResult, error)
}

func (m *MockAuthenticator) Login(ctx context.Context, email, password string) (*api.AuthResult, error) {
	return m.LoginFunc(ctx, email, password)
}

type MockCoupons struct {
	ApplyFunc func(ctx context.Context, code string, amount decimal.Decimal) (*api.CouponApplication, error)
}

func (m *MockCoupons) Apply(ctx context.Context, code string, amount decimal.Decimal) (*api.CouponApplication, error) {
	return m.ApplyFunc(ctx, code, amount)
}

type MockOrders struct {
	CreateFunc func(ctx context.Context, in api.CreateOrderInput) (*api.Order, error)
	GetFunc    func(ctx context.Context, id string) (*api.Order, error)
}

func (m *MockOrders) Create(ctx context.Context, in api.CreateOrderInput) (*api.Order, error) {
	return m.CreateFunc(ctx, in)
}

func (m *MockOrders) Get(ctx context.Context, id string) (*api.Order, error) {
	return m.GetFunc(ctx, id)
}

func (m *MockOrders) List(ctx context.Context, f api.OrderFilter) ([]api.Order, error) {
	return []api.Order{{OrderID: "ORD1", Status: "pending"}}, nil
}

func (m *MockOrders) UpdateStatus(ctx context.Context, id string, in api.UpdateOrderStatusInput) (*api.Order, error) {
	return &api.Order{OrderID: id, Status: in.Status, EstimatedTime: in.EstimatedTime}, nil
}

func (m *MockOrders) Stats(ctx context.Context) (*api.OrderStats, error) {
	return &api.OrderStats{TotalOrders: 1, PendingOrders: 1}, nil
}

type MockPayments struct {
	VerifyFunc func(ctx context.Context, in api.VerifyPaymentInput) error
}

func (m *MockPayments) CreateOrder(ctx context.Context, orderID string) (*api.PaymentIntent, error) {
	return &api.PaymentIntent{ID: "rzp_order_1", Amount: decimal.NewFromInt(24000), Currency: "INR", OrderID: orderID}, nil
}

func (m *MockPayments) Verify(ctx context.Context, in api.VerifyPaymentInput) error {
	if m.VerifyFunc == nil {
		return nil
	}
	return m.VerifyFunc(ctx, in)
}

type MockCategories struct {
	CreateFunc func(ctx context.Context, in api.CategoryInput) (*api.Category, error)
}

func (m *MockCategories) List(ctx context.Context, includeInactive bool) ([]api.Category, error) {
	return nil, nil
}

func (m *MockCategories) Create(ctx context.Context, in api.CategoryInput) (*api.Category, error) {
	return m.CreateFunc(ctx, in)
}

func (m *MockCategories) Update(ctx context.Context, id string, in api.CategoryInput) (*api.Category, error) {
	return &api.Category{ID: id, Name: in.Name}, nil
}

func (m *MockCategories) Delete(ctx context.Context, id string) error {
	return nil
}

type MockChannel struct {
	mu       sync.Mutex
	handlers map[string]map[realtime.HandlerID]realtime.Handler
	next     int
}

func NewMockChannel() *MockChannel {
	return &MockChannel{handlers: make(map[string]map[realtime.HandlerID]realtime.Handler)}
}

func (m *MockChannel) Connect(ctx context.Context) error { return nil }

func (m *MockChannel) Emit(evt string, payload interface{}) {}

func (m *MockChannel) On(evt string, h realtime.Handler) realtime.HandlerID {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.next++
	id := realtime.HandlerID(fmt.Sprintf("h%d", m.next))
	if m.handlers[evt] == nil {
		m.handlers[evt] = make(map[realtime.HandlerID]realtime.Handler)
	}
	m.handlers[evt][id] = h
	return id
}

func (m *MockChannel) Off(evt string, ids ...realtime.HandlerID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, id := range ids {
		delete(m.handlers[evt], id)
	}
}

func (m *MockChannel) push(t *testing.T, evt string, payload interface{}) {
	t.Helper()
	raw, err := json.Marshal(payload)
	if err != nil {
		t.Fatal(err)
	}
	m.mu.Lock()
	var hs []realtime.Handler
	for _, h := range m.handlers[evt] {
		hs = append(hs, h)
	}
	m.mu.Unlock()
	for _, h := range hs {
		h(raw)
	}
}

type fixture struct {
	handler  *Handler
	router   chi.Router
	catalog  *MockCatalog
	cart     *cart.Cart
	session  *session.Session
	notices  *notice.Feed
	payments *MockPayments
	channel  *MockChannel
	tracking *tracking.Registry
}

func mangoSundae() *api.MenuItem {
	return &api.MenuItem{
		ID:          "m1",
		Name:        "Mango Sundae",
		IsAvailable: true,
		Variants: []api.Variant{
			{Name: "Small", Price: decimal.NewFromInt(120), IsAvailable: true},
			{Name: "Large", Price: decimal.NewFromInt(180), IsAvailable: false},
		},
	}
}

func newFixture(t *testing.T, role string) *fixture {
	t.Helper()

	store := clientstate.NewMemoryStore()
	feed := notice.NewFeed()
	cat := &MockCatalog{MenuItemFunc: func(ctx context.Context, id string) (*api.MenuItem, error) {
		if id != "m1" {
			return nil, &api.Error{Kind: api.KindNotFound, Status: http.StatusNotFound, Message: "Product not found"}
		}
		return mangoSundae(), nil
	}}
	orders := &MockOrders{
		CreateFunc: func(ctx context.Context, in api.CreateOrderInput) (*api.Order, error) {
			return &api.Order{OrderID: "ORD1", Status: "pending"}, nil
		},
		GetFunc: func(ctx context.Context, id string) (*api.Order, error) {
			return &api.Order{OrderID: id, Status: "pending", PaymentStatus: "pending"}, nil
		},
	}
	payments := &MockPayments{}
	ch := NewMockChannel()

	c := cart.New(store, feed, nil)
	uiStore := ui.NewStore(store, func(ui.Theme) {}, nil)
	sess := session.New(store, &MockAuthenticator{LoginFunc: func(ctx context.Context, email, password string) (*api.AuthResult, error) {
		if password != "secret" {
			return nil, &api.Error{Kind: api.KindAuthExpired, Status: http.StatusUnauthorized}
		}
		return &api.AuthResult{Token: "tok", User: api.User{ID: "u1", Email: email, Role: role}}, nil
	}}, feed, nil)
	orch := checkout.New(checkout.Deps{
		Cart: c,
		UI:   uiStore,
		Coupons: &MockCoupons{ApplyFunc: func(ctx context.Context, code string, amount decimal.Decimal) (*api.CouponApplication, error) {
			return &api.CouponApplication{Valid: true, Discount: decimal.NewFromInt(20)}, nil
		}},
		Orders:   orders,
		Payments: payments,
		Notices:  feed,
	}, checkout.Merchant{Key: "rzp_test"}, nil)
	registry := tracking.NewRegistry(ch, orders, nil)

	h := NewHandler(HandlerDeps{
		Catalog:  cat,
		Cart:     c,
		UI:       uiStore,
		Session:  sess,
		Notices:  feed,
		Checkout: orch,
		Tracking: registry,
		Admin: AdminDeps{
			Aggregator: admin.NewAggregator(ch, nil, false, nil),
			Dashboard:  admin.NewDashboard(orders, feed, nil),
			Orders:     orders,
			Categories: &MockCategories{CreateFunc: func(ctx context.Context, in api.CategoryInput) (*api.Category, error) {
				if errs := in.Validate(); len(errs) > 0 {
					return nil, errs
				}
				return &api.Category{ID: "c2", Name: in.Name}, nil
			}},
		},
	}, aqm.NewConfig(), nil)

	r := chi.NewRouter()
	h.RegisterRoutes(r)

	return &fixture{
		handler:  h,
		router:   r,
		catalog:  cat,
		cart:     c,
		session:  sess,
		notices:  feed,
		payments: payments,
		channel:  ch,
		tracking: registry,
	}
}

func (f *fixture) do(t *testing.T, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatal(err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

func (f *fixture) signIn(t *testing.T) {
	t.Helper()
	if _, err := f.session.SignIn(context.Background(), "owner@dessy69.com", "secret"); err != nil {
		t.Fatalf("SignIn() error = %v", err)
	}
}

func decodeData(t *testing.T, w *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	var resp struct {
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("cannot decode response %q: %v", w.Body.String(), err)
	}
	if err := json.Unmarshal(resp.Data, v); err != nil {
		t.Fatalf("cannot decode data %q: %v", resp.Data, err)
	}
}

func TestNewHandler(t *testing.T) {
	h := NewHandler(HandlerDeps{}, aqm.NewConfig(), nil)
	if h == nil {
		t.Fatal("NewHandler() returned nil")
	}
	if h.logger == nil {
		t.Error("NewHandler() should set noop logger when nil")
	}
	if h.notices == nil || h.widget == nil {
		t.Error("NewHandler() should default notices and widget")
	}
}

func TestHandlerAddCartItem(t *testing.T) {
	tests := []struct {
		name           string
		body           CartItemRequest
		expectedStatus int
		expectedCount  int
	}{
		{
			name:           "availableVariant",
			body:           CartItemRequest{MenuItemID: "m1", Variant: "Small", Quantity: 2},
			expectedStatus: http.StatusOK,
			expectedCount:  2,
		},
		{
			name:           "unavailableVariant",
			body:           CartItemRequest{MenuItemID: "m1", Variant: "Large"},
			expectedStatus: http.StatusConflict,
		},
		{
			name:           "unknownVariant",
			body:           CartItemRequest{MenuItemID: "m1", Variant: "Jumbo"},
			expectedStatus: http.StatusUnprocessableEntity,
		},
		{
			name:           "unknownItem",
			body:           CartItemRequest{MenuItemID: "nope", Variant: "Small"},
			expectedStatus: http.StatusNotFound,
		},
		{
			name:           "missingVariant",
			body:           CartItemRequest{MenuItemID: "m1"},
			expectedStatus: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, "customer")

			w := f.do(t, http.MethodPost, "/cart/items", tt.body)
			if w.Code != tt.expectedStatus {
				t.Fatalf("AddCartItem() status = %d, want %d: %s", w.Code, tt.expectedStatus, w.Body.String())
			}

			if tt.expectedStatus == http.StatusOK {
				var view CartView
				decodeData(t, w, &view)
				if view.ItemCount != tt.expectedCount {
					t.Errorf("itemCount = %d, want %d", view.ItemCount, tt.expectedCount)
				}
				if !view.Total.Equal(decimal.NewFromInt(240)) {
					t.Errorf("total = %s, want 240", view.Total)
				}
			}
		})
	}
}

func TestHandlerUpdateAndRemoveCartItem(t *testing.T) {
	f := newFixture(t, "customer")
	f.do(t, http.MethodPost, "/cart/items", CartItemRequest{MenuItemID: "m1", Variant: "Small"})

	w := f.do(t, http.MethodPut, "/cart/items/m1/Small", QuantityRequest{Quantity: 3})
	if w.Code != http.StatusOK {
		t.Fatalf("UpdateCartItem() status = %d: %s", w.Code, w.Body.String())
	}
	if got := f.cart.ItemCount(); got != 3 {
		t.Errorf("ItemCount() = %d, want 3", got)
	}

	w = f.do(t, http.MethodDelete, "/cart/items/m1/Small", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("RemoveCartItem() status = %d", w.Code)
	}
	if !f.cart.IsEmpty() {
		t.Error("cart should be empty after removal")
	}
}

func TestHandlerOverlays(t *testing.T) {
	tests := []struct {
		name           string
		path           string
		expectedStatus int
	}{
		{name: "openCart", path: "/ui/overlays/cart/open", expectedStatus: http.StatusOK},
		{name: "toggleSearch", path: "/ui/overlays/search/toggle", expectedStatus: http.StatusOK},
		{name: "unknownOverlay", path: "/ui/overlays/basket/open", expectedStatus: http.StatusNotFound},
		{name: "unknownAction", path: "/ui/overlays/cart/flip", expectedStatus: http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, "customer")
			w := f.do(t, http.MethodPost, tt.path, nil)
			if w.Code != tt.expectedStatus {
				t.Errorf("ChangeOverlay() status = %d, want %d", w.Code, tt.expectedStatus)
			}
		})
	}
}

func TestHandlerSignIn(t *testing.T) {
	f := newFixture(t, "admin")

	w := f.do(t, http.MethodPost, "/session", SignInRequest{Email: "owner@dessy69.com", Password: "wrong"})
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("SignIn() status = %d, want 401", w.Code)
	}

	w = f.do(t, http.MethodPost, "/session", SignInRequest{Email: "owner@dessy69.com", Password: "secret"})
	if w.Code != http.StatusOK {
		t.Fatalf("SignIn() status = %d: %s", w.Code, w.Body.String())
	}
	var view SessionView
	decodeData(t, w, &view)
	if !view.Authenticated || !view.Admin {
		t.Errorf("session = %+v, want authenticated admin", view)
	}

	notices := f.notices.Drain()
	if len(notices) != 2 || notices[1].Message != "Login successful!" {
		t.Errorf("notices = %+v", notices)
	}
}

func TestHandlerAdminRequiresAdmin(t *testing.T) {
	tests := []struct {
		name           string
		role           string
		signIn         bool
		expectedStatus int
	}{
		{name: "anonymous", expectedStatus: http.StatusUnauthorized},
		{name: "customer", role: "customer", signIn: true, expectedStatus: http.StatusForbidden},
		{name: "admin", role: "admin", signIn: true, expectedStatus: http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, tt.role)
			if tt.signIn {
				f.signIn(t)
			}

			w := f.do(t, http.MethodGet, "/admin/dashboard", nil)
			if w.Code != tt.expectedStatus {
				t.Errorf("GetDashboard() status = %d, want %d", w.Code, tt.expectedStatus)
			}
		})
	}
}

func TestHandlerAdvanceOrder(t *testing.T) {
	f := newFixture(t, "admin")
	f.signIn(t)
	f.notices.Drain()

	w := f.do(t, http.MethodPost, "/admin/orders/ORD1/advance", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("AdvanceOrder() status = %d: %s", w.Code, w.Body.String())
	}

	var order api.Order
	decodeData(t, w, &order)
	if order.Status != "confirmed" {
		t.Errorf("status = %q, want confirmed", order.Status)
	}
	if order.EstimatedTime == nil || *order.EstimatedTime != 30 {
		t.Errorf("estimatedTime = %v, want 30", order.EstimatedTime)
	}
}

func TestHandlerCreateCategory(t *testing.T) {
	tests := []struct {
		name            string
		body            api.CategoryInput
		expectedStatus  int
		expectedInvalid int
		expectedNotice  string
	}{
		{
			name:            "valid",
			body:            api.CategoryInput{Name: "Sorbets", IsActive: true},
			expectedStatus:  http.StatusCreated,
			expectedInvalid: 1,
			expectedNotice:  "Category created",
		},
		{
			name:           "invalid",
			body:           api.CategoryInput{Name: "S"},
			expectedStatus: http.StatusUnprocessableEntity,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, "admin")
			f.signIn(t)
			f.notices.Drain()

			w := f.do(t, http.MethodPost, "/admin/categories", tt.body)
			if w.Code != tt.expectedStatus {
				t.Fatalf("CreateCategory() status = %d, want %d: %s", w.Code, tt.expectedStatus, w.Body.String())
			}
			if f.catalog.invalidateCalls != tt.expectedInvalid {
				t.Errorf("invalidate calls = %d, want %d", f.catalog.invalidateCalls, tt.expectedInvalid)
			}

			notices := f.notices.Drain()
			if tt.expectedNotice == "" {
				if len(notices) != 0 {
					t.Errorf("notices = %+v, want none", notices)
				}
				return
			}
			if len(notices) != 1 || notices[0].Message != tt.expectedNotice {
				t.Errorf("notices = %+v, want %q", notices, tt.expectedNotice)
			}
		})
	}
}

func TestHandlerCheckoutFlow(t *testing.T) {
	f := newFixture(t, "customer")
	f.do(t, http.MethodPost, "/cart/items", CartItemRequest{MenuItemID: "m1", Variant: "Small", Quantity: 2})

	form := checkout.CustomerForm{Name: "Asha", Phone: "9876543210"}
	w := f.do(t, http.MethodPost, "/checkout", form)
	if w.Code != http.StatusAccepted {
		t.Fatalf("SubmitCheckout() status = %d: %s", w.Code, w.Body.String())
	}

	var started CheckoutResult
	decodeData(t, w, &started)
	if started.Status != "awaiting_payment" || started.Payment == nil {
		t.Fatalf("SubmitCheckout() = %+v", started)
	}
	if started.Payment.GatewayOrderID != "rzp_order_1" || started.Payment.OrderID != "ORD1" {
		t.Errorf("payment = %+v", started.Payment)
	}

	w = f.do(t, http.MethodPost, "/checkout", form)
	if w.Code != http.StatusConflict {
		t.Errorf("second SubmitCheckout() status = %d, want 409", w.Code)
	}

	w = f.do(t, http.MethodPost, "/checkout/payment", checkout.GatewayResult{
		GatewayOrderID:   "rzp_order_1",
		GatewayPaymentID: "pay_1",
		GatewaySignature: "sig",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("CompletePayment() status = %d: %s", w.Code, w.Body.String())
	}

	var done CheckoutResult
	decodeData(t, w, &done)
	if done.Status != "paid" || done.Result == nil || done.Result.RedirectPath != "/success?orderId=ORD1" {
		t.Errorf("CompletePayment() = %+v", done)
	}
	if !f.cart.IsEmpty() {
		t.Error("cart should be cleared after payment")
	}
}

func TestHandlerCheckoutCancelAndFail(t *testing.T) {
	tests := []struct {
		name           string
		path           string
		body           interface{}
		expectedStatus int
		expectedResult string
	}{
		{
			name:           "cancel",
			path:           "/checkout/payment/cancel",
			expectedStatus: http.StatusOK,
			expectedResult: "cancelled",
		},
		{
			name:           "fail",
			path:           "/checkout/payment/fail",
			body:           PaymentFailureRequest{Reason: "card declined"},
			expectedStatus: http.StatusPaymentRequired,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, "customer")
			f.do(t, http.MethodPost, "/cart/items", CartItemRequest{MenuItemID: "m1", Variant: "Small"})

			w := f.do(t, http.MethodPost, "/checkout", checkout.CustomerForm{Name: "Asha", Phone: "9876543210"})
			if w.Code != http.StatusAccepted {
				t.Fatalf("SubmitCheckout() status = %d: %s", w.Code, w.Body.String())
			}

			w = f.do(t, http.MethodPost, tt.path, tt.body)
			if w.Code != tt.expectedStatus {
				t.Fatalf("status = %d, want %d: %s", w.Code, tt.expectedStatus, w.Body.String())
			}
			if tt.expectedResult != "" {
				var res CheckoutResult
				decodeData(t, w, &res)
				if res.Status != tt.expectedResult {
					t.Errorf("status = %q, want %q", res.Status, tt.expectedResult)
				}
			}
			if f.cart.IsEmpty() {
				t.Error("cart should be kept when payment does not complete")
			}
		})
	}
}

func TestHandlerCheckoutRejectsBeforePayment(t *testing.T) {
	tests := []struct {
		name           string
		fillCart       bool
		form           checkout.CustomerForm
		expectedStatus int
	}{
		{
			name:           "invalidForm",
			fillCart:       true,
			form:           checkout.CustomerForm{Name: "A", Phone: "123"},
			expectedStatus: http.StatusUnprocessableEntity,
		},
		{
			name:           "emptyCart",
			form:           checkout.CustomerForm{Name: "Asha", Phone: "9876543210"},
			expectedStatus: http.StatusConflict,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, "customer")
			if tt.fillCart {
				f.do(t, http.MethodPost, "/cart/items", CartItemRequest{MenuItemID: "m1", Variant: "Small"})
			}

			w := f.do(t, http.MethodPost, "/checkout", tt.form)
			if w.Code != tt.expectedStatus {
				t.Errorf("SubmitCheckout() status = %d, want %d: %s", w.Code, tt.expectedStatus, w.Body.String())
			}

			w = f.do(t, http.MethodPost, "/checkout/payment/cancel", nil)
			if w.Code != http.StatusConflict {
				t.Errorf("CancelPayment() without attempt status = %d, want 409", w.Code)
			}
		})
	}
}

func TestHandlerPaymentVerificationFailure(t *testing.T) {
	f := newFixture(t, "customer")
	f.payments.VerifyFunc = func(ctx context.Context, in api.VerifyPaymentInput) error {
		return errors.New("signature mismatch")
	}
	f.do(t, http.MethodPost, "/cart/items", CartItemRequest{MenuItemID: "m1", Variant: "Small"})
	f.do(t, http.MethodPost, "/checkout", checkout.CustomerForm{Name: "Asha", Phone: "9876543210"})

	w := f.do(t, http.MethodPost, "/checkout/payment", checkout.GatewayResult{
		GatewayOrderID:   "rzp_order_1",
		GatewayPaymentID: "pay_1",
		GatewaySignature: "bad",
	})
	if w.Code != http.StatusPaymentRequired {
		t.Fatalf("CompletePayment() status = %d, want 402", w.Code)
	}
	if !strings.Contains(w.Body.String(), "Payment verification failed") {
		t.Errorf("body = %s", w.Body.String())
	}
}

func TestHandlerTrackOrderStream(t *testing.T) {
	f := newFixture(t, "customer")
	server := httptest.NewServer(f.router)
	defer server.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, server.URL+"/orders/ORD1/track", nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("GET track error = %v", err)
	}
	defer resp.Body.Close()

	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Errorf("Content-Type = %q", ct)
	}

	reader := bufio.NewReader(resp.Body)
	next := func() OrderSnapshot {
		t.Helper()
		var eventName string
		for {
			line, err := reader.ReadString('\n')
			if err != nil {
				t.Fatalf("stream read error = %v", err)
			}
			line = strings.TrimRight(line, "\n")
			if strings.HasPrefix(line, "event: ") {
				eventName = strings.TrimPrefix(line, "event: ")
			}
			if strings.HasPrefix(line, "data: ") && eventName == "order-snapshot" {
				snap := OrderSnapshot{Order: &api.Order{}}
				if err := json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &snap); err != nil {
					t.Fatalf("cannot decode snapshot: %v", err)
				}
				return snap
			}
		}
	}

	first := next()
	if first.OrderID != "ORD1" || first.Status != "pending" {
		t.Fatalf("first snapshot = %+v", first.Order)
	}
	if first.StatusLabel != "Pending Payment" || first.PaymentStatusLabel != "Pending" {
		t.Errorf("labels = %q, %q", first.StatusLabel, first.PaymentStatusLabel)
	}

	eta := 20
	f.channel.push(t, event.OrderStatus, event.OrderStatusEvent{
		Status:        "preparing",
		EstimatedTime: &eta,
		Timestamp:     time.Now(),
	})

	second := next()
	if second.Status != "preparing" || len(second.TrackingHistory) != 1 {
		t.Errorf("second snapshot = %+v", second.Order)
	}
	if second.StatusLabel != "Preparing" || second.Terminal {
		t.Errorf("second labels = %q terminal=%v", second.StatusLabel, second.Terminal)
	}
}

func TestHandlerTrackOrderUnescapesID(t *testing.T) {
	f := newFixture(t, "customer")
	server := httptest.NewServer(f.router)
	defer server.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, server.URL+"/orders/ORD%2F1/track", nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("GET track error = %v", err)
	}
	defer resp.Body.Close()

	reader := bufio.NewReader(resp.Body)
	for {
		line, err := reader.ReadString('\n')
		if err != nil {
			t.Fatalf("stream read error = %v", err)
		}
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		snap := OrderSnapshot{Order: &api.Order{}}
		if err := json.Unmarshal([]byte(strings.TrimSpace(strings.TrimPrefix(line, "data: "))), &snap); err != nil {
			continue
		}
		if snap.OrderID != "ORD/1" {
			t.Errorf("tracked order = %q, want ORD/1", snap.OrderID)
		}
		if !f.tracking.Tracking("ORD/1") {
			t.Error("registry not tracking the unescaped id")
		}
		return
	}
}
