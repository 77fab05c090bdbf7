package api

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/shopspring/decimal"
)

type Categories struct {
	client *Client
}

func NewCategories(client *Client) *Categories {
	return &Categories{client: client}
}

func (a *Categories) List(ctx context.Context, includeInactive bool) ([]Category, error) {
	var q url.Values
	if includeInactive {
		q = url.Values{"includeInactive": {"true"}}
	}
	var out []Category
	if err := a.client.do(ctx, http.MethodGet, "/categories", q, nil, &out); err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	return out, nil
}

func (a *Categories) Get(ctx context.Context, id string) (*Category, error) {
	var out Category
	if err := a.client.do(ctx, http.MethodGet, "/categories/"+url.PathEscape(id), nil, nil, &out); err != nil {
		return nil, fmt.Errorf("get category: %w", err)
	}
	return &out, nil
}

func (a *Categories) Create(ctx context.Context, in CategoryInput) (*Category, error) {
	if errs := in.Validate(); len(errs) > 0 {
		return nil, errs
	}
	var out Category
	if err := a.client.do(ctx, http.MethodPost, "/categories", nil, in, &out); err != nil {
		return nil, fmt.Errorf("create category: %w", err)
	}
	return &out, nil
}

func (a *Categories) Update(ctx context.Context, id string, in CategoryInput) (*Category, error) {
	if errs := in.Validate(); len(errs) > 0 {
		return nil, errs
	}
	var out Category
	if err := a.client.do(ctx, http.MethodPut, "/categories/"+url.PathEscape(id), nil, in, &out); err != nil {
		return nil, fmt.Errorf("update category: %w", err)
	}
	return &out, nil
}

func (a *Categories) Delete(ctx context.Context, id string) error {
	if err := a.client.do(ctx, http.MethodDelete, "/categories/"+url.PathEscape(id), nil, nil, nil); err != nil {
		return fmt.Errorf("delete category: %w", err)
	}
	return nil
}

// MenuItems talks to the /products resource.
type MenuItems struct {
	client *Client
}

func NewMenuItems(client *Client) *MenuItems {
	return &MenuItems{client: client}
}

func (a *MenuItems) List(ctx context.Context, filter MenuFilter) ([]MenuItem, error) {
	q := url.Values{}
	if filter.CategoryID != "" {
		q.Set("categoryId", filter.CategoryID)
	}
	if filter.Search != "" {
		q.Set("search", filter.Search)
	}
	var out []MenuItem
	if err := a.client.do(ctx, http.MethodGet, "/products", q, nil, &out); err != nil {
		return nil, fmt.Errorf("list menu items: %w", err)
	}
	return out, nil
}

func (a *MenuItems) Get(ctx context.Context, id string) (*MenuItem, error) {
	var out MenuItem
	if err := a.client.do(ctx, http.MethodGet, "/products/"+url.PathEscape(id), nil, nil, &out); err != nil {
		return nil, fmt.Errorf("get menu item: %w", err)
	}
	return &out, nil
}

func (a *MenuItems) Create(ctx context.Context, in MenuItemInput) (*MenuItem, error) {
	if errs := in.Validate(); len(errs) > 0 {
		return nil, errs
	}
	var out MenuItem
	if err := a.client.do(ctx, http.MethodPost, "/products", nil, in, &out); err != nil {
		return nil, fmt.Errorf("create menu item: %w", err)
	}
	return &out, nil
}

func (a *MenuItems) Update(ctx context.Context, id string, in MenuItemInput) (*MenuItem, error) {
	if errs := in.Validate(); len(errs) > 0 {
		return nil, errs
	}
	var out MenuItem
	if err := a.client.do(ctx, http.MethodPut, "/products/"+url.PathEscape(id), nil, in, &out); err != nil {
		return nil, fmt.Errorf("update menu item: %w", err)
	}
	return &out, nil
}

func (a *MenuItems) Delete(ctx context.Context, id string) error {
	if err := a.client.do(ctx, http.MethodDelete, "/products/"+url.PathEscape(id), nil, nil, nil); err != nil {
		return fmt.Errorf("delete menu item: %w", err)
	}
	return nil
}

type Coupons struct {
	client *Client
}

func NewCoupons(client *Client) *Coupons {
	return &Coupons{client: client}
}

func (a *Coupons) List(ctx context.Context, includeInactive bool) ([]Coupon, error) {
	var q url.Values
	if includeInactive {
		q = url.Values{"includeInactive": {"true"}}
	}
	var out []Coupon
	if err := a.client.do(ctx, http.MethodGet, "/coupons", q, nil, &out); err != nil {
		return nil, fmt.Errorf("list coupons: %w", err)
	}
	return out, nil
}

func (a *Coupons) Get(ctx context.Context, id string) (*Coupon, error) {
	var out Coupon
	if err := a.client.do(ctx, http.MethodGet, "/coupons/"+url.PathEscape(id), nil, nil, &out); err != nil {
		return nil, fmt.Errorf("get coupon: %w", err)
	}
	return &out, nil
}

func (a *Coupons) Create(ctx context.Context, in CouponInput) (*Coupon, error) {
	if errs := in.Validate(); len(errs) > 0 {
		return nil, errs
	}
	var out Coupon
	if err := a.client.do(ctx, http.MethodPost, "/coupons", nil, in, &out); err != nil {
		return nil, fmt.Errorf("create coupon: %w", err)
	}
	return &out, nil
}

func (a *Coupons) Update(ctx context.Context, id string, in CouponInput) (*Coupon, error) {
	if errs := in.Validate(); len(errs) > 0 {
		return nil, errs
	}
	var out Coupon
	if err := a.client.do(ctx, http.MethodPut, "/coupons/"+url.PathEscape(id), nil, in, &out); err != nil {
		return nil, fmt.Errorf("update coupon: %w", err)
	}
	return &out, nil
}

func (a *Coupons) Delete(ctx context.Context, id string) error {
	if err := a.client.do(ctx, http.MethodDelete, "/coupons/"+url.PathEscape(id), nil, nil, nil); err != nil {
		return fmt.Errorf("delete coupon: %w", err)
	}
	return nil
}

// Apply asks the server whether code is usable for orderAmount.
func (a *Coupons) Apply(ctx context.Context, code string, orderAmount decimal.Decimal) (*CouponApplication, error) {
	body := struct {
		Code        string          `json:"code"`
		OrderAmount decimal.Decimal `json:"orderAmount"`
	}{Code: code, OrderAmount: orderAmount}

	var out CouponApplication
	if err := a.client.do(ctx, http.MethodPost, "/coupons/apply", nil, body, &out); err != nil {
		return nil, fmt.Errorf("apply coupon: %w", err)
	}
	return &out, nil
}

type Orders struct {
	client *Client
}

func NewOrders(client *Client) *Orders {
	return &Orders{client: client}
}

func (a *Orders) Create(ctx context.Context, in CreateOrderInput) (*Order, error) {
	var out Order
	if err := a.client.do(ctx, http.MethodPost, "/orders", nil, in, &out); err != nil {
		return nil, fmt.Errorf("create order: %w", err)
	}
	return &out, nil
}

func (a *Orders) Get(ctx context.Context, orderID string) (*Order, error) {
	var out Order
	if err := a.client.do(ctx, http.MethodGet, "/orders/"+url.PathEscape(orderID), nil, nil, &out); err != nil {
		return nil, fmt.Errorf("get order: %w", err)
	}
	return &out, nil
}

func (a *Orders) List(ctx context.Context, filter OrderFilter) ([]Order, error) {
	q := url.Values{}
	if filter.Status != "" {
		q.Set("status", filter.Status)
	}
	if filter.StartDate != "" {
		q.Set("startDate", filter.StartDate)
	}
	if filter.EndDate != "" {
		q.Set("endDate", filter.EndDate)
	}
	var out []Order
	if err := a.client.do(ctx, http.MethodGet, "/orders", q, nil, &out); err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	return out, nil
}

func (a *Orders) UpdateStatus(ctx context.Context, orderID string, in UpdateOrderStatusInput) (*Order, error) {
	var out Order
	path := "/orders/" + url.PathEscape(orderID) + "/status"
	if err := a.client.do(ctx, http.MethodPut, path, nil, in, &out); err != nil {
		return nil, fmt.Errorf("update order status: %w", err)
	}
	return &out, nil
}

func (a *Orders) Stats(ctx context.Context) (*OrderStats, error) {
	var out OrderStats
	if err := a.client.do(ctx, http.MethodGet, "/orders/stats", nil, nil, &out); err != nil {
		return nil, fmt.Errorf("order stats: %w", err)
	}
	return &out, nil
}

type Payments struct {
	client *Client
}

func NewPayments(client *Client) *Payments {
	return &Payments{client: client}
}

// CreateOrder opens a gateway order for an existing store order.
func (a *Payments) CreateOrder(ctx context.Context, orderID string) (*PaymentIntent, error) {
	body := struct {
		OrderID string `json:"orderId"`
	}{OrderID: orderID}

	var out PaymentIntent
	if err := a.client.do(ctx, http.MethodPost, "/payment/create-order", nil, body, &out); err != nil {
		return nil, fmt.Errorf("create payment order: %w", err)
	}
	return &out, nil
}

func (a *Payments) Verify(ctx context.Context, in VerifyPaymentInput) error {
	if err := a.client.do(ctx, http.MethodPost, "/payment/verify", nil, in, nil); err != nil {
		return fmt.Errorf("verify payment: %w", err)
	}
	return nil
}

type Auth struct {
	client *Client
}

func NewAuth(client *Client) *Auth {
	return &Auth{client: client}
}

func (a *Auth) Login(ctx context.Context, email, password string) (*AuthResult, error) {
	body := struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}{Email: email, Password: password}

	var out AuthResult
	if err := a.client.do(ctx, http.MethodPost, "/auth/login", nil, body, &out); err != nil {
		return nil, fmt.Errorf("login: %w", err)
	}
	return &out, nil
}
