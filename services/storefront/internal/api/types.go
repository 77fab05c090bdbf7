package api

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

func init() {
	// The remote API reads and writes money as JSON numbers.
	decimal.MarshalJSONWithoutQuotes = true
}

// Category groups menu items on the storefront.
type Category struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	Image       string    `json:"image,omitempty"`
	IsActive    bool      `json:"isActive"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

func (c *Category) UnmarshalJSON(data []byte) error {
	type alias Category
	var raw struct {
		alias
		MongoID string `json:"_id"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*c = Category(raw.alias)
	if c.ID == "" {
		c.ID = raw.MongoID
	}
	return nil
}

// Variant is a priced size or option of a menu item, e.g. "Small".
type Variant struct {
	Name        string          `json:"name"`
	Price       decimal.Decimal `json:"price"`
	IsAvailable bool            `json:"isAvailable"`
}

// MenuItem represents a dessert offered on the menu.
type MenuItem struct {
	ID          string      `json:"id"`
	Name        string      `json:"name"`
	Description string      `json:"description"`
	CategoryID  CategoryRef `json:"categoryId"`
	Image       string      `json:"image,omitempty"`
	Variants    []Variant   `json:"variants"`
	IsAvailable bool        `json:"isAvailable"`
	Popularity  float64     `json:"popularity"`
	Tags        []string    `json:"tags"`
	CreatedAt   time.Time   `json:"createdAt"`
	UpdatedAt   time.Time   `json:"updatedAt"`
}

// Clone copies the item including its variants and tags.
func (m MenuItem) Clone() MenuItem {
	m.Variants = append([]Variant(nil), m.Variants...)
	m.Tags = append([]string(nil), m.Tags...)
	return m
}

func (m *MenuItem) UnmarshalJSON(data []byte) error {
	type alias MenuItem
	var raw struct {
		alias
		MongoID string `json:"_id"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*m = MenuItem(raw.alias)
	if m.ID == "" {
		m.ID = raw.MongoID
	}
	return nil
}

// Variant returns the variant with the given name.
func (m MenuItem) Variant(name string) (Variant, bool) {
	for _, v := range m.Variants {
		if v.Name == name {
			return v, true
		}
	}
	return Variant{}, false
}

// CategoryRef holds a category id. The API sends either the bare id or the
// populated category document.
type CategoryRef string

func (r *CategoryRef) UnmarshalJSON(data []byte) error {
	var id string
	if err := json.Unmarshal(data, &id); err == nil {
		*r = CategoryRef(id)
		return nil
	}
	var cat Category
	if err := json.Unmarshal(data, &cat); err != nil {
		return err
	}
	*r = CategoryRef(cat.ID)
	return nil
}

type DiscountType string

const (
	DiscountPercentage DiscountType = "percentage"
	DiscountFixed      DiscountType = "fixed"
)

type Coupon struct {
	ID                string           `json:"id"`
	Code              string           `json:"code"`
	Description       string           `json:"description"`
	DiscountType      DiscountType     `json:"discountType"`
	DiscountValue     decimal.Decimal  `json:"discountValue"`
	MinOrderAmount    decimal.Decimal  `json:"minOrderAmount"`
	MaxDiscountAmount *decimal.Decimal `json:"maxDiscountAmount,omitempty"`
	UsageLimit        int              `json:"usageLimit"`
	UsedCount         int              `json:"usedCount"`
	ValidFrom         time.Time        `json:"validFrom"`
	ValidUntil        time.Time        `json:"validUntil"`
	IsActive          bool             `json:"isActive"`
	CreatedAt         time.Time        `json:"createdAt"`
	UpdatedAt         time.Time        `json:"updatedAt"`
}

func (c *Coupon) UnmarshalJSON(data []byte) error {
	type alias Coupon
	var raw struct {
		alias
		MongoID string `json:"_id"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*c = Coupon(raw.alias)
	if c.ID == "" {
		c.ID = raw.MongoID
	}
	return nil
}

// CouponApplication is the server's verdict on a coupon for an order amount.
type CouponApplication struct {
	Valid    bool            `json:"valid"`
	Discount decimal.Decimal `json:"discount"`
	Message  string          `json:"message"`
	Coupon   *Coupon         `json:"coupon,omitempty"`
}

type CustomerDetails struct {
	Name    string `json:"name"`
	Phone   string `json:"phone"`
	Email   string `json:"email,omitempty"`
	Address string `json:"address,omitempty"`
}

// OrderLine is one cart line frozen into an order.
type OrderLine struct {
	MenuItemID  string          `json:"menuItemId"`
	Name        string          `json:"name"`
	VariantName string          `json:"variantName"`
	Price       decimal.Decimal `json:"price"`
	Quantity    int             `json:"quantity"`
}

type TrackingEntry struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	Notes     string    `json:"notes,omitempty"`
}

type Order struct {
	OrderID         string          `json:"orderId"`
	CustomerDetails CustomerDetails `json:"customerDetails"`
	Items           []OrderLine     `json:"items"`
	Subtotal        decimal.Decimal `json:"subtotal"`
	CouponCode      string          `json:"couponCode,omitempty"`
	Discount        decimal.Decimal `json:"discount"`
	TotalAmount     decimal.Decimal `json:"totalAmount"`
	Status          string          `json:"status"`
	PaymentStatus   string          `json:"paymentStatus"`
	EstimatedTime   *int            `json:"estimatedTime,omitempty"`
	TrackingHistory []TrackingEntry `json:"trackingHistory"`
	Notes           string          `json:"notes,omitempty"`
	CreatedAt       time.Time       `json:"createdAt"`
	UpdatedAt       time.Time       `json:"updatedAt"`
}

// Clone returns a deep copy so callers can hand snapshots across goroutines.
func (o *Order) Clone() *Order {
	if o == nil {
		return nil
	}
	cp := *o
	cp.Items = append([]OrderLine(nil), o.Items...)
	cp.TrackingHistory = append([]TrackingEntry(nil), o.TrackingHistory...)
	if o.EstimatedTime != nil {
		eta := *o.EstimatedTime
		cp.EstimatedTime = &eta
	}
	return &cp
}

type OrderStats struct {
	TotalOrders     int             `json:"totalOrders"`
	PendingOrders   int             `json:"pendingOrders"`
	CompletedOrders int             `json:"completedOrders"`
	TotalRevenue    decimal.Decimal `json:"totalRevenue"`
	TodayOrders     int             `json:"todayOrders"`
}

type CreateOrderInput struct {
	CustomerDetails CustomerDetails `json:"customerDetails"`
	Items           []OrderLine     `json:"items"`
	CouponCode      string          `json:"couponCode,omitempty"`
	Notes           string          `json:"notes,omitempty"`
}

type UpdateOrderStatusInput struct {
	Status        string `json:"status"`
	Notes         string `json:"notes,omitempty"`
	EstimatedTime *int   `json:"estimatedTime,omitempty"`
}

type OrderFilter struct {
	Status    string
	StartDate string
	EndDate   string
}

type MenuFilter struct {
	CategoryID string
	Search     string
}

// PaymentIntent is the gateway order the hosted widget is opened against.
type PaymentIntent struct {
	ID       string          `json:"id"`
	Amount   decimal.Decimal `json:"amount"`
	Currency string          `json:"currency"`
	OrderID  string          `json:"orderId"`
	KeyID    string          `json:"keyId"`
}

// VerifyPaymentInput carries what the gateway returned to the widget.
type VerifyPaymentInput struct {
	OrderID          string `json:"orderId"`
	GatewayOrderID   string `json:"razorpayOrderId"`
	GatewayPaymentID string `json:"razorpayPaymentId"`
	GatewaySignature string `json:"razorpaySignature"`
}

type User struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
	Role  string `json:"role"`
}

func (u User) IsAdmin() bool {
	return u.Role == "admin"
}

type AuthResult struct {
	User  User   `json:"user"`
	Token string `json:"token"`
}
