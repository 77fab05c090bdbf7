package storefront

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/aquamarinepk/aqm"
	"github.com/aquamarinepk/aqm/telemetry"
	"github.com/go-chi/chi/v5"

	"github.com/appetiteclub/storefront/services/storefront/internal/admin"
	"github.com/appetiteclub/storefront/services/storefront/internal/api"
	"github.com/appetiteclub/storefront/services/storefront/internal/cart"
	"github.com/appetiteclub/storefront/services/storefront/internal/checkout"
	"github.com/appetiteclub/storefront/services/storefront/internal/notice"
	"github.com/appetiteclub/storefront/services/storefront/internal/session"
	"github.com/appetiteclub/storefront/services/storefront/internal/tracking"
	"github.com/appetiteclub/storefront/services/storefront/internal/ui"
)

const (
	MaxBodyBytes = 1 << 20

	// CheckoutTimeout bounds a whole checkout attempt, payment widget included.
	CheckoutTimeout = 15 * time.Minute
)

type Catalog interface {
	Categories(ctx context.Context, includeInactive bool) ([]api.Category, error)
	MenuItems(ctx context.Context, filter api.MenuFilter) ([]api.MenuItem, error)
	MenuItem(ctx context.Context, id string) (*api.MenuItem, error)
	Invalidate()
}

type CategoryAdmin interface {
	List(ctx context.Context, includeInactive bool) ([]api.Category, error)
	Create(ctx context.Context, in api.CategoryInput) (*api.Category, error)
	Update(ctx context.Context, id string, in api.CategoryInput) (*api.Category, error)
	Delete(ctx context.Context, id string) error
}

type MenuItemAdmin interface {
	List(ctx context.Context, filter api.MenuFilter) ([]api.MenuItem, error)
	Create(ctx context.Context, in api.MenuItemInput) (*api.MenuItem, error)
	Update(ctx context.Context, id string, in api.MenuItemInput) (*api.MenuItem, error)
	Delete(ctx context.Context, id string) error
}

type CouponAdmin interface {
	List(ctx context.Context, includeInactive bool) ([]api.Coupon, error)
	Create(ctx context.Context, in api.CouponInput) (*api.Coupon, error)
	Update(ctx context.Context, id string, in api.CouponInput) (*api.Coupon, error)
	Delete(ctx context.Context, id string) error
}

type OrderLister interface {
	List(ctx context.Context, filter api.OrderFilter) ([]api.Order, error)
}

type HandlerDeps struct {
	Catalog  Catalog
	Cart     *cart.Cart
	UI       *ui.Store
	Session  *session.Session
	Notices  *notice.Feed
	Checkout *checkout.Orchestrator
	Widget   *checkout.HostedWidget
	Tracking *tracking.Registry
	Admin    AdminDeps
}

type AdminDeps struct {
	Aggregator *admin.Aggregator
	Dashboard  *admin.Dashboard
	Orders     OrderLister
	Categories CategoryAdmin
	MenuItems  MenuItemAdmin
	Coupons    CouponAdmin
}

type checkoutOutcome struct {
	result *checkout.Result
	err    error
}

type Handler struct {
	logger   aqm.Logger
	config   *aqm.Config
	tlm      *telemetry.HTTP
	catalog  Catalog
	cart     *cart.Cart
	ui       *ui.Store
	session  *session.Session
	notices  *notice.Feed
	checkout *checkout.Orchestrator
	widget   *checkout.HostedWidget
	tracking *tracking.Registry
	admin    AdminDeps

	attemptMu sync.Mutex
	attempt   chan checkoutOutcome
}

func NewHandler(hd HandlerDeps, config *aqm.Config, logger aqm.Logger) *Handler {
	if logger == nil {
		logger = aqm.NewNoopLogger()
	}
	if hd.Notices == nil {
		hd.Notices = notice.NewFeed()
	}
	if hd.Widget == nil {
		hd.Widget = checkout.NewHostedWidget()
	}

	return &Handler{
		config:   config,
		logger:   logger,
		tlm:      telemetry.NewHTTP(),
		catalog:  hd.Catalog,
		cart:     hd.Cart,
		ui:       hd.UI,
		session:  hd.Session,
		notices:  hd.Notices,
		checkout: hd.Checkout,
		widget:   hd.Widget,
		tracking: hd.Tracking,
		admin:    hd.Admin,
	}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/catalog", func(r chi.Router) {
		r.Get("/categories", h.ListCategories)
		r.Get("/items", h.ListMenuItems)
		r.Get("/items/{id}", h.GetMenuItem)
	})

	r.Route("/cart", func(r chi.Router) {
		r.Get("/", h.GetCart)
		r.Delete("/", h.ClearCart)
		r.Post("/items", h.AddCartItem)
		r.Put("/items/{menuItemID}/{variant}", h.UpdateCartItem)
		r.Delete("/items/{menuItemID}/{variant}", h.RemoveCartItem)
	})

	r.Route("/ui", func(r chi.Router) {
		r.Get("/", h.GetUI)
		r.Post("/overlays/{overlay}/{action}", h.ChangeOverlay)
		r.Put("/theme", h.SetTheme)
		r.Post("/theme/toggle", h.ToggleTheme)
	})

	r.Route("/checkout", func(r chi.Router) {
		r.Get("/", h.GetCheckout)
		r.Post("/", h.SubmitCheckout)
		r.Post("/coupon", h.ApplyCoupon)
		r.Delete("/coupon", h.RemoveCoupon)
		r.Post("/payment", h.CompletePayment)
		r.Post("/payment/cancel", h.CancelPayment)
		r.Post("/payment/fail", h.FailPayment)
	})

	r.Get("/orders/{orderID}/track", h.TrackOrder)
	r.Get("/notices", h.DrainNotices)

	r.Route("/session", func(r chi.Router) {
		r.Get("/", h.GetSession)
		r.Post("/", h.SignIn)
		r.Delete("/", h.SignOut)
	})

	r.Route("/admin", func(r chi.Router) {
		r.Use(h.requireAdmin)

		r.Get("/feed", h.ListNewOrders)
		r.Delete("/feed", h.ClearNewOrders)
		r.Get("/feed/stream", h.StreamNewOrders)
		r.Get("/dashboard", h.GetDashboard)
		r.Get("/orders", h.ListOrders)
		r.Post("/orders/{orderID}/advance", h.AdvanceOrder)

		r.Route("/categories", func(r chi.Router) {
			r.Get("/", h.AdminListCategories)
			r.Post("/", h.CreateCategory)
			r.Put("/{id}", h.UpdateCategory)
			r.Delete("/{id}", h.DeleteCategory)
		})

		r.Route("/items", func(r chi.Router) {
			r.Get("/", h.AdminListMenuItems)
			r.Post("/", h.CreateMenuItem)
			r.Put("/{id}", h.UpdateMenuItem)
			r.Delete("/{id}", h.DeleteMenuItem)
		})

		r.Route("/coupons", func(r chi.Router) {
			r.Get("/", h.AdminListCoupons)
			r.Post("/", h.CreateCoupon)
			r.Put("/{id}", h.UpdateCoupon)
			r.Delete("/{id}", h.DeleteCoupon)
		})
	})
}

func (h *Handler) requireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if h.session == nil || !h.session.IsAuthenticated() {
			aqm.RespondError(w, http.StatusUnauthorized, "Sign in required")
			return
		}
		if !h.session.IsAdmin() {
			h.log(r).Info("non-admin user rejected", "path", r.URL.Path)
			aqm.RespondError(w, http.StatusForbidden, "Admin access required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// respondErr maps domain and API errors to a status and the message shown
// to the shopper.
func (h *Handler) respondErr(w http.ResponseWriter, log aqm.Logger, err error, fallback string) {
	var verrs api.ValidationErrors
	if errors.As(err, &verrs) {
		log.Debug("validation failed", "error", err)
		aqm.Respond(w, http.StatusUnprocessableEntity, map[string]interface{}{
			"errors": verrs,
		}, nil)
		return
	}

	var apiErr *api.Error
	switch {
	case errors.Is(err, cart.ErrItemUnavailable):
		aqm.RespondError(w, http.StatusConflict, "Item is not available")
	case errors.Is(err, checkout.ErrEmptyCart):
		aqm.RespondError(w, http.StatusConflict, "Your cart is empty")
	case errors.Is(err, checkout.ErrCheckoutInProgress), errors.Is(err, checkout.ErrWidgetBusy):
		aqm.RespondError(w, http.StatusConflict, "Checkout already in progress")
	case errors.Is(err, checkout.ErrNoPendingPayment):
		aqm.RespondError(w, http.StatusConflict, "No payment is awaiting a result")
	case errors.Is(err, checkout.ErrCouponInvalid):
		aqm.RespondError(w, http.StatusUnprocessableEntity, "Invalid coupon")
	case errors.Is(err, checkout.ErrVerificationFailed):
		aqm.RespondError(w, http.StatusPaymentRequired, "Payment verification failed")
	case errors.Is(err, checkout.ErrPaymentFailed):
		aqm.RespondError(w, http.StatusPaymentRequired, "Payment failed. Please try again.")
	case errors.Is(err, ui.ErrUnknownOverlay):
		aqm.RespondError(w, http.StatusNotFound, "Unknown overlay")
	case errors.Is(err, admin.ErrNoNextStatus), errors.Is(err, admin.ErrUnknownStatus):
		aqm.RespondError(w, http.StatusConflict, "Order status cannot advance")
	case errors.Is(err, session.ErrNotSignedIn):
		aqm.RespondError(w, http.StatusUnauthorized, "Sign in required")
	case errors.As(err, &apiErr):
		status := apiErr.Status
		if status == 0 || status >= http.StatusInternalServerError {
			status = http.StatusBadGateway
		}
		log.Info("api request failed", "kind", apiErr.Kind, "status", apiErr.Status, "error", err)
		aqm.RespondError(w, status, apiErr.Notice())
	default:
		log.Error(fallback, "error", err)
		aqm.RespondError(w, http.StatusInternalServerError, fallback)
	}
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, log aqm.Logger, v interface{}) bool {
	r.Body = http.MaxBytesReader(w, r.Body, MaxBodyBytes)
	defer r.Body.Close()

	body, err := io.ReadAll(r.Body)
	if err != nil {
		log.Debug("failed to read request body", "error", err)
		aqm.RespondError(w, http.StatusBadRequest, "Failed to read request body")
		return false
	}
	if len(body) == 0 {
		return true
	}

	if err := json.Unmarshal(body, v); err != nil {
		log.Debug("failed to decode request body", "error", err)
		aqm.RespondError(w, http.StatusBadRequest, "Invalid JSON in request body")
		return false
	}
	return true
}

// pathParam returns the unescaped route parameter.
func pathParam(r *http.Request, name string) string {
	raw := chi.URLParam(r, name)
	if v, err := url.PathUnescape(raw); err == nil {
		return v
	}
	return raw
}

func (h *Handler) log(r *http.Request) aqm.Logger {
	return h.logger.With("request_id", aqm.RequestIDFrom(r.Context()))
}
