package storefront

import (
	"net/http"
	"strconv"

	"github.com/aquamarinepk/aqm"
	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/appetiteclub/storefront/services/storefront/internal/api"
	"github.com/appetiteclub/storefront/services/storefront/internal/cart"
	"github.com/appetiteclub/storefront/services/storefront/internal/ui"
)

type CartItemRequest struct {
	MenuItemID string `json:"menuItemId"`
	Variant    string `json:"variant"`
	Quantity   int    `json:"quantity"`
}

type QuantityRequest struct {
	Quantity int `json:"quantity"`
}

type ThemeRequest struct {
	Theme ui.Theme `json:"theme"`
}

type SignInRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type CartView struct {
	Items     []cart.Line     `json:"items"`
	Total     decimal.Decimal `json:"total"`
	ItemCount int             `json:"itemCount"`
}

type SessionView struct {
	Authenticated bool      `json:"authenticated"`
	Admin         bool      `json:"admin"`
	User          *api.User `json:"user,omitempty"`
}

// Catalog

func (h *Handler) ListCategories(w http.ResponseWriter, r *http.Request) {
	w, r, finish := h.tlm.Start(w, r, "Handler.ListCategories")
	defer finish()

	log := h.log(r)
	includeInactive, _ := strconv.ParseBool(r.URL.Query().Get("includeInactive"))

	cats, err := h.catalog.Categories(r.Context(), includeInactive)
	if err != nil {
		h.respondErr(w, log, err, "Could not retrieve categories")
		return
	}

	aqm.RespondSuccess(w, cats)
}

func (h *Handler) ListMenuItems(w http.ResponseWriter, r *http.Request) {
	w, r, finish := h.tlm.Start(w, r, "Handler.ListMenuItems")
	defer finish()

	log := h.log(r)
	filter := api.MenuFilter{
		CategoryID: r.URL.Query().Get("category"),
		Search:     r.URL.Query().Get("search"),
	}

	items, err := h.catalog.MenuItems(r.Context(), filter)
	if err != nil {
		h.respondErr(w, log, err, "Could not retrieve menu items")
		return
	}

	aqm.RespondSuccess(w, items)
}

func (h *Handler) GetMenuItem(w http.ResponseWriter, r *http.Request) {
	w, r, finish := h.tlm.Start(w, r, "Handler.GetMenuItem")
	defer finish()

	log := h.log(r)

	item, err := h.catalog.MenuItem(r.Context(), pathParam(r, "id"))
	if err != nil {
		h.respondErr(w, log, err, "Could not retrieve menu item")
		return
	}

	aqm.RespondSuccess(w, item)
}

// Cart

func (h *Handler) GetCart(w http.ResponseWriter, r *http.Request) {
	w, r, finish := h.tlm.Start(w, r, "Handler.GetCart")
	defer finish()

	aqm.RespondSuccess(w, h.cartView())
}

func (h *Handler) AddCartItem(w http.ResponseWriter, r *http.Request) {
	w, r, finish := h.tlm.Start(w, r, "Handler.AddCartItem")
	defer finish()

	log := h.log(r)
	ctx := r.Context()

	var req CartItemRequest
	if !h.decode(w, r, log, &req) {
		return
	}
	if req.MenuItemID == "" || req.Variant == "" {
		aqm.RespondError(w, http.StatusBadRequest, "menuItemId and variant are required")
		return
	}

	item, err := h.catalog.MenuItem(ctx, req.MenuItemID)
	if err != nil {
		h.respondErr(w, log, err, "Could not retrieve menu item")
		return
	}

	variant, ok := item.Variant(req.Variant)
	if !ok {
		log.Debug("unknown variant", "menu_item_id", item.ID, "variant", req.Variant)
		aqm.RespondError(w, http.StatusUnprocessableEntity, "Unknown variant")
		return
	}

	if err := h.cart.AddItem(ctx, *item, variant, req.Quantity); err != nil {
		h.respondErr(w, log, err, "Could not add item to cart")
		return
	}

	aqm.RespondSuccess(w, h.cartView())
}

func (h *Handler) UpdateCartItem(w http.ResponseWriter, r *http.Request) {
	w, r, finish := h.tlm.Start(w, r, "Handler.UpdateCartItem")
	defer finish()

	log := h.log(r)

	var req QuantityRequest
	if !h.decode(w, r, log, &req) {
		return
	}

	err := h.cart.UpdateQuantity(r.Context(), pathParam(r, "menuItemID"), pathParam(r, "variant"), req.Quantity)
	if err != nil {
		h.respondErr(w, log, err, "Could not update cart")
		return
	}

	aqm.RespondSuccess(w, h.cartView())
}

func (h *Handler) RemoveCartItem(w http.ResponseWriter, r *http.Request) {
	w, r, finish := h.tlm.Start(w, r, "Handler.RemoveCartItem")
	defer finish()

	log := h.log(r)

	if err := h.cart.RemoveItem(r.Context(), pathParam(r, "menuItemID"), pathParam(r, "variant")); err != nil {
		h.respondErr(w, log, err, "Could not update cart")
		return
	}

	aqm.RespondSuccess(w, h.cartView())
}

func (h *Handler) ClearCart(w http.ResponseWriter, r *http.Request) {
	w, r, finish := h.tlm.Start(w, r, "Handler.ClearCart")
	defer finish()

	if err := h.cart.Clear(r.Context()); err != nil {
		h.respondErr(w, h.log(r), err, "Could not clear cart")
		return
	}

	aqm.RespondSuccess(w, h.cartView())
}

func (h *Handler) cartView() CartView {
	return CartView{
		Items:     h.cart.Lines(),
		Total:     h.cart.Total(),
		ItemCount: h.cart.ItemCount(),
	}
}

// UI

func (h *Handler) GetUI(w http.ResponseWriter, r *http.Request) {
	w, r, finish := h.tlm.Start(w, r, "Handler.GetUI")
	defer finish()

	aqm.RespondSuccess(w, h.ui.Snapshot())
}

func (h *Handler) ChangeOverlay(w http.ResponseWriter, r *http.Request) {
	w, r, finish := h.tlm.Start(w, r, "Handler.ChangeOverlay")
	defer finish()

	log := h.log(r)
	overlay := ui.Overlay(chi.URLParam(r, "overlay"))

	var err error
	switch chi.URLParam(r, "action") {
	case "open":
		err = h.ui.Open(overlay)
	case "close":
		err = h.ui.Close(overlay)
	case "toggle":
		err = h.ui.Toggle(overlay)
	default:
		aqm.RespondError(w, http.StatusBadRequest, "Invalid overlay action")
		return
	}
	if err != nil {
		h.respondErr(w, log, err, "Could not change overlay")
		return
	}

	aqm.RespondSuccess(w, h.ui.Snapshot())
}

func (h *Handler) SetTheme(w http.ResponseWriter, r *http.Request) {
	w, r, finish := h.tlm.Start(w, r, "Handler.SetTheme")
	defer finish()

	log := h.log(r)

	var req ThemeRequest
	if !h.decode(w, r, log, &req) {
		return
	}
	if !req.Theme.Valid() {
		aqm.RespondError(w, http.StatusBadRequest, "Invalid theme")
		return
	}

	if err := h.ui.SetTheme(r.Context(), req.Theme); err != nil {
		h.respondErr(w, log, err, "Could not save theme")
		return
	}

	aqm.RespondSuccess(w, h.ui.Snapshot())
}

func (h *Handler) ToggleTheme(w http.ResponseWriter, r *http.Request) {
	w, r, finish := h.tlm.Start(w, r, "Handler.ToggleTheme")
	defer finish()

	if _, err := h.ui.ToggleTheme(r.Context()); err != nil {
		h.respondErr(w, h.log(r), err, "Could not save theme")
		return
	}

	aqm.RespondSuccess(w, h.ui.Snapshot())
}

// Notices

func (h *Handler) DrainNotices(w http.ResponseWriter, r *http.Request) {
	w, r, finish := h.tlm.Start(w, r, "Handler.DrainNotices")
	defer finish()

	aqm.RespondSuccess(w, h.notices.Drain())
}

// Session

func (h *Handler) GetSession(w http.ResponseWriter, r *http.Request) {
	w, r, finish := h.tlm.Start(w, r, "Handler.GetSession")
	defer finish()

	aqm.RespondSuccess(w, h.sessionView())
}

func (h *Handler) SignIn(w http.ResponseWriter, r *http.Request) {
	w, r, finish := h.tlm.Start(w, r, "Handler.SignIn")
	defer finish()

	log := h.log(r)
	ctx := r.Context()

	var req SignInRequest
	if !h.decode(w, r, log, &req) {
		return
	}
	if req.Email == "" || req.Password == "" {
		aqm.RespondError(w, http.StatusBadRequest, "email and password are required")
		return
	}

	if _, err := h.session.SignIn(ctx, req.Email, req.Password); err != nil {
		log.Info("sign in failed", "error", err)
		aqm.RespondError(w, http.StatusUnauthorized, "Invalid credentials")
		return
	}

	if h.session.IsAdmin() && h.admin.Aggregator != nil {
		if err := h.admin.Aggregator.Start(ctx); err != nil {
			log.Error("cannot join admin room", "error", err)
		}
	}

	aqm.RespondSuccess(w, h.sessionView())
}

func (h *Handler) SignOut(w http.ResponseWriter, r *http.Request) {
	w, r, finish := h.tlm.Start(w, r, "Handler.SignOut")
	defer finish()

	if err := h.session.SignOut(r.Context()); err != nil {
		h.respondErr(w, h.log(r), err, "Could not sign out")
		return
	}

	aqm.RespondSuccess(w, h.sessionView())
}

func (h *Handler) sessionView() SessionView {
	view := SessionView{
		Authenticated: h.session.IsAuthenticated(),
		Admin:         h.session.IsAdmin(),
	}
	if user, ok := h.session.User(); ok {
		view.User = &user
	}
	return view
}
