package storefront

import (
	"errors"
	"net/http"

	"github.com/aquamarinepk/aqm"

	"github.com/appetiteclub/storefront/services/storefront/internal/api"
)

type AdvanceRequest struct {
	EstimatedTime *int `json:"estimatedTime,omitempty"`
}

// Order feed

func (h *Handler) ListNewOrders(w http.ResponseWriter, r *http.Request) {
	w, r, finish := h.tlm.Start(w, r, "Handler.ListNewOrders")
	defer finish()

	aqm.RespondSuccess(w, h.admin.Aggregator.NewOrders())
}

func (h *Handler) ClearNewOrders(w http.ResponseWriter, r *http.Request) {
	w, r, finish := h.tlm.Start(w, r, "Handler.ClearNewOrders")
	defer finish()

	h.admin.Aggregator.ClearNewOrders()
	aqm.RespondSuccess(w, []api.Order{})
}

// Dashboard

func (h *Handler) GetDashboard(w http.ResponseWriter, r *http.Request) {
	w, r, finish := h.tlm.Start(w, r, "Handler.GetDashboard")
	defer finish()

	view, err := h.admin.Dashboard.View(r.Context())
	if err != nil {
		h.respondErr(w, h.log(r), err, "Could not load dashboard")
		return
	}

	aqm.RespondSuccess(w, view)
}

func (h *Handler) ListOrders(w http.ResponseWriter, r *http.Request) {
	w, r, finish := h.tlm.Start(w, r, "Handler.ListOrders")
	defer finish()

	q := r.URL.Query()
	filter := api.OrderFilter{
		Status:    q.Get("status"),
		StartDate: q.Get("startDate"),
		EndDate:   q.Get("endDate"),
	}

	orders, err := h.admin.Orders.List(r.Context(), filter)
	if err != nil {
		h.respondErr(w, h.log(r), err, "Could not retrieve orders")
		return
	}

	aqm.RespondSuccess(w, orders)
}

func (h *Handler) AdvanceOrder(w http.ResponseWriter, r *http.Request) {
	w, r, finish := h.tlm.Start(w, r, "Handler.AdvanceOrder")
	defer finish()

	log := h.log(r)

	var req AdvanceRequest
	if !h.decode(w, r, log, &req) {
		return
	}

	order, err := h.admin.Dashboard.Advance(r.Context(), pathParam(r, "orderID"), req.EstimatedTime)
	if err != nil {
		h.respondErr(w, log, err, "Could not update order status")
		return
	}

	aqm.RespondSuccess(w, order)
}

// Categories

func (h *Handler) AdminListCategories(w http.ResponseWriter, r *http.Request) {
	w, r, finish := h.tlm.Start(w, r, "Handler.AdminListCategories")
	defer finish()

	cats, err := h.admin.Categories.List(r.Context(), true)
	if err != nil {
		h.respondErr(w, h.log(r), err, "Could not retrieve categories")
		return
	}

	aqm.RespondSuccess(w, cats)
}

func (h *Handler) CreateCategory(w http.ResponseWriter, r *http.Request) {
	w, r, finish := h.tlm.Start(w, r, "Handler.CreateCategory")
	defer finish()

	log := h.log(r)

	var in api.CategoryInput
	if !h.decode(w, r, log, &in) {
		return
	}

	cat, err := h.admin.Categories.Create(r.Context(), in)
	if err != nil {
		h.adminFailed(w, log, err, "Failed to save category")
		return
	}

	h.catalogChanged("Category created")
	w.WriteHeader(http.StatusCreated)
	aqm.RespondSuccess(w, cat)
}

func (h *Handler) UpdateCategory(w http.ResponseWriter, r *http.Request) {
	w, r, finish := h.tlm.Start(w, r, "Handler.UpdateCategory")
	defer finish()

	log := h.log(r)

	var in api.CategoryInput
	if !h.decode(w, r, log, &in) {
		return
	}

	cat, err := h.admin.Categories.Update(r.Context(), pathParam(r, "id"), in)
	if err != nil {
		h.adminFailed(w, log, err, "Failed to save category")
		return
	}

	h.catalogChanged("Category updated")
	aqm.RespondSuccess(w, cat)
}

func (h *Handler) DeleteCategory(w http.ResponseWriter, r *http.Request) {
	w, r, finish := h.tlm.Start(w, r, "Handler.DeleteCategory")
	defer finish()

	log := h.log(r)

	if err := h.admin.Categories.Delete(r.Context(), pathParam(r, "id")); err != nil {
		h.adminFailed(w, log, err, "Failed to delete category")
		return
	}

	h.catalogChanged("Category deleted")
	w.WriteHeader(http.StatusNoContent)
}

// Menu items

func (h *Handler) AdminListMenuItems(w http.ResponseWriter, r *http.Request) {
	w, r, finish := h.tlm.Start(w, r, "Handler.AdminListMenuItems")
	defer finish()

	filter := api.MenuFilter{
		CategoryID: r.URL.Query().Get("category"),
		Search:     r.URL.Query().Get("search"),
	}

	items, err := h.admin.MenuItems.List(r.Context(), filter)
	if err != nil {
		h.respondErr(w, h.log(r), err, "Could not retrieve menu items")
		return
	}

	aqm.RespondSuccess(w, items)
}

func (h *Handler) CreateMenuItem(w http.ResponseWriter, r *http.Request) {
	w, r, finish := h.tlm.Start(w, r, "Handler.CreateMenuItem")
	defer finish()

	log := h.log(r)

	var in api.MenuItemInput
	if !h.decode(w, r, log, &in) {
		return
	}

	item, err := h.admin.MenuItems.Create(r.Context(), in)
	if err != nil {
		h.adminFailed(w, log, err, "Failed to save menu item")
		return
	}

	h.catalogChanged("Menu item created")
	w.WriteHeader(http.StatusCreated)
	aqm.RespondSuccess(w, item)
}

func (h *Handler) UpdateMenuItem(w http.ResponseWriter, r *http.Request) {
	w, r, finish := h.tlm.Start(w, r, "Handler.UpdateMenuItem")
	defer finish()

	log := h.log(r)

	var in api.MenuItemInput
	if !h.decode(w, r, log, &in) {
		return
	}

	item, err := h.admin.MenuItems.Update(r.Context(), pathParam(r, "id"), in)
	if err != nil {
		h.adminFailed(w, log, err, "Failed to save menu item")
		return
	}

	h.catalogChanged("Menu item updated")
	aqm.RespondSuccess(w, item)
}

func (h *Handler) DeleteMenuItem(w http.ResponseWriter, r *http.Request) {
	w, r, finish := h.tlm.Start(w, r, "Handler.DeleteMenuItem")
	defer finish()

	log := h.log(r)

	if err := h.admin.MenuItems.Delete(r.Context(), pathParam(r, "id")); err != nil {
		h.adminFailed(w, log, err, "Failed to delete menu item")
		return
	}

	h.catalogChanged("Menu item deleted")
	w.WriteHeader(http.StatusNoContent)
}

// Coupons

func (h *Handler) AdminListCoupons(w http.ResponseWriter, r *http.Request) {
	w, r, finish := h.tlm.Start(w, r, "Handler.AdminListCoupons")
	defer finish()

	coupons, err := h.admin.Coupons.List(r.Context(), true)
	if err != nil {
		h.respondErr(w, h.log(r), err, "Could not retrieve coupons")
		return
	}

	aqm.RespondSuccess(w, coupons)
}

func (h *Handler) CreateCoupon(w http.ResponseWriter, r *http.Request) {
	w, r, finish := h.tlm.Start(w, r, "Handler.CreateCoupon")
	defer finish()

	log := h.log(r)

	var in api.CouponInput
	if !h.decode(w, r, log, &in) {
		return
	}

	coupon, err := h.admin.Coupons.Create(r.Context(), in)
	if err != nil {
		h.adminFailed(w, log, err, "Failed to save coupon")
		return
	}

	h.notices.Success("Coupon created")
	w.WriteHeader(http.StatusCreated)
	aqm.RespondSuccess(w, coupon)
}

func (h *Handler) UpdateCoupon(w http.ResponseWriter, r *http.Request) {
	w, r, finish := h.tlm.Start(w, r, "Handler.UpdateCoupon")
	defer finish()

	log := h.log(r)

	var in api.CouponInput
	if !h.decode(w, r, log, &in) {
		return
	}

	coupon, err := h.admin.Coupons.Update(r.Context(), pathParam(r, "id"), in)
	if err != nil {
		h.adminFailed(w, log, err, "Failed to save coupon")
		return
	}

	h.notices.Success("Coupon updated")
	aqm.RespondSuccess(w, coupon)
}

func (h *Handler) DeleteCoupon(w http.ResponseWriter, r *http.Request) {
	w, r, finish := h.tlm.Start(w, r, "Handler.DeleteCoupon")
	defer finish()

	log := h.log(r)

	if err := h.admin.Coupons.Delete(r.Context(), pathParam(r, "id")); err != nil {
		h.adminFailed(w, log, err, "Failed to delete coupon")
		return
	}

	h.notices.Success("Coupon deleted")
	w.WriteHeader(http.StatusNoContent)
}

// catalogChanged drops cached listings so the change shows before the push
// event arrives.
func (h *Handler) catalogChanged(msg string) {
	if h.catalog != nil {
		h.catalog.Invalidate()
	}
	h.notices.Success(msg)
}

// adminFailed surfaces the failure as a notice as well as the response.
// Validation failures are shown next to the form fields instead.
func (h *Handler) adminFailed(w http.ResponseWriter, log aqm.Logger, err error, fallback string) {
	var verrs api.ValidationErrors
	if !errors.As(err, &verrs) {
		var apiErr *api.Error
		if errors.As(err, &apiErr) {
			h.notices.Error(apiErr.Notice())
		} else {
			h.notices.Error(fallback)
		}
	}
	h.respondErr(w, log, err, fallback)
}
