package storefront

import (
	"context"
	"errors"
	"net/http"

	"github.com/aquamarinepk/aqm"

	"github.com/appetiteclub/storefront/services/storefront/internal/checkout"
)

type CouponRequest struct {
	Code string `json:"code"`
}

type PaymentFailureRequest struct {
	Reason string `json:"reason"`
}

type CheckoutView struct {
	Summary checkout.Summary        `json:"summary"`
	Payment *checkout.WidgetOptions `json:"payment,omitempty"`
}

type CheckoutResult struct {
	Status  string                  `json:"status"`
	Payment *checkout.WidgetOptions `json:"payment,omitempty"`
	Result  *checkout.Result        `json:"result,omitempty"`
}

func (h *Handler) GetCheckout(w http.ResponseWriter, r *http.Request) {
	w, r, finish := h.tlm.Start(w, r, "Handler.GetCheckout")
	defer finish()

	view := CheckoutView{Summary: h.checkout.Summary()}
	if opts, ok := h.widget.Pending(); ok {
		view.Payment = &opts
	}

	aqm.RespondSuccess(w, view)
}

func (h *Handler) ApplyCoupon(w http.ResponseWriter, r *http.Request) {
	w, r, finish := h.tlm.Start(w, r, "Handler.ApplyCoupon")
	defer finish()

	log := h.log(r)

	var req CouponRequest
	if !h.decode(w, r, log, &req) {
		return
	}

	if _, err := h.checkout.ApplyCoupon(r.Context(), req.Code); err != nil {
		h.respondErr(w, log, err, "Failed to apply coupon")
		return
	}

	aqm.RespondSuccess(w, CheckoutView{Summary: h.checkout.Summary()})
}

func (h *Handler) RemoveCoupon(w http.ResponseWriter, r *http.Request) {
	w, r, finish := h.tlm.Start(w, r, "Handler.RemoveCoupon")
	defer finish()

	h.checkout.RemoveCoupon()
	aqm.RespondSuccess(w, CheckoutView{Summary: h.checkout.Summary()})
}

// SubmitCheckout starts an attempt in the background. It answers 202 with
// the widget options once payment is awaited, or with the final outcome if
// the attempt ends before that.
func (h *Handler) SubmitCheckout(w http.ResponseWriter, r *http.Request) {
	w, r, finish := h.tlm.Start(w, r, "Handler.SubmitCheckout")
	defer finish()

	log := h.log(r)

	var form checkout.CustomerForm
	if !h.decode(w, r, log, &form) {
		return
	}

	h.attemptMu.Lock()
	if h.attempt != nil {
		// An attempt nobody collected can be discarded once it has ended.
		select {
		case <-h.attempt:
			h.attempt = nil
		default:
			h.attemptMu.Unlock()
			h.respondErr(w, log, checkout.ErrCheckoutInProgress, "Checkout already in progress")
			return
		}
	}
	done := make(chan checkoutOutcome, 1)
	h.attempt = done
	h.attemptMu.Unlock()

	h.widget.Drain()
	go h.runCheckout(form, done)

	select {
	case opts := <-h.widget.Opened():
		aqm.Respond(w, http.StatusAccepted, CheckoutResult{Status: "awaiting_payment", Payment: &opts}, nil)
	case out := <-done:
		h.finishAttempt(done)
		h.respondOutcome(w, log, out)
	case <-r.Context().Done():
		log.Info("checkout request closed before payment opened")
	}
}

func (h *Handler) runCheckout(form checkout.CustomerForm, done chan checkoutOutcome) {
	ctx, cancel := context.WithTimeout(context.Background(), CheckoutTimeout)
	defer cancel()

	res, err := h.checkout.Submit(ctx, form, h.widget)
	done <- checkoutOutcome{result: res, err: err}
}

func (h *Handler) CompletePayment(w http.ResponseWriter, r *http.Request) {
	w, r, finish := h.tlm.Start(w, r, "Handler.CompletePayment")
	defer finish()

	log := h.log(r)

	var res checkout.GatewayResult
	if !h.decode(w, r, log, &res) {
		return
	}
	if res.GatewayPaymentID == "" || res.GatewaySignature == "" {
		aqm.RespondError(w, http.StatusBadRequest, "Payment result is incomplete")
		return
	}

	h.resolvePayment(w, r, log, func() error { return h.widget.Complete(res) })
}

func (h *Handler) CancelPayment(w http.ResponseWriter, r *http.Request) {
	w, r, finish := h.tlm.Start(w, r, "Handler.CancelPayment")
	defer finish()

	h.resolvePayment(w, r, h.log(r), h.widget.Cancel)
}

func (h *Handler) FailPayment(w http.ResponseWriter, r *http.Request) {
	w, r, finish := h.tlm.Start(w, r, "Handler.FailPayment")
	defer finish()

	log := h.log(r)

	var req PaymentFailureRequest
	if !h.decode(w, r, log, &req) {
		return
	}

	h.resolvePayment(w, r, log, func() error { return h.widget.Fail(req.Reason) })
}

// resolvePayment hands the widget outcome to the waiting attempt and
// reports how the attempt ended.
func (h *Handler) resolvePayment(w http.ResponseWriter, r *http.Request, log aqm.Logger, resolve func() error) {
	h.attemptMu.Lock()
	done := h.attempt
	h.attemptMu.Unlock()

	if err := resolve(); err != nil {
		h.respondErr(w, log, err, "Could not resolve payment")
		return
	}
	if done == nil {
		aqm.RespondError(w, http.StatusConflict, "No payment is awaiting a result")
		return
	}

	select {
	case out := <-done:
		h.finishAttempt(done)
		h.respondOutcome(w, log, out)
	case <-r.Context().Done():
		log.Info("payment request closed before checkout finished")
	}
}

func (h *Handler) finishAttempt(done chan checkoutOutcome) {
	h.attemptMu.Lock()
	defer h.attemptMu.Unlock()

	if h.attempt == done {
		h.attempt = nil
	}
}

func (h *Handler) respondOutcome(w http.ResponseWriter, log aqm.Logger, out checkoutOutcome) {
	switch {
	case out.err == nil:
		aqm.RespondSuccess(w, CheckoutResult{Status: "paid", Result: out.result})
	case errors.Is(out.err, checkout.ErrPaymentCancelled):
		aqm.RespondSuccess(w, CheckoutResult{Status: "cancelled"})
	default:
		h.respondErr(w, log, out.err, "Failed to create order. Please try again.")
	}
}
