package handler

import (
	"net/http"

	"github.com/go-faster/errors"
	"go.uber.org/zap"

	"github.com/aurumlabs/aurum/internal/payment"
)

// ccavenueCallback receives the browser-posted encrypted form from the
// redirect gateway, records the outcome, and sends the browser to the
// success or failure page.
func (h *Handler) ccavenueCallback(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		h.respondError(w, http.StatusBadRequest, "malformed form body")
		return
	}

	result, err := h.ccavenue.HandleCallback(r.PostFormValue("encResp"))
	if err != nil {
		h.lg.Warn("ccavenue callback rejected", zap.Error(err))
		h.respondError(w, http.StatusBadRequest, "invalid callback payload")
		return
	}

	if result.Success {
		_, err = h.orders.ConfirmPayment(r.Context(), payment.Confirmation{
			OrderID:   result.OrderID,
			Method:    payment.MethodCCAvenue,
			Reference: result.Params.Get("tracking_id"),
			Success:   true,
		})
	} else {
		_, err = h.orders.FailPayment(r.Context(), result.OrderID, result.Params.Get("tracking_id"))
	}
	if err != nil {
		h.lg.Error("record ccavenue outcome",
			zap.String("order_id", result.OrderID), zap.Error(err))
	}

	target := h.cfg.PaymentFailureURL
	if result.Success {
		target = h.cfg.PaymentSuccessURL
	}
	http.Redirect(w, r, target, http.StatusFound)
}

// razorpayVerify checks the client-supplied payment signature. A mismatch
// changes nothing and returns 400.
func (h *Handler) razorpayVerify(w http.ResponseWriter, r *http.Request) {
	var req struct {
		RazorpayOrderID   string `json:"razorpay_order_id"`
		RazorpayPaymentID string `json:"razorpay_payment_id"`
		RazorpaySignature string `json:"razorpay_signature"`
	}
	if err := decode(r, &req); err != nil {
		h.respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	err := h.razorpay.VerifySignature(req.RazorpayOrderID, req.RazorpayPaymentID, req.RazorpaySignature)
	if err != nil {
		if errors.Is(err, payment.ErrSignatureMismatch) {
			h.respondError(w, http.StatusBadRequest, "signature verification failed")
			return
		}
		h.respondDomainError(w, err)
		return
	}

	o, err := h.orders.FindByPaymentRef(r.Context(), req.RazorpayOrderID)
	if err != nil {
		h.respondDomainError(w, err)
		return
	}

	confirmed, err := h.orders.ConfirmPayment(r.Context(), payment.Confirmation{
		OrderID:   o.ID,
		Method:    payment.MethodRazorpay,
		Reference: req.RazorpayPaymentID,
		Success:   true,
	})
	if err != nil {
		h.respondDomainError(w, err)
		return
	}
	h.respond(w, http.StatusOK, toOrderResponse(confirmed, nil))
}

// phonepeCallback handles the server-to-server result post. The provider
// retries on non-200, so the response is always 200 {success:true}; failures
// are only logged.
func (h *Handler) phonepeCallback(w http.ResponseWriter, r *http.Request) {
	ack := func() {
		h.respond(w, http.StatusOK, map[string]bool{"success": true})
	}

	var req struct {
		Response string `json:"response"`
	}
	if err := decode(r, &req); err != nil {
		h.lg.Warn("phonepe callback: malformed body", zap.Error(err))
		ack()
		return
	}

	payload, err := h.phonepe.DecodeCallback(req.Response)
	if err != nil {
		h.lg.Warn("phonepe callback: undecodable payload", zap.Error(err))
		ack()
		return
	}

	o, err := h.orders.FindByPaymentRef(r.Context(), payload.Data.MerchantTransactionID)
	if err != nil {
		h.lg.Warn("phonepe callback: unknown transaction",
			zap.String("merchant_txn_id", payload.Data.MerchantTransactionID), zap.Error(err))
		ack()
		return
	}

	if payload.Succeeded() {
		_, err = h.orders.ConfirmPayment(r.Context(), payment.Confirmation{
			OrderID:   o.ID,
			Method:    payment.MethodPhonePe,
			Reference: payload.Data.TransactionID,
			Success:   true,
		})
	} else {
		_, err = h.orders.FailPayment(r.Context(), o.ID, payload.Data.TransactionID)
	}
	if err != nil {
		h.lg.Error("record phonepe outcome", zap.String("order_id", o.ID), zap.Error(err))
	}
	ack()
}
