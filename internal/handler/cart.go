package handler

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/aurumlabs/aurum/internal/domain/cart"
)

type cartLineResponse struct {
	Item      itemResponse `json:"item"`
	Quantity  int          `json:"quantity"`
	LineTotal float64      `json:"line_total"`
}

type cartResponse struct {
	CartID        string             `json:"cart_id"`
	Lines         []cartLineResponse `json:"lines"`
	OriginalTotal float64            `json:"original_total"`
	RuleDiscount  float64            `json:"rule_discount,omitempty"`
	PromoCode     string             `json:"promo_code,omitempty"`
	PromoDiscount float64            `json:"promo_discount,omitempty"`
	PromoRemoved  bool               `json:"promo_removed,omitempty"`
	Total         float64            `json:"total"`
}

func toCartResponse(view *cart.View) cartResponse {
	resp := cartResponse{
		CartID:        view.Cart.ID,
		Lines:         make([]cartLineResponse, len(view.Lines)),
		OriginalTotal: view.OriginalTotal.InexactFloat64(),
		RuleDiscount:  view.RuleDiscount.InexactFloat64(),
		PromoDiscount: view.PromoDiscount.InexactFloat64(),
		Total:         view.Total.InexactFloat64(),
	}
	if !view.PromoInvalid {
		resp.PromoCode = view.Cart.PromoCode
	}
	for i, line := range view.Lines {
		b := line.Breakdown
		resp.Lines[i] = cartLineResponse{
			Item:      toItemResponse(line.Item, &b),
			Quantity:  line.Quantity,
			LineTotal: line.LineTotal.InexactFloat64(),
		}
	}
	return resp
}

// getCart returns the re-priced cart. A promo code that has gone invalid is
// detached here and reported once via promo_removed.
func (h *Handler) getCart(w http.ResponseWriter, r *http.Request) {
	customerID := r.PathValue("customerID")

	view, err := h.carts.Enrich(r.Context(), customerID)
	if err != nil {
		h.respondDomainError(w, err)
		return
	}

	resp := toCartResponse(view)
	if view.PromoInvalid {
		if err := h.carts.DetachInvalidPromo(r.Context(), view.Cart.ID); err != nil {
			h.respondDomainError(w, err)
			return
		}
		h.lg.Info("detached invalid promo code",
			zap.String("cart_id", view.Cart.ID),
			zap.String("code", view.Cart.PromoCode))
		resp.PromoRemoved = true
	}
	h.respond(w, http.StatusOK, resp)
}

func (h *Handler) addCartItem(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ItemID   string `json:"item_id"`
		Quantity int    `json:"quantity"`
	}
	if err := decode(r, &req); err != nil {
		h.respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.carts.AddLine(r.Context(), r.PathValue("customerID"), req.ItemID, req.Quantity); err != nil {
		h.respondDomainError(w, err)
		return
	}
	h.respond(w, http.StatusNoContent, nil)
}

func (h *Handler) updateCartItem(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Quantity int `json:"quantity"`
	}
	if err := decode(r, &req); err != nil {
		h.respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	err := h.carts.UpdateLine(r.Context(), r.PathValue("customerID"), r.PathValue("itemID"), req.Quantity)
	if err != nil {
		h.respondDomainError(w, err)
		return
	}
	h.respond(w, http.StatusNoContent, nil)
}

func (h *Handler) removeCartItem(w http.ResponseWriter, r *http.Request) {
	err := h.carts.RemoveLine(r.Context(), r.PathValue("customerID"), r.PathValue("itemID"))
	if err != nil {
		h.respondDomainError(w, err)
		return
	}
	h.respond(w, http.StatusNoContent, nil)
}

func (h *Handler) applyPromo(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Code string `json:"code"`
	}
	if err := decode(r, &req); err != nil {
		h.respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.carts.ApplyPromo(r.Context(), r.PathValue("customerID"), req.Code); err != nil {
		h.respondDomainError(w, err)
		return
	}
	h.respond(w, http.StatusNoContent, nil)
}

func (h *Handler) removePromo(w http.ResponseWriter, r *http.Request) {
	if err := h.carts.RemovePromo(r.Context(), r.PathValue("customerID")); err != nil {
		h.respondDomainError(w, err)
		return
	}
	h.respond(w, http.StatusNoContent, nil)
}

// getLoyalty returns the customer's points balance, lifetime spend and tier.
func (h *Handler) getLoyalty(w http.ResponseWriter, r *http.Request) {
	acct, err := h.accounts.GetAccount(r.Context(), r.PathValue("customerID"))
	if err != nil {
		h.respondDomainError(w, err)
		return
	}
	h.respond(w, http.StatusOK, map[string]any{
		"customer_id":    acct.CustomerID,
		"points":         acct.Points,
		"lifetime_spend": acct.LifetimeSpend.InexactFloat64(),
		"tier":           acct.Tier,
	})
}
