package handler

import (
	"net/http"
	"strconv"

	"github.com/shopspring/decimal"

	"github.com/aurumlabs/aurum/internal/domain/cart"
	"github.com/aurumlabs/aurum/internal/domain/catalog"
	"github.com/aurumlabs/aurum/internal/domain/inventory"
)

// upsertItem creates or replaces a catalog item.
func (h *Handler) upsertItem(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ID          string          `json:"id"`
		Name        string          `json:"name"`
		Category    string          `json:"category"`
		Purity      int             `json:"purity"`
		NetWeight   decimal.Decimal `json:"net_weight"`
		CaratWeight decimal.Decimal `json:"carat_weight"`
		Clarity     string          `json:"clarity"`
		Stock       int             `json:"stock"`
		Active      bool            `json:"active"`
	}
	if err := decode(r, &req); err != nil {
		h.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.ID == "" || req.Name == "" {
		h.respondError(w, http.StatusBadRequest, "id and name are required")
		return
	}

	err := h.items.Upsert(r.Context(), catalog.Item{
		ID:          req.ID,
		Name:        req.Name,
		Category:    req.Category,
		Purity:      req.Purity,
		NetWeight:   req.NetWeight,
		CaratWeight: req.CaratWeight,
		Clarity:     req.Clarity,
		Stock:       req.Stock,
		Active:      req.Active,
	})
	if err != nil {
		h.respondDomainError(w, err)
		return
	}
	h.respond(w, http.StatusNoContent, nil)
}

// upsertRate sets the current metal or gem rate for a key. Quotes pick it up
// immediately; existing orders keep their frozen totals.
func (h *Handler) upsertRate(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Kind    string          `json:"kind"`
		Key     string          `json:"key"`
		PerUnit decimal.Decimal `json:"per_unit"`
	}
	if err := decode(r, &req); err != nil {
		h.respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	kind := catalog.RateKind(req.Kind)
	if kind != catalog.RateMetal && kind != catalog.RateGem {
		h.respondError(w, http.StatusBadRequest, "kind must be METAL or GEM")
		return
	}
	if req.Key == "" {
		h.respondError(w, http.StatusBadRequest, "key is required")
		return
	}
	if kind == catalog.RateMetal {
		if _, err := strconv.Atoi(req.Key); err != nil {
			h.respondError(w, http.StatusBadRequest, "metal rate key must be a purity number")
			return
		}
	}

	if err := h.rates.UpsertRate(r.Context(), catalog.Rate{Kind: kind, Key: req.Key, PerUnit: req.PerUnit}); err != nil {
		h.respondDomainError(w, err)
		return
	}
	h.respond(w, http.StatusNoContent, nil)
}

// upsertChargeRule creates or replaces a charge rule. The class is explicit;
// nothing is inferred from the rule's name.
func (h *Handler) upsertChargeRule(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ID     string          `json:"id"`
		Name   string          `json:"name"`
		Class  string          `json:"class"`
		Kind   string          `json:"kind"`
		Target string          `json:"target"`
		Amount decimal.Decimal `json:"amount"`
		Active bool            `json:"active"`
	}
	if err := decode(r, &req); err != nil {
		h.respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	class := catalog.ChargeClass(req.Class)
	switch class {
	case catalog.ChargeTax, catalog.ChargeMaking, catalog.ChargeOther:
	default:
		h.respondError(w, http.StatusBadRequest, "class must be TAX, MAKING or OTHER")
		return
	}

	err := h.rates.UpsertChargeRule(r.Context(), catalog.ChargeRule{
		ID:     req.ID,
		Name:   req.Name,
		Class:  class,
		Kind:   catalog.ChargeKind(req.Kind),
		Target: catalog.ChargeTarget(req.Target),
		Amount: req.Amount,
		Active: req.Active,
	})
	if err != nil {
		h.respondDomainError(w, err)
		return
	}
	h.respond(w, http.StatusNoContent, nil)
}

// replaceMakingTiers swaps the whole making-charge bracket table.
func (h *Handler) replaceMakingTiers(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Tiers []struct {
			ID        string           `json:"id"`
			MinWeight decimal.Decimal  `json:"min_weight"`
			MaxWeight *decimal.Decimal `json:"max_weight"`
			Kind      string           `json:"kind"`
			Amount    decimal.Decimal  `json:"amount"`
		} `json:"tiers"`
	}
	if err := decode(r, &req); err != nil {
		h.respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	tiers := make([]catalog.MakingTier, len(req.Tiers))
	for i, t := range req.Tiers {
		tiers[i] = catalog.MakingTier{
			ID:        t.ID,
			MinWeight: t.MinWeight,
			MaxWeight: t.MaxWeight,
			Kind:      catalog.ChargeKind(t.Kind),
			Amount:    t.Amount,
		}
	}

	if err := h.rates.ReplaceMakingTiers(r.Context(), tiers); err != nil {
		h.respondDomainError(w, err)
		return
	}
	h.respond(w, http.StatusNoContent, nil)
}

// upsertDiscountRule creates or replaces a cart threshold discount.
func (h *Handler) upsertDiscountRule(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ID           string          `json:"id"`
		MinCartValue decimal.Decimal `json:"min_cart_value"`
		Percent      decimal.Decimal `json:"percent"`
		Active       bool            `json:"active"`
	}
	if err := decode(r, &req); err != nil {
		h.respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	err := h.discounts.Upsert(r.Context(), cart.DiscountRule{
		ID:           req.ID,
		MinCartValue: req.MinCartValue,
		Percent:      req.Percent,
		Active:       req.Active,
	})
	if err != nil {
		h.respondDomainError(w, err)
		return
	}
	h.respond(w, http.StatusNoContent, nil)
}

// adjustInventory applies a manual signed stock delta with an audit reason.
func (h *Handler) adjustInventory(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ItemID  string `json:"item_id"`
		Delta   int    `json:"delta"`
		Reason  string `json:"reason"`
		ActorID string `json:"actor_id"`
	}
	if err := decode(r, &req); err != nil {
		h.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.Delta == 0 {
		h.respondError(w, http.StatusBadRequest, "delta must be non-zero")
		return
	}

	err := h.inventory.Adjust(r.Context(), req.ItemID, req.Delta,
		inventory.ActionAdminAdjust, req.Reason, req.ActorID)
	if err != nil {
		h.respondDomainError(w, err)
		return
	}
	h.respond(w, http.StatusNoContent, nil)
}

// inventoryLog returns the newest audit entries for an item.
func (h *Handler) inventoryLog(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > 500 {
			h.respondError(w, http.StatusBadRequest, "limit must be between 1 and 500")
			return
		}
		limit = n
	}

	entries, err := h.invLog.ListEntries(r.Context(), r.PathValue("itemID"), limit)
	if err != nil {
		h.respondDomainError(w, err)
		return
	}
	h.respond(w, http.StatusOK, entries)
}

// adjustLoyalty applies a manual point adjustment.
func (h *Handler) adjustLoyalty(w http.ResponseWriter, r *http.Request) {
	var req struct {
		CustomerID string `json:"customer_id"`
		Points     int64  `json:"points"`
		Reason     string `json:"reason"`
	}
	if err := decode(r, &req); err != nil {
		h.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.CustomerID == "" || req.Points == 0 {
		h.respondError(w, http.StatusBadRequest, "customer_id and a non-zero points delta are required")
		return
	}

	if err := h.loyalty.Adjust(r.Context(), req.CustomerID, req.Points, req.Reason); err != nil {
		h.respondDomainError(w, err)
		return
	}
	h.respond(w, http.StatusNoContent, nil)
}
