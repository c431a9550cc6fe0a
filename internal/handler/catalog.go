package handler

import (
	"net/http"

	"github.com/aurumlabs/aurum/internal/domain/catalog"
	"github.com/aurumlabs/aurum/internal/domain/pricing"
)

type itemResponse struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	Category    string  `json:"category,omitempty"`
	Purity      int     `json:"purity"`
	NetWeight   float64 `json:"net_weight"`
	CaratWeight float64 `json:"carat_weight,omitempty"`
	Clarity     string  `json:"clarity,omitempty"`
	Stock       int     `json:"stock"`

	Price *breakdownResponse `json:"price,omitempty"`
}

type breakdownResponse struct {
	MetalValue   float64 `json:"metal_value"`
	GemValue     float64 `json:"gem_value"`
	MakingCharge float64 `json:"making_charge"`
	OtherCharges float64 `json:"other_charges"`
	Tax          float64 `json:"tax"`
	FinalPrice   float64 `json:"final_price"`
}

func toItemResponse(it catalog.Item, b *pricing.Breakdown) itemResponse {
	resp := itemResponse{
		ID:          it.ID,
		Name:        it.Name,
		Category:    it.Category,
		Purity:      it.Purity,
		NetWeight:   it.NetWeight.InexactFloat64(),
		CaratWeight: it.CaratWeight.InexactFloat64(),
		Clarity:     it.Clarity,
		Stock:       it.Stock,
	}
	if b != nil {
		resp.Price = toBreakdownResponse(*b)
	}
	return resp
}

func toBreakdownResponse(b pricing.Breakdown) *breakdownResponse {
	return &breakdownResponse{
		MetalValue:   b.MetalValue.InexactFloat64(),
		GemValue:     b.GemValue.InexactFloat64(),
		MakingCharge: b.MakingCharge.InexactFloat64(),
		OtherCharges: b.OtherCharges.InexactFloat64(),
		Tax:          b.Tax.InexactFloat64(),
		FinalPrice:   b.FinalPrice.InexactFloat64(),
	}
}

// listItems returns the active catalog, each item quoted at current rates.
func (h *Handler) listItems(w http.ResponseWriter, r *http.Request) {
	items, err := h.items.List(r.Context())
	if err != nil {
		h.respondDomainError(w, err)
		return
	}

	breakdowns, err := h.pricer.QuoteAll(r.Context(), items)
	if err != nil {
		h.respondDomainError(w, err)
		return
	}

	out := make([]itemResponse, len(items))
	for i := range items {
		out[i] = toItemResponse(items[i], &breakdowns[i])
	}
	h.respond(w, http.StatusOK, out)
}

// getItem returns one item with its full price breakdown.
func (h *Handler) getItem(w http.ResponseWriter, r *http.Request) {
	it, err := h.items.GetItem(r.Context(), r.PathValue("id"))
	if err != nil {
		h.respondDomainError(w, err)
		return
	}

	b, err := h.pricer.Quote(r.Context(), it)
	if err != nil {
		h.respondDomainError(w, err)
		return
	}
	h.respond(w, http.StatusOK, toItemResponse(*it, &b))
}
