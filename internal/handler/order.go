package handler

import (
	"net/http"
	"time"

	"github.com/aurumlabs/aurum/internal/domain/order"
	"github.com/aurumlabs/aurum/internal/payment"
)

type addressPayload struct {
	Name       string `json:"name"`
	Phone      string `json:"phone"`
	Line1      string `json:"line1"`
	City       string `json:"city"`
	State      string `json:"state"`
	PostalCode string `json:"postal_code"`
}

func (a addressPayload) toDomain() order.Address {
	return order.Address(a)
}

type checkoutRequest struct {
	CustomerID    string          `json:"customer_id"`
	Email         string          `json:"email"`
	Shipping      addressPayload  `json:"shipping"`
	Billing       *addressPayload `json:"billing,omitempty"`
	PaymentMethod string          `json:"payment_method"`
	B2B           *struct {
		TaxID         string `json:"tax_id"`
		BusinessName  string `json:"business_name"`
		PlaceOfSupply string `json:"place_of_supply"`
	} `json:"b2b,omitempty"`
}

type sessionResponse struct {
	Method      string            `json:"method"`
	Reference   string            `json:"reference,omitempty"`
	RedirectURL string            `json:"redirect_url,omitempty"`
	Fields      map[string]string `json:"fields,omitempty"`
}

type orderLineResponse struct {
	ItemID    string  `json:"item_id"`
	Name      string  `json:"name"`
	Quantity  int     `json:"quantity"`
	UnitPrice float64 `json:"unit_price"`
}

type orderResponse struct {
	ID            string              `json:"id"`
	CustomerID    string              `json:"customer_id"`
	Status        string              `json:"status"`
	PaymentMethod string              `json:"payment_method,omitempty"`
	PaymentStatus string              `json:"payment_status"`
	OriginalTotal float64             `json:"original_total"`
	Discount      float64             `json:"discount"`
	Total         float64             `json:"total"`
	PromoCode     string              `json:"promo_code,omitempty"`
	ShipmentRef   string              `json:"shipment_ref,omitempty"`
	CreditNote    string              `json:"credit_note,omitempty"`
	CancelledAt   *time.Time          `json:"cancelled_at,omitempty"`
	CreatedAt     time.Time           `json:"created_at"`
	Lines         []orderLineResponse `json:"lines"`

	Payment *sessionResponse `json:"payment,omitempty"`
}

func toOrderResponse(o *order.Order, session *payment.Session) orderResponse {
	resp := orderResponse{
		ID:            o.ID,
		CustomerID:    o.CustomerID,
		Status:        string(o.Status),
		PaymentMethod: string(o.PaymentMethod),
		PaymentStatus: string(o.PaymentStatus),
		OriginalTotal: o.OriginalTotal.InexactFloat64(),
		Discount:      o.Discount.InexactFloat64(),
		Total:         o.Total.InexactFloat64(),
		PromoCode:     o.PromoCode,
		ShipmentRef:   o.ShipmentRef,
		CreditNote:    o.CreditNote,
		CancelledAt:   o.CancelledAt,
		CreatedAt:     o.CreatedAt,
		Lines:         make([]orderLineResponse, len(o.Lines)),
	}
	for i, l := range o.Lines {
		resp.Lines[i] = orderLineResponse{
			ItemID:    l.ItemID,
			Name:      l.Name,
			Quantity:  l.Quantity,
			UnitPrice: l.UnitPrice.InexactFloat64(),
		}
	}
	if session != nil {
		resp.Payment = &sessionResponse{
			Method:      string(session.Method),
			Reference:   session.Reference,
			RedirectURL: session.RedirectURL,
			Fields:      session.Fields,
		}
	}
	return resp
}

// checkout converts the customer's cart into an order and starts payment.
func (h *Handler) checkout(w http.ResponseWriter, r *http.Request) {
	var req checkoutRequest
	if err := decode(r, &req); err != nil {
		h.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.CustomerID == "" {
		h.respondError(w, http.StatusBadRequest, "customer_id is required")
		return
	}

	domainReq := order.CheckoutRequest{
		CustomerID:    req.CustomerID,
		Email:         req.Email,
		Shipping:      req.Shipping.toDomain(),
		PaymentMethod: payment.Method(req.PaymentMethod),
	}
	if req.Billing != nil {
		billing := req.Billing.toDomain()
		domainReq.Billing = &billing
	}
	if req.B2B != nil {
		domainReq.B2B = &order.B2BDetails{
			TaxID:         req.B2B.TaxID,
			BusinessName:  req.B2B.BusinessName,
			PlaceOfSupply: req.B2B.PlaceOfSupply,
		}
	}

	result, err := h.orders.Checkout(r.Context(), domainReq)
	if err != nil {
		h.respondDomainError(w, err)
		return
	}
	h.respond(w, http.StatusCreated, toOrderResponse(result.Order, result.Session))
}

func (h *Handler) getOrder(w http.ResponseWriter, r *http.Request) {
	o, err := h.orders.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		h.respondDomainError(w, err)
		return
	}
	h.respond(w, http.StatusOK, toOrderResponse(o, nil))
}

func (h *Handler) setOrderStatus(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Status string `json:"status"`
	}
	if err := decode(r, &req); err != nil {
		h.respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	status, err := order.ParseStatus(req.Status)
	if err != nil {
		h.respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	o, err := h.orders.SetStatus(r.Context(), r.PathValue("id"), status)
	if err != nil {
		h.respondDomainError(w, err)
		return
	}
	h.respond(w, http.StatusOK, toOrderResponse(o, nil))
}
