// Package handler exposes the HTTP API: storefront cart and checkout, order
// lifecycle, payment gateway callbacks, and the admin pricing surface.
package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-faster/errors"
	"go.uber.org/zap"

	"github.com/aurumlabs/aurum/internal/domain/cart"
	"github.com/aurumlabs/aurum/internal/domain/catalog"
	"github.com/aurumlabs/aurum/internal/domain/inventory"
	"github.com/aurumlabs/aurum/internal/domain/loyalty"
	"github.com/aurumlabs/aurum/internal/domain/order"
	"github.com/aurumlabs/aurum/internal/domain/pricing"
	"github.com/aurumlabs/aurum/internal/domain/promo"
	"github.com/aurumlabs/aurum/internal/payment"
)

// CatalogStore is the catalog surface the handler needs: domain lookups plus
// the admin listing and upsert.
type CatalogStore interface {
	catalog.Repository
	List(ctx context.Context) ([]catalog.Item, error)
	Upsert(ctx context.Context, it catalog.Item) error
}

// DiscountRuleStore extends the read-side rule repository with the admin
// upsert.
type DiscountRuleStore interface {
	cart.RuleRepository
	Upsert(ctx context.Context, rule cart.DiscountRule) error
}

// Config holds non-dependency handler settings.
type Config struct {
	// PaymentSuccessURL and PaymentFailureURL are where the browser lands
	// after a redirect-form payment completes.
	PaymentSuccessURL string
	PaymentFailureURL string
}

// Handler routes HTTP requests to the domain services.
type Handler struct {
	cfg       Config
	carts     *cart.Service
	orders    *order.Service
	items     CatalogStore
	pricer    *pricing.Service
	rates     catalog.RateRepository
	discounts DiscountRuleStore
	inventory *inventory.Service
	invLog    inventory.Repository
	loyalty   *loyalty.Service
	accounts  loyalty.Repository
	ccavenue  *payment.CCAvenue
	razorpay  *payment.Razorpay
	phonepe   *payment.PhonePe
	lg        *zap.Logger
}

// NewHandler constructs a Handler with the required domain dependencies.
func NewHandler(
	cfg Config,
	carts *cart.Service,
	orders *order.Service,
	items CatalogStore,
	pricer *pricing.Service,
	rates catalog.RateRepository,
	discounts DiscountRuleStore,
	inv *inventory.Service,
	invLog inventory.Repository,
	loy *loyalty.Service,
	accounts loyalty.Repository,
	ccavenue *payment.CCAvenue,
	razorpay *payment.Razorpay,
	phonepe *payment.PhonePe,
	lg *zap.Logger,
) *Handler {
	return &Handler{
		cfg:       cfg,
		carts:     carts,
		orders:    orders,
		items:     items,
		pricer:    pricer,
		rates:     rates,
		discounts: discounts,
		inventory: inv,
		invLog:    invLog,
		loyalty:   loy,
		accounts:  accounts,
		ccavenue:  ccavenue,
		razorpay:  razorpay,
		phonepe:   phonepe,
		lg:        lg,
	}
}

// Register mounts all API routes on the mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/items", h.listItems)
	mux.HandleFunc("GET /api/items/{id}", h.getItem)

	mux.HandleFunc("GET /api/customers/{customerID}/cart", h.getCart)
	mux.HandleFunc("POST /api/customers/{customerID}/cart/items", h.addCartItem)
	mux.HandleFunc("PUT /api/customers/{customerID}/cart/items/{itemID}", h.updateCartItem)
	mux.HandleFunc("DELETE /api/customers/{customerID}/cart/items/{itemID}", h.removeCartItem)
	mux.HandleFunc("POST /api/customers/{customerID}/cart/promo", h.applyPromo)
	mux.HandleFunc("DELETE /api/customers/{customerID}/cart/promo", h.removePromo)
	mux.HandleFunc("GET /api/customers/{customerID}/loyalty", h.getLoyalty)

	mux.HandleFunc("POST /api/checkout", h.checkout)
	mux.HandleFunc("GET /api/orders/{id}", h.getOrder)
	mux.HandleFunc("PUT /api/orders/{id}/status", h.setOrderStatus)

	mux.HandleFunc("POST /api/payment/ccavenue/callback", h.ccavenueCallback)
	mux.HandleFunc("POST /api/payment/razorpay/verify", h.razorpayVerify)
	mux.HandleFunc("POST /api/payment/phonepe/callback", h.phonepeCallback)

	mux.HandleFunc("PUT /api/admin/items", h.upsertItem)
	mux.HandleFunc("PUT /api/admin/rates", h.upsertRate)
	mux.HandleFunc("PUT /api/admin/charge-rules", h.upsertChargeRule)
	mux.HandleFunc("PUT /api/admin/making-tiers", h.replaceMakingTiers)
	mux.HandleFunc("PUT /api/admin/discount-rules", h.upsertDiscountRule)
	mux.HandleFunc("POST /api/admin/inventory/adjustments", h.adjustInventory)
	mux.HandleFunc("GET /api/admin/inventory/{itemID}/log", h.inventoryLog)
	mux.HandleFunc("POST /api/admin/loyalty/adjustments", h.adjustLoyalty)
}

type errorResponse struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (h *Handler) respond(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if body == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(body); err != nil {
		h.lg.Error("encode response", zap.Error(err))
	}
}

func (h *Handler) respondError(w http.ResponseWriter, status int, msg string) {
	h.respond(w, status, errorResponse{Code: status, Message: msg})
}

// respondDomainError maps domain errors to HTTP statuses. Unknown errors are
// logged and become opaque 500s.
func (h *Handler) respondDomainError(w http.ResponseWriter, err error) {
	var (
		itemNotFound  *catalog.ItemNotFoundError
		orderNotFound *order.OrderNotFoundError
	)

	switch {
	case errors.Is(err, order.ErrEmptyCart),
		errors.Is(err, cart.ErrQuantityTooLow):
		h.respondError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, promo.ErrInvalidPromo),
		errors.Is(err, promo.ErrPromoExhausted):
		h.respondError(w, http.StatusUnprocessableEntity, err.Error())
	case errors.As(err, &itemNotFound), errors.As(err, &orderNotFound):
		h.respondError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, order.ErrOrderCancelled):
		h.respondError(w, http.StatusConflict, err.Error())
	default:
		h.lg.Error("request failed", zap.Error(err))
		h.respondError(w, http.StatusInternalServerError, "internal error")
	}
}

// decode reads a JSON request body, rejecting oversized payloads.
func decode(r *http.Request, out any) error {
	dec := json.NewDecoder(http.MaxBytesReader(nil, r.Body, 1<<20))
	dec.DisallowUnknownFields()
	if err := dec.Decode(out); err != nil {
		return errors.Wrap(err, "decode request body")
	}
	return nil
}
