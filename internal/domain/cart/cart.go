package cart

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/aurumlabs/aurum/internal/domain/catalog"
	"github.com/aurumlabs/aurum/internal/domain/pricing"
)

// Cart is a customer's in-progress selection. One cart exists per customer,
// created lazily on first access; it is emptied, never deleted.
type Cart struct {
	ID         string
	CustomerID string
	PromoCode  string
	Reminded   bool
	UpdatedAt  time.Time
	Lines      []Line
}

// Line is one item selection in a cart. Quantity is always >= 1; dropping a
// quantity to zero removes the line.
type Line struct {
	ItemID   string
	Quantity int
}

// DiscountRule is a cart-level automatic discount threshold. Rules are
// evaluated highest threshold first and at most one applies.
type DiscountRule struct {
	ID           string
	MinCartValue decimal.Decimal
	Percent      decimal.Decimal
	Active       bool
}

// EnrichedLine is a cart line re-priced through the pricing engine. Prices
// are never stored on the line; every enrichment reflects live rates.
type EnrichedLine struct {
	Item      catalog.Item
	Quantity  int
	Breakdown pricing.Breakdown
	LineTotal decimal.Decimal
}

// View is the fully priced cart: per-line breakdowns, the automatic rule
// discount, the promo discount, and the floored final total. PromoInvalid is
// set when the attached code no longer validates; the view itself never
// mutates the cart. Callers detach via DetachInvalidPromo.
type View struct {
	Cart          *Cart
	Lines         []EnrichedLine
	OriginalTotal decimal.Decimal
	RuleDiscount  decimal.Decimal
	AppliedRule   *DiscountRule
	PromoDiscount decimal.Decimal
	PromoInvalid  bool
	Total         decimal.Decimal
}

// Repository defines persistence operations for carts.
type Repository interface {
	GetByCustomer(ctx context.Context, customerID string) (*Cart, error)
	Create(ctx context.Context, c *Cart) error
	UpsertLine(ctx context.Context, cartID, itemID string, quantity int) error
	AddQuantity(ctx context.Context, cartID, itemID string, delta int) error
	RemoveLine(ctx context.Context, cartID, itemID string) error
	SetPromoCode(ctx context.Context, cartID, code string) error
	Clear(ctx context.Context, cartID string) error

	// ListIdle returns carts with lines, untouched since the cutoff, that
	// have not yet received a recovery reminder.
	ListIdle(ctx context.Context, cutoff time.Time, limit int) ([]Cart, error)
	// ClaimReminder flips the reminded flag and reports whether this caller
	// won the claim. Two overlapping sweeps get at most one true.
	ClaimReminder(ctx context.Context, cartID string) (bool, error)
}

// RuleRepository provides the active discount thresholds, ordered by
// MinCartValue descending.
type RuleRepository interface {
	ListActiveRules(ctx context.Context) ([]DiscountRule, error)
}
