package catalog

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// ItemNotFoundError indicates a requested catalog item does not exist.
type ItemNotFoundError struct {
	ItemID string
}

func (e *ItemNotFoundError) Error() string {
	return fmt.Sprintf("item %s not found", e.ItemID)
}

// Item is a single catalog entry. Weight is the precious-metal net weight in
// grams; CaratWeight is the total gemstone weight in carats. Items referenced
// by orders are deactivated, never deleted.
type Item struct {
	ID          string
	Name        string
	Category    string
	Purity      int
	NetWeight   decimal.Decimal
	CaratWeight decimal.Decimal
	Clarity     string
	Stock       int
	Active      bool
	CreatedAt   time.Time
}

// RateKind discriminates metal rates (keyed by purity) from gemstone rates
// (keyed by clarity grade).
type RateKind string

const (
	RateMetal RateKind = "METAL"
	RateGem   RateKind = "GEM"
)

// Rate is the current price-per-unit for one (kind, key) pair. Metal rates
// are quoted per ten grams, gem rates per carat. Exactly one active rate
// exists per key; admin updates upsert in place.
type Rate struct {
	Kind      RateKind
	Key       string
	PerUnit   decimal.Decimal
	UpdatedAt time.Time
}

// ChargeClass is the explicit classification of a charge rule. It is decided
// at configuration time, never inferred from the rule's display name.
type ChargeClass string

const (
	ChargeTax    ChargeClass = "TAX"
	ChargeMaking ChargeClass = "MAKING"
	ChargeOther  ChargeClass = "OTHER"
)

// ChargeKind enumerates how a charge rule's amount is interpreted.
type ChargeKind string

const (
	ChargeFlat     ChargeKind = "FLAT"
	ChargePerGram  ChargeKind = "PER_GRAM"
	ChargePerCarat ChargeKind = "PER_CARAT"
	ChargePercent  ChargeKind = "PERCENT"
)

// ChargeTarget names the breakdown component a rule applies against.
type ChargeTarget string

const (
	TargetMetalValue  ChargeTarget = "METAL_VALUE"
	TargetGemValue    ChargeTarget = "GEM_VALUE"
	TargetSubtotal    ChargeTarget = "SUBTOTAL"
	TargetFinalAmount ChargeTarget = "FINAL_AMOUNT"
)

// ChargeRule is one admin-configured fee definition.
type ChargeRule struct {
	ID     string
	Name   string
	Class  ChargeClass
	Kind   ChargeKind
	Target ChargeTarget
	Amount decimal.Decimal
	Active bool
}

// MakingTier is one weight bracket of the making-charge table. Brackets are
// closed-open [MinWeight, MaxWeight); the top tier has MaxWeight nil and is
// unbounded. When any tiers exist they supersede a MAKING-class charge rule.
type MakingTier struct {
	ID        string
	MinWeight decimal.Decimal
	MaxWeight *decimal.Decimal
	Kind      ChargeKind
	Amount    decimal.Decimal
}

// Matches reports whether weight falls inside this tier's bracket.
func (t MakingTier) Matches(weight decimal.Decimal) bool {
	if weight.LessThan(t.MinWeight) {
		return false
	}
	return t.MaxWeight == nil || weight.LessThan(*t.MaxWeight)
}

// Repository provides catalog item lookups.
type Repository interface {
	GetItem(ctx context.Context, id string) (*Item, error)
	GetItems(ctx context.Context, ids []string) ([]Item, error)
}

// RateRepository provides the pricing configuration: rates, charge rules and
// making-charge tiers. Implementations read fresh state on every call; the
// pricing engine relies on that and does no caching of its own.
type RateRepository interface {
	FindRate(ctx context.Context, kind RateKind, key string) (*Rate, error)
	UpsertRate(ctx context.Context, rate Rate) error
	ListActiveChargeRules(ctx context.Context) ([]ChargeRule, error)
	UpsertChargeRule(ctx context.Context, rule ChargeRule) error
	ListMakingTiers(ctx context.Context) ([]MakingTier, error)
	ReplaceMakingTiers(ctx context.Context, tiers []MakingTier) error
}
