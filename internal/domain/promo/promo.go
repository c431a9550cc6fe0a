package promo

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// Kind enumerates the supported promo discount strategies.
type Kind string

const (
	// KindPercent applies a percentage discount to the cart total.
	KindPercent Kind = "PERCENT"
	// KindFlat subtracts a fixed amount from the cart total.
	KindFlat Kind = "FLAT"
)

var (
	// ErrInvalidPromo is returned when a promo code does not exist or has
	// been deactivated.
	ErrInvalidPromo = errors.New("invalid promo code")
	// ErrPromoExhausted is returned when a promo code has reached its
	// allowed number of uses.
	ErrPromoExhausted = errors.New("promo code usage limit reached")
)

// Rule defines a promo code's discount behaviour. Codes are unique
// case-insensitively; lookups normalize before matching.
type Rule struct {
	Code    string
	Kind    Kind
	Value   decimal.Decimal
	MaxUses int
	Uses    int
	Active  bool
}

// Repository provides lookup and mutation of promo rules.
type Repository interface {
	FindByCode(ctx context.Context, code string) (*Rule, error)
	IncrementUses(ctx context.Context, code string) error
}

// Validator checks that a promo code is currently redeemable.
type Validator interface {
	Validate(ctx context.Context, code string) (*Rule, error)
}

// RepoValidator implements Validator against a Repository.
type RepoValidator struct {
	repo Repository
}

// NewRepoValidator creates a RepoValidator backed by the given Repository.
func NewRepoValidator(repo Repository) *RepoValidator {
	return &RepoValidator{repo: repo}
}

// Validate looks up the rule for code and checks it is active and within its
// usage limit. It does not consume a use; usage is counted at checkout.
func (v *RepoValidator) Validate(ctx context.Context, code string) (*Rule, error) {
	rule, err := v.repo.FindByCode(ctx, code)
	if err != nil {
		if errors.Is(err, ErrInvalidPromo) {
			return nil, ErrInvalidPromo
		}
		return nil, errors.Wrap(err, "lookup promo")
	}

	if !rule.Active {
		return nil, ErrInvalidPromo
	}
	if rule.MaxUses > 0 && rule.Uses >= rule.MaxUses {
		return nil, ErrPromoExhausted
	}

	return rule, nil
}

// Discount computes the amount this rule takes off the given total. A
// percentage is computed against the total as passed in (i.e. after any
// threshold-rule discount); a flat value is capped at the total.
func (r *Rule) Discount(total decimal.Decimal) decimal.Decimal {
	switch r.Kind {
	case KindPercent:
		return total.Mul(r.Value).Div(decimal.NewFromInt(100))
	case KindFlat:
		return decimal.Min(r.Value, total)
	default:
		return decimal.Zero
	}
}
