// Package pricing computes deterministic price breakdowns for catalog items
// from the current rate and charge configuration.
//
// The computation order is a contract: other charges before the making
// charge, tax strictly last on the fully-loaded taxable base. Downstream
// discounts (threshold rules, promo codes) apply to FinalPrice only, never
// to an intermediate component.
package pricing

import (
	"context"
	"strconv"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/aurumlabs/aurum/internal/domain/catalog"
)

var (
	ten     = decimal.NewFromInt(10)
	hundred = decimal.NewFromInt(100)
)

// Breakdown is the result of pricing one catalog item. The rates used are
// recorded so a quote can be audited against later rate changes.
type Breakdown struct {
	MetalValue   decimal.Decimal
	GemValue     decimal.Decimal
	MakingCharge decimal.Decimal
	OtherCharges decimal.Decimal
	Tax          decimal.Decimal
	FinalPrice   decimal.Decimal

	MetalRate decimal.Decimal
	GemRate   decimal.Decimal
}

// Inputs is the pricing configuration snapshot for one quote. Missing rates
// are represented as zero values; the engine never fails on absent data.
type Inputs struct {
	MetalRatePerTenGrams decimal.Decimal
	GemRatePerCarat      decimal.Decimal
	Rules                []catalog.ChargeRule
	Tiers                []catalog.MakingTier
}

// Compute produces the full breakdown for an item. Pure: identical inputs
// always yield an identical breakdown.
func Compute(item *catalog.Item, in Inputs) Breakdown {
	metalValue := in.MetalRatePerTenGrams.Div(ten).Mul(item.NetWeight)
	gemValue := in.GemRatePerCarat.Mul(item.CaratWeight)
	subtotal := metalValue.Add(gemValue)

	other := decimal.Zero
	for _, rule := range in.Rules {
		if rule.Class != catalog.ChargeOther {
			continue
		}
		other = other.Add(ruleContribution(rule, item, metalValue, gemValue, subtotal))
	}

	making := makingCharge(item, in, metalValue)

	taxable := subtotal.Add(making).Add(other)

	tax := decimal.Zero
	for _, rule := range in.Rules {
		if rule.Class == catalog.ChargeTax && rule.Kind == catalog.ChargePercent {
			tax = taxable.Mul(rule.Amount).Div(hundred)
			break
		}
	}

	return Breakdown{
		MetalValue:   metalValue,
		GemValue:     gemValue,
		MakingCharge: making,
		OtherCharges: other,
		Tax:          tax,
		FinalPrice:   taxable.Add(tax),
		MetalRate:    in.MetalRatePerTenGrams,
		GemRate:      in.GemRatePerCarat,
	}
}

// ruleContribution evaluates a single OTHER-class rule. Kind/target pairs
// outside the supported matrix contribute nothing: PER_GRAM is only valid
// against METAL_VALUE and PER_CARAT against GEM_VALUE.
func ruleContribution(rule catalog.ChargeRule, item *catalog.Item, metalValue, gemValue, subtotal decimal.Decimal) decimal.Decimal {
	switch rule.Kind {
	case catalog.ChargeFlat:
		return rule.Amount
	case catalog.ChargePerGram:
		if rule.Target == catalog.TargetMetalValue {
			return rule.Amount.Mul(item.NetWeight)
		}
	case catalog.ChargePerCarat:
		if rule.Target == catalog.TargetGemValue {
			return rule.Amount.Mul(item.CaratWeight)
		}
	case catalog.ChargePercent:
		switch rule.Target {
		case catalog.TargetMetalValue:
			return metalValue.Mul(rule.Amount).Div(hundred)
		case catalog.TargetGemValue:
			return gemValue.Mul(rule.Amount).Div(hundred)
		case catalog.TargetSubtotal:
			return subtotal.Mul(rule.Amount).Div(hundred)
		}
	}
	return decimal.Zero
}

// makingCharge selects the tier bracket containing the item's net weight, or
// falls back to an active MAKING-class rule when no tiers are configured.
// Tier and legacy rule share the same three kinds; a percentage is always a
// percentage of metal value.
func makingCharge(item *catalog.Item, in Inputs, metalValue decimal.Decimal) decimal.Decimal {
	if len(in.Tiers) > 0 {
		for _, tier := range in.Tiers {
			if tier.Matches(item.NetWeight) {
				return applyMaking(tier.Kind, tier.Amount, item.NetWeight, metalValue)
			}
		}
		return decimal.Zero
	}

	for _, rule := range in.Rules {
		if rule.Class == catalog.ChargeMaking {
			return applyMaking(rule.Kind, rule.Amount, item.NetWeight, metalValue)
		}
	}
	return decimal.Zero
}

func applyMaking(kind catalog.ChargeKind, amount, weight, metalValue decimal.Decimal) decimal.Decimal {
	switch kind {
	case catalog.ChargeFlat:
		return amount
	case catalog.ChargePerGram:
		return amount.Mul(weight)
	case catalog.ChargePercent:
		return metalValue.Mul(amount).Div(hundred)
	default:
		return decimal.Zero
	}
}

// Service loads the live pricing configuration and quotes items with it.
// Configuration is read fresh on every quote.
type Service struct {
	rates catalog.RateRepository
}

// NewService creates a pricing Service over the given rate repository.
func NewService(rates catalog.RateRepository) *Service {
	return &Service{rates: rates}
}

// Quote prices a single item against current rates, rules and tiers. A
// missing metal or gem rate degrades to a zero-valued component; storage
// errors propagate.
func (s *Service) Quote(ctx context.Context, item *catalog.Item) (Breakdown, error) {
	in, err := s.loadInputs(ctx, item)
	if err != nil {
		return Breakdown{}, err
	}
	return Compute(item, in), nil
}

// QuoteAll prices a batch of items against one configuration read per item
// key, so every line of a cart reflects the same admin-visible state.
func (s *Service) QuoteAll(ctx context.Context, items []catalog.Item) ([]Breakdown, error) {
	out := make([]Breakdown, len(items))
	for i := range items {
		b, err := s.Quote(ctx, &items[i])
		if err != nil {
			return nil, errors.Wrapf(err, "quote item %s", items[i].ID)
		}
		out[i] = b
	}
	return out, nil
}

func (s *Service) loadInputs(ctx context.Context, item *catalog.Item) (Inputs, error) {
	var in Inputs

	metal, err := s.rates.FindRate(ctx, catalog.RateMetal, strconv.Itoa(item.Purity))
	if err != nil {
		return in, errors.Wrap(err, "find metal rate")
	}
	if metal != nil {
		in.MetalRatePerTenGrams = metal.PerUnit
	}

	if item.Clarity != "" {
		gem, err := s.rates.FindRate(ctx, catalog.RateGem, item.Clarity)
		if err != nil {
			return in, errors.Wrap(err, "find gem rate")
		}
		if gem != nil {
			in.GemRatePerCarat = gem.PerUnit
		}
	}

	in.Rules, err = s.rates.ListActiveChargeRules(ctx)
	if err != nil {
		return in, errors.Wrap(err, "list charge rules")
	}

	in.Tiers, err = s.rates.ListMakingTiers(ctx)
	if err != nil {
		return in, errors.Wrap(err, "list making tiers")
	}

	return in, nil
}
