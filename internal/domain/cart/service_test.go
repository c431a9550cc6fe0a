package cart

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aurumlabs/aurum/internal/domain/catalog"
	"github.com/aurumlabs/aurum/internal/domain/pricing"
	"github.com/aurumlabs/aurum/internal/domain/promo"
)

// --- mocks -----------------------------------------------------------------

type memCartRepo struct {
	carts map[string]*Cart // keyed by customer id
}

func newMemCartRepo() *memCartRepo {
	return &memCartRepo{carts: map[string]*Cart{}}
}

func (m *memCartRepo) GetByCustomer(_ context.Context, customerID string) (*Cart, error) {
	return m.carts[customerID], nil
}

func (m *memCartRepo) Create(_ context.Context, c *Cart) error {
	m.carts[c.CustomerID] = c
	return nil
}

func (m *memCartRepo) byID(cartID string) *Cart {
	for _, c := range m.carts {
		if c.ID == cartID {
			return c
		}
	}
	return nil
}

func (m *memCartRepo) UpsertLine(_ context.Context, cartID, itemID string, quantity int) error {
	c := m.byID(cartID)
	for i := range c.Lines {
		if c.Lines[i].ItemID == itemID {
			c.Lines[i].Quantity = quantity
			return nil
		}
	}
	c.Lines = append(c.Lines, Line{ItemID: itemID, Quantity: quantity})
	return nil
}

func (m *memCartRepo) AddQuantity(_ context.Context, cartID, itemID string, delta int) error {
	c := m.byID(cartID)
	for i := range c.Lines {
		if c.Lines[i].ItemID == itemID {
			c.Lines[i].Quantity += delta
			return nil
		}
	}
	c.Lines = append(c.Lines, Line{ItemID: itemID, Quantity: delta})
	return nil
}

func (m *memCartRepo) RemoveLine(_ context.Context, cartID, itemID string) error {
	c := m.byID(cartID)
	for i := range c.Lines {
		if c.Lines[i].ItemID == itemID {
			c.Lines = append(c.Lines[:i], c.Lines[i+1:]...)
			return nil
		}
	}
	return nil
}

func (m *memCartRepo) SetPromoCode(_ context.Context, cartID, code string) error {
	m.byID(cartID).PromoCode = code
	return nil
}

func (m *memCartRepo) Clear(_ context.Context, cartID string) error {
	c := m.byID(cartID)
	c.Lines = nil
	c.PromoCode = ""
	return nil
}

func (m *memCartRepo) ListIdle(_ context.Context, _ time.Time, _ int) ([]Cart, error) {
	return nil, nil
}

func (m *memCartRepo) ClaimReminder(_ context.Context, _ string) (bool, error) {
	return false, nil
}

type stubRules struct {
	rules []DiscountRule
}

func (s *stubRules) ListActiveRules(_ context.Context) ([]DiscountRule, error) {
	return s.rules, nil
}

type stubItems struct {
	items map[string]catalog.Item
}

func (s *stubItems) GetItem(_ context.Context, id string) (*catalog.Item, error) {
	it, ok := s.items[id]
	if !ok {
		return nil, &catalog.ItemNotFoundError{ItemID: id}
	}
	return &it, nil
}

func (s *stubItems) GetItems(_ context.Context, ids []string) ([]catalog.Item, error) {
	var out []catalog.Item
	for _, id := range ids {
		if it, ok := s.items[id]; ok {
			out = append(out, it)
		}
	}
	return out, nil
}

type stubRates struct {
	rates map[string]decimal.Decimal // keyed by kind/key
}

func (s *stubRates) FindRate(_ context.Context, kind catalog.RateKind, key string) (*catalog.Rate, error) {
	per, ok := s.rates[string(kind)+"/"+key]
	if !ok {
		return nil, nil
	}
	return &catalog.Rate{Kind: kind, Key: key, PerUnit: per}, nil
}

func (s *stubRates) UpsertRate(_ context.Context, _ catalog.Rate) error { return nil }

func (s *stubRates) ListActiveChargeRules(_ context.Context) ([]catalog.ChargeRule, error) {
	return nil, nil
}

func (s *stubRates) UpsertChargeRule(_ context.Context, _ catalog.ChargeRule) error { return nil }

func (s *stubRates) ListMakingTiers(_ context.Context) ([]catalog.MakingTier, error) {
	return nil, nil
}

func (s *stubRates) ReplaceMakingTiers(_ context.Context, _ []catalog.MakingTier) error { return nil }

type stubPromos struct {
	rules map[string]*promo.Rule
}

func (s *stubPromos) Validate(_ context.Context, code string) (*promo.Rule, error) {
	rule, ok := s.rules[code]
	if !ok {
		return nil, promo.ErrInvalidPromo
	}
	if rule.MaxUses > 0 && rule.Uses >= rule.MaxUses {
		return nil, promo.ErrPromoExhausted
	}
	return rule, nil
}

// --- fixtures --------------------------------------------------------------

// newTestService builds a Service over a catalog with one 22k bangle priced at
// 20,000 each (2g at 100,000 per ten grams, no charges configured).
func newTestService(rules []DiscountRule, promos map[string]*promo.Rule) (*Service, *memCartRepo) {
	carts := newMemCartRepo()
	svc := NewService(
		carts,
		&stubRules{rules: rules},
		&stubItems{items: map[string]catalog.Item{
			"bangle-22k": {
				ID:        "bangle-22k",
				Name:      "Gold Bangle",
				Purity:    22,
				NetWeight: decimal.NewFromInt(2),
				Active:    true,
			},
		}},
		pricing.NewService(&stubRates{rates: map[string]decimal.Decimal{
			"METAL/22": decimal.NewFromInt(100_000),
		}}),
		&stubPromos{rules: promos},
	)
	return svc, carts
}

// --- tests -----------------------------------------------------------------

func TestGetOrCreate_LazyCreation(t *testing.T) {
	svc, _ := newTestService(nil, nil)
	ctx := context.Background()

	c1, err := svc.GetOrCreate(ctx, "c1")
	require.NoError(t, err)
	require.NotEmpty(t, c1.ID)

	c2, err := svc.GetOrCreate(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, c1.ID, c2.ID, "second access returns the same cart")
}

func TestAddLine_MergesQuantities(t *testing.T) {
	svc, carts := newTestService(nil, nil)
	ctx := context.Background()

	require.NoError(t, svc.AddLine(ctx, "c1", "bangle-22k", 2))
	require.NoError(t, svc.AddLine(ctx, "c1", "bangle-22k", 3))

	c := carts.carts["c1"]
	require.Len(t, c.Lines, 1, "same item merges into one line")
	assert.Equal(t, 5, c.Lines[0].Quantity)
}

func TestAddLine_Validation(t *testing.T) {
	svc, _ := newTestService(nil, nil)
	ctx := context.Background()

	err := svc.AddLine(ctx, "c1", "bangle-22k", 0)
	assert.ErrorIs(t, err, ErrQuantityTooLow)

	err = svc.AddLine(ctx, "c1", "no-such-item", 1)
	var notFound *catalog.ItemNotFoundError
	assert.ErrorAs(t, err, &notFound)
}

func TestUpdateLine_ZeroRemoves(t *testing.T) {
	svc, carts := newTestService(nil, nil)
	ctx := context.Background()

	require.NoError(t, svc.AddLine(ctx, "c1", "bangle-22k", 2))
	require.NoError(t, svc.UpdateLine(ctx, "c1", "bangle-22k", 0))

	assert.Empty(t, carts.carts["c1"].Lines)
}

func TestApplyPromo(t *testing.T) {
	svc, carts := newTestService(nil, map[string]*promo.Rule{
		"FESTIVE1000": {Code: "FESTIVE1000", Kind: promo.KindFlat, Value: decimal.NewFromInt(1000), Active: true},
	})
	ctx := context.Background()

	require.NoError(t, svc.ApplyPromo(ctx, "c1", "FESTIVE1000"))
	assert.Equal(t, "FESTIVE1000", carts.carts["c1"].PromoCode)

	err := svc.ApplyPromo(ctx, "c1", "BOGUS")
	assert.ErrorIs(t, err, promo.ErrInvalidPromo)
	assert.Equal(t, "FESTIVE1000", carts.carts["c1"].PromoCode, "failed apply leaves the cart untouched")
}

func TestEnrich_EmptyCart(t *testing.T) {
	svc, _ := newTestService(nil, nil)

	view, err := svc.Enrich(context.Background(), "c1")
	require.NoError(t, err)
	assert.Empty(t, view.Lines)
	assert.True(t, view.Total.IsZero())
}

func TestEnrich_DiscountStacking(t *testing.T) {
	// Three bangles at 20,000: original total 60,000. The 5% threshold rule
	// takes 3,000; the flat promo takes 1,000 off the discounted total.
	svc, _ := newTestService(
		[]DiscountRule{
			{ID: "r1", MinCartValue: decimal.NewFromInt(50_000), Percent: decimal.NewFromInt(5), Active: true},
		},
		map[string]*promo.Rule{
			"FESTIVE1000": {Code: "FESTIVE1000", Kind: promo.KindFlat, Value: decimal.NewFromInt(1000), Active: true},
		},
	)
	ctx := context.Background()

	require.NoError(t, svc.AddLine(ctx, "c1", "bangle-22k", 3))
	require.NoError(t, svc.ApplyPromo(ctx, "c1", "FESTIVE1000"))

	view, err := svc.Enrich(ctx, "c1")
	require.NoError(t, err)

	assert.True(t, view.OriginalTotal.Equal(decimal.NewFromInt(60_000)), "got %s", view.OriginalTotal)
	assert.True(t, view.RuleDiscount.Equal(decimal.NewFromInt(3_000)), "got %s", view.RuleDiscount)
	assert.True(t, view.PromoDiscount.Equal(decimal.NewFromInt(1_000)), "got %s", view.PromoDiscount)
	assert.True(t, view.Total.Equal(decimal.NewFromInt(56_000)), "got %s", view.Total)
	require.NotNil(t, view.AppliedRule)
	assert.Equal(t, "r1", view.AppliedRule.ID)
	assert.False(t, view.PromoInvalid)
}

func TestEnrich_HighestMatchingThresholdWins(t *testing.T) {
	// Rules arrive ordered by threshold descending; a 40,000 cart skips the
	// 50,000 rule and lands on the 25,000 one.
	svc, _ := newTestService(
		[]DiscountRule{
			{ID: "big", MinCartValue: decimal.NewFromInt(50_000), Percent: decimal.NewFromInt(10), Active: true},
			{ID: "small", MinCartValue: decimal.NewFromInt(25_000), Percent: decimal.NewFromInt(5), Active: true},
		},
		nil,
	)
	ctx := context.Background()

	require.NoError(t, svc.AddLine(ctx, "c1", "bangle-22k", 2))

	view, err := svc.Enrich(ctx, "c1")
	require.NoError(t, err)
	require.NotNil(t, view.AppliedRule)
	assert.Equal(t, "small", view.AppliedRule.ID)
	assert.True(t, view.RuleDiscount.Equal(decimal.NewFromInt(2_000)), "got %s", view.RuleDiscount)
}

func TestEnrich_TotalFlooredAtZero(t *testing.T) {
	// A misconfigured over-100% promo must clamp the total to zero, never
	// produce a negative amount.
	svc, _ := newTestService(
		nil,
		map[string]*promo.Rule{
			"OOPS": {Code: "OOPS", Kind: promo.KindPercent, Value: decimal.NewFromInt(200), Active: true},
		},
	)
	ctx := context.Background()

	require.NoError(t, svc.AddLine(ctx, "c1", "bangle-22k", 1))
	require.NoError(t, svc.ApplyPromo(ctx, "c1", "OOPS"))

	view, err := svc.Enrich(ctx, "c1")
	require.NoError(t, err)
	assert.True(t, view.Total.IsZero(), "got %s", view.Total)
}

func TestEnrich_FlagsInvalidPromoWithoutMutating(t *testing.T) {
	exhausted := &promo.Rule{
		Code: "GONE", Kind: promo.KindFlat, Value: decimal.NewFromInt(500),
		MaxUses: 1, Active: true,
	}
	svc, carts := newTestService(nil, map[string]*promo.Rule{"GONE": exhausted})
	ctx := context.Background()

	require.NoError(t, svc.AddLine(ctx, "c1", "bangle-22k", 1))
	require.NoError(t, svc.ApplyPromo(ctx, "c1", "GONE"))

	// The code runs out between apply and read.
	exhausted.Uses = 1

	view, err := svc.Enrich(ctx, "c1")
	require.NoError(t, err)
	assert.True(t, view.PromoInvalid)
	assert.True(t, view.PromoDiscount.IsZero())
	assert.True(t, view.Total.Equal(decimal.NewFromInt(20_000)))
	assert.Equal(t, "GONE", carts.carts["c1"].PromoCode, "the read never detaches")

	// The explicit command does.
	require.NoError(t, svc.DetachInvalidPromo(ctx, view.Cart.ID))
	assert.Empty(t, carts.carts["c1"].PromoCode)
}
