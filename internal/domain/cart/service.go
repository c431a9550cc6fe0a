package cart

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/aurumlabs/aurum/internal/domain/catalog"
	"github.com/aurumlabs/aurum/internal/domain/pricing"
	"github.com/aurumlabs/aurum/internal/domain/promo"
)

// ErrQuantityTooLow is returned when adding a line with a non-positive quantity.
var ErrQuantityTooLow = errors.New("quantity must be greater than 0")

// Service owns cart mutations and the enrichment (re-pricing) read path.
type Service struct {
	carts  Repository
	rules  RuleRepository
	items  catalog.Repository
	pricer *pricing.Service
	promos promo.Validator
}

// NewService creates a cart Service with the required dependencies.
func NewService(
	carts Repository,
	rules RuleRepository,
	items catalog.Repository,
	pricer *pricing.Service,
	promos promo.Validator,
) *Service {
	return &Service{
		carts:  carts,
		rules:  rules,
		items:  items,
		pricer: pricer,
		promos: promos,
	}
}

// GetOrCreate returns the customer's cart, creating an empty one on first
// access.
func (s *Service) GetOrCreate(ctx context.Context, customerID string) (*Cart, error) {
	c, err := s.carts.GetByCustomer(ctx, customerID)
	if err != nil {
		return nil, errors.Wrap(err, "get cart")
	}
	if c != nil {
		return c, nil
	}

	c = &Cart{ID: uuid.New().String(), CustomerID: customerID}
	if err := s.carts.Create(ctx, c); err != nil {
		return nil, errors.Wrap(err, "create cart")
	}
	return c, nil
}

// AddLine adds quantity of an item to the cart. An item already present has
// its quantity incremented rather than gaining a duplicate line.
func (s *Service) AddLine(ctx context.Context, customerID, itemID string, quantity int) error {
	if quantity <= 0 {
		return ErrQuantityTooLow
	}
	if _, err := s.items.GetItem(ctx, itemID); err != nil {
		return err
	}

	c, err := s.GetOrCreate(ctx, customerID)
	if err != nil {
		return err
	}
	return s.carts.AddQuantity(ctx, c.ID, itemID, quantity)
}

// UpdateLine sets a line's quantity. A quantity of zero or less removes the
// line.
func (s *Service) UpdateLine(ctx context.Context, customerID, itemID string, quantity int) error {
	c, err := s.GetOrCreate(ctx, customerID)
	if err != nil {
		return err
	}
	if quantity <= 0 {
		return s.carts.RemoveLine(ctx, c.ID, itemID)
	}
	return s.carts.UpsertLine(ctx, c.ID, itemID, quantity)
}

// RemoveLine removes an item from the cart.
func (s *Service) RemoveLine(ctx context.Context, customerID, itemID string) error {
	c, err := s.GetOrCreate(ctx, customerID)
	if err != nil {
		return err
	}
	return s.carts.RemoveLine(ctx, c.ID, itemID)
}

// ApplyPromo validates a promo code and attaches it to the cart. Validation
// errors surface to the caller here, unlike the tolerant read path.
func (s *Service) ApplyPromo(ctx context.Context, customerID, code string) error {
	if _, err := s.promos.Validate(ctx, code); err != nil {
		return err
	}
	c, err := s.GetOrCreate(ctx, customerID)
	if err != nil {
		return err
	}
	return s.carts.SetPromoCode(ctx, c.ID, code)
}

// RemovePromo detaches any promo code from the cart.
func (s *Service) RemovePromo(ctx context.Context, customerID string) error {
	c, err := s.GetOrCreate(ctx, customerID)
	if err != nil {
		return err
	}
	return s.carts.SetPromoCode(ctx, c.ID, "")
}

// Clear empties the cart, keeping the cart row itself.
func (s *Service) Clear(ctx context.Context, cartID string) error {
	return s.carts.Clear(ctx, cartID)
}

// Enrich re-prices every line through the pricing engine and applies the
// discount stack: the best matching threshold rule first, then the attached
// promo code on the rule-discounted total. The final total is floored at
// zero.
//
// Enrich is a pure read. An attached code that has gone invalid is reported
// via View.PromoInvalid; callers decide whether to DetachInvalidPromo.
func (s *Service) Enrich(ctx context.Context, customerID string) (*View, error) {
	c, err := s.GetOrCreate(ctx, customerID)
	if err != nil {
		return nil, err
	}

	view := &View{Cart: c}
	if len(c.Lines) == 0 {
		return view, nil
	}

	ids := make([]string, len(c.Lines))
	for i, line := range c.Lines {
		ids[i] = line.ItemID
	}
	items, err := s.items.GetItems(ctx, ids)
	if err != nil {
		return nil, errors.Wrap(err, "get cart items")
	}
	byID := make(map[string]catalog.Item, len(items))
	for _, it := range items {
		byID[it.ID] = it
	}

	total := decimal.Zero
	for _, line := range c.Lines {
		item, ok := byID[line.ItemID]
		if !ok {
			return nil, &catalog.ItemNotFoundError{ItemID: line.ItemID}
		}
		b, err := s.pricer.Quote(ctx, &item)
		if err != nil {
			return nil, errors.Wrapf(err, "price item %s", item.ID)
		}
		lineTotal := b.FinalPrice.Mul(decimal.NewFromInt(int64(line.Quantity)))
		view.Lines = append(view.Lines, EnrichedLine{
			Item:      item,
			Quantity:  line.Quantity,
			Breakdown: b,
			LineTotal: lineTotal,
		})
		total = total.Add(lineTotal)
	}
	view.OriginalTotal = total

	if err := s.applyRuleDiscount(ctx, view); err != nil {
		return nil, err
	}
	if err := s.applyPromo(ctx, view); err != nil {
		return nil, err
	}

	view.Total = view.OriginalTotal.Sub(view.RuleDiscount).Sub(view.PromoDiscount)
	if view.Total.IsNegative() {
		view.Total = decimal.Zero
	}
	return view, nil
}

// DetachInvalidPromo removes the cart's promo code. The explicit command
// pairs with Enrich's PromoInvalid flag so the detach stays auditable.
func (s *Service) DetachInvalidPromo(ctx context.Context, cartID string) error {
	return s.carts.SetPromoCode(ctx, cartID, "")
}

// applyRuleDiscount picks the highest-threshold active rule whose minimum
// cart value the original total meets. First match wins.
func (s *Service) applyRuleDiscount(ctx context.Context, view *View) error {
	rules, err := s.rules.ListActiveRules(ctx)
	if err != nil {
		return errors.Wrap(err, "list discount rules")
	}
	for i, rule := range rules {
		if view.OriginalTotal.GreaterThanOrEqual(rule.MinCartValue) {
			view.AppliedRule = &rules[i]
			view.RuleDiscount = view.OriginalTotal.Mul(rule.Percent).Div(decimal.NewFromInt(100))
			return nil
		}
	}
	return nil
}

// applyPromo re-validates the attached code against the rule-discounted
// total. An invalid code only flags the view; the read stays side-effect free.
func (s *Service) applyPromo(ctx context.Context, view *View) error {
	code := view.Cart.PromoCode
	if code == "" {
		return nil
	}

	rule, err := s.promos.Validate(ctx, code)
	if err != nil {
		if errors.Is(err, promo.ErrInvalidPromo) || errors.Is(err, promo.ErrPromoExhausted) {
			view.PromoInvalid = true
			return nil
		}
		return errors.Wrap(err, "validate promo")
	}

	discounted := view.OriginalTotal.Sub(view.RuleDiscount)
	view.PromoDiscount = rule.Discount(discounted)
	return nil
}
