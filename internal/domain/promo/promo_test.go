package promo

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockPromoRepo struct {
	rule *Rule
	err  error
}

func (m *mockPromoRepo) FindByCode(_ context.Context, _ string) (*Rule, error) {
	return m.rule, m.err
}

func (m *mockPromoRepo) IncrementUses(_ context.Context, _ string) error {
	return nil
}

func TestRepoValidator_Validate(t *testing.T) {
	tests := []struct {
		name    string
		repo    *mockPromoRepo
		wantErr error
	}{
		{
			name: "active code passes",
			repo: &mockPromoRepo{rule: &Rule{Code: "FESTIVE10", Kind: KindPercent, Value: decimal.NewFromInt(10), Active: true}},
		},
		{
			name:    "unknown code",
			repo:    &mockPromoRepo{err: ErrInvalidPromo},
			wantErr: ErrInvalidPromo,
		},
		{
			name:    "inactive code",
			repo:    &mockPromoRepo{rule: &Rule{Code: "OLD", Active: false}},
			wantErr: ErrInvalidPromo,
		},
		{
			name:    "usage limit reached",
			repo:    &mockPromoRepo{rule: &Rule{Code: "CAPPED", Active: true, MaxUses: 5, Uses: 5}},
			wantErr: ErrPromoExhausted,
		},
		{
			name: "under usage limit passes",
			repo: &mockPromoRepo{rule: &Rule{Code: "CAPPED", Kind: KindFlat, Value: decimal.NewFromInt(500), Active: true, MaxUses: 5, Uses: 4}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := NewRepoValidator(tt.repo)
			rule, err := v.Validate(context.Background(), "X")
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			require.NotNil(t, rule)
		})
	}
}

func TestRule_Discount(t *testing.T) {
	total := decimal.NewFromInt(57000)

	percent := Rule{Kind: KindPercent, Value: decimal.NewFromInt(10)}
	assert.True(t, percent.Discount(total).Equal(decimal.NewFromInt(5700)))

	flat := Rule{Kind: KindFlat, Value: decimal.NewFromInt(1000)}
	assert.True(t, flat.Discount(total).Equal(decimal.NewFromInt(1000)))

	// A flat value larger than the total is capped, never negative.
	bigFlat := Rule{Kind: KindFlat, Value: decimal.NewFromInt(100000)}
	assert.True(t, bigFlat.Discount(total).Equal(total))
}
