package pricing

import (
	"context"
	"fmt"

	"github.com/fjod/go_cart/cart-checkout/internal/domain"
	"github.com/shopspring/decimal"
)

const (
	StandardShipping = "std"
	ExpressShipping  = "exp"
)

// DefaultRateTable is used when no carrier integration is configured.
var DefaultRateTable = NewRateTable([]domain.ShippingOption{
	{ID: StandardShipping, Name: "Standard", Price: decimal.RequireFromString("49.90"), EstimatedDays: 5},
	{ID: ExpressShipping, Name: "Express", Price: decimal.RequireFromString("99.90"), EstimatedDays: 1},
})

// RateTable prices shipping from a fixed list of options. The first option is
// the default. Weight is accepted but not priced yet.
type RateTable struct {
	options []domain.ShippingOption
}

func NewRateTable(options []domain.ShippingOption) *RateTable {
	return &RateTable{options: options}
}

func (t *RateTable) Options(_ context.Context, _ string, _ int) ([]domain.ShippingOption, error) {
	out := make([]domain.ShippingOption, len(t.options))
	copy(out, t.options)
	return out, nil
}

func (t *RateTable) Estimate(_ context.Context, _ string, _ decimal.Decimal, totalItems int, optionID string) (decimal.Decimal, error) {
	if totalItems == 0 || len(t.options) == 0 {
		return decimal.Zero, nil
	}
	if optionID == "" {
		return t.options[0].Price, nil
	}
	for _, o := range t.options {
		if o.ID == optionID {
			return o.Price, nil
		}
	}
	return decimal.Zero, fmt.Errorf("unknown shipping option %q", optionID)
}

// FlatTax charges a single rate on the taxable amount.
type FlatTax struct {
	Rate decimal.Decimal
}

var DefaultTaxRate = decimal.RequireFromString("0.18")

func NewFlatTax(rate decimal.Decimal) FlatTax {
	return FlatTax{Rate: rate}
}

func (f FlatTax) Calculate(_ context.Context, cart *domain.Cart, _ string) (decimal.Decimal, error) {
	return f.On(TaxableAmount(cart)), nil
}

func (f FlatTax) On(amount decimal.Decimal) decimal.Decimal {
	return domain.RoundMoney(amount.Mul(f.Rate))
}
