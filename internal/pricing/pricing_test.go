package pricing

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/fjod/go_cart/cart-checkout/internal/domain"
	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

var decimalComparer = cmp.Comparer(func(a, b decimal.Decimal) bool { return a.Equal(b) })

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func newCalculator() *Calculator {
	return NewCalculator(DefaultRateTable, NewFlatTax(DefaultTaxRate))
}

func cartWith(items ...domain.CartItem) *domain.Cart {
	cart := domain.NewCart(domain.GuestOwner("s1"), time.Now())
	cart.Items = items
	return cart
}

func TestRecalculate_ExpressExample(t *testing.T) {
	cart := cartWith(domain.CartItem{ProductID: "A", UnitPrice: dec("100.00"), Quantity: 2, StoreID: "store-1"})
	cart.ShippingOptionID = ExpressShipping

	require.NoError(t, newCalculator().Recalculate(context.Background(), cart))

	assert.True(t, dec("200.00").Equal(cart.SubTotal), cart.SubTotal.String())
	assert.True(t, dec("99.90").Equal(cart.ShippingAmount), cart.ShippingAmount.String())
	assert.True(t, dec("36.00").Equal(cart.TaxAmount), cart.TaxAmount.String())
	assert.True(t, dec("335.90").Equal(cart.TotalAmount), cart.TotalAmount.String())
	assert.True(t, dec("200.00").Equal(cart.Items[0].TotalPrice))
}

func TestRecalculate_EmptyCart(t *testing.T) {
	cart := cartWith()

	require.NoError(t, newCalculator().Recalculate(context.Background(), cart))

	assert.True(t, cart.SubTotal.IsZero())
	assert.True(t, cart.ShippingAmount.IsZero())
	assert.True(t, cart.TaxAmount.IsZero())
	assert.True(t, cart.TotalAmount.IsZero())
	assert.Equal(t, int64(1), cart.Version)
	assert.NotEmpty(t, cart.Fingerprint)
}

func TestRecalculate_RoundsLineTotals(t *testing.T) {
	cart := cartWith(domain.CartItem{ProductID: "A", UnitPrice: dec("0.335"), Quantity: 3, StoreID: "s"})

	require.NoError(t, newCalculator().Recalculate(context.Background(), cart))

	assert.Equal(t, "1.01", cart.Items[0].TotalPrice.StringFixed(2))
	assert.Equal(t, "1.01", cart.SubTotal.StringFixed(2))
}

func TestRecalculate_IsPure(t *testing.T) {
	cart := cartWith(
		domain.CartItem{ProductID: "A", UnitPrice: dec("19.99"), Quantity: 3, StoreID: "s"},
		domain.CartItem{ProductID: "B", UnitPrice: dec("5.25"), Quantity: 1, StoreID: "s"},
	)
	cart.Coupon = &domain.AppliedCoupon{Code: "TEN", Kind: domain.CouponPercent, Value: dec("10")}
	calc := newCalculator()

	require.NoError(t, calc.Recalculate(context.Background(), cart))
	first := *cart
	first.Items = append([]domain.CartItem(nil), cart.Items...)

	require.NoError(t, calc.Recalculate(context.Background(), cart))

	diff := cmp.Diff(first, *cart, decimalComparer,
		cmpopts.IgnoreFields(domain.Cart{}, "Version", "Fingerprint", "UpdatedAt"))
	assert.Empty(t, diff)
	assert.Equal(t, first.Version+1, cart.Version)
	assert.NotEqual(t, first.Fingerprint, cart.Fingerprint)
}

func TestRecalculate_CouponReducesTaxAndTotal(t *testing.T) {
	cart := cartWith(domain.CartItem{ProductID: "A", UnitPrice: dec("100.00"), Quantity: 2, StoreID: "s"})
	cart.Coupon = &domain.AppliedCoupon{Code: "FIFTY", Kind: domain.CouponFixed, Value: dec("50")}

	require.NoError(t, newCalculator().Recalculate(context.Background(), cart))

	assert.Equal(t, "FIFTY", cart.CouponCode)
	assert.Equal(t, "50.00", cart.CouponDiscount.StringFixed(2))
	assert.Equal(t, "27.00", cart.TaxAmount.StringFixed(2))
	// 200 + 49.90 + 27 - 50
	assert.Equal(t, "226.90", cart.TotalAmount.StringFixed(2))
}

type failingTax struct{}

func (failingTax) Calculate(context.Context, *domain.Cart, string) (decimal.Decimal, error) {
	return decimal.Zero, errors.New("tax service down")
}

func TestRecalculate_CollaboratorError(t *testing.T) {
	cart := cartWith(domain.CartItem{ProductID: "A", UnitPrice: dec("1"), Quantity: 1, StoreID: "s"})

	err := NewCalculator(DefaultRateTable, failingTax{}).Recalculate(context.Background(), cart)
	assert.ErrorIs(t, err, domain.ErrExternal)
	assert.Zero(t, cart.Version)
}

func TestCouponDiscount(t *testing.T) {
	tests := []struct {
		name     string
		coupon   *domain.AppliedCoupon
		subTotal string
		want     string
	}{
		{name: "no coupon", subTotal: "100", want: "0"},
		{name: "percent", coupon: &domain.AppliedCoupon{Kind: domain.CouponPercent, Value: dec("15")}, subTotal: "33.33", want: "5"},
		{name: "fixed capped at subtotal", coupon: &domain.AppliedCoupon{Kind: domain.CouponFixed, Value: dec("80")}, subTotal: "60", want: "60"},
		{name: "minimum not met", coupon: &domain.AppliedCoupon{Kind: domain.CouponFixed, Value: dec("10"), MinSubtotal: dec("100")}, subTotal: "99.99", want: "0"},
		{name: "unknown kind", coupon: &domain.AppliedCoupon{Kind: "BOGO", Value: dec("10")}, subTotal: "100", want: "0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := CouponDiscount(tt.coupon, dec(tt.subTotal))
			assert.True(t, dec(tt.want).Equal(got), "got %s", got)
		})
	}
}

func TestRateTable_Estimate(t *testing.T) {
	ctx := context.Background()

	price, err := DefaultRateTable.Estimate(ctx, "s", decimal.Zero, 2, "")
	require.NoError(t, err)
	assert.Equal(t, "49.90", price.StringFixed(2))

	price, err = DefaultRateTable.Estimate(ctx, "s", decimal.Zero, 0, ExpressShipping)
	require.NoError(t, err)
	assert.True(t, price.IsZero())

	_, err = DefaultRateTable.Estimate(ctx, "s", decimal.Zero, 1, "drone")
	assert.Error(t, err)
}
