// Package pricing recomputes cart totals. Recalculate is deterministic for a
// given cart, coupon snapshot, shipping selection and collaborators.
package pricing

import (
	"context"
	"fmt"
	"time"

	"github.com/fjod/go_cart/cart-checkout/internal/domain"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type ShippingEstimator interface {
	Estimate(ctx context.Context, storeID string, totalWeight decimal.Decimal, totalItems int, optionID string) (decimal.Decimal, error)
}

type TaxCalculator interface {
	Calculate(ctx context.Context, cart *domain.Cart, shippingAddressID string) (decimal.Decimal, error)
}

type Calculator struct {
	shipping ShippingEstimator
	tax      TaxCalculator
	now      func() time.Time
}

func NewCalculator(shipping ShippingEstimator, tax TaxCalculator) *Calculator {
	return &Calculator{
		shipping: shipping,
		tax:      tax,
		now:      time.Now,
	}
}

// Recalculate rewrites every derived field of cart and stamps a new version
// and fingerprint, even when nothing changed.
func (c *Calculator) Recalculate(ctx context.Context, cart *domain.Cart) error {
	subTotal := decimal.Zero
	for i := range cart.Items {
		line := &cart.Items[i]
		line.TotalPrice = domain.RoundMoney(line.UnitPrice.Mul(decimal.NewFromInt(int64(line.Quantity))))
		subTotal = subTotal.Add(line.TotalPrice)
	}
	cart.SubTotal = domain.RoundMoney(subTotal)

	cart.CouponDiscount = CouponDiscount(cart.Coupon, cart.SubTotal)
	if cart.Coupon != nil {
		cart.CouponCode = cart.Coupon.Code
	} else {
		cart.CouponCode = ""
	}
	cart.DiscountAmount = domain.RoundMoney(cart.DiscountAmount)

	cart.ShippingAmount = decimal.Zero
	if !cart.IsEmpty() {
		shipping, err := c.shipping.Estimate(ctx, cart.Items[0].StoreID, cart.TotalWeight(), cart.ItemCount(), cart.ShippingOptionID)
		if err != nil {
			return fmt.Errorf("%w: shipping estimate: %v", domain.ErrExternal, err)
		}
		cart.ShippingAmount = domain.RoundMoney(shipping)
	}

	cart.TaxAmount = decimal.Zero
	if !cart.IsEmpty() {
		tax, err := c.tax.Calculate(ctx, cart, "")
		if err != nil {
			return fmt.Errorf("%w: tax calculation: %v", domain.ErrExternal, err)
		}
		cart.TaxAmount = domain.RoundMoney(tax)
	}

	cart.TotalAmount = domain.NonNegative(domain.RoundMoney(
		cart.SubTotal.
			Add(cart.ShippingAmount).
			Add(cart.TaxAmount).
			Sub(cart.DiscountAmount).
			Sub(cart.CouponDiscount),
	))

	cart.Version++
	cart.Fingerprint = uuid.NewString()
	cart.UpdatedAt = c.now()
	return nil
}

// TaxableAmount is the subtotal after all discounts, never negative.
func TaxableAmount(cart *domain.Cart) decimal.Decimal {
	return domain.NonNegative(cart.SubTotal.Sub(cart.DiscountAmount).Sub(cart.CouponDiscount))
}

// CouponDiscount derives the discount for a coupon snapshot. Coupons whose
// minimum subtotal is no longer met give nothing.
func CouponDiscount(coupon *domain.AppliedCoupon, subTotal decimal.Decimal) decimal.Decimal {
	if coupon == nil || subTotal.LessThan(coupon.MinSubtotal) {
		return decimal.Zero
	}
	var discount decimal.Decimal
	switch coupon.Kind {
	case domain.CouponPercent:
		discount = subTotal.Mul(coupon.Value).Div(decimal.NewFromInt(100))
	case domain.CouponFixed:
		discount = decimal.Min(coupon.Value, subTotal)
	default:
		return decimal.Zero
	}
	return domain.RoundMoney(domain.NonNegative(discount))
}
