package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Product is the slice of the catalog entry the cart needs.
type Product struct {
	ID        string
	Name      string
	SKU       string
	Price     decimal.Decimal
	StoreID   string
	StoreName string
	Weight    decimal.Decimal
}

type Coupon struct {
	Code        string
	Kind        CouponKind
	Value       decimal.Decimal
	MinSubtotal decimal.Decimal
	Active      bool
	ExpiresAt   *time.Time
}

func (c *Coupon) Usable(now time.Time) bool {
	if !c.Active {
		return false
	}
	return c.ExpiresAt == nil || now.Before(*c.ExpiresAt)
}

func (c *Coupon) Snapshot() *AppliedCoupon {
	return &AppliedCoupon{
		Code:        c.Code,
		Kind:        c.Kind,
		Value:       c.Value,
		MinSubtotal: c.MinSubtotal,
	}
}
