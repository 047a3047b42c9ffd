package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Owner identifies whose cart is addressed. Exactly one of the ids is used:
// an authenticated user always wins over a guest session.
type Owner struct {
	UserID    string
	SessionID string
}

func UserOwner(userID string) Owner {
	return Owner{UserID: userID}
}

func GuestOwner(sessionID string) Owner {
	return Owner{SessionID: sessionID}
}

func (o Owner) Validate() error {
	if o.UserID == "" && o.SessionID == "" {
		return ErrSessionRequired
	}
	return nil
}

func (o Owner) IsGuest() bool {
	return o.UserID == ""
}

// Key is the owner part of the cache key.
func (o Owner) Key() string {
	if o.UserID != "" {
		return "user:" + o.UserID
	}
	return "session:" + o.SessionID
}

func (o Owner) String() string {
	return o.Key()
}

type CouponKind string

const (
	CouponPercent CouponKind = "PERCENT"
	CouponFixed   CouponKind = "FIXED"
)

// AppliedCoupon is the coupon snapshot taken when the coupon was applied, so
// recalculation never has to reach the catalog.
type AppliedCoupon struct {
	Code        string          `json:"code"`
	Kind        CouponKind      `json:"kind"`
	Value       decimal.Decimal `json:"value"`
	MinSubtotal decimal.Decimal `json:"min_subtotal"`
}

type Cart struct {
	UserID           string          `json:"user_id,omitempty"`
	SessionID        string          `json:"session_id,omitempty"`
	Items            []CartItem      `json:"items"`
	SubTotal         decimal.Decimal `json:"sub_total"`
	ShippingAmount   decimal.Decimal `json:"shipping_amount"`
	TaxAmount        decimal.Decimal `json:"tax_amount"`
	DiscountAmount   decimal.Decimal `json:"discount_amount"`
	CouponCode       string          `json:"coupon_code,omitempty"`
	CouponDiscount   decimal.Decimal `json:"coupon_discount"`
	Coupon           *AppliedCoupon  `json:"coupon,omitempty"`
	ShippingOptionID string          `json:"shipping_option_id,omitempty"`
	TotalAmount      decimal.Decimal `json:"total_amount"`
	CreatedAt        time.Time       `json:"created_at"`
	UpdatedAt        time.Time       `json:"updated_at"`
	Version          int64           `json:"version"`
	Fingerprint      string          `json:"fingerprint"`
}

type CartItem struct {
	ProductID   string          `json:"product_id"`
	ProductName string          `json:"product_name"`
	SKU         string          `json:"sku"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	Quantity    int             `json:"quantity"`
	TotalPrice  decimal.Decimal `json:"total_price"`
	StoreID     string          `json:"store_id"`
	StoreName   string          `json:"store_name"`
	Weight      decimal.Decimal `json:"weight"`
	AddedAt     time.Time       `json:"added_at"`
}

func NewCart(owner Owner, now time.Time) *Cart {
	return &Cart{
		UserID:    owner.UserID,
		SessionID: owner.SessionID,
		Items:     []CartItem{},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func (c *Cart) Owner() Owner {
	if c.UserID != "" {
		return UserOwner(c.UserID)
	}
	return GuestOwner(c.SessionID)
}

func (c *Cart) IsEmpty() bool {
	return len(c.Items) == 0
}

func (c *Cart) ItemCount() int {
	n := 0
	for _, item := range c.Items {
		n += item.Quantity
	}
	return n
}

func (c *Cart) TotalWeight() decimal.Decimal {
	w := decimal.Zero
	for _, item := range c.Items {
		w = w.Add(item.Weight.Mul(decimal.NewFromInt(int64(item.Quantity))))
	}
	return w
}

func (c *Cart) indexOf(productID string) int {
	for i := range c.Items {
		if c.Items[i].ProductID == productID {
			return i
		}
	}
	return -1
}

func (c *Cart) Item(productID string) (CartItem, bool) {
	i := c.indexOf(productID)
	if i < 0 {
		return CartItem{}, false
	}
	return c.Items[i], true
}

// AddOrIncrement appends item, or adds its quantity to the existing line for
// the same product. Catalog fields of the existing line are refreshed from item.
func (c *Cart) AddOrIncrement(item CartItem) {
	i := c.indexOf(item.ProductID)
	if i < 0 {
		c.Items = append(c.Items, item)
		return
	}
	existing := c.Items[i]
	item.Quantity += existing.Quantity
	item.AddedAt = existing.AddedAt
	c.Items[i] = item
}

// SetQuantity replaces the line's quantity, appending the line if needed.
// A zero quantity removes the line.
func (c *Cart) SetQuantity(item CartItem, quantity int) {
	i := c.indexOf(item.ProductID)
	if quantity == 0 {
		if i >= 0 {
			c.Items = append(c.Items[:i], c.Items[i+1:]...)
		}
		return
	}
	item.Quantity = quantity
	if i < 0 {
		c.Items = append(c.Items, item)
		return
	}
	item.AddedAt = c.Items[i].AddedAt
	c.Items[i] = item
}

func (c *Cart) RemoveItem(productID string) bool {
	i := c.indexOf(productID)
	if i < 0 {
		return false
	}
	c.Items = append(c.Items[:i], c.Items[i+1:]...)
	return true
}
