package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type OrderStatus string

const (
	OrderStatusNew           OrderStatus = "NEW"
	OrderStatusPaymentFailed OrderStatus = "PAYMENT_FAILED"
	OrderStatusPaid          OrderStatus = "PAID"
	OrderStatusRefunded      OrderStatus = "REFUNDED"
)

var orderTransitions = map[OrderStatus][]OrderStatus{
	OrderStatusNew:           {OrderStatusPaid, OrderStatusPaymentFailed},
	OrderStatusPaymentFailed: {OrderStatusPaid, OrderStatusPaymentFailed},
	OrderStatusPaid:          {OrderStatusRefunded},
}

func CanTransitionTo(from, to OrderStatus) bool {
	for _, s := range orderTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

func (s OrderStatus) Payable() bool {
	return s == OrderStatusNew || s == OrderStatusPaymentFailed
}

func (s OrderStatus) String() string {
	return string(s)
}

type OrderItem struct {
	ProductID   string          `json:"product_id"`
	ProductName string          `json:"product_name"`
	SKU         string          `json:"sku"`
	StoreID     string          `json:"store_id"`
	StoreName   string          `json:"store_name"`
	Quantity    int             `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	TotalPrice  decimal.Decimal `json:"total_price"`
}

type Order struct {
	ID               uuid.UUID       `json:"id"`
	SessionID        string          `json:"session_id,omitempty"`
	UserID           string          `json:"user_id,omitempty"`
	Status           OrderStatus     `json:"status"`
	Items            []OrderItem     `json:"items"`
	Subtotal         decimal.Decimal `json:"subtotal"`
	ShippingAmount   decimal.Decimal `json:"shipping_amount"`
	DiscountAmount   decimal.Decimal `json:"discount_amount"`
	TaxAmount        decimal.Decimal `json:"tax_amount"`
	TotalAmount      decimal.Decimal `json:"total_amount"`
	Currency         string          `json:"currency"`
	CouponCode       string          `json:"coupon_code,omitempty"`
	ShippingOptionID string          `json:"shipping_option_id,omitempty"`
	ShippingAddress  GuestAddress    `json:"shipping_address"`
	CreatedAt        time.Time       `json:"created_at"`
	UpdatedAt        time.Time       `json:"updated_at"`
}

// ItemsFromCart copies lines exactly as they were quoted.
func ItemsFromCart(cart *Cart) []OrderItem {
	items := make([]OrderItem, 0, len(cart.Items))
	for _, line := range cart.Items {
		items = append(items, OrderItem{
			ProductID:   line.ProductID,
			ProductName: line.ProductName,
			SKU:         line.SKU,
			StoreID:     line.StoreID,
			StoreName:   line.StoreName,
			Quantity:    line.Quantity,
			UnitPrice:   line.UnitPrice,
			TotalPrice:  line.TotalPrice,
		})
	}
	return items
}

type OrderStatusChange struct {
	OrderID   uuid.UUID
	From      OrderStatus
	To        OrderStatus
	Note      string
	ChangedAt time.Time
}
