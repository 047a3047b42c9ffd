package repository

import (
	"context"
	"errors"
	"time"

	"github.com/fjod/go_cart/cart-checkout/internal/domain"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var (
	ErrOrderNotFound   = errors.New("order not found")
	ErrPaymentNotFound = errors.New("payment not found")
	// ErrStatusChanged means the order was not in the expected status.
	ErrStatusChanged = errors.New("order status changed concurrently")
)

const (
	EventOrderCreated       = "order.created"
	EventOrderPaid          = "order.paid"
	EventOrderPaymentFailed = "order.payment_failed"
	EventOrderRefunded      = "order.refunded"
)

type Credentials struct {
	Host              string
	Port              int
	User              string
	Password          string
	DBName            string
	MigrationsDirPath string
}

type OutboxEvent struct {
	ID          int64
	AggregateID uuid.UUID
	EventType   string
	Payload     []byte
	CreatedAt   time.Time
}

type Refund struct {
	OrderID       uuid.UUID
	PaymentID     uuid.UUID
	TransactionID string
	Amount        decimal.Decimal
	Reason        string
	RefundedAt    time.Time
}

type OrderRepository interface {
	CreateOrder(ctx context.Context, order *domain.Order) error
	GetOrderByID(ctx context.Context, id uuid.UUID) (*domain.Order, error)
	// RecordPayment stores the payment and moves the order from -> to in one
	// transaction. ErrStatusChanged if the order is no longer in from.
	RecordPayment(ctx context.Context, payment *domain.Payment, from, to domain.OrderStatus) error
	GetLatestSuccessfulPayment(ctx context.Context, orderID uuid.UUID) (*domain.Payment, error)
	RecordRefund(ctx context.Context, refund *Refund) error
	GetStatusHistory(ctx context.Context, orderID uuid.UUID) ([]domain.OrderStatusChange, error)
}

type OutboxRepository interface {
	GetUnprocessedEvents(ctx context.Context, limit int) ([]*OutboxEvent, error)
	MarkEventAsProcessed(ctx context.Context, id int64) error
}
