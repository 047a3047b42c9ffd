package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type PaymentStatus string

const (
	PaymentStatusSucceeded PaymentStatus = "SUCCEEDED"
	PaymentStatusFailed    PaymentStatus = "FAILED"
	PaymentStatusRefunded  PaymentStatus = "REFUNDED"
)

type Payment struct {
	ID                  uuid.UUID
	OrderID             uuid.UUID
	Amount              decimal.Decimal
	Method              string
	Status              PaymentStatus
	TransactionID       string
	ErrorMessage        string
	IdempotencyKey      string
	RefundTransactionID string
	RefundedAmount      decimal.Decimal
	RefundedAt          *time.Time
	CreatedAt           time.Time
}

type PaymentRequest struct {
	Method         string `json:"method"`
	Token          string `json:"token"`
	IdempotencyKey string `json:"idempotency_key,omitempty"`
}

// PaymentResult is what callers get back from a payment attempt. It is the
// payload cached for idempotent replays.
type PaymentResult struct {
	Success       bool            `json:"success"`
	OrderID       string          `json:"order_id"`
	PaymentID     string          `json:"payment_id,omitempty"`
	TransactionID string          `json:"transaction_id,omitempty"`
	Amount        decimal.Decimal `json:"amount"`
	OrderStatus   OrderStatus     `json:"order_status"`
	ErrorMessage  string          `json:"error_message,omitempty"`
	ProcessedAt   time.Time       `json:"processed_at"`

	// ReconciliationRequired means the gateway answered but the payment row
	// could not be stored; OrderStatus is the status still on record.
	ReconciliationRequired bool `json:"reconciliation_required,omitempty"`
}

type RefundRequest struct {
	Amount         decimal.Decimal `json:"amount"`
	Reason         string          `json:"reason,omitempty"`
	IdempotencyKey string          `json:"idempotency_key,omitempty"`
}

type RefundResult struct {
	Success             bool            `json:"success"`
	OrderID             string          `json:"order_id"`
	PaymentID           string          `json:"payment_id"`
	RefundTransactionID string          `json:"refund_transaction_id,omitempty"`
	Amount              decimal.Decimal `json:"amount"`
	OrderStatus         OrderStatus     `json:"order_status"`
	ErrorMessage        string          `json:"error_message,omitempty"`
	ProcessedAt         time.Time       `json:"processed_at"`

	// ReconciliationRequired means the refund went through at the gateway but
	// was not recorded against the order.
	ReconciliationRequired bool `json:"reconciliation_required,omitempty"`
}
