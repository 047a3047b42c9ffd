package payment

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"
)

// ErrUnavailable means the gateway was not called at all (circuit open).
var ErrUnavailable = errors.New("payment gateway unavailable")

type ChargeRequest struct {
	OrderID        string          `json:"order_id"`
	Amount         decimal.Decimal `json:"amount"`
	Currency       string          `json:"currency"`
	Method         string          `json:"method"`
	Token          string          `json:"token"`
	IdempotencyKey string          `json:"idempotency_key,omitempty"`
}

type ChargeResult struct {
	Success       bool   `json:"success"`
	TransactionID string `json:"transaction_id"`
	ErrorMessage  string `json:"error_message,omitempty"`
}

type RefundRequest struct {
	OrderID        string          `json:"order_id"`
	TransactionID  string          `json:"transaction_id"`
	Amount         decimal.Decimal `json:"amount"`
	Reason         string          `json:"reason,omitempty"`
	IdempotencyKey string          `json:"idempotency_key,omitempty"`
}

type RefundResult struct {
	Success             bool   `json:"success"`
	RefundTransactionID string `json:"refund_transaction_id"`
	ErrorMessage        string `json:"error_message,omitempty"`
}

type Processor interface {
	Charge(ctx context.Context, req ChargeRequest) (*ChargeResult, error)
	Refund(ctx context.Context, req RefundRequest) (*RefundResult, error)
}
