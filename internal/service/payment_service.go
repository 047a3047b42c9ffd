package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/fjod/go_cart/cart-checkout/internal/domain"
	"github.com/fjod/go_cart/cart-checkout/internal/payment"
	"github.com/fjod/go_cart/cart-checkout/internal/repository"
	"github.com/google/uuid"
)

type PaymentService struct {
	orders    repository.OrderRepository
	processor payment.Processor
	gate      *Gate
	log       *slog.Logger
	now       func() time.Time
}

func NewPaymentService(orders repository.OrderRepository, processor payment.Processor, gate *Gate, log *slog.Logger) *PaymentService {
	return &PaymentService{
		orders:    orders,
		processor: processor,
		gate:      gate,
		log:       log.With("component", "payment-service"),
		now:       time.Now,
	}
}

func (s *PaymentService) GetOrder(ctx context.Context, orderID uuid.UUID) (*domain.Order, error) {
	order, err := s.orders.GetOrderByID(ctx, orderID)
	if errors.Is(err, repository.ErrOrderNotFound) {
		return nil, domain.NotFoundf("order %s", orderID)
	}
	if err != nil {
		return nil, fmt.Errorf("load order %s: %w", orderID, err)
	}
	return order, nil
}

// ProcessPayment charges the order once per idempotency key. Declines and
// processor errors are remembered like successes; only an open circuit (no
// call made) is reported as an error.
func (s *PaymentService) ProcessPayment(ctx context.Context, orderID uuid.UUID, req domain.PaymentRequest) (*domain.PaymentResult, error) {
	if strings.TrimSpace(req.Method) == "" {
		return nil, domain.Validationf("payment method is required")
	}

	var result domain.PaymentResult
	err := s.gate.Do(ctx, domain.ScopePayment, orderID.String(), req.IdempotencyKey, &result,
		func(ctx context.Context) (any, domain.Outcome, error) {
			return s.charge(ctx, orderID, req)
		})
	if err != nil {
		return nil, err
	}
	return &result, nil
}

func (s *PaymentService) charge(ctx context.Context, orderID uuid.UUID, req domain.PaymentRequest) (any, domain.Outcome, error) {
	order, err := s.GetOrder(ctx, orderID)
	if err != nil {
		return nil, "", err
	}
	if !order.Status.Payable() {
		return nil, "", domain.Conflictf("order %s is %s and cannot be paid", orderID, order.Status)
	}

	charge, err := s.processor.Charge(ctx, payment.ChargeRequest{
		OrderID:        orderID.String(),
		Amount:         order.TotalAmount,
		Currency:       order.Currency,
		Method:         req.Method,
		Token:          req.Token,
		IdempotencyKey: req.IdempotencyKey,
	})
	if errors.Is(err, payment.ErrUnavailable) {
		return nil, "", fmt.Errorf("%w: %v", domain.ErrExternal, err)
	}
	if err != nil {
		s.log.ErrorContext(ctx, "payment processor error", "order_id", orderID, "error", err)
		charge = &payment.ChargeResult{Success: false, ErrorMessage: "payment processor error: " + err.Error()}
	}

	p := &domain.Payment{
		ID:             uuid.New(),
		OrderID:        orderID,
		Amount:         order.TotalAmount,
		Method:         req.Method,
		Status:         domain.PaymentStatusFailed,
		TransactionID:  charge.TransactionID,
		ErrorMessage:   charge.ErrorMessage,
		IdempotencyKey: req.IdempotencyKey,
		CreatedAt:      s.now(),
	}
	to := domain.OrderStatusPaymentFailed
	if charge.Success {
		p.Status = domain.PaymentStatusSucceeded
		to = domain.OrderStatusPaid
	}

	outcome := domain.OutcomeFailure
	if charge.Success {
		outcome = domain.OutcomeSuccess
	}
	result := domain.PaymentResult{
		Success:       charge.Success,
		OrderID:       orderID.String(),
		PaymentID:     p.ID.String(),
		TransactionID: charge.TransactionID,
		Amount:        order.TotalAmount,
		OrderStatus:   to,
		ErrorMessage:  charge.ErrorMessage,
		ProcessedAt:   p.CreatedAt,
	}

	// The gateway has answered, so the outcome is returned and remembered even
	// when it cannot be recorded. Retrying would charge again.
	if err := s.orders.RecordPayment(ctx, p, order.Status, to); err != nil {
		s.log.ErrorContext(ctx, "payment not recorded, reconciliation required",
			"order_id", orderID, "payment_id", p.ID, "transaction_id", charge.TransactionID,
			"success", charge.Success, "error", err)
		result.OrderStatus = order.Status
		result.ReconciliationRequired = true
		return result, outcome, nil
	}

	s.log.InfoContext(ctx, "payment processed",
		"order_id", orderID, "payment_id", p.ID, "success", charge.Success, "status", to)
	return result, outcome, nil
}

// Refund reverses the latest successful payment, once per idempotency key.
func (s *PaymentService) Refund(ctx context.Context, orderID uuid.UUID, req domain.RefundRequest) (*domain.RefundResult, error) {
	if !req.Amount.IsPositive() {
		return nil, domain.Validationf("refund amount must be positive")
	}
	req.Amount = domain.RoundMoney(req.Amount)

	var result domain.RefundResult
	err := s.gate.Do(ctx, domain.ScopeRefund, orderID.String(), req.IdempotencyKey, &result,
		func(ctx context.Context) (any, domain.Outcome, error) {
			return s.refund(ctx, orderID, req)
		})
	if err != nil {
		return nil, err
	}
	return &result, nil
}

func (s *PaymentService) refund(ctx context.Context, orderID uuid.UUID, req domain.RefundRequest) (any, domain.Outcome, error) {
	order, err := s.GetOrder(ctx, orderID)
	if err != nil {
		return nil, "", err
	}
	if order.Status == domain.OrderStatusRefunded {
		return nil, "", domain.Conflictf("order %s is already refunded", orderID)
	}
	if !domain.CanTransitionTo(order.Status, domain.OrderStatusRefunded) {
		return nil, "", domain.Conflictf("order %s is %s and cannot be refunded", orderID, order.Status)
	}

	paid, err := s.orders.GetLatestSuccessfulPayment(ctx, orderID)
	if errors.Is(err, repository.ErrPaymentNotFound) {
		return nil, "", domain.NotFoundf("no successful payment for order %s", orderID)
	}
	if err != nil {
		return nil, "", fmt.Errorf("load payment: %w", err)
	}
	if req.Amount.GreaterThan(paid.Amount) {
		return nil, "", domain.Validationf("refund amount %s exceeds paid amount %s",
			req.Amount.StringFixed(2), paid.Amount.StringFixed(2))
	}

	res, err := s.processor.Refund(ctx, payment.RefundRequest{
		OrderID:        orderID.String(),
		TransactionID:  paid.TransactionID,
		Amount:         req.Amount,
		Reason:         req.Reason,
		IdempotencyKey: req.IdempotencyKey,
	})
	if errors.Is(err, payment.ErrUnavailable) {
		return nil, "", fmt.Errorf("%w: %v", domain.ErrExternal, err)
	}
	if err != nil {
		s.log.ErrorContext(ctx, "refund processor error", "order_id", orderID, "error", err)
		res = &payment.RefundResult{Success: false, ErrorMessage: "payment processor error: " + err.Error()}
	}

	result := domain.RefundResult{
		Success:             res.Success,
		OrderID:             orderID.String(),
		PaymentID:           paid.ID.String(),
		RefundTransactionID: res.RefundTransactionID,
		Amount:              req.Amount,
		OrderStatus:         order.Status,
		ErrorMessage:        res.ErrorMessage,
		ProcessedAt:         s.now(),
	}
	if !res.Success {
		return result, domain.OutcomeFailure, nil
	}

	err = s.orders.RecordRefund(ctx, &repository.Refund{
		OrderID:       orderID,
		PaymentID:     paid.ID,
		TransactionID: res.RefundTransactionID,
		Amount:        req.Amount,
		Reason:        req.Reason,
		RefundedAt:    result.ProcessedAt,
	})
	if err != nil {
		s.log.ErrorContext(ctx, "refund not recorded, reconciliation required",
			"order_id", orderID, "refund_transaction_id", res.RefundTransactionID, "error", err)
		result.ReconciliationRequired = true
		return result, domain.OutcomeSuccess, nil
	}

	result.OrderStatus = domain.OrderStatusRefunded
	s.log.InfoContext(ctx, "order refunded", "order_id", orderID, "amount", req.Amount.StringFixed(2))
	return result, domain.OutcomeSuccess, nil
}
