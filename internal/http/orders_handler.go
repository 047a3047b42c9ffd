package http

import (
	"context"
	"net/http"
	"time"

	"github.com/fjod/go_cart/cart-checkout/internal/domain"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

type OrdersAPI interface {
	GetOrder(ctx context.Context, orderID uuid.UUID) (*domain.Order, error)
	ProcessPayment(ctx context.Context, orderID uuid.UUID, req domain.PaymentRequest) (*domain.PaymentResult, error)
	Refund(ctx context.Context, orderID uuid.UUID, req domain.RefundRequest) (*domain.RefundResult, error)
}

type OrdersHandler struct {
	orders  OrdersAPI
	timeout time.Duration
}

func NewOrdersHandler(orders OrdersAPI, timeout time.Duration) *OrdersHandler {
	return &OrdersHandler{
		orders:  orders,
		timeout: timeout,
	}
}

func orderIDParam(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid_order_id", "order id must be a UUID")
		return uuid.Nil, false
	}
	return id, true
}

// GET /orders/{id}
func (h *OrdersHandler) GetOrder(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	orderID, ok := orderIDParam(w, r)
	if !ok {
		return
	}

	order, err := h.orders.GetOrder(ctx, orderID)
	if err != nil {
		handleServiceError(w, r, err, false)
		return
	}
	respondJSON(w, http.StatusOK, order)
}

// POST /orders/{id}/payment
func (h *OrdersHandler) ProcessPayment(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	orderID, ok := orderIDParam(w, r)
	if !ok {
		return
	}
	var req domain.PaymentRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	req.IdempotencyKey = idempotencyKey(r, req.IdempotencyKey)

	result, err := h.orders.ProcessPayment(ctx, orderID, req)
	if err != nil {
		handleServiceError(w, r, err, false)
		return
	}

	status := http.StatusOK
	if !result.Success {
		status = http.StatusPaymentRequired
	}
	respondJSON(w, status, result)
}

// POST /orders/{id}/refund
func (h *OrdersHandler) Refund(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	orderID, ok := orderIDParam(w, r)
	if !ok {
		return
	}
	var req domain.RefundRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	req.IdempotencyKey = idempotencyKey(r, req.IdempotencyKey)

	result, err := h.orders.Refund(ctx, orderID, req)
	if err != nil {
		handleServiceError(w, r, err, false)
		return
	}

	status := http.StatusOK
	if !result.Success {
		status = http.StatusBadGateway
	}
	respondJSON(w, status, result)
}
