package http

import (
	"context"
	"net/http"
	"time"

	"github.com/fjod/go_cart/cart-checkout/internal/domain"
	"github.com/fjod/go_cart/cart-checkout/internal/service"
)

type CheckoutAPI interface {
	SaveAddress(ctx context.Context, sessionID string, address domain.GuestAddress) (*domain.CheckoutSession, error)
	GetShippingOptions(ctx context.Context, sessionID string) ([]domain.ShippingOption, error)
	SelectShipping(ctx context.Context, sessionID, optionID string) (*domain.CheckoutSession, error)
	GetSummary(ctx context.Context, sessionID string) (*domain.CheckoutSummary, error)
	Finalize(ctx context.Context, sessionID string, req domain.PaymentRequest) (*service.FinalizeResult, error)
}

// CheckoutHandler serves the guest checkout. Every call is keyed by the
// sessionId query parameter.
type CheckoutHandler struct {
	checkout CheckoutAPI
	timeout  time.Duration
}

func NewCheckoutHandler(checkout CheckoutAPI, timeout time.Duration) *CheckoutHandler {
	return &CheckoutHandler{
		checkout: checkout,
		timeout:  timeout,
	}
}

type ShippingSelectionDTO struct {
	ShippingOptionID string `json:"shipping_option_id"`
}

type ShippingOptionsResponseDTO struct {
	Options []domain.ShippingOption `json:"options"`
}

// POST /checkout/guest/address
func (h *CheckoutHandler) SaveAddress(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	var address domain.GuestAddress
	if err := decodeJSON(w, r, &address); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	session, err := h.checkout.SaveAddress(ctx, getSessionID(r), address)
	if err != nil {
		handleServiceError(w, r, err, false)
		return
	}
	respondJSON(w, http.StatusOK, session)
}

// GET /checkout/guest/shipping-options
func (h *CheckoutHandler) GetShippingOptions(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	options, err := h.checkout.GetShippingOptions(ctx, getSessionID(r))
	if err != nil {
		handleServiceError(w, r, err, false)
		return
	}
	respondJSON(w, http.StatusOK, ShippingOptionsResponseDTO{Options: options})
}

// POST /checkout/guest/shipping-selection
func (h *CheckoutHandler) SelectShipping(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	var req ShippingSelectionDTO
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	session, err := h.checkout.SelectShipping(ctx, getSessionID(r), req.ShippingOptionID)
	if err != nil {
		handleServiceError(w, r, err, false)
		return
	}
	respondJSON(w, http.StatusOK, session)
}

// GET /checkout/guest/summary
func (h *CheckoutHandler) GetSummary(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	summary, err := h.checkout.GetSummary(ctx, getSessionID(r))
	if err != nil {
		handleServiceError(w, r, err, false)
		return
	}
	respondJSON(w, http.StatusOK, summary)
}

// POST /checkout/guest/finalize
func (h *CheckoutHandler) Finalize(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	var req domain.PaymentRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	req.IdempotencyKey = idempotencyKey(r, req.IdempotencyKey)

	result, err := h.checkout.Finalize(ctx, getSessionID(r), req)
	if err != nil {
		handleServiceError(w, r, err, false)
		return
	}

	status := http.StatusCreated
	if !result.Payment.Success {
		status = http.StatusPaymentRequired
	}
	respondJSON(w, status, result)
}
