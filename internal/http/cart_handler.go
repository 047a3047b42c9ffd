package http

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/fjod/go_cart/cart-checkout/internal/domain"
)

type CartAPI interface {
	GetCart(ctx context.Context, owner domain.Owner) (*domain.Cart, error)
	AddItem(ctx context.Context, owner domain.Owner, productID string, quantity int, expectedFingerprint string) (*domain.Cart, error)
	UpdateItem(ctx context.Context, owner domain.Owner, productID string, quantity int, expectedFingerprint string) (*domain.Cart, error)
	RemoveItem(ctx context.Context, owner domain.Owner, productID string, expectedFingerprint string) (*domain.Cart, error)
	ApplyCoupon(ctx context.Context, owner domain.Owner, code string, expectedFingerprint string) (*domain.Cart, error)
	RemoveCoupon(ctx context.Context, owner domain.Owner, expectedFingerprint string) (*domain.Cart, error)
	ClearCart(ctx context.Context, owner domain.Owner, expectedFingerprint string) error
	MergeCarts(ctx context.Context, sessionID, userID, observedFingerprint string) (*domain.Cart, error)
}

type CartHandler struct {
	carts   CartAPI
	timeout time.Duration
}

func NewCartHandler(carts CartAPI, timeout time.Duration) *CartHandler {
	return &CartHandler{
		carts:   carts,
		timeout: timeout,
	}
}

type ItemRequestDTO struct {
	ProductID           string `json:"product_id"`
	Quantity            int    `json:"quantity"`
	ExpectedFingerprint string `json:"expected_fingerprint,omitempty"`
}

type CouponRequestDTO struct {
	Code                string `json:"code"`
	ExpectedFingerprint string `json:"expected_fingerprint,omitempty"`
}

type FingerprintRequestDTO struct {
	ExpectedFingerprint string `json:"expected_fingerprint,omitempty"`
}

// GET /cart
func (h *CartHandler) GetCart(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	owner, err := ownerFromRequest(r)
	if err != nil {
		handleServiceError(w, r, err, false)
		return
	}

	cart, err := h.carts.GetCart(ctx, owner)
	if err != nil {
		handleServiceError(w, r, err, false)
		return
	}
	respondCart(w, http.StatusOK, cart)
}

// POST /cart/add
func (h *CartHandler) AddItem(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	owner, err := ownerFromRequest(r)
	if err != nil {
		handleServiceError(w, r, err, false)
		return
	}
	var req ItemRequestDTO
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	fp, fromHeader := expectedFingerprint(r, req.ExpectedFingerprint)

	cart, err := h.carts.AddItem(ctx, owner, req.ProductID, req.Quantity, fp)
	if err != nil {
		handleServiceError(w, r, err, fromHeader)
		return
	}
	respondCart(w, http.StatusOK, cart)
}

// PUT /cart/update
func (h *CartHandler) UpdateItem(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	owner, err := ownerFromRequest(r)
	if err != nil {
		handleServiceError(w, r, err, false)
		return
	}
	var req ItemRequestDTO
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	fp, fromHeader := expectedFingerprint(r, req.ExpectedFingerprint)

	cart, err := h.carts.UpdateItem(ctx, owner, req.ProductID, req.Quantity, fp)
	if err != nil {
		handleServiceError(w, r, err, fromHeader)
		return
	}
	respondCart(w, http.StatusOK, cart)
}

// DELETE /cart/remove?productId=...
func (h *CartHandler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	owner, err := ownerFromRequest(r)
	if err != nil {
		handleServiceError(w, r, err, false)
		return
	}
	var req ItemRequestDTO
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	if productID := strings.TrimSpace(r.URL.Query().Get("productId")); productID != "" {
		req.ProductID = productID
	}
	if req.ProductID == "" {
		respondError(w, http.StatusBadRequest, "validation_error", "product_id is required")
		return
	}
	fp, fromHeader := expectedFingerprint(r, req.ExpectedFingerprint)

	cart, err := h.carts.RemoveItem(ctx, owner, req.ProductID, fp)
	if err != nil {
		handleServiceError(w, r, err, fromHeader)
		return
	}
	respondCart(w, http.StatusOK, cart)
}

// DELETE /cart/clear
func (h *CartHandler) ClearCart(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	owner, err := ownerFromRequest(r)
	if err != nil {
		handleServiceError(w, r, err, false)
		return
	}
	fp, fromHeader := expectedFingerprint(r, "")

	if err := h.carts.ClearCart(ctx, owner, fp); err != nil {
		handleServiceError(w, r, err, fromHeader)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// POST /cart/apply-coupon
func (h *CartHandler) ApplyCoupon(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	owner, err := ownerFromRequest(r)
	if err != nil {
		handleServiceError(w, r, err, false)
		return
	}
	var req CouponRequestDTO
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	fp, fromHeader := expectedFingerprint(r, req.ExpectedFingerprint)

	cart, err := h.carts.ApplyCoupon(ctx, owner, req.Code, fp)
	if err != nil {
		handleServiceError(w, r, err, fromHeader)
		return
	}
	respondCart(w, http.StatusOK, cart)
}

// DELETE /cart/remove-coupon
func (h *CartHandler) RemoveCoupon(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	owner, err := ownerFromRequest(r)
	if err != nil {
		handleServiceError(w, r, err, false)
		return
	}
	fp, fromHeader := expectedFingerprint(r, "")

	cart, err := h.carts.RemoveCoupon(ctx, owner, fp)
	if err != nil {
		handleServiceError(w, r, err, fromHeader)
		return
	}
	respondCart(w, http.StatusOK, cart)
}

// POST /cart/merge?sessionId=... for an authenticated user.
func (h *CartHandler) MergeCarts(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	userID := getUserIDFromContext(r.Context())
	if userID == "" {
		respondError(w, http.StatusUnauthorized, "unauthorized", "merge requires an authenticated user")
		return
	}
	var req FingerprintRequestDTO
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	fp, _ := expectedFingerprint(r, req.ExpectedFingerprint)

	cart, err := h.carts.MergeCarts(ctx, getSessionID(r), userID, fp)
	if err != nil {
		handleServiceError(w, r, err, false)
		return
	}
	respondCart(w, http.StatusOK, cart)
}
