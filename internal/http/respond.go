package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/fjod/go_cart/cart-checkout/internal/domain"
)

const maxBodyBytes = 1 << 20

type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details string `json:"details,omitempty"`
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, ErrorResponse{
		Error: message,
		Code:  code,
	})
}

func respondCart(w http.ResponseWriter, status int, cart *domain.Cart) {
	w.Header().Set("ETag", strconv.Quote(cart.Fingerprint))
	respondJSON(w, status, cart)
}

// handleServiceError maps domain error kinds onto HTTP statuses.
func handleServiceError(w http.ResponseWriter, r *http.Request, err error, preconditionHeader bool) {
	switch {
	case errors.Is(err, domain.ErrValidation):
		respondError(w, http.StatusBadRequest, "validation_error", err.Error())
	case errors.Is(err, domain.ErrNotFound):
		respondError(w, http.StatusNotFound, "not_found", err.Error())
	case errors.Is(err, domain.ErrLockBusy):
		w.Header().Set("Retry-After", "1")
		respondError(w, http.StatusConflict, "lock_busy", err.Error())
	case errors.Is(err, domain.ErrFingerprintMismatch) && preconditionHeader:
		respondError(w, http.StatusPreconditionFailed, "precondition_failed", err.Error())
	case errors.Is(err, domain.ErrConflict):
		respondError(w, http.StatusConflict, "conflict", err.Error())
	case errors.Is(err, domain.ErrExternal):
		slog.WarnContext(r.Context(), "collaborator failure", "path", r.URL.Path, "error", err)
		respondError(w, http.StatusBadGateway, "external_failure", "upstream service failed")
	default:
		slog.ErrorContext(r.Context(), "request failed", "path", r.URL.Path, "error", err)
		respondError(w, http.StatusInternalServerError, "internal_error", "internal server error")
	}
}

// decodeJSON reads an optional JSON body. An empty body leaves dst untouched.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst interface{}) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("invalid JSON body: %w", err)
	}
	return nil
}

// expectedFingerprint reads If-Match, falling back to the body field. The
// second result tells whether the header was used.
func expectedFingerprint(r *http.Request, fromBody string) (string, bool) {
	if v := strings.TrimSpace(r.Header.Get("If-Match")); v != "" && v != "*" {
		v = strings.TrimPrefix(v, "W/")
		return strings.Trim(v, `"`), true
	}
	return fromBody, false
}

func idempotencyKey(r *http.Request, fromBody string) string {
	if fromBody != "" {
		return fromBody
	}
	return strings.TrimSpace(r.Header.Get("Idempotency-Key"))
}
