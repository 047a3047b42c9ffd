package http

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/fjod/go_cart/cart-checkout/internal/domain"
	"github.com/go-chi/chi/v5/middleware"
)

type ctxKey int

const userIDKey ctxKey = iota

// UserIDHeader is set by the gateway after it has authenticated the caller.
const UserIDHeader = "X-User-ID"

// IdentityMiddleware lifts the authenticated user id forwarded by the gateway
// into the request context. Requests without it are treated as guests.
func IdentityMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if userID := strings.TrimSpace(r.Header.Get(UserIDHeader)); userID != "" {
			r = r.WithContext(context.WithValue(r.Context(), userIDKey, userID))
		}
		next.ServeHTTP(w, r)
	})
}

func getUserIDFromContext(ctx context.Context) string {
	if userID, ok := ctx.Value(userIDKey).(string); ok {
		return userID
	}
	return ""
}

func getSessionID(r *http.Request) string {
	return strings.TrimSpace(r.URL.Query().Get("sessionId"))
}

// ownerFromRequest prefers the authenticated user over the sessionId query.
func ownerFromRequest(r *http.Request) (domain.Owner, error) {
	owner := domain.Owner{
		UserID:    getUserIDFromContext(r.Context()),
		SessionID: getSessionID(r),
	}
	if owner.UserID != "" {
		owner.SessionID = ""
	}
	return owner, owner.Validate()
}

// RequestLogger writes one structured line per request.
func RequestLogger(log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			defer func() {
				log.InfoContext(r.Context(), "http request",
					"method", r.Method,
					"path", r.URL.Path,
					"status", ww.Status(),
					"bytes", ww.BytesWritten(),
					"duration", time.Since(start),
					"request_id", middleware.GetReqID(r.Context()),
				)
			}()
			next.ServeHTTP(ww, r)
		})
	}
}
