package http

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// ReadyCheck reports whether a dependency can serve traffic.
type ReadyCheck func(ctx context.Context) error

type RouterConfig struct {
	Carts          CartAPI
	Checkout       CheckoutAPI
	Orders         OrdersAPI
	Log            *slog.Logger
	RequestTimeout time.Duration
	ReadyChecks    map[string]ReadyCheck
}

func NewRouter(cfg RouterConfig) http.Handler {
	cartHandler := NewCartHandler(cfg.Carts, cfg.RequestTimeout)
	checkoutHandler := NewCheckoutHandler(cfg.Checkout, cfg.RequestTimeout)
	ordersHandler := NewOrdersHandler(cfg.Orders, cfg.RequestTimeout)

	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(RequestLogger(cfg.Log))
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(cfg.RequestTimeout))
	r.Use(IdentityMiddleware)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Get("/ready", readyHandler(cfg.ReadyChecks))

	r.Route("/cart", func(r chi.Router) {
		r.Get("/", cartHandler.GetCart)
		r.Post("/add", cartHandler.AddItem)
		r.Put("/update", cartHandler.UpdateItem)
		r.Delete("/remove", cartHandler.RemoveItem)
		r.Delete("/clear", cartHandler.ClearCart)
		r.Post("/apply-coupon", cartHandler.ApplyCoupon)
		r.Delete("/remove-coupon", cartHandler.RemoveCoupon)
		r.Post("/merge", cartHandler.MergeCarts)
	})

	r.Route("/checkout/guest", func(r chi.Router) {
		r.Post("/address", checkoutHandler.SaveAddress)
		r.Get("/shipping-options", checkoutHandler.GetShippingOptions)
		r.Post("/shipping-selection", checkoutHandler.SelectShipping)
		r.Get("/summary", checkoutHandler.GetSummary)
		r.Post("/finalize", checkoutHandler.Finalize)
	})

	r.Route("/orders/{id}", func(r chi.Router) {
		r.Get("/", ordersHandler.GetOrder)
		r.Post("/payment", ordersHandler.ProcessPayment)
		r.Post("/refund", ordersHandler.Refund)
	})

	return r
}

func readyHandler(checks map[string]ReadyCheck) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		result := make(map[string]string, len(checks))
		status := http.StatusOK
		for name, check := range checks {
			if err := check(ctx); err != nil {
				result[name] = err.Error()
				status = http.StatusServiceUnavailable
				continue
			}
			result[name] = "ok"
		}
		respondJSON(w, status, result)
	}
}
