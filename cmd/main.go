package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fjod/go_cart/cart-checkout/internal/cache"
	"github.com/fjod/go_cart/cart-checkout/internal/catalog"
	"github.com/fjod/go_cart/cart-checkout/internal/config"
	httpapi "github.com/fjod/go_cart/cart-checkout/internal/http"
	"github.com/fjod/go_cart/cart-checkout/internal/lock"
	"github.com/fjod/go_cart/cart-checkout/internal/logger"
	"github.com/fjod/go_cart/cart-checkout/internal/payment"
	"github.com/fjod/go_cart/cart-checkout/internal/pricing"
	"github.com/fjod/go_cart/cart-checkout/internal/publisher"
	"github.com/fjod/go_cart/cart-checkout/internal/repository"
	"github.com/fjod/go_cart/cart-checkout/internal/service"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

const serviceName = "cart-checkout"

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}
	log := logger.Setup(cfg.LogLevel, serviceName)
	log.Info("starting", "port", cfg.HTTPPort, "payment_mode", cfg.PaymentMode)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Redis: carts, checkout sessions, idempotency records and locks
	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       0,
	})
	defer redisClient.Close()
	if err := redisClient.Ping(ctx).Err(); err != nil {
		fatal(log, "redis connection failed", err)
	}
	log.Info("connected to redis", "addr", cfg.RedisAddr)

	store := cache.NewRedisCache(redisClient, cfg.TTLs)
	locker := lock.NewRedisLocker(redisClient)

	// MongoDB: product and coupon catalog
	mongoCatalog, err := catalog.OpenMongoCatalog(ctx, cfg.MongoURI, cfg.MongoDBName)
	if err != nil {
		fatal(log, "mongodb connection failed", err)
	}
	defer func() {
		if err := mongoCatalog.Close(context.Background()); err != nil {
			log.Warn("mongodb disconnect failed", "error", err)
		}
	}()
	products := catalog.NewCoalescing(mongoCatalog)
	log.Info("connected to mongodb", "db", cfg.MongoDBName)

	// Postgres: orders, payments, outbox
	repo, err := repository.NewRepository(&cfg.Postgres)
	if err != nil {
		fatal(log, "database connection failed", err)
	}
	defer repo.Close()
	if err := repo.RunMigrations(&cfg.Postgres); err != nil {
		fatal(log, "migrations failed", err)
	}
	log.Info("database migrations completed")

	poller := publisher.NewOutboxPoller(repo, log, cfg.OutboxPoll, cfg.KafkaBrokers...)
	defer poller.Close()
	go poller.Run(ctx)

	var processor payment.Processor
	switch cfg.PaymentMode {
	case config.PaymentModeHTTP:
		processor = payment.NewHTTPProcessor(cfg.PaymentGatewayURL, cfg.PaymentTimeout)
	default:
		processor = payment.NewSimulator(payment.RandomStatus{})
	}

	shipping := pricing.DefaultRateTable
	tax := pricing.NewFlatTax(cfg.TaxRate)
	calculator := pricing.NewCalculator(shipping, tax)

	gate := service.NewGate(store, locker, cfg.PaymentLock, log)
	carts := service.NewCartService(store, products, mongoCatalog, calculator, locker, cfg.MergeLock, log)
	payments := service.NewPaymentService(repo, processor, gate, log)
	checkout := service.NewCheckoutService(carts, store, store, shipping, tax, repo, payments, gate, cfg.Currency, log)

	router := httpapi.NewRouter(httpapi.RouterConfig{
		Carts:          carts,
		Checkout:       checkout,
		Orders:         payments,
		Log:            log,
		RequestTimeout: cfg.RequestTimeout,
		ReadyChecks: map[string]httpapi.ReadyCheck{
			"redis":    func(ctx context.Context) error { return redisClient.Ping(ctx).Err() },
			"postgres": repo.Ping,
			"mongodb":  mongoCatalog.Ping,
		},
	})

	server := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           otelhttp.NewHandler(router, serviceName),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info("http server listening", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			fatal(log, "http server failed", err)
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("graceful shutdown failed", "error", err)
	}
	log.Info("stopped")
}

func fatal(log *slog.Logger, msg string, err error) {
	log.Error(msg, "error", err)
	os.Exit(1)
}
