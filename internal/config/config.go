package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/fjod/go_cart/cart-checkout/internal/cache"
	"github.com/fjod/go_cart/cart-checkout/internal/repository"
	"github.com/fjod/go_cart/cart-checkout/internal/service"
	"github.com/shopspring/decimal"
)

const (
	PaymentModeHTTP      = "http"
	PaymentModeSimulator = "simulator"
)

type Config struct {
	HTTPPort string
	LogLevel string

	RedisAddr     string
	RedisPassword string

	MongoURI    string
	MongoDBName string

	Postgres repository.Credentials

	KafkaBrokers []string
	OutboxPoll   time.Duration

	PaymentMode       string
	PaymentGatewayURL string
	PaymentTimeout    time.Duration

	TTLs        cache.TTLs
	MergeLock   service.LockTimings
	PaymentLock service.LockTimings

	TaxRate  decimal.Decimal
	Currency string

	RequestTimeout  time.Duration
	ShutdownTimeout time.Duration
}

// Load reads the configuration from the environment. Unset variables fall
// back to defaults suitable for local development.
func Load() (*Config, error) {
	var errs []string
	duration := func(key string, def time.Duration) time.Duration {
		d, err := getEnvDuration(key, def)
		if err != nil {
			errs = append(errs, err.Error())
		}
		return d
	}

	dbPort, err := strconv.Atoi(getEnv("DB_PORT", "5432"))
	if err != nil {
		errs = append(errs, fmt.Sprintf("invalid DB_PORT: %v", err))
	}
	taxRate, err := decimal.NewFromString(getEnv("TAX_RATE", "0.18"))
	if err != nil || taxRate.IsNegative() {
		errs = append(errs, fmt.Sprintf("invalid TAX_RATE %q", os.Getenv("TAX_RATE")))
	}

	cfg := &Config{
		HTTPPort: getEnv("HTTP_PORT", "8080"),
		LogLevel: getEnv("LOG_LEVEL", "info"),

		RedisAddr:     getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),

		MongoURI:    getEnv("MONGO_URI", "mongodb://localhost:27017"),
		MongoDBName: getEnv("MONGO_DB_NAME", "catalog"),

		Postgres: repository.Credentials{
			Host:              getEnv("DB_HOST", "localhost"),
			Port:              dbPort,
			User:              getEnv("DB_USER", "postgres"),
			Password:          getEnv("DB_PASSWORD", "postgres"),
			DBName:            getEnv("DB_NAME", "ecommerce"),
			MigrationsDirPath: getEnv("MIGRATIONS_PATH", "./internal/repository/migrations"),
		},

		KafkaBrokers: splitList(getEnv("KAFKA_BROKERS", "localhost:9092")),
		OutboxPoll:   duration("OUTBOX_POLL_INTERVAL", 2*time.Second),

		PaymentMode:       strings.ToLower(getEnv("PAYMENT_MODE", PaymentModeSimulator)),
		PaymentGatewayURL: getEnv("PAYMENT_GATEWAY_URL", "http://localhost:8090"),
		PaymentTimeout:    duration("PAYMENT_TIMEOUT", 10*time.Second),

		TTLs: cache.TTLs{
			Cart:        duration("CART_TTL", cache.DefaultTTLs.Cart),
			Session:     duration("CHECKOUT_SESSION_TTL", cache.DefaultTTLs.Session),
			Idempotency: duration("IDEMPOTENCY_TTL", cache.DefaultTTLs.Idempotency),
		},
		MergeLock: service.LockTimings{
			Lease: duration("MERGE_LOCK_LEASE", service.DefaultMergeLock.Lease),
			Wait:  duration("MERGE_LOCK_WAIT", service.DefaultMergeLock.Wait),
		},
		PaymentLock: service.LockTimings{
			Lease: duration("PAYMENT_LOCK_LEASE", service.DefaultPaymentLock.Lease),
			Wait:  duration("PAYMENT_LOCK_WAIT", service.DefaultPaymentLock.Wait),
		},

		TaxRate:  taxRate,
		Currency: strings.ToUpper(getEnv("CURRENCY", "USD")),

		RequestTimeout:  duration("REQUEST_TIMEOUT", 15*time.Second),
		ShutdownTimeout: duration("SHUTDOWN_TIMEOUT", 20*time.Second),
	}

	if cfg.PaymentMode != PaymentModeHTTP && cfg.PaymentMode != PaymentModeSimulator {
		errs = append(errs, fmt.Sprintf("invalid PAYMENT_MODE %q", cfg.PaymentMode))
	}
	if len(errs) > 0 {
		return nil, fmt.Errorf("config: %s", strings.Join(errs, "; "))
	}
	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil || d <= 0 {
		return defaultValue, fmt.Errorf("invalid %s %q", key, value)
	}
	return d, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
