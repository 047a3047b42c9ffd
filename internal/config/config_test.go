package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.HTTPPort)
	assert.Equal(t, 5432, cfg.Postgres.Port)
	assert.Equal(t, []string{"localhost:9092"}, cfg.KafkaBrokers)
	assert.Equal(t, PaymentModeSimulator, cfg.PaymentMode)
	assert.Equal(t, 12*time.Hour, cfg.TTLs.Cart)
	assert.Equal(t, 6*time.Hour, cfg.TTLs.Session)
	assert.Equal(t, 10*time.Minute, cfg.TTLs.Idempotency)
	assert.Equal(t, 30*time.Second, cfg.MergeLock.Lease)
	assert.Equal(t, 60*time.Second, cfg.PaymentLock.Lease)
	assert.Equal(t, "0.18", cfg.TaxRate.String())
	assert.Equal(t, "USD", cfg.Currency)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("HTTP_PORT", "9000")
	t.Setenv("KAFKA_BROKERS", "k1:9092, k2:9092,")
	t.Setenv("PAYMENT_MODE", "HTTP")
	t.Setenv("CART_TTL", "1h")
	t.Setenv("MERGE_LOCK_WAIT", "250ms")
	t.Setenv("TAX_RATE", "0.2")
	t.Setenv("CURRENCY", "eur")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "9000", cfg.HTTPPort)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.KafkaBrokers)
	assert.Equal(t, PaymentModeHTTP, cfg.PaymentMode)
	assert.Equal(t, time.Hour, cfg.TTLs.Cart)
	assert.Equal(t, 250*time.Millisecond, cfg.MergeLock.Wait)
	assert.Equal(t, "0.2", cfg.TaxRate.String())
	assert.Equal(t, "EUR", cfg.Currency)
}

func TestLoad_InvalidValues(t *testing.T) {
	t.Setenv("DB_PORT", "not-a-port")
	t.Setenv("CART_TTL", "forever")
	t.Setenv("PAYMENT_MODE", "carrier-pigeon")
	t.Setenv("TAX_RATE", "-1")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DB_PORT")
	assert.Contains(t, err.Error(), "CART_TTL")
	assert.Contains(t, err.Error(), "PAYMENT_MODE")
	assert.Contains(t, err.Error(), "TAX_RATE")
}
