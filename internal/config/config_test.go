package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/mtalha0777/arfurniture/internal/money"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("JWT_SECRET", "secret")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.HTTPPort)
	assert.Equal(t, 5432, cfg.DB.Port)
	assert.Equal(t, money.INR, cfg.Currency)
	assert.Equal(t, money.Amount(20000), cfg.ShippingFee)
	assert.Equal(t, "simulated", cfg.PaymentMode)
	assert.Equal(t, []string{"localhost:9092"}, cfg.KafkaBrokers)
	assert.Equal(t, 10*time.Second, cfg.PaymentTimeout)
	assert.Equal(t, "./catalog.db", cfg.CatalogDBPath)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("JWT_SECRET", "secret")
	t.Setenv("SHIPPING_FEE", "2.00")
	t.Setenv("KAFKA_BROKERS", "k1:9092, k2:9092")
	t.Setenv("PAYMENT_TIMEOUT", "3s")
	t.Setenv("PAYMENT_MODE", "stripe")
	t.Setenv("STRIPE_SECRET_KEY", "sk_test_123")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, money.Amount(200), cfg.ShippingFee)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.KafkaBrokers)
	assert.Equal(t, 3*time.Second, cfg.PaymentTimeout)
	assert.Equal(t, "sk_test_123", cfg.StripeSecretKey)
}

func TestLoad_SecretFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "jwt")
	require.NoError(t, os.WriteFile(path, []byte("from-file\n"), 0o600))
	t.Setenv("JWT_SECRET_FILE", path)

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "from-file", cfg.JWTSecret)
}

func TestLoad_Invalid(t *testing.T) {
	t.Setenv("JWT_SECRET", "")
	t.Setenv("DB_PORT", "not-a-port")
	t.Setenv("SHIPPING_FEE", "1.005")
	t.Setenv("PAYMENT_MODE", "paypal")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DB_PORT")
	assert.Contains(t, err.Error(), "SHIPPING_FEE")
	assert.Contains(t, err.Error(), "JWT_SECRET")
	assert.Contains(t, err.Error(), "PAYMENT_MODE")
}

func TestLoad_StripeRequiresKey(t *testing.T) {
	t.Setenv("JWT_SECRET", "secret")
	t.Setenv("PAYMENT_MODE", "stripe")
	t.Setenv("STRIPE_SECRET_KEY", "")

	_, err := Load()
	assert.ErrorContains(t, err, "STRIPE_SECRET_KEY")
}
