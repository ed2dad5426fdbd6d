package config

import (
	"os"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	chdir(t, t.TempDir())

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Port)
	assert.True(t, cfg.LocalMode)
	assert.True(t, cfg.ShippingFlatCost.IsZero())
	assert.Equal(t, 40, cfg.MaxCartLines)
	assert.Equal(t, BrokerNone, cfg.Events.Broker)
}

func TestLoad_FromEnvironment(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("SHIPPING_FLAT_COST", "1500.50")
	t.Setenv("BANK_ALIAS", "tienda.alias")
	t.Setenv("EVENT_BROKER", "kafka")
	t.Setenv("CRYPTO_WALLET", "0xabc")

	cfg, err := Load()
	require.NoError(t, err)

	assert.True(t, cfg.ShippingFlatCost.Equal(decimal.RequireFromString("1500.50")))
	assert.Equal(t, BrokerKafka, cfg.Events.Broker)

	details := cfg.PaymentDetails()
	assert.Equal(t, "tienda.alias", details.Bank.Alias)
	assert.Equal(t, "0xabc", details.Crypto.Wallet)
}

func TestLoad_RejectsBadValues(t *testing.T) {
	chdir(t, t.TempDir())

	t.Setenv("SHIPPING_FLAT_COST", "-1")
	_, err := Load()
	assert.Error(t, err)

	t.Setenv("SHIPPING_FLAT_COST", "0")
	t.Setenv("EVENT_BROKER", "carrier-pigeon")
	_, err = Load()
	assert.Error(t, err)

	t.Setenv("EVENT_BROKER", "none")
	t.Setenv("MAX_CART_LINES", "80")
	_, err = Load()
	assert.Error(t, err)
}

// chdir mirrors testing.T.Chdir (Go 1.24+) for older toolchains.
func chdir(t *testing.T, dir string) {
	t.Helper()
	prev, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(prev) })
}
