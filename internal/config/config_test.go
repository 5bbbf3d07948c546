package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xtrntr/cryptopro/internal/models"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("DATABASE_DRIVER", "")
	t.Setenv("STARTING_USD", "")
	t.Setenv("PRICES_FILE", "")
	t.Setenv("KAFKA_BROKERS", "")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "postgres", cfg.Database.Driver)
	assert.Equal(t, ":5000", cfg.Server.Addr)
	assert.Equal(t, 5*time.Second, cfg.Server.FeedInterval)
	assert.True(t, cfg.Ledger.OpeningBalances.USD.Equal(decimal.NewFromInt(10000)))
	assert.True(t, cfg.Ledger.OpeningBalances.BTC.IsZero())
	assert.Empty(t, cfg.Kafka.Brokers)
	assert.Equal(t, models.DefaultPrices(), cfg.Ledger.Prices)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("DATABASE_DRIVER", "memory")
	t.Setenv("STARTING_USD", "2500.50")
	t.Setenv("KAFKA_BROKERS", "k1:9092, k2:9092,")
	t.Setenv("FEED_INTERVAL", "250ms")
	t.Setenv("WEBAPP_URL", "https://example.org/")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "memory", cfg.Database.Driver)
	assert.True(t, cfg.Ledger.OpeningBalances.USD.Equal(decimal.RequireFromString("2500.50")))
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, 250*time.Millisecond, cfg.Server.FeedInterval)
	assert.Equal(t, "https://example.org", cfg.Bot.WebAppURL)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{"UnknownDriver", map[string]string{"DATABASE_DRIVER": "sqlite"}},
		{"BadStartingBalance", map[string]string{"STARTING_USD": "lots"}},
		{"NegativeStartingBalance", map[string]string{"STARTING_USD": "-1"}},
		{"MissingPricesFile", map[string]string{"PRICES_FILE": "/does/not/exist.yaml"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := Load()
			assert.Error(t, err)
		})
	}
}

func TestLoadPrices(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "prices.yaml")
	require.NoError(t, os.WriteFile(path, []byte("btc:\n  price: 60000\nETH:\n  name: Ether\n  price: 3100.5\n"), 0o600))

	prices, err := LoadPrices(path)
	require.NoError(t, err)

	assert.True(t, prices[models.BTC].Price.Equal(decimal.NewFromInt(60000)))
	assert.Equal(t, "Bitcoin", prices[models.BTC].Name)
	assert.Equal(t, "Ether", prices[models.ETH].Name)
	assert.True(t, prices[models.ETH].Price.Equal(decimal.RequireFromString("3100.5")))
	assert.True(t, prices[models.SOL].Price.Equal(decimal.NewFromInt(120)), "unlisted assets keep defaults")

	precise := filepath.Join(dir, "precise.yaml")
	require.NoError(t, os.WriteFile(precise, []byte("BTC:\n  price: 12345.123456789012345\nADA:\n  price: 0.48\nUSDT:\n  price: \"1.0001\"\n"), 0o600))
	prices, err = LoadPrices(precise)
	require.NoError(t, err)
	assert.Equal(t, "12345.123456789012345", prices[models.BTC].Price.String())
	assert.Equal(t, "0.48", prices[models.ADA].Price.String())
	assert.Equal(t, "1.0001", prices[models.USDT].Price.String())

	bad := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("DOGE:\n  price: 1\n"), 0o600))
	_, err = LoadPrices(bad)
	assert.ErrorIs(t, err, models.ErrInvalidAsset)
}
