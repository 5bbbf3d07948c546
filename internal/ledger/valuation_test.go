package ledger_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xtrntr/cryptopro/internal/ledger"
	"github.com/xtrntr/cryptopro/internal/models"
)

func TestValue(t *testing.T) {
	prices := models.DefaultPrices()

	tests := []struct {
		name     string
		balances models.Balances
		expected string
	}{
		{"CashOnly", models.Balances{USD: d("10000")}, "10000"},
		{"CashAndBitcoin", models.Balances{USD: d("100"), BTC: d("0.01")}, "550"},
		{"Mixed", models.Balances{USD: d("1"), ETH: d("2"), ADA: d("100"), DOT: d("10"), USDT: d("5")}, "5126"},
		{"Empty", models.Balances{}, "0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, err := ledger.Value(tt.balances, prices)
			require.NoError(t, err)
			assert.True(t, v.Equal(d(tt.expected)), "got %s want %s", v, tt.expected)
		})
	}
}

func TestValue_MissingPrice(t *testing.T) {
	prices := models.DefaultPrices()
	delete(prices, models.DOT)

	_, err := ledger.Value(models.Balances{USD: d("1")}, prices)
	assert.ErrorIs(t, err, models.ErrUnknownAsset)
}

func TestHoldings(t *testing.T) {
	prices := models.DefaultPrices()
	h, err := ledger.Holdings(models.Balances{USD: d("5"), BTC: d("0.5"), SOL: d("2")}, prices)
	require.NoError(t, err)
	require.Len(t, h, 2)

	assert.Equal(t, models.BTC, h[0].Asset)
	assert.Equal(t, "Bitcoin", h[0].Name)
	assert.True(t, h[0].Value.Equal(d("22500")))
	assert.Equal(t, models.SOL, h[1].Asset)
	assert.True(t, h[1].Value.Equal(d("240")))
}
