package models

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Asset is one of the tradable crypto symbols
type Asset string

const (
	BTC  Asset = "BTC"
	ETH  Asset = "ETH"
	SOL  Asset = "SOL"
	ADA  Asset = "ADA"
	DOT  Asset = "DOT"
	USDT Asset = "USDT"
)

// USD is the quote currency symbol. It is not an Asset.
const USD = "USD"

// Assets lists every tradable asset in display order
var Assets = []Asset{BTC, ETH, SOL, ADA, DOT, USDT}

// ParseAsset resolves a symbol case-insensitively
func ParseAsset(symbol string) (Asset, error) {
	a := Asset(strings.ToUpper(strings.TrimSpace(symbol)))
	for _, known := range Assets {
		if a == known {
			return a, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidAsset, symbol)
}

// Balances holds the USD balance and one balance per asset
type Balances struct {
	USD  decimal.Decimal
	BTC  decimal.Decimal
	ETH  decimal.Decimal
	SOL  decimal.Decimal
	ADA  decimal.Decimal
	DOT  decimal.Decimal
	USDT decimal.Decimal
}

// field returns a pointer to the balance of the given asset, or nil for an
// unknown asset.
func (b *Balances) field(a Asset) *decimal.Decimal {
	switch a {
	case BTC:
		return &b.BTC
	case ETH:
		return &b.ETH
	case SOL:
		return &b.SOL
	case ADA:
		return &b.ADA
	case DOT:
		return &b.DOT
	case USDT:
		return &b.USDT
	}
	return nil
}

// Get returns the balance held in asset a
func (b Balances) Get(a Asset) (decimal.Decimal, error) {
	f := b.field(a)
	if f == nil {
		return decimal.Zero, fmt.Errorf("%w: %q", ErrInvalidAsset, a)
	}
	return *f, nil
}

// Set replaces the balance held in asset a
func (b *Balances) Set(a Asset, v decimal.Decimal) error {
	f := b.field(a)
	if f == nil {
		return fmt.Errorf("%w: %q", ErrInvalidAsset, a)
	}
	*f = v
	return nil
}

// Map returns all seven balances keyed by symbol
func (b Balances) Map() map[string]decimal.Decimal {
	m := map[string]decimal.Decimal{USD: b.USD}
	for _, a := range Assets {
		m[string(a)] = *b.field(a)
	}
	return m
}

// PriceInfo is one row of the price table
type PriceInfo struct {
	Name  string
	Price decimal.Decimal
}

// PriceTable maps each asset to its display name and USD unit price
type PriceTable map[Asset]PriceInfo

// DefaultPrices is the built-in static price table
func DefaultPrices() PriceTable {
	return PriceTable{
		BTC:  {Name: "Bitcoin", Price: decimal.NewFromInt(45000)},
		ETH:  {Name: "Ethereum", Price: decimal.NewFromInt(2500)},
		SOL:  {Name: "Solana", Price: decimal.NewFromInt(120)},
		ADA:  {Name: "Cardano", Price: decimal.RequireFromString("0.48")},
		DOT:  {Name: "Polkadot", Price: decimal.RequireFromString("7.2")},
		USDT: {Name: "Tether", Price: decimal.NewFromInt(1)},
	}
}
