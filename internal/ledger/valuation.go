package ledger

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/xtrntr/cryptopro/internal/models"
)

// Value returns USD plus every asset balance at its table price
func Value(b models.Balances, prices models.PriceTable) (decimal.Decimal, error) {
	total := b.USD
	for _, a := range models.Assets {
		info, ok := prices[a]
		if !ok {
			return decimal.Zero, fmt.Errorf("%w: %s", models.ErrUnknownAsset, a)
		}
		held, err := b.Get(a)
		if err != nil {
			return decimal.Zero, err
		}
		total = total.Add(held.Mul(info.Price))
	}
	return total, nil
}

// Holding is one non-zero position valued at the table price
type Holding struct {
	Asset  models.Asset
	Name   string
	Amount decimal.Decimal
	Price  decimal.Decimal
	Value  decimal.Decimal
}

// Holdings lists the non-zero asset positions in display order
func Holdings(b models.Balances, prices models.PriceTable) ([]Holding, error) {
	var out []Holding
	for _, a := range models.Assets {
		held, err := b.Get(a)
		if err != nil {
			return nil, err
		}
		if held.IsZero() {
			continue
		}
		info, ok := prices[a]
		if !ok {
			return nil, fmt.Errorf("%w: %s", models.ErrUnknownAsset, a)
		}
		out = append(out, Holding{
			Asset:  a,
			Name:   info.Name,
			Amount: held,
			Price:  info.Price,
			Value:  held.Mul(info.Price),
		})
	}
	return out, nil
}
