package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/xtrntr/cryptopro/internal/config"
	"github.com/xtrntr/cryptopro/internal/db"
	"github.com/xtrntr/cryptopro/internal/ledger"
	"github.com/xtrntr/cryptopro/internal/logger"
	"github.com/xtrntr/cryptopro/internal/models"
)

type seedTrade struct {
	side   models.EntryType
	asset  string
	amount string
	price  string
}

type seedAccount struct {
	profile models.Profile
	trades  []seedTrade
}

var demoAccounts = []seedAccount{
	{
		profile: models.Profile{TelegramID: 1001, Username: "trader1", FirstName: "Demo", LastName: "Trader"},
		trades: []seedTrade{
			{models.EntryBuy, "BTC", "0.1", "44000"},
			{models.EntryBuy, "ETH", "1.5", "2400"},
			{models.EntrySell, "BTC", "0.05", "45500"},
		},
	},
	{
		profile: models.Profile{TelegramID: 1002, Username: "trader2", FirstName: "Second", LastName: "Trader"},
		trades: []seedTrade{
			{models.EntryBuy, "SOL", "20", "115"},
			{models.EntryBuy, "ADA", "2500", "0.45"},
			{models.EntryBuy, "DOT", "100", "7"},
			{models.EntrySell, "SOL", "5", "125"},
		},
	},
}

// Seed the store with demo accounts and trades
func main() {
	cfg, err := config.Load()
	if err != nil {
		logrus.Fatalf("Failed to load config: %v", err)
	}
	log := logger.New(cfg.Logging)
	ctx := context.Background()

	store, err := db.Open(ctx, cfg.Database)
	if err != nil {
		log.Fatalf("Failed to open %s store: %v", cfg.Database.Driver, err)
	}
	defer store.Close(ctx)

	l := ledger.New(store, cfg.Ledger.Prices,
		ledger.WithOpeningBalances(cfg.Ledger.OpeningBalances),
		ledger.WithLogger(log),
	)
	defer l.Close()

	seeded, err := seed(ctx, l, demoAccounts)
	if err != nil {
		log.Fatalf("Failed to seed: %v", err)
	}
	if seeded == 0 {
		fmt.Println("Demo accounts already exist. No need to seed.")
		os.Exit(0)
	}
	fmt.Printf("Successfully seeded %d demo accounts!\n", seeded)
}

// seed creates each account and replays the trades it does not have yet,
// so a run interrupted halfway resumes where it stopped. It returns the
// number of accounts that received trades.
func seed(ctx context.Context, l *ledger.Ledger, accounts []seedAccount) (int, error) {
	seeded := 0
	for _, a := range accounts {
		if _, _, err := l.OpenAccount(ctx, a.profile); err != nil {
			return seeded, err
		}
		existing, err := l.History(ctx, a.profile.TelegramID, len(a.trades))
		if err != nil {
			return seeded, err
		}
		if len(existing) >= len(a.trades) {
			continue
		}

		for _, tr := range a.trades[len(existing):] {
			req := ledger.TradeRequest{
				TelegramID: a.profile.TelegramID,
				Asset:      tr.asset,
				Amount:     decimal.RequireFromString(tr.amount),
				Price:      decimal.RequireFromString(tr.price),
			}
			switch tr.side {
			case models.EntryBuy:
				_, err = l.Buy(ctx, req)
			case models.EntrySell:
				_, err = l.Sell(ctx, req)
			default:
				err = errors.New("unsupported seed trade side " + string(tr.side))
			}
			if err != nil {
				return seeded, fmt.Errorf("failed to seed %s %s for %s: %w", tr.side, tr.asset, a.profile.Username, err)
			}
		}
		seeded++
	}
	return seeded, nil
}
