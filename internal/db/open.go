package db

import (
	"context"
	"fmt"

	"github.com/xtrntr/cryptopro/internal/config"
	"github.com/xtrntr/cryptopro/internal/db/memory"
	"github.com/xtrntr/cryptopro/internal/ledger"
)

// Backend is an account store that can be health-checked and closed
type Backend interface {
	ledger.Store
	Ping(ctx context.Context) error
	Close(ctx context.Context) error
}

// Open returns the store selected by cfg.Driver. A postgres store must be
// reachable before Open returns.
func Open(ctx context.Context, cfg config.DatabaseConfig) (Backend, error) {
	switch cfg.Driver {
	case "memory":
		return memory.NewStore(), nil
	case "postgres":
		database, err := NewDB(ctx, cfg.URL)
		if err != nil {
			return nil, err
		}
		if err := database.Ping(ctx); err != nil {
			database.Close(ctx)
			return nil, err
		}
		return database, nil
	}
	return nil, fmt.Errorf("unknown database driver %q", cfg.Driver)
}

var _ Backend = (*DB)(nil)
