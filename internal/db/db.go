package db

import (
	"context"
	"errors"
	"fmt"

	"github.com/xtrntr/cryptopro/internal/ledger"
	"github.com/xtrntr/cryptopro/internal/models"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const accountColumns = "id, telegram_id, username, first_name, last_name, " +
	"balance_usd, balance_btc, balance_eth, balance_sol, balance_ada, balance_dot, balance_usdt, created_at"

const entryColumns = "id, user_id, type, crypto_symbol, amount, price, total, timestamp"

// DB wraps a PostgreSQL connection pool
type DB struct {
	Pool *pgxpool.Pool
}

// NewDB initializes a new database connection pool
func NewDB(ctx context.Context, connString string) (*DB, error) {
	pool, err := pgxpool.New(ctx, connString)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	return &DB{Pool: pool}, nil
}

// Ping checks that the database is reachable
func (db *DB) Ping(ctx context.Context) error {
	if err := db.Pool.Ping(ctx); err != nil {
		return unavailable("ping", err)
	}
	return nil
}

// Close closes the database connection pool
func (db *DB) Close(ctx context.Context) error {
	db.Pool.Close()
	return nil
}

func unavailable(op string, err error) error {
	return fmt.Errorf("failed to %s: %w: %w", op, models.ErrStoreUnavailable, err)
}

// rowScanner is satisfied by pgx.Row and pgx.Rows
type rowScanner interface {
	Scan(dest ...any) error
}

func scanAccount(row rowScanner) (*models.Account, error) {
	a := &models.Account{}
	var username, firstName, lastName *string
	err := row.Scan(&a.ID, &a.TelegramID, &username, &firstName, &lastName,
		&a.Balances.USD, &a.Balances.BTC, &a.Balances.ETH, &a.Balances.SOL,
		&a.Balances.ADA, &a.Balances.DOT, &a.Balances.USDT, &a.CreatedAt)
	if err != nil {
		return nil, err
	}
	a.Username = deref(username)
	a.FirstName = deref(firstName)
	a.LastName = deref(lastName)
	return a, nil
}

func scanEntry(row rowScanner) (*models.LedgerEntry, error) {
	e := &models.LedgerEntry{}
	var typ, asset string
	err := row.Scan(&e.ID, &e.AccountID, &typ, &asset, &e.Amount, &e.Price, &e.Total, &e.CreatedAt)
	if err != nil {
		return nil, err
	}
	e.Type = models.EntryType(typ)
	e.Asset = models.Asset(asset)
	return e, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// FindAccount retrieves an account by telegram id
func (db *DB) FindAccount(ctx context.Context, telegramID int64) (*models.Account, error) {
	acct, err := scanAccount(db.Pool.QueryRow(ctx,
		"SELECT "+accountColumns+" FROM users WHERE telegram_id = $1", telegramID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, models.ErrAccountNotFound
		}
		return nil, unavailable("get account", err)
	}
	return acct, nil
}

// CreateAccount inserts an account with the opening balances. A second call
// for the same telegram id returns the existing row.
func (db *DB) CreateAccount(ctx context.Context, profile models.Profile, opening models.Balances) (*models.Account, bool, error) {
	acct, err := scanAccount(db.Pool.QueryRow(ctx,
		"INSERT INTO users (telegram_id, username, first_name, last_name, "+
			"balance_usd, balance_btc, balance_eth, balance_sol, balance_ada, balance_dot, balance_usdt) "+
			"VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11) "+
			"ON CONFLICT (telegram_id) DO NOTHING RETURNING "+accountColumns,
		profile.TelegramID, nullable(profile.Username), nullable(profile.FirstName), nullable(profile.LastName),
		opening.USD, opening.BTC, opening.ETH, opening.SOL, opening.ADA, opening.DOT, opening.USDT))
	if err == nil {
		return acct, true, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, false, unavailable("create account", err)
	}

	// Conflict: the account already exists
	acct, err = db.FindAccount(ctx, profile.TelegramID)
	if err != nil {
		return nil, false, err
	}
	return acct, false, nil
}

// UpdateAccount locks the account row, applies the change, saves the balances
// and appends the entry in a single transaction
func (db *DB) UpdateAccount(ctx context.Context, telegramID int64, apply func(*models.Account) (*models.LedgerEntry, error)) (*models.Account, *models.LedgerEntry, error) {
	tx, err := db.Pool.Begin(ctx)
	if err != nil {
		return nil, nil, unavailable("begin transaction", err)
	}
	defer tx.Rollback(ctx)

	// Lock the row for update to serialize trades on one account
	acct, err := scanAccount(tx.QueryRow(ctx,
		"SELECT "+accountColumns+" FROM users WHERE telegram_id = $1 FOR UPDATE", telegramID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil, models.ErrAccountNotFound
		}
		return nil, nil, unavailable("lock account", err)
	}

	entry, err := apply(acct)
	if err != nil {
		return nil, nil, err
	}
	if entry == nil {
		return nil, nil, models.ErrNoLedgerEntry
	}

	if err := saveBalances(ctx, tx, acct); err != nil {
		return nil, nil, err
	}
	entry.AccountID = acct.ID
	saved, err := appendEntry(ctx, tx, entry)
	if err != nil {
		return nil, nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, nil, unavailable("commit transaction", err)
	}
	return acct, saved, nil
}

func saveBalances(ctx context.Context, tx pgx.Tx, acct *models.Account) error {
	b := acct.Balances
	tag, err := tx.Exec(ctx,
		"UPDATE users SET balance_usd = $1, balance_btc = $2, balance_eth = $3, balance_sol = $4, "+
			"balance_ada = $5, balance_dot = $6, balance_usdt = $7 WHERE id = $8",
		b.USD, b.BTC, b.ETH, b.SOL, b.ADA, b.DOT, b.USDT, acct.ID)
	if err != nil {
		return unavailable("save balances", err)
	}
	if tag.RowsAffected() == 0 {
		return models.ErrAccountNotFound
	}
	return nil
}

func appendEntry(ctx context.Context, tx pgx.Tx, entry *models.LedgerEntry) (*models.LedgerEntry, error) {
	saved, err := scanEntry(tx.QueryRow(ctx,
		"INSERT INTO transactions (user_id, type, crypto_symbol, amount, price, total) "+
			"VALUES ($1, $2, $3, $4, $5, $6) RETURNING "+entryColumns,
		entry.AccountID, string(entry.Type), string(entry.Asset), entry.Amount, entry.Price, entry.Total))
	if err != nil {
		return nil, unavailable("append ledger entry", err)
	}
	return saved, nil
}

// ListEntries retrieves an account's ledger entries, newest first
func (db *DB) ListEntries(ctx context.Context, accountID int, limit int) ([]models.LedgerEntry, error) {
	rows, err := db.Pool.Query(ctx,
		"SELECT "+entryColumns+" FROM transactions WHERE user_id = $1 "+
			"ORDER BY timestamp DESC, id DESC LIMIT $2",
		accountID, limit)
	if err != nil {
		return nil, unavailable("list ledger entries", err)
	}
	defer rows.Close()

	entries := []models.LedgerEntry{}
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, unavailable("scan ledger entry", err)
		}
		entries = append(entries, *entry)
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable("list ledger entries", err)
	}
	return entries, nil
}

var _ ledger.Store = (*DB)(nil)
