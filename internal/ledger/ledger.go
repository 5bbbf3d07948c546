package ledger

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/xtrntr/cryptopro/internal/models"
)

// HistoryLimit caps the number of entries returned by History
const HistoryLimit = 50

const (
	notifyQueueSize = 256
	notifyTimeout   = 10 * time.Second
)

// Store is the persistence contract the ledger depends on
type Store interface {
	// FindAccount returns models.ErrAccountNotFound when no account exists
	FindAccount(ctx context.Context, telegramID int64) (*models.Account, error)
	// CreateAccount is idempotent on the telegram id. The bool reports
	// whether a new row was inserted.
	CreateAccount(ctx context.Context, profile models.Profile, opening models.Balances) (*models.Account, bool, error)
	// UpdateAccount loads the account exclusively, calls apply, then saves
	// the mutated balances and appends the returned entry in one unit of
	// work. If apply fails nothing is written.
	UpdateAccount(ctx context.Context, telegramID int64, apply func(*models.Account) (*models.LedgerEntry, error)) (*models.Account, *models.LedgerEntry, error)
	// ListEntries returns entries newest first
	ListEntries(ctx context.Context, accountID int, limit int) ([]models.LedgerEntry, error)
}

// Notifier is told about every committed trade. Notifiers run on a
// background goroutine in commit order, never on the trading call.
type Notifier interface {
	TradeExecuted(ctx context.Context, account models.Account, entry models.LedgerEntry) error
}

// Recorder collects trade metrics
type Recorder interface {
	RecordTrade(side models.EntryType, asset models.Asset, total decimal.Decimal)
	RecordRejection(side models.EntryType, reason string)
}

// TradeRequest is a single buy or sell instruction
type TradeRequest struct {
	TelegramID int64
	Asset      string
	Amount     decimal.Decimal
	Price      decimal.Decimal
}

// Result is the outcome of an accepted trade
type Result struct {
	Account models.Account
	Entry   models.LedgerEntry
}

// Ledger applies trades to account balances
type Ledger struct {
	store     Store
	prices    models.PriceTable
	opening   models.Balances
	notifiers []Notifier
	recorder  Recorder
	log       *logrus.Entry

	queue     chan notification
	done      chan struct{}
	closeOnce sync.Once
}

type notification struct {
	account models.Account
	entry   models.LedgerEntry
}

// Option configures a Ledger
type Option func(*Ledger)

// WithOpeningBalances sets the balances given to new accounts
func WithOpeningBalances(b models.Balances) Option {
	return func(l *Ledger) { l.opening = b }
}

// WithNotifier registers a trade notifier
func WithNotifier(n Notifier) Option {
	return func(l *Ledger) { l.notifiers = append(l.notifiers, n) }
}

// WithRecorder sets the metrics recorder
func WithRecorder(r Recorder) Option {
	return func(l *Ledger) { l.recorder = r }
}

// WithLogger sets the logger
func WithLogger(log *logrus.Logger) Option {
	return func(l *Ledger) { l.log = log.WithField("component", "ledger") }
}

// DefaultOpeningBalances is USD 10,000 and no assets
func DefaultOpeningBalances() models.Balances {
	return models.Balances{USD: decimal.NewFromInt(10000)}
}

// New creates a ledger over store using the given price snapshot
func New(store Store, prices models.PriceTable, opts ...Option) *Ledger {
	l := &Ledger{
		store:   store,
		prices:  prices,
		opening: DefaultOpeningBalances(),
		log:     logrus.StandardLogger().WithField("component", "ledger"),
	}
	for _, opt := range opts {
		opt(l)
	}
	if len(l.notifiers) > 0 {
		l.queue = make(chan notification, notifyQueueSize)
		l.done = make(chan struct{})
		go l.dispatch()
	}
	return l
}

// Close delivers queued notifications and stops the dispatcher. Trades
// must not be submitted after Close.
func (l *Ledger) Close() {
	l.closeOnce.Do(func() {
		if l.queue == nil {
			return
		}
		close(l.queue)
		<-l.done
	})
}

// Prices returns the price table the ledger was built with
func (l *Ledger) Prices() models.PriceTable {
	return l.prices
}

// OpenAccount returns the account for profile.TelegramID, creating it with
// the opening balances on first contact.
func (l *Ledger) OpenAccount(ctx context.Context, profile models.Profile) (*models.Account, bool, error) {
	acct, created, err := l.store.CreateAccount(ctx, profile, l.opening)
	if err != nil {
		return nil, false, fmt.Errorf("failed to open account: %w", err)
	}
	if created {
		l.log.WithField("telegram_id", profile.TelegramID).Info("account created")
	}
	return acct, created, nil
}

// Account looks up an account by telegram id
func (l *Ledger) Account(ctx context.Context, telegramID int64) (*models.Account, error) {
	return l.store.FindAccount(ctx, telegramID)
}

// History returns the most recent entries of an account, newest first
func (l *Ledger) History(ctx context.Context, telegramID int64, limit int) ([]models.LedgerEntry, error) {
	if limit <= 0 || limit > HistoryLimit {
		limit = HistoryLimit
	}
	acct, err := l.store.FindAccount(ctx, telegramID)
	if err != nil {
		return nil, err
	}
	return l.store.ListEntries(ctx, acct.ID, limit)
}

// TotalValue is the net worth of acct at the ledger's prices
func (l *Ledger) TotalValue(acct models.Account) (decimal.Decimal, error) {
	return Value(acct.Balances, l.prices)
}

// Buy debits amount*price USD and credits amount of the asset
func (l *Ledger) Buy(ctx context.Context, req TradeRequest) (*Result, error) {
	return l.trade(ctx, models.EntryBuy, req, func(b *models.Balances, asset models.Asset, amount, total decimal.Decimal) error {
		if b.USD.LessThan(total) {
			return models.ErrInsufficientFunds
		}
		held, err := b.Get(asset)
		if err != nil {
			return err
		}
		b.USD = b.USD.Sub(total)
		return b.Set(asset, held.Add(amount))
	})
}

// Sell debits amount of the asset and credits amount*price USD
func (l *Ledger) Sell(ctx context.Context, req TradeRequest) (*Result, error) {
	return l.trade(ctx, models.EntrySell, req, func(b *models.Balances, asset models.Asset, amount, total decimal.Decimal) error {
		held, err := b.Get(asset)
		if err != nil {
			return err
		}
		if held.LessThan(amount) {
			return models.ErrInsufficientHoldings
		}
		if err := b.Set(asset, held.Sub(amount)); err != nil {
			return err
		}
		b.USD = b.USD.Add(total)
		return nil
	})
}

type mutation func(b *models.Balances, asset models.Asset, amount, total decimal.Decimal) error

func (l *Ledger) trade(ctx context.Context, side models.EntryType, req TradeRequest, mutate mutation) (*Result, error) {
	asset, err := validate(req)
	if err != nil {
		l.reject(side, err)
		return nil, err
	}
	total := req.Amount.Mul(req.Price)

	acct, entry, err := l.store.UpdateAccount(ctx, req.TelegramID, func(a *models.Account) (*models.LedgerEntry, error) {
		// Work on a copy so a failed check leaves a untouched
		next := a.Balances
		if err := mutate(&next, asset, req.Amount, total); err != nil {
			return nil, err
		}
		a.Balances = next
		return &models.LedgerEntry{
			AccountID: a.ID,
			Type:      side,
			Asset:     asset,
			Amount:    req.Amount,
			Price:     req.Price,
			Total:     total,
		}, nil
	})
	if err != nil {
		l.reject(side, err)
		return nil, err
	}

	l.log.WithFields(logrus.Fields{
		"telegram_id": req.TelegramID,
		"side":        side,
		"asset":       asset,
		"amount":      req.Amount.String(),
		"price":       req.Price.String(),
		"total":       total.String(),
	}).Info("trade executed")
	if l.recorder != nil {
		l.recorder.RecordTrade(side, asset, total)
	}
	l.enqueue(*acct, *entry)

	return &Result{Account: *acct, Entry: *entry}, nil
}

func validate(req TradeRequest) (models.Asset, error) {
	asset, err := models.ParseAsset(req.Asset)
	if err != nil {
		return "", err
	}
	if !req.Amount.IsPositive() {
		return "", models.ErrInvalidAmount
	}
	if !req.Price.IsPositive() {
		return "", models.ErrInvalidPrice
	}
	return asset, nil
}

func (l *Ledger) enqueue(acct models.Account, entry models.LedgerEntry) {
	if l.queue == nil {
		return
	}
	select {
	case l.queue <- notification{account: acct, entry: entry}:
	default:
		l.log.WithField("entry_id", entry.ID).Warn("notification queue full, dropping trade notification")
	}
}

// dispatch runs the notifiers for each queued trade. The request context is
// gone by then, so each delivery gets its own deadline.
func (l *Ledger) dispatch() {
	defer close(l.done)
	for n := range l.queue {
		for _, notifier := range l.notifiers {
			ctx, cancel := context.WithTimeout(context.Background(), notifyTimeout)
			if err := notifier.TradeExecuted(ctx, n.account, n.entry); err != nil {
				l.log.WithError(err).WithField("entry_id", n.entry.ID).Warn("trade notification failed")
			}
			cancel()
		}
	}
}

func (l *Ledger) reject(side models.EntryType, err error) {
	reason := RejectionReason(err)
	if reason == "store_unavailable" || reason == "internal" {
		l.log.WithError(err).WithField("side", side).Error("trade failed")
	}
	if l.recorder != nil {
		l.recorder.RecordRejection(side, reason)
	}
}

// RejectionReason maps a trade error to a short metric label
func RejectionReason(err error) string {
	switch {
	case errors.Is(err, models.ErrAccountNotFound):
		return "account_not_found"
	case errors.Is(err, models.ErrInvalidAsset):
		return "invalid_asset"
	case errors.Is(err, models.ErrInvalidAmount):
		return "invalid_amount"
	case errors.Is(err, models.ErrInvalidPrice):
		return "invalid_price"
	case errors.Is(err, models.ErrInsufficientFunds):
		return "insufficient_funds"
	case errors.Is(err, models.ErrInsufficientHoldings):
		return "insufficient_holdings"
	case errors.Is(err, models.ErrStoreUnavailable):
		return "store_unavailable"
	}
	return "internal"
}
