package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/xtrntr/cryptopro/internal/ledger"
	"github.com/xtrntr/cryptopro/internal/models"
)

// Store keeps accounts and ledger entries in process memory
type Store struct {
	mu       sync.RWMutex // protects the maps and id counters
	accounts map[int64]*models.Account
	entries  map[int][]models.LedgerEntry
	nextAcct int
	nextTx   int

	lockMu sync.Mutex
	locks  map[int64]*sync.Mutex // one per telegram id

	now func() time.Time
}

// NewStore creates an empty store
func NewStore() *Store {
	return &Store{
		accounts: make(map[int64]*models.Account),
		entries:  make(map[int][]models.LedgerEntry),
		locks:    make(map[int64]*sync.Mutex),
		now:      time.Now,
	}
}

func (s *Store) accountLock(telegramID int64) *sync.Mutex {
	s.lockMu.Lock()
	defer s.lockMu.Unlock()

	if _, ok := s.locks[telegramID]; !ok {
		s.locks[telegramID] = &sync.Mutex{}
	}
	return s.locks[telegramID]
}

// FindAccount returns a copy of the stored account
func (s *Store) FindAccount(ctx context.Context, telegramID int64) (*models.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	acct, ok := s.accounts[telegramID]
	if !ok {
		return nil, models.ErrAccountNotFound
	}
	cp := *acct
	return &cp, nil
}

// CreateAccount inserts an account unless one already exists for the id
func (s *Store) CreateAccount(ctx context.Context, profile models.Profile, opening models.Balances) (*models.Account, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if acct, ok := s.accounts[profile.TelegramID]; ok {
		cp := *acct
		return &cp, false, nil
	}

	s.nextAcct++
	acct := &models.Account{
		ID:         s.nextAcct,
		TelegramID: profile.TelegramID,
		Username:   profile.Username,
		FirstName:  profile.FirstName,
		LastName:   profile.LastName,
		Balances:   opening,
		CreatedAt:  s.now().UTC(),
	}
	s.accounts[profile.TelegramID] = acct
	cp := *acct
	return &cp, true, nil
}

// UpdateAccount serializes updates per account and commits the balances and
// the entry together
func (s *Store) UpdateAccount(ctx context.Context, telegramID int64, apply func(*models.Account) (*models.LedgerEntry, error)) (*models.Account, *models.LedgerEntry, error) {
	lock := s.accountLock(telegramID)
	lock.Lock()
	defer lock.Unlock()

	working, err := s.FindAccount(ctx, telegramID)
	if err != nil {
		return nil, nil, err
	}

	entry, err := apply(working)
	if err != nil {
		return nil, nil, err
	}
	if entry == nil {
		return nil, nil, models.ErrNoLedgerEntry
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextTx++
	entry.ID = s.nextTx
	entry.AccountID = working.ID
	entry.CreatedAt = s.now().UTC()

	stored := s.accounts[telegramID]
	stored.Balances = working.Balances
	s.entries[working.ID] = append(s.entries[working.ID], *entry)

	acct := *stored
	e := *entry
	return &acct, &e, nil
}

// ListEntries returns up to limit entries, newest first
func (s *Store) ListEntries(ctx context.Context, accountID int, limit int) ([]models.LedgerEntry, error) {
	s.mu.RLock()
	entries := make([]models.LedgerEntry, len(s.entries[accountID]))
	copy(entries, s.entries[accountID])
	s.mu.RUnlock()

	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].CreatedAt.Equal(entries[j].CreatedAt) {
			return entries[i].ID > entries[j].ID
		}
		return entries[i].CreatedAt.After(entries[j].CreatedAt)
	})
	if limit > 0 && len(entries) > limit {
		entries = entries[:limit]
	}
	return entries, nil
}

// Ping always succeeds
func (s *Store) Ping(ctx context.Context) error { return nil }

// Close is a no-op
func (s *Store) Close(ctx context.Context) error { return nil }

var _ ledger.Store = (*Store)(nil)
