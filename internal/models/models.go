package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Account represents a trader identified by their Telegram user id
type Account struct {
	ID         int
	TelegramID int64
	Username   string
	FirstName  string
	LastName   string
	Balances   Balances
	CreatedAt  time.Time
}

// Profile holds the identity fields supplied on first contact
type Profile struct {
	TelegramID int64
	Username   string
	FirstName  string
	LastName   string
}

// EntryType tags a ledger entry
type EntryType string

const (
	EntryBuy      EntryType = "buy"
	EntrySell     EntryType = "sell"
	EntryDeposit  EntryType = "deposit"  // modeled, never produced
	EntryWithdraw EntryType = "withdraw" // modeled, never produced
)

// LedgerEntry is an immutable record of one executed trade
type LedgerEntry struct {
	ID        int
	AccountID int
	Type      EntryType
	Asset     Asset
	Amount    decimal.Decimal
	Price     decimal.Decimal
	Total     decimal.Decimal // Amount * Price
	CreatedAt time.Time
}
