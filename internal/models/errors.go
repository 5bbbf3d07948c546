package models

import "errors"

var (
	ErrAccountNotFound      = errors.New("user not found")
	ErrInvalidAsset         = errors.New("invalid asset")
	ErrInvalidAmount        = errors.New("amount must be a positive number")
	ErrInvalidPrice         = errors.New("price must be a positive number")
	ErrInsufficientFunds    = errors.New("insufficient funds")
	ErrInsufficientHoldings = errors.New("insufficient crypto balance")

	// ErrUnknownAsset is returned by valuation when the price table has no
	// entry for an asset.
	ErrUnknownAsset = errors.New("unknown asset in price table")

	// ErrNoLedgerEntry is returned by a store when an account update
	// produced no entry to append.
	ErrNoLedgerEntry = errors.New("account update produced no ledger entry")

	// ErrStoreUnavailable wraps failures of the backing database
	ErrStoreUnavailable = errors.New("store unavailable")
)
