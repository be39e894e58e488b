package ledger

import "errors"

var (
	// ErrAccountNotFound is returned when the account does not exist in the ledger store.
	ErrAccountNotFound = errors.New("ledger: account not found")
	// ErrInvalidPeriod is returned for malformed or inverted periods.
	ErrInvalidPeriod = errors.New("ledger: invalid period")
	// ErrStoreUnavailable is returned when the ledger store cannot be reached.
	ErrStoreUnavailable = errors.New("ledger: store unavailable")
	// ErrInconsistentLedger is returned when per-service balances do not reconcile
	// with the consolidated balance, or when a stored fact cannot be decoded.
	ErrInconsistentLedger = errors.New("ledger: inconsistent ledger")
	// ErrUnknownService is returned when a service name is not in the catalog.
	ErrUnknownService = errors.New("ledger: unknown service")
	// ErrSubCentAmount is returned when an amount has more than two fractional digits.
	ErrSubCentAmount = errors.New("ledger: amount has sub-cent precision")
	// ErrEmptyAccountID is returned when an account id is empty.
	ErrEmptyAccountID = errors.New("ledger: empty account id")
)
