/*
errors.go - Centralized error types for the ledger engine

PURPOSE:
  All error types in one place for consistency and discoverability.
  Callers classify with errors.Is/errors.As; the HTTP layer maps these
  to status codes.

ERROR CATEGORIES:
  1. Validation errors - rejected before any durable write
  2. Funds errors - the operation would drive a balance negative
  3. Not-found errors - unknown account, entry, or catalog item
  4. Integrity errors - a stored state that should be impossible

SEE ALSO:
  - engine.go: Produces funds/integrity errors
  - api/handlers.go: Maps these to HTTP status codes
*/
package ledger

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrInvalidAmount is returned when a deposit carries a negative amount.
	// Detected before any durable write.
	ErrInvalidAmount = errors.New("invalid amount: deposits must not be negative")

	// ErrInsufficientFunds is returned when a deduction would drive the
	// balance below zero. The same classification is used whether the
	// pre-flight check or the engine's commit check caught it.
	ErrInsufficientFunds = errors.New("insufficient funds")

	// ErrItemNotFound is returned when a catalog id does not resolve.
	ErrItemNotFound = errors.New("catalog item not found")

	// ErrIntegrityViolation is returned when the engine reads a stored
	// balance that is already negative. This is a programming or race bug,
	// never user error.
	ErrIntegrityViolation = errors.New("ledger integrity violation")

	// ErrAccountNotFound is returned for an unknown account id.
	ErrAccountNotFound = errors.New("account not found")

	// ErrEntryNotFound is returned for an unknown ledger entry id.
	ErrEntryNotFound = errors.New("ledger entry not found")

	// ErrOwnerHasAccount is returned when registering a second account for
	// the same owner. One account per owner.
	ErrOwnerHasAccount = errors.New("owner already has an account")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// InsufficientFundsError details a funds shortage.
type InsufficientFundsError struct {
	AccountID AccountID
	Available decimal.Decimal
	Requested decimal.Decimal
}

func (e *InsufficientFundsError) Error() string {
	return fmt.Sprintf("insufficient funds on account %s: available %s, requested %s (shortfall %s)",
		e.AccountID, e.Available, e.Requested, e.Shortfall())
}

func (e *InsufficientFundsError) Unwrap() error { return ErrInsufficientFunds }

// Shortfall returns how much is missing.
func (e *InsufficientFundsError) Shortfall() decimal.Decimal {
	return e.Requested.Sub(e.Available)
}

// ItemNotFoundError names the offending catalog id so the caller knows
// which basket position failed.
type ItemNotFoundError struct {
	ItemID string
}

func (e *ItemNotFoundError) Error() string {
	return fmt.Sprintf("catalog item %q not found", e.ItemID)
}

func (e *ItemNotFoundError) Unwrap() error { return ErrItemNotFound }

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsClientError returns true if the error is due to invalid caller input.
func IsClientError(err error) bool {
	return errors.Is(err, ErrInvalidAmount) ||
		errors.Is(err, ErrInsufficientFunds) ||
		errors.Is(err, ErrItemNotFound) ||
		errors.Is(err, ErrOwnerHasAccount)
}

// IsNotFound returns true if the error indicates a missing record.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrAccountNotFound) ||
		errors.Is(err, ErrEntryNotFound) ||
		errors.Is(err, ErrItemNotFound)
}
