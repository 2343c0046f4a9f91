/*
store.go - Persistence interfaces for accounts and ledger entries

PURPOSE:
  Defines the boundary between the engine and the database. The engine
  treats persistence as an abstract transactional store; implementations
  live in ledger/store (memory) and store/sqlite (production).

KEY INTERFACES:
  AccountStore: Balance reads and writes (writes only inside a commit)
  EntryLog:     Append-only audit log (+ compensating remove)
  Store:        The two combined - what the engine requires
  TxStore:      Store with atomic multi-write support

BALANCE WRITE CONTRACT:
  SetBalance exists for the engine's commit step ONLY. No business
  validation happens in the store; validation is the engine's job.
  Nothing else in the repository calls SetBalance.

ENTRY LOG CONTRACT:
  Entries are append-only. RemoveEntry exists for exactly one caller:
  the engine's compensation path, which deletes a just-appended entry
  when the commit is detected to violate the non-negative invariant.
  A committed entry is never mutated or removed.

SEE ALSO:
  - engine.go: The only caller of SetBalance/RemoveEntry
  - ledger/store/memory.go: In-memory implementation
  - store/sqlite/sqlite.go: SQLite implementation
*/
package ledger

import (
	"context"

	"github.com/shopspring/decimal"
)

// =============================================================================
// ACCOUNT STORE
// =============================================================================

// AccountStore persists accounts and their balances.
type AccountStore interface {
	// CreateAccount registers an account. Fails with ErrOwnerHasAccount if
	// the owner already has one.
	CreateAccount(ctx context.Context, account Account) error

	// GetAccount returns the account, or ErrAccountNotFound.
	GetAccount(ctx context.Context, id AccountID) (Account, error)

	// ListAccounts returns all accounts, ordered by creation time.
	ListAccounts(ctx context.Context) ([]Account, error)

	// GetBalance returns the current balance, or ErrAccountNotFound.
	GetBalance(ctx context.Context, id AccountID) (decimal.Decimal, error)

	// SetBalance overwrites the balance. Callable only by the engine
	// inside a commit. Fails with ErrAccountNotFound.
	SetBalance(ctx context.Context, id AccountID, balance decimal.Decimal) error

	// DeleteAccount removes an account and, by cascade, its entries and
	// purchases.
	DeleteAccount(ctx context.Context, id AccountID) error
}

// =============================================================================
// ENTRY LOG - Append-only audit trail
// =============================================================================

// EntryLog persists ledger entries.
type EntryLog interface {
	// AppendEntry persists one immutable entry.
	AppendEntry(ctx context.Context, entry LedgerEntry) error

	// RemoveEntry deletes an entry. Compensating rollback only.
	RemoveEntry(ctx context.Context, id EntryID) error

	// Entries returns all entries for an account in commit order.
	Entries(ctx context.Context, accountID AccountID) ([]LedgerEntry, error)
}

// =============================================================================
// COMBINED STORE
// =============================================================================

// Store is what the engine requires from persistence.
type Store interface {
	AccountStore
	EntryLog
}

// TxStore extends Store with atomic scopes. When the engine's store
// implements TxStore, the entry append and the balance write execute as a
// single transaction and an invalid state is never durably written.
type TxStore interface {
	Store

	// WithTx executes fn within one transaction. If fn returns an error
	// the transaction is rolled back, otherwise committed.
	WithTx(ctx context.Context, fn func(Store) error) error
}
