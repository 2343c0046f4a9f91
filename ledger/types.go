/*
Package ledger provides the core account-ledger engine.

PURPOSE:
  This package contains the types and algorithms for tracking a monetary
  balance per account and recording every balance change as an immutable
  audit entry. All mutation flows through the Engine - there is no other
  write path to a balance.

KEY CONCEPTS IN THIS FILE (types.go):
  - Account: Current balance for one owner (one account per owner)
  - LedgerEntry: An immutable record of one balance change
  - EntryKind: Whether the change was a deposit or a deduction
  - AccountID/EntryID/OwnerID: Type-safe identifiers

DESIGN PRINCIPLES:
  1. Immutability: Entries are never modified after commit
  2. Precision: Uses decimal.Decimal to avoid floating-point errors
  3. Single write path: Balances change only through Engine.ApplyDelta
  4. Auditability: Balance always equals the sum of committed entry deltas

SEE ALSO:
  - engine.go: The transaction engine (the only balance mutator)
  - store.go: Persistence interfaces
  - errors.go: Error taxonomy
*/
package ledger

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// =============================================================================
// IDENTIFIERS
// =============================================================================

type AccountID string
type EntryID string
type OwnerID string

// NewAccountID returns a fresh server-assigned account identity.
func NewAccountID() AccountID { return AccountID(uuid.NewString()) }

// NewEntryID returns a fresh server-assigned entry identity.
func NewEntryID() EntryID { return EntryID(uuid.NewString()) }

// =============================================================================
// ACCOUNT - Current balance for one owner
// =============================================================================

// Account holds the current balance of one owner. The balance is never
// negative: the Engine rejects any delta that would make it so.
//
// One account per owner, enforced by the store (unique owner constraint).
// Deleting an account cascades to its ledger entries and purchases.
type Account struct {
	ID        AccountID
	OwnerID   OwnerID
	Balance   decimal.Decimal
	CreatedAt time.Time
}

// =============================================================================
// LEDGER ENTRY - Atomic change to an account balance
// =============================================================================

// EntryKind classifies a balance change.
type EntryKind string

const (
	EntryDeposit   EntryKind = "deposit"   // Positive delta (funds added)
	EntryDeduction EntryKind = "deduction" // Negative delta (purchase)
)

// LedgerEntry is one immutable audit record. Positive Delta is a credit,
// negative Delta is a debit. CreatedAt is assigned at commit and never
// changes.
//
// An entry is removed in exactly one situation: compensation of an append
// that is detected to violate the non-negative balance invariant before the
// balance write lands (see Engine). A committed entry is never touched.
type LedgerEntry struct {
	ID        EntryID
	AccountID AccountID
	Delta     decimal.Decimal
	Kind      EntryKind
	CreatedAt time.Time
}

// NewEntry builds an entry with a fresh identity and a server-assigned
// timestamp. Persistence is the store's job.
func NewEntry(accountID AccountID, delta decimal.Decimal, kind EntryKind) LedgerEntry {
	return LedgerEntry{
		ID:        NewEntryID(),
		AccountID: accountID,
		Delta:     delta,
		Kind:      kind,
		CreatedAt: time.Now().UTC(),
	}
}

// =============================================================================
// MONEY HELPERS
// =============================================================================

// MustParseDecimal parses s, returning zero on malformed input.
// Intended for trusted fixtures and seed data, not request parsing.
func MustParseDecimal(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}

// SumDeltas folds entry deltas in slice order. The non-negative invariant
// states that an account balance equals its initial balance plus
// SumDeltas of all committed entries in commit order.
func SumDeltas(entries []LedgerEntry) decimal.Decimal {
	total := decimal.Zero
	for _, e := range entries {
		total = total.Add(e.Delta)
	}
	return total
}
