/*
engine.go - The transaction engine, the single path for balance changes

PURPOSE:
  Every deposit and every purchase debit flows through Engine.ApplyDelta.
  The engine validates preconditions, computes the new balance, and - if
  and only if the result stays non-negative - commits one ledger entry
  plus the balance write as a single atomic unit.

INVARIANTS:
  1. Balance is never negative after any committed operation
  2. Exactly one ledger entry per balance mutation
  3. Balance equals initial balance + sum of committed entry deltas
  4. Operations on the same account are serialized; different accounts
     never block one another

COMMIT SHAPES:
  Transactional store (TxStore): check-then-commit. The feasibility check
  and both writes run inside one store transaction under the account lock,
  so an invalid state is never durably written, even transiently.

  Plain store: append-then-compensate. The entry is appended first; if the
  resulting balance would be negative, the just-appended entry is deleted
  and the balance is left untouched. Only the last, as-yet-uncommitted
  entry can ever be inconsistent, and it is the one being removed.

LOCKING:
  One mutex per account, created lazily. The lock covers only the
  read-modify-write commit, not catalog lookups or event publishing.
  A caller may abandon a request before commit with no effect; once the
  commit begins it runs to completion.

EVENTS:
  After a successful commit the engine publishes EntryCommitted.
  Publishing is best-effort and logged on failure, never propagated.

SEE ALSO:
  - store.go: The persistence contract
  - purchase/purchase.go: The coordinator sitting above this engine
*/
package ledger

import (
	"context"
	"log"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/meridian/bookledger/events"
)

// =============================================================================
// ENGINE
// =============================================================================

// Engine orchestrates deposits and deductions against a Store.
// Construct with NewEngine; the zero value is not usable.
type Engine struct {
	store     Store
	publisher events.Publisher

	locks  map[AccountID]*sync.Mutex
	locksM sync.Mutex
}

// Option configures an Engine.
type Option func(*Engine)

// WithPublisher sets the commit-event publisher. Defaults to events.Nop.
func WithPublisher(p events.Publisher) Option {
	return func(e *Engine) { e.publisher = p }
}

// NewEngine creates an engine over the given store. If the store also
// implements TxStore, commits are check-then-commit inside one store
// transaction; otherwise the engine falls back to append-then-compensate.
func NewEngine(store Store, opts ...Option) *Engine {
	e := &Engine{
		store:     store,
		publisher: events.Nop{},
		locks:     make(map[AccountID]*sync.Mutex),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *Engine) accountLock(id AccountID) *sync.Mutex {
	e.locksM.Lock()
	defer e.locksM.Unlock()

	mu, ok := e.locks[id]
	if !ok {
		mu = &sync.Mutex{}
		e.locks[id] = mu
	}
	return mu
}

// =============================================================================
// PUBLIC OPERATIONS
// =============================================================================

// Deposit credits amount to the account. Fails with ErrInvalidAmount when
// amount is negative; a zero deposit is accepted and still produces an
// audit entry.
func (e *Engine) Deposit(ctx context.Context, accountID AccountID, amount decimal.Decimal) (LedgerEntry, error) {
	if amount.IsNegative() {
		return LedgerEntry{}, ErrInvalidAmount
	}
	return e.ApplyDelta(ctx, accountID, amount, EntryDeposit)
}

// ApplyDelta applies a signed balance change and records exactly one
// ledger entry for it. This is the single path through which any balance
// changes. Returns the committed entry.
func (e *Engine) ApplyDelta(ctx context.Context, accountID AccountID, delta decimal.Decimal, kind EntryKind) (LedgerEntry, error) {
	mu := e.accountLock(accountID)
	mu.Lock()

	entry := NewEntry(accountID, delta, kind)

	var err error
	if tx, ok := e.store.(TxStore); ok {
		err = e.commitAtomic(ctx, tx, entry)
	} else {
		err = e.commitCompensating(ctx, entry)
	}
	mu.Unlock()

	if err != nil {
		return LedgerEntry{}, err
	}

	e.publish(entry)
	return entry, nil
}

// Balance returns the current balance for the account.
func (e *Engine) Balance(ctx context.Context, accountID AccountID) (decimal.Decimal, error) {
	return e.store.GetBalance(ctx, accountID)
}

// Entries returns the account's audit trail in commit order.
func (e *Engine) Entries(ctx context.Context, accountID AccountID) ([]LedgerEntry, error) {
	return e.store.Entries(ctx, accountID)
}

// =============================================================================
// COMMIT PATHS
// =============================================================================

// commitAtomic runs the feasibility check and both writes in one store
// transaction: an invalid state is never observably written.
func (e *Engine) commitAtomic(ctx context.Context, store TxStore, entry LedgerEntry) error {
	return store.WithTx(ctx, func(s Store) error {
		balance, err := s.GetBalance(ctx, entry.AccountID)
		if err != nil {
			return err
		}
		if balance.IsNegative() {
			// A stored negative balance means a previous commit was tampered
			// with or raced outside the engine.
			return ErrIntegrityViolation
		}

		newBalance := balance.Add(entry.Delta)
		if newBalance.IsNegative() {
			return &InsufficientFundsError{
				AccountID: entry.AccountID,
				Available: balance,
				Requested: entry.Delta.Neg(),
			}
		}

		if err := s.AppendEntry(ctx, entry); err != nil {
			return err
		}
		return s.SetBalance(ctx, entry.AccountID, newBalance)
	})
}

// commitCompensating is the non-transactional shape: append first, and if
// the resulting balance would be negative, delete the just-appended entry
// and leave the balance untouched.
func (e *Engine) commitCompensating(ctx context.Context, entry LedgerEntry) error {
	balance, err := e.store.GetBalance(ctx, entry.AccountID)
	if err != nil {
		return err
	}
	if balance.IsNegative() {
		return ErrIntegrityViolation
	}

	if err := e.store.AppendEntry(ctx, entry); err != nil {
		return err
	}

	newBalance := balance.Add(entry.Delta)
	if newBalance.IsNegative() {
		// Compensate: the uncommitted entry is the only record that can
		// disagree with the balance, so removing it restores consistency.
		if rmErr := e.store.RemoveEntry(ctx, entry.ID); rmErr != nil {
			log.Printf("ledger: compensation failed for entry %s: %v", entry.ID, rmErr)
		}
		return &InsufficientFundsError{
			AccountID: entry.AccountID,
			Available: balance,
			Requested: entry.Delta.Neg(),
		}
	}

	return e.store.SetBalance(ctx, entry.AccountID, newBalance)
}

func (e *Engine) publish(entry LedgerEntry) {
	err := e.publisher.Publish(events.TopicEntryCommitted, events.EntryCommitted{
		EntryID:    string(entry.ID),
		AccountID:  string(entry.AccountID),
		Delta:      entry.Delta,
		Kind:       string(entry.Kind),
		OccurredAt: entry.CreatedAt,
	})
	if err != nil {
		log.Printf("ledger: publish entry %s: %v", entry.ID, err)
	}
}
