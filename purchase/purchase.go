/*
Package purchase provides the purchase coordinator.

PURPOSE:
  The coordinator sits above the transaction engine. It resolves an
  ordered list of catalog item ids into a priced basket, runs an advisory
  feasibility check, and delegates the debit to the engine as one logical
  transaction. One successful purchase produces exactly one ledger entry
  whose delta is the negated basket total.

BASKET SEMANTICS:
  Duplicates are allowed and each occurrence contributes its price again.
  Two copies of the same book cost twice the price.

FAILURE POLICY:
  - Any unresolvable id aborts the whole purchase (ItemNotFoundError
    naming the id); no partial basket is ever recorded.
  - The pre-flight funds check is advisory: it fails fast with no durable
    changes, but the engine re-derives inside its atomic commit and is the
    final authority. A race that slips past the pre-flight check surfaces
    as the same ErrInsufficientFunds.
  - If the engine rejects the debit, no Purchase row is retained.

SEE ALSO:
  - ledger/engine.go: The debit path
  - catalog/catalog.go: Price resolution
*/
package purchase

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/meridian/bookledger/catalog"
	"github.com/meridian/bookledger/ledger"
)

// =============================================================================
// PURCHASE - One committed basket
// =============================================================================

// Purchase records a committed basket. LedgerEntryID points at the single
// deduction entry the purchase produced; it is nil only while the purchase
// is being assembled, never once persisted.
type Purchase struct {
	ID            string
	AccountID     ledger.AccountID
	ItemIDs       []string // ordered, duplicates preserved
	TotalCost     decimal.Decimal
	LedgerEntryID *ledger.EntryID
	CreatedAt     time.Time
}

// Receipt is what the caller gets back from a successful purchase.
type Receipt struct {
	PurchaseID string
	ItemIDs    []string
	TotalCost  decimal.Decimal
	Entry      ledger.LedgerEntry
}

// Store persists purchases.
type Store interface {
	CreatePurchase(ctx context.Context, p Purchase) error
	ListPurchases(ctx context.Context, accountID ledger.AccountID) ([]Purchase, error)
}

// =============================================================================
// COORDINATOR
// =============================================================================

// Coordinator resolves baskets and drives the engine. All collaborators
// are injected; the coordinator holds no ambient state.
type Coordinator struct {
	catalog   catalog.Lookup
	engine    *ledger.Engine
	purchases Store
}

func NewCoordinator(lookup catalog.Lookup, engine *ledger.Engine, purchases Store) *Coordinator {
	return &Coordinator{
		catalog:   lookup,
		engine:    engine,
		purchases: purchases,
	}
}

// Purchase atomically buys the given items against the account.
// Returns the resolved basket and total cost.
func (c *Coordinator) Purchase(ctx context.Context, accountID ledger.AccountID, itemIDs []string) (Receipt, error) {
	// 1. Resolve every id. Any miss aborts the whole purchase.
	items := make([]catalog.Item, 0, len(itemIDs))
	for _, id := range itemIDs {
		item, err := c.catalog.Resolve(ctx, id)
		if err != nil {
			return Receipt{}, err
		}
		items = append(items, item)
	}

	// 2. Total cost; duplicates sum again.
	totalCost := decimal.Zero
	for _, item := range items {
		totalCost = totalCost.Add(item.Price)
	}

	// 3. Advisory pre-flight check. The engine re-derives under its lock
	//    and is the final authority.
	balance, err := c.engine.Balance(ctx, accountID)
	if err != nil {
		return Receipt{}, err
	}
	if balance.Sub(totalCost).IsNegative() {
		return Receipt{}, &ledger.InsufficientFundsError{
			AccountID: accountID,
			Available: balance,
			Requested: totalCost,
		}
	}

	// 4. Debit as one atomic engine commit.
	entry, err := c.engine.ApplyDelta(ctx, accountID, totalCost.Neg(), ledger.EntryDeduction)
	if err != nil {
		return Receipt{}, err
	}

	// 5. Persist the purchase with its basket and entry reference.
	entryID := entry.ID
	p := Purchase{
		ID:            uuid.NewString(),
		AccountID:     accountID,
		ItemIDs:       append([]string{}, itemIDs...),
		TotalCost:     totalCost,
		LedgerEntryID: &entryID,
		CreatedAt:     time.Now().UTC(),
	}
	if err := c.purchases.CreatePurchase(ctx, p); err != nil {
		// The debit entry stands: the ledger is the source of truth and the
		// entry is already committed. No Purchase row exists.
		return Receipt{}, err
	}

	return Receipt{
		PurchaseID: p.ID,
		ItemIDs:    p.ItemIDs,
		TotalCost:  totalCost,
		Entry:      entry,
	}, nil
}

// =============================================================================
// MEMORY STORE
// =============================================================================

// Memory is an in-memory purchase store for tests and development.
type Memory struct {
	mu        sync.RWMutex
	purchases []Purchase
}

func NewMemory() *Memory {
	return &Memory{}
}

func (m *Memory) CreatePurchase(_ context.Context, p Purchase) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.purchases = append(m.purchases, p)
	return nil
}

func (m *Memory) ListPurchases(_ context.Context, accountID ledger.AccountID) ([]Purchase, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []Purchase
	for _, p := range m.purchases {
		if p.AccountID == accountID {
			result = append(result, p)
		}
	}
	return result, nil
}
