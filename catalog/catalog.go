/*
Package catalog provides price lookup for purchasable items.

PURPOSE:
  The catalog is a read-only collaborator of the purchase coordinator:
  it resolves item ids into priced items and nothing else. Items are
  immutable after creation and every price is strictly positive.

SEE ALSO:
  - purchase/purchase.go: The only consumer of Lookup
  - store/sqlite/sqlite.go: SQLite-backed implementation
*/
package catalog

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/meridian/bookledger/ledger"
)

// =============================================================================
// ITEM
// =============================================================================

// Item is one purchasable catalog entry. Price is strictly positive.
type Item struct {
	ID        string
	Title     string
	Price     decimal.Decimal
	CreatedAt time.Time
}

// NewItem validates and builds an item with a fresh identity.
func NewItem(title string, price decimal.Decimal) (Item, error) {
	if strings.TrimSpace(title) == "" {
		return Item{}, fmt.Errorf("catalog: title must not be empty")
	}
	if !price.IsPositive() {
		return Item{}, fmt.Errorf("catalog: price must be strictly positive, got %s", price)
	}
	return Item{
		ID:        uuid.NewString(),
		Title:     title,
		Price:     price,
		CreatedAt: time.Now().UTC(),
	}, nil
}

// =============================================================================
// LOOKUP - Read-only collaborator
// =============================================================================

// Lookup resolves item ids to priced items.
type Lookup interface {
	// Resolve returns the item, or ledger.ErrItemNotFound (wrapped in an
	// ItemNotFoundError naming the id).
	Resolve(ctx context.Context, itemID string) (Item, error)

	// List returns the full catalog, ordered by creation.
	List(ctx context.Context) ([]Item, error)
}

// Writer adds items. Kept separate so the coordinator only ever sees the
// read side.
type Writer interface {
	CreateItem(ctx context.Context, item Item) error
}

// =============================================================================
// MEMORY CATALOG
// =============================================================================

// Memory is an in-memory Lookup + Writer for tests and development.
type Memory struct {
	mu    sync.RWMutex
	items map[string]Item
	order []string
}

func NewMemory() *Memory {
	return &Memory{items: make(map[string]Item)}
}

func (m *Memory) CreateItem(_ context.Context, item Item) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items[item.ID] = item
	m.order = append(m.order, item.ID)
	return nil
}

func (m *Memory) Resolve(_ context.Context, itemID string) (Item, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	item, ok := m.items[itemID]
	if !ok {
		return Item{}, &ledger.ItemNotFoundError{ItemID: itemID}
	}
	return item, nil
}

func (m *Memory) List(_ context.Context) ([]Item, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]Item, 0, len(m.order))
	for _, id := range m.order {
		result = append(result, m.items[id])
	}
	return result, nil
}

// =============================================================================
// SAMPLE CATALOG
// =============================================================================

// SampleItems returns the default bookshop catalog, used to seed an empty
// database at startup.
func SampleItems() []Item {
	titles := []struct {
		title string
		price string
	}{
		{"Count of Monte Cristo", "50.00"},
		{"The Stranger", "40.00"},
		{"Dialogues", "25.00"},
		{"Les Miserables", "70.00"},
		{"Thinking Fast and Slow", "60.00"},
	}

	items := make([]Item, 0, len(titles))
	for _, t := range titles {
		items = append(items, Item{
			ID:        uuid.NewString(),
			Title:     t.title,
			Price:     ledger.MustParseDecimal(t.price),
			CreatedAt: time.Now().UTC(),
		})
	}
	return items
}
