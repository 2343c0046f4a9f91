/*
Package sqlite provides the SQLite-backed implementation of every
persistence interface in the system.

PURPOSE:
  Implements ledger.AccountStore, ledger.EntryLog, ledger.TxStore,
  catalog.Lookup, catalog.Writer, and purchase.Store on one database.
  In production the same patterns apply to PostgreSQL - only minor SQL
  dialect differences.

TRANSACTIONAL COMMIT:
  WithTx wraps the engine's commit (entry append + balance write) in one
  SQL transaction, so the check-then-commit path never writes an invalid
  state, even transiently.

KEY TABLES:
  accounts        id, owner_id (UNIQUE), balance
  ledger_entries  id, account_id (FK cascade), delta, kind, created_at
  catalog_items   id, title, price
  purchases       id, account_id (FK cascade), ledger_entry_id (FK), total_cost
  purchase_items  ordered join preserving basket order and duplicates

DECIMALS:
  Balances, deltas, and prices are stored as TEXT and parsed with
  shopspring/decimal. No floats touch money.

CONCURRENCY:
  Uses sync.Mutex around writes plus WAL mode. Multiple readers don't
  block; single writer at a time.

SEE ALSO:
  - ledger/store.go: Interface definitions
  - ledger/store/memory.go: In-memory implementation for testing
*/
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"

	"github.com/meridian/bookledger/catalog"
	"github.com/meridian/bookledger/ledger"
	"github.com/meridian/bookledger/purchase"
)

// Store implements all storage interfaces using SQLite.
type Store struct {
	db *sql.DB
	mu sync.Mutex
}

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS accounts (
		id TEXT PRIMARY KEY,
		owner_id TEXT NOT NULL UNIQUE,
		balance TEXT NOT NULL,
		created_at TEXT NOT NULL
	);

	-- Append-only audit log. Rows are deleted only by the engine's
	-- compensation path or by account cascade.
	CREATE TABLE IF NOT EXISTS ledger_entries (
		id TEXT PRIMARY KEY,
		account_id TEXT NOT NULL REFERENCES accounts(id) ON DELETE CASCADE,
		delta TEXT NOT NULL,
		kind TEXT NOT NULL,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_entries_account
		ON ledger_entries(account_id);

	CREATE TABLE IF NOT EXISTS catalog_items (
		id TEXT PRIMARY KEY,
		title TEXT NOT NULL,
		price TEXT NOT NULL,
		created_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS purchases (
		id TEXT PRIMARY KEY,
		account_id TEXT NOT NULL REFERENCES accounts(id) ON DELETE CASCADE,
		ledger_entry_id TEXT REFERENCES ledger_entries(id),
		total_cost TEXT NOT NULL,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_purchases_account
		ON purchases(account_id);

	-- Ordered basket join. Position preserves basket order; duplicates
	-- get their own rows.
	CREATE TABLE IF NOT EXISTS purchase_items (
		purchase_id TEXT NOT NULL REFERENCES purchases(id) ON DELETE CASCADE,
		position INTEGER NOT NULL,
		item_id TEXT NOT NULL REFERENCES catalog_items(id),
		PRIMARY KEY (purchase_id, position)
	);
	`

	_, err := s.db.Exec(schema)
	return err
}

// dbtx is satisfied by both *sql.DB and *sql.Tx so every query can run
// either standalone or inside WithTx.
type dbtx interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// =============================================================================
// ACCOUNT STORE (ledger.AccountStore interface)
// =============================================================================

func (s *Store) CreateAccount(ctx context.Context, account ledger.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return createAccount(ctx, s.db, account)
}

func createAccount(ctx context.Context, db dbtx, account ledger.Account) error {
	_, err := db.ExecContext(ctx,
		`INSERT INTO accounts (id, owner_id, balance, created_at) VALUES (?, ?, ?, ?)`,
		account.ID,
		account.OwnerID,
		account.Balance.String(),
		account.CreatedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return ledger.ErrOwnerHasAccount
		}
		return fmt.Errorf("failed to create account: %w", err)
	}
	return nil
}

func (s *Store) GetAccount(ctx context.Context, id ledger.AccountID) (ledger.Account, error) {
	return getAccount(ctx, s.db, id)
}

func getAccount(ctx context.Context, db dbtx, id ledger.AccountID) (ledger.Account, error) {
	row := db.QueryRowContext(ctx,
		`SELECT id, owner_id, balance, created_at FROM accounts WHERE id = ?`, id)

	var (
		account            ledger.Account
		balance, createdAt string
	)
	err := row.Scan(&account.ID, &account.OwnerID, &balance, &createdAt)
	if err == sql.ErrNoRows {
		return ledger.Account{}, ledger.ErrAccountNotFound
	}
	if err != nil {
		return ledger.Account{}, fmt.Errorf("failed to load account: %w", err)
	}

	if account.Balance, err = decimal.NewFromString(balance); err != nil {
		return ledger.Account{}, fmt.Errorf("corrupt balance for account %s: %w", account.ID, err)
	}
	account.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
	return account, nil
}

func (s *Store) ListAccounts(ctx context.Context) ([]ledger.Account, error) {
	return listAccounts(ctx, s.db)
}

func listAccounts(ctx context.Context, db dbtx) ([]ledger.Account, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT id, owner_id, balance, created_at FROM accounts ORDER BY rowid`)
	if err != nil {
		return nil, fmt.Errorf("failed to list accounts: %w", err)
	}
	defer rows.Close()

	var accounts []ledger.Account
	for rows.Next() {
		var (
			account            ledger.Account
			balance, createdAt string
		)
		if err := rows.Scan(&account.ID, &account.OwnerID, &balance, &createdAt); err != nil {
			return nil, err
		}
		if account.Balance, err = decimal.NewFromString(balance); err != nil {
			return nil, fmt.Errorf("corrupt balance for account %s: %w", account.ID, err)
		}
		account.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
		accounts = append(accounts, account)
	}
	return accounts, rows.Err()
}

func (s *Store) GetBalance(ctx context.Context, id ledger.AccountID) (decimal.Decimal, error) {
	return getBalance(ctx, s.db, id)
}

func getBalance(ctx context.Context, db dbtx, id ledger.AccountID) (decimal.Decimal, error) {
	var balance string
	err := db.QueryRowContext(ctx,
		`SELECT balance FROM accounts WHERE id = ?`, id).Scan(&balance)
	if err == sql.ErrNoRows {
		return decimal.Zero, ledger.ErrAccountNotFound
	}
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to load balance: %w", err)
	}
	return decimal.NewFromString(balance)
}

func (s *Store) SetBalance(ctx context.Context, id ledger.AccountID, balance decimal.Decimal) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return setBalance(ctx, s.db, id, balance)
}

func setBalance(ctx context.Context, db dbtx, id ledger.AccountID, balance decimal.Decimal) error {
	res, err := db.ExecContext(ctx,
		`UPDATE accounts SET balance = ? WHERE id = ?`, balance.String(), id)
	if err != nil {
		return fmt.Errorf("failed to set balance: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ledger.ErrAccountNotFound
	}
	return nil
}

func (s *Store) DeleteAccount(ctx context.Context, id ledger.AccountID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, `DELETE FROM accounts WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete account: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ledger.ErrAccountNotFound
	}
	return nil
}

// =============================================================================
// ENTRY LOG (ledger.EntryLog interface)
// =============================================================================

func (s *Store) AppendEntry(ctx context.Context, entry ledger.LedgerEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return appendEntry(ctx, s.db, entry)
}

func appendEntry(ctx context.Context, db dbtx, entry ledger.LedgerEntry) error {
	_, err := db.ExecContext(ctx,
		`INSERT INTO ledger_entries (id, account_id, delta, kind, created_at) VALUES (?, ?, ?, ?, ?)`,
		entry.ID,
		entry.AccountID,
		entry.Delta.String(),
		entry.Kind,
		entry.CreatedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("failed to append entry: %w", err)
	}
	return nil
}

func (s *Store) RemoveEntry(ctx context.Context, id ledger.EntryID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return removeEntry(ctx, s.db, id)
}

func removeEntry(ctx context.Context, db dbtx, id ledger.EntryID) error {
	res, err := db.ExecContext(ctx, `DELETE FROM ledger_entries WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to remove entry: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ledger.ErrEntryNotFound
	}
	return nil
}

func (s *Store) Entries(ctx context.Context, accountID ledger.AccountID) ([]ledger.LedgerEntry, error) {
	return loadEntries(ctx, s.db, accountID)
}

func loadEntries(ctx context.Context, db dbtx, accountID ledger.AccountID) ([]ledger.LedgerEntry, error) {
	// rowid gives true commit order even when timestamps collide.
	rows, err := db.QueryContext(ctx,
		`SELECT id, account_id, delta, kind, created_at FROM ledger_entries
		 WHERE account_id = ? ORDER BY rowid`, accountID)
	if err != nil {
		return nil, fmt.Errorf("failed to load entries: %w", err)
	}
	defer rows.Close()

	var entries []ledger.LedgerEntry
	for rows.Next() {
		var (
			entry            ledger.LedgerEntry
			delta, createdAt string
		)
		if err := rows.Scan(&entry.ID, &entry.AccountID, &delta, &entry.Kind, &createdAt); err != nil {
			return nil, err
		}
		if entry.Delta, err = decimal.NewFromString(delta); err != nil {
			return nil, fmt.Errorf("corrupt delta for entry %s: %w", entry.ID, err)
		}
		entry.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

// =============================================================================
// TRANSACTIONS (ledger.TxStore interface)
// =============================================================================

// WithTx executes fn within one SQL transaction.
func (s *Store) WithTx(ctx context.Context, fn func(ledger.Store) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	if err := fn(&txStore{tx: sqlTx}); err != nil {
		return err
	}

	return sqlTx.Commit()
}

// txStore routes ledger.Store calls through an open *sql.Tx.
type txStore struct {
	tx *sql.Tx
}

func (ts *txStore) CreateAccount(ctx context.Context, account ledger.Account) error {
	return createAccount(ctx, ts.tx, account)
}

func (ts *txStore) GetAccount(ctx context.Context, id ledger.AccountID) (ledger.Account, error) {
	return getAccount(ctx, ts.tx, id)
}

func (ts *txStore) ListAccounts(ctx context.Context) ([]ledger.Account, error) {
	return listAccounts(ctx, ts.tx)
}

func (ts *txStore) GetBalance(ctx context.Context, id ledger.AccountID) (decimal.Decimal, error) {
	return getBalance(ctx, ts.tx, id)
}

func (ts *txStore) SetBalance(ctx context.Context, id ledger.AccountID, balance decimal.Decimal) error {
	return setBalance(ctx, ts.tx, id, balance)
}

func (ts *txStore) DeleteAccount(ctx context.Context, id ledger.AccountID) error {
	res, err := ts.tx.ExecContext(ctx, `DELETE FROM accounts WHERE id = ?`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ledger.ErrAccountNotFound
	}
	return nil
}

func (ts *txStore) AppendEntry(ctx context.Context, entry ledger.LedgerEntry) error {
	return appendEntry(ctx, ts.tx, entry)
}

func (ts *txStore) RemoveEntry(ctx context.Context, id ledger.EntryID) error {
	return removeEntry(ctx, ts.tx, id)
}

func (ts *txStore) Entries(ctx context.Context, accountID ledger.AccountID) ([]ledger.LedgerEntry, error) {
	return loadEntries(ctx, ts.tx, accountID)
}

// =============================================================================
// CATALOG (catalog.Lookup + catalog.Writer interfaces)
// =============================================================================

func (s *Store) CreateItem(ctx context.Context, item catalog.Item) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO catalog_items (id, title, price, created_at) VALUES (?, ?, ?, ?)`,
		item.ID,
		item.Title,
		item.Price.String(),
		item.CreatedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("failed to create catalog item: %w", err)
	}
	return nil
}

func (s *Store) Resolve(ctx context.Context, itemID string) (catalog.Item, error) {
	var (
		item             catalog.Item
		price, createdAt string
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT id, title, price, created_at FROM catalog_items WHERE id = ?`, itemID).
		Scan(&item.ID, &item.Title, &price, &createdAt)
	if err == sql.ErrNoRows {
		return catalog.Item{}, &ledger.ItemNotFoundError{ItemID: itemID}
	}
	if err != nil {
		return catalog.Item{}, fmt.Errorf("failed to resolve item: %w", err)
	}

	if item.Price, err = decimal.NewFromString(price); err != nil {
		return catalog.Item{}, fmt.Errorf("corrupt price for item %s: %w", item.ID, err)
	}
	item.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
	return item, nil
}

func (s *Store) List(ctx context.Context) ([]catalog.Item, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, title, price, created_at FROM catalog_items ORDER BY rowid`)
	if err != nil {
		return nil, fmt.Errorf("failed to list catalog: %w", err)
	}
	defer rows.Close()

	var items []catalog.Item
	for rows.Next() {
		var (
			item             catalog.Item
			price, createdAt string
		)
		if err := rows.Scan(&item.ID, &item.Title, &price, &createdAt); err != nil {
			return nil, err
		}
		if item.Price, err = decimal.NewFromString(price); err != nil {
			return nil, fmt.Errorf("corrupt price for item %s: %w", item.ID, err)
		}
		item.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
		items = append(items, item)
	}
	return items, rows.Err()
}

// =============================================================================
// PURCHASES (purchase.Store interface)
// =============================================================================

func (s *Store) CreatePurchase(ctx context.Context, p purchase.Purchase) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	var entryID any
	if p.LedgerEntryID != nil {
		entryID = string(*p.LedgerEntryID)
	}

	_, err = sqlTx.ExecContext(ctx,
		`INSERT INTO purchases (id, account_id, ledger_entry_id, total_cost, created_at) VALUES (?, ?, ?, ?, ?)`,
		p.ID,
		p.AccountID,
		entryID,
		p.TotalCost.String(),
		p.CreatedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("failed to create purchase: %w", err)
	}

	for i, itemID := range p.ItemIDs {
		_, err = sqlTx.ExecContext(ctx,
			`INSERT INTO purchase_items (purchase_id, position, item_id) VALUES (?, ?, ?)`,
			p.ID, i, itemID)
		if err != nil {
			return fmt.Errorf("failed to record basket item: %w", err)
		}
	}

	return sqlTx.Commit()
}

func (s *Store) ListPurchases(ctx context.Context, accountID ledger.AccountID) ([]purchase.Purchase, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, account_id, ledger_entry_id, total_cost, created_at FROM purchases
		 WHERE account_id = ? ORDER BY rowid`, accountID)
	if err != nil {
		return nil, fmt.Errorf("failed to list purchases: %w", err)
	}
	defer rows.Close()

	var purchases []purchase.Purchase
	for rows.Next() {
		var (
			p                    purchase.Purchase
			entryID              sql.NullString
			totalCost, createdAt string
		)
		if err := rows.Scan(&p.ID, &p.AccountID, &entryID, &totalCost, &createdAt); err != nil {
			return nil, err
		}
		if entryID.Valid {
			id := ledger.EntryID(entryID.String)
			p.LedgerEntryID = &id
		}
		if p.TotalCost, err = decimal.NewFromString(totalCost); err != nil {
			return nil, fmt.Errorf("corrupt total for purchase %s: %w", p.ID, err)
		}
		p.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
		purchases = append(purchases, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range purchases {
		if purchases[i].ItemIDs, err = s.basketItems(ctx, purchases[i].ID); err != nil {
			return nil, err
		}
	}
	return purchases, nil
}

func (s *Store) basketItems(ctx context.Context, purchaseID string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT item_id FROM purchase_items WHERE purchase_id = ? ORDER BY position`, purchaseID)
	if err != nil {
		return nil, fmt.Errorf("failed to load basket: %w", err)
	}
	defer rows.Close()

	var itemIDs []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		itemIDs = append(itemIDs, id)
	}
	return itemIDs, rows.Err()
}

// =============================================================================
// SEEDING
// =============================================================================

// Seed loads the sample catalog and a demo account when the database is
// empty. Safe to call on every startup.
func (s *Store) Seed(ctx context.Context) error {
	items, err := s.List(ctx)
	if err != nil {
		return err
	}
	if len(items) > 0 {
		return nil
	}

	for _, item := range catalog.SampleItems() {
		if err := s.CreateItem(ctx, item); err != nil {
			return err
		}
	}

	sample := ledger.Account{
		ID:        ledger.NewAccountID(),
		OwnerID:   "sample_user",
		Balance:   ledger.MustParseDecimal("150.00"),
		CreatedAt: time.Now().UTC(),
	}
	if err := s.CreateAccount(ctx, sample); err != nil && err != ledger.ErrOwnerHasAccount {
		return err
	}
	return nil
}

// =============================================================================
// HELPERS
// =============================================================================

func isUniqueConstraintError(err error) bool {
	return err != nil && (strings.Contains(err.Error(), "UNIQUE constraint failed") ||
		strings.Contains(err.Error(), "duplicate key"))
}
