// Package store provides ledger.Store implementations.
package store

import (
	"context"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/meridian/bookledger/ledger"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

type Memory struct {
	mu       sync.RWMutex
	accounts map[ledger.AccountID]ledger.Account
	owners   map[ledger.OwnerID]ledger.AccountID
	entries  map[ledger.AccountID][]ledger.LedgerEntry
	order    []ledger.AccountID
}

func NewMemory() *Memory {
	return &Memory{
		accounts: make(map[ledger.AccountID]ledger.Account),
		owners:   make(map[ledger.OwnerID]ledger.AccountID),
		entries:  make(map[ledger.AccountID][]ledger.LedgerEntry),
	}
}

// =============================================================================
// ACCOUNT STORE
// =============================================================================

func (m *Memory) CreateAccount(_ context.Context, account ledger.Account) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.createAccountLocked(account)
}

func (m *Memory) createAccountLocked(account ledger.Account) error {
	if _, taken := m.owners[account.OwnerID]; taken {
		return ledger.ErrOwnerHasAccount
	}
	m.accounts[account.ID] = account
	m.owners[account.OwnerID] = account.ID
	m.order = append(m.order, account.ID)
	return nil
}

func (m *Memory) GetAccount(_ context.Context, id ledger.AccountID) (ledger.Account, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	account, ok := m.accounts[id]
	if !ok {
		return ledger.Account{}, ledger.ErrAccountNotFound
	}
	return account, nil
}

func (m *Memory) ListAccounts(_ context.Context) ([]ledger.Account, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]ledger.Account, 0, len(m.order))
	for _, id := range m.order {
		if account, ok := m.accounts[id]; ok {
			result = append(result, account)
		}
	}
	return result, nil
}

func (m *Memory) GetBalance(_ context.Context, id ledger.AccountID) (decimal.Decimal, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.getBalanceLocked(id)
}

func (m *Memory) getBalanceLocked(id ledger.AccountID) (decimal.Decimal, error) {
	account, ok := m.accounts[id]
	if !ok {
		return decimal.Zero, ledger.ErrAccountNotFound
	}
	return account.Balance, nil
}

func (m *Memory) SetBalance(_ context.Context, id ledger.AccountID, balance decimal.Decimal) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.setBalanceLocked(id, balance)
}

func (m *Memory) setBalanceLocked(id ledger.AccountID, balance decimal.Decimal) error {
	account, ok := m.accounts[id]
	if !ok {
		return ledger.ErrAccountNotFound
	}
	account.Balance = balance
	m.accounts[id] = account
	return nil
}

func (m *Memory) DeleteAccount(_ context.Context, id ledger.AccountID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	account, ok := m.accounts[id]
	if !ok {
		return ledger.ErrAccountNotFound
	}
	delete(m.accounts, id)
	delete(m.owners, account.OwnerID)
	delete(m.entries, id) // cascade
	return nil
}

// =============================================================================
// ENTRY LOG
// =============================================================================

func (m *Memory) AppendEntry(_ context.Context, entry ledger.LedgerEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.appendEntryLocked(entry)
}

func (m *Memory) appendEntryLocked(entry ledger.LedgerEntry) error {
	m.entries[entry.AccountID] = append(m.entries[entry.AccountID], entry)
	return nil
}

func (m *Memory) RemoveEntry(_ context.Context, id ledger.EntryID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.removeEntryLocked(id)
}

func (m *Memory) removeEntryLocked(id ledger.EntryID) error {
	for accountID, entries := range m.entries {
		for i, e := range entries {
			if e.ID == id {
				m.entries[accountID] = append(entries[:i:i], entries[i+1:]...)
				return nil
			}
		}
	}
	return ledger.ErrEntryNotFound
}

func (m *Memory) Entries(_ context.Context, accountID ledger.AccountID) ([]ledger.LedgerEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]ledger.LedgerEntry, len(m.entries[accountID]))
	copy(result, m.entries[accountID])
	return result, nil
}

// =============================================================================
// TRANSACTIONAL MEMORY STORE
// =============================================================================

// TxMemory wraps Memory with transaction support, simulated with a
// snapshot + rollback on error.
type TxMemory struct {
	*Memory
}

func NewTxMemory() *TxMemory {
	return &TxMemory{Memory: NewMemory()}
}

func (tm *TxMemory) WithTx(_ context.Context, fn func(ledger.Store) error) error {
	tm.mu.Lock()
	defer tm.mu.Unlock()

	snapshot := tm.snapshot()

	if err := fn(&txMemoryView{parent: tm}); err != nil {
		tm.restore(snapshot)
		return err
	}
	return nil
}

type memorySnapshot struct {
	accounts map[ledger.AccountID]ledger.Account
	owners   map[ledger.OwnerID]ledger.AccountID
	entries  map[ledger.AccountID][]ledger.LedgerEntry
	order    []ledger.AccountID
}

func (tm *TxMemory) snapshot() memorySnapshot {
	accounts := make(map[ledger.AccountID]ledger.Account, len(tm.accounts))
	for k, v := range tm.accounts {
		accounts[k] = v
	}
	owners := make(map[ledger.OwnerID]ledger.AccountID, len(tm.owners))
	for k, v := range tm.owners {
		owners[k] = v
	}
	entries := make(map[ledger.AccountID][]ledger.LedgerEntry, len(tm.entries))
	for k, v := range tm.entries {
		entries[k] = append([]ledger.LedgerEntry{}, v...)
	}
	return memorySnapshot{
		accounts: accounts,
		owners:   owners,
		entries:  entries,
		order:    append([]ledger.AccountID{}, tm.order...),
	}
}

func (tm *TxMemory) restore(s memorySnapshot) {
	tm.accounts = s.accounts
	tm.owners = s.owners
	tm.entries = s.entries
	tm.order = s.order
}

// txMemoryView performs writes directly on the already-locked parent.
type txMemoryView struct {
	parent *TxMemory
}

func (tv *txMemoryView) CreateAccount(_ context.Context, account ledger.Account) error {
	return tv.parent.createAccountLocked(account)
}

func (tv *txMemoryView) GetAccount(_ context.Context, id ledger.AccountID) (ledger.Account, error) {
	account, ok := tv.parent.accounts[id]
	if !ok {
		return ledger.Account{}, ledger.ErrAccountNotFound
	}
	return account, nil
}

func (tv *txMemoryView) ListAccounts(_ context.Context) ([]ledger.Account, error) {
	result := make([]ledger.Account, 0, len(tv.parent.order))
	for _, id := range tv.parent.order {
		if account, ok := tv.parent.accounts[id]; ok {
			result = append(result, account)
		}
	}
	return result, nil
}

func (tv *txMemoryView) GetBalance(_ context.Context, id ledger.AccountID) (decimal.Decimal, error) {
	return tv.parent.getBalanceLocked(id)
}

func (tv *txMemoryView) SetBalance(_ context.Context, id ledger.AccountID, balance decimal.Decimal) error {
	return tv.parent.setBalanceLocked(id, balance)
}

func (tv *txMemoryView) DeleteAccount(_ context.Context, id ledger.AccountID) error {
	account, ok := tv.parent.accounts[id]
	if !ok {
		return ledger.ErrAccountNotFound
	}
	delete(tv.parent.accounts, id)
	delete(tv.parent.owners, account.OwnerID)
	delete(tv.parent.entries, id)
	return nil
}

func (tv *txMemoryView) AppendEntry(_ context.Context, entry ledger.LedgerEntry) error {
	return tv.parent.appendEntryLocked(entry)
}

func (tv *txMemoryView) RemoveEntry(_ context.Context, id ledger.EntryID) error {
	return tv.parent.removeEntryLocked(id)
}

func (tv *txMemoryView) Entries(_ context.Context, accountID ledger.AccountID) ([]ledger.LedgerEntry, error) {
	entries := tv.parent.entries[accountID]
	result := make([]ledger.LedgerEntry, len(entries))
	copy(result, entries)
	return result, nil
}
