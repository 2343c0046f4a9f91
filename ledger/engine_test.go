package ledger_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/meridian/bookledger/events"
	"github.com/meridian/bookledger/ledger"
	"github.com/meridian/bookledger/ledger/store"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

func money(s string) decimal.Decimal {
	return ledger.MustParseDecimal(s)
}

func newAccount(t *testing.T, s ledger.Store, balance string) ledger.AccountID {
	t.Helper()
	account := ledger.Account{
		ID:        ledger.NewAccountID(),
		OwnerID:   ledger.OwnerID(nextOwner()),
		Balance:   money(balance),
		CreatedAt: time.Now().UTC(),
	}
	if err := s.CreateAccount(context.Background(), account); err != nil {
		t.Fatalf("failed to create account: %v", err)
	}
	return account.ID
}

var ownerSeq int

func nextOwner() string {
	ownerSeq++
	return fmt.Sprintf("owner-%d", ownerSeq)
}

func mustBalance(t *testing.T, e *ledger.Engine, id ledger.AccountID) decimal.Decimal {
	t.Helper()
	b, err := e.Balance(context.Background(), id)
	if err != nil {
		t.Fatalf("failed to read balance: %v", err)
	}
	return b
}

// recordingPublisher captures published commit events.
type recordingPublisher struct {
	mu     sync.Mutex
	events []events.EntryCommitted
}

func (p *recordingPublisher) Publish(_ string, event any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event.(events.EntryCommitted))
	return nil
}

// =============================================================================
// DEPOSIT TESTS
// =============================================================================

func TestDeposit_CreditsBalanceAndAppendsOneEntry(t *testing.T) {
	// GIVEN: An account with balance 100.00
	// WHEN: Depositing 50
	// THEN: Balance is 150.00 and exactly one entry {delta:+50, kind:deposit} exists

	ctx := context.Background()
	s := store.NewTxMemory()
	engine := ledger.NewEngine(s)
	id := newAccount(t, s, "100.00")

	entry, err := engine.Deposit(ctx, id, money("50"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if got := mustBalance(t, engine, id); !got.Equal(money("150.00")) {
		t.Errorf("expected balance 150.00, got %s", got)
	}

	entries, err := engine.Entries(ctx, id)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected exactly 1 entry, got %d", len(entries))
	}
	if !entries[0].Delta.Equal(money("50")) {
		t.Errorf("expected delta +50, got %s", entries[0].Delta)
	}
	if entries[0].Kind != ledger.EntryDeposit {
		t.Errorf("expected kind deposit, got %s", entries[0].Kind)
	}
	if entries[0].ID != entry.ID {
		t.Errorf("returned entry does not match persisted entry")
	}
}

func TestDeposit_NegativeAmount_FailsWithNoSideEffects(t *testing.T) {
	// GIVEN: An account with balance 100.00
	// WHEN: Depositing -10
	// THEN: ErrInvalidAmount; balance and ledger unchanged

	ctx := context.Background()
	s := store.NewTxMemory()
	engine := ledger.NewEngine(s)
	id := newAccount(t, s, "100.00")

	_, err := engine.Deposit(ctx, id, money("-10"))
	if err != ledger.ErrInvalidAmount {
		t.Fatalf("expected ErrInvalidAmount, got %v", err)
	}

	if got := mustBalance(t, engine, id); !got.Equal(money("100.00")) {
		t.Errorf("balance changed: %s", got)
	}
	entries, _ := engine.Entries(ctx, id)
	if len(entries) != 0 {
		t.Errorf("expected no entries, got %d", len(entries))
	}
}

func TestDeposit_UnknownAccount(t *testing.T) {
	engine := ledger.NewEngine(store.NewTxMemory())

	_, err := engine.Deposit(context.Background(), "nope", money("5"))
	if err != ledger.ErrAccountNotFound {
		t.Fatalf("expected ErrAccountNotFound, got %v", err)
	}
}

// =============================================================================
// APPLY DELTA TESTS
// =============================================================================

func TestApplyDelta_ExactlyZeroBalance_Commits(t *testing.T) {
	// A zero balance is valid: draining the account to 0.00 must commit.

	ctx := context.Background()
	s := store.NewTxMemory()
	engine := ledger.NewEngine(s)
	id := newAccount(t, s, "40.00")

	_, err := engine.ApplyDelta(ctx, id, money("-40.00"), ledger.EntryDeduction)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := mustBalance(t, engine, id); !got.IsZero() {
		t.Errorf("expected zero balance, got %s", got)
	}
}

func TestApplyDelta_Overdraw_FailsWithNoSideEffects(t *testing.T) {
	ctx := context.Background()
	s := store.NewTxMemory()
	engine := ledger.NewEngine(s)
	id := newAccount(t, s, "5.00")

	_, err := engine.ApplyDelta(ctx, id, money("-40.00"), ledger.EntryDeduction)

	var fundsErr *ledger.InsufficientFundsError
	if !errors.As(err, &fundsErr) {
		t.Fatalf("expected InsufficientFundsError, got %v", err)
	}
	if !fundsErr.Available.Equal(money("5.00")) || !fundsErr.Requested.Equal(money("40.00")) {
		t.Errorf("wrong error details: available %s requested %s", fundsErr.Available, fundsErr.Requested)
	}
	if !fundsErr.Shortfall().Equal(money("35.00")) {
		t.Errorf("expected shortfall 35.00, got %s", fundsErr.Shortfall())
	}

	if got := mustBalance(t, engine, id); !got.Equal(money("5.00")) {
		t.Errorf("balance changed: %s", got)
	}
	entries, _ := engine.Entries(ctx, id)
	if len(entries) != 0 {
		t.Errorf("expected no entries after rejected commit, got %d", len(entries))
	}
}

func TestApplyDelta_CompensatingPath_RemovesAppendedEntry(t *testing.T) {
	// GIVEN: A plain (non-transactional) store
	// WHEN: A deduction would drive the balance negative
	// THEN: The just-appended entry is deleted and the balance is untouched

	ctx := context.Background()
	s := store.NewMemory() // does NOT implement TxStore
	engine := ledger.NewEngine(s)
	id := newAccount(t, s, "5.00")

	_, err := engine.ApplyDelta(ctx, id, money("-40.00"), ledger.EntryDeduction)

	var fundsErr *ledger.InsufficientFundsError
	if !errors.As(err, &fundsErr) {
		t.Fatalf("expected InsufficientFundsError, got %v", err)
	}

	if got := mustBalance(t, engine, id); !got.Equal(money("5.00")) {
		t.Errorf("balance changed: %s", got)
	}
	entries, _ := engine.Entries(ctx, id)
	if len(entries) != 0 {
		t.Errorf("compensation left %d entries behind", len(entries))
	}

	// The same store still commits valid operations.
	if _, err := engine.ApplyDelta(ctx, id, money("-5.00"), ledger.EntryDeduction); err != nil {
		t.Fatalf("valid deduction failed: %v", err)
	}
	if got := mustBalance(t, engine, id); !got.IsZero() {
		t.Errorf("expected zero balance, got %s", got)
	}
}

func TestApplyDelta_StoredNegativeBalance_IsIntegrityViolation(t *testing.T) {
	// A negative stored balance can only come from writes outside the
	// engine; it is reported as corruption, not user error.

	ctx := context.Background()
	s := store.NewTxMemory()
	engine := ledger.NewEngine(s)
	id := newAccount(t, s, "10.00")

	if err := s.SetBalance(ctx, id, money("-1.00")); err != nil {
		t.Fatalf("setup failed: %v", err)
	}

	_, err := engine.ApplyDelta(ctx, id, money("5.00"), ledger.EntryDeposit)
	if err != ledger.ErrIntegrityViolation {
		t.Fatalf("expected ErrIntegrityViolation, got %v", err)
	}
}

// =============================================================================
// INVARIANT TESTS
// =============================================================================

func TestBalance_EqualsInitialPlusSumOfCommittedDeltas(t *testing.T) {
	ctx := context.Background()
	s := store.NewTxMemory()
	engine := ledger.NewEngine(s)
	id := newAccount(t, s, "100.00")

	ops := []struct {
		delta string
		kind  ledger.EntryKind
		fails bool
	}{
		{"50.00", ledger.EntryDeposit, false},
		{"-30.00", ledger.EntryDeduction, false},
		{"-500.00", ledger.EntryDeduction, true}, // rejected, no entry
		{"0", ledger.EntryDeposit, false},
		{"-120.00", ledger.EntryDeduction, false},
	}
	for _, op := range ops {
		_, err := engine.ApplyDelta(ctx, id, money(op.delta), op.kind)
		if op.fails && err == nil {
			t.Fatalf("expected failure for delta %s", op.delta)
		}
		if !op.fails && err != nil {
			t.Fatalf("unexpected failure for delta %s: %v", op.delta, err)
		}
	}

	entries, err := engine.Entries(ctx, id)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := money("100.00").Add(ledger.SumDeltas(entries))
	if got := mustBalance(t, engine, id); !got.Equal(want) {
		t.Errorf("balance %s != initial + sum of deltas %s", got, want)
	}
	if len(entries) != 4 {
		t.Errorf("expected 4 committed entries, got %d", len(entries))
	}
}

func TestBalance_RepeatedReadsAreIdempotent(t *testing.T) {
	s := store.NewTxMemory()
	engine := ledger.NewEngine(s)
	id := newAccount(t, s, "33.33")

	first := mustBalance(t, engine, id)
	for i := 0; i < 5; i++ {
		if got := mustBalance(t, engine, id); !got.Equal(first) {
			t.Fatalf("read %d returned %s, want %s", i, got, first)
		}
	}
}

// =============================================================================
// CONCURRENCY TESTS
// =============================================================================

func TestConcurrentDeposits_SameAccount_AllSerialized(t *testing.T) {
	ctx := context.Background()
	s := store.NewTxMemory()
	engine := ledger.NewEngine(s)
	id := newAccount(t, s, "0")

	const n = 50
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := engine.Deposit(ctx, id, money("1.00")); err != nil {
				t.Errorf("deposit failed: %v", err)
			}
		}()
	}
	wg.Wait()

	if got := mustBalance(t, engine, id); !got.Equal(money("50.00")) {
		t.Errorf("expected 50.00 after %d concurrent deposits, got %s", n, got)
	}
	entries, _ := engine.Entries(ctx, id)
	if len(entries) != n {
		t.Errorf("expected %d entries, got %d", n, len(entries))
	}
}

func TestConcurrentOverdraws_OnlyFeasibleOnesCommit(t *testing.T) {
	// 10 concurrent deductions of 30.00 against 100.00: exactly 3 can
	// commit, the rest must fail with InsufficientFunds and leave nothing.

	ctx := context.Background()
	s := store.NewTxMemory()
	engine := ledger.NewEngine(s)
	id := newAccount(t, s, "100.00")

	var wg sync.WaitGroup
	var mu sync.Mutex
	committed := 0
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := engine.ApplyDelta(ctx, id, money("-30.00"), ledger.EntryDeduction); err == nil {
				mu.Lock()
				committed++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if committed != 3 {
		t.Errorf("expected exactly 3 committed deductions, got %d", committed)
	}
	if got := mustBalance(t, engine, id); !got.Equal(money("10.00")) {
		t.Errorf("expected final balance 10.00, got %s", got)
	}
	entries, _ := engine.Entries(ctx, id)
	if len(entries) != 3 {
		t.Errorf("expected 3 entries, got %d", len(entries))
	}
}

// =============================================================================
// EVENT TESTS
// =============================================================================

func TestEngine_PublishesEventOnCommitOnly(t *testing.T) {
	ctx := context.Background()
	s := store.NewTxMemory()
	pub := &recordingPublisher{}
	engine := ledger.NewEngine(s, ledger.WithPublisher(pub))
	id := newAccount(t, s, "20.00")

	entry, err := engine.Deposit(ctx, id, money("5.00"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := engine.ApplyDelta(ctx, id, money("-100.00"), ledger.EntryDeduction); err == nil {
		t.Fatal("expected overdraw to fail")
	}

	if len(pub.events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(pub.events))
	}
	got := pub.events[0]
	if got.EntryID != string(entry.ID) || got.AccountID != string(id) {
		t.Errorf("event references wrong entry: %+v", got)
	}
	if !got.Delta.Equal(money("5.00")) || got.Kind != string(ledger.EntryDeposit) {
		t.Errorf("event payload wrong: %+v", got)
	}
}
