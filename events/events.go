// Package events defines the outbound event contract for committed ledger
// entries. Publishing is best-effort: a failed publish never fails the
// transaction that produced the event.
package events

import (
	"time"

	"github.com/shopspring/decimal"
)

// TopicEntryCommitted is the topic every commit event is published to.
const TopicEntryCommitted = "ledger.entry.committed"

// EntryCommitted is emitted after a ledger entry and its balance write
// have durably committed.
type EntryCommitted struct {
	EntryID    string          `json:"entry_id"`
	AccountID  string          `json:"account_id"`
	Delta      decimal.Decimal `json:"delta"`
	Kind       string          `json:"kind"`
	OccurredAt time.Time       `json:"occurred_at"`
}

// Publisher delivers events to an external system.
type Publisher interface {
	Publish(topic string, event any) error
}

// Nop discards events. The default when no broker is configured.
type Nop struct{}

func (Nop) Publish(string, any) error { return nil }
