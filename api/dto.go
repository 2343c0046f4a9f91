/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. Request payloads are
  explicit typed structures validated at the boundary before reaching the
  core; no dynamic maps cross into the engine.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

SEE ALSO:
  - handlers.go: Uses these types
*/
package api

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// =============================================================================
// RESPONSE TYPES
// =============================================================================

// BookDTO represents a catalog item in API responses.
type BookDTO struct {
	ID    string `json:"id"`
	Title string `json:"title"`
	Price string `json:"price"`
}

// AccountDTO represents an account in API responses.
type AccountDTO struct {
	ID        string `json:"id"`
	OwnerID   string `json:"owner_id"`
	Balance   string `json:"balance"`
	CreatedAt string `json:"created_at,omitempty"`
}

// EntryDTO represents one audit record.
type EntryDTO struct {
	ID        string `json:"id"`
	AccountID string `json:"account_id"`
	Delta     string `json:"delta"`
	Kind      string `json:"kind"`
	CreatedAt string `json:"created_at"`
}

// BalanceDTO is the response of the balance endpoint.
type BalanceDTO struct {
	AccountID string `json:"account_id"`
	Balance   string `json:"balance"`
}

// BuyResponse echoes the basket and its total cost.
type BuyResponse struct {
	PurchaseID string   `json:"purchase_id"`
	BookIDs    []string `json:"book_ids"`
	TotalCost  string   `json:"total_cost"`
	EntryID    string   `json:"entry_id"`
}

// ErrorResponse is the uniform error envelope.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// =============================================================================
// REQUEST TYPES
// =============================================================================

// CreateAccountRequest registers an account for an owner.
type CreateAccountRequest struct {
	OwnerID string          `json:"owner_id"`
	Balance decimal.Decimal `json:"balance"`
}

func (r CreateAccountRequest) Validate() error {
	if r.OwnerID == "" {
		return fmt.Errorf("owner_id is required")
	}
	if r.Balance.IsNegative() {
		return fmt.Errorf("balance must not be negative")
	}
	return nil
}

// DepositRequest credits an account.
type DepositRequest struct {
	Amount decimal.Decimal `json:"amount"`
}

// BuyRequest purchases an ordered basket of books.
type BuyRequest struct {
	AccountID string   `json:"account_id"`
	BookIDs   []string `json:"book_ids"`
}

func (r BuyRequest) Validate() error {
	if r.AccountID == "" {
		return fmt.Errorf("account_id is required")
	}
	if len(r.BookIDs) == 0 {
		return fmt.Errorf("book_ids must not be empty")
	}
	return nil
}
