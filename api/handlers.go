/*
handlers.go - HTTP handlers for the bookshop ledger

PURPOSE:
  Exposes the ledger engine and purchase coordinator via REST. Handles
  HTTP request/response and JSON serialization, delegates everything else
  to the domain packages.

ENDPOINTS:
  GET    /api/books                     List the catalog
  POST   /api/books/buy                 Purchase a basket of books
  GET    /api/accounts                  List accounts
  POST   /api/accounts                  Register an account
  GET    /api/accounts/{id}/balance     Current balance
  GET    /api/accounts/{id}/entries     Audit history
  POST   /api/accounts/{id}/deposit     Credit funds

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Invalid amount, malformed input
  - 402: Insufficient funds
  - 404: Unknown account, entry, or book
  - 409: Owner already has an account
  - 500: Internal errors

SECURITY NOTE:
  The identity layer sitting in front of this API supplies a trusted
  account id; no authentication happens here.

SEE ALSO:
  - dto.go: Request/response data structures
  - server.go: Router setup and middleware
*/
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/meridian/bookledger/catalog"
	"github.com/meridian/bookledger/ledger"
	"github.com/meridian/bookledger/purchase"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Accounts    ledger.AccountStore
	Engine      *ledger.Engine
	Catalog     catalog.Lookup
	Coordinator *purchase.Coordinator
}

// NewHandler wires the handler with its collaborators.
func NewHandler(accounts ledger.AccountStore, engine *ledger.Engine, lookup catalog.Lookup, coordinator *purchase.Coordinator) *Handler {
	return &Handler{
		Accounts:    accounts,
		Engine:      engine,
		Catalog:     lookup,
		Coordinator: coordinator,
	}
}

// =============================================================================
// CATALOG HANDLERS
// =============================================================================

// ListBooks returns the full catalog.
func (h *Handler) ListBooks(w http.ResponseWriter, r *http.Request) {
	items, err := h.Catalog.List(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list books", err)
		return
	}

	dtos := make([]BookDTO, len(items))
	for i, item := range items {
		dtos[i] = BookDTO{
			ID:    item.ID,
			Title: item.Title,
			Price: item.Price.StringFixed(2),
		}
	}
	writeJSON(w, http.StatusOK, dtos)
}

// BuyBooks purchases an ordered basket against an account.
func (h *Handler) BuyBooks(w http.ResponseWriter, r *http.Request) {
	var req BuyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if err := req.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, "Validation failed", err)
		return
	}

	receipt, err := h.Coordinator.Purchase(r.Context(), ledger.AccountID(req.AccountID), req.BookIDs)
	if err != nil {
		writeDomainError(w, "Purchase failed", err)
		return
	}

	writeJSON(w, http.StatusCreated, BuyResponse{
		PurchaseID: receipt.PurchaseID,
		BookIDs:    receipt.ItemIDs,
		TotalCost:  receipt.TotalCost.StringFixed(2),
		EntryID:    string(receipt.Entry.ID),
	})
}

// =============================================================================
// ACCOUNT HANDLERS
// =============================================================================

// ListAccounts returns all accounts.
func (h *Handler) ListAccounts(w http.ResponseWriter, r *http.Request) {
	accounts, err := h.Accounts.ListAccounts(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list accounts", err)
		return
	}

	dtos := make([]AccountDTO, len(accounts))
	for i, a := range accounts {
		dtos[i] = accountDTO(a)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// CreateAccount registers an account for an owner.
func (h *Handler) CreateAccount(w http.ResponseWriter, r *http.Request) {
	var req CreateAccountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if err := req.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, "Validation failed", err)
		return
	}

	account := ledger.Account{
		ID:        ledger.NewAccountID(),
		OwnerID:   ledger.OwnerID(req.OwnerID),
		Balance:   req.Balance,
		CreatedAt: time.Now().UTC(),
	}
	if err := h.Accounts.CreateAccount(r.Context(), account); err != nil {
		writeDomainError(w, "Failed to create account", err)
		return
	}

	writeJSON(w, http.StatusCreated, accountDTO(account))
}

// GetBalance returns the current balance.
func (h *Handler) GetBalance(w http.ResponseWriter, r *http.Request) {
	id := ledger.AccountID(chi.URLParam(r, "id"))

	balance, err := h.Engine.Balance(r.Context(), id)
	if err != nil {
		writeDomainError(w, "Failed to get balance", err)
		return
	}

	writeJSON(w, http.StatusOK, BalanceDTO{
		AccountID: string(id),
		Balance:   balance.StringFixed(2),
	})
}

// ListEntries returns the account's audit history in commit order.
func (h *Handler) ListEntries(w http.ResponseWriter, r *http.Request) {
	id := ledger.AccountID(chi.URLParam(r, "id"))

	// Existence check so an unknown account is a 404, not an empty list.
	if _, err := h.Accounts.GetAccount(r.Context(), id); err != nil {
		writeDomainError(w, "Failed to list entries", err)
		return
	}

	entries, err := h.Engine.Entries(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list entries", err)
		return
	}

	dtos := make([]EntryDTO, len(entries))
	for i, e := range entries {
		dtos[i] = EntryDTO{
			ID:        string(e.ID),
			AccountID: string(e.AccountID),
			Delta:     e.Delta.StringFixed(2),
			Kind:      string(e.Kind),
			CreatedAt: e.CreatedAt.Format(time.RFC3339),
		}
	}
	writeJSON(w, http.StatusOK, dtos)
}

// Deposit credits funds to an account.
func (h *Handler) Deposit(w http.ResponseWriter, r *http.Request) {
	id := ledger.AccountID(chi.URLParam(r, "id"))

	var req DepositRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	entry, err := h.Engine.Deposit(r.Context(), id, req.Amount)
	if err != nil {
		writeDomainError(w, "Deposit failed", err)
		return
	}

	writeJSON(w, http.StatusCreated, EntryDTO{
		ID:        string(entry.ID),
		AccountID: string(entry.AccountID),
		Delta:     entry.Delta.StringFixed(2),
		Kind:      string(entry.Kind),
		CreatedAt: entry.CreatedAt.Format(time.RFC3339),
	})
}

// =============================================================================
// HELPERS
// =============================================================================

func accountDTO(a ledger.Account) AccountDTO {
	return AccountDTO{
		ID:        string(a.ID),
		OwnerID:   string(a.OwnerID),
		Balance:   a.Balance.StringFixed(2),
		CreatedAt: a.CreatedAt.Format(time.RFC3339),
	}
}

// writeDomainError maps the ledger error taxonomy onto HTTP status codes.
func writeDomainError(w http.ResponseWriter, message string, err error) {
	switch {
	case errors.Is(err, ledger.ErrInvalidAmount):
		writeError(w, http.StatusBadRequest, message, err)
	case errors.Is(err, ledger.ErrInsufficientFunds):
		writeError(w, http.StatusPaymentRequired, message, err)
	case errors.Is(err, ledger.ErrOwnerHasAccount):
		writeError(w, http.StatusConflict, message, err)
	case ledger.IsNotFound(err):
		writeError(w, http.StatusNotFound, message, err)
	default:
		writeError(w, http.StatusInternalServerError, message, err)
	}
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}
