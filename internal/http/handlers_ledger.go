package http

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"plata/internal/core"
)

type transactionResponse struct {
	ID          string  `json:"id"`
	Description string  `json:"description"`
	Type        string  `json:"type"`
	Amount      float64 `json:"amount"`
	Currency    string  `json:"currency"`
	CategoryID  string  `json:"category_id,omitempty"`
	WalletID    string  `json:"wallet_id,omitempty"`
	Date        string  `json:"date"`
	IsRecurring bool    `json:"is_recurring"`
	RecurringID string  `json:"recurring_id,omitempty"`
}

func (s *Server) handleListTransactions(w http.ResponseWriter, r *http.Request) {
	limit := parseLimit(r, 50, 500)

	txs, err := s.ledger.ListTransactions(r.Context(), limit)
	if err != nil {
		slog.ErrorContext(r.Context(), "Failed to list transactions", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to load transactions")
		return
	}

	out := make([]transactionResponse, len(txs))
	for i, tx := range txs {
		out[i] = transactionResponse{
			ID:          tx.ID,
			Description: tx.Description,
			Type:        string(tx.Type),
			Amount:      tx.Amount.Units(),
			Currency:    tx.Currency,
			CategoryID:  tx.CategoryID,
			WalletID:    tx.WalletID,
			Date:        tx.Date.Format(time.RFC3339),
			IsRecurring: tx.IsRecurring,
			RecurringID: tx.RecurringID,
		}
	}
	writeJSON(w, http.StatusOK, out)
}

type walletRequest struct {
	Name     string `json:"name"`
	Provider string `json:"provider"`
	Currency string `json:"currency"`
}

func (s *Server) handleListWallets(w http.ResponseWriter, r *http.Request) {
	wallets, err := s.ledger.ListWallets(r.Context())
	if err != nil {
		slog.ErrorContext(r.Context(), "Failed to list wallets", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to load wallets")
		return
	}
	writeJSON(w, http.StatusOK, wallets)
}

func (s *Server) handleCreateWallet(w http.ResponseWriter, r *http.Request) {
	var req walletRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	wallet := core.Wallet{
		ID:        uuid.NewString(),
		Name:      sanitizeInput(req.Name),
		Provider:  sanitizeInput(req.Provider),
		Currency:  sanitizeInput(req.Currency),
		CreatedAt: s.clock(),
	}
	if wallet.Name == "" {
		writeError(w, http.StatusBadRequest, "wallet name is required")
		return
	}

	if err := s.ledger.CreateWallet(r.Context(), wallet); err != nil {
		slog.ErrorContext(r.Context(), "Failed to create wallet", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to create wallet")
		return
	}
	writeJSON(w, http.StatusCreated, wallet)
}

type categoryRequest struct {
	Name  string `json:"name"`
	Type  string `json:"type"`
	Color string `json:"color"`
	Icon  string `json:"icon"`
}

func (s *Server) handleListCategories(w http.ResponseWriter, r *http.Request) {
	categories, err := s.ledger.ListCategories(r.Context())
	if err != nil {
		slog.ErrorContext(r.Context(), "Failed to list categories", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to load categories")
		return
	}
	writeJSON(w, http.StatusOK, categories)
}

func (s *Server) handleCreateCategory(w http.ResponseWriter, r *http.Request) {
	var req categoryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	category := core.Category{
		ID:        uuid.NewString(),
		Name:      sanitizeInput(req.Name),
		Type:      core.TransactionType(req.Type),
		Color:     sanitizeInput(req.Color),
		Icon:      sanitizeInput(req.Icon),
		CreatedAt: s.clock(),
	}
	if category.Name == "" {
		writeError(w, http.StatusBadRequest, "category name is required")
		return
	}
	if !category.Type.Valid() {
		writeError(w, http.StatusBadRequest, "invalid category type")
		return
	}

	if err := s.ledger.CreateCategory(r.Context(), category); err != nil {
		slog.ErrorContext(r.Context(), "Failed to create category", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to create category")
		return
	}
	writeJSON(w, http.StatusCreated, category)
}
