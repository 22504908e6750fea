package handlers

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/yameogogildas/transactions/internal/httputil"
	"github.com/yameogogildas/transactions/internal/ledger"
	"github.com/yameogogildas/transactions/internal/models"
)

type CreateTransactionRequest struct {
	Amount         decimal.Decimal `json:"amount"`
	Currency       string          `json:"currency"`
	Service        string          `json:"service"`
	Number         string          `json:"number"`
	ExchangeRateID *uint           `json:"exchange_rate_id"`
}

// UpdateTransactionRequest is a field-level patch. exchange_rate_id is
// tri-state: absent leaves the reference alone, null clears it, a
// number rewires it.
type UpdateTransactionRequest struct {
	Amount         *decimal.Decimal `json:"amount"`
	Currency       *string          `json:"currency"`
	Service        *string          `json:"service"`
	Number         *string          `json:"number"`
	ExchangeRateID json.RawMessage  `json:"exchange_rate_id"`
}

type TransactionResponse struct {
	ID             uint            `json:"id"`
	UserID         uint            `json:"user_id"`
	Amount         decimal.Decimal `json:"amount"`
	Currency       string          `json:"currency"`
	Service        string          `json:"service"`
	Number         string          `json:"number"`
	Status         string          `json:"status"`
	ExchangeRateID *uint           `json:"exchange_rate_id,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
}

func toTransactionResponse(t models.Transaction) TransactionResponse {
	return TransactionResponse{
		ID:             t.ID,
		UserID:         t.UserID,
		Amount:         t.Amount,
		Currency:       t.Currency,
		Service:        t.Service,
		Number:         t.Number,
		Status:         t.Status,
		ExchangeRateID: t.ExchangeRateID,
		CreatedAt:      t.CreatedAt,
	}
}

func CreateTransactionHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := caller(w, r)
	if !ok {
		return
	}
	var req CreateTransactionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	t, err := Ledger.Create(r.Context(), id, ledger.CreateInput{
		Amount:         req.Amount,
		Currency:       req.Currency,
		Service:        req.Service,
		Number:         req.Number,
		ExchangeRateID: req.ExchangeRateID,
	})
	if err != nil {
		httputil.WriteAppError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, toTransactionResponse(*t))
}

func ListTransactionsHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := caller(w, r)
	if !ok {
		return
	}
	txs, err := Ledger.List(r.Context(), id)
	if err != nil {
		httputil.WriteAppError(w, err)
		return
	}
	out := make([]TransactionResponse, 0, len(txs))
	for _, t := range txs {
		out = append(out, toTransactionResponse(t))
	}
	httputil.WriteJSON(w, http.StatusOK, out)
}

func UpdateTransactionHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := caller(w, r)
	if !ok {
		return
	}
	txID, err := strconv.ParseUint(chi.URLParam(r, "id"), 10, 32)
	if err != nil {
		httputil.WriteError(w, http.StatusUnprocessableEntity, "invalid transaction id")
		return
	}
	var req UpdateTransactionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	in := ledger.UpdateInput{
		Amount:   req.Amount,
		Currency: req.Currency,
		Service:  req.Service,
		Number:   req.Number,
	}
	if req.ExchangeRateID != nil {
		in.SetExchangeRate = true
		if !bytes.Equal(bytes.TrimSpace(req.ExchangeRateID), []byte("null")) {
			var rateID uint
			if err := json.Unmarshal(req.ExchangeRateID, &rateID); err != nil {
				httputil.WriteError(w, http.StatusUnprocessableEntity, "invalid exchange_rate_id")
				return
			}
			in.ExchangeRateID = &rateID
		}
	}

	t, err := Ledger.Update(r.Context(), id, uint(txID), in)
	if err != nil {
		httputil.WriteAppError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toTransactionResponse(*t))
}

func DeleteTransactionHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := caller(w, r)
	if !ok {
		return
	}
	txID, err := strconv.ParseUint(chi.URLParam(r, "id"), 10, 32)
	if err != nil {
		httputil.WriteError(w, http.StatusUnprocessableEntity, "invalid transaction id")
		return
	}
	if err := Ledger.Delete(r.Context(), id, uint(txID)); err != nil {
		httputil.WriteAppError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// SetStatusHandler accepts either a numeric id or a transaction number
// in the path; one state machine serves both.
func SetStatusHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := caller(w, r)
	if !ok {
		return
	}
	var req struct {
		Status string `json:"status"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	// the path segment is either a numeric id or a transaction number
	keyParam := chi.URLParam(r, "id")
	var key ledger.Key
	if n, err := strconv.ParseUint(keyParam, 10, 32); err == nil {
		key = ledger.ByID(uint(n))
	} else {
		key = ledger.ByNumber(keyParam)
	}

	t, err := Ledger.SetStatus(r.Context(), id, key, req.Status)
	if err != nil {
		httputil.WriteAppError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toTransactionResponse(*t))
}

func ReceiptHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := caller(w, r)
	if !ok {
		return
	}
	txID, err := strconv.ParseUint(chi.URLParam(r, "id"), 10, 32)
	if err != nil {
		httputil.WriteError(w, http.StatusUnprocessableEntity, "invalid transaction id")
		return
	}
	pdf, err := Ledger.Receipt(r.Context(), id, uint(txID))
	if err != nil {
		httputil.WriteAppError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=receipt_%d.pdf", txID))
	w.Write(pdf)
}
