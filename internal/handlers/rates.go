package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/yameogogildas/transactions/internal/httputil"
	"github.com/yameogogildas/transactions/internal/models"
)

type RateRequest struct {
	SourceCurrency string          `json:"source_currency"`
	TargetCurrency string          `json:"target_currency"`
	Rate           decimal.Decimal `json:"rate"`
}

type RateResponse struct {
	ID             uint            `json:"id"`
	SourceCurrency string          `json:"source_currency"`
	TargetCurrency string          `json:"target_currency"`
	Rate           decimal.Decimal `json:"rate"`
	RecordedAt     time.Time       `json:"recorded_at"`
}

func toRateResponse(r models.ExchangeRate) RateResponse {
	return RateResponse{
		ID:             r.ID,
		SourceCurrency: r.SourceCurrency,
		TargetCurrency: r.TargetCurrency,
		Rate:           r.Rate,
		RecordedAt:     r.RecordedAt,
	}
}

func CreateRateHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := caller(w, r)
	if !ok {
		return
	}
	var req RateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	rate, err := Rates.Create(r.Context(), id, req.SourceCurrency, req.TargetCurrency, req.Rate)
	if err != nil {
		httputil.WriteAppError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, toRateResponse(*rate))
}

func ListRatesHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := caller(w, r)
	if !ok {
		return
	}
	list, err := Rates.List(r.Context(), id)
	if err != nil {
		httputil.WriteAppError(w, err)
		return
	}
	out := make([]RateResponse, 0, len(list))
	for _, rate := range list {
		out = append(out, toRateResponse(rate))
	}
	httputil.WriteJSON(w, http.StatusOK, out)
}

func UpdateRateHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := caller(w, r)
	if !ok {
		return
	}
	rateID, err := strconv.ParseUint(chi.URLParam(r, "id"), 10, 32)
	if err != nil {
		httputil.WriteError(w, http.StatusUnprocessableEntity, "invalid rate id")
		return
	}
	var req RateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	rate, err := Rates.Update(r.Context(), id, uint(rateID), req.SourceCurrency, req.TargetCurrency, req.Rate)
	if err != nil {
		httputil.WriteAppError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toRateResponse(*rate))
}

func DeleteRateHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := caller(w, r)
	if !ok {
		return
	}
	rateID, err := strconv.ParseUint(chi.URLParam(r, "id"), 10, 32)
	if err != nil {
		httputil.WriteError(w, http.StatusUnprocessableEntity, "invalid rate id")
		return
	}
	if err := Rates.Delete(r.Context(), id, uint(rateID)); err != nil {
		httputil.WriteAppError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
