package handlers

import (
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"github.com/yameogogildas/transactions/internal/httputil"
	"github.com/yameogogildas/transactions/internal/report"
)

func SupervisionSummaryHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := caller(w, r)
	if !ok {
		return
	}
	summary, err := Reports.Summary(r.Context(), id)
	if err != nil {
		httputil.WriteAppError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, summary)
}

// ListAlertsHandler recomputes the alert findings. Query params:
// threshold (amount), window (Go duration), record (persist findings).
func ListAlertsHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := caller(w, r)
	if !ok {
		return
	}

	opts := report.Options{}
	if v := r.URL.Query().Get("threshold"); v != "" {
		threshold, err := decimal.NewFromString(v)
		if err != nil {
			httputil.WriteError(w, http.StatusUnprocessableEntity, "invalid threshold")
			return
		}
		opts.Threshold = &threshold
	}
	if v := r.URL.Query().Get("window"); v != "" {
		window, err := time.ParseDuration(v)
		if err != nil || window <= 0 {
			httputil.WriteError(w, http.StatusUnprocessableEntity, "invalid window")
			return
		}
		opts.Window = &window
	}
	opts.Record = r.URL.Query().Get("record") == "true"

	findings, err := Reports.Alerts(r.Context(), id, opts)
	if err != nil {
		httputil.WriteAppError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, findings)
}

func RecordedAlertsHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := caller(w, r)
	if !ok {
		return
	}
	alerts, err := Reports.Recorded(r.Context(), id)
	if err != nil {
		httputil.WriteAppError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, alerts)
}
