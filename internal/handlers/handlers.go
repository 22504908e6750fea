package handlers

import (
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/yameogogildas/transactions/configs"
	"github.com/yameogogildas/transactions/internal/authz"
	"github.com/yameogogildas/transactions/internal/httputil"
	"github.com/yameogogildas/transactions/internal/ledger"
	"github.com/yameogogildas/transactions/internal/rates"
	"github.com/yameogogildas/transactions/internal/receipt"
	"github.com/yameogogildas/transactions/internal/report"
	"github.com/yameogogildas/transactions/internal/store"
)

var (
	Ledger  *ledger.Service
	Rates   *rates.Service
	Reports *report.Service
)

// Init wires the services against the shared store. Must run after
// configs.LoadConfig and store.NewDB.
func Init() {
	Ledger = ledger.NewService(store.DB, ledger.WithReceiptRenderer(receipt.NewPDFRenderer()))
	Rates = rates.NewService(store.DB)
	Reports = report.NewService(store.DB, report.Defaults{
		HighAmountThreshold: decimal.NewFromFloat(configs.AppConfig.Alerts.HighAmountThreshold),
		VelocityMax:         configs.AppConfig.Alerts.VelocityMax,
		VelocityWindow:      configs.AppConfig.Alerts.VelocityWindow,
	})
}

// caller pulls the identity resolved by the auth middleware. A miss
// means the route was mounted without the middleware.
func caller(w http.ResponseWriter, r *http.Request) (authz.Identity, bool) {
	id, ok := authz.FromContext(r.Context())
	if !ok {
		httputil.WriteError(w, http.StatusUnauthorized, "unauthenticated")
	}
	return id, ok
}
