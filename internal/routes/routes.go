package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	httpSwagger "github.com/swaggo/http-swagger"

	"github.com/yameogogildas/transactions/internal/handlers"
	appmw "github.com/yameogogildas/transactions/internal/middleware"
)

func NewRoutes() *chi.Mux {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status":"ok"}`))
	})

	r.Post("/auth/register", handlers.RegisterHandler)
	r.Post("/auth/login", handlers.LoginHandler)
	r.Post("/auth/refresh", handlers.RefreshHandler)

	r.Group(func(r chi.Router) {
		r.Use(appmw.Authenticated)

		r.Get("/me", handlers.MeHandler)

		r.Route("/transactions", func(r chi.Router) {
			r.Get("/", handlers.ListTransactionsHandler)
			r.Post("/", handlers.CreateTransactionHandler)
			r.Put("/{id}", handlers.UpdateTransactionHandler)
			r.Delete("/{id}", handlers.DeleteTransactionHandler)
			r.Patch("/{id}/status", handlers.SetStatusHandler)
			r.Get("/{id}/receipt", handlers.ReceiptHandler)
		})

		r.Route("/rates", func(r chi.Router) {
			r.Get("/", handlers.ListRatesHandler)
			r.Post("/", handlers.CreateRateHandler)
			r.Put("/{id}", handlers.UpdateRateHandler)
			r.Delete("/{id}", handlers.DeleteRateHandler)
		})

		r.Get("/supervision/summary", handlers.SupervisionSummaryHandler)
		r.Get("/alerts", handlers.ListAlertsHandler)
		r.Get("/alerts/recorded", handlers.RecordedAlertsHandler)
	})

	r.Get("/swagger/*", httpSwagger.WrapHandler)

	return r
}
