/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. RequestID:  Unique ID per request for tracing
  2. Logger:     Request logging
  3. Recoverer:  Panic recovery (500 instead of crash)
  4. CORS:       Cross-origin requests for frontend

ROUTE GROUPS:
  /api/users/*          Accounts, locks, schedules, payouts, funding, banks
  /api/admin/*          Operational endpoints (due-payout sweep)
  /healthz              Liveness probe

SEE ALSO:
  - handlers.go: Handler implementations
  - cmd/server/main.go: Server startup
*/
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler) *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:5173", "http://localhost:8080"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	// API routes
	r.Route("/api", func(r chi.Router) {
		r.Route("/users", func(r chi.Router) {
			r.Post("/", h.CreateUser)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", h.GetUser)
				r.Get("/balance", h.GetBalance)

				r.Route("/locks", func(r chi.Router) {
					r.Get("/", h.ListLocks)
					r.Post("/", h.CreateLock)
					r.Get("/upcoming", h.GetUpcomingUnlocks)
					r.Get("/{lockId}", h.GetLock)
				})

				r.Route("/schedules", func(r chi.Router) {
					r.Get("/", h.ListSchedules)
					r.Post("/", h.CreateSchedule)
					r.Get("/{scheduleId}", h.GetSchedule)
					r.Put("/{scheduleId}", h.UpdateSchedule)
					r.Delete("/{scheduleId}", h.DeleteSchedule)
				})

				r.Route("/payouts", func(r chi.Router) {
					r.Get("/", h.ListPayouts)
					r.Post("/{itemId}/complete", h.CompletePayout)
				})

				r.Post("/deposits", h.InitiateDeposit)
				r.Post("/deposits/complete", h.CompleteDeposit)
				r.Post("/withdrawals", h.Withdraw)
				r.Get("/transactions", h.ListTransactions)
				r.Get("/transactions/{txId}", h.GetTransaction)

				r.Route("/banks", func(r chi.Router) {
					r.Get("/", h.ListBanks)
					r.Post("/", h.AddBank)
					r.Post("/{bankId}/default", h.SetDefaultBank)
					r.Delete("/{bankId}", h.DeleteBank)
				})

				r.Get("/stats", h.GetStats)
				r.Post("/impulse", h.TrackImpulse)
				r.Put("/goal", h.SetGoal)
			})
		})

		// Admin routes
		r.Route("/admin", func(r chi.Router) {
			r.Post("/scan", h.TriggerScan)
		})
	})

	return r
}
