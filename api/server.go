/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

ROUTER: chi
  Chi was chosen for:
  - Lightweight and fast
  - Context-based
  - Middleware support
  - RESTful route patterns

MIDDLEWARE STACK:
  1. Logger:     Request logging
  2. Recoverer:  Panic recovery (500 instead of crash)
  3. RequestID:  Unique ID per request for tracing
  4. CORS:       Cross-origin requests for frontend

ROUTE GROUPS:
  /api/users/*     Members and earnings
  /api/parts/*     Spare part catalog and stock
  /api/vehicles/*  Vehicle intake and estimates
  /api/orders/*    Service order state machine
  /api/tasks/*     Task lifecycle
  /api/debts/*     Debt ledger and reminders

SECURITY NOTE:
  No authentication middleware. The engine consumes the resolved actor
  identity from X-Actor-ID / X-Actor-Role headers; authentication itself is
  an external collaborator (reverse proxy, gateway).

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
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:5173", "http://localhost:8080"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Actor-ID", "X-Actor-Role"},
		AllowCredentials: true,
	}))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api", func(r chi.Router) {
		// User routes
		r.Route("/users", func(r chi.Router) {
			r.Get("/", h.ListUsers)
			r.Post("/", h.CreateUser)
			r.Get("/{id}", h.GetUser)
			r.Get("/{id}/tasks", h.ListUserTasks)
			r.Post("/{id}/earnings/recompute", h.RecomputeEarnings)
		})

		// Spare part routes
		r.Route("/parts", func(r chi.Router) {
			r.Get("/", h.ListParts)
			r.Post("/", h.CreatePart)
			r.Get("/search", h.SearchParts)
			r.Get("/{id}", h.GetPart)
			r.Put("/{id}", h.UpdatePart)
			r.Delete("/{id}", h.DeactivatePart)
			r.Post("/{id}/consume", h.ConsumePart)
			r.Post("/{id}/restock", h.RestockPart)
		})

		// Vehicle routes
		r.Route("/vehicles", func(r chi.Router) {
			r.Get("/", h.ListVehicles)
			r.Post("/", h.CreateVehicle)
			r.Get("/{id}", h.GetVehicle)
			r.Delete("/{id}", h.DeleteVehicle)
			r.Put("/{id}/line-items", h.SetVehicleLineItems)
			r.Get("/{id}/orders", h.ListVehicleOrders)
			r.Get("/{id}/tasks", h.ListVehicleTasks)
		})

		// Service order routes
		r.Route("/orders", func(r chi.Router) {
			r.Post("/", h.CreateOrder)
			r.Get("/{id}", h.GetOrder)
			r.Put("/{id}/line-items", h.SetOrderLineItems)
			r.Post("/{id}/used-parts", h.AddUsedParts)
			r.Post("/{id}/approve", h.ApproveOrder)
			r.Post("/{id}/reject", h.RejectOrder)
			r.Post("/{id}/restart", h.RestartOrder)
		})

		// Task routes
		r.Route("/tasks", func(r chi.Router) {
			r.Post("/", h.CreateTask)
			r.Get("/{id}", h.GetTask)
			r.Put("/{id}/status", h.UpdateTaskStatus)
			r.Post("/{id}/approve", h.ApproveTask)
		})

		// Debt routes
		r.Route("/debts", func(r chi.Router) {
			r.Get("/", h.ListDebts)
			r.Post("/", h.CreateDebt)
			r.Get("/upcoming", h.UpcomingDebts)
			r.Get("/{id}", h.GetDebt)
			r.Post("/{id}/payments", h.RecordPayment)
		})
	})

	return r
}
