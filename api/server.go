/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. Logger:     Request logging
  2. Recoverer:  Panic recovery (500 instead of crash)
  3. RequestID:  Unique ID per request for tracing
  4. CORS:       Cross-origin requests for the back-office UI
  5. Auth:       Tenant boundary on everything except /api/health

ROUTE GROUPS:
  /api/health             Liveness (no tenant)
  /api/commissions/*      Runs, records, export
  /api/grids|policies|sources|tiers  Data entry
  /api/scenarios/*        Demo datasets (optional)

SEE ALSO:
  - handlers.go: Handler implementations
  - auth.go: Tenant middleware
  - cmd/server/main.go: Server startup
*/
package api

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// RouterOptions toggles optional surfaces.
type RouterOptions struct {
	Auth           Auth
	AllowedOrigins []string
	Scenarios      bool
}

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler, opts RouterOptions) *chi.Mux {
	r := chi.NewRouter()

	origins := opts.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"http://localhost:5173", "http://localhost:8080"}
	}

	// Middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", TenantHeader},
		AllowCredentials: true,
	}))

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", h.Health)

		r.Group(func(r chi.Router) {
			r.Use(opts.Auth.Middleware)

			r.Route("/commissions", func(r chi.Router) {
				r.Post("/calculate", h.Calculate)
				r.Post("/sync", h.Sync)
				r.Get("/records", h.ListRecords)
				r.Get("/export.csv", h.ExportCSV)
			})

			r.Route("/grids", func(r chi.Router) {
				r.Get("/", h.ListGrids)
				r.Post("/", h.CreateGrid)
				r.Post("/tables", h.CreateGridTable)
			})

			r.Route("/policies", func(r chi.Router) {
				r.Get("/", h.ListPolicies)
				r.Post("/", h.CreatePolicy)
			})

			r.Route("/sources", func(r chi.Router) {
				r.Get("/", h.ListSources)
				r.Post("/", h.CreateSource)
			})

			r.Route("/tiers", func(r chi.Router) {
				r.Get("/", h.ListTiers)
				r.Post("/", h.CreateTier)
			})

			if opts.Scenarios {
				r.Route("/scenarios", func(r chi.Router) {
					r.Get("/", h.ListScenarios)
					r.Post("/load", h.LoadScenario)
				})
			}
		})
	})

	return r
}
