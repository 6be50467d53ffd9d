package routes

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/koroglumert/oneuptimelocal-sub000/app"
	"github.com/koroglumert/oneuptimelocal-sub000/middleware"
)

// SetupRoutes configures all application routes and middleware
func SetupRoutes(deps *app.Dependencies) http.Handler {
	r := chi.NewRouter()

	// Core middleware
	r.Use(middleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestLogger(deps.Logger))
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.Timeout(60 * time.Second))

	// CORS middleware
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"http://localhost:*", "https://*"},
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{
			"Accept", "Authorization", "Content-Type",
			middleware.ProjectIDHeader, middleware.MultiTenantHeader,
		},
		ExposedHeaders:   []string{middleware.RequestIDHeader},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Health check endpoints
	r.Get("/health", deps.HealthHandler.HandleHealth)
	r.Get("/health/ready", deps.HealthHandler.HandleReadiness)

	// Generic per-descriptor CRUD endpoints. The caller is resolved here;
	// anonymous callers pass through and the engine decides per descriptor.
	r.Route("/api/v1", func(r chi.Router) {
		r.Use(deps.AuthMiddleware.ResolveCaller)

		r.Post("/{table}/get-list", deps.CRUDHandler.HandleList)
		r.Post("/{table}/get-item/{id}", deps.CRUDHandler.HandleGet)
		r.Post("/{table}", deps.CRUDHandler.HandleCreate)
		r.Put("/{table}/{id}", deps.CRUDHandler.HandleUpdate)
		r.Delete("/{table}/{id}", deps.CRUDHandler.HandleDelete)
	})

	// 404 handler
	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error":"endpoint not found"}`))
	})

	return r
}
