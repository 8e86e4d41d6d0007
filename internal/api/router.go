// Package api exposes the query service over HTTP.
package api

import (
	"context"
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/shivortex/lead-scraper/internal/model"
	"github.com/shivortex/lead-scraper/internal/query"
)

// LeadService is the query surface the handlers need. *query.Service
// implements it.
type LeadService interface {
	ListLeads(ctx context.Context, params url.Values) (*query.Page, error)
	GetLead(ctx context.Context, id int64) (*model.Lead, error)
	HealthCheck(ctx context.Context) error
}

// Options configures the router.
type Options struct {
	// AllowedOrigins for CORS. Empty means any origin.
	AllowedOrigins []string
	// Logger for access and error logs. Defaults to zap.L().
	Logger *zap.Logger
}

// NewRouter builds the HTTP handler for the lead API.
func NewRouter(svc LeadService, opts Options) http.Handler {
	origins := opts.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	log := opts.Logger
	if log == nil {
		log = zap.L()
	}
	log = log.With(zap.String("component", "api"))

	h := &handlers{svc: svc, log: log}

	r := chi.NewRouter()
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-Id"},
		ExposedHeaders: []string{"X-Request-Id"},
		MaxAge:         300,
	}))
	r.Use(middleware.RequestID)
	r.Use(requestIDHeader)
	r.Use(accessLog(log))
	r.Use(middleware.Recoverer)

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeDetail(w, http.StatusNotFound, "Not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeDetail(w, http.StatusMethodNotAllowed, "Method not allowed")
	})

	r.Get("/", h.root)
	r.Get("/health", h.health)
	r.Get("/leads", h.listLeads)
	r.Get("/leads/{id}", h.getLead)

	return r
}
