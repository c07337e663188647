package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	mw "github.com/railbird/handreel/internal/api/middleware"
	"github.com/railbird/handreel/internal/api/response"
	"github.com/railbird/handreel/internal/orchestrator"
)

// Dependencies holds all handler and middleware dependencies for the router.
type Dependencies struct {
	Auth         *mw.Auth
	InternalAuth *mw.InternalAuth
	RateLimit    *mw.RateLimit

	HealthHandler      http.HandlerFunc
	MetricsHandler     http.Handler
	AnalyzeHandler     http.HandlerFunc
	AnalyzeYouTube     http.HandlerFunc
	StatusHandler      http.HandlerFunc
	AnalyzeSegment     http.HandlerFunc
	AnalyzePhase2Batch http.HandlerFunc
}

// NewRouter builds the Chi router with middleware stack and all routes.
func NewRouter(deps Dependencies) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(mw.Logger)
	r.Use(mw.Recovery)

	// Unauthenticated surface
	r.Get("/api/v1/health", orNotImplemented(deps.HealthHandler))
	if deps.MetricsHandler != nil {
		r.Handle("/metrics", deps.MetricsHandler)
	}

	// Public routes
	r.Group(func(r chi.Router) {
		r.Use(deps.Auth.Authenticate)
		r.Use(deps.RateLimit.Limit)

		r.Post("/api/v1/analyze", orNotImplemented(deps.AnalyzeHandler))
		r.Post("/api/v1/analyze-youtube", orNotImplemented(deps.AnalyzeYouTube))
		r.Get("/api/v1/status/{jobID}", orNotImplemented(deps.StatusHandler))
	})

	// Queue-invoked routes
	r.Group(func(r chi.Router) {
		r.Use(deps.InternalAuth.Authenticate)

		r.Post(orchestrator.PathAnalyzeSegment, orNotImplemented(deps.AnalyzeSegment))
		r.Post(orchestrator.PathAnalyzePhase2Batch, orNotImplemented(deps.AnalyzePhase2Batch))
	})

	return r
}

// orNotImplemented returns the handler if non-nil, or a 501 placeholder.
func orNotImplemented(h http.HandlerFunc) http.HandlerFunc {
	if h != nil {
		return h
	}
	return func(w http.ResponseWriter, r *http.Request) {
		response.Error(w, http.StatusNotImplemented, "NOT_IMPLEMENTED", "Endpoint not yet implemented", nil)
	}
}
