package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/railbird/handreel/internal/api/response"
)

// Pinger is anything with a health probe.
type Pinger interface {
	Ping(ctx context.Context) error
}

// NewHealthHandler returns an http.HandlerFunc for GET /api/v1/health.
// It reports per-dependency status and degrades to 503 when any
// dependency is unreachable.
func NewHealthHandler(db, redis Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		checks := map[string]string{
			"database": "ok",
			"redis":    "ok",
		}
		healthy := true

		if err := db.Ping(ctx); err != nil {
			checks["database"] = err.Error()
			healthy = false
		}
		if err := redis.Ping(ctx); err != nil {
			checks["redis"] = err.Error()
			healthy = false
		}

		if !healthy {
			response.Error(w, http.StatusServiceUnavailable, "UNHEALTHY", "Dependency check failed", checks)
			return
		}
		response.JSON(w, map[string]any{"status": "ok", "checks": checks})
	}
}
