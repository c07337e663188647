package middleware

import (
	"crypto/subtle"
	"net/http"

	"github.com/railbird/handreel/internal/api/response"
	"github.com/railbird/handreel/internal/dispatch"
)

// InternalAuth guards the queue-invoked surface with a shared token.
// These endpoints are never exposed publicly; the token only keeps a
// misrouted or replayed request from driving the pipeline.
type InternalAuth struct {
	token string
}

// NewInternalAuth creates an InternalAuth checking the given token.
func NewInternalAuth(token string) *InternalAuth {
	return &InternalAuth{token: token}
}

// Authenticate requires the internal token header to match.
func (ia *InternalAuth) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got := r.Header.Get(dispatch.InternalTokenHeader)
		if got == "" || subtle.ConstantTimeCompare([]byte(got), []byte(ia.token)) != 1 {
			response.Error(w, http.StatusUnauthorized,
				"INVALID_TOKEN", "Missing or invalid internal token", nil)
			return
		}
		next.ServeHTTP(w, r)
	})
}
