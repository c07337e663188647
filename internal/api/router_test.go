package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	mw "github.com/railbird/handreel/internal/api/middleware"
	"github.com/railbird/handreel/internal/dispatch"
	"github.com/railbird/handreel/internal/store/storetest"
	"github.com/railbird/handreel/pkg/models"
)

const (
	testAPIKey        = "hrk_12345678abcdef"
	testInternalToken = "internal-secret"
)

type countingCache struct {
	mu     sync.Mutex
	counts map[string]int64
}

func (c *countingCache) Set(context.Context, string, []byte, time.Duration) error { return nil }
func (c *countingCache) Get(context.Context, string) ([]byte, bool, error)        { return nil, false, nil }
func (c *countingCache) Delete(context.Context, string) error                     { return nil }
func (c *countingCache) Ping(context.Context) error                               { return nil }
func (c *countingCache) SetJobStatus(context.Context, uuid.UUID, []byte, time.Duration) error {
	return nil
}
func (c *countingCache) GetJobStatus(context.Context, uuid.UUID) ([]byte, bool, error) {
	return nil, false, nil
}
func (c *countingCache) IncrWithExpiry(_ context.Context, key string, _ time.Duration) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.counts == nil {
		c.counts = make(map[string]int64)
	}
	c.counts[key]++
	return c.counts[key], nil
}
func (c *countingCache) Close() error { return nil }

func okHandler(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
}

func newTestRouter(t *testing.T) http.Handler {
	t.Helper()

	st := storetest.New()
	hash, err := bcrypt.GenerateFromPassword([]byte(testAPIKey), bcrypt.MinCost)
	require.NoError(t, err)
	prefix := testAPIKey[:8]
	st.Keys[prefix] = []*models.APIKey{{
		ID:        uuid.New(),
		Name:      "test",
		KeyHash:   string(hash),
		KeyPrefix: prefix,
		CreatedAt: time.Now().UTC(),
	}}

	return NewRouter(Dependencies{
		Auth:               mw.NewAuth(st),
		InternalAuth:       mw.NewInternalAuth(testInternalToken),
		RateLimit:          mw.NewRateLimit(&countingCache{}, 60),
		HealthHandler:      okHandler,
		AnalyzeHandler:     okHandler,
		AnalyzeYouTube:     okHandler,
		StatusHandler:      okHandler,
		AnalyzeSegment:     okHandler,
		AnalyzePhase2Batch: okHandler,
	})
}

func TestRouterHealthIsPublic(t *testing.T) {
	router := newTestRouter(t)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/health", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRouterPublicRoutesRequireAPIKey(t *testing.T) {
	router := newTestRouter(t)

	tests := []struct {
		method string
		path   string
	}{
		{http.MethodPost, "/api/v1/analyze"},
		{http.MethodPost, "/api/v1/analyze-youtube"},
		{http.MethodGet, "/api/v1/status/" + uuid.NewString()},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, httptest.NewRequest(tt.method, tt.path, nil))
			assert.Equal(t, http.StatusUnauthorized, rec.Code)

			req := httptest.NewRequest(tt.method, tt.path, nil)
			req.Header.Set("Authorization", "Bearer "+testAPIKey)
			rec = httptest.NewRecorder()
			router.ServeHTTP(rec, req)
			assert.Equal(t, http.StatusOK, rec.Code)
		})
	}
}

func TestRouterRejectsWrongAPIKey(t *testing.T) {
	router := newTestRouter(t)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/analyze", nil)
	req.Header.Set("Authorization", "Bearer hrk_12345678wrong")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRouterInternalRoutesRequireToken(t *testing.T) {
	router := newTestRouter(t)

	for _, path := range []string{"/internal/v1/analyze-segment", "/internal/v1/analyze-phase2-batch"} {
		t.Run(path, func(t *testing.T) {
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, path, nil))
			assert.Equal(t, http.StatusUnauthorized, rec.Code)

			req := httptest.NewRequest(http.MethodPost, path, nil)
			req.Header.Set(dispatch.InternalTokenHeader, "wrong")
			rec = httptest.NewRecorder()
			router.ServeHTTP(rec, req)
			assert.Equal(t, http.StatusUnauthorized, rec.Code)

			req = httptest.NewRequest(http.MethodPost, path, nil)
			req.Header.Set(dispatch.InternalTokenHeader, testInternalToken)
			rec = httptest.NewRecorder()
			router.ServeHTTP(rec, req)
			assert.Equal(t, http.StatusOK, rec.Code)
		})
	}
}

func TestRouterRateLimitHeaders(t *testing.T) {
	router := newTestRouter(t)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/analyze", nil)
	req.Header.Set("Authorization", "Bearer "+testAPIKey)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "60", rec.Header().Get("X-RateLimit-Limit"))
	assert.Equal(t, "59", rec.Header().Get("X-RateLimit-Remaining"))
}

func TestRouterRateLimitExceeded(t *testing.T) {
	st := storetest.New()
	hash, err := bcrypt.GenerateFromPassword([]byte(testAPIKey), bcrypt.MinCost)
	require.NoError(t, err)
	st.Keys[testAPIKey[:8]] = []*models.APIKey{{ID: uuid.New(), KeyHash: string(hash)}}

	router := NewRouter(Dependencies{
		Auth:           mw.NewAuth(st),
		InternalAuth:   mw.NewInternalAuth(testInternalToken),
		RateLimit:      mw.NewRateLimit(&countingCache{}, 2),
		AnalyzeHandler: okHandler,
	})

	for i := 0; i < 2; i++ {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/analyze", nil)
		req.Header.Set("Authorization", "Bearer "+testAPIKey)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code)
	}

	req := httptest.NewRequest(http.MethodPost, "/api/v1/analyze", nil)
	req.Header.Set("Authorization", "Bearer "+testAPIKey)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "60", rec.Header().Get("Retry-After"))
}
