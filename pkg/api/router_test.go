package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hpc-io/pdc-sub004/pkg/cache"
	"github.com/hpc-io/pdc-sub004/pkg/metrics"
	"github.com/hpc-io/pdc-sub004/pkg/payload"
	"github.com/hpc-io/pdc-sub004/pkg/transfer"
)

type stubService struct{}

func (stubService) Rank() int                                       { return 0 }
func (stubService) Flush(context.Context, uint64) error             { return nil }
func (stubService) FlushAll(context.Context) error                  { return nil }
func (stubService) SubmitFlush(context.Context, uint64) (uint64, error) { return 1, nil }
func (stubService) Check(uint64) (transfer.Status, error) { return transfer.StatusComplete, nil }
func (stubService) Stats() payload.Stats                            { return payload.Stats{} }
func (stubService) CacheStats() cache.Stats                         { return cache.Stats{} }
func (stubService) QueueStats() transfer.QueueStats                 { return transfer.QueueStats{} }

func serve(h http.Handler, method, target string, header http.Header) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, nil)
	for k, v := range header {
		req.Header[k] = v
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestRouterRoutes(t *testing.T) {
	h := NewRouter(stubService{})

	tests := []struct {
		method string
		target string
		code   int
	}{
		{http.MethodGet, "/health", http.StatusOK},
		{http.MethodGet, "/health/ready", http.StatusOK},
		{http.MethodGet, "/v1/cache/stats", http.StatusOK},
		{http.MethodPost, "/v1/cache/flush", http.StatusOK},
		{http.MethodPost, "/v1/objects/4/flush", http.StatusOK},
		{http.MethodGet, "/v1/transfers/1", http.StatusOK},
		{http.MethodGet, "/v1/cache/flush", http.StatusMethodNotAllowed},
		{http.MethodGet, "/", http.StatusTemporaryRedirect},
		{http.MethodGet, "/nope", http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.method+" "+tt.target, func(t *testing.T) {
			rec := serve(h, tt.method, tt.target, nil)
			assert.Equal(t, tt.code, rec.Code)
		})
	}
}

func TestRouterWithoutService(t *testing.T) {
	h := NewRouter(nil)

	assert.Equal(t, http.StatusOK, serve(h, http.MethodGet, "/health", nil).Code)
	assert.Equal(t, http.StatusServiceUnavailable, serve(h, http.MethodGet, "/health/ready", nil).Code)
	assert.Equal(t, http.StatusNotFound, serve(h, http.MethodGet, "/v1/cache/stats", nil).Code)
}

func TestRequestID(t *testing.T) {
	h := NewRouter(nil)

	t.Run("Generated", func(t *testing.T) {
		rec := serve(h, http.MethodGet, "/health", nil)
		assert.Len(t, rec.Header().Get(RequestIDHeader), 36)
	})

	t.Run("Propagated", func(t *testing.T) {
		rec := serve(h, http.MethodGet, "/health", http.Header{RequestIDHeader: {"abc-123"}})
		assert.Equal(t, "abc-123", rec.Header().Get(RequestIDHeader))
	})
}

func TestMetricsEndpoint(t *testing.T) {
	metrics.Reset()
	t.Cleanup(metrics.Reset)
	h := NewRouter(nil)

	assert.Equal(t, http.StatusNotFound, serve(h, http.MethodGet, "/metrics", nil).Code)

	metrics.InitRegistry()
	rec := serve(h, http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), "go_goroutines"))
}

func TestServerStop(t *testing.T) {
	srv := NewServer(APIConfig{}, nil)
	assert.Equal(t, 8080, srv.Port())

	// Stop before Start is allowed and idempotent.
	require.NoError(t, srv.Stop(context.Background()))
	require.NoError(t, srv.Stop(context.Background()))
}

func TestAPIConfigDefaults(t *testing.T) {
	var cfg APIConfig
	assert.True(t, cfg.IsEnabled())

	cfg.ApplyDefaults()
	assert.Equal(t, 8080, cfg.Port)
	assert.NotZero(t, cfg.ReadTimeout)
	assert.NotZero(t, cfg.WriteTimeout)
	assert.NotZero(t, cfg.IdleTimeout)

	off := false
	cfg = APIConfig{Enabled: &off, Port: 9000}
	cfg.ApplyDefaults()
	assert.False(t, cfg.IsEnabled())
	assert.Equal(t, 9000, cfg.Port)
}
