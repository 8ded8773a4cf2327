package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github.com/hpc-io/pdc-sub004/internal/logger"
	"github.com/hpc-io/pdc-sub004/pkg/api/handlers"
	"github.com/hpc-io/pdc-sub004/pkg/metrics"
)

// RequestIDHeader carries the request correlation id in both directions.
const RequestIDHeader = "X-Request-Id"

// NewRouter creates and configures the chi router with all middleware and routes.
//
// Routes:
//   - GET /health - Liveness probe
//   - GET /health/ready - Readiness probe
//   - GET /metrics - Prometheus exposition (404 when metrics are disabled)
//   - GET /v1/cache/stats - Cache, engine and queue counters
//   - POST /v1/cache/flush - Flush every cached object
//   - POST /v1/objects/{id}/flush - Flush one object
//   - GET /v1/transfers/{id} - Asynchronous request status
//
// svc may be nil, in which case only the health and metrics routes are mounted.
func NewRouter(svc handlers.RegionService) http.Handler {
	r := chi.NewRouter()

	// Middleware stack - order matters
	r.Use(requestContext)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))

	healthHandler := handlers.NewHealthHandler(svc)
	r.Route("/health", func(r chi.Router) {
		r.Get("/", healthHandler.Liveness)
		r.Get("/ready", healthHandler.Readiness)
	})

	r.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
		metrics.Handler().ServeHTTP(w, r)
	})

	if svc != nil {
		cacheHandler := handlers.NewCacheHandler(svc)
		transferHandler := handlers.NewTransferHandler(svc)

		r.Route("/v1", func(r chi.Router) {
			r.Get("/cache/stats", cacheHandler.Stats)
			r.Post("/cache/flush", cacheHandler.FlushAll)
			r.Post("/objects/{id}/flush", cacheHandler.FlushObject)
			r.Get("/transfers/{id}", transferHandler.Check)
		})
	}

	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/health", http.StatusTemporaryRedirect)
	})

	return r
}

// requestContext attaches a LogContext to every request. A request id sent
// by the client is kept; otherwise a new one is generated.
func requestContext(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		lc := logger.NewLogContext(r.Method + " " + r.URL.Path)
		if id := r.Header.Get(RequestIDHeader); id != "" {
			lc.RequestID = id
		} else {
			lc.RequestID = uuid.NewString()
		}
		w.Header().Set(RequestIDHeader, lc.RequestID)

		ctx := logger.WithContext(r.Context(), lc)
		ctx = context.WithValue(ctx, middleware.RequestIDKey, lc.RequestID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// requestLogger logs request start at DEBUG and completion at INFO.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ctx := r.Context()

		logger.DebugCtx(ctx, "API request started",
			"method", r.Method,
			"path", r.URL.Path,
			"remote_addr", r.RemoteAddr,
		)

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		logger.InfoCtx(ctx, "API request completed",
			"method", r.Method,
			"path", r.URL.Path,
			logger.KeyStatus, ww.Status(),
			logger.KeyBytes, ww.BytesWritten(),
			logger.KeyDurationMs, logger.Duration(start),
		)
	})
}
