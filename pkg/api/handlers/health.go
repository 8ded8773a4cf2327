package handlers

import "net/http"

// HealthHandler handles health check endpoints.
type HealthHandler struct {
	svc RegionService
}

// NewHealthHandler creates a health handler. svc may be nil, in which case
// the readiness probe fails.
func NewHealthHandler(svc RegionService) *HealthHandler {
	return &HealthHandler{svc: svc}
}

// Liveness handles GET /health. It succeeds while the process serves HTTP.
func (h *HealthHandler) Liveness(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, healthyResponse(map[string]string{
		"service": "pdcd",
	}))
}

// Readiness handles GET /health/ready.
func (h *HealthHandler) Readiness(w http.ResponseWriter, r *http.Request) {
	if h.svc == nil {
		writeJSON(w, http.StatusServiceUnavailable, unhealthyResponse("region service not initialized"))
		return
	}

	st := h.svc.CacheStats()
	writeJSON(w, http.StatusOK, healthyResponse(map[string]any{
		"rank":           h.svc.Rank(),
		"cached_objects": st.Objects,
		"resident_bytes": st.ResidentBytes,
		"cache_full":     st.MaxSize > 0 && st.ResidentBytes >= st.MaxSize,
	}))
}
