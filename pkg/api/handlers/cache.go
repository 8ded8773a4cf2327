package handlers

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/hpc-io/pdc-sub004/internal/logger"
	"github.com/hpc-io/pdc-sub004/pkg/cache"
	"github.com/hpc-io/pdc-sub004/pkg/payload"
	"github.com/hpc-io/pdc-sub004/pkg/transfer"
)

// CacheHandler exposes the region cache state and manual flushes.
type CacheHandler struct {
	svc RegionService
}

// NewCacheHandler creates a cache handler.
func NewCacheHandler(svc RegionService) *CacheHandler {
	return &CacheHandler{svc: svc}
}

// StatsResponse is the body of GET /v1/cache/stats.
type StatsResponse struct {
	Rank   int                 `json:"rank"`
	Cache  cache.Stats         `json:"cache"`
	Engine payload.Stats       `json:"engine"`
	Queue  transfer.QueueStats `json:"queue"`
}

// Stats handles GET /v1/cache/stats.
func (h *CacheHandler) Stats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, okResponse(StatsResponse{
		Rank:   h.svc.Rank(),
		Cache:  h.svc.CacheStats(),
		Engine: h.svc.Stats(),
		Queue:  h.svc.QueueStats(),
	}))
}

// FlushAll handles POST /v1/cache/flush. It returns once every cached
// object has been written to durable storage.
func (h *CacheHandler) FlushAll(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if err := h.svc.FlushAll(ctx); err != nil {
		logger.ErrorCtx(ctx, "Manual flush failed", logger.KeyError, err)
		InternalServerError(w, err.Error())
		return
	}
	logger.InfoCtx(ctx, "Manual flush complete")
	writeJSON(w, http.StatusOK, okResponse(h.svc.CacheStats()))
}

// FlushObjectResponse is the body of POST /v1/objects/{id}/flush.
type FlushObjectResponse struct {
	ObjectID   uint64 `json:"object_id"`
	TransferID uint64 `json:"transfer_id,omitempty"`
}

// FlushObject handles POST /v1/objects/{id}/flush. With ?async=true the
// flush is queued and the transfer id returned with 202.
func (h *CacheHandler) FlushObject(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseUint(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		BadRequest(w, "invalid object id")
		return
	}

	ctx := r.Context()
	if lc := logger.FromContext(ctx); lc != nil {
		ctx = logger.WithContext(ctx, lc.WithObject(id).WithRank(h.svc.Rank()))
	}

	if async, _ := strconv.ParseBool(r.URL.Query().Get("async")); async {
		tid, err := h.svc.SubmitFlush(ctx, id)
		if err != nil {
			ServiceUnavailable(w, err.Error())
			return
		}
		logger.DebugCtx(ctx, "Flush queued", logger.KeyTransferID, tid)
		writeJSON(w, http.StatusAccepted, okResponse(FlushObjectResponse{ObjectID: id, TransferID: tid}))
		return
	}

	if err := h.svc.Flush(ctx, id); err != nil {
		logger.ErrorCtx(ctx, "Object flush failed", logger.KeyError, err)
		InternalServerError(w, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, okResponse(FlushObjectResponse{ObjectID: id}))
}
