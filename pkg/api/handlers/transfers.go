package handlers

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/hpc-io/pdc-sub004/pkg/transfer"
)

// TransferHandler reports asynchronous request status.
type TransferHandler struct {
	svc RegionService
}

// NewTransferHandler creates a transfer handler.
func NewTransferHandler(svc RegionService) *TransferHandler {
	return &TransferHandler{svc: svc}
}

// TransferStatus is the body of GET /v1/transfers/{id}.
type TransferStatus struct {
	ID     uint64 `json:"id"`
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

// Check handles GET /v1/transfers/{id}. Unknown ids answer 404.
func (h *TransferHandler) Check(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseUint(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id == 0 {
		BadRequest(w, "invalid transfer id")
		return
	}

	st, err := h.svc.Check(id)
	if st == transfer.StatusNotFound {
		NotFound(w, "transfer not found")
		return
	}

	resp := TransferStatus{ID: id, Status: st.String()}
	if err != nil {
		resp.Error = err.Error()
	}
	writeJSON(w, http.StatusOK, okResponse(resp))
}
