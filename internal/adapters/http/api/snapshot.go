package api

import (
	"net/http"

	"github.com/okian/chargeview/internal/domain/model"
)

// SnapshotHandler serves the snapshot and its views.
type SnapshotHandler struct {
	deps Dependencies
}

// NewSnapshotHandler creates a snapshot handler.
func NewSnapshotHandler(deps Dependencies) *SnapshotHandler {
	return &SnapshotHandler{deps: deps}
}

type summaryResponse struct {
	model.Summary
	FetchedAt any          `json:"fetchedAt"`
	Status    model.Status `json:"status"`
}

// view writes one projection of the current snapshot for GET requests.
func (h *SnapshotHandler) view(pick func(model.Snapshot) any) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.NotFound(w, r)
			return
		}
		writeJSON(w, http.StatusOK, pick(h.deps.Snapshot(r.Context())))
	}
}

// HandleSnapshot handles GET /api/snapshot.
func (h *SnapshotHandler) HandleSnapshot(w http.ResponseWriter, r *http.Request) {
	h.view(func(s model.Snapshot) any { return s })(w, r)
}

// HandleHistory handles GET /api/history.
func (h *SnapshotHandler) HandleHistory(w http.ResponseWriter, r *http.Request) {
	h.view(func(s model.Snapshot) any { return s.History })(w, r)
}

// HandleMerged handles GET /api/merged.
func (h *SnapshotHandler) HandleMerged(w http.ResponseWriter, r *http.Request) {
	h.view(func(s model.Snapshot) any { return s.Merged })(w, r)
}

// HandleClusterStats handles GET /api/clusters/stats.
func (h *SnapshotHandler) HandleClusterStats(w http.ResponseWriter, r *http.Request) {
	h.view(func(s model.Snapshot) any { return s.ClusterStats })(w, r)
}

// HandleReports handles GET /api/reports.
func (h *SnapshotHandler) HandleReports(w http.ResponseWriter, r *http.Request) {
	h.view(func(s model.Snapshot) any { return s.Reports })(w, r)
}

// HandleSummary handles GET /api/summary.
func (h *SnapshotHandler) HandleSummary(w http.ResponseWriter, r *http.Request) {
	h.view(func(s model.Snapshot) any {
		resp := summaryResponse{Summary: s.Summary, Status: s.Status}
		if !s.FetchedAt.IsZero() {
			resp.FetchedAt = s.FetchedAt
		}
		return resp
	})(w, r)
}
