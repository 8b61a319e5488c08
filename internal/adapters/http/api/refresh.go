package api

import (
	"errors"
	"net/http"

	"github.com/okian/chargeview/internal/adapters/mq/queue"
	"github.com/okian/chargeview/pkg/logger"
)

// RefreshHandler handles manual refresh requests.
type RefreshHandler struct {
	deps   Dependencies
	logger logger.Logger
}

// NewRefreshHandler creates a refresh handler.
func NewRefreshHandler(deps Dependencies) *RefreshHandler {
	return &RefreshHandler{deps: deps, logger: logger.Get().Named("api")}
}

type refreshResponse struct {
	Status  string `json:"status"`
	CycleID string `json:"cycleId"`
}

// HandleRefresh handles POST /api/refresh. It answers 202 when a cycle was
// queued and 429 when one is already waiting.
func (h *RefreshHandler) HandleRefresh(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}

	req, err := h.deps.Refresh(r.Context())
	switch {
	case err == nil:
		h.logger.Info(r.Context(), "manual refresh queued", logger.String("cycle_id", req.ID))
		writeJSON(w, http.StatusAccepted, refreshResponse{Status: "accepted", CycleID: req.ID})
	case errors.Is(err, queue.ErrPending):
		writeError(w, http.StatusTooManyRequests, "refresh_pending", ErrRefreshPending)
	default:
		h.logger.Warn(r.Context(), "manual refresh rejected", logger.Error(err))
		writeError(w, http.StatusServiceUnavailable, "unavailable", errors.Join(ErrUnavailable, err))
	}
}
