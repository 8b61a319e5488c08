// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/okian/chargeview/internal/domain/model"
)

// Dependencies required by HTTP handlers. Using an interface bundle keeps
// the handler layer loosely coupled to implementations in other packages.
type Dependencies interface {
	// Snapshot returns the current dashboard snapshot.
	Snapshot(ctx context.Context) model.Snapshot

	// Refresh requests a manual cycle.
	Refresh(ctx context.Context) (model.CycleRequest, error)

	// Subscribe streams every new snapshot until cancel is called.
	Subscribe() (<-chan model.Snapshot, func())
}

// Server wires HTTP routes for the dashboard API.
type Server struct {
	healthHandler   *HealthHandler
	statsHandler    *StatsHandler
	snapshotHandler *SnapshotHandler
	refreshHandler  *RefreshHandler
	streamHandler   *StreamHandler
}

// ServerOption configures a Server.
type ServerOption func(*Server)

// WithStreamWriteTimeout bounds a single websocket write.
func WithStreamWriteTimeout(d time.Duration) ServerOption {
	return func(s *Server) {
		if d > 0 {
			s.streamHandler.writeWait = d
		}
	}
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies, statsProvider StatsProvider, opts ...ServerOption) *Server {
	s := &Server{
		healthHandler:   NewHealthHandler(),
		statsHandler:    NewStatsHandler(statsProvider),
		snapshotHandler: NewSnapshotHandler(deps),
		refreshHandler:  NewRefreshHandler(deps),
		streamHandler:   NewStreamHandler(deps),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Register attaches all HTTP routes to mux.
func (s *Server) Register(_ context.Context, mux *http.ServeMux) {
	mux.HandleFunc("/healthz", MetricsMiddleware(s.healthHandler.HandleHealth, "healthz"))
	mux.HandleFunc("/stats", MetricsMiddleware(s.statsHandler.HandleStats, "stats"))
	mux.HandleFunc("/api/snapshot", MetricsMiddleware(s.snapshotHandler.HandleSnapshot, "snapshot"))
	mux.HandleFunc("/api/history", MetricsMiddleware(s.snapshotHandler.HandleHistory, "history"))
	mux.HandleFunc("/api/merged", MetricsMiddleware(s.snapshotHandler.HandleMerged, "merged"))
	mux.HandleFunc("/api/clusters/stats", MetricsMiddleware(s.snapshotHandler.HandleClusterStats, "cluster_stats"))
	mux.HandleFunc("/api/reports", MetricsMiddleware(s.snapshotHandler.HandleReports, "reports"))
	mux.HandleFunc("/api/summary", MetricsMiddleware(s.snapshotHandler.HandleSummary, "summary"))
	mux.HandleFunc("/api/refresh", MetricsMiddleware(s.refreshHandler.HandleRefresh, "refresh"))
	// The stream handler hijacks the connection, so it is not wrapped.
	mux.HandleFunc("/api/stream", s.streamHandler.HandleStream)
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}
