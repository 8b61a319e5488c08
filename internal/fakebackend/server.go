package fakebackend

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/okian/chargeview/pkg/logger"
)

// Served paths.
const (
	PathLatest   = "/api/latest"
	PathHistory  = "/api/history"
	PathClusters = "/api/clusters"
	PathFail     = "/admin/fail"
)

// Server serves a Dataset and can be told to fail individual endpoints.
type Server struct {
	mu      sync.RWMutex
	data    Dataset
	failing map[string]bool
	latency time.Duration
	hits    map[string]int

	logger logger.Logger
}

// NewServer returns a server for data.
func NewServer(data Dataset) *Server {
	return &Server{
		data:    data,
		failing: make(map[string]bool),
		hits:    make(map[string]int),
		logger:  logger.Get().Named("fake-backend"),
	}
}

// SetDataset replaces the served data.
func (s *Server) SetDataset(d Dataset) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data = d
}

// Append adds a history record.
func (s *Server) Append(r Record) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data.History = append(s.data.History, r)
}

// SetFailing makes path answer 503 while on is true.
func (s *Server) SetFailing(path string, on bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failing[path] = on
}

// SetLatency delays every data response.
func (s *Server) SetLatency(d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.latency = d
}

// Hits returns how many requests path received.
func (s *Server) Hits(path string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.hits[path]
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc(PathLatest, s.serve(PathLatest, func(d Dataset) any {
		if l := d.Latest(); l != nil {
			return l
		}
		return struct{}{}
	}))
	mux.HandleFunc(PathHistory, s.serve(PathHistory, func(d Dataset) any { return d.History }))
	mux.HandleFunc(PathClusters, s.serve(PathClusters, func(d Dataset) any { return d.Clusters }))
	mux.HandleFunc(PathFail, s.handleFail)
	return mux
}

func (s *Server) serve(path string, pick func(Dataset) any) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.NotFound(w, r)
			return
		}

		s.mu.Lock()
		s.hits[path]++
		failing := s.failing[path]
		latency := s.latency
		body := pick(s.data)
		s.mu.Unlock()

		if latency > 0 {
			select {
			case <-time.After(latency):
			case <-r.Context().Done():
				return
			}
		}
		if failing {
			http.Error(w, "injected failure", http.StatusServiceUnavailable)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(body); err != nil {
			s.logger.Error(r.Context(), "encode response", logger.String("path", path), logger.Error(err))
		}
	}
}

// handleFail toggles failure injection: POST /admin/fail?path=/api/history&on=true.
func (s *Server) handleFail(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}
	path := r.URL.Query().Get("path")
	on, err := strconv.ParseBool(r.URL.Query().Get("on"))
	if path == "" || err != nil {
		http.Error(w, "path and on are required", http.StatusBadRequest)
		return
	}
	s.SetFailing(path, on)
	s.logger.Info(context.Background(), "failure injection changed", logger.String("path", path), logger.Bool("on", on))
	w.WriteHeader(http.StatusNoContent)
}
