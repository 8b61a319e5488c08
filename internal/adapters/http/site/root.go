// Package site serves the embedded dashboard page and its assets.
package site

import (
	"context"
	"net/http"
)

// Register attaches the dashboard routes to mux. "/" is a catch-all in
// ServeMux, so RootHandler answers 404 for anything it does not own.
func Register(_ context.Context, mux *http.ServeMux) {
	if mux == nil {
		panic("mux is nil")
	}

	mux.Handle("/static/", http.StripPrefix("/static/", http.FileServer(FS())))
	mux.HandleFunc("/", NewRootHandler().HandleRoot)
}

// RootHandler serves the dashboard page.
type RootHandler struct{}

// NewRootHandler creates a new root handler.
func NewRootHandler() *RootHandler {
	return &RootHandler{}
}

// HandleRoot serves the dashboard on GET / and GET /dashboard.
func (h *RootHandler) HandleRoot(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		http.NotFound(w, r)
		return
	}
	switch r.URL.Path {
	case "/", "/dashboard":
		w.Header().Set("Cache-Control", "no-cache")
		http.ServeFileFS(w, r, staticFS, indexFile)
	default:
		http.NotFound(w, r)
	}
}
