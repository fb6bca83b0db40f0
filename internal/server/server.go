// Package server provides the optional HTTP surface for lasertracker: live
// MJPEG views, a detections WebSocket and the threshold profile API.
package server

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"io/fs"
	"net/http"
	"time"

	"github.com/ayusman/lasertracker/internal/log"
	"github.com/ayusman/lasertracker/internal/server/api"
	"github.com/ayusman/lasertracker/internal/store"
)

//go:embed web
var webFS embed.FS

// Config holds the server configuration.
type Config struct {
	// StaticDir overrides the built-in viewer page with files from disk.
	StaticDir string
	Store     *store.Store
	Stream    *StreamDisplay
}

// Server represents the HTTP server for the lasertracker application.
type Server struct {
	config Config
	mux    *http.ServeMux
	start  time.Time
}

// New creates a new Server with the given configuration.
func New(config Config) *Server {
	s := &Server{
		config: config,
		mux:    http.NewServeMux(),
		start:  time.Now(),
	}
	s.setupRoutes()
	return s
}

// setupRoutes configures all HTTP routes for the server.
func (s *Server) setupRoutes() {
	s.mux.HandleFunc("/api/health", s.handleHealth)

	// Register profile API handler if Store is configured
	if s.config.Store != nil {
		profileHandler := api.NewProfileHandler(s.config.Store)
		s.mux.Handle("/api/profiles", profileHandler)
		s.mux.Handle("/api/profiles/", profileHandler)
	}

	// Register live endpoints if a StreamDisplay is configured
	if s.config.Stream != nil {
		s.mux.Handle("/api/stream/", NewStreamHandler(s.config.Stream))
		s.mux.Handle("/api/detections", NewDetectionsHandler(s.config.Stream))
	}

	// Serve static files if StaticDir is configured, else the built-in
	// viewer when there are streams to view.
	switch {
	case s.config.StaticDir != "":
		s.mux.Handle("/", http.FileServer(http.Dir(s.config.StaticDir)))
	case s.config.Stream != nil:
		s.mux.Handle("/", viewerHandler())
	}
}

// viewerHandler serves the embedded viewer page.
func viewerHandler() http.Handler {
	sub, err := fs.Sub(webFS, "web")
	if err != nil {
		panic(err)
	}
	return http.FileServer(http.FS(sub))
}

// ServeHTTP implements the http.Handler interface.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

// handleHealth handles GET requests to /api/health.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	response := map[string]any{
		"status": "ok",
		"uptime": time.Since(s.start).String(),
	}
	if s.config.Stream != nil {
		response["frames"] = s.config.Stream.Seq()
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(response); err != nil {
		http.Error(w, "Failed to encode response", http.StatusInternalServerError)
		return
	}
}

// ListenAndServe serves on addr until ctx is cancelled, then shuts down.
// It returns nil after a clean shutdown.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		log.Info("http server listening", "addr", addr)
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	// Streams block on new frames; release them before draining.
	if s.config.Stream != nil {
		s.config.Stream.Close()
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errc; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
