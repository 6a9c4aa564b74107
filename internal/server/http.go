// Package server exposes the filtering pipeline over HTTP for build jobs.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/p4th0r/gatelist/internal/filter"
	"github.com/p4th0r/gatelist/internal/logging"
)

// Checker runs one filtering pass. *filter.Filter satisfies it.
type Checker interface {
	CheckFileByAddressLists(ctx context.Context, path string, ref filter.Reference, applyFix bool) (bool, error)
}

// Config holds the configuration for creating a Server.
type Config struct {
	Checker   Checker
	Reference filter.Reference
	Root      string // list paths are resolved inside Root
	Token     string // bearer token for /api/filter; empty disables auth
	Timeout   time.Duration
	Gatherer  prometheus.Gatherer
	Logger    *logging.StderrLogger
}

// Server serves the build API.
type Server struct {
	cfg Config
	mu  sync.Mutex // one pass at a time
}

// New returns a Server with defaults applied.
func New(cfg Config) *Server {
	if cfg.Logger == nil {
		cfg.Logger = logging.Discard()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Minute
	}
	if cfg.Gatherer == nil {
		cfg.Gatherer = prometheus.DefaultGatherer
	}
	return &Server{cfg: cfg}
}

// Handler returns the routed handler.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, middleware.Recoverer, middleware.Timeout(s.cfg.Timeout))
	r.Get("/api/health", s.health)
	r.Handle("/metrics", promhttp.HandlerFor(s.cfg.Gatherer, promhttp.HandlerOpts{}))
	r.Group(func(pr chi.Router) {
		pr.Use(s.auth)
		pr.Post("/api/filter", s.filter)
	})
	return r
}

// ListenAndServe serves until ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{Addr: addr, Handler: s.Handler(), ReadHeaderTimeout: 10 * time.Second}
	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()
	s.cfg.Logger.Info("Listening on %s", addr)

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

func (s *Server) auth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.cfg.Token == "" {
			next.ServeHTTP(w, r)
			return
		}
		h := r.Header.Get("Authorization")
		if !strings.HasPrefix(h, "Bearer ") || strings.TrimPrefix(h, "Bearer ") != s.cfg.Token {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("content-type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{"ok": true})
}

// FilterRequest is the body of POST /api/filter.
type FilterRequest struct {
	Files []string `json:"files"`
	Fix   bool     `json:"fix"`
}

// FilterResponse reports a filtering request. Outputs lists the files
// that were rewritten.
type FilterResponse struct {
	OK      bool     `json:"ok"`
	Matched bool     `json:"matched"`
	Outputs []string `json:"outputs"`
	Error   string   `json:"error,omitempty"`
}

func (s *Server) filter(w http.ResponseWriter, r *http.Request) {
	var req FilterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, FilterResponse{Error: err.Error(), Outputs: []string{}})
		return
	}
	if len(req.Files) == 0 {
		writeJSON(w, http.StatusBadRequest, FilterResponse{Error: "no files given", Outputs: []string{}})
		return
	}

	paths := make([]string, 0, len(req.Files))
	for _, f := range req.Files {
		p, err := s.resolve(f)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, FilterResponse{Error: err.Error(), Outputs: []string{}})
			return
		}
		paths = append(paths, p)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	resp := FilterResponse{OK: true, Outputs: []string{}}
	for i, p := range paths {
		matched, err := s.cfg.Checker.CheckFileByAddressLists(r.Context(), p, s.cfg.Reference, req.Fix)
		if err != nil {
			s.cfg.Logger.Error("filtering %s: %v", p, err)
			resp.OK = false
			resp.Error = err.Error()
			writeJSON(w, http.StatusInternalServerError, resp)
			return
		}
		if matched {
			resp.Matched = true
			if req.Fix {
				resp.Outputs = append(resp.Outputs, req.Files[i])
			}
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

// resolve maps a request path into Root, rejecting paths that leave it.
func (s *Server) resolve(name string) (string, error) {
	if s.cfg.Root == "" {
		return "", fmt.Errorf("server has no list root")
	}
	if filepath.IsAbs(name) || !filepath.IsLocal(name) {
		return "", fmt.Errorf("path %q is outside the list root", name)
	}
	return filepath.Join(s.cfg.Root, name), nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("content-type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
