// Package api is the read-only HTTP observability surface (spec.md §6): a
// JSON snapshot of the Registry, guarded by an optional bearer token,
// adapted from the teacher's internal/api/server.go but trimmed to what
// this domain needs — there is no mutating admin surface here, so the
// ACL/TLS/rate-limit/process-scaling machinery is dropped along with it.
// Prometheus metrics are served separately by internal/metrics.Server.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"runtime/debug"
	"time"

	"github.com/gophpeek/phpeek-pm/internal/registry"
)

// RegistrySource is the subset of *supervisor.Supervisor the API server
// needs: a way to read the Registry under its lock.
type RegistrySource interface {
	WithLock(fn func(*registry.Registry))
}

// Server serves a read-only JSON snapshot of the Registry (/instances),
// optionally guarded by a bearer token (global.api_auth), plus an unguarded
// /healthz probe. It does not serve Prometheus metrics.
type Server struct {
	port   int
	auth   string
	source RegistrySource
	server *http.Server
	logger *slog.Logger
}

// New returns a Server bound to source; nothing is listening until Start
// is called.
func New(port int, auth string, source RegistrySource, logger *slog.Logger) *Server {
	return &Server{port: port, auth: auth, source: source, logger: logger}
}

// Start launches the HTTP listener in the background. A non-nil error
// means the bind itself failed; once started, per-request errors are
// logged rather than returned.
func (s *Server) Start() error {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", s.wrap(s.handleHealth, false))
	mux.HandleFunc("/instances", s.wrap(s.handleInstances, true))

	s.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", s.port),
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	ln, err := net.Listen("tcp", s.server.Addr)
	if err != nil {
		return fmt.Errorf("api: listen on %s: %w", s.server.Addr, err)
	}

	s.logger.Info("api server starting", "port", s.port)
	go func() {
		if err := s.server.Serve(ln); err != nil && err != http.ErrServerClosed {
			s.logger.Error("api server failed", "error", err)
		}
	}()
	return nil
}

// Stop gracefully shuts the HTTP server down.
func (s *Server) Stop(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

func (s *Server) wrap(h http.HandlerFunc, requireAuth bool) http.HandlerFunc {
	wrapped := h
	if requireAuth {
		wrapped = s.authMiddleware(wrapped)
	}
	return s.recoverMiddleware(wrapped)
}

func (s *Server) authMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.auth == "" {
			next(w, r)
			return
		}
		if r.Header.Get("Authorization") != "Bearer "+s.auth {
			s.respondError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		next(w, r)
	}
}

func (s *Server) recoverMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				s.logger.Error("panic recovered in api handler", "error", err, "path", r.URL.Path, "stack", string(debug.Stack()))
				s.respondError(w, http.StatusInternalServerError, "internal server error")
			}
		}()
		next(w, r)
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// instanceView is the wire shape for one instance in the /instances
// snapshot; it flattens registry.Instance's back-references into plain
// group/module strings instead of round-tripping pointers through JSON.
type instanceView struct {
	Group     string                     `json:"group"`
	Module    string                     `json:"module"`
	Instance  string                     `json:"instance"`
	Enabled   bool                       `json:"enabled"`
	Running   bool                       `json:"running"`
	PID       int                        `json:"pid"`
	Connected bool                       `json:"service_connected"`
	Restarts  uint                       `json:"restarts_in_window"`
	CPUUser   uint64                     `json:"cpu_pct_user"`
	CPUKernel uint64                     `json:"cpu_pct_kernel"`
	MemRSS    uint64                     `json:"mem_rss"`
	Inputs    []registry.InputInterface  `json:"inputs"`
	Outputs   []registry.OutputInterface `json:"outputs"`
}

// handleInstances returns a snapshot of every configured instance
// (GET /instances). It never mutates the Registry, matching spec.md's
// invariant that only the reconciliation loop or a config-change
// callback writes Instance state.
func (s *Server) handleInstances(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.respondError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var views []instanceView
	s.source.WithLock(func(reg *registry.Registry) {
		for _, inst := range reg.Instances() {
			views = append(views, instanceView{
				Group:     inst.Module.Group.Name,
				Module:    inst.Module.Name,
				Instance:  inst.Name,
				Enabled:   inst.Enabled,
				Running:   inst.Running,
				PID:       inst.PID,
				Connected: inst.ServiceConnected,
				Restarts:  inst.RestartsInWindow,
				CPUUser:   inst.CPUPctUser,
				CPUKernel: inst.CPUPctKernel,
				MemRSS:    inst.MemRSS,
				Inputs:    inst.Inputs,
				Outputs:   inst.Outputs,
			})
		}
	})

	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"instances": views,
		"count":     len(views),
	})
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.logger.Error("failed to encode json response", "error", err)
	}
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, map[string]string{"error": message})
}
