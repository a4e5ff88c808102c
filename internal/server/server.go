// Package server exposes the coordinator over HTTP.
//
// Routes:
//
//	POST /api/games               create a game
//	POST /api/games/sample        create the fixed demo game
//	POST /api/nodes/crash/{node}  simulate a node crash
//	POST /api/nodes/restore/{node} restore a crashed node
//	GET  /api/health              per-node availability
//	GET  /api/pending             pending-queue backlog
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gamevault/gamevault/internal/broker"
	"github.com/gamevault/gamevault/internal/coordinator"
	"github.com/gamevault/gamevault/internal/debug"
	"github.com/gamevault/gamevault/internal/syncsvc"
	"github.com/gamevault/gamevault/internal/types"
)

// Registry is the availability view the handlers need.
type Registry interface {
	IsUp(name string) bool
}

// NodeAdmin is the crash and restore surface of the connection broker.
type NodeAdmin interface {
	Crash(node string) error
	Restore(ctx context.Context, node string) error
}

// Server serves the HTTP API.
type Server struct {
	coord *coordinator.Coordinator
	sync  *syncsvc.Service
	conns broker.Conns
	reg   Registry
	admin NodeAdmin
	http  *http.Server
}

func New(addr string, coord *coordinator.Coordinator, sync *syncsvc.Service, conns broker.Conns, reg Registry, admin NodeAdmin) *Server {
	s := &Server{coord: coord, sync: sync, conns: conns, reg: reg, admin: admin}
	s.http = &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
	}
	return s
}

// Handler builds the route table. Exposed for httptest.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/games", s.handleCreateGame)
	mux.HandleFunc("POST /api/games/sample", s.handleCreateSample)
	mux.HandleFunc("POST /api/nodes/crash/{node}", s.handleCrash)
	mux.HandleFunc("POST /api/nodes/restore/{node}", s.handleRestore)
	mux.HandleFunc("GET /api/health", s.handleHealth)
	mux.HandleFunc("GET /api/pending", s.handlePending)
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "Route not found"})
	})
	return mux
}

// Run serves until the context is canceled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	errc := make(chan error, 1)
	go func() {
		debug.Daemonf("http", "listening on %s", s.http.Addr)
		errc <- s.http.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		debug.Daemonf("http", "shutting down")
		return s.http.Shutdown(shutdownCtx)
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		debug.Logf("http: encoding response: %v\n", err)
	}
}

func (s *Server) createGame(w http.ResponseWriter, r *http.Request, in *types.CreateGameInput) {
	g, res, err := s.coord.CreateGame(r.Context(), in)
	if err != nil {
		var verr *types.ValidationError
		switch {
		case errors.As(err, &verr):
			writeJSON(w, http.StatusBadRequest, map[string]any{
				"error":   "Validation failed",
				"details": verr.Details,
			})
		case errors.Is(err, coordinator.ErrMasterDown):
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{
				"error": "Master node is down. No writes allowed.",
			})
		default:
			writeJSON(w, http.StatusInternalServerError, map[string]string{
				"error":   "Failed to create game",
				"details": err.Error(),
			})
		}
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"message": "Game created successfully",
		"data":    g,
		"routing": map[string]any{
			"target":           res.Target.String(),
			"slave_ok":         res.SlaveOK,
			"pending_enqueued": res.PendingEnqueued,
		},
	})
}

func (s *Server) handleCreateGame(w http.ResponseWriter, r *http.Request) {
	var in types.CreateGameInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Invalid JSON body"})
		return
	}
	s.createGame(w, r, &in)
}

func (s *Server) handleCreateSample(w http.ResponseWriter, r *http.Request) {
	s.createGame(w, r, coordinator.SampleInput())
}

func (s *Server) handleCrash(w http.ResponseWriter, r *http.Request) {
	node := r.PathValue("node")
	if !types.IsValidNode(node) {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Invalid node specified"})
		return
	}
	if err := s.admin.Crash(node); err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "Failed to crash " + node + ": " + err.Error(),
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": node + " node crashed successfully"})
}

func (s *Server) handleRestore(w http.ResponseWriter, r *http.Request) {
	node := r.PathValue("node")
	if !types.IsValidNode(node) {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Invalid node specified"})
		return
	}
	if err := s.admin.Restore(r.Context(), node); err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "Failed to restore " + node + ": " + err.Error(),
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": node + " node restored successfully"})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	health := make(map[string]any, len(types.Nodes))
	for _, node := range types.Nodes {
		status := "down"
		if s.reg.IsUp(node) {
			status = "up"
		}
		_, err := s.conns.Get(r.Context(), node)
		health[node] = map[string]any{
			"status":     status,
			"connection": err == nil,
		}
	}
	writeJSON(w, http.StatusOK, health)
}

func (s *Server) handlePending(w http.ResponseWriter, r *http.Request) {
	st, err := s.sync.Status(r.Context())
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "Failed to get pending sync status: " + err.Error(),
		})
		return
	}
	writeJSON(w, http.StatusOK, st)
}
