// Package server exposes the graph payload over HTTP and WebSocket for
// renderer clients.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/codegraph-dev/codegraph/internal/graph"
	"github.com/codegraph-dev/codegraph/internal/storage"
)

const (
	writeWait       = 10 * time.Second
	shutdownTimeout = 5 * time.Second
)

// Server serves the stored graph snapshot over HTTP and pushes rebuilt
// payloads to WebSocket clients.
type Server struct {
	backend  storage.Backend
	log      *logrus.Logger
	upgrader websocket.Upgrader

	mu      sync.Mutex
	clients map[*websocket.Conn]struct{}
}

// New creates a server reading snapshots from backend. A nil log falls
// back to the standard logger.
func New(backend storage.Backend, log *logrus.Logger) *Server {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Server{
		backend: backend,
		log:     log,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// The renderer runs on its own dev origin.
			CheckOrigin: func(_ *http.Request) bool { return true },
		},
		clients: make(map[*websocket.Conn]struct{}),
	}
}

// Handler returns the HTTP routes.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /graph", s.handleGraph)
	mux.HandleFunc("GET /ws", s.handleWS)
	return mux
}

// Run serves on addr until the context is cancelled.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{Addr: addr, Handler: s.Handler()}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	s.log.WithField("addr", addr).Info("serving graph")
	if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// handleGraph returns the full payload, optionally filtered to the node
// types named in ?types=file,folder.
func (s *Server) handleGraph(w http.ResponseWriter, r *http.Request) {
	payload, _, err := s.backend.LoadGraph(r.Context())
	if errors.Is(err, storage.ErrNoGraph) {
		http.Error(w, "no graph built yet", http.StatusNotFound)
		return
	}
	if err != nil {
		s.log.WithError(err).Error("loading graph")
		http.Error(w, "loading graph failed", http.StatusInternalServerError)
		return
	}

	if typesParam := r.URL.Query().Get("types"); typesParam != "" {
		allowed, err := parseNodeTypes(typesParam)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		payload = graph.Filter(payload, allowed...)
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.log.WithError(err).Warn("writing graph response")
	}
}

// handleWS upgrades the connection, sends the current snapshot, and keeps
// the client registered for rebuild broadcasts until it disconnects.
func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}

	if payload, _, err := s.backend.LoadGraph(r.Context()); err == nil {
		_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := conn.WriteJSON(payload); err != nil {
			conn.Close()
			return
		}
	}

	s.mu.Lock()
	s.clients[conn] = struct{}{}
	s.mu.Unlock()
	s.log.WithField("remote", conn.RemoteAddr().String()).Info("renderer connected")

	// Clients never send data; the read loop only notices disconnects.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}

	s.mu.Lock()
	delete(s.clients, conn)
	s.mu.Unlock()
	conn.Close()
	s.log.WithField("remote", conn.RemoteAddr().String()).Info("renderer disconnected")
}

// Broadcast pushes a complete payload to every connected client. Clients
// that fail to accept the write are dropped.
func (s *Server) Broadcast(payload *graph.Payload) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for conn := range s.clients {
		_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := conn.WriteJSON(payload); err != nil {
			s.log.WithError(err).Warn("dropping slow renderer client")
			conn.Close()
			delete(s.clients, conn)
		}
	}
}

// parseNodeTypes parses a comma-separated ?types= value.
func parseNodeTypes(raw string) ([]graph.NodeType, error) {
	var types []graph.NodeType
	for _, part := range strings.Split(raw, ",") {
		switch t := graph.NodeType(strings.TrimSpace(part)); t {
		case graph.NodeFolder, graph.NodeFile, graph.NodeFunction:
			types = append(types, t)
		default:
			return nil, fmt.Errorf("unknown node type %q", part)
		}
	}
	return types, nil
}
