// ABOUTME: Management API for runtime config and health monitoring
// ABOUTME: Provides endpoints for health checks and subscription inspection

package management

import (
	"encoding/json"
	"net/http"

	"github.com/harper/rbus-gateway/internal/config"
	"github.com/harper/rbus-gateway/internal/subscription"
)

// ConnectionCounter reports live transport sessions; the websocket server
// satisfies it.
type ConnectionCounter interface {
	ConnectionCount() int
}

type Server struct {
	config *config.Config
	subs   *subscription.Manager
	conns  ConnectionCounter
	mux    *http.ServeMux
}

func NewServer(cfg *config.Config, subs *subscription.Manager, conns ConnectionCounter) *Server {
	s := &Server{
		config: cfg,
		subs:   subs,
		conns:  conns,
		mux:    http.NewServeMux(),
	}

	s.mux.HandleFunc("/api/health", s.handleHealth)
	s.mux.HandleFunc("/api/config", s.handleConfig)
	s.mux.HandleFunc("/api/subscriptions", s.handleSubscriptions)

	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	health := map[string]any{
		"status":        "healthy",
		"connections":   s.conns.ConnectionCount(),
		"subscriptions": s.subs.Len(),
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(health)
}

func (s *Server) handleConfig(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(s.config)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (s *Server) handleSubscriptions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(s.subs.Snapshot())
}
