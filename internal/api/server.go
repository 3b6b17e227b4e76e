// Package api provides the HTTP API for observing the room.
// GET endpoints are public (read-only observation).
// POST endpoints require a bearer token (admin control plane).
package api

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/talgya/mini-room/internal/agents"
	"github.com/talgya/mini-room/internal/engine"
	"github.com/talgya/mini-room/internal/persistence"
)

// Server serves the room state over HTTP.
type Server struct {
	Sim         *engine.Simulation
	Eng         *engine.Engine
	DB          *persistence.DB // Optional; history endpoints need it
	Hub         *Hub            // Optional; the stream endpoint needs it
	Port        int
	RunID       string
	AdminKey    string   // Bearer token for POST endpoints. Empty = POST disabled.
	RelayKey    string   // Bearer token for the stream. Empty = open stream.
	CORSOrigins []string // Extra allowed origins besides localhost dev servers

	streamConns atomic.Int32
}

// Handler builds the routing table.
func (s *Server) Handler() http.Handler {
	// Reconnect storms are the only abuse worth limiting.
	streamLimiter := NewRateLimiter(30, time.Minute)

	mux := http.NewServeMux()

	// Public endpoints (GET, read-only).
	mux.HandleFunc("/api/v1/status", s.handleStatus)
	mux.HandleFunc("/api/v1/frame", s.handleFrame)
	mux.HandleFunc("/api/v1/actors", s.handleActors)
	mux.HandleFunc("/api/v1/actor/", s.handleActorDetail)
	mux.HandleFunc("/api/v1/room", s.handleRoom)
	mux.HandleFunc("/api/v1/events", s.handleEvents)
	mux.HandleFunc("/api/v1/stats", s.handleStats)
	mux.HandleFunc("/api/v1/history", s.handleHistory)
	mux.HandleFunc("/api/v1/replay", s.handleReplay)

	// Frame stream (WebSocket, relay key when configured).
	mux.HandleFunc("/api/v1/stream", RateLimitMiddleware(streamLimiter, s.handleStream))

	// Admin endpoints (POST, require bearer token).
	mux.HandleFunc("/api/v1/speed", s.adminOnly(s.handleSpeed))
	mux.HandleFunc("/api/v1/snapshot", s.adminOnly(s.handleSnapshot))

	return corsMiddleware(s.CORSOrigins, mux)
}

// Start begins serving the HTTP API in a goroutine.
func (s *Server) Start() *http.Server {
	addr := fmt.Sprintf(":%d", s.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	slog.Info("HTTP API starting", "addr", addr, "admin_auth", s.AdminKey != "", "relay_auth", s.RelayKey != "")

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("HTTP server error", "error", err)
		}
	}()
	return srv
}

// corsMiddleware adds CORS headers for allowed frontend origins.
// Localhost dev servers are always allowed.
func corsMiddleware(origins []string, next http.Handler) http.Handler {
	allowedOrigins := map[string]bool{
		"http://localhost:5173": true,
		"http://localhost:4173": true,
		"http://localhost:3000": true,
	}
	for _, origin := range origins {
		allowedOrigins[origin] = true
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if allowedOrigins[origin] {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		}
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// checkBearerToken returns true if the request has a valid admin bearer token.
func (s *Server) checkBearerToken(r *http.Request) bool {
	auth := r.Header.Get("Authorization")
	return strings.HasPrefix(auth, "Bearer ") && strings.TrimPrefix(auth, "Bearer ") == s.AdminKey
}

// adminOnly wraps a handler to require bearer token auth on POST requests.
// GET requests pass through (for endpoints that support both GET and POST).
func (s *Server) adminOnly(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			if s.AdminKey == "" {
				http.Error(w, "admin endpoints disabled (no ROOMSIM_ADMIN_KEY set)", http.StatusForbidden)
				return
			}
			if !s.checkBearerToken(r) {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}
		}

		next(w, r)
	}
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	tick := s.Sim.Tick()
	stats := s.Sim.Stats()
	status := map[string]any{
		"name":       "roomsim",
		"run_id":     s.RunID,
		"tick":       tick,
		"sim_time":   engine.SimTime(tick, s.Eng.FPS),
		"fps":        s.Eng.FPS,
		"speed":      s.Eng.Speed(),
		"running":    s.Eng.Running(),
		"collision":  s.Sim.Config().Collision.String(),
		"actors":     stats.Actors,
		"moving":     stats.Moving,
		"paused":     stats.Paused,
		"conversing": stats.Conversing,
	}
	if s.Hub != nil {
		status["stream_clients"] = s.Hub.Subscribers()
	}
	writeJSON(w, status)
}

func (s *Server) handleFrame(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.Sim.Frame())
}

func (s *Server) handleActors(w http.ResponseWriter, r *http.Request) {
	actors := s.Sim.Actors()

	// Optional filters.
	q := r.URL.Query()
	if v := q.Get("personality"); v != "" {
		p, err := agents.ParsePersonality(v)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		actors = filterActors(actors, func(a *agents.Actor) bool { return a.Personality == p })
	}
	if v := q.Get("state"); v != "" {
		st, err := agents.ParseMoveState(v)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		actors = filterActors(actors, func(a *agents.Actor) bool { return a.State == st })
	}

	writeJSON(w, actors)
}

func filterActors(in []*agents.Actor, keep func(*agents.Actor) bool) []*agents.Actor {
	out := make([]*agents.Actor, 0, len(in))
	for _, a := range in {
		if keep(a) {
			out = append(out, a)
		}
	}
	return out
}

func (s *Server) handleActorDetail(w http.ResponseWriter, r *http.Request) {
	raw := strings.TrimPrefix(r.URL.Path, "/api/v1/actor/")
	id, err := strconv.ParseUint(raw, 10, 32)
	if err != nil {
		http.Error(w, "invalid actor id", http.StatusBadRequest)
		return
	}

	a, ok := s.Sim.Actor(agents.ActorID(id))
	if !ok {
		http.Error(w, "actor not found", http.StatusNotFound)
		return
	}

	detail := map[string]any{"actor": a}
	if pid, ok := a.PartnerID(); ok {
		if p, ok := s.Sim.Actor(pid); ok {
			detail["partner_name"] = p.Name
		}
	}
	writeJSON(w, detail)
}

func (s *Server) handleRoom(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.Sim.Room())
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", 50, 1000)
	events := s.Sim.Events(0)

	// Optional kind filter.
	if kind := r.URL.Query().Get("kind"); kind != "" {
		var filtered []engine.Event
		for _, e := range events {
			if string(e.Kind) == kind {
				filtered = append(filtered, e)
			}
		}
		events = filtered
	}

	start := 0
	if len(events) > limit {
		start = len(events) - limit
	}
	writeJSON(w, events[start:])
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]any{
		"stats":        s.Sim.Stats(),
		"event_counts": s.Sim.EventCounts(),
	})
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	if s.DB == nil {
		http.Error(w, "database not available", http.StatusServiceUnavailable)
		return
	}
	events, err := s.DB.RecentEvents(s.RunID, queryInt(r, "limit", 100, 5000))
	if err != nil {
		slog.Error("history query failed", "error", err)
		http.Error(w, "history unavailable", http.StatusInternalServerError)
		return
	}
	writeJSON(w, events)
}

func (s *Server) handleReplay(w http.ResponseWriter, r *http.Request) {
	if s.DB == nil {
		http.Error(w, "database not available", http.StatusServiceUnavailable)
		return
	}
	since := uint64(0)
	if v := r.URL.Query().Get("since"); v != "" {
		n, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			http.Error(w, "invalid since", http.StatusBadRequest)
			return
		}
		since = n
	}
	frames, err := s.DB.LoadFrames(s.RunID, since, queryInt(r, "limit", 60, 600))
	if err != nil {
		slog.Error("replay query failed", "error", err)
		http.Error(w, "replay unavailable", http.StatusInternalServerError)
		return
	}
	writeJSON(w, frames)
}

func (s *Server) handleSpeed(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodPost {
		var req struct {
			Speed float64 `json:"speed"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid json", http.StatusBadRequest)
			return
		}
		if req.Speed < 0 || req.Speed > 100 {
			http.Error(w, "speed must be 0-100", http.StatusBadRequest)
			return
		}
		s.Eng.SetSpeed(req.Speed)
		slog.Info("speed changed", "speed", req.Speed)
	}

	writeJSON(w, map[string]float64{"speed": s.Eng.Speed()})
}

func (s *Server) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if s.DB == nil {
		http.Error(w, "database not available", http.StatusServiceUnavailable)
		return
	}

	if err := s.DB.SaveWorldState(s.Sim, s.RunID); err != nil {
		slog.Error("snapshot save failed", "error", err)
		http.Error(w, "snapshot failed", http.StatusInternalServerError)
		return
	}

	writeJSON(w, map[string]any{
		"tick":    s.Sim.Tick(),
		"message": "snapshot saved",
	})
}

// queryInt reads a positive integer parameter clamped to max, falling
// back to def when it is missing, malformed or not positive.
func queryInt(r *http.Request, name string, def, max int) int {
	n, err := strconv.Atoi(r.URL.Query().Get(name))
	if err != nil || n <= 0 {
		return def
	}
	return min(n, max)
}

func writeJSON(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.Encode(data)
}
