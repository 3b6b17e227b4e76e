package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/talgya/mini-room/internal/engine"
)

const (
	maxStreamConns = 8
	streamBuffer   = 16
	writeWait      = 5 * time.Second
	pingEvery      = 15 * time.Second
)

// Hub fans encoded frames out to stream subscribers. A subscriber that
// falls behind loses frames instead of stalling the frame loop.
type Hub struct {
	mu     sync.Mutex
	subs   map[uint64]chan []byte
	nextID uint64
	last   []byte

	dropped atomic.Uint64
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{subs: make(map[uint64]chan []byte)}
}

// Broadcast encodes f once and offers it to every subscriber.
func (h *Hub) Broadcast(f engine.Frame) {
	data, err := json.Marshal(f)
	if err != nil {
		slog.Error("encode frame", "tick", f.Tick, "error", err)
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	h.last = data
	for _, ch := range h.subs {
		select {
		case ch <- data:
		default:
			h.dropped.Add(1)
		}
	}
}

// Subscribe registers a subscriber. The latest frame, if any, is queued
// immediately.
func (h *Hub) Subscribe() (uint64, <-chan []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.nextID++
	ch := make(chan []byte, streamBuffer)
	if h.last != nil {
		ch <- h.last
	}
	h.subs[h.nextID] = ch
	return h.nextID, ch
}

// Unsubscribe removes a subscriber and closes its channel.
func (h *Hub) Unsubscribe(id uint64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if ch, ok := h.subs[id]; ok {
		delete(h.subs, id)
		close(ch)
	}
}

// Subscribers returns the current subscriber count.
func (h *Hub) Subscribers() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

// Dropped returns how many frames were skipped for slow subscribers.
func (h *Hub) Dropped() uint64 {
	return h.dropped.Load()
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 64 * 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// relayToken accepts the key as a bearer header or, for browsers that
// cannot set headers on a WebSocket handshake, a token query parameter.
func relayToken(r *http.Request) string {
	if auth := r.Header.Get("Authorization"); strings.HasPrefix(auth, "Bearer ") {
		return strings.TrimPrefix(auth, "Bearer ")
	}
	return r.URL.Query().Get("token")
}

func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	// Auth check uses the relay key, not the admin key.
	if s.RelayKey != "" && relayToken(r) != s.RelayKey {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	if s.Hub == nil {
		http.Error(w, "streaming disabled", http.StatusServiceUnavailable)
		return
	}

	// Connection limit.
	current := s.streamConns.Add(1)
	defer s.streamConns.Add(-1)
	if current > maxStreamConns {
		http.Error(w, "too many stream connections", http.StatusServiceUnavailable)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Debug("stream upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	subID, frames := s.Hub.Subscribe()
	defer s.Hub.Unsubscribe(subID)
	slog.Info("stream client connected", "sub_id", subID, "ip", clientIP(r))

	// Reader: the client never sends anything we act on, but reading is
	// how close frames and dead peers are noticed.
	gone := make(chan struct{})
	go func() {
		defer close(gone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ping := time.NewTicker(pingEvery)
	defer ping.Stop()

	for {
		select {
		case data, ok := <-frames:
			if !ok {
				return
			}
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
				slog.Debug("stream write failed", "sub_id", subID, "error", err)
				return
			}
		case <-ping.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
		case <-gone:
			slog.Info("stream client disconnected", "sub_id", subID)
			return
		}
	}
}
