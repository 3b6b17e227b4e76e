package api

import (
	"encoding/json"
	"math/rand"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/talgya/mini-room/internal/agents"
	"github.com/talgya/mini-room/internal/engine"
	"github.com/talgya/mini-room/internal/persistence"
	"github.com/talgya/mini-room/internal/world"
)

func testServer(t *testing.T, withDB bool) *Server {
	t.Helper()
	cfg := engine.DefaultConfig()
	rng := rand.New(rand.NewSource(5))
	actors := agents.NewSpawner(rng, cfg.Tuning).SpawnRoster(agents.DefaultRoster())
	sim, err := engine.NewSimulation(world.DefaultRoom(), actors, rng, cfg)
	if err != nil {
		t.Fatalf("NewSimulation: %v", err)
	}
	for i := 0; i < 300; i++ {
		sim.Step(1)
	}

	s := &Server{
		Sim:         sim,
		Eng:         engine.NewEngine(60),
		Hub:         NewHub(),
		RunID:       uuid.NewString(),
		AdminKey:    "admin",
		RelayKey:    "relay",
		CORSOrigins: []string{"https://room.example"},
	}
	if withDB {
		db, err := persistence.Open(filepath.Join(t.TempDir(), "api.db"))
		if err != nil {
			t.Fatalf("Open: %v", err)
		}
		t.Cleanup(func() { db.Close() })
		s.DB = db
	}
	return s
}

func do(t *testing.T, h http.Handler, method, target, body, token string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rec.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
	return v
}

func TestStatusAndFrame(t *testing.T) {
	s := testServer(t, false)
	h := s.Handler()

	rec := do(t, h, http.MethodGet, "/api/v1/status", "", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status code %d", rec.Code)
	}
	status := decode[map[string]any](t, rec)
	if status["tick"].(float64) != 300 || status["actors"].(float64) != 8 {
		t.Fatalf("status = %v", status)
	}
	if status["sim_time"] != "0:00:05.000" {
		t.Fatalf("sim_time = %v", status["sim_time"])
	}

	frame := decode[engine.Frame](t, do(t, h, http.MethodGet, "/api/v1/frame", "", ""))
	if frame.Tick != 300 || len(frame.Poses) != 8 {
		t.Fatalf("frame tick=%d poses=%d", frame.Tick, len(frame.Poses))
	}
	for _, p := range frame.Poses {
		if p.State != "paused" && p.State != "moving" {
			t.Fatalf("pose state %q", p.State)
		}
	}
}

func TestActorEndpoints(t *testing.T) {
	s := testServer(t, false)
	h := s.Handler()

	all := decode[[]map[string]any](t, do(t, h, http.MethodGet, "/api/v1/actors", "", ""))
	if len(all) != 8 {
		t.Fatalf("got %d actors", len(all))
	}
	if all[0]["personality"] != "social" {
		t.Fatalf("personality should encode by name, got %v", all[0]["personality"])
	}

	observers := decode[[]map[string]any](t, do(t, h, http.MethodGet, "/api/v1/actors?personality=observer", "", ""))
	if len(observers) != 3 {
		t.Fatalf("got %d observers, want 3", len(observers))
	}
	if rec := do(t, h, http.MethodGet, "/api/v1/actors?state=dancing", "", ""); rec.Code != http.StatusBadRequest {
		t.Fatalf("bad state filter: code %d", rec.Code)
	}

	detail := decode[map[string]any](t, do(t, h, http.MethodGet, "/api/v1/actor/3", "", ""))
	actor := detail["actor"].(map[string]any)
	if actor["id"].(float64) != 3 {
		t.Fatalf("detail = %v", detail)
	}

	if rec := do(t, h, http.MethodGet, "/api/v1/actor/99", "", ""); rec.Code != http.StatusNotFound {
		t.Fatalf("unknown actor: code %d", rec.Code)
	}
	if rec := do(t, h, http.MethodGet, "/api/v1/actor/bob", "", ""); rec.Code != http.StatusBadRequest {
		t.Fatalf("bad id: code %d", rec.Code)
	}
}

func TestRoomEventsStats(t *testing.T) {
	s := testServer(t, false)
	h := s.Handler()

	room := decode[world.Room](t, do(t, h, http.MethodGet, "/api/v1/room", "", ""))
	if room.Bounds != world.DefaultBounds || len(room.Hotspots) == 0 {
		t.Fatalf("room = %+v", room)
	}

	events := decode[[]engine.Event](t, do(t, h, http.MethodGet, "/api/v1/events?limit=3", "", ""))
	if len(events) == 0 || len(events) > 3 {
		t.Fatalf("got %d events", len(events))
	}
	departs := decode[[]engine.Event](t, do(t, h, http.MethodGet, "/api/v1/events?kind=depart", "", ""))
	for _, e := range departs {
		if e.Kind != engine.EventDepart {
			t.Fatalf("kind filter leaked %s", e.Kind)
		}
	}

	stats := decode[map[string]any](t, do(t, h, http.MethodGet, "/api/v1/stats", "", ""))
	if _, ok := stats["stats"]; !ok {
		t.Fatalf("stats = %v", stats)
	}
}

func TestAdminEndpoints(t *testing.T) {
	s := testServer(t, true)
	h := s.Handler()

	if rec := do(t, h, http.MethodPost, "/api/v1/speed", `{"speed":2}`, ""); rec.Code != http.StatusUnauthorized {
		t.Fatalf("no token: code %d", rec.Code)
	}
	if rec := do(t, h, http.MethodPost, "/api/v1/speed", `{"speed":2}`, "wrong"); rec.Code != http.StatusUnauthorized {
		t.Fatalf("wrong token: code %d", rec.Code)
	}
	if rec := do(t, h, http.MethodPost, "/api/v1/speed", `{"speed":-1}`, "admin"); rec.Code != http.StatusBadRequest {
		t.Fatalf("negative speed: code %d", rec.Code)
	}
	rec := do(t, h, http.MethodPost, "/api/v1/speed", `{"speed":2.5}`, "admin")
	if rec.Code != http.StatusOK || s.Eng.Speed() != 2.5 {
		t.Fatalf("speed change: code %d speed %v", rec.Code, s.Eng.Speed())
	}
	if got := decode[map[string]float64](t, do(t, h, http.MethodGet, "/api/v1/speed", "", ""))["speed"]; got != 2.5 {
		t.Fatalf("GET speed = %v", got)
	}

	if rec := do(t, h, http.MethodGet, "/api/v1/snapshot", "", ""); rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("GET snapshot: code %d", rec.Code)
	}
	if rec := do(t, h, http.MethodPost, "/api/v1/snapshot", "", "admin"); rec.Code != http.StatusOK {
		t.Fatalf("snapshot: code %d %s", rec.Code, rec.Body.String())
	}
	if s.DB.LastTick() != 300 {
		t.Fatal("snapshot did not reach the database")
	}

	history := decode[[]engine.Event](t, do(t, h, http.MethodGet, "/api/v1/history?limit=5", "", ""))
	if len(history) == 0 || len(history) > 5 {
		t.Fatalf("history returned %d events", len(history))
	}

	s.AdminKey = ""
	if rec := do(t, s.Handler(), http.MethodPost, "/api/v1/speed", `{"speed":1}`, "admin"); rec.Code != http.StatusForbidden {
		t.Fatalf("admin disabled: code %d", rec.Code)
	}
}

func TestReplay(t *testing.T) {
	s := testServer(t, true)
	for i := 0; i < 5; i++ {
		s.Sim.Step(1)
		if err := s.DB.SaveFrame(s.RunID, s.Sim.Frame()); err != nil {
			t.Fatalf("SaveFrame: %v", err)
		}
	}
	h := s.Handler()

	frames := decode[[]engine.Frame](t, do(t, h, http.MethodGet, "/api/v1/replay?since=303&limit=10", "", ""))
	if len(frames) != 3 || frames[0].Tick != 303 {
		t.Fatalf("replay returned %d frames", len(frames))
	}
	if rec := do(t, h, http.MethodGet, "/api/v1/replay?since=soon", "", ""); rec.Code != http.StatusBadRequest {
		t.Fatalf("bad since: code %d", rec.Code)
	}

	noDB := testServer(t, false)
	if rec := do(t, noDB.Handler(), http.MethodGet, "/api/v1/replay", "", ""); rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("replay without db: code %d", rec.Code)
	}
}

func TestCORS(t *testing.T) {
	h := testServer(t, false).Handler()

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/status", nil)
	req.Header.Set("Origin", "https://room.example")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusNoContent || rec.Header().Get("Access-Control-Allow-Origin") != "https://room.example" {
		t.Fatalf("preflight: code %d headers %v", rec.Code, rec.Header())
	}

	req = httptest.NewRequest(http.MethodGet, "/api/v1/status", nil)
	req.Header.Set("Origin", "https://evil.example")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Header().Get("Access-Control-Allow-Origin") != "" {
		t.Fatal("unknown origin allowed")
	}
}

func TestStream(t *testing.T) {
	s := testServer(t, false)
	srv := httptest.NewServer(s.Handler())
	defer srv.Close()
	base := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/v1/stream"

	_, resp, err := websocket.DefaultDialer.Dial(base+"?token=nope", nil)
	if err == nil || resp == nil || resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("bad token should be rejected, got err=%v", err)
	}

	s.Hub.Broadcast(s.Sim.Frame())

	conn, _, err := websocket.DefaultDialer.Dial(base+"?token=relay", nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))

	var first engine.Frame
	if err := conn.ReadJSON(&first); err != nil {
		t.Fatalf("read latest frame: %v", err)
	}
	if first.Tick != 300 {
		t.Fatalf("latest frame tick = %d", first.Tick)
	}

	deadline := time.Now().Add(2 * time.Second)
	for s.Hub.Subscribers() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	s.Sim.Step(1)
	s.Hub.Broadcast(s.Sim.Frame())

	var next engine.Frame
	if err := conn.ReadJSON(&next); err != nil {
		t.Fatalf("read broadcast frame: %v", err)
	}
	if next.Tick != 301 {
		t.Fatalf("broadcast frame tick = %d", next.Tick)
	}
}

func TestHubDropsForSlowSubscriber(t *testing.T) {
	h := NewHub()
	id, ch := h.Subscribe()
	for i := 0; i < streamBuffer+5; i++ {
		h.Broadcast(engine.Frame{Tick: uint64(i)})
	}
	if len(ch) != streamBuffer {
		t.Fatalf("buffered %d frames, want %d", len(ch), streamBuffer)
	}
	if h.Dropped() != 5 {
		t.Fatalf("dropped %d, want 5", h.Dropped())
	}
	h.Unsubscribe(id)
	h.Unsubscribe(id)
	if h.Subscribers() != 0 {
		t.Fatal("subscriber not removed")
	}
}

func TestRateLimiter(t *testing.T) {
	now := time.Unix(1000, 0)
	rl := NewRateLimiter(2, time.Minute)
	rl.now = func() time.Time { return now }

	if !rl.Allow("a") || !rl.Allow("a") {
		t.Fatal("first two requests should pass")
	}
	if rl.Allow("a") {
		t.Fatal("third request should be limited")
	}
	if !rl.Allow("b") {
		t.Fatal("other clients have their own bucket")
	}
	if got := rl.RetryAfter("a"); got != 61 {
		t.Fatalf("RetryAfter = %d, want 61", got)
	}

	now = now.Add(time.Minute)
	if !rl.Allow("a") {
		t.Fatal("window reset should allow again")
	}
}

func TestClientIP(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "10.0.0.1:5555"
	if got := clientIP(req); got != "10.0.0.1" {
		t.Fatalf("clientIP = %q", got)
	}
	req.Header.Set("X-Forwarded-For", "203.0.113.9, 10.0.0.1")
	if got := clientIP(req); got != "203.0.113.9" {
		t.Fatalf("clientIP with proxy = %q", got)
	}
}

func TestQueryIntClampsToMax(t *testing.T) {
	tests := []struct {
		query string
		want  int
	}{
		{"", 50},
		{"limit=7", 7},
		{"limit=1000", 1000},
		{"limit=5000", 1000},
		{"limit=0", 50},
		{"limit=-3", 50},
		{"limit=lots", 50},
	}
	for _, tt := range tests {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/events?"+tt.query, nil)
		if got := queryInt(req, "limit", 50, 1000); got != tt.want {
			t.Errorf("%q: got %d, want %d", tt.query, got, tt.want)
		}
	}
}
