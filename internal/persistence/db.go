// Package persistence provides SQLite-based room state storage: the actor
// roster, the event history, run metadata and a compressed frame archive.
package persistence

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"

	"github.com/jmoiron/sqlx"
	"github.com/klauspost/compress/zstd"
	_ "modernc.org/sqlite"

	"github.com/talgya/mini-room/internal/engine"
	"github.com/talgya/mini-room/internal/world"
)

// Metadata keys.
const (
	MetaLastTick = "last_tick"
	MetaRunID    = "run_id"
	MetaSeed     = "seed"
	MetaRoom     = "room"
)

// ErrNoState is returned when a lookup finds nothing saved.
var ErrNoState = errors.New("no saved state")

// DB wraps a SQLite connection for room state persistence.
type DB struct {
	conn *sqlx.DB
	enc  *zstd.Encoder
	dec  *zstd.Decoder
}

// Open opens or creates a SQLite database at the given path, creating
// its directory if needed.
func Open(path string) (*DB, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create db dir: %w", err)
	}

	conn, err := sqlx.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	// One writer; SQLite serialises anyway.
	conn.SetMaxOpenConns(1)

	enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedFastest))
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("zstd encoder: %w", err)
	}
	dec, err := zstd.NewReader(nil)
	if err != nil {
		enc.Close()
		conn.Close()
		return nil, fmt.Errorf("zstd decoder: %w", err)
	}

	db := &DB{conn: conn, enc: enc, dec: dec}
	if err := db.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return db, nil
}

// Close closes the database connection.
func (db *DB) Close() error {
	db.dec.Close()
	if err := db.enc.Close(); err != nil {
		slog.Debug("zstd encoder close", "error", err)
	}
	return db.conn.Close()
}

func (db *DB) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS actors (
		id INTEGER PRIMARY KEY,
		name TEXT NOT NULL,
		personality TEXT NOT NULL,
		pos_x REAL NOT NULL,
		pos_z REAL NOT NULL,
		target_x REAL NOT NULL,
		target_z REAL NOT NULL,
		speed REAL NOT NULL,
		state TEXT NOT NULL,
		pause_ticks REAL NOT NULL,
		max_pause REAL NOT NULL,
		partner_id INTEGER,
		conversation_left REAL NOT NULL,
		facing REAL NOT NULL,
		facing_bias REAL NOT NULL,
		walk_phase REAL NOT NULL
	);

	CREATE TABLE IF NOT EXISTS events (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT NOT NULL,
		tick INTEGER NOT NULL,
		actor_id INTEGER NOT NULL,
		kind TEXT NOT NULL,
		description TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS world_meta (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS frames (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT NOT NULL,
		tick INTEGER NOT NULL,
		actors INTEGER NOT NULL,
		data BLOB NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_events_run_tick ON events(run_id, tick);
	CREATE INDEX IF NOT EXISTS idx_frames_run_tick ON frames(run_id, tick);
	`
	_, err := db.conn.Exec(schema)
	return err
}

// SaveEvents appends events to the history of a run.
func (db *DB) SaveEvents(runID string, events []engine.Event) error {
	if len(events) == 0 {
		return nil
	}

	tx, err := db.conn.Beginx()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.Preparex("INSERT INTO events (run_id, tick, actor_id, kind, description) VALUES (?, ?, ?, ?, ?)")
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, e := range events {
		if _, err := stmt.Exec(runID, e.Tick, e.ActorID, e.Kind, e.Description); err != nil {
			return fmt.Errorf("insert event at tick %d: %w", e.Tick, err)
		}
	}

	return tx.Commit()
}

// RecentEvents returns the most recent N events of a run, newest first.
func (db *DB) RecentEvents(runID string, limit int) ([]engine.Event, error) {
	var events []engine.Event
	err := db.conn.Select(&events,
		"SELECT tick, actor_id, kind, description FROM events WHERE run_id = ? ORDER BY id DESC LIMIT ?",
		runID, limit,
	)
	return events, err
}

// SaveMeta stores a key-value pair in world metadata.
func (db *DB) SaveMeta(key, value string) error {
	_, err := db.conn.Exec(
		"INSERT OR REPLACE INTO world_meta (key, value) VALUES (?, ?)",
		key, value,
	)
	return err
}

// GetMeta retrieves a metadata value. A missing key returns ErrNoState.
func (db *DB) GetMeta(key string) (string, error) {
	var value string
	err := db.conn.Get(&value, "SELECT value FROM world_meta WHERE key = ?", key)
	if errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("meta %q: %w", key, ErrNoState)
	}
	return value, err
}

// SaveRoom stores the floor plan so a restored run walks the same room,
// generated or not.
func (db *DB) SaveRoom(room *world.Room) error {
	data, err := json.Marshal(room)
	if err != nil {
		return fmt.Errorf("encode room: %w", err)
	}
	return db.SaveMeta(MetaRoom, string(data))
}

// LoadRoom returns the saved floor plan, validated.
func (db *DB) LoadRoom() (*world.Room, error) {
	raw, err := db.GetMeta(MetaRoom)
	if err != nil {
		return nil, err
	}
	var r world.Room
	if err := json.Unmarshal([]byte(raw), &r); err != nil {
		return nil, fmt.Errorf("decode room: %w", err)
	}
	return world.NewRoom(r.Bounds, r.Obstacles, r.Hotspots)
}

// HasWorldState reports whether a previous run was saved.
func (db *DB) HasWorldState() bool {
	var n int
	if err := db.conn.Get(&n, "SELECT COUNT(*) FROM actors"); err != nil {
		return false
	}
	if n == 0 {
		return false
	}
	_, err := db.GetMeta(MetaRoom)
	return err == nil
}

// LastTick returns the tick of the last save, or 0.
func (db *DB) LastTick() uint64 {
	raw, err := db.GetMeta(MetaLastTick)
	if err != nil {
		return 0
	}
	t, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return 0
	}
	return t
}

// SaveWorldState performs a full save: roster, new events and the tick,
// from one consistent snapshot. On failure the events go back to the
// simulation for the next attempt.
func (db *DB) SaveWorldState(sim *engine.Simulation, runID string) (err error) {
	tick, actors, events := sim.Snapshot()
	slog.Info("saving room state", "actors", len(actors), "events", len(events), "tick", tick)

	eventsSaved := false
	defer func() {
		if err != nil && !eventsSaved {
			sim.RequeueEvents(events)
		}
	}()

	if err := db.SaveActors(actors); err != nil {
		return fmt.Errorf("save actors: %w", err)
	}
	if err := db.SaveEvents(runID, events); err != nil {
		return fmt.Errorf("save events: %w", err)
	}
	eventsSaved = true
	if err := db.SaveMeta(MetaLastTick, strconv.FormatUint(tick, 10)); err != nil {
		return fmt.Errorf("save meta: %w", err)
	}
	if err := db.SaveMeta(MetaRunID, runID); err != nil {
		return fmt.Errorf("save meta: %w", err)
	}

	slog.Info("room state saved")
	return nil
}
