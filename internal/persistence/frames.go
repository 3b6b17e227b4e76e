package persistence

import (
	"encoding/json"
	"fmt"

	"github.com/talgya/mini-room/internal/engine"
)

type frameRow struct {
	Tick uint64 `db:"tick"`
	Data []byte `db:"data"`
}

// SaveFrame archives one frame as zstd-compressed JSON.
func (db *DB) SaveFrame(runID string, f engine.Frame) error {
	raw, err := json.Marshal(f)
	if err != nil {
		return fmt.Errorf("encode frame: %w", err)
	}
	blob := db.enc.EncodeAll(raw, make([]byte, 0, len(raw)/4))

	_, err = db.conn.Exec(
		"INSERT INTO frames (run_id, tick, actors, data) VALUES (?, ?, ?, ?)",
		runID, f.Tick, len(f.Poses), blob,
	)
	return err
}

// LoadFrames returns up to limit archived frames of a run with tick >=
// since, oldest first.
func (db *DB) LoadFrames(runID string, since uint64, limit int) ([]engine.Frame, error) {
	var rows []frameRow
	err := db.conn.Select(&rows,
		"SELECT tick, data FROM frames WHERE run_id = ? AND tick >= ? ORDER BY tick LIMIT ?",
		runID, since, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("select frames: %w", err)
	}

	frames := make([]engine.Frame, 0, len(rows))
	for _, r := range rows {
		raw, err := db.dec.DecodeAll(r.Data, nil)
		if err != nil {
			return nil, fmt.Errorf("frame %d: decompress: %w", r.Tick, err)
		}
		var f engine.Frame
		if err := json.Unmarshal(raw, &f); err != nil {
			return nil, fmt.Errorf("frame %d: decode: %w", r.Tick, err)
		}
		frames = append(frames, f)
	}
	return frames, nil
}

// PruneFrames keeps only the newest keep frames of a run and returns how
// many were removed.
func (db *DB) PruneFrames(runID string, keep int) (int64, error) {
	res, err := db.conn.Exec(`DELETE FROM frames WHERE run_id = ? AND id NOT IN
		(SELECT id FROM frames WHERE run_id = ? ORDER BY id DESC LIMIT ?)`,
		runID, runID, keep,
	)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// FrameCount returns the number of archived frames of a run.
func (db *DB) FrameCount(runID string) (int, error) {
	var n int
	err := db.conn.Get(&n, "SELECT COUNT(*) FROM frames WHERE run_id = ?", runID)
	return n, err
}
