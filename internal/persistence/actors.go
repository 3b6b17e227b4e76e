package persistence

import (
	"database/sql"
	"fmt"

	"github.com/talgya/mini-room/internal/agents"
	"github.com/talgya/mini-room/internal/world"
)

type actorRow struct {
	ID               uint32        `db:"id"`
	Name             string        `db:"name"`
	Personality      string        `db:"personality"`
	PosX             float64       `db:"pos_x"`
	PosZ             float64       `db:"pos_z"`
	TargetX          float64       `db:"target_x"`
	TargetZ          float64       `db:"target_z"`
	Speed            float64       `db:"speed"`
	State            string        `db:"state"`
	PauseTicks       float64       `db:"pause_ticks"`
	MaxPause         float64       `db:"max_pause"`
	PartnerID        sql.NullInt64 `db:"partner_id"`
	ConversationLeft float64       `db:"conversation_left"`
	Facing           float64       `db:"facing"`
	FacingBias       float64       `db:"facing_bias"`
	WalkPhase        float64       `db:"walk_phase"`
}

func rowFromActor(a *agents.Actor) actorRow {
	r := actorRow{
		ID:               uint32(a.ID),
		Name:             a.Name,
		Personality:      a.Personality.String(),
		PosX:             a.Position.X,
		PosZ:             a.Position.Z,
		TargetX:          a.Target.X,
		TargetZ:          a.Target.Z,
		Speed:            a.Speed,
		State:            a.State.String(),
		PauseTicks:       a.PauseTicks,
		MaxPause:         a.MaxPause,
		ConversationLeft: a.ConversationLeft,
		Facing:           a.Facing,
		FacingBias:       a.FacingBias,
		WalkPhase:        a.WalkPhase,
	}
	if pid, ok := a.PartnerID(); ok {
		r.PartnerID = sql.NullInt64{Int64: int64(pid), Valid: true}
	}
	return r
}

func (r actorRow) actor() (*agents.Actor, error) {
	pers, err := agents.ParsePersonality(r.Personality)
	if err != nil {
		return nil, err
	}
	state, err := agents.ParseMoveState(r.State)
	if err != nil {
		return nil, err
	}

	a := &agents.Actor{
		ID:               agents.ActorID(r.ID),
		Name:             r.Name,
		Personality:      pers,
		Position:         world.Vec2{X: r.PosX, Z: r.PosZ},
		Target:           world.Vec2{X: r.TargetX, Z: r.TargetZ},
		Speed:            r.Speed,
		State:            state,
		PauseTicks:       r.PauseTicks,
		MaxPause:         r.MaxPause,
		Facing:           r.Facing,
		FacingBias:       r.FacingBias,
		WalkPhase:        r.WalkPhase,
		ConversationLeft: r.ConversationLeft,
	}
	if r.PartnerID.Valid {
		a.SetPartner(agents.ActorID(r.PartnerID.Int64))
	}
	return a, nil
}

// SaveActors writes the whole roster (full replace).
func (db *DB) SaveActors(actorList []*agents.Actor) error {
	tx, err := db.conn.Beginx()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec("DELETE FROM actors"); err != nil {
		return err
	}

	stmt, err := tx.PrepareNamed(`INSERT INTO actors
		(id, name, personality, pos_x, pos_z, target_x, target_z, speed, state,
		 pause_ticks, max_pause, partner_id, conversation_left, facing, facing_bias, walk_phase)
		VALUES (:id, :name, :personality, :pos_x, :pos_z, :target_x, :target_z, :speed, :state,
		 :pause_ticks, :max_pause, :partner_id, :conversation_left, :facing, :facing_bias, :walk_phase)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, a := range actorList {
		if _, err := stmt.Exec(rowFromActor(a)); err != nil {
			return fmt.Errorf("insert actor %d: %w", a.ID, err)
		}
	}

	return tx.Commit()
}

// LoadActors reads the roster back in id order.
func (db *DB) LoadActors() ([]*agents.Actor, error) {
	var rows []actorRow
	if err := db.conn.Select(&rows, "SELECT * FROM actors ORDER BY id"); err != nil {
		return nil, fmt.Errorf("select actors: %w", err)
	}

	out := make([]*agents.Actor, 0, len(rows))
	for _, r := range rows {
		a, err := r.actor()
		if err != nil {
			return nil, fmt.Errorf("actor %d: %w", r.ID, err)
		}
		out = append(out, a)
	}
	return out, nil
}
