package engine

import (
	"fmt"

	"github.com/talgya/mini-room/internal/agents"
)

// CollisionMode selects which positions a mover is checked against.
type CollisionMode uint8

const (
	// CollisionSequential reads other actors live: actors updated earlier
	// in the same tick are seen at their new positions.
	CollisionSequential CollisionMode = iota
	// CollisionTwoPhase checks every mover against the positions captured
	// at the start of the tick, so update order does not matter.
	CollisionTwoPhase
)

// String returns the config name of m.
func (m CollisionMode) String() string {
	if m == CollisionTwoPhase {
		return "two_phase"
	}
	return "sequential"
}

// ParseCollisionMode maps a config name to a CollisionMode. The empty
// string selects the default.
func ParseCollisionMode(s string) (CollisionMode, error) {
	switch s {
	case "", "sequential":
		return CollisionSequential, nil
	case "two_phase":
		return CollisionTwoPhase, nil
	default:
		return 0, fmt.Errorf("unknown collision mode %q", s)
	}
}

// Config holds everything the simulation needs besides room and actors.
type Config struct {
	Tuning      agents.Tuning
	Collision   CollisionMode
	EventLogCap int // Events kept in memory for the API
}

// DefaultConfig returns the lounge defaults.
func DefaultConfig() Config {
	return Config{
		Tuning:      agents.DefaultTuning(),
		Collision:   CollisionSequential,
		EventLogCap: 1000,
	}
}
