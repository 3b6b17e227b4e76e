package config

import (
	"fmt"
	"math/rand"

	"github.com/talgya/mini-room/internal/agents"
	"github.com/talgya/mini-room/internal/engine"
	"github.com/talgya/mini-room/internal/world"
)

// BuildRoom returns the floor plan the scenario describes. A generated
// room without its own seed inherits the scenario seed.
func (s *Scenario) BuildRoom() (*world.Room, error) {
	r := s.Room
	switch {
	case r.Generate != nil:
		gen := r.Generate.GenConfig
		if gen.Seed == 0 {
			gen.Seed = s.Seed
		}
		room, err := world.Generate(gen)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalid, err)
		}
		return room, nil
	case r.Bounds != nil:
		room, err := world.NewRoom(*r.Bounds, r.Obstacles, r.Hotspots)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalid, err)
		}
		return room, nil
	default:
		return world.DefaultRoom(), nil
	}
}

// usesPreset reports whether the scenario runs in the authored lounge.
func (s *Scenario) usesPreset() bool {
	return s.Room.Bounds == nil && s.Room.Generate == nil
}

// BuildSeats returns the starting roster: the listed actors, a scatter
// over the floor, or the lounge regulars. Any other room without a roster
// gets a scatter the size of the regulars.
func (s *Scenario) BuildSeats(room *world.Room, rng *rand.Rand) ([]agents.Seat, error) {
	if len(s.Actors) > 0 {
		seats := make([]agents.Seat, 0, len(s.Actors))
		for i, spec := range s.Actors {
			pers := agents.PersonalitySocial
			if spec.Personality != "" {
				p, err := agents.ParsePersonality(spec.Personality)
				if err != nil {
					return nil, fmt.Errorf("%w: actor %d: %w", ErrInvalid, i, err)
				}
				pers = p
			}
			pos := world.Vec2{X: spec.X, Z: spec.Z}
			if err := room.Check(pos); err != nil {
				return nil, fmt.Errorf("%w: actor %d: %w", ErrInvalid, i, err)
			}
			seats = append(seats, agents.Seat{Position: pos, FacingBias: spec.FacingBias, Personality: pers})
		}
		return seats, nil
	}

	count := len(agents.DefaultRoster())
	spacing := s.Behavior.EngageDistance
	switch {
	case s.Scatter != nil:
		count = s.Scatter.Count
		if s.Scatter.Spacing > 0 {
			spacing = s.Scatter.Spacing
		}
	case s.usesPreset():
		return agents.DefaultRoster(), nil
	}

	seats, err := agents.ScatterSeats(room, count, spacing, rng)
	if err != nil {
		return nil, fmt.Errorf("scatter %d actors: %w", count, err)
	}
	return seats, nil
}

// EngineConfig returns the simulation settings.
func (s *Scenario) EngineConfig() (engine.Config, error) {
	mode, err := engine.ParseCollisionMode(s.Collision)
	if err != nil {
		return engine.Config{}, fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	return engine.Config{
		Tuning:      s.Behavior,
		Collision:   mode,
		EventLogCap: s.EventLogCap,
	}, nil
}
