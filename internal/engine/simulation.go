// Simulation is the crowd walker context: it owns the room, the actors and
// the random source, and advances them one frame at a time.
package engine

import (
	"errors"
	"fmt"
	"math/rand"
	"sync"

	"github.com/talgya/mini-room/internal/agents"
	"github.com/talgya/mini-room/internal/world"
)

// Simulation holds the complete room state. Step is serial; the mutex only
// separates a stepping loop from concurrent readers such as the API.
type Simulation struct {
	mu sync.RWMutex

	room   *world.Room
	actors []*agents.Actor
	index  map[agents.ActorID]*agents.Actor
	cfg    Config
	rng    *rand.Rand

	tick    uint64
	events  []Event // Recent events, capped at cfg.EventLogCap
	pending []Event // Not yet handed to persistence
	stats   Stats

	view []world.Vec2 // Per-tick collision positions, reused
}

// NewSimulation validates the initial state and returns a ready context.
// Actors are advanced in the order given.
func NewSimulation(room *world.Room, actors []*agents.Actor, rng *rand.Rand, cfg Config) (*Simulation, error) {
	if room == nil {
		return nil, errors.New("simulation needs a room")
	}
	if rng == nil {
		return nil, errors.New("simulation needs a random source")
	}
	if err := cfg.Tuning.Validate(); err != nil {
		return nil, fmt.Errorf("tuning: %w", err)
	}
	if cfg.EventLogCap <= 0 {
		cfg.EventLogCap = DefaultConfig().EventLogCap
	}

	index := make(map[agents.ActorID]*agents.Actor, len(actors))
	for _, a := range actors {
		if _, dup := index[a.ID]; dup {
			return nil, fmt.Errorf("duplicate actor id %d", a.ID)
		}
		if err := room.Check(a.Position); err != nil {
			return nil, fmt.Errorf("actor %d start: %w", a.ID, err)
		}
		index[a.ID] = a
	}

	// Restored pairings must still be mutual.
	for _, a := range actors {
		pid, ok := a.PartnerID()
		if !ok {
			continue
		}
		b := index[pid]
		if b == nil || b.Partner == nil || *b.Partner != a.ID {
			return nil, fmt.Errorf("actor %d has one-sided partner %d", a.ID, pid)
		}
	}

	s := &Simulation{
		room:   room,
		actors: actors,
		index:  index,
		cfg:    cfg,
		rng:    rng,
		view:   make([]world.Vec2, len(actors)),
	}
	s.updateStats()
	return s, nil
}

// Step advances every actor once. dt scales walking distance and pause
// accumulation; dt = 1 is one frame.
func (s *Simulation) Step(dt float64) {
	if dt <= 0 {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.tick++
	s.tickConversations(dt)

	for i, a := range s.actors {
		s.view[i] = a.Position
	}
	for i, a := range s.actors {
		s.advance(i, a, dt)
		if s.cfg.Collision == CollisionSequential {
			s.view[i] = a.Position
		}
	}

	s.updateStats()
}

// SetTick restores the tick counter of a saved run.
func (s *Simulation) SetTick(tick uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tick = tick
}

// Tick returns the number of steps taken.
func (s *Simulation) Tick() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.tick
}

// Room returns the static floor plan.
func (s *Simulation) Room() *world.Room {
	return s.room
}

// Config returns the simulation settings.
func (s *Simulation) Config() Config {
	return s.cfg
}

// Actors returns copies of all actors in step order.
func (s *Simulation) Actors() []*agents.Actor {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*agents.Actor, len(s.actors))
	for i, a := range s.actors {
		out[i] = a.Clone()
	}
	return out
}

// Snapshot returns the tick, copies of all actors and the events pending
// persistence, all taken under one lock so they describe the same tick.
// The pending events are drained.
func (s *Simulation) Snapshot() (uint64, []*agents.Actor, []Event) {
	s.mu.Lock()
	defer s.mu.Unlock()

	actors := make([]*agents.Actor, len(s.actors))
	for i, a := range s.actors {
		actors[i] = a.Clone()
	}
	events := s.pending
	s.pending = nil
	return s.tick, actors, events
}

// Actor returns a copy of one actor.
func (s *Simulation) Actor(id agents.ActorID) (*agents.Actor, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	a, ok := s.index[id]
	if !ok {
		return nil, false
	}
	return a.Clone(), true
}

// Stats returns the aggregate counters as of the last step.
func (s *Simulation) Stats() Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.stats
}

func (s *Simulation) updateStats() {
	moving, paused, conversing := 0, 0, 0
	for _, a := range s.actors {
		if a.Paused() {
			paused++
		} else {
			moving++
		}
		if a.Conversing() {
			conversing++
		}
	}
	s.stats.Actors = len(s.actors)
	s.stats.Moving = moving
	s.stats.Paused = paused
	s.stats.Conversing = conversing
}
