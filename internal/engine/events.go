package engine

import (
	"log/slog"

	"github.com/talgya/mini-room/internal/agents"
)

// EventKind categorises events.
type EventKind string

const (
	EventDepart   EventKind = "depart"
	EventArrive   EventKind = "arrive"
	EventBlocked  EventKind = "blocked"
	EventStuck    EventKind = "stuck"
	EventConverse EventKind = "converse"
	EventPart     EventKind = "part"
)

// Event is a notable occurrence in the room.
type Event struct {
	Tick        uint64         `json:"tick" db:"tick"`
	ActorID     agents.ActorID `json:"actor_id" db:"actor_id"`
	Kind        EventKind      `json:"kind" db:"kind"`
	Description string         `json:"description" db:"description"`
}

// Stats tracks aggregate room statistics.
type Stats struct {
	Actors         int     `json:"actors"`
	Moving         int     `json:"moving"`
	Paused         int     `json:"paused"`
	Conversing     int     `json:"conversing"`
	DistanceWalked float64 `json:"distance_walked"`
	Departures     uint64  `json:"departures"`
	Arrivals       uint64  `json:"arrivals"`
	BlockedSteps   uint64  `json:"blocked_steps"`
	Conversations  uint64  `json:"conversations"`
}

func (s *Simulation) record(a *agents.Actor, kind EventKind, desc string) {
	e := Event{Tick: s.tick, ActorID: a.ID, Kind: kind, Description: desc}
	slog.Debug("event", "tick", e.Tick, "actor", e.ActorID, "kind", e.Kind, "description", e.Description)

	limit := s.cfg.EventLogCap
	s.events = append(s.events, e)
	if len(s.events) > limit {
		s.events = append(s.events[:0], s.events[len(s.events)-limit:]...)
	}

	// Pending events are bounded too in case nobody drains them.
	s.pending = append(s.pending, e)
	if len(s.pending) > 4*limit {
		s.pending = append(s.pending[:0], s.pending[len(s.pending)-4*limit:]...)
	}
}

// Events returns up to limit of the most recent events, oldest first.
// limit <= 0 returns everything kept in memory.
func (s *Simulation) Events(limit int) []Event {
	s.mu.RLock()
	defer s.mu.RUnlock()

	start := 0
	if limit > 0 && len(s.events) > limit {
		start = len(s.events) - limit
	}
	return append([]Event(nil), s.events[start:]...)
}

// DrainEvents returns the events recorded since the last drain.
func (s *Simulation) DrainEvents() []Event {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := s.pending
	s.pending = nil
	return out
}

// RequeueEvents puts drained events back in front of any recorded since,
// so a failed save can retry them.
func (s *Simulation) RequeueEvents(events []Event) {
	if len(events) == 0 {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	s.pending = append(append([]Event(nil), events...), s.pending...)
	if limit := 4 * s.cfg.EventLogCap; len(s.pending) > limit {
		s.pending = s.pending[len(s.pending)-limit:]
	}
}

// EventCounts tallies the in-memory events by kind.
func (s *Simulation) EventCounts() map[EventKind]int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	counts := make(map[EventKind]int)
	for _, e := range s.events {
		counts[e.Kind]++
	}
	return counts
}
