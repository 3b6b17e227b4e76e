package engine

import "github.com/talgya/mini-room/internal/agents"

// Pose is what the renderer needs to place one actor. Y is the walk-cycle
// bob above the floor.
type Pose struct {
	ID          agents.ActorID  `json:"id"`
	Name        string          `json:"name"`
	X           float64         `json:"x"`
	Y           float64         `json:"y"`
	Z           float64         `json:"z"`
	Facing      float64         `json:"facing"`
	State       string          `json:"state"`
	Personality string          `json:"personality"`
	Partner     *agents.ActorID `json:"partner,omitempty"`
}

// Frame is a read-only copy of every pose at one tick.
type Frame struct {
	Tick  uint64 `json:"tick"`
	Poses []Pose `json:"poses"`
}

// Frame captures the current poses.
func (s *Simulation) Frame() Frame {
	s.mu.RLock()
	defer s.mu.RUnlock()

	f := Frame{Tick: s.tick, Poses: make([]Pose, len(s.actors))}
	for i, a := range s.actors {
		p := Pose{
			ID:          a.ID,
			Name:        a.Name,
			X:           a.Position.X,
			Y:           a.Bob,
			Z:           a.Position.Z,
			Facing:      a.Facing,
			State:       a.State.String(),
			Personality: a.Personality.String(),
		}
		if pid, ok := a.PartnerID(); ok {
			p.Partner = &pid
		}
		f.Poses[i] = p
	}
	return f
}
