// Package agents provides the actor data model, roster spawning and the
// per-actor decisions of the crowd walker (destinations, pauses, facing).
package agents

import (
	"fmt"

	"github.com/talgya/mini-room/internal/world"
)

// ActorID is the identity index of an actor.
type ActorID uint32

// Personality biases where an actor likes to go.
type Personality uint8

const (
	PersonalitySocial   Personality = iota // Drawn to the bar and lounge; starts conversations
	PersonalityObserver                    // Drawn to quiet corners
)

// String returns the wire name of p.
func (p Personality) String() string {
	switch p {
	case PersonalitySocial:
		return "social"
	case PersonalityObserver:
		return "observer"
	default:
		return fmt.Sprintf("personality(%d)", uint8(p))
	}
}

// HotspotKind returns the kind of hotspot p is attracted to.
func (p Personality) HotspotKind() world.HotspotKind {
	if p == PersonalityObserver {
		return world.HotspotQuiet
	}
	return world.HotspotSocial
}

// ParsePersonality maps a wire name back to a Personality.
func ParsePersonality(s string) (Personality, error) {
	switch s {
	case "social":
		return PersonalitySocial, nil
	case "observer":
		return PersonalityObserver, nil
	default:
		return 0, fmt.Errorf("unknown personality %q", s)
	}
}

// MarshalText encodes p by name.
func (p Personality) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// UnmarshalText decodes a personality name.
func (p *Personality) UnmarshalText(b []byte) error {
	v, err := ParsePersonality(string(b))
	if err != nil {
		return err
	}
	*p = v
	return nil
}

// MoveState is the top-level walker state.
type MoveState uint8

const (
	StatePaused MoveState = iota
	StateMoving
)

// String returns the wire name of m.
func (m MoveState) String() string {
	if m == StateMoving {
		return "moving"
	}
	return "paused"
}

// ParseMoveState maps a wire name back to a MoveState.
func ParseMoveState(s string) (MoveState, error) {
	switch s {
	case "paused":
		return StatePaused, nil
	case "moving":
		return StateMoving, nil
	default:
		return 0, fmt.Errorf("unknown move state %q", s)
	}
}

// MarshalText encodes m by name.
func (m MoveState) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

// UnmarshalText decodes a move state name.
func (m *MoveState) UnmarshalText(b []byte) error {
	v, err := ParseMoveState(string(b))
	if err != nil {
		return err
	}
	*m = v
	return nil
}

// Actor is a simulated person in the room.
type Actor struct {
	ID          ActorID     `json:"id"`
	Name        string      `json:"name"`
	Personality Personality `json:"personality"`

	// Location on the floor plane.
	Position world.Vec2 `json:"position"`
	Target   world.Vec2 `json:"target"`
	Speed    float64    `json:"speed"` // Units per tick at dt = 1

	// Pause bookkeeping: PauseTicks counts up to MaxPause.
	State      MoveState `json:"state"`
	PauseTicks float64   `json:"pause_ticks"`
	MaxPause   float64   `json:"max_pause"`

	// Conversation pairing. Always mutual; cleared on both sides together.
	Partner          *ActorID `json:"partner,omitempty"`
	ConversationLeft float64  `json:"conversation_left,omitempty"`

	// Presentation cues exposed to the renderer.
	Facing     float64 `json:"facing"`      // Radians, atan2(dx, dz)
	FacingBias float64 `json:"facing_bias"` // Heading at spawn
	Bob        float64 `json:"bob"`         // Vertical walk-cycle offset
	WalkPhase  float64 `json:"walk_phase"`
}

// Paused reports whether the actor is standing still.
func (a *Actor) Paused() bool {
	return a.State == StatePaused
}

// Conversing reports whether the actor has a conversation partner.
func (a *Actor) Conversing() bool {
	return a.Partner != nil
}

// PartnerID returns the partner's ID, if any.
func (a *Actor) PartnerID() (ActorID, bool) {
	if a.Partner == nil {
		return 0, false
	}
	return *a.Partner, true
}

// SetPartner records id as the conversation partner.
func (a *Actor) SetPartner(id ActorID) {
	pid := id
	a.Partner = &pid
}

// ClearPartner removes the pairing on this side only. Callers clear both
// sides together.
func (a *Actor) ClearPartner() {
	a.Partner = nil
	a.ConversationLeft = 0
}

// Clone returns a deep copy of a.
func (a *Actor) Clone() *Actor {
	c := *a
	if a.Partner != nil {
		pid := *a.Partner
		c.Partner = &pid
	}
	return &c
}
