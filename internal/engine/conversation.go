// Conversations: idle social actors pair up with a paused neighbour in
// the engagement band, face each other, and linger a while.
package engine

import (
	"fmt"

	"github.com/talgya/mini-room/internal/agents"
	"github.com/talgya/mini-room/internal/world"
)

// maybeConverse lets a paused, unpaired social actor look for a partner.
// The scan itself only happens with probability ConverseChance.
func (s *Simulation) maybeConverse(a *agents.Actor) {
	t := s.cfg.Tuning
	if s.rng.Float64() >= t.ConverseChance {
		return
	}

	for _, b := range s.actors {
		if b == a || !b.Paused() || b.Conversing() {
			continue
		}
		d := world.Distance(a.Position, b.Position)
		if d <= t.PersonalSpace || d >= t.EngageDistance {
			continue
		}
		s.startConversation(a, b)
		return
	}
}

// startConversation pairs a and b mutually.
func (s *Simulation) startConversation(a, b *agents.Actor) {
	t := s.cfg.Tuning
	length := agents.DrawPause(s.rng, t.ConverseMinTicks, t.ConverseMaxTicks)

	a.SetPartner(b.ID)
	b.SetPartner(a.ID)
	a.ConversationLeft = length
	b.ConversationLeft = length

	a.Facing = agents.FacingToward(a.Position, b.Position)
	b.Facing = agents.FacingToward(b.Position, a.Position)

	// Neither wanders off mid-sentence.
	a.MaxPause += length
	b.MaxPause += length

	s.stats.Conversations++
	s.record(a, EventConverse, fmt.Sprintf("%s strikes up a conversation with %s", a.Name, b.Name))
}

// tickConversations counts down every active pairing once per tick and
// clears the ones that have run their course.
func (s *Simulation) tickConversations(dt float64) {
	for _, a := range s.actors {
		pid, ok := a.PartnerID()
		if !ok || pid < a.ID {
			continue
		}
		b := s.index[pid]
		if b == nil {
			a.ClearPartner()
			continue
		}

		left := a.ConversationLeft - dt
		a.ConversationLeft = left
		b.ConversationLeft = left
		if left <= 0 {
			s.endConversation(a)
		}
	}
}

// endConversation clears a's pairing on both sides.
func (s *Simulation) endConversation(a *agents.Actor) {
	pid, ok := a.PartnerID()
	if !ok {
		return
	}
	a.ClearPartner()

	b := s.index[pid]
	if b == nil {
		return
	}
	if bp, ok := b.PartnerID(); ok && bp == a.ID {
		b.ClearPartner()
	}
	s.record(a, EventPart, fmt.Sprintf("%s and %s part ways", a.Name, b.Name))
}
