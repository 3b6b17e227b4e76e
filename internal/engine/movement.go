// Per-actor walker state machine: PAUSED → MOVING → PAUSED, with
// obstacle and personal-space rejection of every step.
package engine

import (
	"fmt"
	"math"

	"github.com/talgya/mini-room/internal/agents"
	"github.com/talgya/mini-room/internal/world"
)

// advance runs one tick for the actor at step index i.
func (s *Simulation) advance(i int, a *agents.Actor, dt float64) {
	switch a.State {
	case agents.StatePaused:
		a.PauseTicks += dt
		if a.PauseTicks >= a.MaxPause {
			s.depart(a)
			return
		}
		if a.Personality == agents.PersonalitySocial && !a.Conversing() {
			s.maybeConverse(a)
		}
	case agents.StateMoving:
		s.walk(i, a, dt)
	}
}

// depart ends a pause: any conversation is over and a new destination is
// chosen. If none can be placed the actor waits a short pause and retries.
func (s *Simulation) depart(a *agents.Actor) {
	t := s.cfg.Tuning
	if a.Conversing() {
		s.endConversation(a)
	}

	target, err := agents.ChooseDestination(a, s.room, s.rng, t)
	if err != nil {
		agents.Wait(a, agents.DrawPause(s.rng, t.ShortPauseMin, t.ShortPauseMax))
		s.record(a, EventStuck, fmt.Sprintf("%s cannot find anywhere to go", a.Name))
		return
	}

	agents.Depart(a, target, s.rng, t)
	s.stats.Departures++
	s.record(a, EventDepart, fmt.Sprintf("%s heads for %s", a.Name, target))
}

// walk moves a toward its target by at most Speed·dt.
func (s *Simulation) walk(i int, a *agents.Actor, dt float64) {
	t := s.cfg.Tuning

	toTarget := a.Target.Sub(a.Position)
	d := toTarget.Len()
	if d < t.Epsilon {
		s.arrive(a)
		return
	}

	step := a.Speed * dt
	arriving := d <= step+t.Epsilon
	candidate := a.Target
	if !arriving {
		candidate = a.Position.Add(toTarget.Scale(step / d))
	}

	if reason := s.blocked(i, a, candidate); reason != "" {
		s.onBlocked(a, reason)
		return
	}

	moved := world.Distance(a.Position, candidate)
	a.Position = candidate
	a.Facing = toTarget.Heading()
	a.WalkPhase += moved * t.BobFrequency
	a.Bob = t.BobHeight * math.Abs(math.Sin(a.WalkPhase))
	s.stats.DistanceWalked += moved

	if arriving {
		s.arrive(a)
	}
}

// arrive snaps a onto its target, pauses it and turns it to look around.
func (s *Simulation) arrive(a *agents.Actor) {
	if s.room.Walkable(a.Target) {
		a.Position = a.Target
	}
	agents.Halt(a)
	a.Facing = agents.RandomFacing(s.rng)
	s.stats.Arrivals++
	s.record(a, EventArrive, fmt.Sprintf("%s stops at %s", a.Name, a.Position))
}

// blocked returns why candidate is not a legal position for the actor at
// index i, or "" when the step is clear.
func (s *Simulation) blocked(i int, a *agents.Actor, candidate world.Vec2) string {
	if err := s.room.Check(candidate); err != nil {
		return err.Error()
	}

	ps := s.cfg.Tuning.PersonalSpace
	for j, other := range s.view {
		if j == i {
			continue
		}
		dc := world.Distance(candidate, other)
		if dc >= ps {
			continue
		}
		// Already too close: stepping away is always allowed.
		if dc > world.Distance(a.Position, other) {
			continue
		}
		return fmt.Sprintf("too close to %s", s.actors[j].Name)
	}
	return ""
}

// onBlocked resolves a rejected step with an unweighted coin flip: escape
// toward a brand-new destination, or wait a short pause and retry.
func (s *Simulation) onBlocked(a *agents.Actor, reason string) {
	t := s.cfg.Tuning
	s.stats.BlockedSteps++
	s.record(a, EventBlocked, fmt.Sprintf("%s is blocked: %s", a.Name, reason))

	if s.rng.Float64() < 0.5 {
		if target, err := agents.ChooseDestination(a, s.room, s.rng, t); err == nil {
			a.Target = target
			return
		}
	}
	agents.Wait(a, agents.DrawPause(s.rng, t.ShortPauseMin, t.ShortPauseMax))
}
