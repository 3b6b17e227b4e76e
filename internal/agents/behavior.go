// Per-actor decisions for the crowd walker: where to go next, how long to
// idle, which way to face. Cross-actor rules (collision, conversations)
// live in the engine, which owns the whole actor list.
package agents

import (
	"errors"
	"fmt"
	"math"
	"math/rand"

	"github.com/talgya/mini-room/internal/world"
)

// ErrUnplaceable is returned when no walkable destination was found within
// the bounded number of attempts.
var ErrUnplaceable = errors.New("no placeable destination")

// ChooseDestination picks a walkable point for a. With probability
// HotspotBias the sample comes from a hotspot matching the actor's
// personality, otherwise uniformly from the bounds shrunk by WallMargin.
// Samples that land in an obstacle are redrawn, at most
// DestinationAttempts times in total.
func ChooseDestination(a *Actor, room *world.Room, rng *rand.Rand, t Tuning) (world.Vec2, error) {
	area := room.Bounds.Inset(t.WallMargin)
	hotspots := room.HotspotsOf(a.Personality.HotspotKind())

	attempts := t.DestinationAttempts
	if attempts < 1 {
		attempts = 1
	}

	for i := 0; i < attempts; i++ {
		var p world.Vec2
		if len(hotspots) > 0 && rng.Float64() < t.HotspotBias {
			h := hotspots[rng.Intn(len(hotspots))]
			p = h.Zone.Sample(rng)
		} else {
			p = area.Sample(rng)
		}
		if room.Walkable(p) {
			return p, nil
		}
	}

	return a.Position, fmt.Errorf("actor %d after %d attempts: %w", a.ID, attempts, ErrUnplaceable)
}

// DrawPause returns a pause length uniformly in [lo, hi].
func DrawPause(rng *rand.Rand, lo, hi float64) float64 {
	if hi <= lo {
		return lo
	}
	return lo + rng.Float64()*(hi-lo)
}

// RandomFacing returns a heading uniformly in [-π, π).
func RandomFacing(rng *rand.Rand) float64 {
	return rng.Float64()*2*math.Pi - math.Pi
}

// FacingToward returns the heading that turns an actor at from toward to.
func FacingToward(from, to world.Vec2) float64 {
	return to.Sub(from).Heading()
}

// NormalizeAngle wraps a into (-π, π].
func NormalizeAngle(a float64) float64 {
	a = math.Mod(a, 2*math.Pi)
	if a <= -math.Pi {
		a += 2 * math.Pi
	} else if a > math.Pi {
		a -= 2 * math.Pi
	}
	return a
}

// Depart switches a paused actor to moving toward target and draws the
// length of its next pause.
func Depart(a *Actor, target world.Vec2, rng *rand.Rand, t Tuning) {
	a.Target = target
	a.State = StateMoving
	a.PauseTicks = 0
	a.MaxPause = DrawPause(rng, t.PauseMin, t.PauseMax)
}

// Halt stops a at its current position. The pause drawn at departure
// applies.
func Halt(a *Actor) {
	a.State = StatePaused
	a.PauseTicks = 0
	a.Bob = 0
}

// Wait stops a for exactly pause ticks before it tries again, replacing
// the pause drawn at departure. A zero pause retries on the next tick.
func Wait(a *Actor, pause float64) {
	Halt(a)
	a.MaxPause = pause
}
