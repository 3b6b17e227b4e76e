package engine

import (
	"errors"
	"math"
	"math/rand"
	"testing"

	"github.com/talgya/mini-room/internal/agents"
	"github.com/talgya/mini-room/internal/world"
)

func openRoom(t *testing.T, obstacles ...world.Obstacle) *world.Room {
	t.Helper()
	room, err := world.NewRoom(world.NewRect(-10, -10, 10, 10), obstacles, nil)
	if err != nil {
		t.Fatalf("NewRoom: %v", err)
	}
	return room
}

// actorAt returns a paused actor that will not leave on its own.
func actorAt(id agents.ActorID, x, z float64, pers agents.Personality) *agents.Actor {
	p := world.Vec2{X: x, Z: z}
	return &agents.Actor{
		ID:          id,
		Name:        "actor",
		Personality: pers,
		Position:    p,
		Target:      p,
		Speed:       0.1,
		State:       agents.StatePaused,
		MaxPause:    1e9,
	}
}

func walkTo(a *agents.Actor, x, z float64) *agents.Actor {
	a.Target = world.Vec2{X: x, Z: z}
	a.State = agents.StateMoving
	return a
}

func newSim(t *testing.T, room *world.Room, actors []*agents.Actor, cfg Config) *Simulation {
	t.Helper()
	sim, err := NewSimulation(room, actors, rand.New(rand.NewSource(1)), cfg)
	if err != nil {
		t.Fatalf("NewSimulation: %v", err)
	}
	return sim
}

func assertInvariants(t *testing.T, sim *Simulation, tick int) {
	t.Helper()
	for _, a := range sim.actors {
		if err := sim.room.Check(a.Position); err != nil {
			t.Fatalf("tick %d: actor %d at illegal position: %v", tick, a.ID, err)
		}
		if pid, ok := a.PartnerID(); ok {
			b := sim.index[pid]
			if b == nil {
				t.Fatalf("tick %d: actor %d paired with unknown %d", tick, a.ID, pid)
			}
			if bp, ok := b.PartnerID(); !ok || bp != a.ID {
				t.Fatalf("tick %d: pairing %d→%d is one-sided", tick, a.ID, pid)
			}
		}
	}
}

func TestStraightWalkArrivesAndPauses(t *testing.T) {
	a := walkTo(actorAt(0, 0, 0, agents.PersonalityObserver), 5, 0)
	sim := newSim(t, openRoom(t), []*agents.Actor{a}, DefaultConfig())

	for i := 0; i < 49; i++ {
		sim.Step(1)
	}
	if a.State != agents.StateMoving {
		t.Fatalf("after 49 ticks actor should still be walking, at %s", a.Position)
	}

	sim.Step(1)
	if math.Abs(a.Position.X-5) > 1e-9 || a.Position.Z != 0 {
		t.Fatalf("after 50 ticks position = %s, want (5, 0)", a.Position)
	}
	if a.State != agents.StatePaused {
		t.Fatal("actor should pause on arrival")
	}
	if a.Bob != 0 {
		t.Fatalf("paused actor still bobbing: %v", a.Bob)
	}
	if got := sim.Stats().Arrivals; got != 1 {
		t.Fatalf("arrivals = %d, want 1", got)
	}
}

func TestWalkingFacesDirectionOfTravel(t *testing.T) {
	a := walkTo(actorAt(0, 0, 0, agents.PersonalityObserver), 0, -5)
	sim := newSim(t, openRoom(t), []*agents.Actor{a}, DefaultConfig())

	sim.Step(1)
	if math.Abs(math.Abs(a.Facing)-math.Pi) > 1e-9 {
		t.Fatalf("walking toward -z should face ±pi, got %v", a.Facing)
	}
	if a.Bob <= 0 {
		t.Fatalf("walking actor should bob, got %v", a.Bob)
	}
}

func TestObstacleIsNeverEntered(t *testing.T) {
	box := world.Obstacle{ID: "box", Kind: world.ObstacleFurniture, Zone: world.NewRect(2, -1, 3, 1)}
	room := openRoom(t, box)

	cfg := DefaultConfig()
	cfg.Tuning.PauseMin, cfg.Tuning.PauseMax = 1, 5
	cfg.Tuning.ShortPauseMin, cfg.Tuning.ShortPauseMax = 1, 3

	a := walkTo(actorAt(0, 0, 0, agents.PersonalityObserver), 5, 0)
	a.MaxPause = 1
	sim := newSim(t, room, []*agents.Actor{a}, cfg)

	for i := 0; i < 5000; i++ {
		sim.Step(1)
		p := a.Position
		if p.X >= 2 && p.X <= 3 && p.Z >= -1 && p.Z <= 1 {
			t.Fatalf("tick %d: actor entered obstacle at %s", i, p)
		}
		if !room.InBounds(p) {
			t.Fatalf("tick %d: actor left the room at %s", i, p)
		}
	}
	if sim.Stats().BlockedSteps == 0 {
		t.Fatal("walking straight through the box should have been blocked at least once")
	}
}

func TestPersonalSpaceRejectsStep(t *testing.T) {
	mover := walkTo(actorAt(0, 0, 0, agents.PersonalityObserver), 2, 0)
	stander := actorAt(1, 0.45, 0, agents.PersonalityObserver)
	sim := newSim(t, openRoom(t), []*agents.Actor{mover, stander}, DefaultConfig())

	sim.Step(1)

	if mover.Position != (world.Vec2{}) {
		t.Fatalf("blocked mover moved to %s", mover.Position)
	}
	redirected := mover.State == agents.StateMoving && mover.Target != (world.Vec2{X: 2, Z: 0})
	if !redirected && mover.State != agents.StatePaused {
		t.Fatalf("blocked mover neither re-destinationed nor paused: state=%s target=%s", mover.State, mover.Target)
	}
	if got := sim.Stats().BlockedSteps; got != 1 {
		t.Fatalf("blocked steps = %d, want 1", got)
	}
}

func TestBlockedStepFlipsBetweenEscapeAndWait(t *testing.T) {
	zero := DefaultConfig()
	zero.Tuning.ShortPauseMin, zero.Tuning.ShortPauseMax = 0, 0

	tests := []struct {
		name string
		cfg  Config
	}{
		{"default short pause", DefaultConfig()},
		{"zero short pause", zero},
	}

	const trials = 200
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tn := tt.cfg.Tuning
			room := openRoom(t)
			escapes, waits := 0, 0

			for seed := int64(1); seed <= trials; seed++ {
				mover := walkTo(actorAt(0, 0, 0, agents.PersonalityObserver), 2, 0)
				mover.MaxPause = 400
				stander := actorAt(1, 0.45, 0, agents.PersonalityObserver)
				sim, err := NewSimulation(room, []*agents.Actor{mover, stander}, rand.New(rand.NewSource(seed)), tt.cfg)
				if err != nil {
					t.Fatalf("NewSimulation: %v", err)
				}

				sim.Step(1)
				if mover.Position != (world.Vec2{}) {
					t.Fatalf("seed %d: blocked mover moved to %s", seed, mover.Position)
				}

				switch mover.State {
				case agents.StateMoving:
					escapes++
					if mover.Target == (world.Vec2{X: 2, Z: 0}) || !room.Walkable(mover.Target) {
						t.Fatalf("seed %d: escape kept or broke the target: %s", seed, mover.Target)
					}
				case agents.StatePaused:
					waits++
					if mover.MaxPause < tn.ShortPauseMin || mover.MaxPause > tn.ShortPauseMax {
						t.Fatalf("seed %d: wait pause %v outside [%v, %v]", seed, mover.MaxPause, tn.ShortPauseMin, tn.ShortPauseMax)
					}
					if tn.ShortPauseMax == 0 {
						sim.Step(1)
						if mover.State != agents.StateMoving || sim.Stats().Departures != 1 {
							t.Fatalf("seed %d: zero wait should retry on the next tick, state=%s", seed, mover.State)
						}
					}
				}
			}

			if escapes == 0 || waits == 0 {
				t.Fatalf("coin flip is one-sided: %d escapes, %d waits", escapes, waits)
			}
			if share := float64(escapes) / trials; share < 0.35 || share > 0.65 {
				t.Fatalf("escape share %.2f is far from even", share)
			}
		})
	}
}

func TestSteppingAwayFromCrowdingIsAllowed(t *testing.T) {
	mover := walkTo(actorAt(0, 0, 0, agents.PersonalityObserver), -2, 0)
	crowder := actorAt(1, 0.2, 0, agents.PersonalityObserver)
	sim := newSim(t, openRoom(t), []*agents.Actor{mover, crowder}, DefaultConfig())

	sim.Step(1)
	if math.Abs(mover.Position.X+0.1) > 1e-9 {
		t.Fatalf("mover should step away to -0.1, got %s", mover.Position)
	}
}

func TestPausedActorKeepsTargetUntilThreshold(t *testing.T) {
	a := actorAt(0, 1, 1, agents.PersonalityObserver)
	a.MaxPause = 10
	sim := newSim(t, world.DefaultRoom(), []*agents.Actor{a}, DefaultConfig())

	for i := 0; i < 9; i++ {
		sim.Step(1)
		if a.Target != a.Position || a.State != agents.StatePaused {
			t.Fatalf("tick %d: paused actor changed target to %s", i+1, a.Target)
		}
	}

	sim.Step(1)
	if a.State != agents.StateMoving {
		t.Fatal("actor should depart once the pause counter reaches the threshold")
	}
	if a.Target == a.Position {
		t.Fatal("departing actor needs a new target")
	}
	tune := sim.cfg.Tuning
	if a.MaxPause < tune.PauseMin || a.MaxPause > tune.PauseMax {
		t.Fatalf("next pause %v outside [%v, %v]", a.MaxPause, tune.PauseMin, tune.PauseMax)
	}
}

func TestCollisionModesDifferOnUpdateOrder(t *testing.T) {
	for _, tc := range []struct {
		mode      CollisionMode
		wantX     float64
		wantBlock uint64
	}{
		{CollisionSequential, 0.1, 0},
		{CollisionTwoPhase, 0, 1},
	} {
		t.Run(tc.mode.String(), func(t *testing.T) {
			leader := walkTo(actorAt(0, 0.45, 0, agents.PersonalityObserver), 5, 0)
			follower := walkTo(actorAt(1, 0, 0, agents.PersonalityObserver), 5, 0)

			cfg := DefaultConfig()
			cfg.Collision = tc.mode
			sim := newSim(t, openRoom(t), []*agents.Actor{leader, follower}, cfg)

			sim.Step(1)
			if math.Abs(follower.Position.X-tc.wantX) > 1e-9 {
				t.Fatalf("follower x = %v, want %v", follower.Position.X, tc.wantX)
			}
			if got := sim.Stats().BlockedSteps; got != tc.wantBlock {
				t.Fatalf("blocked steps = %d, want %d", got, tc.wantBlock)
			}
		})
	}
}

func TestCrowdInvariantsHold(t *testing.T) {
	for _, mode := range []CollisionMode{CollisionSequential, CollisionTwoPhase} {
		t.Run(mode.String(), func(t *testing.T) {
			cfg := DefaultConfig()
			cfg.Collision = mode
			cfg.Tuning.Speed = 0.08
			cfg.Tuning.PauseMin, cfg.Tuning.PauseMax = 10, 60
			cfg.Tuning.ConverseChance = 0.2
			cfg.Tuning.ConverseMinTicks, cfg.Tuning.ConverseMaxTicks = 5, 30

			room := world.DefaultRoom()
			rng := rand.New(rand.NewSource(77))
			actors := agents.NewSpawner(rng, cfg.Tuning).SpawnRoster(agents.DefaultRoster())
			sim, err := NewSimulation(room, actors, rng, cfg)
			if err != nil {
				t.Fatalf("NewSimulation: %v", err)
			}

			for i := 0; i < 5000; i++ {
				sim.Step(1)
				assertInvariants(t, sim, i)
			}

			st := sim.Stats()
			if st.Departures == 0 || st.Arrivals == 0 {
				t.Fatalf("crowd never moved: %+v", st)
			}
			if st.Conversations == 0 {
				t.Fatalf("no conversations in 5000 ticks: %+v", st)
			}
		})
	}
}

func TestNewSimulationValidation(t *testing.T) {
	box := world.Obstacle{ID: "box", Kind: world.ObstacleFurniture, Zone: world.NewRect(2, -1, 3, 1)}
	room := openRoom(t, box)
	rng := rand.New(rand.NewSource(1))

	_, err := NewSimulation(room, []*agents.Actor{actorAt(0, 2.5, 0, agents.PersonalitySocial)}, rng, DefaultConfig())
	if !errors.Is(err, world.ErrInsideObstacle) {
		t.Fatalf("start inside obstacle: got %v", err)
	}

	_, err = NewSimulation(room, []*agents.Actor{actorAt(0, 20, 0, agents.PersonalitySocial)}, rng, DefaultConfig())
	if !errors.Is(err, world.ErrOutOfBounds) {
		t.Fatalf("start outside bounds: got %v", err)
	}

	dup := []*agents.Actor{actorAt(3, 0, 0, agents.PersonalitySocial), actorAt(3, 1, 1, agents.PersonalitySocial)}
	if _, err := NewSimulation(room, dup, rng, DefaultConfig()); err == nil {
		t.Fatal("duplicate ids accepted")
	}

	lonely := actorAt(0, 0, 0, agents.PersonalitySocial)
	lonely.SetPartner(1)
	other := actorAt(1, 1, 0, agents.PersonalitySocial)
	if _, err := NewSimulation(room, []*agents.Actor{lonely, other}, rng, DefaultConfig()); err == nil {
		t.Fatal("one-sided pairing accepted")
	}

	bad := DefaultConfig()
	bad.Tuning.Speed = 0
	if _, err := NewSimulation(room, nil, rng, bad); err == nil {
		t.Fatal("invalid tuning accepted")
	}
}

func TestUnplaceableActorStandsStill(t *testing.T) {
	// A margin wider than the room collapses every sample onto the centre,
	// which the pillar covers.
	pillar := world.Obstacle{ID: "pillar", Kind: world.ObstacleFurniture, Zone: world.NewRect(-1, -1, 1, 1)}
	room := openRoom(t, pillar)

	cfg := DefaultConfig()
	cfg.Tuning.WallMargin = 100
	a := actorAt(0, 3, 3, agents.PersonalityObserver)
	a.MaxPause = 1
	sim := newSim(t, room, []*agents.Actor{a}, cfg)

	for i := 0; i < 500; i++ {
		sim.Step(1)
	}
	if a.Position != (world.Vec2{X: 3, Z: 3}) || a.State != agents.StatePaused {
		t.Fatalf("unplaceable actor moved to %s (%s)", a.Position, a.State)
	}
	if sim.EventCounts()[EventStuck] == 0 {
		t.Fatal("expected stuck events")
	}
	if sim.Stats().Departures != 0 {
		t.Fatal("no departure should have succeeded")
	}
}

func TestFrameIsACopy(t *testing.T) {
	a := actorAt(0, 0, 0, agents.PersonalitySocial)
	b := actorAt(1, 0.6, 0, agents.PersonalitySocial)
	a.SetPartner(1)
	b.SetPartner(0)
	sim := newSim(t, openRoom(t), []*agents.Actor{a, b}, DefaultConfig())

	f := sim.Frame()
	if len(f.Poses) != 2 || f.Poses[0].Partner == nil || *f.Poses[0].Partner != 1 {
		t.Fatalf("unexpected frame: %+v", f)
	}
	*f.Poses[0].Partner = 7
	f.Poses[1].X = 99

	if pid, _ := a.PartnerID(); pid != 1 {
		t.Fatal("frame shares partner storage with the simulation")
	}
	if b.Position.X != 0.6 {
		t.Fatal("frame shares position storage with the simulation")
	}
}

func TestEventLogIsCappedAndDrained(t *testing.T) {
	cfg := DefaultConfig()
	cfg.EventLogCap = 5
	cfg.Tuning.PauseMin, cfg.Tuning.PauseMax = 1, 2

	a := actorAt(0, 0, 0, agents.PersonalityObserver)
	a.MaxPause = 1
	sim := newSim(t, world.DefaultRoom(), []*agents.Actor{a}, cfg)

	for i := 0; i < 2000; i++ {
		sim.Step(1)
	}
	if got := len(sim.Events(0)); got != 5 {
		t.Fatalf("kept %d events, want 5", got)
	}
	if got := len(sim.Events(2)); got != 2 {
		t.Fatalf("Events(2) returned %d", got)
	}

	drained := sim.DrainEvents()
	if len(drained) == 0 || len(drained) > 20 {
		t.Fatalf("drained %d events, want 1..20", len(drained))
	}
	if again := sim.DrainEvents(); len(again) != 0 {
		t.Fatalf("second drain returned %d events", len(again))
	}
}

func TestSnapshotIsOneTickAndRequeues(t *testing.T) {
	a := walkTo(actorAt(0, 0, 0, agents.PersonalityObserver), 0.3, 0)
	sim := newSim(t, openRoom(t), []*agents.Actor{a}, DefaultConfig())
	for i := 0; i < 5; i++ {
		sim.Step(1)
	}

	tick, actors, events := sim.Snapshot()
	if tick != 5 || len(actors) != 1 {
		t.Fatalf("snapshot tick=%d actors=%d", tick, len(actors))
	}
	if actors[0] == a || actors[0].Position != a.Position {
		t.Fatal("snapshot should hold a copy of the live actor")
	}
	if len(events) == 0 || events[0].Kind != EventArrive {
		t.Fatalf("snapshot events = %+v, want the arrival", events)
	}
	if left := sim.DrainEvents(); len(left) != 0 {
		t.Fatalf("snapshot left %d events pending", len(left))
	}

	// A failed save puts its events back ahead of newer ones.
	sim.mu.Lock()
	sim.record(a, EventBlocked, "newer")
	sim.mu.Unlock()
	sim.RequeueEvents(events)

	got := sim.DrainEvents()
	if len(got) != len(events)+1 || got[0] != events[0] || got[len(got)-1].Description != "newer" {
		t.Fatalf("requeued events out of order: %+v", got)
	}
}

func TestStepIgnoresNonPositiveDt(t *testing.T) {
	a := walkTo(actorAt(0, 0, 0, agents.PersonalityObserver), 5, 0)
	sim := newSim(t, openRoom(t), []*agents.Actor{a}, DefaultConfig())
	sim.Step(0)
	sim.Step(-1)
	if sim.Tick() != 0 || a.Position != (world.Vec2{}) {
		t.Fatal("non-positive dt should be a no-op")
	}
}

func TestParseCollisionMode(t *testing.T) {
	for in, want := range map[string]CollisionMode{
		"":           CollisionSequential,
		"sequential": CollisionSequential,
		"two_phase":  CollisionTwoPhase,
	} {
		got, err := ParseCollisionMode(in)
		if err != nil || got != want {
			t.Errorf("ParseCollisionMode(%q) = %v, %v", in, got, err)
		}
	}
	if _, err := ParseCollisionMode("eventual"); err == nil {
		t.Error("unknown mode accepted")
	}
}
