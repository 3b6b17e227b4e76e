// Actor spawning: turns a roster of seats into actors with names, speeds
// and staggered first pauses.
package agents

import (
	"fmt"
	"math"
	"math/rand"

	"github.com/talgya/mini-room/internal/phi"
	"github.com/talgya/mini-room/internal/world"
)

// Seat is one starting tuple of the roster.
type Seat struct {
	Position    world.Vec2
	FacingBias  float64
	Personality Personality
}

// Spawner creates actors for the simulation.
type Spawner struct {
	rng    *rand.Rand
	nextID ActorID
	tuning Tuning
}

// NewSpawner creates a spawner drawing from rng.
func NewSpawner(rng *rand.Rand, t Tuning) *Spawner {
	return &Spawner{rng: rng, tuning: t}
}

// SetNextID sets the next actor ID to be issued.
func (s *Spawner) SetNextID(id ActorID) {
	s.nextID = id
}

// SpawnRoster creates one actor per seat, in order.
func (s *Spawner) SpawnRoster(seats []Seat) []*Actor {
	actors := make([]*Actor, 0, len(seats))
	for _, seat := range seats {
		actors = append(actors, s.spawnOne(seat))
	}
	return actors
}

func (s *Spawner) spawnOne(seat Seat) *Actor {
	id := s.nextID
	s.nextID++

	// Everyone walks a little differently.
	speed := s.tuning.Speed * (1 + (s.rng.Float64()*2-1)*s.tuning.SpeedJitter)

	return &Actor{
		ID:          id,
		Name:        s.generateName(),
		Personality: seat.Personality,
		Position:    seat.Position,
		Target:      seat.Position,
		Speed:       speed,
		State:       StatePaused,
		// First pauses are short and staggered so the room wakes up gradually.
		MaxPause:   DrawPause(s.rng, 0, s.tuning.PauseMin),
		Facing:     NormalizeAngle(seat.FacingBias),
		FacingBias: seat.FacingBias,
	}
}

func (s *Spawner) generateName() string {
	first := firstNames[s.rng.Intn(len(firstNames))]
	last := lastNames[s.rng.Intn(len(lastNames))]
	return first + " " + last
}

// ScatterSeats generates n walkable seats at least minSpacing apart.
// Facings follow the golden angle so the crowd does not all look the same
// way; roughly Φ⁻¹ of the crowd is social.
func ScatterSeats(room *world.Room, n int, minSpacing float64, rng *rand.Rand) ([]Seat, error) {
	area := room.Bounds.Inset(minSpacing)
	seats := make([]Seat, 0, n)

	for i := 0; i < n; i++ {
		placed := false
		for attempt := 0; attempt < 50 && !placed; attempt++ {
			p := area.Sample(rng)
			if !room.Walkable(p) || tooClose(p, seats, minSpacing) {
				continue
			}
			pers := PersonalityObserver
			if rng.Float64() < phi.Matter {
				pers = PersonalitySocial
			}
			seats = append(seats, Seat{
				Position:    p,
				FacingBias:  NormalizeAngle(float64(i) * phi.GrowthAngleRad),
				Personality: pers,
			})
			placed = true
		}
		if !placed {
			return seats, fmt.Errorf("seat %d of %d: %w", i+1, n, ErrUnplaceable)
		}
	}
	return seats, nil
}

func tooClose(p world.Vec2, seats []Seat, minDist float64) bool {
	for _, s := range seats {
		if world.Distance(p, s.Position) < minDist {
			return true
		}
	}
	return false
}

// DefaultRoster returns the eight regulars of the default lounge.
func DefaultRoster() []Seat {
	return []Seat{
		{Position: world.Vec2{X: -3, Z: -5}, FacingBias: math.Pi, Personality: PersonalitySocial},
		{Position: world.Vec2{X: 2, Z: -5}, FacingBias: math.Pi, Personality: PersonalitySocial},
		{Position: world.Vec2{X: -1, Z: -3}, FacingBias: -math.Pi / 2, Personality: PersonalitySocial},
		{Position: world.Vec2{X: 7.5, Z: 4.5}, FacingBias: math.Pi / 2, Personality: PersonalityObserver},
		{Position: world.Vec2{X: -8, Z: 5}, FacingBias: -math.Pi / 2, Personality: PersonalityObserver},
		{Position: world.Vec2{X: 0, Z: 4}, FacingBias: 0, Personality: PersonalitySocial},
		{Position: world.Vec2{X: 6, Z: -3}, FacingBias: math.Pi / 4, Personality: PersonalityObserver},
		{Position: world.Vec2{X: -6, Z: 2}, FacingBias: math.Pi / 2, Personality: PersonalitySocial},
	}
}

var firstNames = []string{
	"Aldric", "Astrid", "Bram", "Brenna", "Calla", "Cedric", "Daria", "Doran",
	"Elara", "Erik", "Finn", "Freya", "Greta", "Hugo", "Iris", "Ivar",
	"Juno", "Kael", "Lena", "Leif", "Mira", "Nils", "Olwen", "Petra",
	"Quinn", "Rowan", "Senna", "Thea", "Una", "Vera", "Wren", "Yara",
}

var lastNames = []string{
	"Ashford", "Blackwood", "Brightwater", "Coldbrook", "Dunmore", "Eastbrook",
	"Fairhaven", "Greymoor", "Hartwell", "Ironside", "Kingsley", "Larkspur",
	"Merrow", "Northcott", "Oakheart", "Pennywhistle", "Redfern", "Stonebridge",
	"Thornbury", "Underhill", "Westmoor", "Whitlock",
}
