package world

import (
	"errors"
	"fmt"
)

// Errors returned when a position or layout fails validation.
var (
	ErrOutOfBounds    = errors.New("outside room bounds")
	ErrInsideObstacle = errors.New("inside obstacle zone")
	ErrInvalidRoom    = errors.New("invalid room layout")
)

// ObstacleKind labels what an obstacle zone represents.
type ObstacleKind string

const (
	ObstacleFurniture ObstacleKind = "furniture"
	ObstacleBar       ObstacleKind = "bar"
	ObstacleWall      ObstacleKind = "wall"
)

// Obstacle is a static zone actors may never enter.
type Obstacle struct {
	ID   string       `json:"id"`
	Kind ObstacleKind `json:"kind"`
	Zone Rect         `json:"zone"`
}

// HotspotKind selects which personality a hotspot attracts.
type HotspotKind string

const (
	HotspotSocial HotspotKind = "social" // Bar area, lounge tables
	HotspotQuiet  HotspotKind = "quiet"  // Corners, window seats
)

// Hotspot is a sampling zone that biases destination choice.
type Hotspot struct {
	Name string      `json:"name"`
	Kind HotspotKind `json:"kind"`
	Zone Rect        `json:"zone"`
}

// Room is the static floor plan: bounds, obstacles and hotspots.
// It is never mutated after construction.
type Room struct {
	Bounds    Rect       `json:"bounds"`
	Obstacles []Obstacle `json:"obstacles"`
	Hotspots  []Hotspot  `json:"hotspots"`
}

// NewRoom validates a floor plan and returns it.
func NewRoom(bounds Rect, obstacles []Obstacle, hotspots []Hotspot) (*Room, error) {
	if bounds.Empty() {
		return nil, fmt.Errorf("%w: bounds %s have no area", ErrInvalidRoom, bounds)
	}

	seen := make(map[string]bool, len(obstacles))
	for _, o := range obstacles {
		if o.Zone.Empty() {
			return nil, fmt.Errorf("%w: obstacle %q has no area", ErrInvalidRoom, o.ID)
		}
		if o.ID != "" {
			if seen[o.ID] {
				return nil, fmt.Errorf("%w: duplicate obstacle id %q", ErrInvalidRoom, o.ID)
			}
			seen[o.ID] = true
		}
	}

	for _, h := range hotspots {
		if h.Kind != HotspotSocial && h.Kind != HotspotQuiet {
			return nil, fmt.Errorf("%w: hotspot %q has unknown kind %q", ErrInvalidRoom, h.Name, h.Kind)
		}
		if h.Zone.Empty() || !bounds.ContainsRect(h.Zone) {
			return nil, fmt.Errorf("%w: hotspot %q must be a non-empty zone inside bounds", ErrInvalidRoom, h.Name)
		}
	}

	return &Room{
		Bounds:    bounds,
		Obstacles: append([]Obstacle(nil), obstacles...),
		Hotspots:  append([]Hotspot(nil), hotspots...),
	}, nil
}

// InBounds reports whether p lies within the room bounds.
func (r *Room) InBounds(p Vec2) bool {
	return r.Bounds.Contains(p)
}

// ObstacleAt returns the first obstacle containing p, or nil.
func (r *Room) ObstacleAt(p Vec2) *Obstacle {
	for i := range r.Obstacles {
		if r.Obstacles[i].Zone.Contains(p) {
			return &r.Obstacles[i]
		}
	}
	return nil
}

// Walkable reports whether an actor may stand at p.
func (r *Room) Walkable(p Vec2) bool {
	return r.InBounds(p) && r.ObstacleAt(p) == nil
}

// Check returns nil when p is walkable, otherwise a wrapped
// ErrOutOfBounds or ErrInsideObstacle.
func (r *Room) Check(p Vec2) error {
	if !r.InBounds(p) {
		return fmt.Errorf("%s: %w %s", p, ErrOutOfBounds, r.Bounds)
	}
	if o := r.ObstacleAt(p); o != nil {
		return fmt.Errorf("%s: %w %q", p, ErrInsideObstacle, o.ID)
	}
	return nil
}

// HotspotsOf returns the hotspots of the given kind.
func (r *Room) HotspotsOf(kind HotspotKind) []Hotspot {
	var out []Hotspot
	for _, h := range r.Hotspots {
		if h.Kind == kind {
			out = append(out, h)
		}
	}
	return out
}

// WalkableArea estimates the fraction of the bounds not covered by
// obstacles by sampling a regular grid.
func (r *Room) WalkableArea(step float64) float64 {
	if step <= 0 {
		step = 0.25
	}
	total, free := 0, 0
	for x := r.Bounds.MinX; x <= r.Bounds.MaxX; x += step {
		for z := r.Bounds.MinZ; z <= r.Bounds.MaxZ; z += step {
			total++
			if r.ObstacleAt(Vec2{X: x, Z: z}) == nil {
				free++
			}
		}
	}
	if total == 0 {
		return 0
	}
	return float64(free) / float64(total)
}

// String returns a summary of the room.
func (r *Room) String() string {
	return fmt.Sprintf("Room(bounds=%s, obstacles=%d, hotspots=%d)",
		r.Bounds, len(r.Obstacles), len(r.Hotspots))
}
