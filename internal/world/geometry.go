// Package world provides the room floor plan: ground-plane vectors,
// axis-aligned zones, obstacles, hotspots, and layout generation.
// Positions are (x, z) on the floor; height belongs to the renderer.
package world

import (
	"fmt"
	"math"
	"math/rand"
)

// Vec2 is a point or direction on the ground plane.
type Vec2 struct {
	X float64 `json:"x"`
	Z float64 `json:"z"`
}

// Add returns v + o.
func (v Vec2) Add(o Vec2) Vec2 {
	return Vec2{X: v.X + o.X, Z: v.Z + o.Z}
}

// Sub returns v - o.
func (v Vec2) Sub(o Vec2) Vec2 {
	return Vec2{X: v.X - o.X, Z: v.Z - o.Z}
}

// Scale returns v multiplied by k.
func (v Vec2) Scale(k float64) Vec2 {
	return Vec2{X: v.X * k, Z: v.Z * k}
}

// Len returns the euclidean length of v.
func (v Vec2) Len() float64 {
	return math.Hypot(v.X, v.Z)
}

// Normalize returns v scaled to unit length. The zero vector stays zero.
func (v Vec2) Normalize() Vec2 {
	l := v.Len()
	if l == 0 {
		return Vec2{}
	}
	return Vec2{X: v.X / l, Z: v.Z / l}
}

// Heading returns the rotation about the vertical axis that points +Z
// toward v, i.e. atan2(x, z). This is the convention the renderer uses
// for rotation.y.
func (v Vec2) Heading() float64 {
	return math.Atan2(v.X, v.Z)
}

// String formats v for logs.
func (v Vec2) String() string {
	return fmt.Sprintf("(%.2f, %.2f)", v.X, v.Z)
}

// Distance returns the euclidean distance between two points.
func Distance(a, b Vec2) float64 {
	return b.Sub(a).Len()
}

// Rect is an axis-aligned rectangle on the ground plane. Edges are
// inclusive: a point on the boundary is inside.
type Rect struct {
	MinX float64 `json:"min_x" yaml:"min_x"`
	MinZ float64 `json:"min_z" yaml:"min_z"`
	MaxX float64 `json:"max_x" yaml:"max_x"`
	MaxZ float64 `json:"max_z" yaml:"max_z"`
}

// NewRect builds a rectangle from two opposite corners in any order.
func NewRect(x0, z0, x1, z1 float64) Rect {
	return Rect{
		MinX: math.Min(x0, x1),
		MinZ: math.Min(z0, z1),
		MaxX: math.Max(x0, x1),
		MaxZ: math.Max(z0, z1),
	}
}

// RectAround builds a rectangle centred on c with the given full extents.
func RectAround(c Vec2, width, depth float64) Rect {
	return NewRect(c.X-width/2, c.Z-depth/2, c.X+width/2, c.Z+depth/2)
}

// Width returns the extent along x.
func (r Rect) Width() float64 { return r.MaxX - r.MinX }

// Depth returns the extent along z.
func (r Rect) Depth() float64 { return r.MaxZ - r.MinZ }

// Center returns the midpoint of r.
func (r Rect) Center() Vec2 {
	return Vec2{X: (r.MinX + r.MaxX) / 2, Z: (r.MinZ + r.MaxZ) / 2}
}

// Empty reports whether r has no area.
func (r Rect) Empty() bool {
	return r.MaxX <= r.MinX || r.MaxZ <= r.MinZ
}

// Contains reports whether p lies inside r or on its edge.
func (r Rect) Contains(p Vec2) bool {
	return p.X >= r.MinX && p.X <= r.MaxX && p.Z >= r.MinZ && p.Z <= r.MaxZ
}

// ContainsRect reports whether o lies entirely inside r.
func (r Rect) ContainsRect(o Rect) bool {
	return o.MinX >= r.MinX && o.MaxX <= r.MaxX && o.MinZ >= r.MinZ && o.MaxZ <= r.MaxZ
}

// Overlaps reports whether r and o intersect once both are grown by pad.
func (r Rect) Overlaps(o Rect, pad float64) bool {
	return r.MinX-pad < o.MaxX+pad && r.MaxX+pad > o.MinX-pad &&
		r.MinZ-pad < o.MaxZ+pad && r.MaxZ+pad > o.MinZ-pad
}

// Inset shrinks r by d on every side. A negative d grows it. The result
// collapses to the centre point rather than inverting.
func (r Rect) Inset(d float64) Rect {
	out := Rect{MinX: r.MinX + d, MinZ: r.MinZ + d, MaxX: r.MaxX - d, MaxZ: r.MaxZ - d}
	if out.MinX > out.MaxX {
		c := (r.MinX + r.MaxX) / 2
		out.MinX, out.MaxX = c, c
	}
	if out.MinZ > out.MaxZ {
		c := (r.MinZ + r.MaxZ) / 2
		out.MinZ, out.MaxZ = c, c
	}
	return out
}

// Intersect returns the overlap of r and o, and false when they are disjoint.
func (r Rect) Intersect(o Rect) (Rect, bool) {
	out := Rect{
		MinX: math.Max(r.MinX, o.MinX),
		MinZ: math.Max(r.MinZ, o.MinZ),
		MaxX: math.Min(r.MaxX, o.MaxX),
		MaxZ: math.Min(r.MaxZ, o.MaxZ),
	}
	if out.MinX > out.MaxX || out.MinZ > out.MaxZ {
		return Rect{}, false
	}
	return out, true
}

// Sample returns a uniformly distributed point inside r.
func (r Rect) Sample(rng *rand.Rand) Vec2 {
	return Vec2{
		X: r.MinX + rng.Float64()*r.Width(),
		Z: r.MinZ + rng.Float64()*r.Depth(),
	}
}

// String formats r for logs.
func (r Rect) String() string {
	return fmt.Sprintf("[%.2f..%.2f]x[%.2f..%.2f]", r.MinX, r.MaxX, r.MinZ, r.MaxZ)
}
