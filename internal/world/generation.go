// Room generation using layered simplex noise.
// The noise field scores candidate table spots so furniture clusters
// naturally instead of sitting on a grid.
package world

import (
	"fmt"
	"math"
	"math/rand"
	"sort"

	opensimplex "github.com/ojrac/opensimplex-go"
)

// GenConfig holds room generation parameters.
type GenConfig struct {
	Width      float64 `yaml:"width"`       // Extent along x
	Depth      float64 `yaml:"depth"`       // Extent along z
	Seed       int64   `yaml:"seed"`        // 0 = random
	Tables     int     `yaml:"tables"`      // Tables to place (best effort)
	TableSize  float64 `yaml:"table_size"`  // Nominal table edge length
	WallBuffer float64 `yaml:"wall_buffer"` // Thickness of the wall strip
	BarLength  float64 `yaml:"bar_length"`  // Bar counter length along the back wall
	Clearance  float64 `yaml:"clearance"`   // Walking gap kept between furniture
}

// DefaultGenConfig returns a lounge roughly the size of the authored one.
func DefaultGenConfig() GenConfig {
	return GenConfig{
		Width:      20,
		Depth:      16,
		Seed:       0,
		Tables:     5,
		TableSize:  1.4,
		WallBuffer: 0.4,
		BarLength:  12,
		Clearance:  1.2,
	}
}

// Generate creates a furnished room from cfg.
func Generate(cfg GenConfig) (*Room, error) {
	if cfg.Width <= 0 || cfg.Depth <= 0 {
		return nil, fmt.Errorf("%w: generate needs positive width and depth", ErrInvalidRoom)
	}
	if cfg.TableSize <= 0 {
		cfg.TableSize = DefaultGenConfig().TableSize
	}

	seed := cfg.Seed
	if seed == 0 {
		seed = rand.Int63()
	}
	rng := rand.New(rand.NewSource(seed + 100))
	noise := opensimplex.NewNormalized(seed)

	bounds := NewRect(-cfg.Width/2, -cfg.Depth/2, cfg.Width/2, cfg.Depth/2)
	wb := cfg.WallBuffer
	inner := bounds.Inset(wb)

	var obstacles []Obstacle
	if wb > 0 {
		obstacles = append(obstacles,
			Obstacle{ID: "wall-north", Kind: ObstacleWall, Zone: NewRect(bounds.MinX, bounds.MaxZ-wb, bounds.MaxX, bounds.MaxZ)},
			Obstacle{ID: "wall-south", Kind: ObstacleWall, Zone: NewRect(bounds.MinX, bounds.MinZ, bounds.MaxX, bounds.MinZ+wb)},
			Obstacle{ID: "wall-west", Kind: ObstacleWall, Zone: NewRect(bounds.MinX, bounds.MinZ, bounds.MinX+wb, bounds.MaxZ)},
			Obstacle{ID: "wall-east", Kind: ObstacleWall, Zone: NewRect(bounds.MaxX-wb, bounds.MinZ, bounds.MaxX, bounds.MaxZ)},
		)
	}

	// Bar counter along the back wall.
	barLen := math.Min(cfg.BarLength, inner.Width()*0.6)
	bar := NewRect(-barLen/2, inner.MinZ, barLen/2, inner.MinZ+1.2)
	if barLen > 0 {
		obstacles = append(obstacles, Obstacle{ID: "bar", Kind: ObstacleBar, Zone: bar})
	}

	// Keep the strip in front of the bar open; that is where people gather.
	barFront := NewRect(bar.MinX, bar.MaxZ, bar.MaxX, bar.MaxZ+2.5)

	tables := placeTables(cfg, inner, barFront, noise, rng)
	obstacles = append(obstacles, tables...)

	var hotspots []Hotspot
	if barLen > 0 {
		zone := NewRect(bar.MinX+0.5, bar.MaxZ+0.2, bar.MaxX-0.5, bar.MaxZ+1.9)
		if z, ok := zone.Intersect(inner); ok && !z.Empty() {
			hotspots = append(hotspots, Hotspot{Name: "bar", Kind: HotspotSocial, Zone: z})
		}
	}

	// Quiet corners on the wall opposite the bar.
	cw := inner.Width() * 0.2
	cd := inner.Depth() * 0.25
	hotspots = append(hotspots,
		Hotspot{Name: "corner-west", Kind: HotspotQuiet, Zone: NewRect(inner.MinX, inner.MaxZ-cd, inner.MinX+cw, inner.MaxZ)},
		Hotspot{Name: "corner-east", Kind: HotspotQuiet, Zone: NewRect(inner.MaxX-cw, inner.MaxZ-cd, inner.MaxX, inner.MaxZ)},
	)

	return NewRoom(bounds, obstacles, hotspots)
}

// placeTables scores candidate centres by noise and keeps the best spots
// that do not crowd each other, the bar front, or the walls.
func placeTables(cfg GenConfig, inner, barFront Rect, noise opensimplex.Noise, rng *rand.Rand) []Obstacle {
	if cfg.Tables <= 0 {
		return nil
	}

	type scored struct {
		center Vec2
		score  float64
	}
	var candidates []scored

	step := cfg.TableSize / 2
	margin := cfg.TableSize/2 + cfg.Clearance
	for x := inner.MinX + margin; x <= inner.MaxX-margin; x += step {
		for z := inner.MinZ + margin; z <= inner.MaxZ-margin; z += step {
			c := Vec2{X: x, Z: z}
			if barFront.Inset(-cfg.Clearance).Contains(c) {
				continue
			}
			candidates = append(candidates, scored{c, octaveNoise(noise, x, z, 3, 0.15, 0.5)})
		}
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].score > candidates[j].score
	})

	var tables []Obstacle
	for _, c := range candidates {
		if len(tables) >= cfg.Tables {
			break
		}
		// ±20% size jitter so tables are not identical.
		w := cfg.TableSize * (0.8 + rng.Float64()*0.4)
		d := cfg.TableSize * (0.8 + rng.Float64()*0.4)
		zone := RectAround(c.center, w, d)
		if !inner.ContainsRect(zone) || zone.Overlaps(barFront, 0) {
			continue
		}
		crowded := false
		for _, t := range tables {
			if zone.Overlaps(t.Zone, cfg.Clearance/2) {
				crowded = true
				break
			}
		}
		if crowded {
			continue
		}
		tables = append(tables, Obstacle{
			ID:   fmt.Sprintf("table-%d", len(tables)+1),
			Kind: ObstacleFurniture,
			Zone: zone,
		})
	}
	return tables
}

// octaveNoise generates fractal noise by layering multiple frequencies.
func octaveNoise(noise opensimplex.Noise, x, y float64, octaves int, frequency, persistence float64) float64 {
	total := 0.0
	amplitude := 1.0
	maxVal := 0.0

	for i := 0; i < octaves; i++ {
		total += noise.Eval2(x*frequency, y*frequency) * amplitude
		maxVal += amplitude
		amplitude *= persistence
		frequency *= 2
	}

	return total / maxVal
}
