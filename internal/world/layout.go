package world

// DefaultBounds is the lounge floor used by the demo scene: 20 × 16 units
// centred on the origin, the bar along the back (−z) wall.
var DefaultBounds = NewRect(-10, -8, 10, 8)

// DefaultRoom returns the hand-authored lounge layout.
func DefaultRoom() *Room {
	obstacles := []Obstacle{
		// Wall buffer keeps actors from clipping into the walls.
		{ID: "wall-north", Kind: ObstacleWall, Zone: NewRect(-10, 7.6, 10, 8)},
		{ID: "wall-south", Kind: ObstacleWall, Zone: NewRect(-10, -8, 10, -7.6)},
		{ID: "wall-west", Kind: ObstacleWall, Zone: NewRect(-10, -8, -9.6, 8)},
		{ID: "wall-east", Kind: ObstacleWall, Zone: NewRect(9.6, -8, 10, 8)},

		{ID: "bar", Kind: ObstacleBar, Zone: NewRect(-6, -7.6, 6, -6.4)},

		{ID: "table-1", Kind: ObstacleFurniture, Zone: RectAround(Vec2{X: -4, Z: 0}, 1.4, 1.4)},
		{ID: "table-2", Kind: ObstacleFurniture, Zone: RectAround(Vec2{X: 0, Z: 1.5}, 1.4, 1.4)},
		{ID: "table-3", Kind: ObstacleFurniture, Zone: RectAround(Vec2{X: 4, Z: 0}, 1.4, 1.4)},
		{ID: "sofa", Kind: ObstacleFurniture, Zone: NewRect(6, 6.6, 9, 7.6)},
		{ID: "plant", Kind: ObstacleFurniture, Zone: NewRect(-9.6, -7.6, -8.8, -6.8)},
	}

	hotspots := []Hotspot{
		{Name: "bar", Kind: HotspotSocial, Zone: NewRect(-5, -6.2, 5, -4.5)},
		{Name: "lounge", Kind: HotspotSocial, Zone: NewRect(-2, -1.5, 2, 0.5)},
		{Name: "window", Kind: HotspotQuiet, Zone: NewRect(-9.4, 3.5, -6.5, 7.4)},
		{Name: "reading-corner", Kind: HotspotQuiet, Zone: NewRect(6.5, 3, 9.4, 6.3)},
	}

	room, err := NewRoom(DefaultBounds, obstacles, hotspots)
	if err != nil {
		// Static data; a failure here is a programming error.
		panic(err)
	}
	return room
}
