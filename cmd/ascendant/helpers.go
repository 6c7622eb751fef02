package main

import (
	"strconv"

	"github.com/talgya/ascendant/internal/worldmap"
)

// spawnCenters picks the coordinates new avatars are scattered around: every
// city's center, falling back to the map's middle tile if generation placed
// no cities (a degenerate but not-fatal config).
func spawnCenters(m *worldmap.Map) []worldmap.Coord {
	var centers []worldmap.Coord
	for _, r := range m.CityRegions() {
		centers = append(centers, r.Center)
	}
	if len(centers) == 0 {
		centers = append(centers, worldmap.Coord{X: m.Width / 2, Y: m.Height / 2})
	}
	return centers
}

func portString(port int) string {
	if port == 0 {
		port = 8080
	}
	return strconv.Itoa(port)
}
