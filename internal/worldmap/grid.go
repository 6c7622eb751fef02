// Package worldmap holds the rectangular tile grid and its named Regions.
// Generation is grounded on the teacher's internal/world/generation.go
// layered-simplex-noise approach, adapted from a hex grid to a plain (x,y) grid.
package worldmap

import "fmt"

// Coord is a tile position on the rectangular grid.
type Coord struct {
	X, Y int
}

func (c Coord) String() string {
	return fmt.Sprintf("(%d,%d)", c.X, c.Y)
}

// MarshalText and UnmarshalText let Coord serve as a map key under
// encoding/json (which only accepts string, integer, or TextMarshaler keys),
// needed because Map.Tiles is keyed by Coord for O(1) lookup.
func (c Coord) MarshalText() ([]byte, error) {
	return []byte(fmt.Sprintf("%d,%d", c.X, c.Y)), nil
}

func (c *Coord) UnmarshalText(text []byte) error {
	_, err := fmt.Sscanf(string(text), "%d,%d", &c.X, &c.Y)
	return err
}

// ManhattanDistance returns |dx| + |dy| between two coordinates, the metric
// the perception phase (spec §4.2.1) uses for observation radius.
func ManhattanDistance(a, b Coord) int {
	return absInt(a.X-b.X) + absInt(a.Y-b.Y)
}

func absInt(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

// Terrain classifies a tile's ground type.
type Terrain uint8

const (
	TerrainPlains Terrain = iota
	TerrainForest
	TerrainMountain
	TerrainWater
	TerrainDesert
)

func (t Terrain) String() string {
	switch t {
	case TerrainPlains:
		return "plains"
	case TerrainForest:
		return "forest"
	case TerrainMountain:
		return "mountain"
	case TerrainWater:
		return "water"
	case TerrainDesert:
		return "desert"
	default:
		return "unknown"
	}
}

// Tile is one cell of the grid.
type Tile struct {
	Coord       Coord
	Terrain     Terrain
	Elevation   float64
	Fertility   float64
	RegionID    string // "" if unclaimed by any named region
}

// RegionType classifies a named area per spec §2.3.
type RegionType uint8

const (
	RegionCity RegionType = iota
	RegionSectHeadquarters
	RegionCultivationGrotto
	RegionWild
)

func (r RegionType) String() string {
	switch r {
	case RegionCity:
		return "city"
	case RegionSectHeadquarters:
		return "sect-headquarters"
	case RegionCultivationGrotto:
		return "cultivation-grotto"
	case RegionWild:
		return "wild"
	default:
		return "unknown"
	}
}

// Region is a named area of the map: city, sect headquarters, cultivation
// grotto, or wild, with an optional owning avatar and a resource bundle.
type Region struct {
	ID         string
	Name       string
	Type       RegionType
	Center     Coord
	Tiles      []Coord
	OwnerID    string // "" if unowned; only meaningful for RegionCultivationGrotto
	Resources  map[string]float64
	Prosperity float64 // accumulates via the monthly region-prosperity tick (§4.2.15)
}

// IsOwned reports whether the region currently has a host avatar.
func (r *Region) IsOwned() bool {
	return r.OwnerID != ""
}

// Map is the world's rectangular tile grid plus its catalogue of Regions.
type Map struct {
	Width, Height int
	Tiles         map[Coord]*Tile
	Regions       map[string]*Region
}

// NewMap allocates an empty grid of the given dimensions.
func NewMap(width, height int) *Map {
	return &Map{
		Width:   width,
		Height:  height,
		Tiles:   make(map[Coord]*Tile, width*height),
		Regions: make(map[string]*Region),
	}
}

// Get returns the tile at c, or nil if out of bounds / unset.
func (m *Map) Get(c Coord) *Tile {
	return m.Tiles[c]
}

// Set stores a tile, keyed by its own Coord.
func (m *Map) Set(t *Tile) {
	m.Tiles[t.Coord] = t
}

// InBounds reports whether c falls within the grid's declared dimensions.
func (m *Map) InBounds(c Coord) bool {
	return c.X >= 0 && c.X < m.Width && c.Y >= 0 && c.Y < m.Height
}

// AddRegion registers a new named region.
func (m *Map) AddRegion(r *Region) {
	m.Regions[r.ID] = r
	for _, c := range r.Tiles {
		if t := m.Get(c); t != nil {
			t.RegionID = r.ID
		}
	}
}

// RegionsObservedFrom returns every region with at least one tile within
// Manhattan radius of center — the perception-phase query (§4.2.1).
func (m *Map) RegionsObservedFrom(center Coord, radius int) []*Region {
	seen := make(map[string]bool)
	var out []*Region
	for _, r := range m.Regions {
		if seen[r.ID] {
			continue
		}
		for _, c := range r.Tiles {
			if ManhattanDistance(center, c) <= radius {
				out = append(out, r)
				seen[r.ID] = true
				break
			}
		}
	}
	return out
}

// CultivationGrottoes returns every region of RegionCultivationGrotto type.
func (m *Map) CultivationGrottoes() []*Region {
	var out []*Region
	for _, r := range m.Regions {
		if r.Type == RegionCultivationGrotto {
			out = append(out, r)
		}
	}
	return out
}

// CityRegions returns every region of RegionCity type, the target of the
// monthly region-prosperity tick (§4.2.15).
func (m *Map) CityRegions() []*Region {
	var out []*Region
	for _, r := range m.Regions {
		if r.Type == RegionCity {
			out = append(out, r)
		}
	}
	return out
}
