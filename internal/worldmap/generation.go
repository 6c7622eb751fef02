package worldmap

import (
	"fmt"
	"math/rand"

	opensimplex "github.com/ojrac/opensimplex-go"
)

// GenConfig holds world generation parameters, grounded on the teacher's
// internal/world/generation.go GenConfig shape (seed, sea level, mountain
// threshold) adapted from a hex radius to rectangular width/height.
type GenConfig struct {
	Width, Height int
	Seed          int64
	WaterLevel    float64
	MountainLevel float64
	NumCities     int
	NumGrottoes   int
	NumSectHQs    int
}

// DefaultGenConfig returns a reasonable starting configuration.
func DefaultGenConfig() GenConfig {
	return GenConfig{
		Width: 64, Height: 64,
		Seed:          0,
		WaterLevel:    0.22,
		MountainLevel: 0.78,
		NumCities:     4,
		NumGrottoes:   12,
		NumSectHQs:    3,
	}
}

// Generate creates a complete Map: terrain via layered simplex noise, then
// named regions scattered across the habitable tiles.
func Generate(cfg GenConfig) *Map {
	seed := cfg.Seed
	if seed == 0 {
		seed = rand.Int63()
	}

	elevNoise := opensimplex.NewNormalized(seed)
	fertNoise := opensimplex.NewNormalized(seed + 1)

	m := NewMap(cfg.Width, cfg.Height)

	for x := 0; x < cfg.Width; x++ {
		for y := 0; y < cfg.Height; y++ {
			fx, fy := float64(x), float64(y)
			elev := octaveNoise(elevNoise, fx, fy, 4, 0.06, 0.5)
			fert := octaveNoise(fertNoise, fx, fy, 3, 0.08, 0.5)

			terrain := deriveTerrain(elev, cfg)
			m.Set(&Tile{
				Coord:     Coord{X: x, Y: y},
				Terrain:   terrain,
				Elevation: elev,
				Fertility: fert,
			})
		}
	}

	rng := rand.New(rand.NewSource(seed + 2))
	placeRegions(m, rng, RegionCity, cfg.NumCities, "City")
	placeRegions(m, rng, RegionSectHeadquarters, cfg.NumSectHQs, "Sect Hall")
	placeRegions(m, rng, RegionCultivationGrotto, cfg.NumGrottoes, "Grotto")

	return m
}

func deriveTerrain(elev float64, cfg GenConfig) Terrain {
	switch {
	case elev < cfg.WaterLevel:
		return TerrainWater
	case elev > cfg.MountainLevel:
		return TerrainMountain
	case elev > cfg.MountainLevel-0.15:
		return TerrainForest
	case elev < cfg.WaterLevel+0.08:
		return TerrainDesert
	default:
		return TerrainPlains
	}
}

// placeRegions scatters n named regions of kind across habitable (neither
// water nor mountain) tiles, each a small cluster of tiles around a randomly chosen center.
func placeRegions(m *Map, rng *rand.Rand, kind RegionType, n int, namePrefix string) {
	habitable := make([]Coord, 0, len(m.Tiles))
	for c, t := range m.Tiles {
		if t.Terrain != TerrainWater && t.Terrain != TerrainMountain {
			habitable = append(habitable, c)
		}
	}
	if len(habitable) == 0 {
		return
	}
	rng.Shuffle(len(habitable), func(i, j int) { habitable[i], habitable[j] = habitable[j], habitable[i] })

	count := n
	if count > len(habitable) {
		count = len(habitable)
	}
	for i := 0; i < count; i++ {
		center := habitable[i]
		tiles := []Coord{center}
		for dx := -1; dx <= 1; dx++ {
			for dy := -1; dy <= 1; dy++ {
				if dx == 0 && dy == 0 {
					continue
				}
				nc := Coord{X: center.X + dx, Y: center.Y + dy}
				if m.InBounds(nc) {
					tiles = append(tiles, nc)
				}
			}
		}
		r := &Region{
			ID:        fmt.Sprintf("region-%s-%d", kind, i),
			Name:      fmt.Sprintf("%s %d", namePrefix, i+1),
			Type:      kind,
			Center:    center,
			Tiles:     tiles,
			Resources: map[string]float64{"spirit-stones": float64(10 + rng.Intn(40))},
		}
		m.AddRegion(r)
	}
}

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
