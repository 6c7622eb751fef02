package worldmap

import "testing"

func TestGenerateProducesFullyCoveredDeterministicMap(t *testing.T) {
	cfg := DefaultGenConfig()
	cfg.Width, cfg.Height = 16, 16
	cfg.Seed = 42

	m := Generate(cfg)

	if len(m.Tiles) != cfg.Width*cfg.Height {
		t.Fatalf("expected every tile populated, got %d of %d", len(m.Tiles), cfg.Width*cfg.Height)
	}
	for x := 0; x < cfg.Width; x++ {
		for y := 0; y < cfg.Height; y++ {
			if m.Get(Coord{X: x, Y: y}) == nil {
				t.Fatalf("expected tile at (%d,%d) to be set", x, y)
			}
		}
	}

	m2 := Generate(cfg)
	for c, tile := range m.Tiles {
		other := m2.Get(c)
		if other == nil || other.Terrain != tile.Terrain || other.Elevation != tile.Elevation {
			t.Fatalf("expected same seed to reproduce identical terrain at %v", c)
		}
	}
}

func TestGenerateScattersNamedRegions(t *testing.T) {
	cfg := DefaultGenConfig()
	cfg.Width, cfg.Height = 32, 32
	cfg.Seed = 7
	cfg.NumCities = 3
	cfg.NumSectHQs = 2
	cfg.NumGrottoes = 5

	m := Generate(cfg)

	if len(m.CityRegions()) != cfg.NumCities {
		t.Fatalf("expected %d city regions, got %d", cfg.NumCities, len(m.CityRegions()))
	}
	if len(m.CultivationGrottoes()) != cfg.NumGrottoes {
		t.Fatalf("expected %d grottoes, got %d", cfg.NumGrottoes, len(m.CultivationGrottoes()))
	}

	for _, r := range m.Regions {
		if !m.InBounds(r.Center) {
			t.Fatalf("expected region %s center in bounds, got %v", r.ID, r.Center)
		}
		if len(r.Tiles) == 0 {
			t.Fatalf("expected region %s to have at least one tile", r.ID)
		}
	}
}

func TestDeriveTerrainThresholds(t *testing.T) {
	cfg := DefaultGenConfig()

	if got := deriveTerrain(0.1, cfg); got != TerrainWater {
		t.Fatalf("expected water below water level, got %v", got)
	}
	if got := deriveTerrain(0.9, cfg); got != TerrainMountain {
		t.Fatalf("expected mountain above mountain level, got %v", got)
	}
}
