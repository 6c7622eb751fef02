package entities

import (
	"testing"

	"github.com/talgya/ascendant/internal/clock"
	"github.com/talgya/ascendant/internal/worldmap"
)

func TestSpawnPopulationProducesDistinctScatteredAvatars(t *testing.T) {
	s := NewSpawner(7)
	centers := []worldmap.Coord{{X: 1, Y: 1}, {X: 9, Y: 9}}
	now := clock.NewMonthStamp(1, 1)

	pop := s.SpawnPopulation(20, centers, now)

	if len(pop) != 20 {
		t.Fatalf("expected 20 avatars, got %d", len(pop))
	}

	ids := make(map[string]bool)
	for _, av := range pop {
		if ids[av.ID] {
			t.Fatalf("expected unique ids, got duplicate %q", av.ID)
		}
		ids[av.ID] = true

		if av.Name == "" {
			t.Fatalf("expected a generated name, got empty string")
		}
		if av.HP != 100 || av.MaxHP != 100 {
			t.Fatalf("expected full HP on spawn, got %d/%d", av.HP, av.MaxHP)
		}
		if av.Level < 1 {
			t.Fatalf("expected level >= 1, got %d", av.Level)
		}
		if av.Position != centers[0] && av.Position != centers[1] {
			t.Fatalf("expected position at one of the given centers, got %v", av.Position)
		}
		if av.Bag == nil {
			t.Fatalf("expected an initialized bag")
		}
	}
}

func TestSpawnPopulationIsDeterministicPerSeed(t *testing.T) {
	centers := []worldmap.Coord{{X: 0, Y: 0}}
	now := clock.NewMonthStamp(1, 1)

	a := NewSpawner(42).SpawnPopulation(5, centers, now)
	b := NewSpawner(42).SpawnPopulation(5, centers, now)

	for i := range a {
		if a[i].Name != b[i].Name || a[i].Level != b[i].Level || a[i].Gender != b[i].Gender {
			t.Fatalf("expected identical seed to reproduce identical avatar %d, got %+v vs %+v", i, a[i], b[i])
		}
	}
}
