package entities

import (
	"math/rand"

	"github.com/google/uuid"

	"github.com/talgya/ascendant/internal/clock"
	"github.com/talgya/ascendant/internal/worldmap"
)

// Spawner creates the initial cast of avatars, grounded on the teacher's
// internal/agents/spawner.go demographic-roll shape (weighted age, random
// sex, procedurally generated name), adapted to cultivation-world fields
// (level/HP/spirit stones instead of wealth/skills/needs).
type Spawner struct {
	rng *rand.Rand
}

// NewSpawner builds a Spawner seeded independently of the world's own rng so
// population generation is reproducible across runs of the same seed.
func NewSpawner(seed int64) *Spawner {
	return &Spawner{rng: rand.New(rand.NewSource(seed + 900))}
}

// SpawnPopulation creates count avatars scattered across the given regions'
// centers, at a starting level drawn from a light positive skew (most start
// at level 1, a few start higher to seed a visible hierarchy).
func (s *Spawner) SpawnPopulation(count int, centers []worldmap.Coord, now clock.MonthStamp) []*Avatar {
	out := make([]*Avatar, 0, count)
	for i := 0; i < count; i++ {
		out = append(out, s.spawnOne(centers[i%len(centers)], now))
	}
	return out
}

func (s *Spawner) spawnOne(pos worldmap.Coord, now clock.MonthStamp) *Avatar {
	gender := GenderMale
	if s.rng.Float64() < 0.5 {
		gender = GenderFemale
	}

	level := 1
	if s.rng.Float64() < 0.1 {
		level = 1 + s.rng.Intn(30)
	}

	ageMonths := 16*12 + s.rng.Intn(20*12)

	return &Avatar{
		ID:           uuid.NewString(),
		Name:         s.generateName(gender),
		Gender:       gender,
		BirthStamp:   now - clock.MonthStamp(ageMonths),
		Position:     pos,
		Level:        level,
		Age:          ageMonths,
		HP:           100,
		MaxHP:        100,
		SpiritStones: 10 + s.rng.Intn(90),
		Bag:          make(map[string]int),
	}
}

var (
	givenNamesMale   = []string{"Wei", "Feng", "Yun", "Hao", "Tian", "Bo", "Jun", "Lei", "Chen", "Kai"}
	givenNamesFemale = []string{"Lian", "Xue", "Mei", "Ning", "Rou", "Yue", "Zhi", "Qing", "Xin", "Fen"}
	familyNames      = []string{"Zhao", "Qian", "Sun", "Li", "Zhou", "Wu", "Zheng", "Wang", "Han", "Shen"}
)

// generateName builds a family+given name pair; not meant to be
// linguistically authoritative, only to give every avatar a stable display
// name before any LLM-authored backstory runs (spec §4.2.11 fills richer
// detail in later).
func (s *Spawner) generateName(g Gender) string {
	given := givenNamesMale
	if g == GenderFemale {
		given = givenNamesFemale
	}
	return familyNames[s.rng.Intn(len(familyNames))] + " " + given[s.rng.Intn(len(given))]
}
