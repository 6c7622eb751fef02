package background

import (
	"fmt"
	"math/rand"

	"github.com/google/uuid"

	"github.com/talgya/ascendant/internal/clock"
	"github.com/talgya/ascendant/internal/entities"
	"github.com/talgya/ascendant/internal/eventlog"
	"github.com/talgya/ascendant/internal/relations"
)

// LifecycleConfig bundles the spec §6 game.* knobs this phase consults.
type LifecycleConfig struct {
	AwakeningRatePerMonth float64
	MortalMaxLifespanYears int
	RogueAvatarBaseRate   float64
	MinLoverMonthsForBirth int
	BirthRate              float64
	RareAvatarBirthRate    float64
}

// AgeAndNewLife runs phase 10: advance every survivor's age, purge mortals
// past their lifespan, run awakening, and run birth. Returns the produced
// events; newly created entities are registered into store as a side effect.
func AgeAndNewLife(
	living []*entities.Avatar,
	mortals []*entities.Mortal,
	store *entities.Store,
	graph *relations.Graph,
	cfg LifecycleConfig,
	rng *rand.Rand,
	now clock.MonthStamp,
) []eventlog.Event {
	var events []eventlog.Event

	for _, av := range living {
		av.Age++
	}

	for _, mo := range mortals {
		ageYears := now.YearsSince(mo.BirthStamp)
		if ageYears >= cfg.MortalMaxLifespanYears {
			store.PurgeMortal(mo.ID)
		}
	}

	for _, mo := range mortals {
		if store.GetMortal(mo.ID) == nil {
			continue // purged above
		}
		if rng.Float64() < cfg.AwakeningRatePerMonth {
			av := awaken(mo, now)
			store.Register(av, true)
			store.PurgeMortal(mo.ID) // mortal record retired; id preserved on the new avatar
			events = append(events, eventlog.NewEvent(now,
				fmt.Sprintf("%s awakens cultivation talent.", av.Name), []string{av.ID}, true, false))
		}
	}

	if rng.Float64() < cfg.RogueAvatarBaseRate {
		rogue := spontaneousRogueAvatar(now, rng)
		store.Register(rogue, true)
		events = append(events, eventlog.NewEvent(now,
			fmt.Sprintf("A rogue cultivator, %s, appears.", rogue.Name), []string{rogue.ID}, false, false))
	}

	loverPairs := loverPairsLongEnough(living, graph, cfg.MinLoverMonthsForBirth, now)
	for _, pair := range loverPairs {
		if rng.Float64() >= cfg.BirthRate {
			continue
		}
		child, isAvatar := birth(pair[0], pair[1], now, rng, cfg.RareAvatarBirthRate)
		if isAvatar {
			av := child.(*entities.Avatar)
			store.Register(av, true)
			pair[0].Children = append(pair[0].Children, av.ID)
			pair[1].Children = append(pair[1].Children, av.ID)
			events = append(events, eventlog.NewEvent(now,
				fmt.Sprintf("%s and %s welcome a gifted child, %s.", pair[0].Name, pair[1].Name, av.Name),
				[]string{pair[0].ID, pair[1].ID, av.ID}, true, false))
		} else {
			mo := child.(*entities.Mortal)
			store.RegisterMortal(mo)
			pair[0].Children = append(pair[0].Children, mo.ID)
			pair[1].Children = append(pair[1].Children, mo.ID)
			events = append(events, eventlog.NewEvent(now,
				fmt.Sprintf("%s and %s welcome a child, %s.", pair[0].Name, pair[1].Name, mo.Name),
				[]string{pair[0].ID, pair[1].ID, mo.ID}, false, false))
		}
	}

	return events
}

func awaken(mo *entities.Mortal, now clock.MonthStamp) *entities.Avatar {
	return &entities.Avatar{
		ID:         mo.ID,
		Name:       mo.Name,
		Gender:     mo.Gender,
		BirthStamp: mo.BirthStamp,
		Level:      1,
		HP:         100,
		MaxHP:      100,
		Bag:        make(map[string]int),
	}
}

func spontaneousRogueAvatar(now clock.MonthStamp, rng *rand.Rand) *entities.Avatar {
	gender := entities.GenderMale
	if rng.Intn(2) == 1 {
		gender = entities.GenderFemale
	}
	return &entities.Avatar{
		ID:         uuid.NewString(),
		Name:       fmt.Sprintf("Rogue-%d", rng.Intn(100000)),
		Gender:     gender,
		BirthStamp: now,
		Level:      1,
		HP:         100,
		MaxHP:      100,
		Bag:        make(map[string]int),
	}
}

// loverPairsLongEnough returns every unordered pair of living avatars with
// an asserted lover edge whose relation_start_stamp is at least minMonths old.
func loverPairsLongEnough(living []*entities.Avatar, graph *relations.Graph, minMonths int, now clock.MonthStamp) [][2]*entities.Avatar {
	byID := make(map[string]*entities.Avatar, len(living))
	for _, a := range living {
		byID[a.ID] = a
	}
	seen := make(map[string]bool)
	var pairs [][2]*entities.Avatar
	for _, a := range living {
		for target, label := range graph.Neighbors(a.ID) {
			if label != relations.LabelLover {
				continue
			}
			b, ok := byID[target]
			if !ok {
				continue
			}
			key := pairKeySorted(a.ID, b.ID)
			if seen[key] {
				continue
			}
			seen[key] = true
			started, ok := graph.RelationStartStamp(a.ID, b.ID)
			if !ok || now.Sub(started) < minMonths {
				continue
			}
			pairs = append(pairs, [2]*entities.Avatar{a, b})
		}
	}
	return pairs
}

func pairKeySorted(a, b string) string {
	if a < b {
		return a + "|" + b
	}
	return b + "|" + a
}

// birth rolls a child for a lover pair: rarely a level-1 Avatar, usually a
// Mortal, with born-region and parental links. Returns the new entity and
// whether it is an Avatar.
func birth(a, b *entities.Avatar, now clock.MonthStamp, rng *rand.Rand, rareAvatarRate float64) (any, bool) {
	gender := entities.GenderMale
	if rng.Intn(2) == 1 {
		gender = entities.GenderFemale
	}
	bornRegion := ""
	if len(a.OwnedRegions) > 0 {
		bornRegion = a.OwnedRegions[0]
	}

	if rng.Float64() < rareAvatarRate {
		return &entities.Avatar{
			ID:         uuid.NewString(),
			Name:       fmt.Sprintf("Child of %s", a.Name),
			Gender:     gender,
			BirthStamp: now,
			Level:      1,
			HP:         100,
			MaxHP:      100,
			Bag:        make(map[string]int),
		}, true
	}

	return &entities.Mortal{
		ID:         uuid.NewString(),
		Name:       fmt.Sprintf("Child of %s", a.Name),
		Gender:     gender,
		BirthStamp: now,
		Parents:    []string{a.ID, b.ID},
		BornRegion: bornRegion,
	}, false
}
