package background

import (
	"fmt"

	"github.com/talgya/ascendant/internal/clock"
	"github.com/talgya/ascendant/internal/entities"
	"github.com/talgya/ascendant/internal/entropy"
	"github.com/talgya/ascendant/internal/eventlog"
)

// ExpireTimers runs the first half of phase 12: drop consumed elixirs and
// temporary effects whose duration has lapsed.
func ExpireTimers(living []*entities.Avatar, now clock.MonthStamp) {
	for _, av := range living {
		var keptElixirs []entities.ConsumedElixir
		for _, e := range av.Elixirs {
			if !e.Expired(now) {
				keptElixirs = append(keptElixirs, e)
			}
		}
		av.Elixirs = keptElixirs

		var keptEffects []entities.TemporaryEffect
		for _, e := range av.Effects {
			if !e.Expired(now) {
				keptEffects = append(keptEffects, e)
			}
		}
		av.Effects = keptEffects
	}
}

// FortuneCatalogueEntry is a weighted record a fortune/misfortune roll can
// produce, filtered by realm band and eligibility (spec §4.7).
type FortuneCatalogueEntry struct {
	Name        string
	Weight      float64
	MinRealm    entities.Realm
	Description string
	Apply       func(av *entities.Avatar)
}

var fortuneCatalogue = []FortuneCatalogueEntry{
	{Name: "spirit-stone windfall", Weight: 3, MinRealm: entities.RealmQiRefinement,
		Description: "stumbles upon a vein of spirit stones", Apply: func(av *entities.Avatar) { av.SpiritStones += 50 }},
	{Name: "minor insight", Weight: 2, MinRealm: entities.RealmQiRefinement,
		Description: "gains a flash of cultivation insight", Apply: func(av *entities.Avatar) { av.Level++ }},
	{Name: "rare elixir", Weight: 1, MinRealm: entities.RealmFoundationEstablishment,
		Description: "discovers a rare elixir", Apply: func(av *entities.Avatar) {
			av.Elixirs = append(av.Elixirs, entities.ConsumedElixir{ElixirID: "rare-recovery", DurationMonths: 3})
		}},
}

var misfortuneCatalogue = []FortuneCatalogueEntry{
	{Name: "minor injury", Weight: 3, MinRealm: entities.RealmQiRefinement,
		Description: "suffers a minor injury", Apply: func(av *entities.Avatar) { av.HP -= 10 }},
	{Name: "stolen spirit stones", Weight: 2, MinRealm: entities.RealmQiRefinement,
		Description: "is robbed of spirit stones", Apply: func(av *entities.Avatar) {
			if av.SpiritStones > 0 {
				av.SpiritStones /= 2
			}
		}},
	{Name: "qi deviation", Weight: 1, MinRealm: entities.RealmFoundationEstablishment,
		Description: "suffers a qi deviation", Apply: func(av *entities.Avatar) { av.HP -= 25 }},
}

// RollFortuneMisfortune runs the second half of phase 12: an independent
// Bernoulli roll per avatar for fortune and misfortune, subject to the
// current action's ALLOW_WORLD_EVENTS attribute. ent (possibly nil) is the
// true-randomness source behind entropy.Bernoulli/entropy.WeightedPick.
func RollFortuneMisfortune(living []*entities.Avatar, ent *entropy.Client, fortuneProb, misfortuneProb float64, now clock.MonthStamp) []eventlog.Event {
	var events []eventlog.Event

	for _, av := range living {
		if allower, ok := av.CurrentAction.(interface{ AllowWorldEvents() bool }); ok {
			if !allower.AllowWorldEvents() {
				continue
			}
		}

		if entropy.Bernoulli(ent, fortuneProb) {
			if entry := pickWeighted(fortuneCatalogue, av.Realm(), ent); entry != nil {
				entry.Apply(av)
				events = append(events, eventlog.NewEvent(now,
					fmt.Sprintf("%s %s.", av.Name, entry.Description), []string{av.ID}, false, false))
			}
		}

		if entropy.Bernoulli(ent, misfortuneProb) {
			if entry := pickWeighted(misfortuneCatalogue, av.Realm(), ent); entry != nil {
				entry.Apply(av)
				events = append(events, eventlog.NewEvent(now,
					fmt.Sprintf("%s %s.", av.Name, entry.Description), []string{av.ID}, false, false))
			}
		}
	}

	return events
}

func pickWeighted(catalogue []FortuneCatalogueEntry, realm entities.Realm, ent *entropy.Client) *FortuneCatalogueEntry {
	var eligible []FortuneCatalogueEntry
	var weights []float64
	for _, e := range catalogue {
		if realm >= e.MinRealm {
			eligible = append(eligible, e)
			weights = append(weights, e.Weight)
		}
	}
	i := entropy.WeightedPick(ent, weights)
	if i < 0 {
		return nil
	}
	return &eligible[i]
}
