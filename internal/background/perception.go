// Package background implements the per-month passive updates of spec
// §4.2/§4.7: perception & territory claim, passive timers, age/birth/
// awakening, fortune/misfortune rolls, phenomenon rotation, region
// prosperity, long-term goal review, and nickname/backstory generation.
// Grounded on the teacher's internal/engine/population.go (age/birth rolls)
// and internal/llm/biography.go/narration.go (LLM-backed generation), with
// true randomness for the Bernoulli rollers supplied by the teacher's
// internal/entropy package, kept near-verbatim.
package background

import (
	"fmt"

	"github.com/talgya/ascendant/internal/clock"
	"github.com/talgya/ascendant/internal/entities"
	"github.com/talgya/ascendant/internal/eventlog"
	"github.com/talgya/ascendant/internal/worldmap"
)

// Perception runs phase 1: for each living avatar, observe regions within
// Manhattan radius and auto-claim an unowned cultivation grotto if the
// avatar owns none.
func Perception(living []*entities.Avatar, m *worldmap.Map, radius int, now clock.MonthStamp) []eventlog.Event {
	var events []eventlog.Event
	for _, av := range living {
		observed := m.RegionsObservedFrom(av.Position, radius)
		if av.KnownRegions == nil {
			av.KnownRegions = make(map[string]bool)
		}
		alreadyOwns := len(av.OwnedRegions) > 0

		for _, r := range observed {
			av.KnownRegions[r.ID] = true

			if !alreadyOwns && r.Type == worldmap.RegionCultivationGrotto && !r.IsOwned() {
				r.OwnerID = av.ID
				av.OwnedRegions = append(av.OwnedRegions, r.ID)
				alreadyOwns = true
				events = append(events, eventlog.NewEvent(now,
					fmt.Sprintf("%s claims cultivation grotto %q.", av.Name, r.Name),
					[]string{av.ID}, false, false))
			}
		}
	}
	return events
}
