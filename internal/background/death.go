package background

import (
	"github.com/talgya/ascendant/internal/clock"
	"github.com/talgya/ascendant/internal/entities"
	"github.com/talgya/ascendant/internal/eventlog"
	"github.com/talgya/ascendant/internal/worldmap"
)

// ResolveDeaths runs phase 9: for each living avatar in order, check HP then
// age-vs-lifespan, and transition to dead on a hit. Region ownership is
// released back onto the map; the Store clears plans/current action/sect
// per spec invariant 4. Returns the survivors (the shrunk living list used
// by phases 10+) and the death events.
func ResolveDeaths(living []*entities.Avatar, store *entities.Store, m *worldmap.Map, now clock.MonthStamp) ([]*entities.Avatar, []eventlog.Event) {
	var survivors []*entities.Avatar
	var events []eventlog.Event

	for _, av := range living {
		reason := ""
		switch {
		case av.HP <= 0:
			reason = "injury"
		case av.Age >= av.MaxLifespanMonths():
			reason = "old age"
		}

		if reason == "" {
			survivors = append(survivors, av)
			continue
		}

		for _, rid := range av.OwnedRegions {
			if r, ok := m.Regions[rid]; ok && r.OwnerID == av.ID {
				r.OwnerID = ""
			}
		}

		store.MarkDead(av.ID, entities.DeathInfo{
			Stamp:    now,
			Reason:   reason,
			Location: av.Position,
		})

		events = append(events, eventlog.NewEvent(now,
			av.Name+" has died ("+reason+").", []string{av.ID}, true, false))
	}

	return survivors, events
}
