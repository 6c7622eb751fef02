package background

import (
	"github.com/talgya/ascendant/internal/entities"
	"github.com/talgya/ascendant/internal/eventlog"
)

// CountInteractions runs an interaction-counting pass (spec §4.2.7/§4.2.16):
// for every event in evs whose participant list has >= 2 ids, increments
// relation_interaction_states[other]["count"] on each participant avatar for
// every other participant. processed tracks event ids already counted so a
// second pass does not double-count; it is mutated in place. Events from the
// current tick that have not yet been appended to the durable log (ID == 0)
// are always counted, since processed can only track assigned ids.
func CountInteractions(evs []eventlog.Event, byID map[string]*entities.Avatar, processed map[int64]bool) {
	for _, e := range evs {
		if e.ID != 0 && processed[e.ID] {
			continue
		}
		if len(e.Participants) >= 2 {
			for _, self := range e.Participants {
				av, ok := byID[self]
				if !ok {
					continue
				}
				for _, other := range e.Participants {
					if other == self {
						continue
					}
					av.InteractionState(other).Count++
				}
			}
		}
		if e.ID != 0 {
			processed[e.ID] = true
		}
	}
}
