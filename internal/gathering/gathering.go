// Package gathering implements the Gathering Manager: recurring world
// events (tournaments, auctions, hidden-realm openings) keyed off the clock
// (spec §2's component 11, §4.2.3). Grounded on the teacher's periodic
// world-event trigger shape seen in internal/engine/governance.go and
// internal/social/faction.go.
package gathering

import (
	"github.com/talgya/ascendant/internal/clock"
	"github.com/talgya/ascendant/internal/entities"
	"github.com/talgya/ascendant/internal/eventlog"
)

// World is the minimal view a Gathering's IsStart/Execute need of the live
// simulation — defined here (not imported from simulator) to avoid a
// dependency cycle, since the Simulator owns the Manager.
type World struct {
	Now    clock.MonthStamp
	Living []*entities.Avatar
}

// Gathering is a scheduled world-level happening.
type Gathering interface {
	Name() string
	// IsStart reports whether this gathering should fire this tick.
	IsStart(w World) bool
	// Execute runs the gathering: it may mutate avatars, award rewards, and
	// produce major + story events.
	Execute(w World) []eventlog.Event
}

// Manager holds the registered gatherings in registration order — spec §9's
// open question about January tie-breaking is resolved here by iterating in
// registration order and sticking to it.
type Manager struct {
	gatherings []Gathering
}

// NewManager builds an empty Gathering Manager.
func NewManager() *Manager {
	return &Manager{}
}

// Register adds a gathering, in the order callers add it; that order is the
// tie-break order used when multiple gatherings are eligible the same tick.
func (m *Manager) Register(g Gathering) {
	m.gatherings = append(m.gatherings, g)
}

// RunDue runs phase 3: queries IsStart for every registered gathering, in
// registration order, and executes those that return true.
func (m *Manager) RunDue(w World) []eventlog.Event {
	var events []eventlog.Event
	for _, g := range m.gatherings {
		if g.IsStart(w) {
			events = append(events, g.Execute(w)...)
		}
	}
	return events
}
