package background

import "github.com/talgya/ascendant/internal/worldmap"

// ProsperityDeltaPerMonth is the small positive delta each city region
// accrues monthly (spec §4.2.15). Deliberately a flat scalar: the teacher's
// internal/phi ConjugateField charge/discharge abstraction was evaluated and
// rejected for this — see DESIGN.md — since spec.md's Non-goals exclude a
// market/economy system, and this phase needs nothing more than one number.
const ProsperityDeltaPerMonth = 0.5

// TickRegionProsperity runs phase 15: every city region's Prosperity value
// increases by a small fixed amount.
func TickRegionProsperity(m *worldmap.Map) {
	for _, r := range m.CityRegions() {
		r.Prosperity += ProsperityDeltaPerMonth
	}
}
