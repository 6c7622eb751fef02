package background

import (
	"fmt"
	"math/rand"

	"github.com/talgya/ascendant/internal/clock"
	"github.com/talgya/ascendant/internal/eventlog"
)

// Phenomenon is a world-wide named buff/debuff active for a bounded number
// of years (spec §3).
type Phenomenon struct {
	Name         string
	Effects      map[string]float64
	DurationYears int
	StartYear    int
}

var phenomenonCatalogue = []Phenomenon{
	{Name: "Converging Spirit Tides", Effects: map[string]float64{"cultivation_speed": 1.2}, DurationYears: 3},
	{Name: "Withering Qi", Effects: map[string]float64{"cultivation_speed": 0.8}, DurationYears: 2},
	{Name: "Celestial Alignment", Effects: map[string]float64{"breakthrough_chance": 1.5}, DurationYears: 1},
	{Name: "Demonic Miasma", Effects: map[string]float64{"misfortune_chance": 1.3}, DurationYears: 2},
}

// RotatePhenomenon runs phase 14: initializes current on first run; on each
// January, if elapsed years since the phenomenon started meet or exceed its
// duration, picks a new one and emits an event.
func RotatePhenomenon(current *Phenomenon, now clock.MonthStamp, rng *rand.Rand) (*Phenomenon, []eventlog.Event) {
	if current == nil {
		p := phenomenonCatalogue[rng.Intn(len(phenomenonCatalogue))]
		p.StartYear = now.Year()
		return &p, []eventlog.Event{eventlog.NewEvent(now,
			fmt.Sprintf("The world phenomenon %q begins.", p.Name), nil, true, false)}
	}

	if !now.IsJanuary() {
		return current, nil
	}
	if now.Year()-current.StartYear < current.DurationYears {
		return current, nil
	}

	p := phenomenonCatalogue[rng.Intn(len(phenomenonCatalogue))]
	p.StartYear = now.Year()
	return &p, []eventlog.Event{eventlog.NewEvent(now,
		fmt.Sprintf("The world phenomenon shifts to %q.", p.Name), nil, true, false)}
}
