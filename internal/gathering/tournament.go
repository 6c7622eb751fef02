package gathering

import (
	"fmt"

	"github.com/talgya/ascendant/internal/eventlog"
)

// Tournament fires every IntervalMonths, rewarding the highest-level living
// avatar with spirit stones. A concrete gathering to exercise the Manager
// contract end to end.
type Tournament struct {
	IntervalMonths int
}

func (t *Tournament) Name() string { return "tournament" }

func (t *Tournament) IsStart(w World) bool {
	interval := t.IntervalMonths
	if interval < 1 {
		interval = 12
	}
	return int(w.Now)%interval == 0
}

func (t *Tournament) Execute(w World) []eventlog.Event {
	if len(w.Living) == 0 {
		return nil
	}
	champion := w.Living[0]
	for _, av := range w.Living[1:] {
		if av.Level > champion.Level {
			champion = av
		}
	}
	champion.SpiritStones += 200
	return []eventlog.Event{
		eventlog.NewEvent(w.Now, fmt.Sprintf("%s wins the grand tournament.", champion.Name),
			[]string{champion.ID}, true, true),
	}
}
