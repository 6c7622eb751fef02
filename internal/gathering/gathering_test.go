package gathering

import (
	"testing"

	"github.com/talgya/ascendant/internal/entities"
	"github.com/talgya/ascendant/internal/eventlog"
)

type stubGathering struct {
	name    string
	due     bool
	ran     *bool
}

func (s *stubGathering) Name() string             { return s.name }
func (s *stubGathering) IsStart(w World) bool      { return s.due }
func (s *stubGathering) Execute(w World) []eventlog.Event {
	*s.ran = true
	return []eventlog.Event{eventlog.NewEvent(w.Now, s.name+" fired", nil, true, false)}
}

func TestManagerRunsOnlyDueGatheringsInRegistrationOrder(t *testing.T) {
	m := NewManager()
	var firstRan, secondRan bool
	m.Register(&stubGathering{name: "first", due: true, ran: &firstRan})
	m.Register(&stubGathering{name: "second", due: false, ran: &secondRan})

	evs := m.RunDue(World{Now: 10})

	if !firstRan {
		t.Fatalf("expected the due gathering to run")
	}
	if secondRan {
		t.Fatalf("expected the non-due gathering to be skipped")
	}
	if len(evs) != 1 || evs[0].Content != "first fired" {
		t.Fatalf("expected one event from the due gathering, got %v", evs)
	}
}

func TestTournamentAwardsHighestLevelLiving(t *testing.T) {
	tourney := &Tournament{IntervalMonths: 12}

	low := &entities.Avatar{ID: "low", Name: "Low", Level: 5, SpiritStones: 0}
	high := &entities.Avatar{ID: "high", Name: "High", Level: 50, SpiritStones: 0}

	if !tourney.IsStart(World{Now: 24}) {
		t.Fatalf("expected tournament due at a multiple of its interval")
	}
	if tourney.IsStart(World{Now: 25}) {
		t.Fatalf("expected tournament not due off-interval")
	}

	evs := tourney.Execute(World{Now: 24, Living: []*entities.Avatar{low, high}})

	if high.SpiritStones != 200 {
		t.Fatalf("expected champion awarded 200 spirit stones, got %d", high.SpiritStones)
	}
	if low.SpiritStones != 0 {
		t.Fatalf("expected non-champion untouched, got %d", low.SpiritStones)
	}
	if len(evs) != 1 || !evs[0].HasParticipant("high") {
		t.Fatalf("expected one event naming the champion, got %v", evs)
	}
}
