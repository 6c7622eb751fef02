package background

import (
	"math/rand"
	"testing"

	"github.com/talgya/ascendant/internal/clock"
)

func TestRotatePhenomenonInitializesWhenNil(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	p, evs := RotatePhenomenon(nil, clock.NewMonthStamp(5, 1), rng)

	if p == nil {
		t.Fatalf("expected a phenomenon picked on first run")
	}
	if p.StartYear != 5 {
		t.Fatalf("expected start year 5, got %d", p.StartYear)
	}
	if len(evs) != 1 {
		t.Fatalf("expected one begins-event, got %d", len(evs))
	}
}

func TestRotatePhenomenonHoldsUntilDurationElapsesInJanuary(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	current := &Phenomenon{Name: "Withering Qi", DurationYears: 2, StartYear: 0}

	// Still within duration, even in January.
	same, evs := RotatePhenomenon(current, clock.NewMonthStamp(1, 1), rng)
	if same != current || evs != nil {
		t.Fatalf("expected phenomenon to hold before duration elapses")
	}

	// Non-January month past duration: still holds.
	same, evs = RotatePhenomenon(current, clock.NewMonthStamp(2, 6), rng)
	if same != current || evs != nil {
		t.Fatalf("expected phenomenon to hold outside January even past duration")
	}

	// January, duration elapsed: rotates.
	next, evs := RotatePhenomenon(current, clock.NewMonthStamp(2, 1), rng)
	if next == current {
		t.Fatalf("expected a new phenomenon instance after duration elapses in January")
	}
	if len(evs) != 1 {
		t.Fatalf("expected one shift-event, got %d", len(evs))
	}
}
