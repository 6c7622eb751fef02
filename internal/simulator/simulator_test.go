package simulator

import (
	"context"
	"testing"

	"github.com/talgya/ascendant/internal/action"
	"github.com/talgya/ascendant/internal/action/builtin"
	"github.com/talgya/ascendant/internal/clock"
	"github.com/talgya/ascendant/internal/entities"
	"github.com/talgya/ascendant/internal/gathering"
	"github.com/talgya/ascendant/internal/relations"
	"github.com/talgya/ascendant/internal/worldmap"
)

func newTestSimulator(t *testing.T) (*Simulator, *entities.Avatar, *entities.Avatar) {
	t.Helper()

	m := worldmap.NewMap(10, 10)
	for x := 0; x < 10; x++ {
		for y := 0; y < 10; y++ {
			m.Set(&worldmap.Tile{Coord: worldmap.Coord{X: x, Y: y}, Terrain: worldmap.TerrainPlains})
		}
	}

	store := entities.NewStore()
	a := &entities.Avatar{ID: "a", Name: "Chen Kai", Level: 10, HP: 100, MaxHP: 100, Position: worldmap.Coord{X: 0, Y: 0}}
	b := &entities.Avatar{ID: "b", Name: "Zhao Mei", Level: 10, HP: 100, MaxHP: 100, Position: worldmap.Coord{X: 1, Y: 1}}
	store.Register(a, false)
	store.Register(b, false)

	graph := relations.NewGraph(store)

	reg := action.NewRegistry()
	builtin.Register(reg)

	gatherings := gathering.NewManager()

	cfg := DefaultConfig()
	sim := New(store, graph, m, nil, nil, nil, gatherings, reg, clock.NewMonthStamp(1, 1), cfg, 1)

	return sim, a, b
}

// TestStepAdvancesClockAndRunsAllPhases grounds the 19-phase ordering: a
// single Step with no LLM gateway configured still commits a queued plan,
// executes it to completion, and advances the clock by one month.
func TestStepAdvancesClockAndRunsAllPhases(t *testing.T) {
	sim, a, _ := newTestSimulator(t)
	a.PlanQueue = append(a.PlanQueue, entities.Plan{ActionName: "gather-herbs"})

	before := sim.Now
	evs, err := sim.Step(context.Background())
	if err != nil {
		t.Fatalf("step: %v", err)
	}

	if sim.Now != before.Next() {
		t.Fatalf("expected clock to advance by one month, got %d -> %d", before, sim.Now)
	}
	if a.Bag["herb"] != 1 {
		t.Fatalf("expected the queued gather-herbs action to run to completion, got bag %v", a.Bag)
	}
	if a.CurrentAction != nil {
		t.Fatalf("expected the completed action slot cleared, got %v", a.CurrentAction)
	}

	found := false
	for _, e := range evs {
		if e.HasParticipant("a") {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected at least one returned event naming avatar 'a', got %v", evs)
	}
}

// TestStepWithoutLLMGatewayDoesNotPanic grounds that every LLM-bound phase
// is a no-op when Gateway is nil (spec §7: the gateway being absent is not
// itself an error condition).
func TestStepWithoutLLMGatewayDoesNotPanic(t *testing.T) {
	sim, _, _ := newTestSimulator(t)

	if sim.LLMUnhealthy() {
		t.Fatalf("expected a nil gateway to report healthy")
	}

	if _, err := sim.Step(context.Background()); err != nil {
		t.Fatalf("step: %v", err)
	}
}

// TestStepResolvesDeathFromDuel grounds death resolution (phase 9) firing
// within the same Step that executed the killing action.
func TestStepResolvesDeathFromDuel(t *testing.T) {
	sim, a, b := newTestSimulator(t)
	b.HP = 5

	a.PlanQueue = append(a.PlanQueue, entities.Plan{ActionName: "duel", Params: action.Params{
		"target_id":      "b",
		"resolve_target": func() *entities.Avatar { return sim.Store.Get("b") },
	}})

	if _, err := sim.Step(context.Background()); err != nil {
		t.Fatalf("step: %v", err)
	}

	if !b.IsDead {
		t.Fatalf("expected the duel's target to die when HP drops to or below zero")
	}
	if len(sim.Store.Living()) != 1 {
		t.Fatalf("expected exactly one living avatar after death resolution, got %d", len(sim.Store.Living()))
	}
}

// TestStepJanuaryRefreshesDerivedRelations grounds phase 17 (derived
// relation refresh, January-only): a shared-parent sibling edge should
// appear only after a Step whose pre-advance Now was January.
func TestStepJanuaryRefreshesDerivedRelations(t *testing.T) {
	sim, a, b := newTestSimulator(t)
	sim.Now = clock.NewMonthStamp(3, 1)

	parent := &entities.Avatar{ID: "p", Name: "Parent", HP: 100, MaxHP: 100}
	sim.Store.Register(parent, false)
	if err := sim.Graph.Set(parent, a, relations.LabelParent); err != nil {
		t.Fatalf("set parent/a: %v", err)
	}
	if err := sim.Graph.Set(parent, b, relations.LabelParent); err != nil {
		t.Fatalf("set parent/b: %v", err)
	}

	if _, err := sim.Step(context.Background()); err != nil {
		t.Fatalf("step: %v", err)
	}

	label, ok := sim.Graph.Get("a", "b")
	if !ok || label != relations.LabelSibling {
		t.Fatalf("expected a derived sibling edge after a January step, got %v ok=%v", label, ok)
	}
}
