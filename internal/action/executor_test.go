package action

import (
	"testing"

	"github.com/talgya/ascendant/internal/clock"
	"github.com/talgya/ascendant/internal/entities"
	"github.com/talgya/ascendant/internal/eventlog"
)

// fixedAction is a minimal test double: CanStart always succeeds, Start
// produces no event, Step returns whatever result was preloaded for that
// call, Finish produces no events.
type fixedAction struct {
	BaseAction
	results []Result
	call    int
}

func (f *fixedAction) CanStart(av *entities.Avatar, params Params, now clock.MonthStamp) (bool, string) {
	return true, ""
}

func (f *fixedAction) Start(av *entities.Avatar, params Params, now clock.MonthStamp) (*eventlog.Event, error) {
	return nil, nil
}

func (f *fixedAction) Step(av *entities.Avatar, params Params, inst *Instance, now clock.MonthStamp) (Result, error) {
	r := f.results[f.call]
	if f.call < len(f.results)-1 {
		f.call++
	}
	return r, nil
}

func (f *fixedAction) Finish(av *entities.Avatar, params Params, now clock.MonthStamp) ([]eventlog.Event, error) {
	return nil, nil
}

func TestCommitInstantiatesFromRegistryAndSeatsInstance(t *testing.T) {
	reg := NewRegistry()
	act := &fixedAction{BaseAction: BaseAction{NameStr: "wait"}, results: []Result{{Status: entities.StatusCompleted}}}
	reg.Register("wait", func() Action { return act })

	av := &entities.Avatar{ID: "a", PlanQueue: []Plan{{ActionName: "wait"}}}
	Commit(av, reg, 0)

	if av.CurrentAction == nil {
		t.Fatalf("expected an instance seated after commit")
	}
	if av.CurrentAction.Name() != "wait" {
		t.Fatalf("expected seated action 'wait', got %q", av.CurrentAction.Name())
	}
	if len(av.PlanQueue) != 0 {
		t.Fatalf("expected plan popped from queue, %d remain", len(av.PlanQueue))
	}
}

func TestCommitDropsUnknownPlanAndTriesNext(t *testing.T) {
	reg := NewRegistry()
	act := &fixedAction{BaseAction: BaseAction{NameStr: "known"}, results: []Result{{Status: entities.StatusCompleted}}}
	reg.Register("known", func() Action { return act })

	av := &entities.Avatar{ID: "a", PlanQueue: []Plan{{ActionName: "unknown"}, {ActionName: "known"}}}
	Commit(av, reg, 0)

	if av.CurrentAction == nil || av.CurrentAction.Name() != "known" {
		t.Fatalf("expected unknown plan skipped and 'known' seated, got %v", av.CurrentAction)
	}
}

func TestCommitRespectsCooldown(t *testing.T) {
	reg := NewRegistry()
	act := &fixedAction{BaseAction: BaseAction{NameStr: "cultivate", Cooldown: 5}, results: []Result{{Status: entities.StatusCompleted}}}
	reg.Register("cultivate", func() Action { return act })

	av := &entities.Avatar{
		ID:              "a",
		PlanQueue:       []Plan{{ActionName: "cultivate"}},
		ActionCooldowns: map[string]clock.MonthStamp{"cultivate": 10},
	}
	Commit(av, reg, 12) // 12 - 10 = 2 months elapsed, cooldown is 5: still rejected

	if av.CurrentAction != nil {
		t.Fatalf("expected cooldown to reject the plan, got a seated instance")
	}
}

func TestExecuteRunsToCompletionAndSetsCooldown(t *testing.T) {
	reg := NewRegistry()
	act := &fixedAction{BaseAction: BaseAction{NameStr: "herb"}, results: []Result{{Status: entities.StatusCompleted}}}

	av := &entities.Avatar{ID: "a"}
	av.CurrentAction = NewInstance(act, Params{})

	evs := Execute([]*entities.Avatar{av}, reg, 4, 20)

	if len(evs) != 0 {
		t.Fatalf("expected no events from this fixture, got %d", len(evs))
	}
	if av.CurrentAction != nil {
		t.Fatalf("expected slot cleared after completion")
	}
	if av.ActionCooldowns["herb"] != 20 {
		t.Fatalf("expected cooldown stamped at 20, got %d", av.ActionCooldowns["herb"])
	}
}

// preemptingAction returns running from its step after installing a
// replacement instance via Preempt — grounding testable property S4: the
// executor must detect the identity swap and retry the replacement within
// the same Execute call, bounded by maxRoundsPerTurn.
type preemptingAction struct {
	BaseAction
	replacement *Instance
	stepped     bool
}

func (p *preemptingAction) CanStart(av *entities.Avatar, params Params, now clock.MonthStamp) (bool, string) {
	return true, ""
}
func (p *preemptingAction) Start(av *entities.Avatar, params Params, now clock.MonthStamp) (*eventlog.Event, error) {
	return nil, nil
}
func (p *preemptingAction) Step(av *entities.Avatar, params Params, inst *Instance, now clock.MonthStamp) (Result, error) {
	p.stepped = true
	inst.Preempt(p.replacement)
	return Result{Status: entities.StatusRunning}, nil
}
func (p *preemptingAction) Finish(av *entities.Avatar, params Params, now clock.MonthStamp) ([]eventlog.Event, error) {
	return nil, nil
}

func TestExecutePreemptionSwapsInstanceSameRound(t *testing.T) {
	reg := NewRegistry()

	duelAct := &fixedAction{BaseAction: BaseAction{NameStr: "duel"}, results: []Result{{Status: entities.StatusCompleted}}}
	replacement := NewInstance(duelAct, Params{})

	travelAct := &preemptingAction{BaseAction: BaseAction{NameStr: "travel"}, replacement: replacement}

	av := &entities.Avatar{ID: "a"}
	av.CurrentAction = NewInstance(travelAct, Params{})

	Execute([]*entities.Avatar{av}, reg, 1, 0)

	if !travelAct.stepped {
		t.Fatalf("expected travel's Step to run")
	}
	if av.CurrentAction == nil {
		t.Fatalf("expected a seated instance after preemption resolves")
	}
	if av.CurrentAction.Name() != "duel" {
		t.Fatalf("expected duel seated after preemption, got %q", av.CurrentAction.Name())
	}
}
