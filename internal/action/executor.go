package action

import (
	"log/slog"

	"github.com/talgya/ascendant/internal/clock"
	"github.com/talgya/ascendant/internal/entities"
	"github.com/talgya/ascendant/internal/eventlog"
)

// Commit runs the plan-commit phase (spec §4.1, Simulator phase 5) for one
// avatar: while it has no instance and its queue is non-empty, pop the head
// plan, instantiate by name, run CanStart; drop & log on rejection, else
// Start and seat it as current. Returns any start-event produced.
func Commit(av *entities.Avatar, reg *Registry, now clock.MonthStamp) []eventlog.Event {
	var out []eventlog.Event
	for av.CurrentAction == nil && len(av.PlanQueue) > 0 {
		plan := av.PlanQueue[0]
		av.PlanQueue = av.PlanQueue[1:]

		act := reg.New(plan.ActionName)
		if act == nil {
			slog.Warn("action: unknown plan action, dropped", "avatar", av.ID, "action", plan.ActionName)
			continue
		}

		if cd, ok := av.ActionCooldowns[act.Name()]; ok {
			if now.Sub(cd) < act.CooldownMonths() {
				slog.Debug("action: plan rejected by cooldown", "avatar", av.ID, "action", act.Name())
				continue
			}
		}

		ok, reason := act.CanStart(av, plan.Params, now)
		if !ok {
			slog.Warn("action: plan rejected", "avatar", av.ID, "action", act.Name(), "reason", reason)
			continue
		}

		startEvent, err := act.Start(av, plan.Params, now)
		if err != nil {
			slog.Warn("action: start failed", "avatar", av.ID, "action", act.Name(), "error", err)
			continue
		}

		inst := NewInstance(act, plan.Params)
		av.CurrentAction = inst
		if startEvent != nil {
			out = append(out, *startEvent)
		}
		// One commit per avatar per phase: a freshly-seated instance steps
		// next phase, not this one.
		break
	}
	return out
}

// Execute runs the action-execute phase (spec §4.1/§4.2 phase 6) across all
// living avatars, with bounded retry rounds for avatars whose Step installs
// a preemption replacement (spec §4.1's preemption rule, testable S4).
func Execute(living []*entities.Avatar, reg *Registry, maxRoundsPerTurn int, now clock.MonthStamp) []eventlog.Event {
	var out []eventlog.Event

	pending := make([]*entities.Avatar, len(living))
	copy(pending, living)

	for round := 0; round < maxRoundsPerTurn && len(pending) > 0; round++ {
		var next []*entities.Avatar
		for _, av := range pending {
			inst, ok := av.CurrentAction.(*Instance)
			if !ok || inst == nil {
				continue
			}

			before := inst
			res, err := inst.Act.Step(av, inst.Params, inst, now)
			if err != nil {
				slog.Warn("action: step raised, dropping slot", "avatar", av.ID, "action", inst.Act.Name(), "error", err)
				av.CurrentAction = nil
				continue
			}
			out = append(out, res.Events...)
			inst.status = res.Status

			if inst.replaced != nil && inst.replaced != before {
				// Preemption: the executor detects the swap by identity
				// comparison and leaves the new instance seated, retrying
				// it in the next sub-round of this same month.
				av.CurrentAction = inst.replaced
				next = append(next, av)
				continue
			}

			if res.Status == entities.StatusRunning {
				continue
			}

			if res.Status == entities.StatusCompleted {
				finishEvents, err := inst.Act.Finish(av, inst.Params, now)
				if err != nil {
					slog.Warn("action: finish failed", "avatar", av.ID, "action", inst.Act.Name(), "error", err)
				} else {
					out = append(out, finishEvents...)
				}
			}

			if av.ActionCooldowns == nil {
				av.ActionCooldowns = make(map[string]clock.MonthStamp)
			}
			av.ActionCooldowns[inst.Act.Name()] = now
			av.CurrentAction = nil
		}
		pending = next
	}

	return out
}
