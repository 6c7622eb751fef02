// Package builtin provides a handful of concrete Actions exercising the
// Action Runtime contract end to end: Cultivate, GatherHerbs, Duel, and
// Travel. Grounded on the teacher's internal/agents/behavior.go action-kind
// effects switch (Eat/Work/Forage/Trade/Rest/Socialize), rewritten as
// independent Action implementations against a cultivation-fantasy domain.
package builtin

import (
	"fmt"

	"github.com/talgya/ascendant/internal/action"
	"github.com/talgya/ascendant/internal/clock"
	"github.com/talgya/ascendant/internal/entities"
	"github.com/talgya/ascendant/internal/eventlog"
	"github.com/talgya/ascendant/internal/worldmap"
)

// Register adds every builtin action to reg under its canonical name.
func Register(reg *action.Registry) {
	reg.Register("cultivate", func() action.Action { return &Cultivate{} })
	reg.Register("gather-herbs", func() action.Action { return &GatherHerbs{rounds: 0} })
	reg.Register("duel", func() action.Action { return &Duel{} })
	reg.Register("travel", func() action.Action { return &Travel{} })
}

// Cultivate is a meditation action: running for a fixed number of months,
// it raises the avatar's level by 1 on completion.
type Cultivate struct {
	action.BaseAction
	roundsLeft int
}

func (c *Cultivate) Name() string          { return "cultivate" }
func (c *Cultivate) CooldownMonths() int   { return 0 }
func (c *Cultivate) AllowGathering() bool  { return false }
func (c *Cultivate) AllowWorldEvents() bool { return true }
func (c *Cultivate) IsMajor() bool         { return false }
func (c *Cultivate) Emoji() string         { return "🧘" }

func (c *Cultivate) CanStart(av *entities.Avatar, params action.Params, now clock.MonthStamp) (bool, string) {
	if av.CurrentAction != nil {
		return false, "already acting"
	}
	return true, ""
}

func (c *Cultivate) Start(av *entities.Avatar, params action.Params, now clock.MonthStamp) (*eventlog.Event, error) {
	c.roundsLeft = 3
	ev := eventlog.NewEvent(now, fmt.Sprintf("%s begins secluded cultivation.", av.Name), []string{av.ID}, false, false)
	return &ev, nil
}

func (c *Cultivate) Step(av *entities.Avatar, params action.Params, inst *action.Instance, now clock.MonthStamp) (action.Result, error) {
	c.roundsLeft--
	if c.roundsLeft > 0 {
		return action.Result{Status: entities.StatusRunning}, nil
	}
	av.Level++
	return action.Result{Status: entities.StatusCompleted}, nil
}

func (c *Cultivate) Finish(av *entities.Avatar, params action.Params, now clock.MonthStamp) ([]eventlog.Event, error) {
	ev := eventlog.NewEvent(now, fmt.Sprintf("%s breaks through to level %d.", av.Name, av.Level), []string{av.ID}, true, false)
	return []eventlog.Event{ev}, nil
}

// GatherHerbs is a simple resource-gathering storyline: completes in one
// step, adding herbs to the avatar's bag.
type GatherHerbs struct {
	action.BaseAction
	rounds int
}

func (g *GatherHerbs) Name() string          { return "gather-herbs" }
func (g *GatherHerbs) CooldownMonths() int   { return 1 }
func (g *GatherHerbs) AllowGathering() bool  { return true }
func (g *GatherHerbs) AllowWorldEvents() bool { return true }
func (g *GatherHerbs) IsMajor() bool         { return false }
func (g *GatherHerbs) Emoji() string         { return "🌿" }

func (g *GatherHerbs) CanStart(av *entities.Avatar, params action.Params, now clock.MonthStamp) (bool, string) {
	if av.CurrentAction != nil {
		return false, "already acting"
	}
	return true, ""
}

func (g *GatherHerbs) Start(av *entities.Avatar, params action.Params, now clock.MonthStamp) (*eventlog.Event, error) {
	return nil, nil
}

func (g *GatherHerbs) Step(av *entities.Avatar, params action.Params, inst *action.Instance, now clock.MonthStamp) (action.Result, error) {
	if av.Bag == nil {
		av.Bag = make(map[string]int)
	}
	av.Bag["herb"] += 1
	return action.Result{Status: entities.StatusCompleted}, nil
}

func (g *GatherHerbs) Finish(av *entities.Avatar, params action.Params, now clock.MonthStamp) ([]eventlog.Event, error) {
	ev := eventlog.NewEvent(now, fmt.Sprintf("%s gathers spirit herbs.", av.Name), []string{av.ID}, false, false)
	return []eventlog.Event{ev}, nil
}

// Duel is a combat action between two avatars; it can kill the loser (the
// Simulator's death-resolution phase observes HP <= 0 afterward). Grounds
// spec §4.1's IS_MAJOR=true attribute and finish-time settlement.
type Duel struct {
	action.BaseAction
	target *entities.Avatar
}

func (d *Duel) Name() string          { return "duel" }
func (d *Duel) CooldownMonths() int   { return 0 }
func (d *Duel) AllowGathering() bool  { return false }
func (d *Duel) AllowWorldEvents() bool { return false }
func (d *Duel) IsMajor() bool         { return true }
func (d *Duel) Emoji() string         { return "⚔️" }

func (d *Duel) CanStart(av *entities.Avatar, params action.Params, now clock.MonthStamp) (bool, string) {
	if av.CurrentAction != nil {
		return false, "already acting"
	}
	if params.String("target_id") == "" {
		return false, "no target specified"
	}
	return true, ""
}

func (d *Duel) Start(av *entities.Avatar, params action.Params, now clock.MonthStamp) (*eventlog.Event, error) {
	ev := eventlog.NewEvent(now, fmt.Sprintf("%s challenges a rival to a duel.", av.Name), []string{av.ID}, true, false)
	return &ev, nil
}

// Step resolves the duel's single exchange. Resolver is provided via
// params["resolve_target"] as a func() *entities.Avatar returning the
// target looked up from the entity store; callers (the action registry
// wiring in the Simulator) supply this indirection so builtin stays free of
// a dependency on the entities.Store lookup-by-id API.
func (d *Duel) Step(av *entities.Avatar, params action.Params, inst *action.Instance, now clock.MonthStamp) (action.Result, error) {
	resolve, _ := params["resolve_target"].(func() *entities.Avatar)
	if resolve == nil {
		return action.Result{Status: entities.StatusFailed}, nil
	}
	target := resolve()
	if target == nil || target.IsDead {
		return action.Result{Status: entities.StatusFailed}, nil
	}
	damage := 10 + (av.Level - target.Level)
	if damage < 1 {
		damage = 1
	}
	target.HP -= damage
	return action.Result{Status: entities.StatusCompleted}, nil
}

func (d *Duel) Finish(av *entities.Avatar, params action.Params, now clock.MonthStamp) ([]eventlog.Event, error) {
	ev := eventlog.NewEvent(now, fmt.Sprintf("%s's duel concludes.", av.Name), []string{av.ID}, true, false)
	return []eventlog.Event{ev}, nil
}

// Travel moves an avatar toward a destination tile over multiple months,
// demonstrating a multi-tick running status a peer action (Duel, via an
// ambush plan) can preempt.
type Travel struct {
	action.BaseAction
	dest         worldmap.Coord
	monthsLeft   int
}

func (t *Travel) Name() string          { return "travel" }
func (t *Travel) CooldownMonths() int   { return 0 }
func (t *Travel) AllowGathering() bool  { return true }
func (t *Travel) AllowWorldEvents() bool { return true }
func (t *Travel) IsMajor() bool         { return false }
func (t *Travel) Emoji() string         { return "🚶" }

func (t *Travel) CanStart(av *entities.Avatar, params action.Params, now clock.MonthStamp) (bool, string) {
	if av.CurrentAction != nil {
		return false, "already acting"
	}
	return true, ""
}

func (t *Travel) Start(av *entities.Avatar, params action.Params, now clock.MonthStamp) (*eventlog.Event, error) {
	x, _ := params["dest_x"].(int)
	y, _ := params["dest_y"].(int)
	t.dest = worldmap.Coord{X: x, Y: y}
	t.monthsLeft = worldmap.ManhattanDistance(av.Position, t.dest)
	if t.monthsLeft < 1 {
		t.monthsLeft = 1
	}
	return nil, nil
}

func (t *Travel) Step(av *entities.Avatar, params action.Params, inst *action.Instance, now clock.MonthStamp) (action.Result, error) {
	// Ambush hook: callers may preempt via inst.Preempt from outside Step
	// (e.g. the Simulator's execute phase, between rounds) by seating a
	// Duel instance directly; Step itself just advances travel.
	if av.Position.X < t.dest.X {
		av.Position.X++
	} else if av.Position.X > t.dest.X {
		av.Position.X--
	}
	if av.Position.Y < t.dest.Y {
		av.Position.Y++
	} else if av.Position.Y > t.dest.Y {
		av.Position.Y--
	}
	t.monthsLeft--
	if t.monthsLeft <= 0 || av.Position == t.dest {
		return action.Result{Status: entities.StatusCompleted}, nil
	}
	return action.Result{Status: entities.StatusRunning}, nil
}

func (t *Travel) Finish(av *entities.Avatar, params action.Params, now clock.MonthStamp) ([]eventlog.Event, error) {
	return nil, nil
}
