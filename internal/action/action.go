// Package action implements the Action Runtime: the per-avatar action
// contract, the plan/instance state machine, and the executor that drives
// plan commit and tick with bounded preemption. Grounded on the teacher's
// internal/agents/behavior.go Decide/Action/ApplyAction dispatch shape,
// generalized from a flat switch into a name-keyed registry of Action
// implementations (spec §4.1).
package action

import (
	"github.com/talgya/ascendant/internal/clock"
	"github.com/talgya/ascendant/internal/entities"
	"github.com/talgya/ascendant/internal/eventlog"
)

// Params is the parameter bag passed to every contract method; per spec §9's
// design note, unknown keys are dropped by the action before dispatch (each
// Action implementation is responsible for reading only the keys it knows).
type Params map[string]any

// String reads a string param, returning "" if absent or of the wrong type.
func (p Params) String(key string) string {
	if v, ok := p[key].(string); ok {
		return v
	}
	return ""
}

// Result is what Step returns: a status plus any events it produced.
type Result struct {
	Status entities.ActionStatus
	Events []eventlog.Event
}

// Action is the unit of per-avatar intent (spec §4.1).
type Action interface {
	// Name identifies the action for the registry and for ActionCooldowns.
	Name() string

	// CanStart is a pure precondition check; must not mutate world.
	CanStart(av *entities.Avatar, params Params, now clock.MonthStamp) (bool, string)

	// Start transitions internal state to running and returns an optional
	// start-event. now is the tick's current month stamp, used to date the
	// event rather than the avatar's birth month.
	Start(av *entities.Avatar, params Params, now clock.MonthStamp) (*eventlog.Event, error)

	// Step may mutate world; status is one of running/completed/failed/
	// cancelled/interrupted. Step is also where preemption happens: it may
	// call Instance.Preempt to install a replacement instance.
	Step(av *entities.Avatar, params Params, inst *Instance, now clock.MonthStamp) (Result, error)

	// Finish runs exactly once after Step reports completed, for
	// finalization (settlement, rewards, story generation); the executor
	// does not call it for failed, cancelled or interrupted results.
	Finish(av *entities.Avatar, params Params, now clock.MonthStamp) ([]eventlog.Event, error)

	// CooldownMonths is the action-name cooldown (ACTION_CD_MONTHS, default 0).
	CooldownMonths() int
	// AllowGathering reports whether the holder may be drafted into
	// world gatherings while running this action.
	AllowGathering() bool
	// AllowWorldEvents reports whether fortune/misfortune may fire while
	// this action runs.
	AllowWorldEvents() bool
	// IsMajor reports whether this action's events should default to major.
	IsMajor() bool
	// Emoji is the short display glyph pushed to the UI diff channel.
	Emoji() string
}

// BaseAction provides the common static-attribute defaults (cooldown 0,
// gathering/world-events not allowed, not major, no emoji) so concrete actions
// only override what differs — mirrors the teacher's ActionKind constant
// table being mostly zero-value except where a behavior needs otherwise.
type BaseAction struct {
	NameStr        string
	Cooldown       int
	Gathering      bool
	WorldEvents    bool
	Major          bool
	EmojiStr       string
}

func (b BaseAction) Name() string             { return b.NameStr }
func (b BaseAction) CooldownMonths() int       { return b.Cooldown }
func (b BaseAction) AllowGathering() bool      { return b.Gathering }
func (b BaseAction) AllowWorldEvents() bool    { return b.WorldEvents }
func (b BaseAction) IsMajor() bool             { return b.Major }
func (b BaseAction) Emoji() string             { return b.EmojiStr }

// Instance is an (action_object, params, status) triple, the concrete
// ActionInstance that satisfies entities.ActionInstance. Avatar.CurrentAction
// stores this.
type Instance struct {
	Act    Action
	Params Params
	status entities.ActionStatus

	// replaced points at a replacement instance installed mid-Step, the
	// mechanism Preempt uses; the executor detects it by identity
	// comparison (spec §4.1's preemption rule).
	replaced *Instance
}

// NewInstance seats an action as running with the given params.
func NewInstance(act Action, params Params) *Instance {
	return &Instance{Act: act, Params: params, status: entities.StatusRunning}
}

// Name satisfies entities.ActionInstance.
func (i *Instance) Name() string { return i.Act.Name() }

// Status satisfies entities.ActionInstance.
func (i *Instance) Status() entities.ActionStatus { return i.status }

// Preempt installs repl as this instance's replacement; the executor's Step
// call detects the swap via identity comparison and leaves repl seated,
// re-queuing the avatar for a second sub-round in the same month.
func (i *Instance) Preempt(repl *Instance) {
	i.replaced = repl
}

// Registry maps action names to constructors, the name-keyed table the plan
// commit phase instantiates from (spec §4.1's "instantiate by name from the
// registry").
type Registry struct {
	constructors map[string]func() Action
}

// NewRegistry builds an empty registry.
func NewRegistry() *Registry {
	return &Registry{constructors: make(map[string]func() Action)}
}

// Register adds a constructor under name.
func (r *Registry) Register(name string, ctor func() Action) {
	r.constructors[name] = ctor
}

// New instantiates the action registered under name, or nil if unknown.
func (r *Registry) New(name string) Action {
	ctor, ok := r.constructors[name]
	if !ok {
		return nil
	}
	return ctor()
}
