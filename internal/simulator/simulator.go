// Package simulator implements the Simulator (spec §4.2): the ordered
//19-phase sequence executed once per month, finalizing with a clock advance
// and an Event Log append. Grounded on the teacher's internal/engine/
// simulation.go TickMinute/TickHour/TickDay/TickWeek/TickSeason cascade,
// collapsed here into one monthly Step, and internal/engine/tick.go's
// Engine.Run/Stop driving-loop shape.
package simulator

import (
	"context"
	"log/slog"
	"math/rand"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/talgya/ascendant/internal/action"
	"github.com/talgya/ascendant/internal/background"
	"github.com/talgya/ascendant/internal/clock"
	"github.com/talgya/ascendant/internal/entities"
	"github.com/talgya/ascendant/internal/entropy"
	"github.com/talgya/ascendant/internal/eventlog"
	"github.com/talgya/ascendant/internal/gathering"
	"github.com/talgya/ascendant/internal/llmgateway"
	"github.com/talgya/ascendant/internal/relations"
	"github.com/talgya/ascendant/internal/worldmap"
)

// Config bundles the spec §6 game.*/social.* knobs the Simulator consults.
type Config struct {
	MaxActionRoundsPerTurn int
	RelationCheckThreshold int
	ObservationRadius      int
	LongDeadCleanupYears   int
	FortuneProbability     float64
	MisfortuneProbability  float64
	Lifecycle              background.LifecycleConfig
}

// DefaultConfig returns reasonable defaults.
func DefaultConfig() Config {
	return Config{
		MaxActionRoundsPerTurn: 4,
		RelationCheckThreshold: 3,
		ObservationRadius:      5,
		LongDeadCleanupYears:   10,
		FortuneProbability:     0.02,
		MisfortuneProbability:  0.02,
		Lifecycle: background.LifecycleConfig{
			AwakeningRatePerMonth:  0.01,
			MortalMaxLifespanYears: 80,
			RogueAvatarBaseRate:    0.005,
			MinLoverMonthsForBirth: 12,
			BirthRate:              0.05,
			RareAvatarBirthRate:    0.1,
		},
	}
}

// Simulator is the phase orchestrator: it depends on every other component
// (spec §2's dependency direction).
type Simulator struct {
	Store      *entities.Store
	Graph      *relations.Graph
	Map        *worldmap.Map
	Log        *eventlog.Store
	Gateway    *llmgateway.Gateway
	Entropy    *entropy.Client
	Gatherings *gathering.Manager
	Registry   *action.Registry

	Now        clock.MonthStamp
	Phenomenon *background.Phenomenon
	Config     Config

	rng *rand.Rand
}

// New builds a Simulator. Log may be nil during tests that don't exercise
// finalize's durable append.
func New(store *entities.Store, graph *relations.Graph, m *worldmap.Map, log *eventlog.Store, gw *llmgateway.Gateway, ent *entropy.Client, gatherings *gathering.Manager, registry *action.Registry, now clock.MonthStamp, cfg Config, seed int64) *Simulator {
	return &Simulator{
		Store: store, Graph: graph, Map: m, Log: log,
		Gateway: gw, Entropy: ent, Gatherings: gatherings, Registry: registry,
		Now: now, Config: cfg, rng: rand.New(rand.NewSource(seed)),
	}
}

// LLMUnhealthy reports the process-level flag set by repeated gateway
// failures (spec §7); the caller (API layer) should pause ticking and
// signal the UI when this is true.
func (s *Simulator) LLMUnhealthy() bool {
	return s.Gateway.Unhealthy()
}

// Step advances the world by exactly one month, running the 19 phases in
// strict order, and returns the tick's deduplicated event list. It is the
// Simulator's only propagation point for persistence errors (spec §7): every
// other failure is recovered locally by its own phase.
func (s *Simulator) Step(ctx context.Context) ([]eventlog.Event, error) {
	living := s.Store.Living()
	var tick []eventlog.Event

	byID := func(avs []*entities.Avatar) map[string]*entities.Avatar {
		m := make(map[string]*entities.Avatar, len(avs))
		for _, a := range avs {
			m[a.ID] = a
		}
		return m
	}

	// 1. Perception & territory.
	tick = append(tick, background.Perception(living, s.Map, s.Config.ObservationRadius, s.Now)...)

	// 2. Long-term goal review (LLM, parallel).
	s.withLLM(func() { background.ReviewGoals(ctx, living, s.Gateway) })

	// 3. Gatherings.
	tick = append(tick, s.Gatherings.RunDue(gathering.World{Now: s.Now, Living: living})...)

	// 4. Plan decide (LLM, parallel).
	s.withLLM(func() { background.DecidePlans(ctx, living, s.Gateway) })

	// 5. Plan commit.
	for _, av := range living {
		tick = append(tick, action.Commit(av, s.Registry, s.Now)...)
	}

	// 6. Action execute.
	tick = append(tick, action.Execute(living, s.Registry, s.Config.MaxActionRoundsPerTurn, s.Now)...)

	// 7. Interaction counting (pass A).
	processed := make(map[int64]bool)
	passABoundary := len(tick)
	background.CountInteractions(tick[:passABoundary], byID(living), processed)

	// 8. Relation evolution (LLM, parallel).
	pairs := background.CollectRelationEvolutionPairs(living, s.Config.RelationCheckThreshold)
	var relationEvents []eventlog.Event
	s.withLLM(func() {
		relationEvents = background.ResolveRelations(ctx, pairs, s.Graph, s.Gateway, s.Now)
	})
	tick = append(tick, relationEvents...)

	// 9. Death resolution.
	survivors, deathEvents := background.ResolveDeaths(living, s.Store, s.Map, s.Now)
	tick = append(tick, deathEvents...)
	living = survivors

	// 10. Ageing & new life.
	tick = append(tick, background.AgeAndNewLife(living, s.Store.AllMortals(), s.Store, s.Graph, s.Config.Lifecycle, s.rng, s.Now)...)
	living = s.Store.Living()

	// 11. Backstory fill (LLM, parallel).
	s.withLLM(func() { background.FillBackstories(ctx, living, s.Gateway) })

	// 12. Passive effects: expire timers, then fortune/misfortune rolls.
	background.ExpireTimers(living, s.Now)
	tick = append(tick, background.RollFortuneMisfortune(living, s.Entropy, s.Config.FortuneProbability, s.Config.MisfortuneProbability, s.Now)...)

	// 13. Nickname generation (LLM, parallel) — eligible iff no nickname yet
	// and the avatar had at least one major event so far this tick.
	majorThisTick := make(map[string]bool)
	for _, e := range tick {
		if !e.IsMajor {
			continue
		}
		for _, p := range e.Participants {
			majorThisTick[p] = true
		}
	}
	var eligible []*entities.Avatar
	for _, av := range living {
		if background.NicknameEligible(av, majorThisTick[av.ID]) {
			eligible = append(eligible, av)
		}
	}
	s.withLLM(func() { background.AssignNicknames(ctx, eligible, s.Gateway) })

	// 14. Phenomenon rotation.
	var phenomenonEvents []eventlog.Event
	s.Phenomenon, phenomenonEvents = background.RotatePhenomenon(s.Phenomenon, s.Now, s.rng)
	tick = append(tick, phenomenonEvents...)

	// 15. Region prosperity tick.
	background.TickRegionProsperity(s.Map)

	// 16. Interaction counting (pass B): only events produced since pass A.
	background.CountInteractions(tick[passABoundary:], byID(living), processed)

	// 17. Derived relations refresh (January only).
	if s.Now.IsJanuary() {
		s.Graph.RefreshDerived(living)
	}

	// 18. Dead cleanup (January only).
	if s.Now.IsJanuary() {
		removed := s.Store.CleanupLongDead(s.Now, s.Config.LongDeadCleanupYears)
		for _, id := range removed {
			s.Graph.DropAvatar(id)
		}
	}

	// 19. Finalize: dedup by id (same-tick events are all pre-id, so
	// dedup only applies to accidental structural duplicates), append, and
	// advance the clock.
	deduped := dedupeEvents(tick)
	if s.Log != nil {
		if err := s.Log.Append(deduped); err != nil {
			return nil, err
		}
	}
	s.Now = s.Now.Next()

	return deduped, nil
}

// withLLM runs an LLM-bound phase closure only when the gateway is
// configured. Individual task errors are already recovered inside each
// background.* function, and the consecutive-failure count behind the
// process-level "LLM unhealthy" flag (spec §7) is kept by the gateway itself.
func (s *Simulator) withLLM(fn func()) {
	if !s.Gateway.Enabled() {
		return
	}
	fn()
}

// dedupeEvents removes duplicate events by id, keeping first occurrence;
// events with ID == 0 (not yet persisted) are never considered duplicates of
// each other.
func dedupeEvents(evs []eventlog.Event) []eventlog.Event {
	seen := make(map[int64]bool)
	out := make([]eventlog.Event, 0, len(evs))
	for _, e := range evs {
		if e.ID != 0 {
			if seen[e.ID] {
				continue
			}
			seen[e.ID] = true
		}
		out = append(out, e)
	}
	return out
}

// RunForever drives the Simulator one Step per interval until ctx is
// cancelled or a Step returns an error, grounded on the teacher's
// internal/engine/tick.go Engine.Run sleep loop. An interval's Step is
// skipped while paused() reports true or the gateway reports unhealthy.
// paused is polled once per interval so callers can implement pause/resume (spec §6's
// POST /api/control/{pause,resume}) without tearing down the goroutine.
func RunForever(ctx context.Context, s *Simulator, interval time.Duration, paused func() bool, onTick func([]eventlog.Event, error)) error {
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-gctx.Done():
				return gctx.Err()
			case <-ticker.C:
				if paused != nil && paused() {
					continue
				}
				if s.LLMUnhealthy() {
					continue
				}
				evs, err := s.Step(gctx)
				onTick(evs, err)
				if err != nil {
					slog.Error("simulator: step failed", "error", err)
					return err
				}
			}
		}
	})
	return g.Wait()
}
