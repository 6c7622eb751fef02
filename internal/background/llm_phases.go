package background

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/talgya/ascendant/internal/clock"
	"github.com/talgya/ascendant/internal/entities"
	"github.com/talgya/ascendant/internal/eventlog"
	"github.com/talgya/ascendant/internal/llmgateway"
	"github.com/talgya/ascendant/internal/relations"
)

// goalDecision is the structural shape the "goal" task's JSON reply must
// match; validation beyond json.Unmarshal is this function's job per
// spec §4.4.
type goalDecision struct {
	SetGoal bool   `json:"set_goal"`
	Goal    string `json:"goal"`
}

// ReviewGoals runs phase 2 (LLM, parallel): per-avatar query deciding
// whether to set/rewrite the long-term objective. Errors are recovered
// locally per spec §7 — the affected avatar simply keeps its existing goal.
func ReviewGoals(ctx context.Context, living []*entities.Avatar, gw *llmgateway.Gateway) {
	if !gw.Enabled() {
		return
	}
	g, gctx := errgroup.WithContext(ctx)
	for _, av := range living {
		av := av
		g.Go(func() error {
			raw, err := gw.Call(gctx, "goal", "goal_review.tmpl", map[string]any{
				"name":               av.Name,
				"realm":              av.Realm().String(),
				"short_term":         av.ShortTermObjective,
				"current_goal":       goalText(av),
			})
			if err != nil {
				slog.Debug("background: goal review failed", "avatar", av.ID, "error", err)
				return nil
			}
			var d goalDecision
			if err := json.Unmarshal(raw, &d); err != nil {
				slog.Debug("background: goal review shape mismatch", "avatar", av.ID, "error", err)
				return nil
			}
			if d.SetGoal && d.Goal != "" {
				av.LongTermObjective = &entities.Objective{Text: d.Goal, Origin: "llm"}
			}
			return nil
		})
	}
	_ = g.Wait() // per-task errors are already swallowed; Wait never returns non-nil here
}

func goalText(av *entities.Avatar) string {
	if av.LongTermObjective == nil {
		return ""
	}
	return av.LongTermObjective.Text
}

// decideReply is the structural shape of the "decide" task's JSON reply.
type decideReply struct {
	Plans             []planJSON `json:"plans"`
	Thinking          string     `json:"thinking"`
	ShortTermObjective string    `json:"short_term_objective"`
}

type planJSON struct {
	Action string         `json:"action"`
	Params map[string]any `json:"params"`
}

// DecidePlans runs phase 4 (LLM, parallel): for each avatar with no
// instance and empty queue, fan out a single "decide" query and enqueue the
// resulting plans.
func DecidePlans(ctx context.Context, living []*entities.Avatar, gw *llmgateway.Gateway) {
	if !gw.Enabled() {
		return
	}
	g, gctx := errgroup.WithContext(ctx)
	for _, av := range living {
		if av.CurrentAction != nil || len(av.PlanQueue) > 0 {
			continue
		}
		av := av
		g.Go(func() error {
			raw, err := gw.Call(gctx, "decide", "decide.tmpl", map[string]any{
				"name":  av.Name,
				"realm": av.Realm().String(),
				"hp":    av.HP,
			})
			if err != nil {
				slog.Debug("background: decide failed", "avatar", av.ID, "error", err)
				return nil
			}
			var d decideReply
			if err := json.Unmarshal(raw, &d); err != nil {
				slog.Debug("background: decide shape mismatch", "avatar", av.ID, "error", err)
				return nil
			}
			for _, p := range d.Plans {
				av.PlanQueue = append(av.PlanQueue, entities.Plan{ActionName: p.Action, Params: p.Params})
			}
			av.LastThinking = d.Thinking
			if d.ShortTermObjective != "" {
				av.ShortTermObjective = d.ShortTermObjective
			}
			return nil
		})
	}
	_ = g.Wait()
}

// relationDecision is the structural shape of the "relation" task's reply.
type relationDecision struct {
	Action string `json:"action"` // "add" | "cancel" | "change" | "none"
	Label  string `json:"label"`
}

// ResolveRelations runs phase 8 (LLM, parallel): for each deduped high-
// interaction pair, ask the relation resolver to decide add/cancel/change
// and apply it through the Relation Graph API (spec §4.2.8, §4.3).
func ResolveRelations(ctx context.Context, pairs [][2]*entities.Avatar, graph *relations.Graph, gw *llmgateway.Gateway, now clock.MonthStamp) []eventlog.Event {
	if !gw.Enabled() {
		return nil
	}
	type outcome struct {
		ev eventlog.Event
		ok bool
	}
	results := make([]outcome, len(pairs))

	g, gctx := errgroup.WithContext(ctx)
	for i, pair := range pairs {
		i, pair := i, pair
		g.Go(func() error {
			a, b := pair[0], pair[1]
			possible := graph.PossibleNew(a, b)
			raw, err := gw.Call(gctx, "relation", "relation.tmpl", map[string]any{
				"a_name": a.Name, "b_name": b.Name, "possible": possible,
			})
			if err != nil {
				slog.Debug("background: relation resolve failed", "pair", a.ID+","+b.ID, "error", err)
				return nil
			}
			var d relationDecision
			if err := json.Unmarshal(raw, &d); err != nil {
				slog.Debug("background: relation resolve shape mismatch", "pair", a.ID+","+b.ID, "error", err)
				return nil
			}

			var content string
			switch d.Action {
			case "add":
				if err := graph.SetAt(a, b, relations.Label(d.Label), now); err == nil {
					content = fmt.Sprintf("%s and %s become %s.", a.Name, b.Name, d.Label)
				}
			case "cancel":
				if err := graph.Cancel(a, b, relations.Label(d.Label)); err == nil {
					content = fmt.Sprintf("%s and %s end their bond.", a.Name, b.Name)
				}
			case "change":
				graph.Clear(a, b)
				if err := graph.SetAt(a, b, relations.Label(d.Label), now); err == nil {
					content = fmt.Sprintf("%s and %s are now %s.", a.Name, b.Name, d.Label)
				}
			}
			if content != "" {
				results[i] = outcome{ev: eventlog.NewEvent(now, content, []string{a.ID, b.ID}, false, false), ok: true}
			}
			return nil
		})
	}
	_ = g.Wait()

	var events []eventlog.Event
	for _, r := range results {
		if r.ok {
			events = append(events, r.ev)
		}
	}
	return events
}

// backstoryReply is the structural shape of the "backstory" task's reply.
type backstoryReply struct {
	Backstory string `json:"backstory"`
}

// FillBackstories runs phase 11 (LLM, parallel): for each living avatar
// without a backstory, request and store one.
func FillBackstories(ctx context.Context, living []*entities.Avatar, gw *llmgateway.Gateway) {
	if !gw.Enabled() {
		return
	}
	g, gctx := errgroup.WithContext(ctx)
	for _, av := range living {
		if av.Backstory != "" {
			continue
		}
		av := av
		g.Go(func() error {
			raw, err := gw.Call(gctx, "backstory", "backstory.tmpl", map[string]any{
				"name": av.Name, "realm": av.Realm().String(),
			})
			if err != nil {
				slog.Debug("background: backstory failed", "avatar", av.ID, "error", err)
				return nil
			}
			var d backstoryReply
			if err := json.Unmarshal(raw, &d); err != nil {
				slog.Debug("background: backstory shape mismatch", "avatar", av.ID, "error", err)
				return nil
			}
			av.Backstory = d.Backstory
			return nil
		})
	}
	_ = g.Wait()
}

// nicknameReply is the structural shape of the "nickname" task's reply.
type nicknameReply struct {
	Nickname string `json:"nickname"`
}

// NicknameEligible reports whether av qualifies for nickname generation this
// tick: it has none yet and hadMajorEventThisTick is true, per spec
// §4.2.13's "e.g., major event trigger".
func NicknameEligible(av *entities.Avatar, hadMajorEventThisTick bool) bool {
	return av.Nickname == "" && hadMajorEventThisTick
}

// AssignNicknames runs phase 13 (LLM, parallel) over avatars NicknameEligible
// has already filtered.
func AssignNicknames(ctx context.Context, eligible []*entities.Avatar, gw *llmgateway.Gateway) {
	if !gw.Enabled() {
		return
	}
	g, gctx := errgroup.WithContext(ctx)
	for _, av := range eligible {
		av := av
		g.Go(func() error {
			raw, err := gw.Call(gctx, "nickname", "nickname.tmpl", map[string]any{"name": av.Name})
			if err != nil {
				slog.Debug("background: nickname failed", "avatar", av.ID, "error", err)
				return nil
			}
			var d nicknameReply
			if err := json.Unmarshal(raw, &d); err != nil {
				slog.Debug("background: nickname shape mismatch", "avatar", av.ID, "error", err)
				return nil
			}
			av.Nickname = d.Nickname
			return nil
		})
	}
	_ = g.Wait()
}
