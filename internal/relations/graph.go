package relations

import (
	"fmt"
	"sort"
	"sync"

	"github.com/talgya/ascendant/internal/clock"
	"github.com/talgya/ascendant/internal/entities"
)

// pairKey is a stable, order-independent key for the per-pair striped lock
// spec §5 requires ("serialize edits per pair ... lock by sorted-id-pair").
func pairKey(a, b string) string {
	if a < b {
		return a + "|" + b
	}
	return b + "|" + a
}

// Graph owns the asserted edge map plus each avatar's derived snapshot. It is
// safe for concurrent use: cross-task edge mutation is serialized per pair,
// per spec §5.
type Graph struct {
	store *entities.Store

	mu        sync.RWMutex
	edges     map[string]map[string]Label // edges[A][B] = label
	startedAt map[string]map[string]clock.MonthStamp

	pairMu sync.Mutex
	stripe map[string]*sync.Mutex

	derived map[string]map[string]Label // per-avatar computed_relations snapshot
}

// NewGraph builds an empty relation graph bound to an entity store (for
// sect/realm lookups during Set).
func NewGraph(store *entities.Store) *Graph {
	return &Graph{
		store:     store,
		edges:     make(map[string]map[string]Label),
		startedAt: make(map[string]map[string]clock.MonthStamp),
		stripe:    make(map[string]*sync.Mutex),
		derived:   make(map[string]map[string]Label),
	}
}

func (g *Graph) lockPair(a, b string) func() {
	key := pairKey(a, b)
	g.pairMu.Lock()
	m, ok := g.stripe[key]
	if !ok {
		m = &sync.Mutex{}
		g.stripe[key] = m
	}
	g.pairMu.Unlock()
	m.Lock()
	return m.Unlock
}

func (g *Graph) writeEdge(from, to string, l Label) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.edges[from] == nil {
		g.edges[from] = make(map[string]Label)
	}
	g.edges[from][to] = l
}

// Get returns the asserted label of A→B, if any. Callers wanting derived
// relations must use Derived instead (spec §4.3).
func (g *Graph) Get(a, b string) (Label, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	l, ok := g.edges[a][b]
	return l, ok
}

// Set writes A→B = label and B→A = reciprocal(label), plus the lover and
// master/disciple side effects spec §4.3 describes. The whole operation is
// performed under the pair's stripe lock and is transactional: either every
// side effect applies, or (on an unknown label) none do — resolving the open
// question about sect-join atomicity by making sect enrollment part of the
// same critical section as the edge write.
func (g *Graph) Set(a, b *entities.Avatar, label Label) error {
	recip, ok := Reciprocal(label)
	if !ok {
		return fmt.Errorf("relations: no reciprocal defined for label %q", label)
	}

	unlock := g.lockPair(a.ID, b.ID)
	defer unlock()

	g.writeEdge(a.ID, b.ID, label)
	g.writeEdge(b.ID, a.ID, recip)

	if label == LabelLover || recip == LabelLover {
		now := currentStampOrZero(a, b)
		g.mu.Lock()
		if g.startedAt[a.ID] == nil {
			g.startedAt[a.ID] = make(map[string]clock.MonthStamp)
		}
		if g.startedAt[b.ID] == nil {
			g.startedAt[b.ID] = make(map[string]clock.MonthStamp)
		}
		g.startedAt[a.ID][b.ID] = now
		g.startedAt[b.ID][a.ID] = now
		g.mu.Unlock()
	}

	// master/disciple sect enrollment: whichever side holds "master" enrolls
	// the disciple into the master's sect, at a rank derived from realm.
	var master, disciple *entities.Avatar
	switch {
	case label == LabelMaster:
		master, disciple = a, b
	case recip == LabelMaster:
		master, disciple = b, a
	}
	if master != nil && master.SectID != "" && master.SectID != disciple.SectID {
		disciple.SectID = master.SectID
		disciple.SectRank = sectRankForRealm(disciple.Realm())
	}

	return nil
}

// currentStampOrZero returns the stamp a's RelationStartStamps map holds for
// b if the caller already recorded "now" there (SetAt writes both avatars'
// maps before calling Set), else zero. The Simulator always
// calls SetAt instead in practice; Set is retained for the simple API shape
// described in spec §4.3 and used directly by tests.
func currentStampOrZero(a, b *entities.Avatar) clock.MonthStamp {
	if s, ok := a.RelationStartStamps[b.ID]; ok {
		return s
	}
	return 0
}

// SetAt is Set with an explicit "now" stamp, used by the Simulator so the
// lover relation_start_stamp records the tick's actual MonthStamp (spec §4.3,
// testable property 8).
func (g *Graph) SetAt(a, b *entities.Avatar, label Label, now clock.MonthStamp) error {
	if a.RelationStartStamps == nil {
		a.RelationStartStamps = make(map[string]clock.MonthStamp)
	}
	if b.RelationStartStamps == nil {
		b.RelationStartStamps = make(map[string]clock.MonthStamp)
	}
	a.RelationStartStamps[b.ID] = now
	b.RelationStartStamps[a.ID] = now
	return g.Set(a, b, label)
}

// Clear deletes both directions of the A-B edge and drops any
// relation_start_stamp entries.
func (g *Graph) Clear(a, b *entities.Avatar) {
	unlock := g.lockPair(a.ID, b.ID)
	defer unlock()

	g.mu.Lock()
	delete(g.edges[a.ID], b.ID)
	delete(g.edges[b.ID], a.ID)
	delete(g.startedAt[a.ID], b.ID)
	delete(g.startedAt[b.ID], a.ID)
	g.mu.Unlock()

	delete(a.RelationStartStamps, b.ID)
	delete(b.RelationStartStamps, a.ID)
}

// Cancel clears A-B iff the current asserted label equals label and label is
// not innate; otherwise it fails without mutating anything.
func (g *Graph) Cancel(a, b *entities.Avatar, label Label) error {
	current, ok := g.Get(a.ID, b.ID)
	if !ok || current != label {
		return fmt.Errorf("relations: no %q edge from %s to %s to cancel", label, a.ID, b.ID)
	}
	if IsInnate(label) {
		return fmt.Errorf("relations: label %q is innate and cannot be cancelled", label)
	}
	g.Clear(a, b)
	return nil
}

// PossibleNew returns the asserted labels that could legally be added from
// A's viewpoint, per spec §4.3's eligibility rules. Innate labels are never
// included (testable property 3).
func (g *Graph) PossibleNew(a, b *entities.Avatar) []Label {
	existing, hasExisting := g.Get(a.ID, b.ID)

	var out []Label
	consider := func(l Label, allowed bool) {
		if !allowed {
			return
		}
		if IsInnate(l) {
			return
		}
		if hasExisting && existing == l {
			return
		}
		out = append(out, l)
	}

	consider(LabelFriend, true)
	consider(LabelEnemy, true)
	consider(LabelSwornSibling, true)
	consider(LabelLover, a.Gender != b.Gender)
	consider(LabelMaster, b.Level <= a.Level-20)
	consider(LabelDisciple, b.Level >= a.Level+20)

	return out
}

func sectRankForRealm(r entities.Realm) int {
	switch r {
	case entities.RealmNascentSoul:
		return 4
	case entities.RealmCoreFormation:
		return 3
	case entities.RealmFoundationEstablishment:
		return 2
	default:
		return 1
	}
}

// DropAvatar removes every stored edge touching id (used by death handling —
// edges are kept until cleanup per spec §3, so this is only called by
// CleanupLongDead's transitive drop, not by ordinary death).
func (g *Graph) DropAvatar(id string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.edges, id)
	delete(g.startedAt, id)
	for _, targets := range g.edges {
		delete(targets, id)
	}
	delete(g.derived, id)
	for _, targets := range g.derived {
		delete(targets, id)
	}
}

// Neighbors returns every (target, label) asserted edge from id.
func (g *Graph) Neighbors(id string) map[string]Label {
	g.mu.RLock()
	defer g.mu.RUnlock()
	out := make(map[string]Label, len(g.edges[id]))
	for k, v := range g.edges[id] {
		out[k] = v
	}
	return out
}

// RelationStartStamp returns the lover relation_start_stamp from A to B, if any.
func (g *Graph) RelationStartStamp(a, b string) (clock.MonthStamp, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	s, ok := g.startedAt[a][b]
	return s, ok
}

// Derived returns avatar id's derived (computed_relations) snapshot.
func (g *Graph) Derived(id string) map[string]Label {
	g.mu.RLock()
	defer g.mu.RUnlock()
	out := make(map[string]Label, len(g.derived[id]))
	for k, v := range g.derived[id] {
		out[k] = v
	}
	return out
}

// RefreshDerived recomputes computed_relations for every living avatar, per
// the rules in spec §4.2.17. Called once yearly (January) by the Simulator.
func (g *Graph) RefreshDerived(living []*entities.Avatar) {
	byID := make(map[string]*entities.Avatar, len(living))
	for _, a := range living {
		byID[a.ID] = a
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	next := make(map[string]map[string]Label, len(living))
	set := func(id, target string, l Label) {
		if id == target {
			return
		}
		if next[id] == nil {
			next[id] = make(map[string]Label)
		}
		if _, exists := next[id][target]; !exists {
			next[id][target] = l
		}
	}

	// parentsOf/childrenOf/mastersOf/disciplesOf read id's own edges, whose
	// label names id's relation to the target: an edge labeled "child" means
	// id is the child of the target, i.e. the target is id's parent.
	parentsOf := func(id string) []string {
		var out []string
		for t, l := range g.edges[id] {
			if l == LabelChild {
				out = append(out, t)
			}
		}
		return out
	}
	childrenOf := func(id string) []string {
		var out []string
		for t, l := range g.edges[id] {
			if l == LabelParent {
				out = append(out, t)
			}
		}
		return out
	}
	mastersOf := func(id string) []string {
		var out []string
		for t, l := range g.edges[id] {
			if l == LabelDisciple {
				out = append(out, t)
			}
		}
		return out
	}
	disciplesOf := func(id string) []string {
		var out []string
		for t, l := range g.edges[id] {
			if l == LabelMaster {
				out = append(out, t)
			}
		}
		return out
	}

	for _, a := range living {
		for _, p := range parentsOf(a.ID) {
			for _, sib := range childrenOf(p) {
				set(a.ID, sib, LabelSibling)
			}
			for _, gp := range parentsOf(p) {
				set(a.ID, gp, LabelGrandParent)
			}
		}
		for _, c := range childrenOf(a.ID) {
			for _, gc := range childrenOf(c) {
				set(a.ID, gc, LabelGrandChild)
			}
		}
		for _, m := range mastersOf(a.ID) {
			for _, sib := range disciplesOf(m) {
				set(a.ID, sib, LabelMartialSibling)
			}
			for _, gm := range mastersOf(m) {
				set(a.ID, gm, LabelMartialGrandmaster)
			}
		}
		for _, d := range disciplesOf(a.ID) {
			for _, gd := range disciplesOf(d) {
				set(a.ID, gd, LabelMartialGrandchild)
			}
		}
	}

	g.derived = next
}

// sortedPairs returns a set of id pairs in a deterministic order: by first
// id, then by second id. It is unexported, so code outside this package
// (the background phases included) cannot call it.
func sortedPairs(pairs map[[2]string]bool) [][2]string {
	out := make([][2]string, 0, len(pairs))
	for p := range pairs {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i][0] != out[j][0] {
			return out[i][0] < out[j][0]
		}
		return out[i][1] < out[j][1]
	})
	return out
}
