// Package persistence saves and loads full world snapshots (spec §6's
// save/load surface). Events live in their own durable SQLite store
// (internal/eventlog); everything else — avatars, mortals, the map, the
// relation graph, and the current phenomenon — is a single JSON document,
// grounded on the teacher's internal/persistence/db.go SaveWorldState /
// LoadAgents two-pass shape, adapted from SQLite rows to a JSON document
// because the world here is one coherent object graph rather than
// independently normalized tables.
package persistence

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/talgya/ascendant/internal/action"
	"github.com/talgya/ascendant/internal/background"
	"github.com/talgya/ascendant/internal/clock"
	"github.com/talgya/ascendant/internal/entities"
	"github.com/talgya/ascendant/internal/relations"
	"github.com/talgya/ascendant/internal/worldmap"
)

// schemaVersion guards snapshot compatibility; Load refuses a file from a
// newer, incompatible version rather than silently misreading it (spec §7's
// "consistency violations are fatal for load").
const schemaVersion = 1

// actionDTO is how a running ActionInstance is frozen to disk: the action's
// name plus its original params, from which the registry builds a fresh
// instance on load. Load does not call CanStart or Start again, so state an
// action keeps on its own instance (Cultivate's remaining rounds, Travel's
// destination) starts from its zero value after a load.
type actionDTO struct {
	Name   string         `json:"name"`
	Params map[string]any `json:"params"`
}

// avatarDTO mirrors entities.Avatar but carries the json:"-" fields that need
// their own reconstruction step.
type avatarDTO struct {
	entities.Avatar
	PlanQueue     []entities.Plan `json:"plan_queue,omitempty"`
	CurrentAction *actionDTO      `json:"current_action,omitempty"`
}

// edgeDTO is one relation edge plus its start stamp.
type edgeDTO struct {
	A     string           `json:"a"`
	B     string           `json:"b"`
	Label string           `json:"label"`
	Start clock.MonthStamp `json:"start"`
}

// Snapshot is the full persisted world document.
type Snapshot struct {
	SchemaVersion int                      `json:"schema_version"`
	Now           clock.MonthStamp         `json:"now"`
	Map           *worldmap.Map            `json:"map"`
	Avatars       []avatarDTO              `json:"avatars"`
	Mortals       []*entities.Mortal       `json:"mortals"`
	Edges         []edgeDTO                `json:"edges"`
	Phenomenon    *background.Phenomenon   `json:"phenomenon,omitempty"`
}

// Save atomically writes a snapshot to dir/name.json (write to a temp file in
// the same directory, then rename, so a crash mid-write never corrupts the
// previous save — the teacher's SaveWorldState instead relies on SQLite's own
// transactional guarantees for this; this snapshot format has no such engine
// underneath it, so the same guarantee is built by hand at the file level).
func Save(dir, name string, store *entities.Store, graph *relations.Graph, m *worldmap.Map, phen *background.Phenomenon, now clock.MonthStamp) error {
	snap := Snapshot{
		SchemaVersion: schemaVersion,
		Now:           now,
		Map:           m,
		Mortals:       store.AllMortals(),
		Phenomenon:    phen,
	}

	for _, av := range store.All() {
		dto := avatarDTO{Avatar: *av, PlanQueue: av.PlanQueue}
		if inst, ok := av.CurrentAction.(*action.Instance); ok {
			dto.CurrentAction = &actionDTO{Name: inst.Name(), Params: map[string]any(inst.Params)}
		}
		snap.Avatars = append(snap.Avatars, dto)
	}

	for _, av := range store.All() {
		for otherID, lbl := range graph.Neighbors(av.ID) {
			if av.ID >= otherID {
				continue // emit each pair once, from the lexicographically smaller id; Load restores the reverse edge through the reciprocal label
			}
			start, _ := graph.RelationStartStamp(av.ID, otherID)
			snap.Edges = append(snap.Edges, edgeDTO{
				A: av.ID, B: otherID, Label: string(lbl),
				Start: start,
			})
		}
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("persistence: mkdir %s: %w", dir, err)
	}

	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return fmt.Errorf("persistence: marshal snapshot: %w", err)
	}

	final := filepath.Join(dir, name+".json")
	tmp := final + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("persistence: write temp snapshot: %w", err)
	}
	if err := os.Rename(tmp, final); err != nil {
		return fmt.Errorf("persistence: rename snapshot into place: %w", err)
	}

	slog.Info("persistence: snapshot saved", "path", final, "avatars", len(snap.Avatars), "mortals", len(snap.Mortals))
	return nil
}

// Load reads dir/name.json back into a fresh Store, Graph, and Map. Pass one:
// register every avatar and mortal so ids resolve. Pass two: replay relation
// edges and reconstruct each avatar's current action through reg, since an
// ActionInstance can only be built once its target (e.g. a duel opponent) is
// already registered. A file that fails to parse or carries a different
// schema version is a consistency violation (spec §7): Load returns an error
// before building anything. Within a parsed snapshot, an edge whose endpoint
// does not resolve or whose label Set rejects, and an action the registry
// does not know, are dropped with a warning while the rest loads.
func Load(dir, name string, reg *action.Registry) (*entities.Store, *relations.Graph, *worldmap.Map, *background.Phenomenon, clock.MonthStamp, error) {
	path := filepath.Join(dir, name+".json")
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, nil, nil, 0, fmt.Errorf("persistence: read %s: %w", path, err)
	}

	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, nil, nil, nil, 0, fmt.Errorf("persistence: parse %s: %w", path, err)
	}
	if snap.SchemaVersion != schemaVersion {
		return nil, nil, nil, nil, 0, fmt.Errorf("persistence: snapshot schema version %d is incompatible with %d", snap.SchemaVersion, schemaVersion)
	}

	store := entities.NewStore()
	for i := range snap.Avatars {
		av := snap.Avatars[i].Avatar
		av.PlanQueue = snap.Avatars[i].PlanQueue
		store.Register(&av, false)
	}
	for _, mo := range snap.Mortals {
		store.RegisterMortal(mo)
	}

	graph := relations.NewGraph(store)
	for _, e := range snap.Edges {
		a, b := store.Get(e.A), store.Get(e.B)
		if a == nil || b == nil {
			slog.Warn("persistence: dropping edge with unresolved endpoint on load", "a", e.A, "b", e.B)
			continue
		}
		if err := graph.SetAt(a, b, relations.Label(e.Label), e.Start); err != nil {
			slog.Warn("persistence: dropping malformed edge on load", "a", e.A, "b", e.B, "label", e.Label, "error", err)
		}
	}

	for _, dto := range snap.Avatars {
		if dto.CurrentAction == nil {
			continue
		}
		av := store.Get(dto.Avatar.ID)
		if av == nil {
			continue
		}
		act := reg.New(dto.CurrentAction.Name)
		if act == nil {
			slog.Warn("persistence: dropping unresolvable action on load", "avatar", av.ID, "action", dto.CurrentAction.Name)
			continue
		}
		av.CurrentAction = action.NewInstance(act, action.Params(dto.CurrentAction.Params))
	}

	return store, graph, snap.Map, snap.Phenomenon, snap.Now, nil
}

// Delete removes a named save file. A missing file is not an error — delete
// is idempotent from the caller's point of view (spec §6's
// POST /api/game/delete).
func Delete(dir, name string) error {
	err := os.Remove(filepath.Join(dir, name+".json"))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("persistence: delete %s: %w", name, err)
	}
	return nil
}

// List returns the names (without extension) of all saves under dir.
func List(dir string) ([]string, error) {
	entriesDir, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("persistence: list %s: %w", dir, err)
	}
	var names []string
	for _, e := range entriesDir {
		if e.IsDir() {
			continue
		}
		ext := filepath.Ext(e.Name())
		if ext != ".json" {
			continue
		}
		names = append(names, e.Name()[:len(e.Name())-len(ext)])
	}
	return names, nil
}
