// Package api serves the HTTP/WS presentation layer (spec §6): read-only GET
// endpoints for state/map/events/detail, bearer-gated POST control and game
// lifecycle endpoints, and a WS feed pushing periodic tick frames. Routing is
// grounded on AKJUS-bsc-erigon's chi mux usage; the admin bearer-token gate
// and CORS/rate-limit shape are carried over from the teacher's
// internal/api/server.go adminOnly middleware, adapted to chi middleware.
package api

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/time/rate"

	"github.com/talgya/ascendant/internal/action"
	"github.com/talgya/ascendant/internal/entities"
	"github.com/talgya/ascendant/internal/eventlog"
	"github.com/talgya/ascendant/internal/persistence"
	"github.com/talgya/ascendant/internal/simulator"
	"github.com/talgya/ascendant/internal/worldmap"
)

// Server serves the control-and-observation surface in front of a running
// Simulator.
type Server struct {
	Sim      *simulator.Simulator
	Log      *eventlog.Store
	Registry *action.Registry
	SavesDir string
	AdminKey string // Bearer token for POST endpoints; empty disables them.

	pausedMu sync.RWMutex
	paused   bool

	hub *hub
}

// New builds a Server around a running Simulator.
func New(sim *simulator.Simulator, log *eventlog.Store, reg *action.Registry, savesDir, adminKey string) *Server {
	return &Server{
		Sim:      sim,
		Log:      log,
		Registry: reg,
		SavesDir: savesDir,
		AdminKey: adminKey,
		hub:      newHub(),
	}
}

// Paused reports whether ticking is currently paused; RunForever polls this.
func (s *Server) Paused() bool {
	s.pausedMu.RLock()
	defer s.pausedMu.RUnlock()
	return s.paused
}

// BroadcastTick is the onTick callback RunForever should be given: it frames
// the tick's events plus avatar diffs and pushes them to every WS client.
func (s *Server) BroadcastTick(evs []eventlog.Event, stepErr error) {
	if stepErr != nil {
		s.hub.broadcast(frame{Type: "error", Error: stepErr.Error()})
		return
	}
	s.hub.broadcast(s.tickFrame(evs))
}

// Router builds the chi mux: public GETs, the WS upgrade endpoint, and
// bearer-gated admin POSTs, wrapped in request logging, recovery, and a
// global rate limiter (grounded on the teacher's RateLimitMiddleware, backed
// here by golang.org/x/time/rate instead of a hand-rolled bucket).
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(corsMiddleware)
	r.Use(rateLimitMiddleware(rate.NewLimiter(rate.Limit(20), 40)))

	r.Get("/api/state", s.handleState)
	r.Get("/api/map", s.handleMap)
	r.Get("/api/events", s.handleEvents)
	r.Get("/api/detail", s.handleDetail)
	r.Get("/ws", s.handleWS)

	r.Group(func(r chi.Router) {
		r.Use(s.adminOnly)
		r.Post("/api/control/pause", s.handlePause)
		r.Post("/api/control/resume", s.handleResume)
		r.Post("/api/control/reset", s.handleReset)
		r.Post("/api/control/reinit", s.handleReinit)
		r.Post("/api/control/shutdown", s.handleShutdown)

		r.Post("/api/game/start", s.handleGameStart)
		r.Post("/api/game/save", s.handleGameSave)
		r.Post("/api/game/load", s.handleGameLoad)
		r.Post("/api/game/delete", s.handleGameDelete)
	})

	return r
}

func (s *Server) adminOnly(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.AdminKey == "" {
			http.Error(w, "admin endpoints disabled (no admin key configured)", http.StatusForbidden)
			return
		}
		auth := r.Header.Get("Authorization")
		if !strings.HasPrefix(auth, "Bearer ") || strings.TrimPrefix(auth, "Bearer ") != s.AdminKey {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func corsMiddleware(next http.Handler) http.Handler {
	allowedOrigins := map[string]bool{
		"http://localhost:5173": true,
		"http://localhost:3000": true,
	}
	if env := os.Getenv("ASCENDANT_CORS_ORIGINS"); env != "" {
		for _, o := range strings.Split(env, ",") {
			if o = strings.TrimSpace(o); o != "" {
				allowedOrigins[o] = true
			}
		}
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if allowedOrigins[origin] {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		}
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func rateLimitMiddleware(limiter *rate.Limiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !limiter.Allow() {
				w.Header().Set("Retry-After", "1")
				http.Error(w, "rate limit exceeded", http.StatusTooManyRequests)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// --- GET /api/state ---

type avatarSummary struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Nickname string `json:"nickname,omitempty"`
	Level    int    `json:"level"`
	Realm    string `json:"realm"`
	Position worldmap.Coord `json:"position"`
	Action   string `json:"action,omitempty"`
	IsDead   bool   `json:"is_dead"`
}

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	living := s.Sim.Store.Living()
	summaries := make([]avatarSummary, 0, len(living))
	for _, av := range living {
		summaries = append(summaries, summarize(av))
	}

	recent, _ := s.Log.Recent(20)

	writeJSON(w, map[string]any{
		"year":       s.Sim.Now.Year(),
		"month":      s.Sim.Now.Month(),
		"paused":     s.Paused(),
		"avatars":    summaries,
		"phenomenon": s.Sim.Phenomenon,
		"recent_events": recent,
		"llm_unhealthy": s.Sim.LLMUnhealthy(),
	})
}

func summarize(av *entities.Avatar) avatarSummary {
	sum := avatarSummary{
		ID: av.ID, Name: av.Name, Nickname: av.Nickname,
		Level: av.Level, Realm: av.Realm().String(),
		Position: av.Position, IsDead: av.IsDead,
	}
	if av.CurrentAction != nil {
		sum.Action = av.CurrentAction.Name()
	}
	return sum
}

// --- GET /api/map ---

func (s *Server) handleMap(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.Sim.Map)
}

// --- GET /api/events ---

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit := 50
	if v, err := strconv.Atoi(q.Get("limit")); err == nil && v > 0 {
		limit = v
	}

	var cursorStamp, cursorID int64
	if c := q.Get("cursor"); c != "" {
		parts := strings.SplitN(c, ":", 2)
		if len(parts) == 2 {
			cursorStamp, _ = strconv.ParseInt(parts[0], 10, 64)
			cursorID, _ = strconv.ParseInt(parts[1], 10, 64)
		}
	} else {
		cursorStamp = int64(s.Sim.Now) + 1 // events are stamped strictly before "now"
	}

	majorOnly := q.Get("major_only") == "true"
	nonMajorOnly := q.Get("non_major_only") == "true"

	a1, a2 := q.Get("avatar_id"), q.Get("avatar_id_1")
	if a2 == "" {
		a2 = q.Get("avatar_id_2")
	}

	var (
		evs                  []eventlog.Event
		nextStamp, nextID    int64
		err                  error
	)
	switch {
	case a1 != "" && a2 != "":
		evs, nextStamp, nextID, err = s.Log.BetweenParticipants(a1, a2, cursorStamp, cursorID, limit, majorOnly, nonMajorOnly)
	case a1 != "":
		evs, nextStamp, nextID, err = s.Log.ByParticipant(a1, cursorStamp, cursorID, limit, majorOnly, nonMajorOnly)
	default:
		evs, err = s.Log.Recent(limit)
	}
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	var next string
	if len(evs) > 0 {
		next = fmt.Sprintf("%d:%d", nextStamp, nextID)
	}
	writeJSON(w, map[string]any{"events": evs, "next_cursor": next})
}

// --- GET /api/detail ---

func (s *Server) handleDetail(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	switch q.Get("type") {
	case "avatar":
		av := s.Sim.Store.Get(q.Get("id"))
		if av == nil {
			http.Error(w, "avatar not found", http.StatusNotFound)
			return
		}
		writeJSON(w, av)
	case "region":
		region, ok := s.Sim.Map.Regions[q.Get("id")]
		if !ok {
			http.Error(w, "region not found", http.StatusNotFound)
			return
		}
		writeJSON(w, region)
	case "sect":
		sectID := q.Get("id")
		var members []avatarSummary
		for _, av := range s.Sim.Store.All() {
			if av.SectID == sectID {
				members = append(members, summarize(av))
			}
		}
		writeJSON(w, map[string]any{"sect_id": sectID, "members": members})
	default:
		http.Error(w, "unknown detail type", http.StatusBadRequest)
	}
}

// --- POST /api/control/* ---

func (s *Server) handlePause(w http.ResponseWriter, r *http.Request) {
	s.pausedMu.Lock()
	s.paused = true
	s.pausedMu.Unlock()
	writeJSON(w, map[string]any{"paused": true})
}

func (s *Server) handleResume(w http.ResponseWriter, r *http.Request) {
	s.pausedMu.Lock()
	s.paused = false
	s.pausedMu.Unlock()
	writeJSON(w, map[string]any{"paused": false})
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	s.pausedMu.Lock()
	s.paused = true
	s.pausedMu.Unlock()
	for _, av := range s.Sim.Store.All() {
		s.Sim.Store.Remove(av.ID)
	}
	writeJSON(w, map[string]any{"reset": true})
}

func (s *Server) handleReinit(w http.ResponseWriter, r *http.Request) {
	slog.Info("api: reinit requested")
	writeJSON(w, map[string]any{"reinit": "not implemented: restart the process with a new seed"})
}

func (s *Server) handleShutdown(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]any{"shutdown": true})
	go func() {
		slog.Warn("api: shutdown requested over admin endpoint")
		os.Exit(0)
	}()
}

// --- POST /api/game/* ---

func (s *Server) handleGameStart(w http.ResponseWriter, r *http.Request) {
	s.pausedMu.Lock()
	s.paused = false
	s.pausedMu.Unlock()
	writeJSON(w, map[string]any{"started": true})
}

func (s *Server) handleGameSave(w http.ResponseWriter, r *http.Request) {
	name := r.URL.Query().Get("name")
	if name == "" {
		name = "autosave"
	}
	if err := persistence.Save(s.SavesDir, name, s.Sim.Store, s.Sim.Graph, s.Sim.Map, s.Sim.Phenomenon, s.Sim.Now); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, map[string]any{"saved": name})
}

func (s *Server) handleGameLoad(w http.ResponseWriter, r *http.Request) {
	name := r.URL.Query().Get("name")
	if name == "" {
		http.Error(w, "missing name", http.StatusBadRequest)
		return
	}
	store, graph, m, phen, now, err := persistence.Load(s.SavesDir, name, s.Registry)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	s.pausedMu.Lock()
	s.paused = true
	s.pausedMu.Unlock()

	s.Sim.Store = store
	s.Sim.Graph = graph
	s.Sim.Map = m
	s.Sim.Phenomenon = phen
	s.Sim.Now = now
	writeJSON(w, map[string]any{"loaded": name})
}

func (s *Server) handleGameDelete(w http.ResponseWriter, r *http.Request) {
	name := r.URL.Query().Get("name")
	if err := persistence.Delete(s.SavesDir, name); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, map[string]any{"deleted": name})
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("api: encode response", "error", err)
	}
}
