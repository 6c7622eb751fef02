package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/talgya/ascendant/internal/action"
	"github.com/talgya/ascendant/internal/action/builtin"
	"github.com/talgya/ascendant/internal/clock"
	"github.com/talgya/ascendant/internal/entities"
	"github.com/talgya/ascendant/internal/eventlog"
	"github.com/talgya/ascendant/internal/gathering"
	"github.com/talgya/ascendant/internal/relations"
	"github.com/talgya/ascendant/internal/simulator"
	"github.com/talgya/ascendant/internal/worldmap"
)

func newTestServer(t *testing.T, adminKey string) *Server {
	t.Helper()

	store := entities.NewStore()
	av := &entities.Avatar{ID: "a", Name: "Chen Kai", Level: 5, HP: 100, MaxHP: 100}
	store.Register(av, false)

	graph := relations.NewGraph(store)
	m := worldmap.NewMap(4, 4)

	reg := action.NewRegistry()
	builtin.Register(reg)

	log, err := eventlog.Open(filepath.Join(t.TempDir(), "events.db"))
	if err != nil {
		t.Fatalf("open event log: %v", err)
	}
	t.Cleanup(func() { log.Close() })

	sim := simulator.New(store, graph, m, log, nil, nil, gathering.NewManager(), reg, clock.NewMonthStamp(1, 1), simulator.DefaultConfig(), 1)

	return New(sim, log, reg, t.TempDir(), adminKey)
}

func TestHandleStateReturnsLivingAvatars(t *testing.T) {
	s := newTestServer(t, "")
	req := httptest.NewRequest(http.MethodGet, "/api/state", nil)
	rec := httptest.NewRecorder()

	s.Router().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var body struct {
		Avatars []struct {
			ID string `json:"id"`
		} `json:"avatars"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(body.Avatars) != 1 || body.Avatars[0].ID != "a" {
		t.Fatalf("expected one avatar 'a', got %v", body.Avatars)
	}
}

func TestHandleMapReturnsTheWorldMap(t *testing.T) {
	s := newTestServer(t, "")
	req := httptest.NewRequest(http.MethodGet, "/api/map", nil)
	rec := httptest.NewRecorder()

	s.Router().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var m worldmap.Map
	if err := json.Unmarshal(rec.Body.Bytes(), &m); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if m.Width != 4 || m.Height != 4 {
		t.Fatalf("expected a 4x4 map, got %dx%d", m.Width, m.Height)
	}
}

func TestHandleDetailAvatarNotFound(t *testing.T) {
	s := newTestServer(t, "")
	req := httptest.NewRequest(http.MethodGet, "/api/detail?type=avatar&id=nonexistent", nil)
	rec := httptest.NewRecorder()

	s.Router().ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for an unknown avatar, got %d", rec.Code)
	}
}

func TestHandleDetailUnknownTypeIsBadRequest(t *testing.T) {
	s := newTestServer(t, "")
	req := httptest.NewRequest(http.MethodGet, "/api/detail?type=nonsense", nil)
	rec := httptest.NewRecorder()

	s.Router().ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for an unknown detail type, got %d", rec.Code)
	}
}

func TestAdminEndpointsDisabledWithoutKey(t *testing.T) {
	s := newTestServer(t, "")
	req := httptest.NewRequest(http.MethodPost, "/api/control/pause", nil)
	rec := httptest.NewRecorder()

	s.Router().ServeHTTP(rec, req)

	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 with no admin key configured, got %d", rec.Code)
	}
}

func TestAdminEndpointsRejectWrongBearerToken(t *testing.T) {
	s := newTestServer(t, "secret")
	req := httptest.NewRequest(http.MethodPost, "/api/control/pause", nil)
	req.Header.Set("Authorization", "Bearer wrong")
	rec := httptest.NewRecorder()

	s.Router().ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 with a wrong bearer token, got %d", rec.Code)
	}
}

func TestAdminPauseAndResumeToggleState(t *testing.T) {
	s := newTestServer(t, "secret")

	pauseReq := httptest.NewRequest(http.MethodPost, "/api/control/pause", nil)
	pauseReq.Header.Set("Authorization", "Bearer secret")
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, pauseReq)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 on pause, got %d: %s", rec.Code, rec.Body.String())
	}
	if !s.Paused() {
		t.Fatalf("expected server paused after /api/control/pause")
	}

	resumeReq := httptest.NewRequest(http.MethodPost, "/api/control/resume", nil)
	resumeReq.Header.Set("Authorization", "Bearer secret")
	rec = httptest.NewRecorder()
	s.Router().ServeHTTP(rec, resumeReq)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 on resume, got %d", rec.Code)
	}
	if s.Paused() {
		t.Fatalf("expected server resumed after /api/control/resume")
	}
}

func TestHandleGameSaveAndLoadRoundTrip(t *testing.T) {
	s := newTestServer(t, "secret")

	saveReq := httptest.NewRequest(http.MethodPost, "/api/game/save?name=test-save", nil)
	saveReq.Header.Set("Authorization", "Bearer secret")
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, saveReq)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 on save, got %d: %s", rec.Code, rec.Body.String())
	}

	loadReq := httptest.NewRequest(http.MethodPost, "/api/game/load?name=test-save", nil)
	loadReq.Header.Set("Authorization", "Bearer secret")
	rec = httptest.NewRecorder()
	s.Router().ServeHTTP(rec, loadReq)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 on load, got %d: %s", rec.Code, rec.Body.String())
	}
	if !s.Paused() {
		t.Fatalf("expected a loaded game to start paused")
	}
	if s.Sim.Store.Get("a") == nil {
		t.Fatalf("expected avatar 'a' restored after load")
	}
}
