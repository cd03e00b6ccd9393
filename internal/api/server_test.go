package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/talgya/bridge-keeper/internal/config"
	"github.com/talgya/bridge-keeper/internal/economy"
	"github.com/talgya/bridge-keeper/internal/engine"
	"github.com/talgya/bridge-keeper/internal/persistence"
	"github.com/talgya/bridge-keeper/internal/telemetry"
	"github.com/talgya/bridge-keeper/internal/village"
)

const testKey = "secret"

type harness struct {
	srv     *Server
	handler http.Handler
	clock   *engine.FakeClock
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	clock := engine.NewFakeClock(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	rec := telemetry.NewRecorder()
	run, err := engine.NewRun(engine.RunConfig{
		Difficulty: config.DifficultyNormal,
		Seed:       11,
		Clock:      clock,
		Metrics:    rec,
	})
	require.NoError(t, err)

	srv := &Server{Session: engine.NewSession(run), Telemetry: rec, PlayerKey: testKey}
	return &harness{srv: srv, handler: srv.Handler(), clock: clock}
}

func (h *harness) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if method == http.MethodPost {
		req.Header.Set("Authorization", "Bearer "+testKey)
	}
	rec := httptest.NewRecorder()
	h.handler.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&out))
	return out
}

func (h *harness) find(t *testing.T, match func(village.Element) bool) village.Element {
	t.Helper()
	for _, e := range h.srv.Session.Run().Snapshot().Elements {
		if match(e) {
			return e
		}
	}
	t.Fatal("no matching element")
	return village.Element{}
}

func TestStatusIsPublic(t *testing.T) {
	h := newHarness(t)
	rec := h.do(t, http.MethodGet, "/api/v1/status", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	status := decode[map[string]any](t, rec)
	assert.Equal(t, "menu", status["state"])
	assert.Equal(t, float64(100), status["standing"])
	assert.Equal(t, float64(300), status["flood_timer"])
}

func TestActionsRequireToken(t *testing.T) {
	h := newHarness(t)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/start", nil)
	rec := httptest.NewRecorder()
	h.handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/api/v1/start", nil)
	rec = httptest.NewRecorder()
	h.handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)

	h.srv.PlayerKey = ""
	rec = h.do(t, http.MethodPost, "/api/v1/start", nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, engine.StateMenu, h.srv.Session.Run().State())
}

func TestDismantleFlow(t *testing.T) {
	h := newHarness(t)

	rec := h.do(t, http.MethodPost, "/api/v1/dismantle", map[string]int{"element_id": 0})
	assert.Equal(t, http.StatusConflict, rec.Code, "dismantle before start")

	require.Equal(t, http.StatusOK, h.do(t, http.MethodPost, "/api/v1/start", nil).Code)

	tree := h.find(t, func(e village.Element) bool { return e.Kind == village.KindTree })
	rec = h.do(t, http.MethodPost, "/api/v1/dismantle", map[string]int{"element_id": tree.ID})
	require.Equal(t, http.StatusOK, rec.Code)
	res := decode[engine.DismantleResult](t, rec)
	assert.False(t, res.RequiresConfirmation)
	assert.Equal(t, tree.Yield, res.Granted)

	rec = h.do(t, http.MethodPost, "/api/v1/dismantle", map[string]int{"element_id": tree.ID})
	assert.Equal(t, http.StatusConflict, rec.Code, "already dismantled")

	rec = h.do(t, http.MethodPost, "/api/v1/dismantle", map[string]int{"element_id": 999})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = h.do(t, http.MethodPost, "/api/v1/dismantle", map[string]any{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	house := h.find(t, func(e village.Element) bool { return e.Kind == village.KindHouse && e.Population > 0 })
	rec = h.do(t, http.MethodPost, "/api/v1/dismantle", map[string]int{"element_id": house.ID})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, decode[engine.DismantleResult](t, rec).RequiresConfirmation)

	rec = h.do(t, http.MethodPost, "/api/v1/pause", nil)
	assert.Equal(t, http.StatusConflict, rec.Code, "pause while pending")

	rec = h.do(t, http.MethodPost, "/api/v1/confirm", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	res = decode[engine.DismantleResult](t, rec)
	require.NotNil(t, res.Choice)
	assert.Equal(t, house.Population, res.Choice.PopulationAffected)

	rec = h.do(t, http.MethodPost, "/api/v1/cancel", nil)
	assert.Equal(t, http.StatusConflict, rec.Code)

	snap := h.srv.Session.Run().Snapshot()
	assert.Equal(t, snap.InitialVillagers-house.Population, snap.CurrentVillagers)

	tel := h.srv.Telemetry.Snapshot()
	assert.Equal(t, uint64(2), tel.Dismantles)
	assert.Equal(t, uint64(1), tel.Confirmations)
}

func TestMove(t *testing.T) {
	h := newHarness(t)
	require.Equal(t, http.StatusOK, h.do(t, http.MethodPost, "/api/v1/start", nil).Code)

	rec := h.do(t, http.MethodPost, "/api/v1/move", map[string]int{"dx": 1})
	require.Equal(t, http.StatusOK, rec.Code)
	k := decode[map[string]any](t, rec)
	assert.Equal(t, float64(332), k["target_x"])

	rec = h.do(t, http.MethodPost, "/api/v1/move", map[string]float64{"x": 100, "y": 200})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = h.do(t, http.MethodPost, "/api/v1/move", map[string]float64{"x": 700, "y": 200})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = h.do(t, http.MethodPost, "/api/v1/move", map[string]any{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestInteractWithNothingInReach(t *testing.T) {
	h := newHarness(t)
	require.Equal(t, http.StatusOK, h.do(t, http.MethodPost, "/api/v1/start", nil).Code)
	// Top-right corner of the village side is clear of elements.
	require.Equal(t, http.StatusOK, h.do(t, http.MethodPost, "/api/v1/move", map[string]float64{"x": 580, "y": 20}).Code)
	for i := 0; i < 4*60; i++ {
		h.srv.Session.Tick(1.0 / 60)
	}

	rec := h.do(t, http.MethodPost, "/api/v1/interact", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestResultAfterFlood(t *testing.T) {
	h := newHarness(t)

	rec := h.do(t, http.MethodGet, "/api/v1/result", nil)
	assert.Equal(t, http.StatusConflict, rec.Code)

	require.Equal(t, http.StatusOK, h.do(t, http.MethodPost, "/api/v1/start", nil).Code)
	h.srv.Session.Tick(301)

	rec = h.do(t, http.MethodGet, "/api/v1/result", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	res := decode[map[string]any](t, rec)
	assert.Equal(t, "flood", res["tier"])
	assert.Equal(t, false, res["escaped"])

	rec = h.do(t, http.MethodGet, "/api/v1/events?category=run", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	events := decode[[]engine.Event](t, rec)
	require.NotEmpty(t, events)
	assert.Contains(t, events[len(events)-1].Description, "flood")
}

func TestVillageFilters(t *testing.T) {
	h := newHarness(t)

	rec := h.do(t, http.MethodGet, "/api/v1/village?kind=house", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Elements []village.Element `json:"elements"`
		Total    int               `json:"total"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Len(t, body.Elements, 15)
	assert.Equal(t, 50, body.Total)

	rec = h.do(t, http.MethodGet, "/api/v1/village?kind=castle", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestVillageCountsSalvage(t *testing.T) {
	h := newHarness(t)
	require.Equal(t, http.StatusOK, h.do(t, http.MethodPost, "/api/v1/start", nil).Code)
	tree := h.find(t, func(e village.Element) bool { return e.Kind == village.KindTree })
	rec := h.do(t, http.MethodPost, "/api/v1/dismantle", map[string]int{"element_id": tree.ID})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = h.do(t, http.MethodGet, "/api/v1/village?standing=true", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Elements  []village.Element `json:"elements"`
		Remaining int               `json:"remaining"`
		Salvaged  economy.Materials `json:"salvaged"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, 49, body.Remaining)
	assert.Len(t, body.Elements, 49)
	assert.Equal(t, tree.Yield, body.Salvaged)
}

func TestResetAndSave(t *testing.T) {
	h := newHarness(t)
	db, err := persistence.Open(filepath.Join(t.TempDir(), "api.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	h.srv.DB = db

	first := h.srv.Session.Run().ID()
	rec := h.do(t, http.MethodPost, "/api/v1/save", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = h.do(t, http.MethodPost, "/api/v1/reset", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	out := decode[map[string]any](t, rec)
	assert.NotEqual(t, first, out["run_id"])
	assert.Equal(t, float64(12), out["seed"])
	assert.Equal(t, "menu", out["state"])

	rec = h.do(t, http.MethodGet, "/api/v1/runs", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	runs := decode[[]persistence.RunSummary](t, rec)
	require.Len(t, runs, 1)
	assert.Equal(t, first, runs[0].ID)
}

func TestSaveWithoutDatabase(t *testing.T) {
	h := newHarness(t)
	rec := h.do(t, http.MethodPost, "/api/v1/save", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestRateLimit(t *testing.T) {
	h := newHarness(t)
	h.srv.ActionsPerMinute = 2
	h.handler = h.srv.Handler()

	assert.Equal(t, http.StatusOK, h.do(t, http.MethodPost, "/api/v1/start", nil).Code)
	assert.Equal(t, http.StatusOK, h.do(t, http.MethodPost, "/api/v1/pause", nil).Code)
	rec := h.do(t, http.MethodPost, "/api/v1/resume", nil)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))
}

func TestRateLimiterWindow(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	rl := NewRateLimiter(1, time.Minute)
	rl.now = func() time.Time { return now }

	assert.True(t, rl.Allow("1.2.3.4"))
	assert.False(t, rl.Allow("1.2.3.4"))
	assert.True(t, rl.Allow("5.6.7.8"))
	assert.Equal(t, 61, rl.RetryAfter("1.2.3.4"))

	now = now.Add(time.Minute)
	assert.True(t, rl.Allow("1.2.3.4"))
}

func TestClientIP(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.RemoteAddr = "10.0.0.1:5555"
	assert.Equal(t, "10.0.0.1", clientIP(r))

	r.Header.Set("X-Forwarded-For", "203.0.113.9, 10.0.0.1")
	assert.Equal(t, "203.0.113.9", clientIP(r))
}

func TestCORSPreflight(t *testing.T) {
	h := newHarness(t)
	req := httptest.NewRequest(http.MethodOptions, "/api/v1/start", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	rec := httptest.NewRecorder()
	h.handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "http://localhost:5173", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestSpeedAndStatusWhileEngineRuns(t *testing.T) {
	h := newHarness(t)
	eng := engine.NewEngine()
	eng.Interval = time.Millisecond
	eng.OnFrame = func(frame uint64, dt float64) { h.srv.Session.Tick(dt) }
	h.srv.Eng = eng
	require.Equal(t, http.StatusOK, h.do(t, http.MethodPost, "/api/v1/start", nil).Code)

	done := make(chan struct{})
	go func() {
		eng.Run()
		close(done)
	}()
	t.Cleanup(func() {
		eng.Stop()
		<-done
	})
	require.Eventually(t, eng.Running, time.Second, time.Millisecond)

	for i := 0; i < 20; i++ {
		speed := float64(i%4 + 1)
		rec := h.do(t, http.MethodPost, "/api/v1/speed", map[string]float64{"speed": speed})
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, speed, decode[map[string]float64](t, rec)["speed"])

		rec = h.do(t, http.MethodGet, "/api/v1/status", nil)
		require.Equal(t, http.StatusOK, rec.Code)
		status := decode[map[string]any](t, rec)
		assert.Contains(t, status, "run_time")
		assert.Contains(t, status, "speed")
	}

	rec := h.do(t, http.MethodPost, "/api/v1/speed", map[string]float64{"speed": 11})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, 4.0, eng.Speed())
}
