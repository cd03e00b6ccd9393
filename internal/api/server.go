// Package api provides the HTTP API for observing and playing a run.
// GET endpoints are public (read-only observation).
// POST endpoints require the player's bearer token and are rate limited.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/talgya/bridge-keeper/internal/engine"
	"github.com/talgya/bridge-keeper/internal/persistence"
	"github.com/talgya/bridge-keeper/internal/simerr"
	"github.com/talgya/bridge-keeper/internal/telemetry"
	"github.com/talgya/bridge-keeper/internal/village"
)

// Server serves the current run over HTTP.
type Server struct {
	Session   *engine.Session
	Eng       *engine.Engine
	DB        *persistence.DB
	Telemetry *telemetry.Recorder
	Port      int
	PlayerKey string // Bearer token for POST endpoints. Empty = POST disabled.

	// ActionsPerMinute caps POST requests per client IP. Zero uses 600.
	ActionsPerMinute int

	srv *http.Server
}

// Handler builds the routed, CORS-wrapped handler.
func (s *Server) Handler() http.Handler {
	perMinute := s.ActionsPerMinute
	if perMinute <= 0 {
		perMinute = 600
	}
	actions := NewRateLimiter(perMinute, time.Minute)
	post := func(h http.HandlerFunc) http.HandlerFunc {
		return RateLimitMiddleware(actions, s.playerOnly(h))
	}

	mux := http.NewServeMux()

	// Public endpoints (GET, read-only).
	mux.HandleFunc("/api/v1/status", s.handleStatus)
	mux.HandleFunc("/api/v1/snapshot", s.handleSnapshot)
	mux.HandleFunc("/api/v1/village", s.handleVillage)
	mux.HandleFunc("/api/v1/events", s.handleEvents)
	mux.HandleFunc("/api/v1/result", s.handleResult)
	mux.HandleFunc("/api/v1/telemetry", s.handleTelemetry)
	mux.HandleFunc("/api/v1/runs", s.handleRuns)

	// Player actions (POST, require bearer token).
	mux.HandleFunc("/api/v1/start", post(s.handleStart))
	mux.HandleFunc("/api/v1/pause", post(s.handlePause))
	mux.HandleFunc("/api/v1/resume", post(s.handleResume))
	mux.HandleFunc("/api/v1/dismantle", post(s.handleDismantle))
	mux.HandleFunc("/api/v1/confirm", post(s.handleConfirm))
	mux.HandleFunc("/api/v1/cancel", post(s.handleCancel))
	mux.HandleFunc("/api/v1/move", post(s.handleMove))
	mux.HandleFunc("/api/v1/interact", post(s.handleInteract))
	mux.HandleFunc("/api/v1/reset", post(s.handleReset))
	mux.HandleFunc("/api/v1/save", post(s.handleSave))
	mux.HandleFunc("/api/v1/speed", post(s.handleSpeed))

	return corsMiddleware(mux)
}

// Start begins serving the HTTP API in a goroutine.
func (s *Server) Start() {
	addr := fmt.Sprintf(":%d", s.Port)
	s.srv = &http.Server{Addr: addr, Handler: s.Handler(), ReadHeaderTimeout: 10 * time.Second}
	slog.Info("HTTP API starting", "addr", addr, "player_auth", s.PlayerKey != "")

	go func() {
		if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("HTTP server error", "error", err)
		}
	}()
}

// Shutdown stops the server started by Start.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.srv == nil {
		return nil
	}
	return s.srv.Shutdown(ctx)
}

// corsMiddleware adds CORS headers for allowed frontend origins.
// Set CORS_ORIGINS to a comma-separated list of extra allowed origins.
// Localhost dev servers are always allowed.
func corsMiddleware(next http.Handler) http.Handler {
	allowedOrigins := map[string]bool{
		"http://localhost:5173": true,
		"http://localhost:3000": true,
	}
	if env := os.Getenv("CORS_ORIGINS"); env != "" {
		for _, origin := range strings.Split(env, ",") {
			origin = strings.TrimSpace(origin)
			if origin != "" {
				allowedOrigins[origin] = true
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

// checkBearerToken returns true if the request carries the player token.
func (s *Server) checkBearerToken(r *http.Request) bool {
	auth := r.Header.Get("Authorization")
	return strings.HasPrefix(auth, "Bearer ") && strings.TrimPrefix(auth, "Bearer ") == s.PlayerKey
}

// playerOnly restricts a handler to authenticated POST requests.
func (s *Server) playerOnly(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		if s.PlayerKey == "" {
			http.Error(w, "actions disabled (no BRIDGEKEEPER_PLAYER_KEY set)", http.StatusForbidden)
			return
		}
		if !s.checkBearerToken(r) {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		next(w, r)
	}
}

// writeError maps simulation errors to status codes. Rejected operations
// leave the run untouched, so they are client errors.
func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, simerr.ErrOutOfRange):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, simerr.ErrInvalidState):
		http.Error(w, err.Error(), http.StatusConflict)
	case errors.Is(err, persistence.ErrNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	default:
		slog.Error("request failed", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	run := s.Session.Run()
	snap := run.Snapshot()

	status := map[string]any{
		"name":              "Bridge Keeper",
		"run_id":            snap.ID,
		"seed":              snap.Seed,
		"difficulty":        snap.Difficulty,
		"state":             snap.State,
		"tick":              snap.Tick,
		"elapsed":           snap.Elapsed,
		"flood_timer":       snap.FloodTimer,
		"flood_level":       snap.FloodLevel,
		"standing":          snap.Standing,
		"standing_label":    snap.StandingLabel,
		"resources":         snap.Resources,
		"bridge_progress":   snap.BridgeProgress,
		"segments_built":    len(snap.Segments),
		"initial_villagers": snap.InitialVillagers,
		"current_villagers": snap.CurrentVillagers,
		"day_phase":         snap.DayPhase,
		"pending_element":   snap.PendingElement,
	}
	if snap.ActiveEvent != nil {
		status["active_event"] = snap.ActiveEvent.Name
	}
	if s.Eng != nil {
		status["speed"] = s.Eng.Speed()
		status["running"] = s.Eng.Running()
		status["run_time"] = engine.RunTime(s.Eng.Frame())
	}
	writeJSON(w, status)
}

func (s *Server) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.Session.Run().Snapshot())
}

func (s *Server) handleVillage(w http.ResponseWriter, r *http.Request) {
	snap := s.Session.Run().Snapshot()

	elements := snap.Elements
	if kind := r.URL.Query().Get("kind"); kind != "" {
		k, err := village.ParseKind(kind)
		if err != nil {
			writeError(w, err)
			return
		}
		filtered := make([]village.Element, 0, len(elements))
		for _, e := range elements {
			if e.Kind == k {
				filtered = append(filtered, e)
			}
		}
		elements = filtered
	}
	if r.URL.Query().Get("standing") == "true" {
		filtered := make([]village.Element, 0, len(elements))
		for _, e := range elements {
			if !e.Dismantled {
				filtered = append(filtered, e)
			}
		}
		elements = filtered
	}

	writeJSON(w, map[string]any{
		"elements":   elements,
		"total":      len(snap.Elements),
		"remaining":  snap.RemainingElements,
		"salvaged":   snap.Salvaged,
		"flood_line": snap.FloodLine,
	})
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if l := r.URL.Query().Get("limit"); l != "" {
		if n, err := strconv.Atoi(l); err == nil && n > 0 && n <= engine.MaxLogEvents {
			limit = n
		}
	}

	events := s.Session.Run().Events(0)

	if category := r.URL.Query().Get("category"); category != "" {
		var filtered []engine.Event
		for _, e := range events {
			if e.Category == category {
				filtered = append(filtered, e)
			}
		}
		events = filtered
	}

	start := 0
	if len(events) > limit {
		start = len(events) - limit
	}
	out := events[start:]
	if out == nil {
		out = []engine.Event{}
	}
	writeJSON(w, out)
}

func (s *Server) handleResult(w http.ResponseWriter, r *http.Request) {
	res, ok := s.Session.Run().Result()
	if !ok {
		http.Error(w, "run not finished", http.StatusConflict)
		return
	}
	writeJSON(w, res)
}

func (s *Server) handleTelemetry(w http.ResponseWriter, r *http.Request) {
	if s.Telemetry == nil {
		http.Error(w, "telemetry not available", http.StatusServiceUnavailable)
		return
	}
	writeJSON(w, s.Telemetry.Snapshot())
}

func (s *Server) handleRuns(w http.ResponseWriter, r *http.Request) {
	if s.DB == nil {
		http.Error(w, "database not available", http.StatusServiceUnavailable)
		return
	}
	limit := 20
	if l := r.URL.Query().Get("limit"); l != "" {
		if n, err := strconv.Atoi(l); err == nil && n > 0 && n <= 100 {
			limit = n
		}
	}
	runs, err := s.DB.ListRuns(limit)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, runs)
}

func (s *Server) handleStart(w http.ResponseWriter, r *http.Request) {
	s.transition(w, (*engine.Run).Start)
}

func (s *Server) handlePause(w http.ResponseWriter, r *http.Request) {
	s.transition(w, (*engine.Run).Pause)
}

func (s *Server) handleResume(w http.ResponseWriter, r *http.Request) {
	s.transition(w, (*engine.Run).Resume)
}

func (s *Server) transition(w http.ResponseWriter, op func(*engine.Run) error) {
	run := s.Session.Run()
	if err := op(run); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, map[string]any{"state": run.State()})
}

func (s *Server) handleDismantle(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ElementID *int `json:"element_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	if req.ElementID == nil {
		http.Error(w, "element_id is required", http.StatusBadRequest)
		return
	}

	res, err := s.Session.Run().RequestDismantle(*req.ElementID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, res)
}

func (s *Server) handleConfirm(w http.ResponseWriter, r *http.Request) {
	res, err := s.Session.Run().ConfirmDismantle()
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, res)
}

func (s *Server) handleCancel(w http.ResponseWriter, r *http.Request) {
	if err := s.Session.Run().CancelDismantle(); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, map[string]any{"message": "dismantle cancelled"})
}

func (s *Server) handleMove(w http.ResponseWriter, r *http.Request) {
	var req struct {
		DX *int     `json:"dx"`
		DY *int     `json:"dy"`
		X  *float64 `json:"x"`
		Y  *float64 `json:"y"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}

	run := s.Session.Run()
	var err error
	switch {
	case req.X != nil && req.Y != nil:
		err = run.MoveTo(*req.X, *req.Y)
	case req.DX != nil || req.DY != nil:
		var dx, dy int
		if req.DX != nil {
			dx = *req.DX
		}
		if req.DY != nil {
			dy = *req.DY
		}
		err = run.Move(dx, dy)
	default:
		http.Error(w, "need {dx, dy} or {x, y}", http.StatusBadRequest)
		return
	}
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, run.Snapshot().Keeper)
}

func (s *Server) handleInteract(w http.ResponseWriter, r *http.Request) {
	res, err := s.Session.Run().Interact()
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, res)
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	prev := s.Session.Run()
	if s.DB != nil {
		if err := s.DB.SaveRun(prev.Snapshot()); err != nil {
			slog.Error("save before reset failed", "id", prev.ID(), "error", err)
		}
	}

	next, err := s.Session.Reset()
	if err != nil {
		writeError(w, err)
		return
	}
	slog.Info("run reset", "previous", prev.ID(), "id", next.ID(), "seed", next.Seed())
	writeJSON(w, map[string]any{
		"run_id":     next.ID(),
		"seed":       next.Seed(),
		"difficulty": next.Difficulty(),
		"state":      next.State(),
	})
}

func (s *Server) handleSave(w http.ResponseWriter, r *http.Request) {
	if s.DB == nil {
		http.Error(w, "database not available", http.StatusServiceUnavailable)
		return
	}

	snap := s.Session.Run().Snapshot()
	if err := s.DB.SaveRun(snap); err != nil {
		slog.Error("save failed", "id", snap.ID, "error", err)
		http.Error(w, "save failed", http.StatusInternalServerError)
		return
	}

	writeJSON(w, map[string]any{
		"run_id":  snap.ID,
		"tick":    snap.Tick,
		"message": "run saved",
	})
}

func (s *Server) handleSpeed(w http.ResponseWriter, r *http.Request) {
	if s.Eng == nil {
		http.Error(w, "engine not available", http.StatusServiceUnavailable)
		return
	}
	var req struct {
		Speed float64 `json:"speed"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	if req.Speed < 0 || req.Speed > 10 {
		http.Error(w, "speed must be 0-10", http.StatusBadRequest)
		return
	}
	s.Eng.SetSpeed(req.Speed)
	slog.Info("speed changed", "speed", req.Speed)

	writeJSON(w, map[string]float64{"speed": s.Eng.Speed()})
}

func writeJSON(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.Encode(data)
}
