// Command bridgekeeper runs a Bridge Keeper game server: one run at a time,
// advanced at a fixed 60 Hz and played over the HTTP API.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/talgya/bridge-keeper/internal/api"
	"github.com/talgya/bridge-keeper/internal/config"
	"github.com/talgya/bridge-keeper/internal/engine"
	"github.com/talgya/bridge-keeper/internal/persistence"
	"github.com/talgya/bridge-keeper/internal/telemetry"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}))
	slog.SetDefault(logger)

	slog.Info("Bridge Keeper starting",
		"difficulty", cfg.Difficulty,
		"flood_timer", cfg.Difficulty.Settings().FloodTimer,
		"segments", cfg.Tuning.Bridge.TotalSegments,
	)

	// ── Database ──────────────────────────────────────────────────────
	if err := os.MkdirAll(filepath.Dir(cfg.DBPath), 0755); err != nil {
		slog.Error("failed to create data dir", "error", err)
		os.Exit(1)
	}
	db, err := persistence.Open(cfg.DBPath)
	if err != nil {
		slog.Error("failed to open database", "error", err)
		os.Exit(1)
	}
	defer db.Close()
	slog.Info("database opened", "path", cfg.DBPath)

	// ── Load or Create Run ───────────────────────────────────────────
	recorder := telemetry.NewRecorder()
	runCfg := engine.RunConfig{
		Difficulty: cfg.Difficulty,
		Seed:       cfg.Seed,
		Tuning:     cfg.Tuning,
		Metrics:    recorder,
	}

	run, err := loadOrCreate(db, runCfg)
	if err != nil {
		slog.Error("failed to prepare run", "error", err)
		os.Exit(1)
	}
	session := engine.NewSession(run)

	// ── Engine ────────────────────────────────────────────────────────
	eng := engine.NewEngine()
	eng.OnFrame = func(frame uint64, dt float64) {
		session.Tick(dt)
	}

	var lastSavedOver string
	save := func(reason string) {
		snap := session.Run().Snapshot()
		if err := db.SaveRun(snap); err != nil {
			slog.Error("save failed", "reason", reason, "id", snap.ID, "error", err)
			return
		}
		slog.Debug("run saved", "reason", reason, "id", snap.ID, "tick", snap.Tick)
	}
	eng.OnSecond = func(frame uint64) {
		r := session.Run()
		if r.State() == engine.StateGameOver && lastSavedOver != r.ID() {
			lastSavedOver = r.ID()
			if res, ok := r.Result(); ok {
				slog.Info("run finished", "id", r.ID(), "tier", res.Tier, "saved", res.VillagersSaved)
			}
			save("game over")
			return
		}
		if cfg.AutosaveSeconds > 0 && (frame/engine.FramesPerSecond)%uint64(cfg.AutosaveSeconds) == 0 {
			save("autosave")
		}
	}

	// ── HTTP API ──────────────────────────────────────────────────────
	if cfg.PlayerKey == "" {
		slog.Warn("BRIDGEKEEPER_PLAYER_KEY not set, player POST endpoints are disabled")
	}

	apiServer := &api.Server{
		Session:   session,
		Eng:       eng,
		DB:        db,
		Telemetry: recorder,
		Port:      cfg.APIPort,
		PlayerKey: cfg.PlayerKey,
	}
	apiServer.Start()

	// ── Start ─────────────────────────────────────────────────────────
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		slog.Info("received signal, shutting down", "signal", sig)
		eng.Stop()
	}()

	fmt.Printf("\nThe river is rising: %d villagers wait on the bank.\n", run.Snapshot().InitialVillagers)
	fmt.Printf("API: http://localhost:%d/api/v1/status\n", cfg.APIPort)
	fmt.Println("Starting run loop... (Ctrl+C to stop)")

	eng.Run()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := apiServer.Shutdown(ctx); err != nil {
		slog.Warn("API shutdown", "error", err)
	}

	// Final save on shutdown.
	slog.Info("final save...")
	save("shutdown")

	fmt.Println("Bridge Keeper stopped. Run saved.")
}

// loadOrCreate resumes the most recent unfinished run, or starts a new one.
func loadOrCreate(db *persistence.DB, cfg engine.RunConfig) (*engine.Run, error) {
	id, err := db.LatestRunID()
	switch {
	case errors.Is(err, persistence.ErrNotFound):
		slog.Info("no saved run found, generating a new village...")
	case err != nil:
		return nil, fmt.Errorf("latest run: %w", err)
	default:
		snap, err := db.LoadRun(id)
		if err != nil {
			return nil, fmt.Errorf("load run %s: %w", id, err)
		}
		if snap.State != engine.StateGameOver {
			run, err := engine.Restore(cfg, snap)
			if err != nil {
				return nil, err
			}
			slog.Info("resuming saved run", "id", id, "state", snap.State, "tick", snap.Tick,
				"flood_timer", fmt.Sprintf("%.1f", snap.FloodTimer))
			return run, nil
		}
		slog.Info("last run is over, generating a new village...", "previous", id)
	}

	run, err := engine.NewRun(cfg)
	if err != nil {
		return nil, err
	}
	if err := db.SaveRun(run.Snapshot()); err != nil {
		slog.Error("initial save failed", "error", err)
	}
	slog.Info("village generated", "id", run.ID(), "seed", run.Seed(), "difficulty", run.Difficulty())
	return run, nil
}
