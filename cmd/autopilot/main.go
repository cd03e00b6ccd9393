// Command autopilot plays the current Bridge Keeper run through the HTTP API
// and prints an end-of-run report.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/talgya/bridge-keeper/internal/autopilot"
	"github.com/talgya/bridge-keeper/internal/config"
)

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: config.ParseLogLevel(os.Getenv("AUTOPILOT_LOG_LEVEL")),
	}))
	slog.SetDefault(logger)

	// Configuration from environment.
	apiURL := config.EnvOrDefault("BRIDGEKEEPER_API_URL", "http://localhost:8080")
	playerKey := os.Getenv("BRIDGEKEEPER_PLAYER_KEY")
	intervalMs := config.EnvIntOrDefault("AUTOPILOT_INTERVAL_MS", 250)
	memoryPath := os.Getenv("AUTOPILOT_MEMORY")
	policy := autopilot.Policy{SpareHomes: os.Getenv("AUTOPILOT_SPARE_HOMES") == "true"}

	if playerKey == "" {
		slog.Error("BRIDGEKEEPER_PLAYER_KEY is required")
		os.Exit(1)
	}

	interval := time.Duration(intervalMs) * time.Millisecond
	slog.Info("autopilot starting",
		"api_url", apiURL,
		"interval", interval,
		"spare_homes", policy.SpareHomes,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pilot := autopilot.NewPilot(apiURL, playerKey, policy)
	if memoryPath != "" {
		pilot.Memory = autopilot.LoadMemory(memoryPath)
	}

	slog.Info("waiting for bridgekeeper API...")
	if err := waitForAPI(ctx, pilot.Observer); err != nil {
		slog.Error("API not ready", "error", err)
		os.Exit(1)
	}

	snap, res, err := pilot.Play(ctx, interval)
	if memoryPath != "" {
		if err := pilot.Memory.Save(memoryPath); err != nil {
			slog.Error("save memory failed", "error", err)
		}
	}
	if err != nil {
		slog.Error("autopilot stopped", "error", err)
		if snap == nil {
			os.Exit(1)
		}
	}

	if _, err := pilot.Actor.Save(context.Background()); err != nil {
		slog.Warn("final save request failed", "error", err)
	}

	fmt.Println(autopilot.Report(snap, res, pilot.Memory))
}

// waitForAPI polls the status endpoint with exponential backoff until it
// responds. Gives up after two minutes.
func waitForAPI(ctx context.Context, o *autopilot.Observer) error {
	backoff := 500 * time.Millisecond
	maxBackoff := 10 * time.Second
	deadline := time.Now().Add(2 * time.Minute)

	for {
		if o.Ready(ctx) {
			slog.Info("bridgekeeper API is ready")
			return nil
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("API at %s did not become ready within 2 minutes", o.BaseURL)
		}
		slog.Info("bridgekeeper not ready, retrying...", "backoff", backoff)
		select {
		case <-time.After(backoff):
		case <-ctx.Done():
			return ctx.Err()
		}
		backoff *= 2
		if backoff > maxBackoff {
			backoff = maxBackoff
		}
	}
}
