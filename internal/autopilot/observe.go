// Package autopilot plays a run through the HTTP API.
// It observes the run snapshot, triages the bridge deficit, decides on one
// action deterministically, and acts via the player endpoints.
package autopilot

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/talgya/bridge-keeper/internal/engine"
	"github.com/talgya/bridge-keeper/internal/outcome"
)

// Observer fetches run state from the API.
type Observer struct {
	BaseURL    string
	HTTPClient *http.Client
}

// NewObserver creates an Observer targeting the given API base URL.
func NewObserver(baseURL string) *Observer {
	return &Observer{
		BaseURL: baseURL,
		HTTPClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// Observe returns the current run snapshot.
func (o *Observer) Observe(ctx context.Context) (*engine.Snapshot, error) {
	var snap engine.Snapshot
	if err := o.fetchJSON(ctx, "/api/v1/snapshot", &snap); err != nil {
		return nil, fmt.Errorf("fetch snapshot: %w", err)
	}
	return &snap, nil
}

// Result returns the finished run's outcome.
func (o *Observer) Result(ctx context.Context) (*outcome.Result, error) {
	var res outcome.Result
	if err := o.fetchJSON(ctx, "/api/v1/result", &res); err != nil {
		return nil, fmt.Errorf("fetch result: %w", err)
	}
	return &res, nil
}

// Ready reports whether the status endpoint answers.
func (o *Observer) Ready(ctx context.Context) bool {
	var status map[string]any
	return o.fetchJSON(ctx, "/api/v1/status", &status) == nil
}

// fetchJSON GETs a path and decodes the JSON response into target.
func (o *Observer) fetchJSON(ctx context.Context, path string, target any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, o.BaseURL+path, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	resp, err := o.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("GET %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("GET %s returned %d: %s", path, resp.StatusCode, string(body))
	}

	if err := json.NewDecoder(resp.Body).Decode(target); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}
