package autopilot

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// ActResult is the decoded response body of a player action.
type ActResult map[string]any

// Actor executes decisions via the player API.
type Actor struct {
	BaseURL    string
	PlayerKey  string
	HTTPClient *http.Client
}

// NewActor creates an Actor targeting the given API base URL with player auth.
func NewActor(baseURL, playerKey string) *Actor {
	return &Actor{
		BaseURL:   baseURL,
		PlayerKey: playerKey,
		HTTPClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// Act sends the decision to its endpoint. None and wait are no-ops.
func (a *Actor) Act(ctx context.Context, d *Decision) (ActResult, error) {
	var body any
	switch d.Action {
	case ActionNone, ActionWait:
		return nil, nil
	case ActionDismantle:
		body = map[string]int{"element_id": d.ElementID}
	case ActionStart, ActionResume, ActionConfirm, ActionCancel:
	default:
		return nil, fmt.Errorf("unknown action %q", d.Action)
	}
	return a.post(ctx, "/api/v1/"+d.Action, body)
}

// Save asks the server to persist the current run.
func (a *Actor) Save(ctx context.Context) (ActResult, error) {
	return a.post(ctx, "/api/v1/save", nil)
}

func (a *Actor) post(ctx context.Context, path string, payload any) (ActResult, error) {
	var buf bytes.Buffer
	if payload != nil {
		if err := json.NewEncoder(&buf).Encode(payload); err != nil {
			return nil, fmt.Errorf("marshal %s: %w", path, err)
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.BaseURL+path, &buf)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+a.PlayerKey)

	resp, err := a.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("POST %s: %w", path, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, &ActionError{Path: path, Status: resp.StatusCode, Body: string(bytes.TrimSpace(respBody))}
	}

	var result ActResult
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return result, nil
}

// ActionError is a non-200 answer from the server.
type ActionError struct {
	Path   string
	Status int
	Body   string
}

func (e *ActionError) Error() string {
	return fmt.Sprintf("%s failed (%d): %s", e.Path, e.Status, e.Body)
}

// Rejected reports whether the server refused the action as invalid for the
// current run state, which the next observation will resolve.
func (e *ActionError) Rejected() bool {
	return e.Status == http.StatusConflict || e.Status == http.StatusBadRequest
}
