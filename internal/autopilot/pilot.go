package autopilot

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/talgya/bridge-keeper/internal/engine"
	"github.com/talgya/bridge-keeper/internal/outcome"
)

// Pilot runs observe → triage → decide → act cycles against one server.
type Pilot struct {
	Observer *Observer
	Actor    *Actor
	Policy   Policy
	Memory   *CycleMemory
}

// NewPilot wires an observer and actor for baseURL.
func NewPilot(baseURL, playerKey string, p Policy) *Pilot {
	return &Pilot{
		Observer: NewObserver(baseURL),
		Actor:    NewActor(baseURL, playerKey),
		Policy:   p,
		Memory:   &CycleMemory{},
	}
}

// Step executes one cycle and returns the snapshot it observed. A rejected
// action is recorded and is not an error.
func (p *Pilot) Step(ctx context.Context) (*engine.Snapshot, *Decision, error) {
	snap, err := p.Observer.Observe(ctx)
	if err != nil {
		return nil, nil, err
	}
	health := Triage(snap)
	decision := Decide(p.Policy, snap, health)

	rec := CycleRecord{
		Tick:       snap.Tick,
		Action:     decision.Action,
		ElementID:  decision.ElementID,
		Standing:   snap.Standing,
		FloodTimer: snap.FloodTimer,
		Urgency:    health.Urgency,
		Rationale:  decision.Rationale,
	}

	if _, err := p.Actor.Act(ctx, decision); err != nil {
		var ae *ActionError
		if !errors.As(err, &ae) || !ae.Rejected() {
			return snap, decision, err
		}
		rec.Error = ae.Body
		slog.Warn("action rejected", "action", decision.Action, "element", decision.ElementID, "reason", ae.Body)
	} else if decision.Action != ActionWait && decision.Action != ActionNone {
		slog.Info("autopilot acted",
			"action", decision.Action,
			"element", decision.ElementID,
			"urgency", health.Urgency,
			"bottleneck", health.Bottleneck,
			"rationale", decision.Rationale,
		)
	}
	p.Memory.Record(rec)
	return snap, decision, nil
}

// Play cycles every interval until the run is over, then returns the final
// snapshot and result.
func (p *Pilot) Play(ctx context.Context, interval time.Duration) (*engine.Snapshot, *outcome.Result, error) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		snap, _, err := p.Step(ctx)
		if err != nil {
			return nil, nil, err
		}
		if snap.State == engine.StateGameOver {
			res, err := p.Observer.Result(ctx)
			if err != nil {
				return snap, nil, err
			}
			return snap, res, nil
		}

		select {
		case <-ticker.C:
		case <-ctx.Done():
			return snap, nil, ctx.Err()
		}
	}
}
