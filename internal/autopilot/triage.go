package autopilot

import (
	"github.com/talgya/bridge-keeper/internal/bridge"
	"github.com/talgya/bridge-keeper/internal/economy"
	"github.com/talgya/bridge-keeper/internal/engine"
)

// Urgency levels, most pressing first.
const (
	Critical = "CRITICAL"
	Warning  = "WARNING"
	Watch    = "WATCH"
	Calm     = "CALM"
)

// RunHealth holds derived signals computed from a snapshot.
type RunHealth struct {
	RemainingSegments int
	Need              economy.Materials // materials still required for the remaining segments
	Deficit           economy.Materials // need minus what the ledger already holds, floored at 0
	Bottleneck        economy.Material  // material with the largest deficit in segments
	SecondsLeft       float64
	Urgency           string
}

// Triage computes a RunHealth from the snapshot.
func Triage(snap *engine.Snapshot) *RunHealth {
	h := &RunHealth{
		RemainingSegments: snap.RemainingSegments,
		Need:              economy.Materials{},
		Deficit:           economy.Materials{},
		SecondsLeft:       snap.FloodTimer,
	}
	if h.RemainingSegments < 0 {
		h.RemainingSegments = 0
	}

	worst := 0.0
	for _, m := range economy.AllMaterials {
		need := bridge.Recipe[m] * h.RemainingSegments
		h.Need[m] = need
		if short := need - snap.Resources[m]; short > 0 {
			h.Deficit[m] = short
			// Compare in segments so one short metal outweighs one short wood.
			if segs := float64(short) / float64(bridge.Recipe[m]); segs > worst {
				worst = segs
				h.Bottleneck = m
			}
		}
	}

	// Seconds per missing segment the run can still afford.
	pace := 0.0
	if worst > 0 {
		pace = h.SecondsLeft / worst
	}
	switch {
	case h.Deficit.Total() == 0:
		h.Urgency = Calm
	case h.SecondsLeft < 60 || pace < 3:
		h.Urgency = Critical
	case h.SecondsLeft < 120 || pace < 8:
		h.Urgency = Warning
	case h.SecondsLeft < 200:
		h.Urgency = Watch
	default:
		h.Urgency = Calm
	}
	return h
}
