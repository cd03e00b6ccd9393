package autopilot

import (
	"fmt"

	"github.com/talgya/bridge-keeper/internal/economy"
	"github.com/talgya/bridge-keeper/internal/engine"
	"github.com/talgya/bridge-keeper/internal/moral"
	"github.com/talgya/bridge-keeper/internal/village"
)

// Actions the autopilot can take.
const (
	ActionNone      = "none"
	ActionStart     = "start"
	ActionResume    = "resume"
	ActionDismantle = "dismantle"
	ActionConfirm   = "confirm"
	ActionCancel    = "cancel"
	ActionWait      = "wait"
)

// Policy tunes how far the autopilot will go.
type Policy struct {
	// SpareHomes never dismantles occupied houses, even when the flood is close.
	SpareHomes bool
}

// Decision is one chosen action.
type Decision struct {
	Action    string `json:"action"`
	ElementID int    `json:"element_id,omitempty"`
	Rationale string `json:"rationale"`
}

// Decide picks the next action. It is deterministic: equal snapshots give
// equal decisions.
func Decide(p Policy, snap *engine.Snapshot, h *RunHealth) *Decision {
	switch snap.State {
	case engine.StateMenu:
		return &Decision{Action: ActionStart, Rationale: "run is waiting in the menu"}
	case engine.StatePaused:
		return &Decision{Action: ActionResume, Rationale: "run is paused"}
	case engine.StateGameOver:
		return &Decision{Action: ActionNone, Rationale: "run is over"}
	}

	if snap.PendingElement != nil {
		if homesAllowed(p, snap, h) {
			return &Decision{Action: ActionConfirm, ElementID: *snap.PendingElement,
				Rationale: fmt.Sprintf("no other source of %s with %s urgency", h.Bottleneck, h.Urgency)}
		}
		return &Decision{Action: ActionCancel, ElementID: *snap.PendingElement, Rationale: "house can be spared"}
	}

	if h.Deficit.Total() == 0 {
		return &Decision{Action: ActionWait, Rationale: "ledger covers the remaining segments"}
	}

	if e, ok := bestCandidate(snap.Elements, h, false); ok {
		return &Decision{Action: ActionDismantle, ElementID: e.ID,
			Rationale: fmt.Sprintf("%s covers %d of the deficit", e.Description, coverage(e, h))}
	}
	if homesAllowed(p, snap, h) {
		if e, ok := bestCandidate(snap.Elements, h, true); ok {
			return &Decision{Action: ActionDismantle, ElementID: e.ID,
				Rationale: fmt.Sprintf("only occupied homes still hold %s", h.Bottleneck)}
		}
	}
	return &Decision{Action: ActionWait, Rationale: "nothing left worth salvaging"}
}

// homesAllowed reports whether occupied houses may be taken: only when the
// policy permits it and either no other element covers the bottleneck or
// urgency is critical.
func homesAllowed(p Policy, snap *engine.Snapshot, h *RunHealth) bool {
	if p.SpareHomes {
		return false
	}
	if h.Urgency == Critical {
		return true
	}
	for _, e := range snap.Elements {
		if standing(e) && !occupiedHome(e) && e.Yield[h.Bottleneck] > 0 {
			return false
		}
	}
	return true
}

// bestCandidate returns the standing element with the highest deficit
// coverage per unit of moral cost. Ties go to the lower id.
func bestCandidate(elements []village.Element, h *RunHealth, homes bool) (village.Element, bool) {
	var (
		best      village.Element
		bestScore float64
		found     bool
	)
	for _, e := range elements {
		if !standing(e) || occupiedHome(e) != homes {
			continue
		}
		c := coverage(e, h)
		if c == 0 {
			continue
		}
		score := float64(c) / float64(1+cost(e))
		if !found || score > bestScore {
			best, bestScore, found = e, score, true
		}
	}
	return best, found
}

// coverage counts how much of the deficit e would fill. The bottleneck
// material counts double.
func coverage(e village.Element, h *RunHealth) int {
	total := 0
	for _, m := range economy.AllMaterials {
		c := min(e.Yield[m], h.Deficit[m])
		if m == h.Bottleneck {
			c *= 2
		}
		total += c
	}
	return total
}

func cost(e village.Element) int {
	return -moral.WeightFor(e.Kind).Impact
}

func standing(e village.Element) bool { return !e.Dismantled }

func occupiedHome(e village.Element) bool {
	return e.Kind == village.KindHouse && e.Population > 0
}
