// Package moral tracks the ethical cost of salvage. Standing is always
// derived from the choice log, never stored separately.
package moral

import (
	"fmt"
	"time"

	"github.com/talgya/bridge-keeper/internal/economy"
	"github.com/talgya/bridge-keeper/internal/notify"
	"github.com/talgya/bridge-keeper/internal/village"
)

const (
	BaseStanding = 100
	MinStanding  = 0
	MaxStanding  = 200
)

// Severity categories.
const (
	Severe    = "severe"
	Major     = "major"
	Moderate  = "moderate"
	Minor     = "minor"
	Minimal   = "minimal"
	Uplifting = "uplifting"
)

// KindEvent marks choices that came from a random event rather than a dismantle.
const KindEvent = "event"

// Weight is the moral cost of dismantling one kind of element.
type Weight struct {
	Impact   int
	Category string
	Message  string
}

var weights = map[village.Kind]Weight{
	village.KindHouse:  {-25, Severe, "Destroyed family home"},
	village.KindWell:   {-15, Major, "Demolished community well"},
	village.KindStatue: {-8, Moderate, "Destroyed cultural monument"},
	village.KindShed:   {-5, Moderate, "Tore down shed"},
	village.KindTree:   {-2, Minor, "Cut down tree"},
	village.KindFence:  {-1, Minimal, "Removed fence"},
}

// WeightFor returns the weight for kind. Unknown kinds cost nothing.
func WeightFor(kind village.Kind) Weight {
	if w, ok := weights[kind]; ok {
		return w
	}
	return Weight{0, Minimal, "Unknown action"}
}

// Choice is one logged decision.
type Choice struct {
	Kind               string            `json:"kind"`
	Description        string            `json:"description"`
	PopulationAffected int               `json:"population_affected"`
	Yield              economy.Materials `json:"yield"`
	MoralImpact        int               `json:"moral_impact"`
	Category           string            `json:"category"`
	Timestamp          time.Time         `json:"timestamp"`
}

// Ledger is the append-only choice log plus its derived totals.
type Ledger struct {
	choices   []Choice
	net       int
	displaced int

	// Consequences holds the transient messages for the notification UI.
	Consequences *notify.Queue
}

// NewLedger creates a ledger at the base standing.
func NewLedger(consequences *notify.Queue) *Ledger {
	if consequences == nil {
		consequences = notify.NewQueue(3, 3*time.Second)
	}
	return &Ledger{Consequences: consequences}
}

// ApplyChoice logs the dismantling of e and posts a consequence message.
func (l *Ledger) ApplyChoice(e *village.Element, now time.Time) Choice {
	w := WeightFor(e.Kind)
	c := Choice{
		Kind:               string(e.Kind),
		Description:        e.Description,
		PopulationAffected: e.Population,
		Yield:              e.Yield.Clone(),
		MoralImpact:        w.Impact,
		Category:           w.Category,
		Timestamp:          now,
	}
	l.record(c)

	text, color := consequenceMessage(c)
	l.Consequences.Push(notify.Message{Text: text, Color: color, Timestamp: now, MoralChange: c.MoralImpact})
	return c
}

// Bonus logs a positive adjustment that did not come from a dismantle.
func (l *Ledger) Bonus(amount int, description string, now time.Time) Choice {
	c := Choice{
		Kind:        KindEvent,
		Description: description,
		MoralImpact: amount,
		Category:    Uplifting,
		Timestamp:   now,
	}
	l.record(c)
	return c
}

func (l *Ledger) record(c Choice) {
	l.choices = append(l.choices, c)
	l.net += c.MoralImpact
	l.displaced += c.PopulationAffected
}

// Standing returns clamp(100 + Σ impacts, 0, 200).
func (l *Ledger) Standing() int {
	return clamp(BaseStanding+l.net, MinStanding, MaxStanding)
}

// TotalDisplaced is the sum of population affected over all choices.
func (l *Ledger) TotalDisplaced() int { return l.displaced }

// Choices returns a copy of the log in insertion order.
func (l *Ledger) Choices() []Choice {
	return append([]Choice(nil), l.choices...)
}

// Restore rebuilds the ledger from a saved log.
func (l *Ledger) Restore(choices []Choice) {
	l.choices, l.net, l.displaced = nil, 0, 0
	for _, c := range choices {
		l.record(c)
	}
}

// StandingDescription returns the label and display colour for the current standing.
func (l *Ledger) StandingDescription() (string, string) {
	return Describe(l.Standing())
}

// Describe maps a standing to its band. Lower bounds are inclusive.
func Describe(standing int) (label, color string) {
	switch {
	case standing >= 150:
		return "Saint", "village_beige"
	case standing >= 120:
		return "Virtuous", "forest_green"
	case standing >= 80:
		return "Balanced", "bridge_blue"
	case standing >= 50:
		return "Pragmatic", "earth_brown"
	case standing >= 20:
		return "Ruthless", "flood_red"
	default:
		return "Destroyer", "black"
	}
}

// Ending categories.
const (
	Virtuous  = "virtuous"
	Balanced  = "balanced"
	Pragmatic = "pragmatic"
	Ruthless  = "ruthless"
)

// EndingCategory is the coarse classification used by the outcome.
func (l *Ledger) EndingCategory() string {
	return CategoryFor(l.Standing())
}

// CategoryFor maps a standing to an ending category.
func CategoryFor(standing int) string {
	switch {
	case standing >= 120:
		return Virtuous
	case standing >= 80:
		return Balanced
	case standing >= 50:
		return Pragmatic
	default:
		return Ruthless
	}
}

func consequenceMessage(c Choice) (string, string) {
	switch c.Category {
	case Severe:
		if c.PopulationAffected > 0 {
			return fmt.Sprintf("Displaced %d villagers!", c.PopulationAffected), "flood_red"
		}
		return "Destroyed vital infrastructure!", "flood_red"
	case Major:
		return "Damaged community resource!", "flood_red"
	case Moderate:
		return "Removed village structure", "earth_brown"
	case Minor:
		return "Gathered natural resources", "forest_green"
	default:
		return "Minor change to village", "dark_grey"
	}
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
