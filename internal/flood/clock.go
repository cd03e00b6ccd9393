// Package flood runs the countdown and the rising water derived from it.
package flood

import (
	"math"

	"github.com/talgya/bridge-keeper/internal/village"
)

const (
	// ReferenceDuration anchors the level curve for every difficulty.
	ReferenceDuration = 300.0

	// PenaltyFloor is the lowest timer value a penalty can leave.
	PenaltyFloor = 5.0

	// MaxLevelFraction is the share of screen height the water reaches at p=1.
	MaxLevelFraction = 0.6
)

// Clock counts down to the flood.
type Clock struct {
	Timer        float64 `json:"timer"`
	ScreenHeight int     `json:"screen_height"`
}

// NewClock starts a countdown of timer seconds.
func NewClock(timer float64, screenHeight int) *Clock {
	return &Clock{Timer: timer, ScreenHeight: screenHeight}
}

// Tick advances the countdown by dt seconds. Returns true once the timer has run out.
func (c *Clock) Tick(dt float64) bool {
	if dt > 0 {
		c.Timer -= dt
	}
	return c.Expired()
}

// Expired reports whether the flood has arrived.
func (c *Clock) Expired() bool { return c.Timer <= 0 }

// Penalize shortens the countdown by seconds, never below PenaltyFloor.
// A timer already at or under the floor is left alone: penalties never add time.
func (c *Clock) Penalize(seconds float64) {
	if c.Timer <= PenaltyFloor || seconds <= 0 {
		return
	}
	c.Timer = math.Max(PenaltyFloor, c.Timer-seconds)
}

// Elapsed returns p = 1 - timer/300, clamped to [0, 1].
func (c *Clock) Elapsed() float64 {
	p := 1 - c.Timer/ReferenceDuration
	return math.Min(1, math.Max(0, p))
}

// Progress is the non-linear flood curve: a slow linear rise to 0.2 at p=0.5,
// then a step to 0.4 and r^1.5 growth to 1.0.
func Progress(p float64) float64 {
	if p <= 0.5 {
		return p * 0.4
	}
	r := (p - 0.5) * 2
	return 0.4 + math.Pow(r, 1.5)*0.6
}

// Level returns the water height in pixels above the bottom of the screen.
func (c *Clock) Level() float64 {
	return Progress(c.Elapsed()) * float64(c.ScreenHeight) * MaxLevelFraction
}

// Line returns the screen y of the water surface.
func (c *Clock) Line() float64 {
	return float64(c.ScreenHeight) - c.Level()
}

// MarkSubmerged flags standing elements whose footprint reaches below the
// water line. Once set the flag stays. Returns the newly submerged elements.
func (c *Clock) MarkSubmerged(catalog *village.Catalog) []*village.Element {
	line := c.Line()
	var fresh []*village.Element
	for _, e := range catalog.Elements {
		if e.Dismantled || e.Submerged {
			continue
		}
		if float64(e.Bottom()) > line {
			e.Submerged = true
			fresh = append(fresh, e)
		}
	}
	return fresh
}
