// Package keeper moves the player character around the village.
package keeper

import (
	"math"

	"github.com/talgya/bridge-keeper/internal/village"
)

const (
	Speed            = 150.0 // px/s
	StepSize         = 32.0
	SnapDistance     = 3.0
	InteractionRange = 40.0
	ActionCooldown   = 0.5

	minX      = 20.0
	maxX      = 580.0
	margin    = 20.0
	clickMaxX = 600.0
)

// Direction is where the character faces.
type Direction string

const (
	Up    Direction = "up"
	Down  Direction = "down"
	Left  Direction = "left"
	Right Direction = "right"
)

// Keeper is the player character.
type Keeper struct {
	X        float64   `json:"x"`
	Y        float64   `json:"y"`
	TargetX  float64   `json:"target_x"`
	TargetY  float64   `json:"target_y"`
	Facing   Direction `json:"facing"`
	Moving   bool      `json:"moving"`
	Cooldown float64   `json:"cooldown"`
	MaxY     float64   `json:"max_y"`
}

// New places the keeper at (300, 300) on a screen of the given height.
func New(screenHeight int) *Keeper {
	return &Keeper{X: 300, Y: 300, TargetX: 300, TargetY: 300, Facing: Down, MaxY: float64(screenHeight) - margin}
}

// Move steps one grid cell in the direction of (dx, dy), staying on the village side.
func (k *Keeper) Move(dx, dy int) {
	k.TargetX = clamp(k.X+float64(dx)*StepSize, minX, maxX)
	k.TargetY = clamp(k.Y+float64(dy)*StepSize, minX, k.MaxY)
	k.Moving = true

	switch {
	case dx > 0:
		k.Facing = Right
	case dx < 0:
		k.Facing = Left
	case dy > 0:
		k.Facing = Down
	case dy < 0:
		k.Facing = Up
	}
}

// MoveTo walks toward (x, y). Points off the village side are ignored; returns
// whether the target was accepted.
func (k *Keeper) MoveTo(x, y float64) bool {
	if x >= clickMaxX || y >= k.MaxY {
		return false
	}
	k.TargetX, k.TargetY = x, y
	k.Moving = true

	dx, dy := x-k.X, y-k.Y
	if math.Abs(dx) > math.Abs(dy) {
		if dx > 0 {
			k.Facing = Right
		} else {
			k.Facing = Left
		}
	} else if dy > 0 {
		k.Facing = Down
	} else {
		k.Facing = Up
	}
	return true
}

// Update advances movement and the action cooldown by dt seconds.
func (k *Keeper) Update(dt float64) {
	if k.Cooldown > 0 {
		k.Cooldown -= dt
	}
	if !k.Moving {
		return
	}
	dx, dy := k.TargetX-k.X, k.TargetY-k.Y
	dist := math.Hypot(dx, dy)
	if dist < SnapDistance {
		k.X, k.Y = k.TargetX, k.TargetY
		k.Moving = false
		return
	}
	step := Speed * dt
	k.X += dx / dist * step
	k.Y += dy / dist * step
}

// Ready reports whether the cooldown has elapsed.
func (k *Keeper) Ready() bool { return k.Cooldown <= 0 }

// StartCooldown blocks further actions for ActionCooldown seconds.
func (k *Keeper) StartCooldown() { k.Cooldown = ActionCooldown }

// Nearest returns the closest standing element whose centre is within
// InteractionRange. Ties go to the lower ID.
func (k *Keeper) Nearest(c *village.Catalog) (*village.Element, bool) {
	var best *village.Element
	bestDist := InteractionRange
	for _, e := range c.Elements {
		if e.Dismantled {
			continue
		}
		cx, cy := e.Center()
		d := math.Hypot(cx-k.X, cy-k.Y)
		if d > InteractionRange {
			continue
		}
		if best == nil || d < bestDist {
			best, bestDist = e, d
		}
	}
	return best, best != nil
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
