// Package village holds the dismantlable structures of the flooded village.
package village

import (
	"fmt"
	"strings"

	"github.com/agnivade/levenshtein"

	"github.com/talgya/bridge-keeper/internal/economy"
	"github.com/talgya/bridge-keeper/internal/simerr"
)

// Kind enumerates element types.
type Kind string

const (
	KindHouse  Kind = "house"
	KindTree   Kind = "tree"
	KindWell   Kind = "well"
	KindFence  Kind = "fence"
	KindShed   Kind = "shed"
	KindStatue Kind = "statue"
)

// Kinds lists every known kind.
var Kinds = []Kind{KindHouse, KindTree, KindWell, KindFence, KindShed, KindStatue}

// InfrastructureKinds are the kinds drawn for infrastructure pieces.
var InfrastructureKinds = []Kind{KindWell, KindFence, KindShed, KindStatue}

// ParseKind resolves a kind name, suggesting the closest match on a typo.
func ParseKind(s string) (Kind, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	best, bestDist := Kind(""), -1
	for _, k := range Kinds {
		if string(k) == name {
			return k, nil
		}
		d := levenshtein.ComputeDistance(name, string(k))
		if bestDist < 0 || d < bestDist {
			best, bestDist = k, d
		}
	}
	if bestDist >= 0 && bestDist <= 2 {
		return "", fmt.Errorf("%w: unknown element kind %q, did you mean %q?", simerr.ErrOutOfRange, s, best)
	}
	return "", fmt.Errorf("%w: unknown element kind %q", simerr.ErrOutOfRange, s)
}

// Element is one salvageable structure. Positions are screen pixels of the
// top-left corner.
type Element struct {
	ID          int               `json:"id"`
	Kind        Kind              `json:"kind"`
	X           int               `json:"x"`
	Y           int               `json:"y"`
	Width       int               `json:"width"`
	Height      int               `json:"height"`
	Population  int               `json:"population"`
	Yield       economy.Materials `json:"yield"`
	Description string            `json:"description"`
	Dismantled  bool              `json:"dismantled"`
	Submerged   bool              `json:"submerged"`
}

// Center returns the footprint centre.
func (e *Element) Center() (float64, float64) {
	return float64(e.X) + float64(e.Width/2), float64(e.Y) + float64(e.Height/2)
}

// Bottom returns the lowest y covered by the footprint.
func (e *Element) Bottom() int { return e.Y + e.Height }

// NeedsConfirmation reports whether dismantling displaces a household.
func (e *Element) NeedsConfirmation() bool {
	return e.Kind == KindHouse && e.Population > 0
}

// Dismantle flags the element and returns its yield. It succeeds exactly once.
func (e *Element) Dismantle() (economy.Materials, error) {
	if e.Dismantled {
		return nil, fmt.Errorf("element %d: %w", e.ID, simerr.ErrAlreadyDismantled)
	}
	e.Dismantled = true
	return e.Yield.Clone(), nil
}
