// Village generation: a jittered grid of houses, scattered trees and
// infrastructure, each placed with a minimum separation from what came before.

package village

import (
	"math"

	opensimplex "github.com/ojrac/opensimplex-go"

	"github.com/talgya/bridge-keeper/internal/economy"
	"github.com/talgya/bridge-keeper/internal/entropy"
)

// GenConfig holds village generation parameters.
type GenConfig struct {
	Seed int64

	HouseRows, HouseCols int
	HouseSpacingX        int
	HouseSpacingY        int
	HouseStartX          int
	HouseStartY          int
	HouseJitter          int // max offset in pixels, either direction

	Trees          int
	TreeMinSep     float64 // from any earlier element
	TreeTreeMinSep float64 // from other trees

	Infrastructure int
	InfraMinSep    float64

	MaxTries int // placement attempts before accepting a crowded spot
}

// DefaultGenConfig returns the shipped village layout: 15 houses, 25 trees
// and 10 infrastructure pieces.
func DefaultGenConfig(seed int64) GenConfig {
	return GenConfig{
		Seed:           seed,
		HouseRows:      3,
		HouseCols:      5,
		HouseSpacingX:  90,
		HouseSpacingY:  120,
		HouseStartX:    60,
		HouseStartY:    120,
		HouseJitter:    15,
		Trees:          25,
		TreeMinSep:     50,
		TreeTreeMinSep: 40,
		Infrastructure: 10,
		InfraMinSep:    45,
		MaxTries:       20,
	}
}

// Generate builds a catalog. The same seed always produces the same village.
func Generate(cfg GenConfig) *Catalog {
	rng := entropy.NewSeeded(cfg.Seed, "village")
	jitterX := opensimplex.New(cfg.Seed)
	jitterY := opensimplex.New(cfg.Seed + 1)

	var elements []*Element

	// Houses on a grid; the noise field nudges neighbours in similar directions.
	for row := 0; row < cfg.HouseRows; row++ {
		for col := 0; col < cfg.HouseCols; col++ {
			nx, ny := float64(col)*0.61+0.5, float64(row)*0.61+0.5
			elements = append(elements, &Element{
				Kind:        KindHouse,
				X:           cfg.HouseStartX + col*cfg.HouseSpacingX + jitter(jitterX, nx, ny, cfg.HouseJitter),
				Y:           cfg.HouseStartY + row*cfg.HouseSpacingY + jitter(jitterY, nx, ny, cfg.HouseJitter),
				Width:       40,
				Height:      40,
				Population:  entropy.Between(rng, 2, 6),
				Yield:       economy.Materials{economy.Wood: entropy.Between(rng, 2, 4), economy.Stone: entropy.Between(rng, 1, 2)},
				Description: "Family house",
			})
		}
	}

	// Trees avoid houses and each other.
	var trees []point
	for i := 0; i < cfg.Trees; i++ {
		p := place(rng, cfg.MaxTries, 40, 580, 300, 700, func(p point) bool {
			return tooClose(p, positions(elements), cfg.TreeMinSep) || tooClose(p, trees, cfg.TreeTreeMinSep)
		})
		trees = append(trees, p)
		elements = append(elements, &Element{
			Kind:        KindTree,
			X:           p.x,
			Y:           p.y,
			Width:       24,
			Height:      32,
			Yield:       economy.Materials{economy.Wood: entropy.Between(rng, 1, 3)},
			Description: "Tree",
		})
	}

	for i := 0; i < cfg.Infrastructure; i++ {
		p := place(rng, cfg.MaxTries, 80, 550, 200, 700, func(p point) bool {
			return tooClose(p, positions(elements), cfg.InfraMinSep)
		})
		kind := InfrastructureKinds[rng.IntN(len(InfrastructureKinds))]
		e := infrastructure(kind, rng)
		e.X, e.Y = p.x, p.y
		elements = append(elements, e)
	}

	return NewCatalog(elements)
}

func infrastructure(kind Kind, rng entropy.Source) *Element {
	switch kind {
	case KindWell:
		return &Element{Kind: kind, Width: 28, Height: 28, Population: entropy.Between(rng, 1, 3),
			Yield: economy.Materials{economy.Stone: 2, economy.Metal: 1}, Description: "Community well"}
	case KindFence:
		return &Element{Kind: kind, Width: 40, Height: 16,
			Yield: economy.Materials{economy.Wood: 1}, Description: "Fence"}
	case KindShed:
		return &Element{Kind: kind, Width: 32, Height: 24, Population: entropy.Between(rng, 0, 1),
			Yield: economy.Materials{economy.Wood: 2, economy.Metal: 1}, Description: "Storage shed"}
	default:
		return &Element{Kind: KindStatue, Width: 24, Height: 32,
			Yield: economy.Materials{economy.Stone: 1, economy.Metal: 1}, Description: "Statue"}
	}
}

type point struct{ x, y int }

// place draws positions in the box until reject returns false or tries run
// out, in which case the last draw is kept.
func place(rng entropy.Source, maxTries, minX, maxX, minY, maxY int, reject func(point) bool) point {
	var p point
	for tries := 0; ; tries++ {
		p = point{entropy.Between(rng, minX, maxX), entropy.Between(rng, minY, maxY)}
		if !reject(p) || tries > maxTries {
			return p
		}
	}
}

func tooClose(p point, existing []point, minDist float64) bool {
	for _, q := range existing {
		if math.Hypot(float64(p.x-q.x), float64(p.y-q.y)) < minDist {
			return true
		}
	}
	return false
}

func positions(elements []*Element) []point {
	out := make([]point, len(elements))
	for i, e := range elements {
		out[i] = point{e.X, e.Y}
	}
	return out
}

// jitter maps a noise sample in [-1, 1] to an integer offset in [-amp, amp].
func jitter(noise opensimplex.Noise, x, y float64, amp int) int {
	v := int(math.Round(noise.Eval2(x, y) * float64(amp)))
	if v > amp {
		v = amp
	}
	if v < -amp {
		v = -amp
	}
	return v
}
