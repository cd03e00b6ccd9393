package config

import (
	"fmt"
	"strings"

	"github.com/agnivade/levenshtein"
)

// Difficulty selects the starting flood timer and starting resources.
type Difficulty string

const (
	DifficultyEasy   Difficulty = "easy"
	DifficultyNormal Difficulty = "normal"
	DifficultyHard   Difficulty = "hard"
)

// Difficulties lists the accepted difficulties in menu order.
var Difficulties = []Difficulty{DifficultyEasy, DifficultyNormal, DifficultyHard}

// DifficultySettings are the run-start values a difficulty selects.
type DifficultySettings struct {
	FloodTimer float64        // seconds
	Resources  map[string]int // starting material counts
}

// Settings returns the fixed table entry for d. Unknown values fall back to normal.
func (d Difficulty) Settings() DifficultySettings {
	switch d {
	case DifficultyEasy:
		return DifficultySettings{
			FloodTimer: 400,
			Resources:  map[string]int{"wood": 5, "stone": 3, "metal": 2},
		}
	case DifficultyHard:
		return DifficultySettings{
			FloodTimer: 200,
			Resources:  map[string]int{"wood": 0, "stone": 0, "metal": 0},
		}
	default:
		return DifficultySettings{
			FloodTimer: 300,
			Resources:  map[string]int{"wood": 0, "stone": 0, "metal": 0},
		}
	}
}

// ParseDifficulty resolves a user-supplied name. Unknown names produce an error
// naming the closest accepted difficulty.
func ParseDifficulty(s string) (Difficulty, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	if name == "" {
		return DifficultyNormal, nil
	}
	for _, d := range Difficulties {
		if string(d) == name {
			return d, nil
		}
	}

	best := Difficulties[0]
	bestDist := levenshtein.ComputeDistance(name, string(best))
	for _, d := range Difficulties[1:] {
		if dist := levenshtein.ComputeDistance(name, string(d)); dist < bestDist {
			best, bestDist = d, dist
		}
	}
	if bestDist <= 2 {
		return "", fmt.Errorf("unknown difficulty %q, did you mean %q?", s, best)
	}
	return "", fmt.Errorf("unknown difficulty %q (want easy, normal or hard)", s)
}
