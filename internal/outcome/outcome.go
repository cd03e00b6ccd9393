// Package outcome computes survivors and the ending tier when a run ends.
package outcome

import "github.com/talgya/bridge-keeper/internal/moral"

// Tier is the coarse ending bucket.
type Tier string

const (
	TierHero      Tier = "hero"
	TierDifficult Tier = "difficult"
	TierSacrifice Tier = "sacrifice"
	TierFlood     Tier = "flood"
)

// TierNames are the titles shown for each tier.
var TierNames = map[Tier]string{
	TierHero:      "Hero's Bridge",
	TierDifficult: "Difficult Choices",
	TierSacrifice: "Heavy Sacrifice",
	TierFlood:     "The Flood Wins",
}

// Input is the final state the calculation needs.
type Input struct {
	Escaped          bool
	BridgeProgress   float64
	BridgeRequired   int
	CurrentVillagers int
	InitialVillagers int
	TotalDisplaced   int
	Category         string // moral ending category
}

// Result is the computed ending.
type Result struct {
	Base           int     `json:"base"`
	VillagersSaved int     `json:"villagers_saved"`
	Category       string  `json:"moral_category"`
	SurvivalRate   float64 `json:"survival_rate"`
	Tier           Tier    `json:"tier"`
	TierName       string  `json:"tier_name"`
	Escaped        bool    `json:"escaped"`
}

// Calculate derives the final villagers saved and the tier.
func Calculate(in Input) Result {
	base := BaseSaved(in)
	saved := Adjust(base, in.Category, in.TotalDisplaced, in.InitialVillagers)

	rate := 0.0
	if in.InitialVillagers > 0 {
		rate = float64(saved) / float64(in.InitialVillagers)
	}
	tier := TierFor(rate)
	return Result{
		Base:           base,
		VillagersSaved: saved,
		Category:       in.Category,
		SurvivalRate:   rate,
		Tier:           tier,
		TierName:       TierNames[tier],
		Escaped:        in.Escaped,
	}
}

// BaseSaved is everyone left on escape, otherwise the share matching bridge progress.
func BaseSaved(in Input) int {
	if in.Escaped || in.BridgeRequired <= 0 {
		return in.CurrentVillagers
	}
	ratio := in.BridgeProgress / float64(in.BridgeRequired)
	return int(float64(in.CurrentVillagers) * ratio)
}

// Adjust applies the moral category rule to saved. Each rule runs at most once.
// Rewards and the first penalty need survivors to act on.
func Adjust(saved int, category string, displaced, initial int) int {
	switch category {
	case moral.Virtuous:
		if saved > 0 {
			saved += min(3, displaced/2)
			saved = min(saved, initial)
		}
	case moral.Pragmatic:
		if saved > 0 {
			saved = max(0, saved-max(1, saved/10))
		}
	case moral.Ruthless:
		if saved > 0 {
			saved = max(0, saved-max(2, saved/4))
		}
		if displaced > 5 {
			saved = max(0, saved-min(3, displaced/3))
		}
	}
	return saved
}

// TierFor buckets a survival rate.
func TierFor(rate float64) Tier {
	switch {
	case rate >= 0.8:
		return TierHero
	case rate >= 0.5:
		return TierDifficult
	case rate >= 0.2:
		return TierSacrifice
	default:
		return TierFlood
	}
}
