package outcome

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/talgya/bridge-keeper/internal/moral"
)

func TestRuthlessBothRules(t *testing.T) {
	// 40 saved, 12 displaced: -max(2,10) -> 30, then -min(3,4) -> 27.
	assert.Equal(t, 27, Adjust(40, moral.Ruthless, 12, 60))
}

func TestRuthlessDisplacementAppliesWithNoSurvivors(t *testing.T) {
	assert.Equal(t, 0, Adjust(0, moral.Ruthless, 12, 60))
	assert.Equal(t, 0, Adjust(3, moral.Ruthless, 12, 60))
	assert.Equal(t, 1, Adjust(3, moral.Ruthless, 4, 60))
}

func TestVirtuousBonusCapped(t *testing.T) {
	assert.Equal(t, 13, Adjust(10, moral.Virtuous, 8, 50))
	assert.Equal(t, 11, Adjust(10, moral.Virtuous, 3, 50))
	assert.Equal(t, 12, Adjust(10, moral.Virtuous, 20, 12))
	assert.Equal(t, 0, Adjust(0, moral.Virtuous, 20, 12))
}

func TestPragmaticPenalty(t *testing.T) {
	assert.Equal(t, 4, Adjust(5, moral.Pragmatic, 0, 50))
	assert.Equal(t, 27, Adjust(30, moral.Pragmatic, 0, 50))
	assert.Equal(t, 0, Adjust(0, moral.Pragmatic, 0, 50))
}

func TestBalancedUnchanged(t *testing.T) {
	assert.Equal(t, 17, Adjust(17, moral.Balanced, 30, 50))
}

func TestBaseSaved(t *testing.T) {
	assert.Equal(t, 45, BaseSaved(Input{Escaped: true, CurrentVillagers: 45, BridgeProgress: 100, BridgeRequired: 100}))
	assert.Equal(t, 22, BaseSaved(Input{CurrentVillagers: 45, BridgeProgress: 50, BridgeRequired: 100}))
	assert.Equal(t, 0, BaseSaved(Input{CurrentVillagers: 45, BridgeProgress: 0, BridgeRequired: 100}))
}

func TestCalculateScenario(t *testing.T) {
	r := Calculate(Input{
		BridgeProgress:   80,
		BridgeRequired:   100,
		CurrentVillagers: 50,
		InitialVillagers: 62,
		TotalDisplaced:   12,
		Category:         moral.Ruthless,
	})
	assert.Equal(t, 40, r.Base)
	assert.Equal(t, 27, r.VillagersSaved)
	assert.InDelta(t, 27.0/62.0, r.SurvivalRate, 1e-9)
	assert.Equal(t, TierSacrifice, r.Tier)
	assert.Equal(t, "Heavy Sacrifice", r.TierName)
}

func TestTierBoundaries(t *testing.T) {
	assert.Equal(t, TierHero, TierFor(0.8))
	assert.Equal(t, TierDifficult, TierFor(0.79))
	assert.Equal(t, TierDifficult, TierFor(0.5))
	assert.Equal(t, TierSacrifice, TierFor(0.2))
	assert.Equal(t, TierFlood, TierFor(0.19))
}

func TestNoInitialVillagers(t *testing.T) {
	r := Calculate(Input{Escaped: true, BridgeRequired: 100, Category: moral.Balanced})
	assert.Equal(t, 0.0, r.SurvivalRate)
	assert.Equal(t, TierFlood, r.Tier)
}
