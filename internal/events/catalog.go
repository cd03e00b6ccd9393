// Package events fires random village events at randomized intervals.
package events

import (
	"fmt"
	"strings"

	"github.com/talgya/bridge-keeper/internal/economy"
)

// EffectType names what an event does when it fires.
type EffectType string

const (
	ResourceBonus EffectType = "resource_bonus"
	ResourceLoss  EffectType = "resource_loss"
	TimePenalty   EffectType = "time_penalty"
	MoralBonus    EffectType = "moral_bonus"
)

// Event is one catalog entry. Materials is used by resource effects, Amount by
// the time and moral effects.
type Event struct {
	Name        string            `json:"name"`
	Description string            `json:"description"`
	Effect      EffectType        `json:"effect"`
	Materials   economy.Materials `json:"materials,omitempty"`
	Amount      int               `json:"amount,omitempty"`
	Color       string            `json:"color"`
}

// Catalog is the fixed set of events, drawn uniformly.
var Catalog = []Event{
	{Name: "Resource Windfall", Description: "Found extra resources!", Effect: ResourceBonus,
		Materials: economy.Materials{economy.Wood: 3, economy.Stone: 2}, Color: "forest_green"},
	{Name: "Storm Damage", Description: "Storm damaged some resources", Effect: ResourceLoss,
		Materials: economy.Materials{economy.Wood: 2, economy.Stone: 1}, Color: "flood_red"},
	{Name: "Villager Aid", Description: "Villagers helped gather materials", Effect: ResourceBonus,
		Materials: economy.Materials{economy.Metal: 2}, Color: "bridge_blue"},
	{Name: "Flood Warning", Description: "Flood coming sooner!", Effect: TimePenalty,
		Amount: 10, Color: "flood_red"},
	{Name: "Moral Boost", Description: "Community spirit lifted", Effect: MoralBonus,
		Amount: 10, Color: "gold"},
	{Name: "Lucky Find", Description: "Discovered hidden resources", Effect: ResourceBonus,
		Materials: economy.Materials{economy.Wood: 1, economy.Stone: 1, economy.Metal: 1}, Color: "gold"},
}

// Lookup returns the catalog entry with the given name.
func Lookup(name string) (Event, bool) {
	for _, e := range Catalog {
		if e.Name == name {
			return e, true
		}
	}
	return Event{}, false
}

// effectText describes what an applied event changed.
func effectText(e Event) string {
	switch e.Effect {
	case ResourceBonus:
		return "Event: Gained " + signed(e.Materials, "+")
	case ResourceLoss:
		return "Event: Lost " + signed(e.Materials, "")
	case TimePenalty:
		return fmt.Sprintf("Event: Flood accelerated by %d seconds!", e.Amount)
	case MoralBonus:
		return fmt.Sprintf("Event: Moral standing +%d", e.Amount)
	default:
		return "Event: " + e.Name
	}
}

func signed(m economy.Materials, sign string) string {
	var parts []string
	for _, mat := range economy.AllMaterials {
		if v, ok := m[mat]; ok {
			parts = append(parts, fmt.Sprintf("%s%d %s", sign, v, mat))
		}
	}
	return strings.Join(parts, ", ")
}
