// Package economy provides the salvage materials and the resource ledger that
// dismantling refills and bridge construction consumes.
package economy

import (
	"fmt"
	"sort"
	"strings"
)

// Material names a raw salvage material.
type Material string

const (
	Wood  Material = "wood"
	Stone Material = "stone"
	Metal Material = "metal"
)

// AllMaterials lists materials in display order.
var AllMaterials = []Material{Wood, Stone, Metal}

// Materials maps material → amount.
type Materials map[Material]int

// Clone returns an independent copy.
func (m Materials) Clone() Materials {
	out := make(Materials, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// Total sums all amounts.
func (m Materials) Total() int {
	total := 0
	for _, v := range m {
		total += v
	}
	return total
}

// String renders "+3 wood, +2 stone" style text in a stable order.
func (m Materials) String() string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, string(k))
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%d %s", m[Material(k)], k))
	}
	return strings.Join(parts, ", ")
}

// FromNames converts a name-keyed map (config, JSON) into Materials.
func FromNames(in map[string]int) Materials {
	out := make(Materials, len(in))
	for k, v := range in {
		out[Material(k)] = v
	}
	return out
}

// Ledger holds the current material counts. Counts never go negative.
type Ledger struct {
	counts Materials
}

// NewLedger creates a ledger with every known material present (zero unless given).
func NewLedger(start Materials) *Ledger {
	l := &Ledger{counts: make(Materials, len(AllMaterials))}
	for _, m := range AllMaterials {
		l.counts[m] = 0
	}
	for k, v := range start {
		if v > 0 {
			l.counts[k] = v
		} else {
			l.counts[k] = 0
		}
	}
	return l
}

// Get returns the count for one material.
func (l *Ledger) Get(m Material) int {
	return l.counts[m]
}

// Add credits every positive amount in delta.
func (l *Ledger) Add(delta Materials) {
	for k, v := range delta {
		if v > 0 {
			l.counts[k] += v
		}
	}
}

// Remove debits delta, saturating each count at zero. Returns what was actually removed.
func (l *Ledger) Remove(delta Materials) Materials {
	removed := make(Materials, len(delta))
	for k, v := range delta {
		if v <= 0 {
			continue
		}
		have := l.counts[k]
		if v > have {
			v = have
		}
		l.counts[k] = have - v
		removed[k] = v
	}
	return removed
}

// CanAfford reports whether every amount in cost is held.
func (l *Ledger) CanAfford(cost Materials) bool {
	for k, v := range cost {
		if l.counts[k] < v {
			return false
		}
	}
	return true
}

// Debit removes cost in full, or nothing at all when it cannot be afforded.
func (l *Ledger) Debit(cost Materials) bool {
	if !l.CanAfford(cost) {
		return false
	}
	for k, v := range cost {
		l.counts[k] -= v
	}
	return true
}

// Total sums all held materials.
func (l *Ledger) Total() int {
	return l.counts.Total()
}

// Counts returns a copy of the current counts.
func (l *Ledger) Counts() Materials {
	return l.counts.Clone()
}
