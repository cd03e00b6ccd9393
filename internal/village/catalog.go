package village

import (
	"fmt"

	"github.com/talgya/bridge-keeper/internal/economy"
	"github.com/talgya/bridge-keeper/internal/simerr"
)

// Catalog is the fixed set of elements produced at run start. Elements are
// never removed, only flagged.
type Catalog struct {
	Elements []*Element `json:"elements"`
}

// NewCatalog wraps elements, renumbering IDs to their index.
func NewCatalog(elements []*Element) *Catalog {
	for i, e := range elements {
		e.ID = i
	}
	return &Catalog{Elements: elements}
}

// Get returns the element with the given ID.
func (c *Catalog) Get(id int) (*Element, error) {
	if id < 0 || id >= len(c.Elements) {
		return nil, fmt.Errorf("element %d: %w", id, simerr.ErrOutOfRange)
	}
	return c.Elements[id], nil
}

// Len returns the number of elements.
func (c *Catalog) Len() int { return len(c.Elements) }

// TotalPopulation sums the population of every element, dismantled or not.
func (c *Catalog) TotalPopulation() int {
	total := 0
	for _, e := range c.Elements {
		total += e.Population
	}
	return total
}

// Remaining returns the elements still standing.
func (c *Catalog) Remaining() []*Element {
	var out []*Element
	for _, e := range c.Elements {
		if !e.Dismantled {
			out = append(out, e)
		}
	}
	return out
}

// DismantledYield sums the yield of every dismantled element.
func (c *Catalog) DismantledYield() economy.Materials {
	total := make(economy.Materials)
	for _, e := range c.Elements {
		if !e.Dismantled {
			continue
		}
		for k, v := range e.Yield {
			total[k] += v
		}
	}
	return total
}
