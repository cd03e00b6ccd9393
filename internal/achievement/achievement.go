// Package achievement unlocks badges from fixed predicates over run state.
package achievement

// State is the slice of run state the rules read.
type State struct {
	Standing         int     `json:"standing"`
	VillagersSaved   int     `json:"villagers_saved"`
	InitialVillagers int     `json:"initial_villagers"`
	SegmentsBuilt    int     `json:"segments_built"`
	ResourcesTotal   int     `json:"resources_total"`
	TotalDisplaced   int     `json:"total_displaced"`
	FloodTimer       float64 `json:"flood_timer"`
	Final            bool    `json:"final"`   // run has ended
	Escaped          bool    `json:"escaped"` // ended by completing the bridge
}

// Rule is one badge. Runtime rules may unlock mid-run; the rest only at the end.
type Rule struct {
	Key         string
	Name        string
	Description string
	Runtime     bool
	Holds       func(State) bool
}

// Rules is the full badge set, in display order.
var Rules = []Rule{
	{"saint", "Saint of the Bridge", "Achieved maximum moral standing", true, saint},
	{"perfect_savior", "Perfect Savior", "Saved all villagers", false, perfectSavior},
	{"bridge_master", "Bridge Master", "Built bridge with minimal resources", true, bridgeMaster},
	{"moral_dilemma", "Moral Dilemma", "Made difficult choices affecting many villagers", true, moralDilemma},
	{"resourceful", "Resourceful", "Gathered resources efficiently", true, resourceful},
	{"quick_builder", "Quick Builder", "Completed bridge in under 2 minutes", false, quickBuilder},
}

func saint(s State) bool { return s.Standing >= 150 }

func perfectSavior(s State) bool { return s.VillagersSaved == s.InitialVillagers }

func bridgeMaster(s State) bool { return s.SegmentsBuilt >= 15 && s.ResourcesTotal <= 10 }

func moralDilemma(s State) bool { return s.TotalDisplaced >= 10 }

func resourceful(s State) bool { return s.ResourcesTotal >= 50 }

func quickBuilder(s State) bool { return s.Escaped && s.FloodTimer >= 180 }

// Lookup returns the rule with the given key.
func Lookup(key string) (Rule, bool) {
	for _, r := range Rules {
		if r.Key == key {
			return r, true
		}
	}
	return Rule{}, false
}

// Evaluator holds the unlocked set. Unlocks are never revoked.
type Evaluator struct {
	unlocked []string
	seen     map[string]bool
}

// NewEvaluator creates an evaluator, optionally pre-seeded with unlocked keys.
func NewEvaluator(unlocked ...string) *Evaluator {
	e := &Evaluator{seen: make(map[string]bool)}
	for _, k := range unlocked {
		e.unlock(k)
	}
	return e
}

// Evaluate unlocks every eligible rule that holds for s and returns the newly
// unlocked rules. Before the run ends only runtime rules are eligible.
func (e *Evaluator) Evaluate(s State) []Rule {
	var fresh []Rule
	for _, r := range Rules {
		if e.seen[r.Key] || (!s.Final && !r.Runtime) {
			continue
		}
		if r.Holds(s) {
			e.unlock(r.Key)
			fresh = append(fresh, r)
		}
	}
	return fresh
}

func (e *Evaluator) unlock(key string) {
	if e.seen[key] {
		return
	}
	e.seen[key] = true
	e.unlocked = append(e.unlocked, key)
}

// Unlocked returns the unlocked keys in unlock order.
func (e *Evaluator) Unlocked() []string {
	return append([]string(nil), e.unlocked...)
}
