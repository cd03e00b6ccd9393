package engine

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/talgya/bridge-keeper/internal/achievement"
	"github.com/talgya/bridge-keeper/internal/bridge"
	"github.com/talgya/bridge-keeper/internal/config"
	"github.com/talgya/bridge-keeper/internal/economy"
	"github.com/talgya/bridge-keeper/internal/events"
	"github.com/talgya/bridge-keeper/internal/flood"
	"github.com/talgya/bridge-keeper/internal/keeper"
	"github.com/talgya/bridge-keeper/internal/moral"
	"github.com/talgya/bridge-keeper/internal/notify"
	"github.com/talgya/bridge-keeper/internal/outcome"
	"github.com/talgya/bridge-keeper/internal/village"
)

// Snapshot is a read-only copy of a run. It carries every field needed to
// resume the run exactly, plus derived values for display.
type Snapshot struct {
	ID         string            `json:"id"`
	Seed       int64             `json:"seed"`
	Difficulty config.Difficulty `json:"difficulty"`
	Tuning     config.Tuning     `json:"tuning"`
	State      State             `json:"state"`
	CreatedAt  time.Time         `json:"created_at"`
	Tick       uint64            `json:"tick"`
	Elapsed    float64           `json:"elapsed"`

	Elements  []village.Element `json:"elements"`
	Resources economy.Materials `json:"resources"`

	Choices        []moral.Choice   `json:"choices"`
	Standing       int              `json:"standing"`
	StandingLabel  string           `json:"standing_label"`
	StandingColor  string           `json:"standing_color"`
	EndingCategory string           `json:"ending_category"`
	TotalDisplaced int              `json:"total_displaced"`
	Consequences   []notify.Message `json:"consequences"`

	Segments          []bridge.Segment `json:"segments"`
	TotalSegments     int              `json:"total_segments"`
	RemainingSegments int              `json:"remaining_segments"`
	BridgeProgress    float64          `json:"bridge_progress"`
	BridgeRequired    int              `json:"bridge_required"`

	FloodTimer float64 `json:"flood_timer"`
	FloodLevel float64 `json:"flood_level"`
	FloodLine  float64 `json:"flood_line"`

	Scheduler   events.State  `json:"scheduler"`
	ActiveEvent *events.Event `json:"active_event,omitempty"`

	Achievements []string `json:"achievements"`

	Keeper    keeper.Keeper `json:"keeper"`
	TimeOfDay float64       `json:"time_of_day"`
	DayPhase  string        `json:"day_phase"`
	Light     float64       `json:"light"`

	RemainingElements int               `json:"remaining_elements"`
	Salvaged          economy.Materials `json:"salvaged"`

	InitialVillagers int             `json:"initial_villagers"`
	CurrentVillagers int             `json:"current_villagers"`
	PendingElement   *int            `json:"pending_element,omitempty"`
	Result           *outcome.Result `json:"result,omitempty"`
	Log              []Event         `json:"log"`
}

// Snapshot copies the run under its lock.
func (r *Run) Snapshot() Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()

	sched, err := r.events.State()
	if err != nil {
		slog.Warn("snapshot without event rng state", "id", r.id, "error", err)
	}
	label, color := r.moral.StandingDescription()

	s := Snapshot{
		ID:         r.id,
		Seed:       r.cfg.Seed,
		Difficulty: r.cfg.Difficulty,
		Tuning:     r.cfg.Tuning,
		State:      r.state,
		CreatedAt:  r.createdAt,
		Tick:       r.tick,
		Elapsed:    r.elapsed,

		Elements:  make([]village.Element, len(r.village.Elements)),
		Resources: r.resources.Counts(),

		Choices:        r.moral.Choices(),
		Standing:       r.moral.Standing(),
		StandingLabel:  label,
		StandingColor:  color,
		EndingCategory: r.moral.EndingCategory(),
		TotalDisplaced: r.moral.TotalDisplaced(),
		Consequences:   r.moral.Consequences.Messages(),

		Segments:          append([]bridge.Segment(nil), r.bridge.Segments...),
		TotalSegments:     r.bridge.TotalSegments,
		RemainingSegments: r.bridge.Remaining(),
		BridgeProgress:    r.bridge.Progress(),
		BridgeRequired:    r.bridge.Required,

		FloodTimer: r.flood.Timer,
		FloodLevel: r.flood.Level(),
		FloodLine:  r.flood.Line(),

		Scheduler:    sched,
		Achievements: r.achievements.Unlocked(),

		Keeper:    *r.keeper,
		TimeOfDay: r.day.TimeOfDay,
		DayPhase:  r.day.Phase(),
		Light:     r.day.Light(),

		RemainingElements: len(r.village.Remaining()),
		Salvaged:          r.village.DismantledYield(),

		InitialVillagers: r.initialVillagers,
		CurrentVillagers: r.currentVillagers,
		Log:              append([]Event(nil), r.log...),
	}
	for i, e := range r.village.Elements {
		cp := *e
		cp.Yield = e.Yield.Clone()
		s.Elements[i] = cp
	}
	if ev, ok := r.events.Active(); ok {
		s.ActiveEvent = &ev
	}
	if r.pending != nil {
		id := r.pending.ID
		s.PendingElement = &id
	}
	if r.result != nil {
		res := *r.result
		s.Result = &res
	}
	return s
}

// Restore rebuilds a run from a snapshot. The restored run continues exactly
// as the original would have. Clock and Metrics come from cfg; everything
// else comes from the snapshot.
func Restore(cfg RunConfig, s Snapshot) (*Run, error) {
	cfg.Difficulty = s.Difficulty
	cfg.Seed = s.Seed
	cfg.Tuning = s.Tuning
	cfg = cfg.withDefaults()
	if err := cfg.Tuning.Validate(); err != nil {
		return nil, fmt.Errorf("restore run %s: %w", s.ID, err)
	}
	switch s.State {
	case StateMenu, StatePlaying, StatePaused, StateGameOver:
	default:
		return nil, fmt.Errorf("restore run %s: unknown state %q", s.ID, s.State)
	}
	t := cfg.Tuning

	elements := make([]*village.Element, len(s.Elements))
	for i := range s.Elements {
		e := s.Elements[i]
		e.Yield = e.Yield.Clone()
		elements[i] = &e
	}
	catalog := village.NewCatalog(elements)

	sched, err := events.RestoreScheduler(eventTiming(t), s.Scheduler, eventQueue(t))
	if err != nil {
		return nil, fmt.Errorf("restore run %s: %w", s.ID, err)
	}

	moralLedger := moral.NewLedger(consequenceQueue(t))
	moralLedger.Restore(s.Choices)
	moralLedger.Consequences.Restore(s.Consequences)

	b := bridge.NewBuilder(t.Bridge.TotalSegments, t.Bridge.Required, t.Screen.Height)
	if len(s.Segments) > b.TotalSegments {
		return nil, fmt.Errorf("restore run %s: %d segments exceed cap %d", s.ID, len(s.Segments), b.TotalSegments)
	}
	b.Segments = append([]bridge.Segment(nil), s.Segments...)

	k := s.Keeper
	day := &DayCycle{TimeOfDay: s.TimeOfDay}

	r := &Run{
		id:               s.ID,
		cfg:              cfg,
		state:            s.State,
		createdAt:        s.CreatedAt,
		tick:             s.Tick,
		elapsed:          s.Elapsed,
		village:          catalog,
		resources:        economy.NewLedger(s.Resources),
		moral:            moralLedger,
		bridge:           b,
		flood:            flood.NewClock(s.FloodTimer, t.Screen.Height),
		events:           sched,
		achievements:     achievement.NewEvaluator(s.Achievements...),
		keeper:           &k,
		day:              day,
		initialVillagers: s.InitialVillagers,
		currentVillagers: s.CurrentVillagers,
		log:              append([]Event(nil), s.Log...),
	}
	if s.PendingElement != nil {
		e, err := catalog.Get(*s.PendingElement)
		if err != nil {
			return nil, fmt.Errorf("restore run %s pending: %w", s.ID, err)
		}
		r.pending = e
	}
	if s.Result != nil {
		res := *s.Result
		r.result = &res
	}
	slog.Info("run restored", "id", r.id, "state", r.state, "tick", r.tick)
	return r, nil
}
