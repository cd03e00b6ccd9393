package engine

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/talgya/bridge-keeper/internal/achievement"
	"github.com/talgya/bridge-keeper/internal/bridge"
	"github.com/talgya/bridge-keeper/internal/config"
	"github.com/talgya/bridge-keeper/internal/economy"
	"github.com/talgya/bridge-keeper/internal/entropy"
	"github.com/talgya/bridge-keeper/internal/events"
	"github.com/talgya/bridge-keeper/internal/flood"
	"github.com/talgya/bridge-keeper/internal/keeper"
	"github.com/talgya/bridge-keeper/internal/moral"
	"github.com/talgya/bridge-keeper/internal/notify"
	"github.com/talgya/bridge-keeper/internal/outcome"
	"github.com/talgya/bridge-keeper/internal/simerr"
	"github.com/talgya/bridge-keeper/internal/village"
)

// State is the run's position in its lifecycle.
type State string

const (
	StateMenu     State = "menu"
	StatePlaying  State = "playing"
	StatePaused   State = "paused"
	StateGameOver State = "game_over"
)

// MaxLogEvents bounds the run log.
const MaxLogEvents = 200

// Event is a notable occurrence during a run.
type Event struct {
	Tick        uint64  `json:"tick"`
	Time        float64 `json:"time"` // simulated seconds since start
	Description string  `json:"description"`
	Category    string  `json:"category"` // "run", "dismantle", "bridge", "event", "flood", "achievement"
}

// Metrics receives counters from runs. Implemented by telemetry.Recorder.
type Metrics interface {
	RecordDismantle(kind string)
	RecordConfirmation()
	RecordCancellation()
	RecordRejected(op string)
	RecordSegments(n int)
	RecordEvent(name string)
	RecordEnding(tier string)
}

type nopMetrics struct{}

func (nopMetrics) RecordDismantle(string) {}
func (nopMetrics) RecordConfirmation()    {}
func (nopMetrics) RecordCancellation()    {}
func (nopMetrics) RecordRejected(string)  {}
func (nopMetrics) RecordSegments(int)     {}
func (nopMetrics) RecordEvent(string)     {}
func (nopMetrics) RecordEnding(string)    {}

// RunConfig selects difficulty and balance for a new run.
type RunConfig struct {
	Difficulty config.Difficulty
	Seed       int64 // 0 = random
	Tuning     config.Tuning
	Clock      Clock
	Metrics    Metrics
}

func (c RunConfig) withDefaults() RunConfig {
	if c.Difficulty == "" {
		c.Difficulty = config.DifficultyNormal
	}
	if c.Tuning == (config.Tuning{}) {
		c.Tuning = config.DefaultTuning()
	}
	if c.Clock == nil {
		c.Clock = RealClock{}
	}
	if c.Metrics == nil {
		c.Metrics = nopMetrics{}
	}
	if c.Seed == 0 {
		c.Seed = entropy.CryptoSeed()
	}
	return c
}

// DismantleResult reports the outcome of a dismantle request.
type DismantleResult struct {
	ElementID            int               `json:"element_id"`
	Granted              economy.Materials `json:"granted,omitempty"`
	RequiresConfirmation bool              `json:"requires_confirmation"`
	Choice               *moral.Choice     `json:"choice,omitempty"`
}

// Run owns every entity of one playthrough. All access goes through its
// methods, which serialise on mu so readers never see a half-applied change.
type Run struct {
	mu sync.Mutex

	id        string
	cfg       RunConfig
	state     State
	createdAt time.Time
	tick      uint64
	elapsed   float64

	village      *village.Catalog
	resources    *economy.Ledger
	moral        *moral.Ledger
	bridge       *bridge.Builder
	flood        *flood.Clock
	events       *events.Scheduler
	achievements *achievement.Evaluator
	keeper       *keeper.Keeper
	day          *DayCycle

	initialVillagers int
	currentVillagers int
	pending          *village.Element
	result           *outcome.Result
	log              []Event
}

// NewRun generates a fresh village and returns a run in the menu state.
func NewRun(cfg RunConfig) (*Run, error) {
	cfg = cfg.withDefaults()
	if err := cfg.Tuning.Validate(); err != nil {
		return nil, fmt.Errorf("new run: %w", err)
	}
	t := cfg.Tuning
	settings := cfg.Difficulty.Settings()

	catalog := village.Generate(village.DefaultGenConfig(cfg.Seed))
	r := &Run{
		id:               uuid.NewString(),
		cfg:              cfg,
		state:            StateMenu,
		createdAt:        cfg.Clock.Now(),
		village:          catalog,
		resources:        economy.NewLedger(economy.FromNames(settings.Resources)),
		moral:            moral.NewLedger(consequenceQueue(t)),
		bridge:           bridge.NewBuilder(t.Bridge.TotalSegments, t.Bridge.Required, t.Screen.Height),
		flood:            flood.NewClock(settings.FloodTimer, t.Screen.Height),
		events:           events.NewScheduler(eventTiming(t), entropy.NewSeeded(cfg.Seed, "events"), eventQueue(t)),
		achievements:     achievement.NewEvaluator(),
		keeper:           keeper.New(t.Screen.Height),
		day:              NewDayCycle(),
		initialVillagers: catalog.TotalPopulation(),
	}
	r.currentVillagers = r.initialVillagers
	r.logEvent("run", fmt.Sprintf("New %s run with %d villagers", cfg.Difficulty, r.initialVillagers))
	slog.Info("run created", "id", r.id, "difficulty", cfg.Difficulty, "seed", cfg.Seed,
		"elements", catalog.Len(), "villagers", r.initialVillagers)
	return r, nil
}

func consequenceQueue(t config.Tuning) *notify.Queue {
	return notify.NewQueue(t.Notifications.Max, time.Duration(t.Notifications.ConsequenceTTLms)*time.Millisecond)
}

func eventQueue(t config.Tuning) *notify.Queue {
	return notify.NewQueue(t.Notifications.Max, time.Duration(t.Notifications.EventTTLms)*time.Millisecond)
}

func eventTiming(t config.Tuning) events.Timing {
	return events.Timing{
		FirstMin:      t.Events.FirstDelayMin,
		FirstMax:      t.Events.FirstDelayMax,
		NextMin:       t.Events.NextDelayMin,
		NextMax:       t.Events.NextDelayMax,
		ActiveSeconds: t.Events.ActiveSeconds,
	}
}

// Reset returns a fresh run with the same settings and the next seed. The
// receiver is left untouched.
func (r *Run) Reset() (*Run, error) {
	r.mu.Lock()
	cfg := r.cfg
	r.mu.Unlock()
	cfg.Seed++
	return NewRun(cfg)
}

// ID returns the run identifier.
func (r *Run) ID() string { return r.id }

// Seed returns the seed the village and events were drawn from.
func (r *Run) Seed() int64 { return r.cfg.Seed }

// Difficulty returns the difficulty the run started with.
func (r *Run) Difficulty() config.Difficulty { return r.cfg.Difficulty }

// State returns the current lifecycle state.
func (r *Run) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// Result returns the outcome once the run is over.
func (r *Run) Result() (outcome.Result, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.result == nil {
		return outcome.Result{}, false
	}
	return *r.result, true
}

// Start leaves the menu.
func (r *Run) Start() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state != StateMenu {
		return r.reject("start", fmt.Errorf("start from %s: %w", r.state, simerr.ErrInvalidState))
	}
	r.state = StatePlaying
	r.logEvent("run", "The keeper begins salvaging")
	slog.Info("run started", "id", r.id)
	return nil
}

// Pause freezes the run. Not allowed while a confirmation is open.
func (r *Run) Pause() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.pending != nil {
		return r.reject("pause", simerr.ErrConfirmationPending)
	}
	if r.state != StatePlaying {
		return r.reject("pause", fmt.Errorf("pause from %s: %w", r.state, simerr.ErrInvalidState))
	}
	r.state = StatePaused
	slog.Info("run paused", "id", r.id)
	return nil
}

// Resume continues a paused run.
func (r *Run) Resume() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state != StatePaused {
		return r.reject("resume", fmt.Errorf("resume from %s: %w", r.state, simerr.ErrInvalidState))
	}
	r.state = StatePlaying
	slog.Info("run resumed", "id", r.id)
	return nil
}

// Tick advances every time-based subsystem by dt seconds. It does nothing
// outside Playing. While a confirmation is open only cosmetic timers run.
func (r *Run) Tick(dt float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state != StatePlaying {
		return
	}
	now := r.cfg.Clock.Now()

	if r.pending != nil {
		r.expire(now)
		return
	}

	r.tick++
	r.elapsed += dt

	if r.flood.Tick(dt) {
		r.finish(false)
		return
	}

	r.keeper.Update(dt)
	r.day.Advance(dt)

	if ev := r.events.Tick(dt, r.targets(), now); ev != nil {
		r.cfg.Metrics.RecordEvent(ev.Name)
		r.logEvent("event", fmt.Sprintf("%s: %s", ev.Name, ev.Description))
		slog.Info("random event", "id", r.id, "event", ev.Name, "effect", ev.Effect)
	}

	for _, e := range r.flood.MarkSubmerged(r.village) {
		r.logEvent("flood", fmt.Sprintf("%s #%d is under water", e.Description, e.ID))
	}

	r.expire(now)
	r.build(now)

	if r.bridge.Complete() {
		r.finish(true)
		return
	}
	r.evaluate()
}

func (r *Run) targets() events.Targets {
	return events.Targets{Resources: r.resources, Flood: r.flood, Moral: r.moral}
}

func (r *Run) expire(now time.Time) {
	r.bridge.Settle(now)
	r.moral.Consequences.Expire(now)
	r.events.Messages.Expire(now)
}

func (r *Run) build(now time.Time) {
	built := r.bridge.AutoBuild(r.resources, now)
	if len(built) == 0 {
		return
	}
	r.cfg.Metrics.RecordSegments(len(built))
	for _, s := range built {
		r.logEvent("bridge", fmt.Sprintf("Built %s segment %d", s.Type, s.Index+1))
		slog.Info("segment built", "id", r.id, "index", s.Index, "type", s.Type)
	}
}

// RequestDismantle salvages an element. Populated houses are not dismantled
// yet: the run enters confirmation and RequiresConfirmation is set.
func (r *Run) RequestDismantle(id int) (DismantleResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, err := r.target(id)
	if err != nil {
		return DismantleResult{}, r.reject("dismantle", err)
	}
	if e.NeedsConfirmation() {
		return r.askConfirmation(e), nil
	}
	return r.dismantle(e)
}

// askConfirmation freezes the run until the house is confirmed or spared.
func (r *Run) askConfirmation(e *village.Element) DismantleResult {
	r.pending = e
	r.logEvent("run", fmt.Sprintf("Asked to confirm demolishing a house of %d", e.Population))
	slog.Info("confirmation pending", "id", r.id, "element", e.ID, "population", e.Population)
	return DismantleResult{ElementID: e.ID, RequiresConfirmation: true}
}

// target validates a dismantle request without changing anything.
func (r *Run) target(id int) (*village.Element, error) {
	if r.state != StatePlaying {
		return nil, fmt.Errorf("dismantle in %s: %w", r.state, simerr.ErrInvalidState)
	}
	if r.pending != nil {
		return nil, simerr.ErrConfirmationPending
	}
	e, err := r.village.Get(id)
	if err != nil {
		return nil, err
	}
	if e.Dismantled {
		return nil, fmt.Errorf("element %d: %w", id, simerr.ErrAlreadyDismantled)
	}
	return e, nil
}

// dismantle grants the yield and records the choice in one step.
func (r *Run) dismantle(e *village.Element) (DismantleResult, error) {
	granted, err := e.Dismantle()
	if err != nil {
		return DismantleResult{}, err
	}
	now := r.cfg.Clock.Now()
	r.resources.Add(granted)
	choice := r.moral.ApplyChoice(e, now)
	r.currentVillagers = max(0, r.currentVillagers-e.Population)

	r.cfg.Metrics.RecordDismantle(string(e.Kind))
	r.logEvent("dismantle", fmt.Sprintf("Dismantled %s #%d for %s", e.Description, e.ID, granted))
	slog.Debug("element dismantled", "id", r.id, "element", e.ID, "kind", e.Kind, "impact", choice.MoralImpact)
	r.evaluate()
	return DismantleResult{ElementID: e.ID, Granted: granted, Choice: &choice}, nil
}

// ConfirmDismantle demolishes the house awaiting confirmation.
func (r *Run) ConfirmDismantle() (DismantleResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state != StatePlaying || r.pending == nil {
		return DismantleResult{}, r.reject("confirm", simerr.ErrNotPending)
	}
	e := r.pending
	r.pending = nil
	r.cfg.Metrics.RecordConfirmation()
	return r.dismantle(e)
}

// CancelDismantle leaves the house standing and closes the confirmation.
func (r *Run) CancelDismantle() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state != StatePlaying || r.pending == nil {
		return r.reject("cancel", simerr.ErrNotPending)
	}
	r.logEvent("run", fmt.Sprintf("Spared house #%d", r.pending.ID))
	r.pending = nil
	r.cfg.Metrics.RecordCancellation()
	return nil
}

func (r *Run) canAct(op string) error {
	if r.state != StatePlaying {
		return r.reject(op, fmt.Errorf("%s in %s: %w", op, r.state, simerr.ErrInvalidState))
	}
	if r.pending != nil {
		return r.reject(op, simerr.ErrConfirmationPending)
	}
	return nil
}

// Move steps the keeper one cell.
func (r *Run) Move(dx, dy int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.canAct("move"); err != nil {
		return err
	}
	r.keeper.Move(sign(dx), sign(dy))
	return nil
}

// MoveTo walks the keeper toward a point on the village side.
func (r *Run) MoveTo(x, y float64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.canAct("move"); err != nil {
		return err
	}
	if !r.keeper.MoveTo(x, y) {
		return r.reject("move", fmt.Errorf("point (%.0f, %.0f) is off the village: %w", x, y, simerr.ErrOutOfRange))
	}
	return nil
}

// Interact dismantles the closest element within reach of the keeper.
func (r *Run) Interact() (DismantleResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.canAct("interact"); err != nil {
		return DismantleResult{}, err
	}
	if !r.keeper.Ready() {
		return DismantleResult{}, r.reject("interact", simerr.ErrCoolingDown)
	}
	e, ok := r.keeper.Nearest(r.village)
	if !ok {
		return DismantleResult{}, r.reject("interact", simerr.ErrNothingInReach)
	}
	if e.NeedsConfirmation() {
		return r.askConfirmation(e), nil
	}
	res, err := r.dismantle(e)
	if err == nil {
		r.keeper.StartCooldown()
	}
	return res, err
}

func (r *Run) finish(escaped bool) {
	res := outcome.Calculate(outcome.Input{
		Escaped:          escaped,
		BridgeProgress:   r.bridge.Progress(),
		BridgeRequired:   r.bridge.Required,
		CurrentVillagers: r.currentVillagers,
		InitialVillagers: r.initialVillagers,
		TotalDisplaced:   r.moral.TotalDisplaced(),
		Category:         r.moral.EndingCategory(),
	})
	r.result = &res
	r.state = StateGameOver
	r.evaluate()

	r.cfg.Metrics.RecordEnding(string(res.Tier))
	if escaped {
		r.logEvent("run", fmt.Sprintf("Bridge complete: %d villagers crossed", res.VillagersSaved))
	} else {
		r.logEvent("run", fmt.Sprintf("The flood arrived: %d villagers saved", res.VillagersSaved))
	}
	slog.Info("run over", "id", r.id, "escaped", escaped, "saved", res.VillagersSaved,
		"initial", r.initialVillagers, "tier", res.Tier, "moral", res.Category)
}

// evaluate unlocks achievements for the current state.
func (r *Run) evaluate() {
	for _, rule := range r.achievements.Evaluate(r.achievementState()) {
		r.logEvent("achievement", fmt.Sprintf("Achievement unlocked: %s", rule.Name))
		slog.Info("achievement unlocked", "id", r.id, "achievement", rule.Key)
	}
}

func (r *Run) achievementState() achievement.State {
	s := achievement.State{
		Standing:         r.moral.Standing(),
		InitialVillagers: r.initialVillagers,
		SegmentsBuilt:    r.bridge.Built(),
		ResourcesTotal:   r.resources.Total(),
		TotalDisplaced:   r.moral.TotalDisplaced(),
		FloodTimer:       r.flood.Timer,
	}
	if r.result != nil {
		s.Final = true
		s.Escaped = r.result.Escaped
		s.VillagersSaved = r.result.VillagersSaved
	}
	return s
}

// reject counts a refused operation and passes the error through.
func (r *Run) reject(op string, err error) error {
	r.cfg.Metrics.RecordRejected(op)
	return err
}

func (r *Run) logEvent(category, description string) {
	r.log = append(r.log, Event{Tick: r.tick, Time: r.elapsed, Description: description, Category: category})
	if over := len(r.log) - MaxLogEvents; over > 0 {
		r.log = append([]Event(nil), r.log[over:]...)
	}
}

// Events returns up to n most recent log entries, oldest first.
func (r *Run) Events(n int) []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	if n <= 0 || n > len(r.log) {
		n = len(r.log)
	}
	return append([]Event(nil), r.log[len(r.log)-n:]...)
}

func sign(v int) int {
	switch {
	case v > 0:
		return 1
	case v < 0:
		return -1
	default:
		return 0
	}
}
