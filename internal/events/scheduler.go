package events

import (
	"fmt"
	"time"

	"github.com/talgya/bridge-keeper/internal/economy"
	"github.com/talgya/bridge-keeper/internal/entropy"
	"github.com/talgya/bridge-keeper/internal/flood"
	"github.com/talgya/bridge-keeper/internal/moral"
	"github.com/talgya/bridge-keeper/internal/notify"
)

// Timing holds the scheduler's delay ranges in whole seconds.
type Timing struct {
	FirstMin, FirstMax int
	NextMin, NextMax   int
	ActiveSeconds      float64
}

// DefaultTiming is first event in [30,60] s, then every [45,90] s, shown for 5 s.
func DefaultTiming() Timing {
	return Timing{FirstMin: 30, FirstMax: 60, NextMin: 45, NextMax: 90, ActiveSeconds: 5}
}

// Targets are the components an event may change.
type Targets struct {
	Resources *economy.Ledger
	Flood     *flood.Clock
	Moral     *moral.Ledger
}

// Scheduler counts down to the next event and applies it when due.
type Scheduler struct {
	timing Timing
	rng    *entropy.Seeded

	delay           float64
	active          *Event
	activeRemaining float64
	fired           int

	// Messages holds the event notifications, newest last.
	Messages *notify.Queue
}

// NewScheduler draws the first delay from rng.
func NewScheduler(timing Timing, rng *entropy.Seeded, messages *notify.Queue) *Scheduler {
	if messages == nil {
		messages = notify.NewQueue(3, 5*time.Second)
	}
	s := &Scheduler{timing: timing, rng: rng, Messages: messages}
	s.delay = float64(entropy.Between(rng, timing.FirstMin, timing.FirstMax))
	return s
}

// Tick advances the schedule by dt. When the delay runs out one catalog event
// is drawn, applied to t and returned; otherwise Tick returns nil.
func (s *Scheduler) Tick(dt float64, t Targets, now time.Time) *Event {
	var fired *Event

	s.delay -= dt
	if s.delay <= 0 {
		ev := Catalog[s.rng.IntN(len(Catalog))]
		s.Apply(ev, t, now)
		s.active = &ev
		s.activeRemaining = s.timing.ActiveSeconds
		s.fired++
		s.delay = float64(entropy.Between(s.rng, s.timing.NextMin, s.timing.NextMax))
		fired = &ev
	}

	if s.active != nil {
		s.activeRemaining -= dt
		if s.activeRemaining <= 0 {
			s.active = nil
			s.activeRemaining = 0
		}
	}
	return fired
}

// Apply performs ev's effect immediately and posts its notifications.
func (s *Scheduler) Apply(ev Event, t Targets, now time.Time) {
	switch ev.Effect {
	case ResourceBonus:
		t.Resources.Add(ev.Materials)
	case ResourceLoss:
		t.Resources.Remove(ev.Materials)
	case TimePenalty:
		t.Flood.Penalize(float64(ev.Amount))
	case MoralBonus:
		t.Moral.Bonus(ev.Amount, ev.Description, now)
	}

	s.Messages.Push(notify.Message{Text: effectText(ev), Color: "gold", Timestamp: now})
	s.Messages.Push(notify.Message{
		Text:      fmt.Sprintf("Event: %s - %s", ev.Name, ev.Description),
		Color:     ev.Color,
		Timestamp: now,
	})
}

// Active returns the event on display, if any.
func (s *Scheduler) Active() (Event, bool) {
	if s.active == nil {
		return Event{}, false
	}
	return *s.active, true
}

// Fired returns how many events have fired this run.
func (s *Scheduler) Fired() int { return s.fired }

// State is the serialisable form of a scheduler.
type State struct {
	Delay           float64          `json:"delay"`
	Active          string           `json:"active,omitempty"`
	ActiveRemaining float64          `json:"active_remaining"`
	Fired           int              `json:"fired"`
	RNG             []byte           `json:"rng"`
	Messages        []notify.Message `json:"messages"`
}

// State captures everything needed to resume the schedule exactly.
func (s *Scheduler) State() (State, error) {
	rng, err := s.rng.MarshalBinary()
	if err != nil {
		return State{}, fmt.Errorf("event rng: %w", err)
	}
	st := State{
		Delay:           s.delay,
		ActiveRemaining: s.activeRemaining,
		Fired:           s.fired,
		RNG:             rng,
		Messages:        s.Messages.Messages(),
	}
	if s.active != nil {
		st.Active = s.active.Name
	}
	return st, nil
}

// RestoreScheduler rebuilds a scheduler from a saved State.
func RestoreScheduler(timing Timing, st State, messages *notify.Queue) (*Scheduler, error) {
	rng := &entropy.Seeded{}
	if err := rng.UnmarshalBinary(st.RNG); err != nil {
		return nil, err
	}
	if messages == nil {
		messages = notify.NewQueue(3, 5*time.Second)
	}
	messages.Restore(st.Messages)

	s := &Scheduler{
		timing:          timing,
		rng:             rng,
		delay:           st.Delay,
		activeRemaining: st.ActiveRemaining,
		fired:           st.Fired,
		Messages:        messages,
	}
	if st.Active != "" {
		ev, ok := Lookup(st.Active)
		if !ok {
			return nil, fmt.Errorf("unknown active event %q", st.Active)
		}
		s.active = &ev
	}
	return s, nil
}
