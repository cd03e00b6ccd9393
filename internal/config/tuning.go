package config

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Tuning holds the simulation constants that a balance file may override.
// Defaults reproduce the shipped game.
type Tuning struct {
	Screen        ScreenTuning       `yaml:"screen" json:"screen"`
	Bridge        BridgeTuning       `yaml:"bridge" json:"bridge"`
	Events        EventTuning        `yaml:"events" json:"events"`
	Notifications NotificationTuning `yaml:"notifications" json:"notifications"`
}

type ScreenTuning struct {
	Width  int `yaml:"width" json:"width"`
	Height int `yaml:"height" json:"height"`
}

type BridgeTuning struct {
	TotalSegments int `yaml:"total_segments" json:"total_segments"`
	Required      int `yaml:"required" json:"required"`
}

type EventTuning struct {
	FirstDelayMin int     `yaml:"first_delay_min" json:"first_delay_min"`
	FirstDelayMax int     `yaml:"first_delay_max" json:"first_delay_max"`
	NextDelayMin  int     `yaml:"next_delay_min" json:"next_delay_min"`
	NextDelayMax  int     `yaml:"next_delay_max" json:"next_delay_max"`
	ActiveSeconds float64 `yaml:"active_seconds" json:"active_seconds"`
}

type NotificationTuning struct {
	Max              int `yaml:"max" json:"max"`
	ConsequenceTTLms int `yaml:"consequence_ttl_ms" json:"consequence_ttl_ms"`
	EventTTLms       int `yaml:"event_ttl_ms" json:"event_ttl_ms"`
}

// DefaultTuning returns the shipped balance.
func DefaultTuning() Tuning {
	return Tuning{
		Screen: ScreenTuning{Width: 1024, Height: 768},
		Bridge: BridgeTuning{TotalSegments: 20, Required: 100},
		Events: EventTuning{
			FirstDelayMin: 30,
			FirstDelayMax: 60,
			NextDelayMin:  45,
			NextDelayMax:  90,
			ActiveSeconds: 5,
		},
		Notifications: NotificationTuning{
			Max:              3,
			ConsequenceTTLms: 3000,
			EventTTLms:       5000,
		},
	}
}

// LoadTuning reads a YAML balance file over the defaults. An empty path or a
// missing file yields the defaults.
func LoadTuning(path string) (Tuning, error) {
	t := DefaultTuning()
	if path == "" {
		return t, nil
	}

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return t, nil
	}
	if err != nil {
		return t, fmt.Errorf("read tuning: %w", err)
	}

	// Unmarshal onto the defaults so absent keys keep their shipped values.
	if err := yaml.Unmarshal(data, &t); err != nil {
		return t, fmt.Errorf("parse tuning %s: %w", path, err)
	}
	if err := t.Validate(); err != nil {
		return t, fmt.Errorf("tuning %s: %w", path, err)
	}
	return t, nil
}

// Validate rejects values the simulation cannot run with.
func (t Tuning) Validate() error {
	switch {
	case t.Screen.Width <= 0 || t.Screen.Height <= 0:
		return errors.New("screen size must be positive")
	case t.Bridge.TotalSegments <= 0:
		return errors.New("bridge.total_segments must be positive")
	case t.Bridge.Required <= 0:
		return errors.New("bridge.required must be positive")
	case t.Events.FirstDelayMin <= 0 || t.Events.FirstDelayMax < t.Events.FirstDelayMin:
		return errors.New("events first delay range is invalid")
	case t.Events.NextDelayMin <= 0 || t.Events.NextDelayMax < t.Events.NextDelayMin:
		return errors.New("events next delay range is invalid")
	case t.Events.ActiveSeconds < 0:
		return errors.New("events.active_seconds must not be negative")
	case t.Notifications.Max <= 0:
		return errors.New("notifications.max must be positive")
	}
	return nil
}
