// Day and night over the village. Purely cosmetic.

package engine

import "math"

// DayLength is the length of a full day in simulated seconds.
const DayLength = 300.0

// Day phases.
const (
	PhaseNight = "Night"
	PhaseDawn  = "Dawn"
	PhaseDay   = "Day"
	PhaseDusk  = "Dusk"
)

// DayCycle tracks time of day in [0, 1): 0 is midnight, 0.5 is noon.
type DayCycle struct {
	TimeOfDay float64 `json:"time_of_day"`
}

// NewDayCycle starts in the morning.
func NewDayCycle() *DayCycle {
	return &DayCycle{TimeOfDay: 0.3}
}

// Advance moves the clock forward by dt seconds.
func (d *DayCycle) Advance(dt float64) {
	d.TimeOfDay = math.Mod(d.TimeOfDay+dt/DayLength, 1)
	if d.TimeOfDay < 0 {
		d.TimeOfDay += 1
	}
}

// Phase names the current part of the day.
func (d *DayCycle) Phase() string {
	switch t := d.TimeOfDay; {
	case t < 0.2 || t >= 0.85:
		return PhaseNight
	case t < 0.3:
		return PhaseDawn
	case t < 0.75:
		return PhaseDay
	default:
		return PhaseDusk
	}
}

// Light returns ambient brightness in [0.2, 1], brightest at noon.
func (d *DayCycle) Light() float64 {
	return 0.6 - 0.4*math.Cos(2*math.Pi*d.TimeOfDay)
}
