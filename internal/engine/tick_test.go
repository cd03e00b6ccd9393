package engine

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestStepCallbacks(t *testing.T) {
	e := NewEngine()
	var frames int
	var dts []float64
	var seconds []uint64
	e.OnFrame = func(frame uint64, dt float64) {
		frames++
		dts = append(dts, dt)
	}
	e.OnSecond = func(frame uint64) { seconds = append(seconds, frame) }

	for i := 0; i < 2*FramesPerSecond; i++ {
		e.Step()
	}
	assert.Equal(t, 120, frames)
	assert.InDelta(t, 1.0/60, dts[0], 1e-6)
	assert.Equal(t, []uint64{60, 120}, seconds)
}

func TestRunStops(t *testing.T) {
	e := NewEngine()
	e.Interval = time.Millisecond
	done := make(chan struct{})
	e.OnFrame = func(frame uint64, dt float64) {
		if frame == 5 {
			e.Stop()
		}
	}
	go func() {
		e.Run()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("engine did not stop")
	}
	assert.False(t, e.Running())
	assert.GreaterOrEqual(t, e.Frame(), uint64(5))
}

func TestSpeed(t *testing.T) {
	e := NewEngine()
	assert.Equal(t, 1.0, e.Speed())
	e.SetSpeed(2.5)
	assert.Equal(t, 2.5, e.Speed())
	e.SetSpeed(0)
	assert.Zero(t, e.Speed())
}

func TestRunTime(t *testing.T) {
	assert.Equal(t, "0:00", RunTime(59))
	assert.Equal(t, "2:05", RunTime(125*FramesPerSecond))
}

func TestDayCycle(t *testing.T) {
	d := NewDayCycle()
	assert.Equal(t, PhaseDay, d.Phase())

	d.Advance(150) // +0.5
	assert.InDelta(t, 0.8, d.TimeOfDay, 1e-9)
	assert.Equal(t, PhaseDusk, d.Phase())

	d.Advance(90) // wraps past midnight
	assert.InDelta(t, 0.1, d.TimeOfDay, 1e-9)
	assert.Equal(t, PhaseNight, d.Phase())

	assert.InDelta(t, 1.0, (&DayCycle{TimeOfDay: 0.5}).Light(), 1e-9)
	assert.InDelta(t, 0.2, (&DayCycle{}).Light(), 1e-9)
}

func TestFakeClock(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	c := NewFakeClock(start)
	c.Advance(time.Minute)
	assert.Equal(t, start.Add(time.Minute), c.Now())
	c.Set(start)
	assert.Equal(t, start, c.Now())
}
