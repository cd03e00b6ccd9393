// Package engine runs the flood simulation: the fixed-timestep loop, the run
// state machine and the session that HTTP handlers read from.
package engine

import (
	"fmt"
	"log/slog"
	"math"
	"sync/atomic"
	"time"
)

// FramesPerSecond is the fixed simulation rate.
const FramesPerSecond = 60

// Engine drives the simulation forward at a fixed timestep.
type Engine struct {
	Interval time.Duration // Wall-clock frame interval at speed 1

	frame   atomic.Uint64 // Monotonic, never resets
	speed   atomic.Uint64 // float64 bits; 1.0 = real-time, 0 = paused
	running atomic.Bool

	// Callbacks, populated during setup.
	OnFrame  func(frame uint64, dt float64) // Every frame, dt in simulated seconds
	OnSecond func(frame uint64)             // Every FramesPerSecond frames
}

// NewEngine creates an engine running at 60 frames per second.
func NewEngine() *Engine {
	e := &Engine{Interval: time.Second / FramesPerSecond}
	e.SetSpeed(1.0)
	return e
}

// Frame returns the current frame counter.
func (e *Engine) Frame() uint64 { return e.frame.Load() }

// Speed returns the frame rate multiplier.
func (e *Engine) Speed() float64 { return math.Float64frombits(e.speed.Load()) }

// SetSpeed changes the frame rate multiplier. Safe to call while Run is looping.
func (e *Engine) SetSpeed(v float64) { e.speed.Store(math.Float64bits(v)) }

// Run starts the loop. Blocks until Stop() is called.
func (e *Engine) Run() {
	e.running.Store(true)
	slog.Info("simulation engine started", "frame", e.Frame(), "speed", e.Speed())

	for e.running.Load() {
		speed := e.Speed()
		if speed <= 0 {
			// Paused: sleep briefly and check again.
			time.Sleep(100 * time.Millisecond)
			continue
		}

		start := time.Now()

		e.Step()

		// Sleep for the remainder of the frame, adjusted for speed.
		elapsed := time.Since(start)
		target := time.Duration(float64(e.Interval) / speed)
		if elapsed < target {
			time.Sleep(target - elapsed)
		}
	}

	slog.Info("simulation engine stopped", "frame", e.Frame())
}

// Stop halts the loop.
func (e *Engine) Stop() {
	e.running.Store(false)
}

// Running reports whether Run is looping.
func (e *Engine) Running() bool { return e.running.Load() }

// Step advances the simulation by one frame. The simulated dt is always the
// base interval; Speed only changes how often frames happen.
func (e *Engine) Step() {
	frame := e.frame.Add(1)

	if e.OnFrame != nil {
		e.OnFrame(frame, e.Interval.Seconds())
	}

	if frame%FramesPerSecond == 0 && e.OnSecond != nil {
		e.OnSecond(frame)
	}
}

// RunTime formats a frame count as minutes and seconds of simulated time.
func RunTime(frame uint64) string {
	secs := frame / FramesPerSecond
	return fmt.Sprintf("%d:%02d", secs/60, secs%60)
}
