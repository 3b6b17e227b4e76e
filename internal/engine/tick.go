// Package engine provides the crowd walker simulation and the frame loop
// that drives it.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// DefaultFPS matches a typical display refresh.
const DefaultFPS = 60

// Engine drives the simulation forward at a fixed frame rate, standing in
// for the host's display refresh callback.
type Engine struct {
	FPS int // Frames per real second at speed 1

	tick    atomic.Uint64 // Monotonic frame counter
	running atomic.Bool

	mu     sync.Mutex
	speed  float64 // Multiplier: 1.0 = real-time, 0 = paused
	stopCh chan struct{}
	once   sync.Once

	// Callbacks for each layer, populated during setup.
	OnFrame  func(tick uint64, dt float64) // Every frame
	OnSecond func(tick uint64)             // Every FPS frames
	OnMinute func(tick uint64)             // Every 60·FPS frames
}

// NewEngine creates a frame loop. fps <= 0 selects DefaultFPS.
func NewEngine(fps int) *Engine {
	if fps <= 0 {
		fps = DefaultFPS
	}
	return &Engine{
		FPS:    fps,
		speed:  1.0,
		stopCh: make(chan struct{}),
	}
}

// Tick returns the current frame counter.
func (e *Engine) Tick() uint64 {
	return e.tick.Load()
}

// SetTick restores the frame counter of a saved run. Call before Run.
func (e *Engine) SetTick(t uint64) {
	e.tick.Store(t)
}

// Speed returns the current speed multiplier.
func (e *Engine) Speed() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.speed
}

// SetSpeed changes the speed multiplier. 0 pauses the loop.
func (e *Engine) SetSpeed(v float64) {
	if v < 0 {
		v = 0
	}
	e.mu.Lock()
	e.speed = v
	e.mu.Unlock()
}

// Running reports whether Run is active.
func (e *Engine) Running() bool {
	return e.running.Load()
}

// Run starts the frame loop. Blocks until ctx is cancelled or Stop is called.
func (e *Engine) Run(ctx context.Context) {
	e.running.Store(true)
	defer e.running.Store(false)
	slog.Info("frame loop started", "tick", e.Tick(), "fps", e.FPS, "speed", e.Speed())

	interval := time.Second / time.Duration(e.FPS)
	for {
		speed := e.Speed()
		if speed <= 0 {
			// Paused; check again shortly.
			if !e.sleep(ctx, 100*time.Millisecond) {
				break
			}
			continue
		}

		start := time.Now()
		e.step()

		// Sleep for the remainder of the frame, adjusted for speed.
		elapsed := time.Since(start)
		target := time.Duration(float64(interval) / speed)
		if elapsed < target {
			if !e.sleep(ctx, target-elapsed) {
				break
			}
		} else if !e.alive(ctx) {
			break
		}
	}

	slog.Info("frame loop stopped", "tick", e.Tick())
}

// Stop halts the frame loop. Safe to call more than once.
func (e *Engine) Stop() {
	e.once.Do(func() { close(e.stopCh) })
}

// Advance runs n frames synchronously, outside the timed loop.
func (e *Engine) Advance(n int) {
	for i := 0; i < n; i++ {
		e.step()
	}
}

// step advances the loop by one frame.
func (e *Engine) step() {
	tick := e.tick.Add(1)

	if e.OnFrame != nil {
		e.OnFrame(tick, 1)
	}

	fps := uint64(e.FPS)
	if tick%fps == 0 && e.OnSecond != nil {
		e.OnSecond(tick)
	}
	if tick%(60*fps) == 0 && e.OnMinute != nil {
		e.OnMinute(tick)
	}
}

func (e *Engine) sleep(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-e.stopCh:
		return false
	case <-timer.C:
		return true
	}
}

func (e *Engine) alive(ctx context.Context) bool {
	select {
	case <-ctx.Done():
		return false
	case <-e.stopCh:
		return false
	default:
		return true
	}
}

// SimTime returns the elapsed simulated time for a frame count as
// h:mm:ss.mmm.
func SimTime(tick uint64, fps int) string {
	if fps <= 0 {
		fps = DefaultFPS
	}
	totalMillis := tick * 1000 / uint64(fps)
	millis := totalMillis % 1000
	totalSeconds := totalMillis / 1000
	seconds := totalSeconds % 60
	minutes := (totalSeconds / 60) % 60
	hours := totalSeconds / 3600

	return fmt.Sprintf("%d:%02d:%02d.%03d", hours, minutes, seconds, millis)
}
