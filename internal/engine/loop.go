// Package engine drives frames: it owns the live parameters and viewport,
// renders each frame from a fresh snapshot and exports finished frames.
package engine

import (
	"context"
	"log/slog"
	"math"
	"sync"
	"sync/atomic"
	"time"
)

// Loop defaults.
const (
	DefaultFPS      = 30
	ReportEverySecs = 10 // OnReport fires once per this many seconds of frames
	MaxSpeed        = 10 // Upper bound for SetSpeed
)

// Loop calls OnFrame at a fixed interval until its context is cancelled.
// A frame always runs to completion; cancellation is only observed
// between frames.
type Loop struct {
	Frame    uint64        // Frames run so far (monotonic)
	Interval time.Duration // Target time between frame starts

	// Callbacks, populated during setup.
	OnFrame  func(frame uint64) // Every frame
	OnReport func(frame uint64) // Every ReportEvery frames

	ReportEvery uint64

	speed    atomic.Uint64 // float64 bits; multiplier, 1.0 = nominal rate, 0 = paused
	stop     chan struct{}
	stopOnce sync.Once
}

// NewLoop creates a loop running at fps frames per second.
func NewLoop(fps int) *Loop {
	if fps <= 0 {
		fps = DefaultFPS
	}
	l := &Loop{
		Interval:    time.Second / time.Duration(fps),
		ReportEvery: uint64(fps * ReportEverySecs),
		stop:        make(chan struct{}),
	}
	l.SetSpeed(1)
	return l
}

// Speed returns the rate multiplier. Zero means paused.
func (l *Loop) Speed() float64 {
	return math.Float64frombits(l.speed.Load())
}

// SetSpeed sets the rate multiplier, clamped to [0, MaxSpeed]. It may be
// called while Run is active; the change applies from the next frame.
func (l *Loop) SetSpeed(v float64) float64 {
	if math.IsNaN(v) || v < 0 {
		v = 0
	}
	v = min(v, MaxSpeed)
	l.speed.Store(math.Float64bits(v))
	return v
}

// Stop makes Run return after the current frame. Safe to call more than once.
func (l *Loop) Stop() {
	l.stopOnce.Do(func() { close(l.stop) })
}

// Run blocks, stepping frames until ctx is done or Stop is called.
func (l *Loop) Run(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		select {
		case <-l.stop:
			cancel()
		case <-ctx.Done():
		}
	}()

	slog.Info("frame loop started", "frame", l.Frame, "interval", l.Interval)
	defer func() { slog.Info("frame loop stopped", "frame", l.Frame) }()

	for {
		if ctx.Err() != nil {
			return
		}
		speed := l.Speed()
		if speed <= 0 {
			// Paused; sleep briefly and check again.
			if !sleep(ctx, 100*time.Millisecond) {
				return
			}
			continue
		}

		start := time.Now()
		l.step()

		// Sleep for the remainder of the interval, adjusted for speed.
		elapsed := time.Since(start)
		target := time.Duration(float64(l.Interval) / speed)
		if elapsed < target {
			if !sleep(ctx, target-elapsed) {
				return
			}
		}
	}
}

// step advances by one frame.
func (l *Loop) step() {
	l.Frame++

	if l.OnFrame != nil {
		l.OnFrame(l.Frame)
	}
	if l.ReportEvery > 0 && l.Frame%l.ReportEvery == 0 && l.OnReport != nil {
		l.OnReport(l.Frame)
	}
}

// sleep waits for d or until ctx is done; it reports whether the full
// duration elapsed.
func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}
