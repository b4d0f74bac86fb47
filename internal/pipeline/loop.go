// Package pipeline runs the frame loop: the latest raw snapshot goes
// through the mapping engine, the resulting batch goes to the renderer,
// and the renderer draws one frame. Everything happens on the loop's own
// goroutine; other goroutines reach the engine and renderer through Do.
package pipeline

import (
	"context"
	"time"

	"github.com/soar/padview/internal/gamepad"
	"github.com/soar/padview/internal/logger"
	"github.com/soar/padview/internal/mapping"
	"github.com/soar/padview/internal/metrics"
)

// Processor turns snapshots into change batches.
type Processor interface {
	ProcessFrame(s gamepad.Snapshot) (mapping.Batch, bool)
}

// Renderer consumes batches and draws frames.
type Renderer interface {
	Submit(b mapping.Batch) bool
	Tick(now time.Time)
}

// ChangeListener receives every published batch. It must not block.
type ChangeListener interface {
	PublishChanges(b mapping.Batch)
}

// Loop is the frame loop.
type Loop struct {
	frames   *gamepad.Mailbox
	engine   Processor
	renderer Renderer
	changes  ChangeListener
	interval time.Duration
	now      func() time.Time

	commands chan func()
	dropped  uint64
	occupied bool
}

// NewLoop creates a loop ticking fps times a second. changes may be nil.
func NewLoop(frames *gamepad.Mailbox, engine Processor, renderer Renderer, changes ChangeListener, fps int) *Loop {
	if fps <= 0 {
		fps = 60
	}
	return &Loop{
		frames:   frames,
		engine:   engine,
		renderer: renderer,
		changes:  changes,
		interval: time.Second / time.Duration(fps),
		now:      time.Now,
		commands: make(chan func(), 64),
	}
}

// Run ticks until ctx is cancelled.
func (l *Loop) Run(ctx context.Context) error {
	logger.Infof("Frame loop running every %v", l.interval)
	ticker := time.NewTicker(l.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Infof("Frame loop stopped")
			return nil
		case <-ticker.C:
			l.Tick()
		case fn := <-l.commands:
			fn()
		}
	}
}

// Tick runs one frame: at most one snapshot is processed.
func (l *Loop) Tick() {
	start := l.now()
	if s, ok := l.frames.Take(); ok {
		batch, occupied := l.engine.ProcessFrame(s)
		switch {
		case occupied:
			metrics.BatchesPublished.Inc()
			l.renderer.Submit(batch)
			if l.changes != nil {
				l.changes.PublishChanges(batch)
			}
		case l.occupied:
			// the last device left: the renderer still has to tear down
			l.renderer.Submit(batch)
		}
		l.occupied = occupied
	}
	l.renderer.Tick(start)

	if d := l.frames.Dropped(); d > l.dropped {
		metrics.SnapshotsDropped.Add(float64(d - l.dropped))
		l.dropped = d
	}
	metrics.TickDuration.Observe(l.now().Sub(start).Seconds())
}

// Do runs fn on the loop goroutine between two ticks and waits for it.
// It returns ctx's error if the loop does not pick fn up in time.
func (l *Loop) Do(ctx context.Context, fn func()) error {
	done := make(chan struct{})
	select {
	case l.commands <- func() { defer close(done); fn() }:
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
