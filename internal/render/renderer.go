// Package render draws gamepad state onto per-slot skin canvases.
//
// The Renderer is driven from a single goroutine: Submit hands it the
// latest change batch and Tick renders one frame. Skins load in the
// background; a slot whose skin is not loaded yet is simply skipped until
// a later tick sees it ready.
package render

import (
	"image"
	"time"

	"github.com/soar/padview/internal/diag"
	"github.com/soar/padview/internal/gamepad"
	"github.com/soar/padview/internal/logger"
	"github.com/soar/padview/internal/mapping"
	"github.com/soar/padview/internal/metrics"
	"github.com/soar/padview/internal/skin"
)

// SkinSource loads skins by directory name.
type SkinSource interface {
	Acquire(dirname string) (*skin.Skin, error)
}

// DirResolver picks the skin directory for a device.
type DirResolver interface {
	Resolve(fingerprint string, joystick bool) string
}

// Publisher receives rendered slot frames. img is reused by the renderer
// and only valid for the duration of the call.
type Publisher interface {
	PublishFrame(slot int, img *image.RGBA)
	ClearSlot(slot int)
}

// Renderer owns the skin slots.
type Renderer struct {
	skins    SkinSource
	dirs     DirResolver
	mappings mapping.Resolver
	pub      Publisher
	sink     diag.Sink
	fade     *Fade

	slots [gamepad.Slots]*Slot

	pending       mapping.Batch
	renderPending bool
	frame         uint64
}

// NewRenderer creates a Renderer with the default fade schedule.
func NewRenderer(skins SkinSource, dirs DirResolver, mappings mapping.Resolver, pub Publisher, sink diag.Sink) *Renderer {
	return &Renderer{
		skins:    skins,
		dirs:     dirs,
		mappings: mappings,
		pub:      pub,
		sink:     sink,
		fade:     NewFade(DefaultFadeOptions()),
	}
}

// SetFade replaces the fade schedule. Elements already fading continue
// from their current alpha.
func (r *Renderer) SetFade(f *Fade) {
	r.fade = f
}

// Submit queues a batch for the next Tick. A batch still waiting from an
// earlier Submit is replaced and counted as dropped; Submit reports false
// in that case.
func (r *Renderer) Submit(b mapping.Batch) bool {
	dropped := r.renderPending
	if dropped {
		metrics.BatchesDropped.Inc()
	}
	r.pending = b
	r.renderPending = true
	return !dropped
}

// Tick renders one frame. Slots are processed in index order, each one
// completely before the next.
func (r *Renderer) Tick(now time.Time) {
	r.frame++

	var batch *mapping.Batch
	if r.renderPending {
		b := r.pending
		batch = &b
		r.pending = mapping.Batch{}
		r.renderPending = false
	}

	for i := range r.slots {
		r.tickSlot(i, batch, now)
	}
}

func (r *Renderer) tickSlot(i int, batch *mapping.Batch, now time.Time) {
	defer func() {
		if p := recover(); p != nil {
			metrics.RenderErrors.Inc()
			r.sink.Announce(diag.Error, "Rendering slot %d crashed: %v", i, p)
			r.teardown(i)
		}
	}()

	var c *mapping.Change
	if batch != nil {
		c = batch[i]
		if c == nil {
			r.teardown(i)
			return
		}
		if s := r.slots[i]; s == nil || s.fingerprint != c.ID.GamepadID {
			r.teardown(i)
			r.setup(i, c)
		}
		r.slots[i].last = c
	}

	s := r.slots[i]
	if s == nil {
		return
	}

	var (
		err  error
		kind string
	)
	switch s.state {
	case Loading:
		if !r.finishLoading(s) {
			return
		}
		if err = s.fullRender(now); err == nil && c != nil {
			err = s.incremental(c, now, r.frame, r.fade)
		}
		kind = metrics.RenderFull
	case Ready:
		if c != nil {
			err, kind = s.incremental(c, now, r.frame, r.fade), metrics.RenderIncremental
		} else {
			err, kind = s.fadeTick(now, r.frame, r.fade), metrics.RenderFade
		}
	default:
		return
	}

	if err != nil {
		r.fail(s, err)
		return
	}
	if s.dirty {
		metrics.SlotRenders.WithLabelValues(kind).Inc()
		r.pub.PublishFrame(i, s.composite())
	}
}

// setup binds a new device to slot i and starts loading its skin.
func (r *Renderer) setup(i int, c *mapping.Change) {
	fp := c.ID.GamepadID
	joystick := r.mappings.Resolve(fp).Properties.Has(mapping.JoystickProp)
	s := &Slot{
		index:       i,
		state:       Loading,
		fingerprint: fp,
		joystick:    joystick,
		dir:         r.dirs.Resolve(fp, joystick),
		last:        c,
	}
	r.slots[i] = s

	sk, err := r.skins.Acquire(s.dir)
	if err != nil {
		s.state = Failed
		return
	}
	s.skin = sk
	logger.Infof("Slot %d: %s (%s) using skin %q", i, c.ID.Name, fp, s.dir)
}

// finishLoading moves a loading slot on once its skin finished loading. It
// reports whether the slot is ready to draw.
func (r *Renderer) finishLoading(s *Slot) bool {
	if !s.skin.Loaded() {
		if s.skin.Err() != nil {
			// the store already announced it
			s.state = Failed
		}
		return false
	}
	if err := s.build(); err != nil {
		s.state = Failed
		metrics.RenderErrors.Inc()
		r.sink.Announce(diag.Error, "Skin %q cannot be used: %v", s.dir, err)
		return false
	}
	s.state = Ready
	return true
}

// fail reports a render error once per slot and leaves the slot undrawn
// for this frame.
func (r *Renderer) fail(s *Slot, err error) {
	metrics.RenderErrors.Inc()
	logger.Errorf("Slot %d render failed: %v", s.index, err)
	if !s.reported {
		s.reported = true
		r.sink.Announce(diag.Error, "Slot %d could not be drawn: %v", s.index, err)
	}
}

func (r *Renderer) teardown(i int) {
	if r.slots[i] == nil {
		return
	}
	r.slots[i] = nil
	r.pub.ClearSlot(i)
}

// resetup reloads slot i for the same device, re-resolving its skin.
func (r *Renderer) resetup(i int) {
	s := r.slots[i]
	if s == nil || s.last == nil {
		return
	}
	last := s.last
	r.teardown(i)
	r.setup(i, last)
}

// Reassign reloads every slot showing the device with fingerprint, after
// its skin or mapping selection changed.
func (r *Renderer) Reassign(fingerprint string) {
	for i, s := range r.slots {
		if s != nil && s.fingerprint == fingerprint {
			r.resetup(i)
		}
	}
}

// ReassignAll reloads every occupied slot.
func (r *Renderer) ReassignAll() {
	for i := range r.slots {
		r.resetup(i)
	}
}

// ReloadSkin reloads every slot using dirname, including slots whose
// earlier load of it failed.
func (r *Renderer) ReloadSkin(dirname string) {
	for i, s := range r.slots {
		if s != nil && s.dir == dirname {
			r.resetup(i)
		}
	}
}

// Status returns a view of all slots.
func (r *Renderer) Status() [gamepad.Slots]Status {
	var out [gamepad.Slots]Status
	for i, s := range r.slots {
		if s == nil {
			out[i] = Status{Index: i, State: Empty}
			continue
		}
		out[i] = s.status()
	}
	return out
}
