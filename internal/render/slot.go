package render

import (
	"image"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"

	"github.com/soar/padview/internal/canvas"
	"github.com/soar/padview/internal/mapping"
	"github.com/soar/padview/internal/skin"
)

// ErrNotReady is returned when a slot is asked to draw without its canvas
// or sprites.
var ErrNotReady = errors.New("slot not ready to draw")

// State of a skin slot.
type State int

const (
	Empty State = iota
	Loading
	Ready
	Failed
)

func (s State) String() string {
	switch s {
	case Empty:
		return "empty"
	case Loading:
		return "loading"
	case Ready:
		return "ready"
	case Failed:
		return "failed"
	}
	return "unknown"
}

// MarshalText encodes the state by name.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// element is the runtime state of one stick or button of a skin.
type element struct {
	key   skin.Key
	layer *canvas.Layer
	fps   int

	clear, on, off []*op

	// present is false when the device lacks the element; it is then
	// neither drawn nor faded.
	present bool

	active     bool
	lastActive time.Time
	alpha      float64
	value      Value
	cleared    bool
}

// Slot binds one gamepad index to a device and its skin.
type Slot struct {
	index       int
	state       State
	primed      bool
	fingerprint string
	joystick    bool
	dir         string

	skin     *skin.Skin
	layers   []*canvas.Layer
	elements []*element
	frame    *image.RGBA
	dirty    bool
	reported bool

	last *mapping.Change
}

// build creates the canvases and binds every instruction to its
// primitive. All problems are reported together.
func (s *Slot) build() error {
	cfg := s.skin.Config
	s.layers = make([]*canvas.Layer, len(cfg.Layers))
	for i, l := range cfg.Layers {
		s.layers[i] = canvas.NewLayer(l.X, l.Y, l.Width, l.Height)
	}
	w, h := cfg.Size()
	s.frame = image.NewRGBA(image.Rect(0, 0, w, h))

	var result *multierror.Error
	compileAll := func(k skin.Key, seq []skin.Instruction) []*op {
		ops := make([]*op, 0, len(seq))
		for _, in := range seq {
			o, err := compile(in, len(s.skin.Sprites))
			if err != nil {
				result = multierror.Append(result, errors.Wrapf(err, "%s", k))
				continue
			}
			ops = append(ops, o)
		}
		return ops
	}

	s.elements = s.elements[:0]
	for _, k := range cfg.Elements() {
		el := cfg.Element(k)
		s.elements = append(s.elements, &element{
			key:   k,
			layer: s.layers[el.Layer],
			fps:   el.FPS,
			clear: compileAll(k, el.Clear),
			on:    compileAll(k, el.On),
			off:   compileAll(k, el.Off),
			alpha: 1,
		})
	}
	s.applyLayout()
	return result.ErrorOrNil()
}

// applyLayout marks which elements the current device has.
func (s *Slot) applyLayout() {
	if s.last == nil {
		return
	}
	for _, el := range s.elements {
		el.present = present(s.last, el.key)
	}
}

func present(c *mapping.Change, k skin.Key) bool {
	switch k.Group {
	case skin.GroupSticks:
		switch k.Name {
		case "left":
			return c.Layout.Left
		case "right":
			return c.Layout.Right
		}
	case skin.GroupDpad:
		return c.Layout.Dpad
	case skin.GroupFace:
		_, ok := c.Buttons.Face[k.Name]
		return ok
	case skin.GroupShoulder:
		_, ok := c.Buttons.Shoulder[k.Name]
		return ok
	}
	return false
}

// draw clears the element and draws its on or off state.
func (s *Slot) draw(el *element, on bool) error {
	if len(s.layers) == 0 || s.skin == nil {
		return ErrNotReady
	}
	env := &Env{
		Layer:   el.layer,
		Sprites: s.skin.Sprites,
		Value:   el.value,
		Alpha:   el.alpha,
	}
	state := el.off
	if on {
		state = el.on
	}
	for _, seq := range [][]*op{el.clear, state} {
		for _, o := range seq {
			if err := o.run(env); err != nil {
				return errors.Wrapf(err, "%s", el.key)
			}
		}
	}
	s.dirty = true
	return nil
}

// wipe runs only the element's clear instructions.
func (s *Slot) wipe(el *element) error {
	if len(s.layers) == 0 || s.skin == nil {
		return ErrNotReady
	}
	env := &Env{Layer: el.layer, Sprites: s.skin.Sprites, Value: el.value}
	for _, o := range el.clear {
		if err := o.run(env); err != nil {
			return errors.Wrapf(err, "%s", el.key)
		}
	}
	s.dirty = true
	return nil
}

// fullRender draws every present element in its off state and primes the
// state the fade logic works from.
func (s *Slot) fullRender(now time.Time) error {
	if len(s.layers) == 0 {
		return ErrNotReady
	}
	for _, l := range s.layers {
		l.Clear()
	}
	for _, el := range s.elements {
		if !el.present {
			continue
		}
		el.active = false
		el.lastActive = now
		el.alpha = 1
		el.cleared = false
		el.value = Value{}
		if err := s.draw(el, false); err != nil {
			return err
		}
	}
	s.primed = true
	s.dirty = true
	return nil
}

// incremental applies one change: changed elements are redrawn at full
// strength when active, everything else follows the fade schedule.
func (s *Slot) incremental(c *mapping.Change, now time.Time, frame uint64, fade *Fade) error {
	if !s.primed {
		return ErrNotReady
	}
	var result *multierror.Error
	for _, el := range s.elements {
		if !el.present {
			continue
		}
		v, active, changed := changeFor(c, el)
		if !changed {
			// keep the resting position for the next fade redraw
			if sc := stickFor(c, el); sc != nil {
				el.value = stickValue(sc)
			}
			if err := s.idle(el, now, frame, fade); err != nil {
				result = multierror.Append(result, err)
			}
			continue
		}

		el.value = v
		el.active = active
		if active {
			el.lastActive = now
			el.alpha = 1
			el.cleared = false
		}
		if err := s.draw(el, v.Pressed); err != nil {
			result = multierror.Append(result, err)
		}
	}
	return result.ErrorOrNil()
}

// fadeTick runs the fade schedule on every element.
func (s *Slot) fadeTick(now time.Time, frame uint64, fade *Fade) error {
	if !s.primed {
		return ErrNotReady
	}
	var result *multierror.Error
	for _, el := range s.elements {
		if !el.present {
			continue
		}
		if err := s.idle(el, now, frame, fade); err != nil {
			result = multierror.Append(result, err)
		}
	}
	return result.ErrorOrNil()
}

// idle handles an element without a change this frame. Held elements stay
// bright; the rest dim at their sampling rate and are only redrawn when
// their alpha moved.
func (s *Slot) idle(el *element, now time.Time, frame uint64, fade *Fade) error {
	if el.active {
		el.lastActive = now
		return nil
	}
	if el.cleared || frame%period(tierOf(el.fps)) != 0 {
		return nil
	}

	elapsed := float64(now.Sub(el.lastActive)) / float64(time.Millisecond)
	alpha, st := fade.Step(el.alpha, elapsed, el.fps)
	if st.Clear {
		el.alpha = 0
		el.cleared = true
		return s.wipe(el)
	}
	if alpha == el.alpha {
		return nil
	}
	el.alpha = alpha
	return s.draw(el, false)
}

// changeFor extracts the element's part of a change. changed is false when
// the change says nothing significant about the element. An inactive stick
// only counts when it just stopped being active, so jitter inside the
// deadzone does not hold off the fade.
func changeFor(c *mapping.Change, el *element) (v Value, active, changed bool) {
	switch el.key.Group {
	case skin.GroupSticks:
		sc := stickFor(c, el)
		if sc == nil || !(sc.Active || sc.Active != el.active) {
			return Value{}, false, false
		}
		return stickValue(sc), sc.Active, true

	case skin.GroupDpad:
		d := c.Buttons.Dpad
		if d == nil {
			return Value{}, false, false
		}
		var bc mapping.ButtonChange
		switch el.key.Name {
		case "up":
			bc = d.Up
		case "down":
			bc = d.Down
		case "left":
			bc = d.Left
		case "right":
			bc = d.Right
		default:
			return Value{}, false, false
		}
		// a released direction that was already released is only filler
		if bc.Value == 0 && bc.Delta == 0 {
			return Value{}, false, false
		}
		return buttonValue(&bc)

	case skin.GroupFace:
		if bc := c.Buttons.Face[el.key.Name]; bc != nil {
			return buttonValue(bc)
		}
	case skin.GroupShoulder:
		if bc := c.Buttons.Shoulder[el.key.Name]; bc != nil {
			return buttonValue(bc)
		}
	}
	return Value{}, false, false
}

func stickFor(c *mapping.Change, el *element) *mapping.StickChange {
	if el.key.Group != skin.GroupSticks {
		return nil
	}
	switch el.key.Name {
	case "left":
		return c.Sticks.Left
	case "right":
		return c.Sticks.Right
	}
	return nil
}

func stickValue(sc *mapping.StickChange) Value {
	v := Value{X: sc.X, Y: sc.Y}
	if sc.Button != nil {
		v.Button = *sc.Button
	}
	if sc.Pressed != nil {
		v.Pressed = *sc.Pressed
	}
	return v
}

func buttonValue(bc *mapping.ButtonChange) (Value, bool, bool) {
	pressed := bc.Value > 0
	return Value{Button: bc.Value, Pressed: pressed}, pressed, true
}

// composite flattens the layers into the slot frame.
func (s *Slot) composite() *image.RGBA {
	canvas.Composite(s.frame, s.layers)
	s.dirty = false
	return s.frame
}

// Status is a read-only view of a slot.
type Status struct {
	Index       int    `json:"index"`
	State       State  `json:"state"`
	Fingerprint string `json:"fingerprint,omitempty"`
	Name        string `json:"name,omitempty"`
	Skin        string `json:"skin,omitempty"`
}

func (s *Slot) status() Status {
	st := Status{Index: s.index, State: s.state, Fingerprint: s.fingerprint, Skin: s.dir}
	if s.last != nil {
		st.Name = s.last.ID.Name
	}
	return st
}
