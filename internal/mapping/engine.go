package mapping

import (
	"math"

	"github.com/soar/padview/internal/gamepad"
)

// memory holds the previous frame's values of one slot, keyed by element.
type memory struct {
	fingerprint string
	values      map[string]float64
}

func (m *memory) delta(key string, v float64) float64 {
	d := v - m.values[key]
	m.values[key] = v
	return d
}

// Engine turns raw snapshots into change batches. Apart from the previous
// frame's values it keeps no per-device state; those are dropped whenever
// a slot empties or a different device takes it.
type Engine struct {
	resolver Resolver
	mem      [gamepad.Slots]*memory
}

// NewEngine creates an Engine resolving mappings through r.
func NewEngine(r Resolver) *Engine {
	return &Engine{resolver: r}
}

// ProcessFrame converts one snapshot. The second result is false when every
// slot is empty, in which case the batch must not be published.
func (e *Engine) ProcessFrame(s gamepad.Snapshot) (Batch, bool) {
	var batch Batch
	for i, g := range s {
		if g == nil {
			e.mem[i] = nil
			continue
		}
		fp := g.Fingerprint()
		if e.mem[i] == nil || e.mem[i].fingerprint != fp {
			e.mem[i] = &memory{fingerprint: fp, values: map[string]float64{}}
		}
		batch[i] = process(g, fp, e.resolver.Resolve(fp), e.mem[i])
	}
	return batch, batch.Occupied()
}

func process(g *gamepad.Gamepad, fp string, m *Mapping, mem *memory) *Change {
	c := &Change{
		ID: ID{Name: m.Name, GamepadID: fp},
		Buttons: Buttons{
			Face:     processNamed(g, m.Face, "face.", mem),
			Shoulder: processNamed(g, m.Shoulder, "shoulder.", mem),
		},
	}
	// a synthesized stick continues from what the left stick last reported
	prevX, prevY := mem.values[leftX], mem.values[leftY]
	c.Sticks.Left = processStick(g, m.Left, "sticks.left.", mem)
	c.Sticks.Right = processStick(g, m.Right, "sticks.right.", mem)
	c.Layout = Layout{Left: c.Sticks.Left != nil, Right: c.Sticks.Right != nil}

	switch d := m.Dpad.(type) {
	case PlainDpad:
		c.Buttons.Dpad, c.Layout.Dpad = processPlainDpad(g, d, mem)
	case AxisDpad:
		v, _ := g.Axis(d.Axis)
		c.Buttons.Dpad = dpadChange(ProcessAxisDpad(v, d), mem)
		c.Layout.Dpad = true
	case AxisStickDpad:
		c.Layout.Left = true
		if active(c.Sticks.Left) || active(c.Sticks.Right) {
			break
		}
		v, _ := g.Axis(d.Axis)
		c.Sticks.Left = synthesizeStick(v, d.AxisDpad, prevX, prevY, mem)
	}
	return c
}

func active(s *StickChange) bool {
	return s != nil && s.Active
}

func processStick(g *gamepad.Gamepad, s *Stick, key string, mem *memory) *StickChange {
	if s == nil {
		return nil
	}
	x, okX := g.Axis(s.X)
	y, okY := g.Axis(s.Y)
	b, okB := g.Button(s.Button)
	if !okX && !okY && !okB {
		return nil
	}

	c := &StickChange{
		X:  x,
		Y:  y,
		DX: mem.delta(key+"x", x),
		DY: mem.delta(key+"y", y),
	}
	if okB {
		v, pressed := b.Value, b.Pressed
		c.Button, c.Pressed = &v, &pressed
	}
	c.Active = math.Abs(x) > s.Deadzone || math.Abs(y) > s.Deadzone || (c.Pressed != nil && *c.Pressed)
	return c
}

const (
	leftX = "sticks.left.x"
	leftY = "sticks.left.y"
)

// synthesizeStick reports an encoded axis as a left stick at one of the 8
// compass points, or centred. Deltas are taken against prevX and prevY, the
// left stick's values at the end of the previous frame.
func synthesizeStick(v float64, d AxisDpad, prevX, prevY float64, mem *memory) *StickChange {
	dir, ok := matchDirection(v, d)
	var x, y float64
	if ok {
		x, y = dir.Vector()
	}
	mem.values[leftX], mem.values[leftY] = x, y
	return &StickChange{
		X:      x,
		Y:      y,
		DX:     x - prevX,
		DY:     y - prevY,
		Active: x != 0 || y != 0,
	}
}

// buttonChange records the value and returns nil when the button is
// released and was released last frame too.
func buttonChange(key string, v float64, mem *memory) *ButtonChange {
	d := mem.delta(key, v)
	if v == 0 && d == 0 {
		return nil
	}
	return &ButtonChange{Value: v, Delta: d}
}

func processNamed(g *gamepad.Gamepad, names map[string]int, prefix string, mem *memory) map[string]*ButtonChange {
	out := make(map[string]*ButtonChange, len(names))
	for name, idx := range names {
		b, _ := g.Button(idx)
		out[name] = buttonChange(prefix+name, b.Value, mem)
	}
	return out
}

func processPlainDpad(g *gamepad.Gamepad, d PlainDpad, mem *memory) (*DpadChange, bool) {
	var (
		values    [4]float64
		available bool
	)
	for i, idx := range [4]int{d.Up, d.Down, d.Left, d.Right} {
		if b, ok := g.Button(idx); ok {
			values[i] = b.Value
			available = true
		}
	}
	if !available {
		return nil, false
	}
	return dpadChange(Directions{Up: values[0], Down: values[1], Left: values[2], Right: values[3]}, mem), true
}

// dpadChange returns nil when all four directions are released and were
// released last frame.
func dpadChange(dirs Directions, mem *memory) *DpadChange {
	up := buttonChange("dpad.up", dirs.Up, mem)
	down := buttonChange("dpad.down", dirs.Down, mem)
	left := buttonChange("dpad.left", dirs.Left, mem)
	right := buttonChange("dpad.right", dirs.Right, mem)
	if up == nil && down == nil && left == nil && right == nil {
		return nil
	}
	c := &DpadChange{}
	for _, p := range []struct {
		src *ButtonChange
		dst *ButtonChange
	}{{up, &c.Up}, {down, &c.Down}, {left, &c.Left}, {right, &c.Right}} {
		if p.src != nil {
			*p.dst = *p.src
		}
	}
	return c
}

// ProcessAxisDpad decodes an encoded dpad axis. A raw value of exactly 0 or
// above 1 is the hardware's neutral sentinel and never matches a direction.
func ProcessAxisDpad(v float64, d AxisDpad) Directions {
	dir, ok := matchDirection(v, d)
	if !ok {
		return Directions{}
	}
	return dir.directions()
}

func matchDirection(v float64, d AxisDpad) (Direction, bool) {
	if v == 0 || v > 1 {
		return 0, false
	}
	best, bestDist := Direction(-1), math.Inf(1)
	for dir := Direction(0); dir < numDirections; dir++ {
		if !d.Defined[dir] {
			continue
		}
		dist := math.Abs(v - d.Values[dir])
		if dist <= d.Precision && dist < bestDist {
			best, bestDist = dir, dist
		}
	}
	return best, best >= 0
}
