// Package mapping translates raw gamepad reports into the device-agnostic
// change model the renderer consumes.
//
// A Mapping is compiled once from its persisted Record. Everything that
// depends on capability flags (which dpad strategy applies, which buttons
// exist) is decided there, so the per-frame Engine never re-inspects flags.
package mapping

import (
	"encoding/json"
	"sort"
)

// Property is a capability or quirk flag of a device.
type Property uint8

const (
	// AxisDpadProp: the dpad is reported on one axis encoding 8 directions.
	AxisDpadProp Property = 1 << iota
	// NoDpadProp: no literal dpad; the axis signal doubles as a stick.
	NoDpadProp
	// NoSticksProp: the device has no analog sticks.
	NoSticksProp
	// JoystickProp: arcade-stick layout.
	JoystickProp
)

var propertyNames = map[Property]string{
	AxisDpadProp: "axisdpad",
	NoDpadProp:   "nodpad",
	NoSticksProp: "nosticks",
	JoystickProp: "joystick",
}

// ParseProperty returns the flag with the given name.
func ParseProperty(name string) (Property, bool) {
	for p, n := range propertyNames {
		if n == name {
			return p, true
		}
	}
	return 0, false
}

// Properties is a set of flags.
type Properties uint8

// Has reports whether p is set.
func (ps Properties) Has(p Property) bool {
	return uint8(ps)&uint8(p) != 0
}

// With returns the set with p added.
func (ps Properties) With(p Property) Properties {
	return Properties(uint8(ps) | uint8(p))
}

// Names lists the set flags in a stable order.
func (ps Properties) Names() []string {
	names := []string{}
	for p, n := range propertyNames {
		if ps.Has(p) {
			names = append(names, n)
		}
	}
	sort.Strings(names)
	return names
}

// MarshalJSON encodes the set as a list of names.
func (ps Properties) MarshalJSON() ([]byte, error) {
	return json.Marshal(ps.Names())
}

// Direction is one of the 8 nominal directions of an encoded dpad.
type Direction int

const (
	Up Direction = iota
	UpRight
	Right
	DownRight
	Down
	DownLeft
	Left
	UpLeft
	numDirections
)

var directionNames = [numDirections]string{"up", "upright", "right", "downright", "down", "downleft", "left", "upleft"}

func (d Direction) String() string {
	if d < 0 || d >= numDirections {
		return "none"
	}
	return directionNames[d]
}

// Vector returns the direction as stick coordinates in {-1,0,1}. Y grows
// downwards like browser axes.
func (d Direction) Vector() (x, y float64) {
	switch d {
	case Up:
		return 0, -1
	case UpRight:
		return 1, -1
	case Right:
		return 1, 0
	case DownRight:
		return 1, 1
	case Down:
		return 0, 1
	case DownLeft:
		return -1, 1
	case Left:
		return -1, 0
	case UpLeft:
		return -1, -1
	}
	return 0, 0
}

// Directions holds the four dpad button values, each 0 or 1.
type Directions struct {
	Up, Down, Left, Right float64
}

func (d Direction) directions() Directions {
	x, y := d.Vector()
	var out Directions
	switch {
	case y < 0:
		out.Up = 1
	case y > 0:
		out.Down = 1
	}
	switch {
	case x < 0:
		out.Left = 1
	case x > 0:
		out.Right = 1
	}
	return out
}

// Stick describes one analog stick. Button is -1 when the stick cannot be
// clicked.
type Stick struct {
	X, Y     int
	Button   int
	Deadzone float64
}

// Dpad is the dpad decoding strategy of a device: PlainDpad, AxisDpad or
// AxisStickDpad.
type Dpad interface {
	dpad()
}

// PlainDpad reads four raw buttons. An index of -1 marks a missing button.
type PlainDpad struct {
	Up, Down, Left, Right int
}

// AxisDpad decodes one axis whose value encodes 8 directions. Values are
// matched within Precision because hardware reports them noisily.
type AxisDpad struct {
	Axis      int
	Precision float64
	Values    [numDirections]float64
	Defined   [numDirections]bool
}

// AxisStickDpad is an AxisDpad on a device without a literal dpad: the
// reading is reported as the left stick.
type AxisStickDpad struct {
	AxisDpad
}

func (PlainDpad) dpad()     {}
func (AxisDpad) dpad()      {}
func (AxisStickDpad) dpad() {}

// Fixed button slots. Skins address buttons by these names.
var (
	FaceButtons     = []string{"down", "right", "left", "up", "select", "start", "home"}
	ShoulderButtons = []string{"l1", "r1", "l2", "r2"}
)

// Mapping is the compiled form of a Record.
type Mapping struct {
	Name       string
	Properties Properties
	Left       *Stick
	Right      *Stick
	Dpad       Dpad
	// Face and Shoulder only hold the buttons the device has.
	Face     map[string]int
	Shoulder map[string]int
}
