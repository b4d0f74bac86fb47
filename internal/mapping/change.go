package mapping

import (
	"bytes"
	"encoding/json"
	"strconv"

	"github.com/soar/padview/internal/gamepad"
)

// ID identifies the device a Change came from.
type ID struct {
	Name      string `json:"name"`
	GamepadID string `json:"gamepadId"`
}

// ButtonChange is a button value and its change since the last frame.
type ButtonChange struct {
	Value float64 `json:"value"`
	Delta float64 `json:"delta"`
}

// DpadChange holds the four dpad buttons. Values are 0 or 1 even when
// decoded from an axis.
type DpadChange struct {
	Up    ButtonChange `json:"up"`
	Down  ButtonChange `json:"down"`
	Left  ButtonChange `json:"left"`
	Right ButtonChange `json:"right"`
}

// StickChange is the state of one stick. Button and Pressed are nil when
// the stick cannot be clicked.
type StickChange struct {
	X, Y    float64
	DX, DY  float64
	Button  *float64
	Pressed *bool
	Active  bool
}

type stickJSON struct {
	Value   [3]*float64 `json:"value"`
	Delta   [3]*float64 `json:"delta"`
	Pressed *bool       `json:"pressed"`
	Active  bool        `json:"active"`
}

// MarshalJSON encodes the stick as value [x,y,button] and delta [dx,dy,null].
func (s StickChange) MarshalJSON() ([]byte, error) {
	x, y, dx, dy := s.X, s.Y, s.DX, s.DY
	return json.Marshal(stickJSON{
		Value:   [3]*float64{&x, &y, s.Button},
		Delta:   [3]*float64{&dx, &dy, nil},
		Pressed: s.Pressed,
		Active:  s.Active,
	})
}

// Sticks groups the two sticks. A nil stick is absent on the device.
type Sticks struct {
	Left  *StickChange `json:"left"`
	Right *StickChange `json:"right"`
}

// Buttons groups the button changes. A nil Dpad means no change. In Face
// and Shoulder a nil value means no change and a missing key means the
// device has no such button.
type Buttons struct {
	Dpad     *DpadChange              `json:"dpad"`
	Face     map[string]*ButtonChange `json:"face"`
	Shoulder map[string]*ButtonChange `json:"shoulder"`
}

// Layout tells which stick and dpad elements exist on the device, which
// the nullable change fields alone cannot express.
type Layout struct {
	Left, Right, Dpad bool
}

// Change describes one gamepad's frame.
type Change struct {
	ID      ID      `json:"id"`
	Sticks  Sticks  `json:"sticks"`
	Buttons Buttons `json:"buttons"`
	Layout  Layout  `json:"-"`
}

// Batch carries one Change per slot; nil slots are empty.
type Batch [gamepad.Slots]*Change

// Occupied reports whether any slot carries a change.
func (b Batch) Occupied() bool {
	for _, c := range b {
		if c != nil {
			return true
		}
	}
	return false
}

// MarshalJSON encodes the batch as an array-like object keyed "0".."3"
// with a "length" field.
func (b Batch) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, c := range b {
		data, err := json.Marshal(c)
		if err != nil {
			return nil, err
		}
		buf.WriteString(`"` + strconv.Itoa(i) + `":`)
		buf.Write(data)
		buf.WriteByte(',')
	}
	buf.WriteString(`"length":` + strconv.Itoa(len(b)) + `}`)
	return buf.Bytes(), nil
}
