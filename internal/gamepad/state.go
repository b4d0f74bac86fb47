package gamepad

import (
	"encoding/json"

	"github.com/pkg/errors"
)

// Slots is the number of gamepad indices a snapshot carries.
const Slots = 4

// Button is one raw button as the Gamepad API reports it.
type Button struct {
	Pressed bool    `json:"pressed"`
	Value   float64 `json:"value"`
}

// StandardMapping is the Gamepad API mapping of devices the browser has
// already remapped to the standard layout.
const StandardMapping = "standard"

// Gamepad is the raw state of one device for one frame.
type Gamepad struct {
	ID      string    `json:"id"`
	Index   int       `json:"index"`
	Mapping string    `json:"mapping"`
	Axes    []float64 `json:"axes"`
	Buttons []Button  `json:"buttons"`
}

// Fingerprint is the device identity mappings are looked up by. Devices in
// the standard layout share the XInput fingerprint whatever their vendor,
// because their raw indices no longer match the vendor's own layout.
func (g *Gamepad) Fingerprint() string {
	if g.Mapping == StandardMapping {
		return XInput
	}
	return Fingerprint(g.ID)
}

// Axis returns axis i and whether the device reports it.
func (g *Gamepad) Axis(i int) (float64, bool) {
	if g == nil || i < 0 || i >= len(g.Axes) {
		return 0, false
	}
	return g.Axes[i], true
}

// Button returns button i and whether the device reports it.
func (g *Gamepad) Button(i int) (Button, bool) {
	if g == nil || i < 0 || i >= len(g.Buttons) {
		return Button{}, false
	}
	return g.Buttons[i], true
}

// Clone returns a deep copy.
func (g *Gamepad) Clone() *Gamepad {
	if g == nil {
		return nil
	}
	c := *g
	c.Axes = append([]float64(nil), g.Axes...)
	c.Buttons = append([]Button(nil), g.Buttons...)
	return &c
}

// Snapshot is one frame of raw state for every slot. A nil entry means no
// gamepad occupies that index.
type Snapshot [Slots]*Gamepad

// Empty reports whether no slot is occupied.
func (s Snapshot) Empty() bool {
	for _, g := range s {
		if g != nil {
			return false
		}
	}
	return true
}

// DecodeSnapshot parses the browser's getGamepads() array. Entries are
// placed by their reported index when it is in range, otherwise by position;
// entries past the fourth slot are ignored.
func DecodeSnapshot(data []byte) (Snapshot, error) {
	var raw []*Gamepad
	if err := json.Unmarshal(data, &raw); err != nil {
		return Snapshot{}, errors.Wrap(err, "decode snapshot")
	}

	var s Snapshot
	for pos, g := range raw {
		if g == nil {
			continue
		}
		slot := g.Index
		if slot < 0 || slot >= Slots {
			slot = pos
		}
		if slot >= Slots || s[slot] != nil {
			continue
		}
		g.Index = slot
		s[slot] = g
	}
	return s, nil
}
