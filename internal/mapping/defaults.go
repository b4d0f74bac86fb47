package mapping

import "github.com/soar/padview/internal/gamepad"

func intp(v int) *int { return &v }

// Browsers expose a DirectInput hat on axis 9, stepping in sevenths.
var hatDpad = map[string]float64{
	"axis":      gamepad.HatAxis,
	"precision": 0.1,
	"up":        -1,
	"upright":   -5.0 / 7.0,
	"right":     -3.0 / 7.0,
	"downright": -1.0 / 7.0,
	"down":      1.0 / 7.0,
	"downleft":  3.0 / 7.0,
	"left":      5.0 / 7.0,
	"upleft":    1,
}

var xinputRecord = Record{
	Name:       "XInput",
	Properties: []string{},
	Sticks: StickRecords{
		Left:  &StickRecord{X: 0, Y: 1, Button: intp(10)},
		Right: &StickRecord{X: 2, Y: 3, Button: intp(11)},
	},
	Buttons: ButtonRecords{
		Dpad:     map[string]float64{"up": 12, "down": 13, "left": 14, "right": 15},
		Face:     map[string]int{"down": 0, "right": 1, "left": 2, "up": 3, "select": 8, "start": 9, "home": 16},
		Shoulder: map[string]int{"l1": 4, "r1": 5, "l2": 6, "r2": 7},
	},
}

var dinputRecord = Record{
	Name:       "DInput",
	Properties: []string{"axisdpad"},
	Sticks: StickRecords{
		Left:  &StickRecord{X: 0, Y: 1, Button: intp(10)},
		Right: &StickRecord{X: 2, Y: 5, Button: intp(11)},
	},
	Buttons: ButtonRecords{
		Dpad:     hatDpad,
		Face:     map[string]int{"left": 0, "down": 1, "right": 2, "up": 3, "select": 8, "start": 9, "home": 12},
		Shoulder: map[string]int{"l1": 4, "r1": 5, "l2": 6, "r2": 7},
	},
}

var dualShock4Record = Record{
	Name:       "DualShock 4",
	Properties: []string{"axisdpad"},
	Sticks: StickRecords{
		Left:  &StickRecord{X: 0, Y: 1, Button: intp(10)},
		Right: &StickRecord{X: 2, Y: 5, Button: intp(11)},
	},
	Buttons: ButtonRecords{
		Dpad:     hatDpad,
		Face:     map[string]int{"left": 0, "down": 1, "right": 2, "up": 3, "select": 8, "start": 9, "home": 12},
		Shoulder: map[string]int{"l1": 4, "r1": 5, "l2": 6, "r2": 7},
	},
}

var switchProRecord = Record{
	Name:       "Switch Pro Controller",
	Properties: []string{"axisdpad"},
	Sticks: StickRecords{
		Left:  &StickRecord{X: 0, Y: 1, Button: intp(10)},
		Right: &StickRecord{X: 2, Y: 3, Button: intp(11)},
	},
	Buttons: ButtonRecords{
		Dpad:     hatDpad,
		Face:     map[string]int{"down": 0, "right": 1, "left": 2, "up": 3, "select": 8, "start": 9, "home": 12},
		Shoulder: map[string]int{"l1": 4, "r1": 5, "l2": 6, "r2": 7},
	},
}

// HORI fighting sticks report the lever as a hat and have no sticks.
var fightingStickRecord = Record{
	Name:       "HORI Fighting Stick",
	Properties: []string{"axisdpad", "nodpad", "nosticks", "joystick"},
	Sticks:     StickRecords{},
	Buttons: ButtonRecords{
		Dpad:     hatDpad,
		Face:     map[string]int{"left": 0, "down": 1, "right": 2, "up": 3, "select": 8, "start": 9, "home": 12},
		Shoulder: map[string]int{"l1": 4, "r1": 5, "l2": 6, "r2": 7},
	},
}

// DefaultRecords returns a fresh copy of the built-in table. Keys are full
// fingerprints, 4-hex-digit vendor prefixes, or the symbolic XInput/DInput.
func DefaultRecords() map[string]Record {
	return map[string]Record{
		gamepad.XInput: xinputRecord,
		gamepad.DInput: dinputRecord,
		"054c05c4":     dualShock4Record,
		"054c09cc":     dualShock4Record,
		"054c":         dualShock4Record,
		"057e2009":     switchProRecord,
		"0f0d":         fightingStickRecord,
	}
}

var builtinDInput = mustCompile(dinputRecord)

func mustCompile(rec Record) *Mapping {
	m, err := Compile(rec)
	if err != nil {
		panic(err)
	}
	return m
}
