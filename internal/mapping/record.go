package mapping

import (
	"bytes"
	"encoding/json"
	"math"
	"sort"

	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"
)

// DefaultDeadzone applies to sticks whose record omits a deadzone.
const DefaultDeadzone = 0.08

// ErrInvalidTable is returned for persisted tables that fail validation.
var ErrInvalidTable = errors.New("invalid mapping table")

// Record is the persisted, user-editable form of a device mapping.
type Record struct {
	Name       string        `json:"name"`
	Properties []string      `json:"properties"`
	Sticks     StickRecords  `json:"sticks"`
	Buttons    ButtonRecords `json:"buttons"`
}

// StickRecords holds the optional left and right sticks.
type StickRecords struct {
	Left  *StickRecord `json:"left,omitempty"`
	Right *StickRecord `json:"right,omitempty"`
}

// StickRecord maps a stick to raw axes and an optional button.
type StickRecord struct {
	X        int      `json:"x"`
	Y        int      `json:"y"`
	Button   *int     `json:"button"`
	Deadzone *float64 `json:"deadzone,omitempty"`
}

// ButtonRecords maps semantic names to raw indices. Dpad either holds the
// four button indices up/down/left/right, or, for axisdpad devices, "axis",
// "precision" and the axis value of each of the 8 directions.
type ButtonRecords struct {
	Dpad     map[string]float64 `json:"dpad,omitempty"`
	Face     map[string]int     `json:"face,omitempty"`
	Shoulder map[string]int     `json:"shoulder,omitempty"`
}

// Compile checks a record and resolves it into a Mapping.
func Compile(rec Record) (*Mapping, error) {
	var result *multierror.Error
	m := &Mapping{
		Name:     rec.Name,
		Face:     map[string]int{},
		Shoulder: map[string]int{},
	}

	for _, name := range rec.Properties {
		p, ok := ParseProperty(name)
		if !ok {
			result = multierror.Append(result, errors.Errorf("unknown property %q", name))
			continue
		}
		m.Properties = m.Properties.With(p)
	}

	if !m.Properties.Has(NoSticksProp) {
		var err error
		if m.Left, err = compileStick(rec.Sticks.Left); err != nil {
			result = multierror.Append(result, errors.Wrap(err, "left stick"))
		}
		if m.Right, err = compileStick(rec.Sticks.Right); err != nil {
			result = multierror.Append(result, errors.Wrap(err, "right stick"))
		}
	}

	dpad, err := compileDpad(m.Properties, rec.Buttons.Dpad)
	if err != nil {
		result = multierror.Append(result, errors.Wrap(err, "dpad"))
	}
	m.Dpad = dpad

	compileNamed(FaceButtons, rec.Buttons.Face, m.Face, "face", &result)
	compileNamed(ShoulderButtons, rec.Buttons.Shoulder, m.Shoulder, "shoulder", &result)

	if err := result.ErrorOrNil(); err != nil {
		return nil, err
	}
	return m, nil
}

func compileStick(rec *StickRecord) (*Stick, error) {
	if rec == nil {
		return nil, nil
	}
	if rec.X < 0 || rec.Y < 0 {
		return nil, errors.Errorf("negative axis index (%d, %d)", rec.X, rec.Y)
	}
	s := &Stick{X: rec.X, Y: rec.Y, Button: -1, Deadzone: DefaultDeadzone}
	if rec.Button != nil && *rec.Button >= 0 {
		s.Button = *rec.Button
	}
	if rec.Deadzone != nil {
		if *rec.Deadzone < 0 || *rec.Deadzone >= 1 {
			return nil, errors.Errorf("deadzone %v out of range [0,1)", *rec.Deadzone)
		}
		s.Deadzone = *rec.Deadzone
	}
	return s, nil
}

func compileDpad(props Properties, rec map[string]float64) (Dpad, error) {
	if props.Has(AxisDpadProp) {
		axis, hasAxis := rec["axis"]
		precision, hasPrecision := rec["precision"]
		if !hasAxis || !hasPrecision {
			return nil, errors.New("axisdpad requires axis and precision")
		}
		idx, ok := rawIndex(axis)
		if !ok {
			return nil, errors.Errorf("bad axis index %v", axis)
		}
		if precision <= 0 {
			return nil, errors.Errorf("precision must be positive, got %v", precision)
		}
		d := AxisDpad{Axis: idx, Precision: precision}
		for dir := Direction(0); dir < numDirections; dir++ {
			d.Values[dir], d.Defined[dir] = rec[dir.String()]
		}
		if props.Has(NoDpadProp) {
			return AxisStickDpad{d}, nil
		}
		return d, nil
	}

	if props.Has(NoDpadProp) || len(rec) == 0 {
		return nil, nil
	}

	d := PlainDpad{Up: -1, Down: -1, Left: -1, Right: -1}
	var result *multierror.Error
	for name, dst := range map[string]*int{"up": &d.Up, "down": &d.Down, "left": &d.Left, "right": &d.Right} {
		v, ok := rec[name]
		if !ok {
			continue
		}
		idx, ok := rawIndex(v)
		if !ok {
			result = multierror.Append(result, errors.Errorf("bad button index %v for %s", v, name))
			continue
		}
		*dst = idx
	}
	return d, result.ErrorOrNil()
}

func compileNamed(names []string, rec map[string]int, dst map[string]int, group string, result **multierror.Error) {
	for _, name := range names {
		idx, ok := rec[name]
		if !ok {
			continue
		}
		if idx < 0 {
			*result = multierror.Append(*result, errors.Errorf("%s.%s: negative button index %d", group, name, idx))
			continue
		}
		dst[name] = idx
	}
}

func rawIndex(v float64) (int, bool) {
	if v < 0 || v != math.Trunc(v) {
		return 0, false
	}
	return int(v), true
}

// ValidateTable parses a persisted table. It must be a non-empty object
// whose entries each carry name:string, properties:array, sticks:object and
// buttons:object, and every entry must compile.
func ValidateTable(data []byte) (map[string]Record, error) {
	var entries map[string]json.RawMessage
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, errors.Wrap(ErrInvalidTable, err.Error())
	}
	if len(entries) == 0 {
		return nil, errors.Wrap(ErrInvalidTable, "table is empty")
	}

	keys := make([]string, 0, len(entries))
	for k := range entries {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var result *multierror.Error
	records := make(map[string]Record, len(entries))
	for _, key := range keys {
		rec, err := validateEntry(entries[key])
		if err != nil {
			result = multierror.Append(result, errors.Wrapf(err, "entry %q", key))
			continue
		}
		records[key] = rec
	}
	if err := result.ErrorOrNil(); err != nil {
		return nil, errors.Wrap(ErrInvalidTable, err.Error())
	}
	return records, nil
}

func validateEntry(raw json.RawMessage) (Record, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil || fields == nil {
		return Record{}, errors.New("entry is not an object")
	}

	var result *multierror.Error
	for field, kind := range map[string]byte{"name": '"', "properties": '[', "sticks": '{', "buttons": '{'} {
		v := bytes.TrimSpace(fields[field])
		if len(v) == 0 || v[0] != kind {
			result = multierror.Append(result, errors.Errorf("field %q missing or of wrong type", field))
		}
	}
	if err := result.ErrorOrNil(); err != nil {
		return Record{}, err
	}

	var rec Record
	if err := json.Unmarshal(raw, &rec); err != nil {
		return Record{}, errors.Wrap(err, "decode entry")
	}
	if _, err := Compile(rec); err != nil {
		return Record{}, err
	}
	return rec, nil
}
