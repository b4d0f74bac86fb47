package mapping

import (
	"encoding/json"
	"testing"

	"github.com/pkg/errors"

	"github.com/soar/padview/internal/diag"
	"github.com/soar/padview/internal/gamepad"
	"github.com/soar/padview/internal/store"
)

func TestCompileVariants(t *testing.T) {
	cases := []struct {
		name  string
		props []string
		dpad  map[string]float64
		check func(t *testing.T, d Dpad)
	}{
		{"plain", nil, map[string]float64{"up": 12, "down": 13}, func(t *testing.T, d Dpad) {
			p, ok := d.(PlainDpad)
			if !ok || p.Up != 12 || p.Down != 13 || p.Left != -1 || p.Right != -1 {
				t.Errorf("expected plain dpad with missing left/right, got %#v", d)
			}
		}},
		{"axis", []string{"axisdpad"}, hatDpad, func(t *testing.T, d Dpad) {
			a, ok := d.(AxisDpad)
			if !ok || a.Axis != gamepad.HatAxis || !a.Defined[UpLeft] {
				t.Errorf("expected axis dpad, got %#v", d)
			}
		}},
		{"axis as stick", []string{"axisdpad", "nodpad"}, hatDpad, func(t *testing.T, d Dpad) {
			if _, ok := d.(AxisStickDpad); !ok {
				t.Errorf("expected axis stick dpad, got %#v", d)
			}
		}},
		{"none", []string{"nodpad"}, map[string]float64{"up": 1}, func(t *testing.T, d Dpad) {
			if d != nil {
				t.Errorf("expected no dpad, got %#v", d)
			}
		}},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			m, err := Compile(Record{Name: c.name, Properties: c.props, Buttons: ButtonRecords{Dpad: c.dpad}})
			if err != nil {
				t.Fatal(err)
			}
			c.check(t, m.Dpad)
		})
	}
}

func TestCompileRejects(t *testing.T) {
	neg := -1
	bad := 1.5
	cases := map[string]Record{
		"axisdpad without precision": {Properties: []string{"axisdpad"}, Buttons: ButtonRecords{Dpad: map[string]float64{"axis": 9}}},
		"unknown property":           {Properties: []string{"hover"}},
		"fractional dpad index":      {Buttons: ButtonRecords{Dpad: map[string]float64{"up": 1.5}}},
		"negative face index":        {Buttons: ButtonRecords{Face: map[string]int{"down": -2}}},
		"negative axis":              {Sticks: StickRecords{Left: &StickRecord{X: -1, Y: 1, Button: &neg}}},
		"deadzone out of range":      {Sticks: StickRecords{Left: &StickRecord{X: 0, Y: 1, Deadzone: &bad}}},
	}
	for name, rec := range cases {
		if _, err := Compile(rec); err == nil {
			t.Errorf("%s: expected an error", name)
		}
	}
}

func TestCompileNoSticksIgnoresSticks(t *testing.T) {
	rec := xinputRecord
	rec.Properties = []string{"nosticks"}
	m, err := Compile(rec)
	if err != nil {
		t.Fatal(err)
	}
	if m.Left != nil || m.Right != nil {
		t.Errorf("expected nosticks to drop sticks, got %+v %+v", m.Left, m.Right)
	}
}

func TestValidateTable(t *testing.T) {
	valid, _ := json.Marshal(DefaultRecords())
	records, err := ValidateTable(valid)
	if err != nil {
		t.Fatalf("expected built-in table to validate: %v", err)
	}
	if len(records) != len(DefaultRecords()) {
		t.Errorf("expected %d records, got %d", len(DefaultRecords()), len(records))
	}

	invalid := map[string]string{
		"not json":          `{`,
		"array":             `[]`,
		"empty":             `{}`,
		"entry not object":  `{"XInput": 3}`,
		"name not string":   `{"XInput": {"name": 1, "properties": [], "sticks": {}, "buttons": {}}}`,
		"missing buttons":   `{"XInput": {"name": "x", "properties": [], "sticks": {}}}`,
		"properties object": `{"XInput": {"name": "x", "properties": {}, "sticks": {}, "buttons": {}}}`,
		"does not compile":  `{"XInput": {"name": "x", "properties": ["axisdpad"], "sticks": {}, "buttons": {"dpad": {}}}}`,
	}
	for name, data := range invalid {
		_, err := ValidateTable([]byte(data))
		if !errors.Is(err, ErrInvalidTable) {
			t.Errorf("%s: expected ErrInvalidTable, got %v", name, err)
		}
	}
}

func TestTableLoadMissingPersistsDefaults(t *testing.T) {
	kv := store.NewMemory()
	table := NewTable(kv, diag.Discard)
	table.Load()

	data, ok, _ := kv.Get(store.KeyMappings)
	if !ok {
		t.Fatal("expected defaults to be persisted")
	}
	if _, err := ValidateTable(data); err != nil {
		t.Errorf("expected persisted defaults to validate: %v", err)
	}
}

func TestTableLoadMalformedFallsBack(t *testing.T) {
	kv := store.NewMemory()
	kv.Put(store.KeyMappings, []byte(`{"XInput": {"name": "broken"}}`))
	rec := &diag.Recorder{}

	table := NewTable(kv, rec)
	table.Load()

	if rec.Count(diag.Error) != 1 {
		t.Errorf("expected one error diagnostic, got %+v", rec.Messages)
	}
	if got := table.Resolve(gamepad.XInput).Name; got != "XInput" {
		t.Errorf("expected built-in XInput mapping, got %q", got)
	}
	data, _, _ := kv.Get(store.KeyMappings)
	if _, err := ValidateTable(data); err != nil {
		t.Errorf("expected defaults to replace the malformed table: %v", err)
	}
}

func TestTableLoadValid(t *testing.T) {
	kv := store.NewMemory()
	custom := map[string]Record{"deadbeef": {Name: "Custom", Properties: []string{}}}
	data, _ := json.Marshal(custom)
	kv.Put(store.KeyMappings, data)

	table := NewTable(kv, diag.Discard)
	table.Load()

	if got := table.Resolve("deadbeef").Name; got != "Custom" {
		t.Errorf("expected custom mapping, got %q", got)
	}
	// no DInput entry stored: the built-in one still answers
	if got := table.Resolve("00000001").Name; got != "DInput" {
		t.Errorf("expected built-in DInput fallback, got %q", got)
	}
}

func TestTableResolveFallbackChain(t *testing.T) {
	table := NewTable(store.NewMemory(), diag.Discard)

	cases := map[string]string{
		"054c05c4":     "DualShock 4",
		"054cffff":     "DualShock 4",
		"0f0d00ff":     "HORI Fighting Stick",
		gamepad.XInput: "XInput",
		"99990000":     "DInput",
		"garbage":      "DInput",
	}
	for fp, want := range cases {
		if got := table.Resolve(fp); got == nil || got.Name != want {
			t.Errorf("Resolve(%q): expected %q, got %+v", fp, want, got)
		}
	}

	if err := table.Delete(gamepad.DInput); err != nil {
		t.Fatal(err)
	}
	if got := table.Resolve("99990000"); got != builtinDInput {
		t.Errorf("expected built-in DInput after deleting the entry, got %+v", got)
	}
}

func TestTableSetPersists(t *testing.T) {
	kv := store.NewMemory()
	table := NewTable(kv, diag.Discard)

	if err := table.Set("cafe0001", Record{Name: "Cafe", Properties: []string{"joystick"}}); err != nil {
		t.Fatal(err)
	}
	if err := table.Set("bad", Record{Properties: []string{"nope"}}); err == nil {
		t.Error("expected invalid record to be rejected")
	}
	if _, ok := table.Get("bad"); ok {
		t.Error("expected rejected record not to be stored")
	}

	reloaded := NewTable(kv, diag.Discard)
	reloaded.Load()
	m := reloaded.Resolve("cafe0001")
	if m.Name != "Cafe" || !m.Properties.Has(JoystickProp) {
		t.Errorf("expected persisted custom mapping, got %+v", m)
	}

	if err := reloaded.Reset(); err != nil {
		t.Fatal(err)
	}
	if _, ok := reloaded.Get("cafe0001"); ok {
		t.Error("expected Reset to drop custom mappings")
	}
}

func TestTableDeleteKeepsOneEntry(t *testing.T) {
	kv := store.NewMemory()
	data, _ := json.Marshal(map[string]Record{"only": {Name: "Only", Properties: []string{}}})
	kv.Put(store.KeyMappings, data)
	table := NewTable(kv, diag.Discard)
	table.Load()

	if err := table.Delete("only"); err == nil {
		t.Error("expected deleting the last mapping to fail")
	}
	if err := table.Delete("missing"); err != nil {
		t.Errorf("expected deleting a missing key to be a no-op, got %v", err)
	}
}
