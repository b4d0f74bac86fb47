package skin

import (
	"bytes"
	"encoding/json"
	"image"
	"image/png"
	"testing"
	"testing/fstest"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/pkg/errors"

	"github.com/soar/padview/internal/diag"
	"github.com/soar/padview/internal/store"
)

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, w, h))); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

const testConfig = `{
	"name": "Test",
	"layers": [{"width": 100, "height": 50, "x": 0, "y": 0}],
	"sprites": ["sheet.png"],
	"sticks": {
		"left": {"layer": 0, "clear": [{"draw": "clearRect", "x": 0, "y": 0, "width": 10, "height": 10}], "on": [], "off": []}
	},
	"buttons": {
		"face": {
			"down": {"layer": 0, "fps": 30, "clear": [], "on": [{"draw": "drawImage", "sx": 0}], "off": []}
		}
	}
}`

func testFS(t *testing.T) fstest.MapFS {
	return fstest.MapFS{
		"good/config.json":   {Data: []byte(testConfig)},
		"good/sheet.png":     {Data: pngBytes(t, 8, 8)},
		"broken/config.json": {Data: []byte(`{"layers": []}`)},
		"nosprite/config.json": {Data: []byte(`{
			"layers": [{"width": 1, "height": 1}],
			"sprites": ["missing.png"]
		}`)},
		"loose.txt": {Data: []byte("x")},
	}
}

func wait(t *testing.T, sk *Skin) {
	t.Helper()
	select {
	case <-sk.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for skin load")
	}
}

func TestValidName(t *testing.T) {
	for _, name := range []string{"xinput", "My_Skin-2"} {
		if !ValidName(name) {
			t.Errorf("expected %q to be valid", name)
		}
	}
	for _, name := range []string{"", "../etc", "a b", "a/b", "skin.v2"} {
		if ValidName(name) {
			t.Errorf("expected %q to be rejected", name)
		}
	}
}

func TestAcquireLoads(t *testing.T) {
	s := NewStore(testFS(t), diag.Discard)
	sk, err := s.Acquire("good")
	if err != nil {
		t.Fatal(err)
	}
	wait(t, sk)

	if !sk.Loaded() || sk.Err() != nil {
		t.Fatalf("expected skin to load, got err %v", sk.Err())
	}
	if len(sk.Sprites) != 1 || sk.Sprites[0].Bounds().Dx() != 8 {
		t.Errorf("expected one 8px sprite, got %v", sk.Sprites)
	}
	keys := sk.Config.Elements()
	want := []Key{{GroupFace, "down"}, {GroupSticks, "left"}}
	if diff := cmp.Diff(want, keys); diff != "" {
		t.Errorf("unexpected elements (-want +got):\n%s", diff)
	}
	el := sk.Config.Element(Key{GroupFace, "down"})
	if el.FPS != 30 || len(el.On) != 1 || el.On[0].Draw != "drawImage" {
		t.Errorf("unexpected element %+v", el)
	}
	if string(el.On[0].Params["sx"]) != "0" {
		t.Errorf("expected literal sx param, got %s", el.On[0].Params["sx"])
	}

	again, _ := s.Acquire("good")
	if again != sk {
		t.Error("expected cached skin on second acquire")
	}
}

func TestAcquireFailuresAreAnnounced(t *testing.T) {
	for _, dir := range []string{"broken", "nosprite", "absent"} {
		rec := &diag.Recorder{}
		s := NewStore(testFS(t), rec)
		sk, err := s.Acquire(dir)
		if err != nil {
			t.Fatal(err)
		}
		wait(t, sk)

		if sk.Loaded() || sk.Err() == nil {
			t.Errorf("%s: expected load failure", dir)
		}
		if rec.Count(diag.Error) != 1 {
			t.Errorf("%s: expected one error diagnostic, got %+v", dir, rec.Messages)
		}
		if retry, _ := s.Acquire(dir); retry == sk {
			t.Errorf("%s: expected failed skin to be dropped from the cache", dir)
		}
	}
}

func TestAcquireInvalidName(t *testing.T) {
	rec := &diag.Recorder{}
	s := NewStore(testFS(t), rec)
	sk, err := s.Acquire("../good")
	if !errors.Is(err, ErrInvalidName) || sk != nil {
		t.Errorf("expected ErrInvalidName, got %v %v", sk, err)
	}
	if rec.Count(diag.Caution) != 1 {
		t.Errorf("expected a caution diagnostic, got %+v", rec.Messages)
	}
}

func TestEvictReloads(t *testing.T) {
	s := NewStore(testFS(t), diag.Discard)
	first, _ := s.Acquire("good")
	wait(t, first)
	s.Evict("good")
	second, _ := s.Acquire("good")
	if second == first {
		t.Error("expected a fresh load after eviction")
	}
	wait(t, second)

	s.Purge()
	third, _ := s.Acquire("good")
	if third == second {
		t.Error("expected a fresh load after purge")
	}
	wait(t, third)
}

func TestList(t *testing.T) {
	s := NewStore(testFS(t), diag.Discard)
	names, err := s.List()
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]string{"broken", "good", "nosprite"}, names); diff != "" {
		t.Errorf("unexpected skins (-want +got):\n%s", diff)
	}
}

func TestConfigSize(t *testing.T) {
	cfg := &Config{Layers: []LayerConfig{{Width: 10, Height: 10}, {Width: 5, Height: 20, X: 8, Y: 2}}}
	if w, h := cfg.Size(); w != 13 || h != 22 {
		t.Errorf("expected 13x22, got %dx%d", w, h)
	}
}

func TestConfigValidate(t *testing.T) {
	cfg := &Config{
		Layers: []LayerConfig{{Width: 10, Height: 10}},
		Sticks: map[string]*Element{"left": {Layer: 3}},
	}
	if err := cfg.Validate(); err == nil {
		t.Error("expected missing layer to be rejected")
	}
}

func TestInstructionRoundTrip(t *testing.T) {
	var in Instruction
	if err := json.Unmarshal([]byte(`{"draw":"writeText","x":4}`), &in); err != nil {
		t.Fatal(err)
	}
	out, _ := json.Marshal(in)
	if string(out) != `{"draw":"writeText","x":4}` {
		t.Errorf("unexpected encoding %s", out)
	}
	if err := json.Unmarshal([]byte(`{"x":4}`), &in); err == nil {
		t.Error("expected instruction without draw to fail")
	}
}

func TestDefaultDir(t *testing.T) {
	cases := []struct {
		joystick bool
		fp, want string
	}{
		{true, "XInput", DirJoystick},
		{false, "XInput", DirXInput},
		{false, "054c05c4", DirDInput},
		{false, "DInput", DirDInput},
	}
	for _, c := range cases {
		if got := DefaultDir(c.joystick, c.fp); got != c.want {
			t.Errorf("DefaultDir(%v, %q): expected %q, got %q", c.joystick, c.fp, c.want, got)
		}
	}
}

func TestAssignmentsPersist(t *testing.T) {
	kv := store.NewMemory()
	a := NewAssignments(kv, diag.Discard)

	if err := a.Set("054c05c4", "custom"); err != nil {
		t.Fatal(err)
	}
	if err := a.Set("054c05c4", "bad name"); !errors.Is(err, ErrInvalidName) {
		t.Errorf("expected ErrInvalidName, got %v", err)
	}

	b := NewAssignments(kv, diag.Discard)
	b.Load()
	if got := b.Resolve("054c05c4", false); got != "custom" {
		t.Errorf("expected persisted assignment, got %q", got)
	}
	if got := b.Resolve("XInput", false); got != DirXInput {
		t.Errorf("expected default for unassigned device, got %q", got)
	}

	if err := b.Set("054c05c4", ""); err != nil {
		t.Fatal(err)
	}
	if _, ok := b.Get("054c05c4"); ok {
		t.Error("expected empty dirname to remove the assignment")
	}
}

func TestAssignmentsLoadDropsInvalid(t *testing.T) {
	kv := store.NewMemory()
	kv.Put(store.KeySkins, []byte(`{"a": "ok", "b": "../../etc"}`))
	rec := &diag.Recorder{}
	a := NewAssignments(kv, rec)
	a.Load()

	if diff := cmp.Diff(map[string]string{"a": "ok"}, a.All()); diff != "" {
		t.Errorf("unexpected assignments (-want +got):\n%s", diff)
	}
	if rec.Count(diag.Caution) != 1 {
		t.Errorf("expected a caution for the invalid entry, got %+v", rec.Messages)
	}
}
