package render

import (
	"testing"
	"time"

	"github.com/soar/padview/internal/diag"
	"github.com/soar/padview/internal/skin"
)

// The skins shipped in the binary must load and compile.
func TestBuiltinSkins(t *testing.T) {
	sink := &diag.Recorder{}
	skins := skin.NewDirStore("../../skins", sink)

	names, err := skins.List()
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{"dinput", "joystick", "xinput"} {
		found := false
		for _, n := range names {
			found = found || n == want
		}
		if !found {
			t.Errorf("missing built-in skin %q in %v", want, names)
		}
	}

	for _, name := range names {
		sk, err := skins.Acquire(name)
		if err != nil {
			t.Fatal(err)
		}
		select {
		case <-sk.Done():
		case <-time.After(5 * time.Second):
			t.Fatalf("%s: timed out loading", name)
		}
		if !sk.Loaded() {
			t.Errorf("%s: %v", name, sk.Err())
			continue
		}
		for _, k := range sk.Config.Elements() {
			el := sk.Config.Element(k)
			for _, seq := range [][]skin.Instruction{el.Clear, el.On, el.Off} {
				for _, in := range seq {
					if _, err := compile(in, len(sk.Sprites)); err != nil {
						t.Errorf("%s %s: %v", name, k, err)
					}
				}
			}
		}
	}
	if n := sink.Count(diag.Error); n != 0 {
		t.Errorf("expected no errors, got %v", sink.Messages)
	}
}
