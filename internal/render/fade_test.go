package render

import (
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/soar/padview/internal/diag"
	"github.com/soar/padview/internal/store"
)

const tick = 1000.0 / 60

func TestFadeOptionsValidate(t *testing.T) {
	if err := DefaultFadeOptions().Validate(); err != nil {
		t.Fatalf("expected defaults to validate: %v", err)
	}
	bad := map[string]FadeOptions{
		"empty":           {Duration: 1},
		"length mismatch": {Time: []float64{1, 5}, Opacity: []float64{0.5}, Duration: 1},
		"zero duration":   {Time: []float64{1}, Opacity: []float64{0.5}},
		"overlapping":     {Time: []float64{1, 2}, Opacity: []float64{0.5, 0.2}, Duration: 4},
		"brightening":     {Time: []float64{1, 10}, Opacity: []float64{0.2, 0.5}, Duration: 1},
		"opacity range":   {Time: []float64{1}, Opacity: []float64{1.5}, Duration: 1},
	}
	for name, o := range bad {
		if err := o.Validate(); err == nil {
			t.Errorf("%s: expected an error", name)
		}
	}
}

func TestFadeOptionsPersist(t *testing.T) {
	kv := store.NewMemory()
	if diff := cmp.Diff(DefaultFadeOptions(), LoadFadeOptions(kv, diag.Discard)); diff != "" {
		t.Errorf("expected defaults when nothing is stored (-want +got):\n%s", diff)
	}

	custom := FadeOptions{Time: []float64{2, 10}, Opacity: []float64{0.3, 0}, Duration: 1}
	if err := SaveFadeOptions(kv, custom); err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(custom, LoadFadeOptions(kv, diag.Discard)); diff != "" {
		t.Errorf("unexpected stored options (-want +got):\n%s", diff)
	}

	if err := SaveFadeOptions(kv, FadeOptions{}); err == nil {
		t.Error("expected invalid options to be rejected")
	}

	kv.Put(store.KeyFade, []byte(`{"time": "soon"}`))
	rec := &diag.Recorder{}
	if diff := cmp.Diff(DefaultFadeOptions(), LoadFadeOptions(kv, rec)); diff != "" {
		t.Errorf("expected defaults for malformed data (-want +got):\n%s", diff)
	}
	if rec.Count(diag.Caution) != 1 {
		t.Errorf("expected a caution diagnostic, got %+v", rec.Messages)
	}
}

func TestFadeStage(t *testing.T) {
	f := NewFade(DefaultFadeOptions())
	cases := []struct {
		elapsed float64
		want    Stage
	}{
		{0, Stage{Level: -1}},
		{7999, Stage{Level: -1}},
		{8000, Stage{Level: 0, Fading: true}},
		{11999, Stage{Level: 0, Fading: true}},
		{12000, Stage{Level: 0}},
		{16000, Stage{Level: 1, Fading: true}},
		{32000, Stage{Level: 2, Fading: true}},
		{36000, Stage{Level: 2, Clear: true}},
		{36099, Stage{Level: 2, Clear: true}},
		{36100, Stage{Level: 2}},
	}
	for _, c := range cases {
		if got := f.Stage(c.elapsed); got != c.want {
			t.Errorf("Stage(%v): expected %+v, got %+v", c.elapsed, c.want, got)
		}
	}

	noClear := NewFade(FadeOptions{Time: []float64{1}, Opacity: []float64{0.2}, Duration: 1})
	if st := noClear.Stage(2050); st.Clear {
		t.Error("expected no clear tick when the last level is visible")
	}
}

func TestFadeDeltaReachesTarget(t *testing.T) {
	f := NewFade(DefaultFadeOptions())
	for tier, fps := range fpsTiers {
		alpha := 1.0
		for i := 0; i < 4*fps; i++ {
			alpha *= f.delta[tier][0]
		}
		if math.Abs(alpha-0.5) > 1e-9 {
			t.Errorf("%d fps: expected decay to reach 0.5 in 4s, got %v", fps, alpha)
		}
	}
}

func TestClampAlpha(t *testing.T) {
	cases := map[float64]float64{
		-0.1:     0,
		0.123456: 0.1235,
		1.00001:  1,
		0.5:      0.5,
	}
	for in, want := range cases {
		if got := ClampAlpha(in); got != want {
			t.Errorf("ClampAlpha(%v): expected %v, got %v", in, want, got)
		}
	}
}

// Sampled once per tick from the moment the element went idle, alpha only
// ever goes down, never below zero, and sits on each level's opacity once
// that level's transition is over.
func TestFadeStepMonotonic(t *testing.T) {
	o := DefaultFadeOptions()
	for _, fps := range fpsTiers {
		f := NewFade(o)
		step := 1000.0 / float64(fps)
		alpha := 1.0
		for k := 0; float64(k)*step < 40000; k++ {
			elapsed := float64(k) * step
			next, _ := f.Step(alpha, elapsed, fps)
			if next > alpha {
				t.Fatalf("%d fps: alpha rose from %v to %v at %vms", fps, alpha, next, elapsed)
			}
			if next < 0 {
				t.Fatalf("%d fps: alpha below zero at %vms", fps, elapsed)
			}
			alpha = next

			for level, start := range o.Time {
				end := (start+o.Duration)*1000 + step
				if elapsed >= end && elapsed < end+step && alpha != o.Opacity[level] {
					t.Errorf("%d fps: expected opacity %v one tick after level %d ends, got %v",
						fps, o.Opacity[level], level, alpha)
				}
			}
		}
	}
}

// Scenario: idle for a while with thresholds 8/16/32s and a 4s transition.
func TestFadeScenarioIdle(t *testing.T) {
	f := NewFade(DefaultFadeOptions())
	alpha := 1.0
	var at9, at12 float64
	for k := 0; k <= 960; k++ {
		elapsed := float64(k) * tick
		alpha, _ = f.Step(alpha, elapsed, 60)
		switch {
		case elapsed < 8000 && alpha != 1:
			t.Fatalf("expected full opacity before 8s, got %v at %vms", alpha, elapsed)
		case at9 == 0 && elapsed >= 9000:
			at9 = alpha
		case at12 == 0 && elapsed >= 12000+tick:
			at12 = alpha
		case elapsed > 12000+tick && elapsed < 16000 && alpha != 0.5:
			t.Fatalf("expected to hold 0.5 between 12s and 16s, got %v at %vms", alpha, elapsed)
		}
	}
	if at9 >= 1 || at9 <= 0.5 {
		t.Errorf("expected to be fading at 9s, got %v", at9)
	}
	if at12 != 0.5 {
		t.Errorf("expected to settle at 0.5 by 12s, got %v", at12)
	}
}
