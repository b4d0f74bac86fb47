package render

import (
	"encoding/json"
	"math"

	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"

	"github.com/soar/padview/internal/diag"
	"github.com/soar/padview/internal/store"
)

// FadeOptions configure how idle elements dim. Time holds the inactivity
// thresholds in seconds, Opacity the level reached after each threshold
// and Duration the seconds each transition takes.
type FadeOptions struct {
	Time     []float64 `json:"time"`
	Opacity  []float64 `json:"opacity"`
	Duration float64   `json:"duration"`
}

// DefaultFadeOptions dims to half after 8s, a quarter after 16s and hides
// the element after 32s.
func DefaultFadeOptions() FadeOptions {
	return FadeOptions{
		Time:     []float64{8, 16, 32},
		Opacity:  []float64{0.5, 0.25, 0},
		Duration: 4,
	}
}

// Validate checks that the levels line up and that the transitions cannot
// overlap.
func (o FadeOptions) Validate() error {
	var result *multierror.Error
	if len(o.Time) == 0 {
		result = multierror.Append(result, errors.New("fade needs at least one level"))
	}
	if len(o.Time) != len(o.Opacity) {
		result = multierror.Append(result, errors.Errorf("%d thresholds but %d opacity levels", len(o.Time), len(o.Opacity)))
	}
	if o.Duration <= 0 {
		result = multierror.Append(result, errors.Errorf("duration must be positive, got %v", o.Duration))
	}
	for i, t := range o.Time {
		if t < 0 {
			result = multierror.Append(result, errors.Errorf("threshold %d is negative", i))
		}
		if i > 0 && t < o.Time[i-1]+o.Duration {
			result = multierror.Append(result, errors.Errorf("threshold %d starts before the previous transition ends", i))
		}
	}
	for i, op := range o.Opacity {
		if op < 0 || op > 1 {
			result = multierror.Append(result, errors.Errorf("opacity %d is outside [0,1]", i))
		}
		if i > 0 && op > o.Opacity[i-1] {
			result = multierror.Append(result, errors.Errorf("opacity %d is brighter than the previous level", i))
		}
	}
	return result.ErrorOrNil()
}

// LoadFadeOptions reads the persisted options, falling back to the
// defaults when they are missing or invalid.
func LoadFadeOptions(kv store.KV, sink diag.Sink) FadeOptions {
	data, ok, err := kv.Get(store.KeyFade)
	if err != nil {
		sink.Announce(diag.Error, "Cannot read fade options: %v", err)
		return DefaultFadeOptions()
	}
	if !ok {
		return DefaultFadeOptions()
	}
	var o FadeOptions
	if err := json.Unmarshal(data, &o); err != nil {
		sink.Announce(diag.Caution, "Stored fade options are malformed, using defaults: %v", err)
		return DefaultFadeOptions()
	}
	if err := o.Validate(); err != nil {
		sink.Announce(diag.Caution, "Stored fade options are invalid, using defaults: %v", err)
		return DefaultFadeOptions()
	}
	return o
}

// SaveFadeOptions validates and persists o.
func SaveFadeOptions(kv store.KV, o FadeOptions) error {
	if err := o.Validate(); err != nil {
		return err
	}
	data, err := json.Marshal(o)
	if err != nil {
		return errors.Wrap(err, "encode fade options")
	}
	return errors.Wrap(kv.Put(store.KeyFade, data), "persist fade options")
}

// Frame rate tiers. Element updates at a tier run every 60/fps ticks.
var fpsTiers = [...]int{60, 30, 20, 15}

// BaseFPS is the rate the renderer ticks at.
const BaseFPS = 60

func tierOf(fps int) int {
	for i, f := range fpsTiers {
		if f == fps {
			return i
		}
	}
	return 0
}

// period returns how many base ticks separate two updates at the tier.
func period(tier int) uint64 {
	return uint64(BaseFPS / fpsTiers[tier])
}

// clearWindow is how long past the last transition the final clear may
// still be issued.
const clearWindow = 100.0

// minOpacity stands in for a zero target when solving the decay factor.
const minOpacity = 0.0001

// Fade is the compiled form of FadeOptions, in milliseconds.
type Fade struct {
	times    []float64
	opacity  []float64
	duration float64
	delta    [len(fpsTiers)][]float64
}

// NewFade compiles o. It does not validate; callers pass validated options.
func NewFade(o FadeOptions) *Fade {
	f := &Fade{
		times:    make([]float64, len(o.Time)),
		opacity:  append([]float64(nil), o.Opacity...),
		duration: o.Duration * 1000,
	}
	for i, t := range o.Time {
		f.times[i] = t * 1000
	}
	for tier, fps := range fpsTiers {
		steps := o.Duration * float64(fps)
		f.delta[tier] = make([]float64, len(o.Opacity))
		prev := 1.0
		for level, target := range o.Opacity {
			from, to := math.Max(prev, minOpacity), math.Max(target, minOpacity)
			f.delta[tier][level] = math.Pow(to/from, 1/steps)
			prev = target
		}
	}
	return f
}

// Stage is where an idle element is on the fade schedule.
type Stage struct {
	// Level is the index of the last threshold passed, -1 before the first.
	Level int
	// Fading is set while the transition into Level is running.
	Fading bool
	// Clear is set during the short window after the final transition when
	// the terminal opacity is zero and the element should be wiped.
	Clear bool
}

// Stage locates elapsed milliseconds of inactivity on the schedule.
func (f *Fade) Stage(elapsed float64) Stage {
	level := -1
	for i, t := range f.times {
		if elapsed >= t {
			level = i
		}
	}
	if level < 0 {
		return Stage{Level: -1}
	}

	end := f.times[level] + f.duration
	st := Stage{Level: level, Fading: elapsed < end}
	last := len(f.times) - 1
	if level == last && !st.Fading && f.opacity[last] == 0 && elapsed < end+clearWindow {
		st.Clear = true
	}
	return st
}

// Opacity returns the target opacity of level, 1 before the first.
func (f *Fade) Opacity(level int) float64 {
	if level < 0 {
		return 1
	}
	return f.opacity[level]
}

// MultipliedAlpha applies one tick of the level's decay for an element
// updating at fps.
func (f *Fade) MultipliedAlpha(alpha float64, level, fps int) float64 {
	if level < 0 {
		return ClampAlpha(alpha)
	}
	return ClampAlpha(alpha * f.delta[tierOf(fps)][level])
}

// Step advances alpha by one sampling tick for an element idle for elapsed
// milliseconds. While a level is fading the alpha decays towards the
// level's opacity without passing it; once the transition is over it sits
// exactly on it. Alpha never increases.
func (f *Fade) Step(alpha, elapsed float64, fps int) (float64, Stage) {
	st := f.Stage(elapsed)
	if st.Level < 0 {
		return alpha, st
	}
	if st.Fading {
		// a skipped level still caps the starting point
		if prev := f.Opacity(st.Level - 1); alpha > prev {
			alpha = prev
		}
		return math.Max(f.MultipliedAlpha(alpha, st.Level, fps), f.opacity[st.Level]), st
	}
	if target := f.opacity[st.Level]; alpha > target {
		alpha = target
	}
	return alpha, st
}

// ClampAlpha rounds to 4 decimal digits within [0,1].
func ClampAlpha(a float64) float64 {
	a = math.Round(a*10000) / 10000
	switch {
	case a < 0:
		return 0
	case a > 1:
		return 1
	}
	return a
}
