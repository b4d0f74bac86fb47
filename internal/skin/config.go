// Package skin loads skins: a directory holding config.json, which lays out
// the canvases and lists per-element drawing instructions, plus the sprite
// sheets those instructions reference.
package skin

import (
	"encoding/json"
	"sort"

	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"
)

// ConfigFile is the name of the config inside a skin directory.
const ConfigFile = "config.json"

// LayerConfig places one canvas layer.
type LayerConfig struct {
	Width  int `json:"width"`
	Height int `json:"height"`
	X      int `json:"x"`
	Y      int `json:"y"`
}

// Instruction is one drawing step: the primitive name and its literal
// parameters.
type Instruction struct {
	Draw   string
	Params map[string]json.RawMessage
}

// UnmarshalJSON reads {"draw": name, param: value, ...}.
func (in *Instruction) UnmarshalJSON(data []byte) error {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return err
	}
	raw, ok := fields["draw"]
	if !ok {
		return errors.New("instruction without draw")
	}
	if err := json.Unmarshal(raw, &in.Draw); err != nil {
		return errors.Wrap(err, "instruction draw")
	}
	delete(fields, "draw")
	in.Params = fields
	return nil
}

// MarshalJSON is the inverse of UnmarshalJSON.
func (in Instruction) MarshalJSON() ([]byte, error) {
	fields := make(map[string]json.RawMessage, len(in.Params)+1)
	for k, v := range in.Params {
		fields[k] = v
	}
	name, _ := json.Marshal(in.Draw)
	fields["draw"] = name
	return json.Marshal(fields)
}

// Element holds the instruction sequences of one stick or button.
type Element struct {
	Layer int           `json:"layer"`
	FPS   int           `json:"fps,omitempty"`
	Clear []Instruction `json:"clear"`
	On    []Instruction `json:"on"`
	Off   []Instruction `json:"off"`
}

// Buttons groups button elements by kind.
type Buttons struct {
	Dpad     map[string]*Element `json:"dpad"`
	Face     map[string]*Element `json:"face"`
	Shoulder map[string]*Element `json:"shoulder"`
}

// Config is the parsed config.json.
type Config struct {
	Name    string              `json:"name"`
	Layers  []LayerConfig       `json:"layers"`
	Sprites []string            `json:"sprites"`
	Sticks  map[string]*Element `json:"sticks"`
	Buttons Buttons             `json:"buttons"`
}

// Element groups.
const (
	GroupSticks   = "sticks"
	GroupDpad     = "dpad"
	GroupFace     = "face"
	GroupShoulder = "shoulder"
)

// Key names an element, e.g. {GroupFace, "down"}.
type Key struct {
	Group, Name string
}

func (k Key) String() string {
	if k.Group == GroupSticks {
		return "sticks." + k.Name
	}
	return "buttons." + k.Group + "." + k.Name
}

// Elements flattens the config into a key-sorted list.
func (c *Config) Elements() []Key {
	var keys []Key
	add := func(group string, m map[string]*Element) {
		for name, el := range m {
			if el != nil {
				keys = append(keys, Key{group, name})
			}
		}
	}
	add(GroupSticks, c.Sticks)
	add(GroupDpad, c.Buttons.Dpad)
	add(GroupFace, c.Buttons.Face)
	add(GroupShoulder, c.Buttons.Shoulder)
	sort.Slice(keys, func(i, j int) bool {
		return keys[i].String() < keys[j].String()
	})
	return keys
}

// Element returns the element for k, or nil.
func (c *Config) Element(k Key) *Element {
	switch k.Group {
	case GroupSticks:
		return c.Sticks[k.Name]
	case GroupDpad:
		return c.Buttons.Dpad[k.Name]
	case GroupFace:
		return c.Buttons.Face[k.Name]
	case GroupShoulder:
		return c.Buttons.Shoulder[k.Name]
	}
	return nil
}

// Validate checks the layout: at least one non-empty layer, and every
// element drawing on an existing layer.
func (c *Config) Validate() error {
	var result *multierror.Error
	if len(c.Layers) == 0 {
		result = multierror.Append(result, errors.New("no layers"))
	}
	for i, l := range c.Layers {
		if l.Width <= 0 || l.Height <= 0 {
			result = multierror.Append(result, errors.Errorf("layer %d has size %dx%d", i, l.Width, l.Height))
		}
	}
	for _, k := range c.Elements() {
		el := c.Element(k)
		if el.Layer < 0 || el.Layer >= len(c.Layers) {
			result = multierror.Append(result, errors.Errorf("%s draws on missing layer %d", k, el.Layer))
		}
		for _, seq := range [][]Instruction{el.Clear, el.On, el.Off} {
			for _, in := range seq {
				if in.Draw == "" {
					result = multierror.Append(result, errors.Errorf("%s has an instruction without draw", k))
				}
			}
		}
	}
	return result.ErrorOrNil()
}

// Size returns the bounding size of all layers.
func (c *Config) Size() (w, h int) {
	for _, l := range c.Layers {
		if r := l.X + l.Width; r > w {
			w = r
		}
		if b := l.Y + l.Height; b > h {
			h = b
		}
	}
	return w, h
}
