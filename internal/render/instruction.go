package render

import (
	"encoding/json"
	"fmt"
	"image"
	"image/color"
	"math"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"github.com/soar/padview/internal/canvas"
	"github.com/soar/padview/internal/skin"
)

// Value is what an element currently shows. Sticks use X and Y, buttons
// use Button; Pressed is the button (or stick click) state.
type Value struct {
	X, Y    float64
	Button  float64
	Pressed bool
}

// Env is what an instruction draws with.
type Env struct {
	Layer   *canvas.Layer
	Sprites []image.Image
	Value   Value
	Alpha   float64
}

// source says where a parameter's argument comes from.
type source int

const (
	fromCtx source = iota
	fromImage
	fromValue
	fromAlpha
	fromLiteral
)

// kind is the JSON shape of a literal parameter.
type kind int

const (
	number kind = iota
	numbers
	text
	texts
)

type param struct {
	name     string
	from     source
	kind     kind
	optional bool
}

func ctxParam() param       { return param{name: "ctx", from: fromCtx} }
func imageParam() param     { return param{name: "image", from: fromImage} }
func valueParam() param     { return param{name: "value", from: fromValue} }
func alphaParam() param     { return param{name: "alpha", from: fromAlpha} }
func num(name string) param { return param{name: name, from: fromLiteral, kind: number} }
func optNum(name string) param {
	return param{name: name, from: fromLiteral, kind: number, optional: true}
}
func nums(name string) param { return param{name: name, from: fromLiteral, kind: numbers} }
func optText(name string) param {
	return param{name: name, from: fromLiteral, kind: text, optional: true}
}
func txts(name string) param { return param{name: name, from: fromLiteral, kind: texts} }

func sourceParams() []param {
	return []param{num("sx"), num("sy"), num("sw"), num("sh")}
}

func join(groups ...[]param) []param {
	var out []param
	for _, g := range groups {
		out = append(out, g...)
	}
	return out
}

// primitive is one entry of the drawing vocabulary: the parameters it
// declares and the function drawing with the resolved arguments.
type primitive struct {
	params []param
	draw   func(a *args) error
}

// Primitive names.
const (
	ClearRect                 = "clearRect"
	ClearPolygon              = "clearPolygon"
	DrawImage                 = "drawImage"
	DrawImageByPosition       = "drawImageByPosition"
	DrawImageInPosition       = "drawImageInPosition"
	DrawImageInPolygon        = "drawImageInPolygon"
	DrawImageInPolygonByValue = "drawImageInPolygonByValue"
	WriteText                 = "writeText"
	WriteTextLines            = "writeTextLines"
)

var primitives map[string]*primitive

func init() {
	primitives = map[string]*primitive{
		ClearRect: {
			params: []param{ctxParam(), num("x"), num("y"), num("width"), num("height")},
			draw:   drawClearRect,
		},
		ClearPolygon: {
			params: []param{ctxParam(), nums("points")},
			draw:   drawClearPolygon,
		},
		DrawImage: {
			params: join([]param{ctxParam(), imageParam(), alphaParam()}, sourceParams(),
				[]param{num("dx"), num("dy"), optNum("dw"), optNum("dh")}),
			draw: drawImage,
		},
		DrawImageByPosition: {
			params: join([]param{ctxParam(), imageParam(), valueParam(), alphaParam()}, sourceParams(),
				[]param{num("dx"), num("dy"), num("radius")}),
			draw: drawImageByPosition,
		},
		DrawImageInPosition: {
			params: join([]param{ctxParam(), imageParam(), valueParam(), alphaParam()}, sourceParams(),
				[]param{nums("positions"), optNum("threshold")}),
			draw: drawImageInPosition,
		},
		DrawImageInPolygon: {
			params: join([]param{ctxParam(), imageParam(), alphaParam()}, sourceParams(),
				[]param{num("dx"), num("dy"), optNum("dw"), optNum("dh"), nums("points")}),
			draw: drawImageInPolygon,
		},
		DrawImageInPolygonByValue: {
			params: join([]param{ctxParam(), imageParam(), valueParam(), alphaParam()}, sourceParams(),
				[]param{num("dx"), num("dy"), optNum("dw"), optNum("dh"), nums("points"), optText("direction")}),
			draw: drawImageInPolygonByValue,
		},
		WriteText: {
			params: []param{ctxParam(), valueParam(), alphaParam(), num("x"), num("y"),
				optText("text"), optText("format"), optText("color")},
			draw: drawWriteText,
		},
		WriteTextLines: {
			params: []param{ctxParam(), valueParam(), alphaParam(), num("x"), num("y"),
				txts("lines"), optNum("lineHeight"), optText("color")},
			draw: drawWriteTextLines,
		},
	}
}

// Known reports whether name is part of the drawing vocabulary.
func Known(name string) bool {
	_, ok := primitives[name]
	return ok
}

// literals holds an instruction's decoded literal parameters.
type literals struct {
	num   map[string]float64
	nums  map[string][]float64
	text  map[string]string
	texts map[string][]string
}

// op is an instruction bound to its primitive with literals decoded.
type op struct {
	name  string
	prim  *primitive
	image int
	lit   literals
}

// compile checks an instruction against its primitive's declared
// parameters and decodes the literals once.
func compile(in skin.Instruction, sprites int) (*op, error) {
	prim, ok := primitives[in.Draw]
	if !ok {
		return nil, errors.Errorf("unknown drawing primitive %q", in.Draw)
	}
	o := &op{
		name: in.Draw,
		prim: prim,
		lit: literals{
			num:   map[string]float64{},
			nums:  map[string][]float64{},
			text:  map[string]string{},
			texts: map[string][]string{},
		},
	}

	for _, p := range prim.params {
		switch p.from {
		case fromImage:
			if raw, ok := in.Params["image"]; ok {
				if err := json.Unmarshal(raw, &o.image); err != nil {
					return nil, errors.Wrapf(err, "%s: image", in.Draw)
				}
			}
			if o.image < 0 || o.image >= sprites {
				return nil, errors.Errorf("%s: sprite %d does not exist", in.Draw, o.image)
			}
		case fromLiteral:
			raw, ok := in.Params[p.name]
			if !ok {
				if p.optional {
					continue
				}
				return nil, errors.Errorf("%s: missing parameter %q", in.Draw, p.name)
			}
			if err := o.lit.decode(p, raw); err != nil {
				return nil, errors.Wrapf(err, "%s: parameter %q", in.Draw, p.name)
			}
		}
	}
	return o, o.check()
}

func (l *literals) decode(p param, raw json.RawMessage) error {
	switch p.kind {
	case number:
		var v float64
		if err := json.Unmarshal(raw, &v); err != nil {
			return err
		}
		l.num[p.name] = v
	case numbers:
		var v []float64
		if err := json.Unmarshal(raw, &v); err != nil {
			return err
		}
		l.nums[p.name] = v
	case text:
		var v string
		if err := json.Unmarshal(raw, &v); err != nil {
			return err
		}
		l.text[p.name] = v
	case texts:
		var v []string
		if err := json.Unmarshal(raw, &v); err != nil {
			return err
		}
		l.texts[p.name] = v
	}
	return nil
}

// check validates literal shapes a plain JSON decode cannot.
func (o *op) check() error {
	if pts, ok := o.lit.nums["points"]; ok {
		if len(pts) < 6 || len(pts)%2 != 0 {
			return errors.Errorf("%s: points needs at least 3 x,y pairs", o.name)
		}
	}
	if pos, ok := o.lit.nums["positions"]; ok && len(pos) != 18 {
		return errors.Errorf("%s: positions needs 9 x,y pairs, got %d numbers", o.name, len(pos))
	}
	if c, ok := o.lit.text["color"]; ok {
		if _, err := parseColor(c); err != nil {
			return errors.Wrapf(err, "%s", o.name)
		}
	}
	if d, ok := o.lit.text["direction"]; ok {
		switch d {
		case "up", "down", "left", "right":
		default:
			return errors.Errorf("%s: unknown direction %q", o.name, d)
		}
	}
	return nil
}

// args are an op's resolved arguments.
type args struct {
	layer *canvas.Layer
	image image.Image
	value Value
	alpha float64
	lit   *literals
}

func (a *args) num(name string) float64 {
	return a.lit.num[name]
}

func (a *args) numOr(name string, def float64) float64 {
	if v, ok := a.lit.num[name]; ok {
		return v
	}
	return def
}

func (a *args) textOr(name, def string) string {
	if v, ok := a.lit.text[name]; ok {
		return v
	}
	return def
}

func (a *args) points(name string) []canvas.Point {
	flat := a.lit.nums[name]
	pts := make([]canvas.Point, 0, len(flat)/2)
	for i := 0; i+1 < len(flat); i += 2 {
		pts = append(pts, canvas.Point{X: flat[i], Y: flat[i+1]})
	}
	return pts
}

func (a *args) src() image.Rectangle {
	return rect(a.num("sx"), a.num("sy"), a.num("sw"), a.num("sh"))
}

// dst is the destination rect, sized like the source unless dw/dh are set.
func (a *args) dst() image.Rectangle {
	return rect(a.num("dx"), a.num("dy"), a.numOr("dw", a.num("sw")), a.numOr("dh", a.num("sh")))
}

func (a *args) color() color.Color {
	c, _ := parseColor(a.textOr("color", "#ffffff"))
	return c
}

// run resolves each declared parameter from env and draws.
func (o *op) run(env *Env) error {
	a := &args{lit: &o.lit, alpha: 1}
	for _, p := range o.prim.params {
		switch p.from {
		case fromCtx:
			if env.Layer == nil {
				return errors.Wrapf(ErrNotReady, "%s: no canvas", o.name)
			}
			a.layer = env.Layer
		case fromImage:
			if o.image >= len(env.Sprites) || env.Sprites[o.image] == nil {
				return errors.Wrapf(ErrNotReady, "%s: sprite %d not loaded", o.name, o.image)
			}
			a.image = env.Sprites[o.image]
		case fromValue:
			a.value = env.Value
		case fromAlpha:
			a.alpha = env.Alpha
		}
	}
	return o.prim.draw(a)
}

func drawClearRect(a *args) error {
	a.layer.ClearRect(rect(a.num("x"), a.num("y"), a.num("width"), a.num("height")))
	return nil
}

func drawClearPolygon(a *args) error {
	a.layer.ClearPolygon(a.points("points"))
	return nil
}

func drawImage(a *args) error {
	a.layer.DrawImage(a.image, a.src(), a.dst(), a.alpha, nil)
	return nil
}

// drawImageByPosition moves the sprite from its rest position by the stick
// deflection times radius.
func drawImageByPosition(a *args) error {
	r := a.num("radius")
	dst := rect(a.num("dx")+a.value.X*r, a.num("dy")+a.value.Y*r, a.num("sw"), a.num("sh"))
	a.layer.DrawImage(a.image, a.src(), dst, a.alpha, nil)
	return nil
}

// Nine-way position order used by drawImageInPosition.
var ninePositions = [3][3]int{
	// x = -1, 0, 1
	{8, 1, 2}, // y = -1: upleft, up, upright
	{7, 0, 3}, // y = 0: left, center, right
	{6, 5, 4}, // y = 1: downleft, down, downright
}

func quantize(v, threshold float64) int {
	switch {
	case v > threshold:
		return 1
	case v < -threshold:
		return -1
	}
	return 0
}

// drawImageInPosition draws the sprite at the position matching the
// value's direction: center, up, upright, right, downright, down,
// downleft, left, upleft.
func drawImageInPosition(a *args) error {
	th := a.numOr("threshold", 0.5)
	idx := ninePositions[quantize(a.value.Y, th)+1][quantize(a.value.X, th)+1]
	pos := a.lit.nums["positions"]
	dst := rect(pos[idx*2], pos[idx*2+1], a.num("sw"), a.num("sh"))
	a.layer.DrawImage(a.image, a.src(), dst, a.alpha, nil)
	return nil
}

func drawImageInPolygon(a *args) error {
	mask := canvas.PolygonMask(a.layer.Bounds(), a.points("points"))
	a.layer.DrawImage(a.image, a.src(), a.dst(), a.alpha, mask)
	return nil
}

// drawImageInPolygonByValue fills the polygon proportionally to the value,
// growing from the side opposite to direction.
func drawImageInPolygonByValue(a *args) error {
	v := math.Max(0, math.Min(1, math.Abs(a.value.Button)))
	if v == 0 {
		return nil
	}
	dst := a.dst()
	keep := dst
	w, h := int(math.Round(float64(dst.Dx())*v)), int(math.Round(float64(dst.Dy())*v))
	switch a.textOr("direction", "up") {
	case "up":
		keep.Min.Y = dst.Max.Y - h
	case "down":
		keep.Max.Y = dst.Min.Y + h
	case "left":
		keep.Min.X = dst.Max.X - w
	case "right":
		keep.Max.X = dst.Min.X + w
	}
	mask := canvas.CropMask(canvas.PolygonMask(a.layer.Bounds(), a.points("points")), keep)
	a.layer.DrawImage(a.image, a.src(), dst, a.alpha, mask)
	return nil
}

func drawWriteText(a *args) error {
	var line string
	if t, ok := a.lit.text["text"]; ok {
		line = expand(t, a.value)
	} else {
		line = fmt.Sprintf(a.textOr("format", "%.2f"), a.value.Button)
	}
	a.layer.WriteText([]string{line}, int(a.num("x")), int(a.num("y")), 0, a.color(), a.alpha)
	return nil
}

func drawWriteTextLines(a *args) error {
	src := a.lit.texts["lines"]
	lines := make([]string, len(src))
	for i, l := range src {
		lines[i] = expand(l, a.value)
	}
	a.layer.WriteText(lines, int(a.num("x")), int(a.num("y")), int(a.numOr("lineHeight", 0)), a.color(), a.alpha)
	return nil
}

// expand substitutes {x}, {y} and {value} in s.
func expand(s string, v Value) string {
	if !strings.Contains(s, "{") {
		return s
	}
	return strings.NewReplacer(
		"{x}", strconv.FormatFloat(v.X, 'f', 2, 64),
		"{y}", strconv.FormatFloat(v.Y, 'f', 2, 64),
		"{value}", strconv.FormatFloat(v.Button, 'f', 2, 64),
	).Replace(s)
}

func rect(x, y, w, h float64) image.Rectangle {
	x0, y0 := int(math.Round(x)), int(math.Round(y))
	return image.Rect(x0, y0, x0+int(math.Round(w)), y0+int(math.Round(h)))
}

// parseColor reads #rgb, #rrggbb or #rrggbbaa.
func parseColor(s string) (color.NRGBA, error) {
	hex := strings.TrimPrefix(s, "#")
	if len(hex) == 3 {
		hex = string([]byte{hex[0], hex[0], hex[1], hex[1], hex[2], hex[2]})
	}
	if len(hex) == 6 {
		hex += "ff"
	}
	if len(hex) != 8 || !strings.HasPrefix(s, "#") {
		return color.NRGBA{}, errors.Errorf("bad color %q", s)
	}
	v, err := strconv.ParseUint(hex, 16, 32)
	if err != nil {
		return color.NRGBA{}, errors.Errorf("bad color %q", s)
	}
	return color.NRGBA{R: uint8(v >> 24), G: uint8(v >> 16), B: uint8(v >> 8), A: uint8(v)}, nil
}
