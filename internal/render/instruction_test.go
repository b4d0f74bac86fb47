package render

import (
	"encoding/json"
	"image"
	"image/color"
	"testing"

	"github.com/soar/padview/internal/canvas"
	"github.com/soar/padview/internal/skin"
)

func instr(t *testing.T, src string) skin.Instruction {
	t.Helper()
	var in skin.Instruction
	if err := json.Unmarshal([]byte(src), &in); err != nil {
		t.Fatal(err)
	}
	return in
}

func sheet(w, h int, c color.RGBA) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetRGBA(x, y, c)
		}
	}
	return img
}

var opaqueRed = color.RGBA{R: 255, A: 255}

func TestCompileRejects(t *testing.T) {
	cases := map[string]string{
		"unknown primitive": `{"draw": "drawCircle"}`,
		"missing literal":   `{"draw": "clearRect", "x": 0, "y": 0, "width": 4}`,
		"wrong type":        `{"draw": "clearRect", "x": "0", "y": 0, "width": 4, "height": 4}`,
		"missing sprite":    `{"draw": "drawImage", "image": 2, "sx": 0, "sy": 0, "sw": 1, "sh": 1, "dx": 0, "dy": 0}`,
		"odd points":        `{"draw": "clearPolygon", "points": [0, 0, 1, 1, 2]}`,
		"short positions":   `{"draw": "drawImageInPosition", "sx": 0, "sy": 0, "sw": 1, "sh": 1, "positions": [0, 0]}`,
		"bad color":         `{"draw": "writeText", "x": 0, "y": 0, "color": "red"}`,
		"bad direction":     `{"draw": "drawImageInPolygonByValue", "sx": 0, "sy": 0, "sw": 1, "sh": 1, "dx": 0, "dy": 0, "points": [0,0,1,0,1,1], "direction": "sideways"}`,
	}
	for name, src := range cases {
		if _, err := compile(instr(t, src), 1); err == nil {
			t.Errorf("%s: expected an error", name)
		}
	}
}

func TestKnown(t *testing.T) {
	for _, name := range []string{ClearRect, ClearPolygon, DrawImage, DrawImageByPosition, DrawImageInPosition,
		DrawImageInPolygon, DrawImageInPolygonByValue, WriteText, WriteTextLines} {
		if !Known(name) {
			t.Errorf("expected %s to be known", name)
		}
	}
	if Known("fillRect") {
		t.Error("expected fillRect to be unknown")
	}
}

func runOp(t *testing.T, src string, env *Env) {
	t.Helper()
	o, err := compile(instr(t, src), len(env.Sprites))
	if err != nil {
		t.Fatal(err)
	}
	if err := o.run(env); err != nil {
		t.Fatal(err)
	}
}

func TestDrawImageUsesResolvedAlpha(t *testing.T) {
	env := &Env{Layer: canvas.NewLayer(0, 0, 10, 10), Sprites: []image.Image{sheet(4, 4, opaqueRed)}, Alpha: 0.5}
	runOp(t, `{"draw": "drawImage", "sx": 0, "sy": 0, "sw": 4, "sh": 4, "dx": 2, "dy": 2}`, env)

	if got := env.Layer.Image.RGBAAt(3, 3).A; got < 126 || got > 129 {
		t.Errorf("expected half alpha from the element, got %d", got)
	}
	if got := env.Layer.Image.RGBAAt(7, 7).A; got != 0 {
		t.Errorf("expected nothing outside the 4x4 target, got %d", got)
	}
}

func TestDrawImageByPosition(t *testing.T) {
	env := &Env{
		Layer:   canvas.NewLayer(0, 0, 30, 30),
		Sprites: []image.Image{sheet(4, 4, opaqueRed)},
		Value:   Value{X: 1, Y: -0.5},
		Alpha:   1,
	}
	runOp(t, `{"draw": "drawImageByPosition", "sx": 0, "sy": 0, "sw": 4, "sh": 4, "dx": 10, "dy": 10, "radius": 8}`, env)

	// rest position 10,10 moved by (8, -4)
	if got := env.Layer.Image.RGBAAt(19, 7); got != opaqueRed {
		t.Errorf("expected sprite at the deflected position, got %v", got)
	}
	if got := env.Layer.Image.RGBAAt(11, 11); got.A != 0 {
		t.Errorf("expected rest position to be empty, got %v", got)
	}
}

func TestDrawImageInPosition(t *testing.T) {
	positions := `[10,10, 10,0, 20,0, 20,10, 20,20, 10,20, 0,20, 0,10, 0,0]`
	cases := []struct {
		value Value
		at    image.Point
	}{
		{Value{}, image.Pt(11, 11)},
		{Value{X: 1}, image.Pt(21, 11)},
		{Value{X: -1, Y: -1}, image.Pt(1, 1)},
		{Value{Y: 1}, image.Pt(11, 21)},
		{Value{X: 0.3, Y: 0.2}, image.Pt(11, 11)},
	}
	for _, c := range cases {
		env := &Env{Layer: canvas.NewLayer(0, 0, 30, 30), Sprites: []image.Image{sheet(4, 4, opaqueRed)}, Value: c.value, Alpha: 1}
		runOp(t, `{"draw": "drawImageInPosition", "sx": 0, "sy": 0, "sw": 4, "sh": 4, "positions": `+positions+`}`, env)
		if got := env.Layer.Image.RGBAAt(c.at.X, c.at.Y); got != opaqueRed {
			t.Errorf("value %+v: expected sprite at %v, got %v", c.value, c.at, got)
		}
	}
}

func TestDrawImageInPolygonByValue(t *testing.T) {
	env := &Env{
		Layer:   canvas.NewLayer(0, 0, 10, 10),
		Sprites: []image.Image{sheet(10, 10, opaqueRed)},
		Value:   Value{Button: 0.5},
		Alpha:   1,
	}
	runOp(t, `{"draw": "drawImageInPolygonByValue", "sx": 0, "sy": 0, "sw": 10, "sh": 10, "dx": 0, "dy": 0,
		"points": [0,0, 10,0, 10,10, 0,10]}`, env)

	if got := env.Layer.Image.RGBAAt(5, 8); got != opaqueRed {
		t.Errorf("expected the bottom half to be filled, got %v", got)
	}
	if got := env.Layer.Image.RGBAAt(5, 2); got.A != 0 {
		t.Errorf("expected the top half to stay empty, got %v", got)
	}
}

func TestClearPolygonInstruction(t *testing.T) {
	env := &Env{Layer: canvas.NewLayer(0, 0, 10, 10), Sprites: []image.Image{sheet(10, 10, opaqueRed)}, Alpha: 1}
	runOp(t, `{"draw": "drawImage", "sx": 0, "sy": 0, "sw": 10, "sh": 10, "dx": 0, "dy": 0}`, env)
	runOp(t, `{"draw": "clearPolygon", "points": [0,0, 5,0, 5,10, 0,10]}`, env)

	if got := env.Layer.Image.RGBAAt(2, 5); got.A != 0 {
		t.Errorf("expected cleared polygon, got %v", got)
	}
	if got := env.Layer.Image.RGBAAt(8, 5); got != opaqueRed {
		t.Errorf("expected the rest to stay, got %v", got)
	}
}

func TestRunWithoutCanvas(t *testing.T) {
	o, err := compile(instr(t, `{"draw": "clearRect", "x": 0, "y": 0, "width": 1, "height": 1}`), 0)
	if err != nil {
		t.Fatal(err)
	}
	if err := o.run(&Env{}); err == nil {
		t.Error("expected drawing without a canvas to fail")
	}
}

func TestExpand(t *testing.T) {
	got := expand("x={x} y={y} v={value}", Value{X: 0.5, Y: -1, Button: 1})
	if want := "x=0.50 y=-1.00 v=1.00"; got != want {
		t.Errorf("expected %q, got %q", want, got)
	}
}

func TestParseColor(t *testing.T) {
	cases := map[string]color.NRGBA{
		"#fff":      {255, 255, 255, 255},
		"#102030":   {0x10, 0x20, 0x30, 0xff},
		"#10203040": {0x10, 0x20, 0x30, 0x40},
	}
	for in, want := range cases {
		got, err := parseColor(in)
		if err != nil || got != want {
			t.Errorf("parseColor(%q): expected %v, got %v (%v)", in, want, got, err)
		}
	}
	if _, err := parseColor("102030"); err == nil {
		t.Error("expected color without # to be rejected")
	}
}
