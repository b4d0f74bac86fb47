// Package canvas implements the drawing surface skins paint on: stacked
// RGBA layers with the handful of operations the instruction set needs.
package canvas

import (
	"image"
	"image/color"

	"golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
	"golang.org/x/image/vector"
)

// Point is a polygon vertex in layer coordinates.
type Point struct {
	X, Y float64
}

// Layer is one canvas. Rect places it inside the slot's composite image;
// drawing coordinates are local to the layer.
type Layer struct {
	Rect  image.Rectangle
	Image *image.RGBA
}

// NewLayer creates a transparent layer of size w×h at (x, y).
func NewLayer(x, y, w, h int) *Layer {
	return &Layer{
		Rect:  image.Rect(x, y, x+w, y+h),
		Image: image.NewRGBA(image.Rect(0, 0, w, h)),
	}
}

// Bounds returns the layer's local bounds.
func (l *Layer) Bounds() image.Rectangle {
	return l.Image.Bounds()
}

// Clear makes the whole layer transparent.
func (l *Layer) Clear() {
	l.ClearRect(l.Bounds())
}

// ClearRect makes r transparent.
func (l *Layer) ClearRect(r image.Rectangle) {
	draw.Draw(l.Image, r.Intersect(l.Bounds()), image.Transparent, image.Point{}, draw.Src)
}

// ClearPolygon makes the inside of the polygon transparent.
func (l *Layer) ClearPolygon(pts []Point) {
	if len(pts) < 3 {
		return
	}
	mask := PolygonMask(l.Bounds(), pts)
	b := l.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			m := uint32(mask.AlphaAt(x, y).A)
			if m == 0 {
				continue
			}
			// scale the premultiplied pixel by what the polygon leaves uncovered
			keep := 255 - m
			i := l.Image.PixOffset(x, y)
			px := l.Image.Pix[i : i+4 : i+4]
			for c := range px {
				px[c] = uint8((uint32(px[c])*keep + 127) / 255)
			}
		}
	}
}

// DrawImage draws the sr part of src into dr, scaling when the sizes
// differ. The result is blended over the layer at the given alpha and, if
// clip is set, only where clip is opaque. clip is in layer coordinates.
func (l *Layer) DrawImage(src image.Image, sr, dr image.Rectangle, alpha float64, clip *image.Alpha) {
	if alpha <= 0 || sr.Empty() || dr.Empty() {
		return
	}
	if alpha > 1 {
		alpha = 1
	}

	scaled := image.NewRGBA(image.Rect(0, 0, dr.Dx(), dr.Dy()))
	if sr.Size() == dr.Size() {
		draw.Copy(scaled, image.Point{}, src, sr, draw.Src, nil)
	} else {
		draw.ApproxBiLinear.Scale(scaled, scaled.Bounds(), src, sr, draw.Src, nil)
	}

	if alpha == 1 && clip == nil {
		draw.Draw(l.Image, dr, scaled, image.Point{}, draw.Over)
		return
	}

	mask := image.NewAlpha(dr)
	for y := dr.Min.Y; y < dr.Max.Y; y++ {
		for x := dr.Min.X; x < dr.Max.X; x++ {
			a := alpha * 255
			if clip != nil {
				a *= float64(clip.AlphaAt(x, y).A) / 255
			}
			mask.SetAlpha(x, y, color.Alpha{A: uint8(a + 0.5)})
		}
	}
	draw.DrawMask(l.Image, dr, scaled, image.Point{}, mask, dr.Min, draw.Over)
}

// WriteText draws lines of text with the top-left of the first line at
// (x, y). A lineHeight of 0 uses the font's own height.
func (l *Layer) WriteText(lines []string, x, y, lineHeight int, col color.Color, alpha float64) {
	if alpha <= 0 {
		return
	}
	face := basicfont.Face7x13
	if lineHeight <= 0 {
		lineHeight = face.Height
	}
	c := color.NRGBAModel.Convert(col).(color.NRGBA)
	c.A = uint8(float64(c.A)*clamp01(alpha) + 0.5)

	d := &font.Drawer{
		Dst:  l.Image,
		Src:  image.NewUniform(c),
		Face: face,
	}
	for i, line := range lines {
		d.Dot = fixed.P(x, y+face.Ascent+i*lineHeight)
		d.DrawString(line)
	}
}

// PolygonMask rasterises pts into an alpha mask covering bounds.
func PolygonMask(bounds image.Rectangle, pts []Point) *image.Alpha {
	mask := image.NewAlpha(bounds)
	if len(pts) < 3 {
		return mask
	}
	z := vector.NewRasterizer(bounds.Dx(), bounds.Dy())
	ox, oy := float32(bounds.Min.X), float32(bounds.Min.Y)
	z.MoveTo(float32(pts[0].X)-ox, float32(pts[0].Y)-oy)
	for _, p := range pts[1:] {
		z.LineTo(float32(p.X)-ox, float32(p.Y)-oy)
	}
	z.ClosePath()
	z.Draw(mask, bounds, image.Opaque, image.Point{})
	return mask
}

// CropMask returns a copy of mask that is transparent outside keep.
func CropMask(mask *image.Alpha, keep image.Rectangle) *image.Alpha {
	out := image.NewAlpha(mask.Bounds())
	keep = keep.Intersect(mask.Bounds())
	draw.Draw(out, keep, mask, keep.Min, draw.Src)
	return out
}

// Composite draws layers in order over dst at their positions.
func Composite(dst *image.RGBA, layers []*Layer) {
	draw.Draw(dst, dst.Bounds(), image.Transparent, image.Point{}, draw.Src)
	for _, l := range layers {
		if l == nil {
			continue
		}
		draw.Draw(dst, l.Rect, l.Image, image.Point{}, draw.Over)
	}
}

func clamp01(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	}
	return v
}
