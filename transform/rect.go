package transform

import (
	"image"

	"github.com/chewxy/math32"
)

// Rect is an axis-aligned rectangle with float coordinates.
type Rect struct {
	X0, Y0, X1, Y1 float32
}

// RectFromImage converts an integer rectangle.
func RectFromImage(r image.Rectangle) Rect {
	return Rect{float32(r.Min.X), float32(r.Min.Y), float32(r.Max.X), float32(r.Max.Y)}
}

// W returns the width.
func (r Rect) W() float32 { return r.X1 - r.X0 }

// H returns the height.
func (r Rect) H() float32 { return r.Y1 - r.Y0 }

// ApproxEqual reports equality within Epsilon per coordinate.
func (r Rect) ApproxEqual(o Rect) bool {
	return near(r.X0, o.X0) && near(r.Y0, o.Y0) && near(r.X1, o.X1) && near(r.Y1, o.Y1)
}

// Round returns the nearest integer rectangle.
func (r Rect) Round() image.Rectangle {
	return image.Rect(int(math32.Round(r.X0)), int(math32.Round(r.Y0)),
		int(math32.Round(r.X1)), int(math32.Round(r.Y1)))
}

// ApplyRect maps both corners of r.
func (t Transform) ApplyRect(r Rect) Rect {
	x0, y0 := t.Apply(r.X0, r.Y0)
	x1, y1 := t.Apply(r.X1, r.Y1)
	return Rect{x0, y0, x1, y1}
}
