// Package transform provides the 2D affine transforms used to map video,
// source and render target coordinate spaces onto each other.
package transform

import (
	"github.com/chewxy/math32"
	"golang.org/x/image/math/f32"

	"github.com/gogpu/vidrender/ra"
)

// Epsilon is the tolerance used by the fuzzy comparisons.
const Epsilon = 1e-6

// Transform is an affine map (x, y) -> M·(x, y) + T.
//
//	x' = M[0][0]*x + M[0][1]*y + T[0]
//	y' = M[1][0]*x + M[1][1]*y + T[1]
type Transform struct {
	M [2][2]float32
	T [2]float32
}

// Identity returns the identity transform.
func Identity() Transform {
	return Transform{M: [2][2]float32{{1, 0}, {0, 1}}}
}

// Translate returns a pure translation.
func Translate(x, y float32) Transform {
	t := Identity()
	t.T = [2]float32{x, y}
	return t
}

// Scale returns a pure scale.
func Scale(x, y float32) Transform {
	return Transform{M: [2][2]float32{{x, 0}, {0, y}}}
}

// Ortho returns the orthographic projection mapping the box
// [x0,x1]×[y0,y1] onto normalized device coordinates [-1,1]².
//
// A box with y1 < y0 is read as a Y-mirrored box: (0, -h) maps y=0 to the
// top and y=h to the bottom.
func Ortho(x0, x1, y0, y1 float32) Transform {
	if y1 < y0 {
		y0, y1 = y0-y1, y0
	}
	var t Transform
	t.M[0][0] = 2 / (x1 - x0)
	t.M[1][1] = 2 / (y1 - y0)
	t.T[0] = -(x1 + x0) / (x1 - x0)
	t.T[1] = -(y1 + y0) / (y1 - y0)
	return t
}

// OrthoFBODst returns the projection for rendering into dst, mirroring the
// Y axis when the target is flipped.
func OrthoFBODst(dst ra.FBODst) Transform {
	ydir := float32(1)
	if dst.Flip {
		ydir = -1
	}
	w, h := dst.Tex.Width(), dst.Tex.Height()
	return Ortho(0, float32(w), 0, float32(h)*ydir)
}

// Apply maps the point (x, y).
func (t Transform) Apply(x, y float32) (float32, float32) {
	return x*t.M[0][0] + y*t.M[0][1] + t.T[0],
		x*t.M[1][0] + y*t.M[1][1] + t.T[1]
}

// Then returns the transform that applies t first and next second.
func (t Transform) Then(next Transform) Transform {
	var r Transform
	r.M[0][0] = next.M[0][0]*t.M[0][0] + next.M[0][1]*t.M[1][0]
	r.M[1][0] = next.M[1][0]*t.M[0][0] + next.M[1][1]*t.M[1][0]
	r.M[0][1] = next.M[0][0]*t.M[0][1] + next.M[0][1]*t.M[1][1]
	r.M[1][1] = next.M[1][0]*t.M[0][1] + next.M[1][1]*t.M[1][1]
	r.T[0], r.T[1] = next.Apply(t.T[0], t.T[1])
	return r
}

// Trans prepends t to the accumulated transform acc: afterwards acc maps
// points through its old value and then through t.
func Trans(t Transform, acc *Transform) {
	*acc = acc.Then(t)
}

// Invert returns the inverse transform and whether it exists.
func (t Transform) Invert() (Transform, bool) {
	det := t.M[0][0]*t.M[1][1] - t.M[0][1]*t.M[1][0]
	if math32.Abs(det) < 1e-10 {
		return Identity(), false
	}
	inv := 1 / det
	var r Transform
	r.M[0][0] = t.M[1][1] * inv
	r.M[0][1] = -t.M[0][1] * inv
	r.M[1][0] = -t.M[1][0] * inv
	r.M[1][1] = t.M[0][0] * inv
	r.T[0] = -(r.M[0][0]*t.T[0] + r.M[0][1]*t.T[1])
	r.T[1] = -(r.M[1][0]*t.T[0] + r.M[1][1]*t.T[1])
	return r, true
}

// IsIdentity reports whether t is exactly the identity.
func (t Transform) IsIdentity() bool {
	return t == Identity()
}

// Equal reports bitwise equality. Used for change detection.
func (t Transform) Equal(o Transform) bool {
	return t == o
}

// ApproxEqual reports equality within Epsilon per coefficient.
func (t Transform) ApproxEqual(o Transform) bool {
	return near(t.M[0][0], o.M[0][0]) && near(t.M[0][1], o.M[0][1]) &&
		near(t.M[1][0], o.M[1][0]) && near(t.M[1][1], o.M[1][1]) &&
		near(t.T[0], o.T[0]) && near(t.T[1], o.T[1])
}

// Aff3 returns t in the row-major layout of x/image/math/f32.
func (t Transform) Aff3() f32.Aff3 {
	return f32.Aff3{
		t.M[0][0], t.M[0][1], t.T[0],
		t.M[1][0], t.M[1][1], t.T[1],
	}
}

// FromAff3 is the inverse of Aff3.
func FromAff3(a f32.Aff3) Transform {
	return Transform{
		M: [2][2]float32{{a[0], a[1]}, {a[3], a[4]}},
		T: [2]float32{a[2], a[5]},
	}
}

func near(a, b float32) bool {
	return math32.Abs(a-b) < Epsilon
}
