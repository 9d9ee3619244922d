package kernel

import (
	"math"

	"golang.org/x/image/draw"
)

// WeightFunc evaluates a window or kernel function at |x| < radius.
type WeightFunc func(w *Window, x float64) float64

// Window is a filter function with its shape parameters. It serves both as
// the kernel function proper (Kernel.F) and as the windowing function
// applied to it (Kernel.W).
type Window struct {
	Name   string
	Radius float64

	// Params are function-specific; NaN means "use the default".
	Params [2]float64

	// Blur stretches the function; 0 means 1.
	Blur float64

	// Taper flattens the center: |x| <= Taper evaluates as 0.
	Taper float64

	Weight WeightFunc

	// Resizable kernels accept a user radius.
	Resizable bool
}

// Sample evaluates the window at x, applying blur and taper. A window
// without a weight function is constant 1.
func (w *Window) Sample(x float64) float64 {
	if w.Weight == nil {
		return 1
	}
	x = math.Abs(x)
	if w.Blur > 0 {
		x /= w.Blur
	}
	if x <= w.Taper {
		x = 0
	} else {
		x = (x - w.Taper) / (1 - w.Taper)
	}
	if x < w.Radius {
		return w.Weight(w, x)
	}
	return 0
}

func box(*Window, float64) float64 { return 1 }

func triangle(w *Window, x float64) float64 {
	t := math.Abs(x / w.Radius)
	if t >= draw.BiLinear.Support {
		return 0
	}
	return draw.BiLinear.At(t)
}

func cosine(_ *Window, x float64) float64 { return math.Cos(x) }

func hanning(_ *Window, x float64) float64 { return 0.5 + 0.5*math.Cos(math.Pi*x) }

func hamming(_ *Window, x float64) float64 { return 0.54 + 0.46*math.Cos(math.Pi*x) }

func quadric(_ *Window, x float64) float64 {
	switch {
	case x < 0.5:
		return 0.75 - x*x
	case x < 1.5:
		t := x - 1.5
		return 0.5 * t * t
	}
	return 0
}

func welch(_ *Window, x float64) float64 { return 1 - x*x }

// besselI0 is the modified Bessel function of the first kind, order 0.
func besselI0(x float64) float64 {
	s := 1.0
	y := x * x / 4
	t := y
	for i := 2; t > 1e-12; i++ {
		s += t
		t *= y / float64(i*i)
	}
	return s
}

func kaiser(w *Window, x float64) float64 {
	if x > 1 {
		return 0
	}
	a := w.Params[0]
	return besselI0(a*math.Sqrt(1-x*x)) / besselI0(a)
}

func blackman(w *Window, x float64) float64 {
	a := w.Params[0]
	a0, a1, a2 := (1-a)/2, 0.5, a/2
	px := math.Pi * x
	return a0 + a1*math.Cos(px) + a2*math.Cos(2*px)
}

func gaussian(w *Window, x float64) float64 {
	return math.Exp(-2 * x * x / w.Params[0])
}

func sinc(_ *Window, x float64) float64 {
	if math.Abs(x) < 1e-8 {
		return 1
	}
	x *= math.Pi
	return math.Sin(x) / x
}

func jinc(_ *Window, x float64) float64 {
	if math.Abs(x) < 1e-8 {
		return 1
	}
	x *= math.Pi
	return 2 * math.J1(x) / x
}

func sphinx(_ *Window, x float64) float64 {
	if math.Abs(x) < 1e-8 {
		return 1
	}
	x *= math.Pi
	return 3 * (math.Sin(x) - x*math.Cos(x)) / (x * x * x)
}

// cubicBC is the Mitchell-Netravali family with B = Params[0], C = Params[1].
func cubicBC(w *Window, x float64) float64 {
	b, c := w.Params[0], w.Params[1]
	p0 := (6 - 2*b) / 6
	p2 := (-18 + 12*b + 6*c) / 6
	p3 := (12 - 9*b - 6*c) / 6
	q0 := (8*b + 24*c) / 6
	q1 := (-12*b - 48*c) / 6
	q2 := (6*b + 30*c) / 6
	q3 := (-b - 6*c) / 6

	switch {
	case x < 1:
		return p0 + x*x*(p2+x*p3)
	case x < 2:
		return q0 + x*(q1+x*(q2+x*q3))
	}
	return 0
}

func spline16(_ *Window, x float64) float64 {
	if x < 1 {
		return ((x-9.0/5.0)*x-1.0/5.0)*x + 1
	}
	x--
	return ((-1.0/3.0*x+4.0/5.0)*x - 7.0/15.0) * x
}

func spline36(_ *Window, x float64) float64 {
	switch {
	case x < 1:
		return ((13.0/11.0*x-453.0/209.0)*x-3.0/209.0)*x + 1
	case x < 2:
		x--
		return ((-6.0/11.0*x+270.0/209.0)*x - 156.0/209.0) * x
	}
	x -= 2
	return ((1.0/11.0*x-45.0/209.0)*x + 26.0/209.0) * x
}

func spline64(_ *Window, x float64) float64 {
	switch {
	case x < 1:
		return ((49.0/41.0*x-6387.0/2911.0)*x-3.0/2911.0)*x + 1
	case x < 2:
		x--
		return ((-24.0/41.0*x+4032.0/2911.0)*x - 2328.0/2911.0) * x
	case x < 3:
		x -= 2
		return ((6.0/41.0*x-1008.0/2911.0)*x + 582.0/2911.0) * x
	}
	x -= 3
	return ((-1.0/41.0*x+168.0/2911.0)*x - 97.0/2911.0) * x
}

var nan = math.NaN()

var windows = []Window{
	{Name: "box", Radius: 1, Weight: box},
	{Name: "triangle", Radius: 1, Weight: triangle},
	{Name: "bartlett", Radius: 1, Weight: triangle},
	{Name: "cosine", Radius: math.Pi / 2, Weight: cosine},
	{Name: "hanning", Radius: 1, Weight: hanning},
	{Name: "tukey", Radius: 1, Weight: hanning, Taper: 0.5},
	{Name: "hamming", Radius: 1, Weight: hamming},
	{Name: "quadric", Radius: 1.5, Weight: quadric},
	{Name: "welch", Radius: 1, Weight: welch},
	{Name: "kaiser", Radius: 1, Weight: kaiser, Params: [2]float64{6.33, nan}},
	{Name: "blackman", Radius: 1, Weight: blackman, Params: [2]float64{0.16, nan}},
	{Name: "gaussian", Radius: 2, Weight: gaussian, Params: [2]float64{1, nan}},
	{Name: "sinc", Radius: 1, Weight: sinc},
	{Name: "jinc", Radius: 1.2196698912665045, Weight: jinc},
	{Name: "sphinx", Radius: 1.4302966531242027, Weight: sphinx},
}

// FindWindow returns a copy of the named window.
func FindWindow(name string) (Window, bool) {
	for _, w := range windows {
		if w.Name == name {
			return w, true
		}
	}
	return Window{}, false
}

// WindowNames lists the known windows.
func WindowNames() []string {
	names := make([]string, len(windows))
	for i, w := range windows {
		names[i] = w.Name
	}
	return names
}
