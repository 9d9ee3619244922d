// Package kernel provides the filter kernels and windows used by the
// scalers, kernel sizing against the available filter sizes, and the
// weight tables uploaded as scaler LUTs.
package kernel

import (
	"math"

	"golang.org/x/image/draw"
)

// Sizes are the separable filter sizes scalers are compiled for.
var Sizes = []int{2, 4, 6, 8, 12, 16, 20, 24, 28, 32, 36, 40, 44, 48, 52, 56, 60, 64}

// LUT size exponent limits.
const (
	MinLUTSizeLog2 = 1
	MaxLUTSizeLog2 = 10
)

// MaxPolarRadius bounds the source radius of polar kernels.
const MaxPolarRadius = 16.0

const (
	jincR3 = 3.2383154841662362
	jincR4 = 4.2410628637960699
)

// Kernel is a filter function windowed by a second function.
//
// A Kernel is a plain value: copying it yields an independent instance,
// which is how scalers hold their resolved kernel.
type Kernel struct {
	F Window
	W Window

	// DefaultWindow names the window used when none is configured.
	DefaultWindow string

	// Clamp scales negative weights by (1 - Clamp).
	Clamp float64

	// ValueCutoff is the weight below which polar samples are dropped.
	ValueCutoff float64

	// Polar kernels are evaluated by radius (EWA) instead of separably.
	Polar bool

	// Set by Init.
	Radius      float64 // blurred kernel radius
	Size        int     // taps per dimension; 1 for polar kernels
	InvScale    float64 // source/destination size ratio
	FilterScale float64 // widening applied when downscaling

	// RadiusCutoff is the largest radius with a weight above ValueCutoff.
	// Set by ComputeLUT for polar kernels.
	RadiusCutoff float64
}

var (
	robidouxB      = 12 / (19 + 9*math.Sqrt2)
	robidouxC      = 113 / (58 + 216*math.Sqrt2)
	robidouxSharpB = 6 / (13 + 7*math.Sqrt2)
	robidouxSharpC = 7 / (2 + 12*math.Sqrt2)
)

func fn(name string, radius float64, w WeightFunc) Window {
	return Window{Name: name, Radius: radius, Weight: w}
}

func resizable(w Window) Window {
	w.Resizable = true
	return w
}

func blurred(w Window, blur float64) Window {
	w.Blur = blur
	return w
}

func params(w Window, a, b float64) Window {
	w.Params = [2]float64{a, b}
	return w
}

var kernels = []Kernel{
	{F: fn("spline16", 2, spline16)},
	{F: fn("spline36", 3, spline36)},
	{F: fn("spline64", 4, spline64)},

	{F: resizable(fn("sinc", 2, sinc))},
	{F: resizable(fn("lanczos", 3, sinc)), DefaultWindow: "sinc"},
	{F: resizable(fn("ginseng", 3, sinc)), DefaultWindow: "jinc"},

	{F: resizable(fn("jinc", jincR3, jinc)), Polar: true},
	{F: resizable(fn("ewa_lanczos", jincR3, jinc)), Polar: true, DefaultWindow: "jinc"},
	{F: resizable(fn("ewa_hanning", jincR3, jinc)), Polar: true, DefaultWindow: "hanning"},
	{F: resizable(fn("ewa_ginseng", jincR3, jinc)), Polar: true, DefaultWindow: "sinc"},
	{F: resizable(blurred(fn("ewa_lanczossharp", jincR3, jinc), 0.9812505837223707)), Polar: true, DefaultWindow: "jinc"},
	{F: resizable(blurred(fn("ewa_lanczos4sharpest", jincR4, jinc), 0.8845120932605005)), Polar: true, DefaultWindow: "jinc"},
	{F: resizable(blurred(fn("ewa_lanczossoft", jincR3, jinc), 1.0150765053651372)), Polar: true, DefaultWindow: "jinc"},
	{F: resizable(blurred(fn("haasnsoft", jincR3, jinc), 1.11)), Polar: true, DefaultWindow: "hanning"},

	{F: params(fn("bicubic", 2, cubicBC), 1, 0)},
	{F: params(fn("bcspline", 2, cubicBC), 0.5, 0.5)},
	{F: params(fn("catmull_rom", 2, cubicBC), 0, 0.5)},
	{F: params(fn("mitchell", 2, cubicBC), 1.0/3.0, 1.0/3.0)},
	{F: params(fn("robidoux", 2, cubicBC), robidouxB, robidouxC)},
	{F: params(fn("robidouxsharp", 2, cubicBC), robidouxSharpB, robidouxSharpC)},
	{F: params(fn("ewa_robidoux", 2, cubicBC), robidouxB, robidouxC), Polar: true},
	{F: params(fn("ewa_robidouxsharp", 2, cubicBC), robidouxSharpB, robidouxSharpC), Polar: true},

	{F: resizable(fn("box", 1, box))},
	{F: fn("nearest", 0.5, box)},
	{F: resizable(fn("triangle", 1, triangle))},
	{F: resizable(params(fn("gaussian", 2, gaussian), 1, nan))},
}

// Find returns a copy of the named kernel with its default window
// resolved.
func Find(name string) (Kernel, bool) {
	for _, k := range kernels {
		if k.F.Name != name {
			continue
		}
		if k.DefaultWindow != "" {
			k.W, _ = FindWindow(k.DefaultWindow)
		}
		return k, true
	}
	return Kernel{}, false
}

// Names lists the known kernels.
func Names() []string {
	names := make([]string, len(kernels))
	for i, k := range kernels {
		names[i] = k.F.Name
	}
	return names
}

// Init sizes k for scaling by 1/invScale (invScale = source/destination).
//
// sizes must be sorted ascending. Init returns false when the kernel does
// not fit: separable kernels are then clamped to the largest size with a
// correspondingly reduced FilterScale, polar kernels to MaxPolarRadius.
func (k *Kernel) Init(sizes []int, invScale float64) bool {
	blur := k.F.Blur
	if blur <= 0 {
		blur = 1
	}
	k.Radius = blur * k.F.Radius
	k.InvScale = invScale
	k.FilterScale = math.Max(1, invScale)
	srcRadius := k.Radius * k.FilterScale

	if k.Polar {
		k.Size = 1
		if srcRadius > MaxPolarRadius {
			k.FilterScale = MaxPolarRadius / k.Radius
			return false
		}
		return true
	}

	if len(sizes) == 0 {
		k.Size = 0
		return false
	}
	size := max(int(math.Ceil(2*srcRadius)), sizes[0])
	for _, s := range sizes {
		if size <= s {
			k.Size = s
			return true
		}
	}
	k.Size = sizes[len(sizes)-1]
	k.FilterScale = float64(k.Size) / 2 / k.Radius
	return false
}

// Sample evaluates the windowed kernel at x. The window is stretched over
// the whole kernel radius.
func (k *Kernel) Sample(x float64) float64 {
	w := k.W.Sample(x / k.Radius * k.W.Radius)
	v := w * k.F.Sample(x)
	if v < 0 {
		return (1 - k.Clamp) * v
	}
	return v
}

// Weights fills out[:k.Size] with the normalized tap weights for subpixel
// offset f in [0,1].
func (k *Kernel) Weights(f float64, out []float32) {
	var sum float64
	for n := 0; n < k.Size; n++ {
		x := f - float64(n-k.Size/2+1)
		w := k.Sample(x / k.FilterScale)
		out[n] = float32(w)
		sum += w
	}
	for n := 0; n < k.Size; n++ {
		out[n] = float32(float64(out[n]) / sum)
	}
}

// Components returns the number of weights packed per LUT texel.
func (k *Kernel) Components() int {
	if k.Size > 2 {
		return 4
	}
	return k.Size
}

// LUTWidth returns the LUT texture width in texels for separable kernels.
func (k *Kernel) LUTWidth() int {
	nc := k.Components()
	return (k.Size + nc - 1) / nc
}

// LUTStride returns the number of floats per LUT row.
func (k *Kernel) LUTStride() int {
	return k.LUTWidth() * k.Components()
}

// ComputeLUT fills out with count rows of weights.
//
// Separable kernels get one row of Size weights per subpixel offset
// n/(count-1), rows stride floats apart. Polar kernels get a single table
// of count weights indexed by radius, and RadiusCutoff is updated.
func (k *Kernel) ComputeLUT(count, stride int, out []float32) {
	if k.Polar {
		k.RadiusCutoff = 0
		for x := 0; x < count; x++ {
			r := float64(x) * k.Radius / float64(count-1)
			v := k.Sample(r)
			out[x] = float32(v)
			if math.Abs(v) > k.ValueCutoff {
				k.RadiusCutoff = r
			}
		}
		return
	}
	for n := 0; n < count; n++ {
		k.Weights(float64(n)/float64(count-1), out[stride*n:])
	}
}

// DrawKernel returns k as an x/image/draw interpolator for CPU scaling.
func (k *Kernel) DrawKernel() *draw.Kernel {
	kk := *k
	if kk.Radius == 0 {
		kk.Init(Sizes, 1)
	}
	return &draw.Kernel{
		Support: kk.Radius,
		At:      kk.Sample,
	}
}

// LUTRows returns the number of LUT rows for a size exponent, or 0 when
// the exponent is outside [MinLUTSizeLog2, MaxLUTSizeLog2].
func LUTRows(sizeLog2 int) int {
	if sizeLog2 < MinLUTSizeLog2 || sizeLog2 > MaxLUTSizeLog2 {
		return 0
	}
	return 1 << sizeLog2
}
