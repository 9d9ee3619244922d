package vidrender

import (
	"fmt"
	"strings"

	"github.com/gogpu/vidrender/ra"
	"github.com/gogpu/vidrender/scaler"
	"github.com/gogpu/vidrender/timer"
	"github.com/gogpu/vidrender/transform"
)

// PassKind identifies what a pass does.
type PassKind int

// Pass kinds, in the order they can appear in a frame.
const (
	PassDumb        PassKind = iota // single-pass fixed-function render
	PassMerge                       // plane merge with chroma scaling
	PassLinearize                   // conversion to linear light
	PassScaleSep                    // first (vertical) pass of a separable scaler
	PassScale                       // main scaling pass
	PassInterpolate                 // temporal scaling over output surfaces
	PassOutput                      // final color conversion, dithering
)

// String returns the pass kind name.
func (k PassKind) String() string {
	switch k {
	case PassDumb:
		return "dumb"
	case PassMerge:
		return "merge"
	case PassLinearize:
		return "linearize"
	case PassScaleSep:
		return "scale-sep"
	case PassScale:
		return "scale"
	case PassInterpolate:
		return "interpolate"
	case PassOutput:
		return "output"
	default:
		return fmt.Sprintf("PassKind(%d)", int(k))
	}
}

// Pass is one GPU pass of a frame.
type Pass struct {
	Kind PassKind

	// Name identifies the pass in perf data ("scale-sep/dscale", ...).
	Name string

	// Scaler is the unit sampling the inputs, or nil.
	Scaler *scaler.Scaler

	// Inputs are the textures the pass samples. Scaler LUTs and the
	// dither matrix are not listed here.
	Inputs []*ra.Tex

	// Dither is the dither matrix to apply, or nil. DitherDepth is the
	// target bit depth and DitherPhase the temporal rotation, 0 to 7.
	Dither      *ra.Tex
	DitherDepth int
	DitherPhase int

	// PeakBuf is the HDR peak detection buffer, or nil.
	PeakBuf *ra.Buf

	Target ra.FBODst

	// Src is the sampled region of the first input, Dst the covered
	// region of the target.
	Src, Dst transform.Rect

	// Transform maps Dst into the target's normalized device coordinates.
	Transform transform.Transform
}

// String returns a one-line description.
func (p *Pass) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s: %d input(s)", p.Name, len(p.Inputs))
	if p.Scaler != nil {
		fmt.Fprintf(&b, " scaler=%s path=%s", p.Scaler.Config().Kernel.Name, p.Scaler.Path())
	}
	fmt.Fprintf(&b, " src=%gx%g dst=%gx%g", p.Src.W(), p.Src.H(), p.Dst.W(), p.Dst.H())
	if p.Target.Tex != nil {
		fmt.Fprintf(&b, " target=%s", p.Target.Tex.Params.Label)
	}
	return b.String()
}

// PassRunner executes the passes a Renderer plans.
type PassRunner interface {
	RunPass(p *Pass) error
}

// PassRunnerFunc adapts a function to PassRunner.
type PassRunnerFunc func(p *Pass) error

// RunPass calls f(p).
func (f PassRunnerFunc) RunPass(p *Pass) error { return f(p) }

// PassPerf is the timing history of one named pass.
type PassPerf struct {
	Name string
	timer.PassPerf
}

// PerfData is a snapshot of the renderer timers.
type PerfData struct {
	Upload timer.PassPerf
	Render timer.PassPerf

	// Passes lists every pass seen so far, in first-seen order.
	Passes []PassPerf
}

// Pass returns the perf of the named pass.
func (d *PerfData) Pass(name string) (PassPerf, bool) {
	for _, p := range d.Passes {
		if p.Name == name {
			return p, true
		}
	}
	return PassPerf{}, false
}

func passName(kind PassKind, u *scaler.Scaler) string {
	if u == nil {
		return kind.String()
	}
	return kind.String() + "/" + u.Unit.String()
}
