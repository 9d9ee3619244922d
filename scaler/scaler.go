// Package scaler manages the four scaler units of the render pipeline.
//
// Each unit resolves its configured kernel against the current scale
// factor, uploads the kernel weights as a LUT texture, and owns the
// intermediate target of its first separable pass. Units are reinitialized
// only when their configuration or scale factor actually changes.
package scaler

import (
	"errors"
	"fmt"
	"log/slog"
	"math"

	"github.com/gogpu/vidrender/fbo"
	"github.com/gogpu/vidrender/internal/logx"
	"github.com/gogpu/vidrender/kernel"
	"github.com/gogpu/vidrender/ra"
)

// Scaler errors.
var (
	// ErrInvalidConfig is returned for out-of-range scaler parameters.
	ErrInvalidConfig = errors.New("scaler: invalid configuration")

	// ErrUnknownKernel is returned for kernel names not valid for the unit.
	ErrUnknownKernel = errors.New("scaler: unknown kernel")

	// ErrUnknownWindow is returned for unknown window names.
	ErrUnknownWindow = errors.New("scaler: unknown window")

	// ErrNoLUTFormat is returned when the device has no filterable float
	// format for the LUT.
	ErrNoLUTFormat = errors.New("scaler: no LUT texture format")

	// ErrAllocation is returned when the LUT texture cannot be created.
	ErrAllocation = errors.New("scaler: LUT allocation failed")

	// ErrNotSeparable is returned by PrepareSeparated for scalers without
	// a separable kernel.
	ErrNotSeparable = errors.New("scaler: not separable")
)

// FactorTolerance is the relative scale factor change below which a unit
// is not reinitialized.
const FactorTolerance = 1e-6

// Unit identifies a scaler stage.
type Unit int

// Scaler units, in pipeline order.
const (
	UnitScale Unit = iota
	UnitDScale
	UnitCScale
	UnitTScale

	UnitCount
)

// String returns the option prefix of the unit.
func (u Unit) String() string {
	switch u {
	case UnitScale:
		return "scale"
	case UnitDScale:
		return "dscale"
	case UnitCScale:
		return "cscale"
	case UnitTScale:
		return "tscale"
	default:
		return fmt.Sprintf("Unit(%d)", int(u))
	}
}

// State is the lifecycle state of a unit.
type State int

// Scaler states.
const (
	Uninitialized State = iota
	Initialized

	// Insufficient: the kernel exceeds the configured filter size limits.
	Insufficient
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case Uninitialized:
		return "uninitialized"
	case Initialized:
		return "initialized"
	case Insufficient:
		return "insufficient"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Path is the sampling strategy a unit requires from the shader stage.
type Path int

// Sampling paths.
const (
	PathNone     Path = iota // unit not initialized
	PathFixed                // built-in sampler, no kernel
	PathLUT                  // separable kernel through the weight LUT
	PathPolarLUT             // polar kernel through the radial LUT
	PathDirect               // kernel evaluated without a LUT
)

// String returns the path name.
func (p Path) String() string {
	switch p {
	case PathNone:
		return "none"
	case PathFixed:
		return "fixed"
	case PathLUT:
		return "lut"
	case PathPolarLUT:
		return "polar-lut"
	case PathDirect:
		return "direct"
	default:
		return fmt.Sprintf("Path(%d)", int(p))
	}
}

// LUTConfig holds the LUT limits shared by all units.
type LUTConfig struct {
	// SizeLog2 selects 1<<SizeLog2 LUT rows.
	SizeLog2 int

	// MaxFilterSize is the largest separable filter size available.
	MaxFilterSize int

	// Fallback selects what an insufficient unit does.
	Fallback Fallback
}

// DefaultLUTConfig returns the default LUT limits.
func DefaultLUTConfig() LUTConfig {
	return LUTConfig{SizeLog2: 6, MaxFilterSize: 64, Fallback: FallbackDirect}
}

// Validate checks the limits.
func (c LUTConfig) Validate() error {
	if kernel.LUTRows(c.SizeLog2) == 0 {
		return fmt.Errorf("%w: LUT size %d outside [%d,%d]", ErrInvalidConfig, c.SizeLog2, kernel.MinLUTSizeLog2, kernel.MaxLUTSizeLog2)
	}
	if c.MaxFilterSize < kernel.Sizes[0] {
		return fmt.Errorf("%w: max filter size %d", ErrInvalidConfig, c.MaxFilterSize)
	}
	if !c.Fallback.Valid() {
		return fmt.Errorf("%w: fallback %d", ErrInvalidConfig, int(c.Fallback))
	}
	return nil
}

func (c LUTConfig) sizes() []int {
	for i, s := range kernel.Sizes {
		if s > c.MaxFilterSize {
			return kernel.Sizes[:i]
		}
	}
	return kernel.Sizes
}

// Scaler is one scaler unit. The zero value is an uninitialized
// UnitScale; set Unit before first use.
type Scaler struct {
	Unit Unit

	ra          ra.RA
	conf        Config
	lutConf     LUTConfig
	scaleFactor float64
	state       State

	// Stored by value; valid while hasKernel.
	kernel    kernel.Kernel
	hasKernel bool

	lut     *ra.Tex
	lutRows int

	sep fbo.Tex
}

// New returns an uninitialized scaler for unit u.
func New(u Unit) *Scaler {
	return &Scaler{Unit: u}
}

func sameFactor(a, b float64) bool {
	return math.Abs(a-b) <= FactorTolerance*math.Max(math.Abs(a), math.Abs(b))
}

// Reinit configures the unit for scaleFactor, the source to destination
// size ratio the kernel is widened by (1 when upscaling).
//
// Reinit does nothing when the unit is initialized with an equal
// configuration and a scale factor within FactorTolerance. An invalid
// configuration is rejected before the current state is touched. The new
// LUT is built before the old one is released, so an allocation failure
// leaves the unit as it was.
func (s *Scaler) Reinit(r ra.RA, log *slog.Logger, conf Config, scaleFactor float64, lut LUTConfig) error {
	log = logx.OrNop(log)
	if s.state != Uninitialized && s.conf.lutEqual(conf) && s.lutConf == lut && sameFactor(s.scaleFactor, scaleFactor) {
		s.conf.Antiring = conf.Antiring
		return nil
	}
	if err := conf.Validate(s.Unit); err != nil {
		return err
	}
	if err := lut.Validate(); err != nil {
		return err
	}
	if !finite(scaleFactor) || scaleFactor <= 0 {
		return fmt.Errorf("%w: %s scale factor %v", ErrInvalidConfig, s.Unit, scaleFactor)
	}

	next := Scaler{
		Unit:        s.Unit,
		ra:          r,
		conf:        conf,
		lutConf:     lut,
		scaleFactor: scaleFactor,
		state:       Initialized,
	}
	if IsFixed(s.Unit, conf.Kernel.Name) {
		log.Debug("scaler: fixed", "unit", s.Unit, "scaler", conf.Kernel.Name)
		s.replace(&next)
		return nil
	}

	next.kernel = conf.resolve()
	next.hasKernel = true
	if !next.kernel.Init(lut.sizes(), scaleFactor) {
		next.state = Insufficient
		log.Warn("scaler: kernel exceeds filter size limits",
			"unit", s.Unit, "kernel", conf.Kernel.Name, "size", next.kernel.Size,
			"scale_factor", scaleFactor, "fallback", lut.Fallback)
		if lut.Fallback == FallbackDirect {
			s.replace(&next)
			return nil
		}
	}

	if err := next.createLUT(r); err != nil {
		log.Error("scaler: LUT creation failed, keeping previous state",
			"unit", s.Unit, "kernel", conf.Kernel.Name, "err", err)
		return err
	}
	s.replace(&next)
	log.Debug("scaler: initialized", "unit", s.Unit, "kernel", conf.Kernel.Name,
		"size", s.kernel.Size, "polar", s.kernel.Polar, "lut_rows", s.lutRows)
	return nil
}

// replace releases the current resources and takes over next.
func (s *Scaler) replace(next *Scaler) {
	s.Uninit()
	*s = *next
}

func (s *Scaler) createLUT(r ra.RA) error {
	k := &s.kernel
	nc := 1
	if !k.Polar {
		nc = k.Components()
	}
	format := ra.FindFloatFormat(r, nc)
	if format == nil {
		return fmt.Errorf("%w: %d components", ErrNoLUTFormat, nc)
	}

	rows := kernel.LUTRows(s.lutConf.SizeLog2)
	data, err := format.PackFloats(k.LUT(rows))
	if err != nil {
		return err
	}

	p := ra.TexParams{
		Dimensions:  2,
		W:           k.LUTWidth(),
		H:           rows,
		Format:      format,
		RenderSrc:   true,
		SrcLinear:   true,
		InitialData: data,
		Label:       s.Unit.String() + "-lut",
	}
	if k.Polar {
		p.W = 1
		if r.Caps().Has(ra.CapTex1D) {
			p.Dimensions, p.W, p.H = 1, rows, 1
		}
	}
	tex, err := r.TexCreate(p)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrAllocation, err)
	}
	s.lut = tex
	s.lutRows = rows
	return nil
}

// Uninit releases the LUT and the separable-pass target and returns the
// unit to Uninitialized. Safe to call repeatedly.
func (s *Scaler) Uninit() {
	if s.lut != nil {
		s.ra.TexDestroy(s.lut)
	}
	s.sep.Uninit()
	*s = Scaler{Unit: s.Unit}
}

// State returns the lifecycle state.
func (s *Scaler) State() State { return s.state }

// Config returns the active configuration.
func (s *Scaler) Config() Config { return s.conf }

// ScaleFactor returns the scale factor of the last reinit.
func (s *Scaler) ScaleFactor() float64 { return s.scaleFactor }

// Kernel returns the resolved kernel, or nil for fixed and uninitialized
// units. The pointer is valid until the next Reinit or Uninit.
func (s *Scaler) Kernel() *kernel.Kernel {
	if !s.hasKernel {
		return nil
	}
	return &s.kernel
}

// LUT returns the weight texture, or nil.
func (s *Scaler) LUT() *ra.Tex { return s.lut }

// LUTRows returns the number of LUT rows, or 0 without a LUT.
func (s *Scaler) LUTRows() int { return s.lutRows }

// Separable reports whether the unit runs as two 1D passes.
func (s *Scaler) Separable() bool { return s.hasKernel && !s.kernel.Polar }

// NeedsLUT reports whether sampling requires the LUT texture.
func (s *Scaler) NeedsLUT() bool { return s.lut != nil }

// Path returns the sampling strategy.
func (s *Scaler) Path() Path {
	switch {
	case s.state == Uninitialized:
		return PathNone
	case !s.hasKernel:
		return PathFixed
	case s.lut == nil:
		return PathDirect
	case s.kernel.Polar:
		return PathPolarLUT
	default:
		return PathLUT
	}
}

// PrepareSeparated sizes the target of the first separable pass. The
// height is fuzzy so vertical resizes within capacity reuse the texture.
func (s *Scaler) PrepareSeparated(r ra.RA, log *slog.Logger, w, h int, format *ra.Format) (ra.FBODst, error) {
	if !s.Separable() {
		return ra.FBODst{}, fmt.Errorf("%w: %s", ErrNotSeparable, s.Unit)
	}
	if err := s.sep.Change(r, log, w, h, format, fbo.FuzzyH); err != nil {
		return ra.FBODst{}, err
	}
	return s.sep.Dst(), nil
}

// Separated returns the separable-pass target.
func (s *Scaler) Separated() *fbo.Tex { return &s.sep }
