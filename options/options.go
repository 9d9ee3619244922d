// Package options defines the render options that parameterize the
// pipeline.
//
// Options is plain data owned by the caller. The renderer re-reads it on
// every update and uses Diff to decide which components to reinitialize.
// Every field has toml and yaml tags and every enum implements
// encoding.TextMarshaler, so options files decode directly into Options.
package options

import (
	"errors"
	"fmt"
	"math"
	"slices"
	"strconv"
	"strings"

	"github.com/gogpu/vidrender/ra"
	"github.com/gogpu/vidrender/scaler"
)

// ErrInvalidOption is wrapped by every validation error.
var ErrInvalidOption = errors.New("options: invalid option")

var nan = math.NaN()

// DebandOptions configures the debanding pass.
type DebandOptions struct {
	Iterations int     `toml:"iterations" yaml:"iterations"`
	Threshold  float64 `toml:"threshold" yaml:"threshold"`
	Range      float64 `toml:"range" yaml:"range"`
	Grain      float64 `toml:"grain" yaml:"grain"`
}

// ICCOptions configures display color management. Profile handling itself
// is done by an external collaborator.
type ICCOptions struct {
	Profile     string `toml:"profile" yaml:"profile"`
	ProfileAuto bool   `toml:"profile-auto" yaml:"profile-auto"`
	CacheDir    string `toml:"cache-dir" yaml:"cache-dir"`

	// Intent is the ICC rendering intent, 0 to 3.
	Intent int `toml:"intent" yaml:"intent"`

	// LUT3DSize is the "RxGxB" size of the 3D LUT.
	LUT3DSize string `toml:"3dlut-size" yaml:"3dlut-size"`

	// Contrast overrides the display contrast; 0 means detect.
	Contrast int `toml:"contrast" yaml:"contrast"`
}

// Options is the render options aggregate.
type Options struct {
	DumbMode DumbMode `toml:"dumb-mode" yaml:"dumb-mode"`

	// Per-unit scaler configuration. An empty DScale kernel means "same
	// as Scale".
	Scale  scaler.Config `toml:"scale" yaml:"scale"`
	DScale scaler.Config `toml:"dscale" yaml:"dscale"`
	CScale scaler.Config `toml:"cscale" yaml:"cscale"`
	TScale scaler.Config `toml:"tscale" yaml:"tscale"`

	ScalerLUTSize     int             `toml:"scaler-lut-size" yaml:"scaler-lut-size"`
	MaxFilterSize     int             `toml:"max-filter-size" yaml:"max-filter-size"`
	ScalerFallback    scaler.Fallback `toml:"scaler-fallback" yaml:"scaler-fallback"`
	ScalerResizesOnly bool            `toml:"scaler-resizes-only" yaml:"scaler-resizes-only"`

	LinearScaling      bool    `toml:"linear-scaling" yaml:"linear-scaling"`
	CorrectDownscaling bool    `toml:"correct-downscaling" yaml:"correct-downscaling"`
	SigmoidUpscaling   bool    `toml:"sigmoid-upscaling" yaml:"sigmoid-upscaling"`
	SigmoidCenter      float64 `toml:"sigmoid-center" yaml:"sigmoid-center"`
	SigmoidSlope       float64 `toml:"sigmoid-slope" yaml:"sigmoid-slope"`

	// FBOFormat names the intermediate target format, or "auto".
	FBOFormat         string `toml:"fbo-format" yaml:"fbo-format"`
	RectangleTextures bool   `toml:"rectangle-textures" yaml:"rectangle-textures"`
	TexPadX           int    `toml:"tex-pad-x" yaml:"tex-pad-x"`
	TexPadY           int    `toml:"tex-pad-y" yaml:"tex-pad-y"`

	Dither               DitherAlgo `toml:"dither" yaml:"dither"`
	DitherDepth          int        `toml:"dither-depth" yaml:"dither-depth"` // -1 auto, 0 off
	DitherSize           int        `toml:"dither-size-fruit" yaml:"dither-size-fruit"`
	TemporalDither       bool       `toml:"temporal-dither" yaml:"temporal-dither"`
	TemporalDitherPeriod int        `toml:"temporal-dither-period" yaml:"temporal-dither-period"`

	Alpha AlphaMode `toml:"alpha" yaml:"alpha"`

	ToneMapping      ToneMapping `toml:"tone-mapping" yaml:"tone-mapping"`
	ToneMappingParam float64     `toml:"tone-mapping-param" yaml:"tone-mapping-param"` // NaN: curve default
	ToneMappingDesat float64     `toml:"tone-mapping-desaturate" yaml:"tone-mapping-desaturate"`
	ComputeHDRPeak   bool        `toml:"hdr-compute-peak" yaml:"hdr-compute-peak"`

	BlendSubs BlendSubs `toml:"blend-subtitles" yaml:"blend-subtitles"`

	Interpolation          bool    `toml:"interpolation" yaml:"interpolation"`
	InterpolationThreshold float64 `toml:"interpolation-threshold" yaml:"interpolation-threshold"`

	TargetPrim       Primaries `toml:"target-prim" yaml:"target-prim"`
	TargetTRC        Transfer  `toml:"target-trc" yaml:"target-trc"`
	TargetBrightness int       `toml:"target-brightness" yaml:"target-brightness"`
	Gamma            float64   `toml:"gamma" yaml:"gamma"`
	GammaAuto        bool      `toml:"gamma-auto" yaml:"gamma-auto"`

	Background Color `toml:"background" yaml:"background"`

	Unsharp    float64       `toml:"sharpen" yaml:"sharpen"`
	Deband     bool          `toml:"deband" yaml:"deband"`
	DebandOpts DebandOptions `toml:"deband-opts" yaml:"deband-opts"`

	ICC ICCOptions `toml:"icc" yaml:"icc"`

	UserShaders    []string `toml:"shaders" yaml:"shaders"`
	PBO            bool     `toml:"pbo" yaml:"pbo"`
	ShaderCacheDir string   `toml:"shader-cache-dir" yaml:"shader-cache-dir"`
	EarlyFlush     bool     `toml:"early-flush" yaml:"early-flush"`
}

// Default returns the default options.
func Default() *Options {
	scale := scaler.NewConfig("bilinear")
	scale.Cutoff = 0.001
	dscale := scaler.NewConfig("")
	dscale.Cutoff = 0.001
	cscale := scaler.NewConfig("bilinear")
	cscale.Cutoff = 0.001
	tscale := scaler.NewConfig("mitchell")
	tscale.Cutoff = 0.001
	tscale.Clamp = 1

	lut := scaler.DefaultLUTConfig()
	return &Options{
		Scale:  scale,
		DScale: dscale,
		CScale: cscale,
		TScale: tscale,

		ScalerLUTSize:     lut.SizeLog2,
		MaxFilterSize:     lut.MaxFilterSize,
		ScalerFallback:    lut.Fallback,
		ScalerResizesOnly: true,

		SigmoidCenter: 0.75,
		SigmoidSlope:  6.5,

		FBOFormat: "auto",

		Dither:               DitherFruit,
		DitherDepth:          -1,
		DitherSize:           6,
		TemporalDitherPeriod: 1,

		Alpha: AlphaBlendTiles,

		ToneMapping:      ToneMapMobius,
		ToneMappingParam: nan,
		ToneMappingDesat: 2.0,

		InterpolationThreshold: 0.0001,

		TargetBrightness: 250,
		Gamma:            1,

		Background: Color{A: 0xff},

		DebandOpts: DebandOptions{Iterations: 1, Threshold: 64, Range: 16, Grain: 48},
		ICC:        ICCOptions{Intent: 1, LUT3DSize: "64x64x64"},
	}
}

// Clone returns a deep copy of o.
func (o *Options) Clone() *Options {
	c := *o
	c.UserShaders = slices.Clone(o.UserShaders)
	return &c
}

// Scaler returns the configuration of unit u, resolving an empty DScale
// to Scale.
func (o *Options) Scaler(u scaler.Unit) scaler.Config {
	switch u {
	case scaler.UnitScale:
		return o.Scale
	case scaler.UnitDScale:
		if o.DScale.Kernel.Name == "" {
			return o.Scale
		}
		return o.DScale
	case scaler.UnitCScale:
		return o.CScale
	case scaler.UnitTScale:
		return o.TScale
	}
	panic(fmt.Sprintf("options: bad scaler unit %d", int(u)))
}

// SetScaler replaces the configuration of unit u.
func (o *Options) SetScaler(u scaler.Unit, c scaler.Config) {
	switch u {
	case scaler.UnitScale:
		o.Scale = c
	case scaler.UnitDScale:
		o.DScale = c
	case scaler.UnitCScale:
		o.CScale = c
	case scaler.UnitTScale:
		o.TScale = c
	default:
		panic(fmt.Sprintf("options: bad scaler unit %d", int(u)))
	}
}

// LUTConfig returns the scaler LUT limits.
func (o *Options) LUTConfig() scaler.LUTConfig {
	return scaler.LUTConfig{
		SizeLog2:      o.ScalerLUTSize,
		MaxFilterSize: o.MaxFilterSize,
		Fallback:      o.ScalerFallback,
	}
}

// ToneMappingParamOrDefault returns the configured curve parameter, or
// the curve default when unset.
func (o *Options) ToneMappingParamOrDefault() float64 {
	if math.IsNaN(o.ToneMappingParam) {
		return o.ToneMapping.DefaultParam()
	}
	return o.ToneMappingParam
}

// FormatName returns the intermediate target format name, or "" for
// automatic selection.
func (o *Options) FormatName() string {
	if o.FBOFormat == "auto" {
		return ""
	}
	return o.FBOFormat
}

// ParseLUT3DSize parses an "RxGxB" 3D LUT size. Each dimension must be a
// power of two between 2 and 512.
func ParseLUT3DSize(s string) (r, g, b int, err error) {
	parts := strings.Split(s, "x")
	if len(parts) != 3 {
		return 0, 0, 0, fmt.Errorf("%w: 3dlut-size %q: want RxGxB", ErrInvalidOption, s)
	}
	var dims [3]int
	for i, p := range parts {
		v, err := strconv.Atoi(p)
		if err != nil || v < 2 || v > 512 || v&(v-1) != 0 {
			return 0, 0, 0, fmt.Errorf("%w: 3dlut-size %q: %q is not a power of two in [2,512]", ErrInvalidOption, s, p)
		}
		dims[i] = v
	}
	return dims[0], dims[1], dims[2], nil
}

type validator struct {
	errs []error
}

func (v *validator) check(ok bool, format string, args ...any) {
	if !ok {
		v.errs = append(v.errs, fmt.Errorf("%w: "+format, append([]any{ErrInvalidOption}, args...)...))
	}
}

func (v *validator) add(err error) {
	if err != nil {
		v.errs = append(v.errs, fmt.Errorf("%w: %w", ErrInvalidOption, err))
	}
}

func finite(f float64) bool { return !math.IsNaN(f) && !math.IsInf(f, 0) }

func inRange(f, lo, hi float64) bool { return finite(f) && f >= lo && f <= hi }

// Validate reports every invalid field of o, joined.
func (o *Options) Validate() error {
	var v validator

	v.check(o.DumbMode.Valid(), "dumb-mode %v", o.DumbMode)
	for u := range scaler.UnitCount {
		c := o.Scaler(u)
		v.add(c.Validate(u))
	}
	v.add(o.LUTConfig().Validate())
	v.check(o.ScalerLUTSize >= 4, "scaler-lut-size %d below 4", o.ScalerLUTSize)

	v.check(inRange(o.SigmoidCenter, 0, 1), "sigmoid-center %v outside [0,1]", o.SigmoidCenter)
	v.check(inRange(o.SigmoidSlope, 1, 20), "sigmoid-slope %v outside [1,20]", o.SigmoidSlope)

	if name := o.FormatName(); name != "" {
		known := slices.ContainsFunc(ra.StandardFormats(), func(f *ra.Format) bool { return f.Name == name })
		v.check(known, "fbo-format %q", name)
	}
	v.check(o.TexPadX >= 0 && o.TexPadY >= 0, "texture padding %dx%d", o.TexPadX, o.TexPadY)

	v.check(o.Dither.Valid(), "dither %v", o.Dither)
	v.check(o.DitherDepth >= -1 && o.DitherDepth <= 16, "dither-depth %d outside [-1,16]", o.DitherDepth)
	v.check(o.DitherSize >= 1 && o.DitherSize <= 8, "dither-size-fruit %d outside [1,8]", o.DitherSize)
	v.check(o.TemporalDitherPeriod >= 1 && o.TemporalDitherPeriod <= 128,
		"temporal-dither-period %d outside [1,128]", o.TemporalDitherPeriod)

	v.check(o.Alpha.Valid(), "alpha %v", o.Alpha)

	v.check(o.ToneMapping.Valid(), "tone-mapping %v", o.ToneMapping)
	v.check(math.IsNaN(o.ToneMappingParam) || inRange(o.ToneMappingParam, 0, math.MaxFloat64),
		"tone-mapping-param %v", o.ToneMappingParam)
	v.check(inRange(o.ToneMappingDesat, 0, math.MaxFloat64), "tone-mapping-desaturate %v", o.ToneMappingDesat)

	v.check(o.BlendSubs.Valid(), "blend-subtitles %v", o.BlendSubs)
	v.check(finite(o.InterpolationThreshold), "interpolation-threshold %v", o.InterpolationThreshold)

	v.check(o.TargetPrim.Valid(), "target-prim %v", o.TargetPrim)
	v.check(o.TargetTRC.Valid(), "target-trc %v", o.TargetTRC)
	v.check(o.TargetBrightness >= 1 && o.TargetBrightness <= 10000,
		"target-brightness %d outside [1,10000]", o.TargetBrightness)
	v.check(inRange(o.Gamma, 0.1, 2), "gamma %v outside [0.1,2]", o.Gamma)

	v.check(inRange(o.Unsharp, -1, 1), "sharpen %v outside [-1,1]", o.Unsharp)
	d := o.DebandOpts
	v.check(d.Iterations >= 1 && d.Iterations <= 16, "deband-iterations %d outside [1,16]", d.Iterations)
	v.check(inRange(d.Threshold, 0, 4096), "deband-threshold %v outside [0,4096]", d.Threshold)
	v.check(inRange(d.Range, 1, 64), "deband-range %v outside [1,64]", d.Range)
	v.check(inRange(d.Grain, 0, 4096), "deband-grain %v outside [0,4096]", d.Grain)

	v.check(o.ICC.Intent >= 0 && o.ICC.Intent <= 3, "icc-intent %d outside [0,3]", o.ICC.Intent)
	v.check(o.ICC.Contrast >= 0 && o.ICC.Contrast <= 1000000, "icc-contrast %d", o.ICC.Contrast)
	if _, _, _, err := ParseLUT3DSize(o.ICC.LUT3DSize); err != nil {
		v.errs = append(v.errs, err)
	}

	for i, s := range o.UserShaders {
		v.check(s != "", "shaders[%d] is empty", i)
	}

	return errors.Join(v.errs...)
}
