package options

import (
	"math"
	"math/bits"
	"slices"
	"strings"

	"github.com/gogpu/vidrender/scaler"
)

// Change is a set of option groups that differ between two Options.
type Change uint32

// Option groups. The first scaler.UnitCount bits are the scaler units.
const (
	changeScalerBase Change = 1 << iota
	_
	_
	_
	ChangeScaling // linear/sigmoid/correct-downscaling policy
	ChangeDither
	ChangeToneMapping
	ChangeColor
	ChangeAlpha
	ChangeInterpolation
	ChangeUpload
	ChangeTextures
	ChangeUserShaders
	ChangeDeband
	ChangeICC
	ChangeBackground
	ChangeSubs
	ChangeShaderCache
	ChangeOther

	changeEnd
)

// ChangeAll has every group set.
const ChangeAll = changeEnd - 1

// ChangeScaler returns the group of scaler unit u.
func ChangeScaler(u scaler.Unit) Change { return changeScalerBase << u }

// ChangeScalers has every scaler unit set.
const ChangeScalers = ChangeScaling - 1

var changeNames = []string{
	"scale", "dscale", "cscale", "tscale", "scaling", "dither", "tone-mapping",
	"color", "alpha", "interpolation", "upload", "textures", "user-shaders",
	"deband", "icc", "background", "subs", "shader-cache", "other",
}

// Has reports whether every group in o is set in c.
func (c Change) Has(o Change) bool { return c&o == o }

// Any reports whether any group in o is set in c.
func (c Change) Any(o Change) bool { return c&o != 0 }

// String lists the set groups, separated by "|".
func (c Change) String() string {
	if c == 0 {
		return "none"
	}
	var b strings.Builder
	for c != 0 {
		i := bits.TrailingZeros32(uint32(c))
		c &^= 1 << i
		if b.Len() > 0 {
			b.WriteByte('|')
		}
		if i < len(changeNames) {
			b.WriteString(changeNames[i])
		} else {
			b.WriteString("?")
		}
	}
	return b.String()
}

// Diff returns the groups that differ between prev and next. A nil prev
// differs in every group. NaN fields compare equal to NaN.
func Diff(prev, next *Options) Change {
	if prev == nil {
		return ChangeAll
	}
	var c Change
	mark := func(differs bool, g Change) {
		if differs {
			c |= g
		}
	}

	lutChanged := prev.LUTConfig() != next.LUTConfig()
	for u := range scaler.UnitCount {
		mark(lutChanged || !prev.Scaler(u).Equal(next.Scaler(u)), ChangeScaler(u))
	}
	// Raw dscale fields count even while it follows scale.
	mark(!prev.DScale.Equal(next.DScale), ChangeScaler(scaler.UnitDScale))

	mark(prev.ScalerResizesOnly != next.ScalerResizesOnly ||
		prev.LinearScaling != next.LinearScaling ||
		prev.CorrectDownscaling != next.CorrectDownscaling ||
		prev.SigmoidUpscaling != next.SigmoidUpscaling ||
		!feq(prev.SigmoidCenter, next.SigmoidCenter) ||
		!feq(prev.SigmoidSlope, next.SigmoidSlope), ChangeScaling)

	mark(prev.Dither != next.Dither ||
		prev.DitherDepth != next.DitherDepth ||
		prev.DitherSize != next.DitherSize ||
		prev.TemporalDither != next.TemporalDither ||
		prev.TemporalDitherPeriod != next.TemporalDitherPeriod, ChangeDither)

	mark(prev.ToneMapping != next.ToneMapping ||
		!feq(prev.ToneMappingParam, next.ToneMappingParam) ||
		!feq(prev.ToneMappingDesat, next.ToneMappingDesat) ||
		prev.ComputeHDRPeak != next.ComputeHDRPeak, ChangeToneMapping)

	mark(prev.TargetPrim != next.TargetPrim ||
		prev.TargetTRC != next.TargetTRC ||
		prev.TargetBrightness != next.TargetBrightness ||
		!feq(prev.Gamma, next.Gamma) ||
		prev.GammaAuto != next.GammaAuto, ChangeColor)

	mark(prev.Alpha != next.Alpha, ChangeAlpha)

	mark(prev.Interpolation != next.Interpolation ||
		!feq(prev.InterpolationThreshold, next.InterpolationThreshold), ChangeInterpolation)

	mark(prev.PBO != next.PBO, ChangeUpload)

	mark(prev.FBOFormat != next.FBOFormat ||
		prev.RectangleTextures != next.RectangleTextures ||
		prev.TexPadX != next.TexPadX ||
		prev.TexPadY != next.TexPadY ||
		prev.DumbMode != next.DumbMode, ChangeTextures)

	mark(!slices.Equal(prev.UserShaders, next.UserShaders), ChangeUserShaders)

	mark(prev.Deband != next.Deband || !debandEqual(prev.DebandOpts, next.DebandOpts), ChangeDeband)

	mark(prev.ICC != next.ICC, ChangeICC)
	mark(prev.Background != next.Background, ChangeBackground)
	mark(prev.BlendSubs != next.BlendSubs, ChangeSubs)
	mark(prev.ShaderCacheDir != next.ShaderCacheDir, ChangeShaderCache)

	mark(!feq(prev.Unsharp, next.Unsharp) ||
		prev.EarlyFlush != next.EarlyFlush, ChangeOther)

	return c
}

func feq(a, b float64) bool { return a == b || (math.IsNaN(a) && math.IsNaN(b)) }

func debandEqual(a, b DebandOptions) bool {
	return a.Iterations == b.Iterations &&
		feq(a.Threshold, b.Threshold) &&
		feq(a.Range, b.Range) &&
		feq(a.Grain, b.Grain)
}
