package options

import "fmt"

func enumString[E ~int](names []string, v E, typ string) string {
	if v >= 0 && int(v) < len(names) {
		return names[v]
	}
	return fmt.Sprintf("%s(%d)", typ, int(v))
}

func enumMarshal[E ~int](names []string, v E, typ string) ([]byte, error) {
	if v < 0 || int(v) >= len(names) {
		return nil, fmt.Errorf("%w: %s(%d)", ErrInvalidOption, typ, int(v))
	}
	return []byte(names[v]), nil
}

func enumParse[E ~int](names []string, b []byte, typ string) (E, error) {
	for i, n := range names {
		if n == string(b) {
			return E(i), nil
		}
	}
	return 0, fmt.Errorf("%w: unknown %s %q", ErrInvalidOption, typ, b)
}

// DitherAlgo selects the dithering algorithm.
type DitherAlgo int

// Dither algorithms.
const (
	DitherNone DitherAlgo = iota
	DitherFruit
	DitherOrdered
)

var ditherNames = []string{"no", "fruit", "ordered"}

func (d DitherAlgo) String() string               { return enumString(ditherNames, d, "DitherAlgo") }
func (d DitherAlgo) Valid() bool                  { return d >= 0 && int(d) < len(ditherNames) }
func (d DitherAlgo) MarshalText() ([]byte, error) { return enumMarshal(ditherNames, d, "dither") }

func (d *DitherAlgo) UnmarshalText(b []byte) (err error) {
	*d, err = enumParse[DitherAlgo](ditherNames, b, "dither")
	return err
}

// AlphaMode selects how alpha in the source is handled.
type AlphaMode int

// Alpha modes.
const (
	AlphaNo         AlphaMode = iota // ignore alpha
	AlphaYes                         // pass alpha to the output
	AlphaBlend                       // blend against the background color
	AlphaBlendTiles                  // blend against a checkerboard
)

var alphaNames = []string{"no", "yes", "blend", "blend-tiles"}

func (a AlphaMode) String() string               { return enumString(alphaNames, a, "AlphaMode") }
func (a AlphaMode) Valid() bool                  { return a >= 0 && int(a) < len(alphaNames) }
func (a AlphaMode) MarshalText() ([]byte, error) { return enumMarshal(alphaNames, a, "alpha") }

func (a *AlphaMode) UnmarshalText(b []byte) (err error) {
	*a, err = enumParse[AlphaMode](alphaNames, b, "alpha")
	return err
}

// BlendSubs selects where subtitles are blended.
type BlendSubs int

// Subtitle blending modes.
const (
	BlendSubsNo    BlendSubs = iota // on the output, after scaling
	BlendSubsYes                    // on the output, in display resolution
	BlendSubsVideo                  // onto the video, before scaling
)

var blendSubsNames = []string{"no", "yes", "video"}

func (s BlendSubs) String() string               { return enumString(blendSubsNames, s, "BlendSubs") }
func (s BlendSubs) Valid() bool                  { return s >= 0 && int(s) < len(blendSubsNames) }
func (s BlendSubs) MarshalText() ([]byte, error) { return enumMarshal(blendSubsNames, s, "blend-subtitles") }

func (s *BlendSubs) UnmarshalText(b []byte) (err error) {
	*s, err = enumParse[BlendSubs](blendSubsNames, b, "blend-subtitles")
	return err
}

// ToneMapping selects the HDR tone mapping curve.
type ToneMapping int

// Tone mapping curves.
const (
	ToneMapClip ToneMapping = iota
	ToneMapMobius
	ToneMapReinhard
	ToneMapHable
	ToneMapGamma
	ToneMapLinear
)

var toneMapNames = []string{"clip", "mobius", "reinhard", "hable", "gamma", "linear"}

func (t ToneMapping) String() string               { return enumString(toneMapNames, t, "ToneMapping") }
func (t ToneMapping) Valid() bool                  { return t >= 0 && int(t) < len(toneMapNames) }
func (t ToneMapping) MarshalText() ([]byte, error) { return enumMarshal(toneMapNames, t, "tone-mapping") }

func (t *ToneMapping) UnmarshalText(b []byte) (err error) {
	*t, err = enumParse[ToneMapping](toneMapNames, b, "tone-mapping")
	return err
}

// DefaultParam returns the curve parameter used when none is configured,
// or NaN for curves without one.
func (t ToneMapping) DefaultParam() float64 {
	switch t {
	case ToneMapMobius:
		return 0.3
	case ToneMapReinhard:
		return 0.5
	case ToneMapGamma:
		return 1.8
	case ToneMapLinear:
		return 1.0
	default:
		return nan
	}
}

// Primaries identifies a set of color primaries.
type Primaries int

// Color primaries.
const (
	PrimAuto Primaries = iota
	PrimBT601_525
	PrimBT601_625
	PrimBT709
	PrimBT2020
	PrimBT470M
	PrimApple
	PrimAdobe
	PrimProPhoto
	PrimCIE1931
	PrimDCIP3
	PrimVGamut
	PrimSGamut
)

var primNames = []string{
	"auto", "bt.601-525", "bt.601-625", "bt.709", "bt.2020", "bt.470m",
	"apple", "adobe", "prophoto", "cie1931", "dci-p3", "v-gamut", "s-gamut",
}

func (p Primaries) String() string               { return enumString(primNames, p, "Primaries") }
func (p Primaries) Valid() bool                  { return p >= 0 && int(p) < len(primNames) }
func (p Primaries) MarshalText() ([]byte, error) { return enumMarshal(primNames, p, "primaries") }

func (p *Primaries) UnmarshalText(b []byte) (err error) {
	*p, err = enumParse[Primaries](primNames, b, "primaries")
	return err
}

// IsWide reports whether p is a wide-gamut set.
func (p Primaries) IsWide() bool {
	switch p {
	case PrimBT2020, PrimApple, PrimAdobe, PrimProPhoto, PrimCIE1931, PrimDCIP3, PrimVGamut, PrimSGamut:
		return true
	}
	return false
}

// Transfer identifies a transfer characteristic.
type Transfer int

// Transfer characteristics.
const (
	TransferAuto Transfer = iota
	TransferBT1886
	TransferSRGB
	TransferLinear
	TransferGamma18
	TransferGamma22
	TransferGamma28
	TransferProPhoto
	TransferPQ
	TransferHLG
	TransferVLog
	TransferSLog1
	TransferSLog2
)

var transferNames = []string{
	"auto", "bt.1886", "srgb", "linear", "gamma1.8", "gamma2.2", "gamma2.8",
	"prophoto", "pq", "hlg", "v-log", "s-log1", "s-log2",
}

func (t Transfer) String() string               { return enumString(transferNames, t, "Transfer") }
func (t Transfer) Valid() bool                  { return t >= 0 && int(t) < len(transferNames) }
func (t Transfer) MarshalText() ([]byte, error) { return enumMarshal(transferNames, t, "transfer") }

func (t *Transfer) UnmarshalText(b []byte) (err error) {
	*t, err = enumParse[Transfer](transferNames, b, "transfer")
	return err
}

// IsHDR reports whether t encodes values above reference white.
func (t Transfer) IsHDR() bool {
	switch t {
	case TransferPQ, TransferHLG, TransferVLog, TransferSLog1, TransferSLog2:
		return true
	}
	return false
}

// DumbMode selects the simplified rendering path.
type DumbMode int

// Dumb mode settings.
const (
	DumbAuto DumbMode = iota // use it when no option needs the full path
	DumbYes
	DumbNo
)

var dumbNames = []string{"auto", "yes", "no"}

func (d DumbMode) String() string               { return enumString(dumbNames, d, "DumbMode") }
func (d DumbMode) Valid() bool                  { return d >= 0 && int(d) < len(dumbNames) }
func (d DumbMode) MarshalText() ([]byte, error) { return enumMarshal(dumbNames, d, "dumb-mode") }

func (d *DumbMode) UnmarshalText(b []byte) (err error) {
	*d, err = enumParse[DumbMode](dumbNames, b, "dumb-mode")
	return err
}
