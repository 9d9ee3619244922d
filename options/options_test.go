package options

import (
	"errors"
	"fmt"
	"math"
	"reflect"
	"strings"
	"testing"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"github.com/gogpu/vidrender/scaler"
)

func TestDefaultValid(t *testing.T) {
	if err := Default().Validate(); err != nil {
		t.Fatalf("Default().Validate() = %v", err)
	}
}

func TestDefaultScalers(t *testing.T) {
	o := Default()
	if got := o.Scaler(scaler.UnitDScale).Kernel.Name; got != "bilinear" {
		t.Errorf("dscale resolves to %q, want scale's bilinear", got)
	}
	if got := o.Scaler(scaler.UnitTScale); got.Kernel.Name != "mitchell" || got.Clamp != 1 {
		t.Errorf("tscale = %+v, want clamped mitchell", got)
	}
	if lut := o.LUTConfig(); lut != scaler.DefaultLUTConfig() {
		t.Errorf("LUTConfig() = %+v, want %+v", lut, scaler.DefaultLUTConfig())
	}

	o.SetScaler(scaler.UnitDScale, scaler.NewConfig("lanczos"))
	if got := o.Scaler(scaler.UnitDScale).Kernel.Name; got != "lanczos" {
		t.Errorf("explicit dscale = %q, want lanczos", got)
	}
}

func TestDiffClone(t *testing.T) {
	o := Default()
	o.UserShaders = []string{"a.glsl"}
	c := o.Clone()
	if d := Diff(o, c); d != 0 {
		t.Errorf("Diff(o, o.Clone()) = %v, want none", d)
	}
	c.UserShaders[0] = "b.glsl"
	if o.UserShaders[0] != "a.glsl" {
		t.Error("Clone() shares UserShaders")
	}
	if d := Diff(nil, o); d != ChangeAll {
		t.Errorf("Diff(nil, o) = %v, want all", d)
	}
}

func TestDiffGroups(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(o *Options)
		want   Change
	}{
		{"scale kernel", func(o *Options) { o.Scale.Kernel.Name = "lanczos" },
			ChangeScaler(scaler.UnitScale) | ChangeScaler(scaler.UnitDScale)},
		{"cscale antiring", func(o *Options) { o.CScale.Antiring = 0.5 }, ChangeScaler(scaler.UnitCScale)},
		{"tscale window", func(o *Options) { o.TScale.Window.Name = "hanning" }, ChangeScaler(scaler.UnitTScale)},
		{"LUT size", func(o *Options) { o.ScalerLUTSize = 8 }, ChangeScalers},
		{"fallback", func(o *Options) { o.ScalerFallback = scaler.FallbackClamp }, ChangeScalers},
		{"sigmoid", func(o *Options) { o.SigmoidUpscaling = true }, ChangeScaling},
		{"dither depth", func(o *Options) { o.DitherDepth = 8 }, ChangeDither},
		{"tone mapping param", func(o *Options) { o.ToneMappingParam = 0.4 }, ChangeToneMapping},
		{"HDR peak", func(o *Options) { o.ComputeHDRPeak = true }, ChangeToneMapping},
		{"target trc", func(o *Options) { o.TargetTRC = TransferPQ }, ChangeColor},
		{"alpha", func(o *Options) { o.Alpha = AlphaYes }, ChangeAlpha},
		{"interpolation", func(o *Options) { o.Interpolation = true }, ChangeInterpolation},
		{"pbo", func(o *Options) { o.PBO = true }, ChangeUpload},
		{"fbo format", func(o *Options) { o.FBOFormat = "rgba16f" }, ChangeTextures},
		{"shaders", func(o *Options) { o.UserShaders = []string{"x.glsl"} }, ChangeUserShaders},
		{"deband grain", func(o *Options) { o.DebandOpts.Grain = 1 }, ChangeDeband},
		{"icc", func(o *Options) { o.ICC.Intent = 0 }, ChangeICC},
		{"background", func(o *Options) { o.Background.R = 10 }, ChangeBackground},
		{"subs", func(o *Options) { o.BlendSubs = BlendSubsVideo }, ChangeSubs},
		{"shader cache", func(o *Options) { o.ShaderCacheDir = "/tmp" }, ChangeShaderCache},
		{"sharpen", func(o *Options) { o.Unsharp = 0.5 }, ChangeOther},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o := Default()
			n := o.Clone()
			tt.mutate(n)
			if got := Diff(o, n); got != tt.want {
				t.Errorf("Diff() = %v, want %v", got, tt.want)
			}
		})
	}
}

type step struct {
	field int
	elem  int
	array bool
}

func leaves(t reflect.Type, name string, path []step, visit func(string, []step)) {
	switch t.Kind() {
	case reflect.Struct:
		for i := range t.NumField() {
			f := t.Field(i)
			leaves(f.Type, name+"."+f.Name, append(clonePath(path), step{field: i}), visit)
		}
	case reflect.Array:
		for i := range t.Len() {
			leaves(t.Elem(), fmt.Sprintf("%s[%d]", name, i), append(clonePath(path), step{elem: i, array: true}), visit)
		}
	default:
		visit(name, path)
	}
}

func clonePath(p []step) []step { return append([]step(nil), p...) }

func resolve(v reflect.Value, path []step) reflect.Value {
	for _, s := range path {
		if s.array {
			v = v.Index(s.elem)
		} else {
			v = v.Field(s.field)
		}
	}
	return v
}

func mutate(v reflect.Value) {
	switch v.Kind() {
	case reflect.Bool:
		v.SetBool(!v.Bool())
	case reflect.Int, reflect.Int32, reflect.Int64:
		v.SetInt(v.Int() + 1)
	case reflect.Uint8:
		v.SetUint(v.Uint() + 1)
	case reflect.Float64:
		if math.IsNaN(v.Float()) {
			v.SetFloat(1)
		} else {
			v.SetFloat(v.Float() + 0.5)
		}
	case reflect.String:
		v.SetString(v.String() + "x")
	case reflect.Slice:
		v.Set(reflect.Append(v, reflect.Zero(v.Type().Elem())))
	default:
		panic("unhandled kind " + v.Kind().String())
	}
}

// Every field must belong to some change group, or live updates of it
// would be silently ignored.
func TestDiffCoversEveryField(t *testing.T) {
	leaves(reflect.TypeOf(Options{}), "Options", nil, func(name string, path []step) {
		o := Default()
		n := o.Clone()
		mutate(resolve(reflect.ValueOf(n).Elem(), path))
		if Diff(o, n) == 0 {
			t.Errorf("changing %s is not detected by Diff", name)
		}
	})
}

func TestValidateRejects(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(o *Options)
		msg    string
	}{
		{"scaler", func(o *Options) { o.Scale.Kernel.Name = "nope" }, "scale=nope"},
		{"polar tscale", func(o *Options) { o.TScale.Kernel.Name = "ewa_lanczos" }, "tscale"},
		{"LUT size", func(o *Options) { o.ScalerLUTSize = 3 }, "scaler-lut-size"},
		{"LUT size high", func(o *Options) { o.ScalerLUTSize = 11 }, "LUT size"},
		{"sigmoid slope", func(o *Options) { o.SigmoidSlope = 30 }, "sigmoid-slope"},
		{"fbo format", func(o *Options) { o.FBOFormat = "rgb565" }, "fbo-format"},
		{"dither", func(o *Options) { o.Dither = 9 }, "dither DitherAlgo(9)"},
		{"dither depth", func(o *Options) { o.DitherDepth = 17 }, "dither-depth"},
		{"dither size", func(o *Options) { o.DitherSize = 0 }, "dither-size-fruit"},
		{"temporal period", func(o *Options) { o.TemporalDitherPeriod = 0 }, "temporal-dither-period"},
		{"tone mapping param", func(o *Options) { o.ToneMappingParam = -1 }, "tone-mapping-param"},
		{"desaturate", func(o *Options) { o.ToneMappingDesat = math.Inf(1) }, "tone-mapping-desaturate"},
		{"brightness", func(o *Options) { o.TargetBrightness = 0 }, "target-brightness"},
		{"gamma", func(o *Options) { o.Gamma = 3 }, "gamma"},
		{"sharpen", func(o *Options) { o.Unsharp = math.NaN() }, "sharpen"},
		{"deband", func(o *Options) { o.DebandOpts.Range = 0 }, "deband-range"},
		{"icc intent", func(o *Options) { o.ICC.Intent = 4 }, "icc-intent"},
		{"3dlut", func(o *Options) { o.ICC.LUT3DSize = "64x64" }, "3dlut-size"},
		{"shader", func(o *Options) { o.UserShaders = []string{""} }, "shaders[0]"},
		{"padding", func(o *Options) { o.TexPadX = -1 }, "texture padding"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o := Default()
			tt.mutate(o)
			err := o.Validate()
			if !errors.Is(err, ErrInvalidOption) {
				t.Fatalf("Validate() = %v, want %v", err, ErrInvalidOption)
			}
			if !strings.Contains(err.Error(), tt.msg) {
				t.Errorf("Validate() = %q, want mention of %q", err, tt.msg)
			}
		})
	}
}

func TestValidateReportsAll(t *testing.T) {
	o := Default()
	o.Gamma = 0
	o.DitherDepth = -5
	err := o.Validate()
	if err == nil || !strings.Contains(err.Error(), "gamma") || !strings.Contains(err.Error(), "dither-depth") {
		t.Errorf("Validate() = %v, want both problems", err)
	}
}

func TestValidateWrapsScalerErrors(t *testing.T) {
	o := Default()
	o.CScale.Window.Name = "nope"
	err := o.Validate()
	if !errors.Is(err, ErrInvalidOption) || !errors.Is(err, scaler.ErrUnknownWindow) {
		t.Errorf("Validate() = %v, want both sentinels", err)
	}
}

func TestParseLUT3DSize(t *testing.T) {
	tests := []struct {
		in      string
		r, g, b int
		ok      bool
	}{
		{"64x64x64", 64, 64, 64, true},
		{"256x128x2", 256, 128, 2, true},
		{"512x512x512", 512, 512, 512, true},
		{"48x64x64", 0, 0, 0, false},
		{"1x2x2", 0, 0, 0, false},
		{"1024x2x2", 0, 0, 0, false},
		{"64x64", 0, 0, 0, false},
		{"axbxc", 0, 0, 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			r, g, b, err := ParseLUT3DSize(tt.in)
			if (err == nil) != tt.ok || r != tt.r || g != tt.g || b != tt.b {
				t.Errorf("ParseLUT3DSize(%q) = %d,%d,%d,%v", tt.in, r, g, b, err)
			}
		})
	}
}

func TestToneMappingDefaults(t *testing.T) {
	tests := []struct {
		tm   ToneMapping
		want float64
	}{
		{ToneMapMobius, 0.3},
		{ToneMapReinhard, 0.5},
		{ToneMapGamma, 1.8},
		{ToneMapLinear, 1.0},
	}
	for _, tt := range tests {
		if got := tt.tm.DefaultParam(); got != tt.want {
			t.Errorf("%v.DefaultParam() = %v, want %v", tt.tm, got, tt.want)
		}
	}
	if !math.IsNaN(ToneMapHable.DefaultParam()) {
		t.Error("hable has a default parameter")
	}

	o := Default()
	if got := o.ToneMappingParamOrDefault(); got != 0.3 {
		t.Errorf("ToneMappingParamOrDefault() = %v, want 0.3", got)
	}
	o.ToneMappingParam = 0.7
	if got := o.ToneMappingParamOrDefault(); got != 0.7 {
		t.Errorf("ToneMappingParamOrDefault() = %v, want 0.7", got)
	}
}

func TestEnumText(t *testing.T) {
	type textEnum interface {
		MarshalText() ([]byte, error)
		String() string
	}
	tests := []struct {
		v    textEnum
		text string
	}{
		{DitherOrdered, "ordered"},
		{AlphaBlendTiles, "blend-tiles"},
		{BlendSubsVideo, "video"},
		{ToneMapHable, "hable"},
		{PrimDCIP3, "dci-p3"},
		{TransferGamma22, "gamma2.2"},
		{DumbNo, "no"},
	}
	for _, tt := range tests {
		b, err := tt.v.MarshalText()
		if err != nil || string(b) != tt.text || tt.v.String() != tt.text {
			t.Errorf("MarshalText() = %q, %v; want %q", b, err, tt.text)
		}
	}

	var tm ToneMapping
	if err := tm.UnmarshalText([]byte("reinhard")); err != nil || tm != ToneMapReinhard {
		t.Errorf("UnmarshalText(reinhard) = %v, %v", tm, err)
	}
	var p Primaries
	if err := p.UnmarshalText([]byte("bt.999")); !errors.Is(err, ErrInvalidOption) {
		t.Errorf("UnmarshalText(bt.999) error = %v", err)
	}
	if _, err := AlphaMode(7).MarshalText(); !errors.Is(err, ErrInvalidOption) {
		t.Errorf("MarshalText(7) error = %v", err)
	}
	if s := Transfer(99).String(); s != "Transfer(99)" {
		t.Errorf("String() = %q", s)
	}
	if !TransferHLG.IsHDR() || TransferSRGB.IsHDR() || !PrimBT2020.IsWide() || PrimBT709.IsWide() {
		t.Error("IsHDR/IsWide mismatch")
	}
}

func TestColorText(t *testing.T) {
	tests := []struct {
		in   string
		want Color
		out  string
	}{
		{"#FF8000", Color{255, 128, 0, 255}, "#FF8000"},
		{"#80ff0000", Color{255, 0, 0, 128}, "#80FF0000"},
		{"#000000", Color{0, 0, 0, 255}, "#000000"},
	}
	for _, tt := range tests {
		var c Color
		if err := c.UnmarshalText([]byte(tt.in)); err != nil || c != tt.want {
			t.Errorf("UnmarshalText(%q) = %+v, %v; want %+v", tt.in, c, err, tt.want)
		}
		if c.String() != tt.out {
			t.Errorf("String() = %q, want %q", c.String(), tt.out)
		}
	}
	for _, bad := range []string{"FF8000", "#12345", "#GG0000"} {
		var c Color
		if err := c.UnmarshalText([]byte(bad)); !errors.Is(err, ErrInvalidOption) {
			t.Errorf("UnmarshalText(%q) error = %v", bad, err)
		}
	}
	if f := (Color{R: 255, A: 0}).Floats(); f != [4]float32{} {
		t.Errorf("transparent Floats() = %v, want zero", f)
	}
}

func TestChangeString(t *testing.T) {
	c := ChangeScaler(scaler.UnitCScale) | ChangeDither
	if c.String() != "cscale|dither" {
		t.Errorf("String() = %q", c.String())
	}
	if Change(0).String() != "none" {
		t.Errorf("String() = %q", Change(0).String())
	}
	if !ChangeAll.Has(ChangeOther|ChangeScalers) || c.Any(ChangeColor) {
		t.Error("Has/Any mismatch")
	}
}

const tomlConfig = `
dither = "ordered"
tone-mapping = "hable"
background = "#202020"
pbo = true
shaders = ["a.glsl", "b.glsl"]
scaler-fallback = "clamp"

[scale]
radius = 4.0
antiring = 0.5
[scale.kernel]
name = "lanczos"
[scale.window]
name = "hanning"

[tscale.kernel]
name = "oversample"

[icc]
3dlut-size = "32x32x32"
`

func TestDecodeTOML(t *testing.T) {
	o := Default()
	if _, err := toml.Decode(tomlConfig, o); err != nil {
		t.Fatalf("toml.Decode() error: %v", err)
	}
	if err := o.Validate(); err != nil {
		t.Fatalf("Validate() = %v", err)
	}
	if o.Dither != DitherOrdered || o.ToneMapping != ToneMapHable || !o.PBO {
		t.Errorf("enums = %v %v %v", o.Dither, o.ToneMapping, o.PBO)
	}
	if o.Background != (Color{0x20, 0x20, 0x20, 0xff}) || len(o.UserShaders) != 2 {
		t.Errorf("background %v shaders %v", o.Background, o.UserShaders)
	}
	if o.Scale.Kernel.Name != "lanczos" || o.Scale.Window.Name != "hanning" || o.Scale.Radius != 4 {
		t.Errorf("scale = %+v", o.Scale)
	}
	if !math.IsNaN(o.Scale.Kernel.Params[0]) {
		t.Error("unset kernel params lost their NaN default")
	}
	if o.TScale.Kernel.Name != "oversample" || o.TScale.Clamp != 1 {
		t.Errorf("tscale = %+v", o.TScale)
	}
	if o.ScalerFallback != scaler.FallbackClamp || o.ICC.LUT3DSize != "32x32x32" || o.ICC.Intent != 1 {
		t.Errorf("fallback %v icc %+v", o.ScalerFallback, o.ICC)
	}
}

const yamlConfig = `
alpha: blend
target-trc: pq
target-prim: bt.2020
hdr-compute-peak: true
background: "#FF000000"
cscale:
  kernel:
    name: ewa_lanczossharp
  cutoff: 0.01
deband: true
deband-opts:
  iterations: 2
`

func TestDecodeYAML(t *testing.T) {
	o := Default()
	if err := yaml.Unmarshal([]byte(yamlConfig), o); err != nil {
		t.Fatalf("yaml.Unmarshal() error: %v", err)
	}
	if err := o.Validate(); err != nil {
		t.Fatalf("Validate() = %v", err)
	}
	if o.Alpha != AlphaBlend || o.TargetTRC != TransferPQ || o.TargetPrim != PrimBT2020 || !o.ComputeHDRPeak {
		t.Errorf("alpha %v trc %v prim %v peak %v", o.Alpha, o.TargetTRC, o.TargetPrim, o.ComputeHDRPeak)
	}
	if o.Background != (Color{A: 0xff}) {
		t.Errorf("background = %v", o.Background)
	}
	if o.CScale.Kernel.Name != "ewa_lanczossharp" || o.CScale.Cutoff != 0.01 {
		t.Errorf("cscale = %+v", o.CScale)
	}
	if !o.Deband || o.DebandOpts.Iterations != 2 || o.DebandOpts.Grain != 48 {
		t.Errorf("deband %v %+v", o.Deband, o.DebandOpts)
	}
	d := Diff(Default(), o)
	want := ChangeAlpha | ChangeColor | ChangeToneMapping | ChangeScaler(scaler.UnitCScale) | ChangeDeband
	if d != want {
		t.Errorf("Diff() = %v, want %v", d, want)
	}
}
