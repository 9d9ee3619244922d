package scaler

import (
	"bytes"
	"errors"
	"log/slog"
	"math"
	"slices"
	"strings"
	"testing"

	"github.com/gogpu/vidrender/ra"
	"github.com/gogpu/vidrender/ra/ratest"
)

func TestFixedScalers(t *testing.T) {
	tests := []struct {
		unit Unit
		name string
	}{
		{UnitScale, "bilinear"},
		{UnitDScale, "bicubic_fast"},
		{UnitCScale, "oversample"},
		{UnitTScale, "oversample"},
		{UnitTScale, "linear"},
	}
	for _, tt := range tests {
		t.Run(tt.unit.String()+"="+tt.name, func(t *testing.T) {
			r := ratest.New()
			s := New(tt.unit)
			if err := s.Reinit(r, nil, NewConfig(tt.name), 1, DefaultLUTConfig()); err != nil {
				t.Fatalf("Reinit() error: %v", err)
			}
			if s.Path() != PathFixed || s.Kernel() != nil || s.NeedsLUT() || s.Separable() {
				t.Errorf("path %v kernel %v lut %v", s.Path(), s.Kernel(), s.NeedsLUT())
			}
			if r.TexCreates != 0 {
				t.Errorf("TexCreates = %d, want 0", r.TexCreates)
			}
		})
	}
}

func TestSeparableLUT(t *testing.T) {
	r := ratest.New()
	s := New(UnitScale)
	if err := s.Reinit(r, nil, NewConfig("spline36"), 1, DefaultLUTConfig()); err != nil {
		t.Fatalf("Reinit() error: %v", err)
	}
	if s.State() != Initialized || s.Path() != PathLUT || !s.Separable() {
		t.Fatalf("state %v path %v", s.State(), s.Path())
	}
	lut := s.LUT()
	p := lut.Params
	if p.Dimensions != 2 || p.W != 2 || p.H != 64 || p.Format != ra.FormatRGBA16F {
		t.Errorf("LUT = %dD %dx%d %v, want 2D 2x64 rgba16f", p.Dimensions, p.W, p.H, p.Format)
	}
	if !p.RenderSrc || !p.SrcLinear {
		t.Error("LUT not sampleable with linear filtering")
	}

	data := r.TexData[lut]
	if len(data) != 64*8*2 {
		t.Fatalf("LUT data = %d bytes, want %d", len(data), 64*8*2)
	}
	// Row 0, tap 2 is centered on the sample: half-float 1.0.
	if data[4] != 0x00 || data[5] != 0x3c {
		t.Errorf("center weight bytes = %#x %#x, want 0x0 0x3c", data[4], data[5])
	}
}

func TestPolarLUT(t *testing.T) {
	tests := []struct {
		name  string
		caps  ra.Caps
		dims  int
		w, h  int
		label string
	}{
		{"1D", ra.CapTex1D, 1, 64, 1, "cscale-lut"},
		{"2D", 0, 2, 1, 64, "cscale-lut"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := ratest.New()
			r.CapFlags = tt.caps
			s := New(UnitCScale)
			if err := s.Reinit(r, nil, NewConfig("ewa_lanczos"), 1, DefaultLUTConfig()); err != nil {
				t.Fatalf("Reinit() error: %v", err)
			}
			if s.Path() != PathPolarLUT || s.Separable() {
				t.Errorf("Path() = %v, separable %v", s.Path(), s.Separable())
			}
			p := s.LUT().Params
			if p.Dimensions != tt.dims || p.W != tt.w || p.H != tt.h || p.Format != ra.FormatR16F || p.Label != tt.label {
				t.Errorf("LUT = %dD %dx%d %v %q", p.Dimensions, p.W, p.H, p.Format, p.Label)
			}
			if k := s.Kernel(); k.RadiusCutoff <= 0 {
				t.Errorf("RadiusCutoff = %v, want > 0", k.RadiusCutoff)
			}
		})
	}
}

func TestReinitSkipsUnchanged(t *testing.T) {
	r := ratest.New()
	s := New(UnitScale)
	conf := NewConfig("spline36")
	lutConf := DefaultLUTConfig()
	if err := s.Reinit(r, nil, conf, 1, lutConf); err != nil {
		t.Fatalf("Reinit() error: %v", err)
	}
	lut := s.LUT()

	same := NewConfig("spline36") // fresh NaN params
	if err := s.Reinit(r, nil, same, 1+1e-9, lutConf); err != nil {
		t.Fatalf("Reinit() error: %v", err)
	}
	antiring := conf
	antiring.Antiring = 0.8
	if err := s.Reinit(r, nil, antiring, 1, lutConf); err != nil {
		t.Fatalf("Reinit() error: %v", err)
	}
	if r.TexCreates != 1 || r.TexDestroys != 0 || s.LUT() != lut {
		t.Errorf("unchanged reinit touched the device: creates %d destroys %d", r.TexCreates, r.TexDestroys)
	}
	if s.Config().Antiring != 0.8 {
		t.Errorf("Antiring = %v, want 0.8", s.Config().Antiring)
	}
}

func TestReinitOnChange(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *Config, f *float64, l *LUTConfig)
		rows   int
	}{
		{"clamp", func(c *Config, _ *float64, _ *LUTConfig) { c.Clamp = 0.5 }, 64},
		{"window", func(c *Config, _ *float64, _ *LUTConfig) { c.Window.Name = "hanning" }, 64},
		{"kernel param", func(c *Config, _ *float64, _ *LUTConfig) { c.Kernel.Params[0] = 0.1 }, 64},
		{"scale factor", func(_ *Config, f *float64, _ *LUTConfig) { *f = 2 }, 64},
		{"LUT size", func(_ *Config, _ *float64, l *LUTConfig) { l.SizeLog2 = 7 }, 128},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := ratest.New()
			s := New(UnitScale)
			conf, factor, lutConf := NewConfig("spline36"), 1.0, DefaultLUTConfig()
			if err := s.Reinit(r, nil, conf, factor, lutConf); err != nil {
				t.Fatalf("Reinit() error: %v", err)
			}
			tt.mutate(&conf, &factor, &lutConf)
			if err := s.Reinit(r, nil, conf, factor, lutConf); err != nil {
				t.Fatalf("Reinit() error: %v", err)
			}
			if r.TexCreates != 2 || r.TexDestroys != 1 || len(r.Textures) != 1 {
				t.Errorf("creates %d destroys %d live %d, want 2 1 1", r.TexCreates, r.TexDestroys, len(r.Textures))
			}
			if s.LUTRows() != tt.rows {
				t.Errorf("LUTRows() = %d, want %d", s.LUTRows(), tt.rows)
			}
		})
	}
}

func TestInsufficientFallbackDirect(t *testing.T) {
	tests := []struct {
		name    string
		factor  float64
		maxSize int
	}{
		{"20x downscale", 20, 64},
		{"filter size limit", 1, 4},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := ratest.New()
			var buf bytes.Buffer
			log := slog.New(slog.NewTextHandler(&buf, nil))

			s := New(UnitScale)
			lutConf := DefaultLUTConfig()
			lutConf.MaxFilterSize = tt.maxSize
			if err := s.Reinit(r, log, NewConfig("lanczos"), tt.factor, lutConf); err != nil {
				t.Fatalf("Reinit() error: %v", err)
			}
			if s.State() != Insufficient {
				t.Errorf("State() = %v, want insufficient", s.State())
			}
			if s.LUT() != nil || r.TexCreates != 0 {
				t.Errorf("insufficient unit allocated a LUT (creates %d)", r.TexCreates)
			}
			if s.Path() != PathDirect || s.NeedsLUT() {
				t.Errorf("Path() = %v, want direct", s.Path())
			}
			if !strings.Contains(buf.String(), "level=WARN") || strings.Contains(buf.String(), "level=ERROR") {
				t.Errorf("log = %q, want a warning only", buf.String())
			}
		})
	}
}

func TestInsufficientFallbackClamp(t *testing.T) {
	r := ratest.New()
	s := New(UnitDScale)
	lutConf := DefaultLUTConfig()
	lutConf.Fallback = FallbackClamp
	if err := s.Reinit(r, nil, NewConfig("lanczos"), 20, lutConf); err != nil {
		t.Fatalf("Reinit() error: %v", err)
	}
	if s.State() != Insufficient || s.Path() != PathLUT {
		t.Fatalf("state %v path %v, want insufficient lut", s.State(), s.Path())
	}
	k := s.Kernel()
	if k.Size != 64 {
		t.Errorf("Size = %d, want 64", k.Size)
	}
	if want := 64.0 / 2 / 3; math.Abs(k.FilterScale-want) > 1e-12 {
		t.Errorf("FilterScale = %v, want %v", k.FilterScale, want)
	}
	if p := s.LUT().Params; p.W != 16 {
		t.Errorf("LUT width = %d, want 16", p.W)
	}
}

func TestReinitRejectsInvalid(t *testing.T) {
	withConf := func(name string, f func(c *Config)) Config {
		c := NewConfig(name)
		if f != nil {
			f(&c)
		}
		return c
	}
	tests := []struct {
		name   string
		unit   Unit
		conf   Config
		factor float64
		lut    func(l *LUTConfig)
		want   error
	}{
		{"unknown kernel", UnitScale, NewConfig("nope"), 1, nil, ErrUnknownKernel},
		{"empty kernel", UnitScale, NewConfig(""), 1, nil, ErrInvalidConfig},
		{"fixed tscale only", UnitScale, NewConfig("linear"), 1, nil, ErrUnknownKernel},
		{"bilinear tscale", UnitTScale, NewConfig("bilinear"), 1, nil, ErrUnknownKernel},
		{"polar tscale", UnitTScale, NewConfig("ewa_lanczos"), 1, nil, ErrInvalidConfig},
		{"unknown window", UnitScale, withConf("lanczos", func(c *Config) { c.Window.Name = "nope" }), 1, nil, ErrUnknownWindow},
		{"radius", UnitScale, withConf("lanczos", func(c *Config) { c.Radius = 0.2 }), 1, nil, ErrInvalidConfig},
		{"clamp", UnitScale, withConf("lanczos", func(c *Config) { c.Clamp = 2 }), 1, nil, ErrInvalidConfig},
		{"cutoff NaN", UnitScale, withConf("lanczos", func(c *Config) { c.Cutoff = math.NaN() }), 1, nil, ErrInvalidConfig},
		{"taper", UnitScale, withConf("lanczos", func(c *Config) { c.Window.Taper = 1 }), 1, nil, ErrInvalidConfig},
		{"infinite param", UnitScale, withConf("mitchell", func(c *Config) { c.Kernel.Params[1] = math.Inf(1) }), 1, nil, ErrInvalidConfig},
		{"zero factor", UnitScale, NewConfig("lanczos"), 0, nil, ErrInvalidConfig},
		{"LUT size", UnitScale, NewConfig("lanczos"), 1, func(l *LUTConfig) { l.SizeLog2 = 11 }, ErrInvalidConfig},
		{"filter size", UnitScale, NewConfig("lanczos"), 1, func(l *LUTConfig) { l.MaxFilterSize = 1 }, ErrInvalidConfig},
		{"fallback", UnitScale, NewConfig("lanczos"), 1, func(l *LUTConfig) { l.Fallback = 7 }, ErrInvalidConfig},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := ratest.New()
			s := New(tt.unit)
			good := NewConfig("mitchell")
			if err := s.Reinit(r, nil, good, 1, DefaultLUTConfig()); err != nil {
				t.Fatalf("Reinit(mitchell) error: %v", err)
			}
			lut := s.LUT()

			lutConf := DefaultLUTConfig()
			if tt.lut != nil {
				tt.lut(&lutConf)
			}
			err := s.Reinit(r, nil, tt.conf, tt.factor, lutConf)
			if !errors.Is(err, tt.want) {
				t.Fatalf("Reinit() error = %v, want %v", err, tt.want)
			}
			if s.State() != Initialized || s.LUT() != lut || !s.Config().Equal(good) {
				t.Error("rejected config disturbed the previous state")
			}
		})
	}
}

func TestReinitAllocationFailure(t *testing.T) {
	r := ratest.New()
	s := New(UnitScale)
	if err := s.Reinit(r, nil, NewConfig("spline16"), 1, DefaultLUTConfig()); err != nil {
		t.Fatalf("Reinit() error: %v", err)
	}
	r.FailTex = func(ra.TexParams) bool { return true }

	err := s.Reinit(r, nil, NewConfig("spline64"), 1, DefaultLUTConfig())
	if !errors.Is(err, ErrAllocation) || !errors.Is(err, ra.ErrOutOfMemory) {
		t.Fatalf("Reinit() error = %v, want allocation failure", err)
	}
	if s.State() != Initialized || s.Config().Kernel.Name != "spline16" {
		t.Errorf("after failure: state %v, kernel %q, want previous spline16 unit", s.State(), s.Config().Kernel.Name)
	}
	if s.LUT() == nil || len(r.Textures) != 1 {
		t.Errorf("after failure: LUT %v, %d live textures, want the previous LUT only", s.LUT(), len(r.Textures))
	}

	r.FailTex = nil
	if err := s.Reinit(r, nil, NewConfig("spline64"), 1, DefaultLUTConfig()); err != nil {
		t.Fatalf("retry error: %v", err)
	}
	if s.Config().Kernel.Name != "spline64" || len(r.Textures) != 1 {
		t.Errorf("after retry: kernel %q, %d live textures, want spline64 and 1", s.Config().Kernel.Name, len(r.Textures))
	}
}

func TestReinitNoLUTFormat(t *testing.T) {
	r := ratest.New()
	r.FormatList = []*ra.Format{ra.FormatRGBA8, ra.FormatRGBA32F}
	s := New(UnitScale)
	err := s.Reinit(r, nil, NewConfig("lanczos"), 1, DefaultLUTConfig())
	if !errors.Is(err, ErrNoLUTFormat) {
		t.Errorf("Reinit() error = %v, want %v", err, ErrNoLUTFormat)
	}
}

func TestConfigOverrides(t *testing.T) {
	r := ratest.New()
	s := New(UnitScale)

	conf := NewConfig("lanczos")
	conf.Window.Name = "hanning"
	conf.Radius = 4
	conf.Clamp = 0.25
	if err := s.Reinit(r, nil, conf, 1, DefaultLUTConfig()); err != nil {
		t.Fatalf("Reinit() error: %v", err)
	}
	k := s.Kernel()
	if k.W.Name != "hanning" || k.F.Radius != 4 || k.Clamp != 0.25 || k.Size != 8 {
		t.Errorf("kernel window %q radius %v clamp %v size %d", k.W.Name, k.F.Radius, k.Clamp, k.Size)
	}

	conf = NewConfig("spline36")
	conf.Radius = 4
	if err := s.Reinit(r, nil, conf, 1, DefaultLUTConfig()); err != nil {
		t.Fatalf("Reinit() error: %v", err)
	}
	if got := s.Kernel().F.Radius; got != 3 {
		t.Errorf("fixed-radius kernel radius = %v, want 3", got)
	}

	conf = NewConfig("mitchell")
	conf.Kernel.Params = [2]float64{0, 0.5}
	if err := s.Reinit(r, nil, conf, 1, DefaultLUTConfig()); err != nil {
		t.Fatalf("Reinit() error: %v", err)
	}
	if got := s.Kernel().F.Params; got != [2]float64{0, 0.5} {
		t.Errorf("Params = %v, want [0 0.5]", got)
	}
}

func TestPrepareSeparated(t *testing.T) {
	r := ratest.New()
	s := New(UnitScale)
	if err := s.Reinit(r, nil, NewConfig("spline36"), 1, DefaultLUTConfig()); err != nil {
		t.Fatalf("Reinit() error: %v", err)
	}

	dst, err := s.PrepareSeparated(r, nil, 1920, 1080, ra.FormatRGBA16F)
	if err != nil {
		t.Fatalf("PrepareSeparated() error: %v", err)
	}
	first := dst.Tex
	if first.Width() != 1920 || first.Height() < 1080 {
		t.Errorf("target = %dx%d", first.Width(), first.Height())
	}

	if dst, _ = s.PrepareSeparated(r, nil, 1920, 1000, ra.FormatRGBA16F); dst.Tex != first {
		t.Error("height change within capacity reallocated")
	}
	if dst, _ = s.PrepareSeparated(r, nil, 1280, 1000, ra.FormatRGBA16F); dst.Tex == first {
		t.Error("width change reused a target of the wrong width")
	}
	if w, h := s.Separated().LogicalSize(); w != 1280 || h != 1000 {
		t.Errorf("LogicalSize() = %dx%d, want 1280x1000", w, h)
	}

	s.Uninit()
	if len(r.Textures) != 0 {
		t.Errorf("%d textures leaked by Uninit", len(r.Textures))
	}
	if s.State() != Uninitialized || s.Path() != PathNone || s.Unit != UnitScale {
		t.Errorf("after Uninit: state %v path %v unit %v", s.State(), s.Path(), s.Unit)
	}
	s.Uninit()
}

func TestPrepareSeparatedRejectsNonSeparable(t *testing.T) {
	for _, name := range []string{"bilinear", "ewa_lanczos"} {
		r := ratest.New()
		s := New(UnitScale)
		if err := s.Reinit(r, nil, NewConfig(name), 1, DefaultLUTConfig()); err != nil {
			t.Fatalf("Reinit(%s) error: %v", name, err)
		}
		if _, err := s.PrepareSeparated(r, nil, 64, 64, ra.FormatRGBA16F); !errors.Is(err, ErrNotSeparable) {
			t.Errorf("%s: PrepareSeparated() error = %v, want %v", name, err, ErrNotSeparable)
		}
	}
}

func TestConfigEqual(t *testing.T) {
	a, b := NewConfig("lanczos"), NewConfig("lanczos")
	if !a.Equal(b) {
		t.Error("configs with NaN params not equal")
	}
	b.Antiring = 0.5
	if a.Equal(b) || !a.lutEqual(b) {
		t.Error("antiring must only affect full equality")
	}
	b = NewConfig("lanczos")
	b.Window.Params[1] = 2
	if a.Equal(b) {
		t.Error("window param change not detected")
	}
}

func TestNames(t *testing.T) {
	ts := Names(UnitTScale)
	if !slices.Contains(ts, "linear") || slices.Contains(ts, "bilinear") || slices.Contains(ts, "ewa_lanczos") {
		t.Errorf("Names(tscale) = %v", ts)
	}
	s := Names(UnitScale)
	if !slices.Contains(s, "bilinear") || !slices.Contains(s, "ewa_lanczos") || slices.Contains(s, "linear") {
		t.Errorf("Names(scale) = %v", s)
	}
	for _, n := range s {
		if err := NewConfig(n).Validate(UnitScale); err != nil {
			t.Errorf("listed name %q invalid: %v", n, err)
		}
	}
}

func TestFallbackText(t *testing.T) {
	var f Fallback
	if err := f.UnmarshalText([]byte("clamp")); err != nil || f != FallbackClamp {
		t.Errorf("UnmarshalText(clamp) = %v, %v", f, err)
	}
	if b, _ := FallbackDirect.MarshalText(); string(b) != "direct" {
		t.Errorf("MarshalText() = %q, want direct", b)
	}
	if err := f.UnmarshalText([]byte("lut")); !errors.Is(err, ErrInvalidConfig) {
		t.Errorf("UnmarshalText(lut) error = %v", err)
	}
	if UnitCount.String() != "Unit(4)" || Insufficient.String() != "insufficient" {
		t.Error("String() mismatch")
	}
}
