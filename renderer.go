package vidrender

import (
	"errors"
	"fmt"
	"image"
	"log/slog"

	"github.com/gogpu/vidrender/fbo"
	"github.com/gogpu/vidrender/options"
	"github.com/gogpu/vidrender/ra"
	"github.com/gogpu/vidrender/scaler"
	"github.com/gogpu/vidrender/timer"
	"github.com/gogpu/vidrender/upload"
)

// Renderer errors.
var (
	// ErrNotConfigured is returned by RenderFrame before Configure.
	ErrNotConfigured = errors.New("vidrender: not configured")

	// ErrInvalidImage is returned for malformed image parameters.
	ErrInvalidImage = errors.New("vidrender: invalid image parameters")

	// ErrUnsupportedFormat is returned for plane formats the device lacks.
	ErrUnsupportedFormat = errors.New("vidrender: unsupported format")

	// ErrNoFBOFormat is returned when no intermediate target format is
	// renderable and filterable.
	ErrNoFBOFormat = errors.New("vidrender: no usable intermediate format")

	// ErrFrameMismatch is returned for frames whose planes do not match
	// the configured image.
	ErrFrameMismatch = errors.New("vidrender: frame does not match configuration")
)

// PeakDetectFrames is the number of frames HDR peak detection averages
// over.
const PeakDetectFrames = 100

// peakBufSize holds the frame index, one maximum per frame plus the
// current one, the running sum and the pixel counter, all uint32.
const peakBufSize = 4 * (1 + PeakDetectFrames + 1 + 2)

// maxSurfaces bounds the interpolation surface ring.
const maxSurfaces = 16

// Config configures a Renderer.
type Config struct {
	// Logger receives diagnostics; nil uses Logger().
	Logger *slog.Logger

	// Runner executes the planned passes. Without one, frames are planned
	// and timed but nothing is drawn.
	Runner PassRunner
}

type plane struct {
	params PlaneParams
	tex    *ra.Tex
	w, h   int
	pool   upload.Pool
}

type surface struct {
	fbo   fbo.Tex
	pts   float64
	valid bool
}

// Renderer drives the render resources of one video output.
//
// A Renderer is not safe for concurrent use.
type Renderer struct {
	ra     ra.RA
	log    *slog.Logger
	runner PassRunner

	opts *options.Options

	img        ImageParams
	planes     []*plane
	configured bool

	src, dst image.Rectangle
	hasRects bool
	clear    options.Color

	scalers   [scaler.UnitCount]scaler.Scaler
	fboFormat *ra.Format
	indirect  fbo.Tex

	surfaces   []surface
	surfaceIdx int
	surfaceW   int
	surfaceH   int

	dither      *ra.Tex
	ditherDepth int
	peakBuf     *ra.Buf

	lux       int
	hasLux    bool
	luxGamma  float64
	frames    uint64
	showInter bool

	timersOK    bool
	uploadTimer *timer.Pool
	renderTimer *timer.Pool
	passTimers  map[string]*timer.Pool
	passOrder   []string

	plan     []Pass
	lastPlan string
}

// New returns a renderer over r with default options.
func New(r ra.RA, cfg Config) *Renderer {
	log := cfg.Logger
	if log == nil {
		log = Logger()
	}
	rd := &Renderer{
		ra:         r,
		log:        log.With("module", "vo/gpu"),
		runner:     cfg.Runner,
		opts:       options.Default(),
		clear:      options.Color{A: 0xff},
		luxGamma:   1,
		passTimers: make(map[string]*timer.Pool),
	}
	for u := range scaler.UnitCount {
		rd.scalers[u].Unit = u
	}
	rd.uploadTimer = timer.Create(r)
	rd.renderTimer = timer.Create(r)
	rd.timersOK = rd.uploadTimer != nil && rd.renderTimer != nil
	if !rd.timersOK {
		rd.log.Warn("renderer: GPU timers unavailable, perf data disabled")
	}
	rd.log.Info("renderer: initialized", "max_texture", r.MaxTextureSize(), "formats", len(r.Formats()))
	return rd
}

// Close releases every GPU resource. The renderer must not be used
// afterwards.
func (r *Renderer) Close() {
	r.destroyPlanes()
	for u := range r.scalers {
		r.scalers[u].Uninit()
	}
	r.indirect.Uninit()
	r.resizeSurfaces(0)
	r.destroyDither()
	r.destroyPeak()
	r.uploadTimer.Destroy()
	r.renderTimer.Destroy()
	for _, t := range r.passTimers {
		t.Destroy()
	}
	clear(r.passTimers)
	r.passOrder = nil
	r.configured = false
	r.log.Info("renderer: closed")
}

// Options returns the active options. The result must not be modified.
func (r *Renderer) Options() *options.Options { return r.opts }

// UpdateOptions validates o and applies it, reinitializing only the
// components whose option groups changed. Invalid options are rejected
// and the previous ones stay active. o is copied.
func (r *Renderer) UpdateOptions(o *options.Options) error {
	if o == nil {
		return fmt.Errorf("%w: nil options", options.ErrInvalidOption)
	}
	if err := o.Validate(); err != nil {
		r.log.Error("renderer: options rejected", "err", err)
		return err
	}
	c := options.Diff(r.opts, o)
	if c == 0 {
		return nil
	}

	if c.Has(options.ChangeTextures) && r.configured &&
		(o.TexPadX != r.opts.TexPadX || o.TexPadY != r.opts.TexPadY) {
		planes, err := r.createPlanes(r.img, o.TexPadX, o.TexPadY)
		if err != nil {
			return err
		}
		r.destroyPlanes()
		r.planes = planes
	}

	r.opts = o.Clone()
	r.log.Debug("renderer: options changed", "groups", c)

	for u := range scaler.UnitCount {
		if c.Has(options.ChangeScaler(u)) {
			r.scalers[u].Uninit()
		}
	}
	if c.Has(options.ChangeTextures) {
		r.fboFormat = nil
		r.indirect.Uninit()
		for u := range r.scalers {
			r.scalers[u].Separated().Uninit()
		}
		r.resizeSurfaces(0)
	}
	if c.Has(options.ChangeUpload) {
		for _, p := range r.planes {
			p.pool.Uninit(r.ra)
		}
	}
	if c.Has(options.ChangeDither) {
		r.destroyDither()
	}
	if c.Has(options.ChangeToneMapping) {
		r.destroyPeak()
	}
	if c.Any(options.ChangeInterpolation | options.ChangeScaler(scaler.UnitTScale)) {
		r.Reset()
	}
	if c.Has(options.ChangeColor) {
		r.updateGamma()
	}
	return nil
}

// Configure sets up the plane textures for images described by p. On
// failure the previous configuration stays active.
func (r *Renderer) Configure(p ImageParams) error {
	if err := p.validate(r.ra); err != nil {
		r.log.Error("renderer: configure failed", "err", err)
		return err
	}
	planes, err := r.createPlanes(p, r.opts.TexPadX, r.opts.TexPadY)
	if err != nil {
		return err
	}
	r.destroyPlanes()
	r.planes = planes
	r.img = p
	r.img.Planes = append([]PlaneParams(nil), p.Planes...)
	r.configured = true
	r.destroyPeak()
	r.Reset()
	r.log.Info("renderer: configured", "w", p.W, "h", p.H, "planes", len(p.Planes),
		"prim", p.Primaries, "trc", p.Transfer)
	return nil
}

func (r *Renderer) createPlanes(p ImageParams, padX, padY int) ([]*plane, error) {
	planes := make([]*plane, 0, len(p.Planes))
	fail := func(err error) ([]*plane, error) {
		for _, pl := range planes {
			r.ra.TexDestroy(pl.tex)
		}
		r.log.Error("renderer: plane allocation failed", "err", err)
		return nil, err
	}
	for i, pp := range p.Planes {
		format := ra.FindNamedFormat(r.ra, pp.Format)
		if format == nil {
			return fail(fmt.Errorf("%w: plane %d format %q", ErrUnsupportedFormat, i, pp.Format))
		}
		w, h := pp.Size(p.W, p.H)
		if max(w+padX, h+padY) > r.ra.MaxTextureSize() {
			return fail(fmt.Errorf("%w: plane %d is %dx%d, limit %d", ErrInvalidImage, i, w+padX, h+padY, r.ra.MaxTextureSize()))
		}
		tex, err := r.ra.TexCreate(ra.TexParams{
			Dimensions:  2,
			W:           w + padX,
			H:           h + padY,
			Format:      format,
			RenderSrc:   true,
			SrcLinear:   format.Linear,
			HostMutable: true,
			Label:       fmt.Sprintf("plane%d", i),
		})
		if err != nil {
			return fail(fmt.Errorf("vidrender: plane %d: %w", i, err))
		}
		planes = append(planes, &plane{params: pp, tex: tex, w: w, h: h})
	}
	return planes, nil
}

func (r *Renderer) destroyPlanes() {
	for _, p := range r.planes {
		p.pool.Uninit(r.ra)
		r.ra.TexDestroy(p.tex)
	}
	r.planes = nil
}

// Resize sets the source crop in image coordinates and the destination
// rectangle in target coordinates. Empty rectangles select the whole
// image and the whole target.
func (r *Renderer) Resize(src, dst image.Rectangle) {
	r.src, r.dst = src, dst
	r.hasRects = !src.Empty() && !dst.Empty()
	r.log.Debug("renderer: resize", "src", src, "dst", dst)
}

// SetClearColor sets the color of target areas outside the video.
func (r *Renderer) SetClearColor(c options.Color) { r.clear = c }

// ClearColor returns the clear color.
func (r *Renderer) ClearColor() options.Color { return r.clear }

// SetAmbientLux adjusts the output gamma to the ambient light level when
// gamma-auto is enabled.
func (r *Renderer) SetAmbientLux(lux int) {
	r.lux = lux
	r.hasLux = true
	r.updateGamma()
}

func (r *Renderer) updateGamma() {
	if !r.opts.GammaAuto || !r.hasLux {
		r.luxGamma = 1
		return
	}
	r.luxGamma = luxGamma(r.lux)
	r.log.Debug("renderer: ambient light changed", "lux", r.lux, "gamma", r.luxGamma)
}

// Reset drops the interpolation history, so the next frame is rendered
// without blending in older frames.
func (r *Renderer) Reset() {
	for i := range r.surfaces {
		r.surfaces[i].valid = false
	}
	r.surfaceIdx = 0
	r.showInter = false
}

// ShowingInterpolatedFrame reports whether the last rendered frame was
// produced by temporal interpolation.
func (r *Renderer) ShowingInterpolatedFrame() bool { return r.showInter }

// OutputColorspace returns the colorimetry of rendered frames.
func (r *Renderer) OutputColorspace() Colorspace {
	prim := r.opts.TargetPrim
	if prim == options.PrimAuto {
		prim = options.PrimBT709
		if r.img.Primaries.IsWide() {
			prim = options.PrimBT2020
		}
	}
	trc := r.opts.TargetTRC
	if trc == options.TransferAuto {
		trc = r.img.Transfer
		switch {
		case trc == options.TransferAuto:
			trc = options.TransferBT1886
		case trc == options.TransferLinear || trc.IsHDR():
			trc = options.TransferGamma22
		}
	}
	gamma := r.opts.Gamma
	if r.opts.GammaAuto {
		gamma = r.luxGamma
	}
	return Colorspace{
		Primaries:  prim,
		Transfer:   trc,
		Gamma:      gamma,
		Brightness: r.opts.TargetBrightness,
	}
}

// PerfData returns the timing history of the upload, the whole frame and
// every pass seen so far.
func (r *Renderer) PerfData() PerfData {
	d := PerfData{
		Upload: r.uploadTimer.Measure(),
		Render: r.renderTimer.Measure(),
	}
	for _, name := range r.passOrder {
		d.Passes = append(d.Passes, PassPerf{Name: name, PassPerf: r.passTimers[name].Measure()})
	}
	return d
}

// UploadStats returns the upload counters summed over all planes.
func (r *Renderer) UploadStats() upload.Stats {
	var st upload.Stats
	for _, p := range r.planes {
		ps := p.pool.Stats()
		st.Direct += ps.Direct
		st.Staged += ps.Staged
		st.Busy += ps.Busy
		st.Reallocs += ps.Reallocs
	}
	return st
}

func (r *Renderer) passTimer(name string) *timer.Pool {
	if t, ok := r.passTimers[name]; ok {
		return t
	}
	var t *timer.Pool
	if r.timersOK {
		t = timer.Create(r.ra)
	}
	r.passTimers[name] = t
	r.passOrder = append(r.passOrder, name)
	return t
}

// Scaler returns scaler unit u.
func (r *Renderer) Scaler(u scaler.Unit) *scaler.Scaler { return &r.scalers[u] }

// DumbMode reports whether frames are rendered in a single fixed-function
// pass.
func (r *Renderer) DumbMode() bool {
	o := r.opts
	switch o.DumbMode {
	case options.DumbYes:
		return true
	case options.DumbNo:
		return false
	}
	if o.TargetPrim != options.PrimAuto || o.TargetTRC != options.TransferAuto ||
		o.LinearScaling || o.CorrectDownscaling || o.SigmoidUpscaling ||
		o.Interpolation || o.BlendSubs != options.BlendSubsNo ||
		o.Deband || o.Unsharp != 0 {
		return false
	}
	for u := range scaler.UnitCount {
		if u != scaler.UnitTScale && o.Scaler(u).Kernel.Name != "bilinear" {
			return false
		}
	}
	return len(o.UserShaders) == 0 && o.ICC.Profile == "" && !o.ICC.ProfileAuto
}
