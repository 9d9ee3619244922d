package vidrender

import (
	"encoding/binary"
	"fmt"
	"image"
	"log/slog"
	"math"
	"strings"

	"github.com/gogpu/vidrender/dither"
	"github.com/gogpu/vidrender/options"
	"github.com/gogpu/vidrender/ra"
	"github.com/gogpu/vidrender/scaler"
	"github.com/gogpu/vidrender/timer"
	"github.com/gogpu/vidrender/transform"
)

// fboFormats is the automatic intermediate format preference.
var fboFormats = []string{"rgba16f", "rgba16", "rgb10_a2", "rgba8"}

// RenderFrame uploads f and renders it into target. A nil f, or a frame
// without plane data, redraws the last uploaded image. Any failure aborts
// the frame; resources that were allocated stay cached.
func (r *Renderer) RenderFrame(f *Frame, target ra.FBODst) error {
	if !r.configured {
		return ErrNotConfigured
	}
	if target.Tex == nil {
		return fmt.Errorf("%w: nil target", ra.ErrInvalidParams)
	}
	err := timed(r.renderTimer, func() error {
		if f != nil && f.Planes != nil {
			if err := timed(r.uploadTimer, func() error { return r.upload(f) }); err != nil {
				return err
			}
		}
		if err := r.buildPlan(f, target); err != nil {
			return err
		}
		return r.runPlan()
	})
	if err != nil {
		r.log.Error("renderer: frame aborted", "err", err)
		return err
	}
	r.frames++
	return nil
}

func timed(t *timer.Pool, fn func() error) error {
	if err := t.Start(); err != nil {
		return err
	}
	err := fn()
	if serr := t.Stop(); err == nil {
		err = serr
	}
	return err
}

func (r *Renderer) upload(f *Frame) error {
	if len(f.Planes) != len(r.planes) {
		return fmt.Errorf("%w: %d planes, configured %d", ErrFrameMismatch, len(f.Planes), len(r.planes))
	}
	for i, pl := range r.planes {
		fp := f.Planes[i]
		rect := image.Rect(0, 0, pl.w, pl.h)
		p := ra.TexUploadParams{
			Tex:        pl.tex,
			Rect:       &rect,
			Stride:     fp.Stride,
			Src:        fp.Data,
			Invalidate: true,
		}
		if err := pl.pool.Upload(r.ra, r.log, r.opts.PBO, &p); err != nil {
			return fmt.Errorf("vidrender: upload plane %d: %w", i, err)
		}
	}
	return nil
}

func (r *Renderer) runPlan() error {
	for i := range r.plan {
		p := &r.plan[i]
		err := timed(r.passTimer(p.Name), func() error {
			if r.runner == nil {
				return nil
			}
			return r.runner.RunPass(p)
		})
		if err != nil {
			return fmt.Errorf("vidrender: pass %s: %w", p.Name, err)
		}
	}
	return nil
}

// Plan returns the passes of the last rendered frame. The result is only
// valid until the next RenderFrame.
func (r *Renderer) Plan() []Pass { return r.plan }

func (r *Renderer) rects(target ra.FBODst) (transform.Rect, transform.Rect) {
	if r.hasRects {
		return transform.RectFromImage(r.src), transform.RectFromImage(r.dst)
	}
	return transform.RectFromImage(image.Rect(0, 0, r.img.W, r.img.H)),
		transform.RectFromImage(image.Rect(0, 0, target.Tex.Width(), target.Tex.Height()))
}

func (r *Renderer) planeTextures() []*ra.Tex {
	texs := make([]*ra.Tex, len(r.planes))
	for i, p := range r.planes {
		texs[i] = p.tex
	}
	return texs
}

func (r *Renderer) buildPlan(f *Frame, target ra.FBODst) error {
	r.plan = r.plan[:0]
	src, dst := r.rects(target)

	if r.DumbMode() {
		r.showInter = false
		r.plan = append(r.plan, Pass{
			Kind:      PassDumb,
			Name:      PassDumb.String(),
			Inputs:    r.planeTextures(),
			Target:    target,
			Src:       src,
			Dst:       dst,
			Transform: transform.OrthoFBODst(target),
		})
		r.logPlan()
		return nil
	}

	o := r.opts
	format, err := r.intermediateFormat()
	if err != nil {
		return err
	}
	lut := o.LUTConfig()

	xs := float64(dst.W() / src.W())
	ys := float64(dst.H() / src.H())
	upscaling := xs > 1 || ys > 1
	downscaling := xs < 1 || ys < 1
	linear := o.LinearScaling || (o.SigmoidUpscaling && upscaling)
	if downscaling && r.img.Transfer.IsHDR() {
		linear = false
	}

	inputs := r.planeTextures()
	if r.img.Subsampled() {
		cs := &r.scalers[scaler.UnitCScale]
		if err := cs.Reinit(r.ra, r.log, o.Scaler(scaler.UnitCScale), 1, lut); err != nil {
			return err
		}
		if err := r.indirect.Change(r.ra, r.log, r.img.W, r.img.H, format, 0); err != nil {
			return err
		}
		cw, ch := r.chromaSize()
		full := transform.Rect{X1: float32(r.img.W), Y1: float32(r.img.H)}
		chroma := transform.Rect{X1: float32(cw), Y1: float32(ch)}
		if err := r.addScaled(PassMerge, cs, inputs, chroma, r.indirect.Dst(), full, format); err != nil {
			return err
		}
		inputs = []*ra.Tex{r.indirect.Texture()}
	} else if linear {
		if err := r.indirect.Change(r.ra, r.log, r.img.W, r.img.H, format, 0); err != nil {
			return err
		}
		full := transform.Rect{X1: float32(r.img.W), Y1: float32(r.img.H)}
		r.plan = append(r.plan, Pass{
			Kind:      PassLinearize,
			Name:      PassLinearize.String(),
			Inputs:    inputs,
			Target:    r.indirect.Dst(),
			Src:       full,
			Dst:       full,
			Transform: transform.OrthoFBODst(r.indirect.Dst()),
		})
		inputs = []*ra.Tex{r.indirect.Texture()}
	}

	interp := r.interpolating(f)
	out := target
	if interp {
		ts := &r.scalers[scaler.UnitTScale]
		if err := ts.Reinit(r.ra, r.log, o.Scaler(scaler.UnitTScale), 1, lut); err != nil {
			return err
		}
		surf, err := r.nextSurface(target, format, f.PTS)
		if err != nil {
			return err
		}
		out = surf
	}

	resize := math.Abs(xs-1) > scaler.FactorTolerance || math.Abs(ys-1) > scaler.FactorTolerance
	if resize || !o.ScalerResizesOnly {
		unit, factor := scaler.UnitScale, 1.0
		if m := min(xs, ys); m < 1 {
			unit = scaler.UnitDScale
			if o.CorrectDownscaling {
				factor = 1 / m
			}
		}
		s := &r.scalers[unit]
		if err := s.Reinit(r.ra, r.log, o.Scaler(unit), factor, lut); err != nil {
			return err
		}
		if err := r.addScaled(PassScale, s, inputs, src, out, dst, format); err != nil {
			return err
		}
	} else {
		r.plan = append(r.plan, Pass{
			Kind:      PassOutput,
			Name:      PassOutput.String(),
			Inputs:    inputs,
			Target:    out,
			Src:       src,
			Dst:       dst,
			Transform: transform.OrthoFBODst(out),
		})
	}

	if interp {
		ts := &r.scalers[scaler.UnitTScale]
		full := transform.Rect{X1: float32(target.Tex.Width()), Y1: float32(target.Tex.Height())}
		r.plan = append(r.plan, Pass{
			Kind:      PassInterpolate,
			Name:      passName(PassInterpolate, ts),
			Scaler:    ts,
			Inputs:    r.surfaceHistory(),
			Target:    target,
			Src:       full,
			Dst:       full,
			Transform: transform.OrthoFBODst(target),
		})
	}
	r.showInter = interp

	last := &r.plan[len(r.plan)-1]
	if err := r.ensureDither(target); err != nil {
		return err
	}
	if r.dither != nil {
		last.Dither = r.dither
		last.DitherDepth = r.ditherDepth
		if o.TemporalDither {
			last.DitherPhase = int(r.frames/uint64(o.TemporalDitherPeriod)) % 8
		}
	}
	if err := r.ensurePeak(); err != nil {
		return err
	}
	last.PeakBuf = r.peakBuf

	r.logPlan()
	return nil
}

// addScaled appends the passes of scaler s sampling src of inputs into dst
// of target. Separable scalers get a vertical pass into their own target
// first.
func (r *Renderer) addScaled(kind PassKind, s *scaler.Scaler, inputs []*ra.Tex,
	src transform.Rect, target ra.FBODst, dst transform.Rect, format *ra.Format) error {
	if s.Separable() {
		w := int(math.Ceil(float64(src.W())))
		h := int(math.Ceil(float64(dst.H())))
		sep, err := s.PrepareSeparated(r.ra, r.log, w, h, format)
		if err != nil {
			return err
		}
		mid := transform.Rect{X1: src.W(), Y1: dst.H()}
		r.plan = append(r.plan, Pass{
			Kind:      PassScaleSep,
			Name:      passName(PassScaleSep, s),
			Scaler:    s,
			Inputs:    inputs,
			Target:    sep,
			Src:       src,
			Dst:       mid,
			Transform: transform.OrthoFBODst(sep),
		})
		inputs = []*ra.Tex{sep.Tex}
		src = mid
	}
	r.plan = append(r.plan, Pass{
		Kind:      kind,
		Name:      passName(kind, s),
		Scaler:    s,
		Inputs:    inputs,
		Target:    target,
		Src:       src,
		Dst:       dst,
		Transform: transform.OrthoFBODst(target),
	})
	return nil
}

func (r *Renderer) chromaSize() (int, int) {
	for _, p := range r.img.Planes {
		if p.ShiftX > 0 || p.ShiftY > 0 {
			return p.Size(r.img.W, r.img.H)
		}
	}
	return r.img.W, r.img.H
}

func (r *Renderer) intermediateFormat() (*ra.Format, error) {
	if r.fboFormat != nil {
		return r.fboFormat, nil
	}
	usable := func(f *ra.Format) bool { return f != nil && f.Renderable && f.Linear }
	if name := r.opts.FormatName(); name != "" {
		f := ra.FindNamedFormat(r.ra, name)
		if !usable(f) {
			return nil, fmt.Errorf("%w: %q", ErrNoFBOFormat, name)
		}
		r.fboFormat = f
		return f, nil
	}
	for _, name := range fboFormats {
		if f := ra.FindNamedFormat(r.ra, name); usable(f) {
			r.log.Debug("renderer: intermediate format", "format", f)
			r.fboFormat = f
			return f, nil
		}
	}
	return nil, ErrNoFBOFormat
}

func (r *Renderer) interpolating(f *Frame) bool {
	o := r.opts
	if !o.Interpolation || f == nil || f.Planes == nil || f.Still || !f.DisplaySynced {
		return false
	}
	if f.FrameDuration > 0 && f.VSyncInterval > 0 && o.InterpolationThreshold >= 0 &&
		math.Abs(f.FrameDuration/f.VSyncInterval-1) < o.InterpolationThreshold {
		return false
	}
	return true
}

// surfaceCount returns the interpolation history length tscale needs.
func (r *Renderer) surfaceCount() int {
	n := 2
	if k := r.scalers[scaler.UnitTScale].Kernel(); k != nil {
		n = max(n, k.Size)
	}
	return min(n+1, maxSurfaces)
}

func (r *Renderer) resizeSurfaces(n int) {
	for i := n; i < len(r.surfaces); i++ {
		r.surfaces[i].fbo.Uninit()
	}
	if n <= len(r.surfaces) {
		r.surfaces = r.surfaces[:n]
	} else {
		r.surfaces = append(r.surfaces, make([]surface, n-len(r.surfaces))...)
	}
	if r.surfaceIdx >= max(n, 1) {
		r.surfaceIdx = 0
	}
}

// nextSurface renders into the oldest history slot.
func (r *Renderer) nextSurface(target ra.FBODst, format *ra.Format, pts float64) (ra.FBODst, error) {
	w, h := target.Tex.Width(), target.Tex.Height()
	if n := r.surfaceCount(); n != len(r.surfaces) || w != r.surfaceW || h != r.surfaceH {
		r.resizeSurfaces(n)
		r.Reset()
		r.surfaceW, r.surfaceH = w, h
	}
	s := &r.surfaces[r.surfaceIdx]
	if err := s.fbo.Change(r.ra, r.log, w, h, format, 0); err != nil {
		s.valid = false
		return ra.FBODst{}, err
	}
	s.pts = pts
	s.valid = true
	r.surfaceIdx = (r.surfaceIdx + 1) % len(r.surfaces)
	return s.fbo.Dst(), nil
}

// surfaceHistory returns the valid surfaces, oldest first.
func (r *Renderer) surfaceHistory() []*ra.Tex {
	var texs []*ra.Tex
	for i := range r.surfaces {
		s := &r.surfaces[(r.surfaceIdx+i)%len(r.surfaces)]
		if s.valid {
			texs = append(texs, s.fbo.Texture())
		}
	}
	return texs
}

// targetDepth guesses the bit depth of target for automatic dithering.
func targetDepth(target ra.FBODst) int {
	f := target.Tex.Params.Format
	switch {
	case f == nil:
		return 8
	case f.Float:
		return 0
	case f.Name == "rgb10_a2":
		return 10
	}
	return f.ComponentSize * 8
}

func (r *Renderer) ensureDither(target ra.FBODst) error {
	o := r.opts
	depth := o.DitherDepth
	if depth < 0 {
		depth = targetDepth(target)
	}
	if o.Dither == options.DitherNone || depth <= 0 || depth >= 16 {
		r.destroyDither()
		return nil
	}
	r.ditherDepth = depth
	if r.dither != nil {
		return nil
	}

	vals, size, err := dither.Matrix(o.Dither, o.DitherSize)
	if err != nil {
		return err
	}
	format := ra.FindFloatFormat(r.ra, 1)
	var data []byte
	if format != nil {
		if data, err = format.PackFloats(vals); err != nil {
			return err
		}
	} else if format = ra.FindUnormFormat(r.ra, 2, 1); format != nil {
		data = make([]byte, 2*len(vals))
		for i, v := range vals {
			binary.LittleEndian.PutUint16(data[2*i:], uint16(math.Round(float64(v)*math.MaxUint16)))
		}
	} else {
		r.log.Warn("renderer: no texture format for the dither matrix, dithering disabled")
		return nil
	}
	tex, err := r.ra.TexCreate(ra.TexParams{
		Dimensions:  2,
		W:           size,
		H:           size,
		Format:      format,
		RenderSrc:   true,
		InitialData: data,
		Label:       "dither",
	})
	if err != nil {
		return fmt.Errorf("vidrender: dither matrix: %w", err)
	}
	r.dither = tex
	r.log.Debug("renderer: dither matrix created", "algo", o.Dither, "size", size, "depth", depth, "format", format)
	return nil
}

func (r *Renderer) destroyDither() {
	if r.dither != nil {
		r.ra.TexDestroy(r.dither)
		r.dither = nil
	}
}

// ensurePeak keeps the HDR peak buffer allocated while peak detection
// applies to the current source.
func (r *Renderer) ensurePeak() error {
	need := r.opts.ComputeHDRPeak && r.img.Transfer.IsHDR() &&
		!r.OutputColorspace().Transfer.IsHDR() && r.ra.Caps().Has(ra.CapStorageBuf)
	if !need {
		r.destroyPeak()
		return nil
	}
	if r.peakBuf != nil {
		return nil
	}
	buf, err := r.ra.BufCreate(ra.BufParams{
		Type:        ra.BufShaderStorage,
		Size:        peakBufSize,
		InitialData: make([]byte, peakBufSize),
		Label:       "hdr-peak",
	})
	if err != nil {
		return fmt.Errorf("vidrender: peak buffer: %w", err)
	}
	r.peakBuf = buf
	return nil
}

func (r *Renderer) destroyPeak() {
	if r.peakBuf != nil {
		r.ra.BufDestroy(r.peakBuf)
		r.peakBuf = nil
	}
}

// logPlan dumps the pass list whenever it changes.
func (r *Renderer) logPlan() {
	var b strings.Builder
	for i := range r.plan {
		if i > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(r.plan[i].String())
	}
	s := b.String()
	if s == r.lastPlan {
		return
	}
	r.lastPlan = s
	r.log.Debug("renderer: pass plan changed", "passes", len(r.plan))
	LogSource(r.log, slog.LevelDebug, s)
}
