// Package fbo implements the render-target cache used for intermediate
// passes.
//
// A Tex owns one render target texture and tracks the logical size the
// renderer currently draws into. Resizes within the existing capacity only
// update the logical size; with the fuzzy flags, reallocations round the
// physical size up so continuous window resizing does not reallocate on
// every pixel of movement.
package fbo

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/gogpu/vidrender/internal/logx"
	"github.com/gogpu/vidrender/ra"
)

// Render target errors.
var (
	// ErrUnsupportedFormat is returned when the format cannot be rendered
	// to or sampled with linear filtering.
	ErrUnsupportedFormat = errors.New("fbo: format not supported")

	// ErrAllocation is returned when the backing texture cannot be created.
	ErrAllocation = errors.New("fbo: texture allocation failed")

	// ErrInvalidSize is returned for non-positive sizes.
	ErrInvalidSize = errors.New("fbo: invalid size")
)

// Flags select the fuzzy reuse policy per dimension.
type Flags int

const (
	// FuzzyW permits a wider texture than requested.
	FuzzyW Flags = 1 << iota

	// FuzzyH permits a taller texture than requested.
	FuzzyH

	// Fuzzy combines FuzzyW and FuzzyH.
	Fuzzy = FuzzyW | FuzzyH
)

// Align is the granularity fuzzy dimensions are rounded up to.
const Align = 256

// Tex is a cached render target. The zero value is empty and ready to use.
type Tex struct {
	ra  ra.RA
	tex *ra.Tex

	// Logical size; never exceeds the texture size.
	lw, lh int

	dst ra.FBODst

	reallocs int
}

// Change makes f usable as a w×h render target of the given format.
//
// If the current texture already has the right format and enough capacity
// (exactly w×h for non-fuzzy dimensions, at least w×h for fuzzy ones), only
// the logical size changes. Otherwise a new texture is created and the old
// one released. On failure f keeps its previous texture and logical size.
func (f *Tex) Change(r ra.RA, log *slog.Logger, w, h int, format *ra.Format, flags Flags) error {
	log = logx.OrNop(log)
	if w <= 0 || h <= 0 {
		return fmt.Errorf("%w: %dx%d", ErrInvalidSize, w, h)
	}

	if f.tex != nil {
		cw, ch := w, h
		p := f.tex.Params
		if flags&FuzzyW != 0 && cw < p.W {
			cw = p.W
		}
		if flags&FuzzyH != 0 && ch < p.H {
			ch = p.H
		}
		if p.W == cw && p.H == ch && p.Format == format {
			f.lw, f.lh = w, h
			return nil
		}
	}

	if format == nil || !format.Renderable || !format.Linear {
		log.Error("fbo: format not supported", "format", format.String())
		return fmt.Errorf("%w: %s", ErrUnsupportedFormat, format)
	}

	tw, th := w, h
	maxSize := r.MaxTextureSize()
	if flags&FuzzyW != 0 {
		tw = alignUp(w, maxSize)
	}
	if flags&FuzzyH != 0 {
		th = alignUp(h, maxSize)
	}

	log.Debug("fbo: create", "logical", fmt.Sprintf("%dx%d", w, h),
		"texture", fmt.Sprintf("%dx%d", tw, th), "format", format.Name)

	tex, err := r.TexCreate(ra.TexParams{
		Dimensions: 2,
		W:          tw,
		H:          th,
		Format:     format,
		RenderSrc:  true,
		RenderDst:  true,
		SrcLinear:  true,
		BlitSrc:    true,
		Label:      "fbotex",
	})
	if err != nil {
		log.Error("fbo: allocation failed", "size", fmt.Sprintf("%dx%d", tw, th), "err", err)
		return fmt.Errorf("%w: %dx%d %s: %w", ErrAllocation, tw, th, format.Name, err)
	}

	f.release()
	f.ra = r
	f.tex = tex
	f.lw, f.lh = w, h
	f.dst = ra.FBODst{Tex: tex}
	f.reallocs++
	return nil
}

// Uninit releases the texture. Safe to call on an empty Tex.
func (f *Tex) Uninit() {
	f.release()
	*f = Tex{}
}

func (f *Tex) release() {
	if f.tex != nil && f.ra != nil {
		f.ra.TexDestroy(f.tex)
	}
	f.tex = nil
	f.dst = ra.FBODst{}
}

// Dst returns the render target descriptor, or a zero FBODst when empty.
func (f *Tex) Dst() ra.FBODst { return f.dst }

// Texture returns the backing texture, or nil.
func (f *Tex) Texture() *ra.Tex { return f.tex }

// LogicalSize returns the size last requested through Change.
func (f *Tex) LogicalSize() (w, h int) { return f.lw, f.lh }

// Valid reports whether f holds a texture.
func (f *Tex) Valid() bool { return f.tex != nil }

// Reallocs returns how many textures f has created over its lifetime.
// Reset by Uninit.
func (f *Tex) Reallocs() int { return f.reallocs }

// Bytes returns the size of the backing texture.
func (f *Tex) Bytes() int {
	if f.tex == nil {
		return 0
	}
	p := f.tex.Params
	return p.W * p.H * p.Format.BytesPerPixel()
}

// alignUp rounds v up to Align, not exceeding limit unless v itself does.
func alignUp(v, limit int) int {
	a := (v + Align - 1) / Align * Align
	if limit > 0 && a > limit {
		a = max(v, limit)
	}
	return a
}
