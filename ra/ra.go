// Package ra defines the graphics abstraction the render core drives.
//
// The core never touches backend handles directly: it creates, uploads and
// destroys textures, buffers and timers through the RA interface. Concrete
// implementations live in backend/ (wgpu HAL) and ra/ratest (in-memory).
package ra

import (
	"errors"
	"image"
	"time"

	"github.com/gogpu/gpucontext"
)

// Graphics abstraction errors.
var (
	// ErrOutOfMemory is returned when the device cannot allocate a resource.
	ErrOutOfMemory = errors.New("ra: out of memory")

	// ErrUnsupportedFormat is returned for formats the device cannot use
	// in the requested way.
	ErrUnsupportedFormat = errors.New("ra: unsupported format")

	// ErrInvalidParams is returned for malformed resource parameters.
	ErrInvalidParams = errors.New("ra: invalid parameters")

	// ErrTimersUnsupported is returned by TimerCreate on devices without
	// timestamp queries.
	ErrTimersUnsupported = errors.New("ra: timer queries not supported")

	// ErrDestroyed is returned when operating on a released resource.
	ErrDestroyed = errors.New("ra: resource destroyed")
)

// Caps is a set of device capabilities.
type Caps uint32

// Capability flags.
const (
	// CapTex1D: 1D textures are available.
	CapTex1D Caps = 1 << iota

	// CapDirectUpload: textures can be uploaded from host memory without a
	// staging buffer.
	CapDirectUpload

	// CapTimers: GPU timer queries are available.
	CapTimers

	// CapStorageBuf: shader storage buffers are available.
	CapStorageBuf
)

// Has reports whether all flags in f are set.
func (c Caps) Has(f Caps) bool { return c&f == f }

// TexParams describes a texture to create.
type TexParams struct {
	// Dimensions is 1 or 2.
	Dimensions int
	W, H       int
	Format     *Format

	RenderSrc   bool // sampled from shaders
	RenderDst   bool // usable as a render target
	SrcLinear   bool // sampled with linear filtering
	HostMutable bool // updated through TexUpload
	BlitSrc     bool
	BlitDst     bool

	// InitialData, if set, is uploaded at creation time with tightly
	// packed rows.
	InitialData []byte

	Label string
}

// Tex is a texture owned by whoever created it.
type Tex struct {
	Params TexParams

	// Priv is backend state; never interpreted by the core.
	Priv any
}

// Width returns the texture width in pixels.
func (t *Tex) Width() int { return t.Params.W }

// Height returns the texture height in pixels.
func (t *Tex) Height() int { return t.Params.H }

var _ gpucontext.Texture = (*Tex)(nil)

// BufType is the intended use of a buffer.
type BufType int

// Buffer types.
const (
	BufTexUpload BufType = iota
	BufShaderStorage
	BufUniform
)

// String returns the buffer type name.
func (t BufType) String() string {
	switch t {
	case BufTexUpload:
		return "tex-upload"
	case BufShaderStorage:
		return "shader-storage"
	case BufUniform:
		return "uniform"
	default:
		return "unknown"
	}
}

// BufParams describes a buffer to create.
type BufParams struct {
	Type        BufType
	Size        int
	HostMutable bool
	InitialData []byte
	Label       string
}

// Buf is a buffer owned by whoever created it.
type Buf struct {
	Params BufParams
	Priv   any
}

// TexUploadParams describes a transfer into a texture.
type TexUploadParams struct {
	Tex *Tex

	// Rect restricts the upload to a sub-rectangle; nil means the whole
	// texture.
	Rect *image.Rectangle

	// Stride is the source row pitch in bytes.
	Stride int

	// Src holds host data. Ignored when Buf is set.
	Src []byte

	// Buf, if set, is a staging buffer to upload from at BufOffset.
	Buf       *Buf
	BufOffset int

	// Invalidate allows the backend to discard texture contents outside
	// Rect.
	Invalidate bool
}

// Height returns the number of rows covered by the upload.
func (p *TexUploadParams) Height() int {
	if p.Rect != nil {
		return p.Rect.Dy()
	}
	return p.Tex.Params.H
}

// Timer is an opaque timer query handle.
type Timer struct {
	Priv any
}

// RA is the graphics abstraction.
//
// All methods are called from the render goroutine. None of them block on
// GPU completion.
type RA interface {
	Caps() Caps
	Formats() []*Format
	MaxTextureSize() int

	TexCreate(p TexParams) (*Tex, error)
	TexDestroy(t *Tex)
	TexUpload(p *TexUploadParams) error

	BufCreate(p BufParams) (*Buf, error)
	BufDestroy(b *Buf)
	BufUpdate(b *Buf, offset int, data []byte) error

	// BufPoll reports whether the GPU has finished every use of b, so that
	// it may be written again.
	BufPoll(b *Buf) bool

	TimerCreate() (*Timer, error)
	TimerDestroy(t *Timer)
	TimerStart(t *Timer)
	TimerStop(t *Timer)

	// TimerResult returns the oldest completed measurement not yet
	// returned, or false if none is ready.
	TimerResult(t *Timer) (time.Duration, bool)
}

// FBODst is a render target reference. It does not own the texture.
type FBODst struct {
	Tex *Tex

	// Flip mirrors the Y axis when rendering into Tex.
	Flip bool
}
