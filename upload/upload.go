// Package upload pipelines host-to-texture transfers through a small ring
// of staging buffers.
//
// The buffer written for frame N+1 is never the one the GPU may still be
// reading for frame N: Pool rotates through NumBuffers buffers and refuses
// to overwrite one the device reports as busy.
package upload

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/gogpu/vidrender/internal/logx"
	"github.com/gogpu/vidrender/ra"
)

// NumBuffers is the staging ring size.
const NumBuffers = 3

// Upload errors.
var (
	// ErrBufferBusy is returned when the next ring buffer is still in use by
	// the GPU.
	ErrBufferBusy = errors.New("upload: staging buffer not free")

	// ErrAllocation is returned when the staging ring cannot be created.
	ErrAllocation = errors.New("upload: staging buffer allocation failed")

	// ErrShortSource is returned when Src holds fewer bytes than the upload
	// covers.
	ErrShortSource = errors.New("upload: source data too short")
)

// Stats counts pool activity.
type Stats struct {
	Direct   int // uploads that bypassed the ring
	Staged   int // uploads through a ring buffer
	Busy     int // uploads rejected because the buffer was busy
	Reallocs int // ring (re)allocations
}

// Pool is a ring of staging buffers. The zero value is ready to use; the
// ring is allocated on the first staged upload.
type Pool struct {
	buffers [NumBuffers]*ra.Buf
	size    int
	index   int

	stats Stats
}

// Upload transfers p into p.Tex.
//
// wantPBO requests the staging path; it is forced on when the device cannot
// upload directly. Params that already name a buffer are passed through
// unchanged. Staged uploads grow the ring when the transfer is larger than
// the current buffers, releasing the old ring first.
func (pl *Pool) Upload(r ra.RA, log *slog.Logger, wantPBO bool, p *ra.TexUploadParams) error {
	log = logx.OrNop(log)

	if !r.Caps().Has(ra.CapDirectUpload) {
		wantPBO = true
	}
	if !wantPBO || p.Buf != nil {
		pl.stats.Direct++
		return r.TexUpload(p)
	}

	tex := p.Tex
	rowSize := p.Stride
	if tex.Params.Dimensions == 1 {
		rowSize = tex.Params.W * tex.Params.Format.BytesPerPixel()
	}
	need := rowSize * p.Height()
	if need <= 0 {
		return fmt.Errorf("%w: stride %d, height %d", ra.ErrInvalidParams, p.Stride, p.Height())
	}
	if len(p.Src) < need {
		return fmt.Errorf("%w: have %d bytes, need %d", ErrShortSource, len(p.Src), need)
	}

	if need > pl.size {
		pl.Uninit(r)
	}
	if pl.buffers[0] == nil {
		if err := pl.alloc(r, need); err != nil {
			log.Error("upload: staging ring allocation failed", "size", need, "err", err)
			return err
		}
	}

	buf := pl.buffers[pl.index]
	pl.index = (pl.index + 1) % NumBuffers

	if !r.BufPoll(buf) {
		pl.stats.Busy++
		log.Warn("upload: staging buffer was not free to use", "buffers", NumBuffers)
		return ErrBufferBusy
	}

	if err := r.BufUpdate(buf, 0, p.Src[:need]); err != nil {
		return fmt.Errorf("upload: buffer update: %w", err)
	}

	staged := *p
	staged.Buf = buf
	staged.BufOffset = 0
	staged.Src = nil
	if err := r.TexUpload(&staged); err != nil {
		return fmt.Errorf("upload: texture upload: %w", err)
	}
	pl.stats.Staged++
	return nil
}

func (pl *Pool) alloc(r ra.RA, size int) error {
	for i := range pl.buffers {
		b, err := r.BufCreate(ra.BufParams{
			Type:        ra.BufTexUpload,
			Size:        size,
			HostMutable: true,
			Label:       "tex-upload",
		})
		if err != nil {
			pl.Uninit(r)
			return fmt.Errorf("%w: %d bytes: %w", ErrAllocation, size, err)
		}
		pl.buffers[i] = b
	}
	pl.size = size
	pl.stats.Reallocs++
	return nil
}

// Uninit releases the ring. The rotation index restarts at zero.
func (pl *Pool) Uninit(r ra.RA) {
	for i, b := range pl.buffers {
		if b != nil {
			r.BufDestroy(b)
		}
		pl.buffers[i] = nil
	}
	pl.size = 0
	pl.index = 0
}

// Index returns the ring position the next staged upload will use.
func (pl *Pool) Index() int { return pl.index }

// BufferSize returns the capacity of each ring buffer, or 0 when the ring
// is not allocated.
func (pl *Pool) BufferSize() int { return pl.size }

// Buffer returns ring buffer i, or nil.
func (pl *Pool) Buffer(i int) *ra.Buf { return pl.buffers[i] }

// Stats returns activity counters.
func (pl *Pool) Stats() Stats { return pl.stats }
