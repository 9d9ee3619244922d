// Package ratest provides an in-memory ra.RA for tests.
//
// RA tracks every live resource, counts create/destroy calls, records
// uploads and lets tests inject allocation failures, busy staging buffers
// and scripted timer results.
package ratest

import (
	"errors"
	"fmt"
	"time"

	"github.com/gogpu/vidrender/ra"
)

// ErrInjected is returned by injected allocation failures.
var ErrInjected = errors.New("ratest: injected failure")

// Upload records one TexUpload call.
type Upload struct {
	Tex    *ra.Tex
	Buf    *ra.Buf
	Stride int
	Height int
	Bytes  int
}

type fakeTimer struct {
	id      int
	running bool
	ready   []time.Duration
}

// RA is a fake graphics abstraction.
type RA struct {
	CapFlags   ra.Caps
	FormatList []*ra.Format
	MaxTexSize int

	// FailTex, if set, decides whether a texture creation fails.
	FailTex func(p ra.TexParams) bool

	// FailBuf, if set, decides whether a buffer creation fails.
	FailBuf func(p ra.BufParams) bool

	// Busy marks buffers the fake GPU still reads from.
	Busy map[*ra.Buf]bool

	// TimerSamples is consumed in order by TimerStop; each stop makes one
	// sample available. When empty, stops produce DefaultSample.
	TimerSamples  []time.Duration
	DefaultSample time.Duration

	// TimerLatency delays visibility of a stopped measurement by that many
	// further TimerResult calls.
	TimerLatency int

	Textures map[*ra.Tex]bool
	Buffers  map[*ra.Buf]bool

	// TexData holds the InitialData each live texture was created with.
	TexData map[*ra.Tex][]byte

	Timers   map[*ra.Timer]bool

	TexCreates  int
	TexDestroys int
	BufCreates  int
	BufDestroys int
	BufUpdates  int
	Uploads     []Upload

	pendingDelay map[*fakeTimer]int
	nextTimer    int
}

// New returns a fake with every capability and the standard formats.
func New() *RA {
	return &RA{
		CapFlags:      ra.CapTex1D | ra.CapDirectUpload | ra.CapTimers | ra.CapStorageBuf,
		FormatList:    ra.StandardFormats(),
		MaxTexSize:    16384,
		DefaultSample: time.Millisecond,
		Busy:          make(map[*ra.Buf]bool),
		Textures:      make(map[*ra.Tex]bool),
		TexData:       make(map[*ra.Tex][]byte),
		Buffers:       make(map[*ra.Buf]bool),
		Timers:        make(map[*ra.Timer]bool),
		pendingDelay:  make(map[*fakeTimer]int),
	}
}

// Caps implements ra.RA.
func (r *RA) Caps() ra.Caps { return r.CapFlags }

// Formats implements ra.RA.
func (r *RA) Formats() []*ra.Format { return r.FormatList }

// MaxTextureSize implements ra.RA.
func (r *RA) MaxTextureSize() int { return r.MaxTexSize }

// TexCreate implements ra.RA.
func (r *RA) TexCreate(p ra.TexParams) (*ra.Tex, error) {
	if p.Format == nil || p.W <= 0 || p.H <= 0 {
		return nil, fmt.Errorf("%w: texture %dx%d format %v", ra.ErrInvalidParams, p.W, p.H, p.Format)
	}
	if p.W > r.MaxTexSize || p.H > r.MaxTexSize {
		return nil, fmt.Errorf("%w: texture %dx%d exceeds %d", ra.ErrInvalidParams, p.W, p.H, r.MaxTexSize)
	}
	if r.FailTex != nil && r.FailTex(p) {
		return nil, fmt.Errorf("%w: %w", ra.ErrOutOfMemory, ErrInjected)
	}
	t := &ra.Tex{Params: p}
	t.Params.InitialData = nil
	r.Textures[t] = true
	if p.InitialData != nil {
		r.TexData[t] = p.InitialData
	}
	r.TexCreates++
	return t, nil
}

// TexDestroy implements ra.RA.
func (r *RA) TexDestroy(t *ra.Tex) {
	if t == nil {
		return
	}
	if !r.Textures[t] {
		panic("ratest: double texture destroy")
	}
	delete(r.Textures, t)
	delete(r.TexData, t)
	r.TexDestroys++
}

// TexUpload implements ra.RA.
func (r *RA) TexUpload(p *ra.TexUploadParams) error {
	if p.Tex == nil || !r.Textures[p.Tex] {
		return ra.ErrDestroyed
	}
	if p.Buf != nil && !r.Buffers[p.Buf] {
		return ra.ErrDestroyed
	}
	u := Upload{Tex: p.Tex, Buf: p.Buf, Stride: p.Stride, Height: p.Height()}
	if p.Buf == nil {
		u.Bytes = len(p.Src)
	} else {
		u.Bytes = p.Stride * u.Height
	}
	r.Uploads = append(r.Uploads, u)
	return nil
}

// BufCreate implements ra.RA.
func (r *RA) BufCreate(p ra.BufParams) (*ra.Buf, error) {
	if p.Size <= 0 {
		return nil, fmt.Errorf("%w: buffer size %d", ra.ErrInvalidParams, p.Size)
	}
	if r.FailBuf != nil && r.FailBuf(p) {
		return nil, fmt.Errorf("%w: %w", ra.ErrOutOfMemory, ErrInjected)
	}
	b := &ra.Buf{Params: p, Priv: make([]byte, p.Size)}
	copy(b.Priv.([]byte), p.InitialData)
	b.Params.InitialData = nil
	r.Buffers[b] = true
	r.BufCreates++
	return b, nil
}

// BufDestroy implements ra.RA.
func (r *RA) BufDestroy(b *ra.Buf) {
	if b == nil {
		return
	}
	if !r.Buffers[b] {
		panic("ratest: double buffer destroy")
	}
	delete(r.Buffers, b)
	delete(r.Busy, b)
	r.BufDestroys++
}

// BufUpdate implements ra.RA.
func (r *RA) BufUpdate(b *ra.Buf, offset int, data []byte) error {
	if !r.Buffers[b] {
		return ra.ErrDestroyed
	}
	mem := b.Priv.([]byte)
	if offset < 0 || offset+len(data) > len(mem) {
		return fmt.Errorf("%w: update [%d,%d) of %d", ra.ErrInvalidParams, offset, offset+len(data), len(mem))
	}
	copy(mem[offset:], data)
	r.BufUpdates++
	return nil
}

// BufPoll implements ra.RA.
func (r *RA) BufPoll(b *ra.Buf) bool { return !r.Busy[b] }

// Contents returns the host copy of a buffer's data.
func (r *RA) Contents(b *ra.Buf) []byte { return b.Priv.([]byte) }

// TimerCreate implements ra.RA.
func (r *RA) TimerCreate() (*ra.Timer, error) {
	if !r.CapFlags.Has(ra.CapTimers) {
		return nil, ra.ErrTimersUnsupported
	}
	r.nextTimer++
	t := &ra.Timer{Priv: &fakeTimer{id: r.nextTimer}}
	r.Timers[t] = true
	return t, nil
}

// TimerDestroy implements ra.RA.
func (r *RA) TimerDestroy(t *ra.Timer) {
	if t == nil {
		return
	}
	delete(r.pendingDelay, t.Priv.(*fakeTimer))
	delete(r.Timers, t)
}

// TimerStart implements ra.RA.
func (r *RA) TimerStart(t *ra.Timer) {
	ft := t.Priv.(*fakeTimer)
	if ft.running {
		panic("ratest: timer started twice")
	}
	ft.running = true
}

// TimerStop implements ra.RA.
func (r *RA) TimerStop(t *ra.Timer) {
	ft := t.Priv.(*fakeTimer)
	if !ft.running {
		panic("ratest: timer stopped while idle")
	}
	ft.running = false
	d := r.DefaultSample
	if len(r.TimerSamples) > 0 {
		d = r.TimerSamples[0]
		r.TimerSamples = r.TimerSamples[1:]
	}
	ft.ready = append(ft.ready, d)
	if r.TimerLatency > 0 {
		r.pendingDelay[ft] = r.TimerLatency
	}
}

// TimerResult implements ra.RA.
func (r *RA) TimerResult(t *ra.Timer) (time.Duration, bool) {
	ft := t.Priv.(*fakeTimer)
	if n := r.pendingDelay[ft]; n > 0 {
		r.pendingDelay[ft] = n - 1
		return 0, false
	}
	if len(ft.ready) == 0 {
		return 0, false
	}
	d := ft.ready[0]
	ft.ready = ft.ready[1:]
	return d, true
}

var _ ra.RA = (*RA)(nil)
