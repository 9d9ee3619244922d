//go:build !nogpu

// Package halra implements ra.RA on top of the gogpu/wgpu HAL.
//
// Transfers are recorded into short command buffers and submitted
// immediately. Completion is tracked through queue submission indices, so
// no call ever waits on a fence.
package halra

import (
	"encoding/binary"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"time"
	"unsafe"

	"github.com/gogpu/gpucontext"
	"github.com/gogpu/gputypes"
	"github.com/gogpu/vidrender/internal/logx"
	"github.com/gogpu/vidrender/ra"
	"github.com/gogpu/wgpu/hal"
)

// copyPitchAlignment is the WebGPU row pitch alignment for buffer to
// texture copies.
const copyPitchAlignment = 256

// timerSlots is the number of begin/end query pairs per timer.
const timerSlots = 4

// Config configures an RA.
type Config struct {
	// Adapter, if set, is probed for per-format capabilities.
	Adapter hal.Adapter

	// Features are the features the device was opened with.
	Features gputypes.Features

	// Limits are the device limits; the zero value means
	// gputypes.DefaultLimits.
	Limits gputypes.Limits

	Logger *slog.Logger
}

// RA drives a HAL device and queue.
type RA struct {
	device hal.Device
	queue  hal.Queue
	log    *slog.Logger

	caps    ra.Caps
	formats []*ra.Format
	limits  gputypes.Limits
	period  float64 // nanoseconds per timestamp tick

	// Command buffers submitted but not yet known to be complete.
	inflight []inflight

	// retired holds destroyed resources that a pending submission may
	// still read, in submission order.
	retired []retired

	// ownDevice is set when Close must destroy the device.
	ownDevice bool

	// instance is destroyed by Close when OpenBackend created it.
	instance hal.Instance
}

type inflight struct {
	submission uint64
	encoder    hal.CommandEncoder
	cmd        hal.CommandBuffer
}

// retired is a destroyed resource whose release waits for submission.
type retired struct {
	submission uint64
	release    func()
}

type texPriv struct {
	tex hal.Texture

	// lastUse is the submission that last wrote the texture.
	lastUse uint64
}

type bufPriv struct {
	buf hal.Buffer

	// shadow mirrors the contents of upload buffers for copies the device
	// cannot do from the buffer itself.
	shadow []byte

	// lastUse is the submission that last read the buffer.
	lastUse uint64
}

type timerQuery struct {
	slot       int
	submission uint64
}

type timerPriv struct {
	set      hal.QuerySet
	resolve  hal.Buffer
	readback hal.Buffer

	running bool
	next    int
	pending []timerQuery
	lastUse uint64
}

// New wraps an opened device and queue. The caller keeps ownership of
// both.
func New(device hal.Device, queue hal.Queue, cfg Config) (*RA, error) {
	if device == nil || queue == nil {
		return nil, fmt.Errorf("halra: %w: nil device or queue", ra.ErrInvalidParams)
	}
	limits := cfg.Limits
	if limits.MaxTextureDimension2D == 0 {
		limits = gputypes.DefaultLimits()
	}
	r := &RA{
		device: device,
		queue:  queue,
		log:    logx.OrNop(cfg.Logger),
		limits: limits,
		period: float64(queue.GetTimestampPeriod()),
		caps:   ra.CapTex1D | ra.CapDirectUpload | ra.CapStorageBuf,
	}
	if cfg.Features.Contains(gputypes.FeatureTimestampQuery) {
		r.caps |= ra.CapTimers
	}
	r.formats = probeFormats(cfg.Adapter, cfg.Features)
	r.log.Debug("halra: initialized", "caps", r.caps, "formats", len(r.formats),
		"max_texture", limits.MaxTextureDimension2D)
	return r, nil
}

// Open opens a device on an enumerated adapter, requesting timestamp
// queries and float32 filtering when available. Close destroys the device.
func Open(ea hal.ExposedAdapter, log *slog.Logger) (*RA, error) {
	want := ea.Features & gputypes.Features(gputypes.FeatureTimestampQuery|gputypes.FeatureFloat32Filterable)
	limits := ea.Capabilities.Limits
	if limits.MaxTextureDimension2D == 0 {
		limits = gputypes.DefaultLimits()
	}
	od, err := ea.Adapter.Open(want, limits)
	if err != nil {
		return nil, fmt.Errorf("halra: open %q: %w", ea.Info.Name, err)
	}
	r, err := New(od.Device, od.Queue, Config{
		Adapter:  ea.Adapter,
		Features: want,
		Limits:   limits,
		Logger:   log,
	})
	if err != nil {
		od.Device.Destroy()
		return nil, err
	}
	r.ownDevice = true
	r.log.Info("halra: opened device", "adapter", ea.Info.Name, "backend", ea.Info.Backend)
	return r, nil
}

// OpenBackend creates an instance of backend b and opens its first
// adapter. Close destroys both.
func OpenBackend(b hal.Backend, log *slog.Logger) (*RA, error) {
	instance, err := b.CreateInstance(nil)
	if err != nil {
		return nil, fmt.Errorf("halra: %v instance: %w", b.Variant(), err)
	}
	adapters := instance.EnumerateAdapters(nil)
	if len(adapters) == 0 {
		instance.Destroy()
		return nil, fmt.Errorf("halra: %v: no adapters", b.Variant())
	}
	r, err := Open(adapters[0], log)
	if err != nil {
		instance.Destroy()
		return nil, err
	}
	r.instance = instance
	return r, nil
}

// NewFromProvider wraps the device of a host application. The provider
// must also implement HalDevice() any and HalQueue() any returning
// hal.Device and hal.Queue.
func NewFromProvider(provider gpucontext.DeviceProvider, cfg Config) (*RA, error) {
	type halProvider interface {
		HalDevice() any
		HalQueue() any
	}
	hp, ok := provider.(halProvider)
	if !ok {
		return nil, errors.New("halra: provider does not expose HAL types")
	}
	device, ok := hp.HalDevice().(hal.Device)
	if !ok || device == nil {
		return nil, errors.New("halra: provider HalDevice is not hal.Device")
	}
	queue, ok := hp.HalQueue().(hal.Queue)
	if !ok || queue == nil {
		return nil, errors.New("halra: provider HalQueue is not hal.Queue")
	}
	if cfg.Adapter == nil {
		cfg.Adapter, _ = provider.Adapter().(hal.Adapter)
	}
	r, err := New(device, queue, cfg)
	if err != nil {
		return nil, err
	}
	r.log.Info("halra: using shared device", "adapter", provider.AdapterInfo().Name)
	return r, nil
}

func probeFormats(adapter hal.Adapter, features gputypes.Features) []*ra.Format {
	f32Linear := features.Contains(gputypes.FeatureFloat32Filterable)
	var out []*ra.Format
	for _, f := range ra.StandardFormats() {
		renderable, linear := f.Renderable, f.Linear
		if adapter != nil {
			flags := adapter.TextureFormatCapabilities(f.Texture).Flags
			if flags&hal.TextureFormatCapabilitySampled == 0 {
				continue
			}
			renderable = flags&hal.TextureFormatCapabilityRenderAttachment != 0
		}
		if f.Float && f.ComponentSize == 4 && f32Linear {
			linear = true
		}
		out = append(out, f.With(renderable, linear))
	}
	return out
}

// Close waits for outstanding work and releases command buffers and retired
// resources. The device is destroyed only if Open created it.
func (r *RA) Close() {
	if err := r.device.WaitIdle(); err != nil {
		r.log.Warn("halra: wait idle failed", "err", err)
	}
	for _, f := range r.inflight {
		r.free(f)
	}
	r.inflight = nil
	for _, d := range r.retired {
		d.release()
	}
	r.retired = nil
	if r.ownDevice {
		r.device.Destroy()
	}
	if r.instance != nil {
		r.instance.Destroy()
		r.instance = nil
	}
}

// Caps returns the device capabilities.
func (r *RA) Caps() ra.Caps { return r.caps }

// Formats returns the usable texture formats.
func (r *RA) Formats() []*ra.Format { return r.formats }

// MaxTextureSize returns the 2D texture size limit.
func (r *RA) MaxTextureSize() int { return int(r.limits.MaxTextureDimension2D) }

// === Textures ===

func texUsage(p ra.TexParams) gputypes.TextureUsage {
	var u gputypes.TextureUsage
	if p.RenderSrc {
		u |= gputypes.TextureUsageTextureBinding
	}
	if p.RenderDst {
		u |= gputypes.TextureUsageRenderAttachment
	}
	if p.BlitSrc {
		u |= gputypes.TextureUsageCopySrc
	}
	if p.BlitDst || p.HostMutable || p.InitialData != nil {
		u |= gputypes.TextureUsageCopyDst
	}
	return u
}

func (r *RA) checkTexParams(p ra.TexParams) error {
	if p.Format == nil || p.W <= 0 || p.H <= 0 {
		return fmt.Errorf("halra: %w: %dx%d %s", ra.ErrInvalidParams, p.W, p.H, p.Format)
	}
	switch p.Dimensions {
	case 1:
		if p.H != 1 || p.W > int(r.limits.MaxTextureDimension1D) {
			return fmt.Errorf("halra: %w: 1D texture %dx%d", ra.ErrInvalidParams, p.W, p.H)
		}
	case 2:
		if p.W > r.MaxTextureSize() || p.H > r.MaxTextureSize() {
			return fmt.Errorf("halra: %w: %dx%d exceeds %d", ra.ErrInvalidParams, p.W, p.H, r.MaxTextureSize())
		}
	default:
		return fmt.Errorf("halra: %w: %d dimensions", ra.ErrInvalidParams, p.Dimensions)
	}
	if p.RenderDst && !p.Format.Renderable {
		return fmt.Errorf("halra: %w: %s is not renderable", ra.ErrUnsupportedFormat, p.Format)
	}
	if p.SrcLinear && !p.Format.Linear {
		return fmt.Errorf("halra: %w: %s is not filterable", ra.ErrUnsupportedFormat, p.Format)
	}
	return nil
}

// TexCreate creates a texture, uploading InitialData if present.
func (r *RA) TexCreate(p ra.TexParams) (*ra.Tex, error) {
	if err := r.checkTexParams(p); err != nil {
		return nil, err
	}
	dim := gputypes.TextureDimension2D
	if p.Dimensions == 1 {
		dim = gputypes.TextureDimension1D
	}
	desc := &hal.TextureDescriptor{
		Label:         p.Label,
		Size:          hal.Extent3D{Width: uint32(p.W), Height: uint32(p.H), DepthOrArrayLayers: 1}, //nolint:gosec // G115: bounded by limits
		MipLevelCount: 1,
		SampleCount:   1,
		Dimension:     dim,
		Format:        p.Format.Texture,
		Usage:         texUsage(p),
	}
	tex, err := r.device.CreateTexture(desc)
	if err != nil {
		return nil, fmt.Errorf("halra: create texture %q: %w: %w", p.Label, ra.ErrOutOfMemory, err)
	}
	t := &ra.Tex{Params: p, Priv: &texPriv{tex: tex}}
	if p.InitialData != nil {
		stride := p.W * p.Format.BytesPerPixel()
		if err := r.writeTexture(t, nil, stride, p.InitialData); err != nil {
			r.device.DestroyTexture(tex)
			return nil, err
		}
	}
	// InitialData is not retained.
	t.Params.InitialData = nil
	return t, nil
}

// TexDestroy releases t. A nil or already destroyed texture is ignored.
func (r *RA) TexDestroy(t *ra.Tex) {
	if t == nil {
		return
	}
	if tp, ok := t.Priv.(*texPriv); ok && tp.tex != nil {
		tex := tp.tex
		r.retire(tp.lastUse, func() { r.device.DestroyTexture(tex) })
		tp.tex = nil
	}
}

func texHandle(t *ra.Tex) (hal.Texture, error) {
	if t == nil {
		return nil, fmt.Errorf("halra: %w: nil texture", ra.ErrInvalidParams)
	}
	tp, ok := t.Priv.(*texPriv)
	if !ok || tp.tex == nil {
		return nil, fmt.Errorf("halra: texture %q: %w", t.Params.Label, ra.ErrDestroyed)
	}
	return tp.tex, nil
}

func uploadRect(t *ra.Tex, rect *image.Rectangle) (image.Rectangle, error) {
	full := image.Rect(0, 0, t.Params.W, t.Params.H)
	if rect == nil {
		return full, nil
	}
	if rect.Empty() || !rect.In(full) {
		return image.Rectangle{}, fmt.Errorf("halra: %w: rect %v outside %v", ra.ErrInvalidParams, *rect, full)
	}
	return *rect, nil
}

func copyRegion(tex hal.Texture, rc image.Rectangle) (hal.ImageCopyTexture, hal.Extent3D) {
	//nolint:gosec // G115: rect validated against texture size
	return hal.ImageCopyTexture{
			Texture: tex,
			Origin:  hal.Origin3D{X: uint32(rc.Min.X), Y: uint32(rc.Min.Y)},
			Aspect:  gputypes.TextureAspectAll,
		}, hal.Extent3D{
			Width:              uint32(rc.Dx()),
			Height:             uint32(rc.Dy()),
			DepthOrArrayLayers: 1,
		}
}

func (r *RA) writeTexture(t *ra.Tex, rect *image.Rectangle, stride int, data []byte) error {
	tex, err := texHandle(t)
	if err != nil {
		return err
	}
	rc, err := uploadRect(t, rect)
	if err != nil {
		return err
	}
	if row := rc.Dx() * t.Params.Format.BytesPerPixel(); stride < row {
		return fmt.Errorf("halra: %w: stride %d below row size %d", ra.ErrInvalidParams, stride, row)
	}
	if need := stride * rc.Dy(); len(data) < need {
		return fmt.Errorf("halra: %w: %d bytes for %d rows of %d", ra.ErrInvalidParams, len(data), rc.Dy(), stride)
	}
	dst, size := copyRegion(tex, rc)
	layout := &hal.ImageDataLayout{BytesPerRow: uint32(stride), RowsPerImage: uint32(rc.Dy())} //nolint:gosec // G115: checked above
	if err := r.queue.WriteTexture(&dst, data, layout, &size); err != nil {
		return fmt.Errorf("halra: write texture %q: %w", t.Params.Label, err)
	}
	return nil
}

// TexUpload transfers host data or a staging buffer into a texture.
//
// Staging buffers whose row pitch meets the copy alignment are copied on
// the GPU; others are written from the host shadow of the buffer.
func (r *RA) TexUpload(p *ra.TexUploadParams) error {
	if p.Buf == nil {
		return r.writeTexture(p.Tex, p.Rect, p.Stride, p.Src)
	}
	bp, err := bufHandle(p.Buf)
	if err != nil {
		return err
	}
	if p.Stride%copyPitchAlignment != 0 {
		if p.BufOffset < 0 || p.BufOffset > len(bp.shadow) {
			return fmt.Errorf("halra: %w: buffer offset %d", ra.ErrInvalidParams, p.BufOffset)
		}
		return r.writeTexture(p.Tex, p.Rect, p.Stride, bp.shadow[p.BufOffset:])
	}

	tex, err := texHandle(p.Tex)
	if err != nil {
		return err
	}
	rc, err := uploadRect(p.Tex, p.Rect)
	if err != nil {
		return err
	}
	if need := p.BufOffset + p.Stride*rc.Dy(); p.BufOffset < 0 || need > p.Buf.Params.Size {
		return fmt.Errorf("halra: %w: upload needs %d bytes of %d", ra.ErrInvalidParams, need, p.Buf.Params.Size)
	}
	dst, size := copyRegion(tex, rc)
	region := hal.BufferTextureCopy{
		BufferLayout: hal.ImageDataLayout{
			Offset:       uint64(p.BufOffset),
			BytesPerRow:  uint32(p.Stride), //nolint:gosec // G115: checked above
			RowsPerImage: uint32(rc.Dy()),  //nolint:gosec // G115: checked above
		},
		TextureBase: dst,
		Size:        size,
	}
	idx, err := r.submit("tex-upload", func(enc hal.CommandEncoder) {
		enc.CopyBufferToTexture(bp.buf, tex, []hal.BufferTextureCopy{region})
	})
	if err != nil {
		return err
	}
	bp.lastUse = idx
	p.Tex.Priv.(*texPriv).lastUse = idx
	return nil
}

// === Buffers ===

func bufUsage(t ra.BufType) gputypes.BufferUsage {
	switch t {
	case ra.BufShaderStorage:
		return gputypes.BufferUsageStorage | gputypes.BufferUsageCopyDst | gputypes.BufferUsageCopySrc
	case ra.BufUniform:
		return gputypes.BufferUsageUniform | gputypes.BufferUsageCopyDst
	default:
		return gputypes.BufferUsageCopySrc | gputypes.BufferUsageCopyDst
	}
}

// BufCreate creates a buffer, writing InitialData if present.
func (r *RA) BufCreate(p ra.BufParams) (*ra.Buf, error) {
	if p.Size <= 0 || len(p.InitialData) > p.Size {
		return nil, fmt.Errorf("halra: %w: buffer size %d, initial data %d", ra.ErrInvalidParams, p.Size, len(p.InitialData))
	}
	buf, err := r.device.CreateBuffer(&hal.BufferDescriptor{
		Label: p.Label,
		Size:  uint64(p.Size),
		Usage: bufUsage(p.Type),
	})
	if err != nil {
		return nil, fmt.Errorf("halra: create buffer %q: %w: %w", p.Label, ra.ErrOutOfMemory, err)
	}
	bp := &bufPriv{buf: buf}
	if p.Type == ra.BufTexUpload {
		bp.shadow = make([]byte, p.Size)
	}
	b := &ra.Buf{Params: p, Priv: bp}
	if len(p.InitialData) > 0 {
		if err := r.BufUpdate(b, 0, p.InitialData); err != nil {
			r.device.DestroyBuffer(buf)
			return nil, err
		}
	}
	b.Params.InitialData = nil
	return b, nil
}

// BufDestroy releases b. A nil or already destroyed buffer is ignored.
func (r *RA) BufDestroy(b *ra.Buf) {
	if b == nil {
		return
	}
	if bp, ok := b.Priv.(*bufPriv); ok && bp.buf != nil {
		buf := bp.buf
		r.retire(bp.lastUse, func() { r.device.DestroyBuffer(buf) })
		bp.buf = nil
		bp.shadow = nil
	}
}

func bufHandle(b *ra.Buf) (*bufPriv, error) {
	bp, ok := b.Priv.(*bufPriv)
	if !ok || bp.buf == nil {
		return nil, fmt.Errorf("halra: buffer %q: %w", b.Params.Label, ra.ErrDestroyed)
	}
	return bp, nil
}

// BufUpdate writes data at offset through the queue.
func (r *RA) BufUpdate(b *ra.Buf, offset int, data []byte) error {
	bp, err := bufHandle(b)
	if err != nil {
		return err
	}
	if offset < 0 || offset+len(data) > b.Params.Size {
		return fmt.Errorf("halra: %w: update [%d,%d) of %d", ra.ErrInvalidParams, offset, offset+len(data), b.Params.Size)
	}
	if err := r.queue.WriteBuffer(bp.buf, uint64(offset), data); err != nil {
		return fmt.Errorf("halra: write buffer %q: %w", b.Params.Label, err)
	}
	if bp.shadow != nil {
		copy(bp.shadow[offset:], data)
	}
	return nil
}

// BufPoll reports whether every submission reading b has completed.
func (r *RA) BufPoll(b *ra.Buf) bool {
	bp, err := bufHandle(b)
	if err != nil {
		return true
	}
	r.reclaim()
	return bp.lastUse <= r.queue.PollCompleted()
}

// === Timers ===

// TimerCreate creates a timestamp query timer.
func (r *RA) TimerCreate() (*ra.Timer, error) {
	if !r.caps.Has(ra.CapTimers) {
		return nil, ra.ErrTimersUnsupported
	}
	set, err := r.device.CreateQuerySet(&hal.QuerySetDescriptor{
		Label: "timer",
		Type:  hal.QueryTypeTimestamp,
		Count: 2 * timerSlots,
	})
	if err != nil {
		if errors.Is(err, hal.ErrTimestampsNotSupported) {
			return nil, fmt.Errorf("%w: %w", ra.ErrTimersUnsupported, err)
		}
		return nil, fmt.Errorf("halra: create query set: %w", err)
	}
	const size = 16 * timerSlots
	resolve, err := r.device.CreateBuffer(&hal.BufferDescriptor{
		Label: "timer-resolve",
		Size:  size,
		Usage: gputypes.BufferUsageQueryResolve | gputypes.BufferUsageCopySrc,
	})
	if err != nil {
		r.device.DestroyQuerySet(set)
		return nil, fmt.Errorf("halra: create timer buffer: %w", err)
	}
	readback, err := r.device.CreateBuffer(&hal.BufferDescriptor{
		Label: "timer-readback",
		Size:  size,
		Usage: gputypes.BufferUsageMapRead | gputypes.BufferUsageCopyDst,
	})
	if err != nil {
		r.device.DestroyBuffer(resolve)
		r.device.DestroyQuerySet(set)
		return nil, fmt.Errorf("halra: create timer buffer: %w", err)
	}
	return &ra.Timer{Priv: &timerPriv{set: set, resolve: resolve, readback: readback}}, nil
}

// TimerDestroy releases t. Pending measurements are discarded.
func (r *RA) TimerDestroy(t *ra.Timer) {
	if t == nil {
		return
	}
	tp, ok := t.Priv.(*timerPriv)
	if !ok || tp.set == nil {
		return
	}
	set, resolve, readback := tp.set, tp.resolve, tp.readback
	r.retire(tp.lastUse, func() {
		r.device.DestroyBuffer(readback)
		r.device.DestroyBuffer(resolve)
		r.device.DestroyQuerySet(set)
	})
	*tp = timerPriv{}
}

func (r *RA) timestamp(label string, tp *timerPriv, index uint32, begin bool, after func(hal.CommandEncoder)) (uint64, error) {
	writes := &hal.ComputePassTimestampWrites{QuerySet: tp.set}
	if begin {
		writes.BeginningOfPassWriteIndex = &index
	} else {
		writes.EndOfPassWriteIndex = &index
	}
	return r.submit(label, func(enc hal.CommandEncoder) {
		enc.BeginComputePass(&hal.ComputePassDescriptor{Label: label, TimestampWrites: writes}).End()
		if after != nil {
			after(enc)
		}
	})
}

// TimerStart writes the opening timestamp. The oldest unread measurement
// is dropped when every slot is pending.
func (r *RA) TimerStart(t *ra.Timer) {
	tp, ok := t.Priv.(*timerPriv)
	if !ok || tp.set == nil || tp.running {
		return
	}
	slot := tp.next
	for i, q := range tp.pending {
		if q.slot == slot {
			tp.pending = append(tp.pending[:i], tp.pending[i+1:]...)
			break
		}
	}
	idx, err := r.timestamp("timer-start", tp, uint32(2*slot), true, nil) //nolint:gosec // G115: slot < timerSlots
	if err != nil {
		r.log.Warn("halra: timer start failed", "err", err)
		return
	}
	tp.lastUse = idx
	tp.running = true
}

// TimerStop writes the closing timestamp and schedules the readback.
func (r *RA) TimerStop(t *ra.Timer) {
	tp, ok := t.Priv.(*timerPriv)
	if !ok || tp.set == nil || !tp.running {
		return
	}
	tp.running = false
	slot := tp.next
	tp.next = (slot + 1) % timerSlots
	first := uint32(2 * slot) //nolint:gosec // G115: slot < timerSlots
	off := uint64(16 * slot)  //nolint:gosec // G115: slot < timerSlots
	idx, err := r.timestamp("timer-stop", tp, first+1, false, func(enc hal.CommandEncoder) {
		enc.ResolveQuerySet(tp.set, first, 2, tp.resolve, off)
		enc.CopyBufferToBuffer(tp.resolve, tp.readback, []hal.BufferCopy{{SrcOffset: off, DstOffset: off, Size: 16}})
	})
	if err != nil {
		r.log.Warn("halra: timer stop failed", "err", err)
		return
	}
	tp.lastUse = idx
	tp.pending = append(tp.pending, timerQuery{slot: slot, submission: idx})
}

// TimerResult returns the oldest completed measurement.
func (r *RA) TimerResult(t *ra.Timer) (time.Duration, bool) {
	tp, ok := t.Priv.(*timerPriv)
	if !ok || tp.set == nil || len(tp.pending) == 0 {
		return 0, false
	}
	q := tp.pending[0]
	if q.submission > r.queue.PollCompleted() {
		return 0, false
	}
	tp.pending = tp.pending[1:]

	m, err := r.device.MapBuffer(tp.readback, uint64(16*q.slot), 16) //nolint:gosec // G115: slot < timerSlots
	if err != nil {
		r.log.Warn("halra: timer readback failed", "err", err)
		return 0, false
	}
	raw := unsafe.Slice((*byte)(m.Ptr), 16)
	begin := binary.LittleEndian.Uint64(raw[0:])
	end := binary.LittleEndian.Uint64(raw[8:])
	if err := r.device.UnmapBuffer(tp.readback); err != nil {
		r.log.Warn("halra: timer unmap failed", "err", err)
	}
	if end < begin {
		return 0, false
	}
	return time.Duration(float64(end-begin) * r.period), true
}

// === Submission ===

// submit records one command buffer and submits it, returning its
// submission index.
func (r *RA) submit(label string, record func(hal.CommandEncoder)) (uint64, error) {
	r.reclaim()
	enc, err := r.device.CreateCommandEncoder(&hal.CommandEncoderDescriptor{Label: label})
	if err != nil {
		return 0, fmt.Errorf("halra: create command encoder: %w", err)
	}
	if err := enc.BeginEncoding(label); err != nil {
		enc.Destroy()
		return 0, fmt.Errorf("halra: begin encoding: %w", err)
	}
	record(enc)
	cmd, err := enc.EndEncoding()
	if err != nil {
		enc.Destroy()
		return 0, fmt.Errorf("halra: end encoding: %w", err)
	}
	idx, err := r.queue.Submit([]hal.CommandBuffer{cmd})
	if err != nil {
		r.free(inflight{encoder: enc, cmd: cmd})
		return 0, fmt.Errorf("halra: submit %s: %w", label, err)
	}
	r.inflight = append(r.inflight, inflight{submission: idx, encoder: enc, cmd: cmd})
	return idx, nil
}

// retire releases a destroyed resource once submission lastUse has
// completed. Resources still in use are released by reclaim or Close.
func (r *RA) retire(lastUse uint64, release func()) {
	if lastUse == 0 || lastUse <= r.queue.PollCompleted() {
		release()
		return
	}
	r.retired = append(r.retired, retired{submission: lastUse, release: release})
}

// reclaim frees command buffers and retired resources of completed
// submissions.
func (r *RA) reclaim() {
	if len(r.inflight) == 0 && len(r.retired) == 0 {
		return
	}
	done := r.queue.PollCompleted()
	n := 0
	for _, f := range r.inflight {
		if f.submission <= done {
			r.free(f)
			continue
		}
		r.inflight[n] = f
		n++
	}
	clear(r.inflight[n:])
	r.inflight = r.inflight[:n]

	n = 0
	for _, d := range r.retired {
		if d.submission <= done {
			d.release()
			continue
		}
		r.retired[n] = d
		n++
	}
	clear(r.retired[n:])
	r.retired = r.retired[:n]
}

func (r *RA) free(f inflight) {
	r.device.FreeCommandBuffer(f.cmd)
	f.encoder.Destroy()
}

// Inflight returns the number of submissions not yet reclaimed.
func (r *RA) Inflight() int { return len(r.inflight) }

// Retired returns the number of destroyed resources waiting for the GPU.
func (r *RA) Retired() int { return len(r.retired) }

var _ ra.RA = (*RA)(nil)
