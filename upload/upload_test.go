package upload

import (
	"bytes"
	"errors"
	"image"
	"testing"

	"github.com/gogpu/vidrender/ra"
	"github.com/gogpu/vidrender/ra/ratest"
)

func newTex(t *testing.T, r *ratest.RA, w, h int) *ra.Tex {
	t.Helper()
	tex, err := r.TexCreate(ra.TexParams{Dimensions: 2, W: w, H: h, Format: ra.FormatRGBA8, HostMutable: true})
	if err != nil {
		t.Fatal(err)
	}
	return tex
}

func params(tex *ra.Tex, fill byte) *ra.TexUploadParams {
	stride := tex.Width() * 4
	return &ra.TexUploadParams{
		Tex:    tex,
		Stride: stride,
		Src:    bytes.Repeat([]byte{fill}, stride*tex.Height()),
	}
}

func TestUploadRingRotation(t *testing.T) {
	r := ratest.New()
	tex := newTex(t, r, 16, 16)
	var pl Pool

	for k := 0; k < 10; k++ {
		if got := pl.Index(); got != k%NumBuffers {
			t.Fatalf("upload %d: Index() = %d, want %d", k, got, k%NumBuffers)
		}
		if err := pl.Upload(r, nil, true, params(tex, byte(k))); err != nil {
			t.Fatalf("upload %d: %v", k, err)
		}
		u := r.Uploads[len(r.Uploads)-1]
		if u.Buf != pl.Buffer(k%NumBuffers) {
			t.Errorf("upload %d used wrong ring buffer", k)
		}
		// The GPU now reads the buffer just submitted.
		r.Busy = map[*ra.Buf]bool{u.Buf: true}
		if next := pl.Buffer(pl.Index()); next == u.Buf {
			t.Errorf("upload %d: next buffer is the one in flight", k)
		}
	}
	if r.BufCreates != NumBuffers {
		t.Errorf("BufCreates = %d, want %d", r.BufCreates, NumBuffers)
	}
	if s := pl.Stats(); s.Staged != 10 || s.Reallocs != 1 {
		t.Errorf("Stats() = %+v", s)
	}
}

func TestUploadWritesData(t *testing.T) {
	r := ratest.New()
	tex := newTex(t, r, 4, 2)
	var pl Pool
	p := params(tex, 0xab)
	if err := pl.Upload(r, nil, true, p); err != nil {
		t.Fatal(err)
	}
	got := r.Contents(pl.Buffer(0))
	if !bytes.Equal(got, p.Src) {
		t.Errorf("staging contents = %x, want %x", got, p.Src)
	}
	if p.Buf != nil {
		t.Error("Upload() modified caller params")
	}
}

func TestUploadGrowth(t *testing.T) {
	r := ratest.New()
	small := newTex(t, r, 8, 8)
	big := newTex(t, r, 64, 64)
	var pl Pool

	_ = pl.Upload(r, nil, true, params(small, 1))
	_ = pl.Upload(r, nil, true, params(small, 2))
	if pl.BufferSize() != 8*8*4 {
		t.Fatalf("BufferSize() = %d", pl.BufferSize())
	}

	if err := pl.Upload(r, nil, true, params(big, 3)); err != nil {
		t.Fatal(err)
	}
	if pl.BufferSize() != 64*64*4 {
		t.Errorf("BufferSize() = %d after growth, want %d", pl.BufferSize(), 64*64*4)
	}
	if r.BufDestroys != NumBuffers || len(r.Buffers) != NumBuffers {
		t.Errorf("destroyed %d, live %d; want %d old released and %d live", r.BufDestroys, len(r.Buffers), NumBuffers, NumBuffers)
	}

	// Smaller uploads reuse the grown ring.
	_ = pl.Upload(r, nil, true, params(small, 4))
	if r.BufCreates != 2*NumBuffers {
		t.Errorf("BufCreates = %d, want %d", r.BufCreates, 2*NumBuffers)
	}
}

func TestUploadSubRect(t *testing.T) {
	r := ratest.New()
	tex := newTex(t, r, 32, 32)
	var pl Pool
	rc := image.Rect(0, 4, 32, 12)
	p := &ra.TexUploadParams{Tex: tex, Rect: &rc, Stride: 128, Src: make([]byte, 128*8)}
	if err := pl.Upload(r, nil, true, p); err != nil {
		t.Fatal(err)
	}
	if pl.BufferSize() != 128*8 {
		t.Errorf("BufferSize() = %d, want %d", pl.BufferSize(), 128*8)
	}
	if u := r.Uploads[len(r.Uploads)-1]; u.Height != 8 {
		t.Errorf("upload height = %d, want 8", u.Height)
	}
}

func TestUploadDirect(t *testing.T) {
	r := ratest.New()
	tex := newTex(t, r, 8, 8)
	var pl Pool

	if err := pl.Upload(r, nil, false, params(tex, 1)); err != nil {
		t.Fatal(err)
	}
	if r.BufCreates != 0 {
		t.Errorf("direct upload created %d buffers", r.BufCreates)
	}
	if u := r.Uploads[0]; u.Buf != nil {
		t.Error("direct upload went through a buffer")
	}

	// Caller-supplied buffers bypass the ring even with wantPBO.
	own, _ := r.BufCreate(ra.BufParams{Type: ra.BufTexUpload, Size: 256})
	p := params(tex, 2)
	p.Buf = own
	if err := pl.Upload(r, nil, true, p); err != nil {
		t.Fatal(err)
	}
	if r.Uploads[1].Buf != own || pl.BufferSize() != 0 {
		t.Error("caller buffer not passed through")
	}
	if s := pl.Stats(); s.Direct != 2 || s.Staged != 0 {
		t.Errorf("Stats() = %+v", s)
	}
}

func TestUploadForcedStaging(t *testing.T) {
	r := ratest.New()
	r.CapFlags &^= ra.CapDirectUpload
	tex := newTex(t, r, 8, 8)
	var pl Pool
	if err := pl.Upload(r, nil, false, params(tex, 1)); err != nil {
		t.Fatal(err)
	}
	if r.Uploads[0].Buf == nil {
		t.Error("upload without direct-upload capability bypassed staging")
	}
}

func TestUploadBusyBuffer(t *testing.T) {
	r := ratest.New()
	tex := newTex(t, r, 8, 8)
	var pl Pool
	_ = pl.Upload(r, nil, true, params(tex, 1))

	r.Busy[pl.Buffer(1)] = true
	before := r.BufUpdates
	err := pl.Upload(r, nil, true, params(tex, 2))
	if !errors.Is(err, ErrBufferBusy) {
		t.Fatalf("Upload() error = %v, want ErrBufferBusy", err)
	}
	if r.BufUpdates != before {
		t.Error("busy buffer was overwritten")
	}
	if pl.Stats().Busy != 1 {
		t.Errorf("Stats().Busy = %d, want 1", pl.Stats().Busy)
	}
}

func TestUploadAllocationFailure(t *testing.T) {
	r := ratest.New()
	tex := newTex(t, r, 8, 8)
	calls := 0
	r.FailBuf = func(ra.BufParams) bool {
		calls++
		return calls == 2
	}
	var pl Pool
	err := pl.Upload(r, nil, true, params(tex, 1))
	if !errors.Is(err, ErrAllocation) {
		t.Fatalf("Upload() error = %v, want ErrAllocation", err)
	}
	if len(r.Buffers) != 0 {
		t.Errorf("live buffers = %d after failure, want 0", len(r.Buffers))
	}
	if pl.BufferSize() != 0 || pl.Buffer(0) != nil {
		t.Error("pool left half-constructed")
	}

	// A retry with a healthy device succeeds.
	r.FailBuf = nil
	if err := pl.Upload(r, nil, true, params(tex, 1)); err != nil {
		t.Errorf("retry: %v", err)
	}
}

func TestUploadShortSource(t *testing.T) {
	r := ratest.New()
	tex := newTex(t, r, 8, 8)
	var pl Pool
	p := params(tex, 1)
	p.Src = p.Src[:10]
	if err := pl.Upload(r, nil, true, p); !errors.Is(err, ErrShortSource) {
		t.Errorf("Upload() error = %v, want ErrShortSource", err)
	}
}

func TestUninit(t *testing.T) {
	r := ratest.New()
	tex := newTex(t, r, 8, 8)
	var pl Pool
	_ = pl.Upload(r, nil, true, params(tex, 1))
	pl.Uninit(r)
	pl.Uninit(r)
	if len(r.Buffers) != 0 || pl.Index() != 0 || pl.BufferSize() != 0 {
		t.Error("Uninit() left state behind")
	}
}
