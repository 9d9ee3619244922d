package ra

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/gogpu/gputypes"
)

// Format describes a texture format as seen by the render core.
//
// Backends publish the formats they support through RA.Formats, with the
// Renderable and Linear flags reflecting what the device can actually do.
type Format struct {
	// Name is the short format name ("rgba16f", "r8", ...).
	Name string

	// Texture is the underlying WebGPU format.
	Texture gputypes.TextureFormat

	// Components is the number of color components (1..4).
	Components int

	// ComponentSize is the storage size of one component in bytes.
	// Zero for packed formats.
	ComponentSize int

	// PixelSize is the storage size of one pixel in bytes.
	PixelSize int

	// Float reports a floating point format.
	Float bool

	// Renderable reports whether the format can be a render target.
	Renderable bool

	// Linear reports whether the format supports linear filtering.
	Linear bool
}

// String returns the format name.
func (f *Format) String() string {
	if f == nil {
		return "<nil>"
	}
	return f.Name
}

// BytesPerPixel returns the storage size of one pixel.
func (f *Format) BytesPerPixel() int {
	if f.PixelSize > 0 {
		return f.PixelSize
	}
	return f.Components * f.ComponentSize
}

// With returns a copy of f with the given renderable and linear flags.
// Backends use it to publish device-specific capabilities.
func (f *Format) With(renderable, linear bool) *Format {
	c := *f
	c.Renderable = renderable
	c.Linear = linear
	return &c
}

// PackFloats encodes vals as little-endian texel data for a float format.
// 16-bit formats receive IEEE half floats.
func (f *Format) PackFloats(vals []float32) ([]byte, error) {
	if !f.Float {
		return nil, fmt.Errorf("%w: %s is not a float format", ErrUnsupportedFormat, f.Name)
	}
	switch f.ComponentSize {
	case 2:
		out := make([]byte, 2*len(vals))
		for i, v := range vals {
			binary.LittleEndian.PutUint16(out[2*i:], halfFromFloat32(v))
		}
		return out, nil
	case 4:
		out := make([]byte, 4*len(vals))
		for i, v := range vals {
			binary.LittleEndian.PutUint32(out[4*i:], math.Float32bits(v))
		}
		return out, nil
	default:
		return nil, fmt.Errorf("%w: %s has component size %d", ErrUnsupportedFormat, f.Name, f.ComponentSize)
	}
}

// Predefined formats. Renderable and Linear carry the values that hold on
// any WebGPU device; backends may upgrade them.
var (
	FormatR8      = &Format{Name: "r8", Texture: gputypes.TextureFormatR8Unorm, Components: 1, ComponentSize: 1, Renderable: true, Linear: true}
	FormatRG8     = &Format{Name: "rg8", Texture: gputypes.TextureFormatRG8Unorm, Components: 2, ComponentSize: 1, Renderable: true, Linear: true}
	FormatRGBA8   = &Format{Name: "rgba8", Texture: gputypes.TextureFormatRGBA8Unorm, Components: 4, ComponentSize: 1, Renderable: true, Linear: true}
	FormatR16     = &Format{Name: "r16", Texture: gputypes.TextureFormatR16Unorm, Components: 1, ComponentSize: 2}
	FormatRG16    = &Format{Name: "rg16", Texture: gputypes.TextureFormatRG16Unorm, Components: 2, ComponentSize: 2}
	FormatRGBA16  = &Format{Name: "rgba16", Texture: gputypes.TextureFormatRGBA16Unorm, Components: 4, ComponentSize: 2}
	FormatR16F    = &Format{Name: "r16f", Texture: gputypes.TextureFormatR16Float, Components: 1, ComponentSize: 2, Float: true, Renderable: true, Linear: true}
	FormatRG16F   = &Format{Name: "rg16f", Texture: gputypes.TextureFormatRG16Float, Components: 2, ComponentSize: 2, Float: true, Renderable: true, Linear: true}
	FormatRGBA16F = &Format{Name: "rgba16f", Texture: gputypes.TextureFormatRGBA16Float, Components: 4, ComponentSize: 2, Float: true, Renderable: true, Linear: true}
	FormatR32F    = &Format{Name: "r32f", Texture: gputypes.TextureFormatR32Float, Components: 1, ComponentSize: 4, Float: true, Renderable: true}
	FormatRG32F   = &Format{Name: "rg32f", Texture: gputypes.TextureFormatRG32Float, Components: 2, ComponentSize: 4, Float: true, Renderable: true}
	FormatRGBA32F = &Format{Name: "rgba32f", Texture: gputypes.TextureFormatRGBA32Float, Components: 4, ComponentSize: 4, Float: true, Renderable: true}
	FormatRGB10A2 = &Format{Name: "rgb10_a2", Texture: gputypes.TextureFormatRGB10A2Unorm, Components: 4, PixelSize: 4, Renderable: true, Linear: true}
)

// StandardFormats returns the predefined formats in preference order.
func StandardFormats() []*Format {
	return []*Format{
		FormatR8, FormatRG8, FormatRGBA8,
		FormatR16, FormatRG16, FormatRGBA16,
		FormatR16F, FormatRG16F, FormatRGBA16F,
		FormatR32F, FormatRG32F, FormatRGBA32F,
		FormatRGB10A2,
	}
}

// FindNamedFormat returns the format called name, or nil.
func FindNamedFormat(r RA, name string) *Format {
	for _, f := range r.Formats() {
		if f.Name == name {
			return f
		}
	}
	return nil
}

// FindFloatFormat returns a linearly filterable float format with n
// components, preferring 16-bit storage. Returns nil if none exists.
func FindFloatFormat(r RA, n int) *Format {
	var best *Format
	for _, f := range r.Formats() {
		if !f.Float || !f.Linear || f.Components != n {
			continue
		}
		if best == nil || f.ComponentSize < best.ComponentSize {
			best = f
		}
	}
	return best
}

// FindUnormFormat returns an integer-normalized format with n components
// of the given byte size. Returns nil if none exists.
func FindUnormFormat(r RA, bytesPerComponent, n int) *Format {
	for _, f := range r.Formats() {
		if !f.Float && f.PixelSize == 0 && f.Components == n && f.ComponentSize == bytesPerComponent {
			return f
		}
	}
	return nil
}

// halfFromFloat32 converts v to IEEE 754 binary16 with round-to-nearest-even.
func halfFromFloat32(v float32) uint16 {
	b := math.Float32bits(v)
	sign := uint16(b>>16) & 0x8000
	exp := int32(b>>23) & 0xff
	mant := b & 0x7fffff

	switch {
	case exp == 0xff:
		if mant != 0 {
			return sign | 0x7e00
		}
		return sign | 0x7c00
	case exp-127 > 15:
		return sign | 0x7c00
	case exp-127 < -24:
		return sign
	case exp-127 < -14:
		// Subnormal half.
		mant |= 0x800000
		shift := uint32(-exp + 127 - 14 + 13)
		h := mant >> shift
		rem := mant & (1<<shift - 1)
		half := uint32(1) << (shift - 1)
		if rem > half || (rem == half && h&1 == 1) {
			h++
		}
		return sign | uint16(h) //nolint:gosec // G115: h < 0x400
	}

	h := uint32(exp-127+15)<<10 | mant>>13
	rem := mant & 0x1fff
	if rem > 0x1000 || (rem == 0x1000 && h&1 == 1) {
		h++
	}
	return sign | uint16(h) //nolint:gosec // G115: h <= 0x7c00
}
