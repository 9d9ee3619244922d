package options

import (
	"encoding/hex"
	"fmt"
	"image/color"
	"strings"
)

// Color is a straight-alpha RGBA color. Its text form is "#RRGGBB" or
// "#AARRGGBB".
type Color struct {
	R, G, B, A uint8
}

// NRGBA converts c to the image/color representation.
func (c Color) NRGBA() color.NRGBA {
	return color.NRGBA{R: c.R, G: c.G, B: c.B, A: c.A}
}

// Floats returns c as premultiplied components in [0,1], the form clear
// colors are passed to the device in.
func (c Color) Floats() [4]float32 {
	a := float32(c.A) / 255
	return [4]float32{
		float32(c.R) / 255 * a,
		float32(c.G) / 255 * a,
		float32(c.B) / 255 * a,
		a,
	}
}

// String returns the text form.
func (c Color) String() string {
	if c.A == 0xff {
		return fmt.Sprintf("#%02X%02X%02X", c.R, c.G, c.B)
	}
	return fmt.Sprintf("#%02X%02X%02X%02X", c.A, c.R, c.G, c.B)
}

// MarshalText implements encoding.TextMarshaler.
func (c Color) MarshalText() ([]byte, error) { return []byte(c.String()), nil }

// UnmarshalText implements encoding.TextUnmarshaler.
func (c *Color) UnmarshalText(b []byte) error {
	s, ok := strings.CutPrefix(string(b), "#")
	if !ok || (len(s) != 6 && len(s) != 8) {
		return fmt.Errorf("%w: color %q", ErrInvalidOption, b)
	}
	v, err := hex.DecodeString(s)
	if err != nil {
		return fmt.Errorf("%w: color %q: %w", ErrInvalidOption, b, err)
	}
	if len(v) == 3 {
		*c = Color{R: v[0], G: v[1], B: v[2], A: 0xff}
	} else {
		*c = Color{A: v[0], R: v[1], G: v[2], B: v[3]}
	}
	return nil
}
