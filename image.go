package vidrender

import (
	"fmt"

	"github.com/gogpu/vidrender/options"
	"github.com/gogpu/vidrender/ra"
)

// MaxPlanes is the largest number of planes an image can have.
const MaxPlanes = 4

// PlaneParams describes one plane of the source image.
type PlaneParams struct {
	// Format names the texture format of the plane ("r8", "rg8", ...).
	Format string

	// ShiftX and ShiftY are the log2 subsampling of the plane relative
	// to the image size. Chroma planes of 4:2:0 content use 1, 1.
	ShiftX, ShiftY int
}

// Size returns the plane size for an image of w×h, rounding up.
func (p PlaneParams) Size(w, h int) (int, int) {
	return -(-w >> p.ShiftX), -(-h >> p.ShiftY)
}

// ImageParams describes the source images a Renderer is configured for.
type ImageParams struct {
	W, H   int
	Planes []PlaneParams

	// Source colorimetry; the zero values mean unknown.
	Primaries options.Primaries
	Transfer  options.Transfer
}

// Subsampled reports whether any plane is stored at reduced resolution.
func (p ImageParams) Subsampled() bool {
	for _, pl := range p.Planes {
		if pl.ShiftX > 0 || pl.ShiftY > 0 {
			return true
		}
	}
	return false
}

func (p ImageParams) validate(r ra.RA) error {
	if p.W <= 0 || p.H <= 0 {
		return fmt.Errorf("%w: size %dx%d", ErrInvalidImage, p.W, p.H)
	}
	if len(p.Planes) == 0 || len(p.Planes) > MaxPlanes {
		return fmt.Errorf("%w: %d planes", ErrInvalidImage, len(p.Planes))
	}
	if !p.Primaries.Valid() || !p.Transfer.Valid() {
		return fmt.Errorf("%w: colorspace %v/%v", ErrInvalidImage, p.Primaries, p.Transfer)
	}
	for i, pl := range p.Planes {
		if pl.ShiftX < 0 || pl.ShiftX > 2 || pl.ShiftY < 0 || pl.ShiftY > 2 {
			return fmt.Errorf("%w: plane %d subsampling %d,%d", ErrInvalidImage, i, pl.ShiftX, pl.ShiftY)
		}
		if ra.FindNamedFormat(r, pl.Format) == nil {
			return fmt.Errorf("%w: plane %d format %q", ErrUnsupportedFormat, i, pl.Format)
		}
	}
	return nil
}

// FramePlane holds the host data of one plane.
type FramePlane struct {
	Data   []byte
	Stride int
}

// Frame is one video frame to render.
type Frame struct {
	// Planes holds new image data, one entry per configured plane. A nil
	// Planes redraws the last uploaded image.
	Planes []FramePlane

	// PTS is the presentation timestamp in seconds.
	PTS float64

	// Still marks a frame that will not be followed by another soon;
	// stills are never interpolated.
	Still bool

	// DisplaySynced reports that frames are timed to the display refresh.
	// Interpolation requires it.
	DisplaySynced bool

	// FrameDuration is the ideal duration of one video frame and
	// VSyncInterval the display refresh interval, both in seconds.
	FrameDuration float64
	VSyncInterval float64
}

// Colorspace is the colorimetry of the rendered output.
type Colorspace struct {
	Primaries options.Primaries
	Transfer  options.Transfer

	// Gamma is the effective gamma multiplier, including the ambient
	// light adjustment.
	Gamma float64

	// Brightness is the target peak brightness in cd/m².
	Brightness int
}
