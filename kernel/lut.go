package kernel

import (
	"math"

	"github.com/gogpu/vidrender/internal/cache"
)

// lutCacheLimit bounds the number of memoised weight tables. Four scaler
// units toggling between a handful of configurations stay well within it.
const lutCacheLimit = 64

// windowKey identifies a Window by value. Floats are keyed by their bits so
// NaN parameters compare equal.
type windowKey struct {
	name      string
	radius    uint64
	params    [2]uint64
	blur      uint64
	taper     uint64
	hasWeight bool
}

type lutKey struct {
	f, w        windowKey
	clamp       uint64
	cutoff      uint64
	polar       bool
	radius      uint64
	size        int
	filterScale uint64
	rows        int
}

type lutEntry struct {
	weights      []float32
	radiusCutoff float64
}

var lutCache = cache.New[lutKey, lutEntry](lutCacheLimit)

func keyOf(w *Window) windowKey {
	return windowKey{
		name:      w.Name,
		radius:    math.Float64bits(w.Radius),
		params:    [2]uint64{math.Float64bits(w.Params[0]), math.Float64bits(w.Params[1])},
		blur:      math.Float64bits(w.Blur),
		taper:     math.Float64bits(w.Taper),
		hasWeight: w.Weight != nil,
	}
}

// LUT returns the weight table for rows subpixel offsets (or radii, for
// polar kernels), laid out as ComputeLUT does with stride LUTStride().
//
// Tables are memoised by the complete kernel state; the returned slice is
// shared and must not be modified. k must have been sized with Init.
func (k *Kernel) LUT(rows int) []float32 {
	stride := 1
	if !k.Polar {
		stride = k.LUTStride()
	}
	key := lutKey{
		f:           keyOf(&k.F),
		w:           keyOf(&k.W),
		clamp:       math.Float64bits(k.Clamp),
		cutoff:      math.Float64bits(k.ValueCutoff),
		polar:       k.Polar,
		radius:      math.Float64bits(k.Radius),
		size:        k.Size,
		filterScale: math.Float64bits(k.FilterScale),
		rows:        rows,
	}
	e := lutCache.GetOrCreate(key, func() lutEntry {
		c := *k
		out := make([]float32, rows*stride)
		c.ComputeLUT(rows, stride, out)
		return lutEntry{weights: out, radiusCutoff: c.RadiusCutoff}
	})
	if k.Polar {
		k.RadiusCutoff = e.radiusCutoff
	}
	return e.weights
}

// LUTCacheStats reports the weight table cache counters.
func LUTCacheStats() cache.Stats { return lutCache.Stats() }
