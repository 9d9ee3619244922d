// Package dither generates the threshold matrices sampled by the
// dithering stage.
package dither

import (
	"errors"
	"fmt"
	"math"
	"math/rand/v2"

	"github.com/gogpu/vidrender/internal/cache"
	"github.com/gogpu/vidrender/options"
)

// Dither errors.
var (
	// ErrNoMatrix is returned for algorithms without a threshold matrix.
	ErrNoMatrix = errors.New("dither: algorithm has no matrix")

	// ErrInvalidSize is returned for matrix sizes outside the supported
	// range.
	ErrInvalidSize = errors.New("dither: invalid matrix size")
)

// OrderedSizeLog2 is the fixed size exponent of the ordered matrix.
const OrderedSizeLog2 = 3

// Fruit matrix size exponent limits.
const (
	MinFruitSizeLog2 = 1
	MaxFruitSizeLog2 = 8
)

type key struct {
	algo     options.DitherAlgo
	sizeLog2 int
}

var matrices = cache.New[key, []float32](16)

// Matrix returns the size×size threshold matrix for algo, row-major, with
// every value (rank+0.5)/size² for a distinct rank. The ordered matrix is
// always 8×8; fruit matrices are 1<<sizeLog2 on a side.
//
// Matrices are memoised; the returned slice is shared and must not be
// modified.
func Matrix(algo options.DitherAlgo, sizeLog2 int) ([]float32, int, error) {
	switch algo {
	case options.DitherOrdered:
		sizeLog2 = OrderedSizeLog2
	case options.DitherFruit:
		if sizeLog2 < MinFruitSizeLog2 || sizeLog2 > MaxFruitSizeLog2 {
			return nil, 0, fmt.Errorf("%w: %d", ErrInvalidSize, sizeLog2)
		}
	default:
		return nil, 0, fmt.Errorf("%w: %v", ErrNoMatrix, algo)
	}
	size := 1 << sizeLog2
	m := matrices.GetOrCreate(key{algo, sizeLog2}, func() []float32 {
		var ranks []int
		if algo == options.DitherOrdered {
			ranks = bayer(size)
		} else {
			ranks = voidAndCluster(size)
		}
		return normalize(ranks)
	})
	return m, size, nil
}

func normalize(ranks []int) []float32 {
	n := float32(len(ranks))
	out := make([]float32, len(ranks))
	for i, r := range ranks {
		out[i] = (float32(r) + 0.5) / n
	}
	return out
}

// bayer returns the recursive Bayer index matrix.
func bayer(size int) []int {
	m := []int{0}
	for n := 1; n < size; n *= 2 {
		base := [2][2]int{{0, 2}, {3, 1}}
		next := make([]int, 4*n*n)
		for y := range 2 * n {
			for x := range 2 * n {
				next[y*2*n+x] = 4*m[(y%n)*n+x%n] + base[y/n][x/n]
			}
		}
		m = next
	}
	return m
}

// sigma is the width of the void-and-cluster energy filter.
const sigma = 1.5

// field is a toroidal binary pattern with its filtered energy.
type field struct {
	size   int
	kernel []float64
	energy []float64
	set    []bool
	count  int
}

func newField(size int) *field {
	n := size * size
	f := &field{
		size:   size,
		kernel: make([]float64, n),
		energy: make([]float64, n),
		set:    make([]bool, n),
	}
	wrap := func(d int) float64 {
		return float64(min(d, size-d))
	}
	for y := range size {
		for x := range size {
			dx, dy := wrap(x), wrap(y)
			f.kernel[y*size+x] = math.Exp(-(dx*dx + dy*dy) / (2 * sigma * sigma))
		}
	}
	return f
}

func (f *field) clone() *field {
	c := *f
	c.energy = append([]float64(nil), f.energy...)
	c.set = append([]bool(nil), f.set...)
	return &c
}

func (f *field) toggle(i int) {
	s := f.size
	sign := 1.0
	if f.set[i] {
		sign = -1
		f.count--
	} else {
		f.count++
	}
	f.set[i] = !f.set[i]
	px, py := i%s, i/s
	for y := range s {
		ky := ((y - py + s) % s) * s
		row := y * s
		for x := range s {
			f.energy[row+x] += sign * f.kernel[ky+(x-px+s)%s]
		}
	}
}

// extreme returns the set pixel of highest energy (the tightest cluster)
// when set is true, or the unset pixel of lowest energy (the largest
// void) otherwise.
func (f *field) extreme(set bool) int {
	best := -1
	for i, e := range f.energy {
		if f.set[i] != set {
			continue
		}
		if best < 0 || (set && e > f.energy[best]) || (!set && e < f.energy[best]) {
			best = i
		}
	}
	return best
}

// voidAndCluster ranks every pixel of a size×size torus so that each
// prefix of the ranking is a blue-noise point set.
func voidAndCluster(size int) []int {
	n := size * size
	f := newField(size)
	rng := rand.New(rand.NewPCG(0x6672756974, uint64(size)))

	for _, i := range rng.Perm(n)[:max(1, n/10)] {
		f.toggle(i)
	}
	// Relax the initial pattern: move the tightest cluster into the
	// largest void until that no longer changes anything.
	for range n {
		c := f.extreme(true)
		f.toggle(c)
		v := f.extreme(false)
		f.toggle(v)
		if v == c {
			break
		}
	}

	ranks := make([]int, n)
	initial := f.clone()
	for rank := f.count - 1; rank >= 0; rank-- {
		c := f.extreme(true)
		ranks[c] = rank
		f.toggle(c)
	}
	f = initial
	for rank := f.count; rank < n; rank++ {
		v := f.extreme(false)
		ranks[v] = rank
		f.toggle(v)
	}
	return ranks
}
