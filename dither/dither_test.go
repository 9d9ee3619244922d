package dither

import (
	"errors"
	"testing"

	"github.com/gogpu/vidrender/options"
)

func TestOrderedMatrix(t *testing.T) {
	m, size, err := Matrix(options.DitherOrdered, 6)
	if err != nil {
		t.Fatalf("Matrix() error: %v", err)
	}
	if size != 8 || len(m) != 64 {
		t.Fatalf("Matrix() = %d values, size %d; want 64, 8", len(m), size)
	}
	wantRow0 := []int{0, 32, 8, 40, 2, 34, 10, 42}
	for x, r := range wantRow0 {
		if want := (float32(r) + 0.5) / 64; m[x] != want {
			t.Errorf("m[0][%d] = %v, want %v", x, m[x], want)
		}
	}
	checkPermutation(t, m)
}

func TestFruitMatrix(t *testing.T) {
	for _, sizeLog2 := range []int{1, 2, 4} {
		m, size, err := Matrix(options.DitherFruit, sizeLog2)
		if err != nil {
			t.Fatalf("Matrix(%d) error: %v", sizeLog2, err)
		}
		if size != 1<<sizeLog2 || len(m) != size*size {
			t.Fatalf("Matrix(%d) = %d values, size %d", sizeLog2, len(m), size)
		}
		checkPermutation(t, m)
	}
}

func TestFruitSpreadsLowRanks(t *testing.T) {
	m, size, _ := Matrix(options.DitherFruit, 4)
	n := float32(len(m))
	var pts [][2]int
	for i, v := range m {
		if int(v*n) < 4 {
			pts = append(pts, [2]int{i % size, i / size})
		}
	}
	if len(pts) != 4 {
		t.Fatalf("found %d lowest-ranked points, want 4", len(pts))
	}
	wrap := func(d int) int {
		if d < 0 {
			d = -d
		}
		return min(d, size-d)
	}
	for i := range pts {
		for j := i + 1; j < len(pts); j++ {
			dx, dy := wrap(pts[i][0]-pts[j][0]), wrap(pts[i][1]-pts[j][1])
			if dx*dx+dy*dy < 9 {
				t.Errorf("points %v and %v clustered", pts[i], pts[j])
			}
		}
	}
}

func TestMatrixMemoised(t *testing.T) {
	a, _, _ := Matrix(options.DitherFruit, 3)
	b, _, _ := Matrix(options.DitherFruit, 3)
	if &a[0] != &b[0] {
		t.Error("Matrix() regenerated a cached matrix")
	}
	if got := voidAndCluster(8); !equalRanks(got, a) {
		t.Error("void-and-cluster is not deterministic")
	}
}

func TestMatrixErrors(t *testing.T) {
	if _, _, err := Matrix(options.DitherNone, 6); !errors.Is(err, ErrNoMatrix) {
		t.Errorf("Matrix(none) error = %v, want %v", err, ErrNoMatrix)
	}
	for _, s := range []int{0, 9} {
		if _, _, err := Matrix(options.DitherFruit, s); !errors.Is(err, ErrInvalidSize) {
			t.Errorf("Matrix(fruit, %d) error = %v, want %v", s, err, ErrInvalidSize)
		}
	}
}

func checkPermutation(t *testing.T, m []float32) {
	t.Helper()
	n := float32(len(m))
	seen := make([]bool, len(m))
	for i, v := range m {
		r := int(v * n)
		if r < 0 || r >= len(m) || seen[r] {
			t.Fatalf("value %v at %d is not a distinct rank", v, i)
		}
		seen[r] = true
	}
}

func equalRanks(ranks []int, m []float32) bool {
	n := float32(len(m))
	for i, r := range ranks {
		if int(m[i]*n) != r {
			return false
		}
	}
	return true
}
