// Package index implements an exact, in-memory nearest-neighbour index over
// dense float32 vectors using squared Euclidean distance.
package index

import (
	"container/heap"
	"errors"
	"fmt"
)

var (
	// ErrEmptyIndex is returned when Build is given no vectors.
	ErrEmptyIndex = errors.New("index: no vectors to index")
	// ErrDimensionMismatch is returned when vector lengths disagree.
	ErrDimensionMismatch = errors.New("index: dimension mismatch")
)

// Hit is a single search result. Position is the insertion order of the
// matched vector in Build.
type Hit struct {
	Position int
	Distance float32
}

// Flat is a brute-force index. It is immutable after Build and safe for
// concurrent Search calls.
type Flat struct {
	dim     int
	vectors [][]float32
}

// Build copies vectors into a new index. Positions are assigned 0..N-1 in
// input order. All vectors must share one non-zero length.
func Build(vectors [][]float32) (*Flat, error) {
	if len(vectors) == 0 {
		return nil, ErrEmptyIndex
	}

	dim := len(vectors[0])
	if dim == 0 {
		return nil, fmt.Errorf("%w: vector 0 is empty", ErrDimensionMismatch)
	}

	stored := make([][]float32, len(vectors))
	for i, v := range vectors {
		if len(v) != dim {
			return nil, fmt.Errorf("%w: vector %d has length %d, want %d", ErrDimensionMismatch, i, len(v), dim)
		}
		stored[i] = append([]float32(nil), v...)
	}
	return &Flat{dim: dim, vectors: stored}, nil
}

// Len returns the number of indexed vectors.
func (f *Flat) Len() int { return len(f.vectors) }

// Dim returns the vector dimension.
func (f *Flat) Dim() int { return f.dim }

// Search returns up to k hits ordered by ascending distance; equal distances
// are ordered by position. k larger than Len returns every vector and k <= 0
// returns none.
func (f *Flat) Search(query []float32, k int) ([]Hit, error) {
	if len(query) != f.dim {
		return nil, fmt.Errorf("%w: query has length %d, want %d", ErrDimensionMismatch, len(query), f.dim)
	}
	if k <= 0 {
		return []Hit{}, nil
	}
	if k > len(f.vectors) {
		k = len(f.vectors)
	}

	h := make(hitHeap, 0, k)
	for pos, v := range f.vectors {
		hit := Hit{Position: pos, Distance: squaredL2(query, v)}
		if h.Len() < k {
			heap.Push(&h, hit)
		} else if before(hit, h[0]) {
			h[0] = hit
			heap.Fix(&h, 0)
		}
	}

	hits := make([]Hit, h.Len())
	for i := len(hits) - 1; i >= 0; i-- {
		hits[i] = heap.Pop(&h).(Hit)
	}
	return hits, nil
}

func squaredL2(a, b []float32) float32 {
	var sum float64
	for i := range a {
		d := float64(a[i]) - float64(b[i])
		sum += d * d
	}
	return float32(sum)
}

// before reports whether a ranks ahead of b.
func before(a, b Hit) bool {
	if a.Distance != b.Distance {
		return a.Distance < b.Distance
	}
	return a.Position < b.Position
}

// hitHeap is a max-heap keeping the worst retained hit at the root.
type hitHeap []Hit

func (h hitHeap) Len() int            { return len(h) }
func (h hitHeap) Less(i, j int) bool  { return before(h[j], h[i]) }
func (h hitHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *hitHeap) Push(x interface{}) { *h = append(*h, x.(Hit)) }
func (h *hitHeap) Pop() interface{} {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}
