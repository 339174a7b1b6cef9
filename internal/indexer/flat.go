package indexer

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
)

// EmptyPosition marks a search slot that no row filled.
const EmptyPosition = -1

// EmptyScore is the score carried by unfilled slots.
const EmptyScore = -math.MaxFloat32

var (
	// ErrDimensionMismatch is returned when a vector does not match the index width.
	ErrDimensionMismatch = errors.New("vector dimension does not match index")
	// ErrInvalidK is returned when a search asks for fewer than one neighbour.
	ErrInvalidK = errors.New("k must be positive")
)

// Hit is one search slot: a row position and its inner-product score.
// Position is EmptyPosition when the index holds fewer rows than requested.
type Hit struct {
	Position int
	Score    float32
}

// FlatIndex is an exhaustive inner-product index held in memory.
// Each row stores the ID of the chunk it was built from.
type FlatIndex struct {
	dims    int
	vectors []float32
	ids     []string
}

// NewFlatIndex creates an empty index for vectors of the given width.
func NewFlatIndex(dims int) *FlatIndex {
	return &FlatIndex{dims: dims}
}

// Add appends a row.
func (f *FlatIndex) Add(vec []float32, chunkID string) error {
	if len(vec) != f.dims {
		return fmt.Errorf("%w: got %d, want %d", ErrDimensionMismatch, len(vec), f.dims)
	}
	f.vectors = append(f.vectors, vec...)
	f.ids = append(f.ids, chunkID)
	return nil
}

func (f *FlatIndex) Rows() int       { return len(f.ids) }
func (f *FlatIndex) Dimensions() int { return f.dims }

// ChunkID returns the chunk ID payload of row i.
func (f *FlatIndex) ChunkID(i int) string { return f.ids[i] }

// ChunkIDs returns a copy of every row's chunk ID in row order.
func (f *FlatIndex) ChunkIDs() []string {
	out := make([]string, len(f.ids))
	copy(out, f.ids)
	return out
}

// Vector returns row i. The slice aliases index storage and must not be modified.
func (f *FlatIndex) Vector(i int) []float32 {
	return f.vectors[i*f.dims : (i+1)*f.dims]
}

// Search scores every row against query and returns exactly k slots in
// descending score order. When k exceeds the row count the tail is padded
// with EmptyPosition.
func (f *FlatIndex) Search(ctx context.Context, query []float32, k int) ([]Hit, error) {
	if k <= 0 {
		return nil, ErrInvalidK
	}
	if len(query) != f.dims {
		return nil, fmt.Errorf("%w: got %d, want %d", ErrDimensionMismatch, len(query), f.dims)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	hits := make([]Hit, f.Rows())
	for i := range hits {
		hits[i] = Hit{Position: i, Score: dot(query, f.Vector(i))}
	}
	sort.SliceStable(hits, func(a, b int) bool {
		return hits[a].Score > hits[b].Score
	})

	if len(hits) > k {
		hits = hits[:k]
	}
	for len(hits) < k {
		hits = append(hits, Hit{Position: EmptyPosition, Score: EmptyScore})
	}
	return hits, nil
}

func dot(a, b []float32) float32 {
	var sum float32
	for i := range a {
		sum += a[i] * b[i]
	}
	return sum
}
