// Package vector provides nearest-neighbor indexes over fixed-dimension embeddings.
package vector

import "context"

// Index stores labeled vectors and answers k-nearest-neighbor queries.
// Implementations are safe for concurrent use.
type Index interface {
	Add(ctx context.Context, ids []int64, vectors [][]float32) error
	// Search returns up to k neighbors ordered by ascending distance.
	Search(ctx context.Context, query []float32, k int) ([]Neighbor, error)
	Remove(ctx context.Context, ids []int64) error
	Save(path string) error
	Load(path string) error
	Size() int
	Dimensions() int
	Type() string
	Close() error
}

// Tunable is implemented by approximate indexes that expose a probe count.
type Tunable interface {
	SetNProbe(nprobe int) error
}

// Neighbor is a single search hit. Distance is the squared L2 distance; smaller is closer.
// ID is -1 when the index returned fewer valid hits than requested.
type Neighbor struct {
	ID       int64
	Distance float32
}
