package vector

import (
	"context"
	"fmt"
)

// IndexType represents the type of vector index to use.
type IndexType string

const (
	// IndexTypeMemory uses in-memory exact search. Good for catalogs up to ~100k vectors.
	IndexTypeMemory IndexType = "memory"
	// IndexTypeFAISS uses FAISS. Requires the FAISS library and build tag -tags=faiss.
	IndexTypeFAISS IndexType = "faiss"
)

// New creates an empty vector index of the specified type.
// Supported types: "memory" (default), "faiss".
func New(indexType string, dimensions int) (Index, error) {
	switch IndexType(indexType) {
	case IndexTypeMemory, "":
		return NewMemoryIndex(dimensions)
	case IndexTypeFAISS:
		return NewFAISSIndex(dimensions)
	default:
		return nil, fmt.Errorf("unknown index type: %s (supported: memory, faiss)", indexType)
	}
}

// Open creates an index of the given type and loads it from path. A missing file yields
// an empty index.
func Open(indexType, path string, dimensions int) (Index, error) {
	idx, err := New(indexType, dimensions)
	if err != nil {
		return nil, err
	}
	if err := idx.Load(path); err != nil {
		_ = idx.Close()
		return nil, err
	}
	return idx, nil
}

// Build creates an index of the given type holding vectors labeled by their position.
func Build(ctx context.Context, indexType string, vectors [][]float32) (Index, error) {
	if len(vectors) == 0 {
		return nil, fmt.Errorf("no vectors to index")
	}
	idx, err := New(indexType, len(vectors[0]))
	if err != nil {
		return nil, err
	}
	ids := make([]int64, len(vectors))
	for i := range ids {
		ids[i] = int64(i)
	}
	if err := idx.Add(ctx, ids, vectors); err != nil {
		_ = idx.Close()
		return nil, err
	}
	return idx, nil
}

// IsFAISSAvailable returns true if FAISS support is compiled in.
func IsFAISSAvailable() bool {
	idx, err := NewFAISSIndex(1)
	if err != nil {
		return false
	}
	_ = idx.Close()
	return true
}
