//go:build faiss && cgo
// +build faiss,cgo

package vector

/*
#cgo CFLAGS: -I/opt/homebrew/include -I/usr/local/include
#cgo LDFLAGS: -L/opt/homebrew/lib -L/usr/local/lib -lfaiss_c

#include <stdlib.h>
#include <faiss/c_api/Index_c.h>
#include <faiss/c_api/IndexFlat_c.h>
#include <faiss/c_api/IndexIVF_c.h>
#include <faiss/c_api/MetaIndexes_c.h>
#include <faiss/c_api/AutoTune_c.h>
#include <faiss/c_api/impl/AuxIndexStructures_c.h>
#include <faiss/c_api/index_io_c.h>
#include <faiss/c_api/error_c.h>
*/
import "C"

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"unsafe"
)

// FAISSIndex wraps a native FAISS index. New indexes are IndexIDMap over IndexFlatL2;
// Load accepts any index written by FAISS, including IVF indexes whose probe count can
// be tuned with SetNProbe.
type FAISSIndex struct {
	index      *C.FaissIndex
	base       *C.FaissIndex
	dimensions int
	ivf        bool
	nprobe     int
	mu         sync.RWMutex
}

// NewFAISSIndex creates an exact L2 FAISS index with the given dimension.
func NewFAISSIndex(dimensions int) (*FAISSIndex, error) {
	if dimensions <= 0 {
		return nil, fmt.Errorf("dimensions must be positive")
	}

	var flat *C.FaissIndexFlatL2
	if C.faiss_IndexFlatL2_new_with(&flat, C.idx_t(dimensions)) != 0 {
		return nil, fmt.Errorf("failed to create FAISS index: %s", faissLastError())
	}
	base := (*C.FaissIndex)(unsafe.Pointer(flat))

	var idmap *C.FaissIndexIDMap
	if C.faiss_IndexIDMap_new(&idmap, base) != 0 {
		C.faiss_Index_free(base)
		return nil, fmt.Errorf("failed to create FAISS id map: %s", faissLastError())
	}

	return &FAISSIndex{
		index:      (*C.FaissIndex)(unsafe.Pointer(idmap)),
		base:       base,
		dimensions: dimensions,
	}, nil
}

func faissLastError() string {
	cErr := C.faiss_get_last_error()
	if cErr == nil {
		return "unknown error"
	}
	return C.GoString(cErr)
}

// Add inserts vectors under the given labels.
func (f *FAISSIndex) Add(ctx context.Context, ids []int64, vectors [][]float32) error {
	if len(ids) != len(vectors) {
		return fmt.Errorf("ids and vectors length mismatch")
	}
	if len(ids) == 0 {
		return nil
	}

	flat := make([]float32, len(vectors)*f.dimensions)
	for i, vec := range vectors {
		if len(vec) != f.dimensions {
			return fmt.Errorf("vector dimension mismatch: got %d, expected %d", len(vec), f.dimensions)
		}
		copy(flat[i*f.dimensions:(i+1)*f.dimensions], vec)
	}
	labels := make([]int64, len(ids))
	copy(labels, ids)

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.index == nil {
		return fmt.Errorf("FAISS index is closed")
	}
	ret := C.faiss_Index_add_with_ids(
		f.index,
		C.idx_t(len(ids)),
		(*C.float)(unsafe.Pointer(&flat[0])),
		(*C.idx_t)(unsafe.Pointer(&labels[0])),
	)
	if ret != 0 {
		return fmt.Errorf("failed to add vectors to FAISS index: %s", faissLastError())
	}
	return nil
}

// Search returns the k nearest vectors in ascending distance. Slots FAISS could not fill
// are dropped.
func (f *FAISSIndex) Search(ctx context.Context, query []float32, k int) ([]Neighbor, error) {
	if len(query) != f.dimensions {
		return nil, fmt.Errorf("query dimension mismatch: got %d, expected %d", len(query), f.dimensions)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	f.mu.RLock()
	defer f.mu.RUnlock()
	if f.index == nil {
		return nil, fmt.Errorf("FAISS index is closed")
	}
	if k <= 0 {
		return nil, nil
	}
	ntotal := int(C.faiss_Index_ntotal(f.index))
	if ntotal == 0 {
		return nil, nil
	}
	if k > ntotal {
		k = ntotal
	}

	distances := make([]float32, k)
	labels := make([]int64, k)
	ret := C.faiss_Index_search(
		f.index,
		1,
		(*C.float)(unsafe.Pointer(&query[0])),
		C.idx_t(k),
		(*C.float)(unsafe.Pointer(&distances[0])),
		(*C.idx_t)(unsafe.Pointer(&labels[0])),
	)
	if ret != 0 {
		return nil, fmt.Errorf("FAISS search failed: %s", faissLastError())
	}

	results := make([]Neighbor, 0, k)
	for i := 0; i < k; i++ {
		if labels[i] < 0 {
			continue
		}
		results = append(results, Neighbor{ID: labels[i], Distance: distances[i]})
	}
	return results, nil
}

// SetNProbe sets the number of inverted lists visited per query. It is a no-op for
// indexes without inverted lists.
func (f *FAISSIndex) SetNProbe(nprobe int) error {
	if nprobe <= 0 {
		return fmt.Errorf("nprobe must be positive")
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.ivf || f.nprobe == nprobe {
		return nil
	}

	var ps *C.FaissParameterSpace
	if C.faiss_ParameterSpace_new(&ps) != 0 {
		return fmt.Errorf("failed to create FAISS parameter space: %s", faissLastError())
	}
	defer C.faiss_ParameterSpace_free(ps)

	name := C.CString("nprobe")
	defer C.free(unsafe.Pointer(name))
	if C.faiss_ParameterSpace_set_index_parameter(ps, f.index, name, C.double(nprobe)) != 0 {
		return fmt.Errorf("failed to set nprobe: %s", faissLastError())
	}
	f.nprobe = nprobe
	return nil
}

// Remove deletes vectors by label.
func (f *FAISSIndex) Remove(ctx context.Context, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}
	labels := make([]int64, len(ids))
	copy(labels, ids)

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.index == nil {
		return fmt.Errorf("FAISS index is closed")
	}

	var sel *C.FaissIDSelectorBatch
	if C.faiss_IDSelectorBatch_new(&sel, C.size_t(len(labels)), (*C.idx_t)(unsafe.Pointer(&labels[0]))) != 0 {
		return fmt.Errorf("failed to create FAISS id selector: %s", faissLastError())
	}
	defer C.faiss_IDSelector_free((*C.FaissIDSelector)(unsafe.Pointer(sel)))

	var removed C.size_t
	if C.faiss_Index_remove_ids(f.index, (*C.FaissIDSelector)(unsafe.Pointer(sel)), &removed) != 0 {
		return fmt.Errorf("failed to remove vectors from FAISS index: %s", faissLastError())
	}
	return nil
}

// Save writes the native index to path.
func (f *FAISSIndex) Save(path string) error {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if path == "" {
		return nil
	}
	if f.index == nil {
		return fmt.Errorf("FAISS index is closed")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create index dir: %w", err)
	}

	cPath := C.CString(path)
	defer C.free(unsafe.Pointer(cPath))
	if C.faiss_write_index_fname(f.index, cPath) != 0 {
		return fmt.Errorf("failed to save FAISS index: %s", faissLastError())
	}
	return nil
}

// Load replaces the index with the one stored at path. The stored dimension must match.
// If the file does not exist, no error is returned and the index is unchanged.
func (f *FAISSIndex) Load(path string) error {
	if path == "" {
		return nil
	}
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return nil
	}

	cPath := C.CString(path)
	defer C.free(unsafe.Pointer(cPath))

	var loaded *C.FaissIndex
	if C.faiss_read_index_fname(cPath, 0, &loaded) != 0 {
		return fmt.Errorf("failed to load FAISS index: %s", faissLastError())
	}
	if d := int(C.faiss_Index_d(loaded)); d != f.dimensions {
		C.faiss_Index_free(loaded)
		return fmt.Errorf("dimension mismatch: file has %d, index expects %d", d, f.dimensions)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.free()
	f.index = loaded
	f.ivf = C.faiss_IndexIVF_cast(loaded) != nil
	f.nprobe = 0
	return nil
}

// Size returns the number of vectors in the index.
func (f *FAISSIndex) Size() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if f.index == nil {
		return 0
	}
	return int(C.faiss_Index_ntotal(f.index))
}

// Dimensions returns the vector dimension.
func (f *FAISSIndex) Dimensions() int {
	return f.dimensions
}

// Close frees the FAISS index resources.
func (f *FAISSIndex) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.free()
	return nil
}

func (f *FAISSIndex) free() {
	if f.index != nil {
		C.faiss_Index_free(f.index)
		f.index = nil
	}
	if f.base != nil {
		C.faiss_Index_free(f.base)
		f.base = nil
	}
}

// Type returns the index type identifier.
func (f *FAISSIndex) Type() string {
	return string(IndexTypeFAISS)
}
