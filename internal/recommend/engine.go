// Package recommend ranks catalog games against a set of liked games weighted by rating.
package recommend

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/hyperjump/gamescout/internal/catalog"
	"github.com/hyperjump/gamescout/internal/vector"
)

// ErrLengthMismatch is returned when titles and ratings differ in length.
var ErrLengthMismatch = errors.New("number of games and ratings must match")

const defaultK = 5

// Query is the weighted query vector and the normalized names it must not return.
type Query struct {
	Vector   []float32
	Excluded map[string]struct{}
	Resolved int
}

// Engine produces recommendations from a catalog and its vector index. The index labels
// are catalog positions.
type Engine struct {
	catalog  *catalog.Catalog
	index    vector.Index
	nprobe   int
	defaultK int
	logger   *zap.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the logger for the engine.
func WithLogger(logger *zap.Logger) Option {
	return func(e *Engine) { e.logger = logger }
}

// WithNProbe sets the probe count applied to tunable indexes before each search.
func WithNProbe(n int) Option {
	return func(e *Engine) { e.nprobe = n }
}

// WithDefaultK sets the result count used when Recommend is called with k <= 0.
func WithDefaultK(k int) Option {
	return func(e *Engine) { e.defaultK = k }
}

// NewEngine creates an engine over cat and idx.
func NewEngine(cat *catalog.Catalog, idx vector.Index, opts ...Option) *Engine {
	e := &Engine{
		catalog:  cat,
		index:    idx,
		nprobe:   10,
		defaultK: defaultK,
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Recommend returns up to k display names of the games nearest to the rating-weighted mean
// of the resolved titles, never including a game whose normalized name matches an input.
// Titles not in the catalog are ignored; if none resolve the result is empty.
func (e *Engine) Recommend(ctx context.Context, titles []string, ratings []int, k int) ([]string, error) {
	if len(titles) != len(ratings) {
		return nil, ErrLengthMismatch
	}
	if k <= 0 {
		k = e.defaultK
	}

	q, ok := e.BuildQuery(titles, ratings)
	if !ok {
		e.logger.Debug("no input titles resolved", zap.Int("titles", len(titles)))
		return []string{}, nil
	}

	if t, ok := e.index.(vector.Tunable); ok && e.nprobe > 0 {
		if err := t.SetNProbe(e.nprobe); err != nil {
			return nil, fmt.Errorf("set nprobe: %w", err)
		}
	}

	neighbors, err := e.index.Search(ctx, q.Vector, k+q.Resolved)
	if err != nil {
		return nil, fmt.Errorf("vector search: %w", err)
	}

	out := make([]string, 0, k)
	for _, n := range neighbors {
		if len(out) == k {
			break
		}
		item, ok := e.catalog.At(int(n.ID))
		if !ok {
			continue
		}
		if _, excluded := q.Excluded[item.NormalizedName]; excluded {
			continue
		}
		out = append(out, item.DisplayName)
	}

	e.logger.Debug("recommendations computed",
		zap.Int("resolved", q.Resolved),
		zap.Int("candidates", len(neighbors)),
		zap.Int("returned", len(out)))
	return out, nil
}

// BuildQuery resolves titles against the catalog and combines the matched embeddings into
// a weighted mean. A non-positive rating sum falls back to the unweighted mean. The second
// return value is false when no title resolves or the slices differ in length.
func (e *Engine) BuildQuery(titles []string, ratings []int) (Query, bool) {
	q := Query{Excluded: make(map[string]struct{})}
	if len(titles) != len(ratings) {
		return q, false
	}
	var (
		weighted   []float32
		unweighted []float32
		weightSum  float64
	)
	for i, title := range titles {
		item, ok := e.catalog.Lookup(title)
		if !ok {
			continue
		}
		if weighted == nil {
			weighted = make([]float32, len(item.Embedding))
			unweighted = make([]float32, len(item.Embedding))
		}
		w := float32(ratings[i])
		for j, v := range item.Embedding {
			weighted[j] += w * v
			unweighted[j] += v
		}
		weightSum += float64(ratings[i])
		q.Excluded[item.NormalizedName] = struct{}{}
		q.Resolved++
	}
	if q.Resolved == 0 {
		return q, false
	}

	if weightSum > 0 {
		inv := float32(1 / weightSum)
		for j := range weighted {
			weighted[j] *= inv
		}
		q.Vector = weighted
	} else {
		inv := float32(1 / float64(q.Resolved))
		for j := range unweighted {
			unweighted[j] *= inv
		}
		q.Vector = unweighted
	}
	return q, true
}
