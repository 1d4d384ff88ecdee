// Package docstore holds reference documents with chunk embeddings and answers nearest-document
// queries for the retrieval layer.
package docstore

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/hyperjump/gamescout/internal/config"
	"github.com/hyperjump/gamescout/internal/models"
)

// ErrNotFound is returned when a document ID is not in the store.
var ErrNotFound = errors.New("document not found")

const (
	BackendSQLite   = "sqlite"
	BackendPgVector = "pgvector"

	defaultCandidateFactor = 4
)

// Querier returns the content of the n documents nearest to an embedding.
type Querier interface {
	Query(ctx context.Context, embedding []float32, n int) ([]string, error)
}

// Store is a document store with chunk-level embeddings.
type Store interface {
	Querier
	// Put inserts or replaces doc and all of its chunks.
	Put(ctx context.Context, doc *models.Document, chunks []*models.DocumentChunk) error
	Get(ctx context.Context, id string) (*models.Document, error)
	Delete(ctx context.Context, id string) error
	CountDocuments(ctx context.Context) (int, error)
	CountChunks(ctx context.Context) (int, error)
	Close() error
}

// Open creates the store selected by cfg.Backend for embeddings of the given dimension.
func Open(ctx context.Context, cfg config.DocumentStoreConfig, dimensions int, logger *zap.Logger) (Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	switch cfg.Backend {
	case BackendSQLite, "":
		return NewSQLiteStore(ctx, cfg.DatabasePath, dimensions,
			WithCandidateFactor(cfg.CandidateFactor), WithLogger(logger))
	case BackendPgVector:
		return NewPgVectorStore(ctx, cfg.PostgresDSN, dimensions,
			WithCandidateFactor(cfg.CandidateFactor), WithLogger(logger))
	default:
		return nil, fmt.Errorf("unknown document store backend: %s (supported: sqlite, pgvector)", cfg.Backend)
	}
}

type options struct {
	candidateFactor int
	logger          *zap.Logger
}

// Option configures a store.
type Option func(*options)

// WithCandidateFactor sets how many chunks per requested document are fetched before
// aggregating to documents.
func WithCandidateFactor(f int) Option {
	return func(o *options) {
		if f > 0 {
			o.candidateFactor = f
		}
	}
}

// WithLogger sets the store logger.
func WithLogger(l *zap.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

func buildOptions(opts []Option) options {
	o := options{candidateFactor: defaultCandidateFactor, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

func checkChunks(chunks []*models.DocumentChunk, dimensions int) error {
	for i, ch := range chunks {
		if len(ch.Embedding) != dimensions {
			return fmt.Errorf("chunk %d: embedding dimension %d, expected %d", i, len(ch.Embedding), dimensions)
		}
	}
	return nil
}
