package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"

	"go.uber.org/zap"

	"github.com/hyperjump/gamescout/internal/answer"
	"github.com/hyperjump/gamescout/internal/auth"
	"github.com/hyperjump/gamescout/internal/catalog"
	"github.com/hyperjump/gamescout/internal/config"
	"github.com/hyperjump/gamescout/internal/docstore"
	"github.com/hyperjump/gamescout/internal/embedding"
	"github.com/hyperjump/gamescout/internal/keyword"
	"github.com/hyperjump/gamescout/internal/llm"
	"github.com/hyperjump/gamescout/internal/recommend"
	"github.com/hyperjump/gamescout/internal/retrieval"
	"github.com/hyperjump/gamescout/internal/vector"
)

// scope selects which optional parts initializeComponents builds. The catalog, its index,
// the title index and the recommendation engine are always built.
type scope uint8

const (
	needDocuments scope = 1 << iota
	needAnswers
	needAuth

	scopeCatalog = scope(0)
	scopeAll     = needDocuments | needAnswers | needAuth
)

// Components holds initialized services. They are built once and shared read-only.
type Components struct {
	Catalog   *catalog.Catalog
	Index     vector.Index
	Titles    *keyword.TitleIndex
	Engine    *recommend.Engine
	Embedder  embedding.Embedder
	Documents docstore.Store
	Ingester  *docstore.Ingester
	Retriever *retrieval.Retriever
	Generator *llm.Guarded
	Pipeline  *answer.Pipeline
	Users     *auth.UserStore
	Auth      *auth.Service
}

func (c *Components) Close() {
	if c.Users != nil {
		_ = c.Users.Close()
	}
	if c.Documents != nil {
		_ = c.Documents.Close()
	}
	if c.Embedder != nil {
		_ = c.Embedder.Close()
	}
	if c.Titles != nil {
		_ = c.Titles.Close()
	}
	if c.Index != nil {
		_ = c.Index.Close()
	}
}

func initializeComponents(ctx context.Context, cfg *config.Config, logger *zap.Logger, sc scope) (_ *Components, err error) {
	c := &Components{}
	defer func() {
		if err != nil {
			c.Close()
		}
	}()

	c.Catalog, err = catalog.Load(catalog.LoadOptions{
		TablePath:       cfg.Catalog.Path,
		VectorsPath:     cfg.Catalog.VectorsPath,
		IDColumn:        cfg.Catalog.IDColumn,
		NameColumn:      cfg.Catalog.NameColumn,
		ReferenceColumn: cfg.Catalog.ReferenceColumn,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load catalog: %w", err)
	}
	if dups := c.Catalog.Duplicates(); len(dups) > 0 {
		logger.Warn("catalog has duplicate normalized names; first occurrence wins",
			zap.Int("duplicates", len(dups)))
	}
	logger.Info("catalog loaded",
		zap.Int("games", c.Catalog.Len()),
		zap.Int("dimensions", c.Catalog.Dimensions()))

	c.Index, err = loadCatalogIndex(ctx, cfg.Catalog, c.Catalog, logger)
	if err != nil {
		return nil, err
	}
	c.Titles, err = keyword.NewTitleIndex(c.Catalog)
	if err != nil {
		return nil, err
	}
	c.Engine = recommend.NewEngine(c.Catalog, c.Index,
		recommend.WithLogger(logger),
		recommend.WithNProbe(cfg.Catalog.NProbe),
		recommend.WithDefaultK(cfg.Recommend.DefaultK))

	if sc&(needDocuments|needAnswers) != 0 {
		c.Embedder, err = embedding.New(embedding.Options{
			Provider:    cfg.Embedding.Provider,
			ModelPath:   cfg.Embedding.ModelPath,
			Dimensions:  cfg.Embedding.Dimensions,
			MaxTokens:   cfg.Embedding.MaxTokens,
			CacheSize:   cfg.Embedding.CacheSize,
			OllamaURL:   cfg.Embedding.OllamaURL,
			OllamaModel: cfg.Embedding.OllamaModel,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to initialize embedder: %w", err)
		}
		c.Documents, err = docstore.Open(ctx, cfg.DocumentStore, c.Embedder.Dimensions(), logger)
		if err != nil {
			return nil, fmt.Errorf("failed to open document store: %w", err)
		}
		c.Ingester = docstore.NewIngester(c.Documents, c.Embedder, docstore.IngestConfig{
			ChunkSize:    cfg.DocumentStore.ChunkSize,
			ChunkOverlap: cfg.DocumentStore.ChunkOverlap,
			Extensions:   cfg.DocumentStore.Extensions,
		}, logger)
		c.Retriever, err = retrieval.NewRetriever(c.Catalog, c.Embedder, c.Documents,
			retrieval.WithLogger(logger),
			retrieval.WithDefaultN(retrievalN(cfg.Retrieval)))
		if err != nil {
			return nil, err
		}
	}

	if sc&needAnswers != 0 {
		gen, err := llm.New(llm.Config{
			Provider:        cfg.Generator.Provider,
			Model:           cfg.Generator.Model,
			APIKey:          cfg.Generator.APIKey,
			BaseURL:         cfg.Generator.BaseURL,
			Timeout:         cfg.Generator.Timeout,
			MaxOutputTokens: cfg.Generator.MaxOutputTokens,
			Temperature:     cfg.Generator.Temperature,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to initialize generator: %w", err)
		}
		b := cfg.Generator.Breaker
		c.Generator = llm.NewGuarded(gen, cfg.Generator.Provider, cfg.Generator.Timeout, llm.BreakerSettings{
			MaxRequests:  b.MaxRequests,
			Interval:     b.Interval,
			Timeout:      b.Timeout,
			MinRequests:  b.MinRequests,
			FailureRatio: b.FailureRatio,
		}, logger)
		c.Pipeline = answer.NewPipeline(c.Retriever, answer.NewGenerator(c.Generator, logger),
			retrievalN(cfg.Retrieval), logger)
	}

	if sc&needAuth != 0 && cfg.Auth.Enabled {
		c.Users, err = auth.OpenUserStore(ctx, cfg.Auth.DatabasePath)
		if err != nil {
			return nil, err
		}
		tokens, err := auth.NewTokenManager(cfg.Auth.SecretKey, cfg.Auth.TokenTTL)
		if err != nil {
			return nil, err
		}
		c.Auth = auth.NewService(c.Users, tokens, auth.WithLogger(logger))
	}
	return c, nil
}

func retrievalN(rc config.RetrievalConfig) int {
	if rc.MaxN > 0 && rc.DefaultN > rc.MaxN {
		return rc.MaxN
	}
	return rc.DefaultN
}

// loadCatalogIndex opens the prebuilt index at cc.IndexPath when it exists, otherwise builds
// one from the catalog vectors and saves it there. The index must hold one vector per game.
func loadCatalogIndex(ctx context.Context, cc config.CatalogConfig, cat *catalog.Catalog, logger *zap.Logger) (vector.Index, error) {
	if cc.IndexPath != "" {
		_, statErr := os.Stat(cc.IndexPath)
		switch {
		case statErr == nil:
			idx, err := vector.Open(cc.IndexType, cc.IndexPath, cat.Dimensions())
			if err != nil {
				return nil, fmt.Errorf("failed to load catalog index: %w", err)
			}
			if idx.Size() != cat.Len() {
				_ = idx.Close()
				return nil, fmt.Errorf("catalog index %s holds %d vectors, catalog has %d games",
					cc.IndexPath, idx.Size(), cat.Len())
			}
			logger.Info("catalog index loaded",
				zap.String("path", cc.IndexPath),
				zap.String("type", idx.Type()),
				zap.Int("size", idx.Size()))
			return idx, nil
		case !errors.Is(statErr, fs.ErrNotExist):
			return nil, fmt.Errorf("failed to stat catalog index: %w", statErr)
		}
	}

	idx, err := vector.Build(ctx, cc.IndexType, cat.Embeddings())
	if err != nil {
		return nil, fmt.Errorf("failed to build catalog index: %w", err)
	}
	logger.Info("catalog index built",
		zap.String("type", idx.Type()),
		zap.Int("size", idx.Size()),
		zap.Bool("faiss_available", vector.IsFAISSAvailable()))
	if cc.IndexPath != "" {
		if err := idx.Save(cc.IndexPath); err != nil {
			logger.Warn("catalog index save failed", zap.String("path", cc.IndexPath), zap.Error(err))
		}
	}
	return idx, nil
}
