package docstore

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hyperjump/gamescout/internal/catalog"
	"github.com/hyperjump/gamescout/internal/extract"
	"github.com/hyperjump/gamescout/internal/metrics"
	"github.com/hyperjump/gamescout/internal/models"
)

// ErrEmptyDocument is returned when a document has no text to embed.
var ErrEmptyDocument = errors.New("document has no content")

const (
	sourceCatalog = "catalog"
	sourceFile    = "file"
	sourceAPI     = "api"

	metaSource      = "source"
	metaSourcePath  = "source_path"
	metaSourceMtime = "source_mtime"
	metaSourceSize  = "source_size"
	metaCatalogID   = "catalog_id"
)

// BatchEmbedder embeds several texts in one call.
type BatchEmbedder interface {
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

// IngestConfig controls chunking and which files are ingested.
type IngestConfig struct {
	ChunkSize    int
	ChunkOverlap int
	// Extensions limits file ingestion; empty means every format the extractor supports.
	Extensions []string
}

// Ingester chunks, embeds and stores reference documents.
type Ingester struct {
	store      Store
	embedder   BatchEmbedder
	chunker    *Chunker
	extractor  *extract.Extractor
	extensions []string
	logger     *zap.Logger
}

// NewIngester creates an ingester writing to store.
func NewIngester(store Store, embedder BatchEmbedder, cfg IngestConfig, logger *zap.Logger) *Ingester {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Ingester{
		store:      store,
		embedder:   embedder,
		chunker:    NewChunker(cfg.ChunkSize, cfg.ChunkOverlap),
		extractor:  extract.NewExtractor(),
		extensions: cfg.Extensions,
		logger:     logger,
	}
}

// IngestDocument stores input, replacing any document with the same ID. A missing ID is
// generated.
func (in *Ingester) IngestDocument(ctx context.Context, input *models.DocumentInput) (*models.Document, error) {
	doc, err := in.ingest(ctx, input, sourceAPI)
	metrics.DocumentsIngested.WithLabelValues(sourceAPI, resultLabel(err)).Inc()
	return doc, err
}

func (in *Ingester) ingest(ctx context.Context, input *models.DocumentInput, source string) (*models.Document, error) {
	content := strings.TrimSpace(input.Content)
	if content == "" {
		return nil, ErrEmptyDocument
	}
	id := input.ID
	if id == "" {
		id = uuid.New().String()
	}
	metadata := make(map[string]interface{}, len(input.Metadata)+1)
	for k, v := range input.Metadata {
		metadata[k] = v
	}
	metadata[metaSource] = source

	doc := &models.Document{ID: id, Title: input.Title, Content: content, Metadata: metadata}
	chunks := in.chunker.Chunk(doc.ID, doc.Content)
	texts := make([]string, len(chunks))
	for i, ch := range chunks {
		texts[i] = ch.Content
	}
	embeddings, err := in.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("failed to generate embeddings: %w", err)
	}
	if len(embeddings) != len(chunks) {
		return nil, fmt.Errorf("embedder returned %d vectors for %d chunks", len(embeddings), len(chunks))
	}
	for i := range chunks {
		chunks[i].Embedding = embeddings[i]
	}
	if err := in.store.Put(ctx, doc, chunks); err != nil {
		return nil, fmt.Errorf("failed to store document: %w", err)
	}
	in.logger.Debug("document ingested",
		zap.String("id", doc.ID),
		zap.String("source", source),
		zap.Int("chunks", len(chunks)))
	return doc, nil
}

// IngestCatalog stores the reference text of every catalog item as document game:<id>.
// Items whose stored content is unchanged and items without reference text are skipped.
// Returns the number of documents written.
func (in *Ingester) IngestCatalog(ctx context.Context, cat *catalog.Catalog) (int, error) {
	var (
		written int
		err     error
	)
	cat.Items(func(_ int, it catalog.Item) bool {
		if err = ctx.Err(); err != nil {
			return false
		}
		text := strings.TrimSpace(it.ReferenceText)
		if text == "" {
			return true
		}
		id := CatalogDocumentID(it.ID)
		if existing, getErr := in.store.Get(ctx, id); getErr == nil && existing.Content == text {
			metrics.DocumentsIngested.WithLabelValues(sourceCatalog, "unchanged").Inc()
			return true
		}
		_, err = in.ingest(ctx, &models.DocumentInput{
			ID:       id,
			Title:    it.DisplayName,
			Content:  text,
			Metadata: map[string]interface{}{metaCatalogID: strconv.FormatInt(it.ID, 10)},
		}, sourceCatalog)
		metrics.DocumentsIngested.WithLabelValues(sourceCatalog, resultLabel(err)).Inc()
		if err != nil {
			err = fmt.Errorf("catalog item %d: %w", it.ID, err)
			return false
		}
		written++
		return true
	})
	if err == nil {
		in.logger.Info("catalog reference documents ingested",
			zap.Int("written", written),
			zap.Int("catalog_size", cat.Len()))
	}
	return written, err
}

// IngestFile extracts and stores the file at path under a path-derived ID. It reports
// false without error when the file is already stored with the same mtime and size.
func (in *Ingester) IngestFile(ctx context.Context, path string) (bool, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return false, fmt.Errorf("absolute path: %w", err)
	}
	if !in.Accepts(absPath) {
		return false, fmt.Errorf("%w: %s", extract.ErrUnsupported, filepath.Ext(absPath))
	}
	info, err := os.Stat(absPath)
	if err != nil {
		return false, fmt.Errorf("stat file: %w", err)
	}
	if !info.Mode().IsRegular() {
		return false, fmt.Errorf("not a regular file: %s", absPath)
	}

	id := FileDocumentID(absPath)
	mtime := strconv.FormatInt(info.ModTime().UnixNano(), 10)
	size := strconv.FormatInt(info.Size(), 10)
	if existing, err := in.store.Get(ctx, id); err == nil &&
		existing.MetadataString(metaSourcePath) == absPath &&
		existing.MetadataString(metaSourceMtime) == mtime &&
		existing.MetadataString(metaSourceSize) == size {
		in.logger.Debug("skipping unchanged file", zap.String("path", absPath))
		metrics.DocumentsIngested.WithLabelValues(sourceFile, "unchanged").Inc()
		return false, nil
	}

	text, err := in.extractor.Extract(absPath)
	if err != nil {
		metrics.DocumentsIngested.WithLabelValues(sourceFile, "error").Inc()
		return false, fmt.Errorf("extract content: %w", err)
	}
	_, err = in.ingest(ctx, &models.DocumentInput{
		ID:      id,
		Title:   filepath.Base(absPath),
		Content: text,
		Metadata: map[string]interface{}{
			metaSourcePath:  absPath,
			metaSourceMtime: mtime,
			metaSourceSize:  size,
		},
	}, sourceFile)
	metrics.DocumentsIngested.WithLabelValues(sourceFile, resultLabel(err)).Inc()
	if err != nil {
		return false, err
	}
	return true, nil
}

// IngestDirectory ingests every accepted regular file under dir, recursing when recursive
// is set. Returns the number of files written and stops at the first error.
func (in *Ingester) IngestDirectory(ctx context.Context, dir string, recursive bool) (int, error) {
	absDir, err := filepath.Abs(dir)
	if err != nil {
		return 0, fmt.Errorf("absolute path: %w", err)
	}
	info, err := os.Stat(absDir)
	if err != nil {
		return 0, fmt.Errorf("stat directory: %w", err)
	}
	if !info.IsDir() {
		return 0, fmt.Errorf("not a directory: %s", absDir)
	}

	n := 0
	err = filepath.WalkDir(absDir, func(path string, d os.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if d.IsDir() {
			if path != absDir && !recursive {
				return filepath.SkipDir
			}
			return nil
		}
		if !in.Accepts(path) {
			return nil
		}
		finfo, statErr := os.Stat(path)
		if statErr != nil || !finfo.Mode().IsRegular() {
			return nil
		}
		written, ingestErr := in.IngestFile(ctx, path)
		if ingestErr != nil {
			return fmt.Errorf("%s: %w", path, ingestErr)
		}
		if written {
			n++
		}
		return nil
	})
	return n, err
}

// DeleteFile removes the document ingested from path. A path that was never ingested is
// not an error.
func (in *Ingester) DeleteFile(ctx context.Context, path string) error {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("absolute path: %w", err)
	}
	if err := in.Delete(ctx, FileDocumentID(absPath)); err != nil && !errors.Is(err, ErrNotFound) {
		return err
	}
	return nil
}

// Delete removes a document by ID.
func (in *Ingester) Delete(ctx context.Context, id string) error {
	if err := in.store.Delete(ctx, id); err != nil {
		return err
	}
	in.logger.Debug("document deleted", zap.String("id", id))
	return nil
}

// Accepts reports whether path has an extension the ingester is configured for and the
// extractor supports.
func (in *Ingester) Accepts(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	if !in.extractor.Supports(ext) {
		return false
	}
	if len(in.extensions) == 0 {
		return true
	}
	want := strings.TrimPrefix(ext, ".")
	for _, e := range in.extensions {
		if strings.ToLower(strings.TrimPrefix(e, ".")) == want {
			return true
		}
	}
	return false
}

func resultLabel(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
