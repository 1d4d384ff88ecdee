package docstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/goccy/go-json"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
	pgxvec "github.com/pgvector/pgvector-go/pgx"
	"go.uber.org/zap"

	"github.com/hyperjump/gamescout/internal/models"
)

// PgVectorStore keeps documents in PostgreSQL with chunk embeddings in a pgvector column.
type PgVectorStore struct {
	pool            *pgxpool.Pool
	dimensions      int
	candidateFactor int
	logger          *zap.Logger
}

// NewPgVectorStore connects to dsn, creates the vector extension and schema if missing.
func NewPgVectorStore(ctx context.Context, dsn string, dimensions int, opts ...Option) (*PgVectorStore, error) {
	if dsn == "" {
		return nil, fmt.Errorf("postgres dsn is required for the pgvector backend")
	}
	if dimensions <= 0 {
		return nil, fmt.Errorf("dimensions must be positive")
	}
	o := buildOptions(opts)
	poolCfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse dsn: %w", err)
	}
	if err := createExtension(ctx, poolCfg.ConnConfig); err != nil {
		return nil, err
	}
	poolCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		return pgxvec.RegisterTypes(ctx, conn)
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	s := &PgVectorStore{
		pool:            pool,
		dimensions:      dimensions,
		candidateFactor: o.candidateFactor,
		logger:          o.logger,
	}
	if err := s.migrate(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	s.logger.Debug("pgvector document store ready", zap.Int("dimensions", dimensions))
	return s, nil
}

// createExtension runs before the pool exists because vector types are registered per connection.
func createExtension(ctx context.Context, cfg *pgx.ConnConfig) error {
	conn, err := pgx.ConnectConfig(ctx, cfg)
	if err != nil {
		return fmt.Errorf("connect: %w", err)
	}
	defer func() { _ = conn.Close(ctx) }()
	if _, err := conn.Exec(ctx, `CREATE EXTENSION IF NOT EXISTS vector`); err != nil {
		return fmt.Errorf("create vector extension: %w", err)
	}
	return nil
}

func (s *PgVectorStore) migrate(ctx context.Context) error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS documents (
			id TEXT PRIMARY KEY,
			title TEXT NOT NULL DEFAULT '',
			content TEXT NOT NULL,
			metadata JSONB DEFAULT '{}',
			created_at TIMESTAMPTZ DEFAULT NOW(),
			updated_at TIMESTAMPTZ DEFAULT NOW()
		)`,
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS chunks (
			id BIGSERIAL PRIMARY KEY,
			document_id TEXT NOT NULL REFERENCES documents(id) ON DELETE CASCADE,
			content TEXT NOT NULL,
			chunk_index INTEGER NOT NULL,
			embedding vector(%d) NOT NULL
		)`, s.dimensions),
		`CREATE INDEX IF NOT EXISTS idx_chunks_document_id ON chunks(document_id)`,
		`CREATE INDEX IF NOT EXISTS idx_chunks_embedding ON chunks USING hnsw (embedding vector_l2_ops)`,
	}
	for _, m := range migrations {
		if _, err := s.pool.Exec(ctx, m); err != nil {
			return fmt.Errorf("execute migration: %w", err)
		}
	}
	return nil
}

// Put inserts or replaces doc and its chunks in one transaction.
func (s *PgVectorStore) Put(ctx context.Context, doc *models.Document, chunks []*models.DocumentChunk) error {
	if err := checkChunks(chunks, s.dimensions); err != nil {
		return err
	}
	metadataJSON, err := json.Marshal(doc.Metadata)
	if err != nil {
		return fmt.Errorf("marshal metadata: %w", err)
	}
	now := time.Now()
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = now
	}
	doc.UpdatedAt = now

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	_, err = tx.Exec(ctx, `
		INSERT INTO documents (id, title, content, metadata, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO UPDATE SET
			title = EXCLUDED.title,
			content = EXCLUDED.content,
			metadata = EXCLUDED.metadata,
			updated_at = EXCLUDED.updated_at`,
		doc.ID, doc.Title, doc.Content, string(metadataJSON), doc.CreatedAt, doc.UpdatedAt)
	if err != nil {
		return fmt.Errorf("store document: %w", err)
	}
	if _, err := tx.Exec(ctx, `DELETE FROM chunks WHERE document_id = $1`, doc.ID); err != nil {
		return fmt.Errorf("delete old chunks: %w", err)
	}
	for _, ch := range chunks {
		err := tx.QueryRow(ctx,
			`INSERT INTO chunks (document_id, content, chunk_index, embedding)
			 VALUES ($1, $2, $3, $4) RETURNING id`,
			doc.ID, ch.Content, ch.ChunkIndex, pgvector.NewVector(ch.Embedding),
		).Scan(&ch.ID)
		if err != nil {
			return fmt.Errorf("store chunk %d: %w", ch.ChunkIndex, err)
		}
		ch.DocumentID = doc.ID
	}
	return tx.Commit(ctx)
}

// Get returns the document with the given ID or ErrNotFound.
func (s *PgVectorStore) Get(ctx context.Context, id string) (*models.Document, error) {
	var (
		doc          models.Document
		metadataJSON []byte
	)
	err := s.pool.QueryRow(ctx,
		`SELECT id, title, content, metadata, created_at, updated_at FROM documents WHERE id = $1`, id,
	).Scan(&doc.ID, &doc.Title, &doc.Content, &metadataJSON, &doc.CreatedAt, &doc.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	if len(metadataJSON) > 0 {
		if err := json.Unmarshal(metadataJSON, &doc.Metadata); err != nil {
			return nil, fmt.Errorf("unmarshal metadata: %w", err)
		}
	}
	return &doc, nil
}

// Delete removes a document; its chunks cascade.
func (s *PgVectorStore) Delete(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM documents WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete document: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return nil
}

// Query ranks documents by the L2 distance of their closest chunk among the
// n*candidateFactor nearest chunks.
func (s *PgVectorStore) Query(ctx context.Context, embedding []float32, n int) ([]string, error) {
	if n <= 0 {
		return []string{}, nil
	}
	if len(embedding) != s.dimensions {
		return nil, fmt.Errorf("query dimension mismatch: got %d, expected %d", len(embedding), s.dimensions)
	}
	rows, err := s.pool.Query(ctx, `
		WITH nearest AS (
			SELECT document_id, embedding <-> $1 AS distance
			FROM chunks
			ORDER BY embedding <-> $1
			LIMIT $2
		)
		SELECT d.content
		FROM nearest n
		JOIN documents d ON d.id = n.document_id
		GROUP BY d.id, d.content
		ORDER BY MIN(n.distance), d.id
		LIMIT $3`,
		pgvector.NewVector(embedding), n*s.candidateFactor, n)
	if err != nil {
		return nil, fmt.Errorf("query documents: %w", err)
	}
	defer rows.Close()

	out := make([]string, 0, n)
	for rows.Next() {
		var content string
		if err := rows.Scan(&content); err != nil {
			return nil, err
		}
		out = append(out, content)
	}
	return out, rows.Err()
}

// CountDocuments returns the number of stored documents.
func (s *PgVectorStore) CountDocuments(ctx context.Context) (int, error) {
	var n int
	err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM documents`).Scan(&n)
	return n, err
}

// CountChunks returns the number of stored chunks.
func (s *PgVectorStore) CountChunks(ctx context.Context) (int, error) {
	var n int
	err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM chunks`).Scan(&n)
	return n, err
}

// Close closes the connection pool.
func (s *PgVectorStore) Close() error {
	s.pool.Close()
	return nil
}
