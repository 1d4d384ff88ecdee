package docstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/goccy/go-json"
	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"github.com/hyperjump/gamescout/internal/models"
	"github.com/hyperjump/gamescout/internal/vector"
)

// SQLiteStore keeps documents and chunk embeddings in SQLite. Chunk embeddings are mirrored in
// an in-memory exact index labeled by chunk row ID.
type SQLiteStore struct {
	db              *sql.DB
	index           *vector.MemoryIndex
	dimensions      int
	candidateFactor int
	logger          *zap.Logger
}

// NewSQLiteStore opens or creates the database at dbPath, creating parent directories, and
// loads every stored chunk embedding into memory.
func NewSQLiteStore(ctx context.Context, dbPath string, dimensions int, opts ...Option) (*SQLiteStore, error) {
	o := buildOptions(opts)
	index, err := vector.NewMemoryIndex(dimensions)
	if err != nil {
		return nil, err
	}
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL: %w", err)
	}
	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	s := &SQLiteStore{
		db:              db,
		index:           index,
		dimensions:      dimensions,
		candidateFactor: o.candidateFactor,
		logger:          o.logger,
	}
	if err := s.loadEmbeddings(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	s.logger.Debug("document store opened",
		zap.String("path", dbPath),
		zap.Int("chunks", index.Size()))
	return s, nil
}

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS documents (
	id TEXT PRIMARY KEY,
	title TEXT NOT NULL DEFAULT '',
	content TEXT NOT NULL,
	metadata TEXT,
	created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
	updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS chunks (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	document_id TEXT NOT NULL,
	content TEXT NOT NULL,
	chunk_index INTEGER NOT NULL,
	embedding BLOB NOT NULL,
	FOREIGN KEY (document_id) REFERENCES documents(id) ON DELETE CASCADE
);

CREATE INDEX IF NOT EXISTS idx_chunks_document_id ON chunks(document_id);
`

func (s *SQLiteStore) loadEmbeddings(ctx context.Context) error {
	rows, err := s.db.QueryContext(ctx, `SELECT id, embedding FROM chunks ORDER BY id`)
	if err != nil {
		return fmt.Errorf("failed to load chunk embeddings: %w", err)
	}
	defer rows.Close()

	var (
		ids     []int64
		vectors [][]float32
	)
	for rows.Next() {
		var (
			id   int64
			blob []byte
		)
		if err := rows.Scan(&id, &blob); err != nil {
			return err
		}
		vec := vector.BytesToFloat32Slice(blob)
		if len(vec) != s.dimensions {
			return fmt.Errorf("chunk %d has %d dimensions, expected %d", id, len(vec), s.dimensions)
		}
		ids = append(ids, id)
		vectors = append(vectors, vec)
	}
	if err := rows.Err(); err != nil {
		return err
	}
	if len(ids) == 0 {
		return nil
	}
	return s.index.Add(ctx, ids, vectors)
}

// Put inserts or replaces doc and its chunks in one transaction. Chunk IDs are set from the
// assigned row IDs.
func (s *SQLiteStore) Put(ctx context.Context, doc *models.Document, chunks []*models.DocumentChunk) error {
	if err := checkChunks(chunks, s.dimensions); err != nil {
		return err
	}
	metadataJSON, err := json.Marshal(doc.Metadata)
	if err != nil {
		return fmt.Errorf("failed to marshal metadata: %w", err)
	}
	now := time.Now()
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = now
	}
	doc.UpdatedAt = now

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	oldIDs, err := chunkIDsTx(ctx, tx, doc.ID)
	if err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM chunks WHERE document_id = ?`, doc.ID); err != nil {
		return fmt.Errorf("failed to delete old chunks: %w", err)
	}
	_, err = tx.ExecContext(ctx,
		`INSERT INTO documents (id, title, content, metadata, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
			title = excluded.title,
			content = excluded.content,
			metadata = excluded.metadata,
			updated_at = excluded.updated_at`,
		doc.ID, doc.Title, doc.Content, string(metadataJSON), doc.CreatedAt, doc.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to store document: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO chunks (document_id, content, chunk_index, embedding) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	ids := make([]int64, len(chunks))
	vectors := make([][]float32, len(chunks))
	for i, ch := range chunks {
		res, err := stmt.ExecContext(ctx, doc.ID, ch.Content, ch.ChunkIndex, vector.Float32SliceToBytes(ch.Embedding))
		if err != nil {
			return fmt.Errorf("failed to store chunk %d: %w", ch.ChunkIndex, err)
		}
		id, err := res.LastInsertId()
		if err != nil {
			return err
		}
		ch.ID = id
		ch.DocumentID = doc.ID
		ids[i] = id
		vectors[i] = ch.Embedding
	}
	if err := tx.Commit(); err != nil {
		return err
	}

	if len(oldIDs) > 0 {
		if err := s.index.Remove(ctx, oldIDs); err != nil {
			return err
		}
	}
	if len(ids) > 0 {
		if err := s.index.Add(ctx, ids, vectors); err != nil {
			return err
		}
	}
	return nil
}

func chunkIDsTx(ctx context.Context, tx *sql.Tx, docID string) ([]int64, error) {
	rows, err := tx.QueryContext(ctx, `SELECT id FROM chunks WHERE document_id = ?`, docID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// Get returns the document with the given ID or ErrNotFound.
func (s *SQLiteStore) Get(ctx context.Context, id string) (*models.Document, error) {
	var (
		doc          models.Document
		metadataJSON sql.NullString
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT id, title, content, metadata, created_at, updated_at
		 FROM documents WHERE id = ?`, id,
	).Scan(&doc.ID, &doc.Title, &doc.Content, &metadataJSON, &doc.CreatedAt, &doc.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	if metadataJSON.Valid && metadataJSON.String != "" {
		if err := json.Unmarshal([]byte(metadataJSON.String), &doc.Metadata); err != nil {
			return nil, fmt.Errorf("failed to unmarshal metadata: %w", err)
		}
	}
	return &doc, nil
}

// Delete removes a document and its chunks. Returns ErrNotFound if the document does not exist.
func (s *SQLiteStore) Delete(ctx context.Context, id string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	chunkIDs, err := chunkIDsTx(ctx, tx, id)
	if err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM chunks WHERE document_id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete chunks: %w", err)
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM documents WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete document: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	return s.index.Remove(ctx, chunkIDs)
}

// Query returns the content of up to n documents ordered by the distance of their closest
// chunk to embedding.
func (s *SQLiteStore) Query(ctx context.Context, embedding []float32, n int) ([]string, error) {
	if n <= 0 || s.index.Size() == 0 {
		return []string{}, nil
	}
	neighbors, err := s.index.Search(ctx, embedding, n*s.candidateFactor)
	if err != nil {
		return nil, fmt.Errorf("chunk search: %w", err)
	}
	if len(neighbors) == 0 {
		return []string{}, nil
	}

	placeholders := make([]string, len(neighbors))
	args := make([]interface{}, len(neighbors))
	for i, nb := range neighbors {
		placeholders[i] = "?"
		args[i] = nb.ID
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT c.id, d.id, d.content FROM chunks c
		 JOIN documents d ON d.id = c.document_id
		 WHERE c.id IN (`+strings.Join(placeholders, ",")+`)`, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve chunks: %w", err)
	}
	defer rows.Close()

	type owner struct{ docID, content string }
	owners := make(map[int64]owner, len(neighbors))
	for rows.Next() {
		var (
			chunkID int64
			o       owner
		)
		if err := rows.Scan(&chunkID, &o.docID, &o.content); err != nil {
			return nil, err
		}
		owners[chunkID] = o
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return aggregateByDocument(neighbors, func(chunkID int64) (string, string, bool) {
		o, ok := owners[chunkID]
		return o.docID, o.content, ok
	}, n), nil
}

// aggregateByDocument walks neighbors in ascending distance and keeps the first chunk of each
// document, so documents come out ordered by their minimum chunk distance.
func aggregateByDocument(neighbors []vector.Neighbor, owner func(int64) (string, string, bool), n int) []string {
	seen := make(map[string]struct{}, n)
	out := make([]string, 0, n)
	for _, nb := range neighbors {
		docID, content, ok := owner(nb.ID)
		if !ok {
			continue
		}
		if _, dup := seen[docID]; dup {
			continue
		}
		seen[docID] = struct{}{}
		out = append(out, content)
		if len(out) == n {
			break
		}
	}
	return out
}

// CountDocuments returns the number of stored documents.
func (s *SQLiteStore) CountDocuments(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM documents`).Scan(&n)
	return n, err
}

// CountChunks returns the number of stored chunks.
func (s *SQLiteStore) CountChunks(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM chunks`).Scan(&n)
	return n, err
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	_ = s.index.Close()
	return s.db.Close()
}
