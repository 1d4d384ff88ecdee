// Package models defines the documents, chunks and API payloads shared across packages.
package models

import "time"

// Document is a unit of reference text held by the document store.
type Document struct {
	ID        string                 `json:"id"`
	Title     string                 `json:"title"`
	Content   string                 `json:"content"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	CreatedAt time.Time              `json:"created_at"`
	UpdatedAt time.Time              `json:"updated_at"`
}

// DocumentChunk is an embedded window of a document's content. ID is assigned by the store.
type DocumentChunk struct {
	ID         int64     `json:"id"`
	DocumentID string    `json:"document_id"`
	Content    string    `json:"content"`
	ChunkIndex int       `json:"chunk_index"`
	Embedding  []float32 `json:"-"`
}

// DocumentInput is the input for ingesting a document.
type DocumentInput struct {
	ID       string                 `json:"id,omitempty"`
	Title    string                 `json:"title,omitempty"`
	Content  string                 `json:"content" validate:"required"`
	Metadata map[string]interface{} `json:"metadata,omitempty"`
}

// MetadataString returns the string value stored under key, or "".
func (d *Document) MetadataString(key string) string {
	if d == nil || d.Metadata == nil {
		return ""
	}
	s, _ := d.Metadata[key].(string)
	return s
}
