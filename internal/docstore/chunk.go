package docstore

import (
	"strings"

	"github.com/hyperjump/gamescout/internal/models"
)

// Chunker splits text into word windows of size words, each overlapping the previous by overlap.
type Chunker struct {
	size    int
	overlap int
}

// NewChunker creates a chunker. Non-positive size means one chunk per document; overlap is
// clamped below size.
func NewChunker(size, overlap int) *Chunker {
	if overlap < 0 {
		overlap = 0
	}
	if size > 0 && overlap >= size {
		overlap = size - 1
	}
	return &Chunker{size: size, overlap: overlap}
}

// Chunk returns the chunks of text for docID. Whitespace-only text yields no chunks.
func (c *Chunker) Chunk(docID, text string) []*models.DocumentChunk {
	words := strings.Fields(text)
	if len(words) == 0 {
		return nil
	}
	size := c.size
	if size <= 0 || size > len(words) {
		size = len(words)
	}
	step := size - c.overlap
	if step <= 0 {
		step = 1
	}

	var chunks []*models.DocumentChunk
	for start := 0; ; start += step {
		end := start + size
		if end > len(words) {
			end = len(words)
		}
		chunks = append(chunks, &models.DocumentChunk{
			DocumentID: docID,
			Content:    strings.Join(words[start:end], " "),
			ChunkIndex: len(chunks),
		})
		if end == len(words) {
			return chunks
		}
	}
}
