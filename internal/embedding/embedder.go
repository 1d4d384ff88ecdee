// Package embedding turns text into fixed-dimension vectors.
package embedding

import (
	"context"
	"fmt"
)

// Embedder produces vector embeddings for text. Embed is deterministic for a given model.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	Dimensions() int
	Close() error
}

// Options selects and configures an embedder.
type Options struct {
	Provider    string
	ModelPath   string
	Dimensions  int
	MaxTokens   int
	CacheSize   int
	OllamaURL   string
	OllamaModel string
}

// New builds the embedder named by opts.Provider: "onnx", "ollama" or "hash".
func New(opts Options) (Embedder, error) {
	switch opts.Provider {
	case "onnx", "":
		return NewONNXEmbedder(opts.ModelPath, opts.Dimensions, opts.MaxTokens, opts.CacheSize)
	case "ollama":
		return NewOllamaEmbedder(opts.OllamaURL, opts.OllamaModel, opts.Dimensions), nil
	case "hash":
		return NewHashEmbedder(opts.Dimensions), nil
	default:
		return nil, fmt.Errorf("unknown embedding provider: %s (supported: onnx, ollama, hash)", opts.Provider)
	}
}

// embedEach calls embed for every text in order.
func embedEach(ctx context.Context, texts []string, embed func(context.Context, string) ([]float32, error)) ([][]float32, error) {
	embeddings := make([][]float32, len(texts))
	for i, text := range texts {
		emb, err := embed(ctx, text)
		if err != nil {
			return nil, err
		}
		embeddings[i] = emb
	}
	return embeddings, nil
}
