// Package llm provides text generation backends for grounded answers.
package llm

import (
	"context"
	"fmt"
	"time"
)

// TextGenerator turns a prompt into text. Calls may fail; callers decide how to degrade.
type TextGenerator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// Config selects and configures a backend.
type Config struct {
	Provider        string
	Model           string
	APIKey          string
	BaseURL         string
	Timeout         time.Duration
	MaxOutputTokens int
	Temperature     float64
}

// New creates the generator named by cfg.Provider: "gemini" or "ollama".
func New(cfg Config) (TextGenerator, error) {
	switch cfg.Provider {
	case "gemini", "":
		if cfg.APIKey == "" {
			return nil, fmt.Errorf("gemini requires an API key")
		}
		return NewGemini(cfg), nil
	case "ollama":
		return NewOllama(cfg), nil
	default:
		return nil, fmt.Errorf("unknown generator provider: %s (supported: gemini, ollama)", cfg.Provider)
	}
}
