package llm

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/goccy/go-json"
)

// Ollama calls a local Ollama server's /api/generate endpoint without streaming.
type Ollama struct {
	model           string
	maxOutputTokens int
	temperature     float64
	http            *httpClient
}

// NewOllama creates an Ollama generator.
func NewOllama(cfg Config) *Ollama {
	host := strings.TrimSuffix(cfg.BaseURL, "/")
	host = strings.TrimSuffix(host, "/v1")
	if host == "" {
		host = "http://localhost:11434"
	}
	return &Ollama{
		model:           cfg.Model,
		maxOutputTokens: cfg.MaxOutputTokens,
		temperature:     cfg.Temperature,
		http:            newHTTPClient(host, cfg.Timeout, nil),
	}
}

func (o *Ollama) Name() string { return "ollama" }

type ollamaGenerateRequest struct {
	Model   string         `json:"model"`
	Prompt  string         `json:"prompt"`
	Stream  bool           `json:"stream"`
	Options map[string]any `json:"options,omitempty"`
}

type ollamaGenerateResponse struct {
	Response string `json:"response"`
	Done     bool   `json:"done"`
	Error    string `json:"error,omitempty"`
}

// Generate returns the model's completion for prompt.
func (o *Ollama) Generate(ctx context.Context, prompt string) (string, error) {
	req := ollamaGenerateRequest{Model: o.model, Prompt: prompt}
	opts := map[string]any{}
	if o.maxOutputTokens > 0 {
		opts["num_predict"] = o.maxOutputTokens
	}
	if o.temperature > 0 {
		opts["temperature"] = o.temperature
	}
	if len(opts) > 0 {
		req.Options = opts
	}

	resp, err := o.http.post(ctx, "/api/generate", req)
	if err != nil {
		return "", fmt.Errorf("ollama generate: %w", err)
	}
	defer drainAndClose(resp.Body)

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("ollama generate: %s", readErrorBody(resp))
	}

	var raw ollamaGenerateResponse
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return "", fmt.Errorf("ollama generate decode: %w", err)
	}
	if raw.Error != "" {
		return "", fmt.Errorf("ollama generate: %s", raw.Error)
	}
	text := strings.TrimSpace(raw.Response)
	if text == "" {
		return "", fmt.Errorf("ollama generate: %w", ErrEmptyResponse)
	}
	return text, nil
}
