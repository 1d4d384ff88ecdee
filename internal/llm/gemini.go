package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/goccy/go-json"
)

// ErrEmptyResponse is returned when the backend answers without any text.
var ErrEmptyResponse = errors.New("empty response from generator")

// Gemini calls the Gemini generateContent REST endpoint.
type Gemini struct {
	model           string
	maxOutputTokens int
	temperature     float64
	http            *httpClient
}

// NewGemini creates a Gemini generator.
func NewGemini(cfg Config) *Gemini {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://generativelanguage.googleapis.com/v1beta"
	}
	if cfg.Model == "" {
		cfg.Model = "gemini-1.5-flash"
	}
	return &Gemini{
		model:           cfg.Model,
		maxOutputTokens: cfg.MaxOutputTokens,
		temperature:     cfg.Temperature,
		http: newHTTPClient(strings.TrimSuffix(cfg.BaseURL, "/"), cfg.Timeout, map[string]string{
			"x-goog-api-key": cfg.APIKey,
		}),
	}
}

func (g *Gemini) Name() string { return "gemini" }

type geminiPart struct {
	Text string `json:"text"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type geminiGenerationConfig struct {
	MaxOutputTokens int     `json:"maxOutputTokens,omitempty"`
	Temperature     float64 `json:"temperature,omitempty"`
}

type geminiRequest struct {
	Contents         []geminiContent         `json:"contents"`
	GenerationConfig *geminiGenerationConfig `json:"generationConfig,omitempty"`
}

type geminiResponse struct {
	Candidates []struct {
		Content      geminiContent `json:"content"`
		FinishReason string        `json:"finishReason"`
	} `json:"candidates"`
	PromptFeedback *struct {
		BlockReason string `json:"blockReason"`
	} `json:"promptFeedback,omitempty"`
}

// Generate sends prompt as a single user turn and returns the first candidate's text.
func (g *Gemini) Generate(ctx context.Context, prompt string) (string, error) {
	body := geminiRequest{
		Contents: []geminiContent{{Role: "user", Parts: []geminiPart{{Text: prompt}}}},
	}
	if g.maxOutputTokens > 0 || g.temperature > 0 {
		body.GenerationConfig = &geminiGenerationConfig{
			MaxOutputTokens: g.maxOutputTokens,
			Temperature:     g.temperature,
		}
	}

	resp, err := g.http.post(ctx, fmt.Sprintf("/models/%s:generateContent", g.model), body)
	if err != nil {
		return "", fmt.Errorf("gemini generate: %w", err)
	}
	defer drainAndClose(resp.Body)

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("gemini generate: %s", readErrorBody(resp))
	}

	var raw geminiResponse
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return "", fmt.Errorf("gemini generate decode: %w", err)
	}
	if raw.PromptFeedback != nil && raw.PromptFeedback.BlockReason != "" {
		return "", fmt.Errorf("gemini generate: prompt blocked: %s", raw.PromptFeedback.BlockReason)
	}
	if len(raw.Candidates) == 0 {
		return "", fmt.Errorf("gemini generate: %w", ErrEmptyResponse)
	}

	var sb strings.Builder
	for _, part := range raw.Candidates[0].Content.Parts {
		sb.WriteString(part.Text)
	}
	text := strings.TrimSpace(sb.String())
	if text == "" {
		return "", fmt.Errorf("gemini generate (finish reason %s): %w", raw.Candidates[0].FinishReason, ErrEmptyResponse)
	}
	return text, nil
}
