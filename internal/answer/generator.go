// Package answer produces grounded answers from retrieved context.
package answer

import (
	"context"

	"go.uber.org/zap"

	"github.com/hyperjump/gamescout/internal/llm"
	"github.com/hyperjump/gamescout/internal/retrieval"
)

// Fixed replies returned instead of generated text.
const (
	NoInformationMessage    = "I'm sorry, I couldn't find any information about that in my database."
	GenerationFailedMessage = "I'm sorry, an error occurred while generating the response."
)

// Outcome classifies how an answer was produced.
type Outcome string

const (
	OutcomeAnswered         Outcome = "answered"
	OutcomeNoContext        Outcome = "no_context"
	OutcomeGenerationFailed Outcome = "generation_failed"
)

// Result is the answer text and how it was produced.
type Result struct {
	Text    string
	Outcome Outcome
}

// Generator answers questions from a context bundle with a single generation call.
type Generator struct {
	llm    llm.TextGenerator
	logger *zap.Logger
}

// NewGenerator creates a generator backed by gen.
func NewGenerator(gen llm.TextGenerator, logger *zap.Logger) *Generator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Generator{llm: gen, logger: logger}
}

// Answer returns NoInformationMessage for an empty bundle without calling the backend.
// Otherwise it generates once; any backend failure yields GenerationFailedMessage.
func (g *Generator) Answer(ctx context.Context, query string, bundle retrieval.Bundle) Result {
	if bundle.Empty() {
		return Result{Text: NoInformationMessage, Outcome: OutcomeNoContext}
	}

	text, err := g.llm.Generate(ctx, BuildPrompt(query, bundle.Contexts))
	if err != nil {
		g.logger.Error("answer generation failed",
			zap.String("route", string(bundle.Route)),
			zap.Int("contexts", len(bundle.Contexts)),
			zap.Error(err))
		return Result{Text: GenerationFailedMessage, Outcome: OutcomeGenerationFailed}
	}
	return Result{Text: text, Outcome: OutcomeAnswered}
}
