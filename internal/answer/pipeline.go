package answer

import (
	"context"
	"strconv"

	"go.uber.org/zap"

	"github.com/hyperjump/gamescout/internal/metrics"
	"github.com/hyperjump/gamescout/internal/retrieval"
)

// Retriever finds reference text for a question.
type Retriever interface {
	Retrieve(ctx context.Context, query string, n int) (retrieval.Bundle, error)
}

// Pipeline retrieves context for a question and answers it.
type Pipeline struct {
	retriever Retriever
	generator *Generator
	n         int
	logger    *zap.Logger
}

// NewPipeline composes r and g. n is the number of documents requested per question
// (the retriever default when <= 0).
func NewPipeline(r Retriever, g *Generator, n int, logger *zap.Logger) *Pipeline {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pipeline{retriever: r, generator: g, n: n, logger: logger}
}

// Ask always returns a reply. Retrieval failures are logged and answered with
// GenerationFailedMessage.
func (p *Pipeline) Ask(ctx context.Context, query string) Result {
	bundle, err := p.retriever.Retrieve(ctx, query, p.n)
	if err != nil {
		p.logger.Error("context retrieval failed", zap.Error(err))
		metrics.AnswerOutcomes.WithLabelValues(string(OutcomeGenerationFailed)).Inc()
		return Result{Text: GenerationFailedMessage, Outcome: OutcomeGenerationFailed}
	}
	metrics.RetrievalRoutes.WithLabelValues(string(bundle.Route), strconv.FormatBool(!bundle.Empty())).Inc()

	res := p.generator.Answer(ctx, query, bundle)
	metrics.AnswerOutcomes.WithLabelValues(string(res.Outcome)).Inc()
	p.logger.Debug("question answered",
		zap.String("route", string(bundle.Route)),
		zap.Int("contexts", len(bundle.Contexts)),
		zap.String("outcome", string(res.Outcome)))
	return res
}
