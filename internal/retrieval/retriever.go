// Package retrieval selects the reference text used to ground an answer.
package retrieval

import (
	"context"
	"fmt"
	"regexp"

	"go.uber.org/zap"

	"github.com/hyperjump/gamescout/internal/catalog"
)

// Route records which lookup produced a bundle.
type Route string

const (
	RouteExact    Route = "exact"
	RouteSemantic Route = "semantic"
)

const defaultN = 5

var bracketPattern = regexp.MustCompile(`\[(.*?)\]`)

// Embedder converts text to a query embedding.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Querier returns the documents nearest to an embedding, nearest first.
type Querier interface {
	Query(ctx context.Context, embedding []float32, n int) ([]string, error)
}

// Bundle is the ordered reference text for one question. It may be empty.
type Bundle struct {
	Contexts []string
	Route    Route
	// Title is the bracketed title on the exact route.
	Title string
}

// Empty reports whether the bundle has no context.
func (b Bundle) Empty() bool { return len(b.Contexts) == 0 }

// Retriever routes questions naming a "[Title]" to an exact catalog lookup and everything
// else to semantic search over the document store.
type Retriever struct {
	catalog  *catalog.Catalog
	embedder Embedder
	store    Querier
	defaultN int
	logger   *zap.Logger
}

// Option configures a Retriever.
type Option func(*Retriever)

// WithLogger sets the logger for the retriever.
func WithLogger(logger *zap.Logger) Option {
	return func(r *Retriever) { r.logger = logger }
}

// WithDefaultN sets the document count used when Retrieve is called with n <= 0.
func WithDefaultN(n int) Option {
	return func(r *Retriever) { r.defaultN = n }
}

// NewRetriever creates a retriever.
func NewRetriever(cat *catalog.Catalog, embedder Embedder, store Querier, opts ...Option) (*Retriever, error) {
	if cat == nil {
		return nil, fmt.Errorf("retrieval: catalog must not be nil")
	}
	if embedder == nil {
		return nil, fmt.Errorf("retrieval: embedder must not be nil")
	}
	if store == nil {
		return nil, fmt.Errorf("retrieval: store must not be nil")
	}
	r := &Retriever{
		catalog:  cat,
		embedder: embedder,
		store:    store,
		defaultN: defaultN,
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// BracketedTitle returns the text inside the first [...] span of query.
func BracketedTitle(query string) (string, bool) {
	m := bracketPattern.FindStringSubmatch(query)
	if m == nil {
		return "", false
	}
	return m[1], true
}

// Retrieve returns up to n reference texts for query. A bracketed title yields at most
// the one matching catalog entry and never falls through to semantic search.
func (r *Retriever) Retrieve(ctx context.Context, query string, n int) (Bundle, error) {
	if n <= 0 {
		n = r.defaultN
	}

	if title, ok := BracketedTitle(query); ok {
		b := Bundle{Route: RouteExact, Title: title, Contexts: []string{}}
		item, found := r.catalog.Lookup(title)
		if found && item.ReferenceText != "" {
			b.Contexts = []string{item.ReferenceText}
		}
		r.logger.Debug("exact lookup",
			zap.String("title", title),
			zap.Bool("found", found),
			zap.Int("contexts", len(b.Contexts)))
		return b, nil
	}

	emb, err := r.embedder.Embed(ctx, query)
	if err != nil {
		return Bundle{}, fmt.Errorf("embed query: %w", err)
	}
	docs, err := r.store.Query(ctx, emb, n)
	if err != nil {
		return Bundle{}, fmt.Errorf("query document store: %w", err)
	}
	if len(docs) > n {
		docs = docs[:n]
	}
	if docs == nil {
		docs = []string{}
	}
	r.logger.Debug("semantic lookup", zap.Int("requested", n), zap.Int("contexts", len(docs)))
	return Bundle{Route: RouteSemantic, Contexts: docs}, nil
}
