// Package server provides the HTTP API for gamescout.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/hyperjump/gamescout/internal/answer"
	"github.com/hyperjump/gamescout/internal/auth"
	"github.com/hyperjump/gamescout/internal/catalog"
	"github.com/hyperjump/gamescout/internal/config"
	"github.com/hyperjump/gamescout/internal/vector"
)

// Recommender ranks catalog games against rated titles.
type Recommender interface {
	Recommend(ctx context.Context, titles []string, ratings []int, k int) ([]string, error)
}

// Answerer answers a free-text question; it always produces a reply.
type Answerer interface {
	Ask(ctx context.Context, query string) answer.Result
}

// TitleSuggester proposes catalog titles for a misspelled name.
type TitleSuggester interface {
	Suggest(ctx context.Context, text string, limit int) ([]string, error)
}

// DocumentCounter reports document store sizes for /status.
type DocumentCounter interface {
	CountDocuments(ctx context.Context) (int, error)
	CountChunks(ctx context.Context) (int, error)
}

// Deps are the components the handlers call. Titles, Documents and Auth may be nil; Auth nil
// leaves the account endpoints unmounted.
type Deps struct {
	Catalog     *catalog.Catalog
	Index       vector.Index
	Recommender Recommender
	Answerer    Answerer
	Titles      TitleSuggester
	Documents   DocumentCounter
	Auth        *auth.Service
	// Generator is reported by /status; a value with a State() string method also reports
	// its circuit state.
	Generator interface{}
	// WatchDirectories lists the directories kept in sync with the document store.
	WatchDirectories func() []string
}

// Server is the HTTP server for the gamescout API.
type Server struct {
	deps   Deps
	config *config.Config
	logger *zap.Logger
	server *http.Server
}

// NewServer creates a server with the given dependencies.
func NewServer(deps Deps, cfg *config.Config, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{deps: deps, config: cfg, logger: logger}
}

// Handler builds the router.
func (s *Server) Handler() http.Handler {
	sc := s.config.Server
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)
	if sc.RequestTimeout > 0 {
		r.Use(middleware.Timeout(sc.RequestTimeout))
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   sc.CORSOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/health", s.handleHealth)
	r.Get("/status", s.handleStatus)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())
	r.Get("/search", s.handleSearch)

	r.Group(func(r chi.Router) {
		if s.deps.Auth != nil {
			r.Use(auth.Middleware(s.deps.Auth, s.config.Auth.Required))
		}
		r.Post("/recommend", s.handleRecommend)
		r.With(s.chatRateLimit()).Post("/chat", s.handleChat)
	})

	if s.deps.Auth != nil {
		r.Post("/register", s.handleRegister)
		r.Post("/login", s.handleLogin)
		r.With(auth.Middleware(s.deps.Auth, true)).Get("/me", s.handleMe)
	}
	return r
}

func (s *Server) chatRateLimit() func(http.Handler) http.Handler {
	n := s.config.Server.ChatRateLimitPerMinute
	if n <= 0 {
		return func(next http.Handler) http.Handler { return next }
	}
	return httprate.Limit(n, time.Minute,
		httprate.WithKeyFuncs(httprate.KeyByIP),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			s.respondError(w, http.StatusTooManyRequests, "Too many requests")
		}))
}

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Server.Host, s.config.Server.Port)
	s.server = &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.logger.Info("Starting server", zap.String("addr", addr))
	return s.server.ListenAndServe()
}

// Stop gracefully shuts down the server.
func (s *Server) Stop(ctx context.Context) error {
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}
