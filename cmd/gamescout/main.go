// Package main is the gamescout CLI entry point.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/hyperjump/gamescout/internal/cli"
	"github.com/hyperjump/gamescout/internal/config"
	"github.com/hyperjump/gamescout/internal/models"
	"github.com/hyperjump/gamescout/internal/server"
	"github.com/hyperjump/gamescout/internal/watcher"
	"github.com/hyperjump/gamescout/pkg/utils"
)

var version = "dev"

const (
	defaultConfigPath = "/usr/local/etc/gamescout/config.yaml"
	defaultServerURL  = "http://localhost:8000"
	envToken          = "GAMESCOUT_TOKEN"
	defaultRating     = 5
)

// loadConfig loads config from path. When path is the default, config.yaml in the current
// directory takes precedence if it exists. Returns the config and the path actually loaded.
func loadConfig(path string) (*config.Config, string, error) {
	if path == defaultConfigPath {
		if cwd, cwdErr := os.Getwd(); cwdErr == nil {
			fallback := filepath.Join(cwd, "config.yaml")
			if _, statErr := os.Stat(fallback); statErr == nil {
				path = fallback
			}
		}
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, "", err
	}
	return cfg, path, nil
}

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "Failed to load .env: %v\n", err)
	}
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}
	command := os.Args[1]
	switch command {
	case "server":
		runServer()
	case "recommend":
		runRecommend()
	case "ask":
		runAsk()
	case "search":
		runSearch()
	case "ingest":
		runIngest()
	case "status":
		runStatus()
	case "version", "--version", "-v":
		fmt.Printf("gamescout version %s\n", version)
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Printf("Unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}
}

func fatalf(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}

// setupDirect loads config and a logger for commands that build components in-process.
func setupDirect(configPath string, debug bool) (*config.Config, *zap.Logger, string) {
	cfg, resolved, err := loadConfig(configPath)
	if err != nil {
		fatalf("Failed to load config: %v", err)
	}
	logger, err := utils.NewLogger(cfg.Debug || debug)
	if err != nil {
		fatalf("Failed to create logger: %v", err)
	}
	logger.Debug("config loaded", zap.String("config_path", resolved))
	return cfg, logger, resolved
}

func parseFormat(s string) cli.OutputFormat {
	f, err := cli.ParseOutputFormat(s)
	if err != nil {
		fatalf("%v", err)
	}
	return f
}

func runServer() {
	flags := flag.NewFlagSet("server", flag.ExitOnError)
	configPath := flags.String("config", defaultConfigPath, "config file path")
	debug := flags.Bool("debug", false, "enable debug logging")
	_ = flags.Parse(os.Args[2:])

	cfg, resolvedConfigPath, err := loadConfig(*configPath)
	if err != nil {
		fatalf("Failed to load config: %v", err)
	}
	debugMode := cfg.Debug || *debug
	logger, err := utils.NewLogger(debugMode)
	if err != nil {
		fatalf("Failed to create logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("config loaded",
		zap.String("config_path", resolvedConfigPath),
		zap.Bool("debug", debugMode))
	if err := cfg.Validate(); err != nil {
		logger.Fatal("Invalid configuration", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	components, err := initializeComponents(ctx, cfg, logger, scopeAll)
	if err != nil {
		logger.Fatal("Failed to initialize components", zap.Error(err))
	}
	defer components.Close()

	if _, err := components.Ingester.IngestCatalog(ctx, components.Catalog); err != nil {
		logger.Fatal("Failed to ingest catalog reference documents", zap.Error(err))
	}

	var watch *watcher.Watcher
	if dirs := cfg.DocumentStore.WatchDirectories; len(dirs) > 0 {
		recursive := cfg.DocumentStore.RecursiveOrDefault()
		for _, dir := range dirs {
			n, err := components.Ingester.IngestDirectory(ctx, dir, recursive)
			switch {
			case errors.Is(err, fs.ErrNotExist):
			case err != nil:
				logger.Warn("initial directory sync failed", zap.String("path", dir), zap.Error(err))
			default:
				logger.Info("directory synced", zap.String("path", dir), zap.Int("written", n))
			}
		}
		watch = watcher.New(dirs, recursive, components.Ingester, watcher.WithLogger(logger))
		if err := watch.Start(ctx); err != nil {
			logger.Fatal("Failed to start watcher", zap.Error(err))
		}
		defer watch.Stop()
	}

	deps := server.Deps{
		Catalog:     components.Catalog,
		Index:       components.Index,
		Recommender: components.Engine,
		Answerer:    components.Pipeline,
		Titles:      components.Titles,
		Documents:   components.Documents,
		Auth:        components.Auth,
		Generator:   components.Generator,
	}
	if watch != nil {
		deps.WatchDirectories = watch.Directories
	}
	srv := server.NewServer(deps, cfg, logger)
	errCh := make(chan error, 1)
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		logger.Error("Server failed", zap.Error(err))
	}

	logger.Info("Shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Stop(shutdownCtx)
}

// argsReorder moves flags that appear after positional arguments to the front so that
// flag.Parse sees them; the flag package stops at the first non-flag argument.
func argsReorder(args []string) []string {
	for i, a := range args {
		if len(a) > 0 && a[0] == '-' {
			if i == 0 {
				return args
			}
			reordered := make([]string, 0, len(args))
			reordered = append(reordered, args[i:]...)
			reordered = append(reordered, args[:i]...)
			return reordered
		}
	}
	return args
}

// joinArgs joins positional args with spaces so multi-word input works with or without
// shell quoting.
func joinArgs(args []string) string {
	return strings.TrimSpace(strings.Join(args, " "))
}

// parseRatedTitles reads "Title=rating" arguments. The rating is taken from the last "=";
// a missing rating counts as defaultRating.
func parseRatedTitles(args []string) ([]string, []int, error) {
	titles := make([]string, 0, len(args))
	ratings := make([]int, 0, len(args))
	for _, a := range args {
		title, rating := a, defaultRating
		if i := strings.LastIndex(a, "="); i >= 0 {
			n, err := strconv.Atoi(strings.TrimSpace(a[i+1:]))
			if err != nil {
				return nil, nil, fmt.Errorf("invalid rating in %q", a)
			}
			title, rating = a[:i], n
		}
		title = strings.TrimSpace(title)
		if title == "" {
			return nil, nil, fmt.Errorf("empty title in %q", a)
		}
		titles = append(titles, title)
		ratings = append(ratings, rating)
	}
	return titles, ratings, nil
}

func runRecommend() {
	flags := flag.NewFlagSet("recommend", flag.ExitOnError)
	configPath := flags.String("config", defaultConfigPath, "config file path (direct mode)")
	serverURL := flags.String("server", defaultServerURL, "server URL (empty = build components directly)")
	token := flags.String("token", os.Getenv(envToken), "bearer token for servers that require login")
	k := flags.Int("k", 0, "number of recommendations (0 = configured default)")
	outputFormat := flags.String("output", "text", "output format: text or json")
	flags.Usage = func() {
		fmt.Fprintf(flags.Output(), "Usage: gamescout recommend [flags] \"Title=rating\" ...\n\n")
		flags.PrintDefaults()
	}
	_ = flags.Parse(argsReorder(os.Args[2:]))
	format := parseFormat(*outputFormat)

	titles, ratings, err := parseRatedTitles(flags.Args())
	if err != nil || len(titles) == 0 {
		flags.Usage()
		os.Exit(1)
	}
	req := &models.RecommendRequest{GameTitles: titles, Ratings: ratings, K: *k}
	ctx := context.Background()

	var resp *models.RecommendResponse
	if *serverURL != "" {
		resp, err = newAPIClient(*serverURL, *token).Recommend(ctx, req)
		if err != nil {
			fatalf("Recommend failed: %v", err)
		}
	} else {
		cfg, logger, _ := setupDirect(*configPath, false)
		defer func() { _ = logger.Sync() }()
		components, err := initializeComponents(ctx, cfg, logger, scopeCatalog)
		if err != nil {
			fatalf("Failed to initialize: %v", err)
		}
		defer components.Close()
		recs, err := components.Engine.Recommend(ctx, titles, ratings, *k)
		if err != nil {
			fatalf("Recommend failed: %v", err)
		}
		resp = &models.RecommendResponse{Recommendations: recs}
		for _, t := range titles {
			if _, ok := components.Catalog.Lookup(t); ok {
				continue
			}
			resp.UnresolvedTitles = append(resp.UnresolvedTitles, t)
			if sugg, err := components.Titles.Suggest(ctx, t, 3); err == nil && len(sugg) > 0 {
				if resp.Suggestions == nil {
					resp.Suggestions = make(map[string][]string)
				}
				resp.Suggestions[t] = sugg
			}
		}
	}
	if err := cli.WriteRecommendations(os.Stdout, resp, format); err != nil {
		fatalf("Output failed: %v", err)
	}
}

func runAsk() {
	flags := flag.NewFlagSet("ask", flag.ExitOnError)
	configPath := flags.String("config", defaultConfigPath, "config file path (direct mode)")
	serverURL := flags.String("server", defaultServerURL, "server URL (empty = build components directly)")
	token := flags.String("token", os.Getenv(envToken), "bearer token for servers that require login")
	outputFormat := flags.String("output", "text", "output format: text or json")
	flags.Usage = func() {
		fmt.Fprintf(flags.Output(), "Usage: gamescout ask [flags] <question>\n\nPut a title in [brackets] to ask about that game only.\n\n")
		flags.PrintDefaults()
	}
	_ = flags.Parse(argsReorder(os.Args[2:]))
	format := parseFormat(*outputFormat)

	query := joinArgs(flags.Args())
	if query == "" {
		flags.Usage()
		os.Exit(1)
	}
	ctx := context.Background()

	var resp *models.ChatResponse
	if *serverURL != "" {
		var err error
		resp, err = newAPIClient(*serverURL, *token).Chat(ctx, query)
		if err != nil {
			fatalf("Ask failed: %v", err)
		}
	} else {
		cfg, logger, _ := setupDirect(*configPath, false)
		defer func() { _ = logger.Sync() }()
		if err := cfg.Validate(); err != nil {
			fatalf("Invalid configuration: %v", err)
		}
		components, err := initializeComponents(ctx, cfg, logger, needDocuments|needAnswers)
		if err != nil {
			fatalf("Failed to initialize: %v", err)
		}
		defer components.Close()
		resp = &models.ChatResponse{Answer: components.Pipeline.Ask(ctx, query).Text}
	}
	if err := cli.WriteAnswer(os.Stdout, resp, format); err != nil {
		fatalf("Output failed: %v", err)
	}
}

func runSearch() {
	flags := flag.NewFlagSet("search", flag.ExitOnError)
	configPath := flags.String("config", defaultConfigPath, "config file path (direct mode)")
	serverURL := flags.String("server", defaultServerURL, "server URL (empty = build components directly)")
	limit := flags.Int("limit", 10, "maximum number of titles")
	outputFormat := flags.String("output", "text", "output format: text or json")
	flags.Usage = func() {
		fmt.Fprintf(flags.Output(), "Usage: gamescout search [flags] <title fragment>\n\n")
		flags.PrintDefaults()
	}
	_ = flags.Parse(argsReorder(os.Args[2:]))
	format := parseFormat(*outputFormat)

	q := joinArgs(flags.Args())
	if q == "" || *limit <= 0 {
		flags.Usage()
		os.Exit(1)
	}
	ctx := context.Background()

	var resp *models.SearchResponse
	if *serverURL != "" {
		var err error
		resp, err = newAPIClient(*serverURL, "").Search(ctx, q, *limit)
		if err != nil {
			fatalf("Search failed: %v", err)
		}
	} else {
		cfg, logger, _ := setupDirect(*configPath, false)
		defer func() { _ = logger.Sync() }()
		components, err := initializeComponents(ctx, cfg, logger, scopeCatalog)
		if err != nil {
			fatalf("Failed to initialize: %v", err)
		}
		defer components.Close()
		resp = &models.SearchResponse{Query: q, Results: components.Catalog.Search(q, *limit)}
		if len(resp.Results) == 0 {
			if sugg, err := components.Titles.Suggest(ctx, q, min(*limit, 6)); err == nil && len(sugg) > 0 {
				resp.Suggestions = sugg
			}
		}
	}
	if err := cli.WriteSearch(os.Stdout, resp, format); err != nil {
		fatalf("Output failed: %v", err)
	}
}

func runIngest() {
	flags := flag.NewFlagSet("ingest", flag.ExitOnError)
	configPath := flags.String("config", defaultConfigPath, "config file path")
	withCatalog := flags.Bool("catalog", false, "also store catalog reference documents")
	watch := flags.Bool("watch", false, "add ingested directories to document_store.watch_directories in the config file")
	debug := flags.Bool("debug", false, "enable debug logging")
	flags.Usage = func() {
		fmt.Fprintf(flags.Output(), "Usage: gamescout ingest [flags] [file-or-directory ...]\n\n")
		fmt.Fprintf(flags.Output(), "Without paths, ingests the catalog and every configured watch directory.\n")
		fmt.Fprintf(flags.Output(), "Run it while the server is stopped; a running server picks up files in watched directories itself.\n\n")
		flags.PrintDefaults()
	}
	_ = flags.Parse(argsReorder(os.Args[2:]))

	cfg, logger, resolved := setupDirect(*configPath, *debug)
	defer func() { _ = logger.Sync() }()
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	components, err := initializeComponents(ctx, cfg, logger, needDocuments)
	if err != nil {
		fatalf("Failed to initialize: %v", err)
	}
	defer components.Close()

	paths := flags.Args()
	if len(paths) == 0 {
		*withCatalog = true
		paths = cfg.DocumentStore.WatchDirectories
	}
	if *withCatalog {
		n, err := components.Ingester.IngestCatalog(ctx, components.Catalog)
		if err != nil {
			fatalf("Catalog ingestion failed: %v", err)
		}
		fmt.Printf("Stored %d catalog document(s)\n", n)
	}
	recursive := cfg.DocumentStore.RecursiveOrDefault()
	var dirs []string
	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil {
			fatalf("Failed to stat path: %v", err)
		}
		if info.IsDir() {
			n, err := components.Ingester.IngestDirectory(ctx, p, recursive)
			if err != nil {
				fatalf("Ingesting directory failed: %v", err)
			}
			fmt.Printf("Stored %d file(s) from %s\n", n, p)
			dirs = append(dirs, p)
			continue
		}
		written, err := components.Ingester.IngestFile(ctx, p)
		if err != nil {
			fatalf("Ingesting %s failed: %v", p, err)
		}
		if written {
			fmt.Printf("Stored %s\n", p)
		} else {
			fmt.Printf("Unchanged: %s\n", p)
		}
	}
	if *watch && len(flags.Args()) > 0 {
		added, err := addWatchDirectories(cfg, dirs)
		if err != nil {
			fatalf("Failed to resolve watch directory: %v", err)
		}
		if len(added) == 0 {
			return
		}
		if err := config.Save(resolved, cfg); err != nil {
			fatalf("Failed to save config: %v", err)
		}
		for _, d := range added {
			fmt.Printf("Watching %s\n", d)
		}
	}
}

// addWatchDirectories appends the absolute form of each dir not already watched and
// returns the ones added.
func addWatchDirectories(cfg *config.Config, dirs []string) ([]string, error) {
	seen := make(map[string]struct{}, len(cfg.DocumentStore.WatchDirectories))
	for _, d := range cfg.DocumentStore.WatchDirectories {
		seen[filepath.Clean(d)] = struct{}{}
	}
	var added []string
	for _, d := range dirs {
		abs, err := filepath.Abs(d)
		if err != nil {
			return nil, err
		}
		if _, ok := seen[abs]; ok {
			continue
		}
		seen[abs] = struct{}{}
		cfg.DocumentStore.WatchDirectories = append(cfg.DocumentStore.WatchDirectories, abs)
		added = append(added, abs)
	}
	return added, nil
}

func runStatus() {
	flags := flag.NewFlagSet("status", flag.ExitOnError)
	configPath := flags.String("config", defaultConfigPath, "config file path (direct mode)")
	serverURL := flags.String("server", defaultServerURL, "server URL (empty = build components directly)")
	outputFormat := flags.String("output", "text", "output format: text or json")
	_ = flags.Parse(os.Args[2:])
	format := parseFormat(*outputFormat)
	ctx := context.Background()

	var st *models.StatusResponse
	if *serverURL != "" {
		var err error
		st, err = newAPIClient(*serverURL, "").Status(ctx)
		if err != nil {
			fatalf("Status failed: %v", err)
		}
	} else {
		cfg, logger, _ := setupDirect(*configPath, false)
		defer func() { _ = logger.Sync() }()
		components, err := initializeComponents(ctx, cfg, logger, needDocuments)
		if err != nil {
			fatalf("Failed to initialize: %v", err)
		}
		defer components.Close()
		st, err = directStatus(ctx, cfg, components)
		if err != nil {
			fatalf("Status failed: %v", err)
		}
	}
	if err := cli.WriteStatus(os.Stdout, st, format); err != nil {
		fatalf("Output failed: %v", err)
	}
}

func directStatus(ctx context.Context, cfg *config.Config, c *Components) (*models.StatusResponse, error) {
	docs, err := c.Documents.CountDocuments(ctx)
	if err != nil {
		return nil, fmt.Errorf("count documents: %w", err)
	}
	chunks, err := c.Documents.CountChunks(ctx)
	if err != nil {
		return nil, fmt.Errorf("count chunks: %w", err)
	}
	return &models.StatusResponse{
		CatalogSize:      c.Catalog.Len(),
		IndexType:        c.Index.Type(),
		IndexSize:        c.Index.Size(),
		Dimensions:       c.Catalog.Dimensions(),
		DocumentStore:    cfg.DocumentStore.Backend,
		Documents:        docs,
		Chunks:           chunks,
		Generator:        cfg.Generator.Provider,
		WatchDirectories: cfg.DocumentStore.WatchDirectories,
	}, nil
}

func printUsage() {
	fmt.Println(`gamescout - game recommendations and grounded game Q&A

Usage:
  gamescout server [flags]                     Start the HTTP server
  gamescout recommend [flags] "Title=rating"   Recommend games similar to rated titles
  gamescout ask [flags] <question>             Ask a question about games
  gamescout search [flags] <fragment>          Find catalog titles
  gamescout ingest [flags] [path ...]          Store reference documents
  gamescout status [flags]                     Show catalog, index and document store status
  gamescout version                            Show version
  gamescout help                               Show this help

Common Flags:
  --config string    Config file path (default: /usr/local/etc/gamescout/config.yaml)
  --server string    Server URL (default: http://localhost:8000). Use --server "" to build
                     components directly when the server is not running.
  --output string    Output format: text or json (default: text)
  --token string     Bearer token when the server requires login (default: $GAMESCOUT_TOKEN)

Secrets are read from the environment or a .env file in the working directory:
  GOOGLE_API_KEY, SECRET_KEY, GAMESCOUT_POSTGRES_DSN

Examples:
  gamescout server --debug
  gamescout recommend "The Witcher 3: Wild Hunt=10" "Red Dead Redemption 2=9" --k 10
  gamescout ask "What is [Stardew Valley] about?"
  gamescout ask --output json "Which games have co-op farming?"
  gamescout search --limit 5 zelda
  gamescout ingest --watch ./docs
  gamescout status --server ""`)
}
