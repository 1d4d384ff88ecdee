package main

import (
	"context"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/hyperjump/gamescout/internal/catalog"
	"github.com/hyperjump/gamescout/internal/config"
	"github.com/hyperjump/gamescout/internal/retrieval"
)

func TestArgsReorder(t *testing.T) {
	tests := []struct {
		name     string
		args     []string
		expected []string
	}{
		{
			name:     "flags after positionals are moved first",
			args:     []string{"Doom=9", "-k", "3"},
			expected: []string{"-k", "3", "Doom=9"},
		},
		{
			name:     "flags first returns unchanged",
			args:     []string{"-k", "3", "Doom=9"},
			expected: []string{"-k", "3", "Doom=9"},
		},
		{
			name:     "positionals only returns unchanged",
			args:     []string{"what is [Doom]?"},
			expected: []string{"what is [Doom]?"},
		},
		{
			name:     "empty args returns unchanged",
			args:     []string{},
			expected: []string{},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := argsReorder(tt.args)
			if !reflect.DeepEqual(got, tt.expected) {
				t.Errorf("argsReorder() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestJoinArgs(t *testing.T) {
	tests := []struct {
		args []string
		want string
	}{
		{[]string{"what", "is", "[Doom]?"}, "what is [Doom]?"},
		{[]string{"what is [Doom]?"}, "what is [Doom]?"},
		{[]string{}, ""},
		{[]string{"  ", " "}, ""},
	}
	for _, tt := range tests {
		if got := joinArgs(tt.args); got != tt.want {
			t.Errorf("joinArgs(%v) = %q, want %q", tt.args, got, tt.want)
		}
	}
}

func TestParseRatedTitles(t *testing.T) {
	titles, ratings, err := parseRatedTitles([]string{"The Witcher 3: Wild Hunt=10", "Doom", "A=B Game = 7"})
	if err != nil {
		t.Fatal(err)
	}
	wantTitles := []string{"The Witcher 3: Wild Hunt", "Doom", "A=B Game"}
	wantRatings := []int{10, defaultRating, 7}
	if !reflect.DeepEqual(titles, wantTitles) || !reflect.DeepEqual(ratings, wantRatings) {
		t.Errorf("parseRatedTitles() = %v %v, want %v %v", titles, ratings, wantTitles, wantRatings)
	}

	for _, bad := range []string{"Doom=ten", "=5", "  "} {
		if _, _, err := parseRatedTitles([]string{bad}); err == nil {
			t.Errorf("parseRatedTitles(%q): expected error", bad)
		}
	}
}

func TestRetrievalN(t *testing.T) {
	if got := retrievalN(config.RetrievalConfig{DefaultN: 5, MaxN: 20}); got != 5 {
		t.Errorf("retrievalN = %d, want 5", got)
	}
	if got := retrievalN(config.RetrievalConfig{DefaultN: 50, MaxN: 20}); got != 20 {
		t.Errorf("retrievalN = %d, want 20", got)
	}
}

func TestAddWatchDirectories(t *testing.T) {
	dir := t.TempDir()
	existing := filepath.Join(dir, "lore")
	cfg := &config.Config{}
	cfg.DocumentStore.WatchDirectories = []string{existing}

	added, err := addWatchDirectories(cfg, []string{existing, filepath.Join(dir, "guides"), filepath.Join(dir, "guides")})
	if err != nil {
		t.Fatal(err)
	}
	want := []string{filepath.Join(dir, "guides")}
	if !reflect.DeepEqual(added, want) {
		t.Errorf("added = %v, want %v", added, want)
	}
	if len(cfg.DocumentStore.WatchDirectories) != 2 {
		t.Errorf("watch directories = %v", cfg.DocumentStore.WatchDirectories)
	}
}

func TestLoadConfig_prefersCwdConfigWhenDefaultPath(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "config.yaml")
	content := `
debug: true
server:
  host: "localhost"
  port: 8080
`
	if err := os.WriteFile(configPath, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}
	origWd, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = os.Chdir(origWd) }()
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}

	cfg, resolved, err := loadConfig(defaultConfigPath)
	if err != nil {
		t.Fatal(err)
	}
	// On macOS, cwd can be /private/var/... while t.TempDir() is /var/...; compare canonical paths.
	resolvedCanon, _ := filepath.EvalSymlinks(resolved)
	configPathCanon, _ := filepath.EvalSymlinks(configPath)
	if resolvedCanon != configPathCanon {
		t.Errorf("resolved path = %s, want %s", resolvedCanon, configPathCanon)
	}
	if !cfg.Debug {
		t.Error("debug should be true from cwd config.yaml")
	}
}

func TestLoadConfig_usesExplicitPath(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "config.yaml")
	content := `
server:
  host: "127.0.0.1"
  port: 9000
`
	if err := os.WriteFile(configPath, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}
	cfg, resolved, err := loadConfig(configPath)
	if err != nil {
		t.Fatal(err)
	}
	if resolved != configPath {
		t.Errorf("resolved path = %s, want %s", resolved, configPath)
	}
	if cfg.Server.Host != "127.0.0.1" || cfg.Server.Port != 9000 {
		t.Errorf("unexpected server config: %+v", cfg.Server)
	}
}

// writeTestCatalog writes a four-game catalog table and its vectors under dir.
func writeTestCatalog(t *testing.T, dir string) (tablePath, vectorsPath string) {
	t.Helper()
	tablePath = filepath.Join(dir, "games.csv")
	table := strings.Join([]string{
		"id,name,rag_document",
		`10,Stardew Valley,"Stardew Valley is a farming simulation with crops and fishing."`,
		`11,Harvest Moon,"Harvest Moon is a farming game about a small ranch."`,
		`12,Doom,"Doom is a fast first-person shooter fighting demons."`,
		`13,Quake,"Quake is a first-person shooter with arena deathmatch."`,
	}, "\n") + "\n"
	if err := os.WriteFile(tablePath, []byte(table), 0644); err != nil {
		t.Fatal(err)
	}
	vectorsPath = filepath.Join(dir, "game_vectors.npy")
	f, err := os.Create(vectorsPath)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	rows := [][]float32{{0, 0}, {0.1, 0}, {5, 5}, {5.2, 5}}
	if err := catalog.EncodeNPY(f, rows); err != nil {
		t.Fatal(err)
	}
	return tablePath, vectorsPath
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()
	table, vectors := writeTestCatalog(t, dir)
	cfg := &config.Config{}
	config.ApplyDefaults(cfg)
	cfg.Catalog.Path = table
	cfg.Catalog.VectorsPath = vectors
	cfg.Catalog.IndexPath = filepath.Join(dir, "catalog.index")
	cfg.Embedding.Provider = "hash"
	cfg.Embedding.Dimensions = 16
	cfg.DocumentStore.Backend = "sqlite"
	cfg.DocumentStore.DatabasePath = filepath.Join(dir, "docs.db")
	return cfg
}

func TestInitializeComponents_CatalogScope(t *testing.T) {
	cfg := testConfig(t)
	ctx := context.Background()
	c, err := initializeComponents(ctx, cfg, zap.NewNop(), scopeCatalog)
	if err != nil {
		t.Fatal(err)
	}
	defer c.Close()

	if c.Catalog.Len() != 4 || c.Index.Size() != 4 {
		t.Fatalf("catalog=%d index=%d, want 4 and 4", c.Catalog.Len(), c.Index.Size())
	}
	if c.Documents != nil || c.Pipeline != nil || c.Auth != nil {
		t.Error("catalog scope should not build documents, answers or auth")
	}
	recs, err := c.Engine.Recommend(ctx, []string{"stardew valley"}, []int{9}, 1)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(recs, []string{"Harvest Moon"}) {
		t.Errorf("Recommend = %v, want [Harvest Moon]", recs)
	}
	if _, err := os.Stat(cfg.Catalog.IndexPath); err != nil {
		t.Errorf("built index should be saved: %v", err)
	}
}

func TestInitializeComponents_ReusesSavedIndex(t *testing.T) {
	cfg := testConfig(t)
	ctx := context.Background()
	c, err := initializeComponents(ctx, cfg, zap.NewNop(), scopeCatalog)
	if err != nil {
		t.Fatal(err)
	}
	c.Close()

	c, err = initializeComponents(ctx, cfg, zap.NewNop(), scopeCatalog)
	if err != nil {
		t.Fatalf("reopen with saved index: %v", err)
	}
	defer c.Close()
	if c.Index.Size() != 4 {
		t.Errorf("index size = %d, want 4", c.Index.Size())
	}
}

func TestLoadCatalogIndex_SizeMismatch(t *testing.T) {
	cfg := testConfig(t)
	ctx := context.Background()
	big, err := catalog.New([]catalog.Item{
		{DisplayName: "A", Embedding: []float32{0, 0}},
		{DisplayName: "B", Embedding: []float32{1, 0}},
		{DisplayName: "C", Embedding: []float32{0, 1}},
		{DisplayName: "D", Embedding: []float32{1, 1}},
		{DisplayName: "E", Embedding: []float32{2, 2}},
	})
	if err != nil {
		t.Fatal(err)
	}
	c, err := initializeComponents(ctx, cfg, zap.NewNop(), scopeCatalog)
	if err != nil {
		t.Fatal(err)
	}
	c.Close()

	if _, err := loadCatalogIndex(ctx, cfg.Catalog, big, zap.NewNop()); err == nil {
		t.Fatal("expected error for an index smaller than the catalog")
	}
}

func TestInitializeComponents_DocumentsScope(t *testing.T) {
	cfg := testConfig(t)
	ctx := context.Background()
	c, err := initializeComponents(ctx, cfg, zap.NewNop(), needDocuments)
	if err != nil {
		t.Fatal(err)
	}
	defer c.Close()

	n, err := c.Ingester.IngestCatalog(ctx, c.Catalog)
	if err != nil {
		t.Fatal(err)
	}
	if n != 4 {
		t.Errorf("IngestCatalog wrote %d, want 4", n)
	}
	again, err := c.Ingester.IngestCatalog(ctx, c.Catalog)
	if err != nil {
		t.Fatal(err)
	}
	if again != 0 {
		t.Errorf("second IngestCatalog wrote %d, want 0 for unchanged content", again)
	}

	bundle, err := c.Retriever.Retrieve(ctx, "Tell me about [Doom]", 5)
	if err != nil {
		t.Fatal(err)
	}
	if bundle.Route != retrieval.RouteExact || len(bundle.Contexts) != 1 ||
		!strings.Contains(bundle.Contexts[0], "first-person shooter fighting demons") {
		t.Errorf("unexpected title bundle: %+v", bundle)
	}

	bundle, err = c.Retriever.Retrieve(ctx, "farming games", 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(bundle.Contexts) != 2 {
		t.Errorf("semantic retrieval returned %d contexts, want 2", len(bundle.Contexts))
	}

	st, err := directStatus(ctx, cfg, c)
	if err != nil {
		t.Fatal(err)
	}
	if st.Documents != 4 || st.CatalogSize != 4 {
		t.Errorf("status = %+v", st)
	}
}
