// Package config provides configuration loading and structs for the gamescout server.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Environment variables that override secrets in the config file.
const (
	EnvGoogleAPIKey = "GOOGLE_API_KEY"
	EnvSecretKey    = "SECRET_KEY"
	EnvPostgresDSN  = "GAMESCOUT_POSTGRES_DSN"
)

// Config holds all configuration for the application.
type Config struct {
	Debug         bool                `yaml:"debug"`
	Server        ServerConfig        `yaml:"server"`
	Catalog       CatalogConfig       `yaml:"catalog"`
	Recommend     RecommendConfig     `yaml:"recommend"`
	Retrieval     RetrievalConfig     `yaml:"retrieval"`
	Embedding     EmbeddingConfig     `yaml:"embedding"`
	DocumentStore DocumentStoreConfig `yaml:"document_store"`
	Generator     GeneratorConfig     `yaml:"generator"`
	Auth          AuthConfig          `yaml:"auth"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host                   string        `yaml:"host"`
	Port                   int           `yaml:"port"`
	RequestTimeout         time.Duration `yaml:"request_timeout"`
	CORSOrigins            []string      `yaml:"cors_origins"`
	ChatRateLimitPerMinute int           `yaml:"chat_rate_limit_per_minute"`
}

// CatalogConfig locates the catalog table, its embedding matrix and the optional prebuilt index.
type CatalogConfig struct {
	Path            string `yaml:"path"`
	VectorsPath     string `yaml:"vectors_path"`
	IndexPath       string `yaml:"index_path"`
	IndexType       string `yaml:"index_type"`
	NProbe          int    `yaml:"nprobe"`
	IDColumn        string `yaml:"id_column"`
	NameColumn      string `yaml:"name_column"`
	ReferenceColumn string `yaml:"reference_column"`
}

type RecommendConfig struct {
	DefaultK int `yaml:"default_k"`
	MaxK     int `yaml:"max_k"`
}

type RetrievalConfig struct {
	DefaultN int `yaml:"default_n"`
	MaxN     int `yaml:"max_n"`
}

// EmbeddingConfig selects the text embedder used for questions and reference documents.
type EmbeddingConfig struct {
	Provider    string `yaml:"provider"`
	ModelPath   string `yaml:"model_path"`
	Dimensions  int    `yaml:"dimensions"`
	MaxTokens   int    `yaml:"max_tokens"`
	CacheSize   int    `yaml:"cache_size"`
	OllamaURL   string `yaml:"ollama_url"`
	OllamaModel string `yaml:"ollama_model"`
}

// DocumentStoreConfig holds the semantic document store and ingestion settings.
type DocumentStoreConfig struct {
	Backend          string   `yaml:"backend"`
	DatabasePath     string   `yaml:"database_path"`
	PostgresDSN      string   `yaml:"postgres_dsn"`
	ChunkSize        int      `yaml:"chunk_size"`
	ChunkOverlap     int      `yaml:"chunk_overlap"`
	CandidateFactor  int      `yaml:"candidate_factor"`
	WatchDirectories []string `yaml:"watch_directories"`
	Extensions       []string `yaml:"extensions"`
	Recursive        *bool    `yaml:"recursive"`
}

// RecursiveOrDefault returns whether to watch recursively; defaults to true when unset.
func (d *DocumentStoreConfig) RecursiveOrDefault() bool {
	if d.Recursive != nil {
		return *d.Recursive
	}
	return true
}

// GeneratorConfig selects the text generation backend.
type GeneratorConfig struct {
	Provider        string        `yaml:"provider"`
	Model           string        `yaml:"model"`
	APIKey          string        `yaml:"api_key,omitempty"`
	BaseURL         string        `yaml:"base_url"`
	Timeout         time.Duration `yaml:"timeout"`
	MaxOutputTokens int           `yaml:"max_output_tokens"`
	Temperature     float64       `yaml:"temperature"`
	Breaker         BreakerConfig `yaml:"breaker"`
}

// BreakerConfig tunes the circuit breaker around the generator.
type BreakerConfig struct {
	MaxRequests  uint32        `yaml:"max_requests"`
	Interval     time.Duration `yaml:"interval"`
	Timeout      time.Duration `yaml:"timeout"`
	MinRequests  uint32        `yaml:"min_requests"`
	FailureRatio float64       `yaml:"failure_ratio"`
}

// AuthConfig controls the account endpoints and bearer-token protection.
type AuthConfig struct {
	Enabled      bool          `yaml:"enabled"`
	Required     bool          `yaml:"required"`
	SecretKey    string        `yaml:"secret_key,omitempty"`
	TokenTTL     time.Duration `yaml:"token_ttl"`
	DatabasePath string        `yaml:"database_path"`
}

// Load reads and parses the config file at path, expands paths, applies defaults and
// environment overrides. Returns an error if the file cannot be read or parsed.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	ApplyDefaults(&cfg)
	ApplyEnv(&cfg)

	configDir := filepath.Dir(path)
	cfg.Catalog.Path = expandPath(cfg.Catalog.Path, configDir)
	cfg.Catalog.VectorsPath = expandPath(cfg.Catalog.VectorsPath, configDir)
	if cfg.Catalog.IndexPath != "" {
		cfg.Catalog.IndexPath = expandPath(cfg.Catalog.IndexPath, configDir)
	}
	cfg.Embedding.ModelPath = expandPath(cfg.Embedding.ModelPath, configDir)
	cfg.DocumentStore.DatabasePath = expandPath(cfg.DocumentStore.DatabasePath, configDir)
	cfg.Auth.DatabasePath = expandPath(cfg.Auth.DatabasePath, configDir)
	for i := range cfg.DocumentStore.WatchDirectories {
		cfg.DocumentStore.WatchDirectories[i] = expandPath(cfg.DocumentStore.WatchDirectories[i], configDir)
	}

	return &cfg, nil
}

// ApplyEnv copies secrets from the environment over the values in cfg.
func ApplyEnv(cfg *Config) {
	if v := os.Getenv(EnvGoogleAPIKey); v != "" {
		cfg.Generator.APIKey = v
	}
	if v := os.Getenv(EnvSecretKey); v != "" {
		cfg.Auth.SecretKey = v
	}
	if v := os.Getenv(EnvPostgresDSN); v != "" {
		cfg.DocumentStore.PostgresDSN = v
	}
}

// Validate rejects unknown provider names and missing secrets for the selected providers.
func (c *Config) Validate() error {
	switch c.Catalog.IndexType {
	case "memory", "faiss":
	default:
		return fmt.Errorf("unknown catalog index type %q", c.Catalog.IndexType)
	}
	switch c.Embedding.Provider {
	case "onnx", "ollama", "hash":
	default:
		return fmt.Errorf("unknown embedding provider %q", c.Embedding.Provider)
	}
	switch c.DocumentStore.Backend {
	case "sqlite":
	case "pgvector":
		if c.DocumentStore.PostgresDSN == "" {
			return fmt.Errorf("document_store.postgres_dsn is required for the pgvector backend")
		}
	default:
		return fmt.Errorf("unknown document store backend %q", c.DocumentStore.Backend)
	}
	switch c.Generator.Provider {
	case "gemini":
		if c.Generator.APIKey == "" {
			return fmt.Errorf("generator api key is required for gemini (set %s)", EnvGoogleAPIKey)
		}
	case "ollama":
	default:
		return fmt.Errorf("unknown generator provider %q", c.Generator.Provider)
	}
	if c.Auth.Enabled && c.Auth.SecretKey == "" {
		return fmt.Errorf("auth secret key is required when auth is enabled (set %s)", EnvSecretKey)
	}
	if c.Auth.Required && !c.Auth.Enabled {
		return fmt.Errorf("auth.required needs auth.enabled")
	}
	return nil
}

// Save writes the config to path. Secrets are never written.
func Save(path string, cfg *Config) error {
	out := *cfg
	out.Generator.APIKey = ""
	out.Auth.SecretKey = ""
	data, err := yaml.Marshal(&out)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// expandPath converts a path to absolute. Paths starting with "./" are relative to configDir;
// other relative paths are relative to the home directory.
func expandPath(path string, configDir string) string {
	if filepath.IsAbs(path) {
		return path
	}
	if strings.HasPrefix(path, "./") || path == "." {
		return filepath.Join(configDir, path)
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, path)
	}
	return path
}
