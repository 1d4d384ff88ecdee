package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoad(t *testing.T) {
	t.Setenv(EnvGoogleAPIKey, "")
	path := writeConfig(t, `
server:
  host: "127.0.0.1"
  port: 9000
catalog:
  path: "games.csv"
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Server.Host != "127.0.0.1" || cfg.Server.Port != 9000 {
		t.Errorf("unexpected server config: %+v", cfg.Server)
	}
	if !filepath.IsAbs(cfg.Catalog.Path) {
		t.Errorf("catalog path should be absolute, got %q", cfg.Catalog.Path)
	}
	if cfg.Debug {
		t.Error("debug should default to false when unset")
	}
	if cfg.Recommend.DefaultK != 5 {
		t.Errorf("default k = %d, want 5", cfg.Recommend.DefaultK)
	}
	if cfg.Catalog.NProbe != 10 {
		t.Errorf("nprobe = %d, want 10", cfg.Catalog.NProbe)
	}
	if cfg.Generator.Model != "gemini-1.5-flash" {
		t.Errorf("generator model = %q", cfg.Generator.Model)
	}
}

func TestLoad_durations(t *testing.T) {
	path := writeConfig(t, `
generator:
  provider: ollama
  timeout: 5s
auth:
  token_ttl: 1h
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Generator.Timeout != 5*time.Second {
		t.Errorf("timeout = %v", cfg.Generator.Timeout)
	}
	if cfg.Auth.TokenTTL != time.Hour {
		t.Errorf("token ttl = %v", cfg.Auth.TokenTTL)
	}
	if cfg.Generator.BaseURL != "http://localhost:11434" {
		t.Errorf("ollama base url = %q", cfg.Generator.BaseURL)
	}
}

func TestLoad_expandPathDotSlashRelativeToConfigDir(t *testing.T) {
	path := writeConfig(t, `
catalog:
  path: "./data/games.csv"
  vectors_path: "./data/game_vectors.npy"
document_store:
  database_path: "./data/db/documents.db"
  watch_directories: ["./docs"]
`)
	dir := filepath.Dir(path)
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if want := filepath.Join(dir, "data", "games.csv"); cfg.Catalog.Path != want {
		t.Errorf("catalog path = %q, want %q", cfg.Catalog.Path, want)
	}
	if want := filepath.Join(dir, "data", "db", "documents.db"); cfg.DocumentStore.DatabasePath != want {
		t.Errorf("database path = %q, want %q", cfg.DocumentStore.DatabasePath, want)
	}
	if want := filepath.Join(dir, "docs"); cfg.DocumentStore.WatchDirectories[0] != want {
		t.Errorf("watch dir = %q, want %q", cfg.DocumentStore.WatchDirectories[0], want)
	}
	if !cfg.DocumentStore.RecursiveOrDefault() {
		t.Error("recursive should default to true")
	}
}

func TestLoad_envOverridesSecrets(t *testing.T) {
	t.Setenv(EnvGoogleAPIKey, "env-key")
	t.Setenv(EnvSecretKey, "env-secret")
	path := writeConfig(t, `
generator:
  api_key: "file-key"
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Generator.APIKey != "env-key" {
		t.Errorf("api key = %q", cfg.Generator.APIKey)
	}
	if cfg.Auth.SecretKey != "env-secret" {
		t.Errorf("secret key = %q", cfg.Auth.SecretKey)
	}
}

func TestLoad_missingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestLoad_invalidYAML(t *testing.T) {
	path := writeConfig(t, "server: [unclosed")
	if _, err := Load(path); err == nil {
		t.Error("expected parse error")
	}
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		cfg := &Config{}
		ApplyDefaults(cfg)
		cfg.Generator.APIKey = "k"
		return cfg
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"defaults with key", func(*Config) {}, false},
		{"unknown index type", func(c *Config) { c.Catalog.IndexType = "annoy" }, true},
		{"unknown embedder", func(c *Config) { c.Embedding.Provider = "bert" }, true},
		{"unknown backend", func(c *Config) { c.DocumentStore.Backend = "chroma" }, true},
		{"pgvector without dsn", func(c *Config) { c.DocumentStore.Backend = "pgvector" }, true},
		{"gemini without key", func(c *Config) { c.Generator.APIKey = "" }, true},
		{"ollama without key", func(c *Config) { c.Generator.APIKey = ""; c.Generator.Provider = "ollama" }, false},
		{"auth without secret", func(c *Config) { c.Auth.Enabled = true }, true},
		{"required without enabled", func(c *Config) { c.Auth.Required = true }, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestSave_omitsSecrets(t *testing.T) {
	cfg := &Config{}
	ApplyDefaults(cfg)
	cfg.Generator.APIKey = "secret-api"
	cfg.Auth.SecretKey = "secret-jwt"

	path := filepath.Join(t.TempDir(), "out.yaml")
	if err := Save(path, cfg); err != nil {
		t.Fatal(err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	for _, secret := range []string{"secret-api", "secret-jwt"} {
		if strings.Contains(string(data), secret) {
			t.Errorf("saved config contains %q", secret)
		}
	}
	if cfg.Generator.APIKey != "secret-api" {
		t.Error("Save must not modify the caller's config")
	}
}

