package config

import "time"

// ApplyDefaults sets default values for any zero values in cfg.
func ApplyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8000
	}
	if cfg.Server.RequestTimeout == 0 {
		cfg.Server.RequestTimeout = 60 * time.Second
	}
	if cfg.Server.CORSOrigins == nil {
		cfg.Server.CORSOrigins = []string{"http://localhost:3000"}
	}
	if cfg.Server.ChatRateLimitPerMinute == 0 {
		cfg.Server.ChatRateLimitPerMinute = 30
	}

	if cfg.Catalog.Path == "" {
		cfg.Catalog.Path = "/usr/local/var/gamescout/data/games.csv"
	}
	if cfg.Catalog.VectorsPath == "" {
		cfg.Catalog.VectorsPath = "/usr/local/var/gamescout/data/game_vectors.npy"
	}
	if cfg.Catalog.IndexType == "" {
		cfg.Catalog.IndexType = "memory"
	}
	if cfg.Catalog.NProbe == 0 {
		cfg.Catalog.NProbe = 10
	}
	if cfg.Catalog.IDColumn == "" {
		cfg.Catalog.IDColumn = "id"
	}
	if cfg.Catalog.NameColumn == "" {
		cfg.Catalog.NameColumn = "name"
	}
	if cfg.Catalog.ReferenceColumn == "" {
		cfg.Catalog.ReferenceColumn = "rag_document"
	}

	if cfg.Recommend.DefaultK == 0 {
		cfg.Recommend.DefaultK = 5
	}
	if cfg.Recommend.MaxK == 0 {
		cfg.Recommend.MaxK = 50
	}
	if cfg.Retrieval.DefaultN == 0 {
		cfg.Retrieval.DefaultN = 5
	}
	if cfg.Retrieval.MaxN == 0 {
		cfg.Retrieval.MaxN = 20
	}

	if cfg.Embedding.Provider == "" {
		cfg.Embedding.Provider = "onnx"
	}
	if cfg.Embedding.ModelPath == "" {
		cfg.Embedding.ModelPath = "/usr/local/var/gamescout/data/models/all-MiniLM-L6-v2.onnx"
	}
	if cfg.Embedding.Dimensions == 0 {
		cfg.Embedding.Dimensions = 384
	}
	if cfg.Embedding.MaxTokens == 0 {
		cfg.Embedding.MaxTokens = 256
	}
	if cfg.Embedding.CacheSize == 0 {
		cfg.Embedding.CacheSize = 10000
	}
	if cfg.Embedding.OllamaURL == "" {
		cfg.Embedding.OllamaURL = "http://localhost:11434"
	}
	if cfg.Embedding.OllamaModel == "" {
		cfg.Embedding.OllamaModel = "all-minilm"
	}

	if cfg.DocumentStore.Backend == "" {
		cfg.DocumentStore.Backend = "sqlite"
	}
	if cfg.DocumentStore.DatabasePath == "" {
		cfg.DocumentStore.DatabasePath = "/usr/local/var/gamescout/data/db/documents.db"
	}
	if cfg.DocumentStore.ChunkSize == 0 {
		cfg.DocumentStore.ChunkSize = 512
	}
	if cfg.DocumentStore.ChunkOverlap == 0 {
		cfg.DocumentStore.ChunkOverlap = 50
	}
	if cfg.DocumentStore.CandidateFactor == 0 {
		cfg.DocumentStore.CandidateFactor = 4
	}
	if cfg.DocumentStore.Extensions == nil {
		cfg.DocumentStore.Extensions = []string{".txt", ".md", ".rst", ".pdf", ".docx", ".xlsx", ".odt", ".rtf"}
	}
	// Recursive defaults to true when unset (nil).
	if len(cfg.DocumentStore.WatchDirectories) > 0 && cfg.DocumentStore.Recursive == nil {
		t := true
		cfg.DocumentStore.Recursive = &t
	}

	if cfg.Generator.Provider == "" {
		cfg.Generator.Provider = "gemini"
	}
	if cfg.Generator.Model == "" {
		switch cfg.Generator.Provider {
		case "ollama":
			cfg.Generator.Model = "llama3.2"
		default:
			cfg.Generator.Model = "gemini-1.5-flash"
		}
	}
	if cfg.Generator.BaseURL == "" {
		switch cfg.Generator.Provider {
		case "ollama":
			cfg.Generator.BaseURL = "http://localhost:11434"
		default:
			cfg.Generator.BaseURL = "https://generativelanguage.googleapis.com/v1beta"
		}
	}
	if cfg.Generator.Timeout == 0 {
		cfg.Generator.Timeout = 30 * time.Second
	}
	if cfg.Generator.MaxOutputTokens == 0 {
		cfg.Generator.MaxOutputTokens = 512
	}
	if cfg.Generator.Breaker.MaxRequests == 0 {
		cfg.Generator.Breaker.MaxRequests = 1
	}
	if cfg.Generator.Breaker.Interval == 0 {
		cfg.Generator.Breaker.Interval = time.Minute
	}
	if cfg.Generator.Breaker.Timeout == 0 {
		cfg.Generator.Breaker.Timeout = 30 * time.Second
	}
	if cfg.Generator.Breaker.MinRequests == 0 {
		cfg.Generator.Breaker.MinRequests = 5
	}
	if cfg.Generator.Breaker.FailureRatio == 0 {
		cfg.Generator.Breaker.FailureRatio = 0.6
	}

	if cfg.Auth.TokenTTL == 0 {
		cfg.Auth.TokenTTL = 30 * time.Minute
	}
	if cfg.Auth.DatabasePath == "" {
		cfg.Auth.DatabasePath = "/usr/local/var/gamescout/data/db/users.db"
	}
}
