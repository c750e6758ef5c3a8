// Package config loads endpointd configuration from an XDG config file
// with environment-variable overrides (ENDPOINTD_*).
package config

import (
	"path/filepath"
)

type Config struct {
	Server   ServerConfig
	Log      LogConfig
	Storage  StorageConfig
	Ollama   OllamaConfig
	Search   SearchConfig
	Synth    SynthConfig
	Postgres PostgresConfig
	MCP      MCPConfig
}

type ServerConfig struct {
	Port int
}

type LogConfig struct {
	Level string
}

type StorageConfig struct {
	DataDir string
	// Explicit overrides; empty means "under DataDir".
	UploadDir string
	DocsDir   string
	VectorDir string
	StaticKB  string
}

// ResolvedUploadDir is where /upload saves files.
func (s StorageConfig) ResolvedUploadDir() string {
	if s.UploadDir != "" {
		return s.UploadDir
	}
	return filepath.Join(s.DataDir, "uploads")
}

// ResolvedDocsDir holds the .txt runbooks scanned by the cascade and
// checked by /drive-attach.
func (s StorageConfig) ResolvedDocsDir() string {
	if s.DocsDir != "" {
		return s.DocsDir
	}
	return filepath.Join(s.DataDir, "data")
}

// ResolvedVectorDir is where the vector index persists.
func (s StorageConfig) ResolvedVectorDir() string {
	if s.VectorDir != "" {
		return s.VectorDir
	}
	return filepath.Join(s.DataDir, "vectors")
}

type OllamaConfig struct {
	BaseURL    string
	EmbedModel string
}

type SearchConfig struct {
	// Backend selects the retrieval path: sqlite, postgres or vector.
	Backend    string
	Collection string
	TopK       int
}

type SynthConfig struct {
	Enabled        bool
	Bin            string
	TimeoutSeconds int
}

type PostgresConfig struct {
	Host     string
	Port     int
	Database string
	User     string
	Password string
	Table    string
	SSLMode  string
}

type MCPConfig struct {
	Enabled bool
}

func defaults() Config {
	return Config{
		Server: ServerConfig{
			Port: 5050,
		},
		Log: LogConfig{
			Level: "info",
		},
		Storage: StorageConfig{
			DataDir: defaultDataDir(),
		},
		Ollama: OllamaConfig{
			BaseURL:    "http://localhost:11434",
			EmbedModel: "nomic-embed-text",
		},
		Search: SearchConfig{
			Backend:    "sqlite",
			Collection: "endpoint_kb",
			TopK:       5,
		},
		Synth: SynthConfig{
			Enabled:        true,
			Bin:            "claude",
			TimeoutSeconds: 120,
		},
		Postgres: PostgresConfig{
			Host:     "localhost",
			Port:     5432,
			Database: "assistant",
			User:     "postgres",
			Table:    "knowledge_base",
			SSLMode:  "disable",
		},
		MCP: MCPConfig{
			Enabled: false,
		},
	}
}

// Load reads configuration from the config file at
// $XDG_CONFIG_HOME/endpointd/config.json, then applies ENDPOINTD_*
// environment overrides. Secrets (the Postgres password) are read from the
// environment only.
func Load() (Config, error) {
	return loadWith(newFileBackend(configFilePath()))
}

func loadWith(b ConfigBackend) (Config, error) {
	cfg := defaults()
	if err := applyBackend(&cfg, b); err != nil {
		return Config{}, err
	}
	applyEnvOverrides(&cfg)
	return cfg, nil
}
