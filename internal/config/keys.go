package config

import (
	"fmt"
	"os"
	"strconv"
)

type keyType int

const (
	kString keyType = iota
	kInt
	kBool
)

type keySpec struct {
	key     string
	typ     keyType
	env     string
	secret  bool
	apply   func(cfg *Config, v any)
	extract func(cfg Config) any
}

var specs = []keySpec{
	{
		key: "server.port", typ: kInt, env: "ENDPOINTD_SERVER_PORT",
		apply:   func(cfg *Config, v any) { cfg.Server.Port = v.(int) },
		extract: func(cfg Config) any { return cfg.Server.Port },
	},
	{
		key: "log.level", typ: kString, env: "ENDPOINTD_LOG_LEVEL",
		apply:   func(cfg *Config, v any) { cfg.Log.Level = v.(string) },
		extract: func(cfg Config) any { return cfg.Log.Level },
	},
	{
		key: "storage.data_dir", typ: kString, env: "ENDPOINTD_STORAGE_DATA_DIR",
		apply:   func(cfg *Config, v any) { cfg.Storage.DataDir = v.(string) },
		extract: func(cfg Config) any { return cfg.Storage.DataDir },
	},
	{
		key: "storage.upload_dir", typ: kString, env: "ENDPOINTD_STORAGE_UPLOAD_DIR",
		apply:   func(cfg *Config, v any) { cfg.Storage.UploadDir = v.(string) },
		extract: func(cfg Config) any { return cfg.Storage.UploadDir },
	},
	{
		key: "storage.docs_dir", typ: kString, env: "ENDPOINTD_STORAGE_DOCS_DIR",
		apply:   func(cfg *Config, v any) { cfg.Storage.DocsDir = v.(string) },
		extract: func(cfg Config) any { return cfg.Storage.DocsDir },
	},
	{
		key: "storage.vector_dir", typ: kString, env: "ENDPOINTD_STORAGE_VECTOR_DIR",
		apply:   func(cfg *Config, v any) { cfg.Storage.VectorDir = v.(string) },
		extract: func(cfg Config) any { return cfg.Storage.VectorDir },
	},
	{
		key: "storage.static_kb", typ: kString, env: "ENDPOINTD_STATIC_KB",
		apply:   func(cfg *Config, v any) { cfg.Storage.StaticKB = v.(string) },
		extract: func(cfg Config) any { return cfg.Storage.StaticKB },
	},
	{
		key: "ollama.base_url", typ: kString, env: "ENDPOINTD_OLLAMA_BASE_URL",
		apply:   func(cfg *Config, v any) { cfg.Ollama.BaseURL = v.(string) },
		extract: func(cfg Config) any { return cfg.Ollama.BaseURL },
	},
	{
		key: "ollama.embed_model", typ: kString, env: "ENDPOINTD_OLLAMA_EMBED_MODEL",
		apply:   func(cfg *Config, v any) { cfg.Ollama.EmbedModel = v.(string) },
		extract: func(cfg Config) any { return cfg.Ollama.EmbedModel },
	},
	{
		key: "search.backend", typ: kString, env: "ENDPOINTD_SEARCH_BACKEND",
		apply:   func(cfg *Config, v any) { cfg.Search.Backend = v.(string) },
		extract: func(cfg Config) any { return cfg.Search.Backend },
	},
	{
		key: "search.collection", typ: kString, env: "ENDPOINTD_VECTOR_COLLECTION",
		apply:   func(cfg *Config, v any) { cfg.Search.Collection = v.(string) },
		extract: func(cfg Config) any { return cfg.Search.Collection },
	},
	{
		key: "search.top_k", typ: kInt, env: "ENDPOINTD_TOP_K",
		apply:   func(cfg *Config, v any) { cfg.Search.TopK = v.(int) },
		extract: func(cfg Config) any { return cfg.Search.TopK },
	},
	{
		key: "synth.enabled", typ: kBool, env: "ENDPOINTD_CLAUDE_SYNTH",
		apply:   func(cfg *Config, v any) { cfg.Synth.Enabled = v.(bool) },
		extract: func(cfg Config) any { return cfg.Synth.Enabled },
	},
	{
		key: "synth.bin", typ: kString, env: "ENDPOINTD_CLAUDE_BIN",
		apply:   func(cfg *Config, v any) { cfg.Synth.Bin = v.(string) },
		extract: func(cfg Config) any { return cfg.Synth.Bin },
	},
	{
		key: "synth.timeout_seconds", typ: kInt, env: "ENDPOINTD_SYNTH_TIMEOUT",
		apply:   func(cfg *Config, v any) { cfg.Synth.TimeoutSeconds = v.(int) },
		extract: func(cfg Config) any { return cfg.Synth.TimeoutSeconds },
	},
	{
		key: "postgres.host", typ: kString, env: "ENDPOINTD_PG_HOST",
		apply:   func(cfg *Config, v any) { cfg.Postgres.Host = v.(string) },
		extract: func(cfg Config) any { return cfg.Postgres.Host },
	},
	{
		key: "postgres.port", typ: kInt, env: "ENDPOINTD_PG_PORT",
		apply:   func(cfg *Config, v any) { cfg.Postgres.Port = v.(int) },
		extract: func(cfg Config) any { return cfg.Postgres.Port },
	},
	{
		key: "postgres.database", typ: kString, env: "ENDPOINTD_PG_DB",
		apply:   func(cfg *Config, v any) { cfg.Postgres.Database = v.(string) },
		extract: func(cfg Config) any { return cfg.Postgres.Database },
	},
	{
		key: "postgres.user", typ: kString, env: "ENDPOINTD_PG_USER",
		apply:   func(cfg *Config, v any) { cfg.Postgres.User = v.(string) },
		extract: func(cfg Config) any { return cfg.Postgres.User },
	},
	{
		key: "postgres.password", typ: kString, env: "ENDPOINTD_PG_PASSWORD",
		secret:  true,
		apply:   func(cfg *Config, v any) { cfg.Postgres.Password = v.(string) },
		extract: func(cfg Config) any { return cfg.Postgres.Password },
	},
	{
		key: "postgres.table", typ: kString, env: "ENDPOINTD_PG_TABLE",
		apply:   func(cfg *Config, v any) { cfg.Postgres.Table = v.(string) },
		extract: func(cfg Config) any { return cfg.Postgres.Table },
	},
	{
		key: "postgres.sslmode", typ: kString, env: "ENDPOINTD_PG_SSLMODE",
		apply:   func(cfg *Config, v any) { cfg.Postgres.SSLMode = v.(string) },
		extract: func(cfg Config) any { return cfg.Postgres.SSLMode },
	},
	{
		key: "mcp.enabled", typ: kBool, env: "ENDPOINTD_MCP_ENABLED",
		apply:   func(cfg *Config, v any) { cfg.MCP.Enabled = v.(bool) },
		extract: func(cfg Config) any { return cfg.MCP.Enabled },
	},
}

func applyBackend(cfg *Config, b ConfigBackend) error {
	for _, s := range specs {
		if s.secret {
			continue
		}
		switch s.typ {
		case kString:
			v, ok, err := b.GetString(s.key)
			if err != nil {
				return fmt.Errorf("reading %s: %w", s.key, err)
			}
			if ok {
				s.apply(cfg, v)
			}
		case kInt:
			v, ok, err := b.GetInt(s.key)
			if err != nil {
				return fmt.Errorf("reading %s: %w", s.key, err)
			}
			if ok {
				s.apply(cfg, v)
			}
		case kBool:
			v, ok, err := b.GetString(s.key)
			if err != nil {
				return fmt.Errorf("reading %s: %w", s.key, err)
			}
			if ok && v != "" {
				if bv, err := strconv.ParseBool(v); err == nil {
					s.apply(cfg, bv)
				} else {
					fmt.Fprintf(os.Stderr, "[WARN] could not parse bool from config key %s=%q: %v. Using default value.\n", s.key, v, err)
				}
			}
		}
	}
	return nil
}

func applyEnvOverrides(cfg *Config) {
	for _, s := range specs {
		if s.env == "" {
			continue
		}
		raw := os.Getenv(s.env)
		if raw == "" {
			continue
		}
		switch s.typ {
		case kString:
			s.apply(cfg, raw)
		case kInt:
			if i, err := strconv.Atoi(raw); err == nil {
				s.apply(cfg, i)
			} else {
				fmt.Fprintf(os.Stderr, "[WARN] could not parse integer from env var %s=%q: %v. Using default value.\n", s.env, raw, err)
			}
		case kBool:
			if b, err := strconv.ParseBool(raw); err == nil {
				s.apply(cfg, b)
			} else {
				fmt.Fprintf(os.Stderr, "[WARN] could not parse bool from env var %s=%q: %v. Using default value.\n", s.env, raw, err)
			}
		}
	}
}
