package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeTempConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.json")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestDefaults(t *testing.T) {
	cfg, err := loadWith(newFileBackend(filepath.Join(t.TempDir(), "missing.json")))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Server.Port != 5050 {
		t.Errorf("Server.Port = %d, want 5050", cfg.Server.Port)
	}
	if cfg.Search.Backend != "sqlite" {
		t.Errorf("Search.Backend = %q, want sqlite", cfg.Search.Backend)
	}
	if cfg.Search.Collection != "endpoint_kb" {
		t.Errorf("Search.Collection = %q, want endpoint_kb", cfg.Search.Collection)
	}
	if cfg.Search.TopK != 5 {
		t.Errorf("Search.TopK = %d, want 5", cfg.Search.TopK)
	}
	if !cfg.Synth.Enabled || cfg.Synth.Bin != "claude" {
		t.Errorf("unexpected synth defaults: %+v", cfg.Synth)
	}
	if cfg.Ollama.EmbedModel != "nomic-embed-text" {
		t.Errorf("Ollama.EmbedModel = %q", cfg.Ollama.EmbedModel)
	}
	if cfg.Postgres.Host != "localhost" || cfg.Postgres.Port != 5432 || cfg.Postgres.Table != "knowledge_base" {
		t.Errorf("unexpected postgres defaults: %+v", cfg.Postgres)
	}
	if cfg.MCP.Enabled {
		t.Error("MCP should be disabled by default")
	}
}

func TestFileBackendValues(t *testing.T) {
	path := writeTempConfig(t, `{
  "server.port": 8080,
  "search.backend": "vector",
  "synth.enabled": "false",
  "search.top_k": "9"
}`)

	cfg, err := loadWith(newFileBackend(path))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Server.Port != 8080 {
		t.Errorf("Server.Port = %d, want 8080", cfg.Server.Port)
	}
	if cfg.Search.Backend != "vector" {
		t.Errorf("Search.Backend = %q, want vector", cfg.Search.Backend)
	}
	if cfg.Synth.Enabled {
		t.Error("synth.enabled=false not applied")
	}
	if cfg.Search.TopK != 9 {
		t.Errorf("Search.TopK = %d, want 9", cfg.Search.TopK)
	}
}

func TestEnvOverridesBeatFile(t *testing.T) {
	path := writeTempConfig(t, `{"search.backend": "vector"}`)

	t.Setenv("ENDPOINTD_SEARCH_BACKEND", "postgres")
	t.Setenv("ENDPOINTD_PG_PASSWORD", "hunter2")
	t.Setenv("ENDPOINTD_SERVER_PORT", "9999")
	t.Setenv("ENDPOINTD_CLAUDE_SYNTH", "false")

	cfg, err := loadWith(newFileBackend(path))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Search.Backend != "postgres" {
		t.Errorf("Search.Backend = %q, want postgres", cfg.Search.Backend)
	}
	if cfg.Postgres.Password != "hunter2" {
		t.Errorf("Postgres.Password not read from env")
	}
	if cfg.Server.Port != 9999 {
		t.Errorf("Server.Port = %d, want 9999", cfg.Server.Port)
	}
	if cfg.Synth.Enabled {
		t.Error("ENDPOINTD_CLAUDE_SYNTH=false not applied")
	}
}

func TestEnvOverrideBadInt(t *testing.T) {
	t.Setenv("ENDPOINTD_SERVER_PORT", "not-a-number")

	cfg, err := loadWith(newFileBackend(filepath.Join(t.TempDir(), "missing.json")))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Server.Port != 5050 {
		t.Errorf("bad int override should keep the default, got %d", cfg.Server.Port)
	}
}

func TestResolvedStorageDirs(t *testing.T) {
	s := StorageConfig{DataDir: "/srv/endpointd"}
	if got := s.ResolvedUploadDir(); got != filepath.Join("/srv/endpointd", "uploads") {
		t.Errorf("ResolvedUploadDir = %q", got)
	}
	if got := s.ResolvedDocsDir(); got != filepath.Join("/srv/endpointd", "data") {
		t.Errorf("ResolvedDocsDir = %q", got)
	}
	if got := s.ResolvedVectorDir(); got != filepath.Join("/srv/endpointd", "vectors") {
		t.Errorf("ResolvedVectorDir = %q", got)
	}

	s.UploadDir = "/mnt/uploads"
	if got := s.ResolvedUploadDir(); got != "/mnt/uploads" {
		t.Errorf("explicit UploadDir not honored: %q", got)
	}
}

func TestSetKeyAndValidKeys(t *testing.T) {
	found := false
	for _, k := range ValidKeys() {
		if k == "search.backend" {
			found = true
		}
		if k == "postgres.password" {
			t.Error("secret key listed in ValidKeys")
		}
	}
	if !found {
		t.Error("search.backend missing from ValidKeys")
	}

	if err := SetKey("postgres.password", "x"); err == nil {
		t.Error("expected error when setting a secret key")
	}
	if err := SetKey("nope.nothing", "x"); err == nil {
		t.Error("expected error for unknown key")
	}
}
