package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestValidate_Empty(t *testing.T) {
	cfg := &Config{}
	warnings := cfg.Validate()
	if len(warnings) != 0 {
		t.Errorf("empty config should have no warnings, got %v", warnings)
	}
}

func TestValidate_MissingAPIKey(t *testing.T) {
	cfg := &Config{
		Embedding: EmbeddingConfig{Provider: "openai"},
	}
	warnings := cfg.Validate()
	found := false
	for _, w := range warnings {
		if strings.Contains(w, "api_key") {
			found = true
			break
		}
	}
	if !found {
		t.Error("expected warning about missing api_key")
	}
}

func TestValidate_NoneProvider(t *testing.T) {
	// "none" provider with no API key should not warn
	cfg := &Config{Embedding: EmbeddingConfig{Provider: "none"}}
	warnings := cfg.Validate()
	for _, w := range warnings {
		if strings.Contains(w, "api_key") {
			t.Error("'none' provider should not warn about missing api_key")
		}
	}
}

func TestValidate_Chunking(t *testing.T) {
	tests := []struct {
		name    string
		max     int
		overlap int
		want    bool // true = should warn
	}{
		{"zero", 0, 0, false},
		{"normal", 1024, 256, false},
		{"negative_max", -1, 0, true},
		{"negative_overlap", 1024, -1, true},
		{"overlap_equals_max", 512, 512, true},
		{"overlap_exceeds_max", 512, 600, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{Chunking: ChunkingConfig{MaxTokens: tt.max, OverlapTokens: tt.overlap}}
			warnings := cfg.Validate()
			hasWarn := false
			for _, w := range warnings {
				if strings.Contains(w, "chunking") {
					hasWarn = true
				}
			}
			if hasWarn != tt.want {
				t.Errorf("max=%d overlap=%d: hasWarn=%v, want=%v (%v)", tt.max, tt.overlap, hasWarn, tt.want, warnings)
			}
		})
	}
}

func TestValidate_VectorBackend(t *testing.T) {
	tests := []struct {
		backend string
		want    bool
	}{
		{"", false},
		{"qdrant", false},
		{"memory", false},
		{"milvus", true},
	}
	for _, tt := range tests {
		cfg := &Config{Vector: VectorConfig{Backend: tt.backend}}
		warnings := cfg.Validate()
		hasWarn := false
		for _, w := range warnings {
			if strings.Contains(w, "backend") {
				hasWarn = true
			}
		}
		if hasWarn != tt.want {
			t.Errorf("backend=%q: hasWarn=%v, want=%v", tt.backend, hasWarn, tt.want)
		}
	}
}

func TestValidate_CatalogEnabledWithoutURI(t *testing.T) {
	cfg := &Config{Catalog: CatalogConfig{Enabled: true}}
	warnings := cfg.Validate()
	found := false
	for _, w := range warnings {
		if strings.Contains(w, "catalog") {
			found = true
		}
	}
	if !found {
		t.Error("expected warning about missing catalog uri")
	}
}

func TestValidate_SampleRate(t *testing.T) {
	cfg := &Config{Tracing: TracingConfig{SampleRate: 1.5}}
	warnings := cfg.Validate()
	found := false
	for _, w := range warnings {
		if strings.Contains(w, "sample_rate") {
			found = true
		}
	}
	if !found {
		t.Error("expected warning about out-of-range sample rate")
	}
}

func TestLoad_FromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
embedding:
  provider: openai
  api_key: test-key
  model: text-embedding-3-small
chunking:
  max_tokens: 512
  overlap_tokens: 128
vector:
  backend: qdrant
  host: localhost
  port: 6334
  collection: documents
server:
  addr: ":8080"
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Embedding.Provider != "openai" {
		t.Errorf("provider = %q", cfg.Embedding.Provider)
	}
	if cfg.Chunking.MaxTokens != 512 {
		t.Errorf("max_tokens = %d", cfg.Chunking.MaxTokens)
	}
	if cfg.Vector.Collection != "documents" {
		t.Errorf("collection = %q", cfg.Vector.Collection)
	}
	if cfg.Server.Addr != ":8080" {
		t.Errorf("addr = %q", cfg.Server.Addr)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err == nil {
		t.Fatal("expected error for missing config file")
	}
}
