package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	Embedding EmbeddingConfig `mapstructure:"embedding"`
	Chunking  ChunkingConfig  `mapstructure:"chunking"`
	Vector    VectorConfig    `mapstructure:"vector"`
	Catalog   CatalogConfig   `mapstructure:"catalog"`
	Temporal  TemporalConfig  `mapstructure:"temporal"`
	Server    ServerConfig    `mapstructure:"server"`
	Tracing   TracingConfig   `mapstructure:"tracing"`
	Log       LogConfig       `mapstructure:"log"`
}

type EmbeddingConfig struct {
	Provider       string `mapstructure:"provider"`
	Model          string `mapstructure:"model"`
	APIKey         string `mapstructure:"api_key"`
	BaseURL        string `mapstructure:"base_url"`
	Dimension      int    `mapstructure:"dimension"`
	MaxBatchSize   int    `mapstructure:"max_batch_size"`
	MaxBatchTokens int    `mapstructure:"max_batch_tokens"`
	MaxRetries     int    `mapstructure:"max_retries"`
	RequestsPerMin int    `mapstructure:"requests_per_minute"`
	TokensPerMin   int    `mapstructure:"tokens_per_minute"`
}

type ChunkingConfig struct {
	MaxTokens     int `mapstructure:"max_tokens"`
	OverlapTokens int `mapstructure:"overlap_tokens"`
}

type VectorConfig struct {
	// Backend selects the store implementation: "qdrant" or "memory".
	Backend    string `mapstructure:"backend"`
	Host       string `mapstructure:"host"`
	Port       int    `mapstructure:"port"`
	Collection string `mapstructure:"collection"`
}

type CatalogConfig struct {
	// Enabled switches the Neo4j document catalog on.
	Enabled  bool   `mapstructure:"enabled"`
	URI      string `mapstructure:"uri"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
}

type TemporalConfig struct {
	Host      string `mapstructure:"host"`
	Namespace string `mapstructure:"namespace"`
	TaskQueue string `mapstructure:"task_queue"`
}

type ServerConfig struct {
	Addr       string `mapstructure:"addr"`
	HealthAddr string `mapstructure:"health_addr"`
	// MaxUploadBytes bounds a single ingestion request body.
	MaxUploadBytes int64 `mapstructure:"max_upload_bytes"`
}

type TracingConfig struct {
	OTLPEndpoint string  `mapstructure:"otlp_endpoint"`
	SampleRate   float64 `mapstructure:"sample_rate"`
	Environment  string  `mapstructure:"environment"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Validate checks configuration for issues and returns warnings.
func (c *Config) Validate() []string {
	var warnings []string

	// Check for empty API key with active provider (skip "none" provider)
	if c.Embedding.Provider != "" && c.Embedding.Provider != "none" && c.Embedding.APIKey == "" {
		warnings = append(warnings, fmt.Sprintf("embedding provider '%s' is configured but api_key is empty", c.Embedding.Provider))
	}

	if c.Chunking.MaxTokens < 0 {
		warnings = append(warnings, fmt.Sprintf("chunking max_tokens %d is negative", c.Chunking.MaxTokens))
	}
	if c.Chunking.OverlapTokens < 0 {
		warnings = append(warnings, fmt.Sprintf("chunking overlap_tokens %d is negative", c.Chunking.OverlapTokens))
	}
	if c.Chunking.MaxTokens > 0 && c.Chunking.OverlapTokens >= c.Chunking.MaxTokens {
		warnings = append(warnings, fmt.Sprintf("chunking overlap_tokens %d is not smaller than max_tokens %d", c.Chunking.OverlapTokens, c.Chunking.MaxTokens))
	}

	if c.Vector.Backend != "" && c.Vector.Backend != "qdrant" && c.Vector.Backend != "memory" {
		warnings = append(warnings, fmt.Sprintf("unknown vector backend '%s', expected qdrant or memory", c.Vector.Backend))
	}

	if c.Catalog.Enabled && c.Catalog.URI == "" {
		warnings = append(warnings, "catalog is enabled but uri is empty")
	}

	if c.Tracing.SampleRate < 0 || c.Tracing.SampleRate > 1.0 {
		warnings = append(warnings, fmt.Sprintf("tracing sample_rate %.2f is outside [0.0, 1.0]", c.Tracing.SampleRate))
	}

	return warnings
}

// Load reads configuration from file and environment.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetEnvPrefix("DOCSIFT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshalling config: %w", err)
	}

	// Validate configuration and print warnings
	if warnings := cfg.Validate(); len(warnings) > 0 {
		for _, warning := range warnings {
			fmt.Fprintf(os.Stderr, "Warning: %s\n", warning)
		}
	}

	return &cfg, nil
}
