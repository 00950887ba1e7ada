// Package openai implements the embedding provider on the OpenAI
// embeddings API.
package openai

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"

	goopenai "github.com/sashabaranov/go-openai"

	"github.com/selimova/docsift/internal/embedding"
)

const (
	// DefaultModel is the embedding model used when none is configured.
	DefaultModel = string(goopenai.SmallEmbedding3)
	// DefaultDimension is the vector width of text-embedding-3-small.
	DefaultDimension = 1536
)

// Config holds the OpenAI provider settings.
type Config struct {
	APIKey    string
	BaseURL   string // optional override for proxies and compatible APIs
	Model     string
	Dimension int
}

// Provider calls the OpenAI embeddings endpoint.
type Provider struct {
	client    *goopenai.Client
	model     goopenai.EmbeddingModel
	dimension int
}

// New builds a Provider from config, applying model defaults.
func New(cfg Config) (*Provider, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("openai: api key is required")
	}

	clientCfg := goopenai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}

	model := cfg.Model
	if model == "" {
		model = DefaultModel
	}
	dimension := cfg.Dimension
	if dimension <= 0 {
		dimension = DefaultDimension
	}

	return &Provider{
		client:    goopenai.NewClientWithConfig(clientCfg),
		model:     goopenai.EmbeddingModel(model),
		dimension: dimension,
	}, nil
}

func (p *Provider) Name() string { return "openai" }

func (p *Provider) Dimension() int { return p.dimension }

// EmbedBatch embeds texts in a single API call. The response is checked
// against the request length and reordered by the API's index field, so
// callers can rely on output position i matching input position i.
func (p *Provider) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	resp, err := p.client.CreateEmbeddings(ctx, goopenai.EmbeddingRequestStrings{
		Input: texts,
		Model: p.model,
	})
	if err != nil {
		return nil, &embedding.Error{Provider: p.Name(), Retryable: isRetryable(err), Err: err}
	}
	if len(resp.Data) != len(texts) {
		return nil, &embedding.Error{
			Provider: p.Name(),
			Err:      fmt.Errorf("expected %d embeddings, got %d", len(texts), len(resp.Data)),
		}
	}

	vectors := make([][]float32, len(texts))
	for _, d := range resp.Data {
		if d.Index < 0 || d.Index >= len(vectors) {
			return nil, &embedding.Error{
				Provider: p.Name(),
				Err:      fmt.Errorf("embedding index %d out of range", d.Index),
			}
		}
		vectors[d.Index] = d.Embedding
	}
	return vectors, nil
}

// EmbedOne embeds a single text.
func (p *Provider) EmbedOne(ctx context.Context, text string) ([]float32, error) {
	vectors, err := p.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(vectors) != 1 {
		return nil, &embedding.Error{Provider: p.Name(), Err: errors.New("no embedding returned")}
	}
	return vectors[0], nil
}

// isRetryable classifies an API error. Rate limits and server-side
// failures are transient; auth and validation failures are not.
func isRetryable(err error) bool {
	var apiErr *goopenai.APIError
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.HTTPStatusCode == http.StatusTooManyRequests:
			return true
		case apiErr.HTTPStatusCode >= 500:
			return true
		default:
			return false
		}
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return netErr.Timeout()
	}

	errStr := err.Error()
	if strings.Contains(errStr, "429") || strings.Contains(errStr, "Too Many Requests") {
		return true
	}
	if strings.Contains(errStr, "500") ||
		strings.Contains(errStr, "502") ||
		strings.Contains(errStr, "503") ||
		strings.Contains(errStr, "504") {
		return true
	}
	return false
}
