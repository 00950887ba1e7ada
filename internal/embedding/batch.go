package embedding

import "context"

const (
	// DefaultMaxBatchSize bounds the number of texts per API call.
	DefaultMaxBatchSize = 64
	// DefaultMaxBatchTokens bounds the cumulative token count per API call.
	DefaultMaxBatchTokens = 8000
)

// BatchConfig bounds how much text a single provider call may carry.
type BatchConfig struct {
	MaxBatchSize   int
	MaxBatchTokens int
}

// DefaultBatchConfig returns the standard batch bounds.
func DefaultBatchConfig() *BatchConfig {
	return &BatchConfig{
		MaxBatchSize:   DefaultMaxBatchSize,
		MaxBatchTokens: DefaultMaxBatchTokens,
	}
}

// Batcher splits large inputs into provider calls that respect both the
// batch size and the cumulative token bounds, preserving input order in
// the combined output.
type Batcher struct {
	provider    Provider
	config      *BatchConfig
	countTokens func(text string) int
}

// NewBatcher wraps a provider. countTokens estimates the token cost of
// one text and must not be nil when token bounding is wanted; nil falls
// back to size-only batching.
func NewBatcher(provider Provider, config *BatchConfig, countTokens func(string) int) *Batcher {
	if config == nil {
		config = DefaultBatchConfig()
	}
	if countTokens == nil {
		countTokens = func(string) int { return 0 }
	}
	return &Batcher{provider: provider, config: config, countTokens: countTokens}
}

func (b *Batcher) Name() string { return b.provider.Name() }

func (b *Batcher) Dimension() int { return b.provider.Dimension() }

// EmbedBatch embeds texts across as many provider calls as the bounds
// require. A text that alone exceeds the token bound still goes out as
// a singleton batch; the provider decides whether to reject it.
func (b *Batcher) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	vectors := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); {
		end := start + 1
		budget := b.config.MaxBatchTokens - b.countTokens(texts[start])
		for end < len(texts) {
			if b.config.MaxBatchSize > 0 && end-start >= b.config.MaxBatchSize {
				break
			}
			cost := b.countTokens(texts[end])
			if b.config.MaxBatchTokens > 0 && cost > budget {
				break
			}
			budget -= cost
			end++
		}

		batch, err := b.provider.EmbedBatch(ctx, texts[start:end])
		if err != nil {
			return nil, err
		}
		vectors = append(vectors, batch...)
		start = end
	}
	return vectors, nil
}

// EmbedOne delegates directly to the provider.
func (b *Batcher) EmbedOne(ctx context.Context, text string) ([]float32, error) {
	return b.provider.EmbedOne(ctx, text)
}
