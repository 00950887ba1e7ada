package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/selimova/docsift/internal/embedding"
	"github.com/selimova/docsift/internal/observability"
	"github.com/selimova/docsift/internal/vector"
)

const (
	// DefaultSearchLimit applies when a query asks for zero results.
	DefaultSearchLimit = 5
	// MaxSearchLimit caps how many results one query may request.
	MaxSearchLimit = 100
)

// ErrInvalidQuery reports a query the retriever refuses to run.
var ErrInvalidQuery = errors.New("pipeline: invalid query")

// Retriever answers similarity queries over the ingested corpus.
type Retriever struct {
	provider embedding.Provider
	store    vector.Store
}

// NewRetriever builds a Retriever over a provider and store.
func NewRetriever(provider embedding.Provider, store vector.Store) (*Retriever, error) {
	if provider == nil {
		return nil, fmt.Errorf("pipeline: embedding provider is required")
	}
	if store == nil {
		return nil, fmt.Errorf("pipeline: vector store is required")
	}
	return &Retriever{provider: provider, store: store}, nil
}

// Search embeds the query and returns up to limit hits ranked by
// descending similarity. A zero limit falls back to the default; limits
// above the cap are clamped. An empty corpus yields an empty slice, not
// an error.
func (r *Retriever) Search(ctx context.Context, query string, limit int, filter vector.Filter) (results []vector.SearchResult, err error) {
	start := time.Now()

	if strings.TrimSpace(query) == "" {
		return nil, fmt.Errorf("%w: empty query text", ErrInvalidQuery)
	}
	if limit < 0 {
		return nil, fmt.Errorf("%w: negative limit %d", ErrInvalidQuery, limit)
	}
	if limit == 0 {
		limit = DefaultSearchLimit
	}
	if limit > MaxSearchLimit {
		limit = MaxSearchLimit
	}

	ctx, span := observability.StartRetrieveSpan(ctx, limit)
	defer func() {
		observability.RecordError(span, err)
		span.End()
		observability.Metrics().RecordSearch(time.Since(start), err)
	}()

	queryVector, err := r.provider.EmbedOne(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	results, err = r.store.Search(ctx, queryVector, limit, filter)
	if err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}

	var topScore float32
	if len(results) > 0 {
		topScore = results[0].Score
	}
	observability.RecordRetrieveResult(span, len(results), topScore)
	observability.Audit().LogSearchQuery(ctx, len(query), limit, len(results), time.Since(start))
	return results, nil
}

// Stats reports the state of the backing collection.
func (r *Retriever) Stats(ctx context.Context) (vector.Stats, error) {
	return r.store.Stats(ctx)
}
