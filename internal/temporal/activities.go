package temporal

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/selimova/docsift/internal/chunker"
	"github.com/selimova/docsift/internal/embedding"
	"github.com/selimova/docsift/internal/parser"
	"github.com/selimova/docsift/internal/vector"
)

// ParseResult is the serializable result passed between activities.
type ParseResult struct {
	Format     string
	BlocksJSON string
}

type ChunkResult struct {
	ChunksJSON string
	Count      int
}

type EmbedResult struct {
	VectorsJSON string
}

type StoreResult struct {
	Stored int
}

// Dependencies holds shared resources injected into activities.
type Dependencies struct {
	Chunker  *chunker.Chunker
	Provider embedding.Provider
	Store    vector.Store
}

var deps *Dependencies

// SetDependencies injects shared resources (called during worker setup).
func SetDependencies(d *Dependencies) {
	deps = d
}

func ParseActivity(ctx context.Context, input IngestInput) (ParseResult, error) {
	format := parser.DetectFormat(input.Name, input.MIME)
	blocks, err := parser.Parse(input.DocumentID, format, input.Content)
	if err != nil {
		return ParseResult{}, err
	}

	blocksJSON, err := json.Marshal(blocks)
	if err != nil {
		return ParseResult{}, fmt.Errorf("marshal blocks: %w", err)
	}
	return ParseResult{Format: string(format), BlocksJSON: string(blocksJSON)}, nil
}

func ChunkActivity(ctx context.Context, documentID, blocksJSON string) (ChunkResult, error) {
	var blocks []parser.TextBlock
	if err := json.Unmarshal([]byte(blocksJSON), &blocks); err != nil {
		return ChunkResult{}, err
	}

	chunks, err := deps.Chunker.Chunk(blocks)
	if err != nil {
		return ChunkResult{}, err
	}

	chunksJSON, err := json.Marshal(chunks)
	if err != nil {
		return ChunkResult{}, fmt.Errorf("marshal chunks: %w", err)
	}
	return ChunkResult{ChunksJSON: string(chunksJSON), Count: len(chunks)}, nil
}

func EmbedActivity(ctx context.Context, chunksJSON string) (EmbedResult, error) {
	var chunks []chunker.Chunk
	if err := json.Unmarshal([]byte(chunksJSON), &chunks); err != nil {
		return EmbedResult{}, err
	}

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}

	vectors, err := deps.Provider.EmbedBatch(ctx, texts)
	if err != nil {
		return EmbedResult{}, err
	}
	if len(vectors) != len(chunks) {
		return EmbedResult{}, fmt.Errorf("embedded %d of %d chunks", len(vectors), len(chunks))
	}

	vectorsJSON, err := json.Marshal(vectors)
	if err != nil {
		return EmbedResult{}, fmt.Errorf("marshal vectors: %w", err)
	}
	return EmbedResult{VectorsJSON: string(vectorsJSON)}, nil
}

func StoreActivity(ctx context.Context, chunksJSON, vectorsJSON string) (StoreResult, error) {
	var chunks []chunker.Chunk
	if err := json.Unmarshal([]byte(chunksJSON), &chunks); err != nil {
		return StoreResult{}, err
	}
	var vectors [][]float32
	if err := json.Unmarshal([]byte(vectorsJSON), &vectors); err != nil {
		return StoreResult{}, err
	}
	if len(vectors) != len(chunks) {
		return StoreResult{}, fmt.Errorf("have %d vectors for %d chunks", len(vectors), len(chunks))
	}
	if len(chunks) == 0 {
		return StoreResult{}, nil
	}

	if err := deps.Store.EnsureCollection(ctx, deps.Provider.Dimension()); err != nil {
		return StoreResult{}, err
	}

	records := make([]vector.Record, len(chunks))
	for i, c := range chunks {
		records[i] = vector.Record{
			ID:            c.ID,
			DocumentID:    c.DocumentID,
			Ordinal:       c.Ordinal,
			Text:          c.Text,
			HierarchyPath: c.HierarchyPath,
			Vector:        vectors[i],
		}
	}
	if err := deps.Store.Upsert(ctx, records); err != nil {
		return StoreResult{}, err
	}
	return StoreResult{Stored: len(records)}, nil
}
