package temporal

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/selimova/docsift/internal/chunker"
	"github.com/selimova/docsift/internal/parser"
	"github.com/selimova/docsift/internal/vector/memory"
)

type echoProvider struct {
	dim   int
	calls int
}

func (p *echoProvider) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	p.calls++
	out := make([][]float32, len(texts))
	for i, t := range texts {
		v := make([]float32, p.dim)
		for j, r := range t {
			v[j%p.dim] += float32(r)
		}
		out[i] = v
	}
	return out, nil
}

func (p *echoProvider) EmbedOne(ctx context.Context, text string) ([]float32, error) {
	vectors, err := p.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

func (p *echoProvider) Name() string { return "echo" }

func (p *echoProvider) Dimension() int { return p.dim }

// setupTestDeps wires a chunker, stub provider and in-memory store.
func setupTestDeps(t *testing.T) *memory.Store {
	t.Helper()
	c, err := chunker.New(64, 16)
	if err != nil {
		t.Fatalf("chunker.New: %v", err)
	}
	store := memory.New("test")
	SetDependencies(&Dependencies{
		Chunker:  c,
		Provider: &echoProvider{dim: 4},
		Store:    store,
	})
	return store
}

func TestSetDependencies(t *testing.T) {
	store := setupTestDeps(t)

	if deps == nil {
		t.Fatal("SetDependencies failed: deps is nil")
	}
	if deps.Store != store {
		t.Error("SetDependencies did not set store correctly")
	}
}

func TestParseActivity_Markdown(t *testing.T) {
	setupTestDeps(t)

	input := IngestInput{
		DocumentID: "doc-1",
		Name:       "guide.md",
		Content:    []byte("# Guide\n\nIntro paragraph.\n\n## Setup\n\nInstall the service.\n"),
	}

	result, err := ParseActivity(context.Background(), input)
	if err != nil {
		t.Fatalf("ParseActivity failed: %v", err)
	}
	if result.Format != "markdown" {
		t.Errorf("format = %q, want markdown", result.Format)
	}

	var blocks []parser.TextBlock
	if err := json.Unmarshal([]byte(result.BlocksJSON), &blocks); err != nil {
		t.Fatalf("BlocksJSON is not valid JSON: %v", err)
	}
	if len(blocks) == 0 {
		t.Fatal("expected at least one block")
	}
}

func TestParseActivity_UnsupportedFormat(t *testing.T) {
	setupTestDeps(t)

	input := IngestInput{
		DocumentID: "doc-1",
		Name:       "slides.pptx",
		Content:    []byte("binary"),
	}

	_, err := ParseActivity(context.Background(), input)
	if err == nil {
		t.Fatal("expected error for unsupported format")
	}
}

func TestChunkActivity(t *testing.T) {
	setupTestDeps(t)

	blocks := []parser.TextBlock{
		{DocumentID: "doc-1", Text: "alpha beta gamma delta"},
		{DocumentID: "doc-1", Text: "epsilon zeta eta theta"},
	}
	blocksJSON, _ := json.Marshal(blocks)

	result, err := ChunkActivity(context.Background(), "doc-1", string(blocksJSON))
	if err != nil {
		t.Fatalf("ChunkActivity failed: %v", err)
	}
	if result.Count == 0 {
		t.Fatal("expected at least one chunk")
	}

	var chunks []chunker.Chunk
	if err := json.Unmarshal([]byte(result.ChunksJSON), &chunks); err != nil {
		t.Fatalf("ChunksJSON is not valid JSON: %v", err)
	}
	if len(chunks) != result.Count {
		t.Errorf("count %d does not match %d serialized chunks", result.Count, len(chunks))
	}
}

func TestChunkActivity_InvalidJSON(t *testing.T) {
	setupTestDeps(t)

	_, err := ChunkActivity(context.Background(), "doc-1", "invalid json")
	if err == nil {
		t.Fatal("expected error with invalid JSON")
	}
}

func TestEmbedActivity(t *testing.T) {
	setupTestDeps(t)

	chunks := []chunker.Chunk{
		{ID: "c1", DocumentID: "doc-1", Ordinal: 0, Text: "first chunk"},
		{ID: "c2", DocumentID: "doc-1", Ordinal: 1, Text: "second chunk"},
	}
	chunksJSON, _ := json.Marshal(chunks)

	result, err := EmbedActivity(context.Background(), string(chunksJSON))
	if err != nil {
		t.Fatalf("EmbedActivity failed: %v", err)
	}

	var vectors [][]float32
	if err := json.Unmarshal([]byte(result.VectorsJSON), &vectors); err != nil {
		t.Fatalf("VectorsJSON is not valid JSON: %v", err)
	}
	if len(vectors) != len(chunks) {
		t.Fatalf("got %d vectors for %d chunks", len(vectors), len(chunks))
	}
	if len(vectors[0]) != 4 {
		t.Errorf("vector dimension = %d, want 4", len(vectors[0]))
	}
}

func TestStoreActivity(t *testing.T) {
	store := setupTestDeps(t)

	chunks := []chunker.Chunk{
		{ID: "c1", DocumentID: "doc-1", Ordinal: 0, Text: "first chunk"},
		{ID: "c2", DocumentID: "doc-1", Ordinal: 1, Text: "second chunk"},
	}
	chunksJSON, _ := json.Marshal(chunks)
	vectorsJSON, _ := json.Marshal([][]float32{{1, 0, 0, 0}, {0, 1, 0, 0}})

	result, err := StoreActivity(context.Background(), string(chunksJSON), string(vectorsJSON))
	if err != nil {
		t.Fatalf("StoreActivity failed: %v", err)
	}
	if result.Stored != 2 {
		t.Errorf("stored = %d, want 2", result.Stored)
	}

	stats, err := store.Stats(context.Background())
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if stats.PointCount != 2 {
		t.Errorf("store holds %d records, want 2", stats.PointCount)
	}
}

func TestStoreActivity_VectorChunkMismatch(t *testing.T) {
	setupTestDeps(t)

	chunks := []chunker.Chunk{{ID: "c1", DocumentID: "doc-1", Text: "one"}}
	chunksJSON, _ := json.Marshal(chunks)
	vectorsJSON, _ := json.Marshal([][]float32{{1, 0, 0, 0}, {0, 1, 0, 0}})

	_, err := StoreActivity(context.Background(), string(chunksJSON), string(vectorsJSON))
	if err == nil {
		t.Fatal("expected error on vector/chunk count mismatch")
	}
}

// Full chain: parse through store against the in-memory store.
func TestActivities_FullChain(t *testing.T) {
	store := setupTestDeps(t)
	ctx := context.Background()

	input := IngestInput{
		DocumentID: "doc-1",
		Name:       "notes.txt",
		Content:    []byte("alpha beta gamma delta\n\nepsilon zeta eta theta"),
	}

	parsed, err := ParseActivity(ctx, input)
	if err != nil {
		t.Fatalf("ParseActivity: %v", err)
	}
	chunked, err := ChunkActivity(ctx, input.DocumentID, parsed.BlocksJSON)
	if err != nil {
		t.Fatalf("ChunkActivity: %v", err)
	}
	embedded, err := EmbedActivity(ctx, chunked.ChunksJSON)
	if err != nil {
		t.Fatalf("EmbedActivity: %v", err)
	}
	stored, err := StoreActivity(ctx, chunked.ChunksJSON, embedded.VectorsJSON)
	if err != nil {
		t.Fatalf("StoreActivity: %v", err)
	}
	if stored.Stored != chunked.Count {
		t.Errorf("stored %d of %d chunks", stored.Stored, chunked.Count)
	}

	stats, _ := store.Stats(ctx)
	if int(stats.PointCount) != chunked.Count {
		t.Errorf("store holds %d records, want %d", stats.PointCount, chunked.Count)
	}
}
