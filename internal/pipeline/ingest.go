// Package pipeline wires parsing, chunking, embedding and storage into
// the ingestion and retrieval flows.
package pipeline

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/selimova/docsift/internal/catalog"
	"github.com/selimova/docsift/internal/chunker"
	"github.com/selimova/docsift/internal/embedding"
	"github.com/selimova/docsift/internal/observability"
	"github.com/selimova/docsift/internal/parser"
	"github.com/selimova/docsift/internal/vector"
)

// DefaultConcurrency bounds how many documents ingest in parallel.
const DefaultConcurrency = 4

// Ingestion stages, used in errors and the document catalog.
const (
	StageParse = "parse"
	StageChunk = "chunk"
	StageEmbed = "embed"
	StageStore = "store"
)

// Document is the ingestion input: raw bytes plus enough metadata to
// pick a parser.
type Document struct {
	ID      string
	Name    string
	MIME    string
	Content []byte
}

// DocumentError reports which stage of which document failed.
type DocumentError struct {
	DocumentID string
	Stage      string
	Err        error
}

func (e *DocumentError) Error() string {
	return fmt.Sprintf("document %s: %s stage: %v", e.DocumentID, e.Stage, e.Err)
}

func (e *DocumentError) Unwrap() error { return e.Err }

// Ingestor runs documents through parse, chunk, embed and store.
type Ingestor struct {
	chunker     *chunker.Chunker
	provider    embedding.Provider
	store       vector.Store
	catalog     catalog.Repository
	collection  string
	concurrency int
}

// IngestorConfig assembles an Ingestor.
type IngestorConfig struct {
	Chunker    *chunker.Chunker
	Provider   embedding.Provider
	Store      vector.Store
	Catalog    catalog.Repository // nil falls back to catalog.Nop
	Collection string
	// Concurrency bounds parallel documents in IngestAll (default 4).
	Concurrency int
}

// NewIngestor validates the config and returns an Ingestor.
func NewIngestor(cfg IngestorConfig) (*Ingestor, error) {
	if cfg.Chunker == nil {
		return nil, fmt.Errorf("pipeline: chunker is required")
	}
	if cfg.Provider == nil {
		return nil, fmt.Errorf("pipeline: embedding provider is required")
	}
	if cfg.Store == nil {
		return nil, fmt.Errorf("pipeline: vector store is required")
	}
	cat := cfg.Catalog
	if cat == nil {
		cat = catalog.Nop{}
	}
	concurrency := cfg.Concurrency
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}
	return &Ingestor{
		chunker:     cfg.Chunker,
		provider:    cfg.Provider,
		store:       cfg.Store,
		catalog:     cat,
		collection:  cfg.Collection,
		concurrency: concurrency,
	}, nil
}

// EnsureReady verifies the store schema against the provider dimension.
func (in *Ingestor) EnsureReady(ctx context.Context) error {
	return in.store.EnsureCollection(ctx, in.provider.Dimension())
}

// IngestDocument runs one document through the full pipeline. Chunk ids
// are deterministic, so re-ingesting the same content is an upsert and
// the store ends up with exactly one record per chunk. Nothing reaches
// the store unless every chunk embedded successfully.
func (in *Ingestor) IngestDocument(ctx context.Context, doc Document) (res DocumentResult, err error) {
	start := time.Now()
	metrics := observability.Metrics()
	metrics.ActiveIngestions.Inc()
	defer metrics.ActiveIngestions.Dec()

	ctx, span := observability.StartIngestSpan(ctx, doc.ID)
	defer func() {
		observability.RecordError(span, err)
		span.End()
		metrics.RecordIngest(time.Since(start), res.ChunkCount, err)
	}()

	res = DocumentResult{DocumentID: doc.ID, Name: doc.Name}
	audit := observability.Audit()
	audit.LogDocumentReceived(ctx, doc.ID, doc.Name, doc.MIME, len(doc.Content))

	format := parser.DetectFormat(doc.Name, doc.MIME)
	res.Format = string(format)
	in.record(ctx, doc, format, catalog.StatusReceived, 0, "")

	// Parse
	blocks, err := in.parse(ctx, doc, format)
	if err != nil {
		return res, in.fail(ctx, doc.ID, StageParse, err)
	}
	in.setStatus(ctx, doc.ID, catalog.StatusParsed)

	// Chunk
	chunks, err := in.chunk(ctx, doc.ID, blocks)
	if err != nil {
		return res, in.fail(ctx, doc.ID, StageChunk, err)
	}
	res.ChunkCount = len(chunks)
	in.setStatus(ctx, doc.ID, catalog.StatusChunked)
	if len(chunks) == 0 {
		// Nothing to embed; an empty document is stored as a no-op.
		in.setStatus(ctx, doc.ID, catalog.StatusStored)
		return res, nil
	}

	// Embed
	vectors, err := in.embed(ctx, chunks)
	if err != nil {
		return res, in.fail(ctx, doc.ID, StageEmbed, err)
	}
	in.setStatus(ctx, doc.ID, catalog.StatusEmbedded)

	// Store
	if err := in.upsert(ctx, chunks, vectors); err != nil {
		return res, in.fail(ctx, doc.ID, StageStore, err)
	}
	in.record(ctx, doc, format, catalog.StatusStored, len(chunks), "")

	res.VectorCount = len(vectors)
	res.Duration = time.Since(start)
	observability.RecordIngestResult(span, res.ChunkCount, res.VectorCount)
	audit.LogDocumentStored(ctx, doc.ID, res.ChunkCount, res.Duration)
	return res, nil
}

// IngestAll ingests documents with bounded concurrency. One document's
// failure does not stop the others; per-document errors are collected
// in the report. Context cancellation stops scheduling new documents.
func (in *Ingestor) IngestAll(ctx context.Context, docs []Document) *Report {
	report := NewReport()

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(in.concurrency)

	for _, doc := range docs {
		doc := doc
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				report.AddFailure(doc.ID, err)
				return nil
			}
			res, err := in.IngestDocument(ctx, doc)
			if err != nil {
				report.AddFailure(doc.ID, err)
				return nil
			}
			report.AddResult(res)
			return nil
		})
	}
	g.Wait()

	report.Finish()
	return report
}

// DeleteDocument removes a document's chunks and marks the catalog.
func (in *Ingestor) DeleteDocument(ctx context.Context, documentID string) error {
	if err := in.store.DeleteDocument(ctx, documentID); err != nil {
		return fmt.Errorf("delete document %s: %w", documentID, err)
	}
	observability.Audit().LogDocumentDeleted(ctx, documentID)
	return nil
}

func (in *Ingestor) parse(ctx context.Context, doc Document, format parser.Format) ([]parser.TextBlock, error) {
	_, span := observability.StartParseSpan(ctx, doc.ID, string(format))
	defer span.End()

	blocks, err := parser.Parse(doc.ID, format, doc.Content)
	if err != nil {
		observability.RecordError(span, err)
		return nil, err
	}
	return blocks, nil
}

func (in *Ingestor) chunk(ctx context.Context, docID string, blocks []parser.TextBlock) ([]chunker.Chunk, error) {
	_, span := observability.StartChunkSpan(ctx, docID, len(blocks))
	defer span.End()

	chunks, err := in.chunker.Chunk(blocks)
	if err != nil {
		observability.RecordError(span, err)
		return nil, err
	}
	return chunks, nil
}

func (in *Ingestor) embed(ctx context.Context, chunks []chunker.Chunk) ([][]float32, error) {
	start := time.Now()
	texts := make([]string, len(chunks))
	for i, ch := range chunks {
		texts[i] = ch.Text
	}

	ctx, span := observability.StartEmbedSpan(ctx, in.provider.Name(), len(texts))
	defer span.End()

	vectors, err := in.provider.EmbedBatch(ctx, texts)
	observability.Metrics().RecordEmbed(time.Since(start), err)
	if err != nil {
		observability.RecordError(span, err)
		observability.Audit().LogEmbedError(ctx, in.provider.Name(), err)
		return nil, err
	}
	if len(vectors) != len(chunks) {
		err := fmt.Errorf("provider returned %d vectors for %d chunks", len(vectors), len(chunks))
		observability.RecordError(span, err)
		return nil, err
	}
	observability.RecordEmbedMetrics(span, len(vectors), in.provider.Dimension(), time.Since(start))
	observability.Audit().LogEmbedRequest(ctx, in.provider.Name(), len(texts), time.Since(start))
	return vectors, nil
}

func (in *Ingestor) upsert(ctx context.Context, chunks []chunker.Chunk, vectors [][]float32) error {
	start := time.Now()
	records := make([]vector.Record, len(chunks))
	for i, ch := range chunks {
		records[i] = vector.Record{
			ID:            ch.ID,
			DocumentID:    ch.DocumentID,
			Ordinal:       ch.Ordinal,
			Text:          ch.Text,
			HierarchyPath: ch.HierarchyPath,
			Vector:        vectors[i],
		}
	}

	_, span := observability.StartUpsertSpan(ctx, in.collection, len(records))
	defer span.End()

	err := in.store.Upsert(ctx, records)
	observability.Metrics().RecordUpsert(time.Since(start), err)
	if err != nil {
		observability.RecordError(span, err)
	}
	return err
}

func (in *Ingestor) fail(ctx context.Context, docID, stage string, err error) error {
	derr := &DocumentError{DocumentID: docID, Stage: stage, Err: err}
	in.setStatusErr(ctx, docID, derr.Error())
	observability.Audit().LogDocumentFailed(ctx, docID, stage, err)
	return derr
}

// Catalog writes are best effort: a broken catalog must not fail an
// otherwise healthy ingestion.

func (in *Ingestor) record(ctx context.Context, doc Document, format parser.Format, status string, chunks int, errMsg string) {
	_ = in.catalog.Record(ctx, catalog.Document{
		ID:         doc.ID,
		Name:       doc.Name,
		Format:     string(format),
		Status:     status,
		ChunkCount: chunks,
		Error:      errMsg,
		IngestedAt: time.Now().UTC(),
	})
}

func (in *Ingestor) setStatus(ctx context.Context, docID, status string) {
	_ = in.catalog.SetStatus(ctx, docID, status, "")
}

func (in *Ingestor) setStatusErr(ctx context.Context, docID, errMsg string) {
	_ = in.catalog.SetStatus(ctx, docID, catalog.StatusFailed, errMsg)
}
