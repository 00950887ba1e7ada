// Package observability provides OpenTelemetry tracing, a Prometheus
// metrics registry and an audit log for the ingestion service.
package observability

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
	"go.opentelemetry.io/otel/trace"
)

const (
	// TracerName is the name used for the docsift tracer.
	TracerName = "github.com/selimova/docsift"
)

// TracingConfig configures the OpenTelemetry tracing.
type TracingConfig struct {
	// ServiceName is the name of the service (default: "docsift")
	ServiceName string

	// ServiceVersion is the version of the service
	ServiceVersion string

	// Environment is the deployment environment (dev, staging, prod)
	Environment string

	// OTLPEndpoint is the OTLP gRPC endpoint (e.g., "localhost:4317")
	// If empty, tracing is disabled.
	OTLPEndpoint string

	// SampleRate is the trace sampling rate (0.0 to 1.0, default: 1.0)
	SampleRate float64
}

// DefaultTracingConfig returns a default tracing configuration.
func DefaultTracingConfig() *TracingConfig {
	return &TracingConfig{
		ServiceName:    "docsift",
		ServiceVersion: "0.1.0",
		Environment:    "development",
		SampleRate:     1.0,
	}
}

// TracerProvider wraps the OpenTelemetry tracer provider.
type TracerProvider struct {
	provider *sdktrace.TracerProvider
	tracer   trace.Tracer
}

// InitTracing initializes OpenTelemetry tracing.
// Returns a no-op tracer if OTLPEndpoint is empty.
func InitTracing(ctx context.Context, cfg *TracingConfig) (*TracerProvider, error) {
	if cfg == nil {
		cfg = DefaultTracingConfig()
	}

	// If no endpoint, return no-op tracer
	if cfg.OTLPEndpoint == "" {
		return &TracerProvider{
			tracer: otel.Tracer(TracerName),
		}, nil
	}

	exporter, err := otlptracegrpc.New(ctx,
		otlptracegrpc.WithEndpoint(cfg.OTLPEndpoint),
		otlptracegrpc.WithInsecure(), // Use TLS in production
	)
	if err != nil {
		return nil, fmt.Errorf("create OTLP exporter: %w", err)
	}

	res, err := resource.Merge(
		resource.Default(),
		resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceName(cfg.ServiceName),
			semconv.ServiceVersion(cfg.ServiceVersion),
			semconv.DeploymentEnvironment(cfg.Environment),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("create resource: %w", err)
	}

	var sampler sdktrace.Sampler
	if cfg.SampleRate >= 1.0 {
		sampler = sdktrace.AlwaysSample()
	} else if cfg.SampleRate <= 0 {
		sampler = sdktrace.NeverSample()
	} else {
		sampler = sdktrace.TraceIDRatioBased(cfg.SampleRate)
	}

	provider := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sampler),
	)

	otel.SetTracerProvider(provider)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	return &TracerProvider{
		provider: provider,
		tracer:   provider.Tracer(TracerName),
	}, nil
}

// Shutdown gracefully shuts down the tracer provider.
func (tp *TracerProvider) Shutdown(ctx context.Context) error {
	if tp.provider != nil {
		return tp.provider.Shutdown(ctx)
	}
	return nil
}

// Tracer returns the underlying tracer.
func (tp *TracerProvider) Tracer() trace.Tracer {
	return tp.tracer
}

// SpanKind constants for pipeline operations.
const (
	SpanKindIngest   = "ingest"
	SpanKindParse    = "parse"
	SpanKindChunk    = "chunk"
	SpanKindEmbed    = "embed"
	SpanKindUpsert   = "upsert"
	SpanKindRetrieve = "retrieve"
)

// StartIngestSpan starts a span covering one document's ingestion.
func StartIngestSpan(ctx context.Context, documentID string) (context.Context, trace.Span) {
	tracer := otel.Tracer(TracerName)
	ctx, span := tracer.Start(ctx, "ingest.document",
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(
			attribute.String("docsift.span.kind", SpanKindIngest),
			attribute.String("docsift.document.id", documentID),
		),
	)
	return ctx, span
}

// StartParseSpan starts a span for document parsing.
func StartParseSpan(ctx context.Context, documentID, format string) (context.Context, trace.Span) {
	tracer := otel.Tracer(TracerName)
	ctx, span := tracer.Start(ctx, "parser.parse",
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(
			attribute.String("docsift.span.kind", SpanKindParse),
			attribute.String("docsift.document.id", documentID),
			attribute.String("docsift.document.format", format),
		),
	)
	return ctx, span
}

// StartChunkSpan starts a span for chunking.
func StartChunkSpan(ctx context.Context, documentID string, blockCount int) (context.Context, trace.Span) {
	tracer := otel.Tracer(TracerName)
	ctx, span := tracer.Start(ctx, "chunker.chunk",
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(
			attribute.String("docsift.span.kind", SpanKindChunk),
			attribute.String("docsift.document.id", documentID),
			attribute.Int("docsift.block_count", blockCount),
		),
	)
	return ctx, span
}

// StartEmbedSpan starts a span for an embedding provider call.
func StartEmbedSpan(ctx context.Context, provider string, textCount int) (context.Context, trace.Span) {
	tracer := otel.Tracer(TracerName)
	ctx, span := tracer.Start(ctx, "embed.batch",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("docsift.span.kind", SpanKindEmbed),
			attribute.String("embed.provider", provider),
			attribute.Int("embed.text_count", textCount),
		),
	)
	return ctx, span
}

// RecordEmbedMetrics records embedding call metrics on a span.
func RecordEmbedMetrics(span trace.Span, vectorCount, dimension int, duration time.Duration) {
	span.SetAttributes(
		attribute.Int("embed.vector_count", vectorCount),
		attribute.Int("embed.dimension", dimension),
		attribute.Int64("embed.duration_ms", duration.Milliseconds()),
	)
}

// StartUpsertSpan starts a span for a vector store write.
func StartUpsertSpan(ctx context.Context, collection string, recordCount int) (context.Context, trace.Span) {
	tracer := otel.Tracer(TracerName)
	ctx, span := tracer.Start(ctx, "vector.upsert",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("docsift.span.kind", SpanKindUpsert),
			attribute.String("vector.collection", collection),
			attribute.Int("vector.record_count", recordCount),
		),
	)
	return ctx, span
}

// StartRetrieveSpan starts a span covering one search request.
func StartRetrieveSpan(ctx context.Context, limit int) (context.Context, trace.Span) {
	tracer := otel.Tracer(TracerName)
	ctx, span := tracer.Start(ctx, "retrieve.search",
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(
			attribute.String("docsift.span.kind", SpanKindRetrieve),
			attribute.Int("retrieve.limit", limit),
		),
	)
	return ctx, span
}

// RecordRetrieveResult records search outcome on a span.
func RecordRetrieveResult(span trace.Span, hitCount int, topScore float32) {
	span.SetAttributes(
		attribute.Int("retrieve.hit_count", hitCount),
		attribute.Float64("retrieve.top_score", float64(topScore)),
	)
}

// RecordIngestResult records the per-stage outcome of an ingestion.
func RecordIngestResult(span trace.Span, chunkCount, vectorCount int) {
	span.SetAttributes(
		attribute.Int("ingest.chunk_count", chunkCount),
		attribute.Int("ingest.vector_count", vectorCount),
	)
}

// RecordError records an error on a span.
func RecordError(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
}
