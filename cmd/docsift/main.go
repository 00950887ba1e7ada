package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/selimova/docsift/internal/catalog"
	neo4jcat "github.com/selimova/docsift/internal/catalog/neo4j"
	"github.com/selimova/docsift/internal/chunker"
	"github.com/selimova/docsift/internal/config"
	"github.com/selimova/docsift/internal/embedding"
	"github.com/selimova/docsift/internal/embedding/openai"
	"github.com/selimova/docsift/internal/observability"
	"github.com/selimova/docsift/internal/pipeline"
	"github.com/selimova/docsift/internal/secrets"
	"github.com/selimova/docsift/internal/server"
	"github.com/selimova/docsift/internal/vector"
	"github.com/selimova/docsift/internal/vector/memory"
	"github.com/selimova/docsift/internal/vector/qdrant"
)

const version = "0.1.0"

func main() {
	_ = godotenv.Load()

	var (
		configPath string
		jsonReport bool
		limit      int
		docFilter  string
	)

	rootCmd := &cobra.Command{
		Use:   "docsift",
		Short: "Document ingestion and semantic retrieval pipeline",
	}
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "configs/docsift.yaml", "Config file path")

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API with health checks and graceful shutdown",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(configPath)
		},
	}

	ingestCmd := &cobra.Command{
		Use:   "ingest <files...>",
		Short: "Ingest documents into the vector store",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runIngest(configPath, args, jsonReport)
		},
	}
	ingestCmd.Flags().BoolVar(&jsonReport, "json", false, "Output the ingestion report as JSON")

	searchCmd := &cobra.Command{
		Use:   "search <question>",
		Short: "Search ingested documents",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSearch(configPath, args[0], limit, docFilter)
		},
	}
	searchCmd.Flags().IntVar(&limit, "limit", pipeline.DefaultSearchLimit, "Maximum number of results")
	searchCmd.Flags().StringVar(&docFilter, "document", "", "Restrict results to one document ID")

	statsCmd := &cobra.Command{
		Use:   "stats",
		Short: "Show collection statistics",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStats(configPath)
		},
	}

	providersCmd := &cobra.Command{
		Use:   "providers",
		Short: "List available embedding providers",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println("Available embedding providers:")
			fmt.Println()
			fmt.Println("  openai         https://api.openai.com (text-embedding-3-small by default)")
			fmt.Println("  custom         (set base_url to any OpenAI-compatible endpoint, e.g. Ollama)")
			fmt.Println()
			fmt.Println("Configure in docsift.yaml or via environment:")
			fmt.Println("  DOCSIFT_EMBEDDING_PROVIDER=openai")
			fmt.Println("  DOCSIFT_EMBEDDING_API_KEY=sk-...")
			fmt.Println("  DOCSIFT_EMBEDDING_MODEL=text-embedding-3-small")
		},
	}

	rootCmd.AddCommand(serveCmd, ingestCmd, searchCmd, statsCmd, providersCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func loadConfig(path string) *config.Config {
	cfg, err := config.Load(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: config load failed (%v), using defaults\n", err)
		cfg = &config.Config{}
	}
	return cfg
}

// buildProvider assembles the embedding provider stack. Retry and rate
// limiting wrap the raw client so every API call is individually limited
// and a transient failure repeats only its own batch; the Batcher sits
// outermost and never re-submits sub-batches that already succeeded.
func buildProvider(ctx context.Context, cfg *config.Config) (embedding.Provider, error) {
	apiKey := cfg.Embedding.APIKey
	if apiKey == "" {
		apiKey = secrets.GetOrDefault(ctx, string(secrets.SecretEmbeddingAPIKey), "")
	}

	switch cfg.Embedding.Provider {
	case "", "openai", "custom":
	default:
		return nil, fmt.Errorf("unknown embedding provider: %s", cfg.Embedding.Provider)
	}

	base, err := openai.New(openai.Config{
		APIKey:    apiKey,
		BaseURL:   cfg.Embedding.BaseURL,
		Model:     cfg.Embedding.Model,
		Dimension: cfg.Embedding.Dimension,
	})
	if err != nil {
		return nil, fmt.Errorf("creating embedding provider: %w", err)
	}

	batchCfg := embedding.DefaultBatchConfig()
	if cfg.Embedding.MaxBatchSize > 0 {
		batchCfg.MaxBatchSize = cfg.Embedding.MaxBatchSize
	}
	if cfg.Embedding.MaxBatchTokens > 0 {
		batchCfg.MaxBatchTokens = cfg.Embedding.MaxBatchTokens
	}

	retryCfg := embedding.DefaultRetryConfig()
	if cfg.Embedding.MaxRetries > 0 {
		retryCfg.MaxRetries = cfg.Embedding.MaxRetries
	}

	rlCfg := embedding.DefaultRateLimitConfig()
	if cfg.Embedding.RequestsPerMin > 0 {
		rlCfg.RequestsPerMinute = cfg.Embedding.RequestsPerMin
	}
	if cfg.Embedding.TokensPerMin > 0 {
		rlCfg.TokensPerMinute = cfg.Embedding.TokensPerMin
	}

	var provider embedding.Provider = embedding.NewRateLimitProvider(base, rlCfg, chunker.CountTokens)
	provider = embedding.NewRetryProvider(provider, retryCfg)
	provider = embedding.NewBatcher(provider, batchCfg, chunker.CountTokens)
	return provider, nil
}

func buildStore(cfg *config.Config) (vector.Store, string, error) {
	collection := cfg.Vector.Collection
	if collection == "" {
		collection = "docsift"
	}

	switch cfg.Vector.Backend {
	case "memory":
		return memory.New(collection), collection, nil
	case "", "qdrant":
		host := cfg.Vector.Host
		if host == "" {
			host = "localhost"
		}
		port := cfg.Vector.Port
		if port == 0 {
			port = 6334
		}
		store, err := qdrant.New(host, port, collection)
		if err != nil {
			return nil, "", fmt.Errorf("connecting to qdrant: %w", err)
		}
		return store, collection, nil
	default:
		return nil, "", fmt.Errorf("unknown vector backend: %s", cfg.Vector.Backend)
	}
}

func buildCatalog(ctx context.Context, cfg *config.Config) (catalog.Repository, error) {
	if !cfg.Catalog.Enabled {
		return nil, nil
	}
	password := cfg.Catalog.Password
	if password == "" {
		password = secrets.GetOrDefault(ctx, string(secrets.SecretCatalogPassword), "")
	}
	return neo4jcat.New(ctx, cfg.Catalog.URI, cfg.Catalog.Username, password)
}

func buildChunker(cfg *config.Config) (*chunker.Chunker, error) {
	maxTokens, overlap := cfg.Chunking.MaxTokens, cfg.Chunking.OverlapTokens
	if maxTokens <= 0 {
		maxTokens, overlap = chunker.DefaultMaxTokens, chunker.DefaultOverlapTokens
	}
	return chunker.New(maxTokens, overlap)
}

func buildPipelines(ctx context.Context, cfg *config.Config) (*pipeline.Ingestor, *pipeline.Retriever, vector.Store, catalog.Repository, error) {
	provider, err := buildProvider(ctx, cfg)
	if err != nil {
		return nil, nil, nil, nil, err
	}
	store, collection, err := buildStore(cfg)
	if err != nil {
		return nil, nil, nil, nil, err
	}
	cat, err := buildCatalog(ctx, cfg)
	if err != nil {
		store.Close()
		return nil, nil, nil, nil, fmt.Errorf("connecting to catalog: %w", err)
	}
	c, err := buildChunker(cfg)
	if err != nil {
		store.Close()
		return nil, nil, nil, nil, err
	}

	ingestor, err := pipeline.NewIngestor(pipeline.IngestorConfig{
		Chunker:    c,
		Provider:   provider,
		Store:      store,
		Catalog:    cat,
		Collection: collection,
	})
	if err != nil {
		store.Close()
		return nil, nil, nil, nil, err
	}
	retriever, err := pipeline.NewRetriever(provider, store)
	if err != nil {
		store.Close()
		return nil, nil, nil, nil, err
	}
	return ingestor, retriever, store, cat, nil
}

func runServe(configPath string) error {
	cfg := loadConfig(configPath)
	ctx := context.Background()

	tp, err := observability.InitTracing(ctx, &observability.TracingConfig{
		ServiceName:    "docsift",
		ServiceVersion: version,
		Environment:    cfg.Tracing.Environment,
		OTLPEndpoint:   cfg.Tracing.OTLPEndpoint,
		SampleRate:     cfg.Tracing.SampleRate,
	})
	if err != nil {
		return fmt.Errorf("init tracing: %w", err)
	}

	if err := observability.InitGlobalAuditLogger(nil); err != nil {
		return fmt.Errorf("init audit log: %w", err)
	}

	ingestor, retriever, store, cat, err := buildPipelines(ctx, cfg)
	if err != nil {
		return err
	}

	if err := ingestor.EnsureReady(ctx); err != nil {
		return fmt.Errorf("preparing collection: %w", err)
	}

	api, err := server.NewAPIServer(server.APIConfig{
		Ingestor:       ingestor,
		Retriever:      retriever,
		Catalog:        cat,
		MaxUploadBytes: cfg.Server.MaxUploadBytes,
	})
	if err != nil {
		return err
	}

	graceful := server.NewGracefulServer(&server.HealthConfig{Version: version}, nil)
	graceful.Health.RegisterCheck("vector-store", server.VectorStoreHealthChecker(func(ctx context.Context) error {
		_, err := store.Stats(ctx)
		return err
	}))
	graceful.Health.RegisterCheck("embedding", server.EmbeddingHealthChecker(cfg.Embedding.Provider, nil))
	if cat != nil {
		graceful.Health.RegisterCheck("catalog", server.CatalogHealthChecker(func(ctx context.Context) error {
			_, err := cat.List(ctx)
			return err
		}))
	}

	addr := cfg.Server.Addr
	if addr == "" {
		addr = ":8080"
	}
	healthAddr := cfg.Server.HealthAddr
	if healthAddr == "" {
		healthAddr = ":8081"
	}

	httpSrv := api.Server(addr)
	graceful.AddHook(server.HTTPServerShutdownHook("api-server", httpSrv.Shutdown))
	graceful.AddHook(server.TracingShutdownHook(tp.Shutdown))
	graceful.AddHook(server.VectorStoreShutdownHook(store.Close))
	if cat != nil {
		graceful.AddHook(server.CatalogShutdownHook(cat.Close))
	}
	graceful.AddHook(server.AuditLoggerShutdownHook(observability.Audit().Close))

	if err := graceful.Start(healthAddr); err != nil {
		return err
	}

	go func() {
		fmt.Printf("docsift API listening on %s (health on %s)\n", addr, healthAddr)
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("api server: %v", err)
		}
	}()

	graceful.Wait()
	fmt.Println("Server stopped")
	return nil
}

func runIngest(configPath string, paths []string, jsonReport bool) error {
	cfg := loadConfig(configPath)
	ctx := context.Background()

	ingestor, _, store, cat, err := buildPipelines(ctx, cfg)
	if err != nil {
		return err
	}
	defer store.Close()
	if cat != nil {
		defer cat.Close(ctx)
	}

	if err := ingestor.EnsureReady(ctx); err != nil {
		return fmt.Errorf("preparing collection: %w", err)
	}

	var docs []pipeline.Document
	for _, path := range paths {
		content, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("reading %s: %w", path, err)
		}
		name := filepath.Base(path)
		docs = append(docs, pipeline.Document{
			ID:      documentID(name),
			Name:    name,
			Content: content,
		})
	}

	report := ingestor.IngestAll(ctx, docs)

	if jsonReport {
		data, err := report.JSON()
		if err != nil {
			return err
		}
		fmt.Println(string(data))
	} else {
		report.PrintSummary(os.Stdout)
	}

	if report.Failed() > 0 {
		return fmt.Errorf("%d of %d documents failed", report.Failed(), len(docs))
	}
	return nil
}

func runSearch(configPath, question string, limit int, docFilter string) error {
	cfg := loadConfig(configPath)
	ctx := context.Background()

	_, retriever, store, cat, err := buildPipelines(ctx, cfg)
	if err != nil {
		return err
	}
	defer store.Close()
	if cat != nil {
		defer cat.Close(ctx)
	}

	results, err := retriever.Search(ctx, question, limit, vector.Filter{DocumentID: docFilter})
	if err != nil {
		return err
	}
	if len(results) == 0 {
		fmt.Println("No results.")
		return nil
	}

	for i, res := range results {
		fmt.Printf("%d. [%.3f] document %s\n", i+1, res.Score, res.DocumentID)
		if len(res.HierarchyPath) > 0 {
			fmt.Printf("   %s\n", strings.Join(res.HierarchyPath, " > "))
		}
		fmt.Printf("   %s\n\n", res.Text)
	}
	return nil
}

func runStats(configPath string) error {
	cfg := loadConfig(configPath)
	ctx := context.Background()

	_, retriever, store, cat, err := buildPipelines(ctx, cfg)
	if err != nil {
		return err
	}
	defer store.Close()
	if cat != nil {
		defer cat.Close(ctx)
	}

	stats, err := retriever.Stats(ctx)
	if err != nil {
		return err
	}

	fmt.Printf("Collection: %s\n", stats.Collection)
	fmt.Printf("Records:    %d\n", stats.PointCount)
	fmt.Printf("Dimension:  %d\n", stats.Dimension)

	if cat != nil {
		docs, err := cat.List(ctx)
		if err != nil {
			return fmt.Errorf("listing catalog: %w", err)
		}
		fmt.Printf("\nDocuments (%d):\n", len(docs))
		for _, d := range docs {
			line := fmt.Sprintf("  %-36s %-10s %4d chunks  %s", d.ID, d.Status, d.ChunkCount, d.Name)
			if d.Error != "" {
				line += "  (" + d.Error + ")"
			}
			fmt.Println(line)
		}
	}
	return nil
}

// documentID derives a stable ID from the document name so re-ingesting
// the same file updates its records in place.
func documentID(name string) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte("docsift://"+name)).String()
}
