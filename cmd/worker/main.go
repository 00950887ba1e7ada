package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/joho/godotenv"
	temporalclient "go.temporal.io/sdk/client"

	"github.com/selimova/docsift/internal/chunker"
	"github.com/selimova/docsift/internal/config"
	"github.com/selimova/docsift/internal/embedding"
	"github.com/selimova/docsift/internal/embedding/openai"
	"github.com/selimova/docsift/internal/secrets"
	"github.com/selimova/docsift/internal/server"
	temporalmod "github.com/selimova/docsift/internal/temporal"
	"github.com/selimova/docsift/internal/vector"
	"github.com/selimova/docsift/internal/vector/memory"
	"github.com/selimova/docsift/internal/vector/qdrant"
)

func main() {
	_ = godotenv.Load()

	configPath := "configs/docsift.yaml"
	if len(os.Args) > 1 {
		configPath = os.Args[1]
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	ctx := context.Background()

	apiKey := cfg.Embedding.APIKey
	if apiKey == "" {
		apiKey = secrets.GetOrDefault(ctx, string(secrets.SecretEmbeddingAPIKey), "")
	}
	base, err := openai.New(openai.Config{
		APIKey:    apiKey,
		BaseURL:   cfg.Embedding.BaseURL,
		Model:     cfg.Embedding.Model,
		Dimension: cfg.Embedding.Dimension,
	})
	if err != nil {
		log.Fatalf("embedding provider: %v", err)
	}

	// The workflow retry policy owns retries, so no RetryProvider here.
	// Rate limiting wraps the raw client and the Batcher sits outermost,
	// so every API call is individually limited.
	var provider embedding.Provider = embedding.NewRateLimitProvider(base, embedding.DefaultRateLimitConfig(), chunker.CountTokens)
	provider = embedding.NewBatcher(provider, embedding.DefaultBatchConfig(), chunker.CountTokens)

	collection := cfg.Vector.Collection
	if collection == "" {
		collection = "docsift"
	}
	var store vector.Store
	if cfg.Vector.Backend == "memory" {
		store = memory.New(collection)
	} else {
		host := cfg.Vector.Host
		if host == "" {
			host = "localhost"
		}
		port := cfg.Vector.Port
		if port == 0 {
			port = 6334
		}
		store, err = qdrant.New(host, port, collection)
		if err != nil {
			log.Fatalf("vector store: %v", err)
		}
	}

	maxTokens, overlap := cfg.Chunking.MaxTokens, cfg.Chunking.OverlapTokens
	if maxTokens <= 0 {
		maxTokens, overlap = chunker.DefaultMaxTokens, chunker.DefaultOverlapTokens
	}
	c, err := chunker.New(maxTokens, overlap)
	if err != nil {
		log.Fatalf("chunker: %v", err)
	}

	temporalmod.SetDependencies(&temporalmod.Dependencies{
		Chunker:  c,
		Provider: provider,
		Store:    store,
	})

	tc, err := temporalclient.Dial(temporalclient.Options{
		HostPort:  cfg.Temporal.Host,
		Namespace: cfg.Temporal.Namespace,
	})
	if err != nil {
		log.Fatalf("temporal client: %v", err)
	}
	defer tc.Close()

	taskQueue := cfg.Temporal.TaskQueue
	if taskQueue == "" {
		taskQueue = "docsift-ingest"
	}
	w, err := temporalmod.StartWorker(tc, taskQueue)
	if err != nil {
		log.Fatalf("worker: %v", err)
	}

	graceful := server.NewGracefulServer(nil, nil)
	graceful.Health.RegisterCheck("temporal", server.TemporalHealthChecker(func(ctx context.Context) error {
		_, err := tc.CheckHealth(ctx, &temporalclient.CheckHealthRequest{})
		return err
	}))
	graceful.Health.RegisterCheck("vector-store", server.VectorStoreHealthChecker(func(ctx context.Context) error {
		_, err := store.Stats(ctx)
		return err
	}))
	graceful.AddHook(server.TemporalWorkerShutdownHook(w.Stop))
	graceful.AddHook(server.VectorStoreShutdownHook(store.Close))

	healthAddr := cfg.Server.HealthAddr
	if healthAddr == "" {
		healthAddr = ":8081"
	}
	if err := graceful.Start(healthAddr); err != nil {
		log.Fatalf("health server: %v", err)
	}

	fmt.Printf("Worker started on task queue %s (health on %s)\n", taskQueue, healthAddr)
	graceful.Wait()
	fmt.Println("Worker stopped")
}
