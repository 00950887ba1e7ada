package temporal

import (
	"fmt"
	"time"

	sdktemporal "go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"
)

// IngestInput holds the parameters for a single-document workflow.
type IngestInput struct {
	DocumentID string
	Name       string
	MIME       string
	Content    []byte
}

// IngestOutput holds the result of a single-document workflow.
type IngestOutput struct {
	DocumentID string
	Format     string
	ChunkCount int
	Stored     int
}

// BatchInput holds the parameters for a batch workflow.
type BatchInput struct {
	Documents []IngestInput
}

// BatchOutput summarizes a batch run. Failures maps document IDs to the
// error that stopped them; other documents completed fully.
type BatchOutput struct {
	Succeeded int
	Failed    int
	Chunks    int
	Failures  map[string]string
}

// IngestDocumentWorkflow runs the parse, chunk, embed and store stages as
// activities. The embed stage gets a longer timeout and server-side
// retries since it calls an external API.
func IngestDocumentWorkflow(ctx workflow.Context, input IngestInput) (*IngestOutput, error) {
	ao := workflow.ActivityOptions{
		StartToCloseTimeout: 1 * time.Minute,
	}
	ctx = workflow.WithActivityOptions(ctx, ao)

	var parsed ParseResult
	if err := workflow.ExecuteActivity(ctx, ParseActivity, input).Get(ctx, &parsed); err != nil {
		return nil, fmt.Errorf("parse: %w", err)
	}

	var chunked ChunkResult
	if err := workflow.ExecuteActivity(ctx, ChunkActivity, input.DocumentID, parsed.BlocksJSON).Get(ctx, &chunked); err != nil {
		return nil, fmt.Errorf("chunk: %w", err)
	}

	if chunked.Count == 0 {
		return &IngestOutput{DocumentID: input.DocumentID, Format: parsed.Format}, nil
	}

	embedCtx := workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: 10 * time.Minute,
		RetryPolicy: &sdktemporal.RetryPolicy{
			InitialInterval: time.Second,
			MaximumInterval: time.Minute,
			MaximumAttempts: 5,
		},
	})
	var embedded EmbedResult
	if err := workflow.ExecuteActivity(embedCtx, EmbedActivity, chunked.ChunksJSON).Get(ctx, &embedded); err != nil {
		return nil, fmt.Errorf("embed: %w", err)
	}

	var stored StoreResult
	if err := workflow.ExecuteActivity(ctx, StoreActivity, chunked.ChunksJSON, embedded.VectorsJSON).Get(ctx, &stored); err != nil {
		return nil, fmt.Errorf("store: %w", err)
	}

	return &IngestOutput{
		DocumentID: input.DocumentID,
		Format:     parsed.Format,
		ChunkCount: chunked.Count,
		Stored:     stored.Stored,
	}, nil
}

// IngestBatchWorkflow runs one child document workflow per input. A failed
// document is recorded in the output but never stops its siblings.
func IngestBatchWorkflow(ctx workflow.Context, input BatchInput) (*BatchOutput, error) {
	out := &BatchOutput{Failures: make(map[string]string)}

	for _, doc := range input.Documents {
		cctx := workflow.WithChildOptions(ctx, workflow.ChildWorkflowOptions{
			WorkflowID: workflow.GetInfo(ctx).WorkflowExecution.ID + "/" + doc.DocumentID,
		})

		var res IngestOutput
		if err := workflow.ExecuteChildWorkflow(cctx, IngestDocumentWorkflow, doc).Get(ctx, &res); err != nil {
			out.Failed++
			out.Failures[doc.DocumentID] = err.Error()
			continue
		}
		out.Succeeded++
		out.Chunks += res.ChunkCount
	}

	return out, nil
}
