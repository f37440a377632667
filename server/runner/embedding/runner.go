// Package embedding backfills message embeddings in the background.
package embedding

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/recollecthq/recollect/server/ai"
	"github.com/recollecthq/recollect/store"
)

// Runner periodically scans for messages missing an embedding under the
// current model version and generates them in batches. It backfills both
// dropped fire-and-forget jobs and messages left behind by a model version
// bump.
type Runner struct {
	store     *store.Store
	manager   *ai.EmbeddingManager
	interval  time.Duration
	batchSize int
}

// NewRunner creates an embedding backfill runner.
func NewRunner(store *store.Store, manager *ai.EmbeddingManager) *Runner {
	return &Runner{
		store:     store,
		manager:   manager,
		interval:  2 * time.Minute,
		batchSize: 16,
	}
}

// Run starts the background task and blocks until ctx is canceled.
func (r *Runner) Run(ctx context.Context) {
	// Process once on startup
	r.processPending(ctx)

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			r.processPending(ctx)
		case <-ctx.Done():
			slog.Info("embedding runner stopped")
			return
		}
	}
}

// RunOnce processes pending messages once (for manual trigger).
func (r *Runner) RunOnce(ctx context.Context) {
	r.processPending(ctx)
}

func (r *Runner) processPending(ctx context.Context) {
	messages, err := r.store.FindMessagesWithoutEmbedding(ctx, &store.FindMessagesWithoutEmbedding{
		ModelName:    r.manager.ModelName(),
		ModelVersion: r.manager.ModelVersion(),
		Limit:        r.batchSize * 20, // fetch ahead, process in small batches
	})
	if err != nil {
		slog.Error("failed to find messages without embedding", "error", err)
		return
	}
	if len(messages) == 0 {
		return
	}

	slog.Info("processing messages for embedding", "count", len(messages))

	for i := 0; i < len(messages); i += r.batchSize {
		select {
		case <-ctx.Done():
			slog.Info("embedding processing cancelled", "processed", i, "total", len(messages))
			return
		default:
		}

		end := i + r.batchSize
		if end > len(messages) {
			end = len(messages)
		}
		batch := messages[i:end]

		if err := r.processBatch(ctx, batch); err != nil {
			slog.Error("failed to process batch", "error", err)
			continue
		}
		slog.Info("batch processed", "count", len(batch), "progress", fmt.Sprintf("%d/%d", end, len(messages)))
	}
}

func (r *Runner) processBatch(ctx context.Context, messages []*store.Message) error {
	messageIDs := make([]int32, len(messages))
	contentByID := make(map[int32]string, len(messages))
	for i, message := range messages {
		messageIDs[i] = message.ID
		contentByID[message.ID] = message.Content
	}
	_, err := r.manager.EnsureBatch(ctx, messageIDs, contentByID)
	return err
}
