package ai

import (
	"context"
	"log/slog"

	apperr "github.com/recollecthq/recollect/server/internal/errors"
	"github.com/recollecthq/recollect/store"
)

// EmbeddingManager owns the embedding lifecycle for messages: generate once
// per (message, model name, model version), then reuse.
type EmbeddingManager struct {
	service EmbeddingService
	store   *store.Store
}

// NewEmbeddingManager creates a new embedding manager.
func NewEmbeddingManager(service EmbeddingService, store *store.Store) *EmbeddingManager {
	return &EmbeddingManager{
		service: service,
		store:   store,
	}
}

func (m *EmbeddingManager) ModelName() string    { return m.service.ModelName() }
func (m *EmbeddingManager) ModelVersion() string { return m.service.ModelVersion() }

// Ensure returns the stored embedding for the message under the current model
// version, generating and persisting it first if absent. Safe to call
// repeatedly; the (message, model, version) uniqueness constraint guarantees a
// single row even under concurrent callers.
func (m *EmbeddingManager) Ensure(ctx context.Context, messageID int32, content string) ([]float32, error) {
	modelName := m.service.ModelName()
	modelVersion := m.service.ModelVersion()

	existing, err := m.store.GetMessageEmbedding(ctx, messageID, modelName, modelVersion)
	if err != nil {
		return nil, apperr.StoreFailure("failed to look up embedding", err)
	}
	if existing != nil {
		return existing.Embedding, nil
	}

	vector, err := m.service.Embed(ctx, content)
	if err != nil {
		return nil, apperr.ModelFailure("failed to encode message", err)
	}

	persisted, err := m.store.UpsertMessageEmbedding(ctx, &store.MessageEmbedding{
		MessageID:    messageID,
		Embedding:    vector,
		ModelName:    modelName,
		ModelVersion: modelVersion,
	})
	if err != nil {
		return nil, apperr.StoreFailure("failed to persist embedding", err)
	}
	// A concurrent caller may have won the insert; the upsert hands back the
	// surviving row either way.
	return persisted.Embedding, nil
}

// BatchResult reports the outcome of EnsureBatch.
type BatchResult struct {
	Generated []int32
	Skipped   []int32
}

// EnsureBatch embeds every listed message that lacks an embedding under the
// current model version. Already-embedded messages are skipped; the remainder
// is encoded in one batched call and persisted in one write. If either step
// fails, nothing is persisted and the whole remainder counts as failed.
func (m *EmbeddingManager) EnsureBatch(ctx context.Context, messageIDs []int32, contentByID map[int32]string) (*BatchResult, error) {
	result := &BatchResult{}
	if len(messageIDs) == 0 {
		return result, nil
	}

	modelName := m.service.ModelName()
	modelVersion := m.service.ModelVersion()

	existing, err := m.store.ListMessageEmbeddings(ctx, &store.FindMessageEmbedding{
		MessageIDs:   messageIDs,
		ModelName:    &modelName,
		ModelVersion: &modelVersion,
	})
	if err != nil {
		return nil, apperr.StoreFailure("failed to list embeddings", err)
	}
	embedded := make(map[int32]bool, len(existing))
	for _, embedding := range existing {
		embedded[embedding.MessageID] = true
	}

	pending := make([]int32, 0, len(messageIDs))
	for _, id := range messageIDs {
		if embedded[id] {
			result.Skipped = append(result.Skipped, id)
			continue
		}
		pending = append(pending, id)
	}
	if len(pending) == 0 {
		return result, nil
	}

	texts := make([]string, len(pending))
	for i, id := range pending {
		texts[i] = contentByID[id]
	}

	vectors, err := m.service.EmbedBatch(ctx, texts)
	if err != nil {
		return result, apperr.ModelFailure("batched encode failed", err)
	}
	if len(vectors) != len(pending) {
		return result, apperr.ModelFailure("batched encode returned wrong count", nil)
	}

	rows := make([]*store.MessageEmbedding, len(pending))
	for i, id := range pending {
		rows[i] = &store.MessageEmbedding{
			MessageID:    id,
			Embedding:    vectors[i],
			ModelName:    modelName,
			ModelVersion: modelVersion,
		}
	}
	// One statement for the whole remainder, so a store failure never leaves
	// a partially persisted batch behind.
	if err := m.store.UpsertMessageEmbeddings(ctx, rows); err != nil {
		return result, apperr.StoreFailure("failed to persist embeddings", err)
	}
	result.Generated = append(result.Generated, pending...)

	slog.Debug("embedding batch complete",
		"generated", len(result.Generated),
		"skipped", len(result.Skipped),
		"model", modelName)

	return result, nil
}

// EmbeddingsFor fetches stored embeddings for the given messages under the
// current model version. Read-only: messages without an embedding are simply
// absent from the map.
func (m *EmbeddingManager) EmbeddingsFor(ctx context.Context, messageIDs []int32) (map[int32][]float32, error) {
	if len(messageIDs) == 0 {
		return map[int32][]float32{}, nil
	}

	modelName := m.service.ModelName()
	modelVersion := m.service.ModelVersion()

	list, err := m.store.ListMessageEmbeddings(ctx, &store.FindMessageEmbedding{
		MessageIDs:   messageIDs,
		ModelName:    &modelName,
		ModelVersion: &modelVersion,
	})
	if err != nil {
		return nil, apperr.StoreFailure("failed to list embeddings", err)
	}

	vectors := make(map[int32][]float32, len(list))
	for _, embedding := range list {
		vectors[embedding.MessageID] = embedding.Embedding
	}
	return vectors, nil
}
