package ai

import (
	"context"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/recollecthq/recollect/store"
	"github.com/recollecthq/recollect/store/storetest"
)

type countingService struct {
	embedCalls int32
	batchCalls int32
	err        error
}

func (s *countingService) Embed(_ context.Context, _ string) ([]float32, error) {
	atomic.AddInt32(&s.embedCalls, 1)
	if s.err != nil {
		return nil, s.err
	}
	return []float32{1, 0, 0}, nil
}

func (s *countingService) EmbedBatch(_ context.Context, texts []string) ([][]float32, error) {
	atomic.AddInt32(&s.batchCalls, 1)
	if s.err != nil {
		return nil, s.err
	}
	vectors := make([][]float32, len(texts))
	for i := range texts {
		vectors[i] = []float32{float32(i + 1), 0, 0}
	}
	return vectors, nil
}

func (*countingService) ModelName() string    { return "test-model" }
func (*countingService) ModelVersion() string { return "1.0" }
func (*countingService) Dimensions() int      { return 3 }

func TestEnsureIsIdempotent(t *testing.T) {
	ctx := context.Background()
	driver := storetest.NewDriver()
	service := &countingService{}
	manager := NewEmbeddingManager(service, store.New(driver, nil))

	first, err := manager.Ensure(ctx, 1, "hello")
	require.NoError(t, err)
	second, err := manager.Ensure(ctx, 1, "hello")
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, int32(1), service.embedCalls)

	rows, err := driver.ListMessageEmbeddings(ctx, &store.FindMessageEmbedding{MessageIDs: []int32{1}})
	require.NoError(t, err)
	assert.Len(t, rows, 1)
}

func TestEnsureDistinctModelVersionsCoexist(t *testing.T) {
	ctx := context.Background()
	driver := storetest.NewDriver()
	st := store.New(driver, nil)

	_, err := NewEmbeddingManager(&countingService{}, st).Ensure(ctx, 1, "hello")
	require.NoError(t, err)

	// Same message under an older model version keeps its own row.
	_, err = driver.UpsertMessageEmbedding(ctx, &store.MessageEmbedding{
		MessageID:    1,
		Embedding:    []float32{0, 1, 0},
		ModelName:    "test-model",
		ModelVersion: "0.9",
	})
	require.NoError(t, err)

	rows, err := driver.ListMessageEmbeddings(ctx, &store.FindMessageEmbedding{MessageIDs: []int32{1}})
	require.NoError(t, err)
	assert.Len(t, rows, 2)
}

func TestEnsureBatchPartitionsSkippedAndGenerated(t *testing.T) {
	ctx := context.Background()
	driver := storetest.NewDriver()
	service := &countingService{}
	manager := NewEmbeddingManager(service, store.New(driver, nil))

	_, err := manager.Ensure(ctx, 1, "already embedded")
	require.NoError(t, err)

	result, err := manager.EnsureBatch(ctx, []int32{1, 2, 3}, map[int32]string{
		1: "already embedded",
		2: "new one",
		3: "another new one",
	})
	require.NoError(t, err)

	assert.Equal(t, []int32{1}, result.Skipped)
	assert.Equal(t, []int32{2, 3}, result.Generated)
	assert.Equal(t, int32(1), service.batchCalls)
}

func TestEnsureBatchEncodeFailureIsTotal(t *testing.T) {
	ctx := context.Background()
	driver := storetest.NewDriver()
	service := &countingService{err: assert.AnError}
	manager := NewEmbeddingManager(service, store.New(driver, nil))

	result, err := manager.EnsureBatch(ctx, []int32{1, 2}, map[int32]string{1: "a", 2: "b"})
	require.Error(t, err)
	assert.Empty(t, result.Generated)

	// Nothing was persisted for the failed batch.
	rows, listErr := driver.ListMessageEmbeddings(ctx, &store.FindMessageEmbedding{MessageIDs: []int32{1, 2}})
	require.NoError(t, listErr)
	assert.Empty(t, rows)
}

func TestEnsureBatchStoreFailureIsTotal(t *testing.T) {
	ctx := context.Background()
	driver := storetest.NewDriver()
	driver.UpsertEmbeddingErr = assert.AnError
	manager := NewEmbeddingManager(&countingService{}, store.New(driver, nil))

	result, err := manager.EnsureBatch(ctx, []int32{1, 2}, map[int32]string{1: "a", 2: "b"})
	require.Error(t, err)
	assert.Empty(t, result.Generated)

	// The batch is persisted in a single write, so a store failure leaves no
	// partial prefix behind.
	rows, listErr := driver.ListMessageEmbeddings(ctx, &store.FindMessageEmbedding{MessageIDs: []int32{1, 2}})
	require.NoError(t, listErr)
	assert.Empty(t, rows)
}

func TestEnsureBatchAllSkippedSkipsEncode(t *testing.T) {
	ctx := context.Background()
	driver := storetest.NewDriver()
	service := &countingService{}
	manager := NewEmbeddingManager(service, store.New(driver, nil))

	_, err := manager.Ensure(ctx, 1, "hello")
	require.NoError(t, err)

	result, err := manager.EnsureBatch(ctx, []int32{1}, map[int32]string{1: "hello"})
	require.NoError(t, err)
	assert.Equal(t, []int32{1}, result.Skipped)
	assert.Zero(t, service.batchCalls)
}

func TestEmbeddingsForNeverGenerates(t *testing.T) {
	ctx := context.Background()
	driver := storetest.NewDriver()
	service := &countingService{}
	manager := NewEmbeddingManager(service, store.New(driver, nil))

	_, err := manager.Ensure(ctx, 1, "hello")
	require.NoError(t, err)

	vectors, err := manager.EmbeddingsFor(ctx, []int32{1, 2})
	require.NoError(t, err)
	assert.Contains(t, vectors, int32(1))
	assert.NotContains(t, vectors, int32(2))
	// Only the single Ensure touched the model.
	assert.Equal(t, int32(1), service.embedCalls)
	assert.Zero(t, service.batchCalls)
}
