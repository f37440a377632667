package embedding

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/recollecthq/recollect/server/ai"
	"github.com/recollecthq/recollect/store"
	"github.com/recollecthq/recollect/store/storetest"
)

type stubService struct{}

func (*stubService) Embed(_ context.Context, _ string) ([]float32, error) {
	return []float32{1, 0, 0}, nil
}

func (*stubService) EmbedBatch(_ context.Context, texts []string) ([][]float32, error) {
	vectors := make([][]float32, len(texts))
	for i := range texts {
		vectors[i] = []float32{1, 0, 0}
	}
	return vectors, nil
}

func (*stubService) ModelName() string    { return "test-model" }
func (*stubService) ModelVersion() string { return "1.0" }
func (*stubService) Dimensions() int      { return 3 }

func TestRunOnceBackfillsMissingEmbeddings(t *testing.T) {
	ctx := context.Background()
	driver := storetest.NewDriver()
	st := store.New(driver, nil)

	conversation, err := driver.CreateConversation(ctx, &store.Conversation{UID: "c1", CreatorID: 1, AgentID: 1})
	require.NoError(t, err)
	for i, content := range []string{"first", "second", "third"} {
		_, err := driver.CreateMessage(ctx, &store.Message{
			UID:            content,
			ConversationID: conversation.ID,
			Role:           store.RoleAssistant,
			Content:        content,
			SequenceNumber: int32(i),
		})
		require.NoError(t, err)
	}

	manager := ai.NewEmbeddingManager(&stubService{}, st)
	runner := NewRunner(st, manager)
	runner.RunOnce(ctx)

	pending, err := driver.FindMessagesWithoutEmbedding(ctx, &store.FindMessagesWithoutEmbedding{
		ModelName:    "test-model",
		ModelVersion: "1.0",
		Limit:        10,
	})
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestRunOnceSkipsAlreadyEmbedded(t *testing.T) {
	ctx := context.Background()
	driver := storetest.NewDriver()
	st := store.New(driver, nil)

	conversation, err := driver.CreateConversation(ctx, &store.Conversation{UID: "c1", CreatorID: 1, AgentID: 1})
	require.NoError(t, err)
	message, err := driver.CreateMessage(ctx, &store.Message{
		UID:            "m1",
		ConversationID: conversation.ID,
		Role:           store.RoleAssistant,
		Content:        "hello",
		SequenceNumber: 0,
	})
	require.NoError(t, err)

	manager := ai.NewEmbeddingManager(&stubService{}, st)
	_, err = manager.Ensure(ctx, message.ID, message.Content)
	require.NoError(t, err)

	NewRunner(st, manager).RunOnce(ctx)

	rows, err := driver.ListMessageEmbeddings(ctx, &store.FindMessageEmbedding{MessageIDs: []int32{message.ID}})
	require.NoError(t, err)
	assert.Len(t, rows, 1)
}
