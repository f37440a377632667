package compare

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/recollecthq/recollect/server/ai"
	apperr "github.com/recollecthq/recollect/server/internal/errors"
	"github.com/recollecthq/recollect/store"
	"github.com/recollecthq/recollect/store/storetest"
)

type fixedService struct{}

func (*fixedService) Embed(_ context.Context, _ string) ([]float32, error) {
	return []float32{1, 0, 0}, nil
}

func (*fixedService) EmbedBatch(_ context.Context, texts []string) ([][]float32, error) {
	vectors := make([][]float32, len(texts))
	for i := range texts {
		vectors[i] = []float32{1, 0, 0}
	}
	return vectors, nil
}

func (*fixedService) ModelName() string    { return "test-model" }
func (*fixedService) ModelVersion() string { return "1.0" }
func (*fixedService) Dimensions() int      { return 3 }

type fixture struct {
	driver     *storetest.Driver
	store      *store.Store
	comparator *Comparator
}

func newFixture() *fixture {
	driver := storetest.NewDriver()
	st := store.New(driver, nil)
	manager := ai.NewEmbeddingManager(&fixedService{}, st)
	return &fixture{
		driver:     driver,
		store:      st,
		comparator: NewComparator(st, manager),
	}
}

func (f *fixture) addConversation(t *testing.T, ownerID int32, uid string, assistantContents ...string) *store.Conversation {
	t.Helper()
	ctx := context.Background()
	conversation, err := f.driver.CreateConversation(ctx, &store.Conversation{
		UID:       uid,
		CreatorID: ownerID,
		AgentID:   1,
	})
	require.NoError(t, err)

	sequence := int32(0)
	for _, content := range assistantContents {
		_, err := f.driver.CreateMessage(ctx, &store.Message{
			UID:            uid + "-u" + content,
			ConversationID: conversation.ID,
			Role:           store.RoleUser,
			Content:        "question",
			SequenceNumber: sequence,
		})
		require.NoError(t, err)
		sequence++
		_, err = f.driver.CreateMessage(ctx, &store.Message{
			UID:            uid + "-a" + content,
			ConversationID: conversation.ID,
			Role:           store.RoleAssistant,
			Content:        content,
			SequenceNumber: sequence,
		})
		require.NoError(t, err)
		sequence++
	}
	return conversation
}

func (f *fixture) embedAssistantTurns(t *testing.T, conversationID int32, vectors ...[]float32) {
	t.Helper()
	ctx := context.Background()
	role := store.RoleAssistant
	messages, err := f.driver.ListMessages(ctx, &store.FindMessage{
		ConversationID: &conversationID,
		Role:           &role,
	})
	require.NoError(t, err)
	for i, vector := range vectors {
		if vector == nil {
			continue
		}
		_, err := f.driver.UpsertMessageEmbedding(ctx, &store.MessageEmbedding{
			MessageID:    messages[i].ID,
			Embedding:    vector,
			ModelName:    "test-model",
			ModelVersion: "1.0",
		})
		require.NoError(t, err)
	}
}

func TestCompareTurnsNotFoundForWrongOwner(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	f.addConversation(t, 1, "left", "a")
	f.addConversation(t, 2, "right", "b")

	_, err := f.comparator.CompareTurns(ctx, 1, "left", "right", 10)
	require.Error(t, err)
	assert.True(t, apperr.IsCode(err, apperr.ErrCodeNotFound))
}

func TestCompareTurnsNotFoundForSoftDeleted(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	f.addConversation(t, 1, "left", "a")
	right := f.addConversation(t, 1, "right", "b")

	deleted := true
	_, err := f.driver.UpdateConversation(ctx, &store.UpdateConversation{ID: right.ID, Deleted: &deleted})
	require.NoError(t, err)

	_, err = f.comparator.CompareTurns(ctx, 1, "left", "right", 10)
	require.Error(t, err)
	assert.True(t, apperr.IsCode(err, apperr.ErrCodeNotFound))
}

func TestCompareTurnsZeroAssistantTurns(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	f.addConversation(t, 1, "left")
	f.addConversation(t, 1, "right", "b")

	result, err := f.comparator.CompareTurns(ctx, 1, "left", "right", 10)
	require.NoError(t, err)
	assert.Zero(t, result.ComparedTurns)
	assert.Zero(t, result.ComparableTurns)
	assert.Nil(t, result.AverageSimilarity)
	assert.Empty(t, result.Turns)
}

func TestCompareTurnsPartialEmbeddings(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	left := f.addConversation(t, 1, "left", "a1", "a2", "a3", "a4")
	right := f.addConversation(t, 1, "right", "b1", "b2", "b3", "b4")

	f.embedAssistantTurns(t, left.ID,
		[]float32{1, 0, 0}, []float32{1, 0, 0}, []float32{1, 0, 0}, []float32{1, 0, 0})
	// Third right turn has no embedding; that turn is reported but excluded
	// from the average.
	f.embedAssistantTurns(t, right.ID,
		[]float32{1, 0, 0}, []float32{0, 1, 0}, nil, []float32{1, 0, 0})

	result, err := f.comparator.CompareTurns(ctx, 1, "left", "right", 10)
	require.NoError(t, err)
	assert.Equal(t, 4, result.ComparedTurns)
	assert.Equal(t, 3, result.ComparableTurns)
	require.NotNil(t, result.AverageSimilarity)
	// Similarities: 1, 0, 1 over three comparable turns.
	assert.InDelta(t, 2.0/3.0, *result.AverageSimilarity, 1e-9)

	require.Len(t, result.Turns, 4)
	third := result.Turns[2]
	assert.True(t, third.LeftEmbedded)
	assert.False(t, third.RightEmbedded)
	assert.Nil(t, third.Similarity)
	assert.Equal(t, "a3", third.LeftPreview)
	assert.Equal(t, "b3", third.RightPreview)
}

func TestCompareTurnsClampsMaxTurns(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	f.addConversation(t, 1, "left", "a1", "a2", "a3")
	f.addConversation(t, 1, "right", "b1", "b2", "b3")

	result, err := f.comparator.CompareTurns(ctx, 1, "left", "right", 0)
	require.NoError(t, err)
	assert.Equal(t, 1, result.ComparedTurns)

	result, err = f.comparator.CompareTurns(ctx, 1, "left", "right", -5)
	require.NoError(t, err)
	assert.Equal(t, 1, result.ComparedTurns)
}

func TestCompareTurnsAlignsByMinimum(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	f.addConversation(t, 1, "left", "a1", "a2", "a3")
	f.addConversation(t, 1, "right", "b1")

	result, err := f.comparator.CompareTurns(ctx, 1, "left", "right", 10)
	require.NoError(t, err)
	assert.Equal(t, 1, result.ComparedTurns)
}

func TestCompareTurnsTruncatesPreview(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	long := strings.Repeat("x", 500)
	f.addConversation(t, 1, "left", long)
	f.addConversation(t, 1, "right", "short")

	result, err := f.comparator.CompareTurns(ctx, 1, "left", "right", 10)
	require.NoError(t, err)
	require.Len(t, result.Turns, 1)
	assert.Len(t, []rune(result.Turns[0].LeftPreview), PreviewRunes)
	assert.Equal(t, "short", result.Turns[0].RightPreview)
}
