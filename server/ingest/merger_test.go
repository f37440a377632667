package ingest

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/recollecthq/recollect/server/taskqueue"
	"github.com/recollecthq/recollect/store"
	"github.com/recollecthq/recollect/store/storetest"
)

type recordingTransport struct {
	jobs []taskqueue.Job
	err  error
}

func (r *recordingTransport) Schedule(_ context.Context, job taskqueue.Job) error {
	if r.err != nil {
		return r.err
	}
	r.jobs = append(r.jobs, job)
	return nil
}

func payload(externalID string, messages ...string) ConversationPayload {
	item := ConversationPayload{
		Agent:      "claude",
		ExternalID: externalID,
		Title:      "a conversation",
	}
	for i, content := range messages {
		role := "user"
		if i%2 == 1 {
			role = "assistant"
		}
		item.Messages = append(item.Messages, MessagePayload{
			Role:           role,
			Content:        content,
			SequenceNumber: int32(i),
		})
	}
	return item
}

func TestMergeBatchCreatesNewConversation(t *testing.T) {
	ctx := context.Background()
	driver := storetest.NewDriver()
	transport := &recordingTransport{}
	merger := NewMerger(store.New(driver, nil), transport)

	result := merger.MergeBatch(ctx, 1, []ConversationPayload{payload("ext-1", "hi", "hello")})

	assert.Equal(t, 1, result.Created)
	assert.Zero(t, result.Updated)
	assert.Zero(t, result.Failed)
	require.Len(t, result.Conversations, 1)

	conversation := result.Conversations[0]
	assert.Equal(t, int32(2), conversation.MessageCount)
	require.NotNil(t, conversation.ExternalID)
	assert.Equal(t, "ext-1", *conversation.ExternalID)

	messages, err := driver.ListMessages(ctx, &store.FindMessage{ConversationID: &conversation.ID})
	require.NoError(t, err)
	assert.Len(t, messages, 2)

	require.Len(t, transport.jobs, 1)
	assert.Equal(t, taskqueue.KindEmbedConversation, transport.jobs[0].Kind)
	assert.Equal(t, conversation.ID, transport.jobs[0].ConversationID)
}

func TestMergeBatchAppendsSuffixOnResync(t *testing.T) {
	ctx := context.Background()
	driver := storetest.NewDriver()
	merger := NewMerger(store.New(driver, nil), &recordingTransport{})

	first := merger.MergeBatch(ctx, 1, []ConversationPayload{payload("ext-1", "a", "b", "c")})
	require.Equal(t, 1, first.Created)
	conversationID := first.Conversations[0].ID

	// Full transcript-so-far with two appended messages.
	second := merger.MergeBatch(ctx, 1, []ConversationPayload{payload("ext-1", "a", "b", "c", "d", "e")})
	assert.Zero(t, second.Created)
	assert.Equal(t, 1, second.Updated)
	assert.Equal(t, int32(5), second.Conversations[0].MessageCount)

	messages, err := driver.ListMessages(ctx, &store.FindMessage{ConversationID: &conversationID})
	require.NoError(t, err)
	require.Len(t, messages, 5)
	assert.Equal(t, "d", messages[3].Content)
	assert.Equal(t, "e", messages[4].Content)
}

func TestMergeBatchResyncWithoutNewMessages(t *testing.T) {
	ctx := context.Background()
	driver := storetest.NewDriver()
	transport := &recordingTransport{}
	merger := NewMerger(store.New(driver, nil), transport)

	merger.MergeBatch(ctx, 1, []ConversationPayload{payload("ext-1", "a", "b")})
	result := merger.MergeBatch(ctx, 1, []ConversationPayload{payload("ext-1", "a", "b")})

	assert.Equal(t, 1, result.Updated)
	assert.Equal(t, int32(2), result.Conversations[0].MessageCount)
	// Only the create scheduled embedding work.
	assert.Len(t, transport.jobs, 1)
}

func TestMergeBatchTitleReplaceOnlyWhenSupplied(t *testing.T) {
	ctx := context.Background()
	driver := storetest.NewDriver()
	merger := NewMerger(store.New(driver, nil), &recordingTransport{})

	merger.MergeBatch(ctx, 1, []ConversationPayload{payload("ext-1", "a")})

	empty := payload("ext-1", "a")
	empty.Title = ""
	result := merger.MergeBatch(ctx, 1, []ConversationPayload{empty})
	assert.Equal(t, "a conversation", result.Conversations[0].Title)

	renamed := payload("ext-1", "a")
	renamed.Title = "renamed"
	result = merger.MergeBatch(ctx, 1, []ConversationPayload{renamed})
	assert.Equal(t, "renamed", result.Conversations[0].Title)
}

func TestMergeBatchShallowMergesMetadata(t *testing.T) {
	ctx := context.Background()
	driver := storetest.NewDriver()
	merger := NewMerger(store.New(driver, nil), &recordingTransport{})

	first := payload("ext-1", "a")
	first.Metadata = map[string]any{"source": "extension", "lang": "en"}
	merger.MergeBatch(ctx, 1, []ConversationPayload{first})

	second := payload("ext-1", "a")
	second.Metadata = map[string]any{"lang": "de", "pinned": true}
	result := merger.MergeBatch(ctx, 1, []ConversationPayload{second})

	metadata := result.Conversations[0].Metadata
	assert.Equal(t, "extension", metadata["source"])
	assert.Equal(t, "de", metadata["lang"])
	assert.Equal(t, true, metadata["pinned"])
}

func TestMergeBatchIsolatesItemFailures(t *testing.T) {
	ctx := context.Background()
	driver := storetest.NewDriver()
	merger := NewMerger(store.New(driver, nil), &recordingTransport{})

	bad := payload("ext-bad", "a")
	bad.Messages[0].Role = "narrator"

	result := merger.MergeBatch(ctx, 1, []ConversationPayload{
		payload("ext-1", "a"),
		bad,
		payload("ext-2", "b"),
	})

	assert.Equal(t, 2, result.Created)
	assert.Equal(t, 1, result.Failed)
	assert.Len(t, result.Conversations, 2)
}

func TestMergeBatchCountsSumToInput(t *testing.T) {
	ctx := context.Background()
	driver := storetest.NewDriver()
	merger := NewMerger(store.New(driver, nil), &recordingTransport{})

	merger.MergeBatch(ctx, 1, []ConversationPayload{payload("ext-1", "a")})

	noAgent := payload("ext-3", "a")
	noAgent.Agent = ""

	items := []ConversationPayload{
		payload("ext-1", "a", "b"), // updated
		payload("ext-2", "a"),      // created
		noAgent,                    // failed
	}
	result := merger.MergeBatch(ctx, 1, items)
	assert.Equal(t, len(items), result.Created+result.Updated+result.Failed)
}

func TestMergeBatchScopesDedupPerOwner(t *testing.T) {
	ctx := context.Background()
	driver := storetest.NewDriver()
	merger := NewMerger(store.New(driver, nil), &recordingTransport{})

	merger.MergeBatch(ctx, 1, []ConversationPayload{payload("ext-1", "a")})
	result := merger.MergeBatch(ctx, 2, []ConversationPayload{payload("ext-1", "a")})

	// Same external id for a different owner is a new conversation.
	assert.Equal(t, 1, result.Created)
	assert.Zero(t, result.Updated)
}

func TestMergeBatchSchedulingFailureDoesNotFailItem(t *testing.T) {
	ctx := context.Background()
	driver := storetest.NewDriver()
	merger := NewMerger(store.New(driver, nil), &recordingTransport{err: assert.AnError})

	result := merger.MergeBatch(ctx, 1, []ConversationPayload{payload("ext-1", "a")})
	assert.Equal(t, 1, result.Created)
	assert.Zero(t, result.Failed)
}

func TestMergeBatchStoresOptionalMessageFields(t *testing.T) {
	ctx := context.Background()
	driver := storetest.NewDriver()
	merger := NewMerger(store.New(driver, nil), &recordingTransport{})

	item := payload("ext-1", "hi", "hello")
	item.Messages[1].ExternalID = "msg-ext-1"
	item.Messages[1].Model = "claude-3-5-sonnet"
	item.Messages[1].Tokens = 42

	result := merger.MergeBatch(ctx, 1, []ConversationPayload{item})
	require.Equal(t, 1, result.Created)

	conversationID := result.Conversations[0].ID
	messages, err := driver.ListMessages(ctx, &store.FindMessage{ConversationID: &conversationID})
	require.NoError(t, err)
	require.Len(t, messages, 2)

	// Absent optional fields stay nil, not zero values.
	assert.Nil(t, messages[0].ExternalID)
	assert.Nil(t, messages[0].Model)
	assert.Nil(t, messages[0].Tokens)

	require.NotNil(t, messages[1].ExternalID)
	assert.Equal(t, "msg-ext-1", *messages[1].ExternalID)
	require.NotNil(t, messages[1].Model)
	assert.Equal(t, "claude-3-5-sonnet", *messages[1].Model)
	require.NotNil(t, messages[1].Tokens)
	assert.Equal(t, int32(42), *messages[1].Tokens)
}

func TestMergeBatchStoreFailureCountsFailed(t *testing.T) {
	ctx := context.Background()
	driver := storetest.NewDriver()
	driver.CreateConversationErr = assert.AnError
	merger := NewMerger(store.New(driver, nil), &recordingTransport{})

	result := merger.MergeBatch(ctx, 1, []ConversationPayload{payload("ext-1", "a")})
	assert.Zero(t, result.Created)
	assert.Equal(t, 1, result.Failed)
	assert.Empty(t, result.Conversations)
}
