package taskqueue

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSyncRunsInline(t *testing.T) {
	ctx := context.Background()
	var handled []Job
	transport := NewSync(func(_ context.Context, job Job) error {
		handled = append(handled, job)
		return nil
	})

	err := transport.Schedule(ctx, Job{Kind: KindEmbedConversation, ConversationID: 7})
	require.NoError(t, err)
	require.Len(t, handled, 1)
	assert.Equal(t, int32(7), handled[0].ConversationID)
}

func TestSyncPropagatesHandlerError(t *testing.T) {
	transport := NewSync(func(_ context.Context, _ Job) error {
		return assert.AnError
	})
	assert.Error(t, transport.Schedule(context.Background(), Job{Kind: KindEmbedConversation}))
}

func TestMemoryProcessesScheduledJobs(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var mu sync.Mutex
	handled := map[int32]bool{}
	done := make(chan struct{}, 3)
	transport := NewMemory(func(_ context.Context, job Job) error {
		mu.Lock()
		handled[job.ConversationID] = true
		mu.Unlock()
		done <- struct{}{}
		return nil
	}, 8)
	transport.Start(ctx)

	for _, id := range []int32{1, 2, 3} {
		require.NoError(t, transport.Schedule(ctx, Job{Kind: KindEmbedConversation, ConversationID: id}))
	}

	for i := 0; i < 3; i++ {
		select {
		case <-done:
		case <-time.After(2 * time.Second):
			t.Fatal("timed out waiting for worker")
		}
	}

	mu.Lock()
	defer mu.Unlock()
	assert.Len(t, handled, 3)
}

func TestMemoryDropsWhenFull(t *testing.T) {
	// Worker never started; the buffer fills and further jobs are dropped.
	transport := NewMemory(func(_ context.Context, _ Job) error { return nil }, 1)

	require.NoError(t, transport.Schedule(context.Background(), Job{Kind: KindEmbedConversation, ConversationID: 1}))
	assert.Error(t, transport.Schedule(context.Background(), Job{Kind: KindEmbedConversation, ConversationID: 2}))
}

func TestMemoryStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	transport := NewMemory(func(_ context.Context, _ Job) error { return nil }, 1)
	transport.Start(ctx)

	cancel()
	doneWaiting := make(chan struct{})
	go func() {
		transport.Wait()
		close(doneWaiting)
	}()
	select {
	case <-doneWaiting:
	case <-time.After(2 * time.Second):
		t.Fatal("worker did not stop after cancel")
	}
}
