package ai

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLazyServiceOpensOnce(t *testing.T) {
	ctx := context.Background()
	var opens int32
	lazy := NewLazyService(DefaultConfig(), func() (EmbeddingService, error) {
		atomic.AddInt32(&opens, 1)
		time.Sleep(10 * time.Millisecond) // widen the first-use race window
		return &countingService{}, nil
	})

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := lazy.Embed(ctx, "hello")
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), atomic.LoadInt32(&opens))
}

func TestLazyServiceRetriesAfterOpenFailure(t *testing.T) {
	ctx := context.Background()
	var opens int32
	lazy := NewLazyService(DefaultConfig(), func() (EmbeddingService, error) {
		if atomic.AddInt32(&opens, 1) == 1 {
			return nil, assert.AnError
		}
		return &countingService{}, nil
	})

	_, err := lazy.Embed(ctx, "hello")
	require.Error(t, err)

	_, err = lazy.Embed(ctx, "hello")
	require.NoError(t, err)
	assert.Equal(t, int32(2), atomic.LoadInt32(&opens))
}

func TestLazyServiceAnswersIdentityWithoutOpening(t *testing.T) {
	var opens int32
	cfg := DefaultConfig()
	lazy := NewLazyService(cfg, func() (EmbeddingService, error) {
		atomic.AddInt32(&opens, 1)
		return &countingService{}, nil
	})

	assert.Equal(t, cfg.Model, lazy.ModelName())
	assert.Equal(t, cfg.ModelVersion, lazy.ModelVersion())
	assert.Equal(t, cfg.Dimensions, lazy.Dimensions())
	assert.Zero(t, atomic.LoadInt32(&opens))
}
