package ai

import (
	"context"
	"sync"

	"golang.org/x/sync/singleflight"
)

// LazyService defers opening the underlying embedding model handle until the
// first encode call. Concurrent first callers share a single acquisition via
// singleflight; once opened, the handle is reused for the process lifetime.
type LazyService struct {
	config *Config
	open   func() (EmbeddingService, error)

	group   singleflight.Group
	mu      sync.RWMutex
	service EmbeddingService
}

// NewLazyService wraps an opener function. Model identity is answered from the
// config without touching the handle.
func NewLazyService(cfg *Config, open func() (EmbeddingService, error)) *LazyService {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	return &LazyService{config: cfg, open: open}
}

func (s *LazyService) ModelName() string    { return s.config.Model }
func (s *LazyService) ModelVersion() string { return s.config.ModelVersion }
func (s *LazyService) Dimensions() int      { return s.config.Dimensions }

func (s *LazyService) acquire() (EmbeddingService, error) {
	s.mu.RLock()
	service := s.service
	s.mu.RUnlock()
	if service != nil {
		return service, nil
	}

	value, err, _ := s.group.Do("model", func() (any, error) {
		s.mu.RLock()
		cached := s.service
		s.mu.RUnlock()
		if cached != nil {
			return cached, nil
		}
		opened, err := s.open()
		if err != nil {
			return nil, err
		}
		s.mu.Lock()
		s.service = opened
		s.mu.Unlock()
		return opened, nil
	})
	if err != nil {
		return nil, err
	}
	return value.(EmbeddingService), nil
}

func (s *LazyService) Embed(ctx context.Context, text string) ([]float32, error) {
	service, err := s.acquire()
	if err != nil {
		return nil, err
	}
	return service.Embed(ctx, text)
}

func (s *LazyService) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	service, err := s.acquire()
	if err != nil {
		return nil, err
	}
	return service.EmbedBatch(ctx, texts)
}
