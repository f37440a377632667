// Package taskqueue decouples request handling from background embedding
// work. The Memory transport runs jobs on a worker goroutine; the Sync
// transport runs them inline for environments without async infrastructure.
package taskqueue

import (
	"context"
	"log/slog"
	"sync"

	"github.com/pkg/errors"
)

// KindEmbedConversation requests embedding generation for every message of a
// conversation.
const KindEmbedConversation = "embed_conversation"

// Job is a unit of scheduled work.
type Job struct {
	Kind           string
	ConversationID int32
}

// Handler processes a scheduled job.
type Handler func(ctx context.Context, job Job) error

// Transport schedules jobs for execution. Schedule must not block on the job
// itself; completion is not ordered relative to the caller's return.
type Transport interface {
	Schedule(ctx context.Context, job Job) error
}

// Memory is an in-process Transport backed by a buffered channel and a single
// worker goroutine.
type Memory struct {
	handler Handler
	jobs    chan Job

	once sync.Once
	wg   sync.WaitGroup
}

// NewMemory creates a memory transport with the given buffer size.
func NewMemory(handler Handler, buffer int) *Memory {
	if buffer <= 0 {
		buffer = 128
	}
	return &Memory{
		handler: handler,
		jobs:    make(chan Job, buffer),
	}
}

// Start launches the worker. It returns immediately; the worker drains the
// queue until ctx is canceled.
func (m *Memory) Start(ctx context.Context) {
	m.once.Do(func() {
		m.wg.Add(1)
		go func() {
			defer m.wg.Done()
			for {
				select {
				case <-ctx.Done():
					return
				case job := <-m.jobs:
					if err := m.handler(ctx, job); err != nil {
						slog.Error("task failed",
							"kind", job.Kind,
							"conversation_id", job.ConversationID,
							"error", err)
					}
				}
			}
		}()
	})
}

// Schedule enqueues a job. When the buffer is full the job is dropped with a
// log line rather than blocking the caller.
func (m *Memory) Schedule(_ context.Context, job Job) error {
	select {
	case m.jobs <- job:
		return nil
	default:
		slog.Warn("task queue full, dropping job",
			"kind", job.Kind,
			"conversation_id", job.ConversationID)
		return errors.New("task queue full")
	}
}

// Wait blocks until the worker has exited. Call after canceling the context
// passed to Start.
func (m *Memory) Wait() {
	m.wg.Wait()
}

// Sync runs jobs inline on the scheduling goroutine. It is a drop-in
// substitute for Memory with identical per-job semantics.
type Sync struct {
	handler Handler
}

// NewSync creates a synchronous transport.
func NewSync(handler Handler) *Sync {
	return &Sync{handler: handler}
}

func (s *Sync) Schedule(ctx context.Context, job Job) error {
	return s.handler(ctx, job)
}
