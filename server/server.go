// Package server assembles the HTTP service: echo routing, the ingestion and
// retrieval engine, the task transport, and background runners.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"

	"github.com/recollecthq/recollect/internal/profile"
	"github.com/recollecthq/recollect/server/ai"
	"github.com/recollecthq/recollect/server/compare"
	"github.com/recollecthq/recollect/server/ingest"
	"github.com/recollecthq/recollect/server/retrieval"
	apiv1 "github.com/recollecthq/recollect/server/router/api/v1"
	embeddingrunner "github.com/recollecthq/recollect/server/runner/embedding"
	"github.com/recollecthq/recollect/server/taskqueue"
	"github.com/recollecthq/recollect/store"
)

// Server is the running instance.
type Server struct {
	Profile *profile.Profile
	Store   *store.Store

	echoServer *echo.Echo
	transport  taskqueue.Transport
	memory     *taskqueue.Memory
	runner     *embeddingrunner.Runner
}

// NewServer creates a server from the profile and an opened store.
func NewServer(ctx context.Context, profile *profile.Profile, store *store.Store) (*Server, error) {
	service := ai.NewLazyService(ai.ConfigFromProfile(profile), func() (ai.EmbeddingService, error) {
		return ai.NewProvider(ai.ConfigFromProfile(profile))
	})
	manager := ai.NewEmbeddingManager(service, store)

	s := &Server{
		Profile: profile,
		Store:   store,
	}

	handler := s.embedConversationHandler(manager)
	if profile.AsyncEmbedding {
		memory := taskqueue.NewMemory(handler, 256)
		s.memory = memory
		s.transport = memory
	} else {
		s.transport = taskqueue.NewSync(handler)
	}

	merger := ingest.NewMerger(store, s.transport)
	ranker := retrieval.NewRanker(store, service)
	comparator := compare.NewComparator(store, manager)
	s.runner = embeddingrunner.NewRunner(store, manager)

	echoServer := echo.New()
	echoServer.Debug = true
	echoServer.HideBanner = true
	echoServer.HidePort = true
	echoServer.Use(echomw.Logger())
	echoServer.Use(echomw.Recover())
	echoServer.Use(echomw.CORS())

	echoServer.GET("/healthz", func(c echo.Context) error {
		return c.String(http.StatusOK, "Service ready.")
	})

	apiService := apiv1.NewAPIV1Service(profile.Secret, profile, store, merger, ranker, comparator, manager)
	apiService.Register(echoServer)

	s.echoServer = echoServer
	return s, nil
}

// Start launches the background workers and the HTTP listener. It returns
// once the listener is up; the listener itself runs on its own goroutine.
func (s *Server) Start(ctx context.Context) error {
	if s.memory != nil {
		s.memory.Start(ctx)
	}
	go s.runner.Run(ctx)

	address := fmt.Sprintf("%s:%d", s.Profile.Addr, s.Profile.Port)
	go func() {
		if err := s.echoServer.Start(address); err != nil && err != http.ErrServerClosed {
			slog.Error("failed to start echo server", "error", err)
		}
	}()
	return nil
}

// Shutdown stops the HTTP listener gracefully and waits for the task worker.
func (s *Server) Shutdown(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if err := s.echoServer.Shutdown(ctx); err != nil {
		slog.Error("failed to shutdown server", "error", err)
	}
	if err := s.Store.Close(); err != nil {
		slog.Error("failed to close store", "error", err)
	}
	slog.Info("server stopped")
}

// embedConversationHandler generates embeddings for every message of a
// conversation in one batched call. The backfill runner picks up anything a
// failed batch leaves behind.
func (s *Server) embedConversationHandler(manager *ai.EmbeddingManager) taskqueue.Handler {
	return func(ctx context.Context, job taskqueue.Job) error {
		if job.Kind != taskqueue.KindEmbedConversation {
			return fmt.Errorf("unknown job kind: %s", job.Kind)
		}
		messages, err := s.Store.ListMessages(ctx, &store.FindMessage{ConversationID: &job.ConversationID})
		if err != nil {
			return err
		}
		messageIDs := make([]int32, 0, len(messages))
		contentByID := make(map[int32]string, len(messages))
		for _, message := range messages {
			if message.Content == "" {
				continue
			}
			messageIDs = append(messageIDs, message.ID)
			contentByID[message.ID] = message.Content
		}
		_, err = manager.EnsureBatch(ctx, messageIDs, contentByID)
		return err
	}
}
