package store

import "context"

// MessageEmbedding is the vector embedding of a message under one model
// version. The storage layer enforces at most one row per
// (message_id, model_name, model_version); a message may carry several rows
// across historical model versions and old versions are never purged
// implicitly.
type MessageEmbedding struct {
	ID           int32
	MessageID    int32
	Embedding    []float32
	ModelName    string
	ModelVersion string
	CreatedTs    int64
}

// FindMessageEmbedding is the find condition for message embeddings.
type FindMessageEmbedding struct {
	MessageID    *int32
	MessageIDs   []int32
	ModelName    *string
	ModelVersion *string
}

// FindMessagesWithoutEmbedding locates messages missing an embedding row for
// the given model version. Used by the backfill runner.
type FindMessagesWithoutEmbedding struct {
	ModelName    string
	ModelVersion string
	Limit        int
}

// UpsertMessageEmbedding inserts an embedding, keeping the existing row on
// conflict with the (message, model, version) uniqueness constraint.
func (s *Store) UpsertMessageEmbedding(ctx context.Context, embedding *MessageEmbedding) (*MessageEmbedding, error) {
	return s.driver.UpsertMessageEmbedding(ctx, embedding)
}

// UpsertMessageEmbeddings inserts a batch of embeddings in one statement where
// the driver supports it, keeping existing rows on conflict.
func (s *Store) UpsertMessageEmbeddings(ctx context.Context, embeddings []*MessageEmbedding) error {
	return s.driver.UpsertMessageEmbeddings(ctx, embeddings)
}

func (s *Store) ListMessageEmbeddings(ctx context.Context, find *FindMessageEmbedding) ([]*MessageEmbedding, error) {
	return s.driver.ListMessageEmbeddings(ctx, find)
}

// GetMessageEmbedding gets the embedding of one message under one model
// version, or nil when absent.
func (s *Store) GetMessageEmbedding(ctx context.Context, messageID int32, modelName, modelVersion string) (*MessageEmbedding, error) {
	list, err := s.driver.ListMessageEmbeddings(ctx, &FindMessageEmbedding{
		MessageID:    &messageID,
		ModelName:    &modelName,
		ModelVersion: &modelVersion,
	})
	if err != nil {
		return nil, err
	}
	if len(list) == 0 {
		return nil, nil
	}
	return list[0], nil
}

func (s *Store) FindMessagesWithoutEmbedding(ctx context.Context, find *FindMessagesWithoutEmbedding) ([]*Message, error) {
	return s.driver.FindMessagesWithoutEmbedding(ctx, find)
}
