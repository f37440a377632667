package store

import "context"

// Conversation is a captured exchange with an AI assistant.
// A conversation is created on the first ingest of a given external ID and
// mutated on subsequent ingests of the same external ID. Deletion is soft
// unless explicitly requested otherwise.
type Conversation struct {
	ID           int32
	UID          string
	CreatorID    int32
	AgentID      int32
	ProjectID    *int32
	ExternalID   *string
	Title        string
	MessageCount int32
	Metadata     map[string]any
	Archived     bool
	Deleted      bool
	DeletedTs    *int64
	CreatedTs    int64
	UpdatedTs    int64
}

type FindConversation struct {
	ID         *int32
	UID        *string
	CreatorID  *int32
	AgentID    *int32
	ProjectID  *int32
	ExternalID *string

	// IncludeDeleted includes soft-deleted rows. Off by default.
	IncludeDeleted bool

	Limit  *int
	Offset *int
}

type UpdateConversation struct {
	ID           int32
	Title        *string
	ProjectID    *int32
	MessageCount *int32
	// Metadata replaces the stored map wholesale; merge semantics are the
	// caller's concern.
	Metadata  map[string]any
	Archived  *bool
	Deleted   *bool
	DeletedTs *int64
	UpdatedTs *int64
}

// DeleteConversation hard-deletes a conversation and, via cascade, its
// messages and their embeddings.
type DeleteConversation struct {
	ID int32
}

func (s *Store) CreateConversation(ctx context.Context, create *Conversation) (*Conversation, error) {
	return s.driver.CreateConversation(ctx, create)
}

func (s *Store) ListConversations(ctx context.Context, find *FindConversation) ([]*Conversation, error) {
	return s.driver.ListConversations(ctx, find)
}

// GetConversation returns the first conversation matching the condition, or
// nil when absent.
func (s *Store) GetConversation(ctx context.Context, find *FindConversation) (*Conversation, error) {
	limit := 1
	find.Limit = &limit
	list, err := s.driver.ListConversations(ctx, find)
	if err != nil {
		return nil, err
	}
	if len(list) == 0 {
		return nil, nil
	}
	return list[0], nil
}

func (s *Store) UpdateConversation(ctx context.Context, update *UpdateConversation) (*Conversation, error) {
	return s.driver.UpdateConversation(ctx, update)
}

func (s *Store) DeleteConversation(ctx context.Context, delete *DeleteConversation) error {
	return s.driver.DeleteConversation(ctx, delete)
}
