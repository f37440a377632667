package store

import (
	"context"
	"database/sql"
)

// Driver is an interface for store driver.
// It contains all methods that store database driver should implement.
type Driver interface {
	GetDB() *sql.DB
	Close() error

	IsInitialized(ctx context.Context) (bool, error)
	GetSchemaVersion(ctx context.Context) (string, error)
	UpsertSchemaVersion(ctx context.Context, version string) error

	// User model related methods.
	CreateUser(ctx context.Context, create *User) (*User, error)
	ListUsers(ctx context.Context, find *FindUser) ([]*User, error)

	// Agent model related methods.
	CreateAgent(ctx context.Context, create *Agent) (*Agent, error)
	ListAgents(ctx context.Context, find *FindAgent) ([]*Agent, error)

	// Conversation model related methods.
	CreateConversation(ctx context.Context, create *Conversation) (*Conversation, error)
	ListConversations(ctx context.Context, find *FindConversation) ([]*Conversation, error)
	UpdateConversation(ctx context.Context, update *UpdateConversation) (*Conversation, error)
	DeleteConversation(ctx context.Context, delete *DeleteConversation) error

	// Message model related methods.
	CreateMessage(ctx context.Context, create *Message) (*Message, error)
	CreateMessages(ctx context.Context, creates []*Message) ([]*Message, error)
	ListMessages(ctx context.Context, find *FindMessage) ([]*Message, error)
	CountMessages(ctx context.Context, conversationID int32) (int32, error)

	// MessageEmbedding model related methods.
	UpsertMessageEmbedding(ctx context.Context, embedding *MessageEmbedding) (*MessageEmbedding, error)
	UpsertMessageEmbeddings(ctx context.Context, embeddings []*MessageEmbedding) error
	ListMessageEmbeddings(ctx context.Context, find *FindMessageEmbedding) ([]*MessageEmbedding, error)
	FindMessagesWithoutEmbedding(ctx context.Context, find *FindMessagesWithoutEmbedding) ([]*Message, error)

	// VectorSearch performs semantic search using vector similarity,
	// most similar first, filtered by the options' threshold.
	VectorSearch(ctx context.Context, opts *VectorSearchOptions) ([]*MessageHit, error)

	// KeywordSearch performs full-text search over message content in the
	// store's natural rank order.
	KeywordSearch(ctx context.Context, opts *KeywordSearchOptions) ([]*MessageHit, error)
}
