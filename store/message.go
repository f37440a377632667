package store

import "context"

// Role is the author of a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

func (r Role) IsValid() bool {
	switch r {
	case RoleUser, RoleAssistant, RoleSystem:
		return true
	}
	return false
}

// Message is one turn inside a conversation. Messages are immutable once
// created; SequenceNumber is caller-assigned and is the sole ordering key.
type Message struct {
	ID             int32
	UID            string
	ConversationID int32
	Role           Role
	Content        string
	SequenceNumber int32
	ExternalID     *string
	Model          *string
	Tokens         *int32
	Metadata       map[string]any
	CreatedTs      int64
}

type FindMessage struct {
	ID             *int32
	IDs            []int32
	UID            *string
	ConversationID *int32
	Role           *Role
	Limit          *int
}

func (s *Store) CreateMessage(ctx context.Context, create *Message) (*Message, error) {
	return s.driver.CreateMessage(ctx, create)
}

// CreateMessages inserts messages in one statement where the driver supports
// it. The returned slice preserves input order.
func (s *Store) CreateMessages(ctx context.Context, creates []*Message) ([]*Message, error) {
	return s.driver.CreateMessages(ctx, creates)
}

// ListMessages returns messages ordered by sequence number ascending.
func (s *Store) ListMessages(ctx context.Context, find *FindMessage) ([]*Message, error) {
	return s.driver.ListMessages(ctx, find)
}

func (s *Store) CountMessages(ctx context.Context, conversationID int32) (int32, error) {
	return s.driver.CountMessages(ctx, conversationID)
}
