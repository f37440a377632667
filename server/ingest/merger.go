// Package ingest reconciles incoming conversation batches against stored
// records without duplicating them.
package ingest

import (
	"context"
	"log/slog"

	"github.com/google/uuid"
	"github.com/lithammer/shortuuid/v4"

	apperr "github.com/recollecthq/recollect/server/internal/errors"
	"github.com/recollecthq/recollect/server/taskqueue"
	"github.com/recollecthq/recollect/store"
)

// MessagePayload is one message of an incoming transcript.
type MessagePayload struct {
	Role           string         `json:"role"`
	Content        string         `json:"content"`
	SequenceNumber int32          `json:"sequence_number"`
	ExternalID     string         `json:"external_id"`
	Model          string         `json:"model"`
	Tokens         int32          `json:"tokens"`
	Metadata       map[string]any `json:"metadata"`
}

// ConversationPayload is one incoming conversation. Callers send the full
// transcript-so-far on every sync; ExternalID is the dedup key per
// (owner, agent).
type ConversationPayload struct {
	Agent      string           `json:"agent"`
	ExternalID string           `json:"external_id"`
	Title      string           `json:"title"`
	ProjectID  *int32           `json:"project_id"`
	Metadata   map[string]any   `json:"metadata"`
	Messages   []MessagePayload `json:"messages"`
}

// MergeResult summarizes a batch merge. Failed items are counted but never
// abort the batch.
type MergeResult struct {
	Created       int                   `json:"created"`
	Updated       int                   `json:"updated"`
	Failed        int                   `json:"failed"`
	Conversations []*store.Conversation `json:"conversations"`
}

// Merger reconciles conversation payloads against the store and schedules
// embedding work for new content.
type Merger struct {
	store     *store.Store
	transport taskqueue.Transport
}

// NewMerger creates a new ingestion merger.
func NewMerger(store *store.Store, transport taskqueue.Transport) *Merger {
	return &Merger{
		store:     store,
		transport: transport,
	}
}

// MergeBatch processes every item independently: a failing item is counted
// and logged, and processing continues. MergeBatch itself never fails.
func (m *Merger) MergeBatch(ctx context.Context, ownerID int32, items []ConversationPayload) *MergeResult {
	result := &MergeResult{Conversations: []*store.Conversation{}}
	for i := range items {
		conversation, created, err := m.mergeItem(ctx, ownerID, &items[i])
		if err != nil {
			result.Failed++
			slog.Warn("ingestion item failed",
				"owner_id", ownerID,
				"external_id", items[i].ExternalID,
				"error", err)
			continue
		}
		if created {
			result.Created++
		} else {
			result.Updated++
		}
		result.Conversations = append(result.Conversations, conversation)
	}
	return result
}

func (m *Merger) mergeItem(ctx context.Context, ownerID int32, item *ConversationPayload) (*store.Conversation, bool, error) {
	if err := validateItem(item); err != nil {
		return nil, false, err
	}

	agent, err := m.resolveAgent(ctx, item.Agent)
	if err != nil {
		return nil, false, err
	}

	var existing *store.Conversation
	if item.ExternalID != "" {
		existing, err = m.store.GetConversation(ctx, &store.FindConversation{
			CreatorID:  &ownerID,
			AgentID:    &agent.ID,
			ExternalID: &item.ExternalID,
		})
		if err != nil {
			return nil, false, apperr.StoreFailure("failed to look up conversation", err)
		}
	}

	if existing == nil {
		conversation, err := m.createConversation(ctx, ownerID, agent.ID, item)
		if err != nil {
			return nil, false, err
		}
		m.scheduleEmbedding(ctx, conversation.ID)
		return conversation, true, nil
	}

	conversation, appended, err := m.updateConversation(ctx, existing, item)
	if err != nil {
		return nil, false, err
	}
	if appended {
		m.scheduleEmbedding(ctx, conversation.ID)
	}
	return conversation, false, nil
}

func validateItem(item *ConversationPayload) error {
	if item.Agent == "" {
		return apperr.ValidationFailed("agent name is required")
	}
	for i := range item.Messages {
		message := &item.Messages[i]
		if !store.Role(message.Role).IsValid() {
			return apperr.ValidationFailed("invalid message role: " + message.Role)
		}
		if message.Content == "" {
			return apperr.ValidationFailed("message content is required")
		}
	}
	return nil
}

func (m *Merger) resolveAgent(ctx context.Context, name string) (*store.Agent, error) {
	agent, err := m.store.GetAgent(ctx, &store.FindAgent{Name: &name})
	if err != nil {
		return nil, apperr.StoreFailure("failed to look up agent", err)
	}
	if agent != nil {
		return agent, nil
	}
	agent, err = m.store.CreateAgent(ctx, &store.Agent{
		Name:        name,
		DisplayName: name,
	})
	if err != nil {
		return nil, apperr.StoreFailure("failed to create agent", err)
	}
	return agent, nil
}

func (m *Merger) createConversation(ctx context.Context, ownerID, agentID int32, item *ConversationPayload) (*store.Conversation, error) {
	create := &store.Conversation{
		UID:          shortuuid.New(),
		CreatorID:    ownerID,
		AgentID:      agentID,
		ProjectID:    item.ProjectID,
		Title:        item.Title,
		MessageCount: int32(len(item.Messages)),
		Metadata:     item.Metadata,
	}
	if item.ExternalID != "" {
		externalID := item.ExternalID
		create.ExternalID = &externalID
	}
	conversation, err := m.store.CreateConversation(ctx, create)
	if err != nil {
		return nil, apperr.StoreFailure("failed to create conversation", err)
	}
	if err := m.createMessages(ctx, conversation.ID, item.Messages); err != nil {
		return nil, err
	}
	return conversation, nil
}

// updateConversation applies the payload to an existing conversation: title
// replaces only when supplied, metadata is shallow-merged with payload values
// winning, and messages beyond the stored count are appended positionally.
func (m *Merger) updateConversation(ctx context.Context, existing *store.Conversation, item *ConversationPayload) (*store.Conversation, bool, error) {
	update := &store.UpdateConversation{ID: existing.ID}
	if item.Title != "" {
		update.Title = &item.Title
	}
	if len(item.Metadata) > 0 {
		merged := make(map[string]any, len(existing.Metadata)+len(item.Metadata))
		for key, value := range existing.Metadata {
			merged[key] = value
		}
		for key, value := range item.Metadata {
			merged[key] = value
		}
		update.Metadata = merged
	}

	appended := false
	if count := int32(len(item.Messages)); count > existing.MessageCount {
		if err := m.createMessages(ctx, existing.ID, item.Messages[existing.MessageCount:]); err != nil {
			return nil, false, err
		}
		update.MessageCount = &count
		appended = true
	}

	conversation, err := m.store.UpdateConversation(ctx, update)
	if err != nil {
		return nil, false, apperr.StoreFailure("failed to update conversation", err)
	}
	return conversation, appended, nil
}

func (m *Merger) createMessages(ctx context.Context, conversationID int32, payloads []MessagePayload) error {
	if len(payloads) == 0 {
		return nil
	}
	creates := make([]*store.Message, len(payloads))
	for i := range payloads {
		payload := &payloads[i]
		create := &store.Message{
			UID:            uuid.NewString(),
			ConversationID: conversationID,
			Role:           store.Role(payload.Role),
			Content:        payload.Content,
			SequenceNumber: payload.SequenceNumber,
			Metadata:       payload.Metadata,
		}
		if payload.ExternalID != "" {
			externalID := payload.ExternalID
			create.ExternalID = &externalID
		}
		if payload.Model != "" {
			model := payload.Model
			create.Model = &model
		}
		if payload.Tokens > 0 {
			tokens := payload.Tokens
			create.Tokens = &tokens
		}
		creates[i] = create
	}
	if _, err := m.store.CreateMessages(ctx, creates); err != nil {
		return apperr.StoreFailure("failed to create messages", err)
	}
	return nil
}

// scheduleEmbedding is best-effort: a scheduling failure never fails the
// ingestion item.
func (m *Merger) scheduleEmbedding(ctx context.Context, conversationID int32) {
	if m.transport == nil {
		return
	}
	if err := m.transport.Schedule(ctx, taskqueue.Job{
		Kind:           taskqueue.KindEmbedConversation,
		ConversationID: conversationID,
	}); err != nil {
		slog.Warn("failed to schedule embedding",
			"conversation_id", conversationID,
			"error", err)
	}
}
