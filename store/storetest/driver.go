// Package storetest provides an in-memory store.Driver for unit tests.
package storetest

import (
	"context"
	"database/sql"
	"sort"
	"sync"
	"time"

	"github.com/recollecthq/recollect/store"
)

// Driver is an in-memory implementation of store.Driver. Search results are
// canned: tests assign VectorHits and KeywordHits directly. Error fields,
// when set, are returned by the matching method to exercise failure paths.
type Driver struct {
	mu     sync.Mutex
	nextID int32

	users         map[int32]*store.User
	agents        map[int32]*store.Agent
	conversations map[int32]*store.Conversation
	messages      map[int32]*store.Message
	embeddings    []*store.MessageEmbedding

	VectorHits  []*store.MessageHit
	KeywordHits []*store.MessageHit

	CreateConversationErr error
	CreateMessagesErr     error
	UpsertEmbeddingErr    error
	VectorSearchErr       error
	KeywordSearchErr      error
}

func NewDriver() *Driver {
	return &Driver{
		users:         map[int32]*store.User{},
		agents:        map[int32]*store.Agent{},
		conversations: map[int32]*store.Conversation{},
		messages:      map[int32]*store.Message{},
	}
}

func (d *Driver) id() int32 {
	d.nextID++
	return d.nextID
}

func (*Driver) GetDB() *sql.DB { return nil }
func (*Driver) Close() error   { return nil }

func (*Driver) IsInitialized(context.Context) (bool, error)     { return true, nil }
func (*Driver) GetSchemaVersion(context.Context) (string, error) { return "", nil }
func (*Driver) UpsertSchemaVersion(context.Context, string) error { return nil }

func (d *Driver) CreateUser(_ context.Context, create *store.User) (*store.User, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	create.ID = d.id()
	create.CreatedTs = time.Now().Unix()
	create.UpdatedTs = create.CreatedTs
	d.users[create.ID] = create
	return create, nil
}

func (d *Driver) ListUsers(_ context.Context, find *store.FindUser) ([]*store.User, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	list := []*store.User{}
	for _, user := range d.users {
		if find.ID != nil && user.ID != *find.ID {
			continue
		}
		if find.UID != nil && user.UID != *find.UID {
			continue
		}
		if find.Email != nil && user.Email != *find.Email {
			continue
		}
		list = append(list, user)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].ID < list[j].ID })
	return list, nil
}

func (d *Driver) CreateAgent(_ context.Context, create *store.Agent) (*store.Agent, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	create.ID = d.id()
	create.CreatedTs = time.Now().Unix()
	d.agents[create.ID] = create
	return create, nil
}

func (d *Driver) ListAgents(_ context.Context, find *store.FindAgent) ([]*store.Agent, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	list := []*store.Agent{}
	for _, agent := range d.agents {
		if find.ID != nil && agent.ID != *find.ID {
			continue
		}
		if find.Name != nil && agent.Name != *find.Name {
			continue
		}
		list = append(list, agent)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].ID < list[j].ID })
	return list, nil
}

func (d *Driver) CreateConversation(_ context.Context, create *store.Conversation) (*store.Conversation, error) {
	if d.CreateConversationErr != nil {
		return nil, d.CreateConversationErr
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	create.ID = d.id()
	create.CreatedTs = time.Now().Unix()
	create.UpdatedTs = create.CreatedTs
	if create.Metadata == nil {
		create.Metadata = map[string]any{}
	}
	d.conversations[create.ID] = create
	return create, nil
}

func (d *Driver) ListConversations(_ context.Context, find *store.FindConversation) ([]*store.Conversation, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	list := []*store.Conversation{}
	for _, conversation := range d.conversations {
		if find.ID != nil && conversation.ID != *find.ID {
			continue
		}
		if find.UID != nil && conversation.UID != *find.UID {
			continue
		}
		if find.CreatorID != nil && conversation.CreatorID != *find.CreatorID {
			continue
		}
		if find.AgentID != nil && conversation.AgentID != *find.AgentID {
			continue
		}
		if find.ProjectID != nil && (conversation.ProjectID == nil || *conversation.ProjectID != *find.ProjectID) {
			continue
		}
		if find.ExternalID != nil && (conversation.ExternalID == nil || *conversation.ExternalID != *find.ExternalID) {
			continue
		}
		if !find.IncludeDeleted && conversation.Deleted {
			continue
		}
		list = append(list, conversation)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].ID > list[j].ID })
	if find.Offset != nil && *find.Offset < len(list) {
		list = list[*find.Offset:]
	}
	if find.Limit != nil && *find.Limit < len(list) {
		list = list[:*find.Limit]
	}
	return list, nil
}

func (d *Driver) UpdateConversation(_ context.Context, update *store.UpdateConversation) (*store.Conversation, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	conversation, ok := d.conversations[update.ID]
	if !ok {
		return nil, sql.ErrNoRows
	}
	if update.Title != nil {
		conversation.Title = *update.Title
	}
	if update.ProjectID != nil {
		conversation.ProjectID = update.ProjectID
	}
	if update.MessageCount != nil {
		conversation.MessageCount = *update.MessageCount
	}
	if update.Metadata != nil {
		conversation.Metadata = update.Metadata
	}
	if update.Archived != nil {
		conversation.Archived = *update.Archived
	}
	if update.Deleted != nil {
		conversation.Deleted = *update.Deleted
	}
	if update.DeletedTs != nil {
		conversation.DeletedTs = update.DeletedTs
	}
	conversation.UpdatedTs = time.Now().Unix()
	return conversation, nil
}

func (d *Driver) DeleteConversation(_ context.Context, del *store.DeleteConversation) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	for id, message := range d.messages {
		if message.ConversationID != del.ID {
			continue
		}
		remaining := d.embeddings[:0]
		for _, embedding := range d.embeddings {
			if embedding.MessageID != id {
				remaining = append(remaining, embedding)
			}
		}
		d.embeddings = remaining
		delete(d.messages, id)
	}
	delete(d.conversations, del.ID)
	return nil
}

func (d *Driver) CreateMessage(ctx context.Context, create *store.Message) (*store.Message, error) {
	list, err := d.CreateMessages(ctx, []*store.Message{create})
	if err != nil {
		return nil, err
	}
	return list[0], nil
}

func (d *Driver) CreateMessages(_ context.Context, creates []*store.Message) ([]*store.Message, error) {
	if d.CreateMessagesErr != nil {
		return nil, d.CreateMessagesErr
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, create := range creates {
		create.ID = d.id()
		create.CreatedTs = time.Now().Unix()
		if create.Metadata == nil {
			create.Metadata = map[string]any{}
		}
		d.messages[create.ID] = create
	}
	return creates, nil
}

func (d *Driver) ListMessages(_ context.Context, find *store.FindMessage) ([]*store.Message, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	ids := map[int32]bool{}
	for _, id := range find.IDs {
		ids[id] = true
	}
	list := []*store.Message{}
	for _, message := range d.messages {
		if find.ID != nil && message.ID != *find.ID {
			continue
		}
		if len(ids) > 0 && !ids[message.ID] {
			continue
		}
		if find.UID != nil && message.UID != *find.UID {
			continue
		}
		if find.ConversationID != nil && message.ConversationID != *find.ConversationID {
			continue
		}
		if find.Role != nil && message.Role != *find.Role {
			continue
		}
		list = append(list, message)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].SequenceNumber < list[j].SequenceNumber })
	if find.Limit != nil && *find.Limit < len(list) {
		list = list[:*find.Limit]
	}
	return list, nil
}

func (d *Driver) CountMessages(_ context.Context, conversationID int32) (int32, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	var count int32
	for _, message := range d.messages {
		if message.ConversationID == conversationID {
			count++
		}
	}
	return count, nil
}

func (d *Driver) UpsertMessageEmbedding(_ context.Context, embedding *store.MessageEmbedding) (*store.MessageEmbedding, error) {
	if d.UpsertEmbeddingErr != nil {
		return nil, d.UpsertEmbeddingErr
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	// Uniqueness on (message, model, version): keep the existing row.
	for _, existing := range d.embeddings {
		if existing.MessageID == embedding.MessageID &&
			existing.ModelName == embedding.ModelName &&
			existing.ModelVersion == embedding.ModelVersion {
			return existing, nil
		}
	}
	embedding.ID = d.id()
	embedding.CreatedTs = time.Now().Unix()
	d.embeddings = append(d.embeddings, embedding)
	return embedding, nil
}

func (d *Driver) UpsertMessageEmbeddings(ctx context.Context, embeddings []*store.MessageEmbedding) error {
	if d.UpsertEmbeddingErr != nil {
		return d.UpsertEmbeddingErr
	}
	for _, embedding := range embeddings {
		if _, err := d.UpsertMessageEmbedding(ctx, embedding); err != nil {
			return err
		}
	}
	return nil
}

func (d *Driver) ListMessageEmbeddings(_ context.Context, find *store.FindMessageEmbedding) ([]*store.MessageEmbedding, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	ids := map[int32]bool{}
	for _, id := range find.MessageIDs {
		ids[id] = true
	}
	list := []*store.MessageEmbedding{}
	for _, embedding := range d.embeddings {
		if find.MessageID != nil && embedding.MessageID != *find.MessageID {
			continue
		}
		if len(ids) > 0 && !ids[embedding.MessageID] {
			continue
		}
		if find.ModelName != nil && embedding.ModelName != *find.ModelName {
			continue
		}
		if find.ModelVersion != nil && embedding.ModelVersion != *find.ModelVersion {
			continue
		}
		list = append(list, embedding)
	}
	return list, nil
}

func (d *Driver) FindMessagesWithoutEmbedding(_ context.Context, find *store.FindMessagesWithoutEmbedding) ([]*store.Message, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	embedded := map[int32]bool{}
	for _, embedding := range d.embeddings {
		if embedding.ModelName == find.ModelName && embedding.ModelVersion == find.ModelVersion {
			embedded[embedding.MessageID] = true
		}
	}
	list := []*store.Message{}
	for _, message := range d.messages {
		if embedded[message.ID] || message.Content == "" {
			continue
		}
		if conversation, ok := d.conversations[message.ConversationID]; !ok || conversation.Deleted {
			continue
		}
		list = append(list, message)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].ID < list[j].ID })
	if find.Limit > 0 && find.Limit < len(list) {
		list = list[:find.Limit]
	}
	return list, nil
}

func (d *Driver) VectorSearch(_ context.Context, opts *store.VectorSearchOptions) ([]*store.MessageHit, error) {
	if d.VectorSearchErr != nil {
		return nil, d.VectorSearchErr
	}
	hits := d.VectorHits
	if opts.Limit > 0 && opts.Limit < len(hits) {
		hits = hits[:opts.Limit]
	}
	return hits, nil
}

func (d *Driver) KeywordSearch(_ context.Context, opts *store.KeywordSearchOptions) ([]*store.MessageHit, error) {
	if d.KeywordSearchErr != nil {
		return nil, d.KeywordSearchErr
	}
	hits := d.KeywordHits
	if opts.Limit > 0 && opts.Limit < len(hits) {
		hits = hits[:opts.Limit]
	}
	return hits, nil
}
