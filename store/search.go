package store

import "context"

// SearchScope restricts retrieval to one owner plus optional project and
// agent filters. Every search path applies it; there is no unscoped search.
type SearchScope struct {
	CreatorID  int32
	ProjectIDs []int32
	AgentIDs   []int32
}

// VectorSearchOptions are the options for semantic search over message
// embeddings.
type VectorSearchOptions struct {
	Scope        SearchScope
	Vector       []float32
	ModelName    string
	ModelVersion string
	// Threshold drops hits with cosine similarity at or below this value.
	Threshold float64
	Limit     int
}

// KeywordSearchOptions are the options for lexical full-text search over
// message content.
type KeywordSearchOptions struct {
	Scope SearchScope
	Query string
	Limit int
}

// MessageHit is a denormalized search row: the message plus the preview
// fields a result list needs without further lookups. Similarity is set for
// semantic hits only.
type MessageHit struct {
	MessageID         int32
	MessageUID        string
	Content           string
	Role              Role
	ConversationID    int32
	ConversationUID   string
	ConversationTitle string
	AgentName         string
	Similarity        *float64
}

// VectorSearch performs cosine-similarity search, most similar first.
func (s *Store) VectorSearch(ctx context.Context, opts *VectorSearchOptions) ([]*MessageHit, error) {
	return s.driver.VectorSearch(ctx, opts)
}

// KeywordSearch performs full-text search in the store's natural rank order.
func (s *Store) KeywordSearch(ctx context.Context, opts *KeywordSearchOptions) ([]*MessageHit, error) {
	return s.driver.KeywordSearch(ctx, opts)
}
