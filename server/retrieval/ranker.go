package retrieval

import (
	"context"

	"github.com/recollecthq/recollect/server/ai"
	apperr "github.com/recollecthq/recollect/server/internal/errors"
	"github.com/recollecthq/recollect/store"
)

const (
	// DefaultLimit is the result count when the caller does not specify one.
	DefaultLimit = 20
	// DefaultSemanticThreshold filters semantic candidates by cosine similarity.
	DefaultSemanticThreshold = 0.5
)

// Source identifies which retrieval path produced a result.
type Source string

const (
	SourceSemantic Source = "semantic"
	SourceLexical  Source = "lexical"
)

// RankedResult is one retrieval hit with denormalized preview fields.
// Similarity is set only for results that came through the semantic path.
type RankedResult struct {
	MessageID         int32    `json:"-"`
	MessageUID        string   `json:"message_uid"`
	Content           string   `json:"content"`
	Role              string   `json:"role"`
	ConversationUID   string   `json:"conversation_uid"`
	ConversationTitle string   `json:"conversation_title"`
	AgentName         string   `json:"agent_name"`
	Similarity        *float64 `json:"similarity"`
	Sources           []Source `json:"sources"`
}

// SearchOptions scope and shape a search request.
type SearchOptions struct {
	Query      string
	OwnerID    int32
	ProjectIDs []int32
	AgentIDs   []int32
	Limit      int
	Threshold  float64
}

func (o *SearchOptions) normalize() {
	if o.Limit <= 0 {
		o.Limit = DefaultLimit
	}
	if o.Threshold <= 0 {
		o.Threshold = DefaultSemanticThreshold
	}
}

func (o *SearchOptions) scope() store.SearchScope {
	return store.SearchScope{
		CreatorID:  o.OwnerID,
		ProjectIDs: o.ProjectIDs,
		AgentIDs:   o.AgentIDs,
	}
}

// Ranker runs semantic, keyword, and RRF-fused hybrid searches.
type Ranker struct {
	store   *store.Store
	service ai.EmbeddingService
}

// NewRanker creates a new ranker.
func NewRanker(store *store.Store, service ai.EmbeddingService) *Ranker {
	return &Ranker{
		store:   store,
		service: service,
	}
}

// SemanticSearch embeds the query and returns nearest messages above the
// similarity threshold.
func (r *Ranker) SemanticSearch(ctx context.Context, opts SearchOptions) ([]*RankedResult, error) {
	opts.normalize()
	hits, err := r.semanticHits(ctx, &opts, opts.Limit)
	if err != nil {
		return nil, err
	}
	results := make([]*RankedResult, len(hits))
	for i, hit := range hits {
		results[i] = fromHit(hit, SourceSemantic)
	}
	return results, nil
}

// KeywordSearch returns full-text matches. Similarity is always nil.
func (r *Ranker) KeywordSearch(ctx context.Context, opts SearchOptions) ([]*RankedResult, error) {
	opts.normalize()
	hits, err := r.lexicalHits(ctx, &opts, opts.Limit)
	if err != nil {
		return nil, err
	}
	results := make([]*RankedResult, len(hits))
	for i, hit := range hits {
		results[i] = fromHit(hit, SourceLexical)
	}
	return results, nil
}

// HybridSearch fetches 2·limit candidates from each path, fuses them with
// Reciprocal Rank Fusion, and materializes the top limit ids. An id present
// in both lists keeps the semantic row, which already carries its similarity.
func (r *Ranker) HybridSearch(ctx context.Context, opts SearchOptions) ([]*RankedResult, error) {
	opts.normalize()
	candidates := 2 * opts.Limit

	semanticHits, err := r.semanticHits(ctx, &opts, candidates)
	if err != nil {
		return nil, err
	}
	lexicalHits, err := r.lexicalHits(ctx, &opts, candidates)
	if err != nil {
		return nil, err
	}

	semanticByID := make(map[int32]*store.MessageHit, len(semanticHits))
	semanticIDs := make([]int32, len(semanticHits))
	for i, hit := range semanticHits {
		semanticIDs[i] = hit.MessageID
		semanticByID[hit.MessageID] = hit
	}
	lexicalByID := make(map[int32]*store.MessageHit, len(lexicalHits))
	lexicalIDs := make([]int32, len(lexicalHits))
	for i, hit := range lexicalHits {
		lexicalIDs[i] = hit.MessageID
		lexicalByID[hit.MessageID] = hit
	}

	fused := FuseRanks(semanticIDs, lexicalIDs, RRFDampingFactor)
	if len(fused) > opts.Limit {
		fused = fused[:opts.Limit]
	}

	results := make([]*RankedResult, 0, len(fused))
	for _, id := range fused {
		sources := []Source{}
		if _, ok := semanticByID[id]; ok {
			sources = append(sources, SourceSemantic)
		}
		if _, ok := lexicalByID[id]; ok {
			sources = append(sources, SourceLexical)
		}
		hit := semanticByID[id]
		if hit == nil {
			hit = lexicalByID[id]
		}
		result := fromHit(hit, sources[0])
		result.Sources = sources
		results = append(results, result)
	}
	return results, nil
}

func (r *Ranker) semanticHits(ctx context.Context, opts *SearchOptions, limit int) ([]*store.MessageHit, error) {
	vector, err := r.service.Embed(ctx, opts.Query)
	if err != nil {
		return nil, apperr.ModelFailure("failed to embed query", err)
	}
	hits, err := r.store.VectorSearch(ctx, &store.VectorSearchOptions{
		Scope:        opts.scope(),
		Vector:       vector,
		ModelName:    r.service.ModelName(),
		ModelVersion: r.service.ModelVersion(),
		Threshold:    opts.Threshold,
		Limit:        limit,
	})
	if err != nil {
		return nil, apperr.StoreFailure("vector search failed", err)
	}
	return hits, nil
}

func (r *Ranker) lexicalHits(ctx context.Context, opts *SearchOptions, limit int) ([]*store.MessageHit, error) {
	hits, err := r.store.KeywordSearch(ctx, &store.KeywordSearchOptions{
		Scope: opts.scope(),
		Query: opts.Query,
		Limit: limit,
	})
	if err != nil {
		return nil, apperr.StoreFailure("keyword search failed", err)
	}
	return hits, nil
}

func fromHit(hit *store.MessageHit, source Source) *RankedResult {
	return &RankedResult{
		MessageID:         hit.MessageID,
		MessageUID:        hit.MessageUID,
		Content:           hit.Content,
		Role:              string(hit.Role),
		ConversationUID:   hit.ConversationUID,
		ConversationTitle: hit.ConversationTitle,
		AgentName:         hit.AgentName,
		Similarity:        hit.Similarity,
		Sources:           []Source{source},
	}
}
