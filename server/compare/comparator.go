// Package compare scores two conversations against each other turn by turn.
package compare

import (
	"context"

	"github.com/recollecthq/recollect/server/ai"
	apperr "github.com/recollecthq/recollect/server/internal/errors"
	"github.com/recollecthq/recollect/store"
)

const (
	// MinTurns and MaxTurns bound the maxTurns request parameter.
	MinTurns = 1
	MaxTurns = 100
	// PreviewRunes is the per-side content preview length.
	PreviewRunes = 220
)

// TurnComparison is one aligned assistant turn. Similarity is nil when either
// side lacks a stored embedding; the turn is still reported.
type TurnComparison struct {
	Index         int      `json:"index"`
	LeftPreview   string   `json:"left_preview"`
	RightPreview  string   `json:"right_preview"`
	LeftEmbedded  bool     `json:"left_embedded"`
	RightEmbedded bool     `json:"right_embedded"`
	Similarity    *float64 `json:"similarity"`
}

// ComparisonResult summarizes a turn-by-turn comparison.
type ComparisonResult struct {
	ComparedTurns     int               `json:"compared_turns"`
	ComparableTurns   int               `json:"comparable_turns"`
	AverageSimilarity *float64          `json:"average_similarity"`
	Turns             []*TurnComparison `json:"turns"`
}

// Comparator aligns assistant turns of two conversations positionally and
// scores them with cosine similarity over stored embeddings. It never
// generates embeddings.
type Comparator struct {
	store   *store.Store
	manager *ai.EmbeddingManager
}

// NewComparator creates a new comparator.
func NewComparator(store *store.Store, manager *ai.EmbeddingManager) *Comparator {
	return &Comparator{
		store:   store,
		manager: manager,
	}
}

// CompareTurns compares up to maxTurns assistant turns of two conversations
// owned by ownerID. Alignment is positional by equal rank among assistant
// turns, not semantic matching. A conversation that does not exist, belongs
// to someone else, or is soft-deleted yields a not-found error.
func (c *Comparator) CompareTurns(ctx context.Context, ownerID int32, leftUID, rightUID string, maxTurns int) (*ComparisonResult, error) {
	if maxTurns < MinTurns {
		maxTurns = MinTurns
	}
	if maxTurns > MaxTurns {
		maxTurns = MaxTurns
	}

	left, err := c.getOwnedConversation(ctx, ownerID, leftUID)
	if err != nil {
		return nil, err
	}
	right, err := c.getOwnedConversation(ctx, ownerID, rightUID)
	if err != nil {
		return nil, err
	}

	leftTurns, err := c.assistantTurns(ctx, left.ID, maxTurns)
	if err != nil {
		return nil, err
	}
	rightTurns, err := c.assistantTurns(ctx, right.ID, maxTurns)
	if err != nil {
		return nil, err
	}

	turns := len(leftTurns)
	if len(rightTurns) < turns {
		turns = len(rightTurns)
	}
	result := &ComparisonResult{Turns: []*TurnComparison{}}
	if turns == 0 {
		return result, nil
	}

	messageIDs := make([]int32, 0, 2*turns)
	for i := 0; i < turns; i++ {
		messageIDs = append(messageIDs, leftTurns[i].ID, rightTurns[i].ID)
	}
	vectors, err := c.manager.EmbeddingsFor(ctx, messageIDs)
	if err != nil {
		return nil, err
	}

	var sum float64
	for i := 0; i < turns; i++ {
		leftVector, leftOK := vectors[leftTurns[i].ID]
		rightVector, rightOK := vectors[rightTurns[i].ID]
		turn := &TurnComparison{
			Index:         i,
			LeftPreview:   preview(leftTurns[i].Content),
			RightPreview:  preview(rightTurns[i].Content),
			LeftEmbedded:  leftOK,
			RightEmbedded: rightOK,
		}
		if leftOK && rightOK {
			similarity := ai.CosineSimilarity(leftVector, rightVector)
			turn.Similarity = &similarity
			sum += similarity
			result.ComparableTurns++
		}
		result.Turns = append(result.Turns, turn)
	}
	result.ComparedTurns = turns
	if result.ComparableTurns > 0 {
		average := sum / float64(result.ComparableTurns)
		result.AverageSimilarity = &average
	}
	return result, nil
}

func (c *Comparator) getOwnedConversation(ctx context.Context, ownerID int32, uid string) (*store.Conversation, error) {
	conversation, err := c.store.GetConversation(ctx, &store.FindConversation{
		UID:       &uid,
		CreatorID: &ownerID,
	})
	if err != nil {
		return nil, apperr.StoreFailure("failed to look up conversation", err)
	}
	if conversation == nil {
		return nil, apperr.NotFoundf("conversation not found: %s", uid)
	}
	return conversation, nil
}

func (c *Comparator) assistantTurns(ctx context.Context, conversationID int32, limit int) ([]*store.Message, error) {
	role := store.RoleAssistant
	messages, err := c.store.ListMessages(ctx, &store.FindMessage{
		ConversationID: &conversationID,
		Role:           &role,
		Limit:          &limit,
	})
	if err != nil {
		return nil, apperr.StoreFailure("failed to list messages", err)
	}
	return messages, nil
}

func preview(content string) string {
	runes := []rune(content)
	if len(runes) <= PreviewRunes {
		return content
	}
	return string(runes[:PreviewRunes])
}
