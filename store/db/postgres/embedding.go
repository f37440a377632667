package postgres

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/pgvector/pgvector-go"
	"github.com/pkg/errors"

	"github.com/recollecthq/recollect/store"
)

// UpsertMessageEmbedding inserts an embedding row. On conflict with the
// (message_id, model_name, model_version) uniqueness constraint the existing
// row is kept untouched and returned, which makes generation idempotent.
func (d *DB) UpsertMessageEmbedding(ctx context.Context, embedding *store.MessageEmbedding) (*store.MessageEmbedding, error) {
	embedding.CreatedTs = time.Now().Unix()

	stmt := `
		INSERT INTO message_embedding (message_id, embedding, model_name, model_version, created_ts)
		VALUES (` + placeholders(5) + `)
		ON CONFLICT (message_id, model_name, model_version) DO NOTHING
		RETURNING id
	`
	vector := pgvector.NewVector(embedding.Embedding)
	err := d.db.QueryRowContext(ctx, stmt,
		embedding.MessageID,
		vector,
		embedding.ModelName,
		embedding.ModelVersion,
		embedding.CreatedTs,
	).Scan(&embedding.ID)
	if err == nil {
		return embedding, nil
	}
	if err != sql.ErrNoRows {
		return nil, errors.Wrap(err, "failed to upsert message embedding")
	}

	// Conflict: a row already exists for this triple. Return it as-is.
	list, err := d.ListMessageEmbeddings(ctx, &store.FindMessageEmbedding{
		MessageID:    &embedding.MessageID,
		ModelName:    &embedding.ModelName,
		ModelVersion: &embedding.ModelVersion,
	})
	if err != nil {
		return nil, err
	}
	if len(list) == 0 {
		return nil, errors.Errorf("embedding upsert conflict but no existing row for message %d", embedding.MessageID)
	}
	return list[0], nil
}

// UpsertMessageEmbeddings inserts a batch of embeddings in one statement.
// Conflicting rows are kept untouched, same as the single-row upsert.
func (d *DB) UpsertMessageEmbeddings(ctx context.Context, embeddings []*store.MessageEmbedding) error {
	if len(embeddings) == 0 {
		return nil
	}

	now := time.Now().Unix()
	values, args := []string{}, []any{}
	for _, embedding := range embeddings {
		embedding.CreatedTs = now
		base := len(args)
		values = append(values, "("+
			placeholder(base+1)+", "+placeholder(base+2)+", "+placeholder(base+3)+", "+
			placeholder(base+4)+", "+placeholder(base+5)+")")
		args = append(args,
			embedding.MessageID,
			pgvector.NewVector(embedding.Embedding),
			embedding.ModelName,
			embedding.ModelVersion,
			embedding.CreatedTs,
		)
	}

	stmt := `
		INSERT INTO message_embedding (message_id, embedding, model_name, model_version, created_ts)
		VALUES ` + strings.Join(values, ", ") + `
		ON CONFLICT (message_id, model_name, model_version) DO NOTHING
	`
	if _, err := d.db.ExecContext(ctx, stmt, args...); err != nil {
		return errors.Wrap(err, "failed to upsert message embeddings")
	}
	return nil
}

func (d *DB) ListMessageEmbeddings(ctx context.Context, find *store.FindMessageEmbedding) ([]*store.MessageEmbedding, error) {
	where, args := []string{"1 = 1"}, []any{}
	if find.MessageID != nil {
		where, args = append(where, "message_id = "+placeholder(len(args)+1)), append(args, *find.MessageID)
	}
	if len(find.MessageIDs) > 0 {
		holders := []string{}
		for _, id := range find.MessageIDs {
			holders = append(holders, placeholder(len(args)+1))
			args = append(args, id)
		}
		where = append(where, "message_id IN ("+strings.Join(holders, ", ")+")")
	}
	if find.ModelName != nil {
		where, args = append(where, "model_name = "+placeholder(len(args)+1)), append(args, *find.ModelName)
	}
	if find.ModelVersion != nil {
		where, args = append(where, "model_version = "+placeholder(len(args)+1)), append(args, *find.ModelVersion)
	}

	query := `
		SELECT id, message_id, embedding, model_name, model_version, created_ts
		FROM message_embedding
		WHERE ` + strings.Join(where, " AND ") + `
		ORDER BY created_ts DESC
	`
	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list message embeddings")
	}
	defer rows.Close()

	list := []*store.MessageEmbedding{}
	for rows.Next() {
		var embedding store.MessageEmbedding
		var vector pgvector.Vector
		if err := rows.Scan(
			&embedding.ID,
			&embedding.MessageID,
			&vector,
			&embedding.ModelName,
			&embedding.ModelVersion,
			&embedding.CreatedTs,
		); err != nil {
			return nil, errors.Wrap(err, "failed to scan message embedding")
		}
		embedding.Embedding = vector.Slice()
		list = append(list, &embedding)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return list, nil
}

func (d *DB) FindMessagesWithoutEmbedding(ctx context.Context, find *store.FindMessagesWithoutEmbedding) ([]*store.Message, error) {
	limit := find.Limit
	if limit <= 0 {
		limit = 100
	}

	query := `
		SELECT m.id, m.uid, m.conversation_id, m.role, m.content, m.sequence_number,
			m.external_id, m.model, m.tokens, m.metadata, m.created_ts
		FROM message m
		INNER JOIN conversation c ON c.id = m.conversation_id
		LEFT JOIN message_embedding e ON m.id = e.message_id
			AND e.model_name = ` + placeholder(1) + `
			AND e.model_version = ` + placeholder(2) + `
		WHERE e.id IS NULL
			AND c.deleted = FALSE
			AND LENGTH(m.content) > 0
		ORDER BY m.created_ts DESC
		LIMIT ` + placeholder(3)

	rows, err := d.db.QueryContext(ctx, query, find.ModelName, find.ModelVersion, limit)
	if err != nil {
		return nil, errors.Wrap(err, "failed to find messages without embedding")
	}
	defer rows.Close()

	list := []*store.Message{}
	for rows.Next() {
		var message store.Message
		var metadataBytes []byte
		if err := rows.Scan(
			&message.ID,
			&message.UID,
			&message.ConversationID,
			&message.Role,
			&message.Content,
			&message.SequenceNumber,
			&message.ExternalID,
			&message.Model,
			&message.Tokens,
			&metadataBytes,
			&message.CreatedTs,
		); err != nil {
			return nil, errors.Wrap(err, "failed to scan message")
		}
		metadata, err := unmarshalMetadata(metadataBytes)
		if err != nil {
			return nil, err
		}
		message.Metadata = metadata
		list = append(list, &message)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return list, nil
}

// scopeConditions appends owner/project/agent filters shared by both search paths.
func scopeConditions(scope store.SearchScope, where []string, args []any) ([]string, []any) {
	where, args = append(where, "c.creator_id = "+placeholder(len(args)+1)), append(args, scope.CreatorID)
	where = append(where, "c.deleted = FALSE")
	if len(scope.ProjectIDs) > 0 {
		holders := []string{}
		for _, id := range scope.ProjectIDs {
			holders = append(holders, placeholder(len(args)+1))
			args = append(args, id)
		}
		where = append(where, "c.project_id IN ("+strings.Join(holders, ", ")+")")
	}
	if len(scope.AgentIDs) > 0 {
		holders := []string{}
		for _, id := range scope.AgentIDs {
			holders = append(holders, placeholder(len(args)+1))
			args = append(args, id)
		}
		where = append(where, "c.agent_id IN ("+strings.Join(holders, ", ")+")")
	}
	return where, args
}

// VectorSearch performs cosine similarity search using pgvector.
// The <=> operator computes cosine distance (1 - cosine_similarity), so
// ordering by distance ascending yields the most similar rows first.
func (d *DB) VectorSearch(ctx context.Context, opts *store.VectorSearchOptions) ([]*store.MessageHit, error) {
	limit := opts.Limit
	if limit <= 0 {
		limit = 10
	}

	vector := pgvector.NewVector(opts.Vector)
	where, args := []string{}, []any{}
	args = append(args, vector)
	similarity := "1 - (e.embedding <=> " + placeholder(1) + ")"
	where, args = scopeConditions(opts.Scope, where, args)
	where, args = append(where, "e.model_name = "+placeholder(len(args)+1)), append(args, opts.ModelName)
	where, args = append(where, "e.model_version = "+placeholder(len(args)+1)), append(args, opts.ModelVersion)
	where, args = append(where, similarity+" > "+placeholder(len(args)+1)), append(args, opts.Threshold)
	args = append(args, limit)

	query := `
		SELECT m.id, m.uid, m.content, m.role,
			c.id, c.uid, c.title, a.display_name,
			` + similarity + ` AS similarity
		FROM message m
		INNER JOIN message_embedding e ON e.message_id = m.id
		INNER JOIN conversation c ON c.id = m.conversation_id
		INNER JOIN agent a ON a.id = c.agent_id
		WHERE ` + strings.Join(where, " AND ") + `
		ORDER BY similarity DESC
		LIMIT ` + placeholder(len(args))

	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to vector search")
	}
	defer rows.Close()

	results := []*store.MessageHit{}
	for rows.Next() {
		var hit store.MessageHit
		var similarity float64
		if err := rows.Scan(
			&hit.MessageID,
			&hit.MessageUID,
			&hit.Content,
			&hit.Role,
			&hit.ConversationID,
			&hit.ConversationUID,
			&hit.ConversationTitle,
			&hit.AgentName,
			&similarity,
		); err != nil {
			return nil, errors.Wrap(err, "failed to scan vector search result")
		}
		hit.Similarity = &similarity
		results = append(results, &hit)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return results, nil
}

// KeywordSearch performs full-text search using PostgreSQL's tsvector
// matching, ranked by ts_rank. Hits carry no similarity score.
func (d *DB) KeywordSearch(ctx context.Context, opts *store.KeywordSearchOptions) ([]*store.MessageHit, error) {
	limit := opts.Limit
	if limit <= 0 {
		limit = 10
	}

	where, args := []string{}, []any{}
	where, args = scopeConditions(opts.Scope, where, args)
	match := "to_tsvector('english', m.content) @@ plainto_tsquery('english', " + placeholder(len(args)+1) + ")"
	where, args = append(where, match), append(args, opts.Query)
	rank := "ts_rank(to_tsvector('english', m.content), plainto_tsquery('english', " + placeholder(len(args)+1) + "))"
	args = append(args, opts.Query)
	args = append(args, limit)

	query := `
		SELECT m.id, m.uid, m.content, m.role,
			c.id, c.uid, c.title, a.display_name
		FROM message m
		INNER JOIN conversation c ON c.id = m.conversation_id
		INNER JOIN agent a ON a.id = c.agent_id
		WHERE ` + strings.Join(where, " AND ") + `
		ORDER BY ` + rank + ` DESC, m.created_ts DESC
		LIMIT ` + placeholder(len(args))

	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to keyword search")
	}
	defer rows.Close()

	results := []*store.MessageHit{}
	for rows.Next() {
		var hit store.MessageHit
		if err := rows.Scan(
			&hit.MessageID,
			&hit.MessageUID,
			&hit.Content,
			&hit.Role,
			&hit.ConversationID,
			&hit.ConversationUID,
			&hit.ConversationTitle,
			&hit.AgentName,
		); err != nil {
			return nil, errors.Wrap(err, "failed to scan keyword search result")
		}
		results = append(results, &hit)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return results, nil
}
