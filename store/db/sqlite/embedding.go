package sqlite

import (
	"context"
	"database/sql"
	"strings"

	"github.com/pkg/errors"

	"github.com/recollecthq/recollect/store"
)

// Vector storage and search require PostgreSQL with the pgvector extension.
// The SQLite driver rejects writes and returns empty reads so the rest of
// the system degrades to keyword-only retrieval.

// UpsertMessageEmbedding is NOT supported for SQLite.
func (d *DB) UpsertMessageEmbedding(context.Context, *store.MessageEmbedding) (*store.MessageEmbedding, error) {
	return nil, errors.New("message embedding (vector storage) requires PostgreSQL with pgvector extension")
}

// UpsertMessageEmbeddings is NOT supported for SQLite.
func (d *DB) UpsertMessageEmbeddings(context.Context, []*store.MessageEmbedding) error {
	return errors.New("message embedding (vector storage) requires PostgreSQL with pgvector extension")
}

// ListMessageEmbeddings returns no rows on SQLite; readers treat a missing
// embedding as "not yet generated".
func (d *DB) ListMessageEmbeddings(context.Context, *store.FindMessageEmbedding) ([]*store.MessageEmbedding, error) {
	return []*store.MessageEmbedding{}, nil
}

// FindMessagesWithoutEmbedding is NOT supported for SQLite.
func (d *DB) FindMessagesWithoutEmbedding(context.Context, *store.FindMessagesWithoutEmbedding) ([]*store.Message, error) {
	return nil, errors.New("embedding backfill requires PostgreSQL with pgvector extension")
}

// VectorSearch is NOT supported for SQLite.
func (d *DB) VectorSearch(context.Context, *store.VectorSearchOptions) ([]*store.MessageHit, error) {
	return nil, errors.New("vector search requires PostgreSQL with pgvector extension")
}

// KeywordSearch tries the FTS5 index first and degrades to a per-word LIKE
// scan when the index is unavailable; PostgreSQL full-text search is the
// reference implementation.
func (d *DB) KeywordSearch(ctx context.Context, opts *store.KeywordSearchOptions) ([]*store.MessageHit, error) {
	limit := opts.Limit
	if limit <= 0 {
		limit = 10
	}

	if hits, err := d.keywordSearchFTS(ctx, opts, limit); err == nil {
		return hits, nil
	}
	return d.keywordSearchLike(ctx, opts, limit)
}

// scopeFilter builds the conversation-scope where clause shared by both
// keyword search paths.
func scopeFilter(scope *store.SearchScope) ([]string, []any) {
	where, args := []string{"c.creator_id = ?", "c.deleted = 0"}, []any{scope.CreatorID}
	if len(scope.ProjectIDs) > 0 {
		holders := []string{}
		for _, id := range scope.ProjectIDs {
			holders = append(holders, "?")
			args = append(args, id)
		}
		where = append(where, "c.project_id IN ("+strings.Join(holders, ", ")+")")
	}
	if len(scope.AgentIDs) > 0 {
		holders := []string{}
		for _, id := range scope.AgentIDs {
			holders = append(holders, "?")
			args = append(args, id)
		}
		where = append(where, "c.agent_id IN ("+strings.Join(holders, ", ")+")")
	}
	return where, args
}

func (d *DB) keywordSearchFTS(ctx context.Context, opts *store.KeywordSearchOptions, limit int) ([]*store.MessageHit, error) {
	match := ftsMatchExpression(opts.Query)
	if match == "" {
		return []*store.MessageHit{}, nil
	}

	where, args := scopeFilter(&opts.Scope)
	where = append(where, "message_fts MATCH ?")
	args = append(args, match, limit)

	query := `
		SELECT m.id, m.uid, m.content, m.role,
			c.id, c.uid, c.title, a.display_name
		FROM message_fts
		INNER JOIN message m ON m.id = message_fts.rowid
		INNER JOIN conversation c ON c.id = m.conversation_id
		INNER JOIN agent a ON a.id = c.agent_id
		WHERE ` + strings.Join(where, " AND ") + `
		ORDER BY bm25(message_fts)
		LIMIT ?
	`
	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to full-text search")
	}
	defer rows.Close()
	return scanMessageHits(rows)
}

func (d *DB) keywordSearchLike(ctx context.Context, opts *store.KeywordSearchOptions, limit int) ([]*store.MessageHit, error) {
	where, args := scopeFilter(&opts.Scope)
	for _, word := range strings.Fields(opts.Query) {
		where = append(where, "m.content LIKE ?")
		args = append(args, "%"+word+"%")
	}
	args = append(args, limit)

	query := `
		SELECT m.id, m.uid, m.content, m.role,
			c.id, c.uid, c.title, a.display_name
		FROM message m
		INNER JOIN conversation c ON c.id = m.conversation_id
		INNER JOIN agent a ON a.id = c.agent_id
		WHERE ` + strings.Join(where, " AND ") + `
		ORDER BY m.created_ts DESC
		LIMIT ?
	`
	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to keyword search")
	}
	defer rows.Close()
	return scanMessageHits(rows)
}

// ftsMatchExpression quotes every query word so user input is matched as
// plain terms, never parsed as FTS5 query syntax.
func ftsMatchExpression(query string) string {
	words := strings.Fields(query)
	terms := make([]string, 0, len(words))
	for _, word := range words {
		terms = append(terms, `"`+strings.ReplaceAll(word, `"`, `""`)+`"`)
	}
	return strings.Join(terms, " ")
}

func scanMessageHits(rows *sql.Rows) ([]*store.MessageHit, error) {
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
