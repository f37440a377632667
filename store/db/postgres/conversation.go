package postgres

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/recollecthq/recollect/store"
)

func marshalMetadata(metadata map[string]any) ([]byte, error) {
	if metadata == nil {
		metadata = map[string]any{}
	}
	buf, err := json.Marshal(metadata)
	if err != nil {
		return nil, errors.Wrap(err, "failed to marshal metadata")
	}
	return buf, nil
}

func unmarshalMetadata(buf []byte) (map[string]any, error) {
	metadata := map[string]any{}
	if len(buf) == 0 {
		return metadata, nil
	}
	if err := json.Unmarshal(buf, &metadata); err != nil {
		return nil, errors.Wrap(err, "failed to unmarshal metadata")
	}
	return metadata, nil
}

func (d *DB) CreateConversation(ctx context.Context, create *store.Conversation) (*store.Conversation, error) {
	now := time.Now().Unix()
	create.CreatedTs = now
	create.UpdatedTs = now

	metadata, err := marshalMetadata(create.Metadata)
	if err != nil {
		return nil, err
	}

	stmt := `
		INSERT INTO conversation (
			uid, creator_id, agent_id, project_id, external_id, title,
			message_count, metadata, archived, deleted, created_ts, updated_ts
		)
		VALUES (` + placeholders(12) + `)
		RETURNING id
	`
	if err := d.db.QueryRowContext(ctx, stmt,
		create.UID,
		create.CreatorID,
		create.AgentID,
		create.ProjectID,
		create.ExternalID,
		create.Title,
		create.MessageCount,
		metadata,
		create.Archived,
		create.Deleted,
		create.CreatedTs,
		create.UpdatedTs,
	).Scan(&create.ID); err != nil {
		return nil, errors.Wrap(err, "failed to create conversation")
	}
	return create, nil
}

func (d *DB) ListConversations(ctx context.Context, find *store.FindConversation) ([]*store.Conversation, error) {
	where, args := []string{"1 = 1"}, []any{}
	if find.ID != nil {
		where, args = append(where, "id = "+placeholder(len(args)+1)), append(args, *find.ID)
	}
	if find.UID != nil {
		where, args = append(where, "uid = "+placeholder(len(args)+1)), append(args, *find.UID)
	}
	if find.CreatorID != nil {
		where, args = append(where, "creator_id = "+placeholder(len(args)+1)), append(args, *find.CreatorID)
	}
	if find.AgentID != nil {
		where, args = append(where, "agent_id = "+placeholder(len(args)+1)), append(args, *find.AgentID)
	}
	if find.ProjectID != nil {
		where, args = append(where, "project_id = "+placeholder(len(args)+1)), append(args, *find.ProjectID)
	}
	if find.ExternalID != nil {
		where, args = append(where, "external_id = "+placeholder(len(args)+1)), append(args, *find.ExternalID)
	}
	if !find.IncludeDeleted {
		where = append(where, "deleted = FALSE")
	}

	query := `
		SELECT id, uid, creator_id, agent_id, project_id, external_id, title,
			message_count, metadata, archived, deleted, deleted_ts, created_ts, updated_ts
		FROM conversation
		WHERE ` + strings.Join(where, " AND ") + `
		ORDER BY created_ts DESC, id DESC
	`
	if find.Limit != nil {
		query += " LIMIT " + placeholder(len(args)+1)
		args = append(args, *find.Limit)
		if find.Offset != nil {
			query += " OFFSET " + placeholder(len(args)+1)
			args = append(args, *find.Offset)
		}
	}

	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list conversations")
	}
	defer rows.Close()

	list := []*store.Conversation{}
	for rows.Next() {
		var conversation store.Conversation
		var metadataBytes []byte
		if err := rows.Scan(
			&conversation.ID,
			&conversation.UID,
			&conversation.CreatorID,
			&conversation.AgentID,
			&conversation.ProjectID,
			&conversation.ExternalID,
			&conversation.Title,
			&conversation.MessageCount,
			&metadataBytes,
			&conversation.Archived,
			&conversation.Deleted,
			&conversation.DeletedTs,
			&conversation.CreatedTs,
			&conversation.UpdatedTs,
		); err != nil {
			return nil, errors.Wrap(err, "failed to scan conversation")
		}
		metadata, err := unmarshalMetadata(metadataBytes)
		if err != nil {
			return nil, err
		}
		conversation.Metadata = metadata
		list = append(list, &conversation)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return list, nil
}

func (d *DB) UpdateConversation(ctx context.Context, update *store.UpdateConversation) (*store.Conversation, error) {
	set, args := []string{}, []any{}
	if update.Title != nil {
		set, args = append(set, "title = "+placeholder(len(args)+1)), append(args, *update.Title)
	}
	if update.ProjectID != nil {
		set, args = append(set, "project_id = "+placeholder(len(args)+1)), append(args, *update.ProjectID)
	}
	if update.MessageCount != nil {
		set, args = append(set, "message_count = "+placeholder(len(args)+1)), append(args, *update.MessageCount)
	}
	if update.Metadata != nil {
		metadata, err := marshalMetadata(update.Metadata)
		if err != nil {
			return nil, err
		}
		set, args = append(set, "metadata = "+placeholder(len(args)+1)), append(args, metadata)
	}
	if update.Archived != nil {
		set, args = append(set, "archived = "+placeholder(len(args)+1)), append(args, *update.Archived)
	}
	if update.Deleted != nil {
		set, args = append(set, "deleted = "+placeholder(len(args)+1)), append(args, *update.Deleted)
	}
	if update.DeletedTs != nil {
		set, args = append(set, "deleted_ts = "+placeholder(len(args)+1)), append(args, *update.DeletedTs)
	}
	updatedTs := time.Now().Unix()
	if update.UpdatedTs != nil {
		updatedTs = *update.UpdatedTs
	}
	set, args = append(set, "updated_ts = "+placeholder(len(args)+1)), append(args, updatedTs)

	args = append(args, update.ID)
	stmt := `
		UPDATE conversation
		SET ` + strings.Join(set, ", ") + `
		WHERE id = ` + placeholder(len(args)) + `
		RETURNING id, uid, creator_id, agent_id, project_id, external_id, title,
			message_count, metadata, archived, deleted, deleted_ts, created_ts, updated_ts
	`
	var conversation store.Conversation
	var metadataBytes []byte
	if err := d.db.QueryRowContext(ctx, stmt, args...).Scan(
		&conversation.ID,
		&conversation.UID,
		&conversation.CreatorID,
		&conversation.AgentID,
		&conversation.ProjectID,
		&conversation.ExternalID,
		&conversation.Title,
		&conversation.MessageCount,
		&metadataBytes,
		&conversation.Archived,
		&conversation.Deleted,
		&conversation.DeletedTs,
		&conversation.CreatedTs,
		&conversation.UpdatedTs,
	); err != nil {
		return nil, errors.Wrap(err, "failed to update conversation")
	}
	metadata, err := unmarshalMetadata(metadataBytes)
	if err != nil {
		return nil, err
	}
	conversation.Metadata = metadata
	return &conversation, nil
}

func (d *DB) DeleteConversation(ctx context.Context, delete *store.DeleteConversation) error {
	// Messages and embeddings cascade via foreign keys.
	stmt := `DELETE FROM conversation WHERE id = ` + placeholder(1)
	if _, err := d.db.ExecContext(ctx, stmt, delete.ID); err != nil {
		return errors.Wrap(err, "failed to delete conversation")
	}
	return nil
}
