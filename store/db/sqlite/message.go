package sqlite

import (
	"context"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/recollecthq/recollect/store"
)

func (d *DB) CreateMessage(ctx context.Context, create *store.Message) (*store.Message, error) {
	create.CreatedTs = time.Now().Unix()

	metadata, err := marshalMetadata(create.Metadata)
	if err != nil {
		return nil, err
	}

	stmt := `
		INSERT INTO message (
			uid, conversation_id, role, content, sequence_number,
			external_id, model, tokens, metadata, created_ts
		)
		VALUES (` + placeholders(10) + `)
		RETURNING id
	`
	if err := d.db.QueryRowContext(ctx, stmt,
		create.UID,
		create.ConversationID,
		create.Role,
		create.Content,
		create.SequenceNumber,
		create.ExternalID,
		create.Model,
		create.Tokens,
		metadata,
		create.CreatedTs,
	).Scan(&create.ID); err != nil {
		return nil, errors.Wrap(err, "failed to create message")
	}
	return create, nil
}

// CreateMessages inserts row by row; SQLite gains little from multi-value
// inserts and this keeps RETURNING simple.
func (d *DB) CreateMessages(ctx context.Context, creates []*store.Message) ([]*store.Message, error) {
	for _, create := range creates {
		if _, err := d.CreateMessage(ctx, create); err != nil {
			return nil, err
		}
	}
	return creates, nil
}

func (d *DB) ListMessages(ctx context.Context, find *store.FindMessage) ([]*store.Message, error) {
	where, args := []string{"1 = 1"}, []any{}
	if find.ID != nil {
		where, args = append(where, "id = ?"), append(args, *find.ID)
	}
	if len(find.IDs) > 0 {
		holders := []string{}
		for _, id := range find.IDs {
			holders = append(holders, "?")
			args = append(args, id)
		}
		where = append(where, "id IN ("+strings.Join(holders, ", ")+")")
	}
	if find.UID != nil {
		where, args = append(where, "uid = ?"), append(args, *find.UID)
	}
	if find.ConversationID != nil {
		where, args = append(where, "conversation_id = ?"), append(args, *find.ConversationID)
	}
	if find.Role != nil {
		where, args = append(where, "role = ?"), append(args, *find.Role)
	}

	query := `
		SELECT id, uid, conversation_id, role, content, sequence_number,
			external_id, model, tokens, metadata, created_ts
		FROM message
		WHERE ` + strings.Join(where, " AND ") + `
		ORDER BY sequence_number ASC
	`
	if find.Limit != nil {
		query += " LIMIT ?"
		args = append(args, *find.Limit)
	}

	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list messages")
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

func (d *DB) CountMessages(ctx context.Context, conversationID int32) (int32, error) {
	var count int32
	err := d.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM message WHERE conversation_id = ?`,
		conversationID,
	).Scan(&count)
	if err != nil {
		return 0, errors.Wrap(err, "failed to count messages")
	}
	return count, nil
}
