package postgres

import (
	"context"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/recollecthq/recollect/store"
)

func (d *DB) CreateMessage(ctx context.Context, create *store.Message) (*store.Message, error) {
	list, err := d.CreateMessages(ctx, []*store.Message{create})
	if err != nil {
		return nil, err
	}
	return list[0], nil
}

func (d *DB) CreateMessages(ctx context.Context, creates []*store.Message) ([]*store.Message, error) {
	if len(creates) == 0 {
		return creates, nil
	}

	now := time.Now().Unix()
	values, args := []string{}, []any{}
	for _, create := range creates {
		create.CreatedTs = now
		metadata, err := marshalMetadata(create.Metadata)
		if err != nil {
			return nil, err
		}
		base := len(args)
		values = append(values, "("+
			placeholder(base+1)+", "+placeholder(base+2)+", "+placeholder(base+3)+", "+
			placeholder(base+4)+", "+placeholder(base+5)+", "+placeholder(base+6)+", "+
			placeholder(base+7)+", "+placeholder(base+8)+", "+placeholder(base+9)+", "+
			placeholder(base+10)+")")
		args = append(args,
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
		)
	}

	stmt := `
		INSERT INTO message (
			uid, conversation_id, role, content, sequence_number,
			external_id, model, tokens, metadata, created_ts
		)
		VALUES ` + strings.Join(values, ", ") + `
		RETURNING id
	`
	rows, err := d.db.QueryContext(ctx, stmt, args...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create messages")
	}
	defer rows.Close()

	i := 0
	for rows.Next() {
		if err := rows.Scan(&creates[i].ID); err != nil {
			return nil, errors.Wrap(err, "failed to scan message id")
		}
		i++
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return creates, nil
}

func (d *DB) ListMessages(ctx context.Context, find *store.FindMessage) ([]*store.Message, error) {
	where, args := []string{"1 = 1"}, []any{}
	if find.ID != nil {
		where, args = append(where, "id = "+placeholder(len(args)+1)), append(args, *find.ID)
	}
	if len(find.IDs) > 0 {
		holders := []string{}
		for _, id := range find.IDs {
			holders = append(holders, placeholder(len(args)+1))
			args = append(args, id)
		}
		where = append(where, "id IN ("+strings.Join(holders, ", ")+")")
	}
	if find.UID != nil {
		where, args = append(where, "uid = "+placeholder(len(args)+1)), append(args, *find.UID)
	}
	if find.ConversationID != nil {
		where, args = append(where, "conversation_id = "+placeholder(len(args)+1)), append(args, *find.ConversationID)
	}
	if find.Role != nil {
		where, args = append(where, "role = "+placeholder(len(args)+1)), append(args, *find.Role)
	}

	query := `
		SELECT id, uid, conversation_id, role, content, sequence_number,
			external_id, model, tokens, metadata, created_ts
		FROM message
		WHERE ` + strings.Join(where, " AND ") + `
		ORDER BY sequence_number ASC
	`
	if find.Limit != nil {
		query += " LIMIT " + placeholder(len(args)+1)
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
		`SELECT COUNT(*) FROM message WHERE conversation_id = `+placeholder(1),
		conversationID,
	).Scan(&count)
	if err != nil {
		return 0, errors.Wrap(err, "failed to count messages")
	}
	return count, nil
}
