package sqlite

import (
	"context"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/recollecthq/recollect/store"
)

func (d *DB) CreateAgent(ctx context.Context, create *store.Agent) (*store.Agent, error) {
	create.CreatedTs = time.Now().Unix()

	stmt := `
		INSERT INTO agent (name, display_name, created_ts)
		VALUES (` + placeholders(3) + `)
		RETURNING id
	`
	if err := d.db.QueryRowContext(ctx, stmt,
		create.Name,
		create.DisplayName,
		create.CreatedTs,
	).Scan(&create.ID); err != nil {
		return nil, errors.Wrap(err, "failed to create agent")
	}
	return create, nil
}

func (d *DB) ListAgents(ctx context.Context, find *store.FindAgent) ([]*store.Agent, error) {
	where, args := []string{"1 = 1"}, []any{}
	if find.ID != nil {
		where, args = append(where, "id = ?"), append(args, *find.ID)
	}
	if find.Name != nil {
		where, args = append(where, "name = ?"), append(args, *find.Name)
	}

	query := `
		SELECT id, name, display_name, created_ts
		FROM agent
		WHERE ` + strings.Join(where, " AND ") + `
		ORDER BY id
	`
	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list agents")
	}
	defer rows.Close()

	list := []*store.Agent{}
	for rows.Next() {
		var agent store.Agent
		if err := rows.Scan(&agent.ID, &agent.Name, &agent.DisplayName, &agent.CreatedTs); err != nil {
			return nil, errors.Wrap(err, "failed to scan agent")
		}
		list = append(list, &agent)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return list, nil
}
