package events

import (
	"context"
	"fmt"

	"github.com/dmitrijs2005/berboapp/internal/common"
	"github.com/dmitrijs2005/berboapp/internal/dbx"
	"github.com/dmitrijs2005/berboapp/internal/server/models"
)

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Insert returns common.ErrorNotFound for an unseeded event type.
func (r *PostgresRepository) Insert(ctx context.Context, userID int64, eventType models.EventType, meta models.RequestMeta) error {
	query :=
		`INSERT INTO user_events (user_id, event_id, device, ip_address)
		 SELECT $1, id, $3, $4 FROM events WHERE type = $2
		 `
	res, err := r.db.ExecContext(ctx, query, userID, string(eventType), meta.Device, meta.IPAddress)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if n == 0 {
		return common.ErrorNotFound
	}
	return nil
}

func (r *PostgresRepository) Recent(ctx context.Context, userID int64, limit int) ([]models.UserEvent, error) {
	query :=
		`SELECT ue.id, ue.user_id, e.type, e.description, ue.device, ue.ip_address, ue.created_at
		 FROM user_events ue
		 JOIN events e ON e.id = ue.event_id
		 WHERE ue.user_id = $1
		 ORDER BY ue.created_at DESC, ue.id DESC
		 LIMIT $2
		 `
	rows, err := r.db.QueryContext(ctx, query, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	out := []models.UserEvent{}
	for rows.Next() {
		var ev models.UserEvent
		var typ string
		if err := rows.Scan(&ev.ID, &ev.UserID, &typ, &ev.Description, &ev.Device, &ev.IPAddress, &ev.CreatedAt); err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		ev.Type = models.EventType(typ)
		out = append(out, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return out, nil
}
