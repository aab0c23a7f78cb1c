// Package events stores the per-user audit trail.
package events

import (
	"context"

	"github.com/dmitrijs2005/berboapp/internal/server/models"
)

type Repository interface {
	Insert(ctx context.Context, userID int64, eventType models.EventType, meta models.RequestMeta) error
	// Recent returns up to limit events for the user, newest first.
	Recent(ctx context.Context, userID int64, limit int) ([]models.UserEvent, error)
}
