package services

import (
	"context"
	"database/sql"

	"github.com/dmitrijs2005/berboapp/internal/logging"
	"github.com/dmitrijs2005/berboapp/internal/server/models"
	"github.com/dmitrijs2005/berboapp/internal/server/repositories/repomanager"
)

const recentEventsLimit = 10

type EventService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	log         logging.Logger
}

func NewEventService(db *sql.DB, m repomanager.RepositoryManager, log logging.Logger) *EventService {
	return &EventService{db: db, repomanager: m, log: log.With("module", "events")}
}

// Record appends to the user's audit trail. Failures are logged and
// swallowed so auditing never fails the calling operation.
func (s *EventService) Record(ctx context.Context, userID int64, eventType models.EventType, meta models.RequestMeta) {
	if err := s.repomanager.Events(s.db).Insert(ctx, userID, eventType, meta); err != nil {
		s.log.Error(ctx, "record event failed", "user_id", userID, "type", string(eventType), "error", err)
	}
}

// Recent returns the user's last ten events, newest first.
func (s *EventService) Recent(ctx context.Context, userID int64) ([]models.UserEvent, error) {
	return s.repomanager.Events(s.db).Recent(ctx, userID, recentEventsLimit)
}
