package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/k429wang/AI-Deep-Research-Assistant/internal/models"
)

// EventRepository handles session event log data access
type EventRepository struct {
	db *sqlx.DB
}

// NewEventRepository creates a new session event repository
func NewEventRepository(db *sqlx.DB) *EventRepository {
	return &EventRepository{db: db}
}

// Log appends an event entry
func (r *EventRepository) Log(ctx context.Context, event *models.SessionEvent) error {
	if event.ID == uuid.Nil {
		event.ID = uuid.New()
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now()
	}

	query := `
		INSERT INTO session_events (
			id, session_id, user_id, event_type, from_status, to_status,
			message, metadata, created_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9
		)`

	_, err := r.db.ExecContext(ctx, query,
		event.ID, event.SessionID, event.UserID, event.EventType, event.FromStatus, event.ToStatus,
		event.Message, event.Metadata, event.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to log session event: %w", err)
	}
	return nil
}

// ListBySession returns a session's events oldest first
func (r *EventRepository) ListBySession(ctx context.Context, sessionID, userID string) ([]models.SessionEvent, error) {
	events := []models.SessionEvent{}
	if _, err := uuid.Parse(sessionID); err != nil {
		return events, nil
	}

	query := `
		SELECT id, session_id, user_id, event_type, from_status, to_status, message, metadata, created_at
		FROM session_events
		WHERE session_id = $1 AND user_id = $2
		ORDER BY created_at ASC`

	if err := r.db.SelectContext(ctx, &events, query, sessionID, userID); err != nil {
		return nil, fmt.Errorf("failed to list session events: %w", err)
	}
	return events, nil
}
