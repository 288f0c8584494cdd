package audit

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/k429wang/AI-Deep-Research-Assistant/internal/models"
	"github.com/k429wang/AI-Deep-Research-Assistant/internal/repository"
)

// EventType represents the type of session event
type EventType string

const (
	EventSessionCreated  EventType = "session.created"
	EventStatusChanged   EventType = "session.status_changed"
	EventRefinementAsked EventType = "refinement.asked"
	EventRefinementReply EventType = "refinement.answered"
	EventProviderFailed  EventType = "provider.failed"
	EventReportGenerated EventType = "report.generated"
	EventReportFailed    EventType = "report.failed"
	EventDelivered       EventType = "delivery.sent"
	EventDeliveryFailed  EventType = "delivery.failed"
)

// Service records session events. Persistence failures are logged and never
// returned, so event logging cannot break the research workflow.
type Service struct {
	repo   repository.EventRepository
	logger *logrus.Logger
	now    func() time.Time
}

// NewService creates a new audit service
func NewService(repo repository.EventRepository, logger *logrus.Logger) *Service {
	return &Service{
		repo:   repo,
		logger: logger,
		now:    time.Now,
	}
}

// Record stores a free-form event for a session
func (s *Service) Record(ctx context.Context, session *models.Session, eventType EventType, message string, metadata map[string]interface{}) {
	s.log(ctx, &models.SessionEvent{
		SessionID: session.ID,
		UserID:    session.UserID,
		EventType: string(eventType),
		Message:   message,
		Metadata:  models.JSONB(metadata),
	})
}

// StatusChanged stores a lifecycle transition
func (s *Service) StatusChanged(ctx context.Context, session *models.Session, from, to models.SessionStatus, message string) {
	s.log(ctx, &models.SessionEvent{
		SessionID:  session.ID,
		UserID:     session.UserID,
		EventType:  string(EventStatusChanged),
		FromStatus: &from,
		ToStatus:   &to,
		Message:    message,
	})
}

// SessionEvents lists the events of a session owned by userID
func (s *Service) SessionEvents(ctx context.Context, sessionID, userID string) ([]models.SessionEvent, error) {
	return s.repo.ListBySession(ctx, sessionID, userID)
}

func (s *Service) log(ctx context.Context, event *models.SessionEvent) {
	event.CreatedAt = s.now()

	fields := logrus.Fields{
		"session_id": event.SessionID,
		"user_id":    event.UserID,
		"event":      event.EventType,
	}
	if event.ToStatus != nil {
		fields["from"] = *event.FromStatus
		fields["to"] = *event.ToStatus
	}
	s.logger.WithFields(fields).Debug(event.Message)

	if err := s.repo.Log(context.WithoutCancel(ctx), event); err != nil {
		s.logger.WithError(err).WithFields(fields).Warn("Failed to record session event")
	}
}
