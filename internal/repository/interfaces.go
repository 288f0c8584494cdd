package repository

import (
	"context"
	"errors"
	"time"

	"github.com/k429wang/AI-Deep-Research-Assistant/internal/models"
)

var (
	// ErrNotFound is returned when a row does not exist or is not visible to the caller.
	ErrNotFound = errors.New("record not found")
	// ErrConflict is returned when an insert collides with an existing unique key.
	ErrConflict = errors.New("record already exists")
)

// SessionRepository defines research session storage operations.
// Reads are always scoped to the owning user.
type SessionRepository interface {
	Create(ctx context.Context, session *models.Session) error
	// GetForUser loads the session together with its refinements ordered by index.
	GetForUser(ctx context.Context, id, userID string) (*models.Session, error)
	ListForUser(ctx context.Context, userID string) ([]models.Session, error)

	// UpdateStatus moves the session to `to` only while its current status is one of `from`.
	// It reports whether the row changed.
	UpdateStatus(ctx context.Context, id string, from []models.SessionStatus, to models.SessionStatus) (bool, error)
	// BeginResearch moves the session from `from` to RUNNING_RESEARCH and
	// records prompt as the refined prompt unless one is already set.
	BeginResearch(ctx context.Context, id string, from models.SessionStatus, prompt string) (bool, error)
	SetFailed(ctx context.Context, id, message string) error
	// SetResults stores both provider results and marks the session COMPLETED.
	SetResults(ctx context.Context, id, openaiResult, geminiResult string) error
	SetReport(ctx context.Context, id, key string, generatedAt time.Time) error
	SetDelivered(ctx context.Context, id string, deliveredAt time.Time) error

	// CreateRefinementsAndAwait inserts the whole question batch and moves the
	// session to AWAITING_REFINEMENTS in a single transaction.
	CreateRefinementsAndAwait(ctx context.Context, sessionID string, refinements []models.Refinement) error
	// AdvanceToRefinementsComplete stores the refined prompt and moves the session
	// to REFINEMENTS_COMPLETE, but only if every refinement is answered at write
	// time and the session is still collecting answers.
	AdvanceToRefinementsComplete(ctx context.Context, sessionID, refinedPrompt string) (bool, error)
}

// RefinementRepository defines clarification question storage operations
type RefinementRepository interface {
	ListBySession(ctx context.Context, sessionID string) ([]models.Refinement, error)
	Answer(ctx context.Context, sessionID string, index int, answer string, answeredAt time.Time) error
}

// UsageRepository defines per-user provider counter storage operations
type UsageRepository interface {
	Get(ctx context.Context, userID string) (*models.UsageRecord, error)
	// Create inserts a zeroed record; an existing record is left untouched.
	Create(ctx context.Context, record *models.UsageRecord) error
	// ResetPeriods zeroes both providers' daily counters, and the monthly ones
	// when monthly is set, and moves the reset date to today in one write.
	ResetPeriods(ctx context.Context, userID string, today time.Time, monthly bool) error
	// Increment adds one call for provider to both counters, creating the record
	// if absent. Counters left over from an earlier day or month start again from one.
	Increment(ctx context.Context, userID string, provider models.Provider, today time.Time) error
	// SumToday totals today-counts for provider across users whose counters belong to today.
	SumToday(ctx context.Context, provider models.Provider, today time.Time) (int, error)
}

// EventRepository defines session event log storage operations
type EventRepository interface {
	Log(ctx context.Context, event *models.SessionEvent) error
	ListBySession(ctx context.Context, sessionID, userID string) ([]models.SessionEvent, error)
}

// ReportRepository stores generated report artifacts.
type ReportRepository interface {
	// Save stores content for the session and returns the reference recorded on the session.
	Save(ctx context.Context, sessionID string, content []byte) (string, error)
	Get(ctx context.Context, key string) ([]byte, error)
}
