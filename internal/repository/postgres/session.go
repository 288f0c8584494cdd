package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/k429wang/AI-Deep-Research-Assistant/internal/models"
	"github.com/k429wang/AI-Deep-Research-Assistant/internal/repository"
)

const sessionColumns = `id, user_id, title, initial_prompt, refined_prompt, status,
	openai_result, gemini_result, report_key, report_generated_at, delivered_at,
	error_message, created_at, updated_at`

// SessionRepository implements repository.SessionRepository using PostgreSQL
type SessionRepository struct {
	db          *sqlx.DB
	refinements *RefinementRepository
}

// NewSessionRepository creates a new PostgreSQL session repository
func NewSessionRepository(db *sqlx.DB) *SessionRepository {
	return &SessionRepository{db: db, refinements: NewRefinementRepository(db)}
}

// Create inserts a new session
func (r *SessionRepository) Create(ctx context.Context, session *models.Session) error {
	if session.ID == "" {
		session.ID = uuid.New().String()
	}
	if session.Status == "" {
		session.Status = models.StatusCreated
	}
	now := time.Now()
	session.CreatedAt = now
	session.UpdatedAt = now

	query := `
		INSERT INTO research_sessions (id, user_id, title, initial_prompt, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`

	_, err := r.db.ExecContext(ctx, query,
		session.ID, session.UserID, session.Title, session.InitialPrompt,
		session.Status, session.CreatedAt, session.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return repository.ErrConflict
		}
		return fmt.Errorf("failed to create session: %w", err)
	}
	return nil
}

// GetForUser retrieves a session and its refinements, scoped to its owner
func (r *SessionRepository) GetForUser(ctx context.Context, id, userID string) (*models.Session, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, repository.ErrNotFound
	}

	var session models.Session
	query := `SELECT ` + sessionColumns + ` FROM research_sessions WHERE id = $1 AND user_id = $2`

	if err := r.db.GetContext(ctx, &session, query, id, userID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get session: %w", err)
	}

	refinements, err := r.refinements.ListBySession(ctx, id)
	if err != nil {
		return nil, err
	}
	session.Refinements = refinements

	return &session, nil
}

// ListForUser retrieves all sessions for a user, newest first
func (r *SessionRepository) ListForUser(ctx context.Context, userID string) ([]models.Session, error) {
	sessions := []models.Session{}
	query := `SELECT ` + sessionColumns + ` FROM research_sessions WHERE user_id = $1 ORDER BY created_at DESC`

	if err := r.db.SelectContext(ctx, &sessions, query, userID); err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	return sessions, nil
}

// UpdateStatus performs a compare-and-set on the session status
func (r *SessionRepository) UpdateStatus(ctx context.Context, id string, from []models.SessionStatus, to models.SessionStatus) (bool, error) {
	if len(from) == 0 {
		return false, nil
	}

	query, args, err := sqlx.In(`
		UPDATE research_sessions
		SET status = ?, updated_at = NOW()
		WHERE id = ? AND status IN (?)`, to, id, from)
	if err != nil {
		return false, fmt.Errorf("failed to build status update: %w", err)
	}

	result, err := r.db.ExecContext(ctx, r.db.Rebind(query), args...)
	if err != nil {
		return false, fmt.Errorf("failed to update session status: %w", err)
	}
	return affected(result)
}

// BeginResearch starts the research phase and pins the prompt being researched
func (r *SessionRepository) BeginResearch(ctx context.Context, id string, from models.SessionStatus, prompt string) (bool, error) {
	query := `
		UPDATE research_sessions
		SET status = $2, refined_prompt = COALESCE(refined_prompt, $3), updated_at = NOW()
		WHERE id = $1 AND status = $4`

	result, err := r.db.ExecContext(ctx, query, id, models.StatusRunningResearch, prompt, from)
	if err != nil {
		return false, fmt.Errorf("failed to start research: %w", err)
	}
	return affected(result)
}

// SetFailed marks the session FAILED with a user-visible message
func (r *SessionRepository) SetFailed(ctx context.Context, id, message string) error {
	query := `
		UPDATE research_sessions
		SET status = $2, error_message = $3, updated_at = NOW()
		WHERE id = $1`

	result, err := r.db.ExecContext(ctx, query, id, models.StatusFailed, message)
	if err != nil {
		return fmt.Errorf("failed to mark session failed: %w", err)
	}
	return requireRow(result)
}

// SetResults stores both provider results and completes the session
func (r *SessionRepository) SetResults(ctx context.Context, id, openaiResult, geminiResult string) error {
	query := `
		UPDATE research_sessions
		SET openai_result = $2, gemini_result = $3, status = $4, updated_at = NOW()
		WHERE id = $1 AND status = $5`

	result, err := r.db.ExecContext(ctx, query, id, openaiResult, geminiResult,
		models.StatusCompleted, models.StatusRunningResearch)
	if err != nil {
		return fmt.Errorf("failed to store research results: %w", err)
	}
	return requireRow(result)
}

// SetReport records the generated report reference
func (r *SessionRepository) SetReport(ctx context.Context, id, key string, generatedAt time.Time) error {
	query := `
		UPDATE research_sessions
		SET report_key = $2, report_generated_at = $3, updated_at = NOW()
		WHERE id = $1`

	result, err := r.db.ExecContext(ctx, query, id, key, generatedAt)
	if err != nil {
		return fmt.Errorf("failed to record report: %w", err)
	}
	return requireRow(result)
}

// SetDelivered records a successful report delivery
func (r *SessionRepository) SetDelivered(ctx context.Context, id string, deliveredAt time.Time) error {
	query := `UPDATE research_sessions SET delivered_at = $2, updated_at = NOW() WHERE id = $1`

	result, err := r.db.ExecContext(ctx, query, id, deliveredAt)
	if err != nil {
		return fmt.Errorf("failed to record delivery: %w", err)
	}
	return requireRow(result)
}

// CreateRefinementsAndAwait inserts the question batch and parks the session
// in AWAITING_REFINEMENTS atomically
func (r *SessionRepository) CreateRefinementsAndAwait(ctx context.Context, sessionID string, refinements []models.Refinement) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	insert := `
		INSERT INTO refinements (id, session_id, question, question_index, created_at)
		VALUES ($1, $2, $3, $4, $5)`

	now := time.Now()
	for i := range refinements {
		ref := &refinements[i]
		if ref.ID == "" {
			ref.ID = uuid.New().String()
		}
		ref.SessionID = sessionID
		ref.CreatedAt = now
		if _, err := tx.ExecContext(ctx, insert, ref.ID, sessionID, ref.Question, ref.QuestionIndex, ref.CreatedAt); err != nil {
			if isUniqueViolation(err) {
				return fmt.Errorf("duplicate refinement index %d: %w", ref.QuestionIndex, repository.ErrConflict)
			}
			return fmt.Errorf("failed to create refinement: %w", err)
		}
	}

	update := `
		UPDATE research_sessions
		SET status = $2, updated_at = NOW()
		WHERE id = $1 AND status = $3`

	result, err := tx.ExecContext(ctx, update, sessionID, models.StatusAwaitingRefinements, models.StatusCreated)
	if err != nil {
		return fmt.Errorf("failed to update session status: %w", err)
	}
	if err := requireRow(result); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit refinements: %w", err)
	}
	return nil
}

// AdvanceToRefinementsComplete sets the refined prompt only when no
// unanswered refinement remains at write time
func (r *SessionRepository) AdvanceToRefinementsComplete(ctx context.Context, sessionID, refinedPrompt string) (bool, error) {
	query := `
		UPDATE research_sessions s
		SET refined_prompt = $2, status = $3, updated_at = NOW()
		WHERE s.id = $1
		  AND s.status IN ($4, $5)
		  AND EXISTS (SELECT 1 FROM refinements r WHERE r.session_id = s.id)
		  AND NOT EXISTS (
			SELECT 1 FROM refinements r
			WHERE r.session_id = s.id AND (r.answer IS NULL OR btrim(r.answer) = '')
		  )`

	result, err := r.db.ExecContext(ctx, query, sessionID, refinedPrompt,
		models.StatusRefinementsComplete,
		models.StatusAwaitingRefinements, models.StatusRefinementsInProgress,
	)
	if err != nil {
		return false, fmt.Errorf("failed to advance session: %w", err)
	}
	return affected(result)
}

func affected(result sql.Result) (bool, error) {
	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read rows affected: %w", err)
	}
	return rows > 0, nil
}

func requireRow(result sql.Result) error {
	ok, err := affected(result)
	if err != nil {
		return err
	}
	if !ok {
		return repository.ErrNotFound
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	var coded interface{ SQLState() string }
	if errors.As(err, &coded) {
		return coded.SQLState() == "23505"
	}
	return false
}
