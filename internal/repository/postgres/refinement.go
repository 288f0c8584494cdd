package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/k429wang/AI-Deep-Research-Assistant/internal/models"
)

// RefinementRepository implements repository.RefinementRepository using PostgreSQL
type RefinementRepository struct {
	db *sqlx.DB
}

// NewRefinementRepository creates a new PostgreSQL refinement repository
func NewRefinementRepository(db *sqlx.DB) *RefinementRepository {
	return &RefinementRepository{db: db}
}

// ListBySession returns the session's refinements in index order
func (r *RefinementRepository) ListBySession(ctx context.Context, sessionID string) ([]models.Refinement, error) {
	refinements := []models.Refinement{}
	query := `
		SELECT id, session_id, question, answer, question_index, answered_at, created_at
		FROM refinements
		WHERE session_id = $1
		ORDER BY question_index ASC`

	if err := r.db.SelectContext(ctx, &refinements, query, sessionID); err != nil {
		return nil, fmt.Errorf("failed to list refinements: %w", err)
	}
	return refinements, nil
}

// Answer records the answer and its timestamp together
func (r *RefinementRepository) Answer(ctx context.Context, sessionID string, index int, answer string, answeredAt time.Time) error {
	query := `
		UPDATE refinements
		SET answer = $3, answered_at = $4
		WHERE session_id = $1 AND question_index = $2`

	result, err := r.db.ExecContext(ctx, query, sessionID, index, answer, answeredAt)
	if err != nil {
		return fmt.Errorf("failed to answer refinement: %w", err)
	}
	return requireRow(result)
}
