package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/k429wang/AI-Deep-Research-Assistant/internal/repository"
)

// ReportRepository stores generated PDF reports in the database
type ReportRepository struct {
	db *sqlx.DB
}

// NewReportRepository creates a new PostgreSQL report repository
func NewReportRepository(db *sqlx.DB) *ReportRepository {
	return &ReportRepository{db: db}
}

// ReportKey is the reference recorded on a session for its report.
func ReportKey(sessionID string) string {
	return "reports/" + sessionID + ".pdf"
}

// Save stores or replaces the report for a session
func (r *ReportRepository) Save(ctx context.Context, sessionID string, content []byte) (string, error) {
	key := ReportKey(sessionID)
	query := `
		INSERT INTO reports (key, session_id, content)
		VALUES ($1, $2, $3)
		ON CONFLICT (key) DO UPDATE SET content = EXCLUDED.content, created_at = NOW()`

	if _, err := r.db.ExecContext(ctx, query, key, sessionID, content); err != nil {
		return "", fmt.Errorf("failed to save report: %w", err)
	}
	return key, nil
}

// Get loads report content by key
func (r *ReportRepository) Get(ctx context.Context, key string) ([]byte, error) {
	var content []byte
	if err := r.db.GetContext(ctx, &content, `SELECT content FROM reports WHERE key = $1`, key); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get report: %w", err)
	}
	return content, nil
}
