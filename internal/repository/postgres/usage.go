package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/k429wang/AI-Deep-Research-Assistant/internal/models"
	"github.com/k429wang/AI-Deep-Research-Assistant/internal/repository"
)

// UsageRepository implements repository.UsageRepository using PostgreSQL
type UsageRepository struct {
	db *sqlx.DB
}

// NewUsageRepository creates a new PostgreSQL usage repository
func NewUsageRepository(db *sqlx.DB) *UsageRepository {
	return &UsageRepository{db: db}
}

// usageColumns maps a provider to its counter columns. Column names are never
// taken from caller input.
func usageColumns(provider models.Provider) (today, month string, err error) {
	switch provider {
	case models.ProviderOpenAI:
		return "openai_today", "openai_month", nil
	case models.ProviderGemini:
		return "gemini_today", "gemini_month", nil
	default:
		return "", "", fmt.Errorf("unknown provider %q", provider)
	}
}

// Get retrieves the usage record for a user
func (r *UsageRepository) Get(ctx context.Context, userID string) (*models.UsageRecord, error) {
	var record models.UsageRecord
	query := `
		SELECT user_id, openai_today, openai_month, gemini_today, gemini_month,
		       last_reset_date, created_at, updated_at
		FROM api_usage
		WHERE user_id = $1`

	if err := r.db.GetContext(ctx, &record, query, userID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get usage: %w", err)
	}
	return &record, nil
}

// Create inserts a record unless one already exists for the user
func (r *UsageRepository) Create(ctx context.Context, record *models.UsageRecord) error {
	now := time.Now()
	record.CreatedAt = now
	record.UpdatedAt = now

	query := `
		INSERT INTO api_usage (user_id, openai_today, openai_month, gemini_today, gemini_month,
		                       last_reset_date, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (user_id) DO NOTHING`

	_, err := r.db.ExecContext(ctx, query,
		record.UserID, record.OpenAIToday, record.OpenAIMonth, record.GeminiToday, record.GeminiMonth,
		dateParam(record.LastResetDate), record.CreatedAt, record.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create usage record: %w", err)
	}
	return nil
}

// ResetPeriods zeroes the daily counters, and the monthly ones when monthly is
// set, moving the reset date to today in a single statement
func (r *UsageRepository) ResetPeriods(ctx context.Context, userID string, today time.Time, monthly bool) error {
	query := `
		UPDATE api_usage
		SET openai_today = 0,
		    gemini_today = 0,
		    openai_month = CASE WHEN $3 THEN 0 ELSE openai_month END,
		    gemini_month = CASE WHEN $3 THEN 0 ELSE gemini_month END,
		    last_reset_date = $2,
		    updated_at = NOW()
		WHERE user_id = $1`

	if _, err := r.db.ExecContext(ctx, query, userID, dateParam(today), monthly); err != nil {
		return fmt.Errorf("failed to reset usage: %w", err)
	}
	return nil
}

// Increment records one call for provider. A row whose reset date is behind
// today is rolled over in the same upsert, so a call that finishes after
// midnight counts towards the new day.
func (r *UsageRepository) Increment(ctx context.Context, userID string, provider models.Provider, today time.Time) error {
	todayCol, monthCol, err := usageColumns(provider)
	if err != nil {
		return err
	}

	set := make([]string, 0, 2*len(models.Providers))
	for _, p := range models.Providers {
		pToday, pMonth, _ := usageColumns(p)
		added := "0"
		if p == provider {
			added = "1"
		}
		set = append(set,
			fmt.Sprintf("%[1]s = CASE WHEN api_usage.last_reset_date < $2::date THEN %[2]s ELSE api_usage.%[1]s + %[2]s END",
				pToday, added),
			fmt.Sprintf("%[1]s = CASE WHEN date_trunc('month', api_usage.last_reset_date) < date_trunc('month', $2::date) THEN %[2]s ELSE api_usage.%[1]s + %[2]s END",
				pMonth, added),
		)
	}

	query := fmt.Sprintf(`
		INSERT INTO api_usage (user_id, %s, %s, last_reset_date)
		VALUES ($1, 1, 1, $2::date)
		ON CONFLICT (user_id) DO UPDATE
		SET %s,
		    last_reset_date = GREATEST(api_usage.last_reset_date, $2::date),
		    updated_at = NOW()`, todayCol, monthCol, strings.Join(set, ",\n\t\t    "))

	if _, err := r.db.ExecContext(ctx, query, userID, dateParam(today)); err != nil {
		return fmt.Errorf("failed to record usage: %w", err)
	}
	return nil
}

// SumToday totals today's calls for provider across all users
func (r *UsageRepository) SumToday(ctx context.Context, provider models.Provider, today time.Time) (int, error) {
	todayCol, _, err := usageColumns(provider)
	if err != nil {
		return 0, err
	}

	var total int
	query := fmt.Sprintf(`SELECT COALESCE(SUM(%s), 0) FROM api_usage WHERE last_reset_date = $1`, todayCol)

	if err := r.db.GetContext(ctx, &total, query, dateParam(today)); err != nil {
		return 0, fmt.Errorf("failed to sum usage: %w", err)
	}
	return total, nil
}

// dateParam renders the calendar date of t so the DATE column never depends
// on the session time zone.
func dateParam(t time.Time) string {
	return t.Format("2006-01-02")
}
