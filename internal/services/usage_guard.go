package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/k429wang/AI-Deep-Research-Assistant/internal/config"
	"github.com/k429wang/AI-Deep-Research-Assistant/internal/models"
	"github.com/k429wang/AI-Deep-Research-Assistant/internal/providers"
	"github.com/k429wang/AI-Deep-Research-Assistant/internal/repository"
)

// UsageLimits is the fixed set of ceilings enforced by the guard
type UsageLimits struct {
	openai config.ProviderLimits
	gemini config.ProviderLimits
}

// NewUsageLimits freezes the configured limits
func NewUsageLimits(cfg config.UsageConfig) UsageLimits {
	return UsageLimits{openai: cfg.OpenAI, gemini: cfg.Gemini}
}

// For returns the limits for a provider
func (l UsageLimits) For(p models.Provider) config.ProviderLimits {
	if p == models.ProviderGemini {
		return l.gemini
	}
	return l.openai
}

// Decision is the outcome of an admission check
type Decision struct {
	Allowed bool   `json:"allowed"`
	Reason  string `json:"reason,omitempty"`
}

// UsageChecker is the admission control the orchestrator depends on
type UsageChecker interface {
	CanMakeRequest(ctx context.Context, userID string, provider models.Provider) Decision
	RecordRequest(ctx context.Context, userID string, provider models.Provider)
}

// ProviderUsage is one provider's counters and limits for a user
type ProviderUsage struct {
	Provider     models.Provider `json:"provider"`
	Today        int             `json:"today"`
	Month        int             `json:"month"`
	DailyLimit   int             `json:"daily_limit"`
	MonthlyLimit int             `json:"monthly_limit"`
}

// UsageStatus is a user's current standing against every limit
type UsageStatus struct {
	UserID    string          `json:"user_id"`
	Date      string          `json:"date"`
	Providers []ProviderUsage `json:"providers"`
}

// UsageGuard enforces per-user daily, per-user monthly and global daily
// ceilings for each metered provider
type UsageGuard struct {
	repo     repository.UsageRepository
	limits   UsageLimits
	location *time.Location
	now      func() time.Time
	logger   *logrus.Logger
}

// UsageGuardOption customizes a UsageGuard
type UsageGuardOption func(*UsageGuard)

// WithClock replaces time.Now
func WithClock(now func() time.Time) UsageGuardOption {
	return func(g *UsageGuard) { g.now = now }
}

// WithLocation sets the time zone whose calendar days and months are counted
func WithLocation(loc *time.Location) UsageGuardOption {
	return func(g *UsageGuard) { g.location = loc }
}

// NewUsageGuard creates a usage guard
func NewUsageGuard(repo repository.UsageRepository, limits UsageLimits, logger *logrus.Logger, opts ...UsageGuardOption) *UsageGuard {
	g := &UsageGuard{
		repo:     repo,
		limits:   limits,
		location: time.UTC,
		now:      time.Now,
		logger:   logger,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// CanMakeRequest reports whether userID may call provider now. Storage
// failures admit the request.
func (g *UsageGuard) CanMakeRequest(ctx context.Context, userID string, provider models.Provider) Decision {
	today := g.today()

	record, err := g.current(ctx, userID, today)
	if err != nil {
		g.failOpen(err, userID, provider)
		return Decision{Allowed: true}
	}

	limits := g.limits.For(provider)
	name := providers.DisplayName(provider)

	if record.Today(provider) >= limits.Daily {
		return Decision{Reason: fmt.Sprintf("Daily %s research limit of %d requests reached. Please try again tomorrow.", name, limits.Daily)}
	}
	if record.Month(provider) >= limits.Monthly {
		return Decision{Reason: fmt.Sprintf("Monthly %s research limit of %d requests reached. Please try again next month.", name, limits.Monthly)}
	}

	total, err := g.repo.SumToday(ctx, provider, today)
	if err != nil {
		g.failOpen(err, userID, provider)
		return Decision{Allowed: true}
	}
	if total >= limits.GlobalDaily {
		return Decision{Reason: fmt.Sprintf("%s research is temporarily unavailable. Please try again later.", name)}
	}

	return Decision{Allowed: true}
}

// RecordRequest counts one successful call. Failures are logged only.
func (g *UsageGuard) RecordRequest(ctx context.Context, userID string, provider models.Provider) {
	if err := g.repo.Increment(ctx, userID, provider, g.today()); err != nil {
		g.logger.WithError(err).WithFields(logrus.Fields{
			"user_id":  userID,
			"provider": provider,
		}).Warn("Failed to record provider usage")
	}
}

// Status returns the user's counters after applying any pending resets
func (g *UsageGuard) Status(ctx context.Context, userID string) (*UsageStatus, error) {
	today := g.today()
	record, err := g.current(ctx, userID, today)
	if err != nil {
		return nil, fmt.Errorf("failed to load usage: %w", err)
	}

	status := &UsageStatus{UserID: userID, Date: today.Format("2006-01-02")}
	for _, p := range models.Providers {
		limits := g.limits.For(p)
		status.Providers = append(status.Providers, ProviderUsage{
			Provider:     p,
			Today:        record.Today(p),
			Month:        record.Month(p),
			DailyLimit:   limits.Daily,
			MonthlyLimit: limits.Monthly,
		})
	}
	return status, nil
}

// current loads or lazily creates the record and applies day and month
// rollovers. Both are decided from the reset date as loaded and written
// together, so a failed write leaves the record for the next check to retry.
func (g *UsageGuard) current(ctx context.Context, userID string, today time.Time) (*models.UsageRecord, error) {
	record, err := g.repo.Get(ctx, userID)
	if errors.Is(err, repository.ErrNotFound) {
		if err := g.repo.Create(ctx, &models.UsageRecord{UserID: userID, LastResetDate: today}); err != nil {
			return nil, err
		}
		record, err = g.repo.Get(ctx, userID)
	}
	if err != nil {
		return nil, err
	}

	lastReset := calendarDate(record.LastResetDate)
	if !today.After(lastReset) {
		return record, nil
	}

	monthly := monthStart(today).After(monthStart(lastReset))
	if err := g.repo.ResetPeriods(ctx, userID, today, monthly); err != nil {
		return nil, err
	}
	record.OpenAIToday = 0
	record.GeminiToday = 0
	record.LastResetDate = today
	if monthly {
		record.OpenAIMonth = 0
		record.GeminiMonth = 0
	}

	return record, nil
}

func (g *UsageGuard) today() time.Time {
	return calendarDate(g.now().In(g.location))
}

func (g *UsageGuard) failOpen(err error, userID string, provider models.Provider) {
	g.logger.WithError(err).WithFields(logrus.Fields{
		"user_id":  userID,
		"provider": provider,
	}).Warn("Usage check failed, allowing request")
}

// calendarDate keeps only the calendar date of t, as midnight UTC.
func calendarDate(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func monthStart(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
}
