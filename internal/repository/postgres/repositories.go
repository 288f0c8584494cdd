package postgres

import (
	"github.com/jmoiron/sqlx"

	"github.com/k429wang/AI-Deep-Research-Assistant/internal/repository"
)

var (
	_ repository.SessionRepository    = (*SessionRepository)(nil)
	_ repository.RefinementRepository = (*RefinementRepository)(nil)
	_ repository.UsageRepository      = (*UsageRepository)(nil)
	_ repository.EventRepository      = (*EventRepository)(nil)
	_ repository.ReportRepository     = (*ReportRepository)(nil)
)

// Repositories groups every PostgreSQL repository behind one constructor
type Repositories struct {
	Sessions    *SessionRepository
	Refinements *RefinementRepository
	Usage       *UsageRepository
	Events      *EventRepository
	Reports     *ReportRepository
}

// NewRepositories builds all repositories over a shared connection pool
func NewRepositories(db *sqlx.DB) *Repositories {
	return &Repositories{
		Sessions:    NewSessionRepository(db),
		Refinements: NewRefinementRepository(db),
		Usage:       NewUsageRepository(db),
		Events:      NewEventRepository(db),
		Reports:     NewReportRepository(db),
	}
}
