package services

import (
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/k429wang/AI-Deep-Research-Assistant/internal/audit"
	"github.com/k429wang/AI-Deep-Research-Assistant/internal/config"
	"github.com/k429wang/AI-Deep-Research-Assistant/internal/delivery"
	"github.com/k429wang/AI-Deep-Research-Assistant/internal/providers"
	"github.com/k429wang/AI-Deep-Research-Assistant/internal/report"
	"github.com/k429wang/AI-Deep-Research-Assistant/internal/repository/postgres"
)

// Services holds all service instances
type Services struct {
	Research *ResearchOrchestrator
	Usage    *UsageGuard
	Audit    *audit.Service
}

// NewServices wires every service over the PostgreSQL repositories
func NewServices(
	cfg *config.Config,
	repos *postgres.Repositories,
	registry *providers.Registry,
	deliverer delivery.Deliverer,
	logger *logrus.Logger,
) (*Services, error) {
	loc, err := time.LoadLocation(cfg.Usage.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid usage timezone: %w", err)
	}

	usage := NewUsageGuard(repos.Usage, NewUsageLimits(cfg.Usage), logger, WithLocation(loc))
	auditService := audit.NewService(repos.Events, logger)

	research, err := NewResearchOrchestrator(ResearchDeps{
		Sessions:    repos.Sessions,
		Refinements: repos.Refinements,
		Reports:     repos.Reports,
		Providers:   registry,
		Usage:       usage,
		Generator:   report.NewGenerator(""),
		Deliverer:   deliverer,
		Events:      auditService,
		Logger:      logger,
		Timeout:     cfg.Providers.Timeout,
		Async:       cfg.Research.Async,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create research orchestrator: %w", err)
	}

	return &Services{
		Research: research,
		Usage:    usage,
		Audit:    auditService,
	}, nil
}
