package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/k429wang/AI-Deep-Research-Assistant/internal/audit"
	"github.com/k429wang/AI-Deep-Research-Assistant/internal/delivery"
	"github.com/k429wang/AI-Deep-Research-Assistant/internal/models"
	"github.com/k429wang/AI-Deep-Research-Assistant/internal/providers"
	"github.com/k429wang/AI-Deep-Research-Assistant/internal/report"
	"github.com/k429wang/AI-Deep-Research-Assistant/internal/repository"
	"github.com/k429wang/AI-Deep-Research-Assistant/internal/statemachine"
)

const (
	maxTitleLength  = 200
	maxPromptLength = 20000
	maxAnswerLength = 5000
)

// Identity is the authenticated caller as supplied by the identity provider
type Identity struct {
	UserID string
	Email  string
}

// ReportGenerator renders a report artifact
type ReportGenerator interface {
	Generate(in report.Input) ([]byte, error)
}

// EventRecorder receives session lifecycle events
type EventRecorder interface {
	Record(ctx context.Context, session *models.Session, eventType audit.EventType, message string, metadata map[string]interface{})
	StatusChanged(ctx context.Context, session *models.Session, from, to models.SessionStatus, message string)
	SessionEvents(ctx context.Context, sessionID, userID string) ([]models.SessionEvent, error)
}

// ResearchDeps are the collaborators of the orchestrator
type ResearchDeps struct {
	Sessions    repository.SessionRepository
	Refinements repository.RefinementRepository
	Reports     repository.ReportRepository
	Providers   *providers.Registry
	Usage       UsageChecker
	Generator   ReportGenerator
	Deliverer   delivery.Deliverer
	Events      EventRecorder
	Logger      *logrus.Logger

	// Timeout bounds every provider call; expiry counts as a provider failure.
	Timeout time.Duration
	// Async runs the research fan-out in the background after the
	// RUNNING_RESEARCH transition has been persisted.
	Async bool
	Now   func() time.Time
}

// ResearchOrchestrator drives research sessions through their lifecycle. It is
// the only component that changes a session's status.
type ResearchOrchestrator struct {
	sessions    repository.SessionRepository
	refinements repository.RefinementRepository
	reports     repository.ReportRepository
	providers   *providers.Registry
	usage       UsageChecker
	generator   ReportGenerator
	deliverer   delivery.Deliverer
	events      EventRecorder
	logger      *logrus.Logger
	timeout     time.Duration
	async       bool
	now         func() time.Time

	background sync.WaitGroup
}

// NewResearchOrchestrator creates the orchestrator
func NewResearchOrchestrator(deps ResearchDeps) (*ResearchOrchestrator, error) {
	if deps.Sessions == nil || deps.Refinements == nil || deps.Reports == nil {
		return nil, errors.New("session, refinement and report repositories are required")
	}
	if deps.Providers == nil {
		return nil, errors.New("provider registry is required")
	}
	if err := deps.Providers.Validate(); err != nil {
		return nil, err
	}
	if deps.Usage == nil || deps.Generator == nil || deps.Events == nil {
		return nil, errors.New("usage guard, report generator and event recorder are required")
	}
	if deps.Deliverer == nil {
		deps.Deliverer = delivery.NoopDeliverer{}
	}
	if deps.Logger == nil {
		deps.Logger = logrus.StandardLogger()
	}
	if deps.Timeout <= 0 {
		deps.Timeout = 10 * time.Minute
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}

	return &ResearchOrchestrator{
		sessions:    deps.Sessions,
		refinements: deps.Refinements,
		reports:     deps.Reports,
		providers:   deps.Providers,
		usage:       deps.Usage,
		generator:   deps.Generator,
		deliverer:   deps.Deliverer,
		events:      deps.Events,
		logger:      deps.Logger,
		timeout:     deps.Timeout,
		async:       deps.Async,
		now:         deps.Now,
	}, nil
}

// StartSession creates a session and makes the initial provider call. When
// the session fails, the FAILED session is returned together with the error.
func (o *ResearchOrchestrator) StartSession(ctx context.Context, user Identity, title, prompt string) (*models.Session, error) {
	title = strings.TrimSpace(title)
	prompt = strings.TrimSpace(prompt)
	if err := validateSessionInput(user, title, prompt); err != nil {
		return nil, err
	}

	session := &models.Session{
		UserID:        user.UserID,
		Title:         title,
		InitialPrompt: prompt,
		Status:        models.StatusCreated,
	}
	if err := o.sessions.Create(ctx, session); err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}
	o.events.Record(ctx, session, audit.EventSessionCreated, "Session created", nil)

	log := o.logger.WithFields(logrus.Fields{
		"session_id": session.ID,
		"user_id":    user.UserID,
	})
	log.Info("Starting research session")

	primary := models.ProviderOpenAI
	if decision := o.usage.CanMakeRequest(ctx, user.UserID, primary); !decision.Allowed {
		o.fail(ctx, session, decision.Reason)
		return session, fmt.Errorf("%w: %s", ErrUsageDenied, decision.Reason)
	}

	provider, err := o.providers.Get(primary)
	if err != nil {
		o.fail(ctx, session, err.Error())
		return session, err
	}

	callCtx, cancel := context.WithTimeout(ctx, o.timeout)
	resp, err := provider.Research(callCtx, providers.ResearchRequest{Prompt: prompt, AllowRefinement: true})
	cancel()
	if err == nil && resp == nil {
		err = providers.NewProviderError(primary, providers.ReasonUnknown, providers.ErrEmptyResult)
	}
	if err != nil {
		log.WithError(err).Warn("Initial research call failed")
		o.fail(ctx, session, err.Error())
		return session, err
	}
	o.usage.RecordRequest(ctx, user.UserID, primary)

	if resp.RequiresRefinement && len(resp.Questions) > 0 {
		refinements := make([]models.Refinement, len(resp.Questions))
		for i, q := range resp.Questions {
			refinements[i] = models.Refinement{Question: q.Question, QuestionIndex: q.Index}
		}
		if err := o.sessions.CreateRefinementsAndAwait(ctx, session.ID, refinements); err != nil {
			o.fail(ctx, session, "Failed to store refinement questions")
			return session, fmt.Errorf("failed to store refinements: %w", err)
		}
		session.Refinements = refinements
		o.transitioned(ctx, session, models.StatusAwaitingRefinements,
			fmt.Sprintf("%d clarification questions asked", len(refinements)))
		o.events.Record(ctx, session, audit.EventRefinementAsked, "Clarification questions sent to the user",
			map[string]interface{}{"questions": len(refinements)})
		log.WithField("questions", len(refinements)).Info("Awaiting refinement answers")
		return o.reload(ctx, session)
	}

	if err := o.runResearch(ctx, user, session, prompt); err != nil {
		return session, err
	}
	return o.reload(ctx, session)
}

// SubmitRefinementAnswer records one answer and advances the session once
// every question is answered.
func (o *ResearchOrchestrator) SubmitRefinementAnswer(ctx context.Context, user Identity, sessionID string, index int, answer string) (*models.Session, error) {
	answer = strings.TrimSpace(answer)
	switch {
	case index < 0:
		return nil, fmt.Errorf("%w: question index must not be negative", ErrValidation)
	case answer == "":
		return nil, fmt.Errorf("%w: answer is required", ErrValidation)
	case len(answer) > maxAnswerLength:
		return nil, fmt.Errorf("%w: answer exceeds %d characters", ErrValidation, maxAnswerLength)
	}

	session, err := o.GetSession(ctx, user.UserID, sessionID)
	if err != nil {
		return nil, err
	}
	if session.Status != models.StatusAwaitingRefinements && session.Status != models.StatusRefinementsInProgress {
		return nil, fmt.Errorf("%w: session is %s", ErrInvalidState, session.Status)
	}
	if !hasRefinement(session.Refinements, index) {
		return nil, fmt.Errorf("%w: index %d", ErrRefinementNotFound, index)
	}

	if err := o.refinements.Answer(ctx, session.ID, index, answer, o.now()); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("%w: index %d", ErrRefinementNotFound, index)
		}
		return nil, fmt.Errorf("failed to record answer: %w", err)
	}
	o.events.Record(ctx, session, audit.EventRefinementReply, "Refinement answered",
		map[string]interface{}{"index": index})

	refinements, err := o.refinements.ListBySession(ctx, session.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to reload refinements: %w", err)
	}
	session.Refinements = refinements

	if session.Status == models.StatusAwaitingRefinements &&
		statemachine.CanTransition(session.Status, models.StatusRefinementsInProgress, session) {
		moved, err := o.sessions.UpdateStatus(ctx, session.ID,
			[]models.SessionStatus{models.StatusAwaitingRefinements}, models.StatusRefinementsInProgress)
		if err != nil {
			return nil, fmt.Errorf("failed to update session status: %w", err)
		}
		if moved {
			o.transitioned(ctx, session, models.StatusRefinementsInProgress, "Collecting refinement answers")
		} else {
			session.Status = models.StatusRefinementsInProgress
		}
	}

	if !statemachine.CanTransition(models.StatusRefinementsInProgress, models.StatusRefinementsComplete, session) {
		return o.reload(ctx, session)
	}

	refined := SynthesizeRefinedPrompt(session.InitialPrompt, session.Refinements)
	advanced, err := o.sessions.AdvanceToRefinementsComplete(ctx, session.ID, refined)
	if err != nil {
		return nil, fmt.Errorf("failed to complete refinements: %w", err)
	}
	if !advanced {
		// Another submission completed the set and owns the research run.
		return o.reload(ctx, session)
	}

	session.RefinedPrompt = &refined
	o.transitioned(ctx, session, models.StatusRefinementsComplete, "All refinement questions answered")

	if err := o.runResearch(ctx, user, session, refined); err != nil {
		return session, err
	}
	return o.reload(ctx, session)
}

// GetSession returns a session with its refinements if userID owns it
func (o *ResearchOrchestrator) GetSession(ctx context.Context, userID, sessionID string) (*models.Session, error) {
	session, err := o.sessions.GetForUser(ctx, sessionID, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("failed to load session: %w", err)
	}
	return session, nil
}

// ListSessions returns the user's sessions, newest first
func (o *ResearchOrchestrator) ListSessions(ctx context.Context, userID string) ([]models.Session, error) {
	sessions, err := o.sessions.ListForUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	return sessions, nil
}

// GetReport returns the generated PDF for a session owned by userID
func (o *ResearchOrchestrator) GetReport(ctx context.Context, userID, sessionID string) ([]byte, *models.Session, error) {
	session, err := o.GetSession(ctx, userID, sessionID)
	if err != nil {
		return nil, nil, err
	}
	if session.ReportKey == nil {
		return nil, session, ErrReportNotFound
	}

	content, err := o.reports.Get(ctx, *session.ReportKey)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, session, ErrReportNotFound
		}
		return nil, session, fmt.Errorf("failed to load report: %w", err)
	}
	return content, session, nil
}

// SessionEvents returns the event log of a session owned by userID
func (o *ResearchOrchestrator) SessionEvents(ctx context.Context, userID, sessionID string) ([]models.SessionEvent, error) {
	if _, err := o.GetSession(ctx, userID, sessionID); err != nil {
		return nil, err
	}
	return o.events.SessionEvents(ctx, sessionID, userID)
}

// Wait blocks until every background research run has finished
func (o *ResearchOrchestrator) Wait() {
	o.background.Wait()
}

// runResearch moves the session to RUNNING_RESEARCH, re-checks both quotas and
// executes the provider fan-out inline or in the background.
func (o *ResearchOrchestrator) runResearch(ctx context.Context, user Identity, session *models.Session, prompt string) error {
	from := session.Status
	if !statemachine.CanTransition(from, models.StatusRunningResearch, session) {
		err := fmt.Errorf("%w: cannot start research from %s", ErrInvalidState, from)
		o.fail(ctx, session, err.Error())
		return err
	}
	moved, err := o.sessions.BeginResearch(ctx, session.ID, from, prompt)
	if err != nil {
		o.fail(ctx, session, "Failed to start research")
		return fmt.Errorf("failed to update session status: %w", err)
	}
	if !moved {
		return fmt.Errorf("%w: session left %s concurrently", ErrInvalidState, from)
	}
	if session.RefinedPrompt == nil {
		session.RefinedPrompt = &prompt
	}
	o.transitioned(ctx, session, models.StatusRunningResearch, "Research started")

	var reasons []string
	for _, name := range models.Providers {
		if decision := o.usage.CanMakeRequest(ctx, user.UserID, name); !decision.Allowed {
			reasons = append(reasons, decision.Reason)
		}
	}
	if len(reasons) > 0 {
		reason := strings.Join(reasons, " ")
		o.fail(ctx, session, reason)
		return fmt.Errorf("%w: %s", ErrUsageDenied, reason)
	}

	if !o.async {
		return o.execute(ctx, user, session, prompt)
	}

	bg := context.WithoutCancel(ctx)
	snapshot := *session
	o.background.Add(1)
	go func() {
		defer o.background.Done()
		if err := o.execute(bg, user, &snapshot, prompt); err != nil {
			o.logger.WithError(err).WithField("session_id", snapshot.ID).Error("Background research failed")
		}
	}()
	return nil
}

// execute runs both providers, stores the results and produces the report.
func (o *ResearchOrchestrator) execute(ctx context.Context, user Identity, session *models.Session, prompt string) error {
	results := make([]string, len(models.Providers))

	var g errgroup.Group
	for i, name := range models.Providers {
		g.Go(func() error {
			results[i] = o.researchWith(ctx, user.UserID, session, name, prompt)
			return nil
		})
	}
	_ = g.Wait()

	// models.Providers is ordered openai, gemini.
	openaiResult, geminiResult := results[0], results[1]
	if err := o.sessions.SetResults(ctx, session.ID, openaiResult, geminiResult); err != nil {
		o.fail(ctx, session, "Failed to store research results")
		return fmt.Errorf("failed to store results: %w", err)
	}
	session.OpenAIResult = &openaiResult
	session.GeminiResult = &geminiResult
	o.transitioned(ctx, session, models.StatusCompleted, "Research completed")

	o.produceReport(ctx, user, session)
	return nil
}

// researchWith performs one branch of the fan-out. Failures never escape the
// branch; they become the placeholder result.
func (o *ResearchOrchestrator) researchWith(ctx context.Context, userID string, session *models.Session, name models.Provider, prompt string) string {
	log := o.logger.WithFields(logrus.Fields{
		"session_id": session.ID,
		"provider":   name,
	})

	provider, err := o.providers.Get(name)
	if err != nil {
		log.WithError(err).Error("Provider unavailable")
		return ResearchFailedPlaceholder
	}

	callCtx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()

	started := o.now()
	resp, err := provider.Research(callCtx, providers.ResearchRequest{Prompt: prompt})
	if err == nil && (resp == nil || resp.RequiresRefinement || strings.TrimSpace(resp.Result) == "") {
		err = providers.NewProviderError(name, providers.ReasonUnknown, providers.ErrEmptyResult)
	}
	if err != nil {
		log.WithError(err).WithField("reason", providers.ReasonOf(err)).Warn("Research provider failed")
		o.events.Record(ctx, session, audit.EventProviderFailed, err.Error(), map[string]interface{}{
			"provider": string(name),
			"reason":   string(providers.ReasonOf(err)),
		})
		return ResearchFailedPlaceholder
	}

	o.usage.RecordRequest(ctx, userID, name)
	log.WithField("duration", o.now().Sub(started).String()).Info("Research provider finished")
	return resp.Result
}

// produceReport generates, stores and delivers the report. Nothing here
// changes the session status.
func (o *ResearchOrchestrator) produceReport(ctx context.Context, user Identity, session *models.Session) {
	log := o.logger.WithField("session_id", session.ID)

	pdf, err := o.generator.Generate(report.InputFromSession(session))
	if err != nil {
		log.WithError(err).Error("Failed to generate report")
		o.events.Record(ctx, session, audit.EventReportFailed, err.Error(), nil)
		return
	}

	key, err := o.reports.Save(ctx, session.ID, pdf)
	if err != nil {
		log.WithError(err).Error("Failed to store report")
		o.events.Record(ctx, session, audit.EventReportFailed, err.Error(), nil)
		return
	}
	generatedAt := o.now()
	if err := o.sessions.SetReport(ctx, session.ID, key, generatedAt); err != nil {
		log.WithError(err).Error("Failed to record report")
		return
	}
	session.ReportKey = &key
	session.ReportGeneratedAt = &generatedAt
	o.events.Record(ctx, session, audit.EventReportGenerated, "Report generated",
		map[string]interface{}{"bytes": len(pdf)})

	if strings.TrimSpace(user.Email) == "" {
		return
	}
	if err := o.deliverer.Deliver(ctx, user.Email, pdf, session.Title, session.ID); err != nil {
		log.WithError(err).Warn("Failed to deliver report")
		o.events.Record(ctx, session, audit.EventDeliveryFailed, err.Error(), nil)
		return
	}

	deliveredAt := o.now()
	if err := o.sessions.SetDelivered(ctx, session.ID, deliveredAt); err != nil {
		log.WithError(err).Warn("Failed to record delivery")
		return
	}
	session.DeliveredAt = &deliveredAt
	o.events.Record(ctx, session, audit.EventDelivered, "Report delivered",
		map[string]interface{}{"to": user.Email})
}

// fail marks the session FAILED. It is persisted even if ctx was cancelled.
func (o *ResearchOrchestrator) fail(ctx context.Context, session *models.Session, message string) {
	ctx = context.WithoutCancel(ctx)
	from := session.Status

	if err := o.sessions.SetFailed(ctx, session.ID, message); err != nil {
		o.logger.WithError(err).WithField("session_id", session.ID).Error("Failed to mark session failed")
		return
	}
	session.Status = models.StatusFailed
	session.ErrorMessage = &message
	o.events.StatusChanged(ctx, session, from, models.StatusFailed, message)

	o.logger.WithFields(logrus.Fields{
		"session_id": session.ID,
		"user_id":    session.UserID,
		"from":       from,
	}).Warn("Research session failed: " + message)
}

func (o *ResearchOrchestrator) transitioned(ctx context.Context, session *models.Session, to models.SessionStatus, message string) {
	from := session.Status
	session.Status = to
	o.events.StatusChanged(ctx, session, from, to, message)
}

// reload returns the stored view of the session, falling back to the
// in-memory one if the read fails.
func (o *ResearchOrchestrator) reload(ctx context.Context, session *models.Session) (*models.Session, error) {
	fresh, err := o.sessions.GetForUser(ctx, session.ID, session.UserID)
	if err != nil {
		o.logger.WithError(err).WithField("session_id", session.ID).Warn("Failed to reload session")
		return session, nil
	}
	return fresh, nil
}

func validateSessionInput(user Identity, title, prompt string) error {
	switch {
	case strings.TrimSpace(user.UserID) == "":
		return fmt.Errorf("%w: user id is required", ErrValidation)
	case title == "":
		return fmt.Errorf("%w: title is required", ErrValidation)
	case len(title) > maxTitleLength:
		return fmt.Errorf("%w: title exceeds %d characters", ErrValidation, maxTitleLength)
	case prompt == "":
		return fmt.Errorf("%w: prompt is required", ErrValidation)
	case len(prompt) > maxPromptLength:
		return fmt.Errorf("%w: prompt exceeds %d characters", ErrValidation, maxPromptLength)
	}
	return nil
}

func hasRefinement(refinements []models.Refinement, index int) bool {
	for _, r := range refinements {
		if r.QuestionIndex == index {
			return true
		}
	}
	return false
}
