package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/k429wang/AI-Deep-Research-Assistant/internal/audit"
	"github.com/k429wang/AI-Deep-Research-Assistant/internal/models"
	"github.com/k429wang/AI-Deep-Research-Assistant/internal/report"
	"github.com/k429wang/AI-Deep-Research-Assistant/internal/repository"
)

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

// memoryStore implements the session, refinement and report repositories
// with the same conditional-update semantics as the SQL implementation.
type memoryStore struct {
	mu          sync.Mutex
	sessions    map[string]*models.Session
	refinements map[string][]models.Refinement
	reports     map[string][]byte
	history     map[string][]models.SessionStatus
}

func newMemoryStore() *memoryStore {
	return &memoryStore{
		sessions:    map[string]*models.Session{},
		refinements: map[string][]models.Refinement{},
		reports:     map[string][]byte{},
		history:     map[string][]models.SessionStatus{},
	}
}

func (m *memoryStore) setStatus(s *models.Session, status models.SessionStatus) {
	s.Status = status
	s.UpdatedAt = time.Now()
	m.history[s.ID] = append(m.history[s.ID], status)
}

func (m *memoryStore) statusHistory(id string) []models.SessionStatus {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]models.SessionStatus(nil), m.history[id]...)
}

func (m *memoryStore) refinementCount(id string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.refinements[id])
}

func (m *memoryStore) Create(_ context.Context, session *models.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	session.ID = uuid.NewString()
	session.CreatedAt = time.Now()
	session.UpdatedAt = session.CreatedAt
	copied := *session
	m.sessions[session.ID] = &copied
	m.history[session.ID] = []models.SessionStatus{session.Status}
	return nil
}

func (m *memoryStore) GetForUser(_ context.Context, id, userID string) (*models.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok || s.UserID != userID {
		return nil, repository.ErrNotFound
	}
	copied := *s
	copied.Refinements = append([]models.Refinement{}, m.refinements[id]...)
	return &copied, nil
}

func (m *memoryStore) ListForUser(_ context.Context, userID string) ([]models.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []models.Session{}
	for _, s := range m.sessions {
		if s.UserID == userID {
			out = append(out, *s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (m *memoryStore) UpdateStatus(_ context.Context, id string, from []models.SessionStatus, to models.SessionStatus) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		return false, nil
	}
	for _, f := range from {
		if s.Status == f {
			m.setStatus(s, to)
			return true, nil
		}
	}
	return false, nil
}

func (m *memoryStore) BeginResearch(_ context.Context, id string, from models.SessionStatus, prompt string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok || s.Status != from {
		return false, nil
	}
	if s.RefinedPrompt == nil {
		p := prompt
		s.RefinedPrompt = &p
	}
	m.setStatus(s, models.StatusRunningResearch)
	return true, nil
}

func (m *memoryStore) SetFailed(_ context.Context, id, message string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		return repository.ErrNotFound
	}
	s.ErrorMessage = &message
	m.setStatus(s, models.StatusFailed)
	return nil
}

func (m *memoryStore) SetResults(_ context.Context, id, openaiResult, geminiResult string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok || s.Status != models.StatusRunningResearch {
		return repository.ErrNotFound
	}
	s.OpenAIResult = &openaiResult
	s.GeminiResult = &geminiResult
	m.setStatus(s, models.StatusCompleted)
	return nil
}

func (m *memoryStore) SetReport(_ context.Context, id, key string, generatedAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		return repository.ErrNotFound
	}
	s.ReportKey = &key
	s.ReportGeneratedAt = &generatedAt
	return nil
}

func (m *memoryStore) SetDelivered(_ context.Context, id string, deliveredAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		return repository.ErrNotFound
	}
	s.DeliveredAt = &deliveredAt
	return nil
}

func (m *memoryStore) CreateRefinementsAndAwait(_ context.Context, sessionID string, refinements []models.Refinement) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[sessionID]
	if !ok || s.Status != models.StatusCreated {
		return repository.ErrNotFound
	}
	seen := map[int]bool{}
	batch := make([]models.Refinement, len(refinements))
	for i, r := range refinements {
		if seen[r.QuestionIndex] {
			return repository.ErrConflict
		}
		seen[r.QuestionIndex] = true
		r.ID = uuid.NewString()
		r.SessionID = sessionID
		r.CreatedAt = time.Now()
		batch[i] = r
	}
	sort.Slice(batch, func(i, j int) bool { return batch[i].QuestionIndex < batch[j].QuestionIndex })
	m.refinements[sessionID] = batch
	m.setStatus(s, models.StatusAwaitingRefinements)
	return nil
}

func (m *memoryStore) AdvanceToRefinementsComplete(_ context.Context, sessionID, refinedPrompt string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[sessionID]
	if !ok {
		return false, nil
	}
	if s.Status != models.StatusAwaitingRefinements && s.Status != models.StatusRefinementsInProgress {
		return false, nil
	}
	refs := m.refinements[sessionID]
	if len(refs) == 0 {
		return false, nil
	}
	for _, r := range refs {
		if !r.Answered() {
			return false, nil
		}
	}
	s.RefinedPrompt = &refinedPrompt
	m.setStatus(s, models.StatusRefinementsComplete)
	return true, nil
}

func (m *memoryStore) ListBySession(_ context.Context, sessionID string) ([]models.Refinement, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]models.Refinement{}, m.refinements[sessionID]...), nil
}

func (m *memoryStore) Answer(_ context.Context, sessionID string, index int, answer string, answeredAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	refs := m.refinements[sessionID]
	for i := range refs {
		if refs[i].QuestionIndex == index {
			a, at := answer, answeredAt
			refs[i].Answer = &a
			refs[i].AnsweredAt = &at
			return nil
		}
	}
	return repository.ErrNotFound
}

// reportStore stores reports inside a memoryStore and can be made to fail.
type reportStore struct {
	store *memoryStore
	err   error
}

func (r reportStore) Save(_ context.Context, sessionID string, content []byte) (string, error) {
	if r.err != nil {
		return "", r.err
	}
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	key := "reports/" + sessionID + ".pdf"
	r.store.reports[key] = content
	return key, nil
}

func (r reportStore) Get(_ context.Context, key string) ([]byte, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	content, ok := r.store.reports[key]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return content, nil
}

// memoryUsage implements repository.UsageRepository
type memoryUsage struct {
	mu      sync.Mutex
	records map[string]*models.UsageRecord
	err     error
	// failResets fails that many ResetPeriods calls before succeeding.
	failResets int
}

func newMemoryUsage() *memoryUsage {
	return &memoryUsage{records: map[string]*models.UsageRecord{}}
}

func (m *memoryUsage) put(record models.UsageRecord) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records[record.UserID] = &record
}

func (m *memoryUsage) record(userID string) models.UsageRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	if r, ok := m.records[userID]; ok {
		return *r
	}
	return models.UsageRecord{}
}

func (m *memoryUsage) Get(_ context.Context, userID string) (*models.UsageRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	r, ok := m.records[userID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	copied := *r
	return &copied, nil
}

func (m *memoryUsage) Create(_ context.Context, record *models.UsageRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.records[record.UserID]; !ok {
		copied := *record
		m.records[record.UserID] = &copied
	}
	return nil
}

func (m *memoryUsage) ResetPeriods(_ context.Context, userID string, today time.Time, monthly bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failResets > 0 {
		m.failResets--
		return errors.New("reset failed")
	}
	if r, ok := m.records[userID]; ok {
		r.OpenAIToday, r.GeminiToday, r.LastResetDate = 0, 0, today
		if monthly {
			r.OpenAIMonth, r.GeminiMonth = 0, 0
		}
	}
	return nil
}

func (m *memoryUsage) Increment(_ context.Context, userID string, provider models.Provider, today time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	r, ok := m.records[userID]
	if !ok {
		r = &models.UsageRecord{UserID: userID, LastResetDate: today}
		m.records[userID] = r
	}
	if last := calendarDate(r.LastResetDate); today.After(last) {
		r.OpenAIToday, r.GeminiToday = 0, 0
		if monthStart(today).After(monthStart(last)) {
			r.OpenAIMonth, r.GeminiMonth = 0, 0
		}
		r.LastResetDate = today
	}
	switch provider {
	case models.ProviderOpenAI:
		r.OpenAIToday++
		r.OpenAIMonth++
	case models.ProviderGemini:
		r.GeminiToday++
		r.GeminiMonth++
	default:
		return fmt.Errorf("unknown provider %q", provider)
	}
	return nil
}

func (m *memoryUsage) SumToday(_ context.Context, provider models.Provider, today time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return 0, m.err
	}
	total := 0
	for _, r := range m.records {
		if calendarDate(r.LastResetDate).Equal(today) {
			total += r.Today(provider)
		}
	}
	return total, nil
}

// memoryEvents implements repository.EventRepository
type memoryEvents struct {
	mu     sync.Mutex
	events []models.SessionEvent
}

func (m *memoryEvents) Log(_ context.Context, event *models.SessionEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, *event)
	return nil
}

func (m *memoryEvents) ListBySession(_ context.Context, sessionID, userID string) ([]models.SessionEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []models.SessionEvent{}
	for _, e := range m.events {
		if e.SessionID == sessionID && e.UserID == userID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (m *memoryEvents) ofType(eventType audit.EventType) []models.SessionEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.SessionEvent
	for _, e := range m.events {
		if e.EventType == string(eventType) {
			out = append(out, e)
		}
	}
	return out
}

// fixedUsage admits or denies per provider without storage.
type fixedUsage struct {
	mu       sync.Mutex
	denied   map[models.Provider]string
	recorded map[models.Provider]int
}

func newFixedUsage() *fixedUsage {
	return &fixedUsage{denied: map[models.Provider]string{}, recorded: map[models.Provider]int{}}
}

func (f *fixedUsage) CanMakeRequest(_ context.Context, _ string, provider models.Provider) Decision {
	f.mu.Lock()
	defer f.mu.Unlock()
	if reason, ok := f.denied[provider]; ok {
		return Decision{Reason: reason}
	}
	return Decision{Allowed: true}
}

func (f *fixedUsage) RecordRequest(_ context.Context, _ string, provider models.Provider) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.recorded[provider]++
}

func (f *fixedUsage) deny(provider models.Provider, reason string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.denied[provider] = reason
}

func (f *fixedUsage) count(provider models.Provider) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.recorded[provider]
}

type failingGenerator struct{}

func (failingGenerator) Generate(report.Input) ([]byte, error) {
	return nil, errors.New("font missing")
}

// recordingDeliverer captures deliveries and optionally fails them.
type recordingDeliverer struct {
	mu        sync.Mutex
	addresses []string
	err       error
}

func (r *recordingDeliverer) Deliver(_ context.Context, address string, pdf []byte, _, _ string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	if !strings.HasPrefix(string(pdf), "%PDF") {
		return errors.New("not a pdf")
	}
	r.addresses = append(r.addresses, address)
	return nil
}

func (r *recordingDeliverer) sent() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.addresses...)
}
