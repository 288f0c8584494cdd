package models

import (
	"strings"
	"time"
)

// SessionStatus is the lifecycle state of a research session.
type SessionStatus string

const (
	StatusCreated               SessionStatus = "CREATED"
	StatusAwaitingRefinements   SessionStatus = "AWAITING_REFINEMENTS"
	StatusRefinementsInProgress SessionStatus = "REFINEMENTS_IN_PROGRESS"
	StatusRefinementsComplete   SessionStatus = "REFINEMENTS_COMPLETE"
	StatusRunningResearch       SessionStatus = "RUNNING_RESEARCH"
	StatusCompleted             SessionStatus = "COMPLETED"
	StatusFailed                SessionStatus = "FAILED"
)

// AllStatuses lists every status in progression order, FAILED last.
var AllStatuses = []SessionStatus{
	StatusCreated,
	StatusAwaitingRefinements,
	StatusRefinementsInProgress,
	StatusRefinementsComplete,
	StatusRunningResearch,
	StatusCompleted,
	StatusFailed,
}

// Valid reports whether s is a known status.
func (s SessionStatus) Valid() bool {
	for _, known := range AllStatuses {
		if s == known {
			return true
		}
	}
	return false
}

// Session is one research request and everything accumulated for it.
type Session struct {
	ID                string        `json:"id" db:"id"`
	UserID            string        `json:"user_id" db:"user_id"`
	Title             string        `json:"title" db:"title"`
	InitialPrompt     string        `json:"initial_prompt" db:"initial_prompt"`
	RefinedPrompt     *string       `json:"refined_prompt,omitempty" db:"refined_prompt"`
	Status            SessionStatus `json:"status" db:"status"`
	OpenAIResult      *string       `json:"openai_result,omitempty" db:"openai_result"`
	GeminiResult      *string       `json:"gemini_result,omitempty" db:"gemini_result"`
	ReportKey         *string       `json:"report_key,omitempty" db:"report_key"`
	ReportGeneratedAt *time.Time    `json:"report_generated_at,omitempty" db:"report_generated_at"`
	DeliveredAt       *time.Time    `json:"delivered_at,omitempty" db:"delivered_at"`
	ErrorMessage      *string       `json:"error_message,omitempty" db:"error_message"`
	CreatedAt         time.Time     `json:"created_at" db:"created_at"`
	UpdatedAt         time.Time     `json:"updated_at" db:"updated_at"`

	Refinements []Refinement `json:"refinements" db:"-"`
}

// HasRefinedPrompt reports whether refinement synthesis has produced a prompt.
func (s *Session) HasRefinedPrompt() bool {
	return s.RefinedPrompt != nil && *s.RefinedPrompt != ""
}

// HasResults reports whether both provider results are present.
func (s *Session) HasResults() bool {
	return s.OpenAIResult != nil && s.GeminiResult != nil
}

// Refinement is one clarification question bound to a session.
type Refinement struct {
	ID            string     `json:"id" db:"id"`
	SessionID     string     `json:"session_id" db:"session_id"`
	Question      string     `json:"question" db:"question"`
	Answer        *string    `json:"answer,omitempty" db:"answer"`
	QuestionIndex int        `json:"index" db:"question_index"`
	AnsweredAt    *time.Time `json:"answered_at,omitempty" db:"answered_at"`
	CreatedAt     time.Time  `json:"created_at" db:"created_at"`
}

// Answered reports whether the refinement carries a non-blank answer.
func (r Refinement) Answered() bool {
	return r.Answer != nil && strings.TrimSpace(*r.Answer) != ""
}

// UsageRecord holds per-user call counters for both metered providers.
type UsageRecord struct {
	UserID        string    `json:"user_id" db:"user_id"`
	OpenAIToday   int       `json:"openai_today" db:"openai_today"`
	OpenAIMonth   int       `json:"openai_month" db:"openai_month"`
	GeminiToday   int       `json:"gemini_today" db:"gemini_today"`
	GeminiMonth   int       `json:"gemini_month" db:"gemini_month"`
	LastResetDate time.Time `json:"last_reset_date" db:"last_reset_date"`
	CreatedAt     time.Time `json:"created_at" db:"created_at"`
	UpdatedAt     time.Time `json:"updated_at" db:"updated_at"`
}

// Provider identifies one of the two metered research providers.
type Provider string

const (
	ProviderOpenAI Provider = "openai"
	ProviderGemini Provider = "gemini"
)

// Providers lists the metered providers in fan-out order.
var Providers = []Provider{ProviderOpenAI, ProviderGemini}

// Today returns the user's call count for p since the last daily reset.
func (u *UsageRecord) Today(p Provider) int {
	if p == ProviderGemini {
		return u.GeminiToday
	}
	return u.OpenAIToday
}

// Month returns the user's call count for p since the last monthly reset.
func (u *UsageRecord) Month(p Provider) int {
	if p == ProviderGemini {
		return u.GeminiMonth
	}
	return u.OpenAIMonth
}
