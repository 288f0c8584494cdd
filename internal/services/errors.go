package services

import "errors"

var (
	ErrSessionNotFound    = errors.New("session not found")
	ErrRefinementNotFound = errors.New("refinement not found")
	ErrReportNotFound     = errors.New("report not found")
	ErrValidation         = errors.New("invalid request")
	ErrInvalidState       = errors.New("session is not in a state that allows this operation")
	ErrUsageDenied        = errors.New("usage limit reached")
)

// Placeholder stored as a provider's result when its research call fails.
const ResearchFailedPlaceholder = "Research failed"
