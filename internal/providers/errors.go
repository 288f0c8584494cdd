package providers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/k429wang/AI-Deep-Research-Assistant/internal/models"
)

// Reason is the machine-readable cause of a provider failure
type Reason string

const (
	ReasonRateLimited        Reason = "rate_limited"
	ReasonInvalidCredentials Reason = "invalid_credentials"
	ReasonQuotaExceeded      Reason = "quota_exceeded"
	ReasonUnknown            Reason = "unknown"
)

// ProviderError wraps an upstream failure with a classified reason
type ProviderError struct {
	Provider models.Provider
	Reason   Reason
	Message  string
	Err      error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("%s request failed: %s", DisplayName(e.Provider), e.Message)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// NewProviderError builds a ProviderError with a user-facing message for reason.
func NewProviderError(provider models.Provider, reason Reason, err error) *ProviderError {
	return &ProviderError{
		Provider: provider,
		Reason:   reason,
		Message:  reasonMessage(reason, err),
		Err:      err,
	}
}

// ReasonOf extracts the failure reason from err, or ReasonUnknown.
func ReasonOf(err error) Reason {
	var perr *ProviderError
	if errors.As(err, &perr) {
		return perr.Reason
	}
	return ReasonUnknown
}

// ClassifyStatus maps an upstream HTTP status and error text to a reason.
func ClassifyStatus(status int, detail string) Reason {
	lower := strings.ToLower(detail)
	switch {
	case status == http.StatusPaymentRequired,
		strings.Contains(lower, "insufficient_quota"),
		strings.Contains(lower, "billing"):
		return ReasonQuotaExceeded
	case status == http.StatusTooManyRequests:
		if strings.Contains(lower, "quota") {
			return ReasonQuotaExceeded
		}
		return ReasonRateLimited
	case status == http.StatusUnauthorized, status == http.StatusForbidden,
		strings.Contains(lower, "invalid_api_key"), strings.Contains(lower, "api key not valid"):
		return ReasonInvalidCredentials
	default:
		return ReasonUnknown
	}
}

// DisplayName is the human-readable provider name used in messages.
func DisplayName(p models.Provider) string {
	switch p {
	case models.ProviderOpenAI:
		return "OpenAI"
	case models.ProviderGemini:
		return "Gemini"
	default:
		return string(p)
	}
}

func reasonMessage(reason Reason, err error) string {
	switch reason {
	case ReasonRateLimited:
		return "rate limit exceeded, please try again later"
	case ReasonInvalidCredentials:
		return "invalid API credentials"
	case ReasonQuotaExceeded:
		return "quota or billing limit exhausted"
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return "request timed out"
	}
	if errors.Is(err, ErrCircuitOpen) {
		return "temporarily unavailable after repeated failures"
	}
	if err != nil {
		return err.Error()
	}
	return "unknown error"
}
