package providers

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/k429wang/AI-Deep-Research-Assistant/internal/models"
)

type scriptedProvider struct {
	errs  []error
	calls int
}

func (s *scriptedProvider) Name() models.Provider { return models.ProviderOpenAI }

func (s *scriptedProvider) Research(context.Context, ResearchRequest) (*ResearchResponse, error) {
	s.calls++
	if len(s.errs) == 0 {
		return &ResearchResponse{Result: "ok"}, nil
	}
	err := s.errs[0]
	s.errs = s.errs[1:]
	if err != nil {
		return nil, err
	}
	return &ResearchResponse{Result: "ok"}, nil
}

func TestBreaker_OpensAfterThresholdAndRecovers(t *testing.T) {
	upstream := NewProviderError(models.ProviderOpenAI, ReasonRateLimited, nil)
	inner := &scriptedProvider{errs: []error{upstream, upstream}}
	now := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)

	b := NewBreaker(inner, BreakerConfig{FailureThreshold: 2, Cooldown: time.Minute})
	b.now = func() time.Time { return now }

	for i := 0; i < 2; i++ {
		_, err := b.Research(context.Background(), ResearchRequest{Prompt: "x"})
		require.Error(t, err)
	}
	assert.Equal(t, StateOpen, b.State())

	_, err := b.Research(context.Background(), ResearchRequest{Prompt: "x"})
	require.ErrorIs(t, err, ErrCircuitOpen)
	assert.Equal(t, "OpenAI request failed: temporarily unavailable after repeated failures", err.Error())
	assert.Equal(t, 2, inner.calls, "open breaker does not call upstream")

	now = now.Add(2 * time.Minute)
	assert.Equal(t, StateHalfOpen, b.State())

	resp, err := b.Research(context.Background(), ResearchRequest{Prompt: "x"})
	require.NoError(t, err)
	assert.Equal(t, "ok", resp.Result)
	assert.Equal(t, StateClosed, b.State())
}

func TestBreaker_IgnoresCredentialErrors(t *testing.T) {
	creds := NewProviderError(models.ProviderOpenAI, ReasonInvalidCredentials, errors.New("401"))
	inner := &scriptedProvider{errs: []error{creds, creds, creds}}

	b := NewBreaker(inner, BreakerConfig{FailureThreshold: 2})
	for i := 0; i < 3; i++ {
		_, err := b.Research(context.Background(), ResearchRequest{})
		assert.Equal(t, ReasonInvalidCredentials, ReasonOf(err))
	}
	assert.Equal(t, StateClosed, b.State())
}

func TestBreaker_SuccessResetsFailures(t *testing.T) {
	upstream := NewProviderError(models.ProviderOpenAI, ReasonUnknown, errors.New("502"))
	inner := &scriptedProvider{errs: []error{upstream, nil, upstream}}

	b := NewBreaker(inner, BreakerConfig{FailureThreshold: 2})
	for i := 0; i < 3; i++ {
		_, _ = b.Research(context.Background(), ResearchRequest{})
	}
	assert.Equal(t, StateClosed, b.State())
}

func TestBreaker_DisabledPassesThrough(t *testing.T) {
	upstream := NewProviderError(models.ProviderOpenAI, ReasonUnknown, errors.New("502"))
	inner := &scriptedProvider{errs: []error{upstream, upstream, upstream}}

	b := NewBreaker(inner, BreakerConfig{})
	for i := 0; i < 3; i++ {
		_, err := b.Research(context.Background(), ResearchRequest{})
		assert.Error(t, err)
	}
	assert.Equal(t, 3, inner.calls)
}
