package providers

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/k429wang/AI-Deep-Research-Assistant/internal/models"
)

// BreakerState represents the circuit breaker state
type BreakerState int

const (
	StateClosed BreakerState = iota
	StateOpen
	StateHalfOpen
)

func (s BreakerState) String() string {
	switch s {
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half_open"
	}
	return "closed"
}

// ErrCircuitOpen is wrapped by calls rejected while the breaker is open
var ErrCircuitOpen = errors.New("circuit breaker is open")

// BreakerConfig configures a Breaker. A zero FailureThreshold disables it.
type BreakerConfig struct {
	FailureThreshold int
	SuccessThreshold int
	Cooldown         time.Duration
}

// Breaker wraps a provider and stops calling it after consecutive upstream
// failures until the cooldown passes. Invalid credentials are not counted;
// they fail every call anyway.
type Breaker struct {
	inner Provider
	cfg   BreakerConfig
	now   func() time.Time

	mu          sync.Mutex
	state       BreakerState
	failures    int
	successes   int
	lastFailure time.Time
}

// NewBreaker wraps inner with a circuit breaker
func NewBreaker(inner Provider, cfg BreakerConfig) *Breaker {
	if cfg.SuccessThreshold <= 0 {
		cfg.SuccessThreshold = 1
	}
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = 30 * time.Second
	}
	return &Breaker{inner: inner, cfg: cfg, now: time.Now}
}

// Name returns the wrapped provider's name
func (b *Breaker) Name() models.Provider {
	return b.inner.Name()
}

// Research calls the wrapped provider unless the breaker is open
func (b *Breaker) Research(ctx context.Context, req ResearchRequest) (*ResearchResponse, error) {
	if b.cfg.FailureThreshold <= 0 {
		return b.inner.Research(ctx, req)
	}
	if b.State() == StateOpen {
		return nil, NewProviderError(b.Name(), ReasonUnknown, ErrCircuitOpen)
	}

	resp, err := b.inner.Research(ctx, req)
	switch {
	case err == nil:
		b.recordSuccess()
	case ReasonOf(err) == ReasonInvalidCredentials, errors.Is(err, context.Canceled):
	default:
		b.recordFailure()
	}
	return resp, err
}

// State returns the current state, moving an expired open breaker to half-open
func (b *Breaker) State() BreakerState {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state == StateOpen && b.now().Sub(b.lastFailure) > b.cfg.Cooldown {
		b.state = StateHalfOpen
		b.failures = 0
		b.successes = 0
	}
	return b.state
}

func (b *Breaker) recordFailure() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.failures++
	b.lastFailure = b.now()

	switch b.state {
	case StateClosed:
		if b.failures >= b.cfg.FailureThreshold {
			b.state = StateOpen
		}
	case StateHalfOpen:
		b.state = StateOpen
	}
}

func (b *Breaker) recordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.successes++

	switch b.state {
	case StateClosed:
		b.failures = 0
	case StateHalfOpen:
		if b.successes >= b.cfg.SuccessThreshold {
			b.state = StateClosed
			b.failures = 0
			b.successes = 0
		}
	}
}
