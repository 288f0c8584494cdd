// Package mock provides a deterministic in-process research provider.
package mock

import (
	"context"
	"fmt"
	"sync"

	"github.com/k429wang/AI-Deep-Research-Assistant/internal/models"
	"github.com/k429wang/AI-Deep-Research-Assistant/internal/providers"
)

// DefaultQuestions are asked whenever refinement is allowed.
var DefaultQuestions = []string{
	"What is the intended audience for this research?",
	"Which time period or region should the research focus on?",
	"Are there sources or viewpoints that should be prioritized or excluded?",
}

// Provider answers research calls without any network traffic
type Provider struct {
	name      models.Provider
	questions []string
	err       error

	mu    sync.Mutex
	calls []providers.ResearchRequest
}

// Option configures a mock provider
type Option func(*Provider)

// WithQuestions overrides the clarification questions; none disables refinement.
func WithQuestions(questions ...string) Option {
	return func(p *Provider) { p.questions = questions }
}

// WithError makes every call fail with err.
func WithError(err error) Option {
	return func(p *Provider) { p.err = err }
}

// NewProvider creates a mock billed as name
func NewProvider(name models.Provider, opts ...Option) *Provider {
	p := &Provider{name: name, questions: DefaultQuestions}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Name returns the provider name
func (p *Provider) Name() models.Provider {
	return p.name
}

// Research returns the configured questions when refinement is allowed and a
// canned report otherwise
func (p *Provider) Research(ctx context.Context, req providers.ResearchRequest) (*providers.ResearchResponse, error) {
	p.mu.Lock()
	p.calls = append(p.calls, req)
	p.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, providers.NewProviderError(p.name, providers.ReasonUnknown, err)
	}
	if p.err != nil {
		return nil, p.err
	}

	if req.AllowRefinement && len(p.questions) > 0 {
		questions := make([]providers.RefinementQuestion, len(p.questions))
		for i, q := range p.questions {
			questions[i] = providers.RefinementQuestion{Question: q, Index: i}
		}
		return &providers.ResearchResponse{RequiresRefinement: true, Questions: questions}, nil
	}

	return &providers.ResearchResponse{Result: Result(p.name, req.Prompt)}, nil
}

// Calls returns a copy of every request received so far.
func (p *Provider) Calls() []providers.ResearchRequest {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]providers.ResearchRequest(nil), p.calls...)
}

// Result is the canned report text returned for prompt.
func Result(name models.Provider, prompt string) string {
	return fmt.Sprintf("# %s research\n\nFindings for: %s", providers.DisplayName(name), prompt)
}
