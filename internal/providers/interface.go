package providers

import (
	"context"

	"github.com/k429wang/AI-Deep-Research-Assistant/internal/models"
)

// Provider defines the contract shared by every research provider
type Provider interface {
	// Name returns the metered provider this client is billed against
	Name() models.Provider

	// Research runs one deep-research call. When AllowRefinement is set the
	// provider may answer with clarification questions instead of a result.
	Research(ctx context.Context, req ResearchRequest) (*ResearchResponse, error)
}

// ResearchRequest is the input to a research call
type ResearchRequest struct {
	Prompt          string `json:"prompt"`
	AllowRefinement bool   `json:"allow_refinement"`
}

// RefinementQuestion is one clarification question proposed by a provider
type RefinementQuestion struct {
	Question string `json:"question"`
	Index    int    `json:"index"`
}

// ResearchResponse is either a set of clarification questions or a final result
type ResearchResponse struct {
	RequiresRefinement bool                 `json:"requires_refinement"`
	Questions          []RefinementQuestion `json:"questions,omitempty"`
	Result             string               `json:"result,omitempty"`
}
