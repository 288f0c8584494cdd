package providers

import (
	"encoding/json"
	"errors"
	"sort"
	"strings"
)

// ErrEmptyResult is returned when a provider produced neither questions nor a result.
var ErrEmptyResult = errors.New("provider returned an empty result")

// ResearchInstructions is the system prompt asking a chat model for the
// structured research response parsed by ParseResearchContent.
func ResearchInstructions(allowRefinement bool) string {
	var b strings.Builder
	b.WriteString("You are a deep research assistant. Investigate the user's request thoroughly, ")
	b.WriteString("cite sources where possible and write the findings as a structured report.\n")
	b.WriteString("Respond with a single JSON object of the form ")
	b.WriteString(`{"requires_refinement": bool, "questions": [{"question": string, "index": int}], "result": string}.`)
	b.WriteString("\n")
	if allowRefinement {
		b.WriteString("If the request is ambiguous, set requires_refinement to true and ask up to five ")
		b.WriteString("clarifying questions indexed from 0 instead of writing the report.")
	} else {
		b.WriteString("Do not ask clarifying questions. Set requires_refinement to false and put the full report in result.")
	}
	return b.String()
}

// ParseResearchContent decodes a chat completion body into a ResearchResponse.
// Content that is not JSON is taken as the result itself.
func ParseResearchContent(content string, allowRefinement bool) (*ResearchResponse, error) {
	content = strings.TrimSpace(content)
	content = strings.TrimPrefix(content, "```json")
	content = strings.TrimSuffix(strings.TrimSpace(content), "```")
	content = strings.TrimSpace(content)

	var resp ResearchResponse
	if err := json.Unmarshal([]byte(content), &resp); err != nil {
		if content == "" {
			return nil, ErrEmptyResult
		}
		return &ResearchResponse{Result: content}, nil
	}

	resp.Questions = NormalizeQuestions(resp.Questions)
	if !allowRefinement || len(resp.Questions) == 0 {
		resp.RequiresRefinement = false
		resp.Questions = nil
	}
	if resp.RequiresRefinement {
		resp.Result = ""
		return &resp, nil
	}
	if strings.TrimSpace(resp.Result) == "" {
		return nil, ErrEmptyResult
	}
	return &resp, nil
}

// NormalizeQuestions drops blank questions and orders the rest by index.
// Indices are kept when they already form 0..N-1, otherwise they are
// renumbered in order.
func NormalizeQuestions(questions []RefinementQuestion) []RefinementQuestion {
	out := make([]RefinementQuestion, 0, len(questions))
	for _, q := range questions {
		q.Question = strings.TrimSpace(q.Question)
		if q.Question != "" {
			out = append(out, q)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Index < out[j].Index })
	for i := range out {
		if out[i].Index != i {
			for j := range out {
				out[j].Index = j
			}
			break
		}
	}
	return out
}
