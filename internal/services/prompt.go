package services

import (
	"sort"
	"strings"

	"github.com/k429wang/AI-Deep-Research-Assistant/internal/models"
)

// RefinementMarker separates the original prompt from the clarifications.
const RefinementMarker = "--- Refinement details ---"

// SynthesizeRefinedPrompt renders the initial prompt followed by every
// answered question in index order. The output depends only on its inputs.
func SynthesizeRefinedPrompt(initialPrompt string, refinements []models.Refinement) string {
	ordered := make([]models.Refinement, len(refinements))
	copy(ordered, refinements)
	sort.SliceStable(ordered, func(i, j int) bool { return ordered[i].QuestionIndex < ordered[j].QuestionIndex })

	var b strings.Builder
	b.WriteString(strings.TrimSpace(initialPrompt))
	b.WriteString("\n\n")
	b.WriteString(RefinementMarker)
	for _, r := range ordered {
		if !r.Answered() {
			continue
		}
		b.WriteString("\nQ: ")
		b.WriteString(strings.TrimSpace(r.Question))
		b.WriteString("\nA: ")
		b.WriteString(strings.TrimSpace(*r.Answer))
	}
	return b.String()
}
