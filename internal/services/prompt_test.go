package services

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/k429wang/AI-Deep-Research-Assistant/internal/models"
)

func answered(index int, question, answer string) models.Refinement {
	return models.Refinement{QuestionIndex: index, Question: question, Answer: &answer}
}

func TestSynthesizeRefinedPrompt(t *testing.T) {
	refinements := []models.Refinement{
		answered(1, "Which region?", "Nordics"),
		answered(0, "Which budget?", " 10k EUR "),
	}

	got := SynthesizeRefinedPrompt("Compare heat pumps", refinements)

	assert.Equal(t, "Compare heat pumps\n\n"+RefinementMarker+
		"\nQ: Which budget?\nA: 10k EUR"+
		"\nQ: Which region?\nA: Nordics", got)
	assert.Equal(t, 1, refinements[0].QuestionIndex, "input order is not modified")
}

func TestSynthesizeRefinedPrompt_Deterministic(t *testing.T) {
	a := []models.Refinement{answered(0, "Q1", "A1"), answered(1, "Q2", "A2"), answered(2, "Q3", "A3")}
	b := []models.Refinement{answered(2, "Q3", "A3"), answered(0, "Q1", "A1"), answered(1, "Q2", "A2")}

	first := SynthesizeRefinedPrompt("X", a)
	for i := 0; i < 5; i++ {
		assert.Equal(t, first, SynthesizeRefinedPrompt("X", a))
	}
	assert.Equal(t, first, SynthesizeRefinedPrompt("X", b))
}

func TestSynthesizeRefinedPrompt_SkipsUnanswered(t *testing.T) {
	got := SynthesizeRefinedPrompt("X", []models.Refinement{
		answered(0, "Q1", "A1"),
		{QuestionIndex: 1, Question: "Q2"},
	})
	assert.NotContains(t, got, "Q2")
}
