package report

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/k429wang/AI-Deep-Research-Assistant/internal/models"
)

func TestGenerator_ProducesPDF(t *testing.T) {
	in := Input{
		Title:         "Heat pumps in cold climates",
		InitialPrompt: "How well do heat pumps work below -20°C?",
		RefinedPrompt: "How well do heat pumps work below -20°C?\n\nQ: Region?\nA: Nordics",
		OpenAIResult:  "# Summary\n- Cold-climate units hold COP > 2\n\nDetails follow.",
		GeminiResult:  "Research failed",
		CreatedAt:     time.Date(2031, 1, 2, 15, 4, 0, 0, time.UTC),
	}

	out, err := NewGenerator("").Generate(in)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(out, []byte("%PDF-")))
	assert.True(t, bytes.Contains(out, []byte("%%EOF")))
}

func TestGenerator_IsDeterministic(t *testing.T) {
	in := Input{Title: "T", InitialPrompt: "P", OpenAIResult: "A", GeminiResult: "B", CreatedAt: time.Unix(1900000000, 0)}
	g := NewGenerator("tests")

	first, err := g.Generate(in)
	require.NoError(t, err)
	second, err := g.Generate(in)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestGenerator_LongResultsSpanPages(t *testing.T) {
	long := strings.Repeat("A paragraph of findings that wraps across the page width several times.\n", 400)
	out, err := NewGenerator("").Generate(Input{Title: "Long", InitialPrompt: "P", OpenAIResult: long, GeminiResult: long})
	require.NoError(t, err)
	assert.Greater(t, bytes.Count(out, []byte("/Type /Page\n")), 1)
}

func TestInputFromSession(t *testing.T) {
	refined, a, b := "refined", "a", "b"
	created := time.Now()
	in := InputFromSession(&models.Session{
		Title:         "T",
		InitialPrompt: "P",
		RefinedPrompt: &refined,
		OpenAIResult:  &a,
		GeminiResult:  &b,
		CreatedAt:     created,
	})

	assert.Equal(t, Input{Title: "T", InitialPrompt: "P", RefinedPrompt: "refined", OpenAIResult: "a", GeminiResult: "b", CreatedAt: created}, in)
	assert.Empty(t, InputFromSession(&models.Session{}).RefinedPrompt)
}
