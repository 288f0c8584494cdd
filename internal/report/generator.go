// Package report renders completed research sessions as PDF documents.
package report

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"github.com/go-pdf/fpdf"

	"github.com/k429wang/AI-Deep-Research-Assistant/internal/models"
)

// Input is everything rendered into a report
type Input struct {
	Title         string
	InitialPrompt string
	RefinedPrompt string
	OpenAIResult  string
	GeminiResult  string
	CreatedAt     time.Time
}

// InputFromSession builds report input from a completed session.
func InputFromSession(s *models.Session) Input {
	in := Input{
		Title:         s.Title,
		InitialPrompt: s.InitialPrompt,
		CreatedAt:     s.CreatedAt,
	}
	if s.RefinedPrompt != nil {
		in.RefinedPrompt = *s.RefinedPrompt
	}
	if s.OpenAIResult != nil {
		in.OpenAIResult = *s.OpenAIResult
	}
	if s.GeminiResult != nil {
		in.GeminiResult = *s.GeminiResult
	}
	return in
}

// Generator produces A4 PDF reports
type Generator struct {
	author string
}

// NewGenerator creates a report generator
func NewGenerator(author string) *Generator {
	if author == "" {
		author = "Deep Research Assistant"
	}
	return &Generator{author: author}
}

const (
	lineHeight = 5.5
	bodySize   = 10.5
)

// Generate renders the report and returns the PDF bytes
func (g *Generator) Generate(in Input) ([]byte, error) {
	pdf := fpdf.New("P", "mm", "A4", "")
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	pdf.SetTitle(in.Title, true)
	pdf.SetAuthor(g.author, true)
	pdf.SetCreator(g.author, true)
	pdf.SetCatalogSort(true)
	pdf.SetCreationDate(in.CreatedAt)
	pdf.SetModificationDate(in.CreatedAt)
	pdf.SetMargins(18, 18, 18)
	pdf.SetAutoPageBreak(true, 18)
	pdf.AliasNbPages("")
	pdf.SetFooterFunc(func() {
		pdf.SetY(-12)
		pdf.SetFont("Helvetica", "I", 8)
		pdf.CellFormat(0, 6, fmt.Sprintf("Page %d/{nb}", pdf.PageNo()), "", 0, "C", false, 0, "")
	})

	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 18)
	pdf.MultiCell(0, 9, tr(in.Title), "", "L", false)
	pdf.SetFont("Helvetica", "", 9)
	pdf.MultiCell(0, 5, tr("Created "+in.CreatedAt.UTC().Format("January 2, 2006 15:04 MST")), "", "L", false)
	pdf.Ln(4)

	section(pdf, tr, "Research request", in.InitialPrompt)
	if refined := strings.TrimSpace(in.RefinedPrompt); refined != "" && refined != strings.TrimSpace(in.InitialPrompt) {
		section(pdf, tr, "Refined request", in.RefinedPrompt)
	}
	section(pdf, tr, "OpenAI findings", in.OpenAIResult)
	section(pdf, tr, "Gemini findings", in.GeminiResult)

	if pdf.Err() {
		return nil, fmt.Errorf("failed to render report: %w", pdf.Error())
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("failed to write report: %w", err)
	}
	return buf.Bytes(), nil
}

func section(pdf *fpdf.Fpdf, tr func(string) string, heading, body string) {
	pdf.SetFont("Helvetica", "B", 13)
	pdf.SetFillColor(235, 239, 245)
	pdf.MultiCell(0, 8, tr(heading), "", "L", true)
	pdf.Ln(1.5)

	if strings.TrimSpace(body) == "" {
		body = "No content."
	}
	for _, line := range strings.Split(body, "\n") {
		writeLine(pdf, tr, line)
	}
	pdf.Ln(5)
}

// writeLine renders one line of lightly formatted markdown.
func writeLine(pdf *fpdf.Fpdf, tr func(string) string, line string) {
	trimmed := strings.TrimSpace(line)
	switch {
	case trimmed == "":
		pdf.Ln(lineHeight / 2)
	case strings.HasPrefix(trimmed, "#"):
		pdf.SetFont("Helvetica", "B", 11.5)
		pdf.MultiCell(0, lineHeight+0.5, tr(strings.TrimSpace(strings.TrimLeft(trimmed, "#"))), "", "L", false)
	case strings.HasPrefix(trimmed, "- "), strings.HasPrefix(trimmed, "* "):
		pdf.SetFont("Helvetica", "", bodySize)
		pdf.MultiCell(0, lineHeight, tr("• "+strings.TrimSpace(trimmed[2:])), "", "L", false)
	default:
		pdf.SetFont("Helvetica", "", bodySize)
		pdf.MultiCell(0, lineHeight, tr(strings.ReplaceAll(trimmed, "**", "")), "", "L", false)
	}
}
