// Package gemini talks to Gemini through Google's OpenAI-compatible endpoint.
package gemini

import (
	"github.com/k429wang/AI-Deep-Research-Assistant/internal/config"
	"github.com/k429wang/AI-Deep-Research-Assistant/internal/models"
	"github.com/k429wang/AI-Deep-Research-Assistant/internal/providers/openai"
)

// DefaultBaseURL is Google's OpenAI-compatible API root.
const DefaultBaseURL = "https://generativelanguage.googleapis.com/v1beta/openai/"

// NewProvider creates the Gemini research provider
func NewProvider(cfg config.ProviderConfig) (*openai.Provider, error) {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	return openai.NewCompatibleProvider(models.ProviderGemini, cfg)
}
