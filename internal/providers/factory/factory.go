package factory

import (
	"fmt"

	"github.com/k429wang/AI-Deep-Research-Assistant/internal/config"
	"github.com/k429wang/AI-Deep-Research-Assistant/internal/models"
	"github.com/k429wang/AI-Deep-Research-Assistant/internal/providers"
	"github.com/k429wang/AI-Deep-Research-Assistant/internal/providers/gemini"
	"github.com/k429wang/AI-Deep-Research-Assistant/internal/providers/mock"
	"github.com/k429wang/AI-Deep-Research-Assistant/internal/providers/openai"
)

// CreateProvider creates a provider instance based on configuration
func CreateProvider(name models.Provider, cfg config.ProvidersConfig) (providers.Provider, error) {
	if cfg.Mock {
		return mock.NewProvider(name), nil
	}

	switch name {
	case models.ProviderOpenAI:
		return openai.NewProvider(cfg.OpenAI)
	case models.ProviderGemini:
		return gemini.NewProvider(cfg.Gemini)
	default:
		return nil, fmt.Errorf("unknown provider type: %s", name)
	}
}

// CreateRegistry builds a registry holding every metered provider. Real
// providers are wrapped in a circuit breaker when one is configured.
func CreateRegistry(cfg config.ProvidersConfig) (*providers.Registry, error) {
	registry := providers.NewRegistry()
	for _, name := range models.Providers {
		p, err := CreateProvider(name, cfg)
		if err != nil {
			return nil, fmt.Errorf("failed to create %s provider: %w", name, err)
		}
		if !cfg.Mock && cfg.BreakerThreshold > 0 {
			p = providers.NewBreaker(p, providers.BreakerConfig{
				FailureThreshold: cfg.BreakerThreshold,
				SuccessThreshold: 1,
				Cooldown:         cfg.BreakerCooldown,
			})
		}
		registry.Register(p)
	}
	return registry, nil
}
