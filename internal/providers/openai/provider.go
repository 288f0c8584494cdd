package openai

import (
	"context"
	"errors"
	"fmt"

	"github.com/sashabaranov/go-openai"

	"github.com/k429wang/AI-Deep-Research-Assistant/internal/config"
	"github.com/k429wang/AI-Deep-Research-Assistant/internal/models"
	"github.com/k429wang/AI-Deep-Research-Assistant/internal/providers"
)

// Provider runs research over an OpenAI chat completion endpoint. It is also
// used for OpenAI-compatible endpoints configured with a BaseURL.
type Provider struct {
	name   models.Provider
	config config.ProviderConfig
	client *openai.Client
}

// NewProvider creates the OpenAI research provider
func NewProvider(cfg config.ProviderConfig) (*Provider, error) {
	return NewCompatibleProvider(models.ProviderOpenAI, cfg)
}

// NewCompatibleProvider creates a provider billed as name that talks to any
// OpenAI-compatible API.
func NewCompatibleProvider(name models.Provider, cfg config.ProviderConfig) (*Provider, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("%s API key is required", providers.DisplayName(name))
	}
	if cfg.Model == "" {
		return nil, fmt.Errorf("%s model is required", providers.DisplayName(name))
	}

	clientConfig := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientConfig.BaseURL = cfg.BaseURL
	}

	return &Provider{
		name:   name,
		config: cfg,
		client: openai.NewClientWithConfig(clientConfig),
	}, nil
}

// Name returns the provider name
func (p *Provider) Name() models.Provider {
	return p.name
}

// Research performs one non-streaming, JSON-formatted completion
func (p *Provider) Research(ctx context.Context, req providers.ResearchRequest) (*providers.ResearchResponse, error) {
	chatReq := openai.ChatCompletionRequest{
		Model: p.config.Model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: providers.ResearchInstructions(req.AllowRefinement)},
			{Role: openai.ChatMessageRoleUser, Content: req.Prompt},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
	}

	resp, err := p.client.CreateChatCompletion(ctx, chatReq)
	if err != nil {
		return nil, ClassifyError(p.name, err)
	}
	if len(resp.Choices) == 0 {
		return nil, providers.NewProviderError(p.name, providers.ReasonUnknown, providers.ErrEmptyResult)
	}

	parsed, err := providers.ParseResearchContent(resp.Choices[0].Message.Content, req.AllowRefinement)
	if err != nil {
		return nil, providers.NewProviderError(p.name, providers.ReasonUnknown, err)
	}
	return parsed, nil
}

// ClassifyError converts go-openai client errors into a ProviderError
func ClassifyError(name models.Provider, err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		detail := apiErr.Type + " " + apiErr.Message
		if code, ok := apiErr.Code.(string); ok {
			detail += " " + code
		}
		return providers.NewProviderError(name, providers.ClassifyStatus(apiErr.HTTPStatusCode, detail), err)
	}

	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return providers.NewProviderError(name, providers.ClassifyStatus(reqErr.HTTPStatusCode, reqErr.Error()), err)
	}

	return providers.NewProviderError(name, providers.ReasonUnknown, err)
}
