package model

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/shared"
)

func SupportedOpenAIModels() []Model {
	return []Model{
		{
			ID:            uuid.MustParse("01960000-0001-7000-8000-000000000001"),
			Name:          shared.ChatModelGPT4o,
			Provider:      ProviderKindOpenAI,
			Capabilities:  []Capability{CapabilityImage},
			ContextWindow: 128000,
			Pricing: ModelPricing{
				Input:      2.5,
				Output:     10.0,
				CacheWrite: 1.25,
				CacheRead:  0.25,
			},
		},
		{
			ID:            uuid.MustParse("01960000-0002-7000-8000-000000000002"),
			Name:          shared.ChatModelGPT4oMini,
			Provider:      ProviderKindOpenAI,
			Capabilities:  []Capability{CapabilityImage},
			ContextWindow: 128000,
			Pricing: ModelPricing{
				Input:      0.15,
				Output:     0.6,
				CacheWrite: 0.075,
				CacheRead:  0.015,
			},
		},
	}
}

// OpenAIModelProfile carries the OpenAI-specific model parameters.
type OpenAIModelProfile struct {
	MaxTokens   int64
	Temperature float64
}

func (p *OpenAIModelProfile) Validate() error {
	if p.MaxTokens <= 0 {
		return fmt.Errorf("max tokens must be positive")
	}
	if p.Temperature < 0 || p.Temperature > 2 {
		return fmt.Errorf("temperature must be between 0 and 2")
	}
	return nil
}

func defaultOpenAIModelProfile() *OpenAIModelProfile {
	return &OpenAIModelProfile{
		MaxTokens:   1024,
		Temperature: 0,
	}
}

// OpenAIProvider is a single-shot chat completion provider. It carries the
// classifier path, which needs a full response before proceeding rather than
// a stream.
type OpenAIProvider struct {
	client  openai.Client
	metrics *providerMetricsProvider
}

func NewOpenAIProvider(apiKey string, opts ...ProviderOption) (*OpenAIProvider, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("openai API key is required")
	}

	providerOptions := DefaultProviderOptions("openai")
	for _, opt := range opts {
		opt(providerOptions)
	}

	clientOptions := []option.RequestOption{option.WithAPIKey(apiKey)}
	if providerOptions.URL != "" {
		clientOptions = append(clientOptions, option.WithBaseURL(providerOptions.URL))
	}

	provider := &OpenAIProvider{
		client:  openai.NewClient(clientOptions...),
		metrics: newProviderMetricsProvider(providerOptions.Metrics),
	}

	return provider, nil
}

func (p *OpenAIProvider) InvokeModel(ctx context.Context, model, systemPrompt string, messages []*Message, opts ...InvokeModelOption) (*Message, error) {
	if model == "" {
		return nil, NewProviderError("openai", ProviderErrorKindInvalidRequest, fmt.Errorf("model is required"))
	}

	if systemPrompt == "" {
		return nil, NewProviderError("openai", ProviderErrorKindInvalidRequest, fmt.Errorf("system prompt is required"))
	}

	if len(messages) == 0 {
		return nil, NewProviderError("openai", ProviderErrorKindInvalidRequest, fmt.Errorf("at least one message is required"))
	}

	options := &InvokeModelOptions{
		ModelProfile: defaultOpenAIModelProfile(),
	}
	for _, opt := range opts {
		opt(options)
	}

	modelProfile, err := ensureModelProfile[*OpenAIModelProfile](options.ModelProfile)
	if err != nil {
		return nil, NewProviderError("openai", ProviderErrorKindInvalidRequest, err)
	}

	chatMessages := make([]openai.ChatCompletionMessageParamUnion, 0, len(messages)+1)
	chatMessages = append(chatMessages, openai.SystemMessage(systemPrompt))
	for _, message := range messages {
		text := message.Text()
		if text == "" {
			continue
		}
		switch message.Source {
		case MessageSourceModel:
			chatMessages = append(chatMessages, openai.AssistantMessage(text))
		default:
			chatMessages = append(chatMessages, openai.UserMessage(text))
		}
	}

	start := time.Now()
	resp, err := p.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model:       shared.ChatModel(model),
		Messages:    chatMessages,
		MaxTokens:   openai.Int(modelProfile.MaxTokens),
		Temperature: openai.Float(modelProfile.Temperature),
	})
	if err != nil {
		providerErr := p.parseError(err)
		p.metrics.RecordAttempt("openai", start, providerErr)
		return nil, providerErr
	}
	p.metrics.RecordAttempt("openai", start, nil)

	if len(resp.Choices) == 0 {
		return nil, NewProviderError("openai", ProviderErrorKindUnknown, fmt.Errorf("response contains no choices"))
	}

	content := []ContentBlock{
		&TextBlock{Text: resp.Choices[0].Message.Content},
	}

	if options.StreamCallback != nil {
		options.StreamCallback(ctx, resp.Choices[0].Message.Content)
	}

	return NewModelMessage(content, Usage{
		InputTokens:  resp.Usage.PromptTokens,
		OutputTokens: resp.Usage.CompletionTokens,
	}), nil
}

func (p *OpenAIProvider) parseError(err error) *ProviderError {
	if errors.Is(err, context.Canceled) {
		return NewProviderError("openai", ProviderErrorKindCanceled, err)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return NewProviderError("openai", ProviderErrorKindTimeout, err)
	}

	var apiErr *openai.Error
	if !errors.As(err, &apiErr) {
		return NewProviderError("openai", ProviderErrorKindUnknown, err)
	}

	providerErr := NewProviderError("openai", ProviderErrorKindUnknown, err)
	switch apiErr.StatusCode {
	case 400, 401, 403, 404, 413:
		providerErr.Kind = ProviderErrorKindInvalidRequest
	case 429:
		providerErr.Kind = ProviderErrorKindRateLimitExceeded
	case 500, 502, 503, 504:
		providerErr.Kind = ProviderErrorKindInternal
	}

	return providerErr
}
