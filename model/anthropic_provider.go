package model

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/cenkalti/backoff/v5"

	"github.com/weavely/weave/resilience"
)

var errCircuitOpen = errors.New("circuit breaker is open")

type AnthropicProvider struct {
	client         *anthropic.Client
	retryConfig    *resilience.RetryConfig
	circuitBreaker *resilience.CircuitBreaker
	metrics        *providerMetricsProvider
}

func NewAnthropicProvider(apiKey string, opts ...ProviderOption) (*AnthropicProvider, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("anthropic API key is required")
	}

	providerOptions := DefaultProviderOptions("anthropic")
	for _, opt := range opts {
		opt(providerOptions)
	}

	clientOptions := []option.RequestOption{option.WithAPIKey(apiKey)}
	if providerOptions.URL != "" {
		clientOptions = append(clientOptions, option.WithBaseURL(providerOptions.URL))
	}

	provider := &AnthropicProvider{
		client:         anthropic.NewClient(clientOptions...),
		retryConfig:    providerOptions.RetryConfig,
		circuitBreaker: providerOptions.CircuitBreaker,
		metrics:        newProviderMetricsProvider(providerOptions.Metrics),
	}

	return provider, nil
}

func (p *AnthropicProvider) InvokeModel(ctx context.Context, model, systemPrompt string, messages []*Message, opts ...InvokeModelOption) (*Message, error) {
	if err := p.validateInput(model, systemPrompt, messages); err != nil {
		return nil, NewProviderError("anthropic", ProviderErrorKindInvalidRequest, err)
	}

	options := defaultAnthropicInvokeOptions()
	for _, opt := range opts {
		opt(options)
	}

	modelProfile, err := ensureModelProfile[*AnthropicModelProfile](options.ModelProfile)
	if err != nil {
		return nil, NewProviderError("anthropic", ProviderErrorKindInvalidRequest, err)
	}

	anthropicMessages, err := p.transformMessages(messages)
	if err != nil {
		return nil, NewProviderError("anthropic", ProviderErrorKindInvalidRequest, err)
	}

	anthropicTools := p.transformTools(options.Tools)

	request := anthropic.MessageNewParams{
		Model:       anthropic.F(model),
		MaxTokens:   anthropic.F(modelProfile.MaxTokens),
		Temperature: anthropic.F(modelProfile.Temperature),
		System: anthropic.F([]anthropic.TextBlockParam{
			{
				Type: anthropic.F(anthropic.TextBlockParamTypeText),
				Text: anthropic.F(systemPrompt),
				CacheControl: anthropic.F(anthropic.CacheControlEphemeralParam{
					Type: anthropic.F(anthropic.CacheControlEphemeralTypeEphemeral),
				}),
			},
		}),
		Messages: anthropic.F(anthropicMessages),
	}

	if len(anthropicTools) > 0 {
		request.ToolChoice = anthropic.F(anthropic.ToolChoiceUnionParam(anthropic.ToolChoiceAutoParam{Type: anthropic.F(anthropic.ToolChoiceAutoTypeAuto)}))
		request.Tools = anthropic.F(anthropicTools)
	}

	return p.invokeWithRetry(ctx, request, options)
}

func (p *AnthropicProvider) invokeWithRetry(ctx context.Context, request anthropic.MessageNewParams, options *InvokeModelOptions) (*Message, error) {
	operation := func() (*Message, error) {
		if p.circuitBreaker != nil && !p.circuitBreaker.Allow() {
			return nil, backoff.Permanent(NewProviderError("anthropic", ProviderErrorKindOverloaded, errCircuitOpen))
		}

		start := time.Now()
		msg, err := p.executeCall(ctx, request, options)
		if p.circuitBreaker != nil {
			p.circuitBreaker.RecordResult(err)
		}

		if err == nil {
			p.metrics.RecordAttempt("anthropic", start, nil)
			return msg, nil
		}

		providerErr := p.parseError(err)
		p.metrics.RecordAttempt("anthropic", start, providerErr)

		retryable, retryAfter := providerErr.Retryable()
		if !retryable {
			return nil, backoff.Permanent(providerErr)
		}
		if p.retryConfig.UseProviderBackoff && retryAfter > 0 {
			return nil, &backoff.RetryAfterError{Duration: retryAfter}
		}
		return nil, providerErr
	}

	expo := backoff.NewExponentialBackOff()
	expo.InitialInterval = p.retryConfig.InitialDelay
	expo.MaxInterval = p.retryConfig.MaxDelay
	expo.Multiplier = p.retryConfig.BackoffMultiplier

	msg, err := backoff.Retry(ctx, operation,
		backoff.WithBackOff(expo),
		backoff.WithMaxTries(p.retryConfig.MaxAttempts),
		backoff.WithNotify(func(err error, nextRetry time.Duration) {
			slog.WarnContext(ctx, "retrying model invocation",
				"provider", "anthropic",
				"error", err,
				"next_retry", nextRetry,
			)
		}),
	)
	if err != nil {
		var providerErr *ProviderError
		if errors.As(err, &providerErr) {
			return nil, providerErr
		}
		return nil, p.parseError(err)
	}

	return msg, nil
}

func (p *AnthropicProvider) executeCall(ctx context.Context, request anthropic.MessageNewParams, options *InvokeModelOptions) (*Message, error) {
	stream := p.client.Messages.NewStreaming(ctx, request)
	defer stream.Close()

	anthropicMessage := anthropic.Message{}
	for stream.Next() {
		event := stream.Current()
		anthropicMessage.Accumulate(event)

		switch delta := event.Delta.(type) {
		case anthropic.ContentBlockDeltaEventDelta:
			if delta.Text != "" && options.StreamCallback != nil {
				options.StreamCallback(ctx, delta.Text)
			}
		}
	}

	if stream.Err() != nil {
		return nil, stream.Err()
	}

	content := make([]ContentBlock, 0, len(anthropicMessage.Content))
	for _, block := range anthropicMessage.Content {
		switch block := block.AsUnion().(type) {
		case anthropic.TextBlock:
			content = append(content, &TextBlock{
				Text: block.Text,
			})
		case anthropic.ToolUseBlock:
			content = append(content, &ToolCallBlock{
				ID:   block.ID,
				Tool: block.Name,
				Args: block.Input,
			})
		}
	}

	return NewModelMessage(content, Usage{
		InputTokens:      anthropicMessage.Usage.InputTokens,
		OutputTokens:     anthropicMessage.Usage.OutputTokens,
		CacheWriteTokens: anthropicMessage.Usage.CacheCreationInputTokens,
		CacheReadTokens:  anthropicMessage.Usage.CacheReadInputTokens,
	}), nil
}

func (p *AnthropicProvider) parseError(err error) *ProviderError {
	if errors.Is(err, context.Canceled) {
		return NewProviderError("anthropic", ProviderErrorKindCanceled, err)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return NewProviderError("anthropic", ProviderErrorKindTimeout, err)
	}

	var apiErr *anthropic.Error
	if !errors.As(err, &apiErr) {
		return NewProviderError("anthropic", ProviderErrorKindUnknown, err)
	}

	providerErr := NewProviderError("anthropic", ProviderErrorKindUnknown, err)

	switch apiErr.StatusCode {
	case 400, 401, 403, 404, 413:
		providerErr.Kind = ProviderErrorKindInvalidRequest
	case 429:
		providerErr.Kind = ProviderErrorKindRateLimitExceeded
		if apiErr.Response != nil {
			if retryAfter := apiErr.Response.Header.Get("Retry-After"); retryAfter != "" {
				if seconds, parseErr := strconv.Atoi(retryAfter); parseErr == nil {
					providerErr.RetryAfter = time.Duration(seconds) * time.Second
				}
			}
		}
	case 529:
		providerErr.Kind = ProviderErrorKindOverloaded
		providerErr.RetryAfter = 10 * time.Second
	case 500, 502, 503, 504:
		providerErr.Kind = ProviderErrorKindInternal
	}

	return providerErr
}

func defaultAnthropicInvokeOptions() *InvokeModelOptions {
	return &InvokeModelOptions{
		Tools:        []Tool{},
		ModelProfile: defaultAnthropicModelProfile(),
	}
}

func (p *AnthropicProvider) transformMessages(messages []*Message) ([]anthropic.MessageParam, error) {
	var lastUserMessageIndex, secondToLastUserMessageIndex int = -1, -1
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Source == MessageSourceUser {
			if lastUserMessageIndex == -1 {
				lastUserMessageIndex = i
			} else if secondToLastUserMessageIndex == -1 {
				secondToLastUserMessageIndex = i
				break
			}
		}
	}

	anthropicMessages := make([]anthropic.MessageParam, len(messages))
	for i, message := range messages {
		anthropicBlocks := make([]anthropic.ContentBlockParamUnion, len(message.Content))
		for j, b := range message.Content {
			switch block := b.(type) {
			case *TextBlock:
				textBlock := anthropic.NewTextBlock(block.Text)
				if (i == lastUserMessageIndex || i == secondToLastUserMessageIndex) && j == len(message.Content)-1 {
					textBlock.CacheControl = anthropic.F(anthropic.CacheControlEphemeralParam{
						Type: anthropic.F(anthropic.CacheControlEphemeralTypeEphemeral),
					})
				}
				anthropicBlocks[j] = textBlock
			case *ToolCallBlock:
				anthropicBlocks[j] = anthropic.NewToolUseBlockParam(block.ID, block.Tool, block.Args)
			case *ToolResultBlock:
				toolResultBlock := anthropic.NewToolResultBlock(block.ID, block.Result, !block.Succeeded)
				if (i == lastUserMessageIndex || i == secondToLastUserMessageIndex) && j == len(message.Content)-1 {
					toolResultBlock.CacheControl = anthropic.F(anthropic.CacheControlEphemeralParam{
						Type: anthropic.F(anthropic.CacheControlEphemeralTypeEphemeral),
					})
				}
				anthropicBlocks[j] = toolResultBlock
			case *ImageBlock:
				anthropicBlocks[j] = anthropic.NewImageBlockBase64(block.MediaType, block.Data)
			default:
				return nil, fmt.Errorf("unsupported content block type: %s", b.Type())
			}
		}

		switch message.Source {
		case MessageSourceUser:
			anthropicMessages[i] = anthropic.NewUserMessage(anthropicBlocks...)
		case MessageSourceModel:
			anthropicMessages[i] = anthropic.NewAssistantMessage(anthropicBlocks...)
		case MessageSourceSystem:
			anthropicMessages[i] = anthropic.NewUserMessage(anthropicBlocks...)
		}
	}

	return anthropicMessages, nil
}

func (p *AnthropicProvider) transformTools(tools []Tool) []anthropic.ToolUnionUnionParam {
	var anthropicTools []anthropic.ToolUnionUnionParam
	for i, tool := range tools {
		toolParam := anthropic.ToolParam{
			Name:        anthropic.F(tool.Name()),
			Description: anthropic.F(tool.Description()),
			InputSchema: anthropic.F(tool.Schema()),
		}

		if i == len(tools)-1 {
			toolParam.CacheControl = anthropic.F(
				anthropic.CacheControlEphemeralParam{Type: anthropic.F(anthropic.CacheControlEphemeralTypeEphemeral)})
		}
		anthropicTools = append(anthropicTools, toolParam)
	}

	return anthropicTools
}

func (p *AnthropicProvider) validateInput(model, systemPrompt string, messages []*Message) error {
	if model == "" {
		return fmt.Errorf("model is required")
	}

	if systemPrompt == "" {
		return fmt.Errorf("system prompt is required")
	}

	if len(messages) == 0 {
		return fmt.Errorf("at least one message is required")
	}

	return nil
}
