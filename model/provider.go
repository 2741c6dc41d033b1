package model

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/weavely/weave/resilience"
)

// Tool is the minimal view of a tool a provider needs to advertise it to the
// backend model.
type Tool interface {
	Name() string
	Description() string
	Schema() any
}

type InvokeModelOptions struct {
	Tools          []Tool
	StreamCallback func(ctx context.Context, chunk string)
	ModelProfile   ModelProfile
}

type InvokeModelOption func(*InvokeModelOptions)

func WithTools(tools ...Tool) InvokeModelOption {
	return func(o *InvokeModelOptions) {
		o.Tools = tools
	}
}

func WithModelProfile(profile ModelProfile) InvokeModelOption {
	return func(o *InvokeModelOptions) {
		o.ModelProfile = profile
	}
}

// WithStreamHandler registers a callback for text deltas as they arrive from
// the backend stream.
func WithStreamHandler(handler func(ctx context.Context, chunk string)) InvokeModelOption {
	return func(o *InvokeModelOptions) {
		o.StreamCallback = handler
	}
}

type ProviderOptions struct {
	URL            string
	RetryConfig    *resilience.RetryConfig
	CircuitBreaker *resilience.CircuitBreaker
	Metrics        *prometheus.Registry
}

type ProviderOption func(*ProviderOptions)

func WithURL(url string) ProviderOption {
	return func(options *ProviderOptions) {
		options.URL = url
	}
}

func WithRetryConfig(retryConfig *resilience.RetryConfig) ProviderOption {
	return func(options *ProviderOptions) {
		options.RetryConfig = retryConfig
	}
}

func WithCircuitBreaker(circuitBreaker *resilience.CircuitBreaker) ProviderOption {
	return func(options *ProviderOptions) {
		options.CircuitBreaker = circuitBreaker
	}
}

func WithMetrics(metrics *prometheus.Registry) ProviderOption {
	return func(o *ProviderOptions) {
		o.Metrics = metrics
	}
}

func DefaultProviderOptions(name string) *ProviderOptions {
	return &ProviderOptions{
		RetryConfig: &resilience.RetryConfig{
			MaxAttempts:        5,
			InitialDelay:       1 * time.Second,
			MaxDelay:           10 * time.Second,
			UseProviderBackoff: true,
			BackoffMultiplier:  2,
		},
		CircuitBreaker: resilience.NewCircuitBreaker(name, 5, 10*time.Second),
	}
}

// ModelProvider drives one request against a backend language model.
// Implementations must map backend failures to *ProviderError.
type ModelProvider interface {
	InvokeModel(ctx context.Context, model, systemPrompt string, messages []*Message, opts ...InvokeModelOption) (*Message, error)
}

// ModelProfile carries provider-specific model parameters.
type ModelProfile interface {
	Validate() error
}

func ensureModelProfile[T ModelProfile](modelProfile ModelProfile) (T, error) {
	p, ok := modelProfile.(T)
	if !ok {
		return *new(T), fmt.Errorf("model profile has the wrong provider type")
	}

	err := p.Validate()
	if err != nil {
		return *new(T), fmt.Errorf("model profile is invalid: %w", err)
	}

	return p, nil
}

type MessageSource string

const (
	MessageSourceUser   MessageSource = "user"
	MessageSourceModel  MessageSource = "model"
	MessageSourceSystem MessageSource = "system"
)

type Message struct {
	Source  MessageSource  `json:"source"`
	Content []ContentBlock `json:"content"`
	Usage   Usage          `json:"usage"`
}

func NewModelMessage(content []ContentBlock, usage Usage) *Message {
	return &Message{
		Source:  MessageSourceModel,
		Content: content,
		Usage:   usage,
	}
}

func NewUserMessage(content ...ContentBlock) *Message {
	return &Message{
		Source:  MessageSourceUser,
		Content: content,
	}
}

// Text concatenates the message's text blocks.
func (m *Message) Text() string {
	text := ""
	for _, block := range m.Content {
		if textBlock, ok := block.(*TextBlock); ok {
			text += textBlock.Text
		}
	}
	return text
}

// ToolCalls returns the message's tool call blocks in order.
func (m *Message) ToolCalls() []*ToolCallBlock {
	var calls []*ToolCallBlock
	for _, block := range m.Content {
		if call, ok := block.(*ToolCallBlock); ok {
			calls = append(calls, call)
		}
	}
	return calls
}

type ContentBlockType string

const (
	ContentBlockTypeText        ContentBlockType = "text"
	ContentBlockTypeToolRequest ContentBlockType = "tool_request"
	ContentBlockTypeToolResult  ContentBlockType = "tool_result"
	ContentBlockTypeImage       ContentBlockType = "image"
)

type ContentBlock interface {
	Type() ContentBlockType
}

type TextBlock struct {
	Text string
}

func (t *TextBlock) Type() ContentBlockType {
	return ContentBlockTypeText
}

type ToolCallBlock struct {
	ID   string          `json:"id"`
	Tool string          `json:"tool"`
	Args json.RawMessage `json:"args"`
}

func (t *ToolCallBlock) Type() ContentBlockType {
	return ContentBlockTypeToolRequest
}

// ToolResultBlock references a prior tool call by its correlation ID.
type ToolResultBlock struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Result    string `json:"result"`
	Succeeded bool   `json:"succeeded"`
}

func (t *ToolResultBlock) Type() ContentBlockType {
	return ContentBlockTypeToolResult
}

// ImageBlock carries base64-encoded image data, e.g. a screenshot of the
// rendered tree re-injected for visual reconciliation.
type ImageBlock struct {
	MediaType string `json:"media_type"`
	Data      string `json:"data"`
}

func (i *ImageBlock) Type() ContentBlockType {
	return ContentBlockTypeImage
}

type Usage struct {
	InputTokens      int64 `json:"input_tokens"`
	OutputTokens     int64 `json:"output_tokens"`
	CacheWriteTokens int64 `json:"cache_write_tokens"`
	CacheReadTokens  int64 `json:"cache_read_tokens"`
}

func (u *Usage) Add(other Usage) {
	u.InputTokens += other.InputTokens
	u.OutputTokens += other.OutputTokens
	u.CacheWriteTokens += other.CacheWriteTokens
	u.CacheReadTokens += other.CacheReadTokens
}

type ProviderError struct {
	Provider   string
	RetryAfter time.Duration
	Err        error
	Kind       ProviderErrorKind
}

func NewProviderError(provider string, kind ProviderErrorKind, err error) *ProviderError {
	return &ProviderError{
		Provider: provider,
		Kind:     kind,
		Err:      err,
	}
}

func (pe *ProviderError) Message() string {
	switch pe.Kind {
	case ProviderErrorKindInvalidRequest:
		return "Invalid request format or content"
	case ProviderErrorKindRateLimitExceeded:
		if pe.RetryAfter > 0 {
			return fmt.Sprintf("Rate limit exceeded, retry after %s", pe.RetryAfter)
		}
		return "Rate limit exceeded"
	case ProviderErrorKindOverloaded:
		return "API temporarily overloaded"
	case ProviderErrorKindInternal:
		return "Internal server error"
	case ProviderErrorKindTimeout:
		return "Request timeout"
	case ProviderErrorKindCanceled:
		return "Request canceled"
	default:
		return "Unknown error"
	}
}

func (pe *ProviderError) Retryable() (bool, time.Duration) {
	switch pe.Kind {
	case ProviderErrorKindRateLimitExceeded:
		return true, pe.RetryAfter
	case ProviderErrorKindOverloaded:
		return true, 20 * time.Second
	case ProviderErrorKindInternal, ProviderErrorKindTimeout:
		return true, 0
	default:
		return false, 0
	}
}

func (pe *ProviderError) Error() string {
	if pe.Err != nil {
		return fmt.Sprintf("%s: %s: %s", pe.Provider, pe.Message(), pe.Err.Error())
	}
	return fmt.Sprintf("%s: %s", pe.Provider, pe.Message())
}

func (pe *ProviderError) Unwrap() error {
	return pe.Err
}

type ProviderErrorKind string

const (
	ProviderErrorKindInvalidRequest    ProviderErrorKind = "invalid_request"
	ProviderErrorKindRateLimitExceeded ProviderErrorKind = "rate_limit_exceeded"
	ProviderErrorKindOverloaded        ProviderErrorKind = "overloaded"
	ProviderErrorKindInternal          ProviderErrorKind = "internal"
	ProviderErrorKindTimeout           ProviderErrorKind = "timeout"
	ProviderErrorKindCanceled          ProviderErrorKind = "canceled"
	ProviderErrorKindUnknown           ProviderErrorKind = "unknown"
)
