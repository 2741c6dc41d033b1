package agent_test

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/weavely/weave/action"
	"github.com/weavely/weave/agent"
	"github.com/weavely/weave/model"
	"github.com/weavely/weave/tool"
)

// scriptedProvider plays back canned responses and records every request it
// receives.
type scriptedProvider struct {
	mu        sync.Mutex
	responses []*model.Message
	requests  [][]*model.Message
	err       error
}

func (p *scriptedProvider) InvokeModel(ctx context.Context, modelName, systemPrompt string, messages []*model.Message, opts ...model.InvokeModelOption) (*model.Message, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.err != nil {
		return nil, p.err
	}

	options := &model.InvokeModelOptions{}
	for _, opt := range opts {
		opt(options)
	}

	p.requests = append(p.requests, messages)
	if len(p.responses) == 0 {
		return nil, errors.New("script exhausted")
	}
	resp := p.responses[0]
	p.responses = p.responses[1:]

	if options.StreamCallback != nil {
		if text := resp.Text(); text != "" {
			options.StreamCallback(ctx, text)
		}
	}
	return resp, nil
}

// gatedProvider holds every invocation until released.
type gatedProvider struct {
	inner   model.ModelProvider
	release chan struct{}
}

func (p *gatedProvider) InvokeModel(ctx context.Context, modelName, systemPrompt string, messages []*model.Message, opts ...model.InvokeModelOption) (*model.Message, error) {
	<-p.release
	return p.inner.InvokeModel(ctx, modelName, systemPrompt, messages, opts...)
}

func textResponse(text string) *model.Message {
	return model.NewModelMessage([]model.ContentBlock{&model.TextBlock{Text: text}}, model.Usage{InputTokens: 10, OutputTokens: 5})
}

func toolCallResponse(id, name, args string) *model.Message {
	return model.NewModelMessage([]model.ContentBlock{
		&model.ToolCallBlock{ID: id, Tool: name, Args: json.RawMessage(args)},
	}, model.Usage{InputTokens: 10, OutputTokens: 5})
}

type recorder struct {
	mu     sync.Mutex
	events []agent.Event
}

func (r *recorder) handle(ctx context.Context, ev agent.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *recorder) kinds() []agent.EventKind {
	r.mu.Lock()
	defer r.mu.Unlock()
	kinds := make([]agent.EventKind, 0, len(r.events))
	for _, ev := range r.events {
		kinds = append(kinds, ev.Kind)
	}
	return kinds
}

func userTurn(text string) []*model.Message {
	return []*model.Message{model.NewUserMessage(&model.TextBlock{Text: text})}
}

func TestAgent_CompletePlainText(t *testing.T) {
	t.Parallel()

	provider := &scriptedProvider{responses: []*model.Message{textResponse("hello there")}}
	rec := &recorder{}

	a, err := agent.NewAgent("builder", provider, "test-model", agent.WithHandler(rec.handle))
	if err != nil {
		t.Fatal(err)
	}

	reply, err := a.Complete(context.Background(), userTurn("hi"))
	if err != nil {
		t.Fatalf("Complete failed: %v", err)
	}
	if reply.Text() != "hello there" {
		t.Errorf("reply = %q", reply.Text())
	}
	if a.State() != agent.StateIdle {
		t.Errorf("state = %s, want idle", a.State())
	}

	want := []agent.EventKind{
		agent.EventStateChanged, // thinking
		agent.EventMessageStart,
		agent.EventStateChanged, // responding
		agent.EventContentDelta,
		agent.EventMessageStop,
		agent.EventStateChanged, // idle
	}
	got := rec.kinds()
	if len(got) != len(want) {
		t.Fatalf("event kinds = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("event %d = %s, want %s", i, got[i], want[i])
		}
	}

	stats := a.Stats()
	if stats.Messages != 1 {
		t.Errorf("stats.Messages = %d, want 1", stats.Messages)
	}
	if stats.Usage.InputTokens != 10 || stats.Usage.OutputTokens != 5 {
		t.Errorf("unexpected usage: %+v", stats.Usage)
	}
}

func TestAgent_StreamReturnsBeforeCompletion(t *testing.T) {
	t.Parallel()

	release := make(chan struct{})
	provider := &gatedProvider{
		inner:   &scriptedProvider{responses: []*model.Message{textResponse("streamed reply")}},
		release: release,
	}

	rec := &recorder{}
	idle := make(chan struct{})

	a, err := agent.NewAgent("builder", provider, "test-model",
		agent.WithHandler(func(ctx context.Context, ev agent.Event) {
			rec.handle(ctx, ev)
			if ev.Kind == agent.EventStateChanged && ev.State == agent.StateIdle {
				close(idle)
			}
		}),
	)
	if err != nil {
		t.Fatal(err)
	}

	// Stream hands back control while the backend is still held.
	a.Stream(context.Background(), userTurn("hi"))

	for _, kind := range rec.kinds() {
		if kind == agent.EventMessageStop {
			t.Fatal("turn completed before the backend was released")
		}
	}

	close(release)
	select {
	case <-idle:
	case <-time.After(time.Second):
		t.Fatal("streamed turn did not finish")
	}

	var delta string
	sawStop := false
	rec.mu.Lock()
	for _, ev := range rec.events {
		switch ev.Kind {
		case agent.EventContentDelta:
			delta += ev.Delta
		case agent.EventMessageStop:
			sawStop = true
		}
	}
	rec.mu.Unlock()

	if delta != "streamed reply" {
		t.Errorf("streamed content = %q, want %q", delta, "streamed reply")
	}
	if !sawStop {
		t.Error("no message_stop event arrived through the handlers")
	}
}

func TestAgent_ToolLoop(t *testing.T) {
	t.Parallel()

	provider := &scriptedProvider{responses: []*model.Message{
		toolCallResponse("call-1", "mark", `{"id":"hero-1"}`),
		textResponse("done"),
	}}
	rec := &recorder{}

	mark := tool.NewTool("mark", "Mark a component.",
		func(ctx context.Context, exec *tool.Context, input struct {
			ID string `json:"id" jsonschema:"required"`
		}) (action.Action, error) {
			return action.UpdateComponent{ID: input.ID, Props: map[string]any{"marked": true}}, nil
		})

	a, err := agent.NewAgent("builder", provider, "test-model",
		agent.WithTools(mark),
		agent.WithHandler(rec.handle),
	)
	if err != nil {
		t.Fatal(err)
	}

	reply, err := a.Complete(context.Background(), userTurn("mark the hero"))
	if err != nil {
		t.Fatalf("Complete failed: %v", err)
	}
	if reply.Text() != "done" {
		t.Errorf("final reply = %q, want done", reply.Text())
	}

	if len(provider.requests) != 2 {
		t.Fatalf("provider invoked %d times, want 2", len(provider.requests))
	}
	followUp := provider.requests[1]
	last := followUp[len(followUp)-1]
	if last.Source != model.MessageSourceUser {
		t.Fatalf("follow-up does not end with a user message")
	}
	result, ok := last.Content[0].(*model.ToolResultBlock)
	if !ok {
		t.Fatalf("follow-up block is %T, want ToolResultBlock", last.Content[0])
	}
	if result.ID != "call-1" || !result.Succeeded {
		t.Errorf("unexpected tool result: %+v", result)
	}

	var sawCall, sawResult bool
	rec.mu.Lock()
	for _, ev := range rec.events {
		switch ev.Kind {
		case agent.EventToolCallStarted:
			sawCall = true
			if ev.ToolCall.Tool != "mark" {
				t.Errorf("tool call for %q, want mark", ev.ToolCall.Tool)
			}
		case agent.EventToolResult:
			sawResult = true
			if _, ok := ev.Action.(action.UpdateComponent); !ok {
				t.Errorf("tool result action is %T, want UpdateComponent", ev.Action)
			}
		}
	}
	rec.mu.Unlock()
	if !sawCall || !sawResult {
		t.Error("missing tool call or tool result event")
	}
}

func TestAgent_ToolFailureFeedsBack(t *testing.T) {
	t.Parallel()

	provider := &scriptedProvider{responses: []*model.Message{
		toolCallResponse("call-1", "brittle", `{}`),
		textResponse("I will try something else"),
	}}

	brittle := tool.NewTool("brittle", "Always fails.",
		func(ctx context.Context, exec *tool.Context, input struct{}) (action.Action, error) {
			return nil, errors.New("store unavailable")
		})

	a, err := agent.NewAgent("builder", provider, "test-model", agent.WithTools(brittle))
	if err != nil {
		t.Fatal(err)
	}

	if _, err := a.Complete(context.Background(), userTurn("try it")); err != nil {
		t.Fatalf("a failed tool must not end the turn: %v", err)
	}

	followUp := provider.requests[1]
	last := followUp[len(followUp)-1]
	result := last.Content[0].(*model.ToolResultBlock)
	if result.Succeeded {
		t.Error("tool result marked succeeded despite handler error")
	}
}

func TestAgent_BackendError(t *testing.T) {
	t.Parallel()

	provider := &scriptedProvider{err: &model.ProviderError{Provider: "anthropic", Kind: model.ProviderErrorKindInternal, Err: errors.New("boom")}}
	rec := &recorder{}

	a, err := agent.NewAgent("builder", provider, "test-model", agent.WithHandler(rec.handle))
	if err != nil {
		t.Fatal(err)
	}

	_, err = a.Complete(context.Background(), userTurn("hi"))
	if err == nil {
		t.Fatal("expected backend error to surface")
	}
	if a.State() != agent.StateError {
		t.Errorf("state = %s, want error", a.State())
	}

	kinds := rec.kinds()
	if kinds[len(kinds)-1] != agent.EventError {
		t.Errorf("last event = %s, want error", kinds[len(kinds)-1])
	}
}

func TestAgent_ToolLoopBound(t *testing.T) {
	t.Parallel()

	// The script always answers with another tool call.
	responses := make([]*model.Message, 0, 8)
	for range 8 {
		responses = append(responses, toolCallResponse("call", "noop", `{}`))
	}
	provider := &scriptedProvider{responses: responses}

	noop := tool.NewTool("noop", "Does nothing.",
		func(ctx context.Context, exec *tool.Context, input struct{}) (action.Action, error) {
			return action.Note{Text: "ok"}, nil
		})

	a, err := agent.NewAgent("builder", provider, "test-model",
		agent.WithTools(noop),
		agent.WithMaxToolRounds(3),
	)
	if err != nil {
		t.Fatal(err)
	}

	if _, err := a.Complete(context.Background(), userTurn("loop")); err == nil {
		t.Fatal("expected the tool loop bound to trip")
	}
}
