package agent

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/weavely/weave/action"
	"github.com/weavely/weave/model"
	"github.com/weavely/weave/tool"
)

// Complete runs a full turn against the model and blocks until the final
// message is available. Tool calls issued by the model are executed
// sequentially and their results fed back until the model answers without
// requesting tools.
func (a *Agent) Complete(ctx context.Context, messages []*model.Message) (*model.Message, error) {
	return a.run(ctx, messages)
}

// Stream issues the turn and returns once it is underway. All content
// arrives through the registered handlers; the turn ends with a
// message_stop or error event.
func (a *Agent) Stream(ctx context.Context, messages []*model.Message) {
	go func() {
		_, err := a.run(ctx, messages)
		if err != nil {
			slog.ErrorContext(ctx, "agent turn failed", "agent", a.name, "error", err)
		}
	}()
}

func (a *Agent) run(ctx context.Context, messages []*model.Message) (*model.Message, error) {
	a.setState(ctx, StateThinking)

	msgs := slices.Clone(messages)
	var final *model.Message

	for round := 0; ; round++ {
		resp, err := a.invoke(ctx, msgs)
		if err != nil {
			a.setState(ctx, StateError)
			a.emit(ctx, Event{Kind: EventError, Err: err})
			return nil, err
		}

		a.emit(ctx, Event{Kind: EventMessageStop, Message: resp})

		calls := resp.ToolCalls()
		if len(calls) == 0 {
			final = resp
			break
		}

		if round >= a.maxToolRounds {
			err := fmt.Errorf("agent %s: tool loop did not converge after %d rounds", a.name, round)
			a.setState(ctx, StateError)
			a.emit(ctx, Event{Kind: EventError, Err: err})
			return nil, err
		}

		a.setState(ctx, StateToolUse)
		msgs = append(msgs, resp)
		msgs = append(msgs, model.NewUserMessage(a.callTools(ctx, calls)...))
		a.setState(ctx, StateThinking)
	}

	a.setState(ctx, StateIdle)
	return final, nil
}

func (a *Agent) invoke(ctx context.Context, msgs []*model.Message) (*model.Message, error) {
	a.emit(ctx, Event{Kind: EventMessageStart})

	opts := []model.InvokeModelOption{
		model.WithStreamHandler(func(ctx context.Context, chunk string) {
			a.markResponding(ctx)
			a.emit(ctx, Event{Kind: EventContentDelta, Delta: chunk})
		}),
	}
	if tools := a.registry.List(); len(tools) > 0 {
		modelTools := make([]model.Tool, 0, len(tools))
		for _, t := range tools {
			modelTools = append(modelTools, t)
		}
		opts = append(opts, model.WithTools(modelTools...))
	}
	if a.profile != nil {
		opts = append(opts, model.WithModelProfile(a.profile))
	}

	a.mu.Lock()
	systemPrompt := a.systemPrompt
	if a.systemContext != "" {
		systemPrompt += "\n\n" + a.systemContext
	}
	a.mu.Unlock()

	start := time.Now()
	resp, err := a.provider.InvokeModel(ctx, a.modelName, systemPrompt, msgs, opts...)
	if err != nil {
		return nil, err
	}

	a.recordInvocation(resp.Usage, time.Since(start))
	return resp, nil
}

// callTools runs the model's tool calls in order and returns the result
// blocks for the follow-up request. A failed call becomes a failed result
// block rather than ending the turn, so the model can react.
func (a *Agent) callTools(ctx context.Context, calls []*model.ToolCallBlock) []model.ContentBlock {
	results := make([]model.ContentBlock, 0, len(calls))

	for _, call := range calls {
		toolCall := tool.Call{ID: call.ID, Tool: call.Tool, Input: call.Args}
		a.emit(ctx, Event{Kind: EventToolCallStarted, ToolCall: &toolCall})

		act, err := a.executor.Execute(ctx, a.execContext, toolCall)

		block := &model.ToolResultBlock{ID: call.ID, Name: call.Tool, Succeeded: err == nil}
		if err != nil {
			block.Result = err.Error()
		} else {
			block.Result = renderResult(act)
		}

		a.emit(ctx, Event{Kind: EventToolResult, ToolResult: block, Action: act})
		results = append(results, block)
	}

	return results
}

// renderResult turns an action into the text the model sees as the tool
// result. Notes carry their payload verbatim, everything else echoes the
// action envelope so the model can verify what it did.
func renderResult(act action.Action) string {
	switch act := act.(type) {
	case action.Note:
		return act.Text
	case action.CaptureScreenshot:
		return fmt.Sprintf("captured %dx%d screenshot of %s", act.Width, act.Height, act.URL)
	default:
		envelope, err := action.Encode(act)
		if err != nil {
			return fmt.Sprintf("applied %s", act.Kind())
		}
		return string(envelope)
	}
}

func (a *Agent) setState(ctx context.Context, state State) {
	a.mu.Lock()
	if a.state == state {
		a.mu.Unlock()
		return
	}
	a.state = state
	a.mu.Unlock()

	a.emit(ctx, Event{Kind: EventStateChanged, State: state})
}

// markResponding flips thinking to responding on the first content delta.
func (a *Agent) markResponding(ctx context.Context) {
	a.mu.Lock()
	if a.state != StateThinking {
		a.mu.Unlock()
		return
	}
	a.state = StateResponding
	a.mu.Unlock()

	a.emit(ctx, Event{Kind: EventStateChanged, State: StateResponding})
}

func (a *Agent) emit(ctx context.Context, event Event) {
	event.Agent = a.name

	a.mu.Lock()
	handlers := slices.Clone(a.handlers)
	a.mu.Unlock()

	for _, handler := range handlers {
		handler(ctx, event)
	}
}
