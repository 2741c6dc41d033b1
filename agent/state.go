package agent

import (
	"context"

	"github.com/weavely/weave/action"
	"github.com/weavely/weave/model"
	"github.com/weavely/weave/tool"
)

type State string

const (
	StateIdle       State = "idle"
	StateThinking   State = "thinking"
	StateResponding State = "responding"
	StateToolUse    State = "tool_use"
	StateError      State = "error"
)

type EventKind string

const (
	EventStateChanged    EventKind = "state_changed"
	EventMessageStart    EventKind = "message_start"
	EventContentDelta    EventKind = "content_delta"
	EventToolCallStarted EventKind = "tool_call_started"
	EventToolResult      EventKind = "tool_result"
	EventMessageStop     EventKind = "message_stop"
	EventError           EventKind = "error"
)

// Event is emitted by an agent as a turn progresses. Only the fields
// relevant to the Kind are set.
type Event struct {
	Kind  EventKind
	Agent string

	State      State
	Delta      string
	ToolCall   *tool.Call
	ToolResult *model.ToolResultBlock
	Action     action.Action
	Message    *model.Message
	Err        error
}

// Handler receives agent events. Handlers are called synchronously in
// registration order and must not block.
type Handler func(ctx context.Context, event Event)
