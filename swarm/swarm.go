package swarm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/posthog/posthog-go"

	"github.com/weavely/weave/action"
	"github.com/weavely/weave/agent"
	"github.com/weavely/weave/analytics"
	"github.com/weavely/weave/document"
	"github.com/weavely/weave/event"
	"github.com/weavely/weave/memory"
	"github.com/weavely/weave/model"
)

type SwarmOptions struct {
	Memory            *memory.Log
	Bus               *event.Bus
	Analytics         posthog.Client
	MaxScreenshotLoop int
}

func DefaultSwarmOptions() *SwarmOptions {
	return &SwarmOptions{
		MaxScreenshotLoop: 2,
	}
}

type SwarmOption func(*SwarmOptions)

func WithMemory(log *memory.Log) SwarmOption {
	return func(o *SwarmOptions) {
		o.Memory = log
	}
}

func WithBus(bus *event.Bus) SwarmOption {
	return func(o *SwarmOptions) {
		o.Bus = bus
	}
}

func WithAnalytics(client posthog.Client) SwarmOption {
	return func(o *SwarmOptions) {
		o.Analytics = client
	}
}

func WithMaxScreenshotLoop(n int) SwarmOption {
	return func(o *SwarmOptions) {
		o.MaxScreenshotLoop = n
	}
}

// TurnResult is what a completed turn hands back to the caller. The streamed
// content has already gone out through the agents' event handlers.
type TurnResult struct {
	LeadAgent string
	Response  string
	Report    *action.DiagnoseReport
}

// Swarm orchestrates one classifier and a set of specialist agents over a
// shared document store. One turn runs at a time.
type Swarm struct {
	store      *document.Store
	classifier *agent.Agent
	agents     map[string]*agent.Agent
	history    []*model.Message

	memory            *memory.Log
	bus               *event.Bus
	analytics         posthog.Client
	maxScreenshotLoop int

	turnMu sync.Mutex

	mu   sync.Mutex
	turn *turnState
}

// turnState collects what the active turn's event handlers observe.
type turnState struct {
	mu         sync.Mutex
	response   strings.Builder
	report     *action.DiagnoseReport
	screenshot *action.CaptureScreenshot
}

func NewSwarm(store *document.Store, classifier *agent.Agent, specialists map[string]*agent.Agent, opts ...SwarmOption) (*Swarm, error) {
	options := DefaultSwarmOptions()
	for _, opt := range opts {
		opt(options)
	}

	if len(specialists) == 0 {
		return nil, errors.New("swarm needs at least one specialist agent")
	}
	if _, ok := specialists[RoleBuilder]; !ok {
		return nil, fmt.Errorf("swarm needs a %q agent, it is the routing default", RoleBuilder)
	}

	s := &Swarm{
		store:             store,
		classifier:        classifier,
		agents:            specialists,
		memory:            options.Memory,
		bus:               options.Bus,
		analytics:         options.Analytics,
		maxScreenshotLoop: options.MaxScreenshotLoop,
	}

	for _, a := range specialists {
		a.Subscribe(s.onAgentEvent)
	}

	return s, nil
}

// RunTurn drives one user turn to completion: route, ground, stream, apply
// actions, and close the visual audit loop if a screenshot came back.
func (s *Swarm) RunTurn(ctx context.Context, input string) (*TurnResult, error) {
	s.turnMu.Lock()
	defer s.turnMu.Unlock()

	role := routeTurn(input)
	lead, ok := s.agents[role]
	if !ok {
		lead = s.agents[RoleBuilder]
		role = RoleBuilder
	}

	analytics.EmitTurnRouted(s.analytics, s.store.SessionID().String(), role, len(input))

	// The classifier is started alongside the lead turn and consumed
	// out-of-band. Its context survives the turn so a slow completion can
	// still tag the memory record.
	if s.classifier != nil {
		go s.classify(context.WithoutCancel(ctx), input, role)
	}

	s.writeMemory(ctx, memory.Note{Role: "user", Text: input})

	turn := &turnState{}
	s.setTurn(turn)
	defer s.setTurn(nil)

	lead.SetSystemContext(renderTree(s.store.Elements()))
	s.history = append(s.history, model.NewUserMessage(&model.TextBlock{Text: input}))

	reply, err := lead.Complete(ctx, s.history)
	if err != nil {
		return nil, s.failTurn(ctx, role, err)
	}
	s.history = append(s.history, reply)

	// Visual audit loop: a captured screenshot comes back as a fresh user
	// turn carrying the image, so the model can verify what was actually
	// rendered.
	for round := 0; round < s.maxScreenshotLoop; round++ {
		shot := turn.takeScreenshot()
		if shot == nil {
			break
		}

		s.history = append(s.history, model.NewUserMessage(
			&model.ImageBlock{MediaType: shot.MediaType, Data: shot.Data},
			&model.TextBlock{Text: "This is the current rendering of the page. Fix anything that does not match the request, or confirm it is correct."},
		))

		lead.SetSystemContext(renderTree(s.store.Elements()))
		reply, err = lead.Complete(ctx, s.history)
		if err != nil {
			return nil, s.failTurn(ctx, role, err)
		}
		s.history = append(s.history, reply)
	}

	turn.mu.Lock()
	result := &TurnResult{
		LeadAgent: role,
		Response:  turn.response.String(),
		Report:    turn.report,
	}
	turn.mu.Unlock()

	s.writeMemory(ctx, memory.Note{Role: "assistant", Text: result.Response})

	return result, nil
}

// History returns the conversation so far.
func (s *Swarm) History() []*model.Message {
	s.turnMu.Lock()
	defer s.turnMu.Unlock()
	out := make([]*model.Message, len(s.history))
	copy(out, s.history)
	return out
}

func (s *Swarm) setTurn(turn *turnState) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.turn = turn
}

func (s *Swarm) activeTurn() *turnState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.turn
}

// onAgentEvent observes the lead agent's stream. Tool results are decoded
// into actions and applied here, the single dispatch site that may touch
// the store.
func (s *Swarm) onAgentEvent(ctx context.Context, ev agent.Event) {
	turn := s.activeTurn()
	if turn == nil {
		return
	}

	switch ev.Kind {
	case agent.EventMessageStop:
		if text := ev.Message.Text(); text != "" {
			turn.mu.Lock()
			if turn.response.Len() > 0 {
				turn.response.WriteString("\n")
			}
			turn.response.WriteString(text)
			turn.mu.Unlock()
		}
	case agent.EventToolResult:
		if ev.Action == nil || !ev.ToolResult.Succeeded {
			return
		}
		if err := s.applyAction(ctx, turn, ev.Action); err != nil {
			// The result block is shared with the agent's follow-up
			// request, failing it here lets the model see the
			// rejection and retry.
			ev.ToolResult.Succeeded = false
			ev.ToolResult.Result = err.Error()
			slog.WarnContext(ctx, "action rejected", "kind", ev.Action.Kind(), "error", err)
		}
	}
}

// applyAction is the exhaustive dispatch over the closed action set. Tree
// mutations are followed by an automatic dev publish so edits show up without
// the model asking for one.
func (s *Swarm) applyAction(ctx context.Context, turn *turnState, act action.Action) error {
	var err error

	switch act := act.(type) {
	case action.AddComponent:
		err = s.store.Add(ctx, act.Element, act.ParentID, act.Index)
	case action.UpdateComponent:
		err = s.store.Update(ctx, act.ID, act.Props)
	case action.RemoveComponent:
		err = s.store.Remove(ctx, act.ID)
	case action.MoveComponent:
		err = s.store.Move(ctx, act.ID, act.TargetParentID, act.TargetIndex)
	case action.DuplicateComponent:
		_, err = s.store.Duplicate(ctx, act.ID)
	case action.Publish:
		s.publish(ctx, act.Env)
	case action.DiagnoseReport:
		turn.mu.Lock()
		turn.report = &act
		turn.mu.Unlock()
	case action.CaptureScreenshot:
		turn.mu.Lock()
		turn.screenshot = &act
		turn.mu.Unlock()
	case action.Note:
		// Already fed back to the model as the tool result.
	default:
		err = fmt.Errorf("unhandled action kind %q", act.Kind())
	}

	if err != nil {
		return err
	}
	if action.Mutates(act) {
		s.publish(ctx, "dev")
	}
	return nil
}

func (s *Swarm) publish(ctx context.Context, env string) {
	elements := s.store.Elements()
	if s.bus != nil {
		event.Publish(s.bus, event.PreviewPublishEvent{
			SessionID: s.store.SessionID(),
			Env:       env,
			Elements:  elements,
		})
	}
	analytics.EmitTreePublished(s.analytics, s.store.SessionID().String(), env, len(elements))
}

// classify runs the no-tool classifier and records its category. It is off
// the critical path, a late completion only affects the memory tag.
func (s *Swarm) classify(ctx context.Context, input string, leadAgent string) {
	reply, err := s.classifier.Complete(ctx, []*model.Message{
		model.NewUserMessage(&model.TextBlock{Text: input}),
	})
	if err != nil {
		slog.WarnContext(ctx, "classifier failed", "error", err)
		return
	}

	category := strings.ToLower(strings.TrimSpace(reply.Text()))
	if fields := strings.Fields(category); len(fields) > 0 {
		category = fields[0]
	}
	if category == "" {
		return
	}

	if s.bus != nil {
		event.Publish(s.bus, event.TurnClassifiedEvent{
			SessionID: s.store.SessionID(),
			Category:  category,
			LeadAgent: leadAgent,
		})
	}
	analytics.EmitTurnClassified(s.analytics, s.store.SessionID().String(), category, leadAgent)

	s.writeMemory(ctx, memory.Note{Role: "classifier", Text: input, Category: category})
}

// writeMemory is fire-and-forget. The log is a best-effort collaborator and
// never blocks or fails the user-visible response.
func (s *Swarm) writeMemory(ctx context.Context, note memory.Note) {
	if s.memory == nil {
		return
	}
	note.SessionID = s.store.SessionID()

	go func(ctx context.Context) {
		if err := s.memory.Append(ctx, note); err != nil {
			slog.WarnContext(ctx, "memory write failed", "role", note.Role, "error", err)
		}
	}(context.WithoutCancel(ctx))
}

func (s *Swarm) failTurn(ctx context.Context, leadAgent string, err error) error {
	slog.ErrorContext(ctx, "turn failed", "lead_agent", leadAgent, "error", err)
	if s.bus != nil {
		event.Publish(s.bus, event.TurnFailedEvent{
			SessionID: s.store.SessionID(),
			LeadAgent: leadAgent,
		})
	}
	return fmt.Errorf("turn failed: %w", err)
}

func (t *turnState) takeScreenshot() *action.CaptureScreenshot {
	t.mu.Lock()
	defer t.mu.Unlock()
	shot := t.screenshot
	t.screenshot = nil
	return shot
}

// renderTree serializes the current tree for the lead agent's system
// prompt, grounding tool calls in present state instead of a stale
// snapshot.
func renderTree(elements []document.Element) string {
	if len(elements) == 0 {
		return "# Current page\nThe page is empty."
	}

	data, err := json.MarshalIndent(elements, "", "  ")
	if err != nil {
		return "# Current page\nThe page could not be serialized."
	}
	return "# Current page\nThe current component tree, with ids:\n```json\n" + string(data) + "\n```"
}
