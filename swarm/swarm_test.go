package swarm_test

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/weavely/weave/agent"
	"github.com/weavely/weave/document"
	"github.com/weavely/weave/event"
	"github.com/weavely/weave/memory"
	"github.com/weavely/weave/model"
	"github.com/weavely/weave/swarm"
	"github.com/weavely/weave/tool"
)

type scriptedProvider struct {
	mu        sync.Mutex
	responses []*model.Message
}

func (p *scriptedProvider) InvokeModel(ctx context.Context, modelName, systemPrompt string, messages []*model.Message, opts ...model.InvokeModelOption) (*model.Message, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if len(p.responses) == 0 {
		return nil, errors.New("script exhausted")
	}
	resp := p.responses[0]
	p.responses = p.responses[1:]
	return resp, nil
}

// blockingProvider delays its single response until released.
type blockingProvider struct {
	release  chan struct{}
	response *model.Message
}

func (p *blockingProvider) InvokeModel(ctx context.Context, modelName, systemPrompt string, messages []*model.Message, opts ...model.InvokeModelOption) (*model.Message, error) {
	select {
	case <-p.release:
		return p.response, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func textResponse(text string) *model.Message {
	return model.NewModelMessage([]model.ContentBlock{&model.TextBlock{Text: text}}, model.Usage{})
}

func toolCalls(calls ...*model.ToolCallBlock) *model.Message {
	blocks := make([]model.ContentBlock, 0, len(calls))
	for _, call := range calls {
		blocks = append(blocks, call)
	}
	return model.NewModelMessage(blocks, model.Usage{})
}

func newBuilderSwarm(t *testing.T, store *document.Store, provider model.ModelProvider, classifier *agent.Agent, opts ...swarm.SwarmOption) *swarm.Swarm {
	t.Helper()

	builder, err := agent.NewAgent(swarm.RoleBuilder, provider, "test-model",
		agent.WithTools(tool.BuilderTools()...),
		agent.WithExecContext(&tool.Context{Document: store}),
	)
	if err != nil {
		t.Fatal(err)
	}

	s, err := swarm.NewSwarm(store, classifier, map[string]*agent.Agent{swarm.RoleBuilder: builder}, opts...)
	if err != nil {
		t.Fatal(err)
	}
	return s
}

func TestSwarm_HeroScenario(t *testing.T) {
	t.Parallel()

	store := document.NewStore(document.WithElements([]document.Element{
		{ID: "hero-1", Type: document.ElementTypeHeroSection, Props: map[string]any{"heading": "Welcome"}},
	}))

	// One model response carrying two tool calls; the store must reflect
	// them in exactly that order.
	provider := &scriptedProvider{responses: []*model.Message{
		toolCalls(
			&model.ToolCallBlock{ID: "c1", Tool: "add_component", Args: json.RawMessage(
				`{"type":"text","parent_id":"hero-1","index":0,"props":{"text":"Build fast"}}`)},
			&model.ToolCallBlock{ID: "c2", Tool: "update_component", Args: json.RawMessage(
				`{"id":"hero-1","props":{"heading":"Hello"}}`)},
		),
		textResponse("Added a subtitle and renamed the heading."),
	}}

	bus := event.NewBus(nil)
	defer bus.Close()
	published, sub := event.SubscribeChannel[event.PreviewPublishEvent](bus, 8, nil)
	defer sub.Unsubscribe()

	s := newBuilderSwarm(t, store, provider, nil, swarm.WithBus(bus))

	result, err := s.RunTurn(context.Background(), "add a subtitle to the hero")
	if err != nil {
		t.Fatalf("RunTurn failed: %v", err)
	}
	if result.LeadAgent != swarm.RoleBuilder {
		t.Errorf("lead agent = %s, want builder", result.LeadAgent)
	}
	if result.Response != "Added a subtitle and renamed the heading." {
		t.Errorf("response = %q", result.Response)
	}

	hero, ok := store.Find("hero-1")
	if !ok {
		t.Fatal("hero-1 missing")
	}
	if hero.Props["heading"] != "Hello" {
		t.Errorf("heading = %v, want Hello", hero.Props["heading"])
	}
	if len(hero.Children) != 1 || hero.Children[0].Props["text"] != "Build fast" {
		t.Errorf("unexpected children: %+v", hero.Children)
	}
	if store.Revision() != 2 {
		t.Errorf("revision = %d, want 2", store.Revision())
	}

	// Each tree mutation auto-publishes to dev.
	for range 2 {
		select {
		case e := <-published:
			if e.Env != "dev" {
				t.Errorf("published env = %s, want dev", e.Env)
			}
		case <-time.After(time.Second):
			t.Fatal("expected an automatic dev publish per mutation")
		}
	}
}

func TestSwarm_RejectedActionFailsToolResult(t *testing.T) {
	t.Parallel()

	store := document.NewStore()

	// The add targets a parent that does not exist; the model gets the
	// failure back and answers with plain text.
	provider := &scriptedProvider{responses: []*model.Message{
		toolCalls(&model.ToolCallBlock{ID: "c1", Tool: "add_component", Args: json.RawMessage(
			`{"type":"text","parent_id":"ghost","props":{"text":"hi"}}`)}),
		textResponse("That container does not exist."),
	}}

	s := newBuilderSwarm(t, store, provider, nil)

	result, err := s.RunTurn(context.Background(), "add text to the ghost container")
	if err != nil {
		t.Fatalf("RunTurn failed: %v", err)
	}
	if result.Response != "That container does not exist." {
		t.Errorf("response = %q", result.Response)
	}
	if store.Revision() != 0 {
		t.Errorf("rejected action mutated the store, revision = %d", store.Revision())
	}
}

func TestSwarm_LateClassifierDoesNotAlterResponse(t *testing.T) {
	t.Parallel()

	store := document.NewStore()
	provider := &scriptedProvider{responses: []*model.Message{textResponse("All done.")}}

	release := make(chan struct{})
	classifierProvider := &blockingProvider{release: release, response: textResponse("build")}
	classifier, err := agent.NewAgent("classifier", classifierProvider, "test-model")
	if err != nil {
		t.Fatal(err)
	}

	log, err := memory.Open(":memory:")
	if err != nil {
		t.Fatal(err)
	}
	defer log.Close()

	bus := event.NewBus(nil)
	defer bus.Close()
	classified, sub := event.SubscribeChannel[event.TurnClassifiedEvent](bus, 1, nil)
	defer sub.Unsubscribe()

	s := newBuilderSwarm(t, store, provider, classifier,
		swarm.WithBus(bus),
		swarm.WithMemory(log),
	)

	result, err := s.RunTurn(context.Background(), "say hi")
	if err != nil {
		t.Fatalf("RunTurn failed: %v", err)
	}
	if result.Response != "All done." {
		t.Errorf("response = %q, want All done.", result.Response)
	}

	// The turn finished while the classifier was still pending. Releasing
	// it now must only produce the out-of-band tag.
	close(release)

	select {
	case e := <-classified:
		if e.Category != "build" {
			t.Errorf("category = %s, want build", e.Category)
		}
	case <-time.After(time.Second):
		t.Fatal("expected a late classification event")
	}

	if result.Response != "All done." {
		t.Error("late classifier altered the delivered response")
	}

	deadline := time.Now().Add(2 * time.Second)
	for {
		notes, err := log.Recent(context.Background(), store.SessionID(), 10)
		if err != nil {
			t.Fatal(err)
		}
		tagged := false
		for _, note := range notes {
			if note.Role == "classifier" && note.Category == "build" {
				tagged = true
			}
		}
		if tagged {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("classifier tag never reached the memory log")
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestSwarm_TurnFailure(t *testing.T) {
	t.Parallel()

	store := document.NewStore()
	provider := &scriptedProvider{responses: nil} // script exhausted, provider errors

	bus := event.NewBus(nil)
	defer bus.Close()
	failed, sub := event.SubscribeChannel[event.TurnFailedEvent](bus, 1, nil)
	defer sub.Unsubscribe()

	s := newBuilderSwarm(t, store, provider, nil, swarm.WithBus(bus))

	if _, err := s.RunTurn(context.Background(), "build a page"); err == nil {
		t.Fatal("expected turn error")
	}

	select {
	case e := <-failed:
		if e.LeadAgent != swarm.RoleBuilder {
			t.Errorf("failed event lead = %s, want builder", e.LeadAgent)
		}
	case <-time.After(time.Second):
		t.Fatal("expected a terminal failure event")
	}
}
