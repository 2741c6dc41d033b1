package agent

import (
	"fmt"
	"sync"

	"github.com/weavely/weave/model"
	"github.com/weavely/weave/tool"
)

type AgentOptions struct {
	SystemPrompt  string
	Tools         []*tool.Definition
	ExecContext   *tool.Context
	ModelProfile  model.ModelProfile
	Handlers      []Handler
	MaxToolRounds int
}

func DefaultAgentOptions() *AgentOptions {
	return &AgentOptions{
		ExecContext:   &tool.Context{},
		MaxToolRounds: 12,
	}
}

type AgentOption func(*AgentOptions)

func WithSystemPrompt(systemPrompt string) AgentOption {
	return func(o *AgentOptions) {
		o.SystemPrompt = systemPrompt
	}
}

func WithTools(tools ...*tool.Definition) AgentOption {
	return func(o *AgentOptions) {
		o.Tools = append(o.Tools, tools...)
	}
}

func WithExecContext(exec *tool.Context) AgentOption {
	return func(o *AgentOptions) {
		o.ExecContext = exec
	}
}

func WithModelProfile(profile model.ModelProfile) AgentOption {
	return func(o *AgentOptions) {
		o.ModelProfile = profile
	}
}

func WithHandler(handler Handler) AgentOption {
	return func(o *AgentOptions) {
		o.Handlers = append(o.Handlers, handler)
	}
}

func WithMaxToolRounds(rounds int) AgentOption {
	return func(o *AgentOptions) {
		o.MaxToolRounds = rounds
	}
}

// Agent binds a system prompt, a tool subset and model parameters to a
// provider. One agent serves one role in the swarm.
type Agent struct {
	name          string
	provider      model.ModelProvider
	modelName     string
	systemPrompt  string
	registry      *tool.Registry
	executor      *tool.Executor
	execContext   *tool.Context
	profile       model.ModelProfile
	maxToolRounds int

	mu            sync.Mutex
	state         State
	systemContext string
	handlers      []Handler
	stats         Stats
}

func NewAgent(name string, provider model.ModelProvider, modelName string, opts ...AgentOption) (*Agent, error) {
	options := DefaultAgentOptions()
	for _, opt := range opts {
		opt(options)
	}

	registry, err := tool.NewRegistry(options.Tools...)
	if err != nil {
		return nil, fmt.Errorf("agent %s: %w", name, err)
	}

	return &Agent{
		name:          name,
		provider:      provider,
		modelName:     modelName,
		systemPrompt:  options.SystemPrompt,
		registry:      registry,
		executor:      tool.NewExecutor(registry),
		execContext:   options.ExecContext,
		profile:       options.ModelProfile,
		maxToolRounds: options.MaxToolRounds,
		state:         StateIdle,
		handlers:      options.Handlers,
	}, nil
}

func (a *Agent) Name() string {
	return a.name
}

func (a *Agent) State() State {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state
}

func (a *Agent) Stats() Stats {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.stats
}

// SetSystemContext replaces the volatile part of the system prompt. It is
// appended to the configured prompt on the next request, so callers can
// ground the agent in current state before each turn.
func (a *Agent) SetSystemContext(context string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.systemContext = context
}

// Subscribe registers an additional event handler. Handlers registered
// while a turn is running receive events from the next turn on.
func (a *Agent) Subscribe(handler Handler) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.handlers = append(a.handlers, handler)
}
