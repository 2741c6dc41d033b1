package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/posthog/posthog-go"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/afero"
	"golang.org/x/sync/errgroup"

	"github.com/weavely/weave/agent"
	"github.com/weavely/weave/document"
	"github.com/weavely/weave/event"
	"github.com/weavely/weave/memory"
	"github.com/weavely/weave/model"
	"github.com/weavely/weave/screenshot"
	"github.com/weavely/weave/secret"
	"github.com/weavely/weave/swarm"
	"github.com/weavely/weave/tool"
)

const (
	leadModel       = "claude-3-7-sonnet-20250219"
	classifierModel = "claude-3-5-haiku-20241022"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		log.Fatalf("weave: %v", err)
	}
}

func run(ctx context.Context) error {
	fs := afero.NewOsFs()
	dataDir := dataDir()

	secrets := secrets(fs, dataDir)
	apiKey, err := secrets.Get(secret.APIKeySecret("anthropic"))
	if err != nil {
		return fmt.Errorf("no anthropic api key configured: %w", err)
	}

	metrics := prometheus.NewRegistry()

	provider, err := model.NewAnthropicProvider(apiKey, model.WithMetrics(metrics))
	if err != nil {
		return fmt.Errorf("creating anthropic provider: %w", err)
	}

	memoryLog, err := memory.Open(filepath.Join(dataDir, "memory.db"))
	if err != nil {
		return err
	}
	defer memoryLog.Close()

	bus := event.NewBus(metrics)
	defer bus.Close()

	cache, err := document.NewSnapshotCache(fs, filepath.Join(dataDir, "snapshots"))
	if err != nil {
		return err
	}

	store := document.NewStore(
		document.WithSubscriber(cache.Store),
		document.WithSubscriber(func(ctx context.Context, snapshot document.Snapshot) {
			event.Publish(bus, event.TreeUpdatedEvent{
				SessionID: snapshot.SessionID,
				Revision:  snapshot.Revision,
				Op:        snapshot.Op,
				Elements:  snapshot.Elements,
			})
		}),
	)

	execContext := &tool.Context{
		Store:    memoryLog,
		Document: store,
	}
	if captureURL := os.Getenv("WEAVE_SCREENSHOT_URL"); captureURL != "" {
		execContext.Screenshot = screenshot.NewClient(captureURL)
	}

	agents, classifier, err := buildAgents(provider, execContext)
	if err != nil {
		return err
	}

	var analyticsClient posthog.Client
	if key := os.Getenv("WEAVE_POSTHOG_KEY"); key != "" {
		analyticsClient, err = posthog.NewWithConfig(key, posthog.Config{})
		if err != nil {
			slog.Warn("analytics disabled", "error", err)
		} else {
			defer analyticsClient.Close()
		}
	}

	orchestrator, err := swarm.NewSwarm(store, classifier, agents,
		swarm.WithMemory(memoryLog),
		swarm.WithBus(bus),
		swarm.WithAnalytics(analyticsClient),
	)
	if err != nil {
		return err
	}

	group, ctx := errgroup.WithContext(ctx)
	group.Go(func() error {
		return repl(ctx, orchestrator)
	})
	return group.Wait()
}

func buildAgents(provider model.ModelProvider, execContext *tool.Context) (map[string]*agent.Agent, *agent.Agent, error) {
	stream := agent.WithHandler(func(ctx context.Context, ev agent.Event) {
		if ev.Kind == agent.EventContentDelta {
			fmt.Print(ev.Delta)
		}
	})

	builderTools := tool.BuilderTools()
	if execContext.Screenshot != nil {
		builderTools = append(builderTools, tool.ScreenshotTool())
	}

	builder, err := agent.NewAgent(swarm.RoleBuilder, provider, leadModel,
		agent.WithSystemPrompt(swarm.BuilderSystemPrompt),
		agent.WithTools(builderTools...),
		agent.WithExecContext(execContext),
		stream,
	)
	if err != nil {
		return nil, nil, err
	}

	design, err := agent.NewAgent(swarm.RoleDesign, provider, leadModel,
		agent.WithSystemPrompt(swarm.DesignSystemPrompt),
		agent.WithTools(tool.DesignTools()...),
		agent.WithExecContext(execContext),
		stream,
	)
	if err != nil {
		return nil, nil, err
	}

	copywriter, err := agent.NewAgent(swarm.RoleCopy, provider, leadModel,
		agent.WithSystemPrompt(swarm.CopySystemPrompt),
		agent.WithTools(tool.CopyTools()...),
		agent.WithExecContext(execContext),
		stream,
	)
	if err != nil {
		return nil, nil, err
	}

	research, err := agent.NewAgent(swarm.RoleResearch, provider, leadModel,
		agent.WithSystemPrompt(swarm.ResearchSystemPrompt),
		agent.WithTools(tool.ResearchTools()...),
		agent.WithExecContext(execContext),
		stream,
	)
	if err != nil {
		return nil, nil, err
	}

	classifier, err := agent.NewAgent("classifier", provider, classifierModel,
		agent.WithSystemPrompt(swarm.ClassifierSystemPrompt),
		agent.WithModelProfile(&model.AnthropicModelProfile{MaxTokens: 16, Temperature: 0}),
	)
	if err != nil {
		return nil, nil, err
	}

	agents := map[string]*agent.Agent{
		swarm.RoleBuilder:  builder,
		swarm.RoleDesign:   design,
		swarm.RoleCopy:     copywriter,
		swarm.RoleResearch: research,
	}
	return agents, classifier, nil
}

func repl(ctx context.Context, orchestrator *swarm.Swarm) error {
	scanner := bufio.NewScanner(os.Stdin)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for {
		fmt.Print("\n> ")
		if !scanner.Scan() {
			return scanner.Err()
		}

		input := strings.TrimSpace(scanner.Text())
		if input == "" {
			continue
		}
		if input == "exit" || input == "quit" {
			return nil
		}

		result, err := orchestrator.RunTurn(ctx, input)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			fmt.Println("\nSomething went wrong, please try again.")
			continue
		}

		fmt.Println()
		if result.Report != nil {
			fmt.Printf("\nDiagnosis: %s\n", result.Report.Summary)
			for _, finding := range result.Report.Findings {
				fmt.Printf("  - %s\n", finding)
			}
		}
	}
}

func secrets(fs afero.Fs, dataDir string) secret.Provider {
	providers := []secret.Provider{
		secret.NewKeyringProvider(),
		secret.NewEnvProvider(),
	}
	if fileProvider, err := secret.NewFileProvider(filepath.Join(dataDir, "secrets"), fs); err == nil {
		providers = append(providers, fileProvider)
	}
	return secret.NewChainProvider(providers...)
}

func dataDir() string {
	if dir := os.Getenv("WEAVE_DATA_DIR"); dir != "" {
		return dir
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, ".weave")
}
