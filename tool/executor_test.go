package tool_test

import (
	"context"
	"encoding/json"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/weavely/weave/action"
	"github.com/weavely/weave/tool"
)

type paintInput struct {
	Target string `json:"target" jsonschema:"required"`
	Color  string `json:"color" jsonschema:"required,enum=red,enum=green,enum=blue"`
	Coats  int    `json:"coats"`
}

func newPaintTool(calls *atomic.Int64) *tool.Definition {
	return tool.NewTool("paint", "Paint a component.",
		func(ctx context.Context, exec *tool.Context, input paintInput) (action.Action, error) {
			calls.Add(1)
			return action.UpdateComponent{
				ID:    input.Target,
				Props: map[string]any{"color": input.Color},
			}, nil
		})
}

func execute(t *testing.T, def *tool.Definition, input string) (action.Action, error) {
	t.Helper()
	registry, err := tool.NewRegistry(def)
	if err != nil {
		t.Fatal(err)
	}
	return tool.NewExecutor(registry).Execute(context.Background(), &tool.Context{}, tool.Call{
		ID:    "call-1",
		Tool:  def.Name(),
		Input: json.RawMessage(input),
	})
}

func TestExecutor_ValidCall(t *testing.T) {
	t.Parallel()

	var calls atomic.Int64
	act, err := execute(t, newPaintTool(&calls), `{"target":"hero-1","color":"red","coats":2}`)
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}

	update, ok := act.(action.UpdateComponent)
	if !ok {
		t.Fatalf("got %T, want UpdateComponent", act)
	}
	if update.ID != "hero-1" || update.Props["color"] != "red" {
		t.Errorf("unexpected action: %+v", update)
	}
	if calls.Load() != 1 {
		t.Errorf("handler called %d times, want 1", calls.Load())
	}
}

func TestExecutor_ValidationKeepsHandlerUntouched(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name  string
		input string
		field string
	}{
		{"missing required", `{"color":"red"}`, "target"},
		{"wrong type", `{"target":42,"color":"red"}`, "target"},
		{"enum violation", `{"target":"hero-1","color":"purple"}`, "color"},
		{"unknown field", `{"target":"hero-1","color":"red","sheen":"matte"}`, "sheen"},
		{"fractional integer", `{"target":"hero-1","color":"red","coats":1.5}`, "coats"},
		{"not an object", `[1,2,3]`, ""},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			var calls atomic.Int64
			_, err := execute(t, newPaintTool(&calls), tc.input)

			var validationErr *tool.ValidationError
			if !errors.As(err, &validationErr) {
				t.Fatalf("expected ValidationError, got %v", err)
			}
			if tc.field != "" && validationErr.Field != tc.field {
				t.Errorf("error field = %q, want %q", validationErr.Field, tc.field)
			}
			if calls.Load() != 0 {
				t.Errorf("handler was called %d times on invalid input", calls.Load())
			}
		})
	}
}

func TestExecutor_UnknownTool(t *testing.T) {
	t.Parallel()

	registry, err := tool.NewRegistry()
	if err != nil {
		t.Fatal(err)
	}

	_, err = tool.NewExecutor(registry).Execute(context.Background(), &tool.Context{}, tool.Call{
		Tool:  "ghost",
		Input: json.RawMessage(`{}`),
	})
	if !errors.Is(err, tool.ErrNotRegistered) {
		t.Errorf("expected ErrNotRegistered, got %v", err)
	}
}

func TestExecutor_HandlerErrorWrapped(t *testing.T) {
	t.Parallel()

	failing := tool.NewTool("fail", "Always fails.",
		func(ctx context.Context, exec *tool.Context, input struct{}) (action.Action, error) {
			return nil, errors.New("boom")
		})

	_, err := execute(t, failing, `{}`)

	var execErr *tool.ExecutionError
	if !errors.As(err, &execErr) {
		t.Fatalf("expected ExecutionError, got %v", err)
	}
	if execErr.Tool != "fail" {
		t.Errorf("error tool = %q, want fail", execErr.Tool)
	}
}

func TestExecutor_PanicRecovered(t *testing.T) {
	t.Parallel()

	panicking := tool.NewTool("explode", "Always panics.",
		func(ctx context.Context, exec *tool.Context, input struct{}) (action.Action, error) {
			panic("kaboom")
		})

	act, err := execute(t, panicking, `{}`)

	var execErr *tool.ExecutionError
	if !errors.As(err, &execErr) {
		t.Fatalf("expected ExecutionError, got %v", err)
	}
	if act != nil {
		t.Errorf("expected nil action after panic, got %v", act)
	}
}

func TestRegistry_DuplicateName(t *testing.T) {
	t.Parallel()

	def := tool.NewTool("twin", "First.",
		func(ctx context.Context, exec *tool.Context, input struct{}) (action.Action, error) {
			return action.Note{}, nil
		})

	if _, err := tool.NewRegistry(def, def); err == nil {
		t.Error("expected error registering duplicate tool name")
	}
}

func TestRegistry_ListSorted(t *testing.T) {
	t.Parallel()

	noop := func(ctx context.Context, exec *tool.Context, input struct{}) (action.Action, error) {
		return action.Note{}, nil
	}
	registry, err := tool.NewRegistry(
		tool.NewTool("zebra", "z", noop),
		tool.NewTool("apple", "a", noop),
		tool.NewTool("mango", "m", noop),
	)
	if err != nil {
		t.Fatal(err)
	}

	list := registry.List()
	want := []string{"apple", "mango", "zebra"}
	for i, def := range list {
		if def.Name() != want[i] {
			t.Errorf("List()[%d] = %s, want %s", i, def.Name(), want[i])
		}
	}
}
