package tool

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/invopop/jsonschema"

	"github.com/weavely/weave/action"
)

// Handler executes a tool with validated, typed input and the shared
// execution context. It returns the action the invocation produced.
type Handler[T any] func(ctx context.Context, exec *Context, input T) (action.Action, error)

type ToolOptions struct {
	Readonly bool
}

func DefaultToolOptions() *ToolOptions {
	return &ToolOptions{
		Readonly: false,
	}
}

type ToolOption func(*ToolOptions)

// WithReadonly marks a tool as not performing writes against the shared
// data store.
func WithReadonly(readonly bool) ToolOption {
	return func(o *ToolOptions) {
		o.Readonly = readonly
	}
}

// Definition is a declared tool: name, description, input schema derived
// from the handler's input type, and the executor function. Definitions are
// stateless; whichever agent lists one owns its use.
type Definition struct {
	name        string
	description string
	schema      map[string]any
	reflected   *jsonschema.Schema
	readonly    bool
	handler     func(ctx context.Context, exec *Context, input json.RawMessage) (action.Action, error)
}

func (d *Definition) Name() string {
	return d.name
}

func (d *Definition) Description() string {
	return d.description
}

// Schema returns the JSON schema describing the tool's input object.
func (d *Definition) Schema() any {
	return d.schema
}

func (d *Definition) Readonly() bool {
	return d.readonly
}

// NewTool registers a typed handler under name. The input schema (property
// types, required fields, enumerations) is reflected from T.
func NewTool[T any](name, description string, handler Handler[T], opts ...ToolOption) *Definition {
	reflector := jsonschema.Reflector{
		AllowAdditionalProperties: false,
		DoNotReference:            true,
	}

	options := DefaultToolOptions()
	for _, opt := range opts {
		opt(options)
	}

	var toolInput T
	inputSchema := reflector.Reflect(toolInput)
	paramSchema := map[string]any{
		"type":       "object",
		"properties": inputSchema.Properties,
	}

	if len(inputSchema.Required) > 0 {
		paramSchema["required"] = inputSchema.Required
	}

	genericHandler := func(ctx context.Context, exec *Context, input json.RawMessage) (action.Action, error) {
		var toolInput T
		if err := json.Unmarshal(input, &toolInput); err != nil {
			return nil, fmt.Errorf("failed to decode tool input: %w", err)
		}
		return handler(ctx, exec, toolInput)
	}

	return &Definition{
		name:        name,
		description: description,
		schema:      paramSchema,
		reflected:   inputSchema,
		readonly:    options.Readonly,
		handler:     genericHandler,
	}
}
