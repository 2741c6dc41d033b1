package tool

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"reflect"

	"github.com/invopop/jsonschema"

	"github.com/weavely/weave/action"
)

// Call is a tool invocation as requested by the model: a registered tool
// name, a correlation id, and a raw input object.
type Call struct {
	ID    string
	Tool  string
	Input json.RawMessage
}

// Executor validates tool calls against their declared schema and invokes
// the handler with the shared execution context. The executor itself is
// side-effect-free plumbing; side effects belong to the individual tools.
type Executor struct {
	registry *Registry
}

func NewExecutor(registry *Registry) *Executor {
	return &Executor{registry: registry}
}

// Execute runs one tool call. Input failing the schema yields a
// *ValidationError and the handler is not reached; handler errors and panics
// are normalized to *ExecutionError and never escape into the caller's
// streaming loop.
func (e *Executor) Execute(ctx context.Context, exec *Context, call Call) (result action.Action, err error) {
	definition, ok := e.registry.Get(call.Tool)
	if !ok {
		return nil, &ExecutionError{Tool: call.Tool, Err: ErrNotRegistered}
	}

	if err := validateInput(definition, call.Input); err != nil {
		return nil, err
	}

	defer func() {
		if r := recover(); r != nil {
			result = nil
			err = &ExecutionError{Tool: call.Tool, Err: fmt.Errorf("panic: %v", r)}
		}
	}()

	result, err = definition.handler(ctx, exec, call.Input)
	if err != nil {
		return nil, &ExecutionError{Tool: call.Tool, Err: err}
	}
	return result, nil
}

// validateInput checks the raw input object against the tool's reflected
// schema: required fields, declared property types, and enumerations.
func validateInput(definition *Definition, raw json.RawMessage) error {
	input := map[string]any{}
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &input); err != nil {
			return &ValidationError{Tool: definition.name, Reason: "input is not a JSON object"}
		}
	}

	for _, field := range definition.reflected.Required {
		if _, ok := input[field]; !ok {
			return &ValidationError{Tool: definition.name, Field: field, Reason: "required field is missing"}
		}
	}

	if definition.reflected.Properties == nil {
		return nil
	}

	for field, value := range input {
		propSchema, ok := definition.reflected.Properties.Get(field)
		if !ok {
			return &ValidationError{Tool: definition.name, Field: field, Reason: "field is not part of the tool schema"}
		}

		if err := checkValue(definition.name, field, propSchema, value); err != nil {
			return err
		}
	}

	return nil
}

func checkValue(toolName, field string, schema *jsonschema.Schema, value any) error {
	if !matchesType(schema.Type, value) {
		return &ValidationError{
			Tool:   toolName,
			Field:  field,
			Reason: fmt.Sprintf("expected type %s", schema.Type),
		}
	}

	if len(schema.Enum) > 0 {
		allowed := false
		for _, candidate := range schema.Enum {
			if reflect.DeepEqual(candidate, value) {
				allowed = true
				break
			}
		}
		if !allowed {
			return &ValidationError{
				Tool:   toolName,
				Field:  field,
				Reason: fmt.Sprintf("value %v is not one of the allowed values", value),
			}
		}
	}

	return nil
}

func matchesType(schemaType string, value any) bool {
	switch schemaType {
	case "string":
		_, ok := value.(string)
		return ok
	case "integer":
		f, ok := value.(float64)
		return ok && f == math.Trunc(f)
	case "number":
		_, ok := value.(float64)
		return ok
	case "boolean":
		_, ok := value.(bool)
		return ok
	case "array":
		_, ok := value.([]any)
		return ok
	case "object":
		_, ok := value.(map[string]any)
		return ok
	default:
		return true
	}
}
