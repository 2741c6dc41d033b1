package tool

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/weavely/weave/action"
	"github.com/weavely/weave/document"
)

type addComponentInput struct {
	Type     string         `json:"type" jsonschema:"required,enum=container,enum=hero_section,enum=text,enum=link,enum=image,enum=video,enum=form,enum=input,enum=button,enum=two_columns,enum=three_columns,enum=embed" jsonschema_description:"Component type to add"`
	ParentID string         `json:"parent_id" jsonschema_description:"ID of the container to insert into. Empty for the page root."`
	Index    int            `json:"index" jsonschema_description:"Position among the parent's children. Out-of-range appends."`
	Props    map[string]any `json:"props" jsonschema_description:"Initial properties such as text, src, href or style values"`
}

type updateComponentInput struct {
	ID    string         `json:"id" jsonschema:"required" jsonschema_description:"ID of the component to update"`
	Props map[string]any `json:"props" jsonschema:"required" jsonschema_description:"Properties to merge into the component. Existing keys not listed are kept."`
}

type removeComponentInput struct {
	ID string `json:"id" jsonschema:"required" jsonschema_description:"ID of the component to remove, including its children"`
}

type moveComponentInput struct {
	ID             string `json:"id" jsonschema:"required" jsonschema_description:"ID of the component to move"`
	TargetParentID string `json:"target_parent_id" jsonschema_description:"ID of the new parent container. Empty for the page root."`
	TargetIndex    int    `json:"target_index" jsonschema_description:"Position among the new parent's children"`
}

type duplicateComponentInput struct {
	ID string `json:"id" jsonschema:"required" jsonschema_description:"ID of the component to duplicate"`
}

type publishInput struct {
	Env string `json:"env" jsonschema:"required,enum=dev,enum=live" jsonschema_description:"Environment to publish the current page to"`
}

type getTreeInput struct {
	ID string `json:"id" jsonschema_description:"Narrow the result to a single component and its children. Empty returns the whole page."`
}

type diagnoseInput struct {
	Summary  string   `json:"summary" jsonschema:"required" jsonschema_description:"One paragraph verdict on the page state"`
	Findings []string `json:"findings" jsonschema_description:"Individual issues found, one per entry"`
}

// BuilderTools returns the tool set for agents that construct and rearrange
// the page tree.
func BuilderTools() []*Definition {
	return []*Definition{
		NewTool("add_component",
			"Add a new component to the page. Returns the action that will insert it.",
			func(ctx context.Context, exec *Context, input addComponentInput) (action.Action, error) {
				typ := document.ElementType(input.Type)
				if !typ.Valid() {
					return nil, fmt.Errorf("unknown component type %q", input.Type)
				}
				return action.AddComponent{
					Element:  document.Element{Type: typ, Props: input.Props},
					ParentID: input.ParentID,
					Index:    input.Index,
				}, nil
			}),
		NewTool("update_component",
			"Update properties of an existing component. Properties are merged, not replaced.",
			func(ctx context.Context, exec *Context, input updateComponentInput) (action.Action, error) {
				if _, ok := exec.Document.Find(input.ID); !ok {
					return nil, fmt.Errorf("component %q not found", input.ID)
				}
				return action.UpdateComponent{ID: input.ID, Props: input.Props}, nil
			}),
		NewTool("remove_component",
			"Remove a component and its children from the page.",
			func(ctx context.Context, exec *Context, input removeComponentInput) (action.Action, error) {
				if _, ok := exec.Document.Find(input.ID); !ok {
					return nil, fmt.Errorf("component %q not found", input.ID)
				}
				return action.RemoveComponent{ID: input.ID}, nil
			}),
		NewTool("move_component",
			"Move a component to a new parent or position. The component keeps its ID.",
			func(ctx context.Context, exec *Context, input moveComponentInput) (action.Action, error) {
				if _, ok := exec.Document.Find(input.ID); !ok {
					return nil, fmt.Errorf("component %q not found", input.ID)
				}
				return action.MoveComponent{
					ID:             input.ID,
					TargetParentID: input.TargetParentID,
					TargetIndex:    input.TargetIndex,
				}, nil
			}),
		NewTool("duplicate_component",
			"Duplicate a component and its children. The copy is placed right after the original.",
			func(ctx context.Context, exec *Context, input duplicateComponentInput) (action.Action, error) {
				if _, ok := exec.Document.Find(input.ID); !ok {
					return nil, fmt.Errorf("component %q not found", input.ID)
				}
				return action.DuplicateComponent{ID: input.ID}, nil
			}),
		NewTool("publish",
			"Publish the current page so the user can see it.",
			func(ctx context.Context, exec *Context, input publishInput) (action.Action, error) {
				return action.Publish{Env: input.Env}, nil
			}),
		NewTool("get_tree",
			"Read the current page tree as JSON. Use this to check IDs and structure before editing.",
			func(ctx context.Context, exec *Context, input getTreeInput) (action.Action, error) {
				elements := exec.Document.Elements()
				if input.ID != "" {
					element, ok := exec.Document.Find(input.ID)
					if !ok {
						return nil, fmt.Errorf("component %q not found", input.ID)
					}
					elements = []document.Element{element}
				}
				data, err := json.Marshal(elements)
				if err != nil {
					return nil, fmt.Errorf("encoding tree: %w", err)
				}
				return action.Note{Text: string(data)}, nil
			},
			WithReadonly(true)),
		NewTool("diagnose",
			"Report the result of a page audit back to the user.",
			func(ctx context.Context, exec *Context, input diagnoseInput) (action.Action, error) {
				return action.DiagnoseReport{Summary: input.Summary, Findings: input.Findings}, nil
			},
			WithReadonly(true)),
	}
}
