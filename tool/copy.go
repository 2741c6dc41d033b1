package tool

import (
	"context"
	"fmt"

	"github.com/weavely/weave/action"
	"github.com/weavely/weave/document"
)

type setTextInput struct {
	ID   string `json:"id" jsonschema:"required" jsonschema_description:"ID of the text, link or button component"`
	Text string `json:"text" jsonschema:"required" jsonschema_description:"Replacement copy for the component"`
}

type setStyleInput struct {
	ID    string         `json:"id" jsonschema:"required" jsonschema_description:"ID of the component to restyle"`
	Style map[string]any `json:"style" jsonschema:"required" jsonschema_description:"Style values to merge, e.g. backgroundColor, fontSize, padding"`
}

var textBearing = map[document.ElementType]bool{
	document.ElementTypeText:   true,
	document.ElementTypeLink:   true,
	document.ElementTypeButton: true,
	document.ElementTypeInput:  true,
}

// DesignTools returns the tool set for agents that adjust copy and styling
// without touching the page structure.
func DesignTools() []*Definition {
	return []*Definition{
		setTextTool(),
		setStyleTool(),
	}
}

// CopyTools returns the tool set for agents that rewrite copy only. No
// styling access.
func CopyTools() []*Definition {
	return []*Definition{
		setTextTool(),
	}
}

func setTextTool() *Definition {
	return NewTool("set_text",
		"Replace the text of a text, link, button or input component.",
		func(ctx context.Context, exec *Context, input setTextInput) (action.Action, error) {
			element, ok := exec.Document.Find(input.ID)
			if !ok {
				return nil, fmt.Errorf("component %q not found", input.ID)
			}
			if !textBearing[element.Type] {
				return nil, fmt.Errorf("component %q has type %q which carries no text", input.ID, element.Type)
			}
			return action.UpdateComponent{ID: input.ID, Props: map[string]any{"text": input.Text}}, nil
		})
}

func setStyleTool() *Definition {
	return NewTool("set_style",
		"Merge style values into a component. Unlisted style keys are kept.",
		func(ctx context.Context, exec *Context, input setStyleInput) (action.Action, error) {
			element, ok := exec.Document.Find(input.ID)
			if !ok {
				return nil, fmt.Errorf("component %q not found", input.ID)
			}
			style, _ := element.Props["style"].(map[string]any)
			merged := make(map[string]any, len(style)+len(input.Style))
			for k, v := range style {
				merged[k] = v
			}
			for k, v := range input.Style {
				merged[k] = v
			}
			return action.UpdateComponent{ID: input.ID, Props: map[string]any{"style": merged}}, nil
		})
}
