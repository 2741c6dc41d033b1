// Package action defines the closed set of actions a tool execution can
// produce. Actions are the sole channel by which agent reasoning affects the
// document tree; the tree never calls back into an agent.
package action

import (
	"encoding/json"
	"fmt"

	"github.com/weavely/weave/document"
)

type Kind string

const (
	KindAddComponent       Kind = "add_component"
	KindUpdateComponent    Kind = "update_component"
	KindRemoveComponent    Kind = "remove_component"
	KindMoveComponent      Kind = "move_component"
	KindDuplicateComponent Kind = "duplicate_component"
	KindPublish            Kind = "publish"
	KindDiagnoseReport     Kind = "diagnose_report"
	KindCaptureScreenshot  Kind = "capture_screenshot"
	KindNote               Kind = "note"
)

// Action is the normalized result of a tool execution. The set of
// implementations is closed; consumers dispatch exhaustively on the concrete
// type so a new kind is a compile-time-checked change at the dispatch site.
type Action interface {
	Kind() Kind
}

// Mutates reports whether the action kind changes the document tree.
// Tree-mutating actions trigger an automatic downstream publish.
func Mutates(a Action) bool {
	switch a.(type) {
	case AddComponent, UpdateComponent, RemoveComponent, MoveComponent, DuplicateComponent:
		return true
	default:
		return false
	}
}

type AddComponent struct {
	Element  document.Element `json:"element"`
	ParentID string           `json:"parent_id,omitempty"`
	Index    int              `json:"index"`
}

func (AddComponent) Kind() Kind { return KindAddComponent }

type UpdateComponent struct {
	ID    string         `json:"id"`
	Props map[string]any `json:"props"`
}

func (UpdateComponent) Kind() Kind { return KindUpdateComponent }

type RemoveComponent struct {
	ID string `json:"id"`
}

func (RemoveComponent) Kind() Kind { return KindRemoveComponent }

type MoveComponent struct {
	ID             string `json:"id"`
	TargetParentID string `json:"target_parent_id,omitempty"`
	TargetIndex    int    `json:"target_index"`
}

func (MoveComponent) Kind() Kind { return KindMoveComponent }

type DuplicateComponent struct {
	ID string `json:"id"`
}

func (DuplicateComponent) Kind() Kind { return KindDuplicateComponent }

type Publish struct {
	Env string `json:"env"`
}

func (Publish) Kind() Kind { return KindPublish }

type DiagnoseReport struct {
	Summary  string   `json:"summary"`
	Findings []string `json:"findings,omitempty"`
}

func (DiagnoseReport) Kind() Kind { return KindDiagnoseReport }

// CaptureScreenshot carries the captured image so the orchestrator can
// re-inject it as a new user turn for visual reconciliation.
type CaptureScreenshot struct {
	URL       string `json:"url"`
	Width     int    `json:"width"`
	Height    int    `json:"height"`
	MediaType string `json:"media_type"`
	Data      string `json:"data"`
}

func (CaptureScreenshot) Kind() Kind { return KindCaptureScreenshot }

type Note struct {
	Text string `json:"text"`
}

func (Note) Kind() Kind { return KindNote }

// Envelope is the wire form of an action: a kind tag plus kind-specific data.
type Envelope struct {
	Kind Kind            `json:"kind"`
	Data json.RawMessage `json:"data"`
}

func Encode(a Action) ([]byte, error) {
	data, err := json.Marshal(a)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Envelope{Kind: a.Kind(), Data: data})
}

// Decode parses an action envelope. Unknown kinds are an error, never
// silently dropped.
func Decode(raw []byte) (Action, error) {
	var envelope Envelope
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return nil, fmt.Errorf("invalid action envelope: %w", err)
	}

	switch envelope.Kind {
	case KindAddComponent:
		return decodeAs[AddComponent](envelope)
	case KindUpdateComponent:
		return decodeAs[UpdateComponent](envelope)
	case KindRemoveComponent:
		return decodeAs[RemoveComponent](envelope)
	case KindMoveComponent:
		return decodeAs[MoveComponent](envelope)
	case KindDuplicateComponent:
		return decodeAs[DuplicateComponent](envelope)
	case KindPublish:
		return decodeAs[Publish](envelope)
	case KindDiagnoseReport:
		return decodeAs[DiagnoseReport](envelope)
	case KindCaptureScreenshot:
		return decodeAs[CaptureScreenshot](envelope)
	case KindNote:
		return decodeAs[Note](envelope)
	default:
		return nil, fmt.Errorf("unknown action kind: %q", envelope.Kind)
	}
}

func decodeAs[T Action](envelope Envelope) (Action, error) {
	var a T
	if err := json.Unmarshal(envelope.Data, &a); err != nil {
		return nil, fmt.Errorf("invalid %s action data: %w", envelope.Kind, err)
	}
	return a, nil
}
