package event

import (
	"github.com/google/uuid"

	"github.com/weavely/weave/document"
)

// TreeUpdatedEvent carries the full tree after a mutation. Consumed by live
// preview renderers and other open views.
type TreeUpdatedEvent struct {
	SessionID uuid.UUID
	Revision  uint64
	Op        document.Op
	Elements  []document.Element
}

func (TreeUpdatedEvent) Event() {}

// PreviewPublishEvent carries a full tree pushed to a preview or live
// environment.
type PreviewPublishEvent struct {
	SessionID uuid.UUID
	Env       string
	Elements  []document.Element
}

func (PreviewPublishEvent) Event() {}

// TurnClassifiedEvent reports the classifier's category for a user turn. It
// arrives out-of-band and never gates the user-visible stream.
type TurnClassifiedEvent struct {
	SessionID uuid.UUID
	Category  string
	LeadAgent string
}

func (TurnClassifiedEvent) Event() {}

// TurnFailedEvent is the single terminal event for a failed turn. It carries
// no internal error details, those go to the log.
type TurnFailedEvent struct {
	SessionID uuid.UUID
	LeadAgent string
}

func (TurnFailedEvent) Event() {}
