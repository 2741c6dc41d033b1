package analytics

import (
	"github.com/posthog/posthog-go"
)

func EmitTurnRouted(client posthog.Client, sessionID string, leadAgent string, inputLength int) {
	if client == nil {
		return
	}
	client.Enqueue(posthog.Capture{
		DistinctId: "user",
		Event:      "turn_routed",
		Properties: map[string]interface{}{
			"session_id":   sessionID,
			"lead_agent":   leadAgent,
			"input_length": inputLength,
		},
	})
}

func EmitTurnClassified(client posthog.Client, sessionID string, category string, leadAgent string) {
	if client == nil {
		return
	}
	client.Enqueue(posthog.Capture{
		DistinctId: "user",
		Event:      "turn_classified",
		Properties: map[string]interface{}{
			"session_id": sessionID,
			"category":   category,
			"lead_agent": leadAgent,
		},
	})
}

func EmitTreePublished(client posthog.Client, sessionID string, env string, elementCount int) {
	if client == nil {
		return
	}
	client.Enqueue(posthog.Capture{
		DistinctId: "user",
		Event:      "tree_published",
		Properties: map[string]interface{}{
			"session_id":    sessionID,
			"env":           env,
			"element_count": elementCount,
		},
	})
}
