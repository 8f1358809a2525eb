package provider

import (
	"context"

	"github.com/concierge-dev/concierge/internal/shorttermmemory"
	"github.com/concierge-dev/concierge/tool"
	"github.com/google/uuid"
)

// Provider is implemented by model backends. The returned channel is closed
// once the completion finishes or fails; errors arrive as Error events.
type Provider interface {
	ChatCompletion(context.Context, CompletionParams) (<-chan StreamEvent, error)
}

// CompletionParams carries everything a backend needs to run one completion.
type CompletionParams struct {
	// RunID identifies the run this completion belongs to.
	RunID uuid.UUID

	// Instructions is the rendered system prompt.
	Instructions string

	// Thread holds the conversation history for this run.
	Thread *shorttermmemory.Aggregator

	// Stream selects incremental chunk delivery over a single response.
	Stream bool

	// Model names the model to complete with; it also knows its provider.
	Model interface {
		Name() string
		Provider() Provider
	}

	// Tools lists the functions the model may call.
	Tools []tool.Definition

	_ struct{} // require keyed usage
}
