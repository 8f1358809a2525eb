// Package api defines the interfaces the concierge runtime is built around.
package api

import (
	"github.com/concierge-dev/concierge/tool"
	"github.com/concierge-dev/concierge/types"
)

// Agent is the contract every conversational agent fulfills. Configuration
// is immutable after construction; only instruction rendering depends on
// runtime state.
type Agent interface {
	// Name returns the agent's unique identifier, used for logging and for
	// lookups in the registry.
	Name() string

	// Model returns the model this agent runs on.
	Model() Model

	// Tools returns the function definitions the agent may invoke.
	Tools() []tool.Definition

	// ParallelToolCalls reports whether the model may batch tool calls.
	ParallelToolCalls() bool

	// RenderInstructions produces the system prompt, substituting the given
	// context variables into the instruction template.
	RenderInstructions(types.ContextVars) (string, error)
}
