// Package executor drives agent runs: it feeds the conversation thread to
// the model provider, reacts to the event stream, dispatches tool calls by
// reflection, and follows agent transfers until an assistant reply settles
// the run's promise.
package executor
