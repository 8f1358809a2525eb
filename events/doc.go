// Package events defines the typed events that flow out of a run and the
// Hook interface consumers implement to observe them. Events wrap the
// provider's stream events with sender tracking and a JSON codec so they can
// travel over a broker.
//
// Event hierarchy:
//   - Event: marker interface for everything publishable
//     ├── Delim: stream boundary markers
//     ├── Chunk[T]: incremental response fragments
//     ├── Request[T]: incoming messages (user prompts, tool responses)
//     ├── Response[T]: completed messages
//     ├── Result[T]: final run results
//     └── Error: failures with run context attached
package events
