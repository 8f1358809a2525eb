// Package types holds core type definitions shared across the concierge runtime.
package types

import json "github.com/goccy/go-json"

// ContextVars is a key-value store of variables used when rendering agent
// instructions. Values flow from the caller into the run and can be amended
// by tool results during a conversation turn.
//
// ContextVars is a plain map and is not safe for concurrent modification.
type ContextVars map[string]any

// String returns the JSON representation of the variables, or the empty
// string if they cannot be marshaled.
func (cv ContextVars) String() string {
	jsonData, err := json.Marshal(cv)
	if err != nil {
		return ""
	}
	return string(jsonData)
}
