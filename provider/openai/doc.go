// Package openai implements provider.Provider on top of the OpenAI chat
// completions API, in both streaming and single-shot modes.
package openai
