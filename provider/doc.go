// Package provider abstracts the model backends the concierge can talk to.
// A Provider turns a completion request into a stream of typed events:
// delimiters marking stream boundaries, chunks while streaming, a final
// response, or an error. The openai subpackage is the only implementation.
package provider
