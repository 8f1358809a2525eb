// Package tool turns plain Go functions into function-calling definitions a
// model can invoke. A Definition carries the function value plus the metadata
// the provider needs: a name, a description, and parameter names that replace
// the positional placeholders derived from the signature.
//
// Parameters of type context.Context and types.ContextVars are runtime
// plumbing; they are injected by the executor and never appear in the schema
// advertised to the model.
package tool
