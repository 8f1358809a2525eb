// Package shorttermmemory tracks the state of a conversation run: the
// ordered message history, token usage, and fork/join support so a nested
// agent run can work on a copy of the thread and merge its turn back in.
package shorttermmemory
