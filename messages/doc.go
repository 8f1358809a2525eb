// Package messages defines the typed conversation turns exchanged between
// the user, agents and tools.
//
// Every turn is a Message[T] envelope carrying run/turn identifiers, the
// sender and a payload. Payloads are a closed set (instructions, user prompt,
// assistant reply, tool call, tool response, retry) sealed by the
// ModelMessage interface, with Request and Response refining the direction a
// payload travels in. Content may be a plain string or typed parts (text,
// image, refusal).
//
// The JSON form is flattened: payload fields live at the top level next to
// the envelope fields, discriminated by a "type" field. That keeps events
// readable on a broker subject and cheap to route with gjson.
package messages
