// Package slogx provides small helpers for structured logging attributes.
package slogx

import (
	"fmt"
	"log/slog"
)

// Error returns an "error" attribute holding the error's message.
func Error(err error) slog.Attr {
	return slog.String("error", err.Error())
}

// Stringer returns an attribute holding the value's String() representation.
func Stringer(key string, value fmt.Stringer) slog.Attr {
	return slog.String(key, value.String())
}
