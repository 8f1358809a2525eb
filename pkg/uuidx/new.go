package uuidx

import "github.com/google/uuid"

// New returns a fresh v7 UUID. Run and turn identifiers are time-sortable on
// purpose, so that event logs order naturally.
func New() uuid.UUID {
	return uuid.Must(uuid.NewV7())
}

// NewString returns a fresh v7 UUID in string form.
func NewString() string {
	return New().String()
}
