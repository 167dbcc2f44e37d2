package utils

import (
	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
)

// NewSessionID returns a random identifier for one accepted connection.
func NewSessionID() string {
	return uuid.NewString()
}

// NewMessageID returns a ULID so message ids sort by creation time.
func NewMessageID() string {
	return ulid.Make().String()
}
