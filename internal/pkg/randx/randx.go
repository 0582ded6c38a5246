/*
Package randx provides generation and validation helpers for the unique
identifiers used across the system: user ids, chat ids, message ids, and
connection handles.
*/
package randx

import (
	"github.com/google/uuid"
)

// UserID generates a UUID v4 string identifying a new user account.
func UserID() string {
	return uuid.New().String()
}

// ChatID generates a UUID v4 string identifying a new chat room.
func ChatID() string {
	return uuid.New().String()
}

// MessageID generates a UUID v4 string identifying a message.
func MessageID() string {
	return uuid.New().String()
}

// ConnectionID generates an opaque handle for a live websocket connection.
func ConnectionID() string {
	return uuid.New().String()
}

// IsValidID reports whether s parses as a UUID, the shape every persistent
// identifier in this system has.
func IsValidID(s string) bool {
	_, err := uuid.Parse(s)
	return err == nil
}
