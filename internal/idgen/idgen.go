// Package idgen names trace sessions whose document carries no unique_id.
package idgen

import (
	"fmt"

	nanoid "github.com/matoous/go-nanoid/v2"
)

// SessionPrefix is prepended to every generated session ID.
const SessionPrefix = "run-"

// Alphabet is the character set of the random part. It is lowercase so that
// IDs are safe in NATS subjects and URL paths alike.
const Alphabet = "abcdefghijklmnopqrstuvwxyz0123456789"

// Length is the number of random characters (excluding the prefix).
const Length = 12

// NewSessionID returns a fresh random session ID.
func NewSessionID() (string, error) {
	id, err := nanoid.Generate(Alphabet, Length)
	if err != nil {
		return "", fmt.Errorf("idgen: %w", err)
	}
	return SessionPrefix + id, nil
}

// SessionID returns recorded when the trace supplied one and a fresh ID otherwise.
func SessionID(recorded string) (string, error) {
	if recorded != "" {
		return recorded, nil
	}
	return NewSessionID()
}
