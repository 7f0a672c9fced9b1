// Package chatid provides identifier helpers for the chat orchestration
// core. Every entity in the data model (§3) is keyed by an opaque 128-bit
// UUID; this package centralizes generation, parsing, and the anonymous-user
// sentinel so repositories and the orchestrator never hand-roll UUID logic.
package chatid

import (
	"github.com/google/uuid"
)

// ID is an opaque 128-bit identifier for any entity in the data model.
type ID = uuid.UUID

// Nil is the zero-value ID. It is the same value as AnonymousUser.
var Nil = uuid.Nil

// AnonymousUser is the fixed UUID denoting the implicit anonymous user when
// auth is disabled (spec §3, User invariant).
var AnonymousUser = uuid.Nil

// New generates a fresh random ID.
func New() ID {
	return uuid.New()
}

// Parse parses a canonical UUID string into an ID.
func Parse(s string) (ID, error) {
	return uuid.Parse(s)
}

// MustParse parses s or panics; intended for constants and tests.
func MustParse(s string) ID {
	return uuid.MustParse(s)
}

// IsAnonymous reports whether id is the anonymous-user sentinel.
func IsAnonymous(id ID) bool {
	return id == AnonymousUser
}
