// Package uuid provides time-ordered UUIDv7 identifiers.
// It wraps github.com/google/uuid and makes version 7 the default.
package uuid

import "github.com/google/uuid"

// UUID is an alias of github.com/google/uuid.UUID.
type UUID = uuid.UUID

// New returns a new UUIDv7. Panics if generation fails.
func New() UUID {
	id, err := uuid.NewV7()
	if err != nil {
		panic(err)
	}
	return id
}

// IsUUIDv7 reports whether id is a version 7 UUID.
func IsUUIDv7(id UUID) bool {
	return id.Version() == uuid.Version(7)
}
