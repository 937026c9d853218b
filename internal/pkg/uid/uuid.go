package uid

import "github.com/google/uuid"

// StringID generates string identifiers.
type StringID interface {
	Generate() string
}

// UUID generates RFC 9562 UUID strings. Version 7 IDs are time ordered, so
// IDs issued for task runs sort by submission.
type UUID struct{}

// NewUUID returns a UUID generator.
func NewUUID() *UUID {
	return &UUID{}
}

// Generate returns a new UUID string.
func (u *UUID) Generate() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString() // fallback: uuidV4
	}
	return id.String()
}

// Static always returns the same ID. Tests use it to assert on generated IDs.
type Static string

// Generate returns s.
func (s Static) Generate() string {
	return string(s)
}
