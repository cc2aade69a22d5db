package types

import (
	"github.com/google/uuid"
)

// ProjectID identifies a project, the ownership boundary every segment and
// event belongs to. String alias enables type safety while keeping JSON
// string serialization.
type ProjectID string

// SegmentID represents a UUIDv7 segment identifier.
// UUIDv7 time-ordering ensures sequential IDs cluster in B-tree indexes.
type SegmentID string

// EventID represents a UUIDv7 event identifier.
type EventID string

// NewProjectID generates a UUIDv7 project identifier.
// Panics on clock regression (uuid.Must); acceptable for ID generation.
func NewProjectID() ProjectID {
	return ProjectID(uuid.Must(uuid.NewV7()).String())
}

// NewSegmentID generates a UUIDv7 segment identifier.
// Panics on clock regression (uuid.Must); acceptable for ID generation.
func NewSegmentID() SegmentID {
	return SegmentID(uuid.Must(uuid.NewV7()).String())
}

// NewEventID generates a UUIDv7 event identifier.
// Time-ordered IDs keep sequential inserts clustered in B-tree pages.
func NewEventID() EventID {
	return EventID(uuid.Must(uuid.NewV7()).String())
}

// ParseSegmentID validates and converts a string to SegmentID.
// Rejects malformed UUIDs to prevent invalid IDs from entering the system.
func ParseSegmentID(s string) (SegmentID, error) {
	_, err := uuid.Parse(s)
	if err != nil {
		return "", err
	}
	return SegmentID(s), nil
}

// ParseProjectID validates and converts a string to ProjectID.
func ParseProjectID(s string) (ProjectID, error) {
	_, err := uuid.Parse(s)
	if err != nil {
		return "", err
	}
	return ProjectID(s), nil
}
