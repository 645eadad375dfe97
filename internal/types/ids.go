package types

import (
	"time"

	"github.com/google/uuid"
)

// LineItemID represents a UUIDv7 line-item identifier.
// Time-ordered IDs ensure sequential inserts cluster in B-tree pages.
type LineItemID string

// ImportRunID represents a UUIDv7 identifier for one legacy import run.
type ImportRunID string

// NewLineItemID generates a UUIDv7 line-item identifier.
// Panics on clock regression (uuid.Must); acceptable for ID generation.
func NewLineItemID() LineItemID {
	return LineItemID(uuid.Must(uuid.NewV7()).String())
}

// NewImportRunID generates a UUIDv7 import-run identifier.
// Panics on clock regression (uuid.Must); acceptable for ID generation.
func NewImportRunID() ImportRunID {
	return ImportRunID(uuid.Must(uuid.NewV7()).String())
}

// ParseLineItemID validates and converts a string to LineItemID.
// Rejects malformed UUIDs to prevent invalid IDs from entering the system.
func ParseLineItemID(s string) (LineItemID, error) {
	_, err := uuid.Parse(s)
	if err != nil {
		return "", err
	}
	return LineItemID(s), nil
}

// ImportRunTime extracts the timestamp embedded in a UUIDv7 import-run ID.
// Returns zero time for invalid UUIDs; caller should check IsZero().
func ImportRunTime(id ImportRunID) time.Time {
	u, err := uuid.Parse(string(id))
	if err != nil {
		return time.Time{}
	}
	sec, nsec := u.Time().UnixTime()
	return time.Unix(sec, nsec)
}
