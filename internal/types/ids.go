package types

import (
	"github.com/google/uuid"
)

// PolicyID represents a UUIDv7 policy identifier.
// String alias enables type safety while maintaining JSON string serialization.
type PolicyID string

// NewPolicyID generates a UUIDv7 policy identifier.
// Time-ordered IDs keep loaded policy sets stable to diff between reloads.
// Panics on clock regression (uuid.Must); acceptable for ID generation.
func NewPolicyID() PolicyID {
	return PolicyID(uuid.Must(uuid.NewV7()).String())
}

// ParsePolicyID validates and converts a string to PolicyID.
// Rejects malformed UUIDs to prevent invalid IDs from entering the system.
func ParsePolicyID(s string) (PolicyID, error) {
	_, err := uuid.Parse(s)
	if err != nil {
		return "", err
	}
	return PolicyID(s), nil
}
