// Package jobs generates identifiers for conversion jobs.
package jobs

import (
	"strings"

	"github.com/google/uuid"
)

// Prefix marks conversion job IDs.
const Prefix = "conv-"

// GenerateID creates a new random job ID with the given prefix.
// The prefix should include a trailing dash, e.g. "conv-".
func GenerateID(prefix string) string {
	return prefix + uuid.NewString()
}

// NewConversionID returns a fresh conversion job ID.
func NewConversionID() string {
	return GenerateID(Prefix)
}

// Short returns the first eight characters of the random part of id, for
// display in tables.
func Short(id string) string {
	rest := strings.TrimPrefix(id, Prefix)
	if len(rest) > 8 {
		return rest[:8]
	}
	return rest
}
