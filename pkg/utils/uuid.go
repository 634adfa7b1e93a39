package utils

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// GenerateUUID returns a random v4 UUID. If the random source fails it falls
// back to a time-derived identifier so callers always get a usable value.
func GenerateUUID() string {
	id, err := uuid.NewRandom()
	if err != nil {
		return fmt.Sprintf("error-generating-uuid-%d", time.Now().UnixNano())
	}
	return id.String()
}
