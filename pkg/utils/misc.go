package utils

import (
	"crypto/sha256"
	"encoding/hex"
)

// HashContent returns the hex sha256 of data, or "" for empty input.
func HashContent(data []byte) string {
	if len(data) == 0 {
		return ""
	}
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}

// ShortHash returns the first 12 characters of a hash for log fields.
func ShortHash(hash string) string {
	if len(hash) <= 12 {
		return hash
	}
	return hash[:12]
}
