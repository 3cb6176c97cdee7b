package runs

import (
	"crypto/sha256"
	"encoding/hex"
)

// MaxHashSize is the maximum number of bytes hashed from large artifact
// content. Hashing only the first 1MB bounds memory while keeping the
// checksum useful for integrity verification.
const MaxHashSize = 1024 * 1024 // 1MB

// HashContent computes the hex-encoded SHA-256 checksum of content. Content
// beyond MaxHashSize is excluded from the hash. Returns an empty string for
// empty content.
func HashContent(content []byte) string {
	if len(content) == 0 {
		return ""
	}
	if len(content) > MaxHashSize {
		content = content[:MaxHashSize]
	}
	hash := sha256.Sum256(content)
	return hex.EncodeToString(hash[:])
}
