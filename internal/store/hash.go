package store

import (
	"crypto/sha256"
	"fmt"
)

// HashContent returns the hex SHA-256 of a file's bytes. The indexer compares
// it with files.hash to skip unchanged files.
func HashContent(data []byte) string {
	return fmt.Sprintf("%x", sha256.Sum256(data))
}
