package ingest

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// Fingerprint returns the SHA-256 hex digest of content after replacing
// invalid UTF-8 sequences, so the digest depends on the content only.
func Fingerprint(content []byte) string {
	text := strings.ToValidUTF8(string(content), "\uFFFD")
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}
