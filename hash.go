package confcascade

import (
	"crypto/sha256"
	"encoding/hex"
)

// ContentHash returns the lowercase hex SHA-256 digest of content.
// The durable store uses it to decide whether a write actually changes
// anything; operators can compare it against the remote API's reported
// hash to detect drift between the primary and the fallback copy.
func ContentHash(content string) string {
	sum := sha256.Sum256([]byte(content))
	return hex.EncodeToString(sum[:])
}
