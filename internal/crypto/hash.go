package crypto

import (
	"crypto/sha256"
	"encoding/hex"
)

// HashToken returns the hex-encoded SHA-256 digest of an opaque bearer
// token. Refresh tokens, SSO session tokens, verification tokens and MFA
// recovery codes are stored and looked up by this hash so a database
// compromise does not hand over usable bearer tokens directly;
// authorization codes and device codes are stored as issued.
func HashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
