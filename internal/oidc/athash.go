package oidc

import (
	"crypto/sha256"
	"encoding/base64"
)

// atHash computes the ID token "at_hash" claim per OpenID Connect Core
// 3.1.3.6: base64url(left half of SHA-256(ASCII(access_token))).
func atHash(accessToken string) string {
	sum := sha256.Sum256([]byte(accessToken))
	half := sum[:len(sum)/2]
	return base64.RawURLEncoding.EncodeToString(half)
}
