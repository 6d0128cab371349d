package crypto

import "crypto/subtle"

// ConstantTimeEquals performs a constant-time comparison of two strings,
// for any comparison where timing a byte-by-byte mismatch could leak
// information: refresh token validation, PKCE verifier checks, MFA
// recovery code checks, HMAC signature verification.
func ConstantTimeEquals(provided, expected string) bool {
	return subtle.ConstantTimeCompare([]byte(provided), []byte(expected)) == 1
}
