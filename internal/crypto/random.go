package crypto

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
)

// recoveryAlphabet excludes visually ambiguous characters (0/O, 1/I/l) so
// printed recovery codes are easy to transcribe by hand.
const recoveryAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

// GenerateSecureToken returns a URL-safe, base64-encoded random token with
// n bytes of entropy before encoding. Used for authorization codes,
// refresh tokens, device codes, verification tokens and any other
// opaque bearer value that must be unguessable.
func GenerateSecureToken(n int) (string, error) {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate random token: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

// GenerateRecoveryCode produces a single human-transcribable MFA recovery
// code: 10 significant characters grouped as two dash-separated blocks
// (e.g. "7K9XQ-PL23M").
func GenerateRecoveryCode() (string, error) {
	const blockLen = 5
	out := make([]byte, blockLen*2+1)
	raw := make([]byte, blockLen*2)
	if _, err := rand.Read(raw); err != nil {
		return "", fmt.Errorf("failed to generate recovery code: %w", err)
	}
	for i, b := range raw {
		pos := i
		if i >= blockLen {
			pos = i + 1
		}
		out[pos] = recoveryAlphabet[int(b)%len(recoveryAlphabet)]
	}
	out[blockLen] = '-'
	return string(out), nil
}

// GenerateRecoveryCodes produces a full set of n recovery codes.
func GenerateRecoveryCodes(n int) ([]string, error) {
	codes := make([]string, n)
	for i := range codes {
		c, err := GenerateRecoveryCode()
		if err != nil {
			return nil, err
		}
		codes[i] = c
	}
	return codes, nil
}

// GenerateUserCode produces a short device-flow user_code (RFC 8628),
// formatted XXXX-XXXX from a restricted alphabet to minimize transcription
// errors when a user types it in on a second device.
func GenerateUserCode() (string, error) {
	const blockLen = 4
	out := make([]byte, blockLen*2+1)
	raw := make([]byte, blockLen*2)
	if _, err := rand.Read(raw); err != nil {
		return "", fmt.Errorf("failed to generate user code: %w", err)
	}
	for i, b := range raw {
		pos := i
		if i >= blockLen {
			pos = i + 1
		}
		out[pos] = recoveryAlphabet[int(b)%len(recoveryAlphabet)]
	}
	out[blockLen] = '-'
	return string(out), nil
}
