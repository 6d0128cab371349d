package crypto

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"strings"

	"golang.org/x/crypto/argon2"
)

// Argon2id parameters tuned to land close to 100ms on commodity hardware,
// per spec's "Password: Argon2id, parameters picked to ~= 100ms on target
// hardware."
const (
	argonTime    = 3
	argonMemory  = 64 * 1024 // KiB
	argonThreads = 4
	argonKeyLen  = 32
	argonSaltLen = 16
)

// PasswordHasher hashes and verifies passwords. Exists as an interface so
// tests can substitute a near-instant fake instead of paying Argon2id's
// cost on every run.
type PasswordHasher interface {
	Hash(password string) (string, error)
	Verify(hash, password string) error
}

// Argon2idHasher implements PasswordHasher with Argon2id, encoding
// parameters into the stored hash so they can change without breaking
// verification of previously hashed passwords.
type Argon2idHasher struct{}

func NewArgon2idHasher() *Argon2idHasher {
	return &Argon2idHasher{}
}

// Hash returns an encoded string of the form:
// argon2id$v=19$m=<mem>,t=<time>,p=<threads>$<salt-b64>$<hash-b64>
func (Argon2idHasher) Hash(password string) (string, error) {
	salt := make([]byte, argonSaltLen)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("failed to generate salt: %w", err)
	}

	hash := argon2.IDKey([]byte(password), salt, argonTime, argonMemory, argonThreads, argonKeyLen)

	encoded := fmt.Sprintf("argon2id$v=19$m=%d,t=%d,p=%d$%s$%s",
		argonMemory, argonTime, argonThreads,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(hash),
	)
	return encoded, nil
}

// Verify returns nil iff password matches the encoded hash. It re-derives
// parameters from the stored string so a hash created under older
// parameters still verifies.
func (Argon2idHasher) Verify(encoded, password string) error {
	parts := strings.Split(encoded, "$")
	if len(parts) != 5 || parts[0] != "argon2id" {
		return fmt.Errorf("unrecognized hash format")
	}

	var memory uint32
	var time uint32
	var threads uint8
	if _, err := fmt.Sscanf(parts[2], "m=%d,t=%d,p=%d", &memory, &time, &threads); err != nil {
		return fmt.Errorf("malformed hash parameters: %w", err)
	}

	salt, err := base64.RawStdEncoding.DecodeString(parts[3])
	if err != nil {
		return fmt.Errorf("malformed salt: %w", err)
	}
	want, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil {
		return fmt.Errorf("malformed hash: %w", err)
	}

	got := argon2.IDKey([]byte(password), salt, time, memory, threads, uint32(len(want)))
	if subtle.ConstantTimeCompare(got, want) != 1 {
		return fmt.Errorf("password mismatch")
	}
	return nil
}

// dummyHash is a fixed, valid-looking Argon2id hash with no corresponding
// password. VerifyDummy runs a real Argon2id derivation against it so a
// "user not found" lookup costs the same wall-clock time as a real
// password check, per the Credential Verifier's constant-time requirement.
const dummyHash = "argon2id$v=19$m=65536,t=3,p=4$c29tZXNhbHRzb21lc2FsdA$ZHVtbXlkdW1teWR1bW15ZHVtbXlkdW1teWR1bW15ZHU"

// VerifyDummy performs a wasted Argon2id verification so callers can keep
// constant time across the "user exists" and "user does not exist" paths.
func VerifyDummy(password string) {
	_ = Argon2idHasher{}.Verify(dummyHash, password)
}
