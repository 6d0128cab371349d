// Package token implements RS256 JWT issuance/verification and
// per-realm signing-key rotation, published as JWKS at /realms/{name}/jwks.
package token

import (
	"context"
	"fmt"

	"github.com/authme/core/internal/crypto"
	"github.com/authme/core/internal/store"
	"github.com/google/uuid"
)

// signingKeyStore is the slice of SigningKeyRepo the KeySet needs.
type signingKeyStore interface {
	Active(ctx context.Context, realmID uuid.UUID) ([]store.RealmSigningKey, error)
	Create(ctx context.Context, k store.RealmSigningKey) (store.RealmSigningKey, error)
	Deactivate(ctx context.Context, id uuid.UUID) error
}

// KeySet manages a realm's RSA signing keys: rotation, decryption of the
// private key material for signing, and the newest-active-key selection
// rule the Token Factory signs new JWTs with.
type KeySet struct {
	repo      signingKeyStore
	masterKey crypto.MasterKey
}

func NewKeySet(repo *store.SigningKeyRepo, masterKey crypto.MasterKey) *KeySet {
	return &KeySet{repo: repo, masterKey: masterKey}
}

// ErrNoActiveKey is returned when a realm has no active signing key; the
// caller should Rotate to provision one before issuing tokens.
var ErrNoActiveKey = fmt.Errorf("realm has no active signing key")

// Active returns every active signing key for the realm, newest first.
func (k *KeySet) Active(ctx context.Context, realmID uuid.UUID) ([]store.RealmSigningKey, error) {
	keys, err := k.repo.Active(ctx, realmID)
	if err != nil {
		return nil, fmt.Errorf("failed to load active signing keys: %w", err)
	}
	return keys, nil
}

// Signing returns the key the Token Factory should sign new tokens with:
// the newest active key for the realm.
func (k *KeySet) Signing(ctx context.Context, realmID uuid.UUID) (store.RealmSigningKey, error) {
	keys, err := k.Active(ctx, realmID)
	if err != nil {
		return store.RealmSigningKey{}, err
	}
	if len(keys) == 0 {
		return store.RealmSigningKey{}, ErrNoActiveKey
	}
	return keys[0], nil // Active() orders newest-first
}

// DecryptPrivateKey unseals a key row's private key material.
func (k *KeySet) DecryptPrivateKey(row store.RealmSigningKey) (string, error) {
	pem, err := crypto.Decrypt(k.masterKey, row.PrivateKeyPEM)
	if err != nil {
		return "", fmt.Errorf("failed to unseal signing key: %w", err)
	}
	return pem, nil
}

// Rotate generates a fresh RSA keypair and adds it as a new active
// signing key. Rotation never deactivates the previous key: per
// spec.md's Token Factory rule, the old key stays active for the
// duration of the longest-lived token issued under it, so callers that
// want to retire it do so explicitly (via Deactivate) once they know
// every such token has expired.
func (k *KeySet) Rotate(ctx context.Context, realmID uuid.UUID) (store.RealmSigningKey, error) {
	priv, err := crypto.GenerateRSAKeyPair()
	if err != nil {
		return store.RealmSigningKey{}, fmt.Errorf("failed to generate signing key: %w", err)
	}

	publicPEM, err := crypto.EncodePublicKeyPEM(&priv.PublicKey)
	if err != nil {
		return store.RealmSigningKey{}, fmt.Errorf("failed to encode public key: %w", err)
	}
	encryptedPrivate, err := crypto.Encrypt(k.masterKey, crypto.EncodePrivateKeyPEM(priv))
	if err != nil {
		return store.RealmSigningKey{}, fmt.Errorf("failed to seal private key: %w", err)
	}

	kid := uuid.New().String()
	created, err := k.repo.Create(ctx, store.RealmSigningKey{
		RealmID:       realmID,
		Kid:           kid,
		Algorithm:     "RS256",
		PublicKeyPEM:  publicPEM,
		PrivateKeyPEM: encryptedPrivate,
		Active:        true,
	})
	if err != nil {
		return store.RealmSigningKey{}, fmt.Errorf("failed to store signing key: %w", err)
	}
	return created, nil
}

// Deactivate retires a signing key from future signing and from JWKS
// publication.
func (k *KeySet) Deactivate(ctx context.Context, id uuid.UUID) error {
	if err := k.repo.Deactivate(ctx, id); err != nil {
		return fmt.Errorf("failed to deactivate signing key: %w", err)
	}
	return nil
}
