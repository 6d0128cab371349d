package token

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/authme/core/internal/crypto"
	"github.com/google/uuid"
	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jwk"
)

// JWKS renders the realm's active signing keys as a JSON Web Key Set
// (RFC 7517), published at /realms/{name}/jwks (no /certs path is served).
// Only public key material ever reaches this function.
func (k *KeySet) JWKS(ctx context.Context, realmID uuid.UUID) ([]byte, error) {
	active, err := k.Active(ctx, realmID)
	if err != nil {
		return nil, err
	}

	set := jwk.NewSet()
	for _, row := range active {
		pub, err := crypto.DecodePublicKeyPEM(row.PublicKeyPEM)
		if err != nil {
			return nil, fmt.Errorf("failed to decode public key for kid %s: %w", row.Kid, err)
		}
		key, err := jwk.FromRaw(pub)
		if err != nil {
			return nil, fmt.Errorf("failed to build jwk for kid %s: %w", row.Kid, err)
		}
		if err := key.Set(jwk.KeyIDKey, row.Kid); err != nil {
			return nil, fmt.Errorf("failed to set kid: %w", err)
		}
		if err := key.Set(jwk.AlgorithmKey, jwa.RS256); err != nil {
			return nil, fmt.Errorf("failed to set alg: %w", err)
		}
		if err := key.Set(jwk.KeyUsageKey, jwk.ForSignature); err != nil {
			return nil, fmt.Errorf("failed to set use: %w", err)
		}
		if err := set.AddKey(key); err != nil {
			return nil, fmt.Errorf("failed to add key to jwks: %w", err)
		}
	}

	out, err := json.Marshal(set)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal jwks: %w", err)
	}
	return out, nil
}
