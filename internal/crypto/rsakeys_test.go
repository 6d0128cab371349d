package crypto_test

import (
	"testing"

	"github.com/authme/core/internal/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRSAKeyPair_PEMRoundTrip(t *testing.T) {
	key, err := crypto.GenerateRSAKeyPair()
	require.NoError(t, err)

	pemStr := crypto.EncodePrivateKeyPEM(key)
	assert.Contains(t, pemStr, "RSA PRIVATE KEY")

	decoded, err := crypto.DecodePrivateKeyPEM(pemStr)
	require.NoError(t, err)
	assert.Equal(t, key.N, decoded.N)
	assert.Equal(t, key.E, decoded.E)
}

func TestEncodePublicKeyPEM(t *testing.T) {
	key, err := crypto.GenerateRSAKeyPair()
	require.NoError(t, err)

	pemStr, err := crypto.EncodePublicKeyPEM(&key.PublicKey)
	require.NoError(t, err)
	assert.Contains(t, pemStr, "PUBLIC KEY")
}

func TestDecodePrivateKeyPEM_RejectsGarbage(t *testing.T) {
	_, err := crypto.DecodePrivateKeyPEM("not a pem block")
	assert.Error(t, err)
}
