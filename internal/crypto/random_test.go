package crypto_test

import (
	"testing"

	"github.com/authme/core/internal/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateSecureToken_Unique(t *testing.T) {
	a, err := crypto.GenerateSecureToken(32)
	require.NoError(t, err)
	b, err := crypto.GenerateSecureToken(32)
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
	assert.NotEmpty(t, a)
}

func TestGenerateRecoveryCode_Format(t *testing.T) {
	code, err := crypto.GenerateRecoveryCode()
	require.NoError(t, err)
	assert.Len(t, code, 11)
	assert.Equal(t, byte('-'), code[5])
}

func TestGenerateRecoveryCodes_AllDistinct(t *testing.T) {
	codes, err := crypto.GenerateRecoveryCodes(10)
	require.NoError(t, err)
	require.Len(t, codes, 10)

	seen := make(map[string]bool, len(codes))
	for _, c := range codes {
		assert.False(t, seen[c], "duplicate recovery code generated")
		seen[c] = true
	}
}

func TestGenerateUserCode_Format(t *testing.T) {
	code, err := crypto.GenerateUserCode()
	require.NoError(t, err)
	assert.Len(t, code, 9)
	assert.Equal(t, byte('-'), code[4])
}
