package crypto_test

import (
	"testing"

	"github.com/authme/core/internal/crypto"
	"github.com/stretchr/testify/assert"
)

func TestPKCE_S256_VerifyAccepts(t *testing.T) {
	verifier := "dBjftJeZ4CVP-mB92K27uhbUJU1p1r_wW1gFWFOEjXk"
	challenge, err := crypto.DeriveCodeChallenge(verifier, crypto.PKCEMethodS256)
	assert.NoError(t, err)
	assert.True(t, crypto.VerifyCodeChallenge(verifier, crypto.PKCEMethodS256, challenge))
}

func TestPKCE_S256_RejectsWrongVerifier(t *testing.T) {
	challenge, err := crypto.DeriveCodeChallenge("correct-verifier", crypto.PKCEMethodS256)
	assert.NoError(t, err)
	assert.False(t, crypto.VerifyCodeChallenge("wrong-verifier", crypto.PKCEMethodS256, challenge))
}

func TestPKCE_UnsupportedMethodErrors(t *testing.T) {
	_, err := crypto.DeriveCodeChallenge("v", crypto.PKCEMethod("unknown"))
	assert.Error(t, err)
}
