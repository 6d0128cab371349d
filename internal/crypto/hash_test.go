package crypto_test

import (
	"testing"

	"github.com/authme/core/internal/crypto"
	"github.com/stretchr/testify/assert"
)

func TestHashToken_Deterministic(t *testing.T) {
	assert.Equal(t, crypto.HashToken("same-token"), crypto.HashToken("same-token"))
	assert.NotEqual(t, crypto.HashToken("token-a"), crypto.HashToken("token-b"))
}

func TestHashToken_HexEncoded(t *testing.T) {
	h := crypto.HashToken("anything")
	assert.Len(t, h, 64)
}
