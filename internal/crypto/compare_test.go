package crypto_test

import (
	"testing"

	"github.com/authme/core/internal/crypto"
	"github.com/stretchr/testify/assert"
)

func TestConstantTimeEquals(t *testing.T) {
	assert.True(t, crypto.ConstantTimeEquals("abc123", "abc123"))
	assert.False(t, crypto.ConstantTimeEquals("abc123", "abc124"))
	assert.False(t, crypto.ConstantTimeEquals("short", "longer-string"))
}
