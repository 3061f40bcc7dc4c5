package crypto

import (
	"encoding/hex"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDigestSHA256(t *testing.T) {
	got := DigestSHA256([]byte("abc"))
	assert.Len(t, got, 32)
	assert.Equal(t, "ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad", hex.EncodeToString(got))
}

func TestConstantTimeEqual(t *testing.T) {
	assert.True(t, ConstantTimeEqual([]byte("abc"), []byte("abc")))
	assert.False(t, ConstantTimeEqual([]byte("abc"), []byte("abd")))
	assert.False(t, ConstantTimeEqual([]byte("abc"), []byte("ab")))
}

func TestGenerateSecret(t *testing.T) {
	a, err := GenerateSecret()
	require.NoError(t, err)
	b, err := GenerateSecret()
	require.NoError(t, err)

	assert.Len(t, a, SecretSize*2)
	assert.NotEqual(t, a, b)
}

func TestGeneratePassword(t *testing.T) {
	for i := 0; i < 50; i++ {
		p, err := GeneratePassword(16)
		require.NoError(t, err)
		require.Len(t, p, 16)
		assert.True(t, strings.ContainsAny(p, upperChars))
		assert.True(t, strings.ContainsAny(p, lowerChars))
		assert.True(t, strings.ContainsAny(p, digitChars))
		assert.True(t, strings.ContainsAny(p, specialChars))
	}

	_, err := GeneratePassword(3)
	assert.Error(t, err)
}
