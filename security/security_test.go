package security

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCredentialRoundTrip(t *testing.T) {
	salt, err := NewSalt()
	require.NoError(t, err)
	require.Len(t, salt, SaltLength)

	hash, err := HashPassword(salt, []byte("hunter2"))
	require.NoError(t, err)

	assert.True(t, VerifyPassword(salt, hash, []byte("hunter2")))
	assert.False(t, VerifyPassword(salt, hash, []byte("hunter3")))
	assert.False(t, VerifyPassword(salt, hash, []byte("")))
}

func TestVerifyDetectsSingleByteTamper(t *testing.T) {
	salt, err := NewSalt()
	require.NoError(t, err)
	hash, err := HashPassword(salt, []byte("secret"))
	require.NoError(t, err)

	for i := range hash {
		tampered := make([]byte, len(hash))
		copy(tampered, hash)
		tampered[i] ^= 0x01
		assert.False(t, VerifyPassword(salt, tampered, []byte("secret")), "flipped byte %d", i)
	}

	for i := range salt {
		tampered := make([]byte, len(salt))
		copy(tampered, salt)
		tampered[i] ^= 0x01
		assert.False(t, VerifyPassword(tampered, hash, []byte("secret")), "flipped salt byte %d", i)
	}
}

func TestSaltsAreFresh(t *testing.T) {
	a, err := NewSalt()
	require.NoError(t, err)
	b, err := NewSalt()
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}

func TestHashZeroesPassword(t *testing.T) {
	salt, err := NewSalt()
	require.NoError(t, err)

	password := []byte("topsecret")
	_, err = HashPassword(salt, password)
	require.NoError(t, err)
	for i, b := range password {
		assert.Zerof(t, b, "password byte %d not wiped", i)
	}
}

func TestHexCodec(t *testing.T) {
	data := []byte{0x00, 0x7f, 0xff, 0x10}
	decoded, err := HexDecode(HexEncode(data))
	require.NoError(t, err)
	assert.Equal(t, data, decoded)

	_, err = HexDecode("not-hex")
	assert.Error(t, err)
}
