package crypto

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSealer_RoundTrip(t *testing.T) {
	key, err := GenerateKey()
	require.NoError(t, err)
	s, err := NewSealerFromBase64(key)
	require.NoError(t, err)

	sealed, err := s.Seal([]byte(`{"name":"Jane"}`))
	require.NoError(t, err)
	assert.NotContains(t, sealed, "Jane")

	plain, err := s.Open(sealed)
	require.NoError(t, err)
	assert.Equal(t, `{"name":"Jane"}`, string(plain))
}

func TestSealer_WrongKeyFails(t *testing.T) {
	k1, _ := GenerateKey()
	k2, _ := GenerateKey()
	s1, err := NewSealerFromBase64(k1)
	require.NoError(t, err)
	s2, err := NewSealerFromBase64(k2)
	require.NoError(t, err)

	sealed, err := s1.Seal([]byte("secret"))
	require.NoError(t, err)

	_, err = s2.Open(sealed)
	assert.ErrorIs(t, err, ErrDecryptionFailed)

	_, err = s1.Open("AAAA")
	assert.ErrorIs(t, err, ErrInvalidCiphertext)
}

func TestNewSealer_KeyValidation(t *testing.T) {
	_, err := NewSealer([]byte("short"))
	assert.ErrorIs(t, err, ErrInvalidKeySize)

	_, err = NewSealerFromBase64("not base64!")
	assert.ErrorIs(t, err, ErrInvalidKey)
}
