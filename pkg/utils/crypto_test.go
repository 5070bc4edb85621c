package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testKey = []byte("0123456789abcdef0123456789abcdef")

func TestEncryptDecryptRoundTrip(t *testing.T) {
	encrypted, err := Encrypt([]byte(`{"access_token":"tok"}`), testKey)
	require.NoError(t, err)

	decrypted, err := Decrypt(encrypted, testKey)
	require.NoError(t, err)
	assert.Equal(t, `{"access_token":"tok"}`, decrypted)
}

func TestEncryptIsNonDeterministic(t *testing.T) {
	a, err := Encrypt([]byte("same input"), testKey)
	require.NoError(t, err)
	b, err := Encrypt([]byte("same input"), testKey)
	require.NoError(t, err)

	assert.NotEqual(t, a, b)
}

func TestDecryptRejectsWrongKey(t *testing.T) {
	encrypted, err := Encrypt([]byte("secret"), testKey)
	require.NoError(t, err)

	otherKey := []byte("fedcba9876543210fedcba9876543210")
	_, err = Decrypt(encrypted, otherKey)
	assert.Error(t, err)
}

func TestDecryptRejectsGarbage(t *testing.T) {
	_, err := Decrypt("not base64!!!", testKey)
	assert.Error(t, err)

	_, err = Decrypt("c2hvcnQ=", testKey)
	assert.Error(t, err)
}

func TestSingleUseTokenLength(t *testing.T) {
	token, err := SingleUseToken()
	require.NoError(t, err)
	assert.Len(t, token, 64)

	other, err := SingleUseToken()
	require.NoError(t, err)
	assert.NotEqual(t, token, other)
}
