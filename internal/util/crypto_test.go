package util

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/chacha20poly1305"
)

func TestArgon2(t *testing.T) {
	salt, err := GenerateSalt(Argon2SaltSize)
	require.NoError(t, err)

	hash, err := Argon2KeyGen("test-password", salt, 32)
	assert.NoError(t, err)
	hash2, err := Argon2KeyGen("test-password", salt, 32)
	assert.NoError(t, err)
	assert.Equal(t, hash, hash2)

	_, err = Argon2KeyGen("", salt, 32)
	assert.ErrorContains(t, err, "password cannot be empty")
	_, err = Argon2KeyGen("pw", nil, 32)
	assert.ErrorContains(t, err, "salt cannot be empty")
	_, err = Argon2KeyGen("pw", salt, 0)
	assert.ErrorContains(t, err, "invalid key length")
}

func TestXChaCha20Poly1305(t *testing.T) {
	salt, err := GenerateSalt(Argon2SaltSize)
	require.NoError(t, err)
	key, err := Argon2KeyGen("test-password", salt, chacha20poly1305.KeySize)
	require.NoError(t, err)

	message := []byte("open sesame")
	encrypted, err := XChaCha20Poly1305Encrypt(key, message)
	assert.NoError(t, err)
	assert.NotEqual(t, message, encrypted)

	decrypted, err := XChaCha20Poly1305Decrypt(key, encrypted)
	assert.NoError(t, err)
	assert.Equal(t, message, decrypted)

	_, err = XChaCha20Poly1305Decrypt(key, []byte("short"))
	assert.ErrorContains(t, err, "ciphertext too short")
}

func TestSealWithPassword(t *testing.T) {
	message := []byte("private key bytes")
	sealed, err := SealWithPassword("hunter2", message)
	require.NoError(t, err)

	opened, err := OpenWithPassword("hunter2", sealed)
	assert.NoError(t, err)
	assert.Equal(t, message, opened)

	_, err = OpenWithPassword("wrong", sealed)
	assert.Error(t, err)

	_, err = OpenWithPassword("hunter2", sealed[:Argon2SaltSize])
	assert.ErrorContains(t, err, "sealed data too short")
}
