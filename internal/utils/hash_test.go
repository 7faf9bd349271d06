package utils

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testPassword      = "SecurePassword123!"
	testWrongPassword = "WrongPassword456!"
)

func TestHashPassword_RoundTrip(t *testing.T) {
	// Arrange
	hash, err := HashPassword(testPassword)
	require.NoError(t, err)

	// Act
	match, err := VerifyPassword(testPassword, hash)

	// Assert
	require.NoError(t, err)
	assert.True(t, match, "password should match its own hash")
	assert.True(t, strings.HasPrefix(hash, "$argon2id$v=19$m=65536,t=1,p=4$"))
}

func TestVerifyPassword_Incorrect(t *testing.T) {
	hash, err := HashPassword(testPassword)
	require.NoError(t, err)

	match, err := VerifyPassword(testWrongPassword, hash)

	require.NoError(t, err)
	assert.False(t, match)
}

func TestHashPassword_UniqueSalts(t *testing.T) {
	hash1, err := HashPassword(testPassword)
	require.NoError(t, err)
	hash2, err := HashPassword(testPassword)
	require.NoError(t, err)

	assert.NotEqual(t, hash1, hash2, "same password should hash differently because of the salt")
}

func TestHashPassword_Unicode(t *testing.T) {
	for _, password := range []string{"パスワード123", "Şifre123!", "Пароль123", "🔒🔑Password123"} {
		t.Run(password, func(t *testing.T) {
			hash, err := HashPassword(password)
			require.NoError(t, err)

			match, err := VerifyPassword(password, hash)
			require.NoError(t, err)
			assert.True(t, match)
		})
	}
}

func TestVerifyPassword_InvalidHashFormat(t *testing.T) {
	invalidHashes := []string{
		"",
		"plain-text-not-hash",
		"$invalid$format$",
		"$argon2id$v=19$m=65536",
		"$bcrypt$v=19$m=65536,t=1,p=4$c2FsdA$aGFzaA",
		"$argon2id$v=19$m=65536,t=1,p=4$!!!$aGFzaA",
	}

	for _, invalidHash := range invalidHashes {
		t.Run(invalidHash, func(t *testing.T) {
			match, err := VerifyPassword(testPassword, invalidHash)

			assert.Error(t, err)
			assert.False(t, match)
		})
	}
}

func TestVerifyPassword_IncompatibleVersion(t *testing.T) {
	hash, err := HashPassword(testPassword)
	require.NoError(t, err)
	tampered := strings.Replace(hash, "v=19", "v=16", 1)

	_, err = VerifyPassword(testPassword, tampered)

	assert.ErrorIs(t, err, ErrIncompatibleVersion)
}

func TestNeedsRehash(t *testing.T) {
	weak := DefaultArgon2Params
	weak.Memory = 16 * 1024
	weakHash, err := HashPasswordWith(testPassword, weak)
	require.NoError(t, err)
	strongHash, err := HashPassword(testPassword)
	require.NoError(t, err)

	assert.True(t, NeedsRehash(weakHash))
	assert.False(t, NeedsRehash(strongHash))
	assert.True(t, NeedsRehash("garbage"))
}

func BenchmarkHashPassword(b *testing.B) {
	for i := 0; i < b.N; i++ {
		_, _ = HashPassword(testPassword)
	}
}
