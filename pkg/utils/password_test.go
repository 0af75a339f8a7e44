package utils

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestHashAndVerifyPassword(t *testing.T) {
	hash, err := HashPassword("correct horse battery staple")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(hash, "$argon2id$v=19$"))

	valid, needsRehash, err := VerifyPassword("correct horse battery staple", hash)
	require.NoError(t, err)
	assert.True(t, valid)
	assert.False(t, needsRehash)

	valid, _, err = VerifyPassword("wrong password", hash)
	require.NoError(t, err)
	assert.False(t, valid)
}

func TestHashPasswordSalted(t *testing.T) {
	a, err := HashPassword("same password")
	require.NoError(t, err)
	b, err := HashPassword("same password")
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}

func TestVerifyPasswordLegacyBcrypt(t *testing.T) {
	legacy, err := bcrypt.GenerateFromPassword([]byte("old password"), bcrypt.MinCost)
	require.NoError(t, err)

	valid, needsRehash, err := VerifyPassword("old password", string(legacy))
	require.NoError(t, err)
	assert.True(t, valid)
	assert.True(t, needsRehash, "legacy hashes should be migrated after a successful login")

	valid, needsRehash, err = VerifyPassword("wrong password", string(legacy))
	require.NoError(t, err)
	assert.False(t, valid)
	assert.False(t, needsRehash)
}

func TestVerifyPasswordUnknownFormat(t *testing.T) {
	_, _, err := VerifyPassword("anything", "plaintext-garbage")
	assert.Error(t, err)
}

func TestValidateUsername(t *testing.T) {
	assert.NoError(t, ValidateUsername("traveler_42"))
	assert.Error(t, ValidateUsername("ab"))
	assert.Error(t, ValidateUsername(strings.Repeat("a", 21)))
	assert.Error(t, ValidateUsername("has space"))
	assert.Error(t, ValidateUsername("_leading"))
}

func TestNormalizeEmail(t *testing.T) {
	assert.Equal(t, "user@example.com", NormalizeEmail("  User@Example.COM "))
}

func TestValidatePhone(t *testing.T) {
	assert.NoError(t, ValidatePhone("0912345678"))
	assert.NoError(t, ValidatePhone("+84912345678"))
	assert.NoError(t, ValidatePhone("091 234 5678"))
	assert.NoError(t, ValidatePhone("912345678"))

	assert.Error(t, ValidatePhone("not-a-phone-###"))
	assert.Error(t, ValidatePhone("12345"))
	assert.Error(t, ValidatePhone("+1 555 0100 999 999"))
	assert.Error(t, ValidatePhone("0912345678x"))
}

func TestNormalizePhone(t *testing.T) {
	assert.Equal(t, "+84912345678", NormalizePhone(" +84 912 345 678 "))
}
