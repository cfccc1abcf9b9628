package auth

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func newTestPasswordService() *PasswordService {
	return NewPasswordServiceForTest(bcrypt.MinCost)
}

func TestPasswordService_Hash(t *testing.T) {
	ps := newTestPasswordService()

	first, err := ps.Hash("Password1!")
	require.NoError(t, err)
	second, err := ps.Hash("Password1!")
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(first, "$2"), "not a bcrypt hash: %q", first)
	assert.NotEqual(t, first, second, "salt must be random")

	cost, err := bcrypt.Cost([]byte(first))
	require.NoError(t, err)
	assert.Equal(t, bcrypt.MinCost, cost)
}

func TestPasswordService_ProductionCost(t *testing.T) {
	assert.Equal(t, defaultCost, NewPasswordService().cost)
}

func TestPasswordService_LengthLimit(t *testing.T) {
	ps := newTestPasswordService()

	_, err := ps.Hash(strings.Repeat("a", MaxPasswordBytes))
	assert.NoError(t, err, "exactly the limit is fine")

	_, err = ps.Hash(strings.Repeat("a", MaxPasswordBytes+1))
	assert.Error(t, err, "bcrypt would silently truncate")

	// The limit is in bytes: 36 two-byte runes fit, 37 don't.
	_, err = ps.Hash(strings.Repeat("é", 37))
	assert.Error(t, err)
}

func TestPasswordService_Verify(t *testing.T) {
	ps := newTestPasswordService()

	// Passwords reach the service after request sanitization, so the
	// escaped forms must round-trip like any other string.
	passwords := map[string]string{
		"strength rules":  "Password1!",
		"sanitized slash": "Pass&#x2F;word1",
		"sanitized quote": "it&#x27;s-Secret9",
		"unicode":         "Пароль-密码-1!",
		"whitespace":      "  Spaced Out 1!  ",
	}

	for name, pw := range passwords {
		t.Run(name, func(t *testing.T) {
			hash, err := ps.Hash(pw)
			require.NoError(t, err)

			assert.NoError(t, ps.Verify(hash, pw))
			assert.ErrorIs(t, ps.Verify(hash, pw+"x"), ErrInvalidPassword)
			assert.ErrorIs(t, ps.Verify(hash, ""), ErrInvalidPassword)
		})
	}
}

func TestPasswordService_VerifyCorruptHash(t *testing.T) {
	err := newTestPasswordService().Verify("not-a-bcrypt-hash", "Password1!")

	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrInvalidPassword, "a corrupt hash is a server fault, not a wrong password")
}
