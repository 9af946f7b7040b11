package auth

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tinoosan/finman/internal/errs"
)

func TestPasswordRoundTrip(t *testing.T) {
	hash, err := HashPassword("secret123")
	require.NoError(t, err)
	assert.NotEqual(t, "secret123", hash)
	assert.True(t, CheckPassword(hash, "secret123"))
	assert.False(t, CheckPassword(hash, "secret124"))
}

func TestHashPassword_TooShort(t *testing.T) {
	_, err := HashPassword("ab")
	assert.Error(t, err)
}

func TestHashPassword_TooLong(t *testing.T) {
	_, err := HashPassword(strings.Repeat("x", MaxPasswordLen+1))
	assert.ErrorIs(t, err, errs.ErrUnprocessable)

	hash, err := HashPassword(strings.Repeat("x", MaxPasswordLen))
	require.NoError(t, err)
	assert.True(t, CheckPassword(hash, strings.Repeat("x", MaxPasswordLen)))
}

func TestTokens_IssueVerify(t *testing.T) {
	tok, err := NewTokens("s3cr3t", "finman", time.Hour)
	require.NoError(t, err)
	signed, err := tok.Issue("alice")
	require.NoError(t, err)
	assert.Equal(t, 2, strings.Count(signed, "."))

	login, err := tok.Verify(signed)
	require.NoError(t, err)
	assert.Equal(t, "alice", login)
}

func TestTokens_Rejects(t *testing.T) {
	tok, err := NewTokens("s3cr3t", "finman", time.Hour)
	require.NoError(t, err)
	signed, err := tok.Issue("alice")
	require.NoError(t, err)

	other, err := NewTokens("different", "finman", time.Hour)
	require.NoError(t, err)
	_, err = other.Verify(signed)
	assert.Error(t, err, "wrong secret")

	wrongIssuer, err := NewTokens("s3cr3t", "someone-else", time.Hour)
	require.NoError(t, err)
	_, err = wrongIssuer.Verify(signed)
	assert.Error(t, err, "wrong issuer")

	_, err = tok.Verify("not.a.token")
	assert.Error(t, err)
}

func TestTokens_Expired(t *testing.T) {
	tok, err := NewTokens("s3cr3t", "", time.Minute)
	require.NoError(t, err)
	base := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	tok.now = func() time.Time { return base }
	signed, err := tok.Issue("alice")
	require.NoError(t, err)

	tok.now = func() time.Time { return base.Add(2 * time.Minute) }
	_, err = tok.Verify(signed)
	assert.Error(t, err)
}

func TestNewTokens_Validation(t *testing.T) {
	_, err := NewTokens("", "", time.Hour)
	assert.Error(t, err)
	_, err = NewTokens("x", "", 0)
	assert.Error(t, err)
}
