package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"quic-chat-system/internal/errors"
)

func TestTokenRoundTrip(t *testing.T) {
	issuer := NewTokenIssuer("test-secret", 24*time.Hour)

	token, err := issuer.IssueToken(42)
	require.NoError(t, err)
	require.NotEmpty(t, token)

	userID, err := issuer.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, int64(42), userID)
}

func TestValidateTokenRejectsExpired(t *testing.T) {
	issuer := NewTokenIssuer("test-secret", -time.Minute)

	token, err := issuer.IssueToken(7)
	require.NoError(t, err)

	_, err = issuer.ValidateToken(token)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.KindInvalidToken))
}

func TestValidateTokenRejectsWrongSecret(t *testing.T) {
	issuer := NewTokenIssuer("secret-one", time.Hour)
	other := NewTokenIssuer("secret-two", time.Hour)

	token, err := issuer.IssueToken(7)
	require.NoError(t, err)

	_, err = other.ValidateToken(token)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.KindInvalidToken))
}

func TestValidateTokenRejectsGarbage(t *testing.T) {
	issuer := NewTokenIssuer("test-secret", time.Hour)

	for _, token := range []string{"", "garbage", "a.b.c"} {
		_, err := issuer.ValidateToken(token)
		require.Error(t, err, "token %q", token)
		assert.True(t, errors.Is(err, errors.KindInvalidToken))
	}
}
