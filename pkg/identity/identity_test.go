package identity

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Rigellute/walk-the-world-frontend/pkg/jwt"
)

func TestTokens_Expired(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	assert.False(t, Tokens{}.Expired(now), "no expiry recorded")
	assert.False(t, Tokens{ExpiresAt: now.Add(time.Hour)}.Expired(now))
	assert.True(t, Tokens{ExpiresAt: now.Add(10 * time.Second)}.Expired(now), "inside the skew window")
	assert.True(t, Tokens{ExpiresAt: now.Add(-time.Minute)}.Expired(now))
}

func TestTokens_IsZero(t *testing.T) {
	assert.True(t, Tokens{}.IsZero())
	assert.False(t, Tokens{RefreshToken: "r"}.IsZero())
	assert.False(t, Tokens{AccessToken: "a"}.IsZero())
}

func TestTokens_Email(t *testing.T) {
	gen, err := jwt.NewEphemeralGenerator("issuer", "k")
	require.NoError(t, err)
	idToken, err := gen.GenerateIDToken("sub-1", "walker@ucl.ac.uk", "client", time.Hour)
	require.NoError(t, err)

	assert.Equal(t, "walker@ucl.ac.uk", Tokens{IDToken: idToken}.Email())
	assert.Equal(t, "", Tokens{IDToken: "not-a-token"}.Email())
	assert.Equal(t, "", Tokens{}.Email())
}

func TestMessage(t *testing.T) {
	providerErr := &Error{Code: CodeNotAuthorized, Message: "Incorrect username or password."}

	assert.Equal(t, "", Message(nil))
	assert.Equal(t, "Incorrect username or password.", Message(providerErr))
	assert.Equal(t, "Incorrect username or password.", Message(fmt.Errorf("sign in: %w", providerErr)))
	assert.Equal(t, "boom", Message(errors.New("boom")))
}

func TestError_Unwrap(t *testing.T) {
	cause := errors.New("socket closed")
	err := &Error{Code: CodeServiceUnavailable, Err: cause}

	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "socket closed", err.Error())
	assert.Equal(t, CodeServiceUnavailable, (&Error{Code: CodeServiceUnavailable}).Error())
	assert.True(t, IsCode(fmt.Errorf("wrapped: %w", err), CodeServiceUnavailable))
	assert.False(t, IsCode(errors.New("plain"), CodeServiceUnavailable))
}
