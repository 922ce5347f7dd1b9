// Package authtest signs tokens for tests.
package authtest

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"

	"github.com/victornm/codexa/internal/auth"
)

const Secret = "test-secret"

// Token returns a bearer token for the user, valid for an hour and signed with Secret.
func Token(t testing.TB, userID int64, role auth.Role) string {
	t.Helper()

	return sign(t, auth.Claims{
		UserID: userID,
		Role:   role,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}, Secret)
}

// Forged returns a token signed with a secret the service does not know.
func Forged(t testing.TB, userID int64, role auth.Role) string {
	t.Helper()

	return sign(t, auth.Claims{UserID: userID, Role: role}, "forged-"+Secret)
}

// Expired returns a token that expired a minute ago.
func Expired(t testing.TB, userID int64, role auth.Role) string {
	t.Helper()

	return sign(t, auth.Claims{
		UserID: userID,
		Role:   role,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute)),
		},
	}, Secret)
}

func sign(t testing.TB, c auth.Claims, secret string) string {
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString([]byte(secret))
	require.NoError(t, err)
	return s
}
