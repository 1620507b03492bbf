package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret"

func signTestToken(t *testing.T, claims jwt.MapClaims, secret string) string {
	t.Helper()
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := tok.SignedString([]byte(secret))
	require.NoError(t, err)
	return signed
}

func runIdentity(t *testing.T, secret, authHeader string) echo.Context {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if authHeader != "" {
		req.Header.Set("Authorization", authHeader)
	}
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	called := false
	h := OptionalIdentity(secret)(func(c echo.Context) error {
		called = true
		return nil
	})
	require.NoError(t, h(c))
	require.True(t, called, "next handler must always run")
	return c
}

func TestOptionalIdentityValidToken(t *testing.T) {
	raw := signTestToken(t, jwt.MapClaims{
		"sub": "42",
		"exp": time.Now().Add(time.Hour).Unix(),
	}, testSecret)

	c := runIdentity(t, testSecret, "Bearer "+raw)
	id, ok := AuthenticatedUserID(c)
	require.True(t, ok)
	assert.Equal(t, uint64(42), id)
}

func TestOptionalIdentityNumericClaim(t *testing.T) {
	raw := signTestToken(t, jwt.MapClaims{"user_id": 42}, testSecret)

	c := runIdentity(t, testSecret, "Bearer "+raw)
	id, ok := AuthenticatedUserID(c)
	require.True(t, ok)
	assert.Equal(t, uint64(42), id)
}

func TestOptionalIdentityGuests(t *testing.T) {
	// No header at all.
	c := runIdentity(t, testSecret, "")
	_, ok := AuthenticatedUserID(c)
	assert.False(t, ok)

	// Wrong signature: still a guest, never a rejection.
	raw := signTestToken(t, jwt.MapClaims{"sub": "42"}, "other-secret")
	c = runIdentity(t, testSecret, "Bearer "+raw)
	_, ok = AuthenticatedUserID(c)
	assert.False(t, ok)

	// Expired token.
	raw = signTestToken(t, jwt.MapClaims{
		"sub": "42",
		"exp": time.Now().Add(-time.Hour).Unix(),
	}, testSecret)
	c = runIdentity(t, testSecret, "Bearer "+raw)
	_, ok = AuthenticatedUserID(c)
	assert.False(t, ok)
}

func TestOptionalIdentityNoSecret(t *testing.T) {
	raw := signTestToken(t, jwt.MapClaims{"sub": "42"}, testSecret)
	c := runIdentity(t, "", "Bearer "+raw)
	_, ok := AuthenticatedUserID(c)
	assert.False(t, ok, "identity is disabled without a configured secret")
}
