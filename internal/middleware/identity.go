package middleware

// identity.go provides an optional identity middleware.  Authentication is
// owned by an upstream gateway; when it forwards a Bearer JWT this
// middleware surfaces the numeric subject as "user_id" in the Echo context
// so drafts can be attributed to the account.  Requests without a (valid)
// token proceed as guests — seat selection sessions are keyed by session
// token, not by login identity.

import (
	"strconv"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
)

// OptionalIdentity returns a middleware that parses an Authorization Bearer
// token when one is present.  Invalid or missing tokens are not rejected;
// the request simply continues unauthenticated.  When secret is empty the
// middleware is a no-op.
func OptionalIdentity(secret string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if secret == "" {
				return next(c)
			}
			auth := c.Request().Header.Get("Authorization")
			if !strings.HasPrefix(auth, "Bearer ") {
				return next(c)
			}
			raw := strings.TrimPrefix(auth, "Bearer ")
			tok, err := jwt.Parse(raw, func(t *jwt.Token) (interface{}, error) {
				if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
					return nil, echo.ErrUnauthorized
				}
				return []byte(secret), nil
			})
			if err != nil || !tok.Valid {
				return next(c)
			}
			if claims, ok := tok.Claims.(jwt.MapClaims); ok {
				if sub := subjectClaim(claims); sub != "" {
					c.Set("user_id", sub)
				}
			}
			return next(c)
		}
	}
}

// subjectClaim extracts the user identifier from the sub or user_id claim,
// normalising numeric claims to their decimal string form.
func subjectClaim(claims jwt.MapClaims) string {
	for _, key := range []string{"sub", "user_id"} {
		switch v := claims[key].(type) {
		case string:
			if v != "" {
				return v
			}
		case float64:
			return strconv.FormatUint(uint64(v), 10)
		}
	}
	return ""
}

// AuthenticatedUserID returns the numeric user id set by OptionalIdentity,
// or ok=false for guests.
func AuthenticatedUserID(c echo.Context) (uint64, bool) {
	s, _ := c.Get("user_id").(string)
	if s == "" {
		return 0, false
	}
	id, err := strconv.ParseUint(s, 10, 64)
	if err != nil || id == 0 {
		return 0, false
	}
	return id, true
}
