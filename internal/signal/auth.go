package signal

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

// TokenCookie is the cookie read for the channel token.
const TokenCookie = "token"

// ErrUnauthenticated is returned when no usable token was presented.
var ErrUnauthenticated = errors.New("signal: unauthenticated")

// TokenFromRequest extracts a bearer token from, in order, the token
// cookie, the Authorization header, and the token query parameter.
func TokenFromRequest(r *http.Request) string {
	if c, err := r.Cookie(TokenCookie); err == nil && c.Value != "" {
		return c.Value
	}
	if h := r.Header.Get("Authorization"); len(h) > 7 && strings.EqualFold(h[:7], "bearer ") {
		return strings.TrimSpace(h[7:])
	}
	return r.URL.Query().Get("token")
}

// ParseToken validates an HS256 token signed with secret and returns its
// subject, the account id the connection belongs to.
func ParseToken(secret []byte, raw string) (string, error) {
	if raw == "" || len(secret) == 0 {
		return "", ErrUnauthenticated
	}
	claims := &jwt.RegisteredClaims{}
	_, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnauthenticated, err)
	}
	if claims.Subject == "" {
		return "", fmt.Errorf("%w: missing subject", ErrUnauthenticated)
	}
	return claims.Subject, nil
}
