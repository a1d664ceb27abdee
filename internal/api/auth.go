package api

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

// RoleOperator is the role required to recover a blacked-out show.
// Panic is deliberately unauthenticated (anyone may hit the red
// button); bringing the rig back is restricted.
const RoleOperator = "operator"

// Claims are the JWT claims the control surface understands.
type Claims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

var (
	// ErrInvalidToken indicates a missing, malformed or expired token.
	ErrInvalidToken = errors.New("api: invalid token")

	// ErrInsufficientRole indicates a valid token without the required
	// role.
	ErrInsufficientRole = errors.New("api: insufficient role")
)

// parseToken validates a bearer token against the configured secret.
func parseToken(secret, tokenString string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return []byte(secret), nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}
	if !token.Valid {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// bearerToken extracts the token from the Authorization header.
func bearerToken(r *http.Request) (string, error) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return "", fmt.Errorf("%w: missing Authorization header", ErrInvalidToken)
	}
	const prefix = "Bearer "
	if !strings.HasPrefix(header, prefix) {
		return "", fmt.Errorf("%w: not a bearer token", ErrInvalidToken)
	}
	return strings.TrimPrefix(header, prefix), nil
}

// requireOperator wraps a handler with operator-role authentication.
func (s *Server) requireOperator(next func(w http.ResponseWriter, r *http.Request, claims *Claims)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tokenString, err := bearerToken(r)
		if err != nil {
			writeError(w, http.StatusUnauthorized, ErrCodeUnauthorized, err.Error())
			return
		}
		claims, err := parseToken(s.jwtSecret, tokenString)
		if err != nil {
			writeError(w, http.StatusUnauthorized, ErrCodeUnauthorized, "invalid token")
			return
		}
		if claims.Role != RoleOperator {
			writeError(w, http.StatusForbidden, ErrCodeForbidden, "operator role required")
			return
		}
		next(w, r, claims)
	}
}
