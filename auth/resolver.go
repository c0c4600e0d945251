// Package auth resolves user identities from JWT bearer credentials for the
// hub and for any HTTP surface in front of it.
package auth

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/courier-chat/courier/hub"
	"github.com/golang-jwt/jwt/v5"
)

// Resolver validates HMAC-signed JWTs and extracts the subject claim as the
// user id. It implements hub.AuthResolver.
type Resolver struct {
	secret   []byte
	issuer   string
	duration time.Duration
}

// NewResolver creates a resolver for tokens signed with the given secret.
func NewResolver(secret string, tokenDuration time.Duration) *Resolver {
	return &Resolver{
		secret:   []byte(secret),
		issuer:   "courier",
		duration: tokenDuration,
	}
}

// IdentityOf extracts and validates the caller's identity from a request.
// The token is taken from the Authorization header, or from the "token"
// query parameter since browser WebSocket dials cannot set headers. A
// missing or invalid token yields hub.ErrUnauthenticated.
func (r *Resolver) IdentityOf(req *http.Request) (string, error) {
	if req == nil {
		return "", fmt.Errorf("%w: no request", hub.ErrUnauthenticated)
	}

	tokenStr := tokenFromRequest(req)
	if tokenStr == "" {
		return "", fmt.Errorf("%w: no credentials presented", hub.ErrUnauthenticated)
	}

	return r.subjectOf(tokenStr)
}

// subjectOf parses and validates a token string, returning its subject claim.
func (r *Resolver) subjectOf(tokenStr string) (string, error) {
	token, err := jwt.Parse(tokenStr, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return r.secret, nil
	})
	if err != nil || !token.Valid {
		return "", fmt.Errorf("%w: invalid or expired token", hub.ErrUnauthenticated)
	}

	subject, err := token.Claims.GetSubject()
	if err != nil || subject == "" {
		return "", fmt.Errorf("%w: token has no subject", hub.ErrUnauthenticated)
	}
	return subject, nil
}

// IssueToken mints a token for a user id. Used by the login surface and by
// tests; the hub itself only verifies.
func (r *Resolver) IssueToken(userID string) (string, error) {
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   userID,
		Issuer:    r.issuer,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(r.duration)),
	})
	return token.SignedString(r.secret)
}

// tokenFromRequest pulls the raw token from the Authorization header or the
// token query parameter.
func tokenFromRequest(req *http.Request) string {
	authHeader := req.Header.Get("Authorization")
	if authHeader != "" {
		parts := strings.Split(authHeader, " ")
		if len(parts) == 2 && parts[0] == "Bearer" {
			return parts[1]
		}
		return ""
	}
	return req.URL.Query().Get("token")
}
