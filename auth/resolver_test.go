package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/courier-chat/courier/hub"
)

const testSecret = "test-secret-at-least-32-bytes-long!!"

func newTestResolver() *Resolver {
	return NewResolver(testSecret, time.Hour)
}

func requestWithBearer(token string) *http.Request {
	req := httptest.NewRequest(http.MethodGet, "/ws", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	return req
}

func TestResolver_IssueAndResolveRoundtrip(t *testing.T) {
	r := newTestResolver()

	token, err := r.IssueToken("alice")
	require.NoError(t, err)

	userID, err := r.IdentityOf(requestWithBearer(token))
	require.NoError(t, err)
	assert.Equal(t, "alice", userID)
}

func TestResolver_QueryParamToken(t *testing.T) {
	r := newTestResolver()

	token, err := r.IssueToken("alice")
	require.NoError(t, err)

	// Browser WebSocket dials cannot set headers, so the token may ride in
	// the query string instead.
	req := httptest.NewRequest(http.MethodGet, "/ws?token="+token, nil)
	userID, err := r.IdentityOf(req)
	require.NoError(t, err)
	assert.Equal(t, "alice", userID)
}

func TestResolver_RejectsBadCredentials(t *testing.T) {
	r := newTestResolver()
	valid, err := r.IssueToken("alice")
	require.NoError(t, err)

	otherSecret := NewResolver("completely-different-secret-value!!!", time.Hour)
	foreign, err := otherSecret.IssueToken("alice")
	require.NoError(t, err)

	expired := NewResolver(testSecret, -time.Hour)
	expiredToken, err := expired.IssueToken("alice")
	require.NoError(t, err)

	tests := []struct {
		name string
		req  *http.Request
	}{
		{"no credentials", httptest.NewRequest(http.MethodGet, "/ws", nil)},
		{"nil request", nil},
		{"malformed header", func() *http.Request {
			req := httptest.NewRequest(http.MethodGet, "/ws", nil)
			req.Header.Set("Authorization", valid)
			return req
		}()},
		{"garbage token", requestWithBearer("not.a.jwt")},
		{"wrong secret", requestWithBearer(foreign)},
		{"expired token", requestWithBearer(expiredToken)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := r.IdentityOf(tt.req)
			assert.ErrorIs(t, err, hub.ErrUnauthenticated)
		})
	}
}

func TestResolver_RejectsNonHMACSigning(t *testing.T) {
	r := newTestResolver()

	// alg=none tokens must never pass, whatever their claims say.
	token := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.RegisteredClaims{
		Subject:   "alice",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	})
	signed, err := token.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, err = r.IdentityOf(requestWithBearer(signed))
	assert.ErrorIs(t, err, hub.ErrUnauthenticated)
}

func TestResolver_RejectsTokenWithoutSubject(t *testing.T) {
	r := newTestResolver()

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Issuer:    "courier",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	})
	signed, err := token.SignedString([]byte(testSecret))
	require.NoError(t, err)

	_, err = r.IdentityOf(requestWithBearer(signed))
	assert.ErrorIs(t, err, hub.ErrUnauthenticated)
}
