package middleware

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/valyala/fasthttp"

	"github.com/fastygo/dailyquest/api/transport"
)

const secret = "test-secret"

func sign(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	require.NoError(t, err)
	return token
}

type seen struct {
	called   bool
	userID   string
	username string
}

func run(t *testing.T, issuer, authorization string, extra map[string]string) (*fasthttp.RequestCtx, *seen) {
	t.Helper()
	s := &seen{}
	handler := JWTAuth(secret, issuer, nil)(func(ctx *fasthttp.RequestCtx) {
		s.called = true
		s.userID = string(ctx.Request.Header.Peek(HeaderUserID))
		s.username = string(ctx.Request.Header.Peek(HeaderUsername))
	})

	ctx := &fasthttp.RequestCtx{}
	if authorization != "" {
		ctx.Request.Header.Set("Authorization", authorization)
	}
	for k, v := range extra {
		ctx.Request.Header.Set(k, v)
	}
	handler(ctx)
	return ctx, s
}

func TestJWTAuthForwardsIdentity(t *testing.T) {
	token := sign(t, jwt.MapClaims{
		"id":       "u42",
		"username": "alice",
		"exp":      time.Now().Add(time.Hour).Unix(),
	})

	ctx, s := run(t, "", "Bearer "+token, nil)
	assert.True(t, s.called)
	assert.Equal(t, "u42", s.userID)
	assert.Equal(t, "alice", s.username)
	assert.Equal(t, fasthttp.StatusOK, ctx.Response.StatusCode())
}

func TestJWTAuthNumericSubject(t *testing.T) {
	token := sign(t, jwt.MapClaims{"sub": float64(1234567)})
	_, s := run(t, "", token, nil)
	assert.True(t, s.called)
	assert.Equal(t, "1234567", s.userID)
}

func TestJWTAuthDiscardsSpoofedHeaders(t *testing.T) {
	token := sign(t, jwt.MapClaims{"user_id": "real"})
	_, s := run(t, "", "Bearer "+token, map[string]string{HeaderUserID: "spoofed", HeaderUsername: "mallory"})
	assert.Equal(t, "real", s.userID)
	assert.Empty(t, s.username)
}

func TestJWTAuthRejects(t *testing.T) {
	none, err := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.MapClaims{"id": "u1"}).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)
	otherKey, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"id": "u1"}).SignedString([]byte("other"))
	require.NoError(t, err)

	tests := []struct {
		name    string
		issuer  string
		header  string
		message string
	}{
		{"missing token", "", "", "missing token"},
		{"garbage", "", "Bearer not-a-jwt", "invalid token"},
		{"wrong key", "", "Bearer " + otherKey, "invalid token"},
		{"alg none", "", "Bearer " + none, "invalid token"},
		{"expired", "", "Bearer " + sign(t, jwt.MapClaims{"id": "u1", "exp": time.Now().Add(-time.Minute).Unix()}), "invalid token"},
		{"wrong issuer", "quests", "Bearer " + sign(t, jwt.MapClaims{"id": "u1", "iss": "elsewhere"}), "invalid token"},
		{"no identity", "", "Bearer " + sign(t, jwt.MapClaims{"username": "ghost"}), "token carries no user id"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx, s := run(t, tt.issuer, tt.header, nil)
			assert.False(t, s.called)
			assert.Equal(t, fasthttp.StatusUnauthorized, ctx.Response.StatusCode())

			var env transport.Envelope
			require.NoError(t, json.Unmarshal(ctx.Response.Body(), &env))
			assert.Equal(t, "error", env.Status)
			assert.Equal(t, "UNAUTHORIZED", env.Code)
			assert.Equal(t, tt.message, env.Error)
		})
	}
}

func TestJWTAuthAcceptsMatchingIssuer(t *testing.T) {
	token := sign(t, jwt.MapClaims{"id": "u1", "iss": "quests"})
	_, s := run(t, "quests", "Bearer "+token, nil)
	assert.True(t, s.called)
}
