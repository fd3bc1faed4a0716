package middleware

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v4"
	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/fastygo/dailyquest/api/transport"
	"github.com/fastygo/dailyquest/domain"
)

const (
	HeaderUserID   = "X-User-ID"
	HeaderUsername = "X-Username"
)

// identity claims in lookup order; tokens from the auth service carry either id or user_id.
var userIDClaims = []string{"user_id", "id", "sub"}

// JWTAuth verifies HMAC-signed bearer tokens and forwards the caller identity as headers.
// Identity headers supplied by the client are always discarded.
func JWTAuth(secret, issuer string, logger *zap.Logger) func(fasthttp.RequestHandler) fasthttp.RequestHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	key := []byte(secret)
	return func(next fasthttp.RequestHandler) fasthttp.RequestHandler {
		return func(ctx *fasthttp.RequestCtx) {
			ctx.Request.Header.Del(HeaderUserID)
			ctx.Request.Header.Del(HeaderUsername)

			tokenString := extractToken(ctx)
			if tokenString == "" {
				unauthorized(ctx, "missing token")
				return
			}

			claims := jwt.MapClaims{}
			token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
				if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
					return nil, fmt.Errorf("unexpected signing method %v", token.Header["alg"])
				}
				return key, nil
			})
			if err != nil || !token.Valid {
				logger.Warn("invalid jwt token", zap.Error(err))
				unauthorized(ctx, "invalid token")
				return
			}
			if issuer != "" && !claims.VerifyIssuer(issuer, true) {
				logger.Warn("jwt issuer mismatch", zap.Any("iss", claims["iss"]))
				unauthorized(ctx, "invalid token")
				return
			}

			userID := claimString(claims, userIDClaims...)
			if userID == "" {
				unauthorized(ctx, "token carries no user id")
				return
			}
			ctx.Request.Header.Set(HeaderUserID, userID)
			if name := claimString(claims, "username", "name"); name != "" {
				ctx.Request.Header.Set(HeaderUsername, name)
			}

			next(ctx)
		}
	}
}

func claimString(claims jwt.MapClaims, names ...string) string {
	for _, name := range names {
		switch v := claims[name].(type) {
		case string:
			if v != "" {
				return v
			}
		case float64:
			return fmt.Sprintf("%.0f", v)
		}
	}
	return ""
}

func unauthorized(ctx *fasthttp.RequestCtx, message string) {
	body, _ := json.Marshal(transport.NewError(domain.ErrCodeUnauthorized, message, nil))
	ctx.Response.Header.SetContentType("application/json")
	ctx.SetStatusCode(http.StatusUnauthorized)
	ctx.SetBody(body)
}

func extractToken(ctx *fasthttp.RequestCtx) string {
	header := string(ctx.Request.Header.Peek("Authorization"))
	if header == "" {
		return ""
	}
	if strings.HasPrefix(header, "Bearer ") {
		return strings.TrimPrefix(header, "Bearer ")
	}
	return header
}
