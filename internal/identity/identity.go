// Package identity verifies bearer tokens and carries the caller's principal
// through the request context.
package identity

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

type contextKey int

const userIDKey contextKey = iota

// ErrMissingToken is returned when a request carries no bearer token.
var ErrMissingToken = errors.New("missing bearer token")

// Verifier resolves a bearer token to a principal id.
type Verifier interface {
	Verify(ctx context.Context, token string) (string, error)
}

// JWTConfig configures HMAC-signed token verification.
type JWTConfig struct {
	Secret   string
	Issuer   string
	Audience string
}

// JWTVerifier validates HS256 tokens and returns their subject.
type JWTVerifier struct {
	secret []byte
	opts   []jwt.ParserOption
}

// NewJWTVerifier creates a verifier. Issuer and audience are checked only
// when set.
func NewJWTVerifier(cfg JWTConfig) (*JWTVerifier, error) {
	if cfg.Secret == "" {
		return nil, fmt.Errorf("jwt secret is required")
	}
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
	}
	if cfg.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(cfg.Issuer))
	}
	if cfg.Audience != "" {
		opts = append(opts, jwt.WithAudience(cfg.Audience))
	}
	return &JWTVerifier{secret: []byte(cfg.Secret), opts: opts}, nil
}

// Verify implements Verifier.
func (v *JWTVerifier) Verify(_ context.Context, tokenStr string) (string, error) {
	if tokenStr == "" {
		return "", ErrMissingToken
	}

	token, err := jwt.ParseWithClaims(tokenStr, &jwt.RegisteredClaims{}, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return v.secret, nil
	}, v.opts...)
	if err != nil {
		return "", fmt.Errorf("validate token: %w", err)
	}

	claims, ok := token.Claims.(*jwt.RegisteredClaims)
	if !ok || !token.Valid {
		return "", fmt.Errorf("invalid token claims")
	}
	if strings.TrimSpace(claims.Subject) == "" {
		return "", fmt.Errorf("token has no subject")
	}
	return claims.Subject, nil
}

// BearerToken extracts the token from an Authorization header.
func BearerToken(r *http.Request) string {
	h := strings.TrimSpace(r.Header.Get("Authorization"))
	if len(h) < 7 || !strings.EqualFold(h[:7], "bearer ") {
		return ""
	}
	return strings.TrimSpace(h[7:])
}

// UserIDFromContext extracts the principal id from the request context.
func UserIDFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(userIDKey).(string); ok {
		return v
	}
	return ""
}

// WithUserID returns a context carrying the principal id.
func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userIDKey, userID)
}

// Middleware verifies the bearer token and injects the principal id. Requests
// that fail verification are passed to reject and go no further.
func Middleware(v Verifier, reject func(http.ResponseWriter, *http.Request, error)) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userID, err := v.Verify(r.Context(), BearerToken(r))
			if err != nil {
				reject(w, r, err)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithUserID(r.Context(), userID)))
		})
	}
}

// IPFromRequest returns the caller address without its port, for failure
// logs. Behind chi's RealIP middleware this is the forwarded client address.
func IPFromRequest(r *http.Request) string {
	addr := strings.TrimSpace(r.RemoteAddr)
	if host, _, err := net.SplitHostPort(addr); err == nil {
		return host
	}
	return strings.Trim(addr, "[]")
}
