package identity

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret"

func sign(t *testing.T, secret string, claims jwt.RegisteredClaims) string {
	t.Helper()
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	require.NoError(t, err)
	return tok
}

func validClaims() jwt.RegisteredClaims {
	return jwt.RegisteredClaims{
		Subject:   "user-1",
		Issuer:    "tutor",
		Audience:  jwt.ClaimStrings{"authenticated"},
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}
}

func newVerifier(t *testing.T) *JWTVerifier {
	t.Helper()
	v, err := NewJWTVerifier(JWTConfig{Secret: testSecret, Issuer: "tutor", Audience: "authenticated"})
	require.NoError(t, err)
	return v
}

func TestVerifyAcceptsValidToken(t *testing.T) {
	userID, err := newVerifier(t).Verify(context.Background(), sign(t, testSecret, validClaims()))
	require.NoError(t, err)
	assert.Equal(t, "user-1", userID)
}

func TestVerifyRejects(t *testing.T) {
	v := newVerifier(t)

	expired := validClaims()
	expired.ExpiresAt = jwt.NewNumericDate(time.Now().Add(-time.Minute))

	noSubject := validClaims()
	noSubject.Subject = ""

	wrongAudience := validClaims()
	wrongAudience.Audience = jwt.ClaimStrings{"other"}

	noExpiry := validClaims()
	noExpiry.ExpiresAt = nil

	cases := map[string]string{
		"empty":          "",
		"garbage":        "not-a-jwt",
		"wrong key":      sign(t, "other-secret", validClaims()),
		"expired":        sign(t, testSecret, expired),
		"no subject":     sign(t, testSecret, noSubject),
		"wrong audience": sign(t, testSecret, wrongAudience),
		"no expiry":      sign(t, testSecret, noExpiry),
	}
	for name, tok := range cases {
		_, err := v.Verify(context.Background(), tok)
		assert.Error(t, err, name)
	}
}

func TestNewJWTVerifierRequiresSecret(t *testing.T) {
	_, err := NewJWTVerifier(JWTConfig{})
	assert.Error(t, err)
}

func TestBearerToken(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	assert.Equal(t, "", BearerToken(r))

	r.Header.Set("Authorization", "Bearer abc.def")
	assert.Equal(t, "abc.def", BearerToken(r))

	r.Header.Set("Authorization", "bearer   xyz ")
	assert.Equal(t, "xyz", BearerToken(r))

	r.Header.Set("Authorization", "Basic abc")
	assert.Equal(t, "", BearerToken(r))
}

func TestIPFromRequest(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	for addr, want := range map[string]string{
		"203.0.113.7:51234": "203.0.113.7",
		"[2001:db8::1]:443": "2001:db8::1",
		"203.0.113.7":       "203.0.113.7",
		"[2001:db8::1]":     "2001:db8::1",
	} {
		r.RemoteAddr = addr
		assert.Equal(t, want, IPFromRequest(r), addr)
	}
}

func TestMiddleware(t *testing.T) {
	v := newVerifier(t)
	var rejected error
	handler := Middleware(v, func(w http.ResponseWriter, _ *http.Request, err error) {
		rejected = err
		w.WriteHeader(http.StatusUnauthorized)
	})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(UserIDFromContext(r.Context())))
	}))

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.ErrorIs(t, rejected, ErrMissingToken)

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set("Authorization", "Bearer "+sign(t, testSecret, validClaims()))
	w = httptest.NewRecorder()
	handler.ServeHTTP(w, r)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "user-1", w.Body.String())
}
