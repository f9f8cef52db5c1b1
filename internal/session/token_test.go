package session

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cowork-market/cowork/internal/platform/httpx"
)

var (
	testSecret = []byte("test-secret")
	testNow    = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
)

func newTestVerifier(t *testing.T) *TokenVerifier {
	t.Helper()
	v, err := NewTokenVerifier(TokenConfig{
		Secret:   testSecret,
		Issuer:   "https://auth.cowork.test",
		Audience: "authenticated",
		Now:      func() time.Time { return testNow },
	})
	require.NoError(t, err)
	return v
}

func signToken(t *testing.T, method jwt.SigningMethod, key any, claims accessClaims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(method, claims).SignedString(key)
	require.NoError(t, err)
	return token
}

func validClaims(sub string) accessClaims {
	return accessClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   sub,
			Issuer:    "https://auth.cowork.test",
			Audience:  jwt.ClaimStrings{"authenticated"},
			ExpiresAt: jwt.NewNumericDate(testNow.Add(time.Hour)),
			IssuedAt:  jwt.NewNumericDate(testNow.Add(-time.Minute)),
		},
		Email: " member@example.com ",
	}
}

func TestNewTokenVerifierRequiresSecret(t *testing.T) {
	_, err := NewTokenVerifier(TokenConfig{})
	assert.Error(t, err)
}

func TestVerifyAcceptsValidToken(t *testing.T) {
	v := newTestVerifier(t)
	id := uuid.New()

	identity, err := v.Verify(signToken(t, jwt.SigningMethodHS256, testSecret, validClaims(id.String())))
	require.NoError(t, err)
	assert.Equal(t, id, identity.ID)
	assert.Equal(t, "member@example.com", identity.Email)
}

func TestVerifyRejects(t *testing.T) {
	v := newTestVerifier(t)
	id := uuid.NewString()

	expired := validClaims(id)
	expired.ExpiresAt = jwt.NewNumericDate(testNow.Add(-time.Minute))

	noExpiry := validClaims(id)
	noExpiry.ExpiresAt = nil

	wrongIssuer := validClaims(id)
	wrongIssuer.Issuer = "https://evil.test"

	wrongAudience := validClaims(id)
	wrongAudience.Audience = jwt.ClaimStrings{"service_role"}

	cases := map[string]string{
		"empty":          "",
		"garbage":        "not-a-jwt",
		"wrong secret":   signToken(t, jwt.SigningMethodHS256, []byte("other"), validClaims(id)),
		"wrong method":   signToken(t, jwt.SigningMethodHS512, testSecret, validClaims(id)),
		"expired":        signToken(t, jwt.SigningMethodHS256, testSecret, expired),
		"no expiry":      signToken(t, jwt.SigningMethodHS256, testSecret, noExpiry),
		"wrong issuer":   signToken(t, jwt.SigningMethodHS256, testSecret, wrongIssuer),
		"wrong audience": signToken(t, jwt.SigningMethodHS256, testSecret, wrongAudience),
		"subject":        signToken(t, jwt.SigningMethodHS256, testSecret, validClaims("user-42")),
	}
	for name, token := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := v.Verify(token)
			assert.ErrorIs(t, err, ErrInvalidToken)
		})
	}
}

func TestInvalidTokenIsUnauthorized(t *testing.T) {
	_, err := newTestVerifier(t).Verify("garbage")
	assert.ErrorIs(t, err, ErrInvalidToken)
	assert.ErrorIs(t, err, httpx.ErrUnauthorized)
}
