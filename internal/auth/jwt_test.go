package auth_test

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ukair/ukair/internal/auth"
)

func newTestJWTService(key, issuer, audience string) *auth.JWTService {
	return auth.NewJWTService(auth.JWTConfig{
		SigningKey: key,
		Issuer:     issuer,
		Audience:   audience,
	})
}

func TestJWTService_GenerateAndValidateAccessToken(t *testing.T) {
	svc := newTestJWTService("test-secret-key-for-testing-only", "https://api.ukair.example", "ukair-admin")

	// Generate token
	token, expiresAt, err := svc.GenerateAccessToken("ops@ukair", 0, auth.ScopeRunsWrite)
	require.NoError(t, err)
	assert.NotEmpty(t, token)
	assert.WithinDuration(t, time.Now().Add(auth.DefaultAccessTokenExpiry), expiresAt, 5*time.Second)

	// Validate token
	claims, err := svc.ValidateAccessToken(token)
	require.NoError(t, err)
	assert.Equal(t, "ops@ukair", claims.Subject)
	assert.Equal(t, "https://api.ukair.example", claims.Issuer)
	assert.True(t, claims.HasScope(auth.ScopeRunsWrite))
	assert.False(t, claims.HasScope("runs:delete"))
}

func TestJWTService_CustomTTL(t *testing.T) {
	svc := newTestJWTService("k", "iss", "aud")

	_, expiresAt, err := svc.GenerateAccessToken("ops", 10*time.Minute)
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(10*time.Minute), expiresAt, 5*time.Second)
}

func TestJWTService_InvalidToken(t *testing.T) {
	svc := newTestJWTService("test-secret-key-for-testing-only", "iss", "aud")

	tests := []struct {
		name  string
		token string
	}{
		{"empty token", ""},
		{"malformed token", "not.a.valid.jwt"},
		{"invalid base64", "xxx.yyy.zzz"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.ValidateAccessToken(tt.token)
			assert.ErrorIs(t, err, auth.ErrInvalidAccessToken)
		})
	}
}

func TestJWTService_WrongSigningKey(t *testing.T) {
	token, _, err := newTestJWTService("key-one", "iss", "aud").GenerateAccessToken("ops", 0)
	require.NoError(t, err)

	_, err = newTestJWTService("key-two", "iss", "aud").ValidateAccessToken(token)
	assert.ErrorIs(t, err, auth.ErrInvalidAccessToken)
}

func TestJWTService_WrongIssuer(t *testing.T) {
	token, _, err := newTestJWTService("test-key", "issuer-one", "aud").GenerateAccessToken("ops", 0)
	require.NoError(t, err)

	_, err = newTestJWTService("test-key", "issuer-two", "aud").ValidateAccessToken(token)
	assert.Error(t, err)
}

func TestJWTService_WrongAudience(t *testing.T) {
	token, _, err := newTestJWTService("test-key", "iss", "audience-one").GenerateAccessToken("ops", 0)
	require.NoError(t, err)

	_, err = newTestJWTService("test-key", "iss", "audience-two").ValidateAccessToken(token)
	assert.Error(t, err)
}

func TestJWTService_Expired(t *testing.T) {
	svc := newTestJWTService("test-key", "iss", "aud")

	claims := auth.JWTClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "iss",
			Subject:   "ops",
			Audience:  jwt.ClaimStrings{"aud"},
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-key"))
	require.NoError(t, err)

	_, err = svc.ValidateAccessToken(token)
	assert.ErrorIs(t, err, auth.ErrAccessTokenExpired)
}

func TestJWTService_NoSigningKey(t *testing.T) {
	svc := newTestJWTService("", "iss", "aud")

	_, _, err := svc.GenerateAccessToken("ops", 0)
	assert.ErrorIs(t, err, auth.ErrNoSigningKey)

	_, err = svc.ValidateAccessToken("a.b.c")
	assert.ErrorIs(t, err, auth.ErrNoSigningKey)
}
