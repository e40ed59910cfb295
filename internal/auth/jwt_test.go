package auth_test

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gosuda/attorney/internal/auth"
)

const secret = "test-secret-key-very-long-and-secure"

func TestJWT_IssueAndValidateRoundTrip(t *testing.T) {
	t.Parallel()

	userID := uuid.New()
	token, err := auth.IssueAccessToken(secret, userID, 5*time.Minute)
	require.NoError(t, err)
	require.NotEmpty(t, token)

	got, err := auth.ValidateToken(secret, token)
	require.NoError(t, err)
	assert.Equal(t, userID, got)
}

func TestJWT_Rejections(t *testing.T) {
	t.Parallel()

	userID := uuid.New()
	expired, err := auth.IssueAccessToken(secret, userID, -time.Minute)
	require.NoError(t, err)
	valid, err := auth.IssueAccessToken(secret, userID, time.Minute)
	require.NoError(t, err)

	foreign, err := jwt.NewWithClaims(jwt.SigningMethodHS256, auth.Claims{
		RegisteredClaims: jwt.RegisteredClaims{Issuer: "someone-else"},
		UserID:           userID.String(),
	}).SignedString([]byte(secret))
	require.NoError(t, err)

	badUID, err := jwt.NewWithClaims(jwt.SigningMethodHS256, auth.Claims{
		RegisteredClaims: jwt.RegisteredClaims{Issuer: auth.Issuer},
		UserID:           "not-a-uuid",
	}).SignedString([]byte(secret))
	require.NoError(t, err)

	tests := []struct {
		name   string
		secret string
		token  string
	}{
		{"expired", secret, expired},
		{"wrong secret", "another-secret", valid},
		{"foreign issuer", secret, foreign},
		{"malformed uid", secret, badUID},
		{"garbage", secret, "not.a.jwt"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := auth.ValidateToken(tt.secret, tt.token)
			require.ErrorIs(t, err, auth.ErrInvalidToken)
		})
	}
}
