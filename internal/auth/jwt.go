// Package auth issues and validates the bearer tokens the API accepts.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Issuer is the iss claim of every token this service issues.
const Issuer = "attorney"

// Claims holds the JWT token payload. The principal is the user whose
// acquaintances and documents the caller may act on.
type Claims struct {
	jwt.RegisteredClaims
	UserID string `json:"uid"`
}

// ErrInvalidToken is returned when a JWT cannot be parsed or has expired.
var ErrInvalidToken = errors.New("auth: invalid or expired token")

// IssueAccessToken creates a signed JWT access token for userID.
func IssueAccessToken(secret string, userID uuid.UUID, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			Issuer:    Issuer,
		},
		UserID: userID.String(),
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		return "", fmt.Errorf("auth.IssueAccessToken: %w", err)
	}
	return signed, nil
}

// ValidateToken parses and validates a JWT token string and returns the
// user it was issued for.
func ValidateToken(secret, tokenString string) (uuid.UUID, error) {
	claims := &Claims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(_ *jwt.Token) (any, error) {
		return []byte(secret), nil
	}, jwt.WithValidMethods([]string{"HS256"}), jwt.WithIssuer(Issuer))
	if err != nil || !token.Valid {
		return uuid.Nil, fmt.Errorf("auth.ValidateToken: %w", ErrInvalidToken)
	}

	userID, err := uuid.Parse(claims.UserID)
	if err != nil {
		return uuid.Nil, fmt.Errorf("auth.ValidateToken: uid: %w", ErrInvalidToken)
	}
	return userID, nil
}
