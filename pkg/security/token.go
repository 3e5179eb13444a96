package security

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var ErrInvalidToken = errors.New("invalid token")

type Claims struct {
	Username string `json:"username"`
	Role     string `json:"role"`
	jwt.RegisteredClaims
}

// IssueToken signs an HS256 token for userID that expires after ttl
func IssueToken(secret []byte, userID, username, role string, ttl time.Duration) (string, error) {
	now := time.Now()

	t := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		Username: username,
		Role:     role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	})

	s, err := t.SignedString(secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token, %w", err)
	}

	return s, nil
}

// ParseToken validates the signature and expiry of token
func ParseToken(secret []byte, token string) (*Claims, error) {
	var claims Claims

	t, err := jwt.ParseWithClaims(token, &claims, func(t *jwt.Token) (any, error) {
		return secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired())
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	if !t.Valid || claims.Subject == "" {
		return nil, ErrInvalidToken
	}

	return &claims, nil
}
