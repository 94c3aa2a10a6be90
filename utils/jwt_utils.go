package utils

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const tokenIssuer = "fitfunnel-api"

var ErrInvalidToken = errors.New("invalid session token")

// SessionClaims binds an HTTP client to the funnel that holds its session
// and cart. It carries no user identity.
type SessionClaims struct {
	FunnelID string `json:"funnel_id"`
	jwt.RegisteredClaims
}

// GenerateSessionToken signs a token for funnelID valid for ttl.
func GenerateSessionToken(secret []byte, funnelID string, ttl time.Duration, now time.Time) (string, error) {
	if len(secret) == 0 {
		return "", fmt.Errorf("failed to sign token: empty secret")
	}
	claims := &SessionClaims{
		FunnelID: funnelID,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			Issuer:    tokenIssuer,
			Subject:   funnelID,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString(secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return tokenString, nil
}

// ValidateSessionToken parses tokenString and returns its claims.
func ValidateSessionToken(secret []byte, tokenString string) (*SessionClaims, error) {
	claims := &SessionClaims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return secret, nil
	}, jwt.WithIssuer(tokenIssuer))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !token.Valid || claims.FunnelID == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
