package utils

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// NewAccessToken signs an HS256 token carrying the claims the auth middleware reads
func NewAccessToken(secret, userID, role string, active bool, ttl time.Duration) (string, error) {
	now := time.Now().UTC()
	claims := jwt.MapClaims{
		"sub":    userID,
		"role":   role,
		"active": active,
		"exp":    now.Add(ttl).Unix(),
		"iat":    now.Unix(),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}
