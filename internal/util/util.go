package util

import (
	"errors"
	"fmt"

	"github.com/dgrijalva/jwt-go"
)

// Claims is the JWT claims structure issued by the auth provider.
type Claims struct {
	Email string `json:"email"`
	jwt.StandardClaims
}

// ValidateJWT parses and validates an HS256 bearer token and returns its claims.
func ValidateJWT(tokenString, secret string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return []byte(secret), nil
	})
	if err != nil {
		return nil, fmt.Errorf("parse token: %w", err)
	}
	if !token.Valid {
		return nil, errors.New("invalid token")
	}
	if claims.Subject == "" {
		return nil, errors.New("token missing subject claim")
	}
	return claims, nil
}
