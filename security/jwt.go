package security

import (
	"errors"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var ErrNoSecret = errors.New("JWT_SECRET is not configured")

func jwtSecret() ([]byte, error) {
	secret := os.Getenv("JWT_SECRET")
	if secret == "" {
		return nil, ErrNoSecret
	}
	return []byte(secret), nil
}

// GetTokenExpiration reads JWT_EXPIRATION, clamped to [5m, 30d].
func GetTokenExpiration() time.Duration {
	if envExpiration := os.Getenv("JWT_EXPIRATION"); envExpiration != "" {
		if duration, err := time.ParseDuration(envExpiration); err == nil {
			if duration < 5*time.Minute {
				duration = 5 * time.Minute
			}
			if duration > 30*24*time.Hour {
				duration = 30 * 24 * time.Hour
			}
			return duration
		}
		log.Printf("Cannot parse JWT_EXPIRATION: %s", envExpiration)
	}
	return 12 * time.Hour
}

// GenerateToken signs an access token whose subject is the user id.
func GenerateToken(userID string) (string, time.Time, error) {
	secret, err := jwtSecret()
	if err != nil {
		return "", time.Time{}, err
	}

	now := time.Now()
	expires := now.Add(GetTokenExpiration())

	claims := jwt.RegisteredClaims{
		Subject:   userID,
		ExpiresAt: jwt.NewNumericDate(expires),
		IssuedAt:  jwt.NewNumericDate(now),
		NotBefore: jwt.NewNumericDate(now),
		Issuer:    "convergent-server",
		ID:        uuid.New().String(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString(secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("signing failed: %w", err)
	}
	return tokenString, expires, nil
}

// ParseTokenClaims validates a token and returns its registered claims.
func ParseTokenClaims(tokenString string) (*jwt.RegisteredClaims, error) {
	secret, err := jwtSecret()
	if err != nil {
		return nil, err
	}

	claims := &jwt.RegisteredClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return secret, nil
	})
	if err != nil {
		return nil, err
	}
	if !token.Valid {
		return nil, errors.New("invalid token")
	}
	if claims.ExpiresAt == nil || claims.ExpiresAt.Before(time.Now()) {
		return nil, errors.New("token expired")
	}
	if claims.Subject == "" {
		return nil, errors.New("token missing subject")
	}
	return claims, nil
}
