package auth

import (
	"errors"
	"fmt"
	"time"

	"disaster_backend/internal/models"

	"github.com/golang-jwt/jwt/v5"
)

// Claims - токен выпускает внешний сервис идентификации, здесь только проверка
type Claims struct {
	Role   models.UserRole   `json:"role"`
	Status models.UserStatus `json:"status"`
	jwt.RegisteredClaims
}

var ErrMalformedClaims = errors.New("token claims are incomplete")

// ParseToken проверяет подпись HS256 и срок действия
func ParseToken(tokenString, secret string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		return []byte(secret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired())
	if err != nil {
		return nil, err
	}
	if !token.Valid {
		return nil, jwt.ErrTokenInvalidClaims
	}
	if claims.Subject == "" || !claims.Role.IsValid() {
		return nil, ErrMalformedClaims
	}
	if claims.Status == "" {
		claims.Status = models.UserStatusActive
	}
	return claims, nil
}

func (c *Claims) Actor() *Actor {
	return &Actor{ID: c.Subject, Role: c.Role, Status: c.Status}
}

// IssueToken используется в dev-окружении и тестах
func IssueToken(secret, actorID string, role models.UserRole, status models.UserStatus, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		Role:   role,
		Status: status,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   actorID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}
