package auth

import (
	"errors"
	"fmt"
	"time"

	"attendance-backend/internal/config"

	"github.com/golang-jwt/jwt/v5"
)

type Claims struct {
	UserID  string `json:"user_id"`
	Email   string `json:"email"`
	Name    string `json:"name"`
	IsAdmin bool   `json:"is_admin"`
	jwt.RegisteredClaims
}

func (c *Claims) Identity() Identity {
	return Identity{
		ID:    c.UserID,
		Email: c.Email,
		Name:  c.Name,
		Role:  RoleFor(c.IsAdmin),
	}
}

type JWTManager struct {
	secret []byte
	ttl    time.Duration
}

func NewJWTManager(cfg *config.Config) *JWTManager {
	return NewJWTManagerWithSecret(cfg.JWT.Secret, cfg.JWT.TTL)
}

func NewJWTManagerWithSecret(secret string, ttl time.Duration) *JWTManager {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &JWTManager{secret: []byte(secret), ttl: ttl}
}

func (m *JWTManager) TTL() time.Duration { return m.ttl }

// Generate signs a session token for id
func (m *JWTManager) Generate(id Identity) (string, error) {
	now := time.Now()
	claims := Claims{
		UserID:  id.ID,
		Email:   id.Email,
		Name:    id.Name,
		IsAdmin: id.IsAdmin(),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   id.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.ttl)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(m.secret)
}

// Verify parses and validates a session token
func (m *JWTManager) Verify(tokenStr string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return m.secret, nil
	})
	if err != nil {
		return nil, err
	}
	if !token.Valid || claims.UserID == "" {
		return nil, errors.New("invalid token")
	}
	return claims, nil
}
