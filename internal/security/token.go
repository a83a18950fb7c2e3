package security

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrExpiredToken = errors.New("token has expired")
)

// APIClaims defines the claims carried by deposit API tokens
type APIClaims struct {
	ClientID string   `json:"client_id"`
	Scope    []string `json:"scope,omitempty"`
	jwt.RegisteredClaims
}

// HasScope reports whether the token grants the named scope. A token
// without any scope list is treated as unrestricted.
func (c *APIClaims) HasScope(scope string) bool {
	if len(c.Scope) == 0 {
		return true
	}
	for _, s := range c.Scope {
		if s == scope {
			return true
		}
	}
	return false
}

type TokenManager interface {
	GenerateToken(clientID string, scope []string, ttl time.Duration) (string, error)
	ValidateToken(tokenString string) (*APIClaims, error)
}

type tokenManager struct {
	secret []byte
}

func NewTokenManager(secret string) TokenManager {
	return &tokenManager{
		secret: []byte(secret),
	}
}

func (m *tokenManager) GenerateToken(clientID string, scope []string, ttl time.Duration) (string, error) {
	claims := APIClaims{
		ClientID: clientID,
		Scope:    scope,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   clientID,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			Issuer:    "deposit-service",
			Audience:  jwt.ClaimStrings{"deposit-api"},
			ID:        uuid.NewString(),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(m.secret)
}

func (m *tokenManager) ValidateToken(tokenString string) (*APIClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &APIClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return m.secret, nil
	})

	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		return nil, ErrInvalidToken
	}

	if claims, ok := token.Claims.(*APIClaims); ok && token.Valid {
		if claims.ClientID == "" {
			claims.ClientID = claims.Subject
		}
		return claims, nil
	}

	return nil, ErrInvalidToken
}
