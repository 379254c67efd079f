package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrExpiredToken = errors.New("token has expired")
)

// Claims represents access token claims. Subject carries the user id.
type Claims struct {
	jwt.RegisteredClaims
	Email string `json:"email"`
}

// TokenManager issues and validates HS256 access tokens.
type TokenManager struct {
	secret   []byte
	duration time.Duration
	issuer   string
	now      func() time.Time
}

// NewTokenManager creates a new token manager.
func NewTokenManager(secret string, duration time.Duration, issuer string) (*TokenManager, error) {
	if secret == "" {
		return nil, errors.New("auth: token secret must not be empty")
	}
	if duration <= 0 {
		return nil, errors.New("auth: token duration must be positive")
	}
	return &TokenManager{
		secret:   []byte(secret),
		duration: duration,
		issuer:   issuer,
		now:      time.Now,
	}, nil
}

// Issue signs an access token for userID.
func (m *TokenManager) Issue(userID, email string) (string, error) {
	now := m.now()
	claims := &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    m.issuer,
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.duration)),
		},
		Email: email,
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
}

// Validate parses tokenString and returns its claims.
func (m *TokenManager) Validate(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return m.secret, nil
	}, jwt.WithTimeFunc(m.now), jwt.WithIssuer(m.issuer))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
