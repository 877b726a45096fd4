// Package auth protects the admin surface with a single operator
// credential: bcrypt-checked password, short-lived JWT access tokens.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/metrocheck/crb-service/internal"
)

const adminSubject = "admin"

type Service struct {
	jwtSecret     []byte
	passwordHash  string
	tokenDuration time.Duration
}

func NewService(cfg internal.SecurityConfig) *Service {
	return &Service{
		jwtSecret:     []byte(cfg.JWTSecret),
		passwordHash:  cfg.AdminPasswordHash,
		tokenDuration: cfg.TokenDuration(),
	}
}

type AuthTokens struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int64  `json:"expires_in"`
}

// Authenticate checks the admin password and issues an access token.
func (s *Service) Authenticate(password string) (*AuthTokens, error) {
	if password == "" {
		return nil, internal.ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(s.passwordHash), []byte(password)); err != nil {
		return nil, internal.ErrInvalidCredentials
	}

	now := time.Now()
	claims := jwt.RegisteredClaims{
		Subject:   adminSubject,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(s.tokenDuration)),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.jwtSecret)
	if err != nil {
		return nil, internal.NewInternalError("failed to sign access token", err)
	}

	return &AuthTokens{
		AccessToken: signed,
		TokenType:   "Bearer",
		ExpiresIn:   int64(s.tokenDuration.Seconds()),
	}, nil
}

// ValidateToken parses and verifies an access token.
func (s *Service) ValidateToken(tokenString string) error {
	if tokenString == "" {
		return internal.ErrInvalidToken
	}

	token, err := jwt.ParseWithClaims(tokenString, &jwt.RegisteredClaims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return s.jwtSecret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return internal.ErrTokenExpired
		}
		return internal.ErrInvalidToken
	}

	claims, ok := token.Claims.(*jwt.RegisteredClaims)
	if !ok || !token.Valid || claims.Subject != adminSubject {
		return internal.ErrInvalidToken
	}
	return nil
}

// HashPassword produces the bcrypt hash stored in configuration. Used by
// the seeder command.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hash), nil
}
