package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Sentinel failures surfaced by the gateway. ErrTokenExpired is reported
// only when a well-formed token has lapsed; every other credential or
// decoding problem maps to ErrUnauthorized.
var (
	ErrUnauthorized = errors.New("unauthorized")
	ErrTokenExpired = errors.New("token expired")
)

// Service issues and validates bearer tokens for the single statically
// configured credential pair guarding the management endpoints.
type Service struct {
	username string
	password string
	secret   []byte
	method   jwt.SigningMethod
	tokenTTL time.Duration

	now func() time.Time
}

// NewService constructs the gateway. The algorithm names a JWT signing
// method (for example HS256); ttl defaults to 24h when non-positive.
func NewService(username, password, secret, algorithm string, ttl time.Duration) (*Service, error) {
	if username == "" || password == "" {
		return nil, errors.New("auth credentials required")
	}
	if secret == "" {
		return nil, errors.New("token signing secret required")
	}
	method := jwt.GetSigningMethod(algorithm)
	if method == nil {
		return nil, fmt.Errorf("unknown signing algorithm %q", algorithm)
	}
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &Service{
		username: username,
		password: password,
		secret:   []byte(secret),
		method:   method,
		tokenTTL: ttl,
		now:      time.Now,
	}, nil
}

// Login checks the credential pair and mints a signed token carrying the
// username as subject with a fixed expiry horizon.
func (s *Service) Login(username, password string) (string, error) {
	if username != s.username || password != s.password {
		return "", ErrUnauthorized
	}
	now := s.now().UTC()
	claims := jwt.RegisteredClaims{
		Subject:   username,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(s.tokenTTL)),
	}
	token, err := jwt.NewWithClaims(s.method, claims).SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return token, nil
}

// ValidateToken verifies signature and expiry, returning the subject
// username. Expired tokens yield ErrTokenExpired; anything else that
// fails to decode or verify yields ErrUnauthorized.
func (s *Service) ValidateToken(tokenString string) (string, error) {
	if tokenString == "" {
		return "", ErrUnauthorized
	}
	claims := &jwt.RegisteredClaims{}
	_, err := jwt.ParseWithClaims(tokenString, claims,
		func(t *jwt.Token) (interface{}, error) { return s.secret, nil },
		jwt.WithValidMethods([]string{s.method.Alg()}),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return "", ErrTokenExpired
		}
		return "", ErrUnauthorized
	}
	return claims.Subject, nil
}
