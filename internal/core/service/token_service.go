package service

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/pw/identity-service/internal/core/domain"
)

const defaultTokenTTL = 24 * time.Hour

// TokenService mints and verifies HS256-signed JWTs carrying the subject
// (identity email), issued-at, and expiry. It is stateless: validation needs
// only the token, the key, and the clock.
type TokenService struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewTokenService builds a TokenService signing with the given symmetric
// secret. The secret is treated as opaque bytes and is never logged.
func NewTokenService(secret string, ttl time.Duration) *TokenService {
	if ttl <= 0 {
		ttl = defaultTokenTTL
	}
	return &TokenService{
		secret: []byte(secret),
		ttl:    ttl,
		now:    time.Now,
	}
}

// WithClock overrides the time source. Intended for tests.
func (s *TokenService) WithClock(now func() time.Time) *TokenService {
	s.now = now
	return s
}

// TTL returns the configured token lifetime.
func (s *TokenService) TTL() time.Duration {
	return s.ttl
}

// Issue mints a signed token for the subject, merging extraClaims into the
// payload. Reserved claims (sub, iat, exp) cannot be overridden.
func (s *TokenService) Issue(subject string, extraClaims map[string]any) (string, error) {
	if subject == "" {
		return "", domain.ErrInvalidCredentials
	}

	now := s.now().UTC()
	claims := jwt.MapClaims{}
	for k, v := range extraClaims {
		claims[k] = v
	}
	claims["sub"] = subject
	claims["iat"] = now.Unix()
	claims["exp"] = now.Add(s.ttl).Unix()

	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return t.SignedString(s.secret)
}

// ExtractSubject parses the subject out of a token without verifying it.
// Signature and expiry are deliberately not checked here: the middleware
// needs the subject of an expired token to decide between "anonymous" and
// "error". Only structural failures surface, as domain.ErrMalformedToken.
func (s *TokenService) ExtractSubject(token string) (string, error) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return "", domain.ErrMalformedToken
	}
	sub, err := claims.GetSubject()
	if err != nil || sub == "" {
		return "", domain.ErrMalformedToken
	}
	return sub, nil
}

// IsValid checks signature, expiry, and subject, in that order, and fails
// closed: any violation yields false. The signing algorithm is pinned to
// HS256 so a token claiming another method never reaches key material.
func (s *TokenService) IsValid(token string, expectedSubject string) bool {
	claims := jwt.MapClaims{}
	parsed, err := jwt.NewParser(
		jwt.WithTimeFunc(s.now),
		jwt.WithExpirationRequired(),
	).ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		if t.Method.Alg() != jwt.SigningMethodHS256.Alg() {
			return nil, errors.New("unexpected signing method")
		}
		return s.secret, nil
	})
	if err != nil || !parsed.Valid {
		return false
	}

	sub, err := claims.GetSubject()
	if err != nil {
		return false
	}
	return sub == expectedSubject
}
