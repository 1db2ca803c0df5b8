// Package session holds the in-memory session record: the current token
// triple plus a handle to the JWKS client used to validate it.
package session

import (
	"context"
	"time"

	"github.com/popcorntime/session/pkg/auth/jwks"
	"github.com/popcorntime/session/pkg/errors"
)

// Session is the in-memory mirror of the persisted token state. It is a
// plain value object; callers are responsible for locking around it.
type Session struct {
	jwksClient   *jwks.Client
	accessToken  *string
	refreshToken *string
	expiresAt    *time.Time
}

// New creates an empty session validating against the given JWKS client.
func New(jwksClient *jwks.Client) *Session {
	return &Session{jwksClient: jwksClient}
}

// AccessToken returns the current access token, if any.
func (s *Session) AccessToken() *string {
	return s.accessToken
}

// RefreshToken returns the current refresh token, if any.
func (s *Session) RefreshToken() *string {
	return s.refreshToken
}

// ExpiresAt returns the current token expiry, if any.
func (s *Session) ExpiresAt() *time.Time {
	return s.expiresAt
}

// WithAccessToken replaces the access token. A value equal to the current
// one is a no-op so duplicate propagation stays cheap.
func (s *Session) WithAccessToken(accessToken *string) {
	if equalStr(accessToken, s.accessToken) {
		return
	}
	s.accessToken = accessToken
}

// WithRefreshToken replaces the refresh token; no-op on equal values.
func (s *Session) WithRefreshToken(refreshToken *string) {
	if equalStr(refreshToken, s.refreshToken) {
		return
	}
	s.refreshToken = refreshToken
}

// WithExpiresAt replaces the token expiry; no-op on equal values.
func (s *Session) WithExpiresAt(expiresAt *time.Time) {
	if equalTime(expiresAt, s.expiresAt) {
		return
	}
	s.expiresAt = expiresAt
}

// Validate checks the access token against the provider's key set. Every
// failure is reported as an invalid session regardless of the underlying
// cause; that is the class of failure callers answer with a token refresh.
func (s *Session) Validate(ctx context.Context) error {
	if s.accessToken == nil {
		return errors.NewInvalidSessionError("no access token found", nil)
	}

	if _, err := s.jwksClient.Verify(ctx, *s.accessToken); err != nil {
		return errors.NewInvalidSessionError("token verification failed", err)
	}
	return nil
}

func equalStr(a, b *string) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func equalTime(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Equal(*b)
}
