package sessions

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"time"
)

// Service wraps repository operations with business logic
type Service struct {
	repo Repository
}

func NewService(r Repository) *Service { return &Service{repo: r} }

func newRefreshToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

// CreateSession stores a new refresh session and returns the refresh token
func (s *Service) CreateSession(ctx context.Context, userID, userAgent string, ttl time.Duration) (string, error) {
	r, err := newRefreshToken()
	if err != nil {
		return "", err
	}
	now := time.Now().UTC()
	sess := &Session{
		RefreshToken: r,
		UserID:       userID,
		UserAgent:    userAgent,
		CreatedAt:    now,
		ExpiresAt:    now.Add(ttl),
	}
	if err := s.repo.Create(ctx, sess); err != nil {
		return "", err
	}
	return r, nil
}

// ValidateRefresh returns the session if refresh token is valid and not expired
func (s *Service) ValidateRefresh(ctx context.Context, refresh string) (*Session, error) {
	sess, err := s.repo.GetByRefresh(ctx, refresh)
	if err != nil {
		return nil, err
	}
	if sess == nil {
		return nil, nil
	}
	if time.Now().UTC().After(sess.ExpiresAt) {
		_ = s.repo.DeleteByRefresh(ctx, refresh)
		return nil, nil
	}
	return sess, nil
}

// Rotate replaces a valid refresh token with a new one carrying the same user and
// remaining lifetime. It returns ("", nil, nil) when the token is not valid.
func (s *Service) Rotate(ctx context.Context, refresh string) (string, *Session, error) {
	sess, err := s.ValidateRefresh(ctx, refresh)
	if err != nil || sess == nil {
		return "", nil, err
	}
	if err := s.repo.DeleteByRefresh(ctx, refresh); err != nil {
		return "", nil, err
	}
	next, err := newRefreshToken()
	if err != nil {
		return "", nil, err
	}
	rotated := &Session{
		RefreshToken: next,
		UserID:       sess.UserID,
		UserAgent:    sess.UserAgent,
		CreatedAt:    time.Now().UTC(),
		ExpiresAt:    sess.ExpiresAt,
	}
	if err := s.repo.Create(ctx, rotated); err != nil {
		return "", nil, err
	}
	return next, rotated, nil
}

func (s *Service) DeleteRefresh(ctx context.Context, refresh string) error {
	return s.repo.DeleteByRefresh(ctx, refresh)
}

// RevokeUser removes every session of userID, e.g. after a password change or deactivation.
func (s *Service) RevokeUser(ctx context.Context, userID string) error {
	return s.repo.DeleteByUser(ctx, userID)
}
