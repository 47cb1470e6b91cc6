// Package users manages staff accounts and password authentication.
package users

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/openlis/lis-api/internal/auditlog"
	"github.com/openlis/lis-api/internal/models"
	"github.com/openlis/lis-api/pkg/apierror"
	"github.com/openlis/lis-api/pkg/logger"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"golang.org/x/crypto/bcrypt"
)

const (
	entityType        = "user"
	minPasswordLength = 8
)

var errBadCredentials = fmt.Errorf("%w: invalid username or password", apierror.ErrUnauthorized)

// SessionRevoker is satisfied by sessions.Service.
type SessionRevoker interface {
	RevokeUser(ctx context.Context, userID string) error
}

// TokenRevoker is satisfied by sessions.Blacklist.
type TokenRevoker interface {
	RevokeUserTokens(ctx context.Context, userID string, cutoff time.Time) error
}

type CreateInput struct {
	Username string `json:"username" binding:"required"`
	Name     string `json:"name" binding:"required"`
	Email    string `json:"email"`
	Role     string `json:"role" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type UpdateInput struct {
	Name   *string `json:"name"`
	Email  *string `json:"email"`
	Role   *string `json:"role"`
	Active *bool   `json:"active"`
}

// Service encapsulates user-related business logic
type Service struct {
	repo     Repository
	sessions SessionRevoker
	tokens   TokenRevoker
	audit    auditlog.Recorder
	cost     int
}

func NewService(repo Repository, sessions SessionRevoker, audit auditlog.Recorder) *Service {
	if audit == nil {
		audit = auditlog.Nop{}
	}
	return &Service{repo: repo, sessions: sessions, audit: audit, cost: bcrypt.DefaultCost}
}

// WithCost overrides the bcrypt cost; tests use bcrypt.MinCost.
func (s *Service) WithCost(cost int) *Service {
	s.cost = cost
	return s
}

// WithTokenRevoker makes revocations also reject access tokens already issued.
func (s *Service) WithTokenRevoker(t TokenRevoker) *Service {
	s.tokens = t
	return s
}

func (s *Service) hash(password string) (string, error) {
	if len(password) < minPasswordLength {
		return "", apierror.Invalid("password must be at least %d characters", minPasswordLength)
	}
	b, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		if errors.Is(err, bcrypt.ErrPasswordTooLong) {
			return "", apierror.Invalid("password is too long")
		}
		return "", err
	}
	return string(b), nil
}

func (s *Service) revoke(ctx context.Context, id primitive.ObjectID) {
	if s.tokens != nil {
		if err := s.tokens.RevokeUserTokens(ctx, id.Hex(), time.Now()); err != nil {
			logger.Errorf("revoke access tokens for user %s: %v", id.Hex(), err)
		}
	}
	if s.sessions == nil {
		return
	}
	if err := s.sessions.RevokeUser(ctx, id.Hex()); err != nil {
		logger.Errorf("revoke sessions for user %s: %v", id.Hex(), err)
	}
}

func normalizeUsername(u string) string {
	return strings.ToLower(strings.TrimSpace(u))
}

func (s *Service) Create(ctx context.Context, in CreateInput) (*models.User, error) {
	now := models.Now()
	u := &models.User{
		ID:        primitive.NewObjectID(),
		Username:  normalizeUsername(in.Username),
		Name:      strings.TrimSpace(in.Name),
		Email:     strings.TrimSpace(in.Email),
		Role:      in.Role,
		Active:    true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := models.Validate(u); err != nil {
		return nil, apierror.Invalid("%v", err)
	}
	hash, err := s.hash(in.Password)
	if err != nil {
		return nil, err
	}
	u.PasswordHash = hash
	if err := s.repo.Create(ctx, u); err != nil {
		return nil, err
	}
	s.audit.Record(ctx, auditlog.ActionCreate, entityType, u.ID.Hex(), map[string]interface{}{"username": u.Username, "role": u.Role})
	return u, nil
}

func (s *Service) Get(ctx context.Context, id primitive.ObjectID) (*models.User, error) {
	return s.repo.Get(ctx, id)
}

func (s *Service) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	return s.repo.GetByUsername(ctx, normalizeUsername(username))
}

func (s *Service) List(ctx context.Context, f Filter) ([]models.User, error) {
	return s.repo.List(ctx, f)
}

// Update changes profile, role or active state. Deactivating or changing the role
// of an account revokes its refresh sessions.
func (s *Service) Update(ctx context.Context, id primitive.ObjectID, in UpdateInput) (*models.User, error) {
	u, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	changes := map[string]interface{}{}
	revoke := false
	if in.Name != nil {
		u.Name = strings.TrimSpace(*in.Name)
		changes["name"] = u.Name
	}
	if in.Email != nil {
		u.Email = strings.TrimSpace(*in.Email)
		changes["email"] = u.Email
	}
	if in.Role != nil && *in.Role != u.Role {
		if id.Hex() == models.ActorID(ctx) {
			return nil, apierror.Conflict("you cannot change your own role")
		}
		u.Role = *in.Role
		changes["role"] = u.Role
		revoke = true
	}
	if in.Active != nil && *in.Active != u.Active {
		if !*in.Active && id.Hex() == models.ActorID(ctx) {
			return nil, apierror.Conflict("you cannot deactivate your own account")
		}
		u.Active = *in.Active
		changes["active"] = u.Active
		revoke = revoke || !u.Active
	}
	if err := models.Validate(u); err != nil {
		return nil, apierror.Invalid("%v", err)
	}
	u.UpdatedAt = models.Now()
	if err := s.repo.Replace(ctx, u); err != nil {
		return nil, err
	}
	if revoke {
		s.revoke(ctx, u.ID)
	}
	s.audit.Record(ctx, auditlog.ActionUpdate, entityType, u.ID.Hex(), changes)
	return u, nil
}

func (s *Service) Deactivate(ctx context.Context, id primitive.ObjectID) (*models.User, error) {
	inactive := false
	return s.Update(ctx, id, UpdateInput{Active: &inactive})
}

// ChangePassword replaces the password after checking the current one and signs
// the user out everywhere.
func (s *Service) ChangePassword(ctx context.Context, id primitive.ObjectID, current, next string) error {
	u, err := s.repo.Get(ctx, id)
	if err != nil {
		return err
	}
	if bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(current)) != nil {
		return fmt.Errorf("%w: current password is incorrect", apierror.ErrForbidden)
	}
	return s.setPassword(ctx, u, next)
}

// ResetPassword sets a password without checking the old one (admin and CLI use).
func (s *Service) ResetPassword(ctx context.Context, id primitive.ObjectID, next string) error {
	u, err := s.repo.Get(ctx, id)
	if err != nil {
		return err
	}
	return s.setPassword(ctx, u, next)
}

func (s *Service) setPassword(ctx context.Context, u *models.User, next string) error {
	hash, err := s.hash(next)
	if err != nil {
		return err
	}
	u.PasswordHash = hash
	u.UpdatedAt = models.Now()
	if err := s.repo.Replace(ctx, u); err != nil {
		return err
	}
	s.revoke(ctx, u.ID)
	s.audit.Record(ctx, "password_change", entityType, u.ID.Hex(), nil)
	return nil
}

// Authenticate checks a username and password. Unknown users, wrong passwords and
// inactive accounts all fail with the same ErrUnauthorized.
func (s *Service) Authenticate(ctx context.Context, username, password string) (*models.User, error) {
	u, err := s.repo.GetByUsername(ctx, normalizeUsername(username))
	if errors.Is(err, apierror.ErrNotFound) {
		return nil, errBadCredentials
	}
	if err != nil {
		return nil, err
	}
	if bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)) != nil || !u.Active {
		return nil, errBadCredentials
	}
	now := models.Now()
	u.LastLoginAt = &now
	if err := s.repo.Replace(ctx, u); err != nil {
		logger.Warnf("record last login for %s: %v", u.Username, err)
	}
	return u, nil
}

// Delete removes an account. Accounts are normally deactivated instead, so audit
// entries keep resolving to a user.
func (s *Service) Delete(ctx context.Context, id primitive.ObjectID) error {
	if id.Hex() == models.ActorID(ctx) {
		return apierror.Conflict("you cannot delete your own account")
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.revoke(ctx, id)
	s.audit.Record(ctx, auditlog.ActionDelete, entityType, id.Hex(), nil)
	return nil
}
