package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/openlis/lis-api/internal/config"
	"github.com/openlis/lis-api/internal/models"
	"github.com/openlis/lis-api/internal/sessions"
	"github.com/openlis/lis-api/internal/tokens"
	"github.com/openlis/lis-api/internal/users"
	"github.com/openlis/lis-api/pkg/apierror"
	"github.com/openlis/lis-api/pkg/logger"
	"github.com/openlis/lis-api/pkg/middleware"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// LoginRequest is the password login body.
type LoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// TokenResponse is returned by login and refresh.
type TokenResponse struct {
	AccessToken  string       `json:"accessToken"`
	RefreshToken string       `json:"refreshToken"`
	ExpiresIn    int          `json:"expiresIn"`
	User         *models.User `json:"user"`
}

// AccessBlacklist revokes access tokens until they expire.
type AccessBlacklist interface {
	Add(ctx context.Context, token string, ttl time.Duration) error
}

// AuthHandler holds dependencies
type AuthHandler struct {
	cfg         *config.Config
	usersSvc    *users.Service
	sessionsSvc *sessions.Service
	blacklist   AccessBlacklist
}

func NewAuthHandler(cfg *config.Config, u *users.Service, s *sessions.Service, bl AccessBlacklist) *AuthHandler {
	return &AuthHandler{cfg: cfg, usersSvc: u, sessionsSvc: s, blacklist: bl}
}

// Register mounts login/refresh/logout on public and me/password on the
// authenticated group.
func (h *AuthHandler) Register(public, protected *gin.RouterGroup) {
	a := public.Group("/auth")
	a.POST("/login", h.Login)
	a.POST("/refresh", h.Refresh)
	a.POST("/logout", h.Logout)

	p := protected.Group("/auth")
	p.GET("/me", h.Me)
	p.POST("/password", h.ChangePassword)
}

func (h *AuthHandler) issue(c *gin.Context, u *models.User, refresh string) {
	ttl := h.cfg.JWT.AccessTokenTTL
	access, err := tokens.GenerateAccessToken(h.cfg, u, ttl)
	if err != nil {
		apierror.Respond(c, fmt.Errorf("sign access token: %w", err))
		return
	}
	c.JSON(http.StatusOK, TokenResponse{AccessToken: access, RefreshToken: refresh, ExpiresIn: int(ttl.Seconds()), User: u})
}

// Login checks the password and starts a refresh session.
func (h *AuthHandler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierror.BadRequest(c, err)
		return
	}
	u, err := h.usersSvc.Authenticate(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		logger.L().Info().Str("username", req.Username).Str("ip", c.ClientIP()).Msg("login failed")
		apierror.Respond(c, err)
		return
	}
	rft, err := h.sessionsSvc.CreateSession(c.Request.Context(), u.ID.Hex(), c.Request.UserAgent(), h.cfg.JWT.RefreshTokenTTL)
	if err != nil {
		apierror.Respond(c, fmt.Errorf("create session: %w", err))
		return
	}
	h.issue(c, u, rft)
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken" binding:"required"`
}

// Refresh rotates a refresh token and returns a new token pair. Sessions of
// deleted or deactivated users are dropped; the token is only consumed once the
// account has been checked.
func (h *AuthHandler) Refresh(c *gin.Context) {
	var req refreshRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierror.BadRequest(c, err)
		return
	}
	ctx := c.Request.Context()
	invalid := fmt.Errorf("%w: invalid refresh token", apierror.ErrUnauthorized)
	sess, err := h.sessionsSvc.ValidateRefresh(ctx, req.RefreshToken)
	if err != nil {
		apierror.Respond(c, err)
		return
	}
	if sess == nil {
		apierror.Respond(c, invalid)
		return
	}
	id, err := primitive.ObjectIDFromHex(sess.UserID)
	if err != nil {
		apierror.Respond(c, invalid)
		return
	}
	u, err := h.usersSvc.Get(ctx, id)
	switch {
	case errors.Is(err, apierror.ErrNotFound) || (err == nil && !u.Active):
		_ = h.sessionsSvc.DeleteRefresh(ctx, req.RefreshToken)
		apierror.Respond(c, fmt.Errorf("%w: account is not active", apierror.ErrUnauthorized))
		return
	case err != nil:
		apierror.Respond(c, fmt.Errorf("load user %s: %w", sess.UserID, err))
		return
	}
	next, rotated, err := h.sessionsSvc.Rotate(ctx, req.RefreshToken)
	if err != nil {
		apierror.Respond(c, err)
		return
	}
	if rotated == nil {
		apierror.Respond(c, invalid)
		return
	}
	h.issue(c, u, next)
}

// Logout removes the refresh session and blacklists the presented access token
// for the rest of its lifetime.
func (h *AuthHandler) Logout(c *gin.Context) {
	var req refreshRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierror.BadRequest(c, err)
		return
	}
	var at string
	if n, _ := fmt.Sscanf(c.GetHeader("Authorization"), "Bearer %s", &at); n == 1 && h.blacklist != nil {
		if claims, err := tokens.ParseAccessToken(h.cfg.JWT.Secret, h.cfg.JWT.Issuer, at); err == nil {
			if err := h.blacklist.Add(c.Request.Context(), at, claims.Remaining()); err != nil {
				apierror.Respond(c, fmt.Errorf("blacklist access token: %w", err))
				return
			}
		}
	}
	if err := h.sessionsSvc.DeleteRefresh(c.Request.Context(), req.RefreshToken); err != nil {
		apierror.Respond(c, fmt.Errorf("remove session: %w", err))
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "logged out"})
}

func principalUserID(c *gin.Context) (primitive.ObjectID, bool) {
	p, ok := middleware.GetPrincipal(c)
	if !ok {
		return primitive.NilObjectID, false
	}
	id, err := primitive.ObjectIDFromHex(p.UserID)
	return id, err == nil
}

// Me returns the signed-in user. Principals from SSO without a local account get
// their token identity back.
func (h *AuthHandler) Me(c *gin.Context) {
	p, _ := middleware.GetPrincipal(c)
	id, ok := principalUserID(c)
	if !ok {
		c.JSON(http.StatusOK, gin.H{"id": p.UserID, "role": p.Role})
		return
	}
	u, err := h.usersSvc.Get(c.Request.Context(), id)
	if err != nil {
		apierror.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, u)
}

type passwordRequest struct {
	CurrentPassword string `json:"currentPassword" binding:"required"`
	NewPassword     string `json:"newPassword" binding:"required"`
}

// ChangePassword changes the caller's own password and ends all their sessions.
func (h *AuthHandler) ChangePassword(c *gin.Context) {
	id, ok := principalUserID(c)
	if !ok {
		apierror.Respond(c, fmt.Errorf("%w: no local account", apierror.ErrForbidden))
		return
	}
	var req passwordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierror.BadRequest(c, err)
		return
	}
	if err := h.usersSvc.ChangePassword(c.Request.Context(), id, req.CurrentPassword, req.NewPassword); err != nil {
		apierror.Respond(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
