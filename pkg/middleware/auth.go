package middleware

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/openlis/lis-api/internal/models"
	"github.com/openlis/lis-api/pkg/logger"
)

// Context keys set by AuthMiddleware.
const (
	ContextPrincipal   = "principal"
	ContextAccessToken = "accessToken"
)

// Token is minimal interface for a verified token that can expose claims
type Token interface {
	Claims(v interface{}) error
}

// Verifier is the minimal interface the middleware depends on
type Verifier interface {
	Verify(ctx context.Context, raw string) (Token, error)
}

// RevocationChecker reports whether an access token was revoked (logout).
type RevocationChecker interface {
	Contains(ctx context.Context, token string) (bool, error)
}

// UserRevocationChecker is implemented by revocation checkers that also track
// per-user stamps, e.g. after a deactivation or role change.
type UserRevocationChecker interface {
	UserTokenRevoked(ctx context.Context, userID string, issuedAt time.Time) (bool, error)
}

// MultiVerifier tries each verifier in order and returns the first success.
type MultiVerifier []Verifier

func (m MultiVerifier) Verify(ctx context.Context, raw string) (Token, error) {
	var errs []error
	for _, v := range m {
		if v == nil {
			continue
		}
		tok, err := v.Verify(ctx, raw)
		if err == nil {
			return tok, nil
		}
		errs = append(errs, err)
	}
	if len(errs) == 0 {
		return nil, errors.New("no verifier configured")
	}
	return nil, errors.Join(errs...)
}

// AuthMiddleware returns a Gin middleware that verifies Bearer tokens using the provided
// verifier and stores the resulting models.Principal in both the gin and request contexts.
// revoked may be nil.
func AuthMiddleware(ver Verifier, revoked RevocationChecker) gin.HandlerFunc {
	return func(c *gin.Context) {
		auth := c.GetHeader("Authorization")
		if auth == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing Authorization header"})
			return
		}
		var token string
		if n, _ := fmt.Sscanf(auth, "Bearer %s", &token); n != 1 {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid Authorization header"})
			return
		}

		if revoked != nil {
			isRevoked, err := revoked.Contains(c.Request.Context(), token)
			if err != nil {
				logger.Errorf("token revocation check failed: %v", err)
				c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
				return
			}
			if isRevoked {
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "token revoked"})
				return
			}
		}

		verified, err := ver.Verify(c.Request.Context(), token)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}

		var claims map[string]interface{}
		if err := verified.Claims(&claims); err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "failed to parse claims"})
			return
		}
		p, err := PrincipalFromClaims(claims)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
			return
		}

		if uc, ok := revoked.(UserRevocationChecker); ok {
			if at, ok := issuedAt(claims); ok {
				stale, err := uc.UserTokenRevoked(c.Request.Context(), p.UserID, at)
				if err != nil {
					logger.Errorf("user revocation check failed: %v", err)
					c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
					return
				}
				if stale {
					c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "token revoked"})
					return
				}
			}
		}

		c.Set(ContextPrincipal, p)
		c.Set(ContextAccessToken, token)
		c.Request = c.Request.WithContext(models.WithPrincipal(c.Request.Context(), p))
		c.Next()
	}
}

// PrincipalFromClaims maps token claims to a principal. Local tokens carry
// userId/role; SSO tokens carry sub and either a role claim or Keycloak realm roles.
func PrincipalFromClaims(claims map[string]interface{}) (models.Principal, error) {
	var p models.Principal
	if id, ok := claims["userId"].(string); ok && id != "" {
		p.UserID = id
	} else if sub, ok := claims["sub"].(string); ok && sub != "" {
		p.UserID = sub
	}
	if p.UserID == "" {
		return p, errors.New("token has no subject")
	}
	if role, ok := claims["role"].(string); ok && models.ValidRole(role) {
		p.Role = role
	} else if ra, ok := claims["realm_access"].(map[string]interface{}); ok {
		if roles, ok := ra["roles"].([]interface{}); ok {
			for _, r := range roles {
				if s, ok := r.(string); ok && models.ValidRole(s) {
					p.Role = s
					break
				}
			}
		}
	}
	if p.Role == "" {
		return p, errors.New("token has no recognised role")
	}
	return p, nil
}

// issuedAt reads iatMs, falling back to the second-precision iat claim.
func issuedAt(claims map[string]interface{}) (time.Time, bool) {
	if ms, ok := claims["iatMs"].(float64); ok && ms > 0 {
		return time.UnixMilli(int64(ms)), true
	}
	if sec, ok := claims["iat"].(float64); ok && sec > 0 {
		return time.Unix(int64(sec), 0), true
	}
	return time.Time{}, false
}

// GetPrincipal returns the principal set by AuthMiddleware.
func GetPrincipal(c *gin.Context) (models.Principal, bool) {
	v, ok := c.Get(ContextPrincipal)
	if !ok {
		return models.Principal{}, false
	}
	p, ok := v.(models.Principal)
	return p, ok
}

// RequireRoles rejects callers whose role is not listed with 403. Admins always pass.
func RequireRoles(roles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		p, ok := GetPrincipal(c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthenticated"})
			return
		}
		if !p.HasRole(roles...) {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "role " + p.Role + " may not access this resource", "allowed": strings.Join(roles, ",")})
			return
		}
		c.Next()
	}
}
