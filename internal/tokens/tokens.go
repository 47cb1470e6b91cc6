// Package tokens issues and verifies the API's HS256 access tokens.
package tokens

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/openlis/lis-api/internal/config"
	"github.com/openlis/lis-api/internal/models"
	"github.com/openlis/lis-api/pkg/middleware"
)

// Claims is the access token payload. userId and role are what the rest of the
// API authorizes on; iatMs is the issue time in milliseconds, compared against
// per-user revocation stamps.
type Claims struct {
	UserID     string `json:"userId"`
	Role       string `json:"role"`
	IssuedAtMs int64  `json:"iatMs"`
	jwt.RegisteredClaims
}

// GenerateAccessToken creates a signed JWT access token for the user
func GenerateAccessToken(cfg *config.Config, u *models.User, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		UserID:     u.ID.Hex(),
		Role:       u.Role,
		IssuedAtMs: now.UnixMilli(),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   u.ID.Hex(),
			Issuer:    cfg.JWT.Issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			ID:        uuid.NewString(),
		},
	}
	jt := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return jt.SignedString([]byte(cfg.JWT.Secret))
}

// ParseAccessToken validates signature, algorithm and expiry and returns the claims.
func ParseAccessToken(secret, issuer, raw string) (*Claims, error) {
	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired()}
	if issuer != "" {
		opts = append(opts, jwt.WithIssuer(issuer))
	}
	var claims Claims
	_, err := jwt.ParseWithClaims(raw, &claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", token.Header["alg"])
		}
		return []byte(secret), nil
	}, opts...)
	if err != nil {
		return nil, err
	}
	if claims.UserID == "" {
		return nil, errors.New("token has no userId")
	}
	return &claims, nil
}

// Remaining returns how long the token stays valid, used to size blacklist entries.
func (c *Claims) Remaining() time.Duration {
	if c.ExpiresAt == nil {
		return 0
	}
	return time.Until(c.ExpiresAt.Time)
}

// verifiedToken adapts Claims to middleware.Token.
type verifiedToken struct {
	claims *Claims
}

func (t *verifiedToken) Claims(v interface{}) error {
	b, err := json.Marshal(t.claims)
	if err != nil {
		return err
	}
	return json.Unmarshal(b, v)
}

// JWTVerifier verifies locally issued access tokens for AuthMiddleware.
type JWTVerifier struct {
	secret string
	issuer string
}

func NewJWTVerifier(cfg *config.Config) *JWTVerifier {
	return &JWTVerifier{secret: cfg.JWT.Secret, issuer: cfg.JWT.Issuer}
}

func (v *JWTVerifier) Verify(_ context.Context, raw string) (middleware.Token, error) {
	claims, err := ParseAccessToken(v.secret, v.issuer, raw)
	if err != nil {
		return nil, err
	}
	return &verifiedToken{claims: claims}, nil
}
