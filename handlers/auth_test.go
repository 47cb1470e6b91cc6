package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	mr "github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/openlis/lis-api/internal/config"
	"github.com/openlis/lis-api/internal/database"
	"github.com/openlis/lis-api/internal/models"
	"github.com/openlis/lis-api/internal/sessions"
	"github.com/openlis/lis-api/internal/tokens"
	"github.com/openlis/lis-api/internal/users"
	"github.com/openlis/lis-api/pkg/middleware"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"golang.org/x/crypto/bcrypt"
)

type authFixture struct {
	router    *gin.Engine
	users     *users.Service
	userStore *flakyUsers
	user      *models.User
}

// flakyUsers fails lookups by id while down is set.
type flakyUsers struct {
	*users.MemoryRepository
	down bool
}

func (f *flakyUsers) Get(ctx context.Context, id primitive.ObjectID) (*models.User, error) {
	if f.down {
		return nil, errors.New("connection reset by peer")
	}
	return f.MemoryRepository.Get(ctx, id)
}

func newAuthFixture(t *testing.T) *authFixture {
	t.Helper()
	gin.SetMode(gin.TestMode)
	s := mr.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: s.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	cfg := &config.Config{JWT: config.JWTConfig{Secret: "test-secret", Issuer: "lis-api", AccessTokenTTL: 15 * time.Minute, RefreshTokenTTL: time.Hour}}
	sess := sessions.NewService(sessions.NewRedisRepository(rdb, "test"))
	store := &flakyUsers{MemoryRepository: users.NewMemoryRepository(database.NewMemDB())}
	bl := sessions.NewBlacklist(rdb).WithUserTTL(cfg.JWT.AccessTokenTTL)
	usr := users.NewService(store, sess, nil).WithCost(bcrypt.MinCost).WithTokenRevoker(bl)
	u, err := usr.Create(context.Background(), users.CreateInput{Username: "alice", Name: "Alice", Role: models.RoleReceptionist, Password: "front-desk-1"})
	require.NoError(t, err)

	g := gin.New()
	api := g.Group("/api/v1")
	protected := api.Group("", middleware.AuthMiddleware(tokens.NewJWTVerifier(cfg), bl))
	NewAuthHandler(cfg, usr, sess, bl).Register(api, protected)
	return &authFixture{router: g, users: usr, userStore: store, user: u}
}

func (f *authFixture) do(method, path, bearer string, body interface{}) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

func (f *authFixture) login(t *testing.T, password string) TokenResponse {
	t.Helper()
	w := f.do(http.MethodPost, "/api/v1/auth/login", "", gin.H{"username": "alice", "password": password})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var resp TokenResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

func TestLoginAndMe(t *testing.T) {
	fx := newAuthFixture(t)
	resp := fx.login(t, "front-desk-1")
	assert.NotEmpty(t, resp.AccessToken)
	assert.NotEmpty(t, resp.RefreshToken)
	assert.Equal(t, 900, resp.ExpiresIn)

	claims, err := tokens.ParseAccessToken("test-secret", "lis-api", resp.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, fx.user.ID.Hex(), claims.UserID)
	assert.Equal(t, models.RoleReceptionist, claims.Role)

	w := fx.do(http.MethodGet, "/api/v1/auth/me", resp.AccessToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"username":"alice"`)

	w = fx.do(http.MethodPost, "/api/v1/auth/login", "", gin.H{"username": "alice", "password": "nope-nope"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	w = fx.do(http.MethodGet, "/api/v1/auth/me", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestRefreshRotates(t *testing.T) {
	fx := newAuthFixture(t)
	first := fx.login(t, "front-desk-1")

	w := fx.do(http.MethodPost, "/api/v1/auth/refresh", "", gin.H{"refreshToken": first.RefreshToken})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var second TokenResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &second))
	assert.NotEqual(t, first.RefreshToken, second.RefreshToken)

	w = fx.do(http.MethodPost, "/api/v1/auth/refresh", "", gin.H{"refreshToken": first.RefreshToken})
	assert.Equal(t, http.StatusUnauthorized, w.Code, "old refresh token must be single-use")

	_, err := fx.users.Deactivate(context.Background(), fx.user.ID)
	require.NoError(t, err)
	w = fx.do(http.MethodPost, "/api/v1/auth/refresh", "", gin.H{"refreshToken": second.RefreshToken})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestRefreshKeepsSessionWhenUserLookupFails(t *testing.T) {
	fx := newAuthFixture(t)
	first := fx.login(t, "front-desk-1")

	fx.userStore.down = true
	w := fx.do(http.MethodPost, "/api/v1/auth/refresh", "", gin.H{"refreshToken": first.RefreshToken})
	assert.Equal(t, http.StatusInternalServerError, w.Code, w.Body.String())

	fx.userStore.down = false
	w = fx.do(http.MethodPost, "/api/v1/auth/refresh", "", gin.H{"refreshToken": first.RefreshToken})
	assert.Equal(t, http.StatusOK, w.Code, w.Body.String())
}

func TestAccessTokenRejectedAfterRoleChange(t *testing.T) {
	fx := newAuthFixture(t)
	resp := fx.login(t, "front-desk-1")
	require.Equal(t, http.StatusOK, fx.do(http.MethodGet, "/api/v1/auth/me", resp.AccessToken, nil).Code)

	admin := models.WithPrincipal(context.Background(), models.Principal{UserID: "admin1", Role: models.RoleAdmin})
	role := models.RolePhlebotomist
	_, err := fx.users.Update(admin, fx.user.ID, users.UpdateInput{Role: &role})
	require.NoError(t, err)

	w := fx.do(http.MethodGet, "/api/v1/auth/me", resp.AccessToken, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code, "token still carries the old role")
}

func TestLogoutBlacklistsAccessToken(t *testing.T) {
	fx := newAuthFixture(t)
	resp := fx.login(t, "front-desk-1")

	w := fx.do(http.MethodPost, "/api/v1/auth/logout", resp.AccessToken, gin.H{"refreshToken": resp.RefreshToken})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = fx.do(http.MethodGet, "/api/v1/auth/me", resp.AccessToken, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	w = fx.do(http.MethodPost, "/api/v1/auth/refresh", "", gin.H{"refreshToken": resp.RefreshToken})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestChangeOwnPassword(t *testing.T) {
	fx := newAuthFixture(t)
	resp := fx.login(t, "front-desk-1")

	w := fx.do(http.MethodPost, "/api/v1/auth/password", resp.AccessToken, gin.H{"currentPassword": "wrong-one", "newPassword": "front-desk-2"})
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = fx.do(http.MethodPost, "/api/v1/auth/password", resp.AccessToken, gin.H{"currentPassword": "front-desk-1", "newPassword": "front-desk-2"})
	require.Equal(t, http.StatusNoContent, w.Code, w.Body.String())

	w = fx.do(http.MethodPost, "/api/v1/auth/refresh", "", gin.H{"refreshToken": resp.RefreshToken})
	assert.Equal(t, http.StatusUnauthorized, w.Code, "password change ends sessions")
	fx.login(t, "front-desk-2")
}
