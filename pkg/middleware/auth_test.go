package middleware

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	mr "github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/openlis/lis-api/internal/models"
	"github.com/openlis/lis-api/internal/sessions"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

type fakeToken struct {
	data map[string]interface{}
}

func (t *fakeToken) Claims(v interface{}) error {
	if mm, ok := v.(*map[string]interface{}); ok {
		*mm = t.data
		return nil
	}
	return fmt.Errorf("unsupported claims type")
}

var stampAt = time.Date(2026, 10, 16, 9, 0, 0, 0, time.UTC)

type fakeVerifier struct{}

func (f *fakeVerifier) Verify(ctx context.Context, raw string) (Token, error) {
	switch raw {
	case "goodtoken", "black-token":
		return &fakeToken{data: map[string]interface{}{"userId": "user1", "role": "technician"}}, nil
	case "old-token":
		return &fakeToken{data: map[string]interface{}{"userId": "user1", "role": "technician", "iatMs": float64(stampAt.Add(-time.Minute).UnixMilli())}}, nil
	case "new-token":
		return &fakeToken{data: map[string]interface{}{"userId": "user1", "role": "technician", "iatMs": float64(stampAt.Add(time.Minute).UnixMilli())}}, nil
	case "ssotoken":
		return &fakeToken{data: map[string]interface{}{"sub": "kc-9", "realm_access": map[string]interface{}{"roles": []interface{}{"offline_access", "lab_manager"}}}}, nil
	case "norole":
		return &fakeToken{data: map[string]interface{}{"sub": "x"}}, nil
	}
	return nil, fmt.Errorf("invalid token")
}

func serve(g *gin.Engine, auth string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if auth != "" {
		req.Header.Set("Authorization", auth)
	}
	rw := httptest.NewRecorder()
	g.ServeHTTP(rw, req)
	return rw
}

func TestAuthMiddleware_NoHeader(t *testing.T) {
	g := gin.New()
	g.GET("/", AuthMiddleware(&fakeVerifier{}, nil), func(c *gin.Context) { c.Status(http.StatusOK) })
	require.Equal(t, http.StatusUnauthorized, serve(g, "").Code)
}

func TestAuthMiddleware_InvalidHeader(t *testing.T) {
	g := gin.New()
	g.GET("/", AuthMiddleware(&fakeVerifier{}, nil), func(c *gin.Context) { c.Status(http.StatusOK) })
	require.Equal(t, http.StatusUnauthorized, serve(g, "BadHeader").Code)
	require.Equal(t, http.StatusUnauthorized, serve(g, "Bearer wrong").Code)
	require.Equal(t, http.StatusUnauthorized, serve(g, "Bearer norole").Code)
}

func TestAuthMiddleware_ValidToken(t *testing.T) {
	g := gin.New()
	g.GET("/", AuthMiddleware(&fakeVerifier{}, nil), func(c *gin.Context) {
		p, ok := GetPrincipal(c)
		require.True(t, ok)
		fromCtx, ok := models.PrincipalFrom(c.Request.Context())
		require.True(t, ok)
		require.Equal(t, p, fromCtx)
		c.JSON(http.StatusOK, p)
	})
	rw := serve(g, "Bearer goodtoken")
	require.Equal(t, http.StatusOK, rw.Code)
	var got models.Principal
	require.NoError(t, json.Unmarshal(rw.Body.Bytes(), &got))
	require.Equal(t, models.Principal{UserID: "user1", Role: "technician"}, got)
}

func TestAuthMiddleware_RealmRoles(t *testing.T) {
	g := gin.New()
	g.GET("/", AuthMiddleware(&fakeVerifier{}, nil), func(c *gin.Context) {
		p, _ := GetPrincipal(c)
		c.String(http.StatusOK, p.UserID+"/"+p.Role)
	})
	rw := serve(g, "Bearer ssotoken")
	require.Equal(t, http.StatusOK, rw.Code)
	require.Equal(t, "kc-9/lab_manager", rw.Body.String())
}

func TestAuthMiddleware_RejectsBlacklistedToken(t *testing.T) {
	m, err := mr.Run()
	require.NoError(t, err)
	defer m.Close()
	bl := sessions.NewBlacklist(redis.NewClient(&redis.Options{Addr: m.Addr()}))
	require.NoError(t, bl.Add(context.Background(), "black-token", 5*time.Second))

	g := gin.New()
	g.GET("/", AuthMiddleware(&fakeVerifier{}, bl), func(c *gin.Context) { c.Status(http.StatusOK) })

	require.Equal(t, http.StatusUnauthorized, serve(g, "Bearer black-token").Code)
	require.Equal(t, http.StatusOK, serve(g, "Bearer goodtoken").Code)
}

func TestAuthMiddleware_RejectsTokensIssuedBeforeUserRevocation(t *testing.T) {
	m := mr.RunT(t)
	bl := sessions.NewBlacklist(redis.NewClient(&redis.Options{Addr: m.Addr()}))
	require.NoError(t, bl.RevokeUserTokens(context.Background(), "user1", stampAt))

	g := gin.New()
	g.GET("/", AuthMiddleware(&fakeVerifier{}, bl), func(c *gin.Context) { c.Status(http.StatusOK) })

	require.Equal(t, http.StatusUnauthorized, serve(g, "Bearer old-token").Code)
	require.Equal(t, http.StatusOK, serve(g, "Bearer new-token").Code)
	// tokens without an issue time cannot be compared
	require.Equal(t, http.StatusOK, serve(g, "Bearer goodtoken").Code)
}

func TestRequireRoles(t *testing.T) {
	g := gin.New()
	g.GET("/", AuthMiddleware(&fakeVerifier{}, nil), RequireRoles(models.RoleLabManager), func(c *gin.Context) { c.Status(http.StatusOK) })

	require.Equal(t, http.StatusForbidden, serve(g, "Bearer goodtoken").Code)
	require.Equal(t, http.StatusOK, serve(g, "Bearer ssotoken").Code)
}

func TestMultiVerifier(t *testing.T) {
	mv := MultiVerifier{nil, &fakeVerifier{}}
	_, err := mv.Verify(context.Background(), "goodtoken")
	require.NoError(t, err)
	_, err = mv.Verify(context.Background(), "bad")
	require.Error(t, err)
	_, err = MultiVerifier{}.Verify(context.Background(), "x")
	require.Error(t, err)
}
