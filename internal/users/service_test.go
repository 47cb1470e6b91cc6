package users

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/openlis/lis-api/internal/database"
	"github.com/openlis/lis-api/internal/models"
	"github.com/openlis/lis-api/internal/sessions"
	"github.com/openlis/lis-api/pkg/apierror"
	"github.com/openlis/lis-api/pkg/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func newService(t *testing.T) (*Service, *sessions.Service) {
	t.Helper()
	sess := sessions.NewService(sessions.NewMemoryRepository())
	return NewService(NewMemoryRepository(database.NewMemDB()), sess, nil).WithCost(bcrypt.MinCost), sess
}

func tech() CreateInput {
	return CreateInput{Username: " Grace ", Name: "Grace Hopper", Role: models.RoleTechnician, Password: "correct horse"}
}

func TestCreateHashesAndNormalizes(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()
	u, err := svc.Create(ctx, tech())
	require.NoError(t, err)
	assert.Equal(t, "grace", u.Username)
	assert.True(t, u.Active)
	assert.NotEqual(t, "correct horse", u.PasswordHash)
	require.NoError(t, bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte("correct horse")))

	_, err = svc.Create(ctx, tech())
	require.ErrorIs(t, err, apierror.ErrConflict)

	bad := tech()
	bad.Username, bad.Role = "other", "janitor"
	_, err = svc.Create(ctx, bad)
	require.ErrorIs(t, err, apierror.ErrInvalid)

	short := tech()
	short.Username, short.Password = "other", "short"
	_, err = svc.Create(ctx, short)
	require.ErrorIs(t, err, apierror.ErrInvalid)
}

func TestAuthenticate(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()
	created, err := svc.Create(ctx, tech())
	require.NoError(t, err)

	u, err := svc.Authenticate(ctx, "GRACE", "correct horse")
	require.NoError(t, err)
	assert.Equal(t, created.ID, u.ID)
	require.NotNil(t, u.LastLoginAt)

	_, err = svc.Authenticate(ctx, "grace", "wrong password")
	require.ErrorIs(t, err, apierror.ErrUnauthorized)
	_, err = svc.Authenticate(ctx, "nobody", "correct horse")
	require.ErrorIs(t, err, apierror.ErrUnauthorized)

	_, err = svc.Deactivate(ctx, created.ID)
	require.NoError(t, err)
	_, err = svc.Authenticate(ctx, "grace", "correct horse")
	require.ErrorIs(t, err, apierror.ErrUnauthorized)
}

func TestPasswordChangeRevokesSessions(t *testing.T) {
	svc, sess := newService(t)
	ctx := context.Background()
	u, err := svc.Create(ctx, tech())
	require.NoError(t, err)
	refresh, err := sess.CreateSession(ctx, u.ID.Hex(), "test", time.Hour)
	require.NoError(t, err)

	err = svc.ChangePassword(ctx, u.ID, "not it", "new password 1")
	require.ErrorIs(t, err, apierror.ErrForbidden)

	require.NoError(t, svc.ChangePassword(ctx, u.ID, "correct horse", "new password 1"))
	got, err := sess.ValidateRefresh(ctx, refresh)
	require.NoError(t, err)
	assert.Nil(t, got)

	_, err = svc.Authenticate(ctx, "grace", "new password 1")
	require.NoError(t, err)
}

func TestSelfProtection(t *testing.T) {
	svc, _ := newService(t)
	admin, err := svc.Create(context.Background(), CreateInput{Username: "root", Name: "Root", Role: models.RoleAdmin, Password: "longenough"})
	require.NoError(t, err)
	ctx := models.WithPrincipal(context.Background(), models.Principal{UserID: admin.ID.Hex(), Role: models.RoleAdmin})

	_, err = svc.Deactivate(ctx, admin.ID)
	require.ErrorIs(t, err, apierror.ErrConflict)
	role := models.RoleTechnician
	_, err = svc.Update(ctx, admin.ID, UpdateInput{Role: &role})
	require.ErrorIs(t, err, apierror.ErrConflict)
	require.ErrorIs(t, svc.Delete(ctx, admin.ID), apierror.ErrConflict)
}

func TestHandlerIsAdminOnly(t *testing.T) {
	gin.SetMode(gin.TestMode)
	svc, _ := newService(t)
	for role, want := range map[string]int{models.RoleAdmin: http.StatusCreated, models.RoleLabManager: http.StatusForbidden} {
		g := gin.New()
		api := g.Group("/api/v1")
		api.Use(func(c *gin.Context) {
			c.Set(middleware.ContextPrincipal, models.Principal{UserID: "x", Role: role})
		})
		NewHandler(svc).Register(api)

		body := `{"username":"u-` + role + `","name":"N","role":"technician","password":"longenough"}`
		req := httptest.NewRequest(http.MethodPost, "/api/v1/users", strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		w := httptest.NewRecorder()
		g.ServeHTTP(w, req)
		assert.Equal(t, want, w.Code, role)
		if want == http.StatusCreated {
			assert.NotContains(t, w.Body.String(), "passwordHash")
		}
	}
}
