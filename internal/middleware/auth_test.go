package middleware

import (
	"context"
	"database/sql"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/atelierhq/onboarding-api/internal/models"
	"github.com/atelierhq/onboarding-api/internal/service"
)

type stubUsers struct {
	user *models.User
}

func (s *stubUsers) FindByEmail(_ context.Context, email string) (*models.User, error) {
	if s.user == nil || s.user.Email != email {
		return nil, sql.ErrNoRows
	}
	return s.user, nil
}

func (s *stubUsers) UpdateLastLogin(_ context.Context, _ string, _ time.Time) error { return nil }

type stubAudit struct{}

func (stubAudit) Create(_ context.Context, _ *models.AuditLog) error { return nil }

func newTestAuthService(t *testing.T) (*service.AuthService, string) {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte("hunter2"), bcrypt.MinCost)
	require.NoError(t, err)

	svc := service.NewAuthService(&stubUsers{user: &models.User{
		ID:             "user-1",
		OrganizationID: "org-1",
		Email:          "owner@atelier.test",
		PasswordHash:   string(hash),
		Role:           models.RoleOwner,
		Active:         true,
	}}, stubAudit{}, nil, nil, service.AuthConfig{Secret: "test-secret", Expiration: time.Hour})

	result, err := svc.Login(context.Background(), models.LoginRequest{
		Email:    "owner@atelier.test",
		Password: "hunter2",
	})
	require.NoError(t, err)
	return svc, result.AccessToken
}

func authRequest(header string) (*httptest.ResponseRecorder, *gin.Context) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/templates", nil)
	if header != "" {
		c.Request.Header.Set("Authorization", header)
	}
	return w, c
}

func TestJWTRejectsMissingHeader(t *testing.T) {
	svc, _ := newTestAuthService(t)
	w, c := authRequest("")

	JWT(svc)(c)
	assert.True(t, c.IsAborted())
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestJWTRejectsMalformedHeader(t *testing.T) {
	svc, token := newTestAuthService(t)
	w, c := authRequest("Token " + token)

	JWT(svc)(c)
	assert.True(t, c.IsAborted())
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestJWTRejectsGarbageToken(t *testing.T) {
	svc, _ := newTestAuthService(t)
	w, c := authRequest("Bearer not-a-token")

	JWT(svc)(c)
	assert.True(t, c.IsAborted())
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestJWTSetsClaims(t *testing.T) {
	svc, token := newTestAuthService(t)
	_, c := authRequest("Bearer " + token)

	JWT(svc)(c)
	require.False(t, c.IsAborted())

	value, exists := c.Get(ContextUserKey)
	require.True(t, exists)
	claims, ok := value.(*models.JWTClaims)
	require.True(t, ok)
	assert.Equal(t, "user-1", claims.UserID)
	assert.Equal(t, "org-1", claims.OrganizationID)
	assert.Equal(t, models.RoleOwner, claims.Role)
}

func TestRequireRolesWithoutClaims(t *testing.T) {
	w, c := authRequest("")

	RequireRoles(models.RoleOwner)(c)
	assert.True(t, c.IsAborted())
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestRequireRolesForbiddenRole(t *testing.T) {
	w, c := authRequest("")
	c.Set(ContextUserKey, &models.JWTClaims{Role: models.RoleMember})

	RequireRoles(models.RoleOwner, models.RoleAdmin)(c)
	assert.True(t, c.IsAborted())
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestRequireRolesAllowsMatchingRole(t *testing.T) {
	_, c := authRequest("")
	c.Set(ContextUserKey, &models.JWTClaims{Role: models.RoleAdmin})

	RequireRoles(models.RoleOwner, models.RoleAdmin)(c)
	assert.False(t, c.IsAborted())
}
