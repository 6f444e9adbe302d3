package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/campus-grievance-api/internal/models"
)

func performWithClaims(t *testing.T, claims *models.JWTClaims, mw gin.HandlerFunc) *httptest.ResponseRecorder {
	t.Helper()
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/protected", func(c *gin.Context) {
		if claims != nil {
			c.Set(ContextAdminKey, claims)
		}
		c.Next()
	}, mw, func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	w := httptest.NewRecorder()
	req, err := http.NewRequest(http.MethodGet, "/protected", nil)
	require.NoError(t, err)
	r.ServeHTTP(w, req)
	return w
}

func TestRequireRolesAllows(t *testing.T) {
	claims := &models.JWTClaims{AdminID: "adm-1", Role: models.RoleSuperAdmin}
	w := performWithClaims(t, claims, RequireRoles(models.RoleSuperAdmin))
	require.Equal(t, http.StatusOK, w.Code)
}

func TestRequireRolesForbidsOtherRole(t *testing.T) {
	claims := &models.JWTClaims{AdminID: "adm-1", Role: models.RoleDeptAdmin}
	w := performWithClaims(t, claims, RequireRoles(models.RoleSuperAdmin))
	require.Equal(t, http.StatusForbidden, w.Code)
}

func TestRequireRolesRejectsAnonymous(t *testing.T) {
	w := performWithClaims(t, nil, RequireRoles(models.RoleSuperAdmin))
	require.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAnyAdminAcceptsEveryRole(t *testing.T) {
	for _, role := range []models.AdminRole{models.RoleSuperAdmin, models.RoleCampusAdmin, models.RoleDeptAdmin} {
		claims := &models.JWTClaims{AdminID: "adm-1", Role: role}
		w := performWithClaims(t, claims, AnyAdmin())
		require.Equalf(t, http.StatusOK, w.Code, "role %s", role)
	}
}
