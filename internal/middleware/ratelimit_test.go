package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/campus-grievance-api/internal/models"
	"github.com/noah-isme/campus-grievance-api/pkg/ratelimit"
)

func TestRateLimitThrottlesPerAdmin(t *testing.T) {
	gin.SetMode(gin.TestMode)
	limiter := ratelimit.NewTokenBucket(2, time.Hour)

	r := gin.New()
	r.POST("/tracking", func(c *gin.Context) {
		c.Set(ContextAdminKey, &models.JWTClaims{AdminID: c.GetHeader("X-Test-Admin")})
		c.Next()
	}, RateLimit(limiter, nil), func(c *gin.Context) {
		c.Status(http.StatusCreated)
	})

	do := func(admin string) int {
		w := httptest.NewRecorder()
		req, err := http.NewRequest(http.MethodPost, "/tracking", nil)
		require.NoError(t, err)
		req.Header.Set("X-Test-Admin", admin)
		r.ServeHTTP(w, req)
		return w.Code
	}

	require.Equal(t, http.StatusCreated, do("adm-1"))
	require.Equal(t, http.StatusCreated, do("adm-1"))
	require.Equal(t, http.StatusTooManyRequests, do("adm-1"))

	// A different admin has its own bucket.
	require.Equal(t, http.StatusCreated, do("adm-2"))
}

func TestRateLimitNilLimiterPassesThrough(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.POST("/tracking", RateLimit(nil, nil), func(c *gin.Context) {
		c.Status(http.StatusCreated)
	})

	w := httptest.NewRecorder()
	req, err := http.NewRequest(http.MethodPost, "/tracking", nil)
	require.NoError(t, err)
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusCreated, w.Code)
}
