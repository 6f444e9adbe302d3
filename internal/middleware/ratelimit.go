package middleware

import (
	"go.uber.org/zap"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/campus-grievance-api/internal/models"
	appErrors "github.com/noah-isme/campus-grievance-api/pkg/errors"
	"github.com/noah-isme/campus-grievance-api/pkg/ratelimit"
	"github.com/noah-isme/campus-grievance-api/pkg/response"
)

// RateLimit throttles write endpoints per acting admin. Limiter errors fail
// open: the request proceeds and the error is logged.
func RateLimit(limiter ratelimit.Limiter, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		if limiter == nil {
			c.Next()
			return
		}

		actor := c.ClientIP()
		if claims, ok := c.Get(ContextAdminKey); ok {
			actor = claims.(*models.JWTClaims).AdminID
		}

		allowed, err := limiter.Allow(c.Request.Context(), actor)
		if err != nil && logger != nil {
			logger.Warn("rate limiter degraded", zap.String("actor", actor), zap.Error(err))
		}
		if !allowed {
			response.Error(c, appErrors.ErrRateLimited)
			c.Abort()
			return
		}
		c.Next()
	}
}
