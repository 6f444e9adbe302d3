package middleware

import (
	"encoding/json"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/campus-grievance-api/internal/models"
)

type auditRecorder interface {
	Record(log *models.AuditLog)
}

// Audit records an audit entry after successful requests. It goes through
// the async audit sink so a slow or failing audit store never delays the
// response path. When the route carries an :id param it becomes the
// entry's resource id.
func Audit(sink auditRecorder, action, resource string) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now().UTC()
		c.Next()

		if sink == nil || c.Writer.Status() >= 400 {
			return
		}

		var adminID *string
		if claims, ok := c.Get(ContextAdminKey); ok {
			admin := claims.(*models.JWTClaims)
			adminID = &admin.AdminID
		}
		var resourceID *string
		if id := c.Param("id"); id != "" {
			resourceID = &id
		}

		details, _ := json.Marshal(map[string]interface{}{
			"path":    c.FullPath(),
			"method":  c.Request.Method,
			"status":  c.Writer.Status(),
			"latency": time.Since(start).Milliseconds(),
		})

		sink.Record(&models.AuditLog{
			AdminID:    adminID,
			Action:     action,
			Resource:   resource,
			ResourceID: resourceID,
			Details:    details,
			IPAddress:  c.ClientIP(),
			UserAgent:  c.GetHeader("User-Agent"),
		})
	}
}
