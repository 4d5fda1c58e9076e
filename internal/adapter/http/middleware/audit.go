package middleware

import (
	"fmt"
	"net/http"

	"settlement-ledger/internal/core/domain"
	"settlement-ledger/internal/core/ports"

	"github.com/gin-gonic/gin"
)

// AuditDenied records requests rejected for authentication or rate limiting.
// Business outcomes are audited by the services themselves.
func AuditDenied(auditSvc ports.AuditService) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		status := c.Writer.Status()
		if status != http.StatusUnauthorized && status != http.StatusTooManyRequests {
			return
		}

		actor := AdminSubject(c)
		if actor == "" {
			actor = c.ClientIP()
		}
		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}

		auditSvc.Append(c.Request.Context(), actor, domain.AuditActionAccessDenied, domain.AuditOutcomeFailed,
			fmt.Sprintf("method=%s path=%s status=%d", c.Request.Method, path, status))
	}
}
