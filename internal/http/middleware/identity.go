package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

const (
	ObserverIDHeader   = "X-Observer-Id"
	ObserverRoleHeader = "X-Observer-Role"

	ObserverIDKey   = "observer_id"
	ObserverRoleKey = "observer_role"

	RoleSupervisor = "supervisor"
	RoleOfficer    = "officer"
)

// Identity reads the caller's id and role from trusted gateway headers.
// Requests without an id are rejected before any handler runs.
func Identity() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(ObserverIDHeader)
		if id == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": gin.H{
					"code":    "UNAUTHORIZED",
					"message": "Missing " + ObserverIDHeader + " header",
				},
			})
			return
		}
		role := c.GetHeader(ObserverRoleHeader)
		if role == "" {
			role = RoleOfficer
		}
		c.Set(ObserverIDKey, id)
		c.Set(ObserverRoleKey, role)
		c.Next()
	}
}

// RequireRole gates a route group on the caller's role.
func RequireRole(role string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.GetString(ObserverRoleKey) != role {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"error": gin.H{
					"code":    "FORBIDDEN",
					"message": "Requires " + role + " role",
				},
			})
			return
		}
		c.Next()
	}
}
