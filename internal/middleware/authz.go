package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"estatecrm/internal/authz"
)

// RequireCapability rejects callers whose role lacks every one of caps.
func RequireCapability(caps ...authz.Capability) gin.HandlerFunc {
	return func(c *gin.Context) {
		actor, ok := ActorFrom(c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Authentication credentials were not provided."})
			return
		}
		for _, want := range caps {
			if authz.Can(actor, want) {
				c.Next()
				return
			}
		}
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "You do not have permission to perform this action."})
	}
}
