// Package actor identifies who performs a request. It carries identity only;
// verifying that identity belongs to whatever sits in front of the gateway.
package actor

import (
	"strings"

	"github.com/gin-gonic/gin"
)

const (
	HeaderKey  = "X-Actor-ID"
	contextKey = "actor_id"
)

// Middleware copies the actor header into the Gin context.
func Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if id := strings.TrimSpace(c.GetHeader(HeaderKey)); id != "" {
			c.Set(contextKey, id)
		}
		c.Next()
	}
}

// Value returns the actor identifier, or "" when the request carried none.
func Value(c *gin.Context) string {
	return c.GetString(contextKey)
}

// Set stores an actor identifier; used by tests and internal callers.
func Set(c *gin.Context, id string) {
	c.Set(contextKey, id)
}
