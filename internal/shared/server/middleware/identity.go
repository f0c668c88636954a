package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"
)

const userIDKey = "userId"

// Identity resolves the caller identity from the X-User-Id header. Requests
// without one are treated as anonymous.
func Identity() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := strings.TrimSpace(c.GetHeader("X-User-Id"))
		if id == "" {
			id = "anonymous"
		}
		c.Set(userIDKey, id)
		c.Next()
	}
}

// UserIDFromContext fetches the user ID stored by Identity middleware.
func UserIDFromContext(c *gin.Context) string {
	if c == nil {
		return ""
	}
	val, _ := c.Get(userIDKey)
	if id, ok := val.(string); ok {
		return id
	}
	return ""
}
