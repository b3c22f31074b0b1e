package auth

import (
	"github.com/gin-gonic/gin"
)

// OptionalAuthMiddleware inspects for a token and sets the userID if present and valid,
// but does not fail if the token is missing or invalid.
func OptionalAuthMiddleware(a Authenticator) gin.HandlerFunc {
	return func(c *gin.Context) {
		if tokenString := tokenFrom(c); tokenString != "" {
			if userID, err := a.Authenticate(tokenString); err == nil {
				c.Set(ContextUserID, userID)
			}
		}
		c.Next()
	}
}
