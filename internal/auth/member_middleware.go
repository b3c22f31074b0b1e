package auth

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// MembershipChecker reports whether a user belongs to a conversation.
type MembershipChecker interface {
	IsMember(ctx context.Context, conversationID, userID string) (bool, error)
}

// MemberMiddleware only lets members of the conversation named by the param
// path parameter through. It must be used AFTER the standard AuthMiddleware.
func MemberMiddleware(checker MembershipChecker, param string) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := UserID(c)
		if userID == "" {
			// This should not happen if AuthMiddleware is used before it
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
			return
		}

		ok, err := checker.IsMember(c.Request.Context(), c.Param(param), userID)
		if err != nil {
			logrus.WithFields(logrus.Fields{
				"function": "auth.MemberMiddleware",
				"userID":   userID,
				"error":    err.Error(),
			}).Error("Failed to check conversation membership")
			c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"error": "Backend unavailable, please retry"})
			return
		}
		if !ok {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "Not a member of this conversation"})
			return
		}

		c.Next()
	}
}
