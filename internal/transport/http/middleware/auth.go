package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/shiftwise/workforce-iam/internal/infra/security"
)

const (
	// SessionCookieName carries the signed session token.
	SessionCookieName = "wf_session"
	// RoleKey is the gin context key for the authenticated role.
	RoleKey = "role"
)

// RequireSession verifies the session cookie and stores the caller's
// identity in the request context.
func RequireSession(codec *security.TokenCodec) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, err := c.Cookie(SessionCookieName)
		if err != nil || token == "" {
			abortUnauthorized(c, "authentication required")
			return
		}

		claims, err := codec.VerifySession(token)
		if err != nil {
			abortUnauthorized(c, "session invalid or expired")
			return
		}

		c.Set(UserIDKey, claims.UserID)
		c.Set(RoleKey, claims.Role)

		c.Next()
	}
}

func abortUnauthorized(c *gin.Context, message string) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
		"error":    message,
		"trace_id": GetTraceID(c),
	})
}
