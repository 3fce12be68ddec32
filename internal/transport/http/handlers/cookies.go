package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/shiftwise/workforce-iam/internal/transport/http/middleware"
)

// RecoveryCookieName carries the staged recovery token between recovery calls.
const RecoveryCookieName = "wf_recovery"

// setStageCookie installs an HttpOnly cookie whose lifetime matches the
// token it carries. A refresh with a later expiry replaces the old cookie.
func setStageCookie(c *gin.Context, name, token string, expiresAt time.Time, secure bool) {
	maxAge := int(time.Until(expiresAt).Seconds())
	if maxAge < 0 {
		maxAge = 0
	}

	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(name, token, maxAge, "/", "", secure, true)
}

func clearStageCookie(c *gin.Context, name string, secure bool) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(name, "", -1, "/", "", secure, true)
}

func setSessionCookie(c *gin.Context, token string, expiresAt time.Time, secure bool) {
	setStageCookie(c, middleware.SessionCookieName, token, expiresAt, secure)
}

func clearSessionCookie(c *gin.Context, secure bool) {
	clearStageCookie(c, middleware.SessionCookieName, secure)
}

// cookieToken reads a stage cookie, treating a missing cookie as an empty
// token so that verification fails the same way as a garbage token.
func cookieToken(c *gin.Context, name string) string {
	token, err := c.Cookie(name)
	if err != nil {
		return ""
	}
	return token
}
