package middleware

import (
	"net/http"

	"stocks-trader/session"

	"github.com/gin-gonic/gin"
)

// UserIDKey is the gin context key holding the authenticated user's id.
const UserIDKey = "user_id"

// LoginPath is where unauthenticated requests are sent.
const LoginPath = "/login"

// LoginRequired lets the request through only when its session carries a
// user id, which it copies into the context. Everyone else is redirected to
// the login form and the handler never runs.
func LoginRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		s := session.Default(c)
		if s == nil {
			c.Redirect(http.StatusFound, LoginPath)
			c.Abort()
			return
		}

		userID, ok := s.UserID()
		if !ok {
			c.Redirect(http.StatusFound, LoginPath)
			c.Abort()
			return
		}

		c.Set(UserIDKey, userID)
		c.Next()
	}
}

// UserID returns the id set by LoginRequired.
func UserID(c *gin.Context) uint {
	return c.MustGet(UserIDKey).(uint)
}
