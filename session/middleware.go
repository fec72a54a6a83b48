package session

import (
	"errors"

	"github.com/gin-gonic/gin"
)

const contextKey = "session"

// Sessions loads the request's session, if any, into the gin context. A bad
// or stale cookie is dropped.
func Sessions(m *Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		s, err := m.Load(c)
		switch {
		case err == nil:
			c.Set(contextKey, s)
		case errors.Is(err, ErrNotFound):
		case errors.Is(err, ErrInvalidCookie), errors.Is(err, ErrInvalidID):
			m.logger.WithField("path", c.Request.URL.Path).Infof("Dropping session cookie: %v", err)
			m.setCookie(c, "", -1)
		default:
			m.logger.Errorf("Loading session failed: %v", err)
		}
		c.Next()
	}
}

// Default returns the session loaded for this request, or nil.
func Default(c *gin.Context) *Session {
	v, ok := c.Get(contextKey)
	if !ok {
		return nil
	}
	s, _ := v.(*Session)
	return s
}
