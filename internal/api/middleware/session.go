package middleware

import (
	"github.com/bassista/go_backoffice/internal/session"
	"github.com/gin-gonic/gin"
)

// HeaderSessionID carries the dashboard session between requests.
const HeaderSessionID = "X-Session-ID"

const sessionKey = "session"

// SessionMiddleware attaches the caller's session to the request, creating a
// new one when the header is missing or stale. The id is always echoed back.
func SessionMiddleware(store *session.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		s, _ := store.Acquire(c.GetHeader(HeaderSessionID))
		c.Set(sessionKey, s)
		c.Header(HeaderSessionID, s.ID)
		c.Next()
	}
}

// Session returns the session attached by SessionMiddleware, or nil.
func Session(c *gin.Context) *session.Session {
	v, ok := c.Get(sessionKey)
	if !ok {
		return nil
	}
	s, _ := v.(*session.Session)
	return s
}
