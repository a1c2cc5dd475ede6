package controller

import (
	"net/http"
	"strconv"

	"github.com/bassista/go_backoffice/internal/api/middleware"
	"github.com/bassista/go_backoffice/internal/logger"
	"github.com/bassista/go_backoffice/internal/remote"
	"github.com/bassista/go_backoffice/internal/session"
	"github.com/gin-gonic/gin"
)

// respondError answers with the status and message derived from err.
// fields carries per-field validation messages, if any.
func respondError(c *gin.Context, err error, fields map[string]string) {
	status := remote.StatusCode(err)
	body := gin.H{"error": remote.Message(err)}
	if len(fields) > 0 {
		body["fields"] = fields
	}

	entry := logger.WithComponent("api").WithField("status", status)
	if status >= http.StatusInternalServerError {
		entry.WithError(err).Errorf("%s %s failed", c.Request.Method, c.FullPath())
	} else {
		entry.Debugf("%s %s: %v", c.Request.Method, c.FullPath(), err)
	}

	_ = c.Error(err)
	c.JSON(status, body)
}

// paramID reads the positive :id path parameter, answering 400 when it is not one.
func paramID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return 0, false
	}
	return id, true
}

// requireSession returns the request's session, answering 500 when the
// session middleware is not installed.
func requireSession(c *gin.Context) (*session.Session, bool) {
	s := middleware.Session(c)
	if s == nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "no session"})
		return nil, false
	}
	return s, true
}
