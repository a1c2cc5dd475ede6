package controller

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// NotificationController hands queued notices to the session's client.
type NotificationController struct{}

func NewNotificationController() *NotificationController {
	return &NotificationController{}
}

// Drain returns and clears the session's notices, oldest first.
func (nc *NotificationController) Drain(c *gin.Context) {
	s, ok := requireSession(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{"notifications": s.Inbox.Drain()})
}
