package route

import (
	"time"

	"github.com/bassista/go_backoffice/internal/api/controller"
	"github.com/bassista/go_backoffice/internal/api/middleware"
	"github.com/bassista/go_backoffice/internal/config"
	"github.com/gin-gonic/gin"
)

// NewConfigurationRouter sets up configuration-related routes.
func NewConfigurationRouter(timeout time.Duration, group *gin.RouterGroup, cfg *config.Config, resources controller.ResourceDescriber) {
	cc := controller.NewConfigurationController(cfg, resources)
	timeoutMiddleware := middleware.RequestTimeout(timeout)

	group.GET("configuration", timeoutMiddleware, cc.GetConfiguration)
}

// NewNotificationRouter sets up the session notice endpoint.
func NewNotificationRouter(group *gin.RouterGroup) {
	nc := controller.NewNotificationController()
	group.GET("notifications", nc.Drain)
}
