package route

import (
	"net/http"

	"github.com/bassista/go_backoffice/internal/api/middleware"
	"github.com/bassista/go_backoffice/internal/app"
	"github.com/bassista/go_backoffice/internal/metrics"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// SetupRoutes builds the engine: health and metrics at the root, everything
// else under /api within a dashboard session.
func SetupRoutes(appCtx *app.App, logger *logrus.Logger) *gin.Engine {
	r := gin.New()
	r.Use(middleware.HoneybadgerMiddleware(logger))
	r.Use(gin.Recovery())
	r.Use(middleware.MetricsMiddleware())
	r.Use(middleware.CORSMiddleware(appCtx.Config.Server.CORSAllowedOrigins))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"message": "UP",
		})
	})
	r.GET("/metrics", gin.WrapH(metrics.Handler()))

	api := r.Group("/api")
	api.Use(middleware.SessionMiddleware(appCtx.Sessions))

	timeout := appCtx.Config.Server.RequestTimeout

	NewConfigurationRouter(timeout, api, appCtx.Config, appCtx.Registry)
	NewNotificationRouter(api)
	NewResourceRouters(timeout, api, appCtx)
	NewPermissionRouter(timeout, api, appCtx.Registry.Permissions, appCtx.Notifier)

	return r
}
