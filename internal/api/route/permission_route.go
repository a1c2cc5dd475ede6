package route

import (
	"time"

	"github.com/bassista/go_backoffice/internal/api/controller"
	"github.com/bassista/go_backoffice/internal/api/middleware"
	"github.com/bassista/go_backoffice/internal/notify"
	"github.com/bassista/go_backoffice/internal/repository"
	"github.com/gin-gonic/gin"
)

// NewPermissionRouter sets up the permission catalogue and per-user permission routes.
func NewPermissionRouter(timeout time.Duration, group *gin.RouterGroup, svc repository.PermissionService, notifier notify.Presenter) {
	pc := controller.NewPermissionController(svc, notifier)
	timeoutMiddleware := middleware.RequestTimeout(timeout)

	group.GET("permissions", timeoutMiddleware, pc.Catalogue)
	group.GET("users/:id/permissions", timeoutMiddleware, pc.ForUser)
	group.PUT("users/:id/permissions", timeoutMiddleware, pc.Update)
}
