package route

import (
	"time"

	"github.com/bassista/go_backoffice/internal/api/controller"
	"github.com/bassista/go_backoffice/internal/api/middleware"
	"github.com/bassista/go_backoffice/internal/app"
	"github.com/bassista/go_backoffice/internal/notify"
	"github.com/bassista/go_backoffice/internal/paginate"
	"github.com/bassista/go_backoffice/internal/repository"
	"github.com/gin-gonic/gin"
)

// NewResourceRouters registers every resource of the registry under group.
func NewResourceRouters(timeout time.Duration, group *gin.RouterGroup, appCtx *app.App) {
	reg := appCtx.Registry
	maxPageSize := appCtx.Config.List.MaxPageSize

	NewResourceRouter(timeout, group, reg.Categories, appCtx.Notifier, maxPageSize)
	NewResourceRouter(timeout, group, reg.Subcategories, appCtx.Notifier, maxPageSize)
	NewResourceRouter(timeout, group, reg.Brands, appCtx.Notifier, maxPageSize)
	NewResourceRouter(timeout, group, reg.Origins, appCtx.Notifier, maxPageSize)
	NewResourceRouter(timeout, group, reg.Measurements, appCtx.Notifier, maxPageSize)
	NewResourceRouter(timeout, group, reg.VehicleBrands, appCtx.Notifier, maxPageSize)
	NewResourceRouter(timeout, group, reg.Quotations, appCtx.Notifier, maxPageSize)
	NewResourceRouter(timeout, group, reg.Users, appCtx.Notifier, maxPageSize)
}

// NewResourceRouter sets up /<name> and /deletions/<name> for one resource.
func NewResourceRouter[E paginate.Entity, D, W any](timeout time.Duration, group *gin.RouterGroup, res *repository.Resource[E, D, W], notifier notify.Presenter, maxPageSize int) {
	rc := controller.NewResourceController[E, D, W](res, notifier, maxPageSize)
	timeoutMiddleware := middleware.RequestTimeout(timeout)

	name := res.Name()
	rc.RegisterRoutes(
		group.Group(name, timeoutMiddleware),
		group.Group("deletions/"+name, timeoutMiddleware),
	)
}
