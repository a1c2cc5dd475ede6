package controller

import (
	"context"
	"errors"
	"net/http"

	"github.com/bassista/go_backoffice/internal/form"
	"github.com/bassista/go_backoffice/internal/notify"
	"github.com/bassista/go_backoffice/internal/remote"
	"github.com/bassista/go_backoffice/internal/repository"
	"github.com/gin-gonic/gin"
)

// PermissionController serves the permission catalogue and per-user permissions.
type PermissionController struct {
	Service  repository.PermissionService
	Notifier notify.Presenter
}

func NewPermissionController(svc repository.PermissionService, notifier notify.Presenter) *PermissionController {
	return &PermissionController{Service: svc, Notifier: notifier}
}

// Catalogue returns every permission, flat and grouped by category.
func (pc *PermissionController) Catalogue(c *gin.Context) {
	perms, err := pc.Service.Catalogue(c.Request.Context())
	if err != nil {
		respondError(c, err, nil)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"permissions": perms,
		"groups":      repository.GroupPermissions(perms),
	})
}

// ForUser returns the permissions granted to user :id.
func (pc *PermissionController) ForUser(c *gin.Context) {
	id, ok := paramID(c)
	if !ok {
		return
	}
	perms, err := pc.Service.ForUser(c.Request.Context(), id)
	if err != nil {
		respondError(c, err, nil)
		return
	}
	c.JSON(http.StatusOK, gin.H{"usuario": id, "permisos": perms})
}

// Update replaces the permissions of user :id. Body: {"permisos": [{"name": ...}]}.
func (pc *PermissionController) Update(c *gin.Context) {
	s, ok := requireSession(c)
	if !ok {
		return
	}
	id, ok := paramID(c)
	if !ok {
		return
	}

	var in repository.PermissionsUpdate
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}
	in.Usuario = id
	if in.Permisos == nil {
		in.Permisos = []repository.PermissionName{}
	}

	var out notify.Presenter = s.Inbox
	if pc.Notifier != nil {
		out = notify.Fanout{s.Inbox, pc.Notifier}
	}

	f := form.New(in)
	err := f.HandleSubmit(c.Request.Context(), func(ctx context.Context, v repository.PermissionsUpdate) error {
		return pc.Service.Update(ctx, v)
	}, nil)
	switch {
	case errors.Is(err, form.ErrInvalid):
		respondError(c, err, f.Errors())
	case err != nil:
		out.Error(notify.Notice{Title: "Permissions not saved", Description: remote.Message(err)})
		respondError(c, err, f.Errors())
	default:
		out.Success(notify.Notice{Title: "Permissions saved"})
		c.JSON(http.StatusOK, gin.H{"usuario": id, "permisos": in.Permisos})
	}
}
