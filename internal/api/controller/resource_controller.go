package controller

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/bassista/go_backoffice/internal/form"
	"github.com/bassista/go_backoffice/internal/mutation"
	"github.com/bassista/go_backoffice/internal/notify"
	"github.com/bassista/go_backoffice/internal/paginate"
	"github.com/bassista/go_backoffice/internal/remote"
	"github.com/bassista/go_backoffice/internal/repository"
	"github.com/bassista/go_backoffice/internal/screen"
	"github.com/bassista/go_backoffice/internal/session"
	"github.com/gin-gonic/gin"
)

// DeletionState is the delete confirmation of a session for one resource.
type DeletionState struct {
	Resource string `json:"resource"`
	Open     bool   `json:"open"`
	Pending  bool   `json:"pending"`
	Target   *int64 `json:"target,omitempty"`
	Executed bool   `json:"executed,omitempty"`
}

// ResourceController serves one backend resource: the session's list screen,
// details, form-validated writes and confirmed deletes.
type ResourceController[E paginate.Entity, D, W any] struct {
	Resource    repository.Collection[E, D, W]
	Notifier    notify.Presenter
	MaxPageSize int

	name string
}

// NewResourceController creates a controller for res. notifier receives a copy
// of every notice besides the session inbox and may be nil.
func NewResourceController[E paginate.Entity, D, W any](res repository.Collection[E, D, W], notifier notify.Presenter, maxPageSize int) *ResourceController[E, D, W] {
	return &ResourceController[E, D, W]{
		Resource:    res,
		Notifier:    notifier,
		MaxPageSize: maxPageSize,
		name:        res.Describe().Name,
	}
}

// RegisterRoutes registers the resource endpoints on rg and the delete
// confirmation endpoints on deletions.
func (rc *ResourceController[E, D, W]) RegisterRoutes(rg, deletions *gin.RouterGroup) {
	rg.GET("", rc.List)
	rg.POST("refresh", rc.Refresh)
	rg.GET(":id", rc.Detail)
	rg.POST("", rc.Create)
	rg.PUT(":id", rc.Update)
	rg.POST(":id/delete", rc.OpenDelete)

	deletions.GET("", rc.DeletionState)
	deletions.POST("confirm", rc.ConfirmDelete)
	deletions.DELETE("", rc.CancelDelete)
}

func (rc *ResourceController[E, D, W]) screen(s *session.Session) *screen.List[E] {
	return session.Value(s, "screen:"+rc.name, func() *screen.List[E] {
		return screen.NewList[E](rc.name, rc.Resource, screen.Options[E]{
			PageSize: rc.Resource.PageSize(),
			Search:   rc.Resource.SearchFields(),
		})
	})
}

func (rc *ResourceController[E, D, W]) presenter(s *session.Session) notify.Presenter {
	if rc.Notifier == nil {
		return s.Inbox
	}
	return notify.Fanout{s.Inbox, rc.Notifier}
}

func (rc *ResourceController[E, D, W]) confirmer(s *session.Session) *mutation.Confirmer[int64, struct{}] {
	// session.Value holds the session lock while creating, so the
	// dependencies are resolved first.
	list := rc.screen(s)
	out := rc.presenter(s)
	return session.Value(s, "delete:"+rc.name, func() *mutation.Confirmer[int64, struct{}] {
		return mutation.NewConfirmer(
			func(ctx context.Context, id int64) (struct{}, error) {
				return struct{}{}, rc.Resource.Delete(ctx, id)
			},
			func(_ struct{}, id int64) {
				list.Remove(id)
				out.Success(notify.Notice{
					Title:       "Deleted",
					Description: fmt.Sprintf("%s #%d was deleted", rc.name, id),
				})
			},
			func(err error, id int64) {
				out.Error(notify.Notice{
					Title:       "Delete failed",
					Description: fmt.Sprintf("%s #%d: %s", rc.name, id, remote.Message(err)),
				})
			},
		)
	})
}

// List loads the session's screen and returns its view.
// Query: page, per_page, mode, search, more=true and the resource filters.
func (rc *ResourceController[E, D, W]) List(c *gin.Context) {
	s, ok := requireSession(c)
	if !ok {
		return
	}
	list := rc.screen(s)

	if raw, ok := c.GetQuery("mode"); ok {
		mode, err := paginate.ParseMode(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		list.SetMode(mode)
	}

	if raw, ok := c.GetQuery("per_page"); ok {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid per_page"})
			return
		}
		if rc.MaxPageSize > 0 && n > rc.MaxPageSize {
			n = rc.MaxPageSize
		}
		list.SetPageSize(n)
	}

	values := map[string]string{}
	for _, key := range rc.Resource.Filters() {
		if v, ok := c.GetQuery(key); ok {
			values[key] = v
		}
	}
	list.ApplyFilters(values)

	if q, ok := c.GetQuery("search"); ok {
		list.SetSearch(q)
	}

	page := list.Filters().Page()
	if raw, ok := c.GetQuery("page"); ok {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid page"})
			return
		}
		page = n
	}

	var err error
	if c.Query("more") == "true" {
		err = list.LoadMore(c.Request.Context())
		if errors.Is(err, screen.ErrNoMorePages) {
			err = nil
		}
	} else {
		err = list.Load(c.Request.Context(), page)
	}

	// A failed page keeps the previous items; the view carries the error inline.
	if err != nil {
		c.JSON(remote.StatusCode(err), list.View())
		return
	}
	c.JSON(http.StatusOK, list.View())
}

// Refresh drops the cached lists and reloads the first page.
func (rc *ResourceController[E, D, W]) Refresh(c *gin.Context) {
	s, ok := requireSession(c)
	if !ok {
		return
	}
	list := rc.screen(s)

	rc.Resource.Invalidate()
	list.Refresh()
	if err := list.Load(c.Request.Context(), 1); err != nil {
		c.JSON(remote.StatusCode(err), list.View())
		return
	}
	c.JSON(http.StatusOK, list.View())
}

// Detail returns one entity.
func (rc *ResourceController[E, D, W]) Detail(c *gin.Context) {
	id, ok := paramID(c)
	if !ok {
		return
	}
	d, err := rc.Resource.Detail(c.Request.Context(), id)
	if err != nil {
		respondError(c, err, nil)
		return
	}
	c.JSON(http.StatusOK, d)
}

// Create validates the payload and creates the entity.
func (rc *ResourceController[E, D, W]) Create(c *gin.Context) {
	rc.write(c, "create", 0, http.StatusCreated)
}

// Update validates the payload and replaces the entity.
func (rc *ResourceController[E, D, W]) Update(c *gin.Context) {
	id, ok := paramID(c)
	if !ok {
		return
	}
	rc.write(c, "update", id, http.StatusOK)
}

func (rc *ResourceController[E, D, W]) write(c *gin.Context, op string, id int64, okStatus int) {
	s, ok := requireSession(c)
	if !ok {
		return
	}
	caps := rc.Resource.Capabilities()
	if (op == "create" && !caps.Create) || (op == "update" && !caps.Update) {
		c.JSON(http.StatusMethodNotAllowed, gin.H{"error": fmt.Sprintf("%s cannot be %sd", rc.name, op)})
		return
	}

	var draft W
	if err := c.ShouldBindJSON(&draft); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}

	var saved D
	f := form.New(draft)
	err := f.HandleSubmit(c.Request.Context(), func(ctx context.Context, in W) error {
		var err error
		if op == "create" {
			saved, err = rc.Resource.Create(ctx, in)
		} else {
			saved, err = rc.Resource.Update(ctx, id, in)
		}
		return err
	}, nil)

	out := rc.presenter(s)
	switch {
	case errors.Is(err, form.ErrInvalid):
		respondError(c, err, f.Errors())
	case err != nil:
		out.Error(notify.Notice{Title: "Save failed", Description: fmt.Sprintf("%s: %s", rc.name, remote.Message(err))})
		respondError(c, err, f.Errors())
	default:
		out.Success(notify.Notice{Title: "Saved", Description: fmt.Sprintf("%s %sd", rc.name, op)})
		c.JSON(okStatus, saved)
	}
}

func (rc *ResourceController[E, D, W]) state(conf *mutation.Confirmer[int64, struct{}]) DeletionState {
	st := DeletionState{Resource: rc.name, Open: conf.IsOpen(), Pending: conf.IsPending()}
	if id, ok := conf.Variables(); ok {
		st.Target = &id
	}
	return st
}

// OpenDelete asks the session to confirm deleting :id.
func (rc *ResourceController[E, D, W]) OpenDelete(c *gin.Context) {
	s, ok := requireSession(c)
	if !ok {
		return
	}
	if !rc.Resource.Capabilities().Delete {
		c.JSON(http.StatusMethodNotAllowed, gin.H{"error": fmt.Sprintf("%s cannot be deleted", rc.name)})
		return
	}
	id, ok := paramID(c)
	if !ok {
		return
	}
	conf := rc.confirmer(s)
	conf.Open(id)
	c.JSON(http.StatusAccepted, rc.state(conf))
}

// DeletionState returns the pending confirmation, if any.
func (rc *ResourceController[E, D, W]) DeletionState(c *gin.Context) {
	s, ok := requireSession(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, rc.state(rc.confirmer(s)))
}

// ConfirmDelete runs the pending delete. Without a pending target, or while
// one is already running, nothing happens and executed is false.
func (rc *ResourceController[E, D, W]) ConfirmDelete(c *gin.Context) {
	s, ok := requireSession(c)
	if !ok {
		return
	}
	conf := rc.confirmer(s)
	ran, err := conf.Confirm(c.Request.Context())
	if err != nil {
		respondError(c, err, nil)
		return
	}
	st := rc.state(conf)
	st.Executed = ran
	c.JSON(http.StatusOK, st)
}

// CancelDelete closes the confirmation without deleting.
func (rc *ResourceController[E, D, W]) CancelDelete(c *gin.Context) {
	s, ok := requireSession(c)
	if !ok {
		return
	}
	rc.confirmer(s).Close()
	c.Status(http.StatusNoContent)
}
