package repository

import (
	"context"
	"net/url"

	"github.com/bassista/go_backoffice/internal/paginate"
)

// PageFetcher loads one page of a list. List screens depend on this only.
type PageFetcher[E paginate.Entity] interface {
	FetchPage(ctx context.Context, params url.Values) (paginate.PageResult[E], error)
}

// DetailReader loads a single entity.
type DetailReader[D any] interface {
	Detail(ctx context.Context, id int64) (D, error)
}

// Writer creates, updates and deletes entities.
type Writer[D, W any] interface {
	Create(ctx context.Context, in W) (D, error)
	Update(ctx context.Context, id int64, in W) (D, error)
	Delete(ctx context.Context, id int64) error
}

// Collection is everything the HTTP and CLI layers use from a resource.
type Collection[E paginate.Entity, D, W any] interface {
	PageFetcher[E]
	DetailReader[D]
	Writer[D, W]
	Describe() Descriptor
	Capabilities() Capabilities
	Invalidate() int
	Enabled(params url.Values) bool
	PageSize() int
	Filters() []string
	SearchFields() []paginate.Field[E]
}

// PermissionService reads and replaces user permissions.
type PermissionService interface {
	Catalogue(ctx context.Context) ([]Permission, error)
	ForUser(ctx context.Context, userID int64) ([]Permission, error)
	Update(ctx context.Context, in PermissionsUpdate) error
}

var (
	_ Collection[Brand, BrandDetail, BrandInput] = (*Resource[Brand, BrandDetail, BrandInput])(nil)
	_ Collection[User, User, struct{}]           = (*Resource[User, User, struct{}])(nil)
	_ PermissionService                          = (*Permissions)(nil)
)
