package repository

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"reflect"
	"strconv"
	"time"

	"github.com/bassista/go_backoffice/internal/cache"
	"github.com/bassista/go_backoffice/internal/logger"
	"github.com/bassista/go_backoffice/internal/mutation"
	"github.com/bassista/go_backoffice/internal/paginate"
	"github.com/bassista/go_backoffice/internal/remote"
	"github.com/containerd/errdefs"
)

const (
	ParamPage     = "pagina"
	ParamPageSize = "pagina_registros"
)

// ErrQueryDisabled is returned when a list is asked for with filters that do
// not allow the query to run yet, e.g. quotations without a branch.
var ErrQueryDisabled = fmt.Errorf("%w: query disabled for the current filters", errdefs.ErrFailedPrecondition)

// Keys builds the cache keys of a resource: all > lists > list(params) and all > details > detail(id).
type Keys struct {
	root string
}

func NewKeys(resource string) Keys {
	return Keys{root: resource}
}

func (k Keys) All() cache.Key {
	return cache.NewKey(k.root)
}

func (k Keys) Lists() cache.Key {
	return k.All().Append("list")
}

// List keys on the encoded params; url.Values.Encode sorts by name so equal filters share a key.
func (k Keys) List(params url.Values) cache.Key {
	return k.Lists().Append(params.Encode())
}

func (k Keys) Details() cache.Key {
	return k.All().Append("detail")
}

func (k Keys) Detail(id int64) cache.Key {
	return k.Details().Append(strconv.FormatInt(id, 10))
}

// Capabilities lists the mutations the backend offers for a resource.
type Capabilities struct {
	Create bool `json:"create"`
	Update bool `json:"update"`
	Delete bool `json:"delete"`
}

// Definition describes a backend resource.
type Definition[E paginate.Entity] struct {
	// Name is the resource name used in keys, routes and logs, e.g. "vehiclebrands".
	Name string
	// Path is the backend path, e.g. "/vehiclebrands".
	Path      string
	StaleTime time.Duration
	PageSize  int
	// Filters are the query parameters the list accepts besides paging.
	Filters []string
	// Search are the fields the local text search looks at.
	Search []paginate.Field[E]
	// Enabled decides whether a list query may run with the given params. Nil means always.
	Enabled func(params url.Values) bool
	Caps    Capabilities
}

// Descriptor is the public summary of a resource.
type Descriptor struct {
	Name      string       `json:"name"`
	Path      string       `json:"path"`
	StaleTime string       `json:"stale_time"`
	PageSize  int          `json:"page_size"`
	Filters   []string     `json:"filters"`
	Caps      Capabilities `json:"capabilities"`
}

// Update is the payload of an update mutation.
type Update[W any] struct {
	ID   int64
	Data W
}

// Resource reads a backend collection through the query cache and mutates it
// through executors that keep the cache coherent.
type Resource[E paginate.Entity, D any, W any] struct {
	def    Definition[E]
	client *remote.Client
	cache  cache.QueryCache
	keys   Keys

	create *mutation.Executor[W, D]
	update *mutation.Executor[Update[W], D]
	remove *mutation.Executor[int64, struct{}]
}

func NewResource[E paginate.Entity, D any, W any](client *remote.Client, qc cache.QueryCache, def Definition[E]) *Resource[E, D, W] {
	if def.StaleTime <= 0 {
		def.StaleTime = cache.DefaultStaleTime
	}
	if def.PageSize <= 0 {
		def.PageSize = 20
	}

	r := &Resource[E, D, W]{def: def, client: client, cache: qc, keys: NewKeys(def.Name)}

	r.create = mutation.NewExecutor(qc, func(ctx context.Context, in W) (D, error) {
		return remote.Post[D](ctx, r.client, r.def.Path, in, remote.MaybeUnwrap())
	}, mutation.Options[W, D]{
		Name:       def.Name + ".create",
		Invalidate: []cache.Key{r.keys.Lists()},
	})

	r.update = mutation.NewExecutor(qc, func(ctx context.Context, in Update[W]) (D, error) {
		return remote.Put[D](ctx, r.client, r.itemPath(in.ID), in.Data, remote.MaybeUnwrap())
	}, mutation.Options[Update[W], D]{
		Name:       def.Name + ".update",
		Invalidate: []cache.Key{r.keys.Lists()},
		DetailKey: func(in Update[W], out D) (cache.Key, bool) {
			// An empty answer carries nothing worth caching; the next read refetches.
			return r.keys.Detail(in.ID), !isZero(out)
		},
	})

	r.remove = mutation.NewExecutor(qc, func(ctx context.Context, id int64) (struct{}, error) {
		return struct{}{}, remote.Delete(ctx, r.client, r.itemPath(id))
	}, mutation.Options[int64, struct{}]{
		Name:       def.Name + ".delete",
		Invalidate: []cache.Key{r.keys.Lists(), r.keys.Details()},
	})

	return r
}

func (r *Resource[E, D, W]) Name() string { return r.def.Name }

func (r *Resource[E, D, W]) Keys() Keys { return r.keys }

func (r *Resource[E, D, W]) PageSize() int { return r.def.PageSize }

func (r *Resource[E, D, W]) Filters() []string { return r.def.Filters }

func (r *Resource[E, D, W]) SearchFields() []paginate.Field[E] { return r.def.Search }

func (r *Resource[E, D, W]) Capabilities() Capabilities { return r.def.Caps }

func (r *Resource[E, D, W]) Describe() Descriptor {
	return Descriptor{
		Name:      r.def.Name,
		Path:      r.def.Path,
		StaleTime: r.def.StaleTime.String(),
		PageSize:  r.def.PageSize,
		Filters:   r.def.Filters,
		Caps:      r.def.Caps,
	}
}

func (r *Resource[E, D, W]) itemPath(id int64) string {
	return r.def.Path + "/" + strconv.FormatInt(id, 10)
}

// Enabled reports whether a list query may run with params.
func (r *Resource[E, D, W]) Enabled(params url.Values) bool {
	if params.Get(ParamPage) == "" || params.Get(ParamPageSize) == "" {
		return false
	}
	return r.def.Enabled == nil || r.def.Enabled(params)
}

// FetchPage returns one page of the list through the query cache.
func (r *Resource[E, D, W]) FetchPage(ctx context.Context, params url.Values) (paginate.PageResult[E], error) {
	if !r.Enabled(params) {
		return paginate.PageResult[E]{}, ErrQueryDisabled
	}
	page, err := r.List(ctx, params)
	if err != nil {
		return paginate.PageResult[E]{}, err
	}
	size, _ := strconv.Atoi(params.Get(ParamPageSize))
	return page.Result(size), nil
}

// List returns the raw page envelope through the query cache.
func (r *Resource[E, D, W]) List(ctx context.Context, params url.Values) (Page[E], error) {
	return cache.Fetch(ctx, r.cache, r.keys.List(params), func(ctx context.Context) (Page[E], error) {
		page, err := remote.Get[Page[E]](ctx, r.client, r.def.Path, params)
		if err != nil {
			return page, err
		}
		logger.WithResource("repository", r.def.Name).Debugf("fetched %d items", len(page.Data))
		return page, nil
	}, cache.WithStaleTime(r.def.StaleTime))
}

// Detail returns one entity through the query cache.
func (r *Resource[E, D, W]) Detail(ctx context.Context, id int64) (D, error) {
	if id <= 0 {
		var zero D
		return zero, fmt.Errorf("%w: invalid id %d", errdefs.ErrInvalidArgument, id)
	}
	return cache.Fetch(ctx, r.cache, r.keys.Detail(id), func(ctx context.Context) (D, error) {
		return remote.Get[D](ctx, r.client, r.itemPath(id), nil, remote.MaybeUnwrap())
	}, cache.WithStaleTime(r.def.StaleTime))
}

var errUnsupported = errors.New("operation not offered by the backend")

func (r *Resource[E, D, W]) unsupported(op string) error {
	return fmt.Errorf("%s %s: %w: %w", r.def.Name, op, errdefs.ErrNotImplemented, errUnsupported)
}

func (r *Resource[E, D, W]) Create(ctx context.Context, in W) (D, error) {
	if !r.def.Caps.Create {
		var zero D
		return zero, r.unsupported("create")
	}
	return r.create.Execute(ctx, in)
}

func (r *Resource[E, D, W]) Update(ctx context.Context, id int64, in W) (D, error) {
	if !r.def.Caps.Update {
		var zero D
		return zero, r.unsupported("update")
	}
	return r.update.Execute(ctx, Update[W]{ID: id, Data: in})
}

func (r *Resource[E, D, W]) Delete(ctx context.Context, id int64) error {
	if !r.def.Caps.Delete {
		return r.unsupported("delete")
	}
	_, err := r.remove.Execute(ctx, id)
	return err
}

// Deleter exposes the delete mutation, e.g. to wrap it in a confirmation.
func (r *Resource[E, D, W]) Deleter() mutation.Func[int64, struct{}] {
	return func(ctx context.Context, id int64) (struct{}, error) {
		return struct{}{}, r.Delete(ctx, id)
	}
}

// Invalidate drops every cached list of the resource.
func (r *Resource[E, D, W]) Invalidate() int {
	return r.cache.Invalidate(r.keys.Lists())
}

func isZero(v any) bool {
	rv := reflect.ValueOf(v)
	return !rv.IsValid() || rv.IsZero()
}
