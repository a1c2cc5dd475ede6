package repository

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/bassista/go_backoffice/internal/cache"
	"github.com/bassista/go_backoffice/internal/mutation"
	"github.com/bassista/go_backoffice/internal/paginate"
	"github.com/bassista/go_backoffice/internal/remote"
	"github.com/containerd/errdefs"
)

const (
	catalogStaleTime = 10 * time.Minute
	listStaleTime    = 5 * time.Minute
	catalogPageSize  = 25
)

// Registry holds every resource the dashboard works with.
type Registry struct {
	Categories    *Resource[Category, CategoryDetail, CategoryInput]
	Subcategories *Resource[Subcategory, SubcategoryDetail, SubcategoryInput]
	Brands        *Resource[Brand, BrandDetail, BrandInput]
	Origins       *Resource[Origin, OriginDetail, OriginInput]
	Measurements  *Resource[Measurement, MeasurementDetail, MeasurementInput]
	VehicleBrands *Resource[VehicleBrand, VehicleBrandDetail, VehicleBrandInput]
	Quotations    *Resource[Quotation, QuotationDetail, QuotationInput]
	Users         *Resource[User, User, struct{}]
	Permissions   *Permissions
}

var catalogCaps = Capabilities{Create: true, Update: true, Delete: true}

// NewRegistry wires the resources to the client and the cache. pageSize is the
// default page size of quotations and users; catalog screens use their own.
func NewRegistry(client *remote.Client, qc cache.QueryCache, pageSize int) *Registry {
	return &Registry{
		Categories: NewResource[Category, CategoryDetail, CategoryInput](client, qc, Definition[Category]{
			Name: "categories", Path: "/categories", StaleTime: catalogStaleTime, PageSize: catalogPageSize,
			Filters: []string{"categoria"},
			Search: []paginate.Field[Category]{
				paginate.Text(func(c Category) string { return c.Categoria }),
				paginate.Nested(func(c Category) []CategorySubcategory { return c.Subcategorias },
					func(s CategorySubcategory) string { return s.Subcategoria }),
			},
			Caps: catalogCaps,
		}),
		Subcategories: NewResource[Subcategory, SubcategoryDetail, SubcategoryInput](client, qc, Definition[Subcategory]{
			Name: "subcategories", Path: "/subcategories", StaleTime: catalogStaleTime, PageSize: catalogPageSize,
			Filters: []string{"subcategoria", "categoria"},
			Search: []paginate.Field[Subcategory]{
				paginate.Text(func(s Subcategory) string { return s.Subcategoria }),
				paginate.Text(func(s Subcategory) string {
					if s.Categoria == nil {
						return ""
					}
					return s.Categoria.Categoria
				}),
			},
			Caps: catalogCaps,
		}),
		Brands: NewResource[Brand, BrandDetail, BrandInput](client, qc, Definition[Brand]{
			Name: "brands", Path: "/brands", StaleTime: catalogStaleTime, PageSize: catalogPageSize,
			Filters: []string{"marca"},
			Search:  []paginate.Field[Brand]{paginate.Text(func(b Brand) string { return b.Marca })},
			Caps:    catalogCaps,
		}),
		Origins: NewResource[Origin, OriginDetail, OriginInput](client, qc, Definition[Origin]{
			Name: "origins", Path: "/origins", StaleTime: catalogStaleTime, PageSize: catalogPageSize,
			Filters: []string{"procedencia"},
			Search:  []paginate.Field[Origin]{paginate.Text(func(o Origin) string { return o.Procedencia })},
			Caps:    catalogCaps,
		}),
		Measurements: NewResource[Measurement, MeasurementDetail, MeasurementInput](client, qc, Definition[Measurement]{
			Name: "measurements", Path: "/measurements", StaleTime: catalogStaleTime, PageSize: catalogPageSize,
			Filters: []string{"unidad_medida"},
			Search:  []paginate.Field[Measurement]{paginate.Text(func(m Measurement) string { return m.UnidadMedida })},
			Caps:    catalogCaps,
		}),
		VehicleBrands: NewResource[VehicleBrand, VehicleBrandDetail, VehicleBrandInput](client, qc, Definition[VehicleBrand]{
			Name: "vehiclebrands", Path: "/vehiclebrands", StaleTime: catalogStaleTime, PageSize: catalogPageSize,
			Filters: []string{"marca_vehiculo"},
			Search:  []paginate.Field[VehicleBrand]{paginate.Text(func(v VehicleBrand) string { return v.MarcaVehiculo })},
			Caps:    catalogCaps,
		}),
		Quotations: NewResource[Quotation, QuotationDetail, QuotationInput](client, qc, Definition[Quotation]{
			Name: "quotations", Path: "/quotations", StaleTime: listStaleTime, PageSize: pageSize,
			Filters: []string{"sucursal", "keywords", "codigo_interno", "cliente", "fecha_inicio", "fecha_fin", "codigo_oem_producto"},
			Search: []paginate.Field[Quotation]{
				paginate.Text(func(q Quotation) string { return q.NroCotizacion }),
				paginate.Text(func(q Quotation) string {
					if q.Cliente == nil {
						return ""
					}
					return q.Cliente.Cliente
				}),
				paginate.Text(func(q Quotation) string {
					if q.Responsable == nil {
						return ""
					}
					return q.Responsable.FullName()
				}),
			},
			Enabled: QuotationsEnabled,
			Caps:    catalogCaps,
		}),
		Users: NewResource[User, User, struct{}](client, qc, Definition[User]{
			Name: "users", Path: "/users", StaleTime: listStaleTime, PageSize: pageSize,
			Filters: []string{"nickname"},
			Search: []paginate.Field[User]{
				paginate.Text(func(u User) string { return u.Nickname }),
				paginate.Text(func(u User) string { return u.Empleado.Nombre }),
				paginate.Text(func(u User) string {
					if u.Email == nil {
						return ""
					}
					return *u.Email
				}),
			},
			Caps: Capabilities{Delete: true},
		}),
		Permissions: NewPermissions(client, qc),
	}
}

// QuotationsEnabled requires a branch and either both dates of the range or none.
func QuotationsEnabled(params url.Values) bool {
	if params.Get("sucursal") == "" {
		return false
	}
	hasFrom := params.Get("fecha_inicio") != ""
	hasTo := params.Get("fecha_fin") != ""
	return hasFrom == hasTo
}

// Describe lists every resource in display order.
func (r *Registry) Describe() []Descriptor {
	return []Descriptor{
		r.Categories.Describe(),
		r.Subcategories.Describe(),
		r.Brands.Describe(),
		r.Origins.Describe(),
		r.Measurements.Describe(),
		r.VehicleBrands.Describe(),
		r.Quotations.Describe(),
		r.Users.Describe(),
	}
}

// Names returns the resource names in display order.
func (r *Registry) Names() []string {
	descs := r.Describe()
	out := make([]string, len(descs))
	for i, d := range descs {
		out[i] = d.Name
	}
	return out
}

// Permissions reads the permission catalogue and the permissions of users.
type Permissions struct {
	client *remote.Client
	cache  cache.QueryCache
	keys   Keys
	update *mutation.Executor[PermissionsUpdate, struct{}]
}

func NewPermissions(client *remote.Client, qc cache.QueryCache) *Permissions {
	p := &Permissions{client: client, cache: qc, keys: NewKeys("permissions")}
	p.update = mutation.NewExecutor(qc, func(ctx context.Context, in PermissionsUpdate) (struct{}, error) {
		_, err := remote.Put[struct{}](ctx, p.client, "/users/permissions", in)
		return struct{}{}, err
	}, mutation.Options[PermissionsUpdate, struct{}]{
		Name:       "users.permissions.update",
		Invalidate: []cache.Key{NewKeys("users").All(), p.keys.Details()},
	})
	return p
}

// Catalogue returns every permission the backend knows.
func (p *Permissions) Catalogue(ctx context.Context) ([]Permission, error) {
	return cache.Fetch(ctx, p.cache, p.keys.Lists(), func(ctx context.Context) ([]Permission, error) {
		return remote.Get[[]Permission](ctx, p.client, "/permissions/list", nil, remote.MaybeUnwrap())
	}, cache.WithStaleTime(catalogStaleTime))
}

// ForUser returns the permissions granted to a user.
func (p *Permissions) ForUser(ctx context.Context, userID int64) ([]Permission, error) {
	if userID <= 0 {
		return nil, fmt.Errorf("%w: invalid user id %d", errdefs.ErrInvalidArgument, userID)
	}
	return cache.Fetch(ctx, p.cache, p.keys.Detail(userID), func(ctx context.Context) ([]Permission, error) {
		params := url.Values{"usuario": {strconv.FormatInt(userID, 10)}}
		perms, err := remote.Get[[]Permission](ctx, p.client, "/users/permissions", params, remote.MaybeUnwrap())
		if perms == nil && err == nil {
			perms = []Permission{}
		}
		return perms, err
	}, cache.WithStaleTime(listStaleTime))
}

// Update replaces the permissions of a user.
func (p *Permissions) Update(ctx context.Context, in PermissionsUpdate) error {
	_, err := p.update.Execute(ctx, in)
	return err
}
