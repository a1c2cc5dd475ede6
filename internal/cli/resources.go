package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"

	"github.com/bassista/go_backoffice/internal/mutation"
	"github.com/bassista/go_backoffice/internal/paginate"
	"github.com/bassista/go_backoffice/internal/repository"
	"github.com/bassista/go_backoffice/internal/screen"
	"github.com/containerd/errdefs"
)

// ListOptions are the flags of the list command.
type ListOptions struct {
	Page     int
	PageSize int
	Pages    int
	Infinite bool
	Search   string
	Filters  map[string]string
}

// column renders one table column of E.
type column[E any] struct {
	Header string
	Value  func(E) string
}

// commander is what the commands need from a resource, independent of its types.
type commander interface {
	List(ctx context.Context, w io.Writer, opts ListOptions) error
	Show(ctx context.Context, w io.Writer, id int64) error
	Delete(ctx context.Context, w io.Writer, id int64, confirm func(label string) bool) error
}

type resourceCommands[E paginate.Entity, D, W any] struct {
	res     repository.Collection[E, D, W]
	columns []column[E]
}

func (rc *resourceCommands[E, D, W]) List(ctx context.Context, w io.Writer, opts ListOptions) error {
	mode := paginate.ModePaged
	if opts.Infinite {
		mode = paginate.ModeInfinite
	}
	size := opts.PageSize
	if size <= 0 {
		size = rc.res.PageSize()
	}
	name := rc.res.Describe().Name

	l := screen.NewList[E](name, rc.res, screen.Options[E]{
		Mode:     mode,
		PageSize: size,
		Filters:  opts.Filters,
		Search:   rc.res.SearchFields(),
	})
	l.SetSearch(opts.Search)

	if err := l.Load(ctx, opts.Page); err != nil {
		return err
	}
	for i := 1; i < opts.Pages; i++ {
		err := l.LoadMore(ctx)
		if errors.Is(err, screen.ErrNoMorePages) {
			break
		}
		if err != nil {
			return err
		}
	}

	v := l.View()
	if !v.Enabled {
		fmt.Fprintf(w, "%s: required filters are missing (%v)\n", name, rc.res.Filters())
		return nil
	}

	headers := make([]string, len(rc.columns))
	for i, c := range rc.columns {
		headers[i] = c.Header
	}
	rows := make([][]string, 0, len(v.Items))
	for _, it := range v.Items {
		row := make([]string, len(rc.columns))
		for i, c := range rc.columns {
			row[i] = c.Value(it)
		}
		rows = append(rows, row)
	}
	fmt.Fprintln(w, renderTable(headers, rows))
	fmt.Fprintln(w, footer(v.Page, v.Loaded, len(v.Items), v.HasMore))
	return nil
}

func (rc *resourceCommands[E, D, W]) Show(ctx context.Context, w io.Writer, id int64) error {
	d, err := rc.res.Detail(ctx, id)
	if err != nil {
		return err
	}
	out, err := json.MarshalIndent(d, "", "  ")
	if err != nil {
		return err
	}
	fmt.Fprintln(w, string(out))
	return nil
}

func (rc *resourceCommands[E, D, W]) Delete(ctx context.Context, w io.Writer, id int64, confirm func(string) bool) error {
	name := rc.res.Describe().Name
	if !rc.res.Capabilities().Delete {
		return fmt.Errorf("%s: %w: delete", name, errdefs.ErrNotImplemented)
	}

	conf := mutation.NewConfirmer(
		func(ctx context.Context, id int64) (struct{}, error) {
			return struct{}{}, rc.res.Delete(ctx, id)
		},
		func(_ struct{}, id int64) {
			fmt.Fprintln(w, successStyle.Render(fmt.Sprintf("%s #%d deleted", name, id)))
		},
		nil,
	)
	conf.Open(id)

	if confirm != nil && !confirm(fmt.Sprintf("Delete %s #%d", name, id)) {
		conf.Close()
		fmt.Fprintln(w, "Deletion cancelled")
		return nil
	}
	_, err := conf.Confirm(ctx)
	return err
}

func id64(id int64) string { return strconv.FormatInt(id, 10) }

func optional(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// lookup returns the commands of the named resource.
func lookup(reg *repository.Registry, name string) (commander, error) {
	switch name {
	case "categories":
		return &resourceCommands[repository.Category, repository.CategoryDetail, repository.CategoryInput]{
			res: reg.Categories,
			columns: []column[repository.Category]{
				{"ID", func(c repository.Category) string { return id64(c.ID) }},
				{"CATEGORIA", func(c repository.Category) string { return c.Categoria }},
				{"SUBCATEGORIAS", func(c repository.Category) string { return strconv.Itoa(len(c.Subcategorias)) }},
			},
		}, nil
	case "subcategories":
		return &resourceCommands[repository.Subcategory, repository.SubcategoryDetail, repository.SubcategoryInput]{
			res: reg.Subcategories,
			columns: []column[repository.Subcategory]{
				{"ID", func(s repository.Subcategory) string { return id64(s.ID) }},
				{"SUBCATEGORIA", func(s repository.Subcategory) string { return s.Subcategoria }},
				{"CATEGORIA", func(s repository.Subcategory) string {
					if s.Categoria == nil {
						return ""
					}
					return s.Categoria.Categoria
				}},
			},
		}, nil
	case "brands":
		return &resourceCommands[repository.Brand, repository.BrandDetail, repository.BrandInput]{
			res: reg.Brands,
			columns: []column[repository.Brand]{
				{"ID", func(b repository.Brand) string { return id64(b.ID) }},
				{"MARCA", func(b repository.Brand) string { return b.Marca }},
			},
		}, nil
	case "origins":
		return &resourceCommands[repository.Origin, repository.OriginDetail, repository.OriginInput]{
			res: reg.Origins,
			columns: []column[repository.Origin]{
				{"ID", func(o repository.Origin) string { return id64(o.ID) }},
				{"PROCEDENCIA", func(o repository.Origin) string { return o.Procedencia }},
			},
		}, nil
	case "measurements":
		return &resourceCommands[repository.Measurement, repository.MeasurementDetail, repository.MeasurementInput]{
			res: reg.Measurements,
			columns: []column[repository.Measurement]{
				{"ID", func(m repository.Measurement) string { return id64(m.ID) }},
				{"UNIDAD", func(m repository.Measurement) string { return m.UnidadMedida }},
			},
		}, nil
	case "vehiclebrands":
		return &resourceCommands[repository.VehicleBrand, repository.VehicleBrandDetail, repository.VehicleBrandInput]{
			res: reg.VehicleBrands,
			columns: []column[repository.VehicleBrand]{
				{"ID", func(v repository.VehicleBrand) string { return id64(v.ID) }},
				{"MARCA VEHICULO", func(v repository.VehicleBrand) string { return v.MarcaVehiculo }},
			},
		}, nil
	case "quotations":
		return &resourceCommands[repository.Quotation, repository.QuotationDetail, repository.QuotationInput]{
			res: reg.Quotations,
			columns: []column[repository.Quotation]{
				{"ID", func(q repository.Quotation) string { return id64(q.ID) }},
				{"NRO", func(q repository.Quotation) string { return q.NroCotizacion }},
				{"FECHA", func(q repository.Quotation) string { return q.Fecha }},
				{"CLIENTE", func(q repository.Quotation) string {
					if q.Cliente == nil {
						return ""
					}
					return q.Cliente.Cliente
				}},
				{"TOTAL", func(q repository.Quotation) string { return strconv.FormatFloat(float64(q.Total), 'f', 2, 64) }},
			},
		}, nil
	case "users":
		return &resourceCommands[repository.User, repository.User, struct{}]{
			res: reg.Users,
			columns: []column[repository.User]{
				{"ID", func(u repository.User) string { return id64(u.ID) }},
				{"NICKNAME", func(u repository.User) string { return u.Nickname }},
				{"EMPLEADO", func(u repository.User) string { return u.Empleado.Nombre }},
				{"EMAIL", func(u repository.User) string { return optional(u.Email) }},
				{"ACTIVO", func(u repository.User) string { return strconv.FormatBool(u.Activo) }},
			},
		}, nil
	}
	return nil, fmt.Errorf("%w: unknown resource %q", errdefs.ErrNotFound, name)
}
