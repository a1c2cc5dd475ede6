package repository

import (
	"bytes"
	"fmt"
	"math"
	"strconv"
)

// Amount is a decimal the backend sends either as a JSON number or as a string.
type Amount float64

func (a *Amount) UnmarshalJSON(b []byte) error {
	s := string(bytes.Trim(bytes.TrimSpace(b), `"`))
	if s == "" || s == "null" {
		*a = 0
		return nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return fmt.Errorf("invalid amount %s: %w", b, err)
	}
	*a = Amount(f)
	return nil
}

// round5 keeps five decimals, the precision the backend stores prices with.
func round5(v float64) float64 {
	return math.Round(v*1e5) / 1e5
}

// Category is a row of the categories list with its subcategories.
type Category struct {
	ID            int64                 `json:"id"`
	Categoria     string                `json:"categoria"`
	Subcategorias []CategorySubcategory `json:"subcategorias" validate:"omitempty,dive"`
}

func (c Category) EntityID() int64 { return c.ID }

// CategorySubcategory is the nested, read-only snapshot inside a Category.
type CategorySubcategory struct {
	ID            int64  `json:"id"`
	Subcategoria  string `json:"subcategoria"`
	CodigoInterno int64  `json:"codigo_interno" validate:"gte=0"`
}

type CategoryDetail struct {
	ID            int64  `json:"id"`
	Categoria     string `json:"categoria"`
	CodigoInterno int64  `json:"codigo_interno" validate:"gte=0"`
}

type CategoryInput struct {
	Categoria string `json:"categoria" validate:"required,max=150"`
}

// CategoryRef is the parent category embedded in a Subcategory.
type CategoryRef struct {
	ID            int64  `json:"id"`
	Categoria     string `json:"categoria"`
	CodigoInterno int64  `json:"codigo_interno" validate:"gte=0"`
}

type Subcategory struct {
	ID           int64        `json:"id"`
	Subcategoria string       `json:"subcategoria"`
	Categoria    *CategoryRef `json:"categoria"`
}

func (s Subcategory) EntityID() int64 { return s.ID }

type SubcategoryDetail struct {
	ID            int64        `json:"id"`
	Subcategoria  string       `json:"subcategoria"`
	Categoria     *CategoryRef `json:"categoria"`
	CodigoInterno int64        `json:"codigo_interno" validate:"gte=0"`
}

type SubcategoryInput struct {
	Subcategoria string `json:"subcategoria" validate:"required,max=150"`
	IDCategoria  int64  `json:"id_categoria,omitempty" validate:"omitempty,gt=0"`
}

type Brand struct {
	ID    int64  `json:"id" validate:"gte=0"`
	Marca string `json:"marca" validate:"required"`
}

func (b Brand) EntityID() int64 { return b.ID }

type BrandDetail struct {
	ID            int64  `json:"id" validate:"gte=0"`
	Marca         string `json:"marca" validate:"required"`
	CodigoInterno int64  `json:"codigo_interno" validate:"gte=0"`
}

type BrandInput struct {
	Marca string `json:"marca" validate:"required,max=150"`
}

type Origin struct {
	ID          int64  `json:"id"`
	Procedencia string `json:"procedencia"`
}

func (o Origin) EntityID() int64 { return o.ID }

type OriginDetail struct {
	ID            int64  `json:"id"`
	Procedencia   string `json:"procedencia"`
	CodigoInterno int64  `json:"codigo_interno" validate:"gte=0"`
}

type OriginInput struct {
	Procedencia string `json:"procedencia" validate:"required,max=150"`
}

type Measurement struct {
	ID           int64  `json:"id"`
	UnidadMedida string `json:"unidad_medida"`
}

func (m Measurement) EntityID() int64 { return m.ID }

type MeasurementDetail struct {
	ID            int64  `json:"id"`
	UnidadMedida  string `json:"unidad_medida"`
	CodigoInterno int64  `json:"codigo_interno" validate:"gte=0"`
}

type MeasurementInput struct {
	UnidadMedida string `json:"unidad_medida" validate:"required,max=150"`
}

type VehicleBrand struct {
	ID            int64  `json:"id"`
	MarcaVehiculo string `json:"marca_vehiculo"`
}

func (v VehicleBrand) EntityID() int64 { return v.ID }

type VehicleBrandDetail struct {
	ID            int64  `json:"id"`
	MarcaVehiculo string `json:"marca_vehiculo"`
	CodigoInterno int64  `json:"codigo_interno" validate:"gte=0"`
}

type VehicleBrandInput struct {
	MarcaVehiculo string `json:"marca_vehiculo" validate:"required,max=150"`
}

// Customer is the client attached to a quotation.
type Customer struct {
	ID        int64   `json:"id"`
	Cliente   string  `json:"cliente"`
	Direccion *string `json:"direccion"`
	NIT       *int64  `json:"nit"`
	Contacto  *string `json:"contacto"`
}

// Responsible is the employee in charge of a quotation.
type Responsible struct {
	ID              int64   `json:"id"`
	Nombre          string  `json:"nombre"`
	ApellidoPaterno *string `json:"apellido_paterno"`
	ApellidoMaterno *string `json:"apellido_materno"`
	DNI             *int64  `json:"dni"`
	Celular         *string `json:"celular"`
}

// FullName joins name and surnames, skipping the missing ones.
func (r Responsible) FullName() string {
	name := r.Nombre
	for _, p := range []*string{r.ApellidoPaterno, r.ApellidoMaterno} {
		if p != nil && *p != "" {
			name += " " + *p
		}
	}
	return name
}

// Quotation is a row of the quotations list.
type Quotation struct {
	ID            int64        `json:"id"`
	NroCotizacion string       `json:"nro_cotizacion"`
	Fecha         string       `json:"fecha"`
	Comprobantes  *string      `json:"comprobantes"`
	Contexto      *string      `json:"contexto"`
	Cliente       *Customer    `json:"cliente"`
	Responsable   *Responsible `json:"responsable"`
	Total         Amount       `json:"total"`
	Comentarios   *string      `json:"comentarios"`
}

func (q Quotation) EntityID() int64 { return q.ID }

type QuotationProduct struct {
	ID          int64   `json:"id"`
	Descripcion *string `json:"descripcion"`
}

// QuotationLine is a detail line of a quotation.
type QuotationLine struct {
	ID                  int64            `json:"id"`
	Producto            QuotationProduct `json:"producto"`
	Descripcion         *string          `json:"descripcion"`
	Cantidad            Amount           `json:"cantidad"`
	Precio              Amount           `json:"precio" validate:"gte=0"`
	Moneda              string           `json:"monenda"`
	Descuento           *Amount          `json:"descuento" validate:"omitempty,gte=0"`
	PorcentajeDescuento *Amount          `json:"porcentaje_descuento" validate:"omitempty,gte=0"`
	Marca               *string          `json:"marca"`
}

type QuotationDetail struct {
	ID                    int64           `json:"id"`
	Fecha                 string          `json:"fecha"`
	Nro                   string          `json:"nro"`
	TipoCotizacion        string          `json:"tipo_cotizacion" validate:"required"`
	FormaCotizacion       string          `json:"forma_cotizacion" validate:"required"`
	Cliente               *Customer       `json:"cliente"`
	ResponsableCotizacion *Responsible    `json:"responsable_cotizacion"`
	CantidadDetalles      int             `json:"cantidad_detalles"`
	Detalles              []QuotationLine `json:"detalles" validate:"dive"`
}

type QuotationLineInput struct {
	IDProducto          int64   `json:"id_producto" validate:"required"`
	Descripcion         *string `json:"descripcion"`
	Cantidad            float64 `json:"cantidad" validate:"gt=0"`
	Precio              float64 `json:"precio" validate:"gte=0"`
	Descuento           float64 `json:"descuento" validate:"gte=0"`
	PorcentajeDescuento float64 `json:"porcentaje_descuento" validate:"gte=0,lte=100"`
	NuevaMarca          *string `json:"nueva_marca"`
	Orden               *int    `json:"orden"`
	IDDetalleCotizacion *int64  `json:"id_detalle_cotizacion,omitempty"`
}

// QuotationInput is the body of quotation create and update calls.
type QuotationInput struct {
	Fecha           string               `json:"fecha" validate:"required"`
	NroComprobante  *string              `json:"nro_comprobante"`
	NroComprobante2 *string              `json:"nro_comprobante2"`
	IDCliente       int64                `json:"id_cliente" validate:"required"`
	ClienteNombre   *string              `json:"cliente_nombre"`
	ClienteContacto *string              `json:"cliente_contacto"`
	ClienteNit      *string              `json:"cliente_nit"`
	ClienteTelefono *string              `json:"cliente_telefono"`
	TipoCotizacion  string               `json:"tipo_cotizacion" validate:"required"`
	FormaCotizacion string               `json:"forma_cotizacion" validate:"required"`
	Comentarios     *string              `json:"comentarios"`
	PlazoPago       *string              `json:"plazo_pago"`
	Vehiculo        *string              `json:"vehiculo"`
	NroMotor        *string              `json:"nro_motor"`
	Anticipo        *float64             `json:"anticipo" validate:"omitempty,gte=0"`
	Pedido          *bool                `json:"pedido"`
	Usuario         int64                `json:"usuario" validate:"required"`
	Sucursal        int64                `json:"sucursal" validate:"required"`
	IDResponsable   int64                `json:"id_responsable" validate:"required"`
	Detalles        []QuotationLineInput `json:"detalles" validate:"required,min=1,dive"`
}

// Normalize rounds money fields to the backend precision.
func (q *QuotationInput) Normalize() {
	if q.Anticipo != nil {
		v := round5(*q.Anticipo)
		q.Anticipo = &v
	}
	for i := range q.Detalles {
		d := &q.Detalles[i]
		d.Precio = round5(d.Precio)
		d.Descuento = round5(d.Descuento)
		d.PorcentajeDescuento = round5(d.PorcentajeDescuento)
	}
}

// Employee is the staff record linked to a user account.
type Employee struct {
	ID     int64  `json:"id"`
	Nombre string `json:"nombre"`
}

type User struct {
	ID            int64    `json:"id"`
	Nickname      string   `json:"nickname"`
	Email         *string  `json:"email"`
	FechaCreacion *string  `json:"fecha_creacion"`
	Activo        bool     `json:"activo"`
	Empleado      Employee `json:"empleado"`
}

func (u User) EntityID() int64 { return u.ID }

// Permission is an entry of the permission catalogue.
type Permission struct {
	Name        string  `json:"name" validate:"required"`
	Categoria   *string `json:"categoria,omitempty"`
	Descripcion *string `json:"descripcion,omitempty"`
}

// PermissionName is how permissions are referenced in updates.
type PermissionName struct {
	Name string `json:"name" validate:"required"`
}

// PermissionsUpdate replaces the permissions of a user.
type PermissionsUpdate struct {
	Usuario  int64            `json:"usuario" validate:"required"`
	Permisos []PermissionName `json:"permisos" validate:"dive"`
}

// GroupPermissions buckets permissions by category; uncategorised ones go under "".
func GroupPermissions(perms []Permission) map[string][]Permission {
	out := make(map[string][]Permission)
	for _, p := range perms {
		cat := ""
		if p.Categoria != nil {
			cat = *p.Categoria
		}
		out[cat] = append(out[cat], p)
	}
	return out
}
