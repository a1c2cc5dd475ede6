// Package form binds a typed draft to field-level validation. Fields are
// addressed by their JSON names, the same names the backend uses in its
// validation errors.
package form

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/bassista/go_backoffice/internal/remote"
	"github.com/containerd/errdefs"
	"github.com/go-playground/validator/v10"
)

// ErrInvalid is returned by HandleSubmit when the draft fails validation.
var ErrInvalid = fmt.Errorf("%w: form has invalid fields", errdefs.ErrInvalidArgument)

// Normalizer is implemented by drafts that clean themselves up before validation,
// e.g. rounding money fields.
type Normalizer interface {
	Normalize()
}

// Form holds a draft of T plus per-field errors and touched flags.
type Form[T any] struct {
	mu       sync.RWMutex
	value    T
	errors   map[string]string
	touched  map[string]bool
	validate *validator.Validate
	fields   map[string]int
}

// New returns a form holding initial.
func New[T any](initial T) *Form[T] {
	f := &Form[T]{
		value:    initial,
		errors:   map[string]string{},
		touched:  map[string]bool{},
		validate: newValidator(),
		fields:   jsonFields(reflect.TypeOf(initial)),
	}
	return f
}

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// jsonFields maps JSON names of the top-level fields of t to their index.
func jsonFields(t reflect.Type) map[string]int {
	out := map[string]int{}
	if t == nil {
		return out
	}
	if t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t.Kind() != reflect.Struct {
		return out
	}
	for i := 0; i < t.NumField(); i++ {
		sf := t.Field(i)
		if !sf.IsExported() {
			continue
		}
		name := strings.SplitN(sf.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			continue
		}
		if name == "" {
			name = sf.Name
		}
		out[name] = i
	}
	return out
}

// Values returns the current draft.
func (f *Form[T]) Values() T {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.value
}

// Reset replaces the draft and clears errors and touched flags.
func (f *Form[T]) Reset(v T) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.value = v
	f.errors = map[string]string{}
	f.touched = map[string]bool{}
}

// SetValue assigns field, converting value through JSON so a string "3" can
// fill an int field and a map can fill a nested struct. The field error, if
// any, is cleared.
func (f *Form[T]) SetValue(field string, value any) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	idx, ok := f.fields[field]
	if !ok {
		return fmt.Errorf("%w: unknown field %q", errdefs.ErrInvalidArgument, field)
	}
	rv := reflect.ValueOf(&f.value).Elem()
	if rv.Kind() == reflect.Pointer {
		if rv.IsNil() {
			rv.Set(reflect.New(rv.Type().Elem()))
		}
		rv = rv.Elem()
	}
	target := rv.Field(idx)

	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("field %q: %w", field, err)
	}
	fresh := reflect.New(target.Type())
	if err := json.Unmarshal(raw, fresh.Interface()); err != nil {
		// Form inputs arrive as strings; give numbers and bools a second chance.
		if s, isString := value.(string); !isString || json.Unmarshal([]byte(s), fresh.Interface()) != nil {
			return fmt.Errorf("%w: field %q: cannot use %v", errdefs.ErrInvalidArgument, field, value)
		}
	}
	target.Set(fresh.Elem())
	f.touched[field] = true
	delete(f.errors, field)
	return nil
}

// SetError attaches message to field, e.g. a server-side validation message.
func (f *Form[T]) SetError(field, message string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.errors[field] = message
}

// Errors returns a copy of the field errors.
func (f *Form[T]) Errors() map[string]string {
	f.mu.RLock()
	defer f.mu.RUnlock()
	out := make(map[string]string, len(f.errors))
	for k, v := range f.errors {
		out[k] = v
	}
	return out
}

func (f *Form[T]) Touched(field string) bool {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.touched[field]
}

// Validate normalizes the draft and checks it. It returns the field errors found.
func (f *Form[T]) Validate() map[string]string {
	f.mu.Lock()
	defer f.mu.Unlock()

	if n, ok := any(&f.value).(Normalizer); ok {
		n.Normalize()
	}

	f.errors = map[string]string{}
	err := f.validate.Struct(f.value)
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		for _, fe := range verrs {
			field := fieldPath(fe)
			if _, seen := f.errors[field]; !seen {
				f.errors[field] = describe(fe)
			}
		}
	} else if err != nil {
		f.errors[""] = err.Error()
	}

	out := make(map[string]string, len(f.errors))
	for k, v := range f.errors {
		out[k] = v
	}
	return out
}

// HandleSubmit validates the draft and calls onValid with it. Invalid drafts go
// to onInvalid and return ErrInvalid. Backend validation errors returned by
// onValid are attached to their fields before the error is returned.
func (f *Form[T]) HandleSubmit(ctx context.Context, onValid func(context.Context, T) error, onInvalid func(map[string]string)) error {
	if errs := f.Validate(); len(errs) > 0 {
		if onInvalid != nil {
			onInvalid(errs)
		}
		return ErrInvalid
	}

	err := onValid(ctx, f.Values())
	var httpErr *remote.HTTPError
	if errors.As(err, &httpErr) {
		for _, fe := range httpErr.Fields {
			f.SetError(fe.Field, fe.Message)
		}
	}
	return err
}

// fieldPath turns "QuotationInput.detalles[0].cantidad" into "detalles[0].cantidad".
func fieldPath(fe validator.FieldError) string {
	ns := fe.Namespace()
	if i := strings.Index(ns, "."); i >= 0 {
		return ns[i+1:]
	}
	return fe.Field()
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "max":
		if fe.Kind() == reflect.String {
			return fmt.Sprintf("must be at most %s characters", fe.Param())
		}
		return fmt.Sprintf("must be at most %s", fe.Param())
	case "min":
		if fe.Kind() == reflect.Slice {
			return fmt.Sprintf("must have at least %s item(s)", fe.Param())
		}
		return fmt.Sprintf("must be at least %s", fe.Param())
	case "gt":
		return fmt.Sprintf("must be greater than %s", fe.Param())
	case "gte":
		return fmt.Sprintf("must be %s or more", fe.Param())
	case "lte":
		return fmt.Sprintf("must be %s or less", fe.Param())
	default:
		return fmt.Sprintf("failed %s validation", fe.Tag())
	}
}
