// Package property defines the dynamically-typed values produced by the
// registry: a `Property` is an owned value whose concrete type is known only
// to the registration that built it.
package property

import (
	"fmt"
	"reflect"

	"github.com/google/go-cmp/cmp"
)

// The capability shared by every dynamic value.
type Property interface {
	// The short name of the concrete type, as used in annotations.
	TypeName() string

	// The boxed value.
	Any() any

	// Copy this property into a new, independent container.
	Clone() Property

	// Overwrite this property with the contents of `other`.
	//
	// Fails if `other` does not hold the same concrete type.
	Apply(other Property) error

	// `true` if `other` holds an observably equal value of the same type.
	Equal(other Property) bool
}

// A value that knows how to deep-copy itself.
//
// Without it, `Box.Clone()` performs a plain value copy, which shares
// any slices, maps or pointers held by the value.
type Cloner[T any] interface {
	Clone() T
}

// The erased container for a value of type T.
type Box[T any] struct {
	name  string
	value T
}

// Box a value under a short type name.
func New[T any](name string, value T) *Box[T] {
	return &Box[T]{
		name:  name,
		value: value,
	}
}

func (b *Box[T]) TypeName() string {
	return b.name
}

func (b *Box[T]) Any() any {
	return b.value
}

// The boxed value, statically typed.
func (b *Box[T]) Get() T {
	return b.value
}

func (b *Box[T]) Clone() Property {
	if cloner, ok := any(b.value).(Cloner[T]); ok {
		return New(b.name, cloner.Clone())
	}
	return New(b.name, b.value)
}

func (b *Box[T]) Apply(other Property) error {
	if other == nil {
		return fmt.Errorf("cannot apply nil to a %s", b.name)
	}
	value, ok := other.Any().(T)
	if !ok {
		return fmt.Errorf("cannot apply a %s (%T) to a %s (%s)", other.TypeName(), other.Any(), b.name, reflect.TypeOf(&b.value).Elem())
	}
	b.value = value
	return nil
}

func (b *Box[T]) Equal(other Property) bool {
	if other == nil || other.TypeName() != b.name {
		return false
	}
	value, ok := other.Any().(T)
	if !ok {
		return false
	}
	return cmp.Equal(b.value, value, exportAll)
}

var _ Property = &Box[int]{} //nolint:exhaustruct

// Compare unexported fields too: property types are plain data.
var exportAll = cmp.Exporter(func(reflect.Type) bool { return true })

// Extract the concrete value of a property.
func Downcast[T any](p Property) (T, bool) {
	if p == nil {
		var zero T
		return zero, false
	}
	value, ok := p.Any().(T)
	return value, ok
}

// `true` if both properties are absent or equal.
func Equal(a, b Property) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.Equal(b)
}
