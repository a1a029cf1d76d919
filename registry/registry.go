/*
Package registry maps short type names to the routines that decode them.

A registration binds, once, a Go type to an erased deserialize function that
produces a `property.Property` from any `shared.Value`:

	reg := registry.New()
	registry.Register[Vec3](reg)
	registry.RegisterNamed[geom.Vec3](reg, "GeomVec3")

Lookups are safe to share across concurrent decodes. Registering the same
name twice replaces the first registration.
*/
package registry

import (
	"fmt"
	"log/slog"
	"reflect"
	"sort"
	"sync"

	"github.com/pasqal-io/dynprops/deserialize"
	"github.com/pasqal-io/dynprops/deserialize/shared"
	"github.com/pasqal-io/dynprops/property"
)

// Decode a value into a freshly boxed property.
type DeserializeFunc func(shared.Value) (property.Property, error)

// The metadata and erased deserialize function for one type.
//
// Registrations are immutable and cheap to copy.
type Registration struct {
	// The concrete type produced by `Deserialize`.
	Type reflect.Type

	// The key under which the registration is stored.
	ShortName string

	Deserialize DeserializeFunc
}

// Build the registration of `T` under its short name.
func Of[T any]() (Registration, error) {
	return OfNamed[T](ShortName(reflect.TypeOf((*T)(nil)).Elem()))
}

// Build the registration of `T` under an explicit name.
func OfNamed[T any](name string) (Registration, error) {
	typ := reflect.TypeOf((*T)(nil)).Elem()
	if name == "" {
		return Registration{}, fmt.Errorf("cannot register %s under an empty name", typ)
	}
	deserializer, err := deserialize.MakeValueDeserializer[T](deserialize.PropertyOptions(""))
	if err != nil {
		return Registration{}, fmt.Errorf("cannot register %s as %q:\n\t * %w", typ, name, err)
	}
	isStruct := typ.Kind() == reflect.Struct
	return Registration{
		Type:      typ,
		ShortName: name,
		Deserialize: func(value shared.Value) (property.Property, error) {
			if isStruct && value != nil && value.Interface() == nil {
				// A unit value, e.g. `Marker`, stands for a struct with no entries.
				value = shared.Wrap(map[string]any{})
			}
			result, err := deserializer.DeserializeValue(value)
			if err != nil {
				return nil, err //nolint:wrapcheck
			}
			return property.New(name, *result), nil
		},
	}, nil
}

// A table of registrations, keyed by short name.
type Registry struct {
	mu     sync.RWMutex
	byName map[string]Registration
	byType map[reflect.Type]string
}

func New() *Registry {
	return &Registry{
		byName: make(map[string]Registration),
		byType: make(map[reflect.Type]string),
	}
}

// Insert a registration, replacing any registration with the same name.
func (r *Registry) Add(registration Registration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if previous, ok := r.byName[registration.ShortName]; ok {
		slog.Warn("Replacing type registration", "name", registration.ShortName, "previous", previous.Type, "type", registration.Type)
		if r.byType[previous.Type] == registration.ShortName {
			delete(r.byType, previous.Type)
		}
	}
	r.byName[registration.ShortName] = registration
	r.byType[registration.Type] = registration.ShortName
}

// Register `T` under its short name.
//
// Panics if no deserializer can be built for `T`: this is a programming error,
// typically caught by the first test that touches the registry.
func Register[T any](r *Registry) {
	if err := TryRegister[T](r); err != nil {
		panic(err)
	}
}

// Register `T` under its short name, reporting failures as errors.
func TryRegister[T any](r *Registry) error {
	registration, err := Of[T]()
	if err != nil {
		return err
	}
	r.Add(registration)
	return nil
}

// Register `T` under `name`, e.g. to disambiguate types from different
// packages that share a short name.
//
// Panics like `Register`.
func RegisterNamed[T any](r *Registry, name string) {
	registration, err := OfNamed[T](name)
	if err != nil {
		panic(err)
	}
	r.Add(registration)
}

// Find a registration by exact name.
func (r *Registry) Get(name string) (Registration, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	registration, ok := r.byName[name]
	return registration, ok
}

// Find the latest registration of a type.
func (r *Registry) GetByType(typ reflect.Type) (Registration, bool) {
	if typ == nil {
		return Registration{}, false
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	name, ok := r.byType[typ]
	if !ok {
		return Registration{}, false
	}
	return r.byName[name], true
}

// A snapshot of all registrations, sorted by name.
func (r *Registry) Registrations() []Registration {
	r.mu.RLock()
	result := make([]Registration, 0, len(r.byName))
	for _, registration := range r.byName {
		result = append(result, registration)
	}
	r.mu.RUnlock()
	sort.Slice(result, func(i, j int) bool {
		return result[i].ShortName < result[j].ShortName
	})
	return result
}

// Registered names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	result := make([]string, 0, len(r.byName))
	for name := range r.byName {
		result = append(result, name)
	}
	r.mu.RUnlock()
	sort.Strings(result)
	return result
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byName)
}
