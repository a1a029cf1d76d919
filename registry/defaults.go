package registry

import (
	"github.com/go-openapi/strfmt"
	"github.com/google/uuid"
)

// Register the primitive types and a few well-known value types.
//
// Text-based types (`UUID`, `DateTime`, `Duration`, `Email`) decode from strings.
func RegisterDefaults(r *Registry) {
	Register[bool](r)
	Register[string](r)
	Register[int](r)
	Register[int8](r)
	Register[int16](r)
	Register[int32](r)
	Register[int64](r)
	Register[uint](r)
	Register[uint8](r)
	Register[uint16](r)
	Register[uint32](r)
	Register[uint64](r)
	Register[float32](r)
	Register[float64](r)

	Register[uuid.UUID](r)
	Register[strfmt.DateTime](r)
	Register[strfmt.Duration](r)
	Register[strfmt.Email](r)
}
