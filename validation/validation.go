// Mechanisms to deal with initialization and validation of values.
//
// These interfaces are designed to be implemented by property types
// registered for dynamic deserialization.
package validation

import "fmt"

// A type that supports initialization.
//
// The deserializer calls `Initialize()` at every depth of the tree, **before**
// reading the node. This is the only way to give private fields a value.
//
// Important: implement `Initializer` on **pointers**, not on structs,
// otherwise initialization operates on a copy and is lost immediately.
type Initializer interface {
	// Setup the contents of the struct.
	Initialize() error
}

// A type that supports validation.
//
// The deserializer calls `Validate()` at every depth of the tree, **after**
// building the node. A property that fails validation is never returned.
//
// Important: implement `Validator` on **pointers**, not on structs.
type Validator interface {
	// Confirm that the data is valid, return an error otherwise.
	//
	// If necessary, this method may alter the contents of the struct.
	Validate() error
}

// An error returned by `Validate()`, with the path at which it happened.
type Error struct {
	Path    string
	Wrapped error
}

func (e Error) Error() string {
	return fmt.Sprintf("at %s, validation failed:\n\t * %s", e.Path, e.Wrapped.Error())
}

func (e Error) Unwrap() error {
	return e.Wrapped
}

// Attach a path to an error returned by `Validate()`.
func WrapError(path string, err error) Error {
	return Error{
		Path:    path,
		Wrapped: err,
	}
}

var _ error = Error{} //nolint:exhaustruct
