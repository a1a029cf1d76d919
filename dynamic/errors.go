package dynamic

import (
	"errors"
	"fmt"
)

// Sentinels, one per kind of decode failure. Use `errors.Is` to test for them.
var (
	// The input is not syntactically valid.
	ErrMalformedInput = errors.New("malformed input")

	// A value names no registered type, or no type at all.
	ErrUnknownType = errors.New("unknown type")

	// A registered type rejected its payload.
	ErrInvalidField = errors.New("invalid field")
)

// The input could not be opened or parsed.
type MalformedInputError struct {
	Format  Format
	Wrapped error
}

func (e *MalformedInputError) Error() string {
	return fmt.Sprintf("malformed %s input:\n\t * %v", e.Format, e.Wrapped)
}

func (e *MalformedInputError) Is(target error) bool {
	return target == ErrMalformedInput
}

func (e *MalformedInputError) Unwrap() error {
	return e.Wrapped
}

// A value carries an annotation that is not registered, or none at all.
type UnknownTypeError struct {
	// The annotation, empty if the value carried none.
	Name string

	// The entry holding the value, empty for a root value.
	Key string
}

func (e *UnknownTypeError) Error() string {
	where := "at the root"
	if e.Key != "" {
		where = fmt.Sprintf("at entry %q", e.Key)
	}
	if e.Name == "" {
		return fmt.Sprintf("missing type annotation %s", where)
	}
	return fmt.Sprintf("unknown type %q %s", e.Name, where)
}

func (e *UnknownTypeError) Is(target error) bool {
	return target == ErrUnknownType
}

// A registered type failed to decode its payload.
type FieldError struct {
	TypeName string

	// The entry holding the value, empty for a root value.
	Key     string
	Wrapped error
}

func (e *FieldError) Error() string {
	if e.Key == "" {
		return fmt.Sprintf("invalid %s at the root:\n\t * %v", e.TypeName, e.Wrapped)
	}
	return fmt.Sprintf("invalid %s at entry %q:\n\t * %v", e.TypeName, e.Key, e.Wrapped)
}

func (e *FieldError) Is(target error) bool {
	return target == ErrInvalidField
}

func (e *FieldError) Unwrap() error {
	return e.Wrapped
}

// IsMalformedInput checks if an error is a malformed input error.
func IsMalformedInput(err error) bool {
	return errors.Is(err, ErrMalformedInput)
}

// IsUnknownType checks if an error is an unknown type error.
func IsUnknownType(err error) bool {
	return errors.Is(err, ErrUnknownType)
}

// IsInvalidField checks if an error is a field error.
func IsInvalidField(err error) bool {
	return errors.Is(err, ErrInvalidField)
}
