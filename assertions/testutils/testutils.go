package testutils

import (
	"fmt"
	"reflect"
	"regexp"
	"testing"

	"github.com/pasqal-io/dynprops/property"
)

// Fail if two values are different.
//
// Does not stop the test.
func AssertEqual[T comparable](t *testing.T, actual, expected T, explanation string) {
	t.Helper()
	if expected != actual {
		t.Errorf("got: %+v; want: %+v (%s)", actual, expected, explanation)
		if reflect.ValueOf(expected).Kind() == reflect.Pointer {
			t.Error("Warning: you're comparing two pointers -- pointers are only equal if they point to the same physical object")
		}
	}
}
func AssertEqualArrays[T comparable](t *testing.T, actual, expected []T, explanation string) {
	t.Helper()
	AssertEqual(t, len(actual), len(expected), fmt.Sprintf("%s - invalid length", explanation))
	for i := 0; i < len(actual) && i < len(expected); i++ {
		AssertEqual(t, actual[i], expected[i], fmt.Sprintf("%s - invalid item %d", explanation, i))
	}
}

func AssertRegexp(t *testing.T, actual string, pattern regexp.Regexp, explanation string) {
	t.Helper()
	if pattern.FindStringIndex(actual) != nil {
		return
	}
	t.Errorf("got: %+v; expected: %+v (%s)", actual, pattern, explanation)
}

// Extract the value of a property, failing the test immediately if it
// holds anything other than a `T`.
func Decoded[T any](t *testing.T, p property.Property) T {
	t.Helper()
	if p == nil {
		t.Fatalf("expected a property holding %s, got nil", reflect.TypeOf((*T)(nil)).Elem())
	}
	value, ok := property.Downcast[T](p)
	if !ok {
		t.Fatalf("expected a property holding %s, got %s (%T)", reflect.TypeOf((*T)(nil)).Elem(), p.TypeName(), p.Any())
	}
	return value
}

// Extract an entry of a bag, failing the test immediately if it is absent
// or holds anything other than a `T`.
func Entry[T any](t *testing.T, bag *property.DynamicProperties, name string) T {
	t.Helper()
	p, ok := bag.Get(name)
	if !ok {
		t.Fatalf("missing entry %q, have %v", name, bag.Names())
	}
	return Decoded[T](t, p)
}
