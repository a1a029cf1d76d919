package registry

import (
	"reflect"
	"strings"
)

// The name under which a type is registered by default.
//
// Package qualification is stripped, including inside type arguments, so
// `Pair[int,github.com/acme/geom.Vec3]` becomes `Pair[int,Vec3]`. Pointer
// types are named after their element type.
func ShortName(typ reflect.Type) string {
	for typ.Kind() == reflect.Pointer {
		typ = typ.Elem()
	}
	name := typ.Name()
	if name == "" {
		name = typ.String()
	}
	return stripQualifiers(name)
}

// Keep only the last path element of each qualified identifier.
func stripQualifiers(name string) string {
	var builder strings.Builder
	builder.Grow(len(name))
	start := 0
	flush := func(end int) {
		ident := name[start:end]
		if slash := strings.LastIndexByte(ident, '/'); slash >= 0 {
			ident = ident[slash+1:]
		}
		if dot := strings.LastIndexByte(ident, '.'); dot >= 0 {
			ident = ident[dot+1:]
		}
		builder.WriteString(ident)
	}
	for i := 0; i < len(name); i++ {
		switch name[i] {
		case '[', ']', ',', '*', ' ', '(', ')':
			flush(i)
			builder.WriteByte(name[i])
			start = i + 1
		}
	}
	flush(len(name))
	return builder.String()
}
