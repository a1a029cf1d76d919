// Package ron reads and writes a Rusty Object Notation dialect, in which
// values may be annotated with the name of their type:
//
//	#![enable(implicit_some)]
//	(
//	    translation: Vec3(x: 1.0, y: 2.0, z: 3.0),
//	    scale: Scale(2.0),
//	    visible: bool(true),
//	)
//
// A `Parser` is a `shared.Stream`: it reports the annotation of the root and of
// each entry of the root to its type-name hook, then hands over the annotated
// body as a native tree (`map[string]any`, `[]any`, `string`, `int64`, `float64`,
// `bool` or `nil`).
//
// Bodies are read as follows:
//   - `Name(field: value, ...)` and `(field: value, ...)` are dictionaries;
//   - `Name(value)` and `(value)` are the value itself;
//   - `Name(a, b, ...)` and `(a, b, ...)` are lists, as are `[a, b, ...]`;
//   - a bare `Name` is `nil`;
//   - `{key: value, ...}` is a dictionary, keys are converted to strings;
//   - `Some(value)` is the value, `None` is `nil`;
//   - chars are strings.
package ron

import (
	"bytes"
	"errors"
	"math"
	"strconv"

	"github.com/pasqal-io/dynprops/deserialize/shared"
)

// The extensions accepted in a `#![enable(...)]` header.
//
// They are accepted for compatibility, the parser is always lenient.
var knownExtensions = map[string]struct{}{
	"implicit_some":           {},
	"unwrap_newtypes":         {},
	"unwrap_variant_newtypes": {},
}

var errConsumed = errors.New("ron: stream already consumed")

// A single-use stream over a RON document.
type Parser struct {
	scanner
	hook       shared.TypeNameHook
	extensions []string
	consumed   bool
}

// Open a stream over `input`.
//
// Fails if the extension header is malformed.
func NewParser(input []byte) (*Parser, error) {
	parser := &Parser{
		scanner: scanner{src: input, pos: 0},
	}
	if err := parser.header(); err != nil {
		return nil, err
	}
	return parser, nil
}

// The extensions enabled by the header, in order.
func (p *Parser) Extensions() []string {
	result := make([]string, len(p.extensions))
	copy(result, p.extensions)
	return result
}

func (p *Parser) SetTypeNameHook(hook shared.TypeNameHook) {
	p.hook = hook
}

func (p *Parser) report(name []byte) error {
	if p.hook == nil {
		return nil
	}
	return p.hook(name)
}

func (p *Parser) begin() error {
	if p.consumed {
		return errConsumed
	}
	p.consumed = true
	return nil
}

// Fail unless only whitespace and comments remain.
func (p *Parser) finish() error {
	if err := p.skipSpace(); err != nil {
		return err
	}
	if !p.eof() {
		return p.errorf("trailing characters after the root value")
	}
	return nil
}

func (p *Parser) DriveValue(receive func(shared.Value) error) error {
	if err := p.begin(); err != nil {
		return err
	}
	name, body, err := p.annotated()
	if err != nil {
		return err
	}
	if err := p.finish(); err != nil {
		return err
	}
	if err := p.report(name); err != nil {
		return err
	}
	return receive(shared.Wrap(body))
}

func (p *Parser) DriveContainer(visitor shared.ContainerVisitor) error {
	if err := p.begin(); err != nil {
		return err
	}
	if err := p.skipSpace(); err != nil {
		return err
	}
	var name []byte
	if isIdentStart(p.peek()) && !p.atRawString() {
		start := p.pos
		name = p.ident()
		if isKeyword(name) {
			p.pos = start
			return p.errorf("expected a struct, map or list at the root, got %s", name)
		}
		if err := p.skipSpace(); err != nil {
			return err
		}
		if p.peek() != '(' {
			return p.errorf("expected a struct or tuple after %s at the root, got %s", name, p.current())
		}
	}
	if err := p.report(name); err != nil {
		return err
	}

	var err error
	switch p.peek() {
	case '(':
		p.pos++
		if err := p.skipSpace(); err != nil {
			return err
		}
		if p.peek() == ')' || p.structAhead() {
			err = p.rootStruct(visitor)
		} else {
			err = p.rootSeq(')', visitor)
		}
	case '{':
		p.pos++
		err = p.rootMap(visitor)
	case '[':
		p.pos++
		err = p.rootSeq(']', visitor)
	default:
		return p.errorf("expected a struct, map or list at the root, got %s", p.current())
	}
	if err != nil {
		return err
	}
	return p.finish()
}

// Read one annotated entry, report its annotation, then visit it.
func (p *Parser) visitEntry(visitor shared.ContainerVisitor, key string) error {
	name, body, err := p.annotated()
	if err != nil {
		return err
	}
	if err := p.report(name); err != nil {
		return err
	}
	return visitor.VisitEntry(key, shared.Wrap(body))
}

func (p *Parser) rootStruct(visitor shared.ContainerVisitor) error {
	if err := visitor.VisitContainer(shared.KindMap); err != nil {
		return err
	}
	seen := make(map[string]struct{})
	return p.sequence(')', "struct", func() error {
		key, err := p.fieldName(seen)
		if err != nil {
			return err
		}
		return p.visitEntry(visitor, key)
	})
}

func (p *Parser) rootMap(visitor shared.ContainerVisitor) error {
	if err := visitor.VisitContainer(shared.KindMap); err != nil {
		return err
	}
	seen := make(map[string]struct{})
	return p.sequence('}', "map", func() error {
		key, err := p.mapKey(seen)
		if err != nil {
			return err
		}
		return p.visitEntry(visitor, key)
	})
}

func (p *Parser) rootSeq(closing byte, visitor shared.ContainerVisitor) error {
	if err := visitor.VisitContainer(shared.KindSeq); err != nil {
		return err
	}
	index := 0
	return p.sequence(closing, "list", func() error {
		key := strconv.Itoa(index)
		index++
		return p.visitEntry(visitor, key)
	})
}

// Read comma-separated entries up to `closing`, which is consumed.
// A trailing comma is accepted.
func (p *Parser) sequence(closing byte, what string, entry func() error) error {
	for {
		if err := p.skipSpace(); err != nil {
			return err
		}
		if p.peek() == closing && !p.eof() {
			p.pos++
			return nil
		}
		if p.eof() {
			return p.errorf("unterminated %s", what)
		}
		if err := entry(); err != nil {
			return err
		}
		if err := p.skipSpace(); err != nil {
			return err
		}
		switch {
		case p.eof():
			return p.errorf("unterminated %s", what)
		case p.peek() == ',':
			p.pos++
		case p.peek() == closing:
			p.pos++
			return nil
		default:
			return p.errorf("expected ',' or %q in %s, got %s", closing, what, p.current())
		}
	}
}

// `true` if the input continues with `identifier :`.
func (p *Parser) structAhead() bool {
	if !isIdentStart(p.peek()) || p.atRawString() {
		return false
	}
	start := p.pos
	defer func() { p.pos = start }()
	p.ident()
	if err := p.skipSpace(); err != nil {
		return false
	}
	return p.peek() == ':'
}

// Read `identifier :`.
func (p *Parser) fieldName(seen map[string]struct{}) (string, error) {
	if !isIdentStart(p.peek()) {
		return "", p.errorf("expected a field name, got %s", p.current())
	}
	start := p.pos
	key := string(p.ident())
	if _, ok := seen[key]; ok {
		p.pos = start
		return "", p.errorf("duplicate field %q", key)
	}
	seen[key] = struct{}{}
	return key, p.expect(':')
}

// Read `key :` in a map. Keys are converted to strings.
func (p *Parser) mapKey(seen map[string]struct{}) (string, error) {
	start := p.pos
	name, body, err := p.annotated()
	if err != nil {
		return "", err
	}
	var key string
	switch typed := body.(type) {
	case nil:
		if name == nil {
			p.pos = start
			return "", p.errorf("invalid map key")
		}
		key = string(name)
	case string:
		key = typed
	case int64:
		key = strconv.FormatInt(typed, 10)
	case uint64:
		key = strconv.FormatUint(typed, 10)
	case float64:
		key = strconv.FormatFloat(typed, 'g', -1, 64)
	case bool:
		key = strconv.FormatBool(typed)
	default:
		p.pos = start
		return "", p.errorf("invalid map key")
	}
	if _, ok := seen[key]; ok {
		p.pos = start
		return "", p.errorf("duplicate key %q", key)
	}
	seen[key] = struct{}{}
	return key, p.expect(':')
}

func isKeyword(ident []byte) bool {
	switch string(ident) {
	case "true", "false", "None", "Some", "inf", "NaN":
		return true
	}
	return false
}

// Read a value and its annotation, if any.
func (p *Parser) annotated() ([]byte, any, error) {
	if err := p.skipSpace(); err != nil {
		return nil, nil, err
	}
	c := p.peek()
	switch {
	case p.eof():
		return nil, nil, p.errorf("expected a value, got end of input")
	case p.atRawString():
		value, err := p.rawString()
		return nil, value, err
	case isIdentStart(c):
		ident := p.ident()
		switch string(ident) {
		case "true":
			return nil, true, nil
		case "false":
			return nil, false, nil
		case "None":
			return nil, nil, nil
		case "inf":
			return nil, math.Inf(1), nil
		case "NaN":
			return nil, math.NaN(), nil
		case "Some":
			if err := p.expect('('); err != nil {
				return nil, nil, err
			}
			name, body, err := p.annotated()
			if err != nil {
				return nil, nil, err
			}
			if err := p.skipSpace(); err != nil {
				return nil, nil, err
			}
			if p.peek() == ',' {
				p.pos++
			}
			return name, body, p.expect(')')
		}
		if err := p.skipSpace(); err != nil {
			return nil, nil, err
		}
		if p.peek() != '(' {
			// A unit value.
			return ident, nil, nil
		}
		body, err := p.parenthesized()
		return ident, body, err
	case c == '(':
		body, err := p.parenthesized()
		return nil, body, err
	}
	body, err := p.plain()
	return nil, body, err
}

// Read `( ... )`: a struct, a newtype or a tuple.
func (p *Parser) parenthesized() (any, error) {
	p.pos++ // '('
	if err := p.skipSpace(); err != nil {
		return nil, err
	}
	if p.peek() == ')' {
		p.pos++
		return map[string]any{}, nil
	}
	if p.structAhead() {
		fields := make(map[string]any)
		seen := make(map[string]struct{})
		err := p.sequence(')', "struct", func() error {
			key, err := p.fieldName(seen)
			if err != nil {
				return err
			}
			_, value, err := p.annotated()
			fields[key] = value
			return err
		})
		if err != nil {
			return nil, err
		}
		return fields, nil
	}
	items, err := p.items(')', "tuple")
	if err != nil {
		return nil, err
	}
	if len(items) == 1 {
		return items[0], nil
	}
	return items, nil
}

func (p *Parser) items(closing byte, what string) ([]any, error) {
	items := make([]any, 0)
	err := p.sequence(closing, what, func() error {
		_, value, err := p.annotated()
		items = append(items, value)
		return err
	})
	return items, err
}

// Read an unannotated value.
func (p *Parser) plain() (any, error) {
	switch c := p.peek(); {
	case c == '[':
		p.pos++
		return p.items(']', "list")
	case c == '{':
		p.pos++
		entries := make(map[string]any)
		seen := make(map[string]struct{})
		err := p.sequence('}', "map", func() error {
			key, err := p.mapKey(seen)
			if err != nil {
				return err
			}
			_, value, err := p.annotated()
			entries[key] = value
			return err
		})
		if err != nil {
			return nil, err
		}
		return entries, nil
	case c == '"':
		return p.quoted('"')
	case c == '\'':
		start := p.pos
		value, err := p.quoted('\'')
		if err != nil {
			return nil, err
		}
		if len([]rune(value)) != 1 {
			p.pos = start
			return nil, p.errorf("invalid character literal")
		}
		return value, nil
	case isDigit(c) || c == '-' || c == '+' || (c == '.' && isDigit(p.peekAt(1))):
		return p.number()
	}
	return nil, p.errorf("unexpected %s", p.current())
}

// Read the `#![enable(...)]` attributes at the start of the document.
func (p *Parser) header() error {
	for {
		if err := p.skipSpace(); err != nil {
			return err
		}
		if p.peek() != '#' {
			return nil
		}
		if !bytes.HasPrefix(p.src[p.pos:], []byte("#![")) {
			return p.errorf("invalid attribute")
		}
		p.pos += 3
		if err := p.skipSpace(); err != nil {
			return err
		}
		if !isIdentStart(p.peek()) {
			return p.errorf("invalid attribute")
		}
		start := p.pos
		if attribute := string(p.ident()); attribute != "enable" {
			p.pos = start
			return p.errorf("unknown attribute %q", attribute)
		}
		if err := p.expect('('); err != nil {
			return err
		}
		err := p.sequence(')', "attribute", func() error {
			start := p.pos
			if !isIdentStart(p.peek()) {
				return p.errorf("expected an extension name, got %s", p.current())
			}
			extension := string(p.ident())
			if _, ok := knownExtensions[extension]; !ok {
				p.pos = start
				return p.errorf("unknown extension %q", extension)
			}
			p.extensions = append(p.extensions, extension)
			return nil
		})
		if err != nil {
			return err
		}
		if err := p.expect(']'); err != nil {
			return err
		}
	}
}

var _ shared.Stream = &Parser{} //nolint:exhaustruct
