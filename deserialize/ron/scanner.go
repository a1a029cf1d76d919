package ron

import (
	"bytes"
	"fmt"
	"math"
	"strconv"
	"strings"
	"unicode/utf8"
)

// A syntax error, with its position in the input.
type SyntaxError struct {
	// Byte offset of the error.
	Offset int
	// 1-based line and column (in runes) of the error.
	Line   int
	Column int
	Msg    string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("ron: %s at line %d, column %d", e.Msg, e.Line, e.Column)
}

// Low-level reading of the input.
type scanner struct {
	src []byte
	pos int
}

func (s *scanner) errorf(format string, args ...any) error {
	line, column := position(s.src, s.pos)
	return &SyntaxError{
		Offset: s.pos,
		Line:   line,
		Column: column,
		Msg:    fmt.Sprintf(format, args...),
	}
}

func position(src []byte, offset int) (int, int) {
	if offset > len(src) {
		offset = len(src)
	}
	line := 1
	lineStart := 0
	for i := 0; i < offset; i++ {
		if src[i] == '\n' {
			line++
			lineStart = i + 1
		}
	}
	return line, utf8.RuneCount(src[lineStart:offset]) + 1
}

func (s *scanner) eof() bool {
	return s.pos >= len(s.src)
}

// The current byte, or 0 at the end of input.
func (s *scanner) peek() byte {
	return s.peekAt(0)
}

func (s *scanner) peekAt(n int) byte {
	if s.pos+n >= len(s.src) {
		return 0
	}
	return s.src[s.pos+n]
}

// Describe the current byte for error messages.
func (s *scanner) current() string {
	if s.eof() {
		return "end of input"
	}
	r, _ := utf8.DecodeRune(s.src[s.pos:])
	return strconv.QuoteRune(r)
}

// Skip whitespace and comments.
func (s *scanner) skipSpace() error {
	for !s.eof() {
		switch c := s.peek(); {
		case c == ' ' || c == '\t' || c == '\n' || c == '\r':
			s.pos++
		case c == '/' && s.peekAt(1) == '/':
			end := bytes.IndexByte(s.src[s.pos:], '\n')
			if end < 0 {
				s.pos = len(s.src)
			} else {
				s.pos += end + 1
			}
		case c == '/' && s.peekAt(1) == '*':
			if err := s.blockComment(); err != nil {
				return err
			}
		default:
			return nil
		}
	}
	return nil
}

// Block comments nest.
func (s *scanner) blockComment() error {
	start := s.pos
	depth := 0
	for !s.eof() {
		switch {
		case s.peek() == '/' && s.peekAt(1) == '*':
			depth++
			s.pos += 2
		case s.peek() == '*' && s.peekAt(1) == '/':
			depth--
			s.pos += 2
			if depth == 0 {
				return nil
			}
		default:
			s.pos++
		}
	}
	s.pos = start
	return s.errorf("unterminated comment")
}

func (s *scanner) expect(c byte) error {
	if err := s.skipSpace(); err != nil {
		return err
	}
	if s.peek() != c || s.eof() {
		return s.errorf("expected %q, got %s", c, s.current())
	}
	s.pos++
	return nil
}

// Identifiers may contain any byte >= 0x80: they are reported raw and
// checked by whoever consumes them.
func isIdentStart(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || c >= utf8.RuneSelf
}

func isIdentChar(c byte) bool {
	return isIdentStart(c) || (c >= '0' && c <= '9')
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}

// Read an identifier. The caller has checked `isIdentStart`.
func (s *scanner) ident() []byte {
	start := s.pos
	for !s.eof() && isIdentChar(s.peek()) {
		s.pos++
	}
	return s.src[start:s.pos]
}

// `true` if the input continues with a raw string, e.g. `r#"..."#`.
func (s *scanner) atRawString() bool {
	if s.peek() != 'r' {
		return false
	}
	i := 1
	for s.peekAt(i) == '#' {
		i++
	}
	return s.peekAt(i) == '"'
}

func (s *scanner) rawString() (string, error) {
	start := s.pos
	s.pos++ // 'r'
	hashes := 0
	for s.peek() == '#' {
		hashes++
		s.pos++
	}
	s.pos++ // '"'
	terminator := "\"" + strings.Repeat("#", hashes)
	end := bytes.Index(s.src[s.pos:], []byte(terminator))
	if end < 0 {
		s.pos = start
		return "", s.errorf("unterminated raw string")
	}
	content := s.src[s.pos : s.pos+end]
	if !utf8.Valid(content) {
		return "", s.errorf("invalid UTF-8 in string")
	}
	s.pos += end + len(terminator)
	return string(content), nil
}

// Read a quoted string or char, with escapes.
func (s *scanner) quoted(quote byte) (string, error) {
	start := s.pos
	s.pos++
	result := make([]byte, 0)
	for {
		if s.eof() {
			s.pos = start
			return "", s.errorf("unterminated literal")
		}
		c := s.peek()
		switch c {
		case quote:
			s.pos++
			if !utf8.Valid(result) {
				s.pos = start
				return "", s.errorf("invalid UTF-8 in string")
			}
			return string(result), nil
		case '\\':
			s.pos++
			var err error
			if result, err = s.escape(result); err != nil {
				return "", err
			}
		default:
			result = append(result, c)
			s.pos++
		}
	}
}

func (s *scanner) escape(into []byte) ([]byte, error) {
	c := s.peek()
	s.pos++
	switch c {
	case 'n':
		return append(into, '\n'), nil
	case 'r':
		return append(into, '\r'), nil
	case 't':
		return append(into, '\t'), nil
	case '0':
		return append(into, 0), nil
	case 'a':
		return append(into, '\a'), nil
	case 'b':
		return append(into, '\b'), nil
	case 'f':
		return append(into, '\f'), nil
	case 'v':
		return append(into, '\v'), nil
	case '\\', '"', '\'', '/':
		return append(into, c), nil
	case 'x':
		value, err := s.hex(2)
		if err != nil {
			return nil, err
		}
		return append(into, byte(value)), nil
	case 'u':
		if s.peek() == '{' {
			s.pos++
			end := bytes.IndexByte(s.src[s.pos:], '}')
			if end < 1 || end > 6 {
				return nil, s.errorf("invalid unicode escape")
			}
			value, err := s.hex(end)
			if err != nil {
				return nil, err
			}
			s.pos++ // '}'
			return appendRune(s, into, value)
		}
		value, err := s.hex(4)
		if err != nil {
			return nil, err
		}
		return appendRune(s, into, value)
	case 'U':
		value, err := s.hex(8)
		if err != nil {
			return nil, err
		}
		return appendRune(s, into, value)
	default:
		s.pos--
		return nil, s.errorf("invalid escape %s", s.current())
	}
}

func appendRune(s *scanner, into []byte, value uint64) ([]byte, error) {
	if value > utf8.MaxRune || !utf8.ValidRune(rune(value)) {
		return nil, s.errorf("invalid unicode code point %#x", value)
	}
	return utf8.AppendRune(into, rune(value)), nil
}

func (s *scanner) hex(n int) (uint64, error) {
	if s.pos+n > len(s.src) {
		return 0, s.errorf("truncated escape")
	}
	value, err := strconv.ParseUint(string(s.src[s.pos:s.pos+n]), 16, 32)
	if err != nil {
		return 0, s.errorf("invalid escape digits %q", s.src[s.pos:s.pos+n])
	}
	s.pos += n
	return value, nil
}

// Read a number: an int64, a float64, or a uint64 for integers past MaxInt64.
func (s *scanner) number() (any, error) {
	start := s.pos
	negative := false
	if c := s.peek(); c == '+' || c == '-' {
		negative = c == '-'
		s.pos++
		if bytes.HasPrefix(s.src[s.pos:], []byte("inf")) && !isIdentChar(s.peekAt(3)) {
			s.pos += 3
			if negative {
				return math.Inf(-1), nil
			}
			return math.Inf(1), nil
		}
	}

	if s.peek() == '0' {
		base := 0
		switch s.peekAt(1) {
		case 'x':
			base = 16
		case 'b':
			base = 2
		case 'o':
			base = 8
		}
		if base != 0 {
			s.pos += 2
			digitsStart := s.pos
			for !s.eof() && (isIdentChar(s.peek())) {
				s.pos++
			}
			digits := strings.ReplaceAll(string(s.src[digitsStart:s.pos]), "_", "")
			value, err := strconv.ParseUint(digits, base, 64)
			if err != nil {
				literal := string(s.src[start:s.pos])
				s.pos = start
				return nil, s.errorf("invalid integer %q", literal)
			}
			return s.signed(start, value, negative)
		}
	}

	isFloat := false
digits:
	for !s.eof() {
		c := s.peek()
		switch {
		case isDigit(c) || c == '_':
			s.pos++
		case c == '.' && !isFloat:
			isFloat = true
			s.pos++
		case (c == 'e' || c == 'E') && s.pos > start:
			isFloat = true
			s.pos++
			if sign := s.peek(); sign == '+' || sign == '-' {
				s.pos++
			}
		default:
			break digits
		}
	}
	if !s.eof() && isIdentChar(s.peek()) {
		s.pos = start
		return nil, s.errorf("invalid number")
	}
	text := strings.ReplaceAll(string(s.src[start:s.pos]), "_", "")
	if isFloat {
		value, err := strconv.ParseFloat(text, 64)
		if err != nil {
			s.pos = start
			return nil, s.errorf("invalid float %q", text)
		}
		return value, nil
	}
	value, err := strconv.ParseInt(text, 10, 64)
	if err == nil {
		return value, nil
	}
	if !negative {
		if unsigned, err := strconv.ParseUint(strings.TrimPrefix(text, "+"), 10, 64); err == nil {
			return unsigned, nil
		}
	}
	s.pos = start
	return nil, s.errorf("invalid integer %q", text)
}

func (s *scanner) signed(start int, value uint64, negative bool) (any, error) {
	switch {
	case negative && value == 1<<63:
		return int64(math.MinInt64), nil
	case negative && value > math.MaxInt64:
		s.pos = start
		return nil, s.errorf("integer out of range")
	case value > math.MaxInt64:
		return value, nil
	case negative:
		return -int64(value), nil
	default:
		return int64(value), nil
	}
}
