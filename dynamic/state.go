package dynamic

import (
	"fmt"
	"log/slog"
	"unicode/utf8"

	"github.com/pasqal-io/dynprops/deserialize/shared"
	"github.com/pasqal-io/dynprops/property"
	"github.com/pasqal-io/dynprops/registry"
)

type phase int

const (
	phaseIdle phase = iota
	phaseAwaitingTypeAnnotation
	phaseTypeCaptured
	phaseDispatching
	phaseDone
	phaseFailed
)

func (p phase) String() string {
	switch p {
	case phaseIdle:
		return "idle"
	case phaseAwaitingTypeAnnotation:
		return "awaiting type annotation"
	case phaseTypeCaptured:
		return "type captured"
	case phaseDispatching:
		return "dispatching"
	case phaseDone:
		return "done"
	case phaseFailed:
		return "failed"
	default:
		return fmt.Sprintf("phase(%d)", int(p))
	}
}

// The state of one decode call.
//
// Owned by that call, never shared: the stream writes the captured name
// through `capture`, the call reads it back through `take`.
type decodeState struct {
	format   Format
	registry *registry.Registry
	phase    phase

	// The last annotation reported by the stream, if `hasName`.
	name    string
	hasName bool

	// The first error raised by this state, as opposed to the stream.
	failure error
}

func newDecodeState(format Format, reg *registry.Registry) *decodeState {
	return &decodeState{
		format:   format,
		registry: reg,
		phase:    phaseIdle,
		name:     "",
		hasName:  false,
		failure:  nil,
	}
}

// Attach to `stream` until the returned function is called.
func (s *decodeState) attach(stream shared.Stream) func() {
	s.phase = phaseAwaitingTypeAnnotation
	stream.SetTypeNameHook(s.capture)
	return func() {
		stream.SetTypeNameHook(nil)
	}
}

// The type name hook.
func (s *decodeState) capture(name []byte) error {
	if s.phase != phaseAwaitingTypeAnnotation && s.phase != phaseTypeCaptured {
		return s.fail(fmt.Errorf("type annotation reported while %s", s.phase))
	}
	if name == nil {
		s.name, s.hasName = "", false
		s.phase = phaseAwaitingTypeAnnotation
		return nil
	}
	if !utf8.Valid(name) {
		return s.fail(&MalformedInputError{
			Format:  s.format,
			Wrapped: fmt.Errorf("type annotation %q is not valid UTF-8", name),
		})
	}
	s.name, s.hasName = string(name), true
	s.phase = phaseTypeCaptured
	return nil
}

// Consume the captured name, if any.
func (s *decodeState) take() (string, bool) {
	name, ok := s.name, s.hasName
	s.name, s.hasName = "", false
	s.phase = phaseDispatching
	return name, ok
}

// Resolve the captured name and decode `value` with its registration.
//
// `key` is the entry holding the value, empty for a root value.
func (s *decodeState) dispatch(key string, value shared.Value) (property.Property, error) {
	name, ok := s.take()
	if !ok {
		return nil, s.fail(&UnknownTypeError{Name: "", Key: key})
	}
	registration, ok := s.registry.Get(name)
	if !ok {
		return nil, s.fail(&UnknownTypeError{Name: name, Key: key})
	}
	slog.Debug("dispatching", "type", name, "key", key)
	result, err := registration.Deserialize(value)
	if err != nil {
		return nil, s.fail(&FieldError{TypeName: name, Key: key, Wrapped: err})
	}
	s.phase = phaseAwaitingTypeAnnotation
	return result, nil
}

func (s *decodeState) fail(err error) error {
	if s.failure == nil {
		s.failure = err
	}
	s.phase = phaseFailed
	return err
}

// Turn the outcome of driving a stream into the error reported to the caller.
//
// Errors raised by this state are returned as is, anything else comes
// from the stream and means the input is malformed.
func (s *decodeState) finish(err error) error {
	switch {
	case s.failure != nil:
		s.phase = phaseFailed
		return s.failure
	case err != nil:
		s.phase = phaseFailed
		return &MalformedInputError{Format: s.format, Wrapped: err}
	default:
		s.phase = phaseDone
		return nil
	}
}

// Receives the root container of a stream into a bag.
type bagVisitor struct {
	state *decodeState
	bag   *property.DynamicProperties
}

func (v *bagVisitor) VisitContainer(kind shared.Kind) error {
	// The root annotation names the bag itself.
	name, _ := v.state.take()
	if kind == shared.KindSeq {
		v.bag = property.NewSeq(name)
	} else {
		v.bag = property.NewMap(name)
	}
	v.state.phase = phaseAwaitingTypeAnnotation
	return nil
}

func (v *bagVisitor) VisitEntry(key string, value shared.Value) error {
	result, err := v.state.dispatch(key, value)
	if err != nil {
		return err
	}
	if err = v.bag.Set(key, result); err != nil {
		return v.state.fail(&MalformedInputError{Format: v.state.format, Wrapped: err})
	}
	return nil
}
