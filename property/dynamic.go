package property

import (
	"fmt"
	"strconv"

	"github.com/pasqal-io/dynprops/deserialize/shared"
)

// The shape of a `DynamicProperties`.
type Kind = shared.Kind

const (
	KindMap = shared.KindMap
	KindSeq = shared.KindSeq
)

// A named entry of a `DynamicProperties`.
type Entry struct {
	Name  string
	Value Property
}

// A composite of dynamic properties, either keyed by name or positional.
//
// Entries keep their insertion order. Names are unique: setting an existing
// name replaces its value in place.
type DynamicProperties struct {
	// The name of the bag itself, possibly empty.
	//
	// This is the annotation of the root of the input, it is not resolved
	// against the registry.
	Name string

	kind    Kind
	props   []Property
	names   []string
	indices map[string]int
}

// An empty bag of named properties.
func NewMap(name string) *DynamicProperties {
	return &DynamicProperties{
		Name:    name,
		kind:    KindMap,
		props:   make([]Property, 0),
		names:   make([]string, 0),
		indices: make(map[string]int),
	}
}

// An empty bag of positional properties.
func NewSeq(name string) *DynamicProperties {
	bag := NewMap(name)
	bag.kind = KindSeq
	return bag
}

func (d *DynamicProperties) Kind() Kind {
	return d.kind
}

// Insert or replace a named property.
//
// For sequences, `name` must be the decimal position of an existing entry
// or the next position.
func (d *DynamicProperties) Set(name string, value Property) error {
	if index, ok := d.indices[name]; ok {
		d.props[index] = value
		return nil
	}
	if d.kind == KindSeq && name != strconv.Itoa(len(d.props)) {
		return fmt.Errorf("cannot set entry %q of a sequence of length %d", name, len(d.props))
	}
	d.indices[name] = len(d.props)
	d.names = append(d.names, name)
	d.props = append(d.props, value)
	return nil
}

// Append a property at the next position, named after that position.
//
// On a map that already holds an entry of that name, the entry is replaced
// in place, as with `Set`.
func (d *DynamicProperties) Push(value Property) {
	// Never fails: the next position is always a valid sequence name.
	_ = d.Set(strconv.Itoa(len(d.props)), value)
}

func (d *DynamicProperties) Get(name string) (Property, bool) {
	index, ok := d.indices[name]
	if !ok {
		return nil, false
	}
	return d.props[index], true
}

// The property at position `i`, or nil if out of range.
func (d *DynamicProperties) At(i int) Property {
	if i < 0 || i >= len(d.props) {
		return nil
	}
	return d.props[i]
}

func (d *DynamicProperties) Len() int {
	return len(d.props)
}

// Entry names, in order.
func (d *DynamicProperties) Names() []string {
	names := make([]string, len(d.names))
	copy(names, d.names)
	return names
}

// Entries, in order.
func (d *DynamicProperties) Entries() []Entry {
	entries := make([]Entry, len(d.props))
	for i, prop := range d.props {
		entries[i] = Entry{Name: d.names[i], Value: prop}
	}
	return entries
}

func (d *DynamicProperties) TypeName() string {
	return "DynamicProperties"
}

func (d *DynamicProperties) Any() any {
	return d
}

// Deep copy: every entry is cloned.
func (d *DynamicProperties) Clone() Property {
	result := NewMap(d.Name)
	result.kind = d.kind
	for i, prop := range d.props {
		result.indices[d.names[i]] = i
		result.names = append(result.names, d.names[i])
		result.props = append(result.props, prop.Clone())
	}
	return result
}

// Apply `other` entry by entry.
//
// `other` must be a `DynamicProperties` of the same kind. Entries of `other`
// that exist here are applied recursively. For maps, new entries are added
// (as clones). For sequences, extra entries are appended.
func (d *DynamicProperties) Apply(other Property) error {
	if other == nil {
		return fmt.Errorf("cannot apply nil to DynamicProperties")
	}
	source, ok := other.(*DynamicProperties)
	if !ok {
		return fmt.Errorf("cannot apply a %s to DynamicProperties", other.TypeName())
	}
	if source == nil {
		return fmt.Errorf("cannot apply a nil DynamicProperties")
	}
	if source.kind != d.kind {
		return fmt.Errorf("cannot apply a %s DynamicProperties to a %s DynamicProperties", source.kind, d.kind)
	}
	for i, prop := range source.props {
		name := source.names[i]
		if existing, ok := d.Get(name); ok {
			if err := existing.Apply(prop); err != nil {
				return fmt.Errorf("at entry %s:\n\t * %w", name, err)
			}
			continue
		}
		if d.kind == KindSeq {
			d.Push(prop.Clone())
			continue
		}
		if err := d.Set(name, prop.Clone()); err != nil {
			return err
		}
	}
	return nil
}

// Structural equality: same name, kind and entries, in the same order.
func (d *DynamicProperties) Equal(other Property) bool {
	source, ok := other.(*DynamicProperties)
	if !ok || source.Name != d.Name || source.kind != d.kind || len(source.props) != len(d.props) {
		return false
	}
	for i, prop := range d.props {
		if source.names[i] != d.names[i] || !Equal(prop, source.props[i]) {
			return false
		}
	}
	return true
}

var _ Property = &DynamicProperties{} //nolint:exhaustruct
