package dynamic

import (
	"fmt"

	"github.com/pasqal-io/dynprops/deserialize/ron"
	"github.com/pasqal-io/dynprops/property"
)

// Write a bag as RON text that `DeserializeDynamicProperties` reads back,
// provided every entry is registered under its type name.
//
// Nested bags are rejected: the decoder resolves every entry through the
// registry, so a nested bag would not read back.
func SerializeDynamicProperties(bag *property.DynamicProperties) ([]byte, error) {
	return SerializeDynamicPropertiesIndent(bag, "")
}

// Like `SerializeDynamicProperties`, one entry per line.
func SerializeDynamicPropertiesIndent(bag *property.DynamicProperties, indent string) ([]byte, error) {
	if bag == nil {
		return nil, fmt.Errorf("cannot serialize a nil bag")
	}
	flat, err := toBag(bag)
	if err != nil {
		return nil, fmt.Errorf("cannot serialize %s:\n\t * %w", describeBag(bag), err)
	}
	out, err := ron.MarshalBag(flat, indent)
	if err != nil {
		return nil, fmt.Errorf("cannot serialize %s:\n\t * %w", describeBag(bag), err)
	}
	return out, nil
}

// Write a single property, annotated with its type name.
func SerializeProperty(p property.Property) ([]byte, error) {
	if p == nil {
		return nil, fmt.Errorf("cannot serialize a nil property")
	}
	if bag, ok := p.(*property.DynamicProperties); ok {
		return SerializeDynamicProperties(bag)
	}
	out, err := ron.Marshal(p.TypeName(), p.Any())
	if err != nil {
		return nil, fmt.Errorf("cannot serialize %s:\n\t * %w", p.TypeName(), err)
	}
	return out, nil
}

func toBag(bag *property.DynamicProperties) (ron.Bag, error) {
	entries := make([]ron.Entry, 0, bag.Len())
	for _, entry := range bag.Entries() {
		if _, ok := entry.Value.(*property.DynamicProperties); ok {
			return ron.Bag{}, fmt.Errorf("nested DynamicProperties at entry %q cannot be read back", entry.Name) //nolint:exhaustruct
		}
		entries = append(entries, ron.Entry{Key: entry.Name, TypeName: entry.Value.TypeName(), Value: entry.Value.Any()})
	}
	return ron.Bag{
		Name:    bag.Name,
		Kind:    bag.Kind(),
		Entries: entries,
	}, nil
}

func describeBag(bag *property.DynamicProperties) string {
	if bag.Name == "" {
		return "DynamicProperties"
	}
	return bag.Name
}
