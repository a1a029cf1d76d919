package main

import (
	"bytes"
	"fmt"

	"github.com/pasqal-io/dynprops/deserialize/ron"
	"github.com/pasqal-io/dynprops/deserialize/shared"
	"github.com/pasqal-io/dynprops/property"
	"gopkg.in/yaml.v3"
)

// Render a bag as YAML, each entry tagged with its type name, so that the
// output reads back with `-format yaml`.
func render(bag *property.DynamicProperties) ([]byte, error) {
	root, err := bagNode(bag)
	if err != nil {
		return nil, err
	}
	var out bytes.Buffer
	encoder := yaml.NewEncoder(&out)
	encoder.SetIndent(2)
	if err = encoder.Encode(root); err != nil {
		return nil, fmt.Errorf("cannot render %s:\n\t * %w", bag.Name, err)
	}
	if err = encoder.Close(); err != nil {
		return nil, fmt.Errorf("cannot render %s:\n\t * %w", bag.Name, err)
	}
	return out.Bytes(), nil
}

// Render a single property.
func renderProperty(p property.Property) ([]byte, error) {
	node, err := propertyNode(p)
	if err != nil {
		return nil, err
	}
	out, err := yaml.Marshal(node)
	if err != nil {
		return nil, fmt.Errorf("cannot render %s:\n\t * %w", p.TypeName(), err)
	}
	return out, nil
}

func bagNode(bag *property.DynamicProperties) (*yaml.Node, error) {
	node := &yaml.Node{Kind: yaml.MappingNode}
	if bag.Kind() == property.KindSeq {
		node.Kind = yaml.SequenceNode
	}
	if bag.Name != "" {
		node.Tag = "!" + bag.Name
	}
	for _, entry := range bag.Entries() {
		value, err := propertyNode(entry.Value)
		if err != nil {
			return nil, fmt.Errorf("at entry %s:\n\t * %w", entry.Name, err)
		}
		if node.Kind == yaml.MappingNode {
			node.Content = append(node.Content, &yaml.Node{Kind: yaml.ScalarNode, Value: entry.Name})
		}
		node.Content = append(node.Content, value)
	}
	return node, nil
}

func propertyNode(p property.Property) (*yaml.Node, error) {
	if bag, ok := p.(*property.DynamicProperties); ok {
		return bagNode(bag)
	}
	value, err := native(p.Any())
	if err != nil {
		return nil, fmt.Errorf("cannot render %s:\n\t * %w", p.TypeName(), err)
	}
	node := new(yaml.Node)
	if err = node.Encode(value); err != nil {
		return nil, fmt.Errorf("cannot render %s:\n\t * %w", p.TypeName(), err)
	}
	node.Tag = "!" + p.TypeName()
	if node.Kind == yaml.ScalarNode && node.Style == 0 {
		// Keep strings that look like numbers quoted once the standard tag is gone.
		if _, isString := value.(string); isString {
			node.Style = yaml.DoubleQuotedStyle
		}
	}
	return node, nil
}

// The tree a value decodes from, fields named after their `prop` tags.
//
// We go through RON rather than encoding the value directly, as the YAML
// encoder only knows about `yaml` tags.
func native(value any) (any, error) {
	text, err := ron.Marshal("", value)
	if err != nil {
		return nil, err //nolint:wrapcheck
	}
	parser, err := ron.NewParser(text)
	if err != nil {
		return nil, err //nolint:wrapcheck
	}
	var result any
	err = parser.DriveValue(func(v shared.Value) error {
		result = v.Interface()
		return nil
	})
	return result, err //nolint:wrapcheck
}
