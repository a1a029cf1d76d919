// Code specific to deserializing YAML.
//
// Local tags are annotations: `!Vec3 {x: 1.0}` is a `Vec3`. Standard tags
// (`!!str`, `!!int`, ...) are not.
package yaml

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/pasqal-io/dynprops/deserialize/shared"
	"gopkg.in/yaml.v3"
)

// Aliases may refer to their own ancestors. Past this depth we assume they do.
const maxDepth = 10000

// A stream over a single YAML document.
type Stream struct {
	root     *yaml.Node
	hook     shared.TypeNameHook
	consumed bool
}

// Parse `input`.
//
// Fails if `input` is not YAML or holds anything but exactly one document.
func NewStream(input []byte) (*Stream, error) {
	decoder := yaml.NewDecoder(bytes.NewReader(input))
	var doc yaml.Node
	if err := decoder.Decode(&doc); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errors.New("yaml: empty document")
		}
		return nil, fmt.Errorf("yaml: cannot parse document:\n\t * %w", err)
	}
	var extra yaml.Node
	if err := decoder.Decode(&extra); !errors.Is(err, io.EOF) {
		return nil, errors.New("yaml: expected a single document")
	}
	root := &doc
	if root.Kind == yaml.DocumentNode && len(root.Content) == 1 {
		root = root.Content[0]
	}
	return &Stream{
		root:     root,
		hook:     nil,
		consumed: false,
	}, nil
}

func (s *Stream) SetTypeNameHook(hook shared.TypeNameHook) {
	s.hook = hook
}

func (s *Stream) report(node *yaml.Node) error {
	if s.hook == nil {
		return nil
	}
	return s.hook(annotation(node))
}

var errConsumed = errors.New("yaml: stream already consumed")

func (s *Stream) DriveContainer(visitor shared.ContainerVisitor) error {
	if s.consumed {
		return errConsumed
	}
	s.consumed = true

	root := resolveAlias(s.root)
	var kind shared.Kind
	switch root.Kind {
	case yaml.MappingNode:
		kind = shared.KindMap
	case yaml.SequenceNode:
		kind = shared.KindSeq
	default:
		return fmt.Errorf("yaml: line %d: expected a mapping or a sequence at the root", root.Line)
	}
	if err := s.report(root); err != nil {
		return err
	}
	if err := visitor.VisitContainer(kind); err != nil {
		return err
	}

	if kind == shared.KindSeq {
		for i, item := range root.Content {
			if err := s.entry(visitor, strconv.Itoa(i), item); err != nil {
				return err
			}
		}
		return nil
	}
	seen := make(map[string]bool, len(root.Content)/2)
	for i := 0; i+1 < len(root.Content); i += 2 {
		keyNode := resolveAlias(root.Content[i])
		if keyNode.Kind != yaml.ScalarNode {
			return fmt.Errorf("yaml: line %d: expected a scalar key", keyNode.Line)
		}
		if seen[keyNode.Value] {
			return fmt.Errorf("yaml: line %d: duplicate key %q", keyNode.Line, keyNode.Value)
		}
		seen[keyNode.Value] = true
		if err := s.entry(visitor, keyNode.Value, root.Content[i+1]); err != nil {
			return err
		}
	}
	return nil
}

func (s *Stream) entry(visitor shared.ContainerVisitor, key string, node *yaml.Node) error {
	node = resolveAlias(node)
	body, err := convert(node, 0)
	if err != nil {
		return err
	}
	if err = s.report(node); err != nil {
		return err
	}
	return visitor.VisitEntry(key, shared.Wrap(body))
}

func (s *Stream) DriveValue(callback func(shared.Value) error) error {
	if s.consumed {
		return errConsumed
	}
	s.consumed = true

	root := resolveAlias(s.root)
	body, err := convert(root, 0)
	if err != nil {
		return err
	}
	if err = s.report(root); err != nil {
		return err
	}
	return callback(shared.Wrap(body))
}

// The local tag of a node, without its `!`, or nil.
func annotation(node *yaml.Node) []byte {
	if strings.HasPrefix(node.Tag, "!") && !strings.HasPrefix(node.Tag, "!!") && len(node.Tag) > 1 {
		return []byte(node.Tag[1:])
	}
	return nil
}

func resolveAlias(node *yaml.Node) *yaml.Node {
	for node.Kind == yaml.AliasNode && node.Alias != nil {
		node = node.Alias
	}
	return node
}

// Convert a node into a native tree. Nested annotations are dropped.
func convert(node *yaml.Node, depth int) (any, error) {
	if depth > maxDepth {
		return nil, fmt.Errorf("yaml: line %d: document is nested too deeply", node.Line)
	}
	node = resolveAlias(node)
	switch node.Kind {
	case yaml.DocumentNode:
		if len(node.Content) == 0 {
			return nil, nil
		}
		return convert(node.Content[0], depth+1)
	case yaml.MappingNode:
		result := make(map[string]any, len(node.Content)/2)
		for i := 0; i+1 < len(node.Content); i += 2 {
			keyNode := resolveAlias(node.Content[i])
			if keyNode.Kind != yaml.ScalarNode {
				return nil, fmt.Errorf("yaml: line %d: expected a scalar key", keyNode.Line)
			}
			value, err := convert(node.Content[i+1], depth+1)
			if err != nil {
				return nil, err
			}
			if keyNode.Tag == "!!merge" {
				if merged, ok := value.(map[string]any); ok {
					for k, v := range merged {
						if _, exists := result[k]; !exists {
							result[k] = v
						}
					}
					continue
				}
			}
			result[keyNode.Value] = value
		}
		return result, nil
	case yaml.SequenceNode:
		result := make([]any, len(node.Content))
		for i, item := range node.Content {
			value, err := convert(item, depth+1)
			if err != nil {
				return nil, err
			}
			result[i] = value
		}
		return result, nil
	case yaml.ScalarNode:
		return scalar(node)
	default:
		return nil, fmt.Errorf("yaml: line %d: unexpected node", node.Line)
	}
}

// Resolve a scalar the way an untagged scalar would be resolved.
func scalar(node *yaml.Node) (any, error) {
	untagged := *node
	if annotation(node) != nil {
		untagged.Tag = ""
	}
	var value any
	if err := untagged.Decode(&value); err != nil {
		return nil, fmt.Errorf("yaml: line %d: invalid scalar:\n\t * %w", node.Line, err)
	}
	switch v := value.(type) {
	case int:
		return int64(v), nil
	case uint64:
		if v > math.MaxInt64 {
			return v, nil
		}
		return int64(v), nil
	default:
		return value, nil
	}
}

var _ shared.Stream = &Stream{} //nolint:exhaustruct
