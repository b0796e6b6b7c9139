package value

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

const nullTag = "!!null"

// UnmarshalYAML decodes any YAML node into a Value. Scalars keep their literal
// text regardless of YAML type.
func (v *Value) UnmarshalYAML(node *yaml.Node) error {
	decoded, err := fromNode(node)
	if err != nil {
		return err
	}
	*v = decoded
	return nil
}

// MarshalYAML encodes the value preserving mapping order.
func (v Value) MarshalYAML() (any, error) {
	return v.node(), nil
}

// UnmarshalYAML decodes a YAML mapping, preserving document order. Null
// entries are dropped.
func (m *Mapping) UnmarshalYAML(node *yaml.Node) error {
	decoded, err := fromNode(node)
	if err != nil {
		return err
	}
	if decoded.kind == KindScalar && decoded.scalar == "" {
		*m = *NewMapping()
		return nil
	}
	fields, ok := decoded.Mapping()
	if !ok {
		return fmt.Errorf("value: expected mapping at line %d, got %s", node.Line, decoded.kind)
	}
	*m = *fields
	return nil
}

// MarshalYAML encodes the mapping preserving order.
func (m *Mapping) MarshalYAML() (any, error) {
	return Map(m).node(), nil
}

// ParseYAML decodes a YAML document into a Value.
func ParseYAML(data []byte) (Value, error) {
	var v Value
	if err := yaml.Unmarshal(data, &v); err != nil {
		return Value{}, fmt.Errorf("value: decode yaml: %w", err)
	}
	return v, nil
}

func fromNode(node *yaml.Node) (Value, error) {
	if node == nil {
		return Value{}, nil
	}
	switch node.Kind {
	case yaml.DocumentNode:
		if len(node.Content) == 0 {
			return Value{}, nil
		}
		return fromNode(node.Content[0])
	case yaml.AliasNode:
		return fromNode(node.Alias)
	case yaml.ScalarNode:
		if node.Tag == nullTag {
			return Value{}, nil
		}
		return Scalar(node.Value), nil
	case yaml.SequenceNode:
		items := make([]Value, 0, len(node.Content))
		for _, child := range node.Content {
			item, err := fromNode(child)
			if err != nil {
				return Value{}, err
			}
			items = append(items, item)
		}
		return Value{kind: KindSequence, items: items}, nil
	case yaml.MappingNode:
		fields := NewMapping()
		for i := 0; i+1 < len(node.Content); i += 2 {
			keyNode, valNode := node.Content[i], node.Content[i+1]
			if keyNode.Kind != yaml.ScalarNode {
				return Value{}, fmt.Errorf("value: mapping key at line %d must be a scalar", keyNode.Line)
			}
			if valNode.Kind == yaml.ScalarNode && valNode.Tag == nullTag {
				continue
			}
			item, err := fromNode(valNode)
			if err != nil {
				return Value{}, err
			}
			fields.Set(keyNode.Value, item)
		}
		return Map(fields), nil
	default:
		return Value{}, fmt.Errorf("value: unsupported yaml node kind %d at line %d", node.Kind, node.Line)
	}
}

func (v Value) node() *yaml.Node {
	switch v.kind {
	case KindSequence:
		n := &yaml.Node{Kind: yaml.SequenceNode, Tag: "!!seq"}
		for _, item := range v.items {
			n.Content = append(n.Content, item.node())
		}
		return n
	case KindMapping:
		n := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
		for _, key := range v.fields.Keys() {
			item, _ := v.fields.Get(key)
			n.Content = append(n.Content,
				&yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: key},
				item.node(),
			)
		}
		return n
	default:
		return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: v.scalar}
	}
}
