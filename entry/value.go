package entry

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/fxamacker/cbor/v2"
	"gopkg.in/yaml.v3"
)

// ListSeparator joins list values in flat text representations.
const ListSeparator = ";"

// Value is a field value: either a single string or an ordered list of strings.
type Value struct {
	text   string
	list   []string
	isList bool
}

// String returns a single-string Value.
func String(s string) Value {
	return Value{text: s}
}

// List returns a list Value. Element order is significant.
func List(items ...string) Value {
	l := make([]string, len(items))
	copy(l, items)
	return Value{list: l, isList: true}
}

// ValueOf converts a string, []string or []any of strings into a Value.
func ValueOf(x any) (Value, error) {
	switch v := x.(type) {
	case string:
		return String(v), nil
	case []string:
		return List(v...), nil
	case []any:
		items := make([]string, 0, len(v))
		for i, item := range v {
			s, ok := item.(string)
			if !ok {
				return Value{}, fmt.Errorf("list element %d: expected string, got %T", i, item)
			}
			items = append(items, s)
		}
		return List(items...), nil
	case Value:
		return v, nil
	default:
		return Value{}, fmt.Errorf("unsupported value type %T", x)
	}
}

// IsList reports whether v holds a list.
func (v Value) IsList() bool {
	return v.isList
}

// String returns the text of v. Lists are joined with ListSeparator.
func (v Value) String() string {
	if v.isList {
		return strings.Join(v.list, ListSeparator)
	}
	return v.text
}

// Strings returns v as a list. A single value becomes a one-element list.
func (v Value) Strings() []string {
	if !v.isList {
		return []string{v.text}
	}
	l := make([]string, len(v.list))
	copy(l, v.list)
	return l
}

// Any returns v as a string or a []string.
func (v Value) Any() any {
	if v.isList {
		return v.Strings()
	}
	return v.text
}

// Equal reports whether two values hold the same content.
func (v Value) Equal(o Value) bool {
	if v.isList != o.isList {
		return false
	}
	if !v.isList {
		return v.text == o.text
	}
	if len(v.list) != len(o.list) {
		return false
	}
	for i := range v.list {
		if v.list[i] != o.list[i] {
			return false
		}
	}
	return true
}

func (v Value) MarshalJSON() ([]byte, error) {
	return json.Marshal(v.Any())
}

func (v *Value) UnmarshalJSON(data []byte) error {
	var x any
	if err := json.Unmarshal(data, &x); err != nil {
		return err
	}
	parsed, err := ValueOf(x)
	if err != nil {
		return err
	}
	*v = parsed
	return nil
}

func (v Value) MarshalYAML() (any, error) {
	return v.Any(), nil
}

func (v *Value) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.ScalarNode:
		*v = String(node.Value)
		return nil
	case yaml.SequenceNode:
		items := make([]string, 0, len(node.Content))
		for _, n := range node.Content {
			if n.Kind != yaml.ScalarNode {
				return fmt.Errorf("line %d: list elements must be scalars", n.Line)
			}
			items = append(items, n.Value)
		}
		*v = List(items...)
		return nil
	default:
		return fmt.Errorf("line %d: field values must be scalars or lists of scalars", node.Line)
	}
}

func (v Value) MarshalCBOR() ([]byte, error) {
	return encMode.Marshal(v.Any())
}

func (v *Value) UnmarshalCBOR(data []byte) error {
	var x any
	if err := cbor.Unmarshal(data, &x); err != nil {
		return err
	}
	parsed, err := ValueOf(x)
	if err != nil {
		return err
	}
	*v = parsed
	return nil
}
