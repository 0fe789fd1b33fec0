package toolbar

import (
	"encoding/json"
	"fmt"
	"strconv"

	"gopkg.in/yaml.v3"
)

// ValueKind identifies the variant held by a Value.
type ValueKind int

const (
	ValueNull ValueKind = iota
	ValueString
	ValueInt
	ValueFloat
	ValueBool
	ValueList
	ValueMap
)

// Value is a property value from a button's property bag.
//
// Presentation properties are not interpreted here; they are forwarded to the
// host GUI, which validates them when it applies them. The zero Value is null.
type Value struct {
	kind ValueKind
	s    string
	i    int64
	f    float64
	b    bool
	list []Value
	m    map[string]Value
}

// StringValue returns a string Value.
func StringValue(s string) Value { return Value{kind: ValueString, s: s} }

// IntValue returns an integer Value.
func IntValue(i int64) Value { return Value{kind: ValueInt, i: i} }

// FloatValue returns a floating point Value.
func FloatValue(f float64) Value { return Value{kind: ValueFloat, f: f} }

// BoolValue returns a boolean Value.
func BoolValue(b bool) Value { return Value{kind: ValueBool, b: b} }

// ListValue returns a list Value.
func ListValue(items ...Value) Value { return Value{kind: ValueList, list: items} }

// MapValue returns a map Value.
func MapValue(m map[string]Value) Value { return Value{kind: ValueMap, m: m} }

// Kind reports which variant v holds.
func (v Value) Kind() ValueKind { return v.kind }

// IsNull reports whether v is null.
func (v Value) IsNull() bool { return v.kind == ValueNull }

// AsString returns the string held by v.
func (v Value) AsString() (string, bool) { return v.s, v.kind == ValueString }

// AsInt returns the integer held by v.
func (v Value) AsInt() (int64, bool) { return v.i, v.kind == ValueInt }

// AsFloat returns v as a float. Integers are widened.
func (v Value) AsFloat() (float64, bool) {
	switch v.kind {
	case ValueFloat:
		return v.f, true
	case ValueInt:
		return float64(v.i), true
	default:
		return 0, false
	}
}

// AsBool returns the boolean held by v.
func (v Value) AsBool() (bool, bool) { return v.b, v.kind == ValueBool }

// AsList returns the items held by v.
func (v Value) AsList() ([]Value, bool) { return v.list, v.kind == ValueList }

// AsMap returns the entries held by v.
func (v Value) AsMap() (map[string]Value, bool) { return v.m, v.kind == ValueMap }

// Text renders v as macro text: scalars in their plain form, lists and maps
// as JSON, null as the empty string.
func (v Value) Text() string {
	switch v.kind {
	case ValueString:
		return v.s
	case ValueInt:
		return strconv.FormatInt(v.i, 10)
	case ValueFloat:
		return strconv.FormatFloat(v.f, 'g', -1, 64)
	case ValueBool:
		return strconv.FormatBool(v.b)
	case ValueList, ValueMap:
		data, err := json.Marshal(v)
		if err != nil {
			return ""
		}
		return string(data)
	default:
		return ""
	}
}

// String implements fmt.Stringer.
func (v Value) String() string {
	if v.kind == ValueString {
		return strconv.Quote(v.s)
	}
	if v.kind == ValueNull {
		return "null"
	}
	return v.Text()
}

// Interface converts v to plain Go values (string, int64, float64, bool,
// []any, map[string]any or nil).
func (v Value) Interface() any {
	switch v.kind {
	case ValueString:
		return v.s
	case ValueInt:
		return v.i
	case ValueFloat:
		return v.f
	case ValueBool:
		return v.b
	case ValueList:
		out := make([]any, len(v.list))
		for i, item := range v.list {
			out[i] = item.Interface()
		}
		return out
	case ValueMap:
		out := make(map[string]any, len(v.m))
		for k, item := range v.m {
			out[k] = item.Interface()
		}
		return out
	default:
		return nil
	}
}

// MarshalJSON implements json.Marshaler.
func (v Value) MarshalJSON() ([]byte, error) {
	return json.Marshal(v.Interface())
}

// Equal reports whether v and o hold the same variant and content.
func (v Value) Equal(o Value) bool {
	if v.kind != o.kind {
		return false
	}
	switch v.kind {
	case ValueNull:
		return true
	case ValueString:
		return v.s == o.s
	case ValueInt:
		return v.i == o.i
	case ValueFloat:
		return v.f == o.f
	case ValueBool:
		return v.b == o.b
	case ValueList:
		if len(v.list) != len(o.list) {
			return false
		}
		for i := range v.list {
			if !v.list[i].Equal(o.list[i]) {
				return false
			}
		}
		return true
	case ValueMap:
		if len(v.m) != len(o.m) {
			return false
		}
		for k, item := range v.m {
			other, ok := o.m[k]
			if !ok || !item.Equal(other) {
				return false
			}
		}
		return true
	}
	return false
}

// valueFromAny converts decoded JSON into a Value.
func valueFromAny(x any) Value {
	switch t := x.(type) {
	case nil:
		return Value{}
	case string:
		return StringValue(t)
	case bool:
		return BoolValue(t)
	case float64:
		if t == float64(int64(t)) {
			return IntValue(int64(t))
		}
		return FloatValue(t)
	case []any:
		items := make([]Value, len(t))
		for i, item := range t {
			items[i] = valueFromAny(item)
		}
		return ListValue(items...)
	case map[string]any:
		m := make(map[string]Value, len(t))
		for k, item := range t {
			m[k] = valueFromAny(item)
		}
		return MapValue(m)
	default:
		return StringValue(fmt.Sprint(t))
	}
}

// decodeValue converts a YAML node into a Value.
func decodeValue(n *yaml.Node) (Value, error) {
	n = resolveAlias(n)
	switch n.Kind {
	case yaml.ScalarNode:
		return decodeScalar(n)
	case yaml.SequenceNode:
		items := make([]Value, 0, len(n.Content))
		for _, c := range n.Content {
			item, err := decodeValue(c)
			if err != nil {
				return Value{}, err
			}
			items = append(items, item)
		}
		return ListValue(items...), nil
	case yaml.MappingNode:
		pairs, err := mappingPairs(n)
		if err != nil {
			return Value{}, err
		}
		m := make(map[string]Value, len(pairs))
		for _, p := range pairs {
			key := p.key
			if key.Kind != yaml.ScalarNode {
				return Value{}, fmt.Errorf("line %d: mapping keys must be scalars", key.Line)
			}
			if _, dup := m[key.Value]; dup {
				return Value{}, fmt.Errorf("line %d: %w: key %q", key.Line, ErrDuplicateName, key.Value)
			}
			item, err := decodeValue(p.val)
			if err != nil {
				return Value{}, err
			}
			m[key.Value] = item
		}
		return MapValue(m), nil
	case 0:
		return Value{}, nil
	default:
		return Value{}, fmt.Errorf("line %d: unsupported YAML node", n.Line)
	}
}

func decodeScalar(n *yaml.Node) (Value, error) {
	switch n.ShortTag() {
	case "!!null":
		return Value{}, nil
	case "!!bool":
		var b bool
		if err := n.Decode(&b); err != nil {
			return Value{}, fmt.Errorf("line %d: %w", n.Line, err)
		}
		return BoolValue(b), nil
	case "!!int":
		var i int64
		if err := n.Decode(&i); err != nil {
			return Value{}, fmt.Errorf("line %d: %w", n.Line, err)
		}
		return IntValue(i), nil
	case "!!float":
		var f float64
		if err := n.Decode(&f); err != nil {
			return Value{}, fmt.Errorf("line %d: %w", n.Line, err)
		}
		return FloatValue(f), nil
	default:
		return StringValue(n.Value), nil
	}
}

func resolveAlias(n *yaml.Node) *yaml.Node {
	for n != nil && n.Kind == yaml.AliasNode && n.Alias != nil {
		n = n.Alias
	}
	return n
}
