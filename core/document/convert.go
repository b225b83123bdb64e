package document

import (
	"encoding/json"
	"fmt"
	"slices"
)

// FromAny converts a plain Go value into a Value.
//
// Supported inputs are nil, bool, every built-in integer and float type,
// string, json.Number, []any, []Value, map[string]any, Value, Document and
// *Document. Map keys are sorted because Go maps carry no order.
func FromAny(v any) (Value, error) {
	switch val := v.(type) {
	case nil:
		return Null(), nil
	case Value:
		return val, nil
	case *Document:
		return Object(val), nil
	case Document:
		return Object(&val), nil
	case bool:
		return Bool(val), nil
	case int:
		return Number(float64(val)), nil
	case int8:
		return Number(float64(val)), nil
	case int16:
		return Number(float64(val)), nil
	case int32:
		return Number(float64(val)), nil
	case int64:
		return Number(float64(val)), nil
	case uint:
		return Number(float64(val)), nil
	case uint8:
		return Number(float64(val)), nil
	case uint16:
		return Number(float64(val)), nil
	case uint32:
		return Number(float64(val)), nil
	case uint64:
		return Number(float64(val)), nil
	case float32:
		return Number(float64(val)), nil
	case float64:
		return Number(val), nil
	case json.Number:
		f, err := val.Float64()
		if err != nil {
			return Value{}, fmt.Errorf("document: invalid number %q: %w", val.String(), err)
		}
		return Number(f), nil
	case string:
		return String(val), nil
	case []Value:
		return Array(val...), nil
	case []any:
		elems := make([]Value, len(val))
		for i, e := range val {
			ev, err := FromAny(e)
			if err != nil {
				return Value{}, fmt.Errorf("index %d: %w", i, err)
			}
			elems[i] = ev
		}
		return Array(elems...), nil
	case []string:
		elems := make([]Value, len(val))
		for i, e := range val {
			elems[i] = String(e)
		}
		return Array(elems...), nil
	case map[string]any:
		d, err := FromMap(val)
		if err != nil {
			return Value{}, err
		}
		return Object(d), nil
	default:
		return Value{}, fmt.Errorf("document: unsupported type %T", v)
	}
}

// FromMap converts a map into a Document with keys in sorted order.
func FromMap(m map[string]any) (*Document, error) {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	d := New()
	for _, k := range keys {
		v, err := FromAny(m[k])
		if err != nil {
			return nil, fmt.Errorf("field %q: %w", k, err)
		}
		d.Set(k, v)
	}
	return d, nil
}

// ToAny converts v into plain Go values: nil, bool, float64, string, []any
// and map[string]any.
func ToAny(v Value) any {
	switch v.kind {
	case KindBool:
		return v.b
	case KindNumber:
		return v.n
	case KindString:
		return v.s
	case KindArray:
		out := make([]any, len(v.a))
		for i, e := range v.a {
			out[i] = ToAny(e)
		}
		return out
	case KindObject:
		return v.o.Map()
	default:
		return nil
	}
}

// Map converts d into a map of plain Go values. Field order is lost.
func (d *Document) Map() map[string]any {
	out := make(map[string]any, len(d.keys))
	for k, v := range d.fields {
		out[k] = ToAny(v)
	}
	return out
}
