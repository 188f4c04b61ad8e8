package jsonvalue

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/buger/jsonparser"
	"github.com/titanous/json5"
)

// Decode parses strict JSON. Syntax errors are returned as *json.SyntaxError so callers
// can report the offset.
func Decode(data []byte) (Value, error) {
	// jsonparser is permissive about trailing garbage, so validate first.
	var raw json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return Value{}, err
	}
	value, typ, _, err := jsonparser.Get(raw)
	if err != nil {
		return Value{}, err
	}
	return fromRaw(value, typ)
}

func fromRaw(raw []byte, typ jsonparser.ValueType) (Value, error) {
	switch typ {
	case jsonparser.Null:
		return NullValue(), nil
	case jsonparser.Boolean:
		b, err := jsonparser.ParseBoolean(raw)
		if err != nil {
			return Value{}, err
		}
		return BoolValue(b), nil
	case jsonparser.Number:
		return NumberValue(string(raw)), nil
	case jsonparser.String:
		s, err := jsonparser.ParseString(raw)
		if err != nil {
			return Value{}, err
		}
		return StringValue(s), nil
	case jsonparser.Array:
		return arrayFromRaw(raw)
	case jsonparser.Object:
		return objectFromRaw(raw)
	default:
		return Value{}, fmt.Errorf("unexpected json value type %s", typ)
	}
}

func isEmptyContainer(raw []byte) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(bytes.TrimSpace(trimmed[1:len(trimmed)-1])) == 0
}

func arrayFromRaw(raw []byte) (Value, error) {
	out := Value{kind: Array, arr: []Value{}}
	if isEmptyContainer(raw) {
		return out, nil
	}
	var walkErr error
	_, err := jsonparser.ArrayEach(raw, func(value []byte, dataType jsonparser.ValueType, _ int, err error) {
		if walkErr != nil {
			return
		}
		if err != nil {
			walkErr = err
			return
		}
		item, err := fromRaw(value, dataType)
		if err != nil {
			walkErr = err
			return
		}
		out.arr = append(out.arr, item)
	})
	if err != nil {
		return Value{}, err
	}
	if walkErr != nil {
		return Value{}, walkErr
	}
	return out, nil
}

func objectFromRaw(raw []byte) (Value, error) {
	out := Value{kind: Object, obj: map[string]Value{}}
	if isEmptyContainer(raw) {
		return out, nil
	}
	err := jsonparser.ObjectEach(raw, func(key, value []byte, dataType jsonparser.ValueType, _ int) error {
		k, err := jsonparser.ParseString(key)
		if err != nil {
			return err
		}
		member, err := fromRaw(value, dataType)
		if err != nil {
			return err
		}
		out.set(k, member)
		return nil
	})
	if err != nil {
		return Value{}, err
	}
	return out, nil
}

// DecodeLenient parses JSON5 (comments, trailing commas, unquoted keys, single quotes).
// Object keys come back sorted since the JSON5 decoder does not keep source order.
func DecodeLenient(data []byte) (Value, error) {
	var v any
	if err := json5.Unmarshal(data, &v); err != nil {
		return Value{}, err
	}
	return FromAny(v)
}

// FromAny converts the output of a generic JSON decoder (map[string]any, []any,
// float64, json.Number, string, bool, nil).
func FromAny(v any) (Value, error) {
	switch t := v.(type) {
	case nil:
		return NullValue(), nil
	case bool:
		return BoolValue(t), nil
	case string:
		return StringValue(t), nil
	case json.Number:
		return NumberValue(t.String()), nil
	case float64:
		return FloatValue(t), nil
	case int:
		return IntValue(int64(t)), nil
	case int64:
		return IntValue(t), nil
	case []any:
		items := make([]Value, 0, len(t))
		for _, item := range t {
			iv, err := FromAny(item)
			if err != nil {
				return Value{}, err
			}
			items = append(items, iv)
		}
		return Value{kind: Array, arr: items}, nil
	case map[string]any:
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		out := Value{kind: Object, obj: make(map[string]Value, len(t))}
		for _, k := range keys {
			mv, err := FromAny(t[k])
			if err != nil {
				return Value{}, err
			}
			out.set(k, mv)
		}
		return out, nil
	default:
		return Value{}, fmt.Errorf("unsupported json type %T", v)
	}
}
