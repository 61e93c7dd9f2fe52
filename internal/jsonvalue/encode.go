package jsonvalue

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strconv"
)

// Marshal encodes v as compact JSON, keeping object key order.
func Marshal(v Value) ([]byte, error) {
	var buf bytes.Buffer
	if err := encode(&buf, v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func encode(buf *bytes.Buffer, v Value) error {
	switch t := v.(type) {
	case nil, Null:
		buf.WriteString("null")
	case Bool:
		buf.WriteString(strconv.FormatBool(bool(t)))
	case Integer:
		buf.WriteString(strconv.FormatInt(int64(t), 10))
	case Float:
		buf.WriteString(string(t))
	case String:
		return encodeString(buf, string(t))
	case *Object:
		if t == nil {
			buf.WriteString("null")
			return nil
		}
		buf.WriteByte('{')
		for i, k := range t.keys {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := encodeString(buf, k); err != nil {
				return err
			}
			buf.WriteByte(':')
			if err := encode(buf, t.values[k]); err != nil {
				return err
			}
		}
		buf.WriteByte('}')
	case Array:
		buf.WriteByte('[')
		for i, e := range t {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := encode(buf, e); err != nil {
				return err
			}
		}
		buf.WriteByte(']')
	default:
		return fmt.Errorf("jsonvalue: cannot encode %T", v)
	}
	return nil
}

func encodeString(buf *bytes.Buffer, s string) error {
	b, err := json.Marshal(s)
	if err != nil {
		return err
	}
	buf.Write(b)
	return nil
}

// MarshalJSON implements json.Marshaler.
func (o *Object) MarshalJSON() ([]byte, error) { return Marshal(o) }

// UnmarshalJSON implements json.Unmarshaler. The input must be an object.
func (o *Object) UnmarshalJSON(data []byte) error {
	obj, err := ParseObject(data)
	if err != nil {
		return err
	}
	*o = *obj
	return nil
}

// MarshalJSON implements json.Marshaler.
func (a Array) MarshalJSON() ([]byte, error) { return Marshal(a) }

// ToAny converts v to the generic shapes produced by encoding/json, except
// that integers become int so that gojq and jsonschema see exact values.
// Object key order is lost.
func ToAny(v Value) any {
	switch t := v.(type) {
	case Bool:
		return bool(t)
	case Integer:
		return int(t)
	case Float:
		f, err := strconv.ParseFloat(string(t), 64)
		if err != nil {
			return json.Number(t)
		}
		return f
	case String:
		return string(t)
	case *Object:
		if t == nil {
			return nil
		}
		m := make(map[string]any, len(t.keys))
		for _, k := range t.keys {
			m[k] = ToAny(t.values[k])
		}
		return m
	case Array:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = ToAny(e)
		}
		return out
	}
	return nil
}

// FromAny converts a generic value back into a Value. Map keys are sorted
// because Go maps carry no order. Whole float64 values become Integer.
func FromAny(x any) (Value, error) {
	switch t := x.(type) {
	case nil:
		return Null{}, nil
	case bool:
		return Bool(t), nil
	case int:
		return Integer(t), nil
	case int64:
		return Integer(t), nil
	case int32:
		return Integer(t), nil
	case float64:
		if t == math.Trunc(t) && math.Abs(t) < 1<<53 {
			return Integer(int64(t)), nil
		}
		return Float(strconv.FormatFloat(t, 'g', -1, 64)), nil
	case json.Number:
		if n, err := t.Int64(); err == nil {
			return Integer(n), nil
		}
		return Float(t.String()), nil
	case string:
		return String(t), nil
	case map[string]any:
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		obj := NewObject()
		for _, k := range keys {
			v, err := FromAny(t[k])
			if err != nil {
				return nil, err
			}
			obj.Set(k, v)
		}
		return obj, nil
	case []any:
		arr := make(Array, len(t))
		for i, e := range t {
			v, err := FromAny(e)
			if err != nil {
				return nil, err
			}
			arr[i] = v
		}
		return arr, nil
	case Value:
		return t, nil
	}
	return nil, fmt.Errorf("jsonvalue: unsupported type %T", x)
}
