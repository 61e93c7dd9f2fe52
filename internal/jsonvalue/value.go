// Package jsonvalue is an order-preserving JSON value model with a closed set
// of variants. Callers switch over the concrete types instead of probing
// interface{} values at runtime.
package jsonvalue

import "fmt"

// Kind identifies a Value variant.
type Kind int

const (
	KindNull Kind = iota
	KindBool
	KindInteger
	KindFloat
	KindString
	KindObject
	KindArray
)

func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindBool:
		return "boolean"
	case KindInteger:
		return "integer"
	case KindFloat:
		return "float"
	case KindString:
		return "string"
	case KindObject:
		return "object"
	case KindArray:
		return "array"
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Value is a parsed JSON value. The implementations in this package are the
// only ones: Null, Bool, Integer, Float, String, *Object and Array.
type Value interface {
	Kind() Kind
	sealed()
}

// Null is the JSON null literal.
type Null struct{}

// Bool is a JSON boolean.
type Bool bool

// Integer is a JSON number written without a fraction or exponent that fits
// in an int64.
type Integer int64

// Float is any other JSON number, kept as its literal text.
type Float string

// String is a JSON string.
type String string

// Array is a JSON array.
type Array []Value

func (Null) Kind() Kind    { return KindNull }
func (Bool) Kind() Kind    { return KindBool }
func (Integer) Kind() Kind { return KindInteger }
func (Float) Kind() Kind   { return KindFloat }
func (String) Kind() Kind  { return KindString }
func (*Object) Kind() Kind { return KindObject }
func (Array) Kind() Kind   { return KindArray }

func (Null) sealed()    {}
func (Bool) sealed()    {}
func (Integer) sealed() {}
func (Float) sealed()   {}
func (String) sealed()  {}
func (*Object) sealed() {}
func (Array) sealed()   {}

// Object is a JSON object that remembers key insertion order.
type Object struct {
	keys   []string
	values map[string]Value
}

// NewObject returns an empty object.
func NewObject() *Object {
	return &Object{values: make(map[string]Value)}
}

// Len returns the number of keys.
func (o *Object) Len() int {
	if o == nil {
		return 0
	}
	return len(o.keys)
}

// Keys returns the keys in insertion order. The slice is a copy.
func (o *Object) Keys() []string {
	if o == nil {
		return nil
	}
	out := make([]string, len(o.keys))
	copy(out, o.keys)
	return out
}

// Get returns the value stored under key.
func (o *Object) Get(key string) (Value, bool) {
	if o == nil {
		return nil, false
	}
	v, ok := o.values[key]
	return v, ok
}

// Set stores v under key. A new key is appended; an existing key keeps its
// position.
func (o *Object) Set(key string, v Value) {
	if o.values == nil {
		o.values = make(map[string]Value)
	}
	if _, ok := o.values[key]; !ok {
		o.keys = append(o.keys, key)
	}
	o.values[key] = v
}

// Delete removes key and reports whether it was present.
func (o *Object) Delete(key string) bool {
	if o == nil {
		return false
	}
	if _, ok := o.values[key]; !ok {
		return false
	}
	delete(o.values, key)
	for i, k := range o.keys {
		if k == key {
			o.keys = append(o.keys[:i], o.keys[i+1:]...)
			break
		}
	}
	return true
}

// Rename moves the value under from to to, keeping its position. An existing
// to key is dropped first. It reports whether from was present.
func (o *Object) Rename(from, to string) bool {
	if o == nil || from == to {
		_, ok := o.Get(from)
		return ok
	}
	v, ok := o.values[from]
	if !ok {
		return false
	}
	o.Delete(to)
	delete(o.values, from)
	for i, k := range o.keys {
		if k == from {
			o.keys[i] = to
			break
		}
	}
	o.values[to] = v
	return true
}

// Range calls fn for each entry in order until fn returns false.
func (o *Object) Range(fn func(key string, v Value) bool) {
	if o == nil {
		return
	}
	for _, k := range o.keys {
		if !fn(k, o.values[k]) {
			return
		}
	}
}

// Clone returns a deep copy of o.
func (o *Object) Clone() *Object {
	if o == nil {
		return nil
	}
	out := &Object{
		keys:   make([]string, len(o.keys)),
		values: make(map[string]Value, len(o.values)),
	}
	copy(out.keys, o.keys)
	for k, v := range o.values {
		out.values[k] = Clone(v)
	}
	return out
}

// Merge copies every entry of src into o, overwriting existing keys.
func (o *Object) Merge(src *Object) {
	src.Range(func(k string, v Value) bool {
		o.Set(k, Clone(v))
		return true
	})
}

// Clone returns a deep copy of v.
func Clone(v Value) Value {
	switch t := v.(type) {
	case *Object:
		return t.Clone()
	case Array:
		out := make(Array, len(t))
		for i, e := range t {
			out[i] = Clone(e)
		}
		return out
	}
	return v
}
