package jsonvalue

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/buger/jsonparser"
)

var (
	// ErrSyntax is returned for input that is not valid JSON.
	ErrSyntax = errors.New("invalid JSON")
	// ErrNotObject is returned by ParseObject when the top-level value is
	// valid JSON but not an object.
	ErrNotObject = errors.New("JSON value is not an object")
)

// Parse decodes a single JSON value, keeping object key order.
func Parse(data []byte) (Value, error) {
	if !json.Valid(data) {
		return nil, ErrSyntax
	}
	raw, typ, _, err := jsonparser.Get(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSyntax, err)
	}
	return parseValue(raw, typ)
}

// ParseObject decodes data and requires the top-level value to be an object.
func ParseObject(data []byte) (*Object, error) {
	v, err := Parse(data)
	if err != nil {
		return nil, err
	}
	obj, ok := v.(*Object)
	if !ok {
		return nil, fmt.Errorf("%w (got %s)", ErrNotObject, v.Kind())
	}
	return obj, nil
}

func parseValue(raw []byte, typ jsonparser.ValueType) (Value, error) {
	switch typ {
	case jsonparser.String:
		s, err := jsonparser.ParseString(raw)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrSyntax, err)
		}
		return String(s), nil
	case jsonparser.Number:
		if n, err := jsonparser.ParseInt(raw); err == nil {
			return Integer(n), nil
		}
		return Float(string(raw)), nil
	case jsonparser.Boolean:
		b, err := jsonparser.ParseBoolean(raw)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrSyntax, err)
		}
		return Bool(b), nil
	case jsonparser.Null:
		return Null{}, nil
	case jsonparser.Object:
		return parseObject(raw)
	case jsonparser.Array:
		return parseArray(raw)
	}
	return nil, fmt.Errorf("%w: unexpected value type %s", ErrSyntax, typ)
}

func parseObject(raw []byte) (*Object, error) {
	obj := NewObject()
	err := jsonparser.ObjectEach(raw, func(key, value []byte, typ jsonparser.ValueType, _ int) error {
		v, err := parseValue(value, typ)
		if err != nil {
			return err
		}
		obj.Set(string(key), v)
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrSyntax) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", ErrSyntax, err)
	}
	return obj, nil
}

func parseArray(raw []byte) (Array, error) {
	arr := Array{}
	var elemErr error
	_, err := jsonparser.ArrayEach(raw, func(value []byte, typ jsonparser.ValueType, _ int, err error) {
		if elemErr != nil {
			return
		}
		if err != nil {
			elemErr = fmt.Errorf("%w: %v", ErrSyntax, err)
			return
		}
		v, err := parseValue(value, typ)
		if err != nil {
			elemErr = err
			return
		}
		arr = append(arr, v)
	})
	if elemErr != nil {
		return nil, elemErr
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSyntax, err)
	}
	return arr, nil
}
