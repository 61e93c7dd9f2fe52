package schema

import (
	"errors"
	"fmt"

	"github.com/alfredjeanlab/modelbase/internal/jsonvalue"
	"github.com/alfredjeanlab/modelbase/internal/model"
)

var (
	// ErrMalformedInput means the sample is not JSON or not a JSON object.
	ErrMalformedInput = errors.New("malformed input")
	// ErrUnsupportedPrimitive means a value is null or a non-integer number.
	ErrUnsupportedPrimitive = errors.New("unsupported primitive type")
	// ErrEmptyArray means an array has no element to infer a type from.
	ErrEmptyArray = errors.New("array cannot be empty")
)

// typeOf returns the field type a value belongs to. Null and Float have none.
func typeOf(v jsonvalue.Value) (model.FieldType, bool) {
	switch v.(type) {
	case jsonvalue.String:
		return model.FieldTypeString, true
	case jsonvalue.Bool:
		return model.FieldTypeBoolean, true
	case jsonvalue.Integer:
		return model.FieldTypeInteger, true
	case *jsonvalue.Object:
		return model.FieldTypeObject, true
	case jsonvalue.Array:
		return model.FieldTypeArray, true
	}
	return "", false
}

func determineType(path string, v jsonvalue.Value) (model.FieldType, error) {
	ft, ok := typeOf(v)
	if !ok {
		kind := "unknown"
		if v != nil {
			kind = v.Kind().String()
		}
		return "", fmt.Errorf("field %q: %w (%s)", path, ErrUnsupportedPrimitive, kind)
	}
	return ft, nil
}

// determineArrayElementType types an array by its first element only.
func determineArrayElementType(path string, arr jsonvalue.Array) (model.FieldType, error) {
	if len(arr) == 0 {
		return "", fmt.Errorf("field %q: %w", path, ErrEmptyArray)
	}
	return determineType(path+"[0]", arr[0])
}

func joinPath(prefix, key string) string {
	if prefix == "" {
		return key
	}
	return prefix + "." + key
}
