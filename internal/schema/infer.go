// Package schema infers model definitions from sample documents and checks
// documents against them. Everything here is pure and safe for concurrent use.
package schema

import (
	"fmt"

	"github.com/alfredjeanlab/modelbase/internal/jsonvalue"
	"github.com/alfredjeanlab/modelbase/internal/model"
)

// Infer builds a definition named modelName from a sample JSON object. Field
// order follows the sample's key order. It fails with ErrMalformedInput,
// ErrUnsupportedPrimitive or ErrEmptyArray and never returns a partial result.
func Infer(modelName string, sample []byte) (*model.ModelDefinition, error) {
	obj, err := jsonvalue.ParseObject(sample)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedInput, err)
	}
	return InferObject(modelName, obj)
}

// InferObject is Infer for an already parsed sample.
func InferObject(modelName string, sample *jsonvalue.Object) (*model.ModelDefinition, error) {
	if sample == nil {
		return nil, fmt.Errorf("%w: sample is nil", ErrMalformedInput)
	}
	fields, err := inferFields("", sample)
	if err != nil {
		return nil, err
	}
	return &model.ModelDefinition{ModelName: modelName, Fields: fields}, nil
}

func inferFields(prefix string, obj *jsonvalue.Object) ([]model.FieldDefinition, error) {
	fields := make([]model.FieldDefinition, 0, obj.Len())
	var err error
	obj.Range(func(key string, v jsonvalue.Value) bool {
		var f model.FieldDefinition
		f, err = inferField(joinPath(prefix, key), key, v)
		if err != nil {
			return false
		}
		fields = append(fields, f)
		return true
	})
	if err != nil {
		return nil, err
	}
	return fields, nil
}

func inferField(path, name string, v jsonvalue.Value) (model.FieldDefinition, error) {
	ft, err := determineType(path, v)
	if err != nil {
		return model.FieldDefinition{}, err
	}
	f := model.FieldDefinition{Name: name, Type: ft, Required: true}
	switch t := v.(type) {
	case *jsonvalue.Object:
		f.NestedFields, err = inferFields(path, t)
	case jsonvalue.Array:
		f.ElementType, err = determineArrayElementType(path, t)
	}
	if err != nil {
		return model.FieldDefinition{}, err
	}
	return f, nil
}
