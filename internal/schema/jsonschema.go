package schema

import (
	"github.com/invopop/jsonschema"

	"github.com/alfredjeanlab/modelbase/internal/model"
)

// JSONSchema exports def as a Draft 2020-12 JSON Schema. Required fields are
// listed as required, which is stricter than Validate: the schema describes
// a complete document. Extra properties are always allowed.
func JSONSchema(def *model.ModelDefinition) *jsonschema.Schema {
	s := objectSchema(def.Fields)
	s.Version = jsonschema.Version
	s.Title = def.ModelName
	return s
}

func objectSchema(fields []model.FieldDefinition) *jsonschema.Schema {
	s := &jsonschema.Schema{
		Type:                 "object",
		Properties:           jsonschema.NewProperties(),
		AdditionalProperties: jsonschema.TrueSchema,
	}
	for i := range fields {
		f := &fields[i]
		s.Properties.Set(f.Name, fieldSchema(f.Type, f))
		if f.Required {
			s.Required = append(s.Required, f.Name)
		}
	}
	return s
}

func fieldSchema(ft model.FieldType, f *model.FieldDefinition) *jsonschema.Schema {
	switch ft {
	case model.FieldTypeString:
		return &jsonschema.Schema{Type: "string"}
	case model.FieldTypeInteger:
		return &jsonschema.Schema{Type: "integer"}
	case model.FieldTypeBoolean:
		return &jsonschema.Schema{Type: "boolean"}
	case model.FieldTypeObject:
		return objectSchema(f.NestedFields)
	case model.FieldTypeArray:
		// Nested arrays never validate, whatever they contain.
		if f.ElementType == model.FieldTypeArray {
			return jsonschema.FalseSchema
		}
		return &jsonschema.Schema{Type: "array", Items: fieldSchema(f.ElementType, f)}
	}
	return &jsonschema.Schema{}
}
