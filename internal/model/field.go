package model

import (
	"encoding/json"
	"fmt"
	"strings"
)

// FieldType is the closed set of types a field can declare.
type FieldType string

const (
	FieldTypeString  FieldType = "STRING"
	FieldTypeInteger FieldType = "INTEGER"
	FieldTypeBoolean FieldType = "BOOLEAN"
	FieldTypeObject  FieldType = "OBJECT"
	FieldTypeArray   FieldType = "ARRAY"
)

var validFieldTypes = map[FieldType]bool{
	FieldTypeString:  true,
	FieldTypeInteger: true,
	FieldTypeBoolean: true,
	FieldTypeObject:  true,
	FieldTypeArray:   true,
}

// IsValid reports whether t is one of the known field types.
func (t FieldType) IsValid() bool {
	return validFieldTypes[t]
}

// Noun returns the lower-case name used in diagnostics ("string", "object").
func (t FieldType) Noun() string {
	return strings.ToLower(string(t))
}

func (t *FieldType) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("field type must be a string: %w", err)
	}
	ft := FieldType(s)
	if !ft.IsValid() {
		return fmt.Errorf("unknown field type %q", s)
	}
	*t = ft
	return nil
}

// FieldDefinition describes one named slot of a model. NestedFields is set
// only for OBJECT fields and ElementType only for ARRAY fields.
type FieldDefinition struct {
	Name         string
	Type         FieldType
	Required     bool
	NestedFields []FieldDefinition
	ElementType  FieldType
}

type fieldDefinitionJSON struct {
	Name         string             `json:"name"`
	Type         FieldType          `json:"type"`
	Required     *bool              `json:"required,omitempty"`
	NestedFields *[]FieldDefinition `json:"nestedFields,omitempty"`
	ElementType  *FieldType         `json:"elementType,omitempty"`
}

// MarshalJSON always writes nestedFields for OBJECT fields (as [] when empty)
// and elementType for ARRAY fields, and never writes either elsewhere.
func (f FieldDefinition) MarshalJSON() ([]byte, error) {
	required := f.Required
	out := fieldDefinitionJSON{
		Name:     f.Name,
		Type:     f.Type,
		Required: &required,
	}
	switch f.Type {
	case FieldTypeObject:
		nested := f.NestedFields
		if nested == nil {
			nested = []FieldDefinition{}
		}
		out.NestedFields = &nested
	case FieldTypeArray:
		if f.ElementType != "" {
			et := f.ElementType
			out.ElementType = &et
		}
	}
	return json.Marshal(out)
}

// UnmarshalJSON treats an absent "required" as true.
func (f *FieldDefinition) UnmarshalJSON(data []byte) error {
	var in fieldDefinitionJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	*f = FieldDefinition{
		Name:     in.Name,
		Type:     in.Type,
		Required: in.Required == nil || *in.Required,
	}
	if in.NestedFields != nil {
		f.NestedFields = *in.NestedFields
		if f.NestedFields == nil {
			f.NestedFields = []FieldDefinition{}
		}
	}
	if in.ElementType != nil {
		f.ElementType = *in.ElementType
	}
	return nil
}

// ModelDefinition is the schema of a model: its name and its fields in
// source-document order.
type ModelDefinition struct {
	ModelName string            `json:"modelName"`
	Fields    []FieldDefinition `json:"fields"`
}

func (d ModelDefinition) MarshalJSON() ([]byte, error) {
	type plain ModelDefinition
	p := plain(d)
	if p.Fields == nil {
		p.Fields = []FieldDefinition{}
	}
	return json.Marshal(p)
}

// Check verifies the structural invariants of a definition that did not come
// from inference. It returns a *ValidationError listing every violation.
func (d *ModelDefinition) Check() error {
	var ve ValidationError
	if err := ValidateModelName(d.ModelName); err != nil {
		ve.Errors = append(ve.Errors, FieldError{Field: "modelName", Message: err.Error()})
	}
	checkFields(&ve, "fields", d.Fields)
	if ve.HasErrors() {
		return &ve
	}
	return nil
}

func checkFields(ve *ValidationError, path string, fields []FieldDefinition) {
	seen := make(map[string]bool, len(fields))
	for i, f := range fields {
		p := fmt.Sprintf("%s[%d]", path, i)
		add := func(msg string) {
			ve.Errors = append(ve.Errors, FieldError{Field: p, Message: msg})
		}

		// "" is a legal JSON key, so it is a legal field name.
		if seen[f.Name] {
			add(fmt.Sprintf("duplicate field name %q", f.Name))
		}
		seen[f.Name] = true

		if !f.Type.IsValid() {
			add(fmt.Sprintf("invalid type %q", f.Type))
			continue
		}

		switch f.Type {
		case FieldTypeObject:
			if f.NestedFields == nil {
				add("nestedFields is required for OBJECT fields")
			}
			if f.ElementType != "" {
				add("elementType is only allowed on ARRAY fields")
			}
			checkFields(ve, p+".nestedFields", f.NestedFields)
		case FieldTypeArray:
			if f.ElementType == "" {
				add("elementType is required for ARRAY fields")
			} else if !f.ElementType.IsValid() {
				add(fmt.Sprintf("invalid elementType %q", f.ElementType))
			}
			if f.NestedFields != nil {
				add("nestedFields is only allowed on OBJECT fields")
			}
		default:
			if f.NestedFields != nil {
				add("nestedFields is only allowed on OBJECT fields")
			}
			if f.ElementType != "" {
				add("elementType is only allowed on ARRAY fields")
			}
		}
	}
}
