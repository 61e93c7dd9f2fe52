package schema

import (
	"fmt"

	"github.com/alfredjeanlab/modelbase/internal/jsonvalue"
	"github.com/alfredjeanlab/modelbase/internal/model"
)

// Validate checks doc against def and never fails. Each mismatch is logged
// and makes the result invalid. A missing field is only logged.
//
// Failures inside an object or array are logged first, followed by a line
// for the enclosing field, so the log reads from leaf to root.
func Validate(def *model.ModelDefinition, doc *jsonvalue.Object) model.ValidationResult {
	return run(def, doc, false)
}

// ValidateStrict is Validate with missing required fields treated as
// mismatches.
func ValidateStrict(def *model.ModelDefinition, doc *jsonvalue.Object) model.ValidationResult {
	return run(def, doc, true)
}

func run(def *model.ModelDefinition, doc *jsonvalue.Object, strict bool) model.ValidationResult {
	v := &validator{log: []string{}, strict: strict}
	valid := true
	if def != nil {
		valid = v.object(def.Fields, doc)
	}
	return model.ValidationResult{IsValid: valid, Log: v.log}
}

type validator struct {
	log    []string
	strict bool
}

func (v *validator) logf(format string, args ...any) {
	v.log = append(v.log, fmt.Sprintf(format, args...))
}

func (v *validator) object(fields []model.FieldDefinition, doc *jsonvalue.Object) bool {
	valid := true
	for i := range fields {
		f := &fields[i]
		val, ok := doc.Get(f.Name)
		if !ok {
			v.logf("Field '%s' is missing", f.Name)
			if v.strict && f.Required {
				valid = false
			}
			continue
		}
		if !v.field(f, val) {
			valid = false
		}
	}
	return valid
}

func (v *validator) field(f *model.FieldDefinition, val jsonvalue.Value) bool {
	switch f.Type {
	case model.FieldTypeObject:
		obj, ok := val.(*jsonvalue.Object)
		if !ok || !v.object(f.NestedFields, obj) {
			v.logf("Field '%s' is not a valid object", f.Name)
			return false
		}
		return true
	case model.FieldTypeArray:
		arr, ok := val.(jsonvalue.Array)
		if !ok || !v.array(f, arr) {
			v.logf("Field '%s' is not a valid array", f.Name)
			return false
		}
		return true
	}
	if ft, ok := typeOf(val); !ok || ft != f.Type {
		v.logf("Field '%s' is not a valid %s", f.Name, f.Type.Noun())
		return false
	}
	return true
}

// array stops at the first bad element. An ARRAY element type is rejected
// whatever the array holds, including nothing.
func (v *validator) array(f *model.FieldDefinition, arr jsonvalue.Array) bool {
	switch f.ElementType {
	case "":
		return false
	case model.FieldTypeArray:
		v.logf("Nested arrays are not supported for field '%s'", f.Name)
		return false
	}
	for _, elem := range arr {
		if !v.element(f, elem) {
			v.logf("Array element in field '%s' is not a valid %s", f.Name, f.ElementType.Noun())
			return false
		}
	}
	return true
}

func (v *validator) element(f *model.FieldDefinition, elem jsonvalue.Value) bool {
	if f.ElementType == model.FieldTypeObject {
		obj, ok := elem.(*jsonvalue.Object)
		return ok && v.object(f.NestedFields, obj)
	}
	ft, ok := typeOf(elem)
	return ok && ft == f.ElementType
}
