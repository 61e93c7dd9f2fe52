package schema

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/alfredjeanlab/modelbase/internal/model"
)

func mustInfer(t *testing.T, sample string) *model.ModelDefinition {
	t.Helper()
	def, err := Infer("Test", []byte(sample))
	if err != nil {
		t.Fatalf("Infer(%s): %v", sample, err)
	}
	return def
}

func TestInfer_ScalarTypesInOrder(t *testing.T) {
	def := mustInfer(t, `{"name": "Ann", "age": 30, "active": true}`)
	if def.ModelName != "Test" {
		t.Errorf("ModelName = %q, want Test", def.ModelName)
	}
	want := []struct {
		name string
		typ  model.FieldType
	}{
		{"name", model.FieldTypeString},
		{"age", model.FieldTypeInteger},
		{"active", model.FieldTypeBoolean},
	}
	if len(def.Fields) != len(want) {
		t.Fatalf("got %d fields, want %d", len(def.Fields), len(want))
	}
	for i, w := range want {
		f := def.Fields[i]
		if f.Name != w.name || f.Type != w.typ {
			t.Errorf("field %d = %s %s, want %s %s", i, f.Name, f.Type, w.name, w.typ)
		}
		if !f.Required {
			t.Errorf("field %s not required", f.Name)
		}
		if f.NestedFields != nil || f.ElementType != "" {
			t.Errorf("scalar field %s carries nested/element data", f.Name)
		}
	}
}

func TestInfer_NestedObject(t *testing.T) {
	def := mustInfer(t, `{"addr": {"city": "NYC", "geo": {"zip": 10001}}, "empty": {}}`)
	addr := def.Fields[0]
	if addr.Type != model.FieldTypeObject {
		t.Fatalf("addr type = %s", addr.Type)
	}
	if len(addr.NestedFields) != 2 || addr.NestedFields[0].Name != "city" || addr.NestedFields[1].Name != "geo" {
		t.Fatalf("addr nested = %+v", addr.NestedFields)
	}
	geo := addr.NestedFields[1]
	if geo.Type != model.FieldTypeObject || geo.NestedFields[0].Type != model.FieldTypeInteger {
		t.Errorf("geo = %+v", geo)
	}
	empty := def.Fields[1]
	if empty.NestedFields == nil || len(empty.NestedFields) != 0 {
		t.Errorf("empty object nestedFields = %#v, want empty non-nil", empty.NestedFields)
	}
}

func TestInfer_ArrayElementTypeFromFirstElement(t *testing.T) {
	for _, tc := range []struct {
		sample string
		want   model.FieldType
	}{
		{`{"l": ["a", 1, true]}`, model.FieldTypeString},
		{`{"l": [1, "a"]}`, model.FieldTypeInteger},
		{`{"l": [false]}`, model.FieldTypeBoolean},
		{`{"l": [{"x": 1.5}]}`, model.FieldTypeObject},
		{`{"l": [[1], [2]]}`, model.FieldTypeArray},
		{`{"l": [[]]}`, model.FieldTypeArray},
	} {
		def := mustInfer(t, tc.sample)
		f := def.Fields[0]
		if f.Type != model.FieldTypeArray {
			t.Errorf("%s: type = %s, want ARRAY", tc.sample, f.Type)
			continue
		}
		if f.ElementType != tc.want {
			t.Errorf("%s: elementType = %s, want %s", tc.sample, f.ElementType, tc.want)
		}
		if f.NestedFields != nil {
			t.Errorf("%s: array field has nestedFields", tc.sample)
		}
	}
}

func TestInfer_Errors(t *testing.T) {
	for _, tc := range []struct {
		sample string
		want   error
		path   string
	}{
		{`not json`, ErrMalformedInput, ""},
		{`[1, 2]`, ErrMalformedInput, ""},
		{`"str"`, ErrMalformedInput, ""},
		{`{"a": null}`, ErrUnsupportedPrimitive, `"a"`},
		{`{"a": 1.5}`, ErrUnsupportedPrimitive, `"a"`},
		{`{"o": {"deep": 2.0}}`, ErrUnsupportedPrimitive, `"o.deep"`},
		{`{"l": [null]}`, ErrUnsupportedPrimitive, `"l[0]"`},
		{`{"l": []}`, ErrEmptyArray, `"l"`},
		{`{"o": {"l": []}}`, ErrEmptyArray, `"o.l"`},
	} {
		def, err := Infer("Test", []byte(tc.sample))
		if !errors.Is(err, tc.want) {
			t.Errorf("Infer(%s) error = %v, want %v", tc.sample, err, tc.want)
			continue
		}
		if def != nil {
			t.Errorf("Infer(%s) returned a partial definition", tc.sample)
		}
		if tc.path != "" && !strings.Contains(err.Error(), tc.path) {
			t.Errorf("Infer(%s) error %q does not name %s", tc.sample, err, tc.path)
		}
	}
}

func TestInfer_EmptyObject(t *testing.T) {
	def := mustInfer(t, `{}`)
	if len(def.Fields) != 0 {
		t.Errorf("got %d fields, want 0", len(def.Fields))
	}
	data, _ := json.Marshal(def)
	if string(data) != `{"modelName":"Test","fields":[]}` {
		t.Errorf("Marshal = %s", data)
	}
}

func TestInfer_DefinitionPassesCheck(t *testing.T) {
	def := mustInfer(t, `{"a": "x", "o": {"b": [1]}, "l": [{"c": true}], "m": [[1]]}`)
	if err := def.Check(); err != nil {
		t.Errorf("inferred definition fails Check: %v", err)
	}
}

func TestInfer_IsDeterministic(t *testing.T) {
	sample := `{"z": 1, "y": {"b": "s", "a": [true]}, "x": "q"}`
	first, _ := json.Marshal(mustInfer(t, sample))
	for i := 0; i < 10; i++ {
		again, _ := json.Marshal(mustInfer(t, sample))
		if string(again) != string(first) {
			t.Fatalf("run %d differs:\n%s\n%s", i, again, first)
		}
	}
}
