package jsonvalue

import (
	"encoding/json"
	"errors"
	"reflect"
	"testing"
)

func TestParse_PreservesKeyOrder(t *testing.T) {
	obj, err := ParseObject([]byte(`{"z": 1, "a": {"y": true, "b": "x"}, "m": [1, 2]}`))
	if err != nil {
		t.Fatalf("ParseObject: %v", err)
	}
	if got, want := obj.Keys(), []string{"z", "a", "m"}; !reflect.DeepEqual(got, want) {
		t.Errorf("keys = %v, want %v", got, want)
	}
	nested, _ := obj.Get("a")
	if got, want := nested.(*Object).Keys(), []string{"y", "b"}; !reflect.DeepEqual(got, want) {
		t.Errorf("nested keys = %v, want %v", got, want)
	}
}

func TestParse_Kinds(t *testing.T) {
	tests := []struct {
		input string
		want  Kind
	}{
		{`"hello"`, KindString},
		{`42`, KindInteger},
		{`-7`, KindInteger},
		{`4.5`, KindFloat},
		{`1e3`, KindFloat},
		{`1.0`, KindFloat},
		{`true`, KindBool},
		{`null`, KindNull},
		{`{}`, KindObject},
		{`[]`, KindArray},
		{`99999999999999999999`, KindFloat},
	}
	for _, tt := range tests {
		v, err := Parse([]byte(tt.input))
		if err != nil {
			t.Errorf("Parse(%s): %v", tt.input, err)
			continue
		}
		if v.Kind() != tt.want {
			t.Errorf("Parse(%s).Kind() = %s, want %s", tt.input, v.Kind(), tt.want)
		}
	}
}

func TestParse_StringEscapes(t *testing.T) {
	v, err := Parse([]byte(`{"k\"ey": "line\nbreak é"}`))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	got, ok := v.(*Object).Get(`k"ey`)
	if !ok {
		t.Fatalf("escaped key not found, keys = %v", v.(*Object).Keys())
	}
	if got != String("line\nbreak é") {
		t.Errorf("value = %q", got)
	}
}

func TestParse_Invalid(t *testing.T) {
	for _, input := range []string{``, `{`, `{"a":}`, `[1,]`, `nope`} {
		if _, err := Parse([]byte(input)); !errors.Is(err, ErrSyntax) {
			t.Errorf("Parse(%q) error = %v, want ErrSyntax", input, err)
		}
	}
}

func TestParseObject_NotObject(t *testing.T) {
	for _, input := range []string{`[1]`, `"s"`, `3`, `null`} {
		if _, err := ParseObject([]byte(input)); !errors.Is(err, ErrNotObject) {
			t.Errorf("ParseObject(%q) error = %v, want ErrNotObject", input, err)
		}
	}
}

func TestParse_EmptyAndNestedArrays(t *testing.T) {
	v, err := Parse([]byte(`[[], [1, [2]], {"a": []}]`))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	arr := v.(Array)
	if len(arr) != 3 {
		t.Fatalf("len = %d, want 3", len(arr))
	}
	if inner := arr[0].(Array); len(inner) != 0 {
		t.Errorf("arr[0] len = %d, want 0", len(inner))
	}
}

func TestMarshal_RoundTrip(t *testing.T) {
	input := `{"z":1,"a":{"y":true,"b":"x"},"m":[1,2.5,null,"s"],"e":{}}`
	v, err := Parse([]byte(input))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	out, err := Marshal(v)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	if string(out) != input {
		t.Errorf("Marshal = %s, want %s", out, input)
	}
}

func TestObject_SetKeepsPosition(t *testing.T) {
	obj := NewObject()
	obj.Set("a", Integer(1))
	obj.Set("b", Integer(2))
	obj.Set("a", Integer(3))
	if got, want := obj.Keys(), []string{"a", "b"}; !reflect.DeepEqual(got, want) {
		t.Errorf("keys = %v, want %v", got, want)
	}
	if v, _ := obj.Get("a"); v != Integer(3) {
		t.Errorf("a = %v, want 3", v)
	}
}

func TestObject_Rename(t *testing.T) {
	obj, _ := ParseObject([]byte(`{"name":"x","id":"abc","age":3}`))
	if !obj.Rename("id", "_id") {
		t.Fatal("Rename returned false")
	}
	out, _ := Marshal(obj)
	if string(out) != `{"name":"x","_id":"abc","age":3}` {
		t.Errorf("after rename = %s", out)
	}
	if obj.Rename("missing", "other") {
		t.Error("Rename of missing key returned true")
	}
}

func TestObject_RenameOverwritesTarget(t *testing.T) {
	obj, _ := ParseObject([]byte(`{"_id":"old","id":"new"}`))
	obj.Rename("id", "_id")
	out, _ := Marshal(obj)
	if string(out) != `{"_id":"new"}` {
		t.Errorf("after rename = %s", out)
	}
}

func TestObject_DeleteAndMerge(t *testing.T) {
	obj, _ := ParseObject([]byte(`{"a":1,"b":2,"c":3}`))
	if !obj.Delete("b") {
		t.Fatal("Delete returned false")
	}
	patch, _ := ParseObject([]byte(`{"c":30,"d":4}`))
	obj.Merge(patch)
	out, _ := Marshal(obj)
	if string(out) != `{"a":1,"c":30,"d":4}` {
		t.Errorf("merged = %s", out)
	}
}

func TestObject_CloneIsDeep(t *testing.T) {
	obj, _ := ParseObject([]byte(`{"n":{"x":1},"l":[1]}`))
	cp := obj.Clone()
	n, _ := cp.Get("n")
	n.(*Object).Set("x", Integer(2))
	orig, _ := obj.Get("n")
	if v, _ := orig.(*Object).Get("x"); v != Integer(1) {
		t.Errorf("original mutated: x = %v", v)
	}
}

func TestObject_JSONInterop(t *testing.T) {
	type wrapper struct {
		Data *Object `json:"data"`
	}
	var w wrapper
	if err := json.Unmarshal([]byte(`{"data":{"b":1,"a":2}}`), &w); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	out, err := json.Marshal(w)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	if string(out) != `{"data":{"b":1,"a":2}}` {
		t.Errorf("Marshal = %s", out)
	}
}

func TestToAnyFromAny(t *testing.T) {
	obj, _ := ParseObject([]byte(`{"i":3,"f":1.5,"s":"x","b":false,"n":null,"l":[1]}`))
	generic := ToAny(obj).(map[string]any)
	if generic["i"] != 3 {
		t.Errorf("i = %#v, want int 3", generic["i"])
	}
	if generic["f"] != 1.5 {
		t.Errorf("f = %#v, want 1.5", generic["f"])
	}
	back, err := FromAny(generic)
	if err != nil {
		t.Fatalf("FromAny: %v", err)
	}
	out, _ := Marshal(back)
	if string(out) != `{"b":false,"f":1.5,"i":3,"l":[1],"n":null,"s":"x"}` {
		t.Errorf("FromAny = %s", out)
	}
}
