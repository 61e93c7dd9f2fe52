package model

import (
	"testing"

	"github.com/alfredjeanlab/modelbase/internal/jsonvalue"
)

func mustObject(t *testing.T, s string) *jsonvalue.Object {
	t.Helper()
	obj, err := jsonvalue.ParseObject([]byte(s))
	if err != nil {
		t.Fatalf("ParseObject(%s): %v", s, err)
	}
	return obj
}

func encode(t *testing.T, obj *jsonvalue.Object) string {
	t.Helper()
	b, err := jsonvalue.Marshal(obj)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	return string(b)
}

func TestToStorage_RenamesPublicID(t *testing.T) {
	in := mustObject(t, `{"name":"x","id":"abc"}`)
	stored, id, err := ToStorage(in, "ignored")
	if err != nil {
		t.Fatalf("ToStorage: %v", err)
	}
	if id != "abc" {
		t.Errorf("id = %q, want abc", id)
	}
	if got := encode(t, stored); got != `{"name":"x","_id":"abc"}` {
		t.Errorf("stored = %s", got)
	}
	if got := encode(t, in); got != `{"name":"x","id":"abc"}` {
		t.Errorf("input was modified: %s", got)
	}
}

func TestToStorage_IntegerID(t *testing.T) {
	stored, id, err := ToStorage(mustObject(t, `{"id":42}`), "")
	if err != nil {
		t.Fatalf("ToStorage: %v", err)
	}
	if id != "42" {
		t.Errorf("id = %q, want 42", id)
	}
	if got := encode(t, FromStorage(stored)); got != `{"id":42}` {
		t.Errorf("public = %s", got)
	}
}

func TestToStorage_GeneratedID(t *testing.T) {
	stored, id, err := ToStorage(mustObject(t, `{"name":"x","_id":"sneaky"}`), "doc-1")
	if err != nil {
		t.Fatalf("ToStorage: %v", err)
	}
	if id != "doc-1" {
		t.Errorf("id = %q, want doc-1", id)
	}
	if got := encode(t, stored); got != `{"_id":"doc-1","name":"x"}` {
		t.Errorf("stored = %s", got)
	}
}

func TestToStorage_RejectsBadID(t *testing.T) {
	for _, doc := range []string{`{"id":true}`, `{"id":""}`, `{"id":{"a":1}}`, `{"id":1.5}`} {
		if _, _, err := ToStorage(mustObject(t, doc), "x"); err == nil {
			t.Errorf("ToStorage(%s) expected error", doc)
		}
	}
}

func TestToStorage_NoIDAvailable(t *testing.T) {
	if _, _, err := ToStorage(mustObject(t, `{"a":1}`), ""); err == nil {
		t.Error("expected error when no identifier is available")
	}
}

func TestDocument_Public(t *testing.T) {
	doc := &Document{ID: "abc", Model: "User", Data: mustObject(t, `{"_id":"abc","name":"x"}`)}
	if got := encode(t, doc.Public()); got != `{"id":"abc","name":"x"}` {
		t.Errorf("Public = %s", got)
	}
	if got := encode(t, doc.Data); got != `{"_id":"abc","name":"x"}` {
		t.Errorf("Data was modified: %s", got)
	}
}
