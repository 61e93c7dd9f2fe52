package model

import (
	"fmt"
	"strconv"
	"time"

	"github.com/alfredjeanlab/modelbase/internal/jsonvalue"
)

const (
	// PublicIDKey is the identifier key clients read and write.
	PublicIDKey = "id"
	// StorageIDKey is the identifier key inside stored document data.
	StorageIDKey = "_id"
)

// Document is a stored document of a model. Data is in storage form: the
// identifier lives under StorageIDKey.
type Document struct {
	ID        string            `json:"id"`
	Model     string            `json:"model"`
	Data      *jsonvalue.Object `json:"data"`
	CreatedAt time.Time         `json:"createdAt"`
	UpdatedAt time.Time         `json:"updatedAt"`
}

// Public returns the client-facing form of the document data.
func (d *Document) Public() *jsonvalue.Object {
	return FromStorage(d.Data)
}

// PublicID extracts the public identifier of doc, if any. Only string and
// integer identifiers are accepted.
func PublicID(doc *jsonvalue.Object) (string, bool, error) {
	v, ok := doc.Get(PublicIDKey)
	if !ok {
		return "", false, nil
	}
	id, err := idString(v)
	if err != nil {
		return "", true, err
	}
	return id, true, nil
}

func idString(v jsonvalue.Value) (string, error) {
	switch t := v.(type) {
	case jsonvalue.String:
		if t == "" {
			return "", fmt.Errorf("%q must not be empty", PublicIDKey)
		}
		return string(t), nil
	case jsonvalue.Integer:
		return strconv.FormatInt(int64(t), 10), nil
	}
	return "", fmt.Errorf("%q must be a string or an integer, got %s", PublicIDKey, v.Kind())
}

// ToStorage converts a public document into storage form. When the document
// carries no identifier, id is used and placed first. The input is not
// modified. It returns the storage identifier.
func ToStorage(public *jsonvalue.Object, id string) (*jsonvalue.Object, string, error) {
	existing, ok, err := PublicID(public)
	if err != nil {
		return nil, "", err
	}
	if ok {
		stored := public.Clone()
		stored.Rename(PublicIDKey, StorageIDKey)
		return stored, existing, nil
	}
	if id == "" {
		return nil, "", fmt.Errorf("document has no %q and no identifier was supplied", PublicIDKey)
	}
	stored := jsonvalue.NewObject()
	stored.Set(StorageIDKey, jsonvalue.String(id))
	public.Range(func(k string, v jsonvalue.Value) bool {
		if k != StorageIDKey {
			stored.Set(k, jsonvalue.Clone(v))
		}
		return true
	})
	return stored, id, nil
}

// FromStorage converts stored document data back into public form. The input
// is not modified.
func FromStorage(stored *jsonvalue.Object) *jsonvalue.Object {
	if stored == nil {
		return jsonvalue.NewObject()
	}
	public := stored.Clone()
	public.Rename(StorageIDKey, PublicIDKey)
	return public
}
