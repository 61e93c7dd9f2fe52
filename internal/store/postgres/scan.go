package postgres

import (
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/alfredjeanlab/modelbase/internal/jsonvalue"
	"github.com/alfredjeanlab/modelbase/internal/model"
)

// scannable is the interface satisfied by both *sql.Row and *sql.Rows.
type scannable interface {
	Scan(dest ...any) error
}

// scanModel scans a single row into a model.ModelScheme.
// The row must contain columns in the order defined by modelColumns.
func scanModel(row scannable) (*model.ModelScheme, error) {
	var m model.ModelScheme
	var (
		name       string
		definition []byte
	)
	if err := row.Scan(&m.ID, &name, &definition, &m.CreatedAt, &m.UpdatedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(definition, &m.Definition); err != nil {
		return nil, fmt.Errorf("decode definition of model %q: %w", name, err)
	}
	m.Definition.ModelName = name
	return &m, nil
}

// scanModels scans multiple rows into a slice of model.ModelScheme pointers.
func scanModels(rows *sql.Rows) ([]*model.ModelScheme, error) {
	var models []*model.ModelScheme
	for rows.Next() {
		m, err := scanModel(rows)
		if err != nil {
			return nil, err
		}
		models = append(models, m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return models, nil
}

// scanDocument scans a single row into a model.Document.
// The row must contain columns in the order defined by documentColumns.
func scanDocument(row scannable) (*model.Document, error) {
	var d model.Document
	var data []byte
	if err := row.Scan(&d.Model, &d.ID, &data, &d.CreatedAt, &d.UpdatedAt); err != nil {
		return nil, err
	}
	return decodeDocument(&d, data)
}

// scanDocumentWithTotal scans a row with a leading total_count column.
func scanDocumentWithTotal(row scannable) (*model.Document, int, error) {
	var d model.Document
	var (
		total int
		data  []byte
	)
	if err := row.Scan(&total, &d.Model, &d.ID, &data, &d.CreatedAt, &d.UpdatedAt); err != nil {
		return nil, 0, err
	}
	doc, err := decodeDocument(&d, data)
	if err != nil {
		return nil, 0, err
	}
	return doc, total, nil
}

func decodeDocument(d *model.Document, data []byte) (*model.Document, error) {
	obj, err := jsonvalue.ParseObject(data)
	if err != nil {
		return nil, fmt.Errorf("decode document %q: %w", d.ID, err)
	}
	d.Data = obj
	return d, nil
}

// scanEvent scans a single row into a model.Event.
func scanEvent(row scannable) (*model.Event, error) {
	var e model.Event
	var (
		documentID sql.NullString
		actor      sql.NullString
		payload    []byte
	)
	err := row.Scan(&e.ID, &e.Topic, &e.Model, &documentID, &actor, &payload, &e.CreatedAt)
	if err != nil {
		return nil, err
	}
	e.DocumentID = documentID.String
	e.Actor = actor.String
	if len(payload) > 0 {
		e.Payload = json.RawMessage(payload)
	}
	return &e, nil
}

// scanEvents scans multiple rows into a slice of model.Event pointers.
func scanEvents(rows *sql.Rows) ([]*model.Event, error) {
	var events []*model.Event
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return events, nil
}

// nullString converts a string to sql.NullString; empty string is null.
func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

// jsonbBytes converts json.RawMessage to a []byte suitable for JSONB columns.
func jsonbBytes(m json.RawMessage) []byte {
	if len(m) == 0 {
		return nil
	}
	return []byte(m)
}
