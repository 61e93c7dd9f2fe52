package sync

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/alfredjeanlab/modelbase/internal/jsonvalue"
	"github.com/alfredjeanlab/modelbase/internal/model"
	"github.com/alfredjeanlab/modelbase/internal/store"
)

// FormatVersion is written in the header of every export.
const FormatVersion = "1"

// Record types of an export.
const (
	recordHeader   = "header"
	recordModel    = "model"
	recordDocument = "document"
)

// header is the first JSONL record written by ExportJSONL.
type header struct {
	Version       string    `json:"version"`
	Type          string    `json:"type"`
	Timestamp     time.Time `json:"timestamp"`
	ModelCount    int       `json:"model_count"`
	DocumentCount int       `json:"document_count"`
}

// record wraps a single JSONL line with a type discriminator.
type record struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

// documentRecord is the exported form of a document. Document is in public
// form, so an import validates exactly what a client would have sent.
type documentRecord struct {
	Model     string            `json:"model"`
	ID        string            `json:"id"`
	Document  *jsonvalue.Object `json:"document"`
	CreatedAt time.Time         `json:"created_at"`
	UpdatedAt time.Time         `json:"updated_at"`
}

// ExportJSONL writes every model and its documents from the store as JSONL
// to w. Models are sorted by name and documents by model, then identifier.
func ExportJSONL(ctx context.Context, s store.Store, w io.Writer) error {
	schemes, err := s.ListModels(ctx)
	if err != nil {
		return fmt.Errorf("list models: %w", err)
	}
	sort.Slice(schemes, func(i, j int) bool {
		return schemes[i].Name() < schemes[j].Name()
	})

	var docs []*model.Document
	for _, m := range schemes {
		modelDocs, _, err := s.ListDocuments(ctx, m.Name(), model.DocumentFilter{})
		if err != nil {
			return fmt.Errorf("list documents of %s: %w", m.Name(), err)
		}
		sort.Slice(modelDocs, func(i, j int) bool {
			return modelDocs[i].ID < modelDocs[j].ID
		})
		docs = append(docs, modelDocs...)
	}

	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)

	if err := enc.Encode(header{
		Version:       FormatVersion,
		Type:          recordHeader,
		Timestamp:     time.Now().UTC(),
		ModelCount:    len(schemes),
		DocumentCount: len(docs),
	}); err != nil {
		return fmt.Errorf("encode header: %w", err)
	}

	for _, m := range schemes {
		if err := enc.Encode(record{Type: recordModel, Data: m}); err != nil {
			return fmt.Errorf("encode model %s: %w", m.Name(), err)
		}
	}

	for _, d := range docs {
		rec := documentRecord{
			Model:     d.Model,
			ID:        d.ID,
			Document:  d.Public(),
			CreatedAt: d.CreatedAt,
			UpdatedAt: d.UpdatedAt,
		}
		if err := enc.Encode(record{Type: recordDocument, Data: rec}); err != nil {
			return fmt.Errorf("encode document %s/%s: %w", d.Model, d.ID, err)
		}
	}

	return nil
}
