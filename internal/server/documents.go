package server

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/alfredjeanlab/modelbase/internal/events"
	"github.com/alfredjeanlab/modelbase/internal/idgen"
	"github.com/alfredjeanlab/modelbase/internal/jsonvalue"
	"github.com/alfredjeanlab/modelbase/internal/model"
	"github.com/alfredjeanlab/modelbase/internal/query"
	"github.com/alfredjeanlab/modelbase/internal/store"
)

// Document listing limits.
const (
	DefaultListLimit = 50
	MaxListLimit     = 500
)

// ListOptions pages and filters a document listing. Filter is a jq
// expression; a document is kept when its first output is truthy.
type ListOptions struct {
	Limit  int
	Offset int
	Filter string
}

// DocumentPage is one page of a document listing. Total counts every
// document that passed the filter, not just this page.
type DocumentPage struct {
	Documents []*jsonvalue.Object `json:"documents"`
	Total     int                 `json:"total"`
	Limit     int                 `json:"limit"`
	Offset    int                 `json:"offset"`
}

func parseDocument(raw []byte) (*jsonvalue.Object, error) {
	doc, err := jsonvalue.ParseObject(raw)
	if err != nil {
		return nil, inputError("invalid document: " + err.Error())
	}
	return doc, nil
}

// checkDocument validates doc against m and returns an *invalidDocumentError
// when it does not match.
func (s *Server) checkDocument(m *model.ModelScheme, doc *jsonvalue.Object) error {
	result := s.validate(&m.Definition, doc)
	if !result.IsValid {
		slog.Debug("document rejected", "model", m.Name(), "log", result.Log)
		return &invalidDocumentError{Result: result}
	}
	return nil
}

// ValidateDocument checks raw against the model without storing it.
func (s *Server) ValidateDocument(ctx context.Context, ref string, raw []byte) (model.ValidationResult, error) {
	m, err := s.resolveModel(ctx, ref)
	if err != nil {
		return model.ValidationResult{}, err
	}
	doc, err := parseDocument(raw)
	if err != nil {
		return model.ValidationResult{}, err
	}
	return s.validate(&m.Definition, doc), nil
}

// CreateDocument validates raw against the model and stores it. A document
// without an "id" gets a generated one. It returns the stored document in
// public form.
func (s *Server) CreateDocument(ctx context.Context, ref string, raw []byte) (*jsonvalue.Object, error) {
	doc, err := parseDocument(raw)
	if err != nil {
		return nil, err
	}

	var stored *model.Document
	err = s.store.RunInTransaction(ctx, func(tx store.Store) error {
		m, err := findModel(ctx, tx, ref, tx.GetModel)
		if err != nil {
			return err
		}
		if err := s.checkDocument(m, doc); err != nil {
			return err
		}
		data, id, err := storageForm(doc)
		if err != nil {
			return err
		}
		d := &model.Document{ID: id, Model: m.Name(), Data: data}
		if err := tx.CreateDocument(ctx, d); err != nil {
			if errors.Is(err, store.ErrAlreadyExists) {
				return conflictError(fmt.Sprintf("document %q already exists in model %q", id, m.Name()))
			}
			return fmt.Errorf("create document %s: %w", id, err)
		}
		stored = d
		return nil
	})
	if err != nil {
		return nil, err
	}

	public := stored.Public()
	s.recordAndPublish(ctx, events.TopicDocumentCreated, stored.Model, stored.ID, events.DocumentCreated{
		Model:    stored.Model,
		Document: public,
	})
	return public, nil
}

// storageForm renames the public identifier of doc, generating one when the
// document has none.
func storageForm(doc *jsonvalue.Object) (*jsonvalue.Object, string, error) {
	_, ok, err := model.PublicID(doc)
	if err != nil {
		return nil, "", inputError(err.Error())
	}
	var id string
	if !ok {
		if id, err = idgen.Document(); err != nil {
			return nil, "", fmt.Errorf("generate document id: %w", err)
		}
	}
	data, id, err := model.ToStorage(doc, id)
	if err != nil {
		return nil, "", inputError(err.Error())
	}
	return data, id, nil
}

// GetDocument returns one document of a model in public form.
func (s *Server) GetDocument(ctx context.Context, ref, id string) (*jsonvalue.Object, error) {
	m, err := s.resolveModel(ctx, ref)
	if err != nil {
		return nil, err
	}
	if id == "" {
		return nil, inputError("document id is required")
	}
	d, err := s.store.GetDocument(ctx, m.Name(), id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, notFoundError(fmt.Sprintf("document %q not found in model %q", id, m.Name()))
	}
	if err != nil {
		return nil, fmt.Errorf("get document %s: %w", id, err)
	}
	return d.Public(), nil
}

// ListDocuments returns a page of the documents of a model in creation
// order. With a filter, every document of the model is scanned and the page
// is cut from the matches.
func (s *Server) ListDocuments(ctx context.Context, ref string, opts ListOptions) (*DocumentPage, error) {
	m, err := s.resolveModel(ctx, ref)
	if err != nil {
		return nil, err
	}
	if opts.Offset < 0 {
		return nil, inputError("offset must not be negative")
	}
	switch {
	case opts.Limit <= 0:
		opts.Limit = DefaultListLimit
	case opts.Limit > MaxListLimit:
		opts.Limit = MaxListLimit
	}

	page := &DocumentPage{Limit: opts.Limit, Offset: opts.Offset}

	if opts.Filter == "" {
		docs, total, err := s.store.ListDocuments(ctx, m.Name(), model.DocumentFilter{Limit: opts.Limit, Offset: opts.Offset})
		if err != nil {
			return nil, fmt.Errorf("list documents of %s: %w", m.Name(), err)
		}
		page.Total = total
		page.Documents = make([]*jsonvalue.Object, len(docs))
		for i, d := range docs {
			page.Documents[i] = d.Public()
		}
		return page, nil
	}

	filter, err := query.Compile(opts.Filter)
	if err != nil {
		return nil, inputError(err.Error())
	}
	docs, _, err := s.store.ListDocuments(ctx, m.Name(), model.DocumentFilter{})
	if err != nil {
		return nil, fmt.Errorf("list documents of %s: %w", m.Name(), err)
	}
	matched := make([]*jsonvalue.Object, 0, len(docs))
	for _, d := range docs {
		public := d.Public()
		ok, err := filter.Match(ctx, public)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			return nil, inputError(fmt.Sprintf("filter failed on document %q: %v", d.ID, err))
		}
		if ok {
			matched = append(matched, public)
		}
	}

	page.Total = len(matched)
	if opts.Offset >= len(matched) {
		page.Documents = []*jsonvalue.Object{}
		return page, nil
	}
	end := min(opts.Offset+opts.Limit, len(matched))
	page.Documents = matched[opts.Offset:end]
	return page, nil
}

// UpdateDocument validates raw on its own and merges its top-level keys into
// the stored document, creating the document when it does not exist. The id
// in the path wins over any "id" in raw. It reports whether the document was
// created.
func (s *Server) UpdateDocument(ctx context.Context, ref, id string, raw []byte) (*jsonvalue.Object, bool, error) {
	if id == "" {
		return nil, false, inputError("document id is required")
	}
	doc, err := parseDocument(raw)
	if err != nil {
		return nil, false, err
	}

	var (
		stored  *model.Document
		created bool
	)
	err = s.store.RunInTransaction(ctx, func(tx store.Store) error {
		m, err := findModel(ctx, tx, ref, tx.GetModel)
		if err != nil {
			return err
		}
		if err := s.checkDocument(m, doc); err != nil {
			return err
		}

		merged := doc.Clone()
		existing, err := tx.GetDocument(ctx, m.Name(), id)
		switch {
		case err == nil:
			merged = existing.Public()
			merged.Merge(doc)
		case !errors.Is(err, sql.ErrNoRows):
			return fmt.Errorf("get document %s: %w", id, err)
		}
		if _, ok := merged.Get(model.PublicIDKey); ok {
			merged.Set(model.PublicIDKey, jsonvalue.String(id))
		}
		data, _, err := model.ToStorage(merged, id)
		if err != nil {
			return inputError(err.Error())
		}

		d := &model.Document{ID: id, Model: m.Name(), Data: data}
		if created, err = tx.PutDocument(ctx, d); err != nil {
			return fmt.Errorf("put document %s: %w", id, err)
		}
		stored = d
		return nil
	})
	if err != nil {
		return nil, false, err
	}

	public := stored.Public()
	if created {
		s.recordAndPublish(ctx, events.TopicDocumentCreated, stored.Model, id, events.DocumentCreated{
			Model:    stored.Model,
			Document: public,
		})
	} else {
		s.recordAndPublish(ctx, events.TopicDocumentUpdated, stored.Model, id, events.DocumentUpdated{
			Model:    stored.Model,
			Document: public,
		})
	}
	return public, created, nil
}

// DeleteDocument removes one document of a model.
func (s *Server) DeleteDocument(ctx context.Context, ref, id string) error {
	if id == "" {
		return inputError("document id is required")
	}
	var modelName string
	err := s.store.RunInTransaction(ctx, func(tx store.Store) error {
		m, err := findModel(ctx, tx, ref, tx.GetModel)
		if err != nil {
			return err
		}
		modelName = m.Name()
		err = tx.DeleteDocument(ctx, modelName, id)
		if errors.Is(err, sql.ErrNoRows) {
			return notFoundError(fmt.Sprintf("document %q not found in model %q", id, modelName))
		}
		if err != nil {
			return fmt.Errorf("delete document %s: %w", id, err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.recordAndPublish(ctx, events.TopicDocumentDeleted, modelName, id, events.DocumentDeleted{
		Model:      modelName,
		DocumentID: id,
	})
	return nil
}
