package server

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/invopop/jsonschema"

	"github.com/alfredjeanlab/modelbase/internal/cache"
	"github.com/alfredjeanlab/modelbase/internal/events"
	"github.com/alfredjeanlab/modelbase/internal/jsonvalue"
	"github.com/alfredjeanlab/modelbase/internal/model"
	"github.com/alfredjeanlab/modelbase/internal/schema"
	"github.com/alfredjeanlab/modelbase/internal/store"
)

// resolveModel looks up a model by UUID or by name. Name lookups go through
// the model cache.
func (s *Server) resolveModel(ctx context.Context, ref string) (*model.ModelScheme, error) {
	return findModel(ctx, s.store, ref, func(ctx context.Context, name string) (*model.ModelScheme, error) {
		return s.cache.Get(ctx, name, s.store.GetModel)
	})
}

// findModel looks up a model by UUID or by name in st. A ref that parses as
// a UUID but matches no model ID is tried as a name.
func findModel(ctx context.Context, st store.Store, ref string, byName cache.LoadFunc) (*model.ModelScheme, error) {
	if ref == "" {
		return nil, inputError("model name or id is required")
	}
	if id, err := uuid.Parse(ref); err == nil {
		m, err := st.GetModelByID(ctx, id)
		if err == nil {
			return m, nil
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("get model %s: %w", ref, err)
		}
	}
	m, err := byName(ctx, ref)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, notFoundError(fmt.Sprintf("model %q not found", ref))
	}
	if err != nil {
		return nil, fmt.Errorf("get model %s: %w", ref, err)
	}
	return m, nil
}

func infer(name string, sample []byte) (*model.ModelDefinition, error) {
	if err := model.ValidateModelName(name); err != nil {
		return nil, inputError(err.Error())
	}
	def, err := schema.Infer(name, sample)
	if err != nil {
		return nil, inputError("invalid sample: " + err.Error())
	}
	return def, nil
}

// InferModel infers a definition from sample without storing anything.
func (s *Server) InferModel(_ context.Context, name string, sample []byte) (*model.ModelDefinition, error) {
	return infer(name, sample)
}

// CreateModel infers a definition from sample and registers it as a new
// model.
func (s *Server) CreateModel(ctx context.Context, name string, sample []byte) (*model.ModelScheme, error) {
	def, err := infer(name, sample)
	if err != nil {
		return nil, err
	}
	scheme := model.NewModelScheme(*def)

	err = s.store.RunInTransaction(ctx, func(tx store.Store) error {
		exists, err := tx.ModelExists(ctx, name)
		if err != nil {
			return fmt.Errorf("check model %s: %w", name, err)
		}
		if exists {
			return conflictError(fmt.Sprintf("model %q already exists", name))
		}
		if err := tx.CreateModel(ctx, scheme); err != nil {
			if errors.Is(err, store.ErrAlreadyExists) {
				return conflictError(fmt.Sprintf("model %q already exists", name))
			}
			return fmt.Errorf("create model %s: %w", name, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.cache.Put(scheme)
	s.recordAndPublish(ctx, events.TopicModelCreated, name, "", events.ModelCreated{Model: scheme})
	return scheme, nil
}

// GetModel returns the model identified by ref, a UUID or a model name.
func (s *Server) GetModel(ctx context.Context, ref string) (*model.ModelScheme, error) {
	return s.resolveModel(ctx, ref)
}

// ListModels returns every model, sorted by name.
func (s *Server) ListModels(ctx context.Context) ([]*model.ModelScheme, error) {
	schemes, err := s.store.ListModels(ctx)
	if err != nil {
		return nil, fmt.Errorf("list models: %w", err)
	}
	return schemes, nil
}

// ReplaceModel re-infers the definition of an existing model from a new
// sample. The old field list is discarded, not merged. Stored documents are
// left as they are.
func (s *Server) ReplaceModel(ctx context.Context, ref string, sample []byte) (*model.ModelScheme, error) {
	var updated *model.ModelScheme
	err := s.store.RunInTransaction(ctx, func(tx store.Store) error {
		existing, err := findModel(ctx, tx, ref, tx.GetModel)
		if err != nil {
			return err
		}
		def, err := infer(existing.Name(), sample)
		if err != nil {
			return err
		}
		next := *existing
		next.Definition = *def
		if err := tx.UpdateModel(ctx, &next); err != nil {
			return fmt.Errorf("update model %s: %w", existing.Name(), err)
		}
		updated = &next
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.cache.Put(updated)
	s.recordAndPublish(ctx, events.TopicModelUpdated, updated.Name(), "", events.ModelUpdated{Model: updated})
	return updated, nil
}

// ImportModel stores a definition written by hand or exported elsewhere. The
// model named by the definition is created, or replaced when it exists.
func (s *Server) ImportModel(ctx context.Context, raw []byte) (*model.ModelScheme, bool, error) {
	def, err := schema.ParseDefinition(raw)
	if err != nil {
		var (
			de *schema.DefinitionError
			ve *model.ValidationError
		)
		switch {
		case errors.Is(err, schema.ErrMalformedInput):
			return nil, false, inputError(err.Error())
		case errors.As(err, &de), errors.As(err, &ve):
			return nil, false, inputError("invalid definition: " + err.Error())
		}
		return nil, false, fmt.Errorf("parse definition: %w", err)
	}
	name := def.ModelName

	var (
		scheme  *model.ModelScheme
		created bool
	)
	err = s.store.RunInTransaction(ctx, func(tx store.Store) error {
		existing, err := tx.GetModel(ctx, name)
		if errors.Is(err, sql.ErrNoRows) {
			scheme = model.NewModelScheme(*def)
			created = true
			if err := tx.CreateModel(ctx, scheme); err != nil {
				return fmt.Errorf("create model %s: %w", name, err)
			}
			return nil
		}
		if err != nil {
			return fmt.Errorf("get model %s: %w", name, err)
		}
		next := *existing
		next.Definition = *def
		if err := tx.UpdateModel(ctx, &next); err != nil {
			return fmt.Errorf("update model %s: %w", name, err)
		}
		scheme = &next
		return nil
	})
	if err != nil {
		return nil, false, err
	}

	s.cache.Put(scheme)
	if created {
		s.recordAndPublish(ctx, events.TopicModelCreated, name, "", events.ModelCreated{Model: scheme})
	} else {
		s.recordAndPublish(ctx, events.TopicModelUpdated, name, "", events.ModelUpdated{Model: scheme})
	}
	return scheme, created, nil
}

// DeleteModel removes a model together with all of its documents.
func (s *Server) DeleteModel(ctx context.Context, ref string) error {
	var deleted *model.ModelScheme
	err := s.store.RunInTransaction(ctx, func(tx store.Store) error {
		existing, err := findModel(ctx, tx, ref, tx.GetModel)
		if err != nil {
			return err
		}
		if err := tx.DeleteModel(ctx, existing.Name()); err != nil {
			return fmt.Errorf("delete model %s: %w", existing.Name(), err)
		}
		deleted = existing
		return nil
	})
	if err != nil {
		return err
	}

	s.cache.Invalidate(deleted.Name())
	s.recordAndPublish(ctx, events.TopicModelDeleted, deleted.Name(), "", events.ModelDeleted{
		ModelID:   deleted.ID.String(),
		ModelName: deleted.Name(),
	})
	return nil
}

// SampleDocument returns a random document that matches the model.
func (s *Server) SampleDocument(ctx context.Context, ref string) (*jsonvalue.Object, error) {
	m, err := s.resolveModel(ctx, ref)
	if err != nil {
		return nil, err
	}
	return schema.Sample(&m.Definition, nil), nil
}

// ExportJSONSchema renders the model as a JSON Schema document.
func (s *Server) ExportJSONSchema(ctx context.Context, ref string) (*jsonschema.Schema, error) {
	m, err := s.resolveModel(ctx, ref)
	if err != nil {
		return nil, err
	}
	return schema.JSONSchema(&m.Definition), nil
}

// ModelEvents returns the recorded events of a model, oldest first.
func (s *Server) ModelEvents(ctx context.Context, ref string) ([]*model.Event, error) {
	m, err := s.resolveModel(ctx, ref)
	if err != nil {
		return nil, err
	}
	evts, err := s.store.GetEvents(ctx, m.Name())
	if err != nil {
		return nil, fmt.Errorf("get events of %s: %w", m.Name(), err)
	}
	return evts, nil
}
