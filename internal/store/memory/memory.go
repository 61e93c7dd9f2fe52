// Package memory implements store.Store in process memory. It backs tests and
// the MODELBASE_STORE=memory mode; nothing survives a restart.
package memory

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/alfredjeanlab/modelbase/internal/model"
	"github.com/alfredjeanlab/modelbase/internal/store"
)

// Store keeps models, documents and events in maps guarded by an RWMutex.
// Values are deep-copied on the way in and out so callers never share state
// with the store.
type Store struct {
	mu        sync.RWMutex
	models    map[string]*model.ModelScheme
	documents map[string]map[string]*model.Document
	events    []*model.Event
	nextEvent int64

	// txMu serializes transactions.
	txMu sync.Mutex

	now func() time.Time
}

// Compile-time check that Store implements store.Store.
var _ store.Store = (*Store)(nil)

// New creates an empty in-memory store.
func New() *Store {
	return &Store{
		models:    make(map[string]*model.ModelScheme),
		documents: make(map[string]map[string]*model.Document),
		now:       func() time.Time { return time.Now().UTC() },
	}
}

func (s *Store) CreateModel(_ context.Context, scheme *model.ModelScheme) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	name := scheme.Name()
	if _, ok := s.models[name]; ok {
		return fmt.Errorf("model %q: %w", name, store.ErrAlreadyExists)
	}
	for _, m := range s.models {
		if m.ID == scheme.ID {
			return fmt.Errorf("model id %s: %w", scheme.ID, store.ErrAlreadyExists)
		}
	}
	now := s.now()
	scheme.CreatedAt = now
	scheme.UpdatedAt = now
	s.models[name] = cloneScheme(scheme)
	return nil
}

func (s *Store) GetModel(_ context.Context, name string) (*model.ModelScheme, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	m, ok := s.models[name]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return cloneScheme(m), nil
}

func (s *Store) GetModelByID(_ context.Context, id uuid.UUID) (*model.ModelScheme, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, m := range s.models {
		if m.ID == id {
			return cloneScheme(m), nil
		}
	}
	return nil, sql.ErrNoRows
}

func (s *Store) ModelExists(_ context.Context, name string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.models[name]
	return ok, nil
}

// ListModels returns every model sorted by name.
func (s *Store) ListModels(_ context.Context) ([]*model.ModelScheme, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*model.ModelScheme, 0, len(s.models))
	for _, m := range s.models {
		out = append(out, cloneScheme(m))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name() < out[j].Name() })
	return out, nil
}

// UpdateModel replaces the definition of the model with scheme.ID.
func (s *Store) UpdateModel(_ context.Context, scheme *model.ModelScheme) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var existing *model.ModelScheme
	for _, m := range s.models {
		if m.ID == scheme.ID {
			existing = m
			break
		}
	}
	if existing == nil {
		return sql.ErrNoRows
	}
	if existing.Name() != scheme.Name() {
		if _, taken := s.models[scheme.Name()]; taken {
			return fmt.Errorf("model %q: %w", scheme.Name(), store.ErrAlreadyExists)
		}
		delete(s.models, existing.Name())
		if docs, ok := s.documents[existing.Name()]; ok {
			moved := make(map[string]*model.Document, len(docs))
			for id, d := range docs {
				cp := cloneDocument(d)
				cp.Model = scheme.Name()
				moved[id] = cp
			}
			delete(s.documents, existing.Name())
			s.documents[scheme.Name()] = moved
		}
	}
	scheme.CreatedAt = existing.CreatedAt
	scheme.UpdatedAt = s.now()
	s.models[scheme.Name()] = cloneScheme(scheme)
	return nil
}

func (s *Store) DeleteModel(_ context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.models[name]; !ok {
		return sql.ErrNoRows
	}
	delete(s.models, name)
	delete(s.documents, name)
	return nil
}

func (s *Store) CreateDocument(_ context.Context, doc *model.Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	docs, err := s.documentsOf(doc.Model)
	if err != nil {
		return err
	}
	if _, ok := docs[doc.ID]; ok {
		return fmt.Errorf("document %q: %w", doc.ID, store.ErrAlreadyExists)
	}
	now := s.now()
	doc.CreatedAt = now
	doc.UpdatedAt = now
	docs[doc.ID] = cloneDocument(doc)
	return nil
}

func (s *Store) GetDocument(_ context.Context, modelName, id string) (*model.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	d, ok := s.documents[modelName][id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return cloneDocument(d), nil
}

// ListDocuments returns documents in creation order, then by identifier.
func (s *Store) ListDocuments(_ context.Context, modelName string, filter model.DocumentFilter) ([]*model.Document, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	docs := s.documents[modelName]
	all := make([]*model.Document, 0, len(docs))
	for _, d := range docs {
		all = append(all, d)
	}
	sort.Slice(all, func(i, j int) bool {
		if !all[i].CreatedAt.Equal(all[j].CreatedAt) {
			return all[i].CreatedAt.Before(all[j].CreatedAt)
		}
		return all[i].ID < all[j].ID
	})

	total := len(all)
	if filter.Offset > 0 {
		if filter.Offset >= len(all) {
			all = nil
		} else {
			all = all[filter.Offset:]
		}
	}
	if filter.Limit > 0 && len(all) > filter.Limit {
		all = all[:filter.Limit]
	}
	out := make([]*model.Document, len(all))
	for i, d := range all {
		out[i] = cloneDocument(d)
	}
	return out, total, nil
}

// PutDocument inserts or replaces doc. It reports whether the document was
// created.
func (s *Store) PutDocument(_ context.Context, doc *model.Document) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	docs, err := s.documentsOf(doc.Model)
	if err != nil {
		return false, err
	}
	now := s.now()
	existing, ok := docs[doc.ID]
	if ok {
		doc.CreatedAt = existing.CreatedAt
	} else {
		doc.CreatedAt = now
	}
	doc.UpdatedAt = now
	docs[doc.ID] = cloneDocument(doc)
	return !ok, nil
}

func (s *Store) DeleteDocument(_ context.Context, modelName, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	docs := s.documents[modelName]
	if _, ok := docs[id]; !ok {
		return sql.ErrNoRows
	}
	delete(docs, id)
	return nil
}

// documentsOf returns the document map of a model, creating it on first use.
// The caller must hold mu for writing.
func (s *Store) documentsOf(modelName string) (map[string]*model.Document, error) {
	if _, ok := s.models[modelName]; !ok {
		return nil, sql.ErrNoRows
	}
	docs, ok := s.documents[modelName]
	if !ok {
		docs = make(map[string]*model.Document)
		s.documents[modelName] = docs
	}
	return docs, nil
}

func (s *Store) RecordEvent(_ context.Context, event *model.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextEvent++
	event.ID = s.nextEvent
	event.CreatedAt = s.now()
	cp := *event
	cp.Payload = append([]byte(nil), event.Payload...)
	s.events = append(s.events, &cp)
	return nil
}

func (s *Store) GetEvents(_ context.Context, modelName string) ([]*model.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*model.Event
	for _, e := range s.events {
		if e.Model == modelName {
			cp := *e
			cp.Payload = append([]byte(nil), e.Payload...)
			out = append(out, &cp)
		}
	}
	return out, nil
}

// RunInTransaction runs fn with transactions serialized. When fn fails, the
// models and documents are restored to their state before fn ran. Events
// recorded by fn are kept.
func (s *Store) RunInTransaction(_ context.Context, fn func(tx store.Store) error) error {
	s.txMu.Lock()
	defer s.txMu.Unlock()

	snap := s.snapshot()
	if err := fn(&txStore{Store: s}); err != nil {
		s.restore(snap)
		return err
	}
	return nil
}

// Close is a no-op.
func (s *Store) Close() error {
	return nil
}

type snapshot struct {
	models    map[string]*model.ModelScheme
	documents map[string]map[string]*model.Document
}

func (s *Store) snapshot() snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := snapshot{
		models:    make(map[string]*model.ModelScheme, len(s.models)),
		documents: make(map[string]map[string]*model.Document, len(s.documents)),
	}
	for k, m := range s.models {
		snap.models[k] = m
	}
	for k, docs := range s.documents {
		cp := make(map[string]*model.Document, len(docs))
		for id, d := range docs {
			cp[id] = d
		}
		snap.documents[k] = cp
	}
	return snap
}

// restore reinstates a snapshot. Stored values are never mutated in place,
// so the shallow map copies taken by snapshot are enough.
func (s *Store) restore(snap snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.models = snap.models
	s.documents = snap.documents
}

// txStore is the view handed to transaction callbacks. Nested transactions
// join the current one.
type txStore struct {
	*Store
}

func (t *txStore) RunInTransaction(_ context.Context, fn func(tx store.Store) error) error {
	return fn(t)
}

// Close is a no-op for a transaction store; the parent store owns the state.
func (t *txStore) Close() error {
	return nil
}

func cloneScheme(m *model.ModelScheme) *model.ModelScheme {
	cp := *m
	cp.Definition.Fields = cloneFields(m.Definition.Fields)
	return &cp
}

func cloneFields(fields []model.FieldDefinition) []model.FieldDefinition {
	if fields == nil {
		return nil
	}
	out := make([]model.FieldDefinition, len(fields))
	for i, f := range fields {
		out[i] = f
		out[i].NestedFields = cloneFields(f.NestedFields)
	}
	return out
}

func cloneDocument(d *model.Document) *model.Document {
	cp := *d
	if d.Data != nil {
		cp.Data = d.Data.Clone()
	}
	return &cp
}
