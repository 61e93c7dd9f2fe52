// Package store defines the persistence boundary for model schemes, their
// documents and the event log.
package store

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/alfredjeanlab/modelbase/internal/model"
)

// ErrAlreadyExists is returned when a create collides with an existing model
// name or document identifier. Missing rows are reported as sql.ErrNoRows.
var ErrAlreadyExists = errors.New("already exists")

// Store defines the persistence interface for models and documents.
type Store interface {
	// Models
	CreateModel(ctx context.Context, scheme *model.ModelScheme) error
	GetModel(ctx context.Context, name string) (*model.ModelScheme, error)
	GetModelByID(ctx context.Context, id uuid.UUID) (*model.ModelScheme, error)
	ModelExists(ctx context.Context, name string) (bool, error)
	ListModels(ctx context.Context) ([]*model.ModelScheme, error)
	UpdateModel(ctx context.Context, scheme *model.ModelScheme) error
	DeleteModel(ctx context.Context, name string) error // cascades to documents

	// Documents
	CreateDocument(ctx context.Context, doc *model.Document) error
	GetDocument(ctx context.Context, modelName, id string) (*model.Document, error)
	ListDocuments(ctx context.Context, modelName string, filter model.DocumentFilter) ([]*model.Document, int, error) // returns documents, total count, error
	PutDocument(ctx context.Context, doc *model.Document) (created bool, err error)
	DeleteDocument(ctx context.Context, modelName, id string) error

	// Events
	RecordEvent(ctx context.Context, event *model.Event) error
	GetEvents(ctx context.Context, modelName string) ([]*model.Event, error)

	// Transaction support
	RunInTransaction(ctx context.Context, fn func(tx Store) error) error

	// Lifecycle
	Close() error
}
