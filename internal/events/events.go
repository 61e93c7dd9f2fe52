package events

import (
	"context"

	"github.com/alfredjeanlab/modelbase/internal/jsonvalue"
	"github.com/alfredjeanlab/modelbase/internal/model"
)

// Event topic constants
const (
	TopicModelCreated = "modelbase.model.created"
	TopicModelUpdated = "modelbase.model.updated"
	TopicModelDeleted = "modelbase.model.deleted"

	TopicDocumentCreated = "modelbase.document.created"
	TopicDocumentUpdated = "modelbase.document.updated"
	TopicDocumentDeleted = "modelbase.document.deleted"

	TopicImportCompleted = "modelbase.import.completed"

	// TopicAll matches every topic above as a NATS wildcard subject.
	TopicAll = "modelbase.>"
)

// Event types

type ModelCreated struct {
	Model *model.ModelScheme `json:"model"`
}

type ModelUpdated struct {
	Model *model.ModelScheme `json:"model"`
}

type ModelDeleted struct {
	ModelID   string `json:"modelId"`
	ModelName string `json:"modelName"`
}

// Document payloads carry the public form of the document.

type DocumentCreated struct {
	Model    string            `json:"model"`
	Document *jsonvalue.Object `json:"document"`
}

type DocumentUpdated struct {
	Model    string            `json:"model"`
	Document *jsonvalue.Object `json:"document"`
}

type DocumentDeleted struct {
	Model      string `json:"model"`
	DocumentID string `json:"documentId"`
}

type ImportCompleted struct {
	Models    int `json:"models"`
	Documents int `json:"documents"`
	Skipped   int `json:"skipped"`
}

// Publisher is the interface for emitting events.
type Publisher interface {
	Publish(ctx context.Context, topic string, event any) error
	Close() error
}
