package model

import (
	"time"

	"github.com/google/uuid"
)

// ModelScheme is the stored envelope around a ModelDefinition. The definition
// is only ever replaced as a whole.
type ModelScheme struct {
	ID         uuid.UUID       `json:"id"`
	Definition ModelDefinition `json:"definition"`
	CreatedAt  time.Time       `json:"createdAt"`
	UpdatedAt  time.Time       `json:"updatedAt"`
}

// NewModelScheme wraps def in a scheme with a fresh random ID.
func NewModelScheme(def ModelDefinition) *ModelScheme {
	return &ModelScheme{
		ID:         uuid.New(),
		Definition: def,
	}
}

// Name returns the model name of the wrapped definition.
func (s *ModelScheme) Name() string {
	return s.Definition.ModelName
}
