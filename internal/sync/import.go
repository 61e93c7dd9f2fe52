package sync

import (
	"bufio"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/google/uuid"

	"github.com/alfredjeanlab/modelbase/internal/model"
	"github.com/alfredjeanlab/modelbase/internal/schema"
	"github.com/alfredjeanlab/modelbase/internal/store"
)

// maxLineSize bounds a single JSONL record.
const maxLineSize = 16 << 20

// FormatError reports a backup that cannot be imported as written: a
// malformed record, a bad definition or a reference to an unknown model.
// Other import errors come from the store.
type FormatError struct {
	Err error
}

func (e *FormatError) Error() string { return e.Err.Error() }

func (e *FormatError) Unwrap() error { return e.Err }

func formatErrorf(format string, args ...any) error {
	return &FormatError{Err: fmt.Errorf(format, args...)}
}

// ImportOptions controls how documents are re-validated on import.
type ImportOptions struct {
	// StrictRequired rejects documents that miss a required field.
	StrictRequired bool
}

// ImportStats summarises an import.
type ImportStats struct {
	Models    int      `json:"models"`
	Documents int      `json:"documents"`
	Skipped   int      `json:"skipped"`
	Problems  []string `json:"problems,omitempty"`
}

// ImportJSONL restores an export produced by ExportJSONL. Models are checked
// and then created or replaced by name. Documents are re-validated against
// their model and upserted; invalid ones are skipped and reported in the
// stats. The whole import runs in one transaction.
func ImportJSONL(ctx context.Context, s store.Store, r io.Reader, opts ImportOptions) (*ImportStats, error) {
	stats := &ImportStats{}
	err := s.RunInTransaction(ctx, func(tx store.Store) error {
		imp := &importer{
			tx:     tx,
			opts:   opts,
			stats:  stats,
			models: make(map[string]*model.ModelDefinition),
		}
		return imp.run(ctx, r)
	})
	if err != nil {
		return nil, err
	}
	return stats, nil
}

type importer struct {
	tx     store.Store
	opts   ImportOptions
	stats  *ImportStats
	models map[string]*model.ModelDefinition
}

type rawRecord struct {
	Type    string          `json:"type"`
	Version string          `json:"version"`
	Data    json.RawMessage `json:"data"`
}

func (imp *importer) run(ctx context.Context, r io.Reader) error {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxLineSize)

	line := 0
	sawHeader := false
	for sc.Scan() {
		line++
		raw := sc.Bytes()
		if len(raw) == 0 {
			continue
		}
		var rec rawRecord
		if err := json.Unmarshal(raw, &rec); err != nil {
			return formatErrorf("line %d: %w", line, err)
		}
		if !sawHeader {
			if rec.Type != recordHeader {
				return formatErrorf("line %d: expected header record, got %q", line, rec.Type)
			}
			if rec.Version != FormatVersion {
				return formatErrorf("line %d: unsupported export version %q", line, rec.Version)
			}
			sawHeader = true
			continue
		}
		var err error
		switch rec.Type {
		case recordModel:
			err = imp.importModel(ctx, rec.Data)
		case recordDocument:
			err = imp.importDocument(ctx, rec.Data)
		default:
			err = formatErrorf("unknown record type %q", rec.Type)
		}
		if err != nil {
			return fmt.Errorf("line %d: %w", line, err)
		}
	}
	if err := sc.Err(); err != nil {
		if errors.Is(err, bufio.ErrTooLong) {
			return formatErrorf("line %d: record exceeds %d bytes", line+1, maxLineSize)
		}
		return fmt.Errorf("read: %w", err)
	}
	if !sawHeader {
		return formatErrorf("empty import: missing header record")
	}
	return nil
}

func (imp *importer) importModel(ctx context.Context, data json.RawMessage) error {
	var in struct {
		ID         uuid.UUID       `json:"id"`
		Definition json.RawMessage `json:"definition"`
	}
	if err := json.Unmarshal(data, &in); err != nil {
		return formatErrorf("decode model: %w", err)
	}
	def, err := schema.ParseDefinition(in.Definition)
	if err != nil {
		return formatErrorf("model definition: %w", err)
	}

	existing, err := imp.tx.GetModel(ctx, def.ModelName)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		scheme := model.NewModelScheme(*def)
		if in.ID != uuid.Nil {
			scheme.ID = in.ID
		}
		if err := imp.tx.CreateModel(ctx, scheme); err != nil {
			return fmt.Errorf("create model %s: %w", def.ModelName, err)
		}
	case err != nil:
		return fmt.Errorf("get model %s: %w", def.ModelName, err)
	default:
		updated := *existing
		updated.Definition = *def
		if err := imp.tx.UpdateModel(ctx, &updated); err != nil {
			return fmt.Errorf("update model %s: %w", def.ModelName, err)
		}
	}

	imp.models[def.ModelName] = def
	imp.stats.Models++
	return nil
}

func (imp *importer) importDocument(ctx context.Context, data json.RawMessage) error {
	var in documentRecord
	if err := json.Unmarshal(data, &in); err != nil {
		return formatErrorf("decode document: %w", err)
	}
	if in.Document == nil {
		return formatErrorf("document %s/%s has no content", in.Model, in.ID)
	}

	def, err := imp.definition(ctx, in.Model)
	if err != nil {
		return err
	}

	var result model.ValidationResult
	if imp.opts.StrictRequired {
		result = schema.ValidateStrict(def, in.Document)
	} else {
		result = schema.Validate(def, in.Document)
	}
	if !result.IsValid {
		imp.skip(fmt.Sprintf("%s/%s: does not match the model definition", in.Model, in.ID))
		return nil
	}

	stored, id, err := model.ToStorage(in.Document, in.ID)
	if err != nil {
		imp.skip(fmt.Sprintf("%s/%s: %v", in.Model, in.ID, err))
		return nil
	}
	if _, err := imp.tx.PutDocument(ctx, &model.Document{ID: id, Model: in.Model, Data: stored}); err != nil {
		return fmt.Errorf("put document %s/%s: %w", in.Model, id, err)
	}
	imp.stats.Documents++
	return nil
}

// definition returns the definition of a model imported earlier in the same
// stream, falling back to the store.
func (imp *importer) definition(ctx context.Context, name string) (*model.ModelDefinition, error) {
	if def, ok := imp.models[name]; ok {
		return def, nil
	}
	m, err := imp.tx.GetModel(ctx, name)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, formatErrorf("document references unknown model %q", name)
	}
	if err != nil {
		return nil, fmt.Errorf("get model %s: %w", name, err)
	}
	imp.models[name] = &m.Definition
	return &m.Definition, nil
}

func (imp *importer) skip(problem string) {
	imp.stats.Skipped++
	imp.stats.Problems = append(imp.stats.Problems, problem)
}
