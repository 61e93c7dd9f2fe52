package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"

	"github.com/alfredjeanlab/modelbase/internal/jsonvalue"
	"github.com/alfredjeanlab/modelbase/internal/model"
	"github.com/alfredjeanlab/modelbase/internal/store"
)

// modelColumns is the column list used for SELECT statements on the models table.
const modelColumns = `id, name, definition, created_at, updated_at`

// documentColumns is the column list used for SELECT statements on the documents table.
const documentColumns = `model, id, data, created_at, updated_at`

// PostgreSQL error codes translated by translateError.
const (
	codeUniqueViolation     = "23505"
	codeForeignKeyViolation = "23503"
)

// executor is the interface satisfied by both *sql.DB and *sql.Tx.
type executor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// pgErrorCode extracts the SQLSTATE from either driver's error type.
func pgErrorCode(err error) string {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return string(pqErr.Code)
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}
	return ""
}

// translateError maps constraint violations onto the store's error contract:
// unique violations become store.ErrAlreadyExists and a missing parent model
// becomes sql.ErrNoRows.
func translateError(err error, what string) error {
	switch pgErrorCode(err) {
	case codeUniqueViolation:
		return fmt.Errorf("%s: %w", what, store.ErrAlreadyExists)
	case codeForeignKeyViolation:
		return sql.ErrNoRows
	}
	return err
}

func queryCreateModel(ctx context.Context, db executor, m *model.ModelScheme) error {
	def, err := json.Marshal(m.Definition)
	if err != nil {
		return fmt.Errorf("marshal definition: %w", err)
	}
	err = db.QueryRowContext(ctx, `
		INSERT INTO models (id, name, definition)
		VALUES ($1, $2, $3)
		RETURNING created_at, updated_at`,
		m.ID, m.Name(), def,
	).Scan(&m.CreatedAt, &m.UpdatedAt)
	if err != nil {
		return translateError(err, fmt.Sprintf("model %q", m.Name()))
	}
	return nil
}

func queryGetModel(ctx context.Context, db executor, name string) (*model.ModelScheme, error) {
	row := db.QueryRowContext(ctx, `SELECT `+modelColumns+` FROM models WHERE name = $1`, name)
	return scanModel(row)
}

func queryGetModelByID(ctx context.Context, db executor, id uuid.UUID) (*model.ModelScheme, error) {
	row := db.QueryRowContext(ctx, `SELECT `+modelColumns+` FROM models WHERE id = $1`, id)
	return scanModel(row)
}

func queryModelExists(ctx context.Context, db executor, name string) (bool, error) {
	var exists bool
	err := db.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM models WHERE name = $1)`, name).Scan(&exists)
	return exists, err
}

func queryListModels(ctx context.Context, db executor) ([]*model.ModelScheme, error) {
	rows, err := db.QueryContext(ctx, `SELECT `+modelColumns+` FROM models ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list models: %w", err)
	}
	defer rows.Close()
	return scanModels(rows)
}

// queryUpdateModel replaces the name and definition of the model with m.ID.
// Renaming carries the model's documents along through ON UPDATE CASCADE.
func queryUpdateModel(ctx context.Context, db executor, m *model.ModelScheme) error {
	def, err := json.Marshal(m.Definition)
	if err != nil {
		return fmt.Errorf("marshal definition: %w", err)
	}
	err = db.QueryRowContext(ctx, `
		UPDATE models SET
			name = $2,
			definition = $3,
			updated_at = NOW()
		WHERE id = $1
		RETURNING created_at, updated_at`,
		m.ID, m.Name(), def,
	).Scan(&m.CreatedAt, &m.UpdatedAt)
	if err == sql.ErrNoRows {
		return err
	}
	if err != nil {
		return translateError(err, fmt.Sprintf("model %q", m.Name()))
	}
	return nil
}

func queryDeleteModel(ctx context.Context, db executor, name string) error {
	res, err := db.ExecContext(ctx, `DELETE FROM models WHERE name = $1`, name)
	if err != nil {
		return err
	}
	return expectOneRow(res)
}

func queryCreateDocument(ctx context.Context, db executor, d *model.Document) error {
	data, err := jsonvalue.Marshal(d.Data)
	if err != nil {
		return fmt.Errorf("marshal document: %w", err)
	}
	err = db.QueryRowContext(ctx, `
		INSERT INTO documents (model, id, data)
		VALUES ($1, $2, $3)
		RETURNING created_at, updated_at`,
		d.Model, d.ID, data,
	).Scan(&d.CreatedAt, &d.UpdatedAt)
	if err != nil {
		return translateError(err, fmt.Sprintf("document %q", d.ID))
	}
	return nil
}

func queryGetDocument(ctx context.Context, db executor, modelName, id string) (*model.Document, error) {
	row := db.QueryRowContext(ctx,
		`SELECT `+documentColumns+` FROM documents WHERE model = $1 AND id = $2`, modelName, id)
	return scanDocument(row)
}

func queryListDocuments(ctx context.Context, db executor, modelName string, filter model.DocumentFilter) ([]*model.Document, int, error) {
	args := []any{modelName}
	nextArg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	// Single query with COUNT(*) OVER() to get total and rows atomically.
	dataQuery := `SELECT COUNT(*) OVER() AS total_count, ` + documentColumns +
		` FROM documents WHERE model = $1 ORDER BY created_at, id`
	if filter.Limit > 0 {
		dataQuery += " LIMIT " + nextArg(filter.Limit)
	}
	if filter.Offset > 0 {
		dataQuery += " OFFSET " + nextArg(filter.Offset)
	}

	rows, err := db.QueryContext(ctx, dataQuery, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list documents: %w", err)
	}
	defer rows.Close()

	var docs []*model.Document
	var total int
	for rows.Next() {
		d, t, err := scanDocumentWithTotal(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan documents: %w", err)
		}
		total = t
		docs = append(docs, d)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("scan documents: %w", err)
	}

	// Paging past the end returns no rows to carry the window count.
	if len(docs) == 0 && filter.Offset > 0 {
		err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM documents WHERE model = $1`, modelName).Scan(&total)
		if err != nil {
			return nil, 0, fmt.Errorf("count documents: %w", err)
		}
	}

	return docs, total, nil
}

// queryPutDocument upserts d. xmax is zero only for a freshly inserted row.
func queryPutDocument(ctx context.Context, db executor, d *model.Document) (bool, error) {
	data, err := jsonvalue.Marshal(d.Data)
	if err != nil {
		return false, fmt.Errorf("marshal document: %w", err)
	}
	var inserted bool
	err = db.QueryRowContext(ctx, `
		INSERT INTO documents (model, id, data)
		VALUES ($1, $2, $3)
		ON CONFLICT (model, id) DO UPDATE SET
			data = EXCLUDED.data,
			updated_at = NOW()
		RETURNING created_at, updated_at, (xmax = 0) AS inserted`,
		d.Model, d.ID, data,
	).Scan(&d.CreatedAt, &d.UpdatedAt, &inserted)
	if err != nil {
		return false, translateError(err, fmt.Sprintf("document %q", d.ID))
	}
	return inserted, nil
}

func queryDeleteDocument(ctx context.Context, db executor, modelName, id string) error {
	res, err := db.ExecContext(ctx, `DELETE FROM documents WHERE model = $1 AND id = $2`, modelName, id)
	if err != nil {
		return err
	}
	return expectOneRow(res)
}

func queryRecordEvent(ctx context.Context, db executor, e *model.Event) error {
	return db.QueryRowContext(ctx, `
		INSERT INTO events (topic, model, document_id, actor, payload)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at`,
		e.Topic, e.Model, nullString(e.DocumentID), nullString(e.Actor), jsonbBytes(e.Payload),
	).Scan(&e.ID, &e.CreatedAt)
}

func queryGetEvents(ctx context.Context, db executor, modelName string) ([]*model.Event, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT id, topic, model, document_id, actor, payload, created_at
		FROM events
		WHERE model = $1
		ORDER BY id ASC`,
		modelName,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanEvents(rows)
}

func expectOneRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return sql.ErrNoRows
	}
	return nil
}
