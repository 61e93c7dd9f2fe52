// Package postgres implements the store.Store interface backed by PostgreSQL.
package postgres

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/google/uuid"
	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/lib/pq"

	"github.com/alfredjeanlab/modelbase/internal/model"
	"github.com/alfredjeanlab/modelbase/internal/store"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Supported database/sql driver names.
const (
	DriverPQ  = "postgres"
	DriverPGX = "pgx"
)

// PostgresStore implements store.Store backed by a PostgreSQL database.
type PostgresStore struct {
	db *sql.DB
}

// Compile-time check that PostgresStore implements store.Store.
var _ store.Store = (*PostgresStore)(nil)

// New opens a connection to the PostgreSQL database at the given URL using
// driver (DriverPQ or DriverPGX, empty meaning DriverPQ), configures the
// connection pool, and runs any pending migrations.
func New(driver, databaseURL string) (*PostgresStore, error) {
	switch driver {
	case "":
		driver = DriverPQ
	case DriverPQ, DriverPGX:
	default:
		return nil, fmt.Errorf("unsupported database driver %q (want %q or %q)", driver, DriverPQ, DriverPGX)
	}

	db, err := sql.Open(driver, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := runMigrations(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &PostgresStore{db: db}, nil
}

// NewWithDB wraps an already opened and migrated database.
func NewWithDB(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func runMigrations(db *sql.DB) error {
	sourceDriver, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("create migration source: %w", err)
	}

	dbDriver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("create migration db driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", sourceDriver, "postgres", dbDriver)
	if err != nil {
		return fmt.Errorf("create migrator: %w", err)
	}

	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return fmt.Errorf("apply migrations: %w", err)
	}

	return nil
}

// Close closes the underlying database connection.
func (s *PostgresStore) Close() error {
	return s.db.Close()
}

func (s *PostgresStore) CreateModel(ctx context.Context, scheme *model.ModelScheme) error {
	return queryCreateModel(ctx, s.db, scheme)
}

func (s *PostgresStore) GetModel(ctx context.Context, name string) (*model.ModelScheme, error) {
	return queryGetModel(ctx, s.db, name)
}

func (s *PostgresStore) GetModelByID(ctx context.Context, id uuid.UUID) (*model.ModelScheme, error) {
	return queryGetModelByID(ctx, s.db, id)
}

func (s *PostgresStore) ModelExists(ctx context.Context, name string) (bool, error) {
	return queryModelExists(ctx, s.db, name)
}

func (s *PostgresStore) ListModels(ctx context.Context) ([]*model.ModelScheme, error) {
	return queryListModels(ctx, s.db)
}

func (s *PostgresStore) UpdateModel(ctx context.Context, scheme *model.ModelScheme) error {
	return queryUpdateModel(ctx, s.db, scheme)
}

func (s *PostgresStore) DeleteModel(ctx context.Context, name string) error {
	return queryDeleteModel(ctx, s.db, name)
}

func (s *PostgresStore) CreateDocument(ctx context.Context, doc *model.Document) error {
	return queryCreateDocument(ctx, s.db, doc)
}

func (s *PostgresStore) GetDocument(ctx context.Context, modelName, id string) (*model.Document, error) {
	return queryGetDocument(ctx, s.db, modelName, id)
}

func (s *PostgresStore) ListDocuments(ctx context.Context, modelName string, filter model.DocumentFilter) ([]*model.Document, int, error) {
	return queryListDocuments(ctx, s.db, modelName, filter)
}

func (s *PostgresStore) PutDocument(ctx context.Context, doc *model.Document) (bool, error) {
	return queryPutDocument(ctx, s.db, doc)
}

func (s *PostgresStore) DeleteDocument(ctx context.Context, modelName, id string) error {
	return queryDeleteDocument(ctx, s.db, modelName, id)
}

func (s *PostgresStore) RecordEvent(ctx context.Context, event *model.Event) error {
	return queryRecordEvent(ctx, s.db, event)
}

func (s *PostgresStore) GetEvents(ctx context.Context, modelName string) ([]*model.Event, error) {
	return queryGetEvents(ctx, s.db, modelName)
}

// RunInTransaction begins a database transaction, creates a txStore that
// delegates to it, calls fn, and commits on success or rolls back on error.
func (s *PostgresStore) RunInTransaction(ctx context.Context, fn func(tx store.Store) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	txS := &txStore{tx: tx}
	if err := fn(txS); err != nil {
		_ = tx.Rollback()
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// txStore implements store.Store using a *sql.Tx.
type txStore struct {
	tx *sql.Tx
}

// Compile-time check that txStore implements store.Store.
var _ store.Store = (*txStore)(nil)

func (s *txStore) CreateModel(ctx context.Context, scheme *model.ModelScheme) error {
	return queryCreateModel(ctx, s.tx, scheme)
}

func (s *txStore) GetModel(ctx context.Context, name string) (*model.ModelScheme, error) {
	return queryGetModel(ctx, s.tx, name)
}

func (s *txStore) GetModelByID(ctx context.Context, id uuid.UUID) (*model.ModelScheme, error) {
	return queryGetModelByID(ctx, s.tx, id)
}

func (s *txStore) ModelExists(ctx context.Context, name string) (bool, error) {
	return queryModelExists(ctx, s.tx, name)
}

func (s *txStore) ListModels(ctx context.Context) ([]*model.ModelScheme, error) {
	return queryListModels(ctx, s.tx)
}

func (s *txStore) UpdateModel(ctx context.Context, scheme *model.ModelScheme) error {
	return queryUpdateModel(ctx, s.tx, scheme)
}

func (s *txStore) DeleteModel(ctx context.Context, name string) error {
	return queryDeleteModel(ctx, s.tx, name)
}

func (s *txStore) CreateDocument(ctx context.Context, doc *model.Document) error {
	return queryCreateDocument(ctx, s.tx, doc)
}

func (s *txStore) GetDocument(ctx context.Context, modelName, id string) (*model.Document, error) {
	return queryGetDocument(ctx, s.tx, modelName, id)
}

func (s *txStore) ListDocuments(ctx context.Context, modelName string, filter model.DocumentFilter) ([]*model.Document, int, error) {
	return queryListDocuments(ctx, s.tx, modelName, filter)
}

func (s *txStore) PutDocument(ctx context.Context, doc *model.Document) (bool, error) {
	return queryPutDocument(ctx, s.tx, doc)
}

func (s *txStore) DeleteDocument(ctx context.Context, modelName, id string) error {
	return queryDeleteDocument(ctx, s.tx, modelName, id)
}

func (s *txStore) RecordEvent(ctx context.Context, event *model.Event) error {
	return queryRecordEvent(ctx, s.tx, event)
}

func (s *txStore) GetEvents(ctx context.Context, modelName string) ([]*model.Event, error) {
	return queryGetEvents(ctx, s.tx, modelName)
}

// RunInTransaction on a txStore reuses the existing transaction (no nesting).
func (s *txStore) RunInTransaction(ctx context.Context, fn func(tx store.Store) error) error {
	return fn(s)
}

// Close is a no-op for a transaction store; the parent store owns the connection.
func (s *txStore) Close() error {
	return nil
}
