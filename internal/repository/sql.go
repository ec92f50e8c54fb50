package repository

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq" // PostgreSQL driver
	"go.uber.org/zap"
	_ "modernc.org/sqlite" // SQLite driver

	"profiler-service/internal/crypto"
	"profiler-service/internal/models"
)

//go:embed migrations
var migrationFiles embed.FS

// SQLStore keeps records in a relational table through sqlx.
type SQLStore struct {
	db     *sqlx.DB
	sealer *crypto.Sealer
	logger *zap.Logger
}

type recordRow struct {
	Name     string `db:"name"`
	Document string `db:"document"`
	Sealed   bool   `db:"sealed"`
}

// NewSQLiteStore opens (creating if needed) a SQLite database and migrates it.
func NewSQLiteStore(path string, sealer *crypto.Sealer, logger *zap.Logger) (*SQLStore, error) {
	db, err := sqlx.Connect("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}
	// SQLite allows a single writer.
	db.SetMaxOpenConns(1)

	driver, err := sqlite.WithInstance(db.DB, &sqlite.Config{})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("couldn't get sqlite instance for migrations: %w", err)
	}
	if err := runMigrations(driver, "sqlite", "migrations/sqlite", logger); err != nil {
		db.Close()
		return nil, err
	}

	logger.Info("Record store ready", zap.String("backend", "sqlite"), zap.String("path", path))
	return &SQLStore{db: db, sealer: sealer, logger: logger}, nil
}

// NewPostgresStore connects to PostgreSQL and migrates the records table.
func NewPostgresStore(dsn string, sealer *crypto.Sealer, logger *zap.Logger) (*SQLStore, error) {
	db, err := sqlx.Connect("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping postgres: %w", err)
	}

	driver, err := postgres.WithInstance(db.DB, &postgres.Config{})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("couldn't get postgres instance for migrations: %w", err)
	}
	if err := runMigrations(driver, "postgres", "migrations/postgres", logger); err != nil {
		db.Close()
		return nil, err
	}

	logger.Info("Record store ready", zap.String("backend", "postgres"))
	return &SQLStore{db: db, sealer: sealer, logger: logger}, nil
}

func runMigrations(driver database.Driver, dbName, dir string, logger *zap.Logger) error {
	src, err := iofs.New(migrationFiles, dir)
	if err != nil {
		return fmt.Errorf("couldn't read embedded migrations: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", src, dbName, driver)
	if err != nil {
		return fmt.Errorf("couldn't create migrate instance: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("couldn't run database migration: %w", err)
	}

	logger.Debug("Database migration was run successfully", zap.String("database", dbName))
	return nil
}

func (s *SQLStore) Save(ctx context.Context, rec *models.Record) error {
	if rec == nil {
		return fmt.Errorf("%w: nil record", models.ErrInvalidInput)
	}
	if err := ValidateName(rec.Name); err != nil {
		return err
	}

	document, sealed, err := encodeRecord(rec, s.sealer)
	if err != nil {
		return err
	}

	query := s.db.Rebind(`INSERT INTO records (name, scan_timestamp, document, sealed, updated_at)
	          VALUES (?, ?, ?, ?, ?)
	          ON CONFLICT (name) DO UPDATE SET
	              scan_timestamp = excluded.scan_timestamp,
	              document = excluded.document,
	              sealed = excluded.sealed,
	              updated_at = excluded.updated_at`)
	if _, err := s.db.ExecContext(ctx, query, rec.Name, rec.ScanTimestamp, document, sealed, time.Now().UTC()); err != nil {
		return fmt.Errorf("failed to save record %q: %w", rec.Name, err)
	}

	s.logger.Debug("Record saved", zap.String("name", rec.Name), zap.Bool("sealed", sealed))
	return nil
}

func (s *SQLStore) Load(ctx context.Context, name string) (*models.Record, error) {
	if err := ValidateName(name); err != nil {
		return nil, err
	}

	var row recordRow
	query := s.db.Rebind(`SELECT name, document, sealed FROM records WHERE name = ?`)
	if err := s.db.GetContext(ctx, &row, query, name); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", models.ErrRecordNotFound, name)
		}
		return nil, fmt.Errorf("failed to load record %q: %w", name, err)
	}
	return decodeRecord(row.Document, row.Sealed, s.sealer)
}

func (s *SQLStore) List(ctx context.Context) ([]string, error) {
	names := []string{}
	if err := s.db.SelectContext(ctx, &names, `SELECT name FROM records ORDER BY name`); err != nil {
		return nil, fmt.Errorf("failed to list records: %w", err)
	}
	return names, nil
}

func (s *SQLStore) Delete(ctx context.Context, name string) error {
	if err := ValidateName(name); err != nil {
		return err
	}

	res, err := s.db.ExecContext(ctx, s.db.Rebind(`DELETE FROM records WHERE name = ?`), name)
	if err != nil {
		return fmt.Errorf("failed to delete record %q: %w", name, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%w: %s", models.ErrRecordNotFound, name)
	}
	return nil
}

func (s *SQLStore) Close() error {
	return s.db.Close()
}
