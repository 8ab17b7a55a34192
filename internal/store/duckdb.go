package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/marcboeker/go-duckdb"

	"github.com/joeblew999/propmap/internal/service"
)

// DuckDBConfig holds database configuration.
type DuckDBConfig struct {
	DataDir string // empty keeps the database in memory
	DBName  string
}

// DuckDB is a PropertySource over an embedded DuckDB file.
type DuckDB struct {
	db *sql.DB
}

// OpenDuckDB opens (and creates if needed) the DuckDB database and its
// properties table.
func OpenDuckDB(ctx context.Context, cfg DuckDBConfig) (*DuckDB, error) {
	dsn := ""
	if cfg.DataDir != "" {
		dir := filepath.Join(cfg.DataDir, "duckdb")
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create duckdb directory: %w", err)
		}
		name := cfg.DBName
		if name == "" {
			name = "propmap"
		}
		dsn = filepath.Join(dir, name+".duckdb")
	}

	db, err := sql.Open("duckdb", dsn)
	if err != nil {
		return nil, fmt.Errorf("open duckdb: %w", err)
	}
	if dsn == "" {
		db.SetMaxOpenConns(1)
	}

	s := &DuckDB{db: db}
	if err := s.Migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Close closes the database connection.
func (s *DuckDB) Close() error {
	return s.db.Close()
}

// Ping checks the connection.
func (s *DuckDB) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Migrate creates the properties table.
func (s *DuckDB) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS properties (
		id             BIGINT PRIMARY KEY,
		title          VARCHAR,
		price          DOUBLE,
		currency       VARCHAR,
		latitude       DOUBLE,
		longitude      DOUBLE,
		property_type  VARCHAR,
		operation_type VARCHAR,
		images         VARCHAR,
		status         VARCHAR
	)`)
	if err != nil {
		return fmt.Errorf("migrate properties: %w", err)
	}
	return nil
}

// Upsert inserts or replaces rows by id.
func (s *DuckDB) Upsert(ctx context.Context, rows []service.RawProperty) (int, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `INSERT OR REPLACE INTO properties (`+mapColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return 0, fmt.Errorf("prepare upsert: %w", err)
	}
	defer stmt.Close()

	for _, r := range rows {
		images, err := encodeImages(r.Images)
		if err != nil {
			return 0, fmt.Errorf("property %d: %w", r.ID, err)
		}
		if _, err := stmt.ExecContext(ctx,
			r.ID, nullable(r.Title), nullable(r.Price), nullable(r.Currency),
			nullable(r.Latitude), nullable(r.Longitude), nullable(r.PropertyType),
			nullable(r.OperationType), nullable(images), nullable(r.Status),
		); err != nil {
			return 0, fmt.Errorf("upsert property %d: %w", r.ID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	return len(rows), nil
}

// Delete removes a property row.
func (s *DuckDB) Delete(ctx context.Context, id int64) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM properties WHERE id = ?`, id)
	return err
}

// FetchAvailable returns available rows with coordinates, ordered by id.
func (s *DuckDB) FetchAvailable(ctx context.Context) ([]service.RawProperty, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+mapColumns+` FROM properties
		WHERE status = ? AND latitude IS NOT NULL AND longitude IS NOT NULL
		ORDER BY id`, service.StatusAvailable)
	if err != nil {
		return nil, fmt.Errorf("query properties: %w", err)
	}
	defer rows.Close()

	out := []service.RawProperty{}
	for rows.Next() {
		raw, err := scanProperty(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, raw)
	}
	return out, rows.Err()
}

// FetchByID returns one row, or nil when the id is unknown.
func (s *DuckDB) FetchByID(ctx context.Context, id int64) (*service.RawProperty, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+mapColumns+` FROM properties WHERE id = ?`, id)
	raw, err := scanProperty(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &raw, nil
}

func nullable[T any](p *T) any {
	if p == nil {
		return nil
	}
	return *p
}
