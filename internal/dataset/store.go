// Package dataset keeps uploaded tables in an embedded DuckDB database and
// answers the fixed set of analysis operations the planner may request. Every
// operation is executed as SQL against the registered table; callers never
// see or construct SQL themselves.
package dataset

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/google/uuid"
	_ "github.com/marcboeker/go-duckdb"

	scerrors "github.com/sheetchat/sheetchat/internal/errors"
	"github.com/sheetchat/sheetchat/internal/table"
)

// Store manages per-session tables inside a single in-memory DuckDB instance.
type Store struct {
	db *sql.DB
}

// NewStore opens an in-memory DuckDB database.
func NewStore() (*Store, error) {
	db, err := sql.Open("duckdb", "")
	if err != nil {
		return nil, scerrors.Wrap(err, scerrors.ErrTypeDataset, "failed to open database")
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, scerrors.Wrap(err, scerrors.ErrTypeDataset, "failed to connect to database")
	}

	return &Store{db: db}, nil
}

// Close releases the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Register creates a table for t and loads its rows. It returns the dataset
// ID used by all subsequent operations.
func (s *Store) Register(ctx context.Context, t *table.Table) (string, error) {
	id := "ds_" + strings.ReplaceAll(uuid.New().String(), "-", "_")

	cols := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		cols[i] = fmt.Sprintf("%s %s", quoteIdent(c.Name), sqlType(c.Type))
	}

	create := fmt.Sprintf("CREATE TABLE %s (%s)", id, strings.Join(cols, ", "))
	if _, err := s.db.ExecContext(ctx, create); err != nil {
		return "", scerrors.Wrap(err, scerrors.ErrTypeDataset, "failed to create dataset table")
	}

	if err := s.insertRows(ctx, id, t); err != nil {
		_, _ = s.db.ExecContext(ctx, "DROP TABLE IF EXISTS "+id)
		return "", err
	}

	return id, nil
}

// Drop removes a dataset table. Unknown IDs are not an error.
func (s *Store) Drop(ctx context.Context, id string) error {
	if !validID(id) {
		return scerrors.New(scerrors.ErrTypeDataset, "invalid dataset id")
	}

	_, err := s.db.ExecContext(ctx, "DROP TABLE IF EXISTS "+id)
	if err != nil {
		return scerrors.Wrap(err, scerrors.ErrTypeDataset, "failed to drop dataset table")
	}

	return nil
}

func (s *Store) insertRows(ctx context.Context, id string, t *table.Table) error {
	if len(t.Rows) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return scerrors.Wrap(err, scerrors.ErrTypeDataset, "failed to begin load transaction")
	}
	defer tx.Rollback() //nolint:errcheck

	placeholders := "(" + strings.TrimSuffix(strings.Repeat("?,", len(t.Columns)), ",") + ")"

	stmt, err := tx.PrepareContext(ctx, fmt.Sprintf("INSERT INTO %s VALUES %s", id, placeholders))
	if err != nil {
		return scerrors.Wrap(err, scerrors.ErrTypeDataset, "failed to prepare insert")
	}
	defer stmt.Close()

	for _, row := range t.Rows {
		args := make([]interface{}, len(t.Columns))
		for i, c := range t.Columns {
			args[i] = cellValue(c.Type, row[i])
		}

		if _, err := stmt.ExecContext(ctx, args...); err != nil {
			return scerrors.Wrap(err, scerrors.ErrTypeDataset, "failed to insert row")
		}
	}

	if err := tx.Commit(); err != nil {
		return scerrors.Wrap(err, scerrors.ErrTypeDataset, "failed to commit load transaction")
	}

	return nil
}

// cellValue converts a raw cell to a typed value, or nil for missing cells
// and cells that do not parse as the column type.
func cellValue(ct table.ColumnType, raw string) interface{} {
	if table.IsMissing(raw) {
		return nil
	}

	switch ct {
	case table.TypeNumeric:
		if f, ok := table.ParseNumber(raw); ok {
			return f
		}

		return nil
	case table.TypeDatetime:
		if ts, ok := table.ParseDatetime(raw); ok {
			return ts
		}

		return nil
	case table.TypeBoolean:
		switch strings.ToLower(strings.TrimSpace(raw)) {
		case "true", "yes", "y":
			return true
		case "false", "no", "n":
			return false
		}

		return nil
	default:
		return strings.TrimSpace(raw)
	}
}

func sqlType(ct table.ColumnType) string {
	switch ct {
	case table.TypeNumeric:
		return "DOUBLE"
	case table.TypeDatetime:
		return "TIMESTAMP"
	case table.TypeBoolean:
		return "BOOLEAN"
	default:
		return "VARCHAR"
	}
}

// quoteIdent quotes a column name for use in SQL. Display names may contain
// spaces and punctuation; embedded quotes are doubled.
func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// validID guards dataset IDs that get interpolated into SQL. Only IDs minted
// by Register pass.
func validID(id string) bool {
	if !strings.HasPrefix(id, "ds_") {
		return false
	}

	for _, r := range id[3:] {
		if (r < 'a' || r > 'z') && (r < '0' || r > '9') && r != '_' {
			return false
		}
	}

	return len(id) > 3
}
