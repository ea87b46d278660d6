package gramps

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"strings"

	_ "modernc.org/sqlite" // Pure Go SQLite driver (no CGO)
)

// SQLiteDB reads a Gramps database stored with the SQLite backend: one
// table per class with handle and json_data columns, plus the reference
// table used for backlinks.
type SQLiteDB struct {
	db   *sql.DB
	path string
}

// OpenSQLite opens a Gramps SQLite file read-only.
func OpenSQLite(ctx context.Context, path string) (*SQLiteDB, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("gramps database %s: %w", path, err)
	}

	db, err := sql.Open("sqlite", "file:"+path+"?mode=ro")
	if err != nil {
		return nil, fmt.Errorf("failed to open gramps database: %w", err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, "PRAGMA busy_timeout = 5000"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to set pragma: %w", err)
	}

	var count int
	err = db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name='person'`).Scan(&count)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("cannot query schema: %w", err)
	}
	if count == 0 {
		_ = db.Close()
		return nil, fmt.Errorf("%s is not a Gramps SQLite database (person table missing)", path)
	}

	return &SQLiteDB{db: db, path: path}, nil
}

// NewSQLiteOpener returns an Opener that opens path on every call.
func NewSQLiteOpener(path string) Opener {
	return OpenerFunc(func(ctx context.Context) (Database, error) {
		return OpenSQLite(ctx, path)
	})
}

// Path returns the database file path.
func (s *SQLiteDB) Path() string {
	return s.path
}

// Count implements Database.
func (s *SQLiteDB) Count(ctx context.Context, class Class) (int, error) {
	if !class.Valid() {
		return 0, fmt.Errorf("unknown class %q", class)
	}
	var n int
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+class.Table()).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count %s: %w", class.Table(), err)
	}
	return n, nil
}

// Handles implements Database.
func (s *SQLiteDB) Handles(ctx context.Context, class Class) ([]string, error) {
	if !class.Valid() {
		return nil, fmt.Errorf("unknown class %q", class)
	}
	rows, err := s.db.QueryContext(ctx, "SELECT handle FROM "+class.Table()+" ORDER BY handle")
	if err != nil {
		return nil, fmt.Errorf("failed to list %s handles: %w", class.Table(), err)
	}
	defer rows.Close()

	var handles []string
	for rows.Next() {
		var h string
		if err := rows.Scan(&h); err != nil {
			return nil, fmt.Errorf("failed to scan handle: %w", err)
		}
		handles = append(handles, h)
	}
	return handles, rows.Err()
}

// Object implements Database.
func (s *SQLiteDB) Object(ctx context.Context, class Class, handle string) (Object, error) {
	if !class.Valid() {
		return nil, fmt.Errorf("unknown class %q", class)
	}
	var data string
	err := s.db.QueryRowContext(ctx,
		"SELECT json_data FROM "+class.Table()+" WHERE handle = ?", handle).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%s %s: %w", class.Lower(), handle, ErrHandleNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load %s %s: %w", class.Lower(), handle, err)
	}
	return DecodeObject(class, []byte(data))
}

// Timestamps implements Database.
func (s *SQLiteDB) Timestamps(ctx context.Context, class Class) (map[string]int64, error) {
	if !class.Valid() {
		return nil, fmt.Errorf("unknown class %q", class)
	}
	rows, err := s.db.QueryContext(ctx,
		"SELECT handle, COALESCE(json_extract(json_data, '$.change'), 0) FROM "+class.Table())
	if err != nil {
		return nil, fmt.Errorf("failed to read %s timestamps: %w", class.Table(), err)
	}
	defer rows.Close()

	out := make(map[string]int64)
	for rows.Next() {
		var (
			h      string
			change int64
		)
		if err := rows.Scan(&h, &change); err != nil {
			return nil, fmt.Errorf("failed to scan timestamp: %w", err)
		}
		out[h] = change
	}
	return out, rows.Err()
}

// Backlinks implements Database.
func (s *SQLiteDB) Backlinks(ctx context.Context, handle string, classes ...Class) ([]Ref, error) {
	query := "SELECT obj_class, obj_handle FROM reference WHERE ref_handle = ?"
	args := []any{handle}
	if len(classes) > 0 {
		placeholders := make([]string, len(classes))
		for i, c := range classes {
			placeholders[i] = "?"
			args = append(args, string(c))
		}
		query += " AND obj_class IN (" + strings.Join(placeholders, ",") + ")"
	}
	query += " ORDER BY obj_class, obj_handle"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query backlinks: %w", err)
	}
	defer rows.Close()

	var refs []Ref
	for rows.Next() {
		var class, h string
		if err := rows.Scan(&class, &h); err != nil {
			return nil, fmt.Errorf("failed to scan backlink: %w", err)
		}
		refs = append(refs, Ref{Class: Class(class), Handle: h})
	}
	return refs, rows.Err()
}

// Close implements Database.
func (s *SQLiteDB) Close() error {
	return s.db.Close()
}

var _ Database = (*SQLiteDB)(nil)
