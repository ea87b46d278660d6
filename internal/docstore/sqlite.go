package docstore

import (
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	_ "modernc.org/sqlite"

	gerrors "github.com/gramps-project/grampsindex/internal/errors"
)

// validateSQLiteIntegrity checks an existing database file before it is
// opened for writing. A missing file is valid.
func validateSQLiteIntegrity(path string) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil
	}
	db, err := sql.Open("sqlite", "file:"+path+"?mode=ro")
	if err != nil {
		return fmt.Errorf("cannot open for validation: %w", err)
	}
	defer db.Close()

	var result string
	if err := db.QueryRow("PRAGMA quick_check").Scan(&result); err != nil {
		return fmt.Errorf("integrity check failed: %w", err)
	}
	if result != "ok" {
		return fmt.Errorf("database corrupted: %s", result)
	}
	return nil
}

// openSQLite opens the index database at path, or a private in-memory
// database when path is empty.
func openSQLite(path string) (*sql.DB, error) {
	dsn := ":memory:"
	if path != "" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, gerrors.IOError(fmt.Sprintf("failed to create directory for %s", path), err)
		}
		if validErr := validateSQLiteIntegrity(path); validErr != nil {
			slog.Warn("sqlite_index_corrupted",
				slog.String("path", path),
				slog.String("error", validErr.Error()))
			if removeErr := os.Remove(path); removeErr != nil && !os.IsNotExist(removeErr) {
				return nil, gerrors.New(gerrors.ErrCodeCorruptIndex,
					fmt.Sprintf("index at %s is corrupted and cannot be removed", path), removeErr)
			}
			_ = os.Remove(path + "-wal")
			_ = os.Remove(path + "-shm")
		}
		dsn = path
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, gerrors.New(gerrors.ErrCodeStoreIO, "failed to open index database", err)
	}
	// One connection: an in-memory database exists per connection, and
	// a single writer avoids lock contention on disk.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA temp_store = MEMORY",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			_ = db.Close()
			return nil, gerrors.New(gerrors.ErrCodeStoreIO, "failed to set pragma", err)
		}
	}
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS collections (
		id   INTEGER PRIMARY KEY,
		name TEXT UNIQUE NOT NULL
	)`); err != nil {
		_ = db.Close()
		return nil, gerrors.New(gerrors.ErrCodeStoreIO, "failed to initialize schema", err)
	}
	return db, nil
}

// collectionID returns the numeric id of a named collection, creating
// it when needed. Table names derive from the id so that arbitrary tree
// names never reach SQL text.
func collectionID(db *sql.DB, name string) (int64, error) {
	if _, err := db.Exec(`INSERT OR IGNORE INTO collections(name) VALUES (?)`, name); err != nil {
		return 0, err
	}
	var id int64
	err := db.QueryRow(`SELECT id FROM collections WHERE name = ?`, name).Scan(&id)
	return id, err
}

// whereSQL renders where as SQL conditions on the docs alias d.
func whereSQL(where *Where) (string, []any) {
	if where == nil {
		return "", nil
	}
	var conds []string
	var args []any
	if len(where.Types) > 0 {
		ph := make([]string, len(where.Types))
		for i, t := range where.Types {
			ph[i] = "?"
			args = append(args, t)
		}
		conds = append(conds, fmt.Sprintf("d.type IN (%s)", strings.Join(ph, ",")))
	}
	if where.Change != nil {
		conds = append(conds, "d.change "+where.Change.sqlOp()+" ?")
		args = append(args, where.Change.Value)
	}
	if len(conds) == 0 {
		return "", nil
	}
	return strings.Join(conds, " AND "), args
}

// orderSQL renders sort fields on the docs alias d, falling back to
// fallback when none are given.
func orderSQL(fields []sortField, fallback string) string {
	if len(fields) == 0 {
		return fallback
	}
	parts := make([]string, 0, len(fields)+1)
	for _, f := range fields {
		col := "d." + f.Field
		if f.Desc {
			col += " DESC"
		}
		parts = append(parts, col)
	}
	return strings.Join(append(parts, "d.id"), ", ")
}

// sqlLimit maps a zero limit to SQLite's "no limit".
func sqlLimit(limit int) int {
	if limit == 0 {
		return -1
	}
	return limit
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanHit(rows rowScanner, withScore bool) (Hit, error) {
	var h Hit
	dest := []any{&h.ID, &h.Metadata.Type, &h.Metadata.Handle, &h.Metadata.Change, &h.Content}
	if withScore {
		dest = append(dest, &h.Score)
	}
	err := rows.Scan(dest...)
	return h, err
}
